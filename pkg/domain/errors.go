package domain

import (
	"errors"
	"fmt"
)

// ErrNodeNotFound is returned when a node id is not part of the graph.
var ErrNodeNotFound = errors.New("node not found")

// ErrFormat is the sentinel wrapped by every FormatError.
var ErrFormat = errors.New("malformed history document")

// ErrInvalidChoice reports an answer that matches none of the option keys.
// The engine reports it through Turn.InvalidChoice; transports use the sentinel
// to map the condition onto their own protocol.
var ErrInvalidChoice = errors.New("invalid choice")

// ErrNotStarted is returned when a turn is submitted before Start.
var ErrNotStarted = errors.New("dialog not started")

// ErrService is the sentinel wrapped by every ServiceError.
var ErrService = errors.New("collaborator unavailable")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// FormatError describes why a history document was rejected.
type FormatError struct {
	Path   string // JSON path of the offending element, e.g. "$[0].children[2]"
	Reason string
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrFormat, e.Reason)
	}
	return fmt.Sprintf("%s at %s: %s", ErrFormat, e.Path, e.Reason)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

// ServiceError wraps a failure of the retrieval or generation collaborator.
type ServiceError struct {
	Collaborator string // "retriever" or "generator"
	Err          error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrService, e.Collaborator, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *ServiceError) Unwrap() []error { return []error{ErrService, e.Err} }
