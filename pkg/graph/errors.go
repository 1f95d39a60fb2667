package graph

import "fmt"

// NodeError reports an invalid node definition.
type NodeError struct {
	NodeID string
	Reason string
	Err    error // optional sentinel, e.g. domain.ErrNodeNotFound
}

func (e *NodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("node %q: %s: %v", e.NodeID, e.Reason, e.Err)
	}
	return fmt.Sprintf("node %q: %s", e.NodeID, e.Reason)
}

func (e *NodeError) Unwrap() error { return e.Err }

// ValidationError represents multiple definition failures.
type ValidationError struct {
	Errors []error
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d graph errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error { return e.Errors }
