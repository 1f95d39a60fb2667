package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter     EventType = "node_enter"
	EventNodeLeave     EventType = "node_leave"
	EventGenerate      EventType = "generate"
	EventInvalidChoice EventType = "invalid_choice"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID   string `json:"node_id"`
	NodeKind string `json:"node_kind"`
}

// GenerateEvent describes one call to the generation collaborator.
type GenerateEvent struct {
	EventBase
	NodeID   string        `json:"node_id,omitempty"`
	Purpose  string        `json:"purpose"` // "node", "option" or "chat"
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// ChoiceEvent is fired when an answer matches no option key.
type ChoiceEvent struct {
	EventBase
	NodeID string `json:"node_id"`
	Input  string `json:"input"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter     func(context.Context, *NodeEvent)
	OnNodeLeave     func(context.Context, *NodeEvent)
	OnGenerate      func(context.Context, *GenerateEvent)
	OnInvalidChoice func(context.Context, *ChoiceEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter:     chain(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave:     chain(h.OnNodeLeave, other.OnNodeLeave),
		OnGenerate:      chain(h.OnGenerate, other.OnGenerate),
		OnInvalidChoice: chain(h.OnInvalidChoice, other.OnInvalidChoice),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
