package domain

import "slices"

// StateDiff is the part of a session that changed during one turn.
// Nil pointers and empty collections mean "unchanged".
type StateDiff struct {
	SessionID     string            `json:"session_id"`
	CurrentNodeID *string           `json:"current_node_id,omitempty"`
	Status        *Status           `json:"status,omitempty"`
	Context       map[string]string `json:"context,omitempty"`
	// Branch is set when the active history branch moved to a new root (restart).
	Branch []int `json:"branch,omitempty"`
}

// Diff compares two snapshots of the same session.
// A nil before reports every field of after; nil is returned when nothing changed.
func Diff(before, after *State) *StateDiff {
	if after == nil {
		return nil
	}
	if before == nil {
		before = &State{}
	}

	d := &StateDiff{SessionID: after.SessionID}
	if before.CurrentNodeID != after.CurrentNodeID {
		node := after.CurrentNodeID
		d.CurrentNodeID = &node
	}
	if before.Status != after.Status {
		status := after.Status
		d.Status = &status
	}
	for k, v := range after.Context {
		if old, ok := before.Context[k]; ok && old == v {
			continue
		}
		if d.Context == nil {
			d.Context = make(map[string]string)
		}
		d.Context[k] = v
	}
	if len(after.Branch) > 0 && !sameRoot(before.Branch, after.Branch) {
		d.Branch = slices.Clone(after.Branch)
	}

	if d.IsEmpty() {
		return nil
	}
	return d
}

// sameRoot reports whether two branch paths start at the same root.
// Paths only grow within a walk, so a new root marks a restart.
func sameRoot(a, b []int) bool {
	return len(a) > 0 && len(b) > 0 && a[0] == b[0]
}

// IsEmpty reports whether the diff carries no change.
func (d *StateDiff) IsEmpty() bool {
	return d.CurrentNodeID == nil && d.Status == nil && len(d.Context) == 0 && len(d.Branch) == 0
}
