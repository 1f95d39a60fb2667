package domain

// Status defines the lifecycle phase of a session.
type Status string

const (
	StatusNotStarted    Status = "not_started"
	StatusAwaitingInput Status = "awaiting_input" // Current node waits for the user
	StatusFinished      Status = "finished"       // Guided flow done; free chat only
)

// State is the persistable snapshot of a session, without its history.
type State struct {
	SessionID     string            `json:"session_id"`
	CurrentNodeID string            `json:"current_node_id,omitempty"`
	Status        Status            `json:"status"`
	Context       map[string]string `json:"context"`
	// Branch locates the active history branch (see history.Tree.BranchPath).
	Branch []int `json:"branch,omitempty"`
}

// NewState creates a clean, not yet started state.
func NewState(sessionID string) *State {
	return &State{
		SessionID: sessionID,
		Status:    StatusNotStarted,
		Context:   make(map[string]string),
	}
}

// Snapshot returns a deep copy of the state.
func (s *State) Snapshot() *State {
	if s == nil {
		return nil
	}
	next := *s
	next.Context = make(map[string]string, len(s.Context))
	for k, v := range s.Context {
		next.Context[k] = v
	}
	if s.Branch != nil {
		next.Branch = append([]int(nil), s.Branch...)
	}
	return &next
}
