package history

import (
	"fmt"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	return r == RoleSystem || r == RoleUser
}

// Message is a node of the history tree.
// A message is immutable once created except for its children list, which only grows.
type Message struct {
	role     Role
	content  string
	children []*Message
}

// Role returns the author of the message.
func (m *Message) Role() Role { return m.role }

// Content returns the message text.
func (m *Message) Content() string { return m.content }

// Children returns the replies attached to this message, oldest first.
func (m *Message) Children() []*Message {
	out := make([]*Message, len(m.children))
	copy(out, m.children)
	return out
}

// Tree is the append-only conversation history of a session.
// Each root starts an independent branch; the active branch is the path from
// the active root to the most recently appended message.
//
// Tree is not safe for concurrent use.
type Tree struct {
	roots  []*Message
	branch []*Message
}

// New returns an empty tree with no active branch.
func New() *Tree {
	return &Tree{}
}

// Append records a message. It starts a new root when newBranch is set or no
// branch is active; otherwise the message becomes the last child of the
// active tail. Invalid UTF-8 in content is replaced with U+FFFD so the
// message survives serialization unchanged.
func (t *Tree) Append(role Role, content string, newBranch bool) *Message {
	msg := &Message{role: role, content: strings.ToValidUTF8(content, "\uFFFD")}

	if newBranch || len(t.branch) == 0 {
		t.roots = append(t.roots, msg)
		t.branch = []*Message{msg}
		return msg
	}

	tail := t.branch[len(t.branch)-1]
	tail.children = append(tail.children, msg)
	t.branch = append(t.branch, msg)
	return msg
}

// Clone returns a deep copy of t with the same active branch.
func (t *Tree) Clone() *Tree {
	out := &Tree{roots: cloneMessages(t.roots)}
	if path := t.BranchPath(); path != nil {
		_ = out.Resume(path)
	}
	return out
}

func cloneMessages(msgs []*Message) []*Message {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]*Message, len(msgs))
	for i, m := range msgs {
		out[i] = &Message{role: m.role, content: m.content, children: cloneMessages(m.children)}
	}
	return out
}

// Roots returns the branch origins in creation order.
func (t *Tree) Roots() []*Message {
	out := make([]*Message, len(t.roots))
	copy(out, t.roots)
	return out
}

// ActiveBranch returns the path from the active root to the tail.
// It is empty for a new or freshly deserialized tree.
func (t *Tree) ActiveBranch() []*Message {
	out := make([]*Message, len(t.branch))
	copy(out, t.branch)
	return out
}

// BranchPath encodes the active branch as indexes: the root index followed
// by one child index per level. It is nil when no branch is active.
func (t *Tree) BranchPath() []int {
	if len(t.branch) == 0 {
		return nil
	}
	path := make([]int, 0, len(t.branch))
	siblings := t.roots
	for _, m := range t.branch {
		for i, s := range siblings {
			if s == m {
				path = append(path, i)
				break
			}
		}
		siblings = m.children
	}
	return path
}

// Resume re-activates the branch described by path, as returned by
// BranchPath. An empty path clears the active branch.
func (t *Tree) Resume(path []int) error {
	branch := make([]*Message, 0, len(path))
	siblings := t.roots
	for depth, i := range path {
		if i < 0 || i >= len(siblings) {
			return fmt.Errorf("branch path %v: no message at depth %d index %d", path, depth, i)
		}
		m := siblings[i]
		branch = append(branch, m)
		siblings = m.children
	}
	t.branch = branch
	return nil
}

// Tail returns the last message of the active branch, or nil.
func (t *Tree) Tail() *Message {
	if len(t.branch) == 0 {
		return nil
	}
	return t.branch[len(t.branch)-1]
}

// Len counts every message in the tree.
func (t *Tree) Len() int {
	n := 0
	t.Walk(func(int, *Message) bool {
		n++
		return true
	})
	return n
}

// Walk visits messages depth-first in document order. depth is 0 for roots.
// Returning false from fn stops the walk.
func (t *Tree) Walk(fn func(depth int, m *Message) bool) {
	for _, r := range t.roots {
		if !walk(r, 0, fn) {
			return
		}
	}
}

func walk(m *Message, depth int, fn func(int, *Message) bool) bool {
	if !fn(depth, m) {
		return false
	}
	for _, c := range m.children {
		if !walk(c, depth+1, fn) {
			return false
		}
	}
	return true
}

// Equal reports whether a and b hold the same messages in the same shape.
// The active branch is not compared.
func Equal(a, b *Tree) bool {
	if len(a.roots) != len(b.roots) {
		return false
	}
	for i := range a.roots {
		if !equalMessage(a.roots[i], b.roots[i]) {
			return false
		}
	}
	return true
}

func equalMessage(a, b *Message) bool {
	if a.role != b.role || a.content != b.content || len(a.children) != len(b.children) {
		return false
	}
	for i := range a.children {
		if !equalMessage(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}
