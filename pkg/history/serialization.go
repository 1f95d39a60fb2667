package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/dialogtree/pkg/domain"
)

// indentCap bounds the indentation of deeply nested messages. Branches grow
// by one level per message, so unbounded indentation would make the document
// quadratic in the length of a conversation.
const indentCap = 32

// Serialize renders every root and its subtree as an indented JSON array:
//
//	[
//	  {
//	    "role": "system",
//	    "content": "...",
//	    "children": []
//	  }
//	]
//
// The output is deterministic and keeps non-ASCII text readable. Messages are
// written iteratively, so the depth of a branch is not limited.
func (t *Tree) Serialize() ([]byte, error) {
	if len(t.roots) == 0 {
		return []byte("[]\n"), nil
	}

	w := newEncoder()
	w.buf.WriteString("[\n")
	for i, r := range t.roots {
		if i > 0 {
			w.buf.WriteString(",\n")
		}
		if err := w.message(r, 1); err != nil {
			return nil, fmt.Errorf("failed to encode history: %w", err)
		}
	}
	w.buf.WriteString("\n]\n")
	return w.buf.Bytes(), nil
}

type encoder struct {
	buf     bytes.Buffer
	scratch bytes.Buffer
	str     *json.Encoder
}

func newEncoder() *encoder {
	e := &encoder{}
	e.str = json.NewEncoder(&e.scratch)
	e.str.SetEscapeHTML(false)
	return e
}

type encFrame struct {
	msg   *Message
	level int
	next  int
}

// message writes m and its subtree with m's opening brace at the given level.
func (e *encoder) message(m *Message, level int) error {
	if err := e.open(m, level); err != nil {
		return err
	}
	stack := []encFrame{{msg: m, level: level}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.msg.children) {
			if top.next > 0 {
				e.buf.WriteString(",\n")
			}
			child := top.msg.children[top.next]
			childLevel := top.level + 2
			top.next++
			if err := e.open(child, childLevel); err != nil {
				return err
			}
			stack = append(stack, encFrame{msg: child, level: childLevel})
			continue
		}
		e.close(top.msg, top.level)
		stack = stack[:len(stack)-1]
	}
	return nil
}

// open writes the object head up to and including the children opener.
func (e *encoder) open(m *Message, level int) error {
	e.indent(level)
	e.buf.WriteString("{\n")
	for _, field := range [...]struct{ key, value string }{
		{"role", string(m.role)},
		{"content", m.content},
	} {
		e.indent(level + 1)
		e.buf.WriteString(`"` + field.key + `": `)
		if err := e.string(field.value); err != nil {
			return err
		}
		e.buf.WriteString(",\n")
	}
	e.indent(level + 1)
	if len(m.children) == 0 {
		e.buf.WriteString(`"children": []`)
	} else {
		e.buf.WriteString("\"children\": [\n")
	}
	return nil
}

func (e *encoder) close(m *Message, level int) {
	if len(m.children) > 0 {
		e.buf.WriteByte('\n')
		e.indent(level + 1)
		e.buf.WriteByte(']')
	}
	e.buf.WriteByte('\n')
	e.indent(level)
	e.buf.WriteByte('}')
}

func (e *encoder) indent(level int) {
	e.buf.WriteString(strings.Repeat("  ", min(level, indentCap)))
}

func (e *encoder) string(s string) error {
	e.scratch.Reset()
	if err := e.str.Encode(s); err != nil {
		return err
	}
	e.buf.Write(bytes.TrimSuffix(e.scratch.Bytes(), []byte("\n")))
	return nil
}

// Deserialize parses a document produced by Serialize.
// Parsing is strict: unknown or duplicate fields, missing role or content,
// unknown roles, values of the wrong type, a non-array document or trailing
// data yield a *domain.FormatError. The document is read token by token, so
// the depth of a branch is not limited. The returned tree has no active branch.
func Deserialize(data []byte) (*Tree, error) {
	d := &decoder{dec: json.NewDecoder(bytes.NewReader(data))}

	tok, err := d.dec.Token()
	if err != nil || tok != json.Delim('[') {
		return nil, &domain.FormatError{Path: "$", Reason: "expected a JSON array of root messages"}
	}

	tree := New()
	for d.dec.More() {
		root, err := d.root(len(tree.roots))
		if err != nil {
			return nil, err
		}
		tree.roots = append(tree.roots, root)
	}
	if err := d.expect(json.Delim(']')); err != nil {
		return nil, err
	}
	if _, err := d.dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &domain.FormatError{Path: "$", Reason: "unexpected data after document"}
	}
	return tree, nil
}

const (
	seenRole = 1 << iota
	seenContent
	seenChildren
)

type decFrame struct {
	msg        *Message
	index      int
	seen       int
	inChildren bool
}

type decoder struct {
	dec   *json.Decoder
	stack []*decFrame
}

// root reads one root message and its subtree with an explicit stack.
func (d *decoder) root(index int) (*Message, error) {
	d.stack = d.stack[:0]
	root, err := d.open(index)
	if err != nil {
		return nil, err
	}

	for len(d.stack) > 0 {
		top := d.stack[len(d.stack)-1]
		if top.inChildren {
			if d.dec.More() {
				child, err := d.open(len(top.msg.children))
				if err != nil {
					return nil, err
				}
				top.msg.children = append(top.msg.children, child)
				continue
			}
			if err := d.expect(json.Delim(']')); err != nil {
				return nil, err
			}
			top.inChildren = false
		}

		if err := d.fields(top); err != nil {
			return nil, err
		}
		if top.inChildren {
			continue
		}
		switch {
		case top.seen&seenRole == 0:
			return nil, d.fail(`missing field "role"`)
		case top.seen&seenContent == 0:
			return nil, d.fail(`missing field "content"`)
		}
		d.stack = d.stack[:len(d.stack)-1]
	}
	return root, nil
}

// open consumes the opening brace of the message at index under the current
// top of the stack and pushes its frame.
func (d *decoder) open(index int) (*Message, error) {
	tok, err := d.dec.Token()
	if err != nil {
		return nil, &domain.FormatError{Path: d.pathTo(index), Reason: err.Error()}
	}
	if tok != json.Delim('{') {
		return nil, &domain.FormatError{Path: d.pathTo(index), Reason: "message must be an object"}
	}
	msg := &Message{}
	d.stack = append(d.stack, &decFrame{msg: msg, index: index})
	return msg, nil
}

// fields reads keys of f until the object closes or a children array opens.
func (d *decoder) fields(f *decFrame) error {
	for {
		tok, err := d.dec.Token()
		if err != nil {
			return d.fail(err.Error())
		}
		if tok == json.Delim('}') {
			return nil
		}
		key, ok := tok.(string)
		if !ok {
			return d.fail(fmt.Sprintf("unexpected token %v", tok))
		}

		var bit int
		switch key {
		case "role":
			bit = seenRole
		case "content":
			bit = seenContent
		case "children":
			bit = seenChildren
		default:
			return d.fail(fmt.Sprintf("unknown field %q", key))
		}
		if f.seen&bit != 0 {
			return d.fail(fmt.Sprintf("duplicate field %q", key))
		}
		f.seen |= bit

		switch key {
		case "role":
			s, err := d.string(key)
			if err != nil {
				return err
			}
			if role := Role(s); !role.Valid() {
				return d.fail(fmt.Sprintf("unknown role %q", s))
			}
			f.msg.role = Role(s)
		case "content":
			s, err := d.string(key)
			if err != nil {
				return err
			}
			f.msg.content = s
		case "children":
			tok, err := d.dec.Token()
			if err != nil {
				return d.fail(err.Error())
			}
			switch tok {
			case nil:
				// null children is an empty list
			case json.Delim('['):
				f.inChildren = true
				return nil
			default:
				return d.fail(`field "children" must be an array`)
			}
		}
	}
}

func (d *decoder) string(field string) (string, error) {
	tok, err := d.dec.Token()
	if err != nil {
		return "", d.fail(err.Error())
	}
	s, ok := tok.(string)
	if !ok {
		return "", d.fail(fmt.Sprintf("field %q must be a string", field))
	}
	return s, nil
}

func (d *decoder) expect(delim json.Delim) error {
	tok, err := d.dec.Token()
	if err != nil {
		return d.fail(err.Error())
	}
	if tok != delim {
		return d.fail(fmt.Sprintf("expected %q, got %v", delim, tok))
	}
	return nil
}

// fail reports reason at the message on top of the stack.
func (d *decoder) fail(reason string) error {
	return &domain.FormatError{Path: d.path(), Reason: reason}
}

// path renders the location of the top frame; it is only built for errors.
func (d *decoder) path() string {
	if len(d.stack) == 0 {
		return "$"
	}
	var b strings.Builder
	for i, f := range d.stack {
		if i == 0 {
			fmt.Fprintf(&b, "$[%d]", f.index)
			continue
		}
		fmt.Fprintf(&b, ".children[%d]", f.index)
	}
	return b.String()
}

func (d *decoder) pathTo(index int) string {
	if len(d.stack) == 0 {
		return fmt.Sprintf("$[%d]", index)
	}
	return fmt.Sprintf("%s.children[%d]", d.path(), index)
}
