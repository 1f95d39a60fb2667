package domain

import "sort"

// Context holds the variables captured during one session.
// Only the latest value per name is kept and keys are never removed.
type Context struct {
	values map[string]string
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{values: make(map[string]string)}
}

// ContextFrom seeds a context from a snapshot map.
func ContextFrom(values map[string]string) *Context {
	c := NewContext()
	for k, v := range values {
		c.values[k] = v
	}
	return c
}

// Set stores value under name, replacing any previous value.
func (c *Context) Set(name, value string) {
	c.values[name] = value
}

// Get returns the value stored under name.
func (c *Context) Get(name string) (string, bool) {
	v, ok := c.values[name]
	return v, ok
}

// GetOr returns the stored value or fallback when absent.
func (c *Context) GetOr(name, fallback string) string {
	if v, ok := c.values[name]; ok {
		return v
	}
	return fallback
}

// Len reports the number of captured variables.
func (c *Context) Len() int { return len(c.values) }

// Keys returns variable names in lexical order.
func (c *Context) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of the stored values.
func (c *Context) Snapshot() map[string]string {
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}
