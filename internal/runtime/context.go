// Package runtime holds the long-lived execution context that owns the built
// model, and the evaluation threads whose suspend/resume protocol carries
// host function calls.
package runtime

import (
	"errors"
	"sync"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/actionrungo/internal/model"
)

// ErrModelAttached is returned when a second model attach is attempted.
var ErrModelAttached = errors.New("model already attached to context")

// Context owns the built model and the shared expression environment used to
// evaluate source-level values. One Context per process is the usage
// convention; it is constructed explicitly and passed by reference, never
// looked up through a global.
//
// The model is written exactly once, by the loader on a successful build.
// All reads after that point are lock-free by construction; AttachModel and
// concurrent readers during loading are serialized by the loader contract.
type Context struct {
	mu      sync.RWMutex
	model   *model.Model
	evalCtx *hcl.EvalContext
}

// NewContext returns a Context with no model attached.
func NewContext() *Context {
	return &Context{
		evalCtx: &hcl.EvalContext{},
	}
}

// EvalContext returns the shared expression environment for evaluating
// source-level values during the build stage.
func (c *Context) EvalContext() *hcl.EvalContext {
	return c.evalCtx
}

// AttachModel installs the fully built model. It fails if a model is already
// attached; the loader never re-attaches after a successful load.
func (c *Context) AttachModel(m *model.Model) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.model != nil {
		return ErrModelAttached
	}
	c.model = m
	return nil
}

// Loaded reports whether a model is attached.
func (c *Context) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model != nil
}

// Model returns the attached model, or nil before a successful load.
func (c *Context) Model() *model.Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// FindComponentType looks up a component type by name. It returns nil when
// no model is loaded or the name is unknown.
func (c *Context) FindComponentType(name string) *model.ComponentType {
	if m := c.Model(); m != nil {
		return m.FindComponentType(name)
	}
	return nil
}

// FindActionType looks up an action type by qualified or unique bare name.
// It returns nil when no model is loaded or the name is unknown.
func (c *Context) FindActionType(name string) *model.ActionType {
	if m := c.Model(); m != nil {
		return m.FindActionType(name)
	}
	return nil
}
