// internal/view/engine.go
//
// View engine and evaluation context.
//
// Context
// -------
// The Engine is the declarative side of the application.  It owns:
//
//   - one root Context, where native objects are exposed by name
//     (SetContextProperty), and
//   - one Loop, the UI thread on which all view-side code runs, and
//   - a read-only handle on the meta-type registry, so view code can
//     construct any value type an extension has announced.
//
// A native object that implements Binder is told when it is exposed, so it
// can deliver its notifications through the context's Loop.
//
// Notes
// -----
//   - Binding the same object twice, or two objects under one name, is a
//     caller bug.  The context logs it and keeps the latest binding.
//   - Oxford commas, two spaces after periods.
package view

import (
	"errors"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/yanizio/hmi/internal/metatype"
)

// ErrUnknownType is returned by Engine.New for names nobody announced.
var ErrUnknownType = errors.New("view: unknown value type")

// Binder is implemented by native objects that need to know the context
// they were exposed in.
type Binder interface {
	BindContext(c *Context, name string)
}

//
// Engine
//

// Engine ties a root Context to a Loop and a type registry.
type Engine struct {
	loop  *Loop
	types *metatype.Registry
	root  *Context
}

// NewEngine returns an Engine resolving value types through types.  A nil
// registry means metatype.Default().
func NewEngine(types *metatype.Registry) *Engine {
	if types == nil {
		types = metatype.Default()
	}
	e := &Engine{loop: NewLoop(), types: types}
	e.root = &Context{engine: e, props: make(map[string]any)}
	return e
}

// RootContext returns the engine's evaluation context.
func (e *Engine) RootContext() *Context { return e.root }

// Loop returns the engine's UI loop.
func (e *Engine) Loop() *Loop { return e.loop }

// New constructs a zero value of the announced type name, returned as a
// pointer, e.g. New("hmi.ErrorInfo") → *hmi.ErrorInfo.
func (e *Engine) New(name string) (any, error) {
	t, ok := e.types.TypeByName(name)
	if !ok {
		return nil, ErrUnknownType
	}
	return reflect.New(t).Interface(), nil
}

// TypeName returns the view-visible name of v's type.
func (e *Engine) TypeName(v any) (string, bool) {
	return e.types.Lookup(reflect.TypeOf(v))
}

//
// Context
//

// Context maps names to exposed native objects.
type Context struct {
	engine *Engine

	mu    sync.RWMutex
	props map[string]any
}

// Engine returns the owning engine.
func (c *Context) Engine() *Engine { return c.engine }

// Loop is shorthand for c.Engine().Loop().
func (c *Context) Loop() *Loop { return c.engine.loop }

// SetContextProperty exposes obj under name.
func (c *Context) SetContextProperty(name string, obj any) {
	c.mu.Lock()
	if _, dup := c.props[name]; dup {
		zap.S().Warnw("context property rebound", "name", name)
	}
	c.props[name] = obj
	c.mu.Unlock()

	if b, ok := obj.(Binder); ok {
		b.BindContext(c, name)
	}
	zap.S().Debugw("context property set", "name", name)
}

// Property resolves a name the way view expressions do.
func (c *Context) Property(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.props[name]
	return v, ok
}
