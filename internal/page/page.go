// Package page provides the render context a page script runs against.
//
// Every run of a script gets a fresh Context. The script appends elements
// (text, markdown, sliders, expanders, components) in call order; widget
// values that must survive between runs live in the session's Store, keyed by
// element ID.
package page

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ErrDuplicateID is returned when two elements in the same run resolve to the
// same ID. Pass a distinct key to tell them apart.
var ErrDuplicateID = errors.New("duplicate element ID")

// Store holds element values across runs of the same session.
type Store interface {
	// Value returns the stored JSON value for an element.
	Value(id string) (json.RawMessage, bool)
	// SetValue replaces the stored value for an element.
	SetValue(id string, v json.RawMessage)
	// Triggered reports whether the event that started this run targeted id.
	Triggered(id string) bool
}

// Script is a page script. It is re-executed top to bottom on every
// interaction of the session it belongs to.
type Script func(ctx *Context) error

// run is state shared by a Context and its nested containers.
type run struct {
	store Store
	ids   map[string]bool
	hooks []func() error
	md    goldmark.Markdown
}

// Context is the explicit state of one script run.
type Context struct {
	run      *run
	elements []Element
}

// New creates a render context for one run backed by store.
func New(store Store) *Context {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Context{
		run: &run{
			store: store,
			ids:   make(map[string]bool),
			md:    goldmark.New(goldmark.WithExtensions(extension.GFM)),
		},
	}
}

// child returns a nested container sharing this run's store and IDs.
func (c *Context) child() *Context {
	return &Context{run: c.run}
}

// Elements returns the elements appended so far, in call order.
func (c *Context) Elements() []Element {
	return c.elements
}

// Store returns the session store backing this run.
func (c *Context) Store() Store {
	return c.run.store
}

// Register claims an element ID for this run.
func (c *Context) Register(id string) error {
	if c.run.ids[id] {
		return fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	c.run.ids[id] = true
	return nil
}

// Append adds an element at the current position.
func (c *Context) Append(el Element) {
	c.elements = append(c.elements, el)
}

// OnFinish registers fn to run after the script returns and before the page
// is rendered.
func (c *Context) OnFinish(fn func() error) {
	c.run.hooks = append(c.run.hooks, fn)
}

// Finish runs the registered finish hooks in order. All hooks run; their
// errors are joined.
func (c *Context) Finish() error {
	var errs []error
	for _, fn := range c.run.hooks {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	c.run.hooks = nil
	return errors.Join(errs...)
}

// Run executes script against ctx, turning a returned error or a panic into
// an exception element so the rest of the page still renders.
func Run(ctx *Context, script Script) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("script panic: %v", r)
			ctx.Exception(err)
		}
	}()

	if err := script(ctx); err != nil {
		ctx.Exception(err)
		return err
	}
	if err := ctx.Finish(); err != nil {
		ctx.Exception(err)
		return err
	}
	return nil
}
