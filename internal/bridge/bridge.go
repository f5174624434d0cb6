// Package bridge declares frontend components and invokes them from page
// scripts.
//
// A component is a JavaScript app served at a URL (or bundled and served by
// this process) and mounted in an iframe. Invoking a component records an
// element at the call site and returns the last value the frontend reported
// for that element in this session, or the declared default when it has not
// reported one yet.
package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/livetemplate/widgetbridge"
	"github.com/livetemplate/widgetbridge/internal/page"
)

// MountPrefix is the path under which bundled components are served.
const MountPrefix = "/component/"

// ErrInvalidValue is returned by Invoke when the value stored for an element
// is not valid JSON. The element is already on the page when it is returned.
var ErrInvalidValue = errors.New("invalid frontend value")

// Component is a declared frontend component.
type Component struct {
	Name string
	URL  string // Externally served frontend, e.g. http://localhost:3001
	FS   fs.FS  // Bundled frontend served in-process under MountPrefix
}

// Src returns the iframe source for the component.
func (c *Component) Src() string {
	if c.FS != nil {
		return MountPrefix + c.Name + "/"
	}
	return c.URL
}

// Option configures a component declaration.
type Option func(*Component)

// WithURL points the component at an externally served frontend.
func WithURL(url string) Option {
	return func(c *Component) { c.URL = url }
}

// WithFS bundles the frontend with the host process.
func WithFS(fsys fs.FS) Option {
	return func(c *Component) { c.FS = fsys }
}

// Registry holds declared components by name. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	components map[string]*Component
	debug      bool
}

// NewRegistry creates an empty registry.
func NewRegistry(debug bool) *Registry {
	return &Registry{
		components: make(map[string]*Component),
		debug:      debug,
	}
}

// Declare registers a component. Declaring an existing name replaces the
// earlier declaration.
func (r *Registry) Declare(name string, opts ...Option) (*Component, error) {
	if name == "" {
		return nil, errors.New("component name is required")
	}

	c := &Component{Name: name}
	for _, opt := range opts {
		opt(c)
	}
	if (c.URL == "") == (c.FS == nil) {
		return nil, fmt.Errorf("component %s: exactly one of URL or FS is required", name)
	}

	r.mu.Lock()
	r.components[name] = c
	r.mu.Unlock()

	if r.debug {
		log.Printf("[Bridge] Declared component %s at %s", name, c.Src())
	}
	return c, nil
}

// Lookup returns the component declared under name.
func (r *Registry) Lookup(name string) (*Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[name]
	return c, ok
}

// Components returns all declared components sorted by name.
func (r *Registry) Components() []*Component {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Component, 0, len(r.components))
	for _, c := range r.components {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Args supplies component arguments. It is called once when the element ID
// is computed and again when the page is rendered.
type Args func() map[string]any

// Static returns Args that always yields m.
func Static(m map[string]any) Args {
	return func() map[string]any { return m }
}

// Result is the outcome of invoking a component.
type Result struct {
	// ID is the element ID the call resolved to.
	ID string
	// Value is the frontend's last reported value, or the default.
	Value any
	// Received is true when Value came from the session (reported by the
	// frontend or written back by the host) rather than being the default.
	Received bool
	// Ready is true once the frontend for this element completed the ready
	// handshake in this session.
	Ready bool
}

// Int returns Value as an int, or def when it is not an integral number that
// fits an int. Fractions are not truncated.
func (r Result) Int(def int) int {
	v, err := widgetbridge.KindInt.Coerce(r.Value)
	if err != nil {
		return def
	}
	return v.(int)
}

// Map returns Value as a JSON object, or nil.
func (r Result) Map() map[string]any {
	m, _ := r.Value.(map[string]any)
	return m
}

// readiness is implemented by stores that track the ready handshake.
type readiness interface {
	Ready(id string) bool
}

// ElementID returns the identity of a component element. An explicit key
// gives a stable ID; otherwise the ID is derived from the arguments, so it
// changes whenever they do.
func (c *Component) ElementID(args map[string]any, key string) (string, error) {
	if key != "" {
		return "component/" + c.Name + "/" + key, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("component %s: hash args: %w", c.Name, err)
	}
	h := xxhash.New()
	h.WriteString(c.Name)
	h.Write([]byte{0})
	h.Write(data)
	return "component/" + c.Name + "/" + strconv.FormatUint(h.Sum64(), 16), nil
}

// Invoke renders the component at the call site and returns the value the
// frontend reported for it, or def. An unreachable frontend is not an error;
// the result simply stays at the default with Received false.
func (c *Component) Invoke(ctx *page.Context, args Args, key string, def any) (Result, error) {
	if args == nil {
		args = Static(nil)
	}
	res := Result{Value: def}

	id, err := c.ElementID(args(), key)
	if err != nil {
		return res, err
	}
	res.ID = id
	if err := ctx.Register(id); err != nil {
		return res, fmt.Errorf("component %s: %w", c.Name, err)
	}

	ctx.Append(&page.Component{
		ID:   id,
		Name: c.Name,
		Src:  c.Src(),
		Args: func() map[string]any {
			m := args()
			out := make(map[string]any, len(m)+2)
			for k, v := range m {
				out[k] = v
			}
			out["default"] = def
			out["key"] = id
			return out
		},
	})

	store := ctx.Store()
	if r, ok := store.(readiness); ok {
		res.Ready = r.Ready(id)
	}

	raw, ok := store.Value(id)
	if !ok {
		return res, nil
	}

	v, err := decodeValue(raw)
	if err != nil {
		return res, fmt.Errorf("component %s: %w: %v", c.Name, ErrInvalidValue, err)
	}
	res.Value = v
	res.Received = true
	return res, nil
}

// decodeValue decodes a stored frontend value. Numbers stay json.Number so
// integers beyond 2^53 are not rounded through float64.
func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after value")
	}
	return v, nil
}

// Greet sends a display name to the component and returns the integer the
// frontend replies with, 0 until it responds.
func (c *Component) Greet(ctx *page.Context, name, key string) (int, Result, error) {
	res, err := c.Invoke(ctx, Static(map[string]any{"name": name}), key, 0)
	if err != nil {
		return 0, res, err
	}
	return res.Int(0), res, nil
}
