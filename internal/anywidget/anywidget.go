// Package anywidget displays widgetbridge widgets through the anywidget
// frontend component.
package anywidget

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/livetemplate/widgetbridge"
	"github.com/livetemplate/widgetbridge/internal/bridge"
	"github.com/livetemplate/widgetbridge/internal/page"
)

// ComponentName is the registry name of the anywidget frontend component.
const ComponentName = "streamlit_anywidget"

// ErrNotInstalled is returned by Load when no anywidget frontend component is
// declared.
var ErrNotInstalled = errors.New("anywidget is not installed")

// InstallHint is the message pages show when the library is unavailable.
const InstallHint = "This example requires anywidget. Please install it with:\n\n" +
	"```\nwidgetbridge serve --embedded\n```\n\n" +
	"or start the frontend separately with `widgetbridge frontend`."

// Library displays widgets through a declared frontend component.
type Library struct {
	component *bridge.Component
	debug     bool
}

// Load returns the library backed by the registry's anywidget component.
func Load(r *bridge.Registry, debug bool) (*Library, error) {
	if r == nil {
		return nil, ErrNotInstalled
	}
	c, ok := r.Lookup(ComponentName)
	if !ok {
		return nil, ErrNotInstalled
	}
	return &Library{component: c, debug: debug}, nil
}

// Component returns the frontend component the library renders into.
func (l *Library) Component() *bridge.Component {
	return l.component
}

// Display mounts w at the call site and returns its synchronized state.
//
// When the frontend has reported a state for this element, that state is
// applied to w before Display returns, so the widget and the returned state
// agree. After the script finishes, the widget's final state is written back
// to the session; a host write made later in the run (a slider moving the
// counter) therefore reaches the frontend with this render and wins over the
// frontend's previous value.
//
// A reported state that cannot be applied is shown as an exception element
// below the widget. w keeps its defaults and the write-back replaces the bad
// value, so the rest of the page and later runs are unaffected. The returned
// error is reserved for failures of the page itself, such as a duplicate key.
func (l *Library) Display(ctx *page.Context, w *widgetbridge.Widget, key string) (widgetbridge.State, error) {
	initial := w.State()
	res, err := l.component.Invoke(ctx, w.Payload, key, initial)
	if err != nil && !errors.Is(err, bridge.ErrInvalidValue) {
		return initial, err
	}

	state := initial
	// A stored value exists, valid or not; either way it is rewritten.
	stored := res.Received || err != nil
	if err != nil {
		l.reject(ctx, res.ID, err)
	} else if res.Received {
		if applied, err := l.apply(w, res); err != nil {
			l.reject(ctx, res.ID, err)
		} else {
			state = applied
		}
	}

	id := res.ID
	store := ctx.Store()
	ctx.OnFinish(func() error {
		final := w.State()
		if !stored && statesEqual(final, initial) {
			return nil
		}
		data, err := json.Marshal(final)
		if err != nil {
			return fmt.Errorf("anywidget %s: encode state: %w", w.Definition().Name, err)
		}
		if prev, ok := store.Value(id); ok && bytes.Equal(prev, data) {
			return nil
		}
		store.SetValue(id, data)
		if l.debug {
			log.Printf("[Anywidget] %s state written back: %s", id, data)
		}
		return nil
	})

	return state, nil
}

// apply writes a reported state into w and returns the merged state.
func (l *Library) apply(w *widgetbridge.Widget, res bridge.Result) (widgetbridge.State, error) {
	reported := res.Map()
	if reported == nil {
		return nil, fmt.Errorf("anywidget %s: frontend value %v is not an object", w.Definition().Name, res.Value)
	}
	if err := w.Apply(widgetbridge.State(reported)); err != nil {
		return nil, fmt.Errorf("anywidget %s: %w", w.Definition().Name, err)
	}
	return mergeState(reported, w.State()), nil
}

func (l *Library) reject(ctx *page.Context, id string, err error) {
	log.Printf("[Anywidget] %s: discarding frontend value: %v", id, err)
	ctx.Exception(err)
}

// mergeState returns the frontend's reported map with trait values replaced
// by the widget's coerced values.
func mergeState(reported map[string]any, traits widgetbridge.State) widgetbridge.State {
	out := widgetbridge.State(reported).Clone()
	for k, v := range traits {
		out[k] = v
	}
	return out
}

func statesEqual(a, b widgetbridge.State) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
