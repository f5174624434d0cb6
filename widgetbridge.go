// Package widgetbridge defines anywidget-style widgets: a typed schema of
// synchronized traits paired with an ESM rendering snippet, and the
// instances a page script creates from them on every run.
package widgetbridge

import (
	"fmt"
	"maps"
)

// Definition is a named bundle of synchronized traits plus the JavaScript
// module that renders them. ESM and CSS are opaque to the host.
type Definition struct {
	Name   string
	Traits []Trait
	ESM    string
	CSS    string
}

// Validate checks the definition's schema and that its ESM follows a
// supported convention.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return newDefinitionError(d.Name, "name", "widget name is required")
	}

	seen := make(map[string]bool, len(d.Traits))
	for _, t := range d.Traits {
		if t.Name == "" {
			return newDefinitionError(d.Name, "traits", "trait name is required")
		}
		if seen[t.Name] {
			return newDefinitionError(d.Name, t.Name, "duplicate trait").
				WithHint("each synchronized attribute must have a unique name")
		}
		seen[t.Name] = true

		if _, err := t.Kind.Coerce(t.Default); err != nil {
			return newDefinitionError(d.Name, t.Name, fmt.Sprintf("default %v is not a valid %s", t.Default, t.Kind)).
				Wrap(err)
		}
	}

	if _, err := DetectConvention(d.ESM); err != nil {
		return newDefinitionError(d.Name, "esm", err.Error()).
			WithHint("use 'export default class Name { ... }' or 'export default { render }'").
			Wrap(err)
	}
	return nil
}

// Convention reports the ESM convention of the definition.
func (d *Definition) Convention() (Convention, error) {
	return DetectConvention(d.ESM)
}

// Trait returns the trait with the given name.
func (d *Definition) Trait(name string) (Trait, bool) {
	for _, t := range d.Traits {
		if t.Name == name {
			return t, true
		}
	}
	return Trait{}, false
}

// State is a snapshot of a widget's trait values keyed by trait name.
type State map[string]any

// Clone returns a shallow copy of the state.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	return maps.Clone(s)
}

// Widget is one instance of a Definition. Widgets are created fresh on every
// page run and are not safe for concurrent use.
type Widget struct {
	def    *Definition
	values map[string]any
}

// New validates def and creates a widget holding the declared defaults.
func New(def *Definition) (*Widget, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	w := &Widget{
		def:    def,
		values: make(map[string]any, len(def.Traits)),
	}
	for _, t := range def.Traits {
		v, _ := t.Kind.Coerce(t.Default)
		w.values[t.Name] = v
	}
	return w, nil
}

// MustNew is like New but panics if the definition is invalid.
func MustNew(def *Definition) *Widget {
	w, err := New(def)
	if err != nil {
		panic(err)
	}
	return w
}

// Definition returns the widget's definition.
func (w *Widget) Definition() *Definition {
	return w.def
}

// Get returns the current value of a trait.
func (w *Widget) Get(name string) (any, error) {
	v, ok := w.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownTrait, w.def.Name, name)
	}
	return v, nil
}

// Int returns an int trait's value, or 0 if the trait is missing or not an int.
func (w *Widget) Int(name string) int {
	v, _ := w.values[name].(int)
	return v
}

// Float returns a float trait's value, or 0.
func (w *Widget) Float(name string) float64 {
	v, _ := w.values[name].(float64)
	return v
}

// Text returns a string trait's value, or "".
func (w *Widget) Text(name string) string {
	v, _ := w.values[name].(string)
	return v
}

// Bool returns a bool trait's value, or false.
func (w *Widget) Bool(name string) bool {
	v, _ := w.values[name].(bool)
	return v
}

// Set writes a trait value after coercing it to the trait's kind.
func (w *Widget) Set(name string, v any) error {
	t, ok := w.def.Trait(name)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownTrait, w.def.Name, name)
	}
	cv, err := t.Kind.Coerce(v)
	if err != nil {
		return fmt.Errorf("set %s.%s: %w", w.def.Name, name, err)
	}
	w.values[name] = cv
	return nil
}

// State returns a snapshot of all trait values.
func (w *Widget) State() State {
	return State(w.values).Clone()
}

// Apply writes every declared trait present in s into the widget. Keys that
// are not traits are ignored. Nothing is written if any value has the wrong
// kind.
func (w *Widget) Apply(s State) error {
	pending := make(map[string]any, len(s))
	for _, t := range w.def.Traits {
		v, ok := s[t.Name]
		if !ok {
			continue
		}
		cv, err := t.Kind.Coerce(v)
		if err != nil {
			return fmt.Errorf("apply %s.%s: %w", w.def.Name, t.Name, err)
		}
		pending[t.Name] = cv
	}
	maps.Copy(w.values, pending)
	return nil
}

// Payload returns the component arguments the frontend needs to mount the
// widget: current state, class name, ESM and CSS sources, the detected
// convention and the protocol version. The class name is the exported class
// for the class convention and the definition name otherwise.
func (w *Widget) Payload() map[string]any {
	conv, _ := w.def.Convention()
	class := ClassName(w.def.ESM)
	if class == "" {
		class = w.def.Name
	}
	return map[string]any{
		"widget_data":   w.State(),
		"widget_class":  class,
		"esm_content":   w.def.ESM,
		"css_content":   w.def.CSS,
		"convention":    string(conv),
		"protocol":      ProtocolVersion,
		"widget_schema": w.def.Traits,
	}
}
