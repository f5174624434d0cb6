package widgetbridge

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedESM is returned when a widget's ESM source follows neither
	// the class convention nor the module convention.
	ErrUnsupportedESM = errors.New("unsupported ESM format: must use 'export default class' or 'export default { render }'")

	// ErrUnknownTrait is returned when reading or writing a trait the widget
	// definition does not declare.
	ErrUnknownTrait = errors.New("unknown trait")

	// ErrTraitKind is returned when a value cannot be coerced to the kind of
	// the trait it is written to.
	ErrTraitKind = errors.New("trait kind mismatch")
)

// DefinitionError describes a problem with a widget definition.
type DefinitionError struct {
	Widget  string // Widget definition name
	Field   string // Offending field ("name", "esm", or a trait name)
	Message string
	Hint    string
	Err     error // Wrapped sentinel, if any
}

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	return e.Format()
}

// Unwrap returns the wrapped sentinel error.
func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// Format returns a readable, multi-line description of the error.
func (e *DefinitionError) Format() string {
	var b strings.Builder

	name := e.Widget
	if name == "" {
		name = "<unnamed>"
	}
	b.WriteString(fmt.Sprintf("❌ Error in widget %s\n\n", name))

	if e.Field != "" {
		b.WriteString(fmt.Sprintf("%s: %s\n", e.Field, e.Message))
	} else {
		b.WriteString(e.Message + "\n")
	}

	if e.Hint != "" {
		b.WriteString(fmt.Sprintf("\n💡 Tip: %s\n", e.Hint))
	}

	return b.String()
}

// newDefinitionError creates a DefinitionError for the given widget and field.
func newDefinitionError(widget, field, message string) *DefinitionError {
	return &DefinitionError{
		Widget:  widget,
		Field:   field,
		Message: message,
	}
}

// WithHint adds a helpful hint to the error.
func (e *DefinitionError) WithHint(hint string) *DefinitionError {
	e.Hint = hint
	return e
}

// Wrap records the sentinel error this definition error is an instance of.
func (e *DefinitionError) Wrap(err error) *DefinitionError {
	e.Err = err
	return e
}
