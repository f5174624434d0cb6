package page

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"math"
)

// Element is one rendered item of a page.
type Element interface {
	// Kind names the element type ("title", "markdown", "slider", ...).
	Kind() string
	render(r *renderer) (template.HTML, error)
}

// Heading is a title, header or subheader.
type Heading struct {
	Level int // 1 = title, 2 = header, 3 = subheader
	Text  string
}

func (h *Heading) Kind() string {
	switch h.Level {
	case 1:
		return "title"
	case 2:
		return "header"
	default:
		return "subheader"
	}
}

// Text is a paragraph of plain text.
type Text struct {
	Body string
}

func (*Text) Kind() string { return "text" }

// Markdown is a block of GitHub-flavored markdown.
type Markdown struct {
	Body string
}

func (*Markdown) Kind() string { return "markdown" }

// JSON displays a value as indented JSON.
type JSON struct {
	Value any
}

func (*JSON) Kind() string { return "json" }

// Alert is an error or info box with a markdown body.
type Alert struct {
	Level string // CSS modifier, e.g. "error"
	Body  string
}

func (*Alert) Kind() string { return "alert" }

// Exception displays an error returned or raised by the script.
type Exception struct {
	Err error
}

func (*Exception) Kind() string { return "exception" }

// Slider is an integer range input whose value is kept in the session store.
type Slider struct {
	ID    string
	Label string
	Min   int
	Max   int
	Value int
}

func (*Slider) Kind() string { return "slider" }

// Expander is a collapsible container.
type Expander struct {
	Label    string
	Children []Element
}

func (*Expander) Kind() string { return "expander" }

// Component is an iframe-hosted frontend component. Args is evaluated when
// the page is rendered, after the script has finished, so host writes made
// later in the run reach the frontend.
type Component struct {
	ID   string
	Name string
	Src  string
	Args func() map[string]any
}

func (*Component) Kind() string { return "component" }

// Title appends a page title.
func (c *Context) Title(text string) {
	c.Append(&Heading{Level: 1, Text: text})
}

// Header appends a section header.
func (c *Context) Header(text string) {
	c.Append(&Heading{Level: 2, Text: text})
}

// Subheader appends a subsection header.
func (c *Context) Subheader(text string) {
	c.Append(&Heading{Level: 3, Text: text})
}

// Text appends plain text.
func (c *Context) Text(text string) {
	c.Append(&Text{Body: text})
}

// Markdown appends a markdown block.
func (c *Context) Markdown(body string) {
	c.Append(&Markdown{Body: body})
}

// Divider appends a horizontal rule.
func (c *Context) Divider() {
	c.Markdown("---")
}

// JSON appends a JSON view of v.
func (c *Context) JSON(v any) {
	c.Append(&JSON{Value: v})
}

// Error appends an error box with a markdown body.
func (c *Context) Error(body string) {
	c.Append(&Alert{Level: "error", Body: body})
}

// Exception appends an exception box for err.
func (c *Context) Exception(err error) {
	c.Append(&Exception{Err: err})
}

// Write appends each argument the way its type reads best: strings as
// markdown, numbers and booleans as text, everything else as JSON.
func (c *Context) Write(args ...any) {
	for _, arg := range args {
		switch v := arg.(type) {
		case string:
			c.Markdown(v)
		case error:
			c.Exception(v)
		case fmt.Stringer:
			c.Text(v.String())
		case int, int64, float64, bool:
			c.Text(fmt.Sprint(v))
		default:
			c.JSON(v)
		}
	}
}

// SliderOption customizes a slider.
type SliderOption func(*Slider)

// WithKey sets an explicit slider ID instead of deriving it from the label.
func WithKey(key string) SliderOption {
	return func(s *Slider) { s.ID = "slider/" + key }
}

// Slider appends an integer slider and returns its current value and whether
// the user moved it in the event that started this run. value is the initial
// position, used until the user first moves the slider.
func (c *Context) Slider(label string, min, max, value int, opts ...SliderOption) (int, bool, error) {
	s := &Slider{
		ID:    "slider/" + label,
		Label: label,
		Min:   min,
		Max:   max,
		Value: clamp(value, min, max),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := c.Register(s.ID); err != nil {
		return s.Value, false, err
	}

	if raw, ok := c.run.store.Value(s.ID); ok {
		var stored float64
		if err := json.Unmarshal(raw, &stored); err == nil {
			// Clamp before converting; int() of an out of range float is undefined.
			s.Value = int(math.Max(float64(min), math.Min(float64(max), math.Round(stored))))
		}
	}

	c.Append(s)
	return s.Value, c.run.store.Triggered(s.ID), nil
}

// Expander appends a collapsible container and runs fn to fill it.
func (c *Context) Expander(label string, fn func(*Context)) {
	inner := c.child()
	fn(inner)
	c.Append(&Expander{Label: label, Children: inner.elements})
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// marshalIndent encodes v for display without escaping HTML characters;
// html/template escapes the result.
func marshalIndent(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
