package page

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
)

var elementTemplates = template.Must(template.New("elements").Parse(`
{{define "heading"}}{{if eq .Level 1}}<h1 class="wb-heading">{{.Text}}</h1>{{else if eq .Level 2}}<h2 class="wb-heading">{{.Text}}</h2>{{else}}<h3 class="wb-heading">{{.Text}}</h3>{{end}}{{end}}
{{define "text"}}<p class="wb-text">{{.Body}}</p>{{end}}
{{define "markdown"}}<div class="wb-markdown">{{.}}</div>{{end}}
{{define "json"}}<pre class="wb-json">{{.}}</pre>{{end}}
{{define "alert"}}<div class="wb-alert wb-alert-{{.Level}}" role="alert">{{.Body}}</div>{{end}}
{{define "exception"}}<div class="wb-alert wb-alert-error wb-exception" role="alert"><strong>Exception</strong><pre>{{.}}</pre></div>{{end}}
{{define "slider"}}<label class="wb-slider">
  <span class="wb-slider-label">{{.Label}}</span>
  <input type="range" data-widget-id="{{.ID}}" min="{{.Min}}" max="{{.Max}}" value="{{.Value}}">
  <output>{{.Value}}</output>
</label>{{end}}
{{define "expander"}}<details class="wb-expander"><summary>{{.Label}}</summary><div class="wb-expander-body">{{.Body}}</div></details>{{end}}
{{define "component"}}<div class="wb-component" data-component-id="{{.ID}}" data-component-name="{{.Name}}" data-src="{{.Src}}" data-args="{{.Args}}"></div>{{end}}
`))

// renderer turns elements into HTML fragments.
type renderer struct {
	md goldmark.Markdown
}

func (r *renderer) exec(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := elementTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// markdown converts body to HTML. goldmark escapes raw HTML in the source
// unless configured otherwise, so the result is safe to embed.
func (r *renderer) markdown(body string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func (r *renderer) all(elements []Element) (template.HTML, error) {
	var b strings.Builder
	for _, el := range elements {
		html, err := el.render(r)
		if err != nil {
			return "", err
		}
		b.WriteString(string(html))
		b.WriteString("\n")
	}
	return template.HTML(b.String()), nil
}

func (h *Heading) render(r *renderer) (template.HTML, error) {
	level := h.Level
	if level < 1 || level > 3 {
		level = 3
	}
	return r.exec("heading", struct {
		Level int
		Text  string
	}{level, h.Text})
}

func (t *Text) render(r *renderer) (template.HTML, error) {
	return r.exec("text", t)
}

func (m *Markdown) render(r *renderer) (template.HTML, error) {
	html, err := r.markdown(m.Body)
	if err != nil {
		return "", err
	}
	return r.exec("markdown", html)
}

func (j *JSON) render(r *renderer) (template.HTML, error) {
	body, err := marshalIndent(j.Value)
	if err != nil {
		return "", fmt.Errorf("render json: %w", err)
	}
	return r.exec("json", body)
}

func (a *Alert) render(r *renderer) (template.HTML, error) {
	body, err := r.markdown(a.Body)
	if err != nil {
		return "", err
	}
	return r.exec("alert", struct {
		Level string
		Body  template.HTML
	}{a.Level, body})
}

func (e *Exception) render(r *renderer) (template.HTML, error) {
	msg := "<nil>"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return r.exec("exception", msg)
}

func (s *Slider) render(r *renderer) (template.HTML, error) {
	return r.exec("slider", s)
}

func (e *Expander) render(r *renderer) (template.HTML, error) {
	body, err := r.all(e.Children)
	if err != nil {
		return "", err
	}
	return r.exec("expander", struct {
		Label string
		Body  template.HTML
	}{e.Label, body})
}

func (c *Component) render(r *renderer) (template.HTML, error) {
	var args map[string]any
	if c.Args != nil {
		args = c.Args()
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("render component %s: %w", c.ID, err)
	}
	return r.exec("component", struct {
		ID   string
		Name string
		Src  string
		Args string
	}{c.ID, c.Name, c.Src, string(data)})
}

// Render returns the HTML body of the page built so far.
func (c *Context) Render() (string, error) {
	r := &renderer{md: c.run.md}
	html, err := r.all(c.elements)
	if err != nil {
		return "", err
	}
	return string(html), nil
}
