package page

import (
	"encoding/json"
	"errors"
	"html"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(elements []Element) []string {
	out := make([]string, len(elements))
	for i, el := range elements {
		out[i] = el.Kind()
	}
	return out
}

func TestContextAppendsInCallOrder(t *testing.T) {
	ctx := New(nil)
	ctx.Title("AnyWidget in Streamlit Demo")
	ctx.Write("This demonstrates the integration.")
	ctx.Subheader("Counter Widget")
	ctx.Divider()
	ctx.JSON(map[string]any{"counter_value": 0})

	assert.Equal(t, []string{"title", "markdown", "subheader", "markdown", "json"}, kinds(ctx.Elements()))
}

func TestWriteDispatchesOnType(t *testing.T) {
	ctx := New(nil)
	ctx.Write("Counter State:", map[string]any{"value": 1}, 3, true, errors.New("boom"))

	assert.Equal(t, []string{"markdown", "json", "text", "text", "exception"}, kinds(ctx.Elements()))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	ctx := New(nil)
	require.NoError(t, ctx.Register("component/razaks"))
	require.NoError(t, ctx.Register("component/mohammed"))

	err := ctx.Register("component/razaks")
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestDuplicateIDsSharedWithExpander(t *testing.T) {
	ctx := New(nil)
	require.NoError(t, ctx.Register("a"))

	var innerErr error
	ctx.Expander("Debug", func(inner *Context) {
		innerErr = inner.Register("a")
	})
	assert.ErrorIs(t, innerErr, ErrDuplicateID)
}

func TestSliderInitialValue(t *testing.T) {
	ctx := New(nil)
	v, changed, err := ctx.Slider("Set counter value", 0, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
	assert.False(t, changed)
}

func TestSliderClampsInitialValue(t *testing.T) {
	ctx := New(nil)
	v, _, err := ctx.Slider("s", 0, 20, 99)
	require.NoError(t, err)
	assert.Equal(t, 20, v)
}

func TestSliderReadsStoredValue(t *testing.T) {
	store := NewMemoryStore()
	store.SetValue("slider/Set counter value", json.RawMessage("7"))
	store.Trigger("slider/Set counter value")

	ctx := New(store)
	v, changed, err := ctx.Slider("Set counter value", 0, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.True(t, changed)
}

func TestSliderClampsStoredValue(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"huge", `1e20`, 20},
		{"negative huge", `-1e20`, 0},
		{"fraction rounds", `6.6`, 7},
		{"not a number", `"x"`, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			store.SetValue("slider/s", json.RawMessage(tt.raw))
			v, _, err := New(store).Slider("s", 0, 20, 3)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestSliderNotChangedWhenOtherElementTriggered(t *testing.T) {
	store := NewMemoryStore()
	store.SetValue("slider/s", json.RawMessage("4"))
	store.Trigger("component/counter")

	v, changed, err := New(store).Slider("s", 0, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, v)
	assert.False(t, changed)
}

func TestSliderWithKey(t *testing.T) {
	ctx := New(nil)
	_, _, err := ctx.Slider("same", 0, 1, 0, WithKey("one"))
	require.NoError(t, err)
	_, _, err = ctx.Slider("same", 0, 1, 0, WithKey("two"))
	require.NoError(t, err)
	_, _, err = ctx.Slider("same", 0, 1, 0, WithKey("one"))
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestFinishRunsHooksInOrder(t *testing.T) {
	ctx := New(nil)
	var order []int
	ctx.OnFinish(func() error { order = append(order, 1); return errors.New("first") })
	ctx.OnFinish(func() error { order = append(order, 2); return nil })

	err := ctx.Finish()
	assert.EqualError(t, err, "first")
	assert.Equal(t, []int{1, 2}, order)
	assert.NoError(t, ctx.Finish(), "hooks run once")
}

func TestRunRecordsScriptError(t *testing.T) {
	ctx := New(nil)
	err := Run(ctx, func(c *Context) error {
		c.Title("before")
		return errors.New("script failed")
	})
	assert.EqualError(t, err, "script failed")
	assert.Equal(t, []string{"title", "exception"}, kinds(ctx.Elements()))
}

func TestRunRecoversPanic(t *testing.T) {
	ctx := New(nil)
	err := Run(ctx, func(c *Context) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, []string{"exception"}, kinds(ctx.Elements()))
}

func TestRenderHTML(t *testing.T) {
	ctx := New(nil)
	ctx.Title("Demo <b>")
	ctx.Write("Current counter value: **0**")
	ctx.Divider()
	_, _, err := ctx.Slider("Set counter value", 0, 20, 3)
	require.NoError(t, err)
	ctx.Expander("Counter Debug Info", func(c *Context) {
		c.JSON(map[string]any{"counter_value": 3})
	})
	ctx.Error("This example requires anywidget.")

	out, err := ctx.Render()
	require.NoError(t, err)

	assert.Contains(t, out, `<h1 class="wb-heading">Demo &lt;b&gt;</h1>`)
	assert.Contains(t, out, "<strong>0</strong>")
	assert.Contains(t, out, "<hr>")
	assert.Contains(t, out, `data-widget-id="slider/Set counter value"`)
	assert.Contains(t, out, `value="3"`)
	assert.Contains(t, out, "<summary>Counter Debug Info</summary>")
	assert.Contains(t, out, "&#34;counter_value&#34;: 3")
	assert.Contains(t, out, "wb-alert-error")
}

func TestRenderMarkdownEscapesRawHTML(t *testing.T) {
	ctx := New(nil)
	ctx.Markdown("<script>alert(1)</script>")
	out, err := ctx.Render()
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func TestRenderComponentArgsAreLazy(t *testing.T) {
	value := 0
	ctx := New(nil)
	ctx.Append(&Component{
		ID:   "component/counter",
		Name: "streamlit_anywidget",
		Src:  "http://localhost:3001/",
		Args: func() map[string]any { return map[string]any{"value": value} },
	})
	value = 5

	out, err := ctx.Render()
	require.NoError(t, err)
	assert.Contains(t, out, `data-component-id="component/counter"`)
	assert.Contains(t, out, `data-src="http://localhost:3001/"`)

	start := strings.Index(out, `data-args="`) + len(`data-args="`)
	end := strings.Index(out[start:], `"`)
	args := html.UnescapeString(out[start : start+end])
	assert.JSONEq(t, `{"value":5}`, args)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	_, ok := s.Value("x")
	assert.False(t, ok)

	s.SetValue("x", json.RawMessage(`1`))
	v, ok := s.Value("x")
	assert.True(t, ok)
	assert.Equal(t, json.RawMessage(`1`), v)
	assert.Equal(t, 1, s.Len())

	assert.False(t, s.Triggered(""))
	s.Trigger("x")
	assert.True(t, s.Triggered("x"))
	assert.False(t, s.Triggered("y"))
}
