package bridge

import (
	"encoding/json"
	"testing"
	"testing/fstest"

	"github.com/livetemplate/widgetbridge/internal/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGreeter(t *testing.T) *Component {
	t.Helper()
	r := NewRegistry(false)
	c, err := r.Declare("streamlit_anywidget", WithURL("http://localhost:3001"))
	require.NoError(t, err)
	return c
}

func TestDeclare(t *testing.T) {
	r := NewRegistry(false)

	_, err := r.Declare("")
	assert.Error(t, err)

	_, err = r.Declare("none")
	assert.ErrorContains(t, err, "exactly one of URL or FS")

	_, err = r.Declare("both", WithURL("http://x"), WithFS(fstest.MapFS{}))
	assert.ErrorContains(t, err, "exactly one of URL or FS")

	c, err := r.Declare("b", WithURL("http://localhost:3001"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3001", c.Src())

	bundled, err := r.Declare("a", WithFS(fstest.MapFS{"index.html": {Data: []byte("<html>")}}))
	require.NoError(t, err)
	assert.Equal(t, "/component/a/", bundled.Src())

	got, ok := r.Lookup("b")
	require.True(t, ok)
	assert.Same(t, c, got)

	names := []string{}
	for _, c := range r.Components() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestDeclareReplaces(t *testing.T) {
	r := NewRegistry(false)
	_, err := r.Declare("c", WithURL("http://one"))
	require.NoError(t, err)
	_, err = r.Declare("c", WithURL("http://two"))
	require.NoError(t, err)

	c, _ := r.Lookup("c")
	assert.Equal(t, "http://two", c.URL)
	assert.Len(t, r.Components(), 1)
}

func TestGreetReturnsDefaultWithoutFrontend(t *testing.T) {
	c := newGreeter(t)
	ctx := page.New(page.NewMemoryStore())

	v, res, err := c.Greet(ctx, "razaks", "")
	require.NoError(t, err)
	assert.Equal(t, 0, v)
	assert.False(t, res.Received)
	assert.Equal(t, 0, res.Value)
}

func TestDistinctKeysDoNotCollide(t *testing.T) {
	c := newGreeter(t)
	store := page.NewMemoryStore()
	store.SetValue("component/streamlit_anywidget/mohammed", json.RawMessage("4"))
	ctx := page.New(store)

	a, resA, err := c.Greet(ctx, "razaks", "razaks")
	require.NoError(t, err)
	b, resB, err := c.Greet(ctx, "mohammed", "mohammed")
	require.NoError(t, err)

	assert.Equal(t, 0, a)
	assert.False(t, resA.Received)
	assert.Equal(t, 4, b)
	assert.True(t, resB.Received)
	require.Len(t, ctx.Elements(), 2)
}

func TestArgsDeriveDistinctIDsWithoutKey(t *testing.T) {
	c := newGreeter(t)
	ctx := page.New(nil)

	_, _, err := c.Greet(ctx, "razaks", "")
	require.NoError(t, err)
	_, _, err = c.Greet(ctx, "mohammed", "")
	require.NoError(t, err)

	idA := ctx.Elements()[0].(*page.Component).ID
	idB := ctx.Elements()[1].(*page.Component).ID
	assert.NotEqual(t, idA, idB)
}

func TestDuplicateCallRejected(t *testing.T) {
	c := newGreeter(t)
	ctx := page.New(nil)

	_, _, err := c.Greet(ctx, "razaks", "")
	require.NoError(t, err)
	_, _, err = c.Greet(ctx, "razaks", "")
	assert.ErrorIs(t, err, page.ErrDuplicateID)
}

func TestElementIDStable(t *testing.T) {
	c := newGreeter(t)
	args := map[string]any{"name": "razaks"}

	id1, err := c.ElementID(args, "")
	require.NoError(t, err)
	id2, err := c.ElementID(map[string]any{"name": "razaks"}, "")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	keyed, err := c.ElementID(args, "counter")
	require.NoError(t, err)
	assert.Equal(t, "component/streamlit_anywidget/counter", keyed)
}

func TestInvokeMalformedValue(t *testing.T) {
	c := newGreeter(t)
	store := page.NewMemoryStore()
	store.SetValue("component/streamlit_anywidget/k", json.RawMessage("{not json"))

	res, err := c.Invoke(page.New(store), nil, "k", 0)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Equal(t, 0, res.Value)
	assert.False(t, res.Received)
}

type readyStore struct {
	*page.MemoryStore
	ready map[string]bool
}

func (s readyStore) Ready(id string) bool { return s.ready[id] }

func TestInvokeReportsReadiness(t *testing.T) {
	c := newGreeter(t)
	store := readyStore{page.NewMemoryStore(), map[string]bool{"component/streamlit_anywidget/k": true}}

	res, err := c.Invoke(page.New(store), nil, "k", 0)
	require.NoError(t, err)
	assert.True(t, res.Ready)
	assert.False(t, res.Received, "ready without a value is still the default")
}

func TestInvokeRenderedArgs(t *testing.T) {
	c := newGreeter(t)
	ctx := page.New(nil)
	state := map[string]any{"value": 0}

	_, err := c.Invoke(ctx, func() map[string]any { return map[string]any{"widget_data": state} }, "counter", 0)
	require.NoError(t, err)
	state["value"] = 9

	el := ctx.Elements()[0].(*page.Component)
	args := el.Args()
	assert.Equal(t, map[string]any{"value": 9}, args["widget_data"])
	assert.Equal(t, 0, args["default"])
	assert.Equal(t, "component/streamlit_anywidget/counter", args["key"])
}

func TestResultInt(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int
	}{
		{"float", float64(3), 3},
		{"json number", json.Number("7"), 7},
		{"beyond float precision", json.Number("9007199254740993"), 9007199254740993},
		{"fraction is not truncated", 1.9, -1},
		{"json fraction", json.Number("1.9"), -1},
		{"overflow", json.Number("1e20"), -1},
		{"float overflow", 1e20, -1},
		{"string", "x", -1},
		{"null", nil, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Result{Value: tt.value}.Int(-1))
		})
	}
	assert.Nil(t, Result{Value: 1}.Map())
}

func TestInvokeKeepsNumberPrecision(t *testing.T) {
	c := newGreeter(t)
	store := page.NewMemoryStore()
	store.SetValue("component/streamlit_anywidget/big", json.RawMessage(`{"value":9007199254740993}`))
	store.SetValue("component/streamlit_anywidget/huge", json.RawMessage(`1e20`))
	ctx := page.New(store)

	res, err := c.Invoke(ctx, nil, "big", 0)
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), res.Map()["value"])

	v, res, err := c.Greet(ctx, "huge", "huge")
	require.NoError(t, err)
	assert.True(t, res.Received)
	assert.Equal(t, 0, v, "out of range numbers fall back to the default")
}

func TestInvokeRejectsTrailingData(t *testing.T) {
	c := newGreeter(t)
	store := page.NewMemoryStore()
	store.SetValue("component/streamlit_anywidget/k", json.RawMessage(`4 5`))

	_, err := c.Invoke(page.New(store), nil, "k", 0)
	assert.ErrorIs(t, err, ErrInvalidValue)
}
