// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/pkg/types"
)

type echoArgs struct {
	Query string
	Limit int
	Mode  string
}

func (echoArgs) ToolName() string { return "echo" }

type echoAdapter struct {
	calls int
	err   error
}

func (e *echoAdapter) Spec() ToolSpec {
	return ToolSpec{
		Name:   "echo",
		Result: ResultItems,
		Params: []Param{
			{Name: "query", Type: TypeString, Required: true},
			{Name: "limit", Type: TypeInteger, Default: 5, Min: 1, Max: 20},
			{Name: "mode", Type: TypeEnum, Choices: []string{"fast", "full"}, Default: "fast"},
			{Name: "link", Type: TypeURL},
			{Name: "dir", Type: TypePath},
			{Name: "verbose", Type: TypeBoolean},
			{Name: "tags", Type: TypeStringList},
			{Name: "papers", Type: TypePapers},
		},
		Bind: func(v Values) (Args, error) {
			return echoArgs{Query: v.String("query"), Limit: v.Int("limit"), Mode: v.String("mode")}, nil
		},
	}
}

func (e *echoAdapter) Execute(_ context.Context, args Args) (Output, error) {
	e.calls++
	if e.err != nil {
		return Output{}, e.err
	}
	a := args.(echoArgs)
	return Output{Payload: a.Query}, nil
}

func newTestRegistry(t *testing.T) (*Registry, *echoAdapter) {
	t.Helper()
	r := NewRegistry(nil)
	a := &echoAdapter{}
	require.NoError(t, r.Register(a))
	return r, a
}

func TestRegisterDuplicate(t *testing.T) {
	r, _ := newTestRegistry(t)
	err := r.Register(&echoAdapter{})

	var dup *DuplicateToolError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "echo", dup.Name)
	assert.Equal(t, []string{"echo"}, r.Names())
}

func TestValidateAppliesDefaults(t *testing.T) {
	r, _ := newTestRegistry(t)

	call, err := r.Validate(RawCall{ID: "c1", Name: "echo", Arguments: map[string]any{"query": "rl"}})
	require.NoError(t, err)

	assert.Equal(t, "c1", call.ID)
	assert.Equal(t, echoArgs{Query: "rl", Limit: 5, Mode: "fast"}, call.Args)
}

func TestValidateDecodedJSON(t *testing.T) {
	r, _ := newTestRegistry(t)

	var args map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"query": "transformers",
		"limit": 12,
		"mode": "full",
		"link": "https://arxiv.org/abs/1706.03762",
		"dir": "downloads/rl",
		"verbose": true,
		"tags": ["a", "b"],
		"papers": [{"title": "Attention", "year": 2017, "authors": ["Vaswani"]}]
	}`), &args))

	call, err := r.Validate(RawCall{Name: "echo", Arguments: args})
	require.NoError(t, err)

	assert.Equal(t, 12, call.Values.Int("limit"))
	assert.True(t, call.Values.Bool("verbose"))
	assert.Equal(t, []string{"a", "b"}, call.Values.Strings("tags"))
	assert.Equal(t, []types.PaperRef{{Title: "Attention", Year: 2017, Authors: []string{"Vaswani"}}}, call.Values.Papers("papers"))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		args  map[string]any
		param string
	}{
		{"missing required", map[string]any{}, "query"},
		{"empty required string", map[string]any{"query": "  "}, "query"},
		{"integer as string", map[string]any{"query": "q", "limit": "10"}, "limit"},
		{"fractional integer", map[string]any{"query": "q", "limit": 3.5}, "limit"},
		{"integer out of range", map[string]any{"query": "q", "limit": 99.0}, "limit"},
		{"enum outside choices", map[string]any{"query": "q", "mode": "slow"}, "mode"},
		{"relative URL", map[string]any{"query": "q", "link": "/abs/1"}, "link"},
		{"ftp URL", map[string]any{"query": "q", "link": "ftp://host/file"}, "link"},
		{"path escape", map[string]any{"query": "q", "dir": "../../etc"}, "dir"},
		{"boolean as string", map[string]any{"query": "q", "verbose": "yes"}, "verbose"},
		{"list element type", map[string]any{"query": "q", "tags": []any{"a", 1.0}}, "tags"},
		{"paper without title", map[string]any{"query": "q", "papers": []any{map[string]any{"url": "x"}}}, "papers"},
		{"paper unknown field", map[string]any{"query": "q", "papers": []any{map[string]any{"title": "t", "isbn": "1"}}}, "papers"},
		{"undeclared parameter", map[string]any{"query": "q", "page": 2.0}, "page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRegistry(t)
			_, err := r.Validate(RawCall{Name: "echo", Arguments: tt.args})

			var ave *ArgumentValidationError
			require.ErrorAs(t, err, &ave)
			assert.Equal(t, "echo", ave.Tool)
			assert.Equal(t, tt.param, ave.Param)
		})
	}
}

func TestValidateUnknownTool(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Validate(RawCall{Name: "nope"})

	var ave *ArgumentValidationError
	require.ErrorAs(t, err, &ave)
	assert.Equal(t, "unknown tool", ave.Reason)
}

func TestDispatch(t *testing.T) {
	r, a := newTestRegistry(t)
	call, err := r.Validate(RawCall{ID: "c1", Name: "echo", Arguments: map[string]any{"query": "rl"}})
	require.NoError(t, err)

	res, err := r.Dispatch(context.Background(), call)
	require.NoError(t, err)

	assert.True(t, res.OK)
	assert.Equal(t, "rl", res.Payload)
	assert.Equal(t, "c1", res.CallID)
	assert.NotNil(t, res.Items, "item tools always carry a list")
	assert.Equal(t, 1, a.calls)
}

func TestDispatchUnvalidatedCallNeverReachesAdapter(t *testing.T) {
	r, a := newTestRegistry(t)

	_, err := r.Dispatch(context.Background(), ToolCall{Name: "echo"})

	var ave *ArgumentValidationError
	require.ErrorAs(t, err, &ave)
	assert.Equal(t, 0, a.calls)
}

func TestDispatchReturnsAdapterError(t *testing.T) {
	r, a := newTestRegistry(t)
	a.err = Transient("query", errors.New("timeout"))
	call, err := r.Validate(RawCall{Name: "echo", Arguments: map[string]any{"query": "rl"}})
	require.NoError(t, err)

	res, err := r.Dispatch(context.Background(), call)

	var te *TransientAdapterError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "echo", te.Tool)
	assert.False(t, res.OK)
	assert.Equal(t, "echo: query: timeout", res.Error)
}

func TestDispatchNamesToolInAdapterValidationError(t *testing.T) {
	r, a := newTestRegistry(t)
	a.err = &ArgumentValidationError{Reason: `path "../x" is outside the task folder`}
	call, err := r.Validate(RawCall{Name: "echo", Arguments: map[string]any{"query": "rl"}})
	require.NoError(t, err)

	res, err := r.Dispatch(context.Background(), call)

	var ave *ArgumentValidationError
	require.ErrorAs(t, err, &ave)
	assert.Equal(t, "echo", ave.Tool)
	assert.Equal(t, `invalid call to echo: path "../x" is outside the task folder`, res.Error)
}

func TestSchema(t *testing.T) {
	r, _ := newTestRegistry(t)
	spec, ok := r.Lookup("echo")
	require.True(t, ok)

	s := Schema(spec)
	assert.Equal(t, []string{"query"}, s["required"])
	props := s["properties"].(map[string]any)
	assert.Equal(t, []string{"fast", "full"}, props["mode"].(map[string]any)["enum"])
	assert.Equal(t, "array", props["papers"].(map[string]any)["type"])
}
