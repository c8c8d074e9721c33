// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/pkg/types"
)

var searchTool = ToolDef{
	Name:        "search_arxiv",
	Description: "Search arXiv.",
	Parameters: map[string]any{
		"type":       "object",
		"properties": map[string]any{"query": map[string]any{"type": "string"}},
		"required":   []string{"query"},
	},
}

func conversation() Request {
	return Request{
		System: "You are a research assistant.",
		Messages: []Message{
			{Role: RoleUser, Content: "find papers on diffusion"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{
				{ID: "call_1", Name: "search_arxiv", Arguments: `{"query":"diffusion"}`},
				{ID: "call_2", Name: "search_web", Arguments: `{"query":"diffusion"}`},
			}},
			{Role: RoleTool, ToolCallID: "call_1", Name: "search_arxiv", Content: `{"count":2}`},
			{Role: RoleTool, ToolCallID: "call_2", Name: "search_web", Content: `{"count":0}`},
		},
		Tools: []ToolDef{searchTool},
	}
}

func TestOpenAIBackendRoundTrip(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"choices":[{"finish_reason":"tool_calls","message":{"role":"assistant","content":null,
			"tool_calls":[{"id":"call_9","type":"function","function":{"name":"search_arxiv","arguments":"{\"query\":\"ddpm\"}"}}]}}]}`)
	}))
	defer ts.Close()

	m, err := NewModel(context.Background(), types.ModelConfig{Provider: "deepseek", APIKey: "sk-test", BaseURL: ts.URL + "/"}, ts.Client())
	require.NoError(t, err)
	assert.Equal(t, "deepseek:deepseek-chat", m.Name())

	resp, err := m.Complete(context.Background(), conversation())
	require.NoError(t, err)

	assert.Equal(t, []ToolCall{{ID: "call_9", Name: "search_arxiv", Arguments: `{"query":"ddpm"}`}}, resp.ToolCalls)
	assert.Equal(t, "tool_calls", resp.StopReason)

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 5)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assistant := msgs[2].(map[string]any)
	assert.Nil(t, assistant["content"])
	assert.Len(t, assistant["tool_calls"], 2)
	assert.Equal(t, "call_1", msgs[3].(map[string]any)["tool_call_id"])
	tools := got["tools"].([]any)
	assert.Equal(t, "function", tools[0].(map[string]any)["type"])
}

func TestOpenAIBackendStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"slow down"}`)
	}))
	defer ts.Close()

	b := &OpenAIBackend{Provider: "openai", BaseURL: ts.URL, APIKey: "k", Model: "m", Client: ts.Client()}
	_, err := b.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode())
	assert.Contains(t, se.Error(), "slow down")
}

func TestOpenAIBackendMissingKey(t *testing.T) {
	b := &OpenAIBackend{Provider: "deepseek", Client: http.DefaultClient}
	_, err := b.Complete(context.Background(), Request{})
	require.Error(t, err)
}

func TestClaudeBuildRequestFoldsToolResults(t *testing.T) {
	c := &ClaudeBackend{Model: "claude-test", MaxTokens: 100}

	req := c.buildRequest(conversation())

	require.Len(t, req.Messages, 3)
	assert.Equal(t, "You are a research assistant.", req.System)
	assert.Equal(t, "assistant", req.Messages[1].Role)
	assert.Equal(t, "tool_use", req.Messages[1].Content[0].Type)
	assert.JSONEq(t, `{"query":"diffusion"}`, string(req.Messages[1].Content[0].Input))
	results := req.Messages[2]
	assert.Equal(t, "user", results.Role)
	require.Len(t, results.Content, 2)
	assert.Equal(t, "tool_result", results.Content[1].Type)
	assert.Equal(t, "call_2", results.Content[1].ToolUseID)
	assert.Equal(t, "search_arxiv", req.Tools[0].Name)
}

func TestClaudeBackendParsesToolUse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		fmt.Fprint(w, `{"stop_reason":"tool_use","content":[
			{"type":"text","text":"Searching."},
			{"type":"tool_use","id":"toolu_1","name":"search_arxiv","input":{"query":"ddpm"}}]}`)
	}))
	defer ts.Close()
	orig := claudeAPIURL
	claudeAPIURL = ts.URL
	defer func() { claudeAPIURL = orig }()

	c := &ClaudeBackend{APIKey: "key", Model: "claude-test", MaxTokens: 100, Client: ts.Client()}
	resp, err := c.Complete(context.Background(), conversation())

	require.NoError(t, err)
	assert.Equal(t, "Searching.", resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "toolu_1", resp.ToolCalls[0].ID)
	assert.JSONEq(t, `{"query":"ddpm"}`, resp.ToolCalls[0].Arguments)
}

func TestGeminiBackendFunctionCall(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"finishReason":"STOP","content":{"role":"model","parts":[
			{"functionCall":{"name":"search_arxiv","args":{"query":"ddpm"}}}]}}]}`)
	}))
	defer ts.Close()

	m, err := NewModel(context.Background(), types.ModelConfig{Provider: "gemini", APIKey: "g", BaseURL: ts.URL}, ts.Client())
	require.NoError(t, err)

	resp, err := m.Complete(context.Background(), conversation())

	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "search_arxiv", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"ddpm"}`, resp.ToolCalls[0].Arguments)
}

func TestGeminiContents(t *testing.T) {
	g := &GeminiBackend{}

	contents := g.contents(conversation().Messages)

	require.Len(t, contents, 3)
	assert.Equal(t, "model", contents[1].Role)
	assert.Len(t, contents[1].Parts, 2)
	results := contents[2]
	require.Len(t, results.Parts, 2)
	assert.Equal(t, "search_arxiv", results.Parts[0].FunctionResponse.Name)
	assert.Equal(t, float64(2), results.Parts[0].FunctionResponse.Response["count"])
}

func TestNewModelUnsupported(t *testing.T) {
	_, err := NewModel(context.Background(), types.ModelConfig{Provider: "llama"}, nil)

	var upe *UnsupportedProviderError
	require.ErrorAs(t, err, &upe)
	assert.Equal(t, "llama", upe.Provider)
}

func TestNewModelDefaults(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
	}{
		{"", "deepseek:deepseek-chat"},
		{"OpenAI", "openai:gpt-4o-mini"},
		{"anthropic", "anthropic:claude-sonnet-4-5"},
	}
	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			m, err := NewModel(context.Background(), types.ModelConfig{Provider: tt.provider, APIKey: "k"}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, m.Name())
		})
	}
}

func TestStatusErrorUnwrapsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("planning: %w", &StatusError{Provider: "openai", Code: 503})
	var se *StatusError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, 503, se.StatusCode())
}
