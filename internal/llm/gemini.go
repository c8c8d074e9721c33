// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// GeminiBackend calls Gemini through the genai SDK with function calling.
type GeminiBackend struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGeminiBackend creates a Gemini backend. baseURL overrides the API
// endpoint when set.
func NewGeminiBackend(ctx context.Context, apiKey, model, baseURL string, maxTokens int, httpClient *http.Client) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiBackend{client: client, model: model, maxTokens: maxTokens}, nil
}

// Name implements Model.
func (g *GeminiBackend) Name() string { return "gemini:" + g.model }

// contents converts messages to Gemini contents. Tool results become
// function responses in a user turn.
func (g *GeminiBackend) contents(msgs []Message) []*genai.Content {
	var out []*genai.Content
	add := func(role string, part *genai.Part) {
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, part)
			return
		}
		out = append(out, &genai.Content{Role: role, Parts: []*genai.Part{part}})
	}

	for _, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			if m.Content != "" {
				add("model", &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Arguments), &args)
				add("model", &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args}})
			}
		case RoleTool:
			var resp map[string]any
			if err := json.Unmarshal([]byte(m.Content), &resp); err != nil || resp == nil {
				resp = map[string]any{"result": m.Content}
			}
			add("user", &genai.Part{FunctionResponse: &genai.FunctionResponse{ID: m.ToolCallID, Name: m.Name, Response: resp}})
		default:
			add("user", &genai.Part{Text: m.Content})
		}
	}
	return out
}

// Complete implements Model.
func (g *GeminiBackend) Complete(ctx context.Context, req Request) (Response, error) {
	cfg := &genai.GenerateContentConfig{}
	tokens := g.maxTokens
	if req.MaxTokens > 0 {
		tokens = req.MaxTokens
	}
	if tokens > 0 {
		cfg.MaxOutputTokens = int32(tokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Name,
				Description:          t.Description,
				ParametersJsonSchema: t.Parameters,
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, g.contents(req.Messages), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return Response{}, &StatusError{Provider: "gemini", Code: apiErr.Code, Body: apiErr.Message}
		}
		return Response{}, fmt.Errorf("calling Gemini API: %w", err)
	}

	out := Response{Text: strings.TrimSpace(resp.Text())}
	if len(resp.Candidates) > 0 {
		out.StopReason = string(resp.Candidates[0].FinishReason)
	}
	for _, fc := range resp.FunctionCalls() {
		args, err := json.Marshal(fc.Args)
		if err != nil {
			return Response{}, fmt.Errorf("encoding Gemini function args: %w", err)
		}
		if fc.Args == nil {
			args = []byte("{}")
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: fc.ID, Name: fc.Name, Arguments: string(args)})
	}
	return out, nil
}
