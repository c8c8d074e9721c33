// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides the inference backends the assistant plans with.
// Every backend speaks the same provider-neutral Request and Response,
// including native tool calling.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Arguments is the raw JSON arguments object as the model produced it.
	Arguments string `json:"arguments"`
}

// Message is one conversation message. Assistant messages may carry tool
// calls; tool messages answer exactly one call.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolDef declares a tool to the model. Parameters is a JSON Schema object.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is a provider-neutral completion request.
type Request struct {
	System    string
	Messages  []Message
	Tools     []ToolDef
	MaxTokens int
}

// Response is a provider-neutral completion.
type Response struct {
	Text      string
	ToolCalls []ToolCall

	// StopReason is the provider's finish reason, for logging.
	StopReason string
}

// Model is an inference backend.
type Model interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}

// StatusError reports a non-success HTTP status from an inference service.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s returned HTTP %d", e.Provider, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// StatusCode returns the HTTP status.
func (e *StatusError) StatusCode() int { return e.Code }

// UnsupportedProviderError is returned by NewModel for unknown providers.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported model provider %q (want deepseek, openai, anthropic, or gemini)", e.Provider)
}

const defaultMaxTokens = 4096

// Provider defaults.
var (
	deepseekBaseURL = "https://api.deepseek.com/v1"
	openaiBaseURL   = "https://api.openai.com/v1"
)

// DefaultModelName returns the model used when none is configured.
func DefaultModelName(provider string) string {
	switch strings.ToLower(provider) {
	case "deepseek", "":
		return "deepseek-chat"
	case "openai":
		return "gpt-4o-mini"
	case "anthropic":
		return "claude-sonnet-4-5"
	case "gemini":
		return "gemini-2.5-flash"
	}
	return ""
}

// NewModel builds the backend named by cfg.Provider.
func NewModel(ctx context.Context, cfg types.ModelConfig, client *http.Client) (Model, error) {
	if client == nil {
		client = http.DefaultClient
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "deepseek"
	}
	name := cfg.Name
	if name == "" {
		name = DefaultModelName(provider)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	switch provider {
	case "deepseek", "openai":
		base := cfg.BaseURL
		if base == "" {
			base = deepseekBaseURL
			if provider == "openai" {
				base = openaiBaseURL
			}
		}
		return &OpenAIBackend{
			Provider:  provider,
			BaseURL:   strings.TrimRight(base, "/"),
			APIKey:    cfg.APIKey,
			Model:     name,
			MaxTokens: maxTokens,
			Client:    client,
		}, nil
	case "anthropic":
		return &ClaudeBackend{APIKey: cfg.APIKey, Model: name, MaxTokens: maxTokens, Client: client}, nil
	case "gemini":
		return NewGeminiBackend(ctx, cfg.APIKey, name, cfg.BaseURL, maxTokens, client)
	}
	return nil, &UnsupportedProviderError{Provider: cfg.Provider}
}
