// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by every adapter that makes
// network requests.
type HTTPConfig struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-assistant/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// ProxyURL routes outbound requests through an HTTP(S) proxy when set.
	ProxyURL string `json:"proxy_url,omitempty" yaml:"proxy_url,omitempty" mapstructure:"proxy_url"`
}

// ModelConfig selects and authenticates the inference backend.
type ModelConfig struct {
	// Provider is one of "deepseek", "openai", "anthropic", "gemini".
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Name is the model identifier (e.g. "deepseek-chat").
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// BaseURL overrides the provider endpoint (OpenAI-compatible providers).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxTokens caps the completion length.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ZoteroConfig holds reference-manager credentials.
type ZoteroConfig struct {
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
	UserID string `json:"user_id,omitempty" yaml:"user_id,omitempty" mapstructure:"user_id"`
}

// Configured reports whether both credentials are present.
func (z ZoteroConfig) Configured() bool {
	return z.APIKey != "" && z.UserID != ""
}

// SearchConfig holds settings for the search adapters.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// MaxResults is the default number of results per adapter (default 10).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty" mapstructure:"semantic_scholar_key"`

	// OpenAlexEmail is sent as mailto for the OpenAlex polite pool.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty" mapstructure:"openalex_email"`
}

// ConversionBackend identifies the PDF text extraction tool.
type ConversionBackend string

const (
	BackendPdftotext  ConversionBackend = "pdftotext"
	BackendMarkitdown ConversionBackend = "markitdown"
)

// ConversionConfig holds settings for PDF text extraction.
type ConversionConfig struct {
	// Backend selects the conversion tool: pdftotext or markitdown.
	Backend ConversionBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Runtime pins the markitdown container engine (docker or podman);
	// empty tries docker, then podman.
	Runtime string `json:"runtime,omitempty" yaml:"runtime,omitempty" mapstructure:"runtime"`
}

// RetryConfig holds the retry/fallback policy settings.
type RetryConfig struct {
	// MaxAttempts is the number of attempts per adapter (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// BaseDelay is the first backoff delay; it doubles per attempt.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay" mapstructure:"base_delay"`

	// MaxDelay caps a single backoff delay.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay" mapstructure:"max_delay"`
}

// ConversationConfig bounds the conversation loop.
type ConversationConfig struct {
	// MaxTurns is the hard ceiling on user turns per session (default 10).
	MaxTurns int `json:"max_turns" yaml:"max_turns" mapstructure:"max_turns"`

	// MaxReplans bounds tool-call rounds per user turn (default 6).
	MaxReplans int `json:"max_replans" yaml:"max_replans" mapstructure:"max_replans"`

	// MemoryWindow is the maximum number of turns kept in context (default 40).
	MemoryWindow int `json:"memory_window" yaml:"memory_window" mapstructure:"memory_window"`

	// MaxParallel bounds concurrently executing tool calls (default 4).
	MaxParallel int `json:"max_parallel" yaml:"max_parallel" mapstructure:"max_parallel"`

	// TurnTimeout cancels a user turn that runs longer; 0 disables it.
	TurnTimeout time.Duration `json:"turn_timeout" yaml:"turn_timeout" mapstructure:"turn_timeout"`

	// Evaluate has a reviewer pass score each answer before it is shown
	// and send the model back with suggestions while it falls short.
	Evaluate bool `json:"evaluate" yaml:"evaluate" mapstructure:"evaluate"`

	// MinScore is the reviewer score (0-100) that accepts an answer (default 90).
	MinScore int `json:"min_score" yaml:"min_score" mapstructure:"min_score"`

	// MaxEvaluations caps reviewed drafts per user turn (default 5).
	MaxEvaluations int `json:"max_evaluations" yaml:"max_evaluations" mapstructure:"max_evaluations"`
}

// Config is the complete assistant configuration threaded into the
// controller and adapters at construction time.
type Config struct {
	Model        ModelConfig        `json:"model" yaml:"model" mapstructure:"model"`
	Zotero       ZoteroConfig       `json:"zotero" yaml:"zotero" mapstructure:"zotero"`
	HTTP         HTTPConfig         `json:"http" yaml:"http" mapstructure:"http"`
	Search       SearchConfig       `json:"search" yaml:"search" mapstructure:"search"`
	Convert      ConversionConfig   `json:"convert" yaml:"convert" mapstructure:"convert"`
	Retry        RetryConfig        `json:"retry" yaml:"retry" mapstructure:"retry"`
	Conversation ConversationConfig `json:"conversation" yaml:"conversation" mapstructure:"conversation"`

	// DefaultQuery is used when the CLI gets no query argument and no
	// interactive input is wanted.
	DefaultQuery string `json:"default_query,omitempty" yaml:"default_query,omitempty" mapstructure:"default_query"`

	// DownloadDir is the folder (inside the task folder) PDFs are saved to.
	DownloadDir string `json:"download_dir" yaml:"download_dir" mapstructure:"download_dir"`

	// ResultsDir is the parent of per-session task folders.
	ResultsDir string `json:"results_dir" yaml:"results_dir" mapstructure:"results_dir"`

	// DefaultCollection is the reference-manager collection used when the
	// model does not name one.
	DefaultCollection string `json:"default_collection,omitempty" yaml:"default_collection,omitempty" mapstructure:"default_collection"`

	// HistoryPath is the sqlite transcript database; empty disables it.
	HistoryPath string `json:"history_path,omitempty" yaml:"history_path,omitempty" mapstructure:"history_path"`
}
