// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assistant wires a research session together: it validates the
// configuration, registers the tools whose credentials and binaries are
// available, and hands the result to a conversation controller.
package assistant

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/acquire"
	"github.com/pdiddy/research-assistant/internal/container"
	"github.com/pdiddy/research-assistant/internal/conversation"
	"github.com/pdiddy/research-assistant/internal/convert"
	"github.com/pdiddy/research-assistant/internal/extract"
	"github.com/pdiddy/research-assistant/internal/history"
	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/internal/intent"
	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/notes"
	"github.com/pdiddy/research-assistant/internal/policy"
	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/internal/tools"
	"github.com/pdiddy/research-assistant/internal/zotero"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// ConfigurationError reports an unusable configuration found at startup.
type ConfigurationError = conversation.ConfigurationError

// maxFolderQuery bounds the query part of a task folder name.
const maxFolderQuery = 50

// Declared as vars so tests can simulate missing binaries.
var (
	lookPath      = exec.LookPath
	detectRuntime = container.Detect
)

// Options configures Build.
type Options struct {
	Config types.Config

	// Query is the initial question; it names the task folder.
	Query string

	// RequireZotero turns missing or rejected reference-manager
	// credentials into a ConfigurationError instead of a notice.
	RequireZotero bool

	Input  conversation.Input
	Output conversation.Output
	Logger *zap.Logger

	// Model and HTTPClient replace the configured ones when set.
	Model      llm.Model
	HTTPClient *http.Client

	Now func() time.Time
}

// Assistant is one wired research session.
type Assistant struct {
	SessionID  string
	TaskFolder string

	// Tools lists the registered tool names.
	Tools []string

	// Notices describe degraded capabilities; they are also given to the
	// model in the system prompt.
	Notices []string

	controller *conversation.Controller
	store      *history.Store
	modelName  string
	err        error
	logger     *zap.Logger
	now        func() time.Time
}

// Build assembles a session. It always returns an Assistant; a startup
// failure makes Run abort and is also reported by Err.
func Build(ctx context.Context, opts Options) *Assistant {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	a := &Assistant{
		SessionID: uuid.NewString(),
		logger:    logger.Named("assistant"),
		now:       now,
	}

	deps := conversation.Deps{Input: opts.Input, Output: opts.Output}
	if err := a.build(ctx, opts, &deps); err != nil {
		a.logger.Error("startup failed", zap.Error(err))
		a.err = err
		deps.StartupErr = err
	}

	cfg := opts.Config.Conversation
	a.controller = conversation.New(deps, conversation.Config{
		MaxTurns:     cfg.MaxTurns,
		MaxReplans:   cfg.MaxReplans,
		MemoryWindow: cfg.MemoryWindow,
		MaxParallel:  cfg.MaxParallel,
		TurnTimeout:  cfg.TurnTimeout,

		MinScore:       cfg.MinScore,
		MaxEvaluations: cfg.MaxEvaluations,

		Logger: logger,
		Now:    now,
	})
	return a
}

func (a *Assistant) build(ctx context.Context, opts Options, deps *conversation.Deps) error {
	cfg := opts.Config
	if err := Validate(cfg); err != nil {
		return err
	}

	client, searchClient := opts.HTTPClient, opts.HTTPClient
	if client == nil {
		var err error
		if client, err = httputil.NewClient(cfg.HTTP); err != nil {
			return &ConfigurationError{Option: "http.proxy_url", Reason: "unusable HTTP settings", Err: err}
		}
		if searchClient, err = httputil.NewClient(cfg.Search.HTTPConfig); err != nil {
			return &ConfigurationError{Option: "search.proxy_url", Reason: "unusable HTTP settings", Err: err}
		}
	}

	model := opts.Model
	if model == nil {
		var err error
		if model, err = newModel(ctx, cfg.Model, client); err != nil {
			return err
		}
	}
	a.modelName = model.Name()

	query := opts.Query
	if query == "" {
		query = cfg.DefaultQuery
	}
	a.TaskFolder = TaskFolder(cfg.ResultsDir, query, a.now())
	if err := os.MkdirAll(a.TaskFolder, 0o755); err != nil {
		return &ConfigurationError{Option: "results_dir", Reason: "cannot create task folder", Err: err}
	}

	reg := tools.NewRegistry(opts.Logger)
	collection, err := a.registerTools(ctx, reg, opts, client, searchClient)
	if err != nil {
		return err
	}
	a.Tools = reg.Names()

	planner, err := intent.New(model, reg, intent.Config{
		Prompt: intent.PromptData{
			TaskFolder:        a.TaskFolder,
			Date:              a.now().Format("2006-01-02"),
			DefaultCollection: collection,
			Notices:           a.Notices,
		},
		MaxAttempts: cfg.Retry.MaxAttempts,
		MaxTokens:   cfg.Model.MaxTokens,
		Logger:      opts.Logger,
	})
	if err != nil {
		return fmt.Errorf("building intent client: %w", err)
	}

	deps.Planner = planner
	deps.Tools = reg
	deps.Invoker = policy.New(reg, policy.Options{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
		Fallbacks:   policy.DefaultFallbacks,
		Logger:      opts.Logger,
	})
	if cfg.Conversation.Evaluate {
		deps.Evaluator = conversation.NewModelEvaluator(model, opts.Logger)
	}
	if rec := a.openHistory(ctx, cfg.HistoryPath, opts.Query); rec != nil {
		deps.Recorder = rec
	}

	a.logger.Info("session ready",
		zap.String("session", a.SessionID),
		zap.String("model", a.modelName),
		zap.String("task_folder", a.TaskFolder),
		zap.Strings("tools", a.Tools))
	return nil
}

// Validate rejects numeric options outside their usable range and
// unknown conversion backends.
func Validate(cfg types.Config) error {
	checks := []struct {
		option string
		bad    bool
		reason string
	}{
		{"conversation.max_turns", cfg.Conversation.MaxTurns < 1, "must be at least 1"},
		{"conversation.max_replans", cfg.Conversation.MaxReplans < 1, "must be at least 1"},
		{"conversation.memory_window", cfg.Conversation.MemoryWindow < 2, "must be at least 2"},
		{"conversation.max_parallel", cfg.Conversation.MaxParallel < 1, "must be at least 1"},
		{"conversation.turn_timeout", cfg.Conversation.TurnTimeout < 0, "must not be negative"},
		{"conversation.min_score", cfg.Conversation.MinScore < 0 || cfg.Conversation.MinScore > 100, "must be between 0 and 100"},
		{"conversation.max_evaluations", cfg.Conversation.MaxEvaluations < 0, "must not be negative"},
		{"retry.max_attempts", cfg.Retry.MaxAttempts < 1, "must be at least 1"},
		{"retry.base_delay", cfg.Retry.BaseDelay < 0, "must not be negative"},
		{"retry.max_delay", cfg.Retry.MaxDelay < cfg.Retry.BaseDelay, "must not be below retry.base_delay"},
		{"search.max_results", cfg.Search.MaxResults < 1, "must be at least 1"},
	}
	for _, c := range checks {
		if c.bad {
			return &ConfigurationError{Option: c.option, Reason: c.reason}
		}
	}
	switch cfg.Convert.Backend {
	case "", types.BackendPdftotext, types.BackendMarkitdown:
	default:
		return &ConfigurationError{Option: "convert.backend", Reason: fmt.Sprintf("unknown backend %q", cfg.Convert.Backend)}
	}
	return nil
}

func newModel(ctx context.Context, cfg types.ModelConfig, client *http.Client) (llm.Model, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "deepseek"
	}
	if llm.DefaultModelName(provider) == "" {
		return nil, &ConfigurationError{Option: "model.provider", Reason: "unsupported provider", Err: &llm.UnsupportedProviderError{Provider: provider}}
	}
	if cfg.APIKey == "" {
		return nil, &ConfigurationError{
			Option: "model.api_key",
			Reason: fmt.Sprintf("no API key for provider %s (set %s_API_KEY or model.api_key)", provider, strings.ToUpper(provider)),
		}
	}
	model, err := llm.NewModel(ctx, cfg, client)
	if err != nil {
		return nil, &ConfigurationError{Option: "model", Reason: "cannot create inference backend", Err: err}
	}
	return model, nil
}

// registerTools registers every usable tool and returns the default
// collection to advertise, empty when the reference manager is absent.
func (a *Assistant) registerTools(ctx context.Context, reg *tools.Registry, opts Options, client, searchClient *http.Client) (string, error) {
	cfg := opts.Config
	ua := httputil.UserAgent(cfg.HTTP)
	searchUA := httputil.UserAgent(cfg.Search.HTTPConfig)
	maxResults := cfg.Search.MaxResults

	reg.MustRegister(search.NewWebTool(&search.DuckDuckGoBackend{Client: searchClient, UserAgent: searchUA}, maxResults, opts.Logger))
	scholarly, err := SearchBackends(cfg, searchClient, search.SemanticScholarName, search.OpenAlexName)
	if err != nil {
		return "", err
	}
	reg.MustRegister(search.NewScholarTool(maxResults, opts.Logger, scholarly...))
	reg.MustRegister(search.NewPreprintTool(&search.ArxivBackend{Client: searchClient, UserAgent: searchUA}, maxResults, opts.Logger))

	reg.MustRegister(extract.NewTool(&extract.Extractor{Client: client, UserAgent: ua}, opts.Logger))
	reg.MustRegister(acquire.NewTool(&acquire.Fetcher{
		Client:    client,
		UserAgent: ua,
		Root:      a.TaskFolder,
		Email:     cfg.Search.OpenAlexEmail,
		Logger:    opts.Logger,
	}, cfg.DownloadDir, opts.Logger))

	conv, err := newConverter(ctx, cfg.Convert, opts.Logger)
	if err != nil {
		a.degrade("read_pdf is unavailable, so downloaded PDFs cannot be read; suggest text_from_url instead", err)
	} else {
		reg.MustRegister(convert.NewTool(&convert.Reader{Converter: conv, Root: a.TaskFolder, Logger: opts.Logger}, opts.Logger))
	}

	reg.MustRegister(notes.NewTool(notes.NewWriter(a.TaskFolder), opts.Logger))

	zc, err := ZoteroClient(ctx, cfg, client, opts.Logger)
	if err != nil {
		if opts.RequireZotero {
			return "", err
		}
		a.degrade("the zotero tool is unavailable; tell the user papers cannot be filed in the reference manager", err)
		return "", nil
	}
	reg.MustRegister(zotero.NewTool(zc, cfg.DefaultCollection, opts.Logger))
	return cfg.DefaultCollection, nil
}

func (a *Assistant) degrade(notice string, cause error) {
	a.logger.Warn("capability disabled", zap.String("notice", notice), zap.Error(cause))
	a.Notices = append(a.Notices, notice)
}

func newConverter(ctx context.Context, cfg types.ConversionConfig, logger *zap.Logger) (convert.Converter, error) {
	if cfg.Backend == types.BackendMarkitdown {
		rt, err := detectRuntime(ctx, cfg.Runtime, logger)
		if err != nil {
			return nil, err
		}
		return convert.NewMarkitdownConverter(ctx, rt)
	}
	conv := convert.NewPdftotextConverter("")
	if _, err := lookPath(conv.Bin); err != nil {
		return nil, fmt.Errorf("%s not found: %w", conv.Bin, err)
	}
	return conv, nil
}

// ZoteroClient returns a reference-manager client whose credentials have
// been checked against the service.
func ZoteroClient(ctx context.Context, cfg types.Config, client *http.Client, logger *zap.Logger) (*zotero.Client, error) {
	if !cfg.Zotero.Configured() {
		return nil, &ConfigurationError{Option: "zotero", Reason: "zotero.api_key and zotero.user_id are required"}
	}
	zc := zotero.NewClient(client, cfg.Zotero, httputil.UserAgent(cfg.HTTP), logger)
	if err := zc.Validate(ctx); err != nil {
		return nil, &ConfigurationError{Option: "zotero", Reason: "credentials rejected", Err: err}
	}
	return zc, nil
}

// SearchBackends builds the named search backends. No names selects the
// scholarly ones.
func SearchBackends(cfg types.Config, client *http.Client, names ...string) ([]search.Backend, error) {
	if len(names) == 0 {
		names = []string{search.ArxivName, search.SemanticScholarName, search.OpenAlexName}
	}
	ua := httputil.UserAgent(cfg.Search.HTTPConfig)
	var out []search.Backend
	for _, name := range names {
		switch strings.TrimSpace(name) {
		case search.ArxivName:
			out = append(out, &search.ArxivBackend{Client: client, UserAgent: ua})
		case search.SemanticScholarName:
			out = append(out, search.NewSemanticScholarBackend(client, ua, cfg.Search.SemanticScholarAPIKey))
		case search.OpenAlexName:
			out = append(out, &search.OpenAlexBackend{Client: client, UserAgent: ua, Email: cfg.Search.OpenAlexEmail})
		case search.DuckDuckGoName:
			out = append(out, &search.DuckDuckGoBackend{Client: client, UserAgent: ua})
		default:
			return nil, &ConfigurationError{Option: "backends", Reason: fmt.Sprintf("unknown search backend %q", name)}
		}
	}
	return out, nil
}

func (a *Assistant) openHistory(ctx context.Context, path, query string) *history.Recorder {
	if path == "" {
		return nil
	}
	store, err := history.Open(path)
	if err != nil {
		a.logger.Warn("transcript history disabled", zap.String("path", path), zap.Error(err))
		return nil
	}
	err = store.StartSession(ctx, history.Session{
		ID:         a.SessionID,
		Query:      query,
		TaskFolder: a.TaskFolder,
		Model:      a.modelName,
		StartedAt:  a.now(),
		State:      conversation.AwaitingUserInput.String(),
	})
	if err != nil {
		a.logger.Warn("transcript history disabled", zap.String("path", path), zap.Error(err))
		store.Close()
		return nil
	}
	a.store = store
	return store.Recorder(a.SessionID)
}

// Err returns the startup failure, if any.
func (a *Assistant) Err() error { return a.err }

// Run drives the conversation until it completes or aborts and records
// the final state in the transcript history.
func (a *Assistant) Run(ctx context.Context, query string) (conversation.Outcome, error) {
	out, err := a.controller.Run(ctx, query)
	if a.store != nil {
		if endErr := a.store.EndSession(context.WithoutCancel(ctx), a.SessionID, out.State.String(), out.UserTurns, a.now()); endErr != nil {
			a.logger.Warn("recording session end", zap.Error(endErr))
		}
	}
	return out, err
}

// Close releases the transcript store.
func (a *Assistant) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// TaskFolder names the per-session output folder:
// <resultsDir>/<YYYYMMDD_HHMMSS>_<query>, keeping at most 50 letters,
// digits, spaces, hyphens and underscores of the query with spaces
// replaced by underscores.
func TaskFolder(resultsDir, query string, now time.Time) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if n == maxFolderQuery {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
			n++
		}
	}
	safe := strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
	if safe == "" {
		safe = "session"
	}
	if resultsDir == "" {
		resultsDir = "results"
	}
	return filepath.Join(resultsDir, now.Format("20060102_150405")+"_"+safe)
}
