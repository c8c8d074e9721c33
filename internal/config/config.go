// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config assembles the assistant configuration from flags,
// environment, a YAML file, the legacy KEY=VALUE .config file, and the
// .secrets directory, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/secrets"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RESEARCH_ASSISTANT"

// Default file locations.
const (
	ConfigName = "research-assistant"
	LegacyFile = ".config"
)

// legacyKeys maps the KEY=VALUE names of the legacy .config file to
// configuration keys.
var legacyKeys = map[string]string{
	"PROXY_URL":                 "http.proxy_url",
	"DEEPSEEK_API_KEY":          "deepseek_api_key",
	"OPENAI_API_KEY":            "openai_api_key",
	"ANTHROPIC_API_KEY":         "anthropic_api_key",
	"GEMINI_API_KEY":            "gemini_api_key",
	"ZOTERO_API_KEY":            "zotero.api_key",
	"ZOTERO_USER_ID":            "zotero.user_id",
	"DEFAULT_QUERY":             "default_query",
	"DEFAULT_DOWNLOAD_DIR":      "download_dir",
	"DEFAULT_ZOTERO_COLLECTION": "default_collection",
	"MAX_TURNS":                 "conversation.max_turns",
	"MODEL_PROVIDER":            "model.provider",
	"MODEL_NAME":                "model.name",
}

// providerKeys are per-provider API keys consulted when model.api_key is
// not set. They also honor the provider's conventional variable name.
var providerKeys = map[string]string{
	"deepseek":  "DEEPSEEK_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// Options locate the configuration sources. Zero values use defaults.
type Options struct {
	// ConfigFile is an explicit YAML file; it must exist when set.
	ConfigFile string

	// ConfigPaths are searched for research-assistant.yaml.
	ConfigPaths []string

	LegacyFile string
	SecretsDir string

	Logger *zap.Logger
}

func (o *Options) setDefaults() {
	if o.ConfigPaths == nil {
		o.ConfigPaths = []string{"."}
		if home, err := os.UserHomeDir(); err == nil {
			o.ConfigPaths = append(o.ConfigPaths, filepath.Join(home, ".config", ConfigName))
		}
	}
	if o.LegacyFile == "" {
		o.LegacyFile = LegacyFile
	}
	if o.SecretsDir == "" {
		o.SecretsDir = secrets.DefaultDir
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// SetDefaults registers every key with its default. Keys must be known
// to viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"model.provider":   "deepseek",
		"model.name":       "",
		"model.base_url":   "",
		"model.api_key":    "",
		"model.max_tokens": 4096,

		"zotero.api_key": "",
		"zotero.user_id": "",

		"http.timeout":    60 * time.Second,
		"http.user_agent": "research-assistant/0.1",
		"http.proxy_url":  "",

		"search.timeout":              0,
		"search.user_agent":           "",
		"search.proxy_url":            "",
		"search.max_results":          10,
		"search.semantic_scholar_key": "",
		"search.openalex_email":       "",

		"convert.backend": string(types.BackendPdftotext),
		"convert.runtime": "",

		"retry.max_attempts": 3,
		"retry.base_delay":   time.Second,
		"retry.max_delay":    30 * time.Second,

		"conversation.max_turns":       10,
		"conversation.max_replans":     6,
		"conversation.memory_window":   40,
		"conversation.max_parallel":    4,
		"conversation.turn_timeout":    0,
		"conversation.evaluate":        false,
		"conversation.min_score":       90,
		"conversation.max_evaluations": 5,

		"default_query":      "",
		"download_dir":       "downloads",
		"results_dir":        "results",
		"default_collection": "",
		"history_path":       filepath.Join("results", "history.db"),
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for provider := range providerKeys {
		v.SetDefault(provider+"_api_key", "")
	}
}

// Load reads all sources into v and decodes the result. Flags must be
// bound to v before Load is called.
func Load(v *viper.Viper, opts Options) (types.Config, error) {
	opts.setDefaults()
	log := opts.Logger.Named("config")

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for provider, env := range providerKeys {
		if err := v.BindEnv(provider+"_api_key", EnvPrefix+"_"+env, env); err != nil {
			return types.Config{}, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	// Lowest file layer first; each merge overrides the previous one.
	sec, err := secrets.Load(opts.SecretsDir, log)
	if err != nil {
		return types.Config{}, err
	}
	if len(sec) > 0 {
		log.Info("loaded secrets", zap.Strings("names", secrets.Names(sec)))
	}
	if err := v.MergeConfigMap(nested(sec, secrets.ConfigKeys)); err != nil {
		return types.Config{}, fmt.Errorf("merging secrets: %w", err)
	}

	legacy, err := readLegacy(opts.LegacyFile)
	if err != nil {
		return types.Config{}, err
	}
	if err := v.MergeConfigMap(nested(legacy, legacyKeys)); err != nil {
		return types.Config{}, fmt.Errorf("merging %s: %w", opts.LegacyFile, err)
	}

	if err := mergeYAML(v, opts); err != nil {
		return types.Config{}, err
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Info("using config file", zap.String("path", used))
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	cfg.Model.Provider = strings.ToLower(strings.TrimSpace(cfg.Model.Provider))
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = v.GetString(cfg.Model.Provider + "_api_key")
	}
	inheritHTTP(&cfg.Search.HTTPConfig, cfg.HTTP)
	return cfg, nil
}

// readLegacy parses the KEY=VALUE file. A missing file is empty.
func readLegacy(path string) (map[string]string, error) {
	m, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return m, nil
}

func mergeYAML(v *viper.Viper, opts Options) error {
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", opts.ConfigFile, err)
		}
		return nil
	}

	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	for _, p := range opts.ConfigPaths {
		v.AddConfigPath(p)
	}
	err := v.MergeInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

// nested turns flat source values into the nested map viper merges,
// keeping only names listed in keys.
func nested(src map[string]string, keys map[string]string) map[string]any {
	out := make(map[string]any)
	for name, val := range src {
		key, ok := keys[name]
		if !ok || val == "" {
			continue
		}
		parts := strings.Split(key, ".")
		m := out
		for _, p := range parts[:len(parts)-1] {
			child, ok := m[p].(map[string]any)
			if !ok {
				child = make(map[string]any)
				m[p] = child
			}
			m = child
		}
		m[parts[len(parts)-1]] = val
	}
	return out
}

// inheritHTTP fills unset search HTTP settings from the shared ones.
func inheritHTTP(dst *types.HTTPConfig, shared types.HTTPConfig) {
	if dst.Timeout <= 0 {
		dst.Timeout = shared.Timeout
	}
	if dst.UserAgent == "" {
		dst.UserAgent = shared.UserAgent
	}
	if dst.ProxyURL == "" {
		dst.ProxyURL = shared.ProxyURL
	}
}
