// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-assistant CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/research-assistant/internal/config"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	v      = viper.New()
	cfg    types.Config
	logger = zap.NewNop()
)

// rootCmd chats with the assistant. Subcommands expose the search and
// reference-manager plumbing directly.
var rootCmd = &cobra.Command{
	Use:   "research-assistant [query...]",
	Short: "A conversational assistant for literature research",
	Long: `research-assistant answers research questions by planning and running
tool calls: web, scholarly and arXiv search, page extraction, PDF download
and reading, Markdown notes, and Zotero filing.

With a query it answers it and then keeps asking for follow-ups. Without
one it starts from default_query, or prompts for a question. An empty
line, "exit" or "quit" ends the session.

Every session writes its files to a task folder under results_dir and its
transcript to the history database.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runChat,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./research-assistant.yaml or ~/.config/research-assistant/research-assistant.yaml)")
	pf.BoolP("verbose", "v", false, "log progress to stderr")
	pf.Bool("debug", false, "log debugging detail to stderr")
	pf.String("proxy", "", "HTTP(S) proxy URL for every outbound request")
	pf.String("results-dir", "", "parent folder of per-session task folders")
	pf.String("history", "", "transcript database path (empty string in config disables it)")

	bind(pf, "http.proxy_url", "proxy")
	bind(pf, "results_dir", "results-dir")
	bind(pf, "history_path", "history")
}

// bind ties a flag to a config key so the flag wins over every other source.
func bind(fs *pflag.FlagSet, key, flag string) {
	if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
		panic(fmt.Sprintf("binding --%s: %v", flag, err))
	}
}

// setup builds the logger and loads the configuration.
func setup(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	debug, _ := cmd.Flags().GetBool("debug")
	l, err := newLogger(verbose, debug)
	if err != nil {
		return err
	}
	logger = l

	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err = config.Load(v, config.Options{ConfigFile: cfgFile, Logger: logger})
	return err
}

// newLogger logs JSON to stderr: warnings by default, info with
// --verbose, everything with --debug.
func newLogger(verbose, debug bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	level := zapcore.WarnLevel
	switch {
	case debug:
		level = zapcore.DebugLevel
	case verbose:
		level = zapcore.InfoLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func main() {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
