// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/assistant"
	"github.com/pdiddy/research-assistant/internal/conversation"
)

func init() {
	f := rootCmd.Flags()
	f.String("provider", "", "model provider: deepseek, openai, anthropic, or gemini")
	f.String("model", "", "model name (default depends on the provider)")
	f.String("collection", "", "Zotero collection for filed papers; requires Zotero credentials")
	f.Int("max-turns", 0, "maximum user turns per session (default 10)")
	f.Int("max-replans", 0, "maximum tool-call rounds per user turn (default 6)")
	f.Int("max-parallel", 0, "maximum concurrently running tool calls (default 4)")
	f.Duration("turn-timeout", 0, "cancel a user turn that runs longer than this")
	f.String("pdf-backend", "", "PDF text extraction: pdftotext or markitdown")
	f.Bool("evaluate", false, "have a reviewer score each answer and send weak ones back for revision")
	f.Int("min-score", 0, "reviewer score that accepts an answer (default 90)")
	f.Bool("once", false, "answer the query and exit without asking for follow-ups")
	f.BoolP("quiet", "q", false, "do not print tool progress")

	bind(f, "model.provider", "provider")
	bind(f, "model.name", "model")
	bind(f, "default_collection", "collection")
	bind(f, "conversation.max_turns", "max-turns")
	bind(f, "conversation.max_replans", "max-replans")
	bind(f, "conversation.max_parallel", "max-parallel")
	bind(f, "conversation.turn_timeout", "turn-timeout")
	bind(f, "convert.backend", "pdf-backend")
	bind(f, "conversation.evaluate", "evaluate")
	bind(f, "conversation.min_score", "min-score")
}

func runChat(cmd *cobra.Command, args []string) error {
	once, _ := cmd.Flags().GetBool("once")
	quiet, _ := cmd.Flags().GetBool("quiet")

	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		query = cfg.DefaultQuery
	}
	if query == "" && once {
		return fmt.Errorf("--once needs a query argument or default_query")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := assistant.Options{
		Config:        cfg,
		Query:         query,
		RequireZotero: cmd.Flags().Changed("collection"),
		Output:        &conversation.WriterOutput{W: cmd.OutOrStdout(), Quiet: quiet},
		Logger:        logger,
	}
	if !once {
		opts.Input = conversation.NewLineInput(cmd.InOrStdin(), cmd.OutOrStdout())
	}

	a := assistant.Build(ctx, opts)
	defer a.Close()
	for _, n := range a.Notices {
		fmt.Fprintf(cmd.ErrOrStderr(), "note: %s\n", n)
	}

	out, err := a.Run(ctx, query)
	logger.Info("session finished",
		zap.String("session", a.SessionID),
		zap.Stringer("state", out.State),
		zap.Int("user_turns", out.UserTurns))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted")
		}
		return err
	}
	if out.State == conversation.Aborted {
		return fmt.Errorf("session aborted")
	}
	if a.TaskFolder != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Files saved in %s\n", a.TaskFolder)
	}
	return nil
}
