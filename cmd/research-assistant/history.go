// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/history"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const timeLayout = "2006-01-02 15:04"

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "List past sessions or print one transcript",
	Long: `History reads the transcript database. Without arguments it lists
sessions, newest first. With a session ID it prints that transcript as
text, YAML, or JSON. --search finds turns containing a phrase.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("search", "", "find turns containing this text")
	historyCmd.Flags().Int("limit", 20, "maximum sessions or matches to list (0 for all)")
	historyCmd.Flags().StringP("format", "f", "text", "transcript format: text, yaml, or json")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if cfg.HistoryPath == "" {
		return fmt.Errorf("history is disabled: history_path is empty")
	}
	if _, err := os.Stat(cfg.HistoryPath); err != nil {
		return fmt.Errorf("no history at %s: %w", cfg.HistoryPath, err)
	}
	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")
	w := cmd.OutOrStdout()

	if text, _ := cmd.Flags().GetString("search"); text != "" {
		matches, err := store.Search(ctx, text, limit)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Fprintln(w, "No matches.")
			return nil
		}
		for _, m := range matches {
			fmt.Fprintf(w, "%s #%d %-9s %s\n", m.SessionID, m.Seq, m.Role, m.Snippet)
		}
		return nil
	}

	if len(args) == 1 {
		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "yaml":
			return store.ExportYAML(ctx, args[0], w)
		case "json":
			return store.ExportJSON(ctx, args[0], w)
		case "text", "":
			tr, err := store.Transcript(ctx, args[0])
			if err != nil {
				return err
			}
			printTranscript(w, tr)
			return nil
		default:
			return fmt.Errorf("unsupported format %q: use text, yaml, or json", format)
		}
	}

	sessions, err := store.Sessions(ctx, limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}
	fmt.Fprintf(w, "%-36s  %-16s  %-10s  %-5s  %s\n", "Session", "Started", "State", "Turns", "Query")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, s := range sessions {
		fmt.Fprintf(w, "%-36s  %-16s  %-10s  %-5d  %s\n",
			s.ID, s.StartedAt.Local().Format(timeLayout), s.State, s.UserTurns, clip(s.Query, 40))
	}
	return nil
}

func printTranscript(w io.Writer, tr history.Transcript) {
	s := tr.Session
	fmt.Fprintf(w, "Session %s (%s)\nQuery:   %s\nModel:   %s\nFolder:  %s\n\n",
		s.ID, s.State, s.Query, s.Model, s.TaskFolder)
	for _, t := range tr.Turns {
		switch t.Role {
		case types.RoleTool:
			mark := "ok"
			if t.Failed {
				mark = "failed"
			}
			fmt.Fprintf(w, "[tool %s %s] %s\n", t.Tool, mark, clip(t.Content, 200))
		case types.RoleAssistant:
			for _, c := range t.Calls {
				fmt.Fprintf(w, "[call %s] %s %s\n", c.ID, c.Tool, c.Arguments)
			}
			if t.Content != "" {
				fmt.Fprintf(w, "[assistant]\n%s\n", t.Content)
			}
		default:
			fmt.Fprintf(w, "[%s] %s\n", t.Role, t.Content)
		}
	}
}

// clip shortens s to n runes on one line.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
