// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/internal/assistant"
	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Search scholarly sources directly, without the model",
	Long: `Search fans a query out to the selected backends (arXiv, Semantic
Scholar, OpenAlex, DuckDuckGo), merges duplicates across sources, and
prints the ranked results.

Use --save to keep the query and its results in a YAML file and --rerun
to run a saved query again.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringSlice("backends", nil, "backends to query (default arxiv,semantic_scholar,openalex)")
	searchCmd.Flags().Int("max-results", 0, "results per backend (default search.max_results)")
	searchCmd.Flags().Int("year-from", 0, "only papers published in or after this year")
	searchCmd.Flags().Int("year-to", 0, "only papers published in or before this year")
	searchCmd.Flags().StringP("format", "f", "table", "output format: table, json, yaml, or csl")
	searchCmd.Flags().String("save", "", "write the query and merged results to this YAML file")
	searchCmd.Flags().String("rerun", "", "run the query stored in this YAML file")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query, err := searchQuery(cmd, args)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	if _, ok := formatters[format]; !ok {
		return fmt.Errorf("unsupported format %q: use table, json, yaml, or csl", format)
	}

	client, err := httputil.NewClient(cfg.Search.HTTPConfig)
	if err != nil {
		return err
	}
	names, _ := cmd.Flags().GetStringSlice("backends")
	backends, err := assistant.SearchBackends(cfg, client, names...)
	if err != nil {
		return err
	}

	out, err := search.Search(cmd.Context(), query, backends, logger)
	if err != nil {
		return err
	}
	items := search.Merge(out.Results)
	for _, e := range out.BackendErrors {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", e)
	}
	logger.Info("search finished",
		zap.Int("raw", len(out.Results)),
		zap.Int("merged", len(items)))

	if path, _ := cmd.Flags().GetString("save"); path != "" {
		if err := search.WriteQueryFile(path, query, backendNames(backends), len(out.Results), items, out.BackendErrors); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved to %s\n", path)
	}
	return formatters[format](items, cmd.OutOrStdout())
}

// searchQuery builds the query from a saved file or from args and flags.
// Flags override values read from the file.
func searchQuery(cmd *cobra.Command, args []string) (search.Query, error) {
	var q search.Query
	if path, _ := cmd.Flags().GetString("rerun"); path != "" {
		qf, err := search.ReadQueryFile(path)
		if err != nil {
			return q, err
		}
		q = qf.Query.ToQuery()
	}
	if text := strings.TrimSpace(strings.Join(args, " ")); text != "" {
		q.FreeText = text
	}
	if cmd.Flags().Changed("year-from") {
		q.YearFrom, _ = cmd.Flags().GetInt("year-from")
	}
	if cmd.Flags().Changed("year-to") {
		q.YearTo, _ = cmd.Flags().GetInt("year-to")
	}
	if cmd.Flags().Changed("max-results") {
		q.MaxResults, _ = cmd.Flags().GetInt("max-results")
	}
	if q.MaxResults <= 0 {
		q.MaxResults = cfg.Search.MaxResults
	}
	if q.IsEmpty() {
		return q, fmt.Errorf("provide a query or --rerun with a saved query file")
	}
	return q, nil
}

var formatters = map[string]func([]types.ResearchItem, io.Writer) error{
	"table": search.FormatTable,
	"json":  search.FormatJSON,
	"csl":   search.FormatCSL,
	"yaml":  formatYAML,
}

func formatYAML(items []types.ResearchItem, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encoding YAML: %w", err)
	}
	return enc.Close()
}

func backendNames(backends []search.Backend) []string {
	names := make([]string, len(backends))
	for i, b := range backends {
		names[i] = b.Name()
	}
	return names
}

// httpClient is shared by subcommands that talk to one service.
func httpClient() (*http.Client, error) {
	return httputil.NewClient(cfg.HTTP)
}
