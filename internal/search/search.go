// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries web and academic search APIs, exposes them as
// tools, and merges their results into one deduplicated, ranked list.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// DefaultMaxResults is the per-backend result count when none is given.
const DefaultMaxResults = 10

// Backend searches a single API. Each backend (arXiv, Semantic Scholar,
// OpenAlex, DuckDuckGo) implements this interface.
// Backend names.
const (
	ArxivName           = "arxiv"
	SemanticScholarName = "semantic_scholar"
	OpenAlexName        = "openalex"
	DuckDuckGoName      = "duckduckgo"
)

type Backend interface {
	Name() string
	Search(ctx context.Context, query Query) ([]types.SearchResult, error)
}

// Query holds the search parameters.
type Query struct {
	FreeText   string
	Author     string
	Keywords   []string
	YearFrom   int
	YearTo     int
	MaxResults int
}

// IsEmpty reports whether the query contains no searchable terms.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.FreeText) == "" && q.Author == "" && len(q.Keywords) == 0
}

func (q Query) limit() int {
	if q.MaxResults <= 0 {
		return DefaultMaxResults
	}
	return q.MaxResults
}

// terms combines the free-text, author, and keyword fields into one
// search string.
func (q Query) terms() string {
	var parts []string
	if q.FreeText != "" {
		parts = append(parts, q.FreeText)
	}
	if q.Author != "" {
		parts = append(parts, q.Author)
	}
	parts = append(parts, q.Keywords...)
	return strings.Join(parts, " ")
}

// Output holds raw results from a fan-out and the backends that failed.
type Output struct {
	Results       []types.SearchResult
	BackendErrors []string
}

// Search fans the query out to all backends concurrently. A failing
// backend is logged and skipped; Search fails only when every backend
// failed, returning their joined errors so transient causes stay visible
// to the retry policy.
func Search(ctx context.Context, query Query, backends []Backend, logger *zap.Logger) (Output, error) {
	if query.IsEmpty() {
		return Output{}, fmt.Errorf("query is empty: provide a research question or structured parameters")
	}
	if len(backends) == 0 {
		return Output{}, fmt.Errorf("no search backends configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	results := make([][]types.SearchResult, len(backends))
	errs := make([]error, len(backends))

	// Backend failures are collected, not propagated, so one slow API
	// never cancels the others.
	var g errgroup.Group
	for i, b := range backends {
		g.Go(func() error {
			results[i], errs[i] = b.Search(ctx, query)
			return nil
		})
	}
	g.Wait()

	var out Output
	var failed []error
	for i, b := range backends {
		if errs[i] != nil {
			logger.Warn("search backend failed", zap.String("backend", b.Name()), zap.Error(errs[i]))
			out.BackendErrors = append(out.BackendErrors, fmt.Sprintf("%s: %v", b.Name(), errs[i]))
			failed = append(failed, fmt.Errorf("%s: %w", b.Name(), errs[i]))
			continue
		}
		out.Results = append(out.Results, results[i]...)
	}

	if len(failed) == len(backends) {
		return out, errors.Join(failed...)
	}
	if out.Results == nil {
		out.Results = []types.SearchResult{}
	}
	return out, nil
}

// get issues a GET request and returns the response once its status has
// been checked. Transport errors and HTTP statuses are wrapped so the
// retry policy can classify them.
func get(ctx context.Context, client *http.Client, op, reqURL, userAgent string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", op, err)
	}
	if err := httputil.CheckStatus(resp, op); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}
