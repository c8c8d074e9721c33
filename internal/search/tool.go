// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/tools"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Tool names of the search adapters.
const (
	ToolWeb     = "search_web"
	ToolScholar = "search_scholar"
	ToolArxiv   = "search_arxiv"
)

const maxResultsCap = 50

// QueryArgs are the bound arguments of every search tool.
type QueryArgs struct {
	Tool       string
	Query      string
	MaxResults int
	YearFrom   int
	YearTo     int
}

// ToolName implements tools.Args.
func (a QueryArgs) ToolName() string { return a.Tool }

// Adapter exposes one or more backends as a search tool. With several
// backends the query fans out and partial failures are tolerated.
type Adapter struct {
	name        string
	description string
	backends    []Backend
	defaultMax  int
	logger      *zap.Logger
}

// NewWebTool returns the web-search adapter.
func NewWebTool(b Backend, defaultMax int, logger *zap.Logger) *Adapter {
	return newAdapter(ToolWeb,
		"Search the open web. Use for news, blog posts, documentation, and anything that is not a paper.",
		defaultMax, logger, b)
}

// NewScholarTool returns the scholarly-search adapter over the given
// backends (Semantic Scholar and OpenAlex in production).
func NewScholarTool(defaultMax int, logger *zap.Logger, backends ...Backend) *Adapter {
	return newAdapter(ToolScholar,
		"Search peer-reviewed and indexed scholarly literature. Results carry DOIs and open-access PDF links when known.",
		defaultMax, logger, backends...)
}

// NewPreprintTool returns the preprint-search adapter.
func NewPreprintTool(b Backend, defaultMax int, logger *zap.Logger) *Adapter {
	return newAdapter(ToolArxiv,
		"Search arXiv preprints. Every result has a direct PDF link.",
		defaultMax, logger, b)
}

func newAdapter(name, description string, defaultMax int, logger *zap.Logger, backends ...Backend) *Adapter {
	if defaultMax <= 0 || defaultMax > maxResultsCap {
		defaultMax = DefaultMaxResults
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		name:        name,
		description: description,
		backends:    backends,
		defaultMax:  defaultMax,
		logger:      logger.Named(name),
	}
}

// Spec implements tools.Adapter.
func (a *Adapter) Spec() tools.ToolSpec {
	params := []tools.Param{
		{Name: "query", Type: tools.TypeString, Required: true, Description: "Search terms."},
		{Name: "max_results", Type: tools.TypeInteger, Default: a.defaultMax, Min: 1, Max: maxResultsCap,
			Description: "Maximum number of results."},
	}
	if a.name != ToolWeb {
		params = append(params,
			tools.Param{Name: "year_from", Type: tools.TypeInteger, Min: 1900, Max: 2100,
				Description: "Only papers published in or after this year."},
			tools.Param{Name: "year_to", Type: tools.TypeInteger, Min: 1900, Max: 2100,
				Description: "Only papers published in or before this year."},
		)
	}
	return tools.ToolSpec{
		Name:        a.name,
		Description: a.description,
		Params:      params,
		Result:      tools.ResultItems,
		Stage:       0,
		Cacheable:   true,
		Bind:        a.bind,
	}
}

func (a *Adapter) bind(v tools.Values) (tools.Args, error) {
	args := QueryArgs{
		Tool:       a.name,
		Query:      v.String("query"),
		MaxResults: v.Int("max_results"),
		YearFrom:   v.Int("year_from"),
		YearTo:     v.Int("year_to"),
	}
	if args.YearFrom > 0 && args.YearTo > 0 && args.YearFrom > args.YearTo {
		return nil, &tools.ArgumentValidationError{Param: "year_from", Reason: "must not be after year_to"}
	}
	return args, nil
}

// SearchPayload summarizes one search call.
type SearchPayload struct {
	Query         string   `json:"query"`
	Count         int      `json:"count"`
	BackendErrors []string `json:"backend_errors,omitempty"`
}

// Execute implements tools.Adapter. Zero matches is an empty list; an error
// is returned only when every backend failed.
func (a *Adapter) Execute(ctx context.Context, args tools.Args) (tools.Output, error) {
	qa, ok := args.(QueryArgs)
	if !ok {
		return tools.Output{}, fmt.Errorf("unexpected args %T", args)
	}

	q := Query{FreeText: qa.Query, MaxResults: qa.MaxResults, YearFrom: qa.YearFrom, YearTo: qa.YearTo}
	out, err := Search(ctx, q, a.backends, a.logger)
	if err != nil {
		return tools.Output{}, err
	}

	items := make([]types.SearchResult, 0, len(out.Results))
	for _, r := range out.Results {
		r.Source = a.name
		if r.Authors == nil {
			r.Authors = []string{}
		}
		items = append(items, r)
	}

	a.logger.Debug("search complete", zap.String("query", qa.Query), zap.Int("results", len(items)))
	return tools.Output{
		Payload: SearchPayload{Query: qa.Query, Count: len(items), BackendErrors: out.BackendErrors},
		Items:   items,
	}, nil
}
