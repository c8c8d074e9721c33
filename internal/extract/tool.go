// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/tools"
)

// ToolName is the content extractor's tool name.
const ToolName = "text_from_url"

// Args are the bound arguments of text_from_url.
type Args struct {
	URL      string
	MaxChars int
}

// ToolName implements tools.Args.
func (Args) ToolName() string { return ToolName }

// Tool exposes an Extractor as the text_from_url adapter.
type Tool struct {
	extractor *Extractor
	logger    *zap.Logger
}

// NewTool returns the content-extractor adapter.
func NewTool(e *Extractor, logger *zap.Logger) *Tool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tool{extractor: e, logger: logger.Named(ToolName)}
}

// Spec implements tools.Adapter.
func (t *Tool) Spec() tools.ToolSpec {
	return tools.ToolSpec{
		Name:        ToolName,
		Description: "Fetch a web page and return its title and main text. Non-text content reports only its type and size.",
		Params: []tools.Param{
			{Name: "url", Type: tools.TypeURL, Required: true, Description: "Absolute http(s) URL."},
			{Name: "max_chars", Type: tools.TypeInteger, Default: DefaultMaxChars, Min: 100, Max: 50000,
				Description: "Maximum characters of text returned."},
		},
		Result:    tools.ResultDocument,
		Stage:     1,
		Cacheable: true,
		Bind: func(v tools.Values) (tools.Args, error) {
			return Args{URL: v.String("url"), MaxChars: v.Int("max_chars")}, nil
		},
	}
}

// Execute implements tools.Adapter.
func (t *Tool) Execute(ctx context.Context, args tools.Args) (tools.Output, error) {
	a, ok := args.(Args)
	if !ok {
		return tools.Output{}, fmt.Errorf("unexpected args %T", args)
	}
	doc, err := t.extractor.Fetch(ctx, a.URL, a.MaxChars)
	if err != nil {
		return tools.Output{}, err
	}
	t.logger.Debug("extracted page",
		zap.String("url", a.URL),
		zap.String("content_type", doc.ContentType),
		zap.Int("chars", len(doc.Text)),
		zap.Bool("truncated", doc.Truncated))
	return tools.Output{Payload: doc}, nil
}
