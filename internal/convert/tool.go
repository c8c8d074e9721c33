// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/tools"
)

// ToolName is the PDF reader's tool name.
const ToolName = "read_pdf"

// Args are the bound arguments of read_pdf.
type Args struct {
	FilePath string
	MaxChars int
}

// ToolName implements tools.Args.
func (Args) ToolName() string { return ToolName }

// Tool exposes a Reader as the read_pdf adapter.
type Tool struct {
	reader *Reader
	logger *zap.Logger
}

// NewTool returns the PDF text extraction adapter.
func NewTool(r *Reader, logger *zap.Logger) *Tool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tool{reader: r, logger: logger.Named(ToolName)}
}

// Spec implements tools.Adapter.
func (t *Tool) Spec() tools.ToolSpec {
	return tools.ToolSpec{
		Name:        ToolName,
		Description: "Extract the text of a PDF in the task folder, such as one saved by pdf_downloader.",
		Params: []tools.Param{
			{Name: "file_path", Type: tools.TypePath, Required: true,
				Description: "PDF path relative to the task folder."},
			{Name: "max_chars", Type: tools.TypeInteger, Default: DefaultMaxChars, Min: 100, Max: 100000,
				Description: "Maximum characters of text returned."},
		},
		Result:    tools.ResultDocument,
		Stage:     2,
		Cacheable: true,
		Bind: func(v tools.Values) (tools.Args, error) {
			return Args{FilePath: v.String("file_path"), MaxChars: v.Int("max_chars")}, nil
		},
	}
}

// Execute implements tools.Adapter.
func (t *Tool) Execute(ctx context.Context, args tools.Args) (tools.Output, error) {
	a, ok := args.(Args)
	if !ok {
		return tools.Output{}, fmt.Errorf("unexpected args %T", args)
	}
	doc, err := t.reader.Read(ctx, a.FilePath, a.MaxChars)
	if err != nil {
		return tools.Output{}, err
	}
	t.logger.Debug("read pdf",
		zap.String("path", doc.Path),
		zap.Int("pages", doc.Pages),
		zap.Int("chars", doc.Chars))
	return tools.Output{Payload: doc}, nil
}
