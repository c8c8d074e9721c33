// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/tools"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// ToolName is the document fetcher's tool name.
const ToolName = "pdf_downloader"

// Args are the bound arguments of pdf_downloader.
type Args struct {
	Papers []types.PaperRef
	Folder string
}

// ToolName implements tools.Args.
func (Args) ToolName() string { return ToolName }

// Tool exposes a Fetcher as the pdf_downloader adapter.
type Tool struct {
	fetcher       *Fetcher
	defaultFolder string
	logger        *zap.Logger
}

// NewTool returns the document-fetcher adapter. defaultFolder is used when
// the call names no folder.
func NewTool(f *Fetcher, defaultFolder string, logger *zap.Logger) *Tool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultFolder == "" {
		defaultFolder = "downloads"
	}
	return &Tool{fetcher: f, defaultFolder: defaultFolder, logger: logger.Named(ToolName)}
}

// Spec implements tools.Adapter.
func (t *Tool) Spec() tools.ToolSpec {
	return tools.ToolSpec{
		Name: ToolName,
		Description: "Download the PDFs of the given papers into the task folder. " +
			"Each paper needs a title and a pdf_url, url, or doi.",
		Params: []tools.Param{
			{Name: "papers", Type: tools.TypePapers, Required: true, Description: "Papers to download."},
			{Name: "folder", Type: tools.TypePath, Default: t.defaultFolder,
				Description: "Folder inside the task folder."},
		},
		Result: tools.ResultFiles,
		Stage:  1,
		Bind: func(v tools.Values) (tools.Args, error) {
			return Args{Papers: v.Papers("papers"), Folder: v.String("folder")}, nil
		},
	}
}

// Execute implements tools.Adapter.
func (t *Tool) Execute(ctx context.Context, args tools.Args) (tools.Output, error) {
	a, ok := args.(Args)
	if !ok {
		return tools.Output{}, fmt.Errorf("unexpected args %T", args)
	}
	res, err := t.fetcher.FetchAll(ctx, a.Papers, a.Folder)
	if err != nil {
		return tools.Output{}, err
	}
	t.logger.Info("download batch finished",
		zap.Int("downloaded", len(res.Downloaded)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("failed", len(res.Failed)))
	return tools.Output{Payload: res}, nil
}
