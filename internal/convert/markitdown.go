// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pdiddy/research-assistant/internal/container"
)

// MarkitdownImage is the container image run by MarkitdownConverter.
const MarkitdownImage = "markitdown:latest"

// MarkitdownConverter pipes a PDF through the markitdown image on a local
// container engine and returns its Markdown.
type MarkitdownConverter struct {
	rt    container.Runtime
	image string
}

// NewMarkitdownConverter fails when rt does not have the image, so the
// assistant can drop read_pdf at startup instead of failing every call.
func NewMarkitdownConverter(ctx context.Context, rt container.Runtime) (*MarkitdownConverter, error) {
	if err := rt.ImageExists(ctx, MarkitdownImage); err != nil {
		return nil, fmt.Errorf("markitdown unavailable on %s: %w", rt.Name(), err)
	}
	return &MarkitdownConverter{rt: rt, image: MarkitdownImage}, nil
}

// Name implements Converter.
func (m *MarkitdownConverter) Name() string { return "markitdown" }

// Convert implements Converter. markitdown keeps no page breaks, so the
// page count is 0.
func (m *MarkitdownConverter) Convert(ctx context.Context, pdfPath string) (string, int, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return "", 0, fmt.Errorf("opening %s: %w", pdfPath, err)
	}
	defer f.Close()

	var md bytes.Buffer
	if err := m.rt.Run(ctx, m.image, f, &md); err != nil {
		return "", 0, err
	}
	if len(bytes.TrimSpace(md.Bytes())) == 0 {
		return "", 0, fmt.Errorf("markitdown returned no text for %s", pdfPath)
	}
	return md.String(), 0, nil
}
