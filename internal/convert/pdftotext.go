// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// commandRunner runs a command and writes its stdout to w. Replaced in
// tests.
type commandRunner func(ctx context.Context, name string, args []string, w io.Writer) error

func runCommand(ctx context.Context, name string, args []string, w io.Writer) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = w
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// PdftotextConverter runs poppler's pdftotext. Its output separates pages
// with form feeds, which gives the page count.
type PdftotextConverter struct {
	Bin string
	run commandRunner
}

// NewPdftotextConverter returns a converter that runs bin ("pdftotext"
// when empty) from PATH.
func NewPdftotextConverter(bin string) *PdftotextConverter {
	if bin == "" {
		bin = "pdftotext"
	}
	return &PdftotextConverter{Bin: bin, run: runCommand}
}

// Name implements Converter.
func (p *PdftotextConverter) Name() string { return "pdftotext" }

// Convert implements Converter.
func (p *PdftotextConverter) Convert(ctx context.Context, pdfPath string) (string, int, error) {
	var out bytes.Buffer
	args := []string{"-layout", "-enc", "UTF-8", pdfPath, "-"}
	if err := p.run(ctx, p.Bin, args, &out); err != nil {
		return "", 0, fmt.Errorf("converting %s with pdftotext: %w", pdfPath, err)
	}
	text := out.String()
	return text, countPages(text), nil
}

// countPages counts form-feed separated pages, ignoring a trailing blank
// page after the last separator.
func countPages(text string) int {
	pages := strings.Split(text, "\f")
	n := len(pages)
	if strings.TrimSpace(pages[n-1]) == "" {
		n--
	}
	return n
}
