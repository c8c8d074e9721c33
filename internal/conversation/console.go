// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package conversation

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/research-assistant/internal/tools"
)

// LineInput reads one user message per line, printing a prompt first.
type LineInput struct {
	scanner *bufio.Scanner
	prompt  io.Writer
	label   string
}

// NewLineInput reads from r and prompts on w. A nil w disables the prompt.
func NewLineInput(r io.Reader, w io.Writer) *LineInput {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	return &LineInput{scanner: s, prompt: w, label: "\n> "}
}

// Next implements Input. It blocks on the reader; ctx is checked before
// the read starts.
func (l *LineInput) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if l.prompt != nil {
		fmt.Fprint(l.prompt, l.label)
	}
	if !l.scanner.Scan() {
		if err := l.scanner.Err(); err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return "", io.EOF
	}
	return l.scanner.Text(), nil
}

// WriterOutput prints answers and one progress line per tool result.
type WriterOutput struct {
	W io.Writer

	// Quiet suppresses progress lines.
	Quiet bool
}

// Answer implements Output.
func (o *WriterOutput) Answer(text string) error {
	_, err := fmt.Fprintf(o.W, "\n%s\n", text)
	return err
}

// Progress implements Output.
func (o *WriterOutput) Progress(res tools.ToolResult) {
	if o.Quiet {
		return
	}
	name := res.Tool
	if res.ServedBy != "" && res.ServedBy != res.Tool {
		name = fmt.Sprintf("%s (via %s)", res.Tool, res.ServedBy)
	}
	switch {
	case !res.OK:
		fmt.Fprintf(o.W, "  ✗ %s: %s\n", name, res.Error)
	case res.Items != nil:
		fmt.Fprintf(o.W, "  ✓ %s: %d results\n", name, len(res.Items))
	default:
		fmt.Fprintf(o.W, "  ✓ %s\n", name)
	}
}
