// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/internal/tools"
)

// fakeConverter returns canned text and counts its calls.
type fakeConverter struct {
	text  string
	pages int
	err   error
	calls int
}

func (f *fakeConverter) Name() string { return "fake" }

func (f *fakeConverter) Convert(ctx context.Context, pdfPath string) (string, int, error) {
	f.calls++
	if f.err != nil {
		return "", 0, f.err
	}
	return f.text, f.pages, nil
}

// writePDF creates a fake PDF under root and returns its relative path.
func writePDF(t *testing.T, root, rel string) string {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("%PDF-1.7\nfake body"), 0o644))
	return rel
}

func TestReadRelativePath(t *testing.T) {
	root := t.TempDir()
	rel := writePDF(t, root, "downloads/Paper.pdf")
	fc := &fakeConverter{text: "Page one.\fPage two.\f", pages: 2}
	r := &Reader{Converter: fc, Root: root}

	doc, err := r.Read(context.Background(), rel, 0)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, rel), doc.Path)
	assert.Equal(t, 2, doc.Pages)
	assert.Equal(t, "Page one.\nPage two.", doc.Text)
	assert.Equal(t, len("Page one.\nPage two."), doc.Chars)
	assert.False(t, doc.Truncated)
}

func TestReadTruncates(t *testing.T) {
	root := t.TempDir()
	rel := writePDF(t, root, "p.pdf")
	r := &Reader{Converter: &fakeConverter{text: strings.Repeat("ß", 300)}, Root: root}

	doc, err := r.Read(context.Background(), rel, 100)

	require.NoError(t, err)
	assert.True(t, doc.Truncated)
	assert.Equal(t, 300, doc.Chars)
	assert.Equal(t, 100, len([]rune(doc.Text)))
}

func TestReadUsesCache(t *testing.T) {
	root := t.TempDir()
	rel := writePDF(t, root, "p.pdf")
	fc := &fakeConverter{text: "cached text\n---\nwith a rule", pages: 3}
	r := &Reader{Converter: fc, Root: root}

	first, err := r.Read(context.Background(), rel, 0)
	require.NoError(t, err)
	second, err := r.Read(context.Background(), rel, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, fc.calls)
	assert.Equal(t, first, second)
	assert.FileExists(t, filepath.Join(root, "p.md"))
}

func TestReadIgnoresOtherConvertersCache(t *testing.T) {
	root := t.TempDir()
	rel := writePDF(t, root, "p.pdf")
	cache := "---\nsource_pdf: p.pdf\nconverter: markitdown\npages: 0\n---\n\nold"
	require.NoError(t, os.WriteFile(filepath.Join(root, "p.md"), []byte(cache), 0o644))
	fc := &fakeConverter{text: "fresh"}
	r := &Reader{Converter: fc, Root: root}

	doc, err := r.Read(context.Background(), rel, 0)

	require.NoError(t, err)
	assert.Equal(t, "fresh", doc.Text)
	assert.Equal(t, 1, fc.calls)
}

func TestReadFailures(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("plain text"), 0o644))
	writePDF(t, root, "ok.pdf")

	tests := []struct {
		name     string
		path     string
		conv     *fakeConverter
		wantKind tools.FailureKind
	}{
		{"missing file", "missing.pdf", &fakeConverter{}, tools.KindNotFound},
		{"not a pdf", "notes.txt", &fakeConverter{}, tools.KindUnsupportedFormat},
		{"converter missing", "ok.pdf", &fakeConverter{err: exec.ErrNotFound}, tools.KindUnreachable},
		{"converter fails", "ok.pdf", &fakeConverter{err: errors.New("syntax error")}, tools.KindUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Reader{Converter: tt.conv, Root: root}
			_, err := r.Read(context.Background(), tt.path, 0)
			var fe *tools.FatalAdapterError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.wantKind, fe.Kind)
		})
	}
}

func TestReadRejectsEscape(t *testing.T) {
	r := &Reader{Converter: &fakeConverter{}, Root: t.TempDir()}

	_, err := r.Read(context.Background(), "/definitely/not/here.pdf", 0)

	var ave *tools.ArgumentValidationError
	require.ErrorAs(t, err, &ave)
}

func TestReadAbsolutePathOutsideRoot(t *testing.T) {
	other := t.TempDir()
	writePDF(t, other, "x.pdf")
	r := &Reader{Converter: &fakeConverter{text: "outside"}, Root: t.TempDir()}

	doc, err := r.Read(context.Background(), filepath.Join(other, "x.pdf"), 0)

	require.NoError(t, err)
	assert.Equal(t, "outside", doc.Text)
}

func TestPdftotextConverter(t *testing.T) {
	var gotArgs []string
	c := NewPdftotextConverter("")
	c.run = func(ctx context.Context, name string, args []string, w io.Writer) error {
		gotArgs = append([]string{name}, args...)
		fmt.Fprint(w, "one\ftwo\fthree\f")
		return nil
	}

	text, pages, err := c.Convert(context.Background(), "/tmp/p.pdf")

	require.NoError(t, err)
	assert.Equal(t, 3, pages)
	assert.Equal(t, "one\ftwo\fthree\f", text)
	assert.Equal(t, []string{"pdftotext", "-layout", "-enc", "UTF-8", "/tmp/p.pdf", "-"}, gotArgs)
}

func TestCountPages(t *testing.T) {
	assert.Equal(t, 0, countPages(""))
	assert.Equal(t, 1, countPages("only page"))
	assert.Equal(t, 2, countPages("a\fb\f\n"))
	assert.Equal(t, 2, countPages("a\fb"))
}

func TestToolThroughRegistry(t *testing.T) {
	root := t.TempDir()
	rel := writePDF(t, root, "downloads/Paper.pdf")
	reg := tools.NewRegistry(nil)
	require.NoError(t, reg.Register(NewTool(&Reader{Converter: &fakeConverter{text: "body", pages: 1}, Root: root}, nil)))

	_, err := reg.Validate(tools.RawCall{Name: ToolName, Arguments: map[string]any{"file_path": "../escape.pdf"}})
	require.Error(t, err)

	call, err := reg.Validate(tools.RawCall{ID: "c", Name: ToolName, Arguments: map[string]any{"file_path": rel}})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxChars, call.Values.Int("max_chars"))

	res, err := reg.Dispatch(context.Background(), call)
	require.NoError(t, err)
	doc, ok := res.Payload.(Document)
	require.True(t, ok)
	assert.Equal(t, "body", doc.Text)
	assert.Equal(t, 1, doc.Pages)
}

// fakeRuntime serves one image and echoes stdin behind a heading.
type fakeRuntime struct {
	image  string
	output string
}

func (r *fakeRuntime) Name() string { return "docker" }

func (r *fakeRuntime) ImageExists(ctx context.Context, image string) error {
	if image != r.image {
		return errors.New("no such image")
	}
	return nil
}

func (r *fakeRuntime) Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error {
	if _, err := io.Copy(io.Discard, stdin); err != nil {
		return err
	}
	_, err := io.WriteString(stdout, r.output)
	return err
}

func TestMarkitdownConverter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7"), 0o644))

	_, err := NewMarkitdownConverter(context.Background(), &fakeRuntime{image: "other"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "markitdown unavailable on docker")

	conv, err := NewMarkitdownConverter(context.Background(), &fakeRuntime{image: MarkitdownImage, output: "# Title\n"})
	require.NoError(t, err)
	text, pages, err := conv.Convert(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "# Title\n", text)
	assert.Zero(t, pages)

	empty, err := NewMarkitdownConverter(context.Background(), &fakeRuntime{image: MarkitdownImage, output: " \n"})
	require.NoError(t, err)
	_, _, err = empty.Convert(context.Background(), path)
	assert.Error(t, err)
}
