// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert extracts text from PDFs in the task folder with a
// pluggable converter (pdftotext or the markitdown container).
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/internal/tools"
)

// DefaultMaxChars is the text budget when the caller gives none.
const DefaultMaxChars = 8000

// Converter transforms a PDF file into text. Pages is 0 when the backend
// cannot tell.
type Converter interface {
	Name() string
	Convert(ctx context.Context, pdfPath string) (text string, pages int, err error)
}

// Document is the text of one PDF.
type Document struct {
	Path      string `json:"path"`
	Pages     int    `json:"pages"`
	Chars     int    `json:"total_chars"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated"`
}

// Reader converts PDFs on behalf of the read_pdf tool. Converted text is
// cached as Markdown with YAML frontmatter next to the PDF, so a second
// read of the same file skips conversion.
type Reader struct {
	Converter Converter
	Root      string
	Logger    *zap.Logger
}

func (r *Reader) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Resolve maps a file_path argument to a file. Relative paths resolve
// inside Root; absolute paths are used when the file exists.
func (r *Reader) Resolve(p string) (string, error) {
	if filepath.IsAbs(p) {
		if _, err := os.Stat(p); err == nil {
			return filepath.Clean(p), nil
		}
	}
	return tools.ResolvePath(r.Root, p)
}

// Read converts the PDF at p and returns at most maxChars runes of text.
func (r *Reader) Read(ctx context.Context, p string, maxChars int) (Document, error) {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	path, err := r.Resolve(p)
	if err != nil {
		return Document{}, err
	}
	doc := Document{Path: path}

	if err := checkPDF(path); err != nil {
		return doc, err
	}

	text, pages, err := r.cached(path)
	if err != nil {
		text, pages, err = r.Converter.Convert(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return doc, ctx.Err()
			}
			if errors.Is(err, exec.ErrNotFound) {
				return doc, tools.Fatal(tools.KindUnreachable, "convert", err)
			}
			return doc, tools.Fatal(tools.KindUnsupportedFormat, "convert", err)
		}
		if err := r.store(path, text, pages); err != nil {
			r.logger().Warn("caching converted text failed", zap.String("path", path), zap.Error(err))
		}
	}

	text = strings.TrimSpace(strings.ReplaceAll(text, "\f", "\n"))
	doc.Pages = pages
	doc.Chars = utf8.RuneCountInString(text)
	doc.Text = text
	if doc.Chars > maxChars {
		doc.Text = string([]rune(text)[:maxChars])
		doc.Truncated = true
	}
	return doc, nil
}

// checkPDF verifies that path exists and starts like a PDF.
func checkPDF(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return tools.Fatalf(tools.KindNotFound, "read pdf", "file not found: %s", path)
		}
		return tools.Fatal(tools.KindInvalid, "read pdf", err)
	}
	defer f.Close()

	head := make([]byte, 1024)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return tools.Fatal(tools.KindInvalid, "read pdf", err)
	}
	if !bytes.Contains(head[:n], []byte("%PDF-")) {
		return tools.Fatalf(tools.KindUnsupportedFormat, "read pdf", "%s is not a PDF", filepath.Base(path))
	}
	return nil
}

// frontmatter heads a cached conversion.
type frontmatter struct {
	SourcePDF   string `yaml:"source_pdf"`
	Converter   string `yaml:"converter"`
	Pages       int    `yaml:"pages"`
	ConvertedAt string `yaml:"converted_at"`
}

func cachePath(pdfPath string) string {
	return strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + ".md"
}

// cached returns an earlier conversion of pdfPath made by the same
// converter and newer than the PDF.
func (r *Reader) cached(pdfPath string) (string, int, error) {
	mdPath := cachePath(pdfPath)
	mdInfo, err := os.Stat(mdPath)
	if err != nil {
		return "", 0, err
	}
	pdfInfo, err := os.Stat(pdfPath)
	if err != nil {
		return "", 0, err
	}
	if mdInfo.ModTime().Before(pdfInfo.ModTime()) {
		return "", 0, fmt.Errorf("%s is stale", mdPath)
	}

	data, err := os.ReadFile(mdPath)
	if err != nil {
		return "", 0, err
	}
	fm, body, err := splitFrontmatter(string(data))
	if err != nil {
		return "", 0, err
	}
	if fm.Converter != r.Converter.Name() {
		return "", 0, fmt.Errorf("%s was made by %s", mdPath, fm.Converter)
	}
	return body, fm.Pages, nil
}

// store writes the conversion next to the PDF.
func (r *Reader) store(pdfPath, text string, pages int) error {
	fm, err := yaml.Marshal(frontmatter{
		SourcePDF:   filepath.Base(pdfPath),
		Converter:   r.Converter.Name(),
		Pages:       pages,
		ConvertedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")
	b.WriteString(text)
	return os.WriteFile(cachePath(pdfPath), []byte(b.String()), 0o644)
}

func splitFrontmatter(s string) (frontmatter, string, error) {
	var fm frontmatter
	rest, ok := strings.CutPrefix(s, "---\n")
	if !ok {
		return fm, "", errors.New("missing frontmatter")
	}
	head, body, ok := strings.Cut(rest, "\n---\n")
	if !ok {
		return fm, "", errors.New("unterminated frontmatter")
	}
	if err := yaml.Unmarshal([]byte(head), &fm); err != nil {
		return fm, "", fmt.Errorf("parsing frontmatter: %w", err)
	}
	return fm, strings.TrimPrefix(body, "\n"), nil
}
