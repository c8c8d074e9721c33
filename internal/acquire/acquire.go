// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads paper PDFs into the task folder and records
// their metadata in YAML sidecars.
package acquire

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/internal/tools"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// MaxPDFBytes caps a single download. Declared as a var so tests can
// lower it.
var MaxPDFBytes int64 = 100 << 20

// pdfMagic must appear within the first kilobyte of a PDF.
var pdfMagic = []byte("%PDF-")

// Fetcher downloads papers under Root, the session's task folder.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
	Root      string

	// Email is sent to OpenAlex as mailto for polite pool access.
	Email string

	// Delay is the pause between consecutive downloads.
	Delay time.Duration

	Logger *zap.Logger
}

// BatchResult holds the outcome of a batch download.
type BatchResult struct {
	Downloaded []string          `json:"downloaded"`
	Skipped    []string          `json:"skipped,omitempty"`
	Failed     map[string]string `json:"failed"`
	Papers     []types.Paper     `json:"papers"`
}

// Total returns the number of papers processed.
func (r BatchResult) Total() int {
	return len(r.Downloaded) + len(r.Skipped) + len(r.Failed)
}

// HasFailures reports whether any papers failed.
func (r BatchResult) HasFailures() bool {
	return len(r.Failed) > 0
}

func (f *Fetcher) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

// FetchAll downloads every paper into folder (relative to Root). It
// continues after individual failures. When every paper failed and every
// failure was transient, the batch error is transient so the call can be
// retried as a whole.
func (f *Fetcher) FetchAll(ctx context.Context, papers []types.PaperRef, folder string) (BatchResult, error) {
	result := BatchResult{Failed: make(map[string]string)}

	dir, err := tools.ResolvePath(f.Root, folder)
	if err != nil {
		return result, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return result, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	var errs []error
	transient := 0
	for i, p := range papers {
		if i > 0 && f.Delay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(f.Delay):
			}
		}

		paper, skipped, err := f.Fetch(ctx, p, dir)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			f.logger().Warn("download failed", zap.String("title", p.Title), zap.Error(err))
			result.Failed[p.Title] = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", p.Title, err))
			if tools.Classify(err) == tools.ClassTransient {
				transient++
			}
			continue
		}
		if skipped {
			result.Skipped = append(result.Skipped, paper.PDFPath)
		} else {
			result.Downloaded = append(result.Downloaded, paper.PDFPath)
		}
		result.Papers = append(result.Papers, *paper)
	}

	if len(papers) > 0 && transient == len(papers) {
		return result, tools.Transient("download", errors.Join(errs...))
	}
	return result, nil
}

// Fetch downloads one paper into dir. If the PDF already exists it is not
// downloaded again and skipped is true.
func (f *Fetcher) Fetch(ctx context.Context, p types.PaperRef, dir string) (paper *types.Paper, skipped bool, err error) {
	stem := FileName(p.Title)
	pdfPath := filepath.Join(dir, stem+".pdf")
	metaPath := filepath.Join(dir, stem+".yaml")

	if _, err := os.Stat(pdfPath); err == nil {
		existing, readErr := readMetadata(metaPath)
		if readErr != nil {
			existing = &types.Paper{ID: stem, PDFPath: pdfPath, Title: p.Title}
		}
		return existing, true, nil
	}

	routes := candidates(p)
	if len(routes) == 0 {
		return nil, false, tools.Fatalf(tools.KindNotFound, "resolve", "no PDF link or identifier for %q", p.Title)
	}

	var lastErr error
	for _, c := range routes {
		pdfURL, source := PDFURL(c.idType, c.id), c.source
		if c.idType == TypeDOI {
			if oaURL, err := f.resolveOpenAlex(ctx, c.id); err == nil && oaURL != "" {
				pdfURL, source = oaURL, "openalex"
			} else if err != nil {
				f.logger().Debug("OpenAlex lookup failed", zap.String("doi", c.id), zap.Error(err))
			}
		}

		n, err := f.download(ctx, pdfURL, pdfPath)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			f.logger().Debug("download route failed", zap.String("url", pdfURL), zap.Error(err))
			lastErr = err
			continue
		}

		paper = &types.Paper{
			ID:           stem,
			SourceURL:    pdfURL,
			PDFPath:      pdfPath,
			Title:        p.Title,
			Authors:      p.Authors,
			Year:         p.Year,
			Abstract:     p.Abstract,
			DOI:          p.DOI,
			Source:       source,
			Bytes:        n,
			DownloadedAt: time.Now().UTC(),
		}
		f.enrich(ctx, c, paper)
		if err := writeMetadata(paper, metaPath); err != nil {
			return nil, false, fmt.Errorf("writing metadata for %s: %w", stem, err)
		}
		return paper, false, nil
	}
	return nil, false, lastErr
}

// enrich fills authors and abstract from arXiv or CrossRef when the
// caller did not supply them. Failures only cost metadata.
func (f *Fetcher) enrich(ctx context.Context, c candidate, p *types.Paper) {
	if len(p.Authors) > 0 && p.Abstract != "" {
		return
	}
	var err error
	switch c.idType {
	case TypeArxiv:
		err = f.fetchArxivMetadata(ctx, c.id, p)
	case TypeDOI:
		err = f.fetchCrossRefMetadata(ctx, c.id, p)
	default:
		return
	}
	if err != nil {
		f.logger().Warn("metadata fetch failed", zap.String("id", c.id), zap.Error(err))
	}
}

// download fetches url to destPath through a temporary file that is
// renamed on success. The body must look like a PDF and stay under
// MaxPDFBytes.
func (f *Fetcher) download(ctx context.Context, url, destPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, tools.Fatal(tools.KindInvalid, "download", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := f.Client.Do(req)
	if err != nil {
		return 0, tools.Transient("download", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp, "download "+url); err != nil {
		return 0, tools.StatusFailure("download", resp.StatusCode, err)
	}
	if resp.ContentLength > MaxPDFBytes {
		return 0, tools.Fatalf(tools.KindTooLarge, "download", "%s is %d bytes, limit %d", url, resp.ContentLength, MaxPDFBytes)
	}

	br := bufio.NewReaderSize(resp.Body, 1024)
	head, _ := br.Peek(1024)
	if !bytes.Contains(head, pdfMagic) {
		return 0, tools.Fatalf(tools.KindUnsupportedFormat, "download", "%s is not a PDF (%s)", url, resp.Header.Get("Content-Type"))
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".acquire-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, io.LimitReader(br, MaxPDFBytes+1))
	closeErr := tmpFile.Close()
	switch {
	case copyErr != nil:
		os.Remove(tmpPath)
		return 0, tools.Transient("download", fmt.Errorf("writing download: %w", copyErr))
	case closeErr != nil:
		os.Remove(tmpPath)
		return 0, fmt.Errorf("closing temp file: %w", closeErr)
	case n > MaxPDFBytes:
		os.Remove(tmpPath)
		return 0, tools.Fatalf(tools.KindTooLarge, "download", "%s exceeds %d bytes", url, MaxPDFBytes)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}
	return n, nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Authors   []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

// fetchArxivMetadata fills missing fields from the arXiv API.
func (f *Fetcher) fetchArxivMetadata(ctx context.Context, arxivID string, paper *types.Paper) error {
	apiURL := fmt.Sprintf("%s?id_list=%s", arxivAPIBase, arxivID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp, "arXiv API"); err != nil {
		return err
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return fmt.Errorf("parsing arXiv response: %w", err)
	}
	if len(feed.Entries) == 0 {
		return fmt.Errorf("no entries found for arXiv ID %s", arxivID)
	}

	entry := feed.Entries[0]
	if paper.Abstract == "" {
		paper.Abstract = strings.Join(strings.Fields(entry.Summary), " ")
	}
	if len(paper.Authors) == 0 {
		for _, a := range entry.Authors {
			paper.Authors = append(paper.Authors, strings.TrimSpace(a.Name))
		}
	}
	if paper.Year == 0 {
		if t, parseErr := time.Parse(time.RFC3339, entry.Published); parseErr == nil {
			paper.Year = t.Year()
		}
	}
	return nil
}

// CrossRef API JSON structures.
type crossrefResponse struct {
	Message crossrefWork `json:"message"`
}

type crossrefWork struct {
	Title    []string         `json:"title"`
	Abstract string           `json:"abstract"`
	Author   []crossrefAuthor `json:"author"`
	Created  crossrefDate     `json:"created"`
}

type crossrefAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

type crossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}

// fetchCrossRefMetadata fills missing fields from the CrossRef API.
func (f *Fetcher) fetchCrossRefMetadata(ctx context.Context, doi string, paper *types.Paper) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, crossrefAPIBase+doi, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("CrossRef API request: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp, "CrossRef API"); err != nil {
		return err
	}

	var cr crossrefResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return fmt.Errorf("parsing CrossRef response: %w", err)
	}

	if paper.Abstract == "" {
		paper.Abstract = cr.Message.Abstract
	}
	if len(paper.Authors) == 0 {
		for _, a := range cr.Message.Author {
			paper.Authors = append(paper.Authors, strings.TrimSpace(a.Given+" "+a.Family))
		}
	}
	if paper.Year == 0 && len(cr.Message.Created.DateParts) > 0 && len(cr.Message.Created.DateParts[0]) > 0 {
		paper.Year = cr.Message.Created.DateParts[0][0]
	}
	return nil
}

// writeMetadata writes a Paper record to a YAML file.
func writeMetadata(paper *types.Paper, path string) error {
	data, err := yaml.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// readMetadata reads a Paper record from a YAML file.
func readMetadata(path string) (*types.Paper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var paper types.Paper
	if err := yaml.Unmarshal(data, &paper); err != nil {
		return nil, err
	}
	return &paper, nil
}
