// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivBackend queries the arXiv API.
type ArxivBackend struct {
	Client    *http.Client
	UserAgent string
}

// Name returns the backend identifier.
func (b *ArxivBackend) Name() string { return ArxivName }

// Search queries the arXiv API. Every entry carries its abs page and the
// direct PDF link.
func (b *ArxivBackend) Search(ctx context.Context, query Query) ([]types.SearchResult, error) {
	q := buildArxivQuery(query)
	if q == "" {
		return nil, fmt.Errorf("empty arXiv query")
	}

	reqURL := fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d&sortBy=relevance&sortOrder=descending",
		arxivAPIBase, q, query.limit())

	resp, err := get(ctx, b.Client, "arXiv API", reqURL, b.UserAgent, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	results := make([]types.SearchResult, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		arxivID := extractArxivID(entry.ID)
		if arxivID == "" {
			continue
		}

		r := types.SearchResult{
			Title:    collapseSpace(entry.Title),
			Abstract: collapseSpace(entry.Summary),
			URL:      "https://arxiv.org/abs/" + arxivID,
			PDFURL:   entry.pdfLink(),
			DOI:      strings.TrimSpace(entry.DOI),
			ArxivID:  arxivID,
			SourceID: arxivID,
			Source:   b.Name(),
		}
		if r.PDFURL == "" {
			r.PDFURL = "https://arxiv.org/pdf/" + arxivID
		}
		for _, a := range entry.Authors {
			r.Authors = append(r.Authors, strings.TrimSpace(a.Name))
		}
		if t, parseErr := time.Parse(time.RFC3339, entry.Published); parseErr == nil {
			r.Year = t.Year()
		}
		results = append(results, r)
	}
	return results, nil
}

// buildArxivQuery constructs the search_query parameter from structured
// fields. Terms are escaped individually; the "+" separators are arXiv
// query syntax.
func buildArxivQuery(q Query) string {
	var parts []string

	field := func(prefix, text string) {
		terms := strings.Fields(text)
		if len(terms) == 0 {
			return
		}
		for i, t := range terms {
			terms[i] = url.QueryEscape(t)
		}
		parts = append(parts, prefix+":"+strings.Join(terms, "+"))
	}

	field("all", q.FreeText)
	field("au", q.Author)
	for _, kw := range q.Keywords {
		field("all", kw)
	}
	if len(parts) == 0 {
		return ""
	}

	if q.YearFrom > 0 || q.YearTo > 0 {
		from, to := "000001010000", "999912312359"
		if q.YearFrom > 0 {
			from = fmt.Sprintf("%04d01010000", q.YearFrom)
		}
		if q.YearTo > 0 {
			to = fmt.Sprintf("%04d12312359", q.YearTo)
		}
		parts = append(parts, "submittedDate:%5B"+from+"+TO+"+to+"%5D")
	}

	return strings.Join(parts, "+AND+")
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Authors   []arxivAuthor `xml:"author"`
	Links     []arxivLink   `xml:"link"`
	DOI       string        `xml:"http://arxiv.org/schemas/atom doi"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

func (e arxivEntry) pdfLink() string {
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			return strings.Replace(l.Href, "http://", "https://", 1)
		}
	}
	return ""
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" becomes "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
