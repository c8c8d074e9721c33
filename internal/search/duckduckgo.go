// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// duckDuckGoBase is the DuckDuckGo HTML endpoint. Declared as a var so
// tests can substitute an httptest server.
var duckDuckGoBase = "https://html.duckduckgo.com/html/"

// duckDuckGoLimiter holds every DuckDuckGo backend in the process to one
// query per second.
var duckDuckGoLimiter = rate.NewLimiter(rate.Every(time.Second), 1)

const maxSearchPage = 1 << 20

// DuckDuckGoBackend searches the open web through DuckDuckGo's HTML
// interface. It needs no API key.
type DuckDuckGoBackend struct {
	Client    *http.Client
	UserAgent string
}

// Name returns the backend identifier.
func (b *DuckDuckGoBackend) Name() string { return DuckDuckGoName }

// Search scrapes one result page. Snippets become abstracts.
func (b *DuckDuckGoBackend) Search(ctx context.Context, query Query) ([]types.SearchResult, error) {
	q := query.terms()
	if q == "" {
		return nil, fmt.Errorf("empty web query")
	}
	if err := duckDuckGoLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	header := http.Header{
		"Accept":          {"text/html,application/xhtml+xml"},
		"Accept-Language": {"en-US,en;q=0.5"},
	}
	resp, err := get(ctx, b.Client, "DuckDuckGo", duckDuckGoBase+"?q="+url.QueryEscape(q), b.UserAgent, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := html.Parse(io.LimitReader(resp.Body, maxSearchPage))
	if err != nil {
		return nil, fmt.Errorf("parsing DuckDuckGo page: %w", err)
	}

	results := parseDuckDuckGo(doc, query.limit())
	for i := range results {
		results[i].Source = b.Name()
	}
	return results, nil
}

// parseDuckDuckGo walks the result page and collects up to limit results.
func parseDuckDuckGo(doc *html.Node, limit int) []types.SearchResult {
	results := []types.SearchResult{}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			class := attr(n, "class")
			if strings.Contains(class, "result") && strings.Contains(class, "results_links") {
				if r, ok := extractDuckDuckGoResult(n); ok {
					results = append(results, r)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results
}

func extractDuckDuckGoResult(n *html.Node) (types.SearchResult, bool) {
	var r types.SearchResult

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			class := attr(n, "class")
			switch {
			case strings.Contains(class, "result__a"):
				r.URL = resolveRedirect(attr(n, "href"))
				r.Title = textContent(n)
			case strings.Contains(class, "result__snippet"):
				r.Abstract = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	if r.URL == "" || r.Title == "" {
		return r, false
	}
	if strings.HasSuffix(strings.ToLower(r.URL), ".pdf") {
		r.PDFURL = r.URL
	}
	r.SourceID = r.URL
	return r, true
}

// resolveRedirect unwraps DuckDuckGo's //duckduckgo.com/l/?uddg= links.
func resolveRedirect(href string) string {
	if !strings.Contains(href, "duckduckgo.com/l/") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return collapseSpace(b.String())
}
