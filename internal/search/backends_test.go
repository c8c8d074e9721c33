// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/pdiddy/research-assistant/internal/tools"
)

func init() {
	duckDuckGoLimiter = rate.NewLimiter(rate.Inf, 1)
}

func serve(t *testing.T, base *string, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(h)
	old := *base
	*base = ts.URL
	t.Cleanup(func() {
		*base = old
		ts.Close()
	})
	return ts
}

const arxivFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All
      You Need</title>
    <summary>  The dominant sequence transduction models. </summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <arxiv:doi>10.48550/arXiv.1706.03762</arxiv:doi>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v7" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <id>not-an-arxiv-id</id>
    <title>Skipped</title>
  </entry>
</feed>`

func TestArxivSearch(t *testing.T) {
	var gotQuery string
	ts := serve(t, &arxivAPIBase, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, arxivFeedXML)
	})

	b := &ArxivBackend{Client: ts.Client(), UserAgent: "test/0.1"}
	results, err := b.Search(context.Background(), Query{FreeText: "attention transformer", MaxResults: 3, YearFrom: 2017})

	require.NoError(t, err)
	assert.Contains(t, gotQuery, "search_query=all:attention+transformer")
	assert.Contains(t, gotQuery, "submittedDate:%5B201701010000+TO+")
	assert.Contains(t, gotQuery, "max_results=3")

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "Attention Is All You Need", r.Title)
	assert.Equal(t, "The dominant sequence transduction models.", r.Abstract)
	assert.Equal(t, "1706.03762", r.ArxivID)
	assert.Equal(t, "10.48550/arXiv.1706.03762", r.DOI)
	assert.Equal(t, "https://arxiv.org/pdf/1706.03762v7", r.PDFURL)
	assert.Equal(t, 2017, r.Year)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, r.Authors)
}

func TestExtractArxivID(t *testing.T) {
	tests := map[string]string{
		"http://arxiv.org/abs/2301.07041v1": "2301.07041",
		"http://arxiv.org/abs/2301.07041":   "2301.07041",
		"https://example.com/2301.07041":    "",
	}
	for in, want := range tests {
		if got := extractArxivID(in); got != want {
			t.Errorf("extractArxivID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSemanticScholarSearch(t *testing.T) {
	var req *http.Request
	ts := serve(t, &semanticAPIBase, func(w http.ResponseWriter, r *http.Request) {
		req = r
		fmt.Fprint(w, `{"total":1,"data":[{
			"paperId":"abc","title":"Paper One","abstract":"Abs","year":2021,
			"url":"https://www.semanticscholar.org/paper/abc",
			"authors":[{"name":"Jane Doe"}],
			"externalIds":{"DOI":"10.1/one","ArXiv":"2101.00001"},
			"openAccessPdf":{"url":"https://x/one.pdf","status":"GREEN"}}]}`)
	})

	b := &SemanticScholarBackend{Client: ts.Client(), UserAgent: "test/0.1", APIKey: "k"}
	results, err := b.Search(context.Background(), Query{FreeText: "paper", MaxResults: 15, YearFrom: 2020, YearTo: 2022})

	require.NoError(t, err)
	assert.Equal(t, "k", req.Header.Get("x-api-key"))
	assert.Equal(t, "test/0.1", req.Header.Get("User-Agent"))
	assert.Equal(t, "15", req.URL.Query().Get("limit"))
	assert.Equal(t, "2020-2022", req.URL.Query().Get("year"))

	require.Len(t, results, 1)
	assert.Equal(t, "https://x/one.pdf", results[0].PDFURL)
	assert.Equal(t, "10.1/one", results[0].DOI)
	assert.Equal(t, "2101.00001", results[0].ArxivID)
	assert.Equal(t, "abc", results[0].SourceID)
}

func TestSemanticScholarStatusClassified(t *testing.T) {
	tests := []struct {
		code int
		want tools.ErrorClass
	}{
		{http.StatusInternalServerError, tools.ClassTransient},
		{http.StatusForbidden, tools.ClassFatal},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			ts := serve(t, &semanticAPIBase, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.code)
			})
			b := &SemanticScholarBackend{Client: ts.Client()}
			_, err := b.Search(context.Background(), Query{FreeText: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.want, tools.Classify(err))
		})
	}
}

func TestBuildYearRange(t *testing.T) {
	assert.Equal(t, "2020-2023", buildYearRange(2020, 2023))
	assert.Equal(t, "2020-", buildYearRange(2020, 0))
	assert.Equal(t, "-2023", buildYearRange(0, 2023))
	assert.Equal(t, "", buildYearRange(0, 0))
}

func TestOpenAlexSearch(t *testing.T) {
	var req *http.Request
	ts := serve(t, &openAlexSearchBase, func(w http.ResponseWriter, r *http.Request) {
		req = r
		fmt.Fprint(w, `{"results":[{
			"id":"https://openalex.org/W1","title":"Work One","doi":"https://doi.org/10.2/w1",
			"publication_year":2020,
			"authorships":[{"author":{"display_name":"A Author"}}],
			"abstract_inverted_index":{"world":[1],"hello":[0]},
			"primary_location":{"landing_page_url":"https://pub.example/w1"},
			"best_oa_location":{"pdf_url":"https://repo.example/w1.pdf"}}]}`)
	})

	b := &OpenAlexBackend{Client: ts.Client(), Email: "me@example.com"}
	results, err := b.Search(context.Background(), Query{FreeText: "work", YearTo: 2021})

	require.NoError(t, err)
	assert.Equal(t, "me@example.com", req.URL.Query().Get("mailto"))
	assert.Equal(t, "to_publication_date:2021-12-31", req.URL.Query().Get("filter"))
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "10.2/w1", r.DOI)
	assert.Equal(t, "hello world", r.Abstract)
	assert.Equal(t, "https://pub.example/w1", r.URL)
	assert.Equal(t, "https://repo.example/w1.pdf", r.PDFURL)
}

const duckDuckGoHTML = `<html><body>
<div class="result results_links results_links_deep web-result">
  <h2><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fpaper.pdf&amp;rut=x">Example <b>Paper</b></a></h2>
  <a class="result__snippet" href="#">A snippet   about the paper.</a>
</div>
<div class="result results_links web-result">
  <h2><a class="result__a" href="https://example.org/post">Blog Post</a></h2>
</div>
<div class="result results_links web-result">
  <h2><a class="result__a" href="https://example.org/third">Third</a></h2>
</div>
</body></html>`

func TestDuckDuckGoSearch(t *testing.T) {
	ts := serve(t, &duckDuckGoBase, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "q=rl+robotics") {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, duckDuckGoHTML)
	})

	b := &DuckDuckGoBackend{Client: ts.Client()}
	results, err := b.Search(context.Background(), Query{FreeText: "rl robotics", MaxResults: 2})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Example Paper", results[0].Title)
	assert.Equal(t, "https://example.com/paper.pdf", results[0].URL)
	assert.Equal(t, "https://example.com/paper.pdf", results[0].PDFURL)
	assert.Equal(t, "A snippet about the paper.", results[0].Abstract)
	assert.Equal(t, "https://example.org/post", results[1].URL)
	assert.Empty(t, results[1].PDFURL)
}
