// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "title,abstract,authors,externalIds,year,publicationDate,url,openAccessPdf"

// SemanticScholarBackend queries the Semantic Scholar API. Unauthenticated
// clients share a small rate budget, so requests pass through Limiter when
// one is set.
type SemanticScholarBackend struct {
	Client    *http.Client
	UserAgent string
	APIKey    string
	Limiter   *rate.Limiter
}

// NewSemanticScholarBackend returns a backend limited to one request per
// second, the public API's budget.
func NewSemanticScholarBackend(client *http.Client, userAgent, apiKey string) *SemanticScholarBackend {
	return &SemanticScholarBackend{
		Client:    client,
		UserAgent: userAgent,
		APIKey:    apiKey,
		Limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Name returns the backend identifier.
func (b *SemanticScholarBackend) Name() string { return SemanticScholarName }

// Search queries the Semantic Scholar API.
func (b *SemanticScholarBackend) Search(ctx context.Context, query Query) ([]types.SearchResult, error) {
	q := query.terms()
	if q == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}

	limit := query.limit()
	if limit > 100 {
		limit = 100
	}
	params := url.Values{
		"query":  {q},
		"limit":  {strconv.Itoa(limit)},
		"fields": {semanticFields},
	}
	if yr := buildYearRange(query.YearFrom, query.YearTo); yr != "" {
		params.Set("year", yr)
	}

	var header http.Header
	if b.APIKey != "" {
		header = http.Header{"x-api-key": {b.APIKey}}
	}

	if b.Limiter != nil {
		if err := b.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := get(ctx, b.Client, "Semantic Scholar API", semanticAPIBase+"?"+params.Encode(), b.UserAgent, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var sr semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	results := make([]types.SearchResult, 0, len(sr.Data))
	for _, paper := range sr.Data {
		r := types.SearchResult{
			Title:    strings.TrimSpace(paper.Title),
			Abstract: paper.Abstract,
			URL:      paper.URL,
			DOI:      paper.ExternalIDs.DOI,
			ArxivID:  paper.ExternalIDs.ArXiv,
			SourceID: paper.PaperID,
			Source:   b.Name(),
			Year:     paper.Year,
		}
		if paper.OpenAccessPDF != nil {
			r.PDFURL = paper.OpenAccessPDF.URL
		}
		if r.Year == 0 && paper.PublicationDate != "" {
			if t, parseErr := time.Parse("2006-01-02", paper.PublicationDate); parseErr == nil {
				r.Year = t.Year()
			}
		}
		for _, a := range paper.Authors {
			r.Authors = append(r.Authors, a.Name)
		}
		results = append(results, r)
	}
	return results, nil
}

// buildYearRange returns a Semantic Scholar year filter (e.g. "2020-2023").
func buildYearRange(from, to int) string {
	switch {
	case from > 0 && to > 0:
		return fmt.Sprintf("%d-%d", from, to)
	case from > 0:
		return fmt.Sprintf("%d-", from)
	case to > 0:
		return fmt.Sprintf("-%d", to)
	default:
		return ""
	}
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID         string              `json:"paperId"`
	Title           string              `json:"title"`
	Abstract        string              `json:"abstract"`
	Year            int                 `json:"year"`
	PublicationDate string              `json:"publicationDate"`
	URL             string              `json:"url"`
	Authors         []semanticAuthor    `json:"authors"`
	ExternalIDs     semanticExternalIDs `json:"externalIds"`
	OpenAccessPDF   *semanticPDF        `json:"openAccessPdf"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI      string `json:"DOI"`
	ArXiv    string `json:"ArXiv"`
	CorpusID int    `json:"CorpusId"`
}

type semanticPDF struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}
