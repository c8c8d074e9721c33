// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// openAlexSearchBase is the OpenAlex Works search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexSearchBase = "https://api.openalex.org/works"

// OpenAlexBackend queries the OpenAlex API.
type OpenAlexBackend struct {
	Client    *http.Client
	UserAgent string
	// Email is sent as mailto parameter for polite pool access.
	Email string
}

// Name returns the backend identifier.
func (b *OpenAlexBackend) Name() string { return OpenAlexName }

// Search queries the OpenAlex API.
func (b *OpenAlexBackend) Search(ctx context.Context, query Query) ([]types.SearchResult, error) {
	searchText := query.terms()
	if searchText == "" {
		return nil, fmt.Errorf("empty OpenAlex query")
	}

	perPage := query.limit()
	if perPage > 200 {
		perPage = 200
	}
	params := url.Values{
		"search":   {searchText},
		"per_page": {strconv.Itoa(perPage)},
		"page":     {"1"},
	}

	var filters []string
	if query.YearFrom > 0 {
		filters = append(filters, fmt.Sprintf("from_publication_date:%04d-01-01", query.YearFrom))
	}
	if query.YearTo > 0 {
		filters = append(filters, fmt.Sprintf("to_publication_date:%04d-12-31", query.YearTo))
	}
	if len(filters) > 0 {
		params.Set("filter", strings.Join(filters, ","))
	}
	if b.Email != "" {
		params.Set("mailto", b.Email)
	}

	resp, err := get(ctx, b.Client, "OpenAlex API", openAlexSearchBase+"?"+params.Encode(), b.UserAgent, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var oar openAlexResponse
	if err := json.NewDecoder(resp.Body).Decode(&oar); err != nil {
		return nil, fmt.Errorf("parsing OpenAlex response: %w", err)
	}

	results := make([]types.SearchResult, 0, len(oar.Results))
	for _, work := range oar.Results {
		r := types.SearchResult{
			Title:    strings.TrimSpace(work.Title),
			Abstract: reconstructAbstract(work.AbstractInvertedIndex),
			Year:     work.PublicationYear,
			DOI:      strings.TrimPrefix(work.DOI, "https://doi.org/"),
			SourceID: work.ID,
			Source:   b.Name(),
		}
		for _, authorship := range work.Authorships {
			if authorship.Author.DisplayName != "" {
				r.Authors = append(r.Authors, authorship.Author.DisplayName)
			}
		}

		switch {
		case work.PrimaryLocation != nil && work.PrimaryLocation.LandingPageURL != "":
			r.URL = work.PrimaryLocation.LandingPageURL
		case work.DOI != "":
			r.URL = work.DOI
		default:
			r.URL = work.ID
		}
		switch {
		case work.BestOALocation != nil && work.BestOALocation.PDFURL != "":
			r.PDFURL = work.BestOALocation.PDFURL
		case work.PrimaryLocation != nil && work.PrimaryLocation.PDFURL != "":
			r.PDFURL = work.PrimaryLocation.PDFURL
		}
		results = append(results, r)
	}
	return results, nil
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DOI                   string               `json:"doi"`
	PublicationYear       int                  `json:"publication_year"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	PrimaryLocation       *openAlexLocation    `json:"primary_location"`
	BestOALocation        *openAlexLocation    `json:"best_oa_location"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type openAlexLocation struct {
	LandingPageURL string `json:"landing_page_url"`
	PDFURL         string `json:"pdf_url"`
}
