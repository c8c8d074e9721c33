// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/pkg/types"
)

func TestToCSLItem(t *testing.T) {
	tests := []struct {
		name     string
		item     types.ResearchItem
		wantType string
		wantNum  string
	}{
		{"preprint", types.ResearchItem{Key: "arxiv:2301.1", ArxivID: "2301.1"}, "article", "arXiv:2301.1"},
		{"journal", types.ResearchItem{Key: "doi:10.1/x", DOI: "10.1/x"}, "article-journal", ""},
		{"web page", types.ResearchItem{Key: "title:x|0"}, "webpage", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toCSLItem(tt.item)
			if got.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", got.Type, tt.wantType)
			}
			if got.Number != tt.wantNum {
				t.Errorf("Number = %q, want %q", got.Number, tt.wantNum)
			}
			if got.ID != tt.item.Key {
				t.Errorf("ID = %q, want %q", got.ID, tt.item.Key)
			}
		})
	}
}

func TestToCSLItemAuthorsAndYear(t *testing.T) {
	got := toCSLItem(types.ResearchItem{Authors: []string{"Ada Lovelace", "Plato", " "}, Year: 1843})

	require.Len(t, got.Author, 2)
	assert.Equal(t, CSLName{Given: "Ada", Family: "Lovelace"}, got.Author[0])
	assert.Equal(t, CSLName{Literal: "Plato"}, got.Author[1])
	require.NotNil(t, got.Issued)
	assert.Equal(t, [][]int{{1843}}, got.Issued.DateParts)
}

func TestFormatTable(t *testing.T) {
	var buf bytes.Buffer
	items := []types.ResearchItem{
		{Rank: 1, Title: "With PDF", Year: 2024, PDFURL: "https://x.pdf", Provenance: []string{"search_arxiv", "search_web"}},
		{Rank: 2, Title: "No Year"},
	}
	require.NoError(t, FormatTable(items, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "search_arxiv,search_web")
	assert.Contains(t, lines[1], "yes")
	assert.Contains(t, lines[2], "-")
}

func TestQueryFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.yaml")
	items := Merge([]types.SearchResult{{Title: "Paper", Year: 2020, Source: ToolArxiv}})

	require.NoError(t, WriteQueryFile(path, Query{FreeText: "paper", YearFrom: 2019}, []string{ToolArxiv}, 1, items, nil))

	qf, err := ReadQueryFile(path)
	require.NoError(t, err)
	assert.Equal(t, Query{FreeText: "paper", YearFrom: 2019, MaxResults: DefaultMaxResults}, qf.Query.ToQuery())
	assert.Equal(t, items, qf.Results)
	assert.Equal(t, 1, qf.Summary.Merged)
}
