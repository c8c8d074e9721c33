// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/research-assistant/pkg/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType IdentifierType
		wantNorm string
	}{
		{"arxiv bare", "2301.07041", TypeArxiv, "2301.07041"},
		{"arxiv prefixed", "arXiv:2301.07041", TypeArxiv, "2301.07041"},
		{"arxiv versioned", "2301.07041v2", TypeArxiv, "2301.07041v2"},
		{"arxiv five digit", "2301.12345", TypeArxiv, "2301.12345"},
		{"arxiv abs url", "https://arxiv.org/abs/2301.07041v3", TypeArxiv, "2301.07041v3"},
		{"arxiv doi", "10.48550/arXiv.2301.07041", TypeArxiv, "2301.07041"},
		{"doi simple", "10.1145/1234567.1234568", TypeDOI, "10.1145/1234567.1234568"},
		{"doi nature", "10.1038/s41586-024-07487-w", TypeDOI, "10.1038/s41586-024-07487-w"},
		{"doi url", "https://doi.org/10.1038/nature14539", TypeDOI, "10.1038/nature14539"},
		{"url https", "https://example.com/paper.pdf", TypeURL, "https://example.com/paper.pdf"},
		{"url http", "http://example.com/paper.pdf", TypeURL, "http://example.com/paper.pdf"},
		{"unknown bare word", "not-an-id", TypeUnknown, "not-an-id"},
		{"unknown empty", "", TypeUnknown, ""},
		{"whitespace trimmed", "  2301.07041  ", TypeArxiv, "2301.07041"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotNorm := Classify(tt.input)
			if gotType != tt.wantType {
				t.Errorf("Classify(%q) type = %v, want %v", tt.input, gotType, tt.wantType)
			}
			if gotNorm != tt.wantNorm {
				t.Errorf("Classify(%q) norm = %q, want %q", tt.input, gotNorm, tt.wantNorm)
			}
		})
	}
}

func TestPDFURL(t *testing.T) {
	tests := []struct {
		name    string
		idType  IdentifierType
		norm    string
		wantURL string
	}{
		{"arxiv", TypeArxiv, "2301.07041", arxivPDFBase + "2301.07041"},
		{"doi", TypeDOI, "10.1145/1234567", doiBase + "10.1145/1234567"},
		{"url passthrough", TypeURL, "https://example.com/paper.pdf", "https://example.com/paper.pdf"},
		{"unknown empty", TypeUnknown, "foo", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantURL, PDFURL(tt.idType, tt.norm))
		})
	}
}

func TestCandidatesOrder(t *testing.T) {
	p := types.PaperRef{
		Title:  "Paper",
		URL:    "https://arxiv.org/abs/2301.07041",
		PDFURL: "https://example.com/p.pdf",
		DOI:    "10.1145/1234567",
	}

	got := candidates(p)

	var sources []string
	for _, c := range got {
		sources = append(sources, c.source)
	}
	assert.Equal(t, []string{"pdf_url", "arxiv", "doi"}, sources)
	assert.Equal(t, "2301.07041", got[1].id)
}

func TestCandidatesLandingURLOnly(t *testing.T) {
	got := candidates(types.PaperRef{Title: "Paper", URL: "https://example.com/landing"})

	assert.Len(t, got, 1)
	assert.Equal(t, "url", got[0].source)
}

func TestCandidatesNone(t *testing.T) {
	assert.Empty(t, candidates(types.PaperRef{Title: "Only a title"}))
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"plain", "Attention Is All You Need", "Attention Is All You Need"},
		{"illegal characters", `A/B: "C" <D>?`, "A B C D"},
		{"collapses whitespace", "  Deep \t  Learning \n", "Deep Learning"},
		{"leading dots", "...hidden", "hidden"},
		{"empty", "", "untitled"},
		{"only illegal", `/\:*?`, "untitled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FileName(tt.title))
		})
	}
}

func TestFileNameTruncates(t *testing.T) {
	got := FileName(strings.Repeat("ü", 100))
	assert.Equal(t, maxFileNameRunes, len([]rune(got)))
}
