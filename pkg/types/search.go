// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the research assistant:
// search results and their merged form, paper references, conversation
// turns, reference-manager collections, and configuration.
package types

// SearchResult is one entity returned by a search backend. Every field is
// always present (empty when the source does not provide it) so merging
// never has to special-case missing keys.
type SearchResult struct {
	// Title is the paper or page title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Authors lists the authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Year is the publication year, 0 when unknown.
	Year int `json:"year" yaml:"year"`

	// URL is the landing page of the result.
	URL string `json:"url" yaml:"url"`

	// PDFURL is a direct document link when the source offers one.
	PDFURL string `json:"pdf_url" yaml:"pdf_url"`

	// Abstract is the paper abstract or the page snippet.
	Abstract string `json:"abstract" yaml:"abstract"`

	// DOI is the bare DOI without resolver prefix.
	DOI string `json:"doi" yaml:"doi"`

	// ArxivID is the arXiv identifier without version suffix.
	ArxivID string `json:"arxiv_id" yaml:"arxiv_id"`

	// SourceID is the backend's own identifier (paperId, OpenAlex work ID).
	SourceID string `json:"source_id" yaml:"source_id"`

	// Source names the adapter that produced the result (e.g. "search_arxiv").
	Source string `json:"source" yaml:"source"`
}

// ResearchItem is the canonical, deduplicated representation of one paper
// after results from several adapters have been merged.
type ResearchItem struct {
	// Key is the identity key: "doi:<doi>", "arxiv:<id>", or
	// "title:<normalized title>|<year>".
	Key string `json:"key" yaml:"key"`

	Title    string   `json:"title" yaml:"title"`
	Authors  []string `json:"authors" yaml:"authors"`
	Year     int      `json:"year" yaml:"year"`
	URL      string   `json:"url" yaml:"url"`
	PDFURL   string   `json:"pdf_url" yaml:"pdf_url"`
	Abstract string   `json:"abstract" yaml:"abstract"`
	DOI      string   `json:"doi" yaml:"doi"`
	ArxivID  string   `json:"arxiv_id" yaml:"arxiv_id"`

	// Provenance lists the adapters that returned this item, sorted.
	Provenance []string `json:"provenance" yaml:"provenance"`

	// Rank is the 1-based position in the ranked output.
	Rank int `json:"rank" yaml:"rank"`
}

// HasDocumentLink reports whether the item carries a direct PDF link.
func (r ResearchItem) HasDocumentLink() bool {
	return r.PDFURL != ""
}
