// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// PaperRef is the paper description a model passes to tools that act on a
// specific paper: the document fetcher and the reference manager.
type PaperRef struct {
	Title    string   `json:"title" yaml:"title"`
	URL      string   `json:"url,omitempty" yaml:"url,omitempty"`
	PDFURL   string   `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`
	Authors  []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Year     int      `json:"year,omitempty" yaml:"year,omitempty"`
	Abstract string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	DOI      string   `json:"doi,omitempty" yaml:"doi,omitempty"`
}

// Paper holds metadata and file paths for a downloaded paper. It is
// written next to the PDF as a YAML sidecar.
type Paper struct {
	// ID is the file stem derived from the title (e.g. "Attention Is All You Need").
	ID string `json:"id" yaml:"id"`

	// SourceURL is the URL from which the paper was downloaded.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// PDFPath is the local filesystem path to the downloaded PDF.
	PDFPath string `json:"pdf_path" yaml:"pdf_path"`

	Title    string   `json:"title" yaml:"title"`
	Authors  []string `json:"authors" yaml:"authors"`
	Year     int      `json:"year,omitempty" yaml:"year,omitempty"`
	Abstract string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	DOI      string   `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Source identifies how the PDF URL was resolved ("pdf_url", "arxiv", "doi", "openalex", "url").
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Bytes is the size of the downloaded file.
	Bytes int64 `json:"bytes" yaml:"bytes"`

	// DownloadedAt is when the file was written.
	DownloadedAt time.Time `json:"downloaded_at" yaml:"downloaded_at"`
}
