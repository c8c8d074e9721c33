// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// CSLItem represents a bibliographic entry in CSL (Citation Style Language)
// format. The field names and structure follow the CSL-JSON/CSL-YAML schema
// so that output is consumable by Pandoc and reference managers.
type CSLItem struct {
	ID       string    `yaml:"id"`
	Type     string    `yaml:"type"`
	Title    string    `yaml:"title"`
	Author   []CSLName `yaml:"author,omitempty"`
	Abstract string    `yaml:"abstract,omitempty"`
	Issued   *CSLDate  `yaml:"issued,omitempty"`
	DOI      string    `yaml:"DOI,omitempty"`
	URL      string    `yaml:"URL,omitempty"`
	Number   string    `yaml:"number,omitempty"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// FormatCSL writes ranked items as a CSL-YAML list to w.
func FormatCSL(items []types.ResearchItem, w io.Writer) error {
	out := make([]CSLItem, len(items))
	for i, it := range items {
		out[i] = toCSLItem(it)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(out)
}

// FormatJSON writes ranked items as indented JSON.
func FormatJSON(items []types.ResearchItem, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// FormatTable writes a human-readable ranked table.
func FormatTable(items []types.ResearchItem, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tYEAR\tPDF\tSOURCES\tTITLE")
	for _, it := range items {
		year := "-"
		if it.Year > 0 {
			year = fmt.Sprint(it.Year)
		}
		pdf := ""
		if it.HasDocumentLink() {
			pdf = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", it.Rank, year, pdf, strings.Join(it.Provenance, ","), truncate(it.Title, 90))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// toCSLItem converts a ResearchItem to a CSLItem. Preprints become
// "article" with the arXiv ID as number; everything else with a DOI is a
// journal article.
func toCSLItem(it types.ResearchItem) CSLItem {
	item := CSLItem{
		ID:       it.Key,
		Type:     "webpage",
		Title:    it.Title,
		Abstract: it.Abstract,
		DOI:      it.DOI,
		URL:      it.URL,
	}
	switch {
	case it.ArxivID != "":
		item.Type = "article"
		item.Number = "arXiv:" + it.ArxivID
	case it.DOI != "":
		item.Type = "article-journal"
	}

	for _, a := range it.Authors {
		if n := parseAuthorName(a); n != (CSLName{}) {
			item.Author = append(item.Author, n)
		}
	}
	if it.Year > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{it.Year}}}
	}
	return item
}

// parseAuthorName splits a full name string into CSL family/given parts.
// It splits on the last space: everything before is given, the last token
// is family. Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}
