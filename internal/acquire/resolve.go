// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// IdentifierType classifies an input identifier.
type IdentifierType int

const (
	TypeUnknown IdentifierType = iota
	TypeArxiv
	TypeDOI
	TypeURL
)

func (t IdentifierType) String() string {
	switch t {
	case TypeArxiv:
		return "arxiv"
	case TypeDOI:
		return "doi"
	case TypeURL:
		return "url"
	default:
		return "unknown"
	}
}

// Base URLs for identifier resolution. Declared as vars so tests can
// substitute httptest servers.
var (
	arxivPDFBase    = "https://arxiv.org/pdf/"
	arxivAPIBase    = "https://export.arxiv.org/api/query"
	doiBase         = "https://doi.org/"
	crossrefAPIBase = "https://api.crossref.org/works/"
)

var (
	// arxivPattern matches arXiv IDs: "2301.07041", "arXiv:2301.07041", "2301.07041v2".
	arxivPattern = regexp.MustCompile(`^(?i:arXiv:)?(\d{4}\.\d{4,5}(?:v\d+)?)$`)

	// doiPattern matches DOIs: "10.1145/1234567.1234568".
	doiPattern = regexp.MustCompile(`^10\.\d{4,9}/[^\s]+$`)

	arxivURLPattern = regexp.MustCompile(`arxiv\.org/(?:abs|pdf)/(\d{4}\.\d{4,5}(?:v\d+)?)`)
	arxivDOIPattern = regexp.MustCompile(`(?i)^10\.48550/arxiv\.(\d{4}\.\d{4,5}(?:v\d+)?)$`)
	doiURLPattern   = regexp.MustCompile(`doi\.org/(10\.\d{4,9}/[^\s?#]+)`)
)

// Classify determines the identifier type and returns the normalized form.
// For arXiv, it strips the optional "arXiv:" prefix; DOIs given as
// doi.org URLs are unwrapped.
func Classify(identifier string) (IdentifierType, string) {
	identifier = strings.TrimSpace(identifier)

	if m := arxivPattern.FindStringSubmatch(identifier); m != nil {
		return TypeArxiv, m[1]
	}
	if doiPattern.MatchString(identifier) {
		if m := arxivDOIPattern.FindStringSubmatch(identifier); m != nil {
			return TypeArxiv, m[1]
		}
		return TypeDOI, identifier
	}
	if u, err := url.Parse(identifier); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		if m := arxivURLPattern.FindStringSubmatch(identifier); m != nil {
			return TypeArxiv, m[1]
		}
		if m := doiURLPattern.FindStringSubmatch(identifier); m != nil {
			return Classify(m[1])
		}
		return TypeURL, identifier
	}
	return TypeUnknown, identifier
}

// PDFURL returns the download URL for the identifier. For arXiv, this is
// the arxiv.org PDF endpoint. For DOI, this is the doi.org resolver
// (the HTTP client follows redirects). For direct URLs, it returns as-is.
func PDFURL(idType IdentifierType, normalized string) string {
	switch idType {
	case TypeArxiv:
		return arxivPDFBase + normalized
	case TypeDOI:
		return doiBase + normalized
	case TypeURL:
		return normalized
	default:
		return ""
	}
}

// candidate is one way to obtain a paper's PDF.
type candidate struct {
	idType IdentifierType
	id     string
	source string
}

// candidates lists download routes for p, most direct first: the explicit
// PDF link, an arXiv identifier, a DOI, then the landing URL.
func candidates(p types.PaperRef) []candidate {
	var out []candidate
	seen := make(map[string]bool)
	add := func(c candidate) {
		if c.idType == TypeUnknown || seen[c.source+c.id] {
			return
		}
		seen[c.source+c.id] = true
		out = append(out, c)
	}

	if p.PDFURL != "" {
		add(candidate{idType: TypeURL, id: p.PDFURL, source: "pdf_url"})
	}
	for _, s := range []string{p.DOI, p.URL, p.PDFURL} {
		if t, n := Classify(s); t == TypeArxiv {
			add(candidate{idType: t, id: n, source: "arxiv"})
		}
	}
	for _, s := range []string{p.DOI, p.URL} {
		if t, n := Classify(s); t == TypeDOI {
			add(candidate{idType: t, id: n, source: "doi"})
		}
	}
	if t, n := Classify(p.URL); t == TypeURL {
		add(candidate{idType: t, id: n, source: "url"})
	}
	return out
}

const maxFileNameRunes = 80

var illegalFileChars = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]`)

// FileName turns a paper title into a safe PDF file stem: characters that
// are illegal on common filesystems become spaces, whitespace collapses,
// and the result is cut to 80 characters ("untitled" when nothing is
// left).
func FileName(title string) string {
	s := illegalFileChars.ReplaceAllString(title, " ")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimLeft(s, ".")
	if utf8.RuneCountInString(s) > maxFileNameRunes {
		s = strings.TrimSpace(string([]rune(s)[:maxFileNameRunes]))
	}
	if s == "" {
		return "untitled"
	}
	return s
}
