// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract fetches web pages and reduces them to their title and
// main text for the model to read.
package extract

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/internal/tools"
)

// MaxBodyBytes is the largest response body the extractor reads. Declared
// as a var so tests can lower it.
var MaxBodyBytes int64 = 10 << 20

// DefaultMaxChars is the text budget when the caller gives none.
const DefaultMaxChars = 4000

// Document is the extracted content of one URL. Text is empty for
// non-text content types; ContentType and Bytes describe them instead.
type Document struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Text        string `json:"text,omitempty"`
	ContentType string `json:"content_type"`
	Bytes       int64  `json:"size_bytes"`
	Truncated   bool   `json:"truncated"`
}

// Extractor fetches and reduces pages.
type Extractor struct {
	Client    *http.Client
	UserAgent string
}

// Fetch downloads rawURL and extracts its text, truncated to maxChars
// runes. Transport failures and 429/5xx statuses are transient; other
// statuses and oversized bodies are fatal.
func (e *Extractor) Fetch(ctx context.Context, rawURL string, maxChars int) (Document, error) {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	doc := Document{URL: rawURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return doc, tools.Fatal(tools.KindInvalid, "fetch", err)
	}
	req.Header.Set("User-Agent", e.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := e.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return doc, ctx.Err()
		}
		return doc, tools.Transient("fetch", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp, "fetch", http.StatusOK, http.StatusNonAuthoritativeInfo); err != nil {
		return doc, tools.StatusFailure("fetch", resp.StatusCode, err)
	}

	if resp.ContentLength > MaxBodyBytes {
		return doc, tools.Fatalf(tools.KindTooLarge, "fetch", "body is %d bytes, limit %d", resp.ContentLength, MaxBodyBytes)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return doc, tools.Transient("read body", err)
	}
	if int64(len(body)) > MaxBodyBytes {
		return doc, tools.Fatalf(tools.KindTooLarge, "fetch", "body exceeds %d bytes", MaxBodyBytes)
	}

	ct := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(ct)
	doc.ContentType = mediaType
	doc.Bytes = int64(len(body))

	switch {
	case isHTML(mediaType):
		title, text, err := extractHTML(body, ct)
		if err != nil {
			return doc, tools.Fatal(tools.KindUnsupportedFormat, "parse html", err)
		}
		doc.Title = title
		doc.Text, doc.Truncated = truncate(text, maxChars)
	case isText(mediaType):
		text := string(body)
		if !utf8.ValidString(text) {
			text = strings.ToValidUTF8(text, "�")
		}
		doc.Text, doc.Truncated = truncate(strings.TrimSpace(text), maxChars)
	}
	return doc, nil
}

// An absent content type is sniffed as HTML, as browsers do for pages.
func isHTML(mediaType string) bool {
	return mediaType == "" || strings.Contains(mediaType, "html")
}

func isText(mediaType string) bool {
	return strings.HasPrefix(mediaType, "text/") ||
		mediaType == "application/json" ||
		strings.HasSuffix(mediaType, "+json") ||
		mediaType == "application/xml" ||
		strings.HasSuffix(mediaType, "+xml")
}

// skipped elements carry no readable content.
var skipped = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "svg": true, "iframe": true,
	"nav": true, "header": true, "footer": true, "aside": true, "form": true,
}

// block elements end a run of text.
var block = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "pre": true, "blockquote": true,
}

// extractHTML returns the page title and the text of its main content:
// the first <article>, else <main>, else <body>.
func extractHTML(body []byte, contentType string) (string, string, error) {
	r, err := charset.NewReader(strings.NewReader(string(body)), contentType)
	if err != nil {
		return "", "", fmt.Errorf("decoding charset: %w", err)
	}
	root, err := html.Parse(r)
	if err != nil {
		return "", "", err
	}

	var title string
	if t := find(root, "title"); t != nil {
		title = collapse(text(t))
	}

	main := find(root, "article")
	if main == nil {
		main = find(root, "main")
	}
	if main == nil {
		main = find(root, "body")
	}
	if main == nil {
		main = root
	}
	return title, collapse(text(main)), nil
}

func find(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := find(c, tag); f != nil {
			return f
		}
	}
	return nil
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipped[n.Data] {
				return
			}
			if block[n.Data] {
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && block[n.Data] {
			b.WriteByte(' ')
		}
	}
	walk(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	r := []rune(s)
	return string(r[:n]), true
}
