// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Values holds validated, normalized argument values keyed by parameter
// name: string, int, bool, []string, types.PaperRef, []types.PaperRef.
type Values map[string]any

// String returns a string value or "".
func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

// Int returns an integer value or 0.
func (v Values) Int(name string) int {
	n, _ := v[name].(int)
	return n
}

// Bool returns a boolean value or false.
func (v Values) Bool(name string) bool {
	b, _ := v[name].(bool)
	return b
}

// Strings returns a string list value.
func (v Values) Strings(name string) []string {
	s, _ := v[name].([]string)
	return s
}

// Paper returns a paper value and whether it was supplied.
func (v Values) Paper(name string) (types.PaperRef, bool) {
	p, ok := v[name].(types.PaperRef)
	return p, ok
}

// Papers returns a paper list value.
func (v Values) Papers(name string) []types.PaperRef {
	p, _ := v[name].([]types.PaperRef)
	return p
}

// checkValue validates raw against p and returns the normalized value.
// It never coerces between JSON types.
func checkValue(p Param, raw any) (any, string) {
	switch p.Type {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, "expected string, got " + jsonType(raw)
		}
		if p.Required && strings.TrimSpace(s) == "" {
			return nil, "must not be empty"
		}
		return s, ""

	case TypeInteger:
		n, reason := toInt(raw)
		if reason != "" {
			return nil, reason
		}
		if p.Max > 0 && (n < p.Min || n > p.Max) {
			return nil, fmt.Sprintf("must be between %d and %d", p.Min, p.Max)
		}
		return n, ""

	case TypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, "expected boolean, got " + jsonType(raw)
		}
		return b, ""

	case TypeEnum:
		s, ok := raw.(string)
		if !ok {
			return nil, "expected string, got " + jsonType(raw)
		}
		if !slices.Contains(p.Choices, s) {
			return nil, fmt.Sprintf("must be one of %s", strings.Join(p.Choices, ", "))
		}
		return s, ""

	case TypePath:
		s, ok := raw.(string)
		if !ok {
			return nil, "expected path string, got " + jsonType(raw)
		}
		if reason := checkPath(s); reason != "" {
			return nil, reason
		}
		return s, ""

	case TypeURL:
		s, ok := raw.(string)
		if !ok {
			return nil, "expected URL string, got " + jsonType(raw)
		}
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, "expected absolute http(s) URL"
		}
		return s, ""

	case TypeStringList:
		list, ok := raw.([]any)
		if !ok {
			return nil, "expected array of strings, got " + jsonType(raw)
		}
		out := make([]string, 0, len(list))
		for i, el := range list {
			s, ok := el.(string)
			if !ok {
				return nil, fmt.Sprintf("element %d: expected string, got %s", i, jsonType(el))
			}
			out = append(out, s)
		}
		return out, ""

	case TypePaper:
		return toPaper(raw)

	case TypePapers:
		list, ok := raw.([]any)
		if !ok {
			return nil, "expected array of paper objects, got " + jsonType(raw)
		}
		if p.Required && len(list) == 0 {
			return nil, "must not be empty"
		}
		out := make([]types.PaperRef, 0, len(list))
		for i, el := range list {
			paper, reason := toPaper(el)
			if reason != "" {
				return nil, fmt.Sprintf("element %d: %s", i, reason)
			}
			out = append(out, paper.(types.PaperRef))
		}
		return out, ""
	}
	return nil, "unsupported parameter type " + string(p.Type)
}

func toInt(raw any) (int, string) {
	var f float64
	switch n := raw.(type) {
	case float64:
		f = n
	case int:
		return n, ""
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, "expected integer, got " + n.String()
		}
		return int(i), ""
	default:
		return 0, "expected integer, got " + jsonType(raw)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Sprintf("expected integer, got %v", f)
	}
	return int(f), ""
}

func checkPath(s string) string {
	switch {
	case strings.TrimSpace(s) == "":
		return "must not be empty"
	case strings.ContainsRune(s, 0):
		return "must not contain NUL bytes"
	}
	if filepath.IsAbs(s) {
		return ""
	}
	clean := filepath.Clean(s)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "must not escape the task folder"
	}
	return ""
}

var paperFields = map[string]bool{
	"title": true, "url": true, "pdf_url": true, "authors": true,
	"year": true, "abstract": true, "doi": true,
}

func toPaper(raw any) (any, string) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, "expected paper object, got " + jsonType(raw)
	}
	for k := range obj {
		if !paperFields[k] {
			return nil, fmt.Sprintf("unknown paper field %q", k)
		}
	}
	var p types.PaperRef
	str := func(key string, dst *string) string {
		v, ok := obj[key]
		if !ok || v == nil {
			return ""
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Sprintf("%s: expected string, got %s", key, jsonType(v))
		}
		*dst = s
		return ""
	}
	for key, dst := range map[string]*string{
		"title": &p.Title, "url": &p.URL, "pdf_url": &p.PDFURL,
		"abstract": &p.Abstract, "doi": &p.DOI,
	} {
		if reason := str(key, dst); reason != "" {
			return nil, reason
		}
	}
	if strings.TrimSpace(p.Title) == "" {
		return nil, "title is required"
	}
	if v, ok := obj["year"]; ok && v != nil {
		n, reason := toInt(v)
		if reason != "" {
			return nil, "year: " + reason
		}
		p.Year = n
	}
	if v, ok := obj["authors"]; ok && v != nil {
		list, ok := v.([]any)
		if !ok {
			return nil, "authors: expected array of strings, got " + jsonType(v)
		}
		for i, el := range list {
			s, ok := el.(string)
			if !ok {
				return nil, fmt.Sprintf("authors[%d]: expected string, got %s", i, jsonType(el))
			}
			p.Authors = append(p.Authors, s)
		}
	}
	return p, ""
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// ResolvePath joins a path parameter onto root and rejects results outside
// root. Absolute paths are accepted only when they already lie inside it.
func ResolvePath(root, p string) (string, error) {
	if reason := checkPath(p); reason != "" {
		return "", &ArgumentValidationError{Reason: fmt.Sprintf("path %q %s", p, reason)}
	}
	root = filepath.Clean(root)
	full := p
	if !filepath.IsAbs(p) {
		full = filepath.Join(root, p)
	}
	full = filepath.Clean(full)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &ArgumentValidationError{Reason: fmt.Sprintf("path %q is outside the task folder", p)}
	}
	return full, nil
}
