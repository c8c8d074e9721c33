// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

var paperSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title":    map[string]any{"type": "string"},
		"url":      map[string]any{"type": "string"},
		"pdf_url":  map[string]any{"type": "string"},
		"authors":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"year":     map[string]any{"type": "integer"},
		"abstract": map[string]any{"type": "string"},
		"doi":      map[string]any{"type": "string"},
	},
	"required": []string{"title"},
}

// Schema renders spec's parameters as a JSON Schema object for the
// inference service.
func Schema(spec ToolSpec) map[string]any {
	props := make(map[string]any, len(spec.Params))
	required := []string{}
	for _, p := range spec.Params {
		props[p.Name] = paramSchema(p)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func paramSchema(p Param) map[string]any {
	var s map[string]any
	switch p.Type {
	case TypeInteger:
		s = map[string]any{"type": "integer"}
		if p.Max > 0 {
			s["minimum"] = p.Min
			s["maximum"] = p.Max
		}
	case TypeBoolean:
		s = map[string]any{"type": "boolean"}
	case TypeEnum:
		s = map[string]any{"type": "string", "enum": p.Choices}
	case TypeURL:
		s = map[string]any{"type": "string", "format": "uri"}
	case TypeStringList:
		s = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	case TypePaper:
		s = cloneSchema(paperSchema)
	case TypePapers:
		s = map[string]any{"type": "array", "items": cloneSchema(paperSchema)}
	default:
		s = map[string]any{"type": "string"}
	}
	if p.Description != "" {
		s["description"] = p.Description
	}
	if p.Default != nil {
		s["default"] = p.Default
	}
	return s
}

func cloneSchema(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
