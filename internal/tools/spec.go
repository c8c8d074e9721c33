// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tools declares the tool contract shared by every capability
// adapter: typed parameter specs, validated calls, normalized results, and
// the registry that validates and dispatches calls.
package tools

import (
	"context"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// ParamType is the semantic type of a tool parameter.
type ParamType string

const (
	TypeString     ParamType = "string"
	TypeInteger    ParamType = "integer"
	TypeBoolean    ParamType = "boolean"
	TypeEnum       ParamType = "enum"
	TypePath       ParamType = "path"
	TypeURL        ParamType = "url"
	TypeStringList ParamType = "string_list"
	TypePaper      ParamType = "paper"
	TypePapers     ParamType = "papers"
)

// Param declares one tool parameter.
type Param struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string

	// Default is applied when an optional parameter is absent. Its Go type
	// must match the normalized value type (string, int, bool, []string).
	Default any

	// Choices lists the allowed values of an enum parameter.
	Choices []string

	// Min and Max bound integer parameters when Max > 0.
	Min, Max int
}

// ResultKind describes the shape of a tool's payload.
type ResultKind string

const (
	ResultItems     ResultKind = "items"
	ResultDocument  ResultKind = "document"
	ResultFiles     ResultKind = "files"
	ResultReference ResultKind = "reference"
	ResultNote      ResultKind = "note"
)

// Args is the typed argument struct a tool's Bind function produces. Each
// tool has its own concrete type.
type Args interface {
	ToolName() string
}

// ToolSpec declares a tool. It is immutable once registered.
type ToolSpec struct {
	Name        string
	Description string
	Params      []Param
	Result      ResultKind

	// Stage orders calls inside one plan: a call waits for every earlier
	// call with a lower stage (search 0, fetch 1, read 2, file 3).
	Stage int

	// Cacheable calls are read-only and may be answered from earlier
	// identical calls in the same session.
	Cacheable bool

	// Bind converts validated values into the tool's Args. It may reject
	// combinations the per-parameter checks cannot express.
	Bind func(Values) (Args, error)
}

// Param returns the named parameter spec.
func (s ToolSpec) Param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// RawCall is a tool invocation as parsed from model output, before
// validation.
type RawCall struct {
	ID        string
	Name      string
	Arguments map[string]any
	DependsOn []string
}

// ToolCall is a validated invocation ready for dispatch.
type ToolCall struct {
	ID     string
	Name   string
	Values Values
	Args   Args

	// DependsOn lists IDs of calls in the same plan that must finish first.
	DependsOn []string
}

// Output is what an adapter returns on success.
type Output struct {
	Payload any
	Items   []types.SearchResult
}

// ToolResult is the normalized outcome of one call.
type ToolResult struct {
	CallID string `json:"call_id"`
	Tool   string `json:"tool"`

	// ServedBy names the tool that produced the payload; it differs from
	// Tool when a fallback answered.
	ServedBy string `json:"served_by"`

	OK       bool                 `json:"ok"`
	Payload  any                  `json:"payload,omitempty"`
	Items    []types.SearchResult `json:"items"`
	Error    string               `json:"error,omitempty"`
	Attempts int                  `json:"attempts"`
}

// Adapter wraps one external capability behind the uniform call contract.
type Adapter interface {
	Spec() ToolSpec
	Execute(ctx context.Context, args Args) (Output, error)
}
