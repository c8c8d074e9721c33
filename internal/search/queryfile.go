// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// QueryFile is the on-disk form of a search and its merged results, so a
// search can be reloaded later without re-querying the APIs.
type QueryFile struct {
	Query   QueryParams          `yaml:"query"`
	Tools   []string             `yaml:"tools"`
	Results []types.ResearchItem `yaml:"results"`
	Summary QuerySummary         `yaml:"summary"`
}

// QueryParams stores the query parameters in a serializable form.
type QueryParams struct {
	FreeText   string `yaml:"free_text,omitempty"`
	YearFrom   int    `yaml:"year_from,omitempty"`
	YearTo     int    `yaml:"year_to,omitempty"`
	MaxResults int    `yaml:"max_results"`
}

// QuerySummary stores result statistics and a timestamp.
type QuerySummary struct {
	Raw       int       `yaml:"raw"`
	Merged    int       `yaml:"merged"`
	Errors    []string  `yaml:"errors,omitempty"`
	Timestamp time.Time `yaml:"timestamp"`
}

// WriteQueryFile saves a query and its merged results to a YAML file.
func WriteQueryFile(path string, query Query, tools []string, raw int, items []types.ResearchItem, errs []string) error {
	qf := QueryFile{
		Query: QueryParams{
			FreeText:   query.FreeText,
			YearFrom:   query.YearFrom,
			YearTo:     query.YearTo,
			MaxResults: query.limit(),
		},
		Tools:   tools,
		Results: items,
		Summary: QuerySummary{
			Raw:       raw,
			Merged:    len(items),
			Errors:    errs,
			Timestamp: time.Now().UTC(),
		},
	}

	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved query file from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	return &qf, nil
}

// ToQuery converts stored QueryParams back into a Query.
func (p QueryParams) ToQuery() Query {
	return Query{FreeText: p.FreeText, YearFrom: p.YearFrom, YearTo: p.YearTo, MaxResults: p.MaxResults}
}
