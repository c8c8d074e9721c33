// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/research-assistant/internal/history"
	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/pkg/types"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		verbose, debug bool
		want           zapcore.Level
	}{
		{false, false, zapcore.WarnLevel},
		{true, false, zapcore.InfoLevel},
		{false, true, zapcore.DebugLevel},
		{true, true, zapcore.DebugLevel},
	}
	for _, tc := range tests {
		l, err := newLogger(tc.verbose, tc.debug)
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(tc.want))
		assert.False(t, l.Core().Enabled(tc.want-1))
	}
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "one two", clip("one\n  two", 10))
	assert.Equal(t, "abcdefg...", clip("abcdefghijklmnop", 10))
}

func TestSearchQueryFromSavedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.yaml")
	require.NoError(t, search.WriteQueryFile(path, search.Query{FreeText: "protein folding", YearFrom: 2020, MaxResults: 7}, nil, 0, nil, nil))
	cfg.Search.MaxResults = 10

	require.NoError(t, searchCmd.Flags().Set("rerun", path))
	require.NoError(t, searchCmd.Flags().Set("year-to", "2023"))
	t.Cleanup(func() {
		searchCmd.Flags().Set("rerun", "")
		searchCmd.Flags().Lookup("year-to").Changed = false
	})

	q, err := searchQuery(searchCmd, nil)

	require.NoError(t, err)
	assert.Equal(t, search.Query{FreeText: "protein folding", YearFrom: 2020, YearTo: 2023, MaxResults: 7}, q)
}

func TestSearchQueryRequiresText(t *testing.T) {
	_, err := searchQuery(searchCmd, nil)
	assert.Error(t, err)
}

func TestFormatYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, formatYAML([]types.ResearchItem{{Title: "Attention"}}, &buf))
	assert.Contains(t, buf.String(), "title: Attention")
}

func TestPrintTranscript(t *testing.T) {
	var buf bytes.Buffer
	printTranscript(&buf, history.Transcript{
		Session: history.Session{ID: "s1", Query: "q", State: "completed", StartedAt: time.Now()},
		Turns: []types.Turn{
			{Role: types.RoleUser, Content: "find papers"},
			{Role: types.RoleAssistant, Calls: []types.PlannedCall{{ID: "c1", Tool: "search_arxiv", Arguments: `{"query":"x"}`}}},
			{Role: types.RoleTool, Tool: "search_arxiv", Content: "{}", Failed: true},
			{Role: types.RoleAssistant, Content: "Nothing."},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "[user] find papers")
	assert.Contains(t, out, `[call c1] search_arxiv {"query":"x"}`)
	assert.Contains(t, out, "[tool search_arxiv failed] {}")
	assert.Contains(t, out, "[assistant]\nNothing.")
}
