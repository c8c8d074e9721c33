// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

var t0 = time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *Store, id string, started time.Time, turns ...types.Turn) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.StartSession(ctx, Session{ID: id, Query: "q " + id, TaskFolder: "results/" + id, Model: "fake:m", StartedAt: started}))
	rec := s.Recorder(id)
	for _, turn := range turns {
		require.NoError(t, rec.Record(ctx, turn))
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	seed(t, s, "s1", t0,
		types.Turn{Role: types.RoleUser, Content: "find diffusion papers", Time: t0},
		types.Turn{Role: types.RoleAssistant, Time: t0.Add(time.Second), Calls: []types.PlannedCall{
			{ID: "c1", Tool: "search_arxiv", Arguments: `{"query":"diffusion"}`},
		}},
		types.Turn{Role: types.RoleTool, CallID: "c1", Tool: "search_arxiv", Content: `{"ok":false}`, Failed: true, Time: t0.Add(2 * time.Second)},
		types.Turn{Role: types.RoleAssistant, Content: "Nothing found.", Time: t0.Add(3 * time.Second)},
	)
	require.NoError(t, s.EndSession(ctx, "s1", "completed", 1, t0.Add(time.Minute)))

	tr, err := s.Transcript(ctx, "s1")

	require.NoError(t, err)
	assert.Equal(t, "completed", tr.Session.State)
	assert.Equal(t, 1, tr.Session.UserTurns)
	assert.Equal(t, t0.Add(time.Minute), tr.Session.EndedAt)
	require.Len(t, tr.Turns, 4)
	assert.Equal(t, types.RoleUser, tr.Turns[0].Role)
	assert.Equal(t, []types.PlannedCall{{ID: "c1", Tool: "search_arxiv", Arguments: `{"query":"diffusion"}`}}, tr.Turns[1].Calls)
	assert.True(t, tr.Turns[2].Failed)
	assert.Equal(t, "c1", tr.Turns[2].CallID)
	assert.Equal(t, t0.Add(3*time.Second), tr.Turns[3].Time)
}

func TestSessionsNewestFirst(t *testing.T) {
	s := openMemory(t)
	seed(t, s, "old", t0)
	seed(t, s, "new", t0.Add(time.Hour))
	seed(t, s, "mid", t0.Add(time.Minute))

	all, err := s.Sessions(context.Background(), 0)
	require.NoError(t, err)
	limited, err := s.Sessions(context.Background(), 2)
	require.NoError(t, err)

	var ids []string
	for _, sess := range all {
		ids = append(ids, sess.ID)
	}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)
	assert.Len(t, limited, 2)
	assert.Equal(t, "results/new", all[0].TaskFolder)
}

func TestUnknownSession(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	_, err := s.Transcript(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = s.EndSession(ctx, "nope", "completed", 0, t0)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = s.Append(ctx, "nope", types.Turn{Role: types.RoleUser, Content: "x"})
	assert.Error(t, err, "foreign key must reject turns of unknown sessions")
}

func TestSearch(t *testing.T) {
	s := openMemory(t)
	seed(t, s, "a", t0, types.Turn{Role: types.RoleUser, Content: "Graph Neural Networks for chemistry"})
	seed(t, s, "b", t0.Add(time.Hour),
		types.Turn{Role: types.RoleUser, Content: "unrelated"},
		types.Turn{Role: types.RoleAssistant, Content: "A survey of graph neural networks (2021)."},
	)
	seed(t, s, "c", t0, types.Turn{Role: types.RoleUser, Content: "100% coverage_report"})

	matches, err := s.Search(context.Background(), "graph neural", 0)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "b", matches[0].SessionID)
	assert.Equal(t, 2, matches[0].Seq)
	assert.Equal(t, types.RoleAssistant, matches[0].Role)
	assert.Equal(t, "a", matches[1].SessionID)

	literal, err := s.Search(context.Background(), "0% c", 0)
	require.NoError(t, err)
	require.Len(t, literal, 1)
	assert.Equal(t, "c", literal[0].SessionID)

	none, err := s.Search(context.Background(), "h_n", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSnippet(t *testing.T) {
	content := "aaaaaaaaaa needle bbbbbbbbbb"

	assert.Equal(t, "...aaa needle bbb...", snippet(content, "NEEDLE", 4))
	assert.Equal(t, content, snippet(content, "needle", 100))
}

func TestExportYAML(t *testing.T) {
	s := openMemory(t)
	seed(t, s, "s1", t0, types.Turn{Role: types.RoleUser, Content: "hello", Time: t0})

	var buf bytes.Buffer
	require.NoError(t, s.ExportYAML(context.Background(), "s1", &buf))

	var tr Transcript
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &tr))
	assert.Equal(t, "s1", tr.Session.ID)
	require.Len(t, tr.Turns, 1)
	assert.Equal(t, "hello", tr.Turns[0].Content)
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	seed(t, s, "s1", t0)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	sessions, err := s.Sessions(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}
