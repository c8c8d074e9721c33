// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists conversation transcripts in SQLite so past
// sessions can be listed, searched, and replayed.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// ErrSessionNotFound is returned for an unknown session ID.
var ErrSessionNotFound = errors.New("session not found")

// Session is the summary row of one conversation.
type Session struct {
	ID         string    `json:"id" yaml:"id"`
	Query      string    `json:"query" yaml:"query"`
	TaskFolder string    `json:"task_folder" yaml:"task_folder"`
	Model      string    `json:"model" yaml:"model"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	EndedAt    time.Time `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	State      string    `json:"state" yaml:"state"`
	UserTurns  int       `json:"user_turns" yaml:"user_turns"`
}

// Transcript is a session with its turns, as exported.
type Transcript struct {
	Session Session      `json:"session" yaml:"session"`
	Turns   []types.Turn `json:"turns" yaml:"turns"`
}

// Match is a turn whose content matched a search.
type Match struct {
	SessionID string     `json:"session_id" yaml:"session_id"`
	Seq       int        `json:"seq" yaml:"seq"`
	Role      types.Role `json:"role" yaml:"role"`
	Snippet   string     `json:"snippet" yaml:"snippet"`
}

// Store is the transcript database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	dsn := "file::memory:?_foreign_keys=on"
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == MemoryPath {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			query TEXT,
			task_folder TEXT,
			model TEXT,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			state TEXT,
			user_turns INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool TEXT,
			call_id TEXT,
			calls TEXT,
			failed INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// StartSession inserts the session row. StartedAt defaults to now.
func (s *Store) StartSession(ctx context.Context, sess Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, query, task_folder, model, started_at, state)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Query, sess.TaskFolder, sess.Model, formatTime(sess.StartedAt), sess.State,
	)
	if err != nil {
		return fmt.Errorf("inserting session %s: %w", sess.ID, err)
	}
	return nil
}

// EndSession records how a session finished.
func (s *Store) EndSession(ctx context.Context, id, state string, userTurns int, end time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, state = ?, user_turns = ? WHERE id = ?`,
		formatTime(end), state, userTurns, id,
	)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("updating session %s: %w", id, ErrSessionNotFound)
	}
	return nil
}

// Append stores t as the next turn of the session.
func (s *Store) Append(ctx context.Context, sessionID string, t types.Turn) error {
	var calls sql.NullString
	if len(t.Calls) > 0 {
		data, err := json.Marshal(t.Calls)
		if err != nil {
			return fmt.Errorf("encoding planned calls: %w", err)
		}
		calls = sql.NullString{String: string(data), Valid: true}
	}
	failed := 0
	if t.Failed {
		failed = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (session_id, seq, role, content, tool, call_id, calls, failed, created_at)
		 SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?, ?, ?
		 FROM turns WHERE session_id = ?`,
		sessionID, string(t.Role), t.Content, t.Tool, t.CallID, calls, failed, formatTime(t.Time), sessionID,
	)
	if err != nil {
		return fmt.Errorf("appending turn to %s: %w", sessionID, err)
	}
	return nil
}

// Recorder returns a recorder appending to one session.
func (s *Store) Recorder(sessionID string) *Recorder {
	return &Recorder{store: s, sessionID: sessionID}
}

// Recorder appends turns of one session.
type Recorder struct {
	store     *Store
	sessionID string
}

// Record implements conversation.Recorder.
func (r *Recorder) Record(ctx context.Context, t types.Turn) error {
	return r.store.Append(ctx, r.sessionID, t)
}

const sessionColumns = `id, query, task_folder, model, started_at, ended_at, state, user_turns`

func scanSession(scan func(...any) error) (Session, error) {
	var (
		sess                        Session
		query, folder, model, state sql.NullString
		started, ended              sql.NullString
	)
	if err := scan(&sess.ID, &query, &folder, &model, &started, &ended, &state, &sess.UserTurns); err != nil {
		return Session{}, err
	}
	sess.Query = query.String
	sess.TaskFolder = folder.String
	sess.Model = model.String
	sess.State = state.String
	sess.StartedAt = parseTime(started)
	sess.EndedAt = parseTime(ended)
	return sess, nil
}

// Sessions lists sessions, newest first. limit <= 0 lists all.
func (s *Store) Sessions(ctx context.Context, limit int) ([]Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC, id`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Session returns one session row.
func (s *Store) Session(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("reading session %s: %w", id, err)
	}
	return sess, nil
}

// Transcript returns a session and its turns in order.
func (s *Store) Transcript(ctx context.Context, id string) (Transcript, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return Transcript{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, tool, call_id, calls, failed, created_at
		 FROM turns WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return Transcript{}, fmt.Errorf("reading turns of %s: %w", id, err)
	}
	defer rows.Close()

	tr := Transcript{Session: sess}
	for rows.Next() {
		var (
			t                   types.Turn
			role                string
			tool, callID, calls sql.NullString
			created             sql.NullString
			failed              int
		)
		if err := rows.Scan(&role, &t.Content, &tool, &callID, &calls, &failed, &created); err != nil {
			return Transcript{}, fmt.Errorf("scanning turn: %w", err)
		}
		t.Role = types.Role(role)
		t.Tool = tool.String
		t.CallID = callID.String
		t.Failed = failed != 0
		t.Time = parseTime(created)
		if calls.Valid && calls.String != "" {
			if err := json.Unmarshal([]byte(calls.String), &t.Calls); err != nil {
				return Transcript{}, fmt.Errorf("decoding planned calls: %w", err)
			}
		}
		tr.Turns = append(tr.Turns, t)
	}
	return tr, rows.Err()
}

// Search finds turns containing text, case-insensitively, newest session
// first.
func (s *Store) Search(ctx context.Context, text string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(strings.ToLower(text)) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.session_id, t.seq, t.role, t.content
		 FROM turns t JOIN sessions s ON s.id = t.session_id
		 WHERE lower(t.content) LIKE ? ESCAPE '\'
		 ORDER BY s.started_at DESC, t.seq
		 LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching history: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var (
			m       Match
			role    string
			content string
		)
		if err := rows.Scan(&m.SessionID, &m.Seq, &role, &content); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		m.Role = types.Role(role)
		m.Snippet = snippet(content, text, 80)
		out = append(out, m)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// snippet returns up to width runes of content on each side of the first
// occurrence of term.
func snippet(content, term string, width int) string {
	runes := []rune(content)
	lower := []rune(strings.ToLower(content))
	needle := []rune(strings.ToLower(term))

	at := -1
	for i := 0; i+len(needle) <= len(lower); i++ {
		if string(lower[i:i+len(needle)]) == string(needle) {
			at = i
			break
		}
	}
	if at < 0 {
		at = 0
	}
	start := max(at-width, 0)
	end := min(at+len(needle)+width, len(runes))

	out := strings.Join(strings.Fields(string(runes[start:end])), " ")
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out += "..."
	}
	return out
}

// ExportYAML writes one transcript as YAML.
func (s *Store) ExportYAML(ctx context.Context, id string, w io.Writer) error {
	tr, err := s.Transcript(ctx, id)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(tr); err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes one transcript as indented JSON.
func (s *Store) ExportJSON(ctx context.Context, id string, w io.Writer) error {
	tr, err := s.Transcript(ctx, id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tr); err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}
	return nil
}
