// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notes writes Markdown notes into the task folder.
package notes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/tools"
)

// ToolName is the note writer's tool name.
const ToolName = "markdown_note"

const maxSlugLen = 120

// timestampLayout is used in the Created and Updated lines.
const timestampLayout = "2006-01-02 15:04:05"

// Note describes a written note.
type Note struct {
	Path     string `json:"path"`
	Title    string `json:"title"`
	Created  bool   `json:"created"`
	Appended bool   `json:"appended"`
	Bytes    int64  `json:"size_bytes"`
}

// Writer writes notes under Root. Writes to the same file are serialized.
type Writer struct {
	Root string

	// Now is the clock; nil means time.Now.
	Now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWriter returns a Writer rooted at the task folder.
func NewWriter(root string) *Writer {
	return &Writer{Root: root}
}

func (w *Writer) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}

// lock returns the mutex guarding path.
func (w *Writer) lock(path string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.locks == nil {
		w.locks = make(map[string]*sync.Mutex)
	}
	m, ok := w.locks[path]
	if !ok {
		m = &sync.Mutex{}
		w.locks[path] = m
	}
	return m
}

// Slugify turns a title into a file stem: lowercase letters and digits,
// other runs become single dashes, at most 120 characters, "note" when
// nothing is left.
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if r := []rune(s); len(r) > maxSlugLen {
		s = strings.TrimSuffix(string(r[:maxSlugLen]), "-")
	}
	if s == "" {
		return "note"
	}
	return s
}

// Write creates or extends the note titled title in folder. With append
// false an existing note is replaced.
func (w *Writer) Write(ctx context.Context, folder, title, content string, appendMode bool) (Note, error) {
	dir, err := tools.ResolvePath(w.Root, folder)
	if err != nil {
		return Note{}, err
	}
	path := filepath.Join(dir, Slugify(title)+".md")
	note := Note{Path: path, Title: title}

	m := w.lock(path)
	m.Lock()
	defer m.Unlock()

	if err := ctx.Err(); err != nil {
		return note, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return note, fmt.Errorf("creating note folder: %w", err)
	}

	ts := w.now().Format(timestampLayout)
	_, statErr := os.Stat(path)
	exists := statErr == nil
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return note, fmt.Errorf("checking note: %w", statErr)
	}

	if exists && appendMode {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return note, fmt.Errorf("opening note: %w", err)
		}
		_, werr := fmt.Fprintf(f, "\n\n---\n\n> Updated: %s\n\n%s", ts, content)
		cerr := f.Close()
		if err := errors.Join(werr, cerr); err != nil {
			return note, fmt.Errorf("appending note: %w", err)
		}
		note.Appended = true
	} else {
		body := fmt.Sprintf("# %s\n\n> Created: %s\n\n%s", title, ts, content)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return note, fmt.Errorf("writing note: %w", err)
		}
		note.Created = true
	}

	if info, err := os.Stat(path); err == nil {
		note.Bytes = info.Size()
	}
	return note, nil
}

// Args are the bound arguments of markdown_note.
type Args struct {
	Title   string
	Content string
	Folder  string
	Append  bool
}

// ToolName implements tools.Args.
func (Args) ToolName() string { return ToolName }

// Tool exposes a Writer as the markdown_note adapter.
type Tool struct {
	writer *Writer
	logger *zap.Logger
}

// NewTool returns the note-writer adapter.
func NewTool(w *Writer, logger *zap.Logger) *Tool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tool{writer: w, logger: logger.Named(ToolName)}
}

// Spec implements tools.Adapter.
func (t *Tool) Spec() tools.ToolSpec {
	return tools.ToolSpec{
		Name:        ToolName,
		Description: "Write or extend a Markdown note in the task folder. Notes with the same title share one file.",
		Params: []tools.Param{
			{Name: "title", Type: tools.TypeString, Required: true, Description: "Note title; also names the file."},
			{Name: "content", Type: tools.TypeString, Required: true, Description: "Markdown body."},
			{Name: "folder", Type: tools.TypePath, Default: "notes", Description: "Folder inside the task folder."},
			{Name: "append", Type: tools.TypeBoolean, Default: true,
				Description: "Append to an existing note instead of replacing it."},
		},
		Result: tools.ResultNote,
		Stage:  3,
		Bind: func(v tools.Values) (tools.Args, error) {
			return Args{
				Title:   v.String("title"),
				Content: v.String("content"),
				Folder:  v.String("folder"),
				Append:  v.Bool("append"),
			}, nil
		},
	}
}

// Execute implements tools.Adapter.
func (t *Tool) Execute(ctx context.Context, args tools.Args) (tools.Output, error) {
	a, ok := args.(Args)
	if !ok {
		return tools.Output{}, fmt.Errorf("unexpected args %T", args)
	}
	note, err := t.writer.Write(ctx, a.Folder, a.Title, a.Content, a.Append)
	if err != nil {
		return tools.Output{}, err
	}
	t.logger.Debug("wrote note", zap.String("path", note.Path), zap.Bool("appended", note.Appended))
	return tools.Output{Payload: note}, nil
}
