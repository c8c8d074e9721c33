// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/internal/tools"
)

const page = `<!doctype html><html><head><title> Attention   Paper </title>
<style>body{color:red}</style></head>
<body>
<header>Site header</header>
<nav>Home | About</nav>
<main><p>Main fallback.</p></main>
<article><h1>Attention</h1><p>Transformers use <b>self-attention</b>.</p>
<script>var x = 1;</script><aside>Related links</aside><p>Second paragraph.</p></article>
<footer>Copyright</footer>
</body></html>`

func newServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, *Extractor) {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts, &Extractor{Client: ts.Client(), UserAgent: "test/0.1"}
}

func TestFetchHTMLPrefersArticle(t *testing.T) {
	ts, e := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	})

	doc, err := e.Fetch(context.Background(), ts.URL, 0)

	require.NoError(t, err)
	assert.Equal(t, "Attention Paper", doc.Title)
	assert.Equal(t, "Attention Transformers use self-attention. Second paragraph.", doc.Text)
	assert.Equal(t, "text/html", doc.ContentType)
	assert.False(t, doc.Truncated)
}

func TestFetchTruncates(t *testing.T) {
	ts, e := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, strings.Repeat("é", 500))
	})

	doc, err := e.Fetch(context.Background(), ts.URL, 120)

	require.NoError(t, err)
	assert.True(t, doc.Truncated)
	assert.Equal(t, 120, len([]rune(doc.Text)))
}

func TestFetchNonTextReportsMetadata(t *testing.T) {
	ts, e := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7 binary"))
	})

	doc, err := e.Fetch(context.Background(), ts.URL, 0)

	require.NoError(t, err)
	assert.Empty(t, doc.Text)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, int64(15), doc.Bytes)
}

func TestFetchFailureClasses(t *testing.T) {
	tests := []struct {
		name string
		code int
		want tools.ErrorClass
	}{
		{"rate limited", http.StatusTooManyRequests, tools.ClassTransient},
		{"server error", http.StatusBadGateway, tools.ClassTransient},
		{"not found", http.StatusNotFound, tools.ClassFatal},
		{"forbidden", http.StatusForbidden, tools.ClassFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, e := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			})
			_, err := e.Fetch(context.Background(), ts.URL, 0)
			require.Error(t, err)
			assert.Equal(t, tt.want, tools.Classify(err))
		})
	}
}

func TestFetchTooLarge(t *testing.T) {
	old := MaxBodyBytes
	MaxBodyBytes = 64
	defer func() { MaxBodyBytes = old }()

	ts, e := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(strings.Repeat("x", 200)))
	})

	_, err := e.Fetch(context.Background(), ts.URL, 0)

	var fe *tools.FatalAdapterError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, tools.KindTooLarge, fe.Kind)
}

func TestFetchUnreachableIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	e := &Extractor{Client: http.DefaultClient}
	_, err := e.Fetch(context.Background(), url, 0)

	require.Error(t, err)
	assert.Equal(t, tools.ClassTransient, tools.Classify(err))
}

func TestToolThroughRegistry(t *testing.T) {
	ts, e := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page)
	})
	reg := tools.NewRegistry(nil)
	require.NoError(t, reg.Register(NewTool(e, nil)))

	_, err := reg.Validate(tools.RawCall{Name: ToolName, Arguments: map[string]any{"url": "ftp://x"}})
	require.Error(t, err)

	call, err := reg.Validate(tools.RawCall{ID: "c", Name: ToolName, Arguments: map[string]any{"url": ts.URL}})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxChars, call.Values.Int("max_chars"))

	res, err := reg.Dispatch(context.Background(), call)
	require.NoError(t, err)
	doc, ok := res.Payload.(Document)
	require.True(t, ok)
	assert.Equal(t, "Attention Paper", doc.Title)
}
