// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package zotero talks to the Zotero Web API v3 and exposes collection
// and item operations as the reference-manager tool.
package zotero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/internal/tools"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// apiBase is the Zotero Web API root. Declared as a var so tests can
// substitute an httptest server.
var apiBase = "https://api.zotero.org"

const (
	apiVersion = "3"
	pageSize   = 100
)

// Client is a Zotero Web API client for one user library.
type Client struct {
	HTTP      *http.Client
	APIKey    string
	UserID    string
	UserAgent string
	Logger    *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewClient returns a client for the library of cfg.UserID.
func NewClient(httpClient *http.Client, cfg types.ZoteroConfig, userAgent string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		HTTP:      httpClient,
		APIKey:    cfg.APIKey,
		UserID:    cfg.UserID,
		UserAgent: userAgent,
		Logger:    logger.Named("zotero"),
	}
}

// keyLock returns the mutex serializing work on key.
func (c *Client) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks == nil {
		c.locks = make(map[string]*sync.Mutex)
	}
	m, ok := c.locks[key]
	if !ok {
		m = &sync.Mutex{}
		c.locks[key] = m
	}
	return m
}

func (c *Client) userURL(path string) string {
	return apiBase + "/users/" + url.PathEscape(c.UserID) + path
}

// do sends a request and decodes a JSON response into out when out is
// non-nil. Transport failures are transient; statuses map through
// tools.StatusFailure.
func (c *Client) do(ctx context.Context, op, method, rawURL string, body any, header http.Header, out any, accepted ...int) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, tools.Fatal(tools.KindInvalid, op, err)
	}
	req.Header.Set("Zotero-API-Key", c.APIKey)
	req.Header.Set("Zotero-API-Version", apiVersion)
	req.Header.Set("User-Agent", c.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, 0)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, tools.Transient(op, err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp, "zotero "+op, accepted...); err != nil {
		// A version conflict is resolved by re-reading, so it is worth a retry.
		if resp.StatusCode == http.StatusPreconditionFailed {
			return resp, tools.Transient(op, err)
		}
		return resp, tools.StatusFailure(op, resp.StatusCode, err)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, tools.Fatal(tools.KindInvalid, op, fmt.Errorf("decoding response: %w", err))
		}
	}
	return resp, nil
}

// keyInfo is the /keys/current response.
type keyInfo struct {
	UserID   int    `json:"userID"`
	Username string `json:"username"`
}

// Validate checks that the API key is valid and belongs to UserID.
func (c *Client) Validate(ctx context.Context) error {
	if c.APIKey == "" || c.UserID == "" {
		return tools.Fatalf(tools.KindAuth, "validate", "api key and user id are required")
	}
	var info keyInfo
	if _, err := c.do(ctx, "validate", http.MethodGet, apiBase+"/keys/current", nil, nil, &info); err != nil {
		return err
	}
	if strconv.Itoa(info.UserID) != c.UserID {
		return tools.Fatalf(tools.KindAuth, "validate", "api key belongs to user %d, not %s", info.UserID, c.UserID)
	}
	c.Logger.Debug("credentials valid", zap.String("user", info.Username))
	return nil
}

// collectionRecord is one element of a collections listing.
type collectionRecord struct {
	Key  string `json:"key"`
	Data struct {
		Name string `json:"name"`
		// ParentCollection is false for top-level collections.
		ParentCollection json.RawMessage `json:"parentCollection"`
	} `json:"data"`
}

func (r collectionRecord) collection() types.Collection {
	var parent string
	_ = json.Unmarshal(r.Data.ParentCollection, &parent)
	return types.Collection{Key: r.Key, Name: r.Data.Name, Parent: parent}
}

// ListCollections returns every collection in the library ordered by
// name, then key.
func (c *Client) ListCollections(ctx context.Context) ([]types.Collection, error) {
	out := []types.Collection{}
	for start := 0; ; start += pageSize {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("start", strconv.Itoa(start))

		var page []collectionRecord
		resp, err := c.do(ctx, "list collections", http.MethodGet, c.userURL("/collections")+"?"+q.Encode(), nil, nil, &page)
		if err != nil {
			return nil, err
		}
		for _, r := range page {
			out = append(out, r.collection())
		}
		total, convErr := strconv.Atoi(resp.Header.Get("Total-Results"))
		if len(page) < pageSize || (convErr == nil && start+len(page) >= total) {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// writeResponse is the multi-object write result.
type writeResponse struct {
	Success map[string]string `json:"success"`
	Failed  map[string]struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"failed"`
}

func (w writeResponse) first(op string) (string, error) {
	if key, ok := w.Success["0"]; ok && key != "" {
		return key, nil
	}
	if f, ok := w.Failed["0"]; ok {
		return "", tools.StatusFailure(op, f.Code, errors.New(f.Message))
	}
	return "", tools.Fatalf(tools.KindInvalid, op, "no object key in response")
}

// CreateCollection returns the collection called name under parent,
// creating it when missing. An empty parent matches a collection of that
// name anywhere and creates a top-level one. Calls for the same name are
// serialized, so concurrent callers get the same collection.
func (c *Client) CreateCollection(ctx context.Context, name, parent string) (types.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Collection{}, &tools.ArgumentValidationError{Tool: ToolName, Param: "collection_name", Reason: "must not be empty"}
	}

	// Keyed on the name alone: a parent-less call matches any parent.
	m := c.keyLock("collection\x00" + name)
	m.Lock()
	defer m.Unlock()

	existing, err := c.ListCollections(ctx)
	if err != nil {
		return types.Collection{}, err
	}
	for _, col := range existing {
		if col.Name == name && (parent == "" || col.Parent == parent) {
			return col, nil
		}
	}

	var parentField any = false
	if parent != "" {
		parentField = parent
	}
	body := []map[string]any{{"name": name, "parentCollection": parentField}}

	var wr writeResponse
	if _, err := c.do(ctx, "create collection", http.MethodPost, c.userURL("/collections"), body, nil, &wr); err != nil {
		return types.Collection{}, err
	}
	key, err := wr.first("create collection")
	if err != nil {
		return types.Collection{}, err
	}
	c.Logger.Info("created collection", zap.String("name", name), zap.String("key", key))
	return types.Collection{Key: key, Name: name, Parent: parent}, nil
}

type creator struct {
	CreatorType string `json:"creatorType"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Name        string `json:"name,omitempty"`
}

type tag struct {
	Tag string `json:"tag"`
}

// newItem builds a journalArticle item for p.
func newItem(collectionKey string, p types.PaperRef, tags []string) map[string]any {
	creators := []creator{}
	for _, a := range p.Authors {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if i := strings.LastIndex(a, " "); i > 0 {
			creators = append(creators, creator{CreatorType: "author", FirstName: a[:i], LastName: a[i+1:]})
		} else {
			creators = append(creators, creator{CreatorType: "author", Name: a})
		}
	}
	tagList := []tag{}
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			tagList = append(tagList, tag{Tag: t})
		}
	}
	item := map[string]any{
		"itemType":     "journalArticle",
		"title":        p.Title,
		"creators":     creators,
		"abstractNote": p.Abstract,
		"url":          p.URL,
		"DOI":          p.DOI,
		"tags":         tagList,
		"collections":  []string{},
	}
	if p.URL == "" {
		item["url"] = p.PDFURL
	}
	if p.Year > 0 {
		item["date"] = strconv.Itoa(p.Year)
	}
	if collectionKey != "" {
		item["collections"] = []string{collectionKey}
	}
	return item
}

// AddItem creates an item for p in the collection and returns its key.
func (c *Client) AddItem(ctx context.Context, collectionKey string, p types.PaperRef, tags []string) (string, error) {
	var wr writeResponse
	body := []map[string]any{newItem(collectionKey, p, tags)}
	if _, err := c.do(ctx, "add item", http.MethodPost, c.userURL("/items"), body, nil, &wr); err != nil {
		return "", err
	}
	key, err := wr.first("add item")
	if err != nil {
		return "", err
	}
	c.Logger.Info("added item", zap.String("title", p.Title), zap.String("key", key), zap.String("collection", collectionKey))
	return key, nil
}

// itemRecord is the part of an item we read before moving it.
type itemRecord struct {
	Key     string `json:"key"`
	Version int    `json:"version"`
	Data    struct {
		Collections []string `json:"collections"`
	} `json:"data"`
}

// MoveItem makes target the item's only collection. The item's version
// is read first and sent as If-Unmodified-Since-Version, so a concurrent
// edit fails the write instead of being overwritten.
func (c *Client) MoveItem(ctx context.Context, itemKey, target string) error {
	m := c.keyLock("item\x00" + itemKey)
	m.Lock()
	defer m.Unlock()

	itemURL := c.userURL("/items/" + url.PathEscape(itemKey))
	var item itemRecord
	if _, err := c.do(ctx, "move item", http.MethodGet, itemURL, nil, nil, &item); err != nil {
		return err
	}

	h := http.Header{}
	h.Set("If-Unmodified-Since-Version", strconv.Itoa(item.Version))
	body := map[string]any{"collections": []string{target}}
	if _, err := c.do(ctx, "move item", http.MethodPatch, itemURL, body, h, nil, http.StatusNoContent, http.StatusOK); err != nil {
		return err
	}
	c.Logger.Info("moved item",
		zap.String("key", itemKey),
		zap.Strings("from", item.Data.Collections),
		zap.String("to", target))
	return nil
}
