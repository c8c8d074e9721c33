// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package zotero

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/tools"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// ToolName is the reference manager's tool name.
const ToolName = "zotero"

// Actions.
const (
	ActionCreateCollection = "create_collection"
	ActionAddItem          = "add_item"
	ActionMoveItem         = "move_item"
	ActionListCollections  = "list_collections"
)

// Args are the bound arguments of the zotero tool.
type Args struct {
	Action           string
	CollectionName   string
	CollectionKey    string
	ParentCollection string
	ItemKey          string
	Paper            *types.PaperRef
	Papers           []types.PaperRef
	Tags             []string
}

// ToolName implements tools.Args.
func (Args) ToolName() string { return ToolName }

// ItemResult is the payload of add_item and move_item.
type ItemResult struct {
	ItemKey       string `json:"item_key"`
	CollectionKey string `json:"collection_key,omitempty"`
	Title         string `json:"title,omitempty"`
}

// BulkResult is the payload of add_item with a papers list.
type BulkResult struct {
	Added  int          `json:"added"`
	Total  int          `json:"total"`
	Items  []ItemResult `json:"items"`
	Failed []string     `json:"failed,omitempty"`
}

// CollectionList is the payload of list_collections.
type CollectionList struct {
	Collections []types.Collection `json:"collections"`
	Count       int                `json:"count"`
}

// Tool exposes a Client as the reference-manager adapter.
type Tool struct {
	client            *Client
	defaultCollection string
	logger            *zap.Logger
}

// NewTool returns the reference-manager adapter. defaultCollection names
// the collection used when add_item or move_item names none.
func NewTool(c *Client, defaultCollection string, logger *zap.Logger) *Tool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tool{client: c, defaultCollection: defaultCollection, logger: logger.Named(ToolName)}
}

// Spec implements tools.Adapter.
func (t *Tool) Spec() tools.ToolSpec {
	return tools.ToolSpec{
		Name: ToolName,
		Description: "Manage the Zotero library: create_collection (collection_name, optional parent_collection), " +
			"add_item (paper or papers, optional collection_key or collection_name, tags), " +
			"move_item (item_key and collection_key or collection_name), list_collections.",
		Params: []tools.Param{
			{Name: "action", Type: tools.TypeEnum, Required: true,
				Choices: []string{ActionCreateCollection, ActionAddItem, ActionMoveItem, ActionListCollections}},
			{Name: "collection_name", Type: tools.TypeString, Description: "Collection name; created when missing."},
			{Name: "collection_key", Type: tools.TypeString, Description: "Key of an existing collection."},
			{Name: "parent_collection", Type: tools.TypeString, Description: "Parent collection key or name."},
			{Name: "item_key", Type: tools.TypeString, Description: "Key of the item to move."},
			{Name: "paper", Type: tools.TypePaper, Description: "Paper to add."},
			{Name: "papers", Type: tools.TypePapers, Description: "Several papers to add to the same collection."},
			{Name: "tags", Type: tools.TypeStringList, Description: "Tags for the new item."},
		},
		Result: tools.ResultReference,
		Stage:  3,
		Bind:   t.bind,
	}
}

func (t *Tool) bind(v tools.Values) (tools.Args, error) {
	a := Args{
		Action:           v.String("action"),
		CollectionName:   v.String("collection_name"),
		CollectionKey:    v.String("collection_key"),
		ParentCollection: v.String("parent_collection"),
		ItemKey:          v.String("item_key"),
		Papers:           v.Papers("papers"),
		Tags:             v.Strings("tags"),
	}
	if p, ok := v.Paper("paper"); ok {
		a.Paper = &p
	}

	missing := func(param string) error {
		return &tools.ArgumentValidationError{Tool: ToolName, Param: param, Reason: "required for " + a.Action}
	}
	switch a.Action {
	case ActionCreateCollection:
		if a.CollectionName == "" {
			return nil, missing("collection_name")
		}
	case ActionAddItem:
		if a.Paper == nil && len(a.Papers) == 0 {
			return nil, missing("paper")
		}
	case ActionMoveItem:
		if a.ItemKey == "" {
			return nil, missing("item_key")
		}
		if a.CollectionKey == "" && a.CollectionName == "" && t.defaultCollection == "" {
			return nil, missing("collection_key")
		}
	}
	return a, nil
}

// Execute implements tools.Adapter.
func (t *Tool) Execute(ctx context.Context, args tools.Args) (tools.Output, error) {
	a, ok := args.(Args)
	if !ok {
		return tools.Output{}, fmt.Errorf("unexpected args %T", args)
	}

	switch a.Action {
	case ActionCreateCollection:
		parent, err := t.resolveParent(ctx, a.ParentCollection)
		if err != nil {
			return tools.Output{}, err
		}
		col, err := t.client.CreateCollection(ctx, a.CollectionName, parent)
		if err != nil {
			return tools.Output{}, err
		}
		return tools.Output{Payload: col}, nil

	case ActionAddItem:
		key, err := t.targetCollection(ctx, a, false)
		if err != nil {
			return tools.Output{}, err
		}
		if len(a.Papers) > 0 {
			return t.addAll(ctx, key, a)
		}
		itemKey, err := t.client.AddItem(ctx, key, *a.Paper, a.Tags)
		if err != nil {
			return tools.Output{}, err
		}
		return tools.Output{Payload: ItemResult{ItemKey: itemKey, CollectionKey: key, Title: a.Paper.Title}}, nil

	case ActionMoveItem:
		key, err := t.targetCollection(ctx, a, true)
		if err != nil {
			return tools.Output{}, err
		}
		if err := t.client.MoveItem(ctx, a.ItemKey, key); err != nil {
			return tools.Output{}, err
		}
		return tools.Output{Payload: ItemResult{ItemKey: a.ItemKey, CollectionKey: key}}, nil

	case ActionListCollections:
		cols, err := t.client.ListCollections(ctx)
		if err != nil {
			return tools.Output{}, err
		}
		return tools.Output{Payload: CollectionList{Collections: cols, Count: len(cols)}}, nil
	}
	return tools.Output{}, &tools.ArgumentValidationError{Tool: ToolName, Param: "action", Reason: "unknown action " + a.Action}
}

// addAll files every paper of a bulk add_item. Individual failures are
// reported in the payload; the call fails only when nothing was added.
func (t *Tool) addAll(ctx context.Context, key string, a Args) (tools.Output, error) {
	papers := a.Papers
	if a.Paper != nil {
		papers = append([]types.PaperRef{*a.Paper}, papers...)
	}
	res := BulkResult{Total: len(papers), Items: []ItemResult{}}
	var lastErr error
	for _, p := range papers {
		itemKey, err := t.client.AddItem(ctx, key, p, a.Tags)
		if err != nil {
			if ctx.Err() != nil {
				return tools.Output{}, err
			}
			t.logger.Warn("adding item failed", zap.String("title", p.Title), zap.Error(err))
			res.Failed = append(res.Failed, fmt.Sprintf("%s: %v", p.Title, err))
			lastErr = err
			continue
		}
		res.Added++
		res.Items = append(res.Items, ItemResult{ItemKey: itemKey, CollectionKey: key, Title: p.Title})
	}
	if res.Added == 0 && lastErr != nil {
		return tools.Output{}, lastErr
	}
	return tools.Output{Payload: res}, nil
}

// targetCollection resolves the collection an item goes to: an explicit
// key, else a name (created when missing), else the default collection.
// An empty key means the library root and is only allowed when required
// is false.
func (t *Tool) targetCollection(ctx context.Context, a Args, required bool) (string, error) {
	if a.CollectionKey != "" {
		return a.CollectionKey, nil
	}
	name := a.CollectionName
	if name == "" {
		name = t.defaultCollection
	}
	if name == "" {
		if required {
			return "", &tools.ArgumentValidationError{Tool: ToolName, Param: "collection_key", Reason: "no collection given and no default configured"}
		}
		return "", nil
	}
	col, err := t.client.CreateCollection(ctx, name, "")
	if err != nil {
		return "", err
	}
	return col.Key, nil
}

// resolveParent accepts a collection key or a name and returns a key.
func (t *Tool) resolveParent(ctx context.Context, parent string) (string, error) {
	if parent == "" {
		return "", nil
	}
	cols, err := t.client.ListCollections(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range cols {
		if c.Key == parent {
			return c.Key, nil
		}
	}
	col, err := t.client.CreateCollection(ctx, parent, "")
	if err != nil {
		return "", err
	}
	return col.Key, nil
}
