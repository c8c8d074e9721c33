// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package intent turns model output into a final answer or a validated
// set of tool calls.
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/policy"
	"github.com/pdiddy/research-assistant/internal/tools"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Registry is the part of the tool registry the client needs.
type Registry interface {
	Specs() []tools.ToolSpec
	Has(name string) bool
	Validate(raw tools.RawCall) (tools.ToolCall, error)
}

// Options adjust a single Next call.
type Options struct {
	// ForceFinal withholds tool definitions so the model must answer.
	ForceFinal bool

	// Hint is appended as a corrective user message.
	Hint string
}

// Rejection is a planned call whose arguments failed validation.
type Rejection struct {
	Call tools.RawCall
	Err  *tools.ArgumentValidationError
}

// Intent is the parsed outcome of one inference.
type Intent struct {
	// Final is the answer text when the model called no tools.
	Final string

	// Text is any prose the model wrote alongside its tool calls.
	Text string

	Calls    []tools.ToolCall
	Rejected []Rejection

	// Planned lists every call of the plan, valid or rejected, in model
	// order, as recorded on the planning turn.
	Planned []types.PlannedCall
}

// IsFinal reports whether the intent is a final answer.
func (in Intent) IsFinal() bool {
	return len(in.Calls) == 0 && len(in.Rejected) == 0
}

// Config configures a Client.
type Config struct {
	Prompt      PromptData
	MaxAttempts int
	MaxTokens   int
	Logger      *zap.Logger
}

// Client asks the model for its next step.
type Client struct {
	model       llm.Model
	reg         Registry
	system      string
	maxAttempts int
	maxTokens   int
	logger      *zap.Logger
}

// New renders the system prompt and returns a client.
func New(model llm.Model, reg Registry, cfg Config) (*Client, error) {
	system, err := renderPrompt(cfg.Prompt)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		model:       model,
		reg:         reg,
		system:      system,
		maxAttempts: cfg.MaxAttempts,
		maxTokens:   cfg.MaxTokens,
		logger:      logger.Named("intent"),
	}, nil
}

// SystemPrompt returns the rendered system prompt.
func (c *Client) SystemPrompt() string { return c.system }

// ToolDefs converts registry specs to model tool definitions.
func ToolDefs(specs []tools.ToolSpec) []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(specs))
	for _, s := range specs {
		defs = append(defs, llm.ToolDef{Name: s.Name, Description: s.Description, Parameters: tools.Schema(s)})
	}
	return defs
}

// Next runs one inference over turns and parses the reply. Transient
// inference failures are retried; anything else is returned.
func (c *Client) Next(ctx context.Context, turns []types.Turn, opts Options) (Intent, error) {
	req := llm.Request{
		System:    c.system,
		Messages:  BuildMessages(turns),
		MaxTokens: c.maxTokens,
	}
	if opts.Hint != "" {
		req.Messages = append(req.Messages, llm.Message{Role: llm.RoleUser, Content: opts.Hint})
	}
	if !opts.ForceFinal {
		req.Tools = ToolDefs(c.reg.Specs())
	}

	var resp llm.Response
	err := policy.Do(ctx, c.maxAttempts, func(ctx context.Context) error {
		var err error
		resp, err = c.model.Complete(ctx, req)
		if err != nil {
			c.logger.Debug("inference failed", zap.String("model", c.model.Name()), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return Intent{}, fmt.Errorf("inference: %w", err)
	}

	if opts.ForceFinal {
		if resp.Text == "" {
			return Intent{}, parseError("empty answer when tools were withheld", "", nil)
		}
		return Intent{Final: resp.Text}, nil
	}
	return c.parse(resp)
}

// parse interprets a model response.
func (c *Client) parse(resp llm.Response) (Intent, error) {
	var (
		raws []tools.RawCall
		err  error
	)
	if len(resp.ToolCalls) > 0 {
		raws, err = nativeCalls(resp.ToolCalls)
		if err != nil {
			return Intent{}, err
		}
	} else {
		var found bool
		raws, found, err = textCalls(resp.Text)
		if err != nil {
			return Intent{}, err
		}
		if !found {
			if resp.Text == "" {
				return Intent{}, parseError("empty reply with no tool calls", "", nil)
			}
			return Intent{Final: resp.Text}, nil
		}
		// The call block is not prose for the user.
		resp.Text = ""
	}

	out := Intent{Text: resp.Text}
	seen := make(map[string]bool, len(raws))
	for _, raw := range raws {
		if !c.reg.Has(raw.Name) {
			return Intent{}, parseError(fmt.Sprintf("unknown tool %q", raw.Name), raw.Name, nil)
		}
		if raw.ID == "" || seen[raw.ID] {
			raw.ID = "call_" + uuid.NewString()
		}
		seen[raw.ID] = true

		depErr := splitDependsOn(&raw)
		args, _ := json.Marshal(raw.Arguments)
		out.Planned = append(out.Planned, types.PlannedCall{ID: raw.ID, Tool: raw.Name, Arguments: string(args)})

		if depErr != nil {
			out.Rejected = append(out.Rejected, Rejection{Call: raw, Err: depErr})
			continue
		}
		call, err := c.reg.Validate(raw)
		if err != nil {
			var ave *tools.ArgumentValidationError
			if !errors.As(err, &ave) {
				ave = &tools.ArgumentValidationError{Tool: raw.Name, Reason: err.Error()}
			}
			c.logger.Info("rejected tool call", zap.String("tool", raw.Name), zap.String("param", ave.Param), zap.String("reason", ave.Reason))
			out.Rejected = append(out.Rejected, Rejection{Call: raw, Err: ave})
			continue
		}
		out.Calls = append(out.Calls, call)
	}
	return out, nil
}
