// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package policy wraps tool dispatch with bounded retries on transient
// failures and per-tool fallback chains. Every failure is normalized into
// a ToolResult; Invoke never returns an error.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/tools"
)

// Backoff defaults. Tests override these to avoid real sleeps.
var (
	BaseDelay = time.Second
	MaxDelay  = 30 * time.Second
)

// DefaultMaxAttempts is used when Options.MaxAttempts is not positive.
const DefaultMaxAttempts = 3

// DefaultFallbacks is the fallback chain used by the assistant: scholarly
// search degrades to preprints, then to the open web.
var DefaultFallbacks = map[string][]string{
	"search_scholar": {"search_arxiv", "search_web"},
	"search_arxiv":   {"search_web"},
}

// Registry is the subset of *tools.Registry the policy needs.
type Registry interface {
	Lookup(name string) (tools.ToolSpec, bool)
	Validate(raw tools.RawCall) (tools.ToolCall, error)
	Dispatch(ctx context.Context, call tools.ToolCall) (tools.ToolResult, error)
}

// Options configures a Policy.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Fallbacks maps a tool name to the tools tried, in order, once it
	// has failed.
	Fallbacks map[string][]string

	Logger *zap.Logger
}

// Policy applies retry and fallback rules around Registry.Dispatch.
type Policy struct {
	reg         Registry
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	fallbacks   map[string][]string
	logger      *zap.Logger
}

// New creates a Policy over reg.
func New(reg Registry, opts Options) *Policy {
	p := &Policy{
		reg:         reg,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		maxDelay:    opts.MaxDelay,
		fallbacks:   opts.Fallbacks,
		logger:      opts.Logger,
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = DefaultMaxAttempts
	}
	if p.baseDelay <= 0 {
		p.baseDelay = BaseDelay
	}
	if p.maxDelay <= 0 {
		p.maxDelay = MaxDelay
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	p.logger = p.logger.Named("policy")
	return p
}

// Invoke dispatches call with retries, then walks its fallback chain. The
// returned result has OK=false only when the call and every fallback
// failed; Error then lists each cause.
func (p *Policy) Invoke(ctx context.Context, call tools.ToolCall) tools.ToolResult {
	res, err := p.attempt(ctx, call)
	if err == nil {
		return res
	}

	switch tools.Classify(err) {
	case tools.ClassValidation, tools.ClassCanceled:
		return res
	}

	causes := []string{res.Error}
	attempts := res.Attempts
	for _, name := range p.fallbacks[call.Name] {
		if ctx.Err() != nil {
			break
		}
		spec, ok := p.reg.Lookup(name)
		if !ok {
			continue
		}
		fb, verr := p.reg.Validate(tools.RawCall{ID: call.ID, Name: name, Arguments: rawArguments(spec, call.Values)})
		if verr != nil {
			p.logger.Debug("fallback not applicable",
				zap.String("tool", call.Name), zap.String("fallback", name), zap.Error(verr))
			continue
		}

		p.logger.Info("trying fallback",
			zap.String("tool", call.Name), zap.String("fallback", name), zap.String("cause", res.Error))

		fres, ferr := p.attempt(ctx, fb)
		attempts += fres.Attempts
		if ferr == nil {
			fres.CallID = call.ID
			fres.Tool = call.Name
			fres.ServedBy = name
			fres.Attempts = attempts
			return fres
		}
		causes = append(causes, fres.Error)
	}

	return tools.ToolResult{
		CallID:   call.ID,
		Tool:     call.Name,
		ServedBy: call.Name,
		Error:    strings.Join(causes, "; "),
		Attempts: attempts,
		Items:    res.Items,
	}
}

// attempt runs one tool with the retry budget. The returned error is the
// last cause when the result is not OK.
func (p *Policy) attempt(ctx context.Context, call tools.ToolCall) (tools.ToolResult, error) {
	for n := 1; ; n++ {
		res, err := p.dispatch(ctx, call)
		res.Attempts = n
		if err == nil {
			return res, nil
		}

		class := tools.Classify(err)
		if class != tools.ClassTransient || n >= p.maxAttempts {
			p.logger.Warn("tool call failed",
				zap.String("tool", call.Name),
				zap.String("class", class.String()),
				zap.Int("attempt", n),
				zap.Error(err))
			return res, err
		}

		delay := p.backoff(n)
		p.logger.Info("retrying tool call",
			zap.String("tool", call.Name),
			zap.Int("attempt", n),
			zap.Duration("backoff", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			res.Error = ctx.Err().Error()
			return res, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// dispatch converts adapter panics into fatal failures.
func (p *Policy) dispatch(ctx context.Context, call tools.ToolCall) (res tools.ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &tools.FatalAdapterError{Tool: call.Name, Kind: tools.KindInvalid, Err: fmt.Errorf("panic: %v", r)}
			res = tools.ToolResult{CallID: call.ID, Tool: call.Name, ServedBy: call.Name, Error: err.Error()}
		}
	}()
	return p.reg.Dispatch(ctx, call)
}

func (p *Policy) backoff(attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt-1))) * p.baseDelay
	if d > p.maxDelay {
		d = p.maxDelay
	}
	return d
}

// rawArguments turns normalized values back into their JSON form, keeping
// only the parameters the fallback declares, so it validates them against
// its own spec.
func rawArguments(spec tools.ToolSpec, v tools.Values) map[string]any {
	kept := make(tools.Values, len(v))
	for name, val := range v {
		if _, ok := spec.Param(name); ok {
			kept[name] = val
		}
	}
	data, err := json.Marshal(kept)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
