// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Registry maps tool names to adapters. It is populated once at startup
// and read concurrently afterwards.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	specs    map[string]ToolSpec
	order    []string
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		adapters: make(map[string]Adapter),
		specs:    make(map[string]ToolSpec),
		logger:   logger.Named("tools"),
	}
}

// Register adds an adapter. It fails with *DuplicateToolError when the
// name is already taken.
func (r *Registry) Register(a Adapter) error {
	spec := a.Spec()
	if spec.Name == "" {
		return fmt.Errorf("registering tool: empty name")
	}
	if spec.Bind == nil {
		return fmt.Errorf("registering tool %s: no Bind function", spec.Name)
	}
	seen := make(map[string]bool, len(spec.Params))
	for _, p := range spec.Params {
		if seen[p.Name] {
			return fmt.Errorf("registering tool %s: duplicate parameter %q", spec.Name, p.Name)
		}
		seen[p.Name] = true
		if p.Type == TypeEnum && len(p.Choices) == 0 {
			return fmt.Errorf("registering tool %s: enum parameter %q has no choices", spec.Name, p.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[spec.Name]; exists {
		return &DuplicateToolError{Name: spec.Name}
	}
	r.adapters[spec.Name] = a
	r.specs[spec.Name] = spec
	r.order = append(r.order, spec.Name)

	r.logger.Debug("registered tool", zap.String("tool", spec.Name), zap.Int("stage", spec.Stage))
	return nil
}

// MustRegister registers an adapter and panics on error. Use it for the
// static tool set built at startup.
func (r *Registry) MustRegister(a Adapter) {
	if err := r.Register(a); err != nil {
		panic(err)
	}
}

// Lookup returns the spec for name.
func (r *Registry) Lookup(name string) (ToolSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	return spec, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Specs returns all specs in registration order.
func (r *Registry) Specs() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specs[name])
	}
	return out
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Validate checks raw against its spec and binds it to typed Args. Every
// required parameter must be present, every value must match its declared
// type, and undeclared parameters are rejected.
func (r *Registry) Validate(raw RawCall) (ToolCall, error) {
	spec, ok := r.Lookup(raw.Name)
	if !ok {
		return ToolCall{}, &ArgumentValidationError{Tool: raw.Name, Reason: "unknown tool"}
	}

	declared := make(map[string]bool, len(spec.Params))
	for _, p := range spec.Params {
		declared[p.Name] = true
	}
	// Sorted so the reported parameter is stable.
	var extra []string
	for name := range raw.Arguments {
		if !declared[name] {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return ToolCall{}, &ArgumentValidationError{Tool: spec.Name, Param: extra[0], Reason: "not a parameter of this tool"}
	}

	values := make(Values, len(spec.Params))
	for _, p := range spec.Params {
		rawVal, present := raw.Arguments[p.Name]
		if !present || rawVal == nil {
			if p.Required {
				return ToolCall{}, &ArgumentValidationError{Tool: spec.Name, Param: p.Name, Reason: "required parameter missing"}
			}
			if p.Default != nil {
				values[p.Name] = p.Default
			}
			continue
		}
		v, reason := checkValue(p, rawVal)
		if reason != "" {
			return ToolCall{}, &ArgumentValidationError{Tool: spec.Name, Param: p.Name, Reason: reason}
		}
		values[p.Name] = v
	}

	args, err := spec.Bind(values)
	if err != nil {
		var ave *ArgumentValidationError
		if errors.As(err, &ave) {
			if ave.Tool == "" {
				ave.Tool = spec.Name
			}
			return ToolCall{}, ave
		}
		return ToolCall{}, &ArgumentValidationError{Tool: spec.Name, Reason: err.Error()}
	}

	return ToolCall{
		ID:        raw.ID,
		Name:      spec.Name,
		Values:    values,
		Args:      args,
		DependsOn: raw.DependsOn,
	}, nil
}

// Dispatch executes call on its adapter. Adapter errors are returned as-is
// for the retry policy to classify; a call that does not carry valid Args
// for its tool fails with *ArgumentValidationError and never reaches the
// adapter.
func (r *Registry) Dispatch(ctx context.Context, call ToolCall) (ToolResult, error) {
	res := ToolResult{CallID: call.ID, Tool: call.Name, ServedBy: call.Name}

	r.mu.RLock()
	a, ok := r.adapters[call.Name]
	r.mu.RUnlock()

	if !ok {
		err := &ArgumentValidationError{Tool: call.Name, Reason: "unknown tool"}
		res.Error = err.Error()
		return res, err
	}
	if call.Args == nil || call.Args.ToolName() != call.Name {
		err := &ArgumentValidationError{Tool: call.Name, Reason: "call was not validated against this tool"}
		res.Error = err.Error()
		return res, err
	}

	out, err := a.Execute(ctx, call.Args)
	if err != nil {
		err = withTool(call.Name, err)
		res.Error = err.Error()
		return res, err
	}

	res.OK = true
	res.Payload = out.Payload
	res.Items = out.Items
	if a.Spec().Result == ResultItems && res.Items == nil {
		res.Items = []types.SearchResult{}
	}
	return res, nil
}
