// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package conversation

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-assistant/internal/tools"
)

// waves orders calls into groups that can run together. A call waits for
// the calls it names in DependsOn and for every earlier call of a lower
// stage. Dependencies on IDs outside calls are ignored. A cycle is broken
// by releasing the earliest pending call.
func waves(calls []tools.ToolCall, stage func(name string) int) [][]tools.ToolCall {
	index := make(map[string]int, len(calls))
	for i, c := range calls {
		index[c.ID] = i
	}
	deps := make([][]int, len(calls))
	for i, c := range calls {
		for _, id := range c.DependsOn {
			if j, ok := index[id]; ok && j != i {
				deps[i] = append(deps[i], j)
			}
		}
		for j := 0; j < i; j++ {
			if stage(calls[j].Name) < stage(c.Name) {
				deps[i] = append(deps[i], j)
			}
		}
	}

	done := make([]bool, len(calls))
	var out [][]tools.ToolCall
	for remaining := len(calls); remaining > 0; {
		var ready []int
		for i := range calls {
			if done[i] {
				continue
			}
			ok := true
			for _, j := range deps[i] {
				if !done[j] {
					ok = false
					break
				}
			}
			if ok {
				ready = append(ready, i)
			}
		}
		if len(ready) == 0 {
			for i := range calls {
				if !done[i] {
					ready = []int{i}
					break
				}
			}
		}

		wave := make([]tools.ToolCall, 0, len(ready))
		for _, i := range ready {
			done[i] = true
			wave = append(wave, calls[i])
		}
		remaining -= len(ready)
		out = append(out, wave)
	}
	return out
}

// cacheKey identifies a call by tool and canonical arguments.
func cacheKey(call tools.ToolCall) string {
	// Map keys marshal sorted, which makes the encoding canonical.
	data, err := json.Marshal(call.Values)
	if err != nil {
		return ""
	}
	return call.Name + "\x00" + string(data)
}

// runPlan executes calls wave by wave and returns the results received
// before ctx was done. Cached results of cacheable tools are reused
// without dispatch. Results arriving after cancellation are dropped.
func (c *Controller) runPlan(ctx context.Context, calls []tools.ToolCall) (map[string]tools.ToolResult, error) {
	results := make(map[string]tools.ToolResult, len(calls))
	for _, wave := range waves(calls, c.stage) {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		var pending []tools.ToolCall
		for _, call := range wave {
			if res, ok := c.cached(call); ok {
				c.logger.Debug("reusing cached result", zap.String("tool", call.Name), zap.String("call", call.ID))
				results[call.ID] = res
				c.progress(res)
				continue
			}
			pending = append(pending, call)
		}
		if len(pending) == 0 {
			continue
		}

		if err := c.runWave(ctx, pending, results); err != nil {
			return results, err
		}
	}
	return results, nil
}

// runWave dispatches one wave concurrently, bounded by MaxParallel.
func (c *Controller) runWave(ctx context.Context, wave []tools.ToolCall, results map[string]tools.ToolResult) error {
	// Buffered so workers never block once nobody reads.
	ch := make(chan tools.ToolResult, len(wave))
	go func() {
		var g errgroup.Group
		g.SetLimit(c.cfg.MaxParallel)
		for _, call := range wave {
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				ch <- c.invoker.Invoke(ctx, call)
				return nil
			})
		}
		_ = g.Wait()
		close(ch)
	}()

	for received := 0; received < len(wave); {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-ch:
			if !ok {
				// Workers skipped calls after cancellation.
				return ctx.Err()
			}
			received++
			if ctx.Err() != nil {
				return ctx.Err()
			}
			results[res.CallID] = res
			c.remember(wave, res)
			c.progress(res)
		}
	}
	return nil
}

func (c *Controller) stage(name string) int {
	spec, ok := c.specs.Lookup(name)
	if !ok {
		return 0
	}
	return spec.Stage
}

func (c *Controller) cached(call tools.ToolCall) (tools.ToolResult, bool) {
	spec, ok := c.specs.Lookup(call.Name)
	if !ok || !spec.Cacheable {
		return tools.ToolResult{}, false
	}
	res, ok := c.cache[cacheKey(call)]
	if !ok {
		return tools.ToolResult{}, false
	}
	res.CallID = call.ID
	res.Attempts = 0
	return res, true
}

// remember memoizes a successful result of a cacheable call.
func (c *Controller) remember(wave []tools.ToolCall, res tools.ToolResult) {
	if !res.OK {
		return
	}
	for _, call := range wave {
		if call.ID != res.CallID {
			continue
		}
		if spec, ok := c.specs.Lookup(call.Name); ok && spec.Cacheable {
			c.cache[cacheKey(call)] = res
		}
		return
	}
}

func (c *Controller) progress(res tools.ToolResult) {
	if c.out != nil {
		c.out.Progress(res)
	}
}
