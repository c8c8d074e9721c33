// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package conversation runs the research assistant's turn loop: it asks
// the model for its next step, executes the planned tool calls, and folds
// their results back into a bounded conversation state.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/intent"
	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/internal/tools"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Defaults applied when Config fields are not positive.
const (
	DefaultMaxTurns    = 10
	DefaultMaxReplans  = 6
	DefaultMaxParallel = 4
)

// State is a controller state.
type State int

const (
	AwaitingUserInput State = iota
	Planning
	ExecutingTools
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case AwaitingUserInput:
		return "awaiting-user-input"
	case Planning:
		return "planning"
	case ExecutingTools:
		return "executing-tools"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ConfigurationError reports an unusable configuration detected before
// any tool runs. A controller built with one aborts.
type ConfigurationError struct {
	Option string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration"
	if e.Option != "" {
		msg += ": " + e.Option
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Planner produces the model's next step.
type Planner interface {
	Next(ctx context.Context, turns []types.Turn, opts intent.Options) (intent.Intent, error)
}

// Invoker executes a validated call and never fails; failures come back
// as results with OK=false.
type Invoker interface {
	Invoke(ctx context.Context, call tools.ToolCall) tools.ToolResult
}

// SpecSource looks up tool specs for stage ordering and caching.
type SpecSource interface {
	Lookup(name string) (tools.ToolSpec, bool)
}

// Input supplies user messages. io.EOF ends the session.
type Input interface {
	Next(ctx context.Context) (string, error)
}

// Output receives answers and tool progress.
type Output interface {
	Answer(text string) error
	Progress(res tools.ToolResult)
}

// Recorder persists every appended turn.
type Recorder interface {
	Record(ctx context.Context, turn types.Turn) error
}

// Deps are the collaborators of a Controller. Input, Output and Recorder
// are optional.
type Deps struct {
	Planner  Planner
	Invoker  Invoker
	Tools    SpecSource
	Input    Input
	Output   Output
	Recorder Recorder

	// Evaluator, when set, reviews each answer before it is shown.
	Evaluator Evaluator

	// StartupErr makes Run abort without talking to the model.
	StartupErr error
}

// Config bounds a session.
type Config struct {
	MaxTurns     int
	MaxReplans   int
	MemoryWindow int
	MaxParallel  int

	// TurnTimeout bounds one user turn; zero means no limit.
	TurnTimeout time.Duration

	// MinScore accepts a reviewed answer. MaxEvaluations caps drafts per
	// user turn; the last draft is shown without review.
	MinScore       int
	MaxEvaluations int

	Logger *zap.Logger
	Now    func() time.Time
}

// Outcome summarizes a finished session.
type Outcome struct {
	State     State
	UserTurns int
	Turns     []types.Turn
}

// Controller owns one conversation. It is not safe for concurrent use.
type Controller struct {
	planner  Planner
	invoker  Invoker
	specs    SpecSource
	in       Input
	out      Output
	rec      Recorder
	eval     Evaluator
	startErr error

	cfg    Config
	logger *zap.Logger

	state     State
	memory    *Memory
	userTurns int
	cache     map[string]tools.ToolResult

	// failed collects tools that failed since the last answer.
	failed map[string]bool
}

// New creates a controller.
func New(deps Deps, cfg Config) *Controller {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.MaxReplans <= 0 {
		cfg.MaxReplans = DefaultMaxReplans
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultMinScore
	}
	if cfg.MaxEvaluations <= 0 {
		cfg.MaxEvaluations = DefaultMaxEvaluations
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		planner:  deps.Planner,
		invoker:  deps.Invoker,
		specs:    deps.Tools,
		in:       deps.Input,
		out:      deps.Output,
		rec:      deps.Recorder,
		eval:     deps.Evaluator,
		startErr: deps.StartupErr,
		cfg:      cfg,
		logger:   logger.Named("conversation"),
		memory:   NewMemory(cfg.MemoryWindow),
		cache:    make(map[string]tools.ToolResult),
		failed:   make(map[string]bool),
	}
}

// isSentinel reports whether text ends the session.
func isSentinel(text string) bool {
	switch strings.ToLower(text) {
	case "", "exit", "quit", "q":
		return true
	}
	return false
}

func (c *Controller) outcome() Outcome {
	return Outcome{State: c.state, UserTurns: c.userTurns, Turns: c.memory.Turns()}
}

// Run drives the session until a sentinel, end of input, the turn
// ceiling, or cancellation. initialQuery, when set, is the first user
// message.
func (c *Controller) Run(ctx context.Context, initialQuery string) (Outcome, error) {
	if c.startErr != nil {
		c.state = Aborted
		var ce *ConfigurationError
		if !errors.As(c.startErr, &ce) {
			ce = &ConfigurationError{Reason: "startup failed", Err: c.startErr}
		}
		c.logger.Error("aborting session", zap.Error(ce))
		return c.outcome(), ce
	}

	pending := strings.TrimSpace(initialQuery)
	for {
		if err := ctx.Err(); err != nil {
			return c.outcome(), err
		}
		c.state = AwaitingUserInput

		text := pending
		pending = ""
		if text == "" {
			var err error
			text, err = c.read(ctx)
			if errors.Is(err, io.EOF) {
				c.state = Completed
				return c.outcome(), nil
			}
			if err != nil {
				return c.outcome(), err
			}
		}
		if isSentinel(text) {
			c.state = Completed
			return c.outcome(), nil
		}

		c.userTurns++
		c.append(ctx, types.Turn{Role: types.RoleUser, Content: text, Pinned: c.memory.Len() == 0})

		last := c.userTurns >= c.cfg.MaxTurns
		if last {
			c.logger.Info("turn ceiling reached; forcing a final answer", zap.Int("max_turns", c.cfg.MaxTurns))
		}
		if err := c.turn(ctx, last); err != nil {
			return c.outcome(), err
		}
		if last {
			c.state = Completed
			return c.outcome(), nil
		}
	}
}

func (c *Controller) read(ctx context.Context) (string, error) {
	if c.in == nil {
		return "", io.EOF
	}
	text, err := c.in.Next(ctx)
	return strings.TrimSpace(text), err
}

// turn plans and executes until the model answers. forceFinal withholds
// tools from the first planning step on.
func (c *Controller) turn(parent context.Context, forceFinal bool) error {
	ctx := parent
	if c.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, c.cfg.TurnTimeout)
		defer cancel()
	}

	var (
		replans   int
		hint      string
		reprompts int
		drafts    []string
	)
	for {
		c.state = Planning
		force := forceFinal || replans >= c.cfg.MaxReplans
		if !forceFinal && replans == c.cfg.MaxReplans {
			c.logger.Info("re-plan cap reached; forcing a final answer", zap.Int("max_replans", c.cfg.MaxReplans))
		}

		in, err := c.planner.Next(ctx, c.memory.Turns(), intent.Options{ForceFinal: force, Hint: hint})
		hint = ""
		if err != nil {
			if ctx.Err() != nil {
				return c.timedOut(parent, ctx.Err())
			}
			var ipe *tools.IntentParseError
			if errors.As(err, &ipe) {
				if reprompts == 0 {
					reprompts++
					c.logger.Info("re-prompting after unusable model output", zap.String("reason", ipe.Reason))
					hint = parseHint(ipe)
					continue
				}
				c.logger.Warn("model output unusable after re-prompt", zap.String("reason", ipe.Reason), zap.String("raw", ipe.Raw))
				return c.answer(ctx, fmt.Sprintf(apology, ipe.Reason))
			}
			c.logger.Warn("planning failed", zap.Error(err))
			return c.answer(ctx, fmt.Sprintf(inferenceApology, err))
		}

		if in.IsFinal() {
			if c.eval == nil || force || len(drafts)+1 >= c.cfg.MaxEvaluations {
				return c.answer(ctx, in.Final)
			}
			ev, err := c.eval.Evaluate(ctx, c.lastQuery(), drafts, in.Final)
			switch {
			case err != nil && ctx.Err() != nil:
				return c.timedOut(parent, ctx.Err())
			case err != nil:
				c.logger.Warn("review failed; keeping the draft", zap.Error(err))
				return c.answer(ctx, in.Final)
			case c.accepted(ev):
				return c.answer(ctx, in.Final)
			}
			c.logger.Info("draft sent back for revision",
				zap.Int("score", ev.Score), zap.Int("draft", len(drafts)+1))
			drafts = append(drafts, in.Final)
			c.append(ctx, types.Turn{Role: types.RoleAssistant, Content: in.Final})
			hint = improvementHint(ev)
			continue
		}
		if force {
			c.logger.Warn("model planned tools after they were withheld; discarding plan", zap.Int("calls", len(in.Planned)))
			text := in.Text
			if text == "" {
				text = ceilingAnswer
			}
			return c.answer(ctx, text)
		}

		c.state = ExecutingTools
		if err := c.execute(ctx, in); err != nil {
			return c.timedOut(parent, err)
		}
		replans++
	}
}

// timedOut ends a turn whose deadline expired with an in-band answer, so
// the session continues. Cancellation of the session itself is returned.
func (c *Controller) timedOut(parent context.Context, err error) error {
	if perr := parent.Err(); perr != nil {
		return perr
	}
	c.logger.Warn("turn timed out; answering with partial results",
		zap.Duration("turn_timeout", c.cfg.TurnTimeout), zap.Error(err))
	return c.answer(parent, timeoutAnswer)
}

// answer emits a final answer, prefixed with a notice when tools failed.
func (c *Controller) answer(ctx context.Context, text string) error {
	text = degradedNotice(c.failed) + text
	c.failed = make(map[string]bool)
	c.append(ctx, types.Turn{Role: types.RoleAssistant, Content: text})
	if c.out == nil {
		return nil
	}
	if err := c.out.Answer(text); err != nil {
		return fmt.Errorf("writing answer: %w", err)
	}
	return nil
}

// execute appends the planning turn, runs the plan, and folds the results
// received before cancellation in plan order.
func (c *Controller) execute(ctx context.Context, in intent.Intent) error {
	c.append(ctx, types.Turn{Role: types.RoleAssistant, Content: in.Text, Calls: in.Planned})

	results, runErr := c.runPlan(ctx, in.Calls)
	for _, r := range in.Rejected {
		results[r.Call.ID] = tools.ToolResult{CallID: r.Call.ID, Tool: r.Call.Name, ServedBy: r.Call.Name, Error: r.Err.Error()}
	}

	var (
		lists       [][]types.SearchResult
		firstSearch string
	)
	for _, p := range in.Planned {
		res, ok := results[p.ID]
		if !ok || !res.OK || !c.isSearch(p.Tool) {
			continue
		}
		lists = append(lists, res.Items)
		if firstSearch == "" {
			firstSearch = p.ID
		}
	}
	var merged []types.ResearchItem
	if firstSearch != "" {
		merged = search.Merge(lists...)
	}

	for _, p := range in.Planned {
		res, ok := results[p.ID]
		if !ok {
			continue
		}
		var content string
		switch {
		case res.OK && p.ID == firstSearch:
			content = renderResult(res, merged, "")
		case res.OK && c.isSearch(p.Tool):
			content = renderResult(res, nil, firstSearch)
		default:
			content = renderResult(res, nil, "")
		}
		if !res.OK && !isRejected(in, p.ID) {
			c.failed[p.Tool] = true
		}
		c.append(ctx, types.Turn{Role: types.RoleTool, CallID: p.ID, Tool: p.Tool, Content: content, Failed: !res.OK})
	}
	if runErr != nil {
		// Calls cut off by the deadline count as failed for the notice.
		for _, p := range in.Planned {
			if _, ok := results[p.ID]; !ok {
				c.failed[p.Tool] = true
			}
		}
	}
	return runErr
}

// lastQuery returns the latest user message.
func (c *Controller) lastQuery() string {
	turns := c.memory.Turns()
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == types.RoleUser {
			return turns[i].Content
		}
	}
	return ""
}

func (c *Controller) isSearch(name string) bool {
	spec, ok := c.specs.Lookup(name)
	return ok && spec.Result == tools.ResultItems
}

func isRejected(in intent.Intent, id string) bool {
	for _, r := range in.Rejected {
		if r.Call.ID == id {
			return true
		}
	}
	return false
}

// append stamps t, stores it, and hands it to the recorder.
func (c *Controller) append(ctx context.Context, t types.Turn) {
	t.Time = c.cfg.Now()
	c.memory.Append(t)
	if c.rec == nil {
		return
	}
	// Recording must survive a cancelled turn.
	if err := c.rec.Record(context.WithoutCancel(ctx), t); err != nil {
		c.logger.Warn("recording turn failed", zap.String("role", string(t.Role)), zap.Error(err))
	}
}
