// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/llm"
)

// Review defaults applied when Config fields are not positive.
const (
	DefaultMinScore       = 90
	DefaultMaxEvaluations = 5
)

// Evaluation is a reviewer's verdict on one draft answer.
type Evaluation struct {
	Score          int      `json:"overall_score"`
	Status         string   `json:"completion_status"`
	Suggestions    []string `json:"improvement_suggestions"`
	ShouldContinue bool     `json:"should_continue"`
	Reason         string   `json:"termination_reason"`
}

// Evaluator scores a draft answer to query. drafts holds the earlier
// drafts of the same user turn, oldest first.
type Evaluator interface {
	Evaluate(ctx context.Context, query string, drafts []string, current string) (Evaluation, error)
}

const reviewSystem = `You are a strict reviewer of a research assistant's answers.

Score the current answer from 0 to 100:
- completeness (30): covers every part of the user's question
- accuracy (25): claims are correct and backed by the sources found
- tool use (20): searches and reads were well chosen
- clarity (15): logical and well structured
- completion (10): the requested task was actually done

90-100 means the task is done. Below that, list concrete improvements.

Reply with JSON only:
{"overall_score": 85, "completion_status": "completed|needs_improvement|incomplete",
 "improvement_suggestions": ["..."], "should_continue": true, "termination_reason": null}`

// ModelEvaluator asks a model to review answers.
type ModelEvaluator struct {
	model  llm.Model
	logger *zap.Logger
}

// NewModelEvaluator returns an Evaluator backed by model.
func NewModelEvaluator(model llm.Model, logger *zap.Logger) *ModelEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelEvaluator{model: model, logger: logger.Named("evaluator")}
}

// Evaluate implements Evaluator.
func (e *ModelEvaluator) Evaluate(ctx context.Context, query string, drafts []string, current string) (Evaluation, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "User question:\n%s\n\n", query)
	if len(drafts) > 0 {
		b.WriteString("Earlier drafts:\n")
		for i, d := range drafts {
			fmt.Fprintf(&b, "Draft %d:\n%s\n\n", i+1, d)
		}
	}
	fmt.Fprintf(&b, "Current answer:\n%s\n", current)

	resp, err := e.model.Complete(ctx, llm.Request{
		System:    reviewSystem,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: b.String()}},
		MaxTokens: 1024,
	})
	if err != nil {
		return Evaluation{}, fmt.Errorf("review: %w", err)
	}

	var ev Evaluation
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text)), &ev); err != nil {
		return Evaluation{}, fmt.Errorf("review: decoding verdict: %w", err)
	}
	e.logger.Debug("answer reviewed", zap.Int("score", ev.Score), zap.Bool("continue", ev.ShouldContinue))
	return ev, nil
}

// cleanJSON strips code fences and any prose around the outermost object.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i >= 0 && j > i {
		s = s[i : j+1]
	}
	return strings.TrimSpace(s)
}

// accepted reports whether ev ends the review of the current turn.
func (c *Controller) accepted(ev Evaluation) bool {
	return !ev.ShouldContinue || ev.Score >= c.cfg.MinScore
}

// improvementHint asks the model to revise its draft.
func improvementHint(ev Evaluation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A reviewer scored your answer %d/100. Improve it", ev.Score)
	if len(ev.Suggestions) == 0 {
		b.WriteString(", using the tools again where that helps.")
		return b.String()
	}
	b.WriteString(" following these suggestions, using the tools again where that helps:")
	for _, s := range ev.Suggestions {
		b.WriteString("\n- " + s)
	}
	return b.String()
}
