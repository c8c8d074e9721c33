// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package intent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/tools"
)

// dependsOnArg is the reserved argument carrying intra-plan dependencies.
const dependsOnArg = "depends_on"

// maxRaw bounds the output fragment kept on an IntentParseError.
const maxRaw = 300

var (
	fencedCallRe = regexp.MustCompile("(?s)```tool_calls?[ \\t]*\\n(.*?)```")
	bareCallsRe  = regexp.MustCompile(`^\{\s*"tool_calls"\s*:`)
)

// textCall is one call in the text fallback format.
type textCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	DependsOn []string        `json:"depends_on"`
}

func parseError(reason, raw string, err error) *tools.IntentParseError {
	if len(raw) > maxRaw {
		raw = raw[:maxRaw] + "..."
	}
	return &tools.IntentParseError{Reason: reason, Raw: raw, Err: err}
}

// nativeCalls converts provider tool calls to raw calls.
func nativeCalls(calls []llm.ToolCall) ([]tools.RawCall, error) {
	out := make([]tools.RawCall, 0, len(calls))
	for _, c := range calls {
		args, err := decodeArguments(c.Name, json.RawMessage(c.Arguments))
		if err != nil {
			return nil, err
		}
		out = append(out, tools.RawCall{ID: c.ID, Name: c.Name, Arguments: args})
	}
	return out, nil
}

// textCalls extracts tool calls written into the reply text. ok is false
// when the text holds no call block at all and is a final answer.
func textCalls(text string) (calls []tools.RawCall, ok bool, err error) {
	var blocks []string
	for _, m := range fencedCallRe.FindAllStringSubmatch(text, -1) {
		blocks = append(blocks, m[1])
	}
	if len(blocks) == 0 {
		trimmed := strings.TrimSpace(text)
		if !bareCallsRe.MatchString(trimmed) {
			return nil, false, nil
		}
		blocks = []string{trimmed}
	}

	for _, b := range blocks {
		parsed, err := decodeBlock(strings.TrimSpace(b))
		if err != nil {
			return nil, true, err
		}
		calls = append(calls, parsed...)
	}
	if len(calls) == 0 {
		return nil, true, parseError("tool call block lists no calls", text, nil)
	}
	return calls, true, nil
}

// decodeBlock accepts {"tool_calls": [...]}, a bare array of calls, or a
// single call object.
func decodeBlock(b string) ([]tools.RawCall, error) {
	var list []textCall
	switch {
	case strings.HasPrefix(b, "["):
		if err := json.Unmarshal([]byte(b), &list); err != nil {
			return nil, parseError("malformed tool call block", b, err)
		}
	default:
		var wrapper struct {
			ToolCalls []textCall `json:"tool_calls"`
			textCall
		}
		if err := json.Unmarshal([]byte(b), &wrapper); err != nil {
			return nil, parseError("malformed tool call block", b, err)
		}
		list = wrapper.ToolCalls
		if list == nil && wrapper.Name != "" {
			list = []textCall{wrapper.textCall}
		}
	}

	out := make([]tools.RawCall, 0, len(list))
	for _, tc := range list {
		if tc.Name == "" {
			return nil, parseError("tool call without a name", b, nil)
		}
		args, err := decodeArguments(tc.Name, tc.Arguments)
		if err != nil {
			return nil, err
		}
		if len(tc.DependsOn) > 0 {
			if _, dup := args[dependsOnArg]; !dup {
				deps := make([]any, len(tc.DependsOn))
				for i, d := range tc.DependsOn {
					deps[i] = d
				}
				args[dependsOnArg] = deps
			}
		}
		out = append(out, tools.RawCall{ID: tc.ID, Name: tc.Name, Arguments: args})
	}
	return out, nil
}

// decodeArguments parses a JSON object of arguments. Some providers
// double-encode arguments as a JSON string; that form is unwrapped once.
func decodeArguments(tool string, raw json.RawMessage) (map[string]any, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return map[string]any{}, nil
	}
	if strings.HasPrefix(s, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			s = strings.TrimSpace(inner)
		}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(s), &args); err != nil || args == nil {
		return nil, parseError(fmt.Sprintf("arguments for %s are not a JSON object", tool), s, err)
	}
	return args, nil
}

// splitDependsOn removes the reserved dependency argument from args. A
// malformed value is reported as a validation failure of the call.
func splitDependsOn(raw *tools.RawCall) *tools.ArgumentValidationError {
	v, ok := raw.Arguments[dependsOnArg]
	if !ok {
		return nil
	}
	delete(raw.Arguments, dependsOnArg)

	switch deps := v.(type) {
	case nil:
		return nil
	case string:
		if deps != "" {
			raw.DependsOn = []string{deps}
		}
		return nil
	case []any:
		for _, d := range deps {
			id, ok := d.(string)
			if !ok {
				return &tools.ArgumentValidationError{Tool: raw.Name, Param: dependsOnArg, Reason: "must be a list of call ids"}
			}
			raw.DependsOn = append(raw.DependsOn, id)
		}
		return nil
	default:
		return &tools.ArgumentValidationError{Tool: raw.Name, Param: dependsOnArg, Reason: "must be a list of call ids"}
	}
}
