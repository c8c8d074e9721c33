// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package conversation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/research-assistant/internal/tools"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// maxRenderedItems caps the merged search list shown to the model.
const maxRenderedItems = 30

// toolView is the JSON body of a tool-result turn.
type toolView struct {
	OK       bool   `json:"ok"`
	Tool     string `json:"tool"`
	ServedBy string `json:"served_by,omitempty"`
	Error    string `json:"error,omitempty"`

	Count      *int                 `json:"count,omitempty"`
	Results    []types.ResearchItem `json:"results,omitempty"`
	MergedInto string               `json:"merged_into,omitempty"`

	Result any `json:"result,omitempty"`
}

// renderResult encodes res for a tool turn. merged is the ranked list of
// the whole plan, attached to the first search call; later search calls
// point at it through mergedInto.
func renderResult(res tools.ToolResult, merged []types.ResearchItem, mergedInto string) string {
	v := toolView{OK: res.OK, Tool: res.Tool, Error: res.Error}
	if res.ServedBy != res.Tool {
		v.ServedBy = res.ServedBy
	}
	switch {
	case !res.OK:
	case merged != nil:
		n := len(merged)
		v.Count = &n
		if len(merged) > maxRenderedItems {
			merged = merged[:maxRenderedItems]
		}
		v.Results = merged
	case mergedInto != "":
		n := len(res.Items)
		v.Count = &n
		v.MergedInto = mergedInto
	default:
		v.Result = res.Payload
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"ok":false,"tool":%q,"error":"encoding result: %s"}`, res.Tool, err)
	}
	return string(data)
}

// degradedNotice names the tools that failed since the last answer.
func degradedNotice(failed map[string]bool) string {
	if len(failed) == 0 {
		return ""
	}
	names := make([]string, 0, len(failed))
	for n := range failed {
		names = append(names, n)
	}
	sort.Strings(names)
	return fmt.Sprintf("_Note: %s failed during this answer; results may be incomplete._\n\n", strings.Join(names, ", "))
}

// parseHint is the corrective message sent after unusable model output.
func parseHint(err *tools.IntentParseError) string {
	return fmt.Sprintf("Your previous reply could not be used (%s). "+
		"Either answer in plain text, or call one of the available tools with a JSON object of arguments.", err.Reason)
}

const apology = "Sorry, I could not turn the model's reply into an answer or a tool call (%s). Please rephrase your request."

const inferenceApology = "Sorry, the language model is unavailable right now (%v). Please try again."

const ceilingAnswer = "I reached the limit of tool calls for this request and could not finish. Please narrow the request or continue in a new message."

const timeoutAnswer = "This request ran past the time limit for one turn, so I stopped waiting for the remaining tools. Ask again to continue from the results gathered so far."
