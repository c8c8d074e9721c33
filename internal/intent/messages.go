// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package intent

import (
	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// BuildMessages converts conversation turns to model messages. Memory
// truncation can separate a planning turn from its results, so tool turns
// whose call was not retained are dropped, and so are planned calls with
// no retained result. Every tool message then answers a call in the
// assistant message before it.
func BuildMessages(turns []types.Turn) []llm.Message {
	planned := make(map[string]bool)
	answered := make(map[string]bool)
	for _, t := range turns {
		switch t.Role {
		case types.RoleAssistant:
			for _, c := range t.Calls {
				planned[c.ID] = true
			}
		case types.RoleTool:
			answered[t.CallID] = true
		}
	}

	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case types.RoleUser:
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: t.Content})

		case types.RoleAssistant:
			m := llm.Message{Role: llm.RoleAssistant, Content: t.Content}
			for _, c := range t.Calls {
				if answered[c.ID] {
					m.ToolCalls = append(m.ToolCalls, llm.ToolCall{ID: c.ID, Name: c.Tool, Arguments: c.Arguments})
				}
			}
			if m.Content == "" && len(m.ToolCalls) == 0 {
				continue
			}
			msgs = append(msgs, m)

		case types.RoleTool:
			if !planned[t.CallID] {
				continue
			}
			msgs = append(msgs, llm.Message{Role: llm.RoleTool, Content: t.Content, ToolCallID: t.CallID, Name: t.Tool})
		}
	}
	return msgs
}
