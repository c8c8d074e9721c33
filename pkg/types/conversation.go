// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Role identifies who produced a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one exchange unit in a session: a user message, an assistant
// message (final answer or tool plan), or a tool result.
type Turn struct {
	Role    Role      `json:"role" yaml:"role"`
	Content string    `json:"content" yaml:"content"`
	Time    time.Time `json:"time" yaml:"time"`

	// Calls lists the tool invocations an assistant planning turn requested.
	Calls []PlannedCall `json:"calls,omitempty" yaml:"calls,omitempty"`

	// CallID and Tool link a tool-result turn back to its call.
	CallID string `json:"call_id,omitempty" yaml:"call_id,omitempty"`
	Tool   string `json:"tool,omitempty" yaml:"tool,omitempty"`

	// Failed marks a tool-result turn that carries an error payload.
	Failed bool `json:"failed,omitempty" yaml:"failed,omitempty"`

	// Pinned turns survive memory truncation.
	Pinned bool `json:"pinned,omitempty" yaml:"pinned,omitempty"`
}

// PlannedCall is the record of one tool invocation inside a planning turn.
// Arguments holds the JSON object the model supplied.
type PlannedCall struct {
	ID        string `json:"id" yaml:"id"`
	Tool      string `json:"tool" yaml:"tool"`
	Arguments string `json:"arguments" yaml:"arguments"`
}
