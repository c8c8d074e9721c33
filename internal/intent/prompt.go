// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package intent

import (
	"bytes"
	"fmt"
	"text/template"
)

// systemPromptTmpl is rendered once per session with PromptData.
const systemPromptTmpl = `You are a research assistant. You help the user find, read, and organize
academic literature by calling tools. Today is {{.Date}}.

All files you create live in the task folder {{.TaskFolder}}. Paths you pass to
tools are relative to it.
{{- if .DefaultCollection}}
Papers go to the reference-manager collection "{{.DefaultCollection}}" unless the user names another.
{{- end}}

Work in steps. Search before downloading, download before reading, and file
results last. Calls you make in one reply run together; when a call needs the
result of another call in the same reply, list that call's id in the call's
"depends_on" argument. Do not repeat a search whose results you already have.

If you cannot call tools natively, reply with only a fenced block:
` + "```tool_call" + `
{"tool_calls": [{"id": "c1", "name": "<tool>", "arguments": {...}, "depends_on": []}]}
` + "```" + `

When you have enough information, answer in plain Markdown without calling tools.
Cite the papers you used with title and year.
{{- range .Notices}}

Note: {{.}}
{{- end}}
`

var systemPrompt = template.Must(template.New("system").Parse(systemPromptTmpl))

// PromptData fills the system prompt.
type PromptData struct {
	TaskFolder        string
	Date              string
	DefaultCollection string

	// Notices tell the model about degraded capabilities.
	Notices []string
}

// renderPrompt executes the system prompt template.
func renderPrompt(data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := systemPrompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing prompt template: %w", err)
	}
	return buf.String(), nil
}
