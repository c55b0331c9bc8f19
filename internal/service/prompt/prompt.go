// Package prompt builds the system prompt a session is created with. The
// routing core treats this as a black box: the prompt is computed once at
// session creation and replayed verbatim on reconnection.
package prompt

import (
	"fmt"
	"strings"
)

var profiles = map[string]string{
	"interview": "You are a live interview copilot. The user shares their screen and audio during a job interview. Give short, direct answers the user can say out loud.",
	"sales":     "You are a live sales-call assistant. Suggest concise talking points, objection handling, and next steps based on what is on screen.",
	"meeting":   "You are a live meeting assistant. Summarize discussion points and suggest clear, brief responses.",
	"exam":      "You are a study assistant. Explain the problem on screen step by step and state the final answer clearly.",
	"default":   "You are a helpful realtime assistant. Answer questions about what the user shares, concisely.",
}

// Build assembles the final system prompt from the selected profile, the
// user's custom instructions, and the response language.
func Build(profile, customPrompt, language string, searchEnabled bool) string {
	base, ok := profiles[profile]
	if !ok {
		base = profiles["default"]
	}

	var b strings.Builder
	b.WriteString(base)

	if language != "" {
		fmt.Fprintf(&b, "\n\nRespond in %s.", language)
	}
	if searchEnabled {
		b.WriteString("\n\nWhen a question needs current information you do not have, say so explicitly instead of guessing.")
	}
	if custom := strings.TrimSpace(customPrompt); custom != "" {
		b.WriteString("\n\nAdditional instructions from the user:\n")
		b.WriteString(custom)
	}

	return b.String()
}

// Profiles lists the selectable profile names.
func Profiles() []string {
	return []string{"interview", "sales", "meeting", "exam", "default"}
}
