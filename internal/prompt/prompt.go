// Package prompt assembles the text a backend sees: the resolved system
// prompt, remembered facts, prior turns and the new user input.
package prompt

import (
	"strings"

	"chat-proxy/internal/llm"
	"chat-proxy/internal/storage"
)

const factsPrefix = "Known facts: "

// Build shapes the payload for the given backend variant.
func Build(v llm.Variant, system string, mem storage.Memory, history []storage.Turn, input string) llm.Payload {
	p := llm.Payload{System: system}
	switch v {
	case llm.VariantGemini:
		p.Transcript = BuildTranscript(system, mem, history, input)
	default:
		p.Messages = BuildMessages(system, mem, history, input)
	}
	return p
}

// ResolveSystemPrompt appends the trimmed custom suffix to base, if any.
func ResolveSystemPrompt(base, custom string) string {
	custom = strings.TrimSpace(custom)
	if custom == "" {
		return base
	}
	return base + " " + custom
}

// RenderFacts renders memory as a single "Known facts: k: v, ..." line in
// stored order, or "" when memory is empty.
func RenderFacts(mem storage.Memory) string {
	if len(mem) == 0 {
		return ""
	}
	parts := make([]string, 0, len(mem))
	for _, f := range mem {
		parts = append(parts, f.Key+": "+f.Value)
	}
	return factsPrefix + strings.Join(parts, ", ")
}

// BuildTranscript flattens everything into one blob for single-turn
// generation backends. It always ends with "User: <input>\nAssistant:".
func BuildTranscript(system string, mem storage.Memory, history []storage.Turn, input string) string {
	lines := make([]string, 0, len(history)+4)
	lines = append(lines, system)
	if facts := RenderFacts(mem); facts != "" {
		lines = append(lines, facts)
	}
	for _, t := range history {
		lines = append(lines, RoleLabel(t.Role)+": "+t.Text)
	}
	lines = append(lines, "User: "+input, "Assistant:")
	return strings.Join(lines, "\n")
}

// BuildMessages produces a chat payload: a system message (facts appended
// after a blank line), every stored turn verbatim, then the new input.
// Roles keep the store's names; the backend adapter translates them.
func BuildMessages(system string, mem storage.Memory, history []storage.Turn, input string) []llm.Message {
	if facts := RenderFacts(mem); facts != "" {
		system += "\n\n" + facts
	}
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: system})
	for _, t := range history {
		msgs = append(msgs, llm.Message{Role: string(t.Role), Content: t.Text})
	}
	msgs = append(msgs, llm.Message{Role: string(storage.RoleUser), Content: input})
	return msgs
}

// RoleLabel capitalises a role name for transcript lines ("user" -> "User").
func RoleLabel(r storage.Role) string {
	s := string(r)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
