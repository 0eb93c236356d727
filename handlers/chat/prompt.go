package chat

import (
	"strings"

	"midas/core"
	"midas/store"
)

// buildContext assembles the system segment, the replayed history and the
// current user message. Exchanges missing one side skip only that side.
func buildContext(systemPrompt, knowledge string, history []store.Exchange, userText string) core.LLMContext {
	system := systemPrompt
	if knowledge != "" {
		system += contextHeader + knowledge
	}

	var llmCtx core.LLMContext
	llmCtx.AddSystemMessage(system)
	for _, ex := range history {
		if ex.User != "" {
			llmCtx.AddUserMessage(ex.User)
		}
		if ex.Assistant != "" {
			llmCtx.AddAssistantMessage(ex.Assistant)
		}
	}
	llmCtx.AddUserMessage(userText)
	return llmCtx
}

// RenderChatML renders every message as a closed ChatML segment and leaves an
// assistant segment open for the model to fill.
func RenderChatML(llmCtx core.LLMContext) string {
	var b strings.Builder
	for _, m := range llmCtx.Messages {
		b.WriteString(RoleStartMarker)
		b.WriteString(string(m.Role))
		b.WriteByte('\n')
		b.WriteString(m.Message)
		b.WriteString(RoleEndMarker)
		b.WriteByte('\n')
	}
	b.WriteString(RoleStartMarker)
	b.WriteString(string(core.LLMMessageRoleAssistant))
	b.WriteByte('\n')
	return b.String()
}
