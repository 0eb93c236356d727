package core

import "context"

type LLMMessageRole string

const (
	LLMMessageRoleUser      LLMMessageRole = "user"
	LLMMessageRoleAssistant LLMMessageRole = "assistant"
	LLMMessageRoleSystem    LLMMessageRole = "system"
)

// LLMMessage is one turn-structured segment of a prompt.
type LLMMessage struct {
	Role    LLMMessageRole `json:"role"`
	Message string         `json:"message"`
}

type LLMContext struct {
	Messages []LLMMessage
}

func (c *LLMContext) AddSystemMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleSystem, Message: text})
}

func (c *LLMContext) AddUserMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleUser, Message: text})
}

func (c *LLMContext) AddAssistantMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleAssistant, Message: text})
}

// GenerationParams are the sampling parameters of one completion.
type GenerationParams struct {
	Temperature   float32
	TopP          float32
	TopK          int
	MaxTokens     int
	RepeatPenalty float32
	ContextWindow int
	Stop          []string
}

// TokenStream yields generated text pieces lazily. Recv returns io.EOF once
// the generation is finished. A stream cannot be restarted.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// LLMService runs raw-prompt completions.
type LLMService interface {
	IService
	Generate(ctx context.Context, prompt string, params GenerationParams) (TokenStream, error)
}
