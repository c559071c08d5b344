package completion

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result carries one completion reply: the raw message content plus the
// provider-reported model name and token usage.
type Result struct {
	Content string
	Model   string
	Usage   Usage
}

type Client interface {
	Complete(ctx context.Context, messages []Message) (Result, error)
}
