package ai

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions carry the generation controls a call wants. Zero values mean
// "provider default".
type ChatOptions struct {
	MaxTokens   int
	Temperature float64
}

type Provider interface {
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)
}
