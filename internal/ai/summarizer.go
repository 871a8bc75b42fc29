package ai

import (
	"context"
	"strings"
)

const summaryInstruction = "Provide a concise 2-3 sentence summary of the conversation."

// ProviderSummarizer turns any chat Provider into a transcript summarizer
// with a fixed instruction prompt.
type ProviderSummarizer struct {
	Provider Provider
}

func NewProviderSummarizer(p Provider) *ProviderSummarizer {
	return &ProviderSummarizer{Provider: p}
}

func (s *ProviderSummarizer) Summarize(ctx context.Context, transcript string, maxTokens int, temperature float64) (string, error) {
	out, err := s.Provider.Chat(ctx, []Message{
		{Role: "system", Content: summaryInstruction},
		{Role: "user", Content: "Conversation to summarize:\n\n" + transcript},
	}, ChatOptions{MaxTokens: maxTokens, Temperature: temperature})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
