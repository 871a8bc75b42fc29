package summary

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/convo-platform/internal/conversation"
)

const (
	MaxTokens             = 200
	Temperature           = 0.3
	CacheTTL              = time.Hour
	MinMessagesForSummary = 3
	MaxTranscriptMessages = 10
	transcriptClipRunes   = 200
	DefaultBackfillLimit  = 50
)

// Summarizer is the opaque text-generation backend. Any implementation
// that can turn a transcript into prose satisfies it.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string, maxTokens int, temperature float64) (string, error)
}

// Cache is a best-effort TTL key-value store. A miss always falls back to
// the durable record, so implementations may drop entries freely.
type Cache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Get(ctx context.Context, key string) (string, bool)
	Delete(ctx context.Context, key string)
}

// ConversationStore is the slice of the version tree store the engine
// needs; *conversation.Repo implements it.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*conversation.Conversation, error)
	CountMessages(ctx context.Context, conversationID string) (int64, error)
	ListEarliestMessages(ctx context.Context, conversationID string, limit int) ([]conversation.Message, error)
	SetSummary(ctx context.Context, id, summary string, generatedAt time.Time) error
	MarkSummaryStale(ctx context.Context, id string) error
	ConversationsMissingSummary(ctx context.Context, limit int) ([]conversation.Conversation, error)
}

type Service struct {
	store      ConversationStore
	cache      Cache
	summarizer Summarizer
	log        zerolog.Logger
}

func NewService(store ConversationStore, cache Cache, summarizer Summarizer, log zerolog.Logger) *Service {
	return &Service{store: store, cache: cache, summarizer: summarizer, log: log}
}

func cacheKey(conversationID string) string {
	return "conversation_summary_" + conversationID
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func roleLabel(role string) string {
	if role == "user" {
		return "User"
	}
	return "Assistant"
}

// GenerateSummary builds a role-labeled transcript from the first messages
// of the conversation and asks the summarizer for a short summary. Too few
// messages is not an error, just no summary. Summarizer failures are
// absorbed here: logged, empty result, never propagated.
func (s *Service) GenerateSummary(ctx context.Context, conversationID string) (string, error) {
	count, err := s.store.CountMessages(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if count < MinMessagesForSummary {
		s.log.Debug().Str("conversation_id", conversationID).Int64("messages", count).
			Msg("insufficient messages for summary")
		return "", nil
	}

	msgs, err := s.store.ListEarliestMessages(ctx, conversationID, MaxTranscriptMessages)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, roleLabel(m.Role.Name)+": "+clip(m.Content, transcriptClipRunes))
	}
	transcript := strings.Join(lines, "\n")

	text, err := s.summarizer.Summarize(ctx, transcript, MaxTokens, Temperature)
	if err != nil {
		s.log.Error().Err(err).Str("conversation_id", conversationID).
			Msg("summarizer call failed")
		return "", nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		s.log.Warn().Str("conversation_id", conversationID).Msg("summarizer returned empty output")
		return "", nil
	}
	return text, nil
}

// UpdateConversationSummary regenerates and persists the summary, clears
// the staleness flag and refreshes the cache. The returned bool reports
// whether a summary was written; failure is never fatal to the caller.
func (s *Service) UpdateConversationSummary(ctx context.Context, conversationID string) bool {
	text, err := s.GenerateSummary(ctx, conversationID)
	if err != nil {
		s.log.Error().Err(err).Str("conversation_id", conversationID).
			Msg("summary generation read failed")
		return false
	}
	if text == "" {
		return false
	}

	if err := s.store.SetSummary(ctx, conversationID, text, time.Now().UTC()); err != nil {
		s.log.Error().Err(err).Str("conversation_id", conversationID).
			Msg("persisting summary failed")
		return false
	}
	s.cache.Set(ctx, cacheKey(conversationID), text, CacheTTL)
	return true
}

// GetCachedSummary serves from cache, falling back to the persisted field
// and backfilling the cache on a miss.
func (s *Service) GetCachedSummary(ctx context.Context, conversationID string) (string, bool) {
	if v, ok := s.cache.Get(ctx, cacheKey(conversationID)); ok {
		return v, true
	}

	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return "", false
	}
	if conv.Summary != nil && *conv.Summary != "" {
		s.cache.Set(ctx, cacheKey(conversationID), *conv.Summary, CacheTTL)
		return *conv.Summary, true
	}
	return "", false
}

// MarkStale flags the summary for regeneration and evicts the cache entry.
func (s *Service) MarkStale(ctx context.Context, conversationID string) error {
	if err := s.store.MarkSummaryStale(ctx, conversationID); err != nil {
		return err
	}
	s.cache.Delete(ctx, cacheKey(conversationID))
	return nil
}

// BackfillMissingSummaries processes up to limit conversations that have
// messages but no summary yet, returning how many succeeded.
func (s *Service) BackfillMissingSummaries(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultBackfillLimit
	}
	convs, err := s.store.ConversationsMissingSummary(ctx, limit)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, c := range convs {
		if s.UpdateConversationSummary(ctx, c.ID) {
			count++
		}
	}
	s.log.Info().Int("generated", count).Int("candidates", len(convs)).
		Msg("summary backfill done")
	return count, nil
}

// Hook wiring for the version tree store. Registration happens at process
// start: appends regenerate once the message threshold is met, creation
// defensively forces the stale flag, edits mark stale only when the
// deployment opts in.

func (s *Service) AppendHook() conversation.Hook {
	return func(ctx context.Context, conversationID string) {
		s.UpdateConversationSummary(ctx, conversationID)
	}
}

func (s *Service) CreateHook() conversation.Hook {
	return func(ctx context.Context, conversationID string) {
		if err := s.MarkStale(ctx, conversationID); err != nil {
			s.log.Error().Err(err).Str("conversation_id", conversationID).
				Msg("marking new conversation stale failed")
		}
	}
}

func (s *Service) EditHook() conversation.Hook {
	return func(ctx context.Context, conversationID string) {
		if err := s.MarkStale(ctx, conversationID); err != nil {
			s.log.Error().Err(err).Str("conversation_id", conversationID).
				Msg("marking edited conversation stale failed")
		}
	}
}
