package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/suPer8Hu/convo-platform/internal/conversation"
)

type fakeSummarizer struct {
	reply string
	err   error
	calls int
	last  string
}

func (f *fakeSummarizer) Summarize(ctx context.Context, transcript string, maxTokens int, temperature float64) (string, error) {
	_ = ctx
	_ = maxTokens
	_ = temperature
	f.calls++
	f.last = transcript
	return f.reply, f.err
}

type mapCache struct {
	m map[string]string
}

func newMapCache() *mapCache { return &mapCache{m: make(map[string]string)} }

func (c *mapCache) Set(_ context.Context, key, value string, _ time.Duration) { c.m[key] = value }
func (c *mapCache) Get(_ context.Context, key string) (string, bool) {
	v, ok := c.m[key]
	return v, ok
}
func (c *mapCache) Delete(_ context.Context, key string) { delete(c.m, key) }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&conversation.Role{}, &conversation.Conversation{},
		&conversation.Version{}, &conversation.Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// seedConversation creates a conversation with one version and n messages.
func seedConversation(t *testing.T, repo *conversation.Repo, n int) string {
	t.Helper()
	ctx := context.Background()
	convSvc := conversation.NewService(repo, zerolog.Nop())

	c, err := convSvc.CreateConversation(ctx, 1, "seeded")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	v, err := convSvc.CreateVersion(ctx, c.ID, nil, nil)
	if err != nil {
		t.Fatalf("create version: %v", err)
	}
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		if _, err := convSvc.AppendMessage(ctx, v.ID, role, fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	return c.ID
}

func TestGenerateSummary_TooFewMessages(t *testing.T) {
	repo := conversation.NewRepo(openTestDB(t))
	fake := &fakeSummarizer{reply: "should not be called"}
	svc := NewService(repo, newMapCache(), fake, zerolog.Nop())

	id := seedConversation(t, repo, MinMessagesForSummary-1)

	text, err := svc.GenerateSummary(context.Background(), id)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "" {
		t.Fatalf("expected no summary, got %q", text)
	}
	if fake.calls != 0 {
		t.Fatalf("summarizer should not run below threshold, got %d calls", fake.calls)
	}
}

func TestUpdateConversationSummary_PersistsAndCaches(t *testing.T) {
	repo := conversation.NewRepo(openTestDB(t))
	fake := &fakeSummarizer{reply: "A short summary."}
	cache := newMapCache()
	svc := NewService(repo, cache, fake, zerolog.Nop())
	ctx := context.Background()

	id := seedConversation(t, repo, 4)

	if !svc.UpdateConversationSummary(ctx, id) {
		t.Fatalf("expected summary to be generated")
	}

	conv, err := repo.GetConversation(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if conv.Summary == nil || *conv.Summary != "A short summary." {
		t.Fatalf("summary not persisted: %v", conv.Summary)
	}
	if conv.IsSummaryStale {
		t.Fatalf("stale flag should be cleared after generation")
	}
	if conv.SummaryGeneratedAt == nil {
		t.Fatalf("generated_at should be set")
	}

	if v, ok := cache.Get(ctx, "conversation_summary_"+id); !ok || v != "A short summary." {
		t.Fatalf("cache not refreshed: %q %v", v, ok)
	}

	// transcript is role-labeled and chronological
	if !strings.HasPrefix(fake.last, "User: message 0\nAssistant: message 1") {
		t.Fatalf("unexpected transcript head: %q", fake.last)
	}
}

func TestUpdateConversationSummary_FailureLeavesStateUntouched(t *testing.T) {
	repo := conversation.NewRepo(openTestDB(t))
	fake := &fakeSummarizer{err: errors.New("backend down")}
	svc := NewService(repo, newMapCache(), fake, zerolog.Nop())
	ctx := context.Background()

	id := seedConversation(t, repo, 5)

	// pre-existing summary plus stale flag, as if an edit happened
	if err := repo.SetSummary(ctx, id, "old summary", time.Now().UTC()); err != nil {
		t.Fatalf("seed summary: %v", err)
	}
	if err := repo.MarkSummaryStale(ctx, id); err != nil {
		t.Fatalf("mark stale: %v", err)
	}

	if svc.UpdateConversationSummary(ctx, id) {
		t.Fatalf("expected failure to report false")
	}

	conv, err := repo.GetConversation(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if conv.Summary == nil || *conv.Summary != "old summary" {
		t.Fatalf("failed generation must not clobber the summary: %v", conv.Summary)
	}
	if !conv.IsSummaryStale {
		t.Fatalf("failed generation must leave the stale flag set")
	}
}

func TestGenerateSummary_ClipsLongMessages(t *testing.T) {
	repo := conversation.NewRepo(openTestDB(t))
	fake := &fakeSummarizer{reply: "ok"}
	svc := NewService(repo, newMapCache(), fake, zerolog.Nop())
	ctx := context.Background()

	convSvc := conversation.NewService(repo, zerolog.Nop())
	c, _ := convSvc.CreateConversation(ctx, 1, "long")
	v, _ := convSvc.CreateVersion(ctx, c.ID, nil, nil)

	long := strings.Repeat("é", transcriptClipRunes+50)
	for i := 0; i < MinMessagesForSummary; i++ {
		if _, err := convSvc.AppendMessage(ctx, v.ID, "user", long); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if _, err := svc.GenerateSummary(ctx, c.ID); err != nil {
		t.Fatalf("generate: %v", err)
	}

	for _, line := range strings.Split(fake.last, "\n") {
		content := strings.TrimPrefix(line, "User: ")
		if got := len([]rune(content)); got > transcriptClipRunes {
			t.Fatalf("line not clipped: %d runes", got)
		}
	}
}

func TestGenerateSummary_WindowsToEarliestMessages(t *testing.T) {
	repo := conversation.NewRepo(openTestDB(t))
	fake := &fakeSummarizer{reply: "ok"}
	svc := NewService(repo, newMapCache(), fake, zerolog.Nop())
	ctx := context.Background()

	id := seedConversation(t, repo, MaxTranscriptMessages+5)

	if _, err := svc.GenerateSummary(ctx, id); err != nil {
		t.Fatalf("generate: %v", err)
	}

	lines := strings.Split(fake.last, "\n")
	if len(lines) != MaxTranscriptMessages {
		t.Fatalf("transcript should hold the first %d messages, got %d lines",
			MaxTranscriptMessages, len(lines))
	}
	// the window is anchored at the start of the history, in order
	for i, line := range lines {
		role := "User"
		if i%2 == 1 {
			role = "Assistant"
		}
		want := fmt.Sprintf("%s: message %d", role, i)
		if line != want {
			t.Fatalf("line %d: expected %q got %q", i, want, line)
		}
	}
}

func TestGetCachedSummary_FallsBackAndBackfills(t *testing.T) {
	repo := conversation.NewRepo(openTestDB(t))
	cache := newMapCache()
	svc := NewService(repo, cache, &fakeSummarizer{}, zerolog.Nop())
	ctx := context.Background()

	id := seedConversation(t, repo, 3)

	if _, ok := svc.GetCachedSummary(ctx, id); ok {
		t.Fatalf("expected miss before any summary exists")
	}

	if err := repo.SetSummary(ctx, id, "persisted", time.Now().UTC()); err != nil {
		t.Fatalf("set summary: %v", err)
	}

	text, ok := svc.GetCachedSummary(ctx, id)
	if !ok || text != "persisted" {
		t.Fatalf("expected persisted summary, got %q %v", text, ok)
	}
	if v, ok := cache.Get(ctx, "conversation_summary_"+id); !ok || v != "persisted" {
		t.Fatalf("cache should be backfilled, got %q %v", v, ok)
	}
}

func TestMarkStale_EvictsCache(t *testing.T) {
	repo := conversation.NewRepo(openTestDB(t))
	cache := newMapCache()
	svc := NewService(repo, cache, &fakeSummarizer{reply: "s"}, zerolog.Nop())
	ctx := context.Background()

	id := seedConversation(t, repo, 4)
	if !svc.UpdateConversationSummary(ctx, id) {
		t.Fatalf("generate failed")
	}

	if err := svc.MarkStale(ctx, id); err != nil {
		t.Fatalf("mark stale: %v", err)
	}

	if _, ok := cache.Get(ctx, "conversation_summary_"+id); ok {
		t.Fatalf("cache entry should be evicted")
	}
	conv, _ := repo.GetConversation(ctx, id)
	if !conv.IsSummaryStale {
		t.Fatalf("stale flag should be set")
	}
}

func TestBackfillMissingSummaries(t *testing.T) {
	repo := conversation.NewRepo(openTestDB(t))
	fake := &fakeSummarizer{reply: "backfilled"}
	svc := NewService(repo, newMapCache(), fake, zerolog.Nop())
	ctx := context.Background()

	withMsgs := seedConversation(t, repo, 4)
	alsoWithMsgs := seedConversation(t, repo, 3)

	// already summarized, should be skipped
	done := seedConversation(t, repo, 3)
	if err := repo.SetSummary(ctx, done, "existing", time.Now().UTC()); err != nil {
		t.Fatalf("seed summary: %v", err)
	}

	// empty conversation, not a candidate
	convSvc := conversation.NewService(repo, zerolog.Nop())
	if _, err := convSvc.CreateConversation(ctx, 1, "empty"); err != nil {
		t.Fatalf("create empty: %v", err)
	}

	n, err := svc.BackfillMissingSummaries(ctx, 0)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 backfills, got %d", n)
	}

	for _, id := range []string{withMsgs, alsoWithMsgs} {
		conv, _ := repo.GetConversation(ctx, id)
		if conv.Summary == nil || *conv.Summary != "backfilled" {
			t.Fatalf("conversation %s not backfilled: %v", id, conv.Summary)
		}
	}
	conv, _ := repo.GetConversation(ctx, done)
	if *conv.Summary != "existing" {
		t.Fatalf("existing summary overwritten: %q", *conv.Summary)
	}
}

func TestHookWiring(t *testing.T) {
	repo := conversation.NewRepo(openTestDB(t))
	fake := &fakeSummarizer{reply: "auto"}
	cache := newMapCache()
	svc := NewService(repo, cache, fake, zerolog.Nop())
	ctx := context.Background()

	convSvc := conversation.NewService(repo, zerolog.Nop())
	convSvc.RegisterCreateHook(svc.CreateHook())
	convSvc.RegisterAppendHook(svc.AppendHook())

	c, err := convSvc.CreateConversation(ctx, 1, "wired")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	v, _ := convSvc.CreateVersion(ctx, c.ID, nil, nil)

	// below the threshold nothing is generated
	for i := 0; i < MinMessagesForSummary-1; i++ {
		if _, err := convSvc.AppendMessage(ctx, v.ID, "user", "hi"); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	conv, _ := repo.GetConversation(ctx, c.ID)
	if conv.Summary != nil {
		t.Fatalf("summary generated too early: %v", *conv.Summary)
	}

	// the append that crosses the threshold triggers generation
	if _, err := convSvc.AppendMessage(ctx, v.ID, "assistant", "reply"); err != nil {
		t.Fatalf("append: %v", err)
	}
	conv, _ = repo.GetConversation(ctx, c.ID)
	if conv.Summary == nil || *conv.Summary != "auto" {
		t.Fatalf("append hook did not generate summary: %v", conv.Summary)
	}
	if conv.IsSummaryStale {
		t.Fatalf("stale flag should clear after hook generation")
	}
}
