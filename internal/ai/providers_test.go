package ai

import (
	"context"
	"testing"

	"github.com/suPer8Hu/convo-platform/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		AIProvider:        "ollama",
		OllamaBaseURL:     "http://ollama.local:11434",
		OllamaModel:       "llama3:latest",
		OpenRouterBaseURL: "https://openrouter.ai/api/v1",
		OpenRouterAPIKey:  "test-key",
		OpenRouterModel:   "openrouter/auto",
	}
}

func TestDefaultRegistry_ResolvesBackends(t *testing.T) {
	reg := NewDefaultRegistry(testConfig())
	ctx := context.Background()

	p, err := reg.Get(ctx, "ollama", "")
	if err != nil {
		t.Fatalf("get ollama: %v", err)
	}
	ollama, ok := p.(*OllamaProvider)
	if !ok {
		t.Fatalf("expected *OllamaProvider, got %T", p)
	}
	if ollama.Model != "llama3:latest" {
		t.Fatalf("empty model should fall back to configured default, got %q", ollama.Model)
	}

	p, err = reg.Get(ctx, "Ollama", "mistral:7b")
	if err != nil {
		t.Fatalf("get with model override: %v", err)
	}
	if got := p.(*OllamaProvider).Model; got != "mistral:7b" {
		t.Fatalf("model override ignored, got %q", got)
	}

	p, err = reg.Get(ctx, "openrouter", "")
	if err != nil {
		t.Fatalf("get openrouter: %v", err)
	}
	or, ok := p.(*OpenRouterProvider)
	if !ok {
		t.Fatalf("expected *OpenRouterProvider, got %T", p)
	}
	if or.Model != "openrouter/auto" || or.APIKey != "test-key" {
		t.Fatalf("openrouter not built from config: %+v", or)
	}

	if _, err := reg.Get(ctx, "bedrock", ""); err == nil {
		t.Fatalf("expected error for unregistered backend")
	}
}

func TestSummarizerFromConfig(t *testing.T) {
	s, err := SummarizerFromConfig(testConfig())
	if err != nil {
		t.Fatalf("summarizer from config: %v", err)
	}
	if _, ok := s.Provider.(*OllamaProvider); !ok {
		t.Fatalf("expected ollama backend, got %T", s.Provider)
	}

	cfg := testConfig()
	cfg.AIProvider = "openrouter"
	s, err = SummarizerFromConfig(cfg)
	if err != nil {
		t.Fatalf("summarizer from config: %v", err)
	}
	if _, ok := s.Provider.(*OpenRouterProvider); !ok {
		t.Fatalf("expected openrouter backend, got %T", s.Provider)
	}

	cfg.AIProvider = "unknown"
	if _, err := SummarizerFromConfig(cfg); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
