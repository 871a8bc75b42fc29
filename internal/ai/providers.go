package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/suPer8Hu/convo-platform/internal/config"
)

// ProviderFactory builds a Provider for a concrete model. An empty model
// means "use the backend's configured default".
type ProviderFactory func(ctx context.Context, model string) (Provider, error)

// Registry maps backend names to factories. Lookups are case-insensitive.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider %q (have: %s)", name, strings.Join(r.names(), ", "))
	}
	return f(ctx, model)
}

func (r *Registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NewDefaultRegistry wires the built-in backends. A lookup with an empty
// model falls back to the configured default for that backend.
func NewDefaultRegistry(cfg config.Config) *Registry {
	reg := NewRegistry()

	reg.Register("ollama", func(ctx context.Context, model string) (Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})

	reg.Register("openrouter", func(ctx context.Context, model string) (Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey,
			m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})

	return reg
}

// SummarizerFromConfig resolves the configured backend through the registry
// and wraps it for transcript summarization.
func SummarizerFromConfig(cfg config.Config) (*ProviderSummarizer, error) {
	name := cfg.AIProvider
	if name == "" {
		name = "ollama"
	}
	p, err := NewDefaultRegistry(cfg).Get(context.Background(), name, "")
	if err != nil {
		return nil, err
	}
	return NewProviderSummarizer(p), nil
}
