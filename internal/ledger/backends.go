package ledger

import (
	"fmt"
	"sync"

	"github.com/dvloznov/mintbalance/internal/ai"
	"github.com/dvloznov/mintbalance/internal/config"
)

// BackendResolver hands out the AI backend for a mode.
type BackendResolver interface {
	Backend(kind ai.Kind) (ai.Backend, error)
}

// Backends builds AI backends from configuration and keeps one per kind.
// The brokered kind shares a single KeyBroker for the process.
type Backends struct {
	cfg    config.AIConfig
	broker *ai.KeyBroker

	mu    sync.Mutex
	cache map[ai.Kind]ai.Backend
}

// NewBackends creates a resolver for cfg.
func NewBackends(cfg config.AIConfig) *Backends {
	return &Backends{
		cfg:    cfg,
		broker: ai.NewKeyBroker(ai.HTTPKeySource{URL: cfg.KeySourceURL}),
		cache:  make(map[ai.Kind]ai.Backend),
	}
}

// Broker returns the shared key broker.
func (b *Backends) Broker() *ai.KeyBroker { return b.broker }

// Backend implements BackendResolver.
func (b *Backends) Backend(kind ai.Kind) (ai.Backend, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if backend, ok := b.cache[kind]; ok {
		return backend, nil
	}

	opts := ai.Options{
		Model:   b.cfg.Model,
		Timeout: b.cfg.Timeout,
	}
	switch kind {
	case ai.KindCloud:
		opts.APIKey = b.cfg.GeminiAPIKey
	case ai.KindClaude:
		opts.APIKey = b.cfg.AnthropicAPIKey
	case ai.KindLocal:
		opts.BaseURL = b.cfg.LocalURL
		opts.ModelPath = b.cfg.LocalModel
	case ai.KindBrokered:
		opts.BaseURL = b.cfg.BrokeredURL
		opts.Broker = b.broker
	}

	backend, err := ai.NewBackend(kind, opts)
	if err != nil {
		return nil, fmt.Errorf("Backend: %w", err)
	}
	b.cache[kind] = backend
	return backend, nil
}

var _ BackendResolver = (*Backends)(nil)
