package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultKeySourceURL serves the shared brokered key as plain text.
const DefaultKeySourceURL = "https://pastebin.com/raw/ry1bnts8"

// ErrEmptyKey is returned when the key source answers with a blank body.
var ErrEmptyKey = errors.New("key source returned an empty value")

// KeySource fetches the shared key.
type KeySource interface {
	FetchKey(ctx context.Context) (string, error)
}

// KeySourceFunc adapts a function to KeySource.
type KeySourceFunc func(ctx context.Context) (string, error)

// FetchKey implements KeySource.
func (f KeySourceFunc) FetchKey(ctx context.Context) (string, error) { return f(ctx) }

// HTTPKeySource reads the key from a URL that returns it as plain text.
type HTTPKeySource struct {
	URL    string
	Client *http.Client
}

// FetchKey implements KeySource.
func (s HTTPKeySource) FetchKey(ctx context.Context) (string, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return "", fmt.Errorf("FetchKey: build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("FetchKey: %w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("FetchKey: key source returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	if err != nil {
		return "", fmt.Errorf("FetchKey: read body: %w", err)
	}
	return string(body), nil
}

// KeyBroker owns the process-wide copy of the shared brokered key. At most
// one fetch is in flight at a time; concurrent callers wait for it and
// receive the same value. A fetched key is cached until Invalidate.
type KeyBroker struct {
	source KeySource
	group  singleflight.Group

	mu  sync.RWMutex
	key string
}

// NewKeyBroker creates a broker that fetches from source on first use.
func NewKeyBroker(source KeySource) *KeyBroker {
	return &KeyBroker{source: source}
}

// Get returns the cached key, fetching it if necessary.
func (b *KeyBroker) Get(ctx context.Context) (string, error) {
	b.mu.RLock()
	key := b.key
	b.mu.RUnlock()
	if key != "" {
		return key, nil
	}
	return b.fetch(ctx)
}

// Refresh drops the cached key and fetches a new one. If a fetch is already
// in flight, Refresh joins it.
func (b *KeyBroker) Refresh(ctx context.Context) (string, error) {
	b.Invalidate()
	return b.fetch(ctx)
}

// Invalidate clears the cached key.
func (b *KeyBroker) Invalidate() {
	b.mu.Lock()
	b.key = ""
	b.mu.Unlock()
}

func (b *KeyBroker) fetch(ctx context.Context) (string, error) {
	// The shared fetch must outlive any single caller's cancellation.
	fetchCtx := context.WithoutCancel(ctx)

	ch := b.group.DoChan("key", func() (interface{}, error) {
		raw, err := b.source.FetchKey(fetchCtx)
		if err != nil {
			return "", err
		}
		key := strings.TrimSpace(raw)
		if key == "" {
			return "", ErrEmptyKey
		}

		b.mu.Lock()
		b.key = key
		b.mu.Unlock()
		return key, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", fmt.Errorf("KeyBroker: %w", res.Err)
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
