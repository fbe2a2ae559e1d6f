package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyBroker_ConcurrentGetFetchesOnce(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	broker := NewKeyBroker(KeySourceFunc(func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "  shared-key\n", nil
	}))

	var wg sync.WaitGroup
	results := make([]string, 2)
	errs := make([]error, 2)
	get := func(i int) {
		defer wg.Done()
		results[i], errs[i] = broker.Get(context.Background())
	}

	wg.Add(1)
	go get(0)
	<-started

	wg.Add(1)
	go get(1)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, "shared-key", results[0])
	assert.Equal(t, results[0], results[1])
	assert.Equal(t, int32(1), calls.Load())
}

func TestKeyBroker_CachesUntilInvalidated(t *testing.T) {
	var calls atomic.Int32
	broker := NewKeyBroker(KeySourceFunc(func(ctx context.Context) (string, error) {
		n := calls.Add(1)
		return fmt.Sprintf("key-%d", n), nil
	}))
	ctx := context.Background()

	k1, err := broker.Get(ctx)
	require.NoError(t, err)
	k2, err := broker.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "key-1", k1)
	assert.Equal(t, k1, k2)

	broker.Invalidate()
	k3, err := broker.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "key-2", k3)

	k4, err := broker.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "key-3", k4)
	assert.Equal(t, int32(3), calls.Load())
}

func TestKeyBroker_Errors(t *testing.T) {
	t.Run("empty key", func(t *testing.T) {
		broker := NewKeyBroker(KeySourceFunc(func(ctx context.Context) (string, error) {
			return "   ", nil
		}))
		_, err := broker.Get(context.Background())
		assert.ErrorIs(t, err, ErrEmptyKey)
	})

	t.Run("source failure is not cached", func(t *testing.T) {
		fail := true
		broker := NewKeyBroker(KeySourceFunc(func(ctx context.Context) (string, error) {
			if fail {
				return "", errors.New("boom")
			}
			return "ok-key", nil
		}))

		_, err := broker.Get(context.Background())
		require.Error(t, err)

		fail = false
		key, err := broker.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ok-key", key)
	})

	t.Run("caller cancellation", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		broker := NewKeyBroker(KeySourceFunc(func(ctx context.Context) (string, error) {
			<-release
			return "late", nil
		}))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := broker.Get(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestHTTPKeySource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "remote-key\n")
	}))
	defer srv.Close()

	key, err := HTTPKeySource{URL: srv.URL + "/raw"}.FetchKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "remote-key\n", key)

	_, err = HTTPKeySource{URL: srv.URL + "/missing"}.FetchKey(context.Background())
	assert.Error(t, err)
}
