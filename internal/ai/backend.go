// Package ai routes categorization, prediction and insight requests to a
// language-model backend and normalizes what comes back. When a backend
// fails, the Gateway either returns the error or substitutes a result
// computed from the ledger, depending on its Policy.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind names a backend implementation.
type Kind string

const (
	// KindCloud is Google Gemini, authenticated with the user's API key.
	KindCloud Kind = "cloud"
	// KindClaude is Anthropic Claude, authenticated with the user's API key.
	KindClaude Kind = "claude"
	// KindBrokered is an OpenRouter chat model reached with a shared key
	// handed out by a KeyBroker.
	KindBrokered Kind = "brokered"
	// KindLocal is a model served on this machine through Ollama.
	KindLocal Kind = "local"
)

var (
	// ErrMissingCredential means the backend needs an API key and none was
	// configured. It is returned before any network call is made.
	ErrMissingCredential = errors.New("missing API credential")

	// ErrTransport wraps failures to reach a backend at all.
	ErrTransport = errors.New("backend unreachable")

	// ErrUninterpretable means the backend answered but the text could not
	// be used: empty, an echo of the prompt, or missing the expected shape.
	ErrUninterpretable = errors.New("uninterpretable model output")

	// ErrUnknownBackend is returned by NewBackend for an unrecognized kind.
	ErrUnknownBackend = errors.New("unknown AI backend")
)

// BackendError is a non-2xx response from a backend.
type BackendError struct {
	Backend Kind
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend returned status %d: %s", e.Backend, e.Status, e.Message)
}

// Completion is one prompt sent to a backend.
type Completion struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Backend sends a prompt to one language model and returns its raw text.
type Backend interface {
	// Kind identifies the implementation.
	Kind() Kind

	// Ready reports whether the backend has what it needs to make a call.
	// It never touches the network.
	Ready() error

	// Complete sends c and returns the model's text.
	Complete(ctx context.Context, c Completion) (string, error)
}

// Options configures NewBackend. Fields irrelevant to the chosen kind are
// ignored.
type Options struct {
	// APIKey authenticates cloud and claude backends.
	APIKey string

	// Model overrides the backend's default model name.
	Model string

	// BaseURL overrides the endpoint of the local and brokered backends.
	BaseURL string

	// ModelPath selects a specific local model, taking precedence over Model.
	ModelPath string

	// Broker supplies the shared key for the brokered backend.
	Broker *KeyBroker

	// Timeout bounds each HTTP request. Zero means DefaultTimeout.
	Timeout time.Duration

	// HTTPClient replaces the client built from Timeout.
	HTTPClient *http.Client
}

// DefaultTimeout bounds a single backend request.
const DefaultTimeout = 60 * time.Second

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// NewBackend builds the backend for kind.
func NewBackend(kind Kind, opts Options) (Backend, error) {
	switch kind {
	case KindCloud:
		return NewGeminiBackend(opts), nil
	case KindClaude:
		return NewClaudeBackend(opts), nil
	case KindBrokered:
		if opts.Broker == nil {
			return nil, fmt.Errorf("NewBackend: brokered backend requires a key broker")
		}
		return NewBrokeredBackend(opts), nil
	case KindLocal:
		return NewLocalBackend(opts), nil
	default:
		return nil, fmt.Errorf("NewBackend: %q: %w", kind, ErrUnknownBackend)
	}
}

func transportError(kind Kind, err error) error {
	return fmt.Errorf("%s request: %w: %w", kind, ErrTransport, err)
}
