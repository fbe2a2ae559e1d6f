package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when Options.Model is empty.
const DefaultGeminiModel = "gemini-2.5-flash"

// contentGenerator is the slice of the genai client the backend uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiBackend calls Google's Gemini API with the user's key.
type GeminiBackend struct {
	apiKey string
	model  string

	mu        sync.Mutex
	generator contentGenerator
}

// NewGeminiBackend creates a Gemini backend. The genai client is created on
// first use.
func NewGeminiBackend(opts Options) *GeminiBackend {
	model := opts.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiBackend{
		apiKey: strings.TrimSpace(opts.APIKey),
		model:  model,
	}
}

// Kind implements Backend.
func (b *GeminiBackend) Kind() Kind { return KindCloud }

// Ready implements Backend.
func (b *GeminiBackend) Ready() error {
	if b.apiKey == "" {
		return fmt.Errorf("gemini: %w", ErrMissingCredential)
	}
	return nil
}

// Complete implements Backend.
func (b *GeminiBackend) Complete(ctx context.Context, c Completion) (string, error) {
	if err := b.Ready(); err != nil {
		return "", err
	}

	gen, err := b.client(ctx)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.Temperature),
		MaxOutputTokens: int32(c.MaxTokens),
	}
	if c.System != "" {
		config.SystemInstruction = genai.NewContentFromText(c.System, genai.RoleUser)
	}

	resp, err := gen.GenerateContent(ctx, b.model, genai.Text(c.Prompt), config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &BackendError{Backend: KindCloud, Status: apiErr.Code, Message: apiErr.Message}
		}
		return "", transportError(KindCloud, err)
	}

	return strings.TrimSpace(resp.Text()), nil
}

func (b *GeminiBackend) client(ctx context.Context) (contentGenerator, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.generator != nil {
		return b.generator, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  b.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create genai client: %w", err)
	}
	b.generator = client.Models
	return b.generator, nil
}

var _ Backend = (*GeminiBackend)(nil)
