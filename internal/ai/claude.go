package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultClaudeModel is used when Options.Model is empty.
const DefaultClaudeModel = "claude-sonnet-4-5-20250929"

// messageSender is the slice of the Anthropic client the backend uses.
type messageSender interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// ClaudeBackend calls Anthropic's Messages API with the user's key.
type ClaudeBackend struct {
	apiKey   string
	model    string
	messages messageSender
}

// NewClaudeBackend creates a Claude backend.
func NewClaudeBackend(opts Options) *ClaudeBackend {
	model := opts.Model
	if model == "" {
		model = DefaultClaudeModel
	}
	b := &ClaudeBackend{
		apiKey: strings.TrimSpace(opts.APIKey),
		model:  model,
	}
	if b.apiKey != "" {
		client := anthropic.NewClient(
			option.WithAPIKey(b.apiKey),
			option.WithHTTPClient(opts.httpClient()),
		)
		b.messages = &client.Messages
	}
	return b
}

// Kind implements Backend.
func (b *ClaudeBackend) Kind() Kind { return KindClaude }

// Ready implements Backend.
func (b *ClaudeBackend) Ready() error {
	if b.apiKey == "" || b.messages == nil {
		return fmt.Errorf("claude: %w", ErrMissingCredential)
	}
	return nil
}

// Complete implements Backend.
func (b *ClaudeBackend) Complete(ctx context.Context, c Completion) (string, error) {
	if err := b.Ready(); err != nil {
		return "", err
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(b.model),
		MaxTokens:   int64(c.MaxTokens),
		Temperature: anthropic.Float(float64(c.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(c.Prompt)),
		},
	}
	if c.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.System}}
	}

	message, err := b.messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &BackendError{Backend: KindClaude, Status: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return "", transportError(KindClaude, err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}

var _ Backend = (*ClaudeBackend)(nil)
