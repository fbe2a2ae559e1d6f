package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// DefaultBrokeredURL is the OpenRouter chat-completions endpoint.
	DefaultBrokeredURL = "https://openrouter.ai/api/v1/chat/completions"

	// DefaultBrokeredModel is the free model the shared key is provisioned for.
	DefaultBrokeredModel = "mistralai/devstral-2512:free"

	brokeredReferer = "https://mintflow.dev/mintbalance"
	brokeredTitle   = "MintBalance"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// BrokeredBackend calls an OpenRouter chat model with a key obtained from a
// KeyBroker rather than one the user configured.
type BrokeredBackend struct {
	endpoint   string
	model      string
	broker     *KeyBroker
	httpClient *http.Client
}

// NewBrokeredBackend creates a brokered backend. opts.Broker must be set.
func NewBrokeredBackend(opts Options) *BrokeredBackend {
	endpoint := opts.BaseURL
	if endpoint == "" {
		endpoint = DefaultBrokeredURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultBrokeredModel
	}
	return &BrokeredBackend{
		endpoint:   endpoint,
		model:      model,
		broker:     opts.Broker,
		httpClient: opts.httpClient(),
	}
}

// Kind implements Backend.
func (b *BrokeredBackend) Kind() Kind { return KindBrokered }

// Ready implements Backend. The key is fetched lazily, so only the broker's
// presence is checked.
func (b *BrokeredBackend) Ready() error {
	if b.broker == nil {
		return fmt.Errorf("brokered: no key broker: %w", ErrMissingCredential)
	}
	return nil
}

// Complete implements Backend.
func (b *BrokeredBackend) Complete(ctx context.Context, c Completion) (string, error) {
	if err := b.Ready(); err != nil {
		return "", err
	}

	key, err := b.broker.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("brokered: obtain key: %w", err)
	}

	temperature := c.Temperature
	if temperature <= 0 {
		temperature = 0.2
	}
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 400
	}

	var messages []chatMessage
	if c.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: c.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: c.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       b.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("brokered: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("brokered: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("HTTP-Referer", brokeredReferer)
	req.Header.Set("X-Title", brokeredTitle)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", transportError(KindBrokered, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			// The shared key was rotated; make the next call fetch a new one.
			b.broker.Invalidate()
		}
		return "", &BackendError{
			Backend: KindBrokered,
			Status:  resp.StatusCode,
			Message: chatErrorMessage(resp),
		}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("brokered: decode response: %w", err)
	}

	var text string
	if len(out.Choices) > 0 {
		text = strings.TrimSpace(out.Choices[0].Message.Content)
	}
	if text == "" {
		return "", fmt.Errorf("brokered: empty response: %w", ErrUninterpretable)
	}
	return text, nil
}

func chatErrorMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload chatErrorResponse
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Error != nil && payload.Error.Message != "" {
			return payload.Error.Message
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fmt.Sprintf("request failed with status %d", resp.StatusCode)
}

var _ Backend = (*BrokeredBackend)(nil)
