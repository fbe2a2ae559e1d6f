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
	// DefaultLocalURL is where Ollama listens by default.
	DefaultLocalURL = "http://localhost:11434"

	// DefaultLocalModel is pulled by the desktop installer.
	DefaultLocalModel = "llama3.2"
)

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// LocalBackend runs prompts against an offline model served by Ollama.
type LocalBackend struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

// NewLocalBackend creates a backend for the Ollama server at opts.BaseURL.
func NewLocalBackend(opts Options) *LocalBackend {
	endpoint := strings.TrimRight(opts.BaseURL, "/")
	if endpoint == "" {
		endpoint = DefaultLocalURL
	}
	model := opts.ModelPath
	if model == "" {
		model = opts.Model
	}
	if model == "" {
		model = DefaultLocalModel
	}
	return &LocalBackend{
		endpoint:   endpoint,
		model:      model,
		httpClient: opts.httpClient(),
	}
}

// Kind implements Backend.
func (b *LocalBackend) Kind() Kind { return KindLocal }

// Ready implements Backend. A local model needs no credential.
func (b *LocalBackend) Ready() error { return nil }

// Complete implements Backend.
func (b *LocalBackend) Complete(ctx context.Context, c Completion) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  b.model,
		Prompt: c.Prompt,
		System: c.System,
		Stream: false,
		Options: generateOptions{
			Temperature: c.Temperature,
			NumPredict:  c.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("local: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("local: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", transportError(KindLocal, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		var payload generateResponse
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return "", &BackendError{Backend: KindLocal, Status: resp.StatusCode, Message: msg}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("local: decode response: %w", err)
	}

	return strings.TrimSpace(out.Response), nil
}

var _ Backend = (*LocalBackend)(nil)
