// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/paperwatch/internal/httputil"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// Chat completions endpoints. Package-level vars for test substitution.
var (
	deepSeekURL = "https://api.deepseek.com/chat/completions"
	openAIURL   = "https://api.openai.com/v1/chat/completions"
)

const (
	defaultDeepSeekModel = "deepseek-chat"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultLLMTimeout    = 60 * time.Second
	maxErrorBody         = 512
)

// Provider sends one prompt to a language model and returns its reply.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// APIError is a non-200 answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if sent again.
func (e *APIError) Retryable() bool {
	return httputil.Retryable(e.StatusCode)
}

// ChatProvider speaks the OpenAI chat completions protocol, which DeepSeek
// and most gateways also implement.
type ChatProvider struct {
	name   string
	URL    string
	Model  string
	APIKey string
	Client *http.Client
}

// NewProvider builds the provider selected by cfg.Provider. Model and
// BaseURL override the provider defaults.
func NewProvider(cfg types.LLMConfig) (*ChatProvider, error) {
	p := &ChatProvider{
		name:   string(cfg.Provider),
		Model:  cfg.Model,
		APIKey: cfg.APIKey,
	}
	switch cfg.Provider {
	case types.ProviderDeepSeek, "":
		p.name = string(types.ProviderDeepSeek)
		p.URL = deepSeekURL
		if p.Model == "" {
			p.Model = defaultDeepSeekModel
		}
	case types.ProviderOpenAI:
		p.URL = openAIURL
		if p.Model == "" {
			p.Model = defaultOpenAIModel
		}
	default:
		return nil, fmt.Errorf("%w: unsupported llm.provider %q", types.ErrInvalidConfig, cfg.Provider)
	}
	if cfg.BaseURL != "" {
		p.URL = chatEndpoint(cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	p.Client = &http.Client{Timeout: timeout}
	return p, nil
}

// chatEndpoint accepts either a full endpoint or an API root such as
// https://gateway.example/v1.
func chatEndpoint(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

// Name returns the provider identifier.
func (p *ChatProvider) Name() string { return p.name }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a single user message and returns the first
// choice's content. Non-200 answers come back as *APIError.
func (p *ChatProvider) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    p.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling %s API: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &APIError{Provider: p.name, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding %s response: %w", p.name, err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("%s API returned no choices", p.name)
	}
	return cr.Choices[0].Message.Content, nil
}
