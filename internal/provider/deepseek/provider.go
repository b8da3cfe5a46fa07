package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"islamai-relay/internal/config"
	"islamai-relay/internal/models"
	"islamai-relay/internal/provider"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "islamai-relay/0.1"
)

// SystemPrompt is sent ahead of the raw user content on every call.
const SystemPrompt = "You are a knowledgeable Islamic AI assistant, providing accurate and respectful guidance based on Islamic teachings."

// Provider implements the adapter for DeepSeek's OpenAI-compatible API.
type Provider struct {
	client  *http.Client
	chatURL string
}

// New creates a new DeepSeek provider.
func New(cfg config.ProviderConfig, client *http.Client) (*Provider, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base url must not be empty")
	}

	return &Provider{
		client:  client,
		chatURL: baseURL + "/chat/completions",
	}, nil
}

func (p *Provider) Name() models.ProviderName {
	return models.ProviderDeepSeek
}

// Authenticate binds apiKey to a generator for a single request.
func (p *Provider) Authenticate(apiKey string) (provider.Generator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &provider.AuthError{Provider: models.ProviderDeepSeek}
	}
	return &session{Provider: p, apiKey: apiKey}, nil
}

type session struct {
	*Provider
	apiKey string
}

// Generate issues one non-streaming chat completion. The streaming flag is
// ignored and content is sent as the user message unchanged.
func (s *session) Generate(ctx context.Context, modelID, content string, _ bool) (string, error) {
	text, err := s.chat(ctx, modelID, content)
	if err != nil {
		return "", provider.NewGenerationError(models.ProviderDeepSeek, err)
	}
	return text, nil
}

func (s *session) chat(ctx context.Context, modelID, content string) (string, error) {
	payload := chatPayload{
		Model: modelID,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: content},
		},
		Stream: false,
	}

	httpReq, err := s.newRequest(ctx, http.MethodPost, s.chatURL, payload)
	if err != nil {
		return "", err
	}

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("deepseek chat request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return "", parseAPIError(httpResp)
	}

	var providerResp chatResponse
	if err := decodeJSON(httpResp.Body, &providerResp); err != nil {
		return "", err
	}
	if u := providerResp.Usage; u != nil {
		slog.Debug("deepseek generation complete",
			"model", modelID,
			"prompt_tokens", u.PromptTokens,
			"output_tokens", u.CompletionTokens,
			"total_tokens", u.TotalTokens)
	}
	return providerResp.text()
}

func (s *session) newRequest(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	return req, nil
}

type chatPayload struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string          `json:"id"`
	Choices []chatChoice    `json:"choices"`
	Usage   *usageBlock     `json:"usage,omitempty"`
	Error   *apiErrorObject `json:"error,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type usageBlock struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (r chatResponse) text() (string, error) {
	if r.Error != nil && r.Error.Message != "" {
		return "", fmt.Errorf("deepseek error (%s): %s", r.Error.Type, r.Error.Message)
	}
	if len(r.Choices) == 0 {
		return "", errors.New("deepseek response did not include choices")
	}
	text := strings.TrimSpace(r.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("no valid response generated from the AI model")
	}
	return text, nil
}

type apiErrorResponse struct {
	Error apiErrorObject `json:"error"`
}

type apiErrorObject struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("upstream error status %d and failed to read body: %w", resp.StatusCode, err)
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("deepseek error (%s): %s", apiErr.Error.Type, apiErr.Error.Message)
	}

	return fmt.Errorf("upstream error status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func decodeJSON(reader io.Reader, target any) error {
	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}
