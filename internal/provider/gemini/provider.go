package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"islamai-relay/internal/config"
	"islamai-relay/internal/models"
	"islamai-relay/internal/provider"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "islamai-relay/0.1"
	apiKeyHeader    = "x-goog-api-key"
	maxErrorBody    = 64 * 1024
)

// Sampling parameters applied to every call.
const (
	temperature     = 0.7
	topP            = 0.8
	topK            = 40
	maxOutputTokens = 2048
)

var harmCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// Provider talks to the Gemini generateContent REST API.
type Provider struct {
	baseURL string
	client  *http.Client
}

// New constructs a Gemini provider.
func New(cfg config.ProviderConfig, client *http.Client) (*Provider, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base url must not be empty")
	}

	return &Provider{
		baseURL: baseURL,
		client:  client,
	}, nil
}

func (p *Provider) Name() models.ProviderName {
	return models.ProviderGemini
}

// Authenticate binds apiKey to a generator for a single request.
func (p *Provider) Authenticate(apiKey string) (provider.Generator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &provider.AuthError{Provider: models.ProviderGemini}
	}
	return &session{Provider: p, apiKey: apiKey}, nil
}

type session struct {
	*Provider
	apiKey string
}

// Generate runs one generation. With streaming set, chunks are concatenated
// in arrival order and returned once the stream completes.
func (s *session) Generate(ctx context.Context, modelID, prompt string, streaming bool) (string, error) {
	payload := buildPayload(prompt)

	var (
		text string
		err  error
	)
	if streaming {
		text, err = s.stream(ctx, modelID, payload)
	} else {
		text, err = s.generate(ctx, modelID, payload)
	}
	if err != nil {
		return "", provider.NewGenerationError(models.ProviderGemini, err)
	}
	return text, nil
}

func (s *session) generate(ctx context.Context, modelID string, payload generateRequest) (string, error) {
	endpoint := s.modelURL(modelID, "generateContent")

	httpResp, err := s.do(ctx, endpoint, payload, contentTypeJSON)
	if err != nil {
		return "", err
	}
	defer httpResp.Body.Close()

	var resp generateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("decode provider response: %w", err)
	}

	if reason := resp.blockReason(); reason != "" {
		return "", fmt.Errorf("prompt blocked: %s", reason)
	}

	text, ok := resp.text()
	text = strings.TrimSpace(text)
	if !ok || text == "" {
		return "", errors.New("no valid response generated from the AI model")
	}
	slog.Debug("gemini generation complete", append([]any{"model", modelID}, resp.UsageMetadata.attrs()...)...)
	return text, nil
}

func (s *session) stream(ctx context.Context, modelID string, payload generateRequest) (string, error) {
	endpoint := s.modelURL(modelID, "streamGenerateContent") + "?alt=sse"

	httpResp, err := s.do(ctx, endpoint, payload, "text/event-stream")
	if err != nil {
		return "", err
	}
	defer httpResp.Body.Close()

	var (
		sb     strings.Builder
		chunks int
		usage  *usageMetadata
	)
	decoder := newSSEDecoder(httpResp.Body)
	for {
		data, err := decoder.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read stream: %w", err)
		}
		if data == "" || data == "[DONE]" {
			continue
		}

		var chunk generateResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return "", fmt.Errorf("decode stream chunk: %w", err)
		}
		if chunk.Error != nil {
			return "", fmt.Errorf("stream error (%s): %s", chunk.Error.Status, chunk.Error.Message)
		}
		if reason := chunk.blockReason(); reason != "" {
			return "", fmt.Errorf("prompt blocked: %s", reason)
		}

		if chunk.UsageMetadata != nil {
			usage = chunk.UsageMetadata
		}
		text, ok := chunk.text()
		if !ok || text == "" {
			continue
		}
		chunks++
		sb.WriteString(text)
	}

	if chunks == 0 {
		return "", errors.New("no valid response generated from the AI model")
	}
	slog.Debug("gemini stream complete", append([]any{"model", modelID, "chunks", chunks}, usage.attrs()...)...)
	return sb.String(), nil
}

func (s *session) modelURL(modelID, method string) string {
	return fmt.Sprintf("%s/models/%s:%s", s.baseURL, url.PathEscape(modelID), method)
}

func (s *session) do(ctx context.Context, endpoint string, payload any, accept string) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(apiKeyHeader, s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, parseAPIError(resp)
	}
	return resp, nil
}

func buildPayload(prompt string) generateRequest {
	safety := make([]safetySetting, 0, len(harmCategories))
	for _, category := range harmCategories {
		safety = append(safety, safetySetting{Category: category, Threshold: "BLOCK_NONE"})
	}

	return generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: prompt}},
		}},
		GenerationConfig: generationConfig{
			Temperature:     temperature,
			TopP:            topP,
			TopK:            topK,
			MaxOutputTokens: maxOutputTokens,
		},
		SafetySettings: safety,
	}
}

func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("upstream error status %d and failed to read body: %w", resp.StatusCode, err)
	}

	// Streaming errors arrive as a JSON array of error objects.
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []apiErrorResponse
		if err := json.Unmarshal(trimmed, &list); err == nil && len(list) > 0 && list[0].Error.Message != "" {
			return fmt.Errorf("status %d (%s): %s", resp.StatusCode, list[0].Error.Status, list[0].Error.Message)
		}
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(trimmed, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("status %d (%s): %s", resp.StatusCode, apiErr.Error.Status, apiErr.Error.Message)
	}

	return fmt.Errorf("upstream error status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
