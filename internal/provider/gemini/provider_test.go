package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"islamai-relay/internal/config"
	"islamai-relay/internal/provider"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New(config.ProviderConfig{BaseURL: srv.URL + "/v1beta/"}, srv.Client())
	require.NoError(t, err)
	return p
}

func TestAuthenticateRequiresKey(t *testing.T) {
	p, err := New(config.ProviderConfig{BaseURL: "https://example.test"}, http.DefaultClient)
	require.NoError(t, err)

	_, err = p.Authenticate("  ")
	require.ErrorIs(t, err, provider.ErrProviderAuth)
	assert.Equal(t, "gemini API key not configured", err.Error())
}

func TestGenerateNonStreaming(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-2.0-pro-exp-02-05:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.Query().Get("key"))

		var req generateRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) || !assert.Len(t, req.Contents, 1) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "What is Zakat?", req.Contents[0].Parts[0].Text)
		assert.Equal(t, 0.7, req.GenerationConfig.Temperature)
		assert.Equal(t, 0.8, req.GenerationConfig.TopP)
		assert.Equal(t, 40, req.GenerationConfig.TopK)
		assert.Equal(t, 2048, req.GenerationConfig.MaxOutputTokens)
		assert.Len(t, req.SafetySettings, 4)
		for _, s := range req.SafetySettings {
			assert.Equal(t, "BLOCK_NONE", s.Threshold)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"  Zakat is "},{"text":"almsgiving.  "}]}}]}`)
	})

	gen, err := p.Authenticate("secret")
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(), "gemini-2.0-pro-exp-02-05", "What is Zakat?", false)
	require.NoError(t, err)
	assert.Equal(t, "Zakat is almsgiving.", text)
}

func TestGenerateStreamingConcatenatesChunks(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-flash:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range []string{"Thinking: 1. ", "Consider.", "\n---\n", "Answer."} {
			body, _ := json.Marshal(generateResponse{Candidates: []candidate{{Content: content{Parts: []part{{Text: chunk}}}}}})
			fmt.Fprintf(w, "data: %s\r\n\r\n", body)
			flusher.Flush()
		}
		// A trailing chunk without parts carries only the finish reason.
		fmt.Fprint(w, "data: {\"candidates\":[{\"finishReason\":\"STOP\",\"content\":{}}]}\n\n")
	})

	gen, err := p.Authenticate("secret")
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(), "gemini-flash", "q", true)
	require.NoError(t, err)
	assert.Equal(t, "Thinking: 1. Consider.\n---\nAnswer.", text)
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name      string
		streaming bool
		handler   http.HandlerFunc
		contains  string
	}{
		{
			name: "upstream error body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
			},
			contains: "API key not valid",
		},
		{
			name:      "stream error array",
			streaming: true,
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = io.WriteString(w, `[{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}]`)
			},
			contains: "quota exceeded",
		},
		{
			name: "no candidates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"candidates":[]}`)
			},
			contains: "no valid response",
		},
		{
			name: "blocked prompt",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
			},
			contains: "prompt blocked: SAFETY",
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `not json`)
			},
			contains: "decode provider response",
		},
		{
			name:      "empty stream",
			streaming: true,
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
			},
			contains: "no valid response",
		},
		{
			name:      "stream finished by safety without parts",
			streaming: true,
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				_, _ = io.WriteString(w, "data: {\"candidates\":[{\"finishReason\":\"SAFETY\",\"content\":{}}]}\n\n")
			},
			contains: "no valid response",
		},
		{
			name: "blank text",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"  \n"}]}}]}`)
			},
			contains: "no valid response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, tt.handler)
			gen, err := p.Authenticate("secret")
			require.NoError(t, err)

			_, err = gen.Generate(context.Background(), "gemini-pro", "q", tt.streaming)
			require.Error(t, err)
			assert.ErrorIs(t, err, provider.ErrProviderGeneration)
			assert.True(t, strings.HasPrefix(err.Error(), "gemini API error: "), err.Error())
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestSSEDecoder(t *testing.T) {
	d := newSSEDecoder(strings.NewReader("event: x\ndata: a\ndata: b\n\n: comment\n\ndata: c"))

	first, err := d.next()
	require.NoError(t, err)
	assert.Equal(t, "a\nb", first)

	second, err := d.next()
	require.NoError(t, err)
	assert.Equal(t, "c", second)

	_, err = d.next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestUsageAttrs(t *testing.T) {
	var none *usageMetadata
	assert.Empty(t, none.attrs())

	u := &usageMetadata{PromptTokenCount: 12, CandidatesTokenCount: 30, TotalTokenCount: 42}
	assert.Equal(t, []any{"prompt_tokens", 12, "output_tokens", 30, "total_tokens", 42}, u.attrs())
}
