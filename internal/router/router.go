package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"islamai-relay/internal/models"
	"islamai-relay/internal/normalize"
	"islamai-relay/internal/prompt"
	"islamai-relay/internal/provider"
	"islamai-relay/internal/settings"
)

var (
	// ErrValidation indicates a malformed chat request.
	ErrValidation = errors.New("invalid request")
	// ErrInternal indicates a local failure unrelated to the caller or the provider.
	ErrInternal = errors.New("internal error")
)

// State is a step of the per-request pipeline.
type State int

const (
	StateReceived State = iota
	StateProviderSelected
	StateAuthenticated
	StateGenerating
	StateNormalizing
	StateResponded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "RECEIVED"
	case StateProviderSelected:
		return "PROVIDER_SELECTED"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateGenerating:
		return "GENERATING"
	case StateNormalizing:
		return "NORMALIZING"
	case StateResponded:
		return "RESPONDED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StageError records the state a request failed in.
type StageError struct {
	State State
	Err   error
}

func (e *StageError) Error() string {
	return e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Router drives chat requests through provider selection, generation and normalization.
type Router struct {
	store    settings.Store
	registry *provider.Registry
	adapters map[models.ProviderName]provider.Adapter
	now      func() time.Time
}

// New constructs a router. adapters must hold one entry per provider.
func New(store settings.Store, registry *provider.Registry, adapters map[models.ProviderName]provider.Adapter) *Router {
	return &Router{
		store:    store,
		registry: registry,
		adapters: adapters,
		now:      time.Now,
	}
}

// Chat handles one request end to end. Failures are *StageError.
func (r *Router) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResult, error) {
	start := r.now()
	state := StateReceived
	fail := func(err error) (*models.ChatResult, error) {
		slog.Debug("chat failed", "state", state.String(), "next", StateFailed.String(), "model", req.Model, "error", err)
		return nil, &StageError{State: state, Err: err}
	}
	advance := func(next State) {
		slog.Debug("chat transition", "from", state.String(), "to", next.String(), "model", req.Model)
		state = next
	}

	if strings.TrimSpace(req.Model) == "" {
		return fail(fmt.Errorf("%w: model is required", ErrValidation))
	}
	if strings.TrimSpace(req.Content) == "" {
		return fail(fmt.Errorf("%w: content is required", ErrValidation))
	}

	advance(StateProviderSelected)
	providerName, err := provider.ProviderFor(req.Model)
	if err != nil {
		return fail(err)
	}
	adapter, ok := r.adapters[providerName]
	if !ok {
		return fail(fmt.Errorf("%w: no adapter for provider %s", ErrInternal, providerName))
	}

	advance(StateAuthenticated)
	apiKey, err := r.store.GetKey(ctx, providerName)
	if err != nil {
		return fail(fmt.Errorf("%w: read %s key: %v", ErrInternal, providerName, err))
	}
	if apiKey == "" {
		return fail(&provider.AuthError{Provider: providerName})
	}
	generator, err := adapter.Authenticate(apiKey)
	if err != nil {
		return fail(err)
	}

	advance(StateGenerating)
	entry, err := r.registry.Resolve(req.Model)
	if err != nil {
		return fail(err)
	}
	input, streaming := req.Content, false
	if providerName == models.ProviderGemini {
		input = prompt.Build(req.Content, entry.Style)
		streaming = entry.Style == models.StyleReasoning
	}
	genStart := r.now()
	raw, err := generator.Generate(ctx, entry.ProviderModelID, input, streaming)
	if err != nil {
		return fail(err)
	}
	generated := models.GenerationResult{
		RawText:        raw,
		Provider:       providerName,
		ElapsedSeconds: r.now().Sub(genStart).Seconds(),
	}
	slog.Info("generation finished",
		"provider", providerName,
		"model", entry.ProviderModelID,
		"streaming", streaming,
		"elapsed_seconds", generated.ElapsedSeconds)

	advance(StateNormalizing)
	var text string
	if providerName == models.ProviderGemini {
		text = normalize.Text(generated.RawText)
	} else {
		text = strings.TrimSpace(generated.RawText)
	}

	advance(StateResponded)
	return &models.ChatResult{
		Response:       text,
		Provider:       providerName,
		ProcessingTime: r.now().Sub(start).Seconds(),
	}, nil
}
