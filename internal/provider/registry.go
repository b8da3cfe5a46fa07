package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"islamai-relay/internal/models"
)

// ErrUnsupportedModel indicates the alias matches no provider prefix.
var ErrUnsupportedModel = errors.New("unsupported model")

// ErrProviderAuth indicates no usable credential for the provider.
var ErrProviderAuth = errors.New("provider authentication failed")

// ErrProviderGeneration indicates the upstream call failed or returned nothing usable.
var ErrProviderGeneration = errors.New("provider generation failed")

// Adapter authenticates against one upstream provider.
type Adapter interface {
	Name() models.ProviderName
	Authenticate(apiKey string) (Generator, error)
}

// Generator performs generation calls with credentials bound by Authenticate.
type Generator interface {
	Generate(ctx context.Context, modelID, prompt string, streaming bool) (string, error)
}

// Default aliases used when a prefixed alias is not registered.
const (
	DefaultGeminiAlias   = "gemini-pro"
	DefaultDeepSeekAlias = "deepseek-v3"
)

var builtinModels = []models.ModelEntry{
	{Alias: "gemini-pro", Provider: models.ProviderGemini, ProviderModelID: "gemini-2.0-pro-exp-02-05", Style: models.StyleDirect},
	{Alias: "gemini-flash", Provider: models.ProviderGemini, ProviderModelID: "gemini-2.0-flash-thinking-exp-01-21", Style: models.StyleReasoning},
	{Alias: "deepseek-v3", Provider: models.ProviderDeepSeek, ProviderModelID: "deepseek-chat", Style: models.StyleDirect},
	// Reasoning style is kept for prompt purposes; the DeepSeek adapter never consults the prompt builder.
	{Alias: "deepseek-r1", Provider: models.ProviderDeepSeek, ProviderModelID: "deepseek-reasoner", Style: models.StyleReasoning},
}

// Registry maps public aliases to provider models. It is immutable after construction.
type Registry struct {
	models map[string]models.ModelEntry
}

// NewRegistry constructs the alias registry. overrides replaces the provider
// model id of known aliases; unknown aliases in overrides are rejected.
func NewRegistry(overrides map[string]string) (*Registry, error) {
	r := &Registry{models: make(map[string]models.ModelEntry, len(builtinModels))}
	for _, entry := range builtinModels {
		r.models[entry.Alias] = entry
	}

	for alias, target := range overrides {
		entry, ok := r.models[alias]
		if !ok {
			return nil, fmt.Errorf("model override references unknown alias %q", alias)
		}
		if strings.TrimSpace(target) == "" {
			return nil, fmt.Errorf("model override for %q must not be empty", alias)
		}
		entry.ProviderModelID = target
		r.models[alias] = entry
	}
	return r, nil
}

// ProviderFor selects the provider by alias prefix alone.
func ProviderFor(alias string) (models.ProviderName, error) {
	switch {
	case strings.HasPrefix(alias, string(models.ProviderGemini)):
		return models.ProviderGemini, nil
	case strings.HasPrefix(alias, string(models.ProviderDeepSeek)):
		return models.ProviderDeepSeek, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedModel, alias)
	}
}

// Resolve returns the entry for alias, falling back to the provider default
// for unrecognized aliases with a known prefix.
func (r *Registry) Resolve(alias string) (models.ModelEntry, error) {
	if entry, ok := r.models[alias]; ok {
		return entry, nil
	}

	providerName, err := ProviderFor(alias)
	if err != nil {
		return models.ModelEntry{}, err
	}

	fallback := DefaultGeminiAlias
	if providerName == models.ProviderDeepSeek {
		fallback = DefaultDeepSeekAlias
	}
	return r.models[fallback], nil
}

// Entries lists registered aliases sorted by name.
func (r *Registry) Entries() []models.ModelEntry {
	out := make([]models.ModelEntry, 0, len(r.models))
	for _, entry := range r.models {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}
