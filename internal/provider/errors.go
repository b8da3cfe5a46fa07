package provider

import (
	"fmt"

	"islamai-relay/internal/models"
)

// AuthError reports a missing or rejected credential for a provider.
type AuthError struct {
	Provider models.ProviderName
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s API key not configured", e.Provider)
}

func (e *AuthError) Unwrap() error {
	return ErrProviderAuth
}

// GenerationError wraps an upstream failure with the provider it came from.
type GenerationError struct {
	Provider models.ProviderName
	Err      error
}

// NewGenerationError wraps err as a generation failure of p.
func NewGenerationError(p models.ProviderName, err error) error {
	return &GenerationError{Provider: p, Err: err}
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() []error {
	return []error{ErrProviderGeneration, e.Err}
}
