// Package settings persists provider credentials and the last active model.
package settings

import (
	"context"
	"errors"
	"fmt"

	"islamai-relay/internal/config"
	"islamai-relay/internal/models"
)

// ErrUnknownProvider is returned for providers outside the fixed namespace.
var ErrUnknownProvider = errors.New("invalid provider. Must be 'gemini' or 'deepseek'")

// DefaultActiveModel is reported before any model has been recorded.
const DefaultActiveModel = "gemini-pro"

const (
	activeModelKey = "active_model"
	apiKeyPrefix   = "api_key:"
)

// Store is safe for concurrent use. Writes are durable before they return.
type Store interface {
	GetKey(ctx context.Context, p models.ProviderName) (string, error)
	SetKey(ctx context.Context, p models.ProviderName, value string) error
	ActiveModel(ctx context.Context) (string, error)
	SetActiveModel(ctx context.Context, alias string) error
	Close() error
}

// Open selects the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.SettingsConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case config.BackendFile, "":
		s, err = OpenFile(cfg.SettingsFile())
	case config.BackendSQLite:
		s, err = OpenSQLite(ctx, cfg.SQLitePath)
	case config.BackendRedis:
		s, err = OpenRedis(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown settings backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func checkProvider(p models.ProviderName) error {
	if _, ok := models.ParseProvider(string(p)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	return nil
}

func keyName(p models.ProviderName) string {
	return apiKeyPrefix + string(p)
}
