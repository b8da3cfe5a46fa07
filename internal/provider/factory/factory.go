package factory

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"islamai-relay/internal/config"
	"islamai-relay/internal/models"
	"islamai-relay/internal/provider"
	deepseekProvider "islamai-relay/internal/provider/deepseek"
	geminiProvider "islamai-relay/internal/provider/gemini"
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// Build constructs the model registry and one adapter per configured provider.
func Build(cfg config.Config) (*provider.Registry, map[models.ProviderName]provider.Adapter, error) {
	overrides := make(map[string]string, len(cfg.Providers.Gemini.Models)+len(cfg.Providers.DeepSeek.Models))
	for alias, target := range cfg.Providers.Gemini.Models {
		overrides[alias] = target
	}
	for alias, target := range cfg.Providers.DeepSeek.Models {
		overrides[alias] = target
	}

	registry, err := provider.NewRegistry(overrides)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise model registry: %w", err)
	}

	geminiClient := newHTTPClient(seconds(cfg.Providers.Gemini.TimeoutSeconds))
	gemini, err := geminiProvider.New(cfg.Providers.Gemini, geminiClient)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise gemini provider: %w", err)
	}

	deepseekClient := newHTTPClient(seconds(cfg.Providers.DeepSeek.TimeoutSeconds))
	deepseek, err := deepseekProvider.New(cfg.Providers.DeepSeek, deepseekClient)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise deepseek provider: %w", err)
	}

	adapters := map[models.ProviderName]provider.Adapter{
		gemini.Name():   gemini,
		deepseek.Name(): deepseek,
	}
	return registry, adapters, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
