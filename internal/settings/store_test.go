package settings

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"islamai-relay/internal/config"
	"islamai-relay/internal/models"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"file": func(t *testing.T) Store {
			s, err := OpenFile(filepath.Join(t.TempDir(), "config.json"))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "settings.db"))
			require.NoError(t, err)
			return s
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			s, err := OpenRedis(context.Background(), config.RedisConfig{Addr: mr.Addr(), Prefix: "test:"})
			require.NoError(t, err)
			return s
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			key, err := s.GetKey(ctx, models.ProviderDeepSeek)
			require.NoError(t, err)
			assert.Empty(t, key)

			require.NoError(t, s.SetKey(ctx, models.ProviderGemini, "AIza-123"))
			key, err = s.GetKey(ctx, models.ProviderGemini)
			require.NoError(t, err)
			assert.Equal(t, "AIza-123", key)

			require.NoError(t, s.SetKey(ctx, models.ProviderGemini, "AIza-456"))
			key, err = s.GetKey(ctx, models.ProviderGemini)
			require.NoError(t, err)
			assert.Equal(t, "AIza-456", key)

			other, err := s.GetKey(ctx, models.ProviderDeepSeek)
			require.NoError(t, err)
			assert.Empty(t, other)
		})
	}
}

func TestStoreActiveModel(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			active, err := s.ActiveModel(ctx)
			require.NoError(t, err)
			assert.Equal(t, DefaultActiveModel, active)

			require.NoError(t, s.SetActiveModel(ctx, "deepseek-r1"))
			active, err = s.ActiveModel(ctx)
			require.NoError(t, err)
			assert.Equal(t, "deepseek-r1", active)
		})
	}
}

func TestStoreRejectsUnknownProvider(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			_, err := s.GetKey(ctx, "openai")
			assert.ErrorIs(t, err, ErrUnknownProvider)
			assert.ErrorIs(t, s.SetKey(ctx, "openai", "x"), ErrUnknownProvider)
		})
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(2)
				go func() {
					defer wg.Done()
					assert.NoError(t, s.SetKey(ctx, models.ProviderGemini, "k"))
				}()
				go func() {
					defer wg.Done()
					_, err := s.GetKey(ctx, models.ProviderGemini)
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			key, err := s.GetKey(ctx, models.ProviderGemini)
			require.NoError(t, err)
			assert.Equal(t, "k", key)
		})
	}
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	s, err := OpenFile(path)
	require.NoError(t, err)

	var created document
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &created))
	assert.Equal(t, map[string]string{"gemini": "", "deepseek": ""}, created.APIKeys)
	assert.Equal(t, "gemini-pro", created.ActiveModel)

	require.NoError(t, s.SetKey(ctx, models.ProviderDeepSeek, "sk-abc"))
	require.NoError(t, s.Close())

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	key, err := reopened.GetKey(ctx, models.ProviderDeepSeek)
	require.NoError(t, err)
	assert.Equal(t, "sk-abc", key)
}

func TestFileStoreReadsExistingDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"api_keys":{"gemini":"g-1"}}`), 0o600))

	s, err := OpenFile(path)
	require.NoError(t, err)

	key, err := s.GetKey(context.Background(), models.ProviderGemini)
	require.NoError(t, err)
	assert.Equal(t, "g-1", key)

	active, err := s.ActiveModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultActiveModel, active)
}

func TestFileStoreRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	_, err := OpenFile(path)
	assert.Error(t, err)
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, config.SettingsConfig{Backend: config.BackendFile, Dir: dir, File: "config.json"})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(ctx, config.SettingsConfig{Backend: config.BackendSQLite, SQLitePath: filepath.Join(dir, "s.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	mr := miniredis.RunT(t)
	s, err = Open(ctx, config.SettingsConfig{Backend: config.BackendRedis, Redis: config.RedisConfig{Addr: mr.Addr()}})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.SettingsConfig{Backend: "etcd"})
	assert.Error(t, err)
}

func TestOpenRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := OpenRedis(context.Background(), config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}
