package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"islamai-relay/internal/models"
)

type document struct {
	APIKeys     map[string]string `json:"api_keys"`
	ActiveModel string            `json:"active_model"`
}

func defaultDocument() document {
	keys := make(map[string]string, len(models.Providers))
	for _, p := range models.Providers {
		keys[string(p)] = ""
	}
	return document{APIKeys: keys, ActiveModel: DefaultActiveModel}
}

// FileStore keeps settings in a JSON document on disk.
type FileStore struct {
	path string

	mu  sync.RWMutex
	doc document
}

// OpenFile loads path, creating it with empty keys when absent.
func OpenFile(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}

	s := &FileStore{path: path, doc: defaultDocument()}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := s.save(s.doc); err != nil {
			return nil, err
		}
		slog.Info("created settings file", "path", path)
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read settings file %q: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse settings file %q: %w", path, err)
	}
	if doc.APIKeys == nil {
		doc.APIKeys = make(map[string]string)
	}
	if doc.ActiveModel == "" {
		doc.ActiveModel = DefaultActiveModel
	}
	s.doc = doc
	slog.Info("settings loaded", "path", path)
	return s, nil
}

func (s *FileStore) GetKey(_ context.Context, p models.ProviderName) (string, error) {
	if err := checkProvider(p); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.APIKeys[string(p)], nil
}

func (s *FileStore) SetKey(_ context.Context, p models.ProviderName, value string) error {
	if err := checkProvider(p); err != nil {
		return err
	}
	return s.update(func(doc *document) { doc.APIKeys[string(p)] = value })
}

func (s *FileStore) ActiveModel(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.ActiveModel, nil
}

func (s *FileStore) SetActiveModel(_ context.Context, alias string) error {
	return s.update(func(doc *document) { doc.ActiveModel = alias })
}

func (s *FileStore) Close() error {
	return nil
}

// update applies fn to a copy and swaps it in only once it is on disk.
func (s *FileStore) update(fn func(*document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := document{
		APIKeys:     make(map[string]string, len(s.doc.APIKeys)),
		ActiveModel: s.doc.ActiveModel,
	}
	for k, v := range s.doc.APIKeys {
		next.APIKeys[k] = v
	}
	fn(&next)

	if err := s.save(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

func (s *FileStore) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.json")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
