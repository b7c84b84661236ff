// Package storage provides CredentialStore adapters. Each adapter keeps the
// {token, identity} pair in a single record so the two are always written
// and cleared together, never partially present.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cookeasy/recipe-client/internal/core/ports"
)

// FileStore persists the credential pair as one JSON file. Writes go to a
// temporary file in the same directory followed by a rename, so a crash
// mid-write leaves either the old pair or the new one, never a torn record.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore writing to path. The parent directory is
// created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Save(_ context.Context, creds ports.Credentials) error {
	encoded, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit credentials: %w", err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context) (*ports.Credentials, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var creds ports.Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		// A corrupt record is as good as no record; the caller wipes and
		// starts unauthenticated.
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	if creds.Token == "" {
		return nil, nil
	}
	return &creds, nil
}

func (s *FileStore) Clear(_ context.Context) error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
