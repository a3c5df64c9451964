package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joelkehle/readiness-audit/internal/form"
)

// FileStore keeps one JSON document per session under dir.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create draft dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(id string) string {
	return filepath.Join(f.dir, id+".json")
}

func (f *FileStore) Load(_ context.Context, id string) (*form.Session, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	blob, err := os.ReadFile(f.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var s form.Session
	if err := json.Unmarshal(blob, &s); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return &s, nil
}

func (f *FileStore) Save(_ context.Context, s *form.Session) error {
	if err := checkID(s.ID); err != nil {
		return fmt.Errorf("invalid session id %q", s.ID)
	}
	blob, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	path := f.path(s.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (f *FileStore) Delete(_ context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	err := os.Remove(f.path(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
