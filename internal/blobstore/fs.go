package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultURLPrefix is the public path fs locations are reported under.
const DefaultURLPrefix = "/uploads/reports"

type FSStore struct {
	dir       string
	urlPrefix string
}

func NewFSStore(dir, urlPrefix string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if urlPrefix == "" {
		urlPrefix = DefaultURLPrefix
	}
	return &FSStore{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (s *FSStore) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	return s.urlPrefix + "/" + name, nil
}

func (s *FSStore) Open(_ context.Context, name string) (io.ReadCloser, int64, error) {
	if !validName(name) {
		return nil, 0, ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}
