// Package blobstore stores generated report PDFs on the local filesystem or
// in S3.
package blobstore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var ErrNotFound = errors.New("blob not found")

// Store writes blobs under a flat name and returns a location reference that
// is saved on the report row.
type Store interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)
}

// NameFromLocation returns the stored name for a location returned by Put.
func NameFromLocation(location string) string {
	location = strings.TrimSpace(location)
	if location == "" {
		return ""
	}
	return path.Base(location)
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
