// Package draft persists wizard sessions between requests.
package draft

import (
	"context"
	"errors"
	"regexp"

	"github.com/joelkehle/readiness-audit/internal/form"
)

var ErrNotFound = errors.New("draft not found")

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type Store interface {
	Load(ctx context.Context, id string) (*form.Session, error)
	Save(ctx context.Context, s *form.Session) error
	Delete(ctx context.Context, id string) error
}

func checkID(id string) error {
	if !validID.MatchString(id) {
		return ErrNotFound
	}
	return nil
}
