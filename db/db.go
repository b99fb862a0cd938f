package db

import (
	"context"
	stderrors "errors"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"

	"socialgraph/models"
)

var (
	// ErrNotFound is returned when no entity has the requested id.
	ErrNotFound = errors.New("db: entity not found")
	// ErrConflict means a concurrent writer committed first and the update was
	// not applied. The caller may retry.
	ErrConflict = errors.New("db: write conflict")
)

// Filter matches entities whose stored fields equal the given values.
// An empty filter matches every entity of the kind.
type Filter map[string]string

// Eq builds a single-field filter.
func Eq(field, value string) Filter {
	return Filter{field: value}
}

// MutateFunc edits an entity in place and reports whether anything changed.
// Returning false skips the write.
type MutateFunc func(e models.Entity) (changed bool, err error)

// Store is the entity persistence collaborator.
type Store interface {
	// Get returns ErrNotFound when the id does not resolve.
	Get(ctx context.Context, kind models.Kind, id string) (models.Entity, error)
	// Put creates the entity if its id is not yet taken. Putting an id that
	// already exists leaves the stored entity untouched, so retried creates
	// converge.
	Put(ctx context.Context, e models.Entity) error
	// Find returns matching entities ordered by creation time, then id.
	Find(ctx context.Context, kind models.Kind, f Filter) ([]models.Entity, error)
	// Update applies fn atomically with respect to other updates of the same
	// entity and returns the entity as committed.
	Update(ctx context.Context, kind models.Kind, id string, fn MutateFunc) (models.Entity, error)
	Close(ctx context.Context) error
}

// IsRetryable reports whether err is a transient store failure.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case stderrors.Is(err, ErrConflict),
		stderrors.Is(err, context.DeadlineExceeded):
		return true
	case mongo.IsNetworkError(err), mongo.IsTimeout(err):
		return true
	}
	return false
}
