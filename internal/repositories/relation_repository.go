package repositories

import (
	"context"
	"errors"

	"github.com/camarize/reconciler/internal/entities"
)

// ErrNotFound is returned when a document addressed by collection and ID does not exist
var ErrNotFound = errors.New("document not found")

// RelationRepository defines the interface for relation record access
type RelationRepository interface {
	// Scan returns up to limit relation records with ID greater than afterID, ordered by ID.
	// An empty afterID starts from the beginning of the collection.
	Scan(ctx context.Context, collection string, afterID string, limit int) ([]*entities.RelationRecord, error)

	// Delete removes a relation record by ID.
	// Returns ErrNotFound if nothing was deleted.
	Delete(ctx context.Context, collection string, id string) error
}
