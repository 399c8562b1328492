package repositories

import (
	"context"

	"github.com/camarize/reconciler/internal/entities"
)

// EntityRepository defines the interface for entity data access
type EntityRepository interface {
	// Exists reports whether an entity document exists.
	// (false, nil) means the entity is confirmed absent; a non-nil error means
	// the lookup itself failed and nothing is known about the entity.
	Exists(ctx context.Context, collection string, id string) (bool, error)

	// Scan returns up to limit entities with ID greater than afterID, ordered by ID.
	Scan(ctx context.Context, collection string, afterID string, limit int) ([]*entities.Entity, error)
}
