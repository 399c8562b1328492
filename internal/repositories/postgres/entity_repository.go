package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/camarize/reconciler/internal/entities"
	"github.com/camarize/reconciler/internal/repositories"
)

// PostgresEntityRepository implements EntityRepository over the documents table
type PostgresEntityRepository struct {
	db    *sql.DB
	types map[string]string // collection -> entity type name
}

// NewPostgresEntityRepository creates a new PostgreSQL entity repository.
// entityTypes maps collections to entity type names for scanned entities.
func NewPostgresEntityRepository(db *sql.DB, entityTypes []entities.EntityType) repositories.EntityRepository {
	types := make(map[string]string, len(entityTypes))
	for _, et := range entityTypes {
		types[et.Collection] = et.Name
	}
	return &PostgresEntityRepository{db: db, types: types}
}

// Exists checks if an entity document exists
func (r *PostgresEntityRepository) Exists(ctx context.Context, collection string, id string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM documents
			WHERE collection = $1 AND id = $2
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, collection, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check existence of %s/%s: %w", collection, id, err)
	}
	return exists, nil
}

// Scan returns a keyset page of entities ordered by ID
func (r *PostgresEntityRepository) Scan(ctx context.Context, collection string, afterID string, limit int) ([]*entities.Entity, error) {
	docs, err := scanDocuments(ctx, r.db, collection, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to scan entities in %s: %w", collection, err)
	}

	typeName := r.types[collection]
	if typeName == "" {
		typeName = collection
	}

	result := make([]*entities.Entity, 0, len(docs))
	for _, doc := range docs {
		result = append(result, &entities.Entity{Type: typeName, ID: doc.id, Fields: doc.fields})
	}
	return result, nil
}
