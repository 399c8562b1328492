package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/camarize/reconciler/internal/entities"
	"github.com/camarize/reconciler/internal/repositories"
)

// PostgresRelationRepository implements RelationRepository over the documents table
type PostgresRelationRepository struct {
	db *sql.DB
}

// NewPostgresRelationRepository creates a new PostgreSQL relation repository
func NewPostgresRelationRepository(db *sql.DB) repositories.RelationRepository {
	return &PostgresRelationRepository{db: db}
}

// Scan returns a keyset page of relation records ordered by ID
func (r *PostgresRelationRepository) Scan(ctx context.Context, collection string, afterID string, limit int) ([]*entities.RelationRecord, error) {
	docs, err := scanDocuments(ctx, r.db, collection, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to scan relations in %s: %w", collection, err)
	}

	records := make([]*entities.RelationRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, &entities.RelationRecord{ID: doc.id, Fields: doc.fields})
	}
	return records, nil
}

// Delete removes a relation record by ID
func (r *PostgresRelationRepository) Delete(ctx context.Context, collection string, id string) error {
	query := `
		DELETE FROM documents
		WHERE collection = $1 AND id = $2
	`
	result, err := r.db.ExecContext(ctx, query, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete relation %s/%s: %w", collection, id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, repositories.ErrNotFound)
	}

	return nil
}
