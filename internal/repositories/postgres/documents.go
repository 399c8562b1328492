package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type document struct {
	id     string
	fields map[string]interface{}
}

func scanDocuments(ctx context.Context, db *sql.DB, collection string, afterID string, limit int) ([]document, error) {
	query := `
		SELECT id, body
		FROM documents
		WHERE collection = $1 AND id > $2
		ORDER BY id
		LIMIT $3
	`
	rows, err := db.QueryContext(ctx, query, collection, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []document
	for rows.Next() {
		var doc document
		var body []byte
		if err := rows.Scan(&doc.id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if err := json.Unmarshal(body, &doc.fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document %s: %w", doc.id, err)
		}
		if doc.fields == nil {
			doc.fields = map[string]interface{}{}
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

// DocumentWriter seeds and removes raw documents. The reconciler itself never
// writes documents; this is used by tests and fixture loading.
type DocumentWriter struct {
	db *sql.DB
}

// NewDocumentWriter creates a new document writer
func NewDocumentWriter(db *sql.DB) *DocumentWriter {
	return &DocumentWriter{db: db}
}

// Put inserts or replaces a document
func (w *DocumentWriter) Put(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal document body: %w", err)
	}

	query := `
		INSERT INTO documents (collection, id, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (collection, id)
		DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
	`
	if _, err := w.db.ExecContext(ctx, query, collection, id, string(body), time.Now()); err != nil {
		return fmt.Errorf("failed to write document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Remove deletes a document regardless of its kind
func (w *DocumentWriter) Remove(ctx context.Context, collection, id string) error {
	if _, err := w.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id); err != nil {
		return fmt.Errorf("failed to remove document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Count returns the number of documents in a collection
func (w *DocumentWriter) Count(ctx context.Context, collection string) (int, error) {
	var n int
	if err := w.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = $1`, collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents in %s: %w", collection, err)
	}
	return n, nil
}
