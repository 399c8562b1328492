package repositories

import (
	"context"
	"iter"

	"github.com/camarize/reconciler/internal/entities"
)

// DefaultPageSize is used when a stream is requested with a non-positive page size
const DefaultPageSize = 500

// Records streams every relation record of a collection using keyset pages.
// Deleting records that were already yielded does not disturb the cursor, so the
// stream is safe to consume while the sweep removes dangling records.
// A page error is yielded once and ends the stream.
func Records(ctx context.Context, repo RelationRepository, collection string, pageSize int) iter.Seq2[*entities.RelationRecord, error] {
	return func(yield func(*entities.RelationRecord, error) bool) {
		paginate(ctx, pageSize,
			func(afterID string, limit int) ([]*entities.RelationRecord, error) {
				return repo.Scan(ctx, collection, afterID, limit)
			},
			func(r *entities.RelationRecord) string { return r.ID },
			yield,
		)
	}
}

// Entities streams every entity of a collection using keyset pages.
func Entities(ctx context.Context, repo EntityRepository, collection string, pageSize int) iter.Seq2[*entities.Entity, error] {
	return func(yield func(*entities.Entity, error) bool) {
		paginate(ctx, pageSize,
			func(afterID string, limit int) ([]*entities.Entity, error) {
				return repo.Scan(ctx, collection, afterID, limit)
			},
			func(e *entities.Entity) string { return e.ID },
			yield,
		)
	}
}

func paginate[T any](
	ctx context.Context,
	pageSize int,
	fetch func(afterID string, limit int) ([]T, error),
	idOf func(T) string,
	yield func(T, error) bool,
) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var zero T
	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			yield(zero, err)
			return
		}

		page, err := fetch(afterID, pageSize)
		if err != nil {
			yield(zero, err)
			return
		}

		for _, item := range page {
			if !yield(item, nil) {
				return
			}
		}

		if len(page) < pageSize {
			return
		}
		afterID = idOf(page[len(page)-1])
	}
}
