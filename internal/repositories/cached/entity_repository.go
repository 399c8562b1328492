// Package cached decorates repositories with an in-process existence cache.
package cached

import (
	"context"

	"github.com/camarize/reconciler/internal/entities"
	"github.com/camarize/reconciler/internal/repositories"
	"github.com/camarize/reconciler/pkg/cache"
)

// EntityRepository remembers positive existence answers only. A stale "exists"
// can at worst leave a dangling record for the next run; an "absent" or an
// error is always asked of the underlying store.
type EntityRepository struct {
	*Evicter
	next repositories.EntityRepository
}

var _ repositories.EntityRepository = (*EntityRepository)(nil)

// NewEntityRepository wraps next with c
func NewEntityRepository(next repositories.EntityRepository, c cache.Cache[bool]) *EntityRepository {
	return &EntityRepository{Evicter: NewEvicter(c), next: next}
}

// Key returns the cache key of a document
func Key(collection, id string) string {
	return collection + ":" + id
}

// Exists reports whether an entity document exists, consulting the cache first
func (r *EntityRepository) Exists(ctx context.Context, collection string, id string) (bool, error) {
	key := Key(collection, id)
	if _, ok := r.cache.Get(key); ok {
		return true, nil
	}

	exists, err := r.next.Exists(ctx, collection, id)
	if err != nil {
		return false, err
	}
	if exists {
		r.cache.Set(key, true)
	}
	return exists, nil
}

// Scan passes through to the underlying repository
func (r *EntityRepository) Scan(ctx context.Context, collection string, afterID string, limit int) ([]*entities.Entity, error) {
	return r.next.Scan(ctx, collection, afterID, limit)
}

// Evicter drops cached existence answers. It outlives the repositories
// sharing its cache, so delete notifications can reach it between runs.
type Evicter struct {
	cache cache.Cache[bool]
}

// NewEvicter creates an Evicter over c
func NewEvicter(c cache.Cache[bool]) *Evicter {
	return &Evicter{cache: c}
}

// Invalidate drops the cached answer for a document
func (e *Evicter) Invalidate(collection, id string) {
	e.cache.Delete(Key(collection, id))
}

// Purge drops every cached answer
func (e *Evicter) Purge() {
	e.cache.Purge()
}
