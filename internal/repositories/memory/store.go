// Package memory provides an in-memory document store implementing the
// entity and relation repositories, used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/camarize/reconciler/internal/entities"
	"github.com/camarize/reconciler/internal/repositories"
)

var (
	_ repositories.EntityRepository   = (*EntityRepository)(nil)
	_ repositories.RelationRepository = (*RelationRepository)(nil)
)

// Store holds documents keyed by collection and ID.
// Like the production document store, it enforces no references between documents.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]interface{}
	entityTypes map[string]string // collection -> entity type name
}

// New creates an empty store
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]map[string]interface{}),
		entityTypes: make(map[string]string),
	}
}

// RegisterEntityType records the entity type name stored in a collection so that
// scanned entities carry their type.
func (s *Store) RegisterEntityType(et entities.EntityType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entityTypes[et.Collection] = et.Name
}

// Put inserts or replaces a document
func (s *Store) Put(collection, id string, fields map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]map[string]interface{})
		s.collections[collection] = docs
	}
	docs[id] = cloneFields(fields)
}

// Remove deletes a document, reporting whether it existed
func (s *Store) Remove(collection, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		return false
	}
	if _, ok := docs[id]; !ok {
		return false
	}
	delete(docs, id)
	return true
}

// Has reports whether a document exists
func (s *Store) Has(collection, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[collection][id]
	return ok
}

// Count returns the number of documents in a collection
func (s *Store) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// IDs returns the sorted document IDs of a collection
func (s *Store) IDs(collection string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedIDs(s.collections[collection])
}

// Entities returns an EntityRepository view of the store
func (s *Store) Entities() *EntityRepository {
	return &EntityRepository{store: s}
}

// Relations returns a RelationRepository view of the store
func (s *Store) Relations() *RelationRepository {
	return &RelationRepository{store: s}
}

// EntityRepository implements repositories.EntityRepository over a Store
type EntityRepository struct {
	store *Store
}

// Exists reports whether an entity document exists
func (r *EntityRepository) Exists(ctx context.Context, collection string, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return r.store.Has(collection, id), nil
}

// Scan returns a keyset page of entities
func (r *EntityRepository) Scan(ctx context.Context, collection string, afterID string, limit int) ([]*entities.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	typeName := r.store.entityTypes[collection]
	if typeName == "" {
		typeName = collection
	}

	docs := r.store.collections[collection]
	var page []*entities.Entity
	for _, id := range pageIDs(docs, afterID, limit) {
		page = append(page, &entities.Entity{Type: typeName, ID: id, Fields: cloneFields(docs[id])})
	}
	return page, nil
}

// RelationRepository implements repositories.RelationRepository over a Store
type RelationRepository struct {
	store *Store
}

// Scan returns a keyset page of relation records
func (r *RelationRepository) Scan(ctx context.Context, collection string, afterID string, limit int) ([]*entities.RelationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	docs := r.store.collections[collection]
	var page []*entities.RelationRecord
	for _, id := range pageIDs(docs, afterID, limit) {
		page = append(page, &entities.RelationRecord{ID: id, Fields: cloneFields(docs[id])})
	}
	return page, nil
}

// Delete removes a relation record
func (r *RelationRepository) Delete(ctx context.Context, collection string, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !r.store.Remove(collection, id) {
		return fmt.Errorf("%s/%s: %w", collection, id, repositories.ErrNotFound)
	}
	return nil
}

func pageIDs(docs map[string]map[string]interface{}, afterID string, limit int) []string {
	ids := sortedIDs(docs)
	start := sort.SearchStrings(ids, afterID)
	if start < len(ids) && ids[start] == afterID {
		start++
	}
	ids = ids[start:]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

func sortedIDs(docs map[string]map[string]interface{}) []string {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func cloneFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
