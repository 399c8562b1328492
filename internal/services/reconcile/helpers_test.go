package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/camarize/reconciler/internal/entities"
	"github.com/camarize/reconciler/internal/infrastructure/logging"
	"github.com/camarize/reconciler/internal/repositories"
	"github.com/camarize/reconciler/internal/repositories/memory"
	"github.com/camarize/reconciler/internal/services/catalog"
)

var errUnavailable = errors.New("store unavailable")

type doc = map[string]interface{}

// seedFarm loads a small farm application with a few broken references:
//
//	farm_enclosures:   r1 clean, r2 farm gone, r3 enclosure gone, r4 both gone
//	user_farms:        r1 clean, r2 user gone
//	sensor_enclosures: r1 clean, r2 enclosure reference null
//	enclosures:        e2 carries no user, e3 points at a deleted user
func seedFarm(cat *catalog.Catalog) *memory.Store {
	store := memory.New()
	for _, et := range cat.EntityTypes {
		store.RegisterEntityType(et)
	}

	store.Put("users", "u1", doc{"name": "Ana"})
	store.Put("farms", "f1", doc{"name": "North"})
	store.Put("farms", "f2", doc{"name": "South"})
	store.Put("enclosures", "e1", doc{"name": "Tank A", "user": "u1"})
	store.Put("enclosures", "e2", doc{"name": "Tank B"})
	store.Put("enclosures", "e3", doc{"name": "Tank C", "user": "u9"})
	store.Put("sensors", "s1", doc{"model": "pH-7"})

	store.Put("farm_enclosures", "r1", doc{"farm": "f1", "enclosure": "e1"})
	store.Put("farm_enclosures", "r2", doc{"farm": "f9", "enclosure": "e1"})
	store.Put("farm_enclosures", "r3", doc{"farm": "f1", "enclosure": "e9"})
	store.Put("farm_enclosures", "r4", doc{"farm": "f8", "enclosure": "e8"})

	store.Put("user_farms", "r1", doc{"user": "u1", "farm": "f1"})
	store.Put("user_farms", "r2", doc{"user": "u7", "farm": "f2"})

	store.Put("sensor_enclosures", "r1", doc{"sensor_id": "s1", "enclosure_id": "e2"})
	store.Put("sensor_enclosures", "r2", doc{"sensor_id": "s1", "enclosure_id": nil})

	return store
}

// faultyEntities fails lookups of selected IDs and counts calls
type faultyEntities struct {
	repositories.EntityRepository
	failIDs map[string]bool
	calls   atomic.Int64
	onCall  func(n int64)
}

func (f *faultyEntities) Exists(ctx context.Context, collection, id string) (bool, error) {
	n := f.calls.Add(1)
	if f.onCall != nil {
		f.onCall(n)
	}
	if f.failIDs[id] {
		return false, errUnavailable
	}
	return f.EntityRepository.Exists(ctx, collection, id)
}

// faultyRelations fails deletes of selected record IDs or scans of selected collections
type faultyRelations struct {
	repositories.RelationRepository
	failDeletes  map[string]bool
	failScans    map[string]bool
	notFoundIDs  map[string]bool
	scanAfterErr string // fail scans of any collection once the cursor passes this ID
}

func (f *faultyRelations) Scan(ctx context.Context, collection, afterID string, limit int) ([]*entities.RelationRecord, error) {
	if f.failScans[collection] {
		return nil, errUnavailable
	}
	if f.scanAfterErr != "" && afterID >= f.scanAfterErr {
		return nil, errUnavailable
	}
	return f.RelationRepository.Scan(ctx, collection, afterID, limit)
}

func (f *faultyRelations) Delete(ctx context.Context, collection, id string) error {
	if f.failDeletes[id] {
		return errUnavailable
	}
	if f.notFoundIDs[id] {
		return repositories.ErrNotFound
	}
	return f.RelationRepository.Delete(ctx, collection, id)
}

// session adapts repositories to Session and records Close calls
type session struct {
	entities  repositories.EntityRepository
	relations repositories.RelationRepository
	closed    *atomic.Int32
}

func (s *session) Entities() repositories.EntityRepository { return s.entities }
func (s *session) Relations() repositories.RelationRepository { return s.relations }
func (s *session) Close() error {
	s.closed.Add(1)
	return nil
}

type connector struct {
	entities  repositories.EntityRepository
	relations repositories.RelationRepository
	err       error
	connects  atomic.Int32
	closed    atomic.Int32
}

func newConnector(store *memory.Store) *connector {
	return &connector{entities: store.Entities(), relations: store.Relations()}
}

func (c *connector) Connect(ctx context.Context) (Session, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.connects.Add(1)
	return &session{entities: c.entities, relations: c.relations, closed: &c.closed}, nil
}

type recorder struct {
	mu        sync.Mutex
	summaries []*Summary
}

func (r *recorder) RecordRun(s *Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, s)
}

func newTestSweeper(cat *catalog.Catalog, ents repositories.EntityRepository, rels repositories.RelationRepository, opts SweepOptions) *Sweeper {
	return NewSweeper(cat, rels, NewVerifier(ents, cat, 0), opts, logging.Discard())
}

func resultFor(results []*entities.SweepResult, relation string) *entities.SweepResult {
	for _, r := range results {
		if r.Relation == relation {
			return r
		}
	}
	return nil
}
