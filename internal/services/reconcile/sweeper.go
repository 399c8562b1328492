package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/camarize/reconciler/internal/entities"
	"github.com/camarize/reconciler/internal/repositories"
	"github.com/camarize/reconciler/internal/services/catalog"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 16

// SweepOptions tunes a sweep
type SweepOptions struct {
	Concurrency int  // Max records in verification or deletion at once, per relation type
	PageSize    int  // Relation records fetched per page
	DryRun      bool // Count and list dangling records without deleting them
}

// Sweeper removes relation records whose endpoints no longer exist
type Sweeper struct {
	catalog   *catalog.Catalog
	relations repositories.RelationRepository
	verifier  *Verifier
	opts      SweepOptions
	logger    *slog.Logger
}

// NewSweeper creates a Sweeper
func NewSweeper(cat *catalog.Catalog, relationRepo repositories.RelationRepository, verifier *Verifier, opts SweepOptions, logger *slog.Logger) *Sweeper {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.PageSize <= 0 {
		opts.PageSize = repositories.DefaultPageSize
	}
	return &Sweeper{
		catalog:   cat,
		relations: relationRepo,
		verifier:  verifier,
		opts:      opts,
		logger:    logger,
	}
}

// Sweep processes every relation type of the catalog in order. A relation
// type that fails does not stop the others. Once ctx is done the remaining
// relation types are returned as cancelled with zero counters.
func (s *Sweeper) Sweep(ctx context.Context) []*entities.SweepResult {
	results := make([]*entities.SweepResult, 0, len(s.catalog.Relations))
	for i := range s.catalog.Relations {
		rt := &s.catalog.Relations[i]
		if ctx.Err() != nil {
			results = append(results, &entities.SweepResult{
				Relation:   rt.Name,
				Collection: rt.Collection,
				Cancelled:  true,
			})
			continue
		}
		results = append(results, s.SweepRelation(ctx, rt))
	}
	return results
}

// SweepRelation streams one relation collection and removes its dangling records
func (s *Sweeper) SweepRelation(ctx context.Context, rt *entities.RelationType) *entities.SweepResult {
	start := time.Now()
	logger := s.logger.With("relation", rt.Name, "collection", rt.Collection)
	logger.Info("sweep started", "dry_run", s.opts.DryRun)

	tally := &tally{result: &entities.SweepResult{Relation: rt.Name, Collection: rt.Collection}}

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)

	for record, err := range repositories.Records(ctx, s.relations, rt.Collection, s.opts.PageSize) {
		if err != nil {
			if ctx.Err() == nil {
				tally.result.Aborted = err.Error()
				logger.Error("sweep aborted", "error", err)
			}
			break
		}
		if ctx.Err() != nil {
			break
		}
		// Blocks while the pool is full, which also holds back the next page read.
		g.Go(func() error {
			s.process(ctx, logger, rt, record, tally)
			return nil
		})
	}
	_ = g.Wait()

	res := tally.result
	res.Cancelled = ctx.Err() != nil
	res.Duration = time.Since(start)
	sort.Slice(res.Removals, func(i, j int) bool { return res.Removals[i].RecordID < res.Removals[j].RecordID })
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].RecordID < res.Failures[j].RecordID })

	logger.Info("sweep finished",
		"examined", res.Examined,
		"dangling", res.Dangling,
		"removed", res.Removed,
		"errored", res.Errored(),
		"cancelled", res.Cancelled,
		"duration", res.Duration,
	)
	return res
}

// process verifies one record and deletes it when dangling. Work cut short
// by cancellation is dropped without touching the counters.
func (s *Sweeper) process(ctx context.Context, logger *slog.Logger, rt *entities.RelationType, record *entities.RelationRecord, t *tally) {
	v, err := s.verifier.Verify(ctx, rt, record)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Warn("verification failed, record left in place", "record_id", record.ID, "error", err)
		t.verifyFailed(record.ID, err)
		return
	}

	if !v.Dangling() {
		t.clean()
		return
	}

	removal := entities.Removal{
		RecordID:  record.ID,
		Endpoints: v.EndpointIDs(),
		Missing:   v.Missing(),
	}

	if s.opts.DryRun {
		logger.Info("dangling record found (dry run)", "record", record.Describe(rt), "missing", removal.Missing)
		t.dangling(removal, false)
		return
	}

	err = s.relations.Delete(ctx, rt.Collection, record.ID)
	switch {
	case err == nil:
		logger.Info("removed dangling record", "record", record.Describe(rt), "missing", removal.Missing)
		t.dangling(removal, true)
	case errors.Is(err, repositories.ErrNotFound):
		logger.Debug("dangling record already removed", "record_id", record.ID)
		t.dangling(removal, true)
	case ctx.Err() != nil:
		return
	default:
		derr := &DeleteError{Relation: rt.Name, RecordID: record.ID, Err: err}
		logger.Error("failed to remove dangling record", "record", record.Describe(rt), "error", derr)
		t.deleteFailed(record.ID, derr)
	}
}

// tally serializes updates to a SweepResult from the worker pool
type tally struct {
	mu     sync.Mutex
	result *entities.SweepResult
}

func (t *tally) clean() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result.Examined++
}

func (t *tally) dangling(removal entities.Removal, removed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result.Examined++
	t.result.Dangling++
	if removed {
		t.result.Removed++
	}
	t.result.Removals = append(t.result.Removals, removal)
}

func (t *tally) verifyFailed(recordID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result.Examined++
	t.result.VerifyErrors++
	t.result.Failures = append(t.result.Failures, entities.RecordFailure{
		RecordID: recordID,
		Stage:    entities.StageVerify,
		Message:  err.Error(),
	})
}

func (t *tally) deleteFailed(recordID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result.Examined++
	t.result.Dangling++
	t.result.DeleteErrors++
	t.result.Failures = append(t.result.Failures, entities.RecordFailure{
		RecordID: recordID,
		Stage:    entities.StageDelete,
		Message:  err.Error(),
	})
}
