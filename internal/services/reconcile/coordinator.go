package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/camarize/reconciler/internal/entities"
	"github.com/camarize/reconciler/internal/repositories"
	"github.com/camarize/reconciler/internal/services/catalog"
	"github.com/google/uuid"
)

// Session is an open connection to the entity store
type Session interface {
	Entities() repositories.EntityRepository
	Relations() repositories.RelationRepository
	Close() error
}

// Connector opens store sessions
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// Recorder receives the summary of every completed run
type Recorder interface {
	RecordRun(summary *Summary)
}

// Options tunes a run
type Options struct {
	Concurrency  int
	PageSize     int
	CheckTimeout time.Duration
	DryRun       bool
}

// Summary is the outcome of one run
type Summary struct {
	RunID         string                    `json:"run_id"`
	StartedAt     time.Time                 `json:"started_at"`
	FinishedAt    time.Time                 `json:"finished_at"`
	DryRun        bool                      `json:"dry_run"`
	Cancelled     bool                      `json:"cancelled"`
	Relations     []*entities.SweepResult   `json:"relations"`
	Anomalies     []entities.AnomalyFinding `json:"anomalies"`
	AnomalyErrors []string                  `json:"anomaly_errors,omitempty"`
}

// TotalExamined sums examined records over all relation types
func (s *Summary) TotalExamined() int {
	return s.sum(func(r *entities.SweepResult) int { return r.Examined })
}

// TotalDangling sums dangling records over all relation types
func (s *Summary) TotalDangling() int {
	return s.sum(func(r *entities.SweepResult) int { return r.Dangling })
}

// TotalRemoved sums removed records over all relation types
func (s *Summary) TotalRemoved() int {
	return s.sum(func(r *entities.SweepResult) int { return r.Removed })
}

// TotalErrored sums failed verifications and deletions over all relation types
func (s *Summary) TotalErrored() int {
	return s.sum(func(r *entities.SweepResult) int { return r.Errored() })
}

// Duration returns the wall-clock duration of the run
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *Summary) sum(f func(*entities.SweepResult) int) int {
	total := 0
	for _, r := range s.Relations {
		total += f(r)
	}
	return total
}

// Coordinator runs the sweep and the anomaly report against one session
type Coordinator struct {
	connector Connector
	catalog   *catalog.Catalog
	engine    *ConditionEngine
	opts      Options
	logger    *slog.Logger
	recorder  Recorder
}

// NewCoordinator creates a Coordinator
func NewCoordinator(connector Connector, cat *catalog.Catalog, opts Options, logger *slog.Logger) (*Coordinator, error) {
	engine, err := NewConditionEngine()
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		connector: connector,
		catalog:   cat,
		engine:    engine,
		opts:      opts,
		logger:    logger,
	}, nil
}

// SetRecorder attaches a recorder notified after each run
func (c *Coordinator) SetRecorder(r Recorder) {
	c.recorder = r
}

// Run performs one reconciliation. The only returned error is a failure to
// open the session, wrapped with ErrConnect; everything else is absorbed
// into the summary.
func (c *Coordinator) Run(ctx context.Context) (*Summary, error) {
	runID := newRunID()
	logger := c.logger.With("run_id", runID)
	summary := &Summary{
		RunID:     runID,
		StartedAt: time.Now(),
		DryRun:    c.opts.DryRun,
	}

	session, err := c.connector.Connect(ctx)
	if err != nil {
		logger.Error("failed to open store session", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close store session", "error", err)
		}
	}()

	logger.Info("reconciliation started",
		"relations", len(c.catalog.Relations),
		"expectations", len(c.catalog.Expectations),
		"concurrency", c.opts.Concurrency,
		"dry_run", c.opts.DryRun,
	)

	verifier := NewVerifier(session.Entities(), c.catalog, c.opts.CheckTimeout)
	sweeper := NewSweeper(c.catalog, session.Relations(), verifier, SweepOptions{
		Concurrency: c.opts.Concurrency,
		PageSize:    c.opts.PageSize,
		DryRun:      c.opts.DryRun,
	}, logger)
	summary.Relations = sweeper.Sweep(ctx)

	reporter := NewAnomalyReporter(c.catalog, session.Entities(), c.engine, c.opts.PageSize, c.opts.CheckTimeout, logger)
	findings, errs := reporter.Report(ctx)
	summary.Anomalies = findings
	for _, err := range errs {
		summary.AnomalyErrors = append(summary.AnomalyErrors, err.Error())
	}

	summary.Cancelled = ctx.Err() != nil
	summary.FinishedAt = time.Now()

	logger.Info("reconciliation finished",
		"examined", summary.TotalExamined(),
		"removed", summary.TotalRemoved(),
		"errored", summary.TotalErrored(),
		"anomalies", len(summary.Anomalies),
		"cancelled", summary.Cancelled,
		"duration", summary.Duration(),
	)

	if c.recorder != nil {
		c.recorder.RecordRun(summary)
	}
	return summary, nil
}

// newRunID returns a time-ordered run identifier
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
