package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/camarize/reconciler/internal/entities"
	"github.com/camarize/reconciler/internal/repositories"
	"github.com/camarize/reconciler/internal/services/catalog"
)

// AnomalyReporter reports entities that violate the catalog's expectations.
// It never mutates the store.
type AnomalyReporter struct {
	catalog      *catalog.Catalog
	entities     repositories.EntityRepository
	engine       *ConditionEngine
	pageSize     int
	checkTimeout time.Duration
	logger       *slog.Logger
}

// NewAnomalyReporter creates an AnomalyReporter
func NewAnomalyReporter(cat *catalog.Catalog, entityRepo repositories.EntityRepository, engine *ConditionEngine, pageSize int, checkTimeout time.Duration, logger *slog.Logger) *AnomalyReporter {
	return &AnomalyReporter{
		catalog:      cat,
		entities:     entityRepo,
		engine:       engine,
		pageSize:     pageSize,
		checkTimeout: checkTimeout,
		logger:       logger,
	}
}

// Report evaluates every expectation. Errors are collected per expectation
// and never stop the remaining expectations.
func (r *AnomalyReporter) Report(ctx context.Context) ([]entities.AnomalyFinding, []error) {
	var findings []entities.AnomalyFinding
	var errs []error

	for i := range r.catalog.Expectations {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("anomaly report cancelled: %w", err))
			break
		}
		f, e := r.check(ctx, &r.catalog.Expectations[i])
		findings = append(findings, f...)
		errs = append(errs, e...)
	}

	r.logger.Info("anomaly report finished", "findings", len(findings), "errors", len(errs))
	return findings, errs
}

func (r *AnomalyReporter) check(ctx context.Context, exp *entities.Expectation) ([]entities.AnomalyFinding, []error) {
	var findings []entities.AnomalyFinding
	var errs []error

	collection, err := r.catalog.Collection(exp.EntityType)
	if err != nil {
		return nil, []error{fmt.Errorf("expectation %s: %w", exp.Name, err)}
	}

	var targetCollection string
	if exp.Target != "" {
		targetCollection, err = r.catalog.Collection(exp.Target)
		if err != nil {
			return nil, []error{fmt.Errorf("expectation %s: %w", exp.Name, err)}
		}
	}

	var cond *Condition
	if exp.Condition != "" {
		if r.engine == nil {
			return nil, []error{fmt.Errorf("expectation %s: condition set but no condition engine", exp.Name)}
		}
		cond, err = r.engine.Compile(exp.Condition)
		if err != nil {
			return nil, []error{fmt.Errorf("expectation %s: %w", exp.Name, err)}
		}
	}

	finding := func(e *entities.Entity, description string) entities.AnomalyFinding {
		return entities.AnomalyFinding{
			Expectation: exp.Name,
			EntityType:  exp.EntityType,
			EntityID:    e.ID,
			Label:       e.Label(),
			Description: description,
		}
	}

	for e, err := range repositories.Entities(ctx, r.entities, collection, r.pageSize) {
		if err != nil {
			errs = append(errs, fmt.Errorf("expectation %s: scan %s: %w", exp.Name, collection, err))
			break
		}

		flagged := false
		if exp.Field != "" {
			ref, err := entities.FieldID(e.Fields, exp.Field)
			switch {
			case err != nil:
				errs = append(errs, fmt.Errorf("expectation %s: entity %s: %w", exp.Name, e.ID, err))
			case ref == "":
				findings = append(findings, finding(e, exp.Description))
				flagged = true
			case targetCollection != "":
				exists, err := r.exists(ctx, targetCollection, ref)
				if err != nil {
					if ctx.Err() != nil {
						errs = append(errs, fmt.Errorf("expectation %s: %w", exp.Name, ctx.Err()))
						return findings, errs
					}
					errs = append(errs, fmt.Errorf("expectation %s: lookup %s %q for %s: %w", exp.Name, exp.Target, ref, e.ID, err))
				} else if !exists {
					findings = append(findings, finding(e, fmt.Sprintf("%s references missing %s %s", exp.Field, exp.Target, ref)))
					flagged = true
				}
			}
		}

		// One finding per entity per expectation
		if cond != nil && !flagged {
			matched, err := cond.Eval(e)
			if err != nil {
				errs = append(errs, fmt.Errorf("expectation %s: entity %s: %w", exp.Name, e.ID, err))
				continue
			}
			if matched {
				findings = append(findings, finding(e, exp.Description))
			}
		}
	}

	for _, f := range findings {
		r.logger.Warn("anomaly", "expectation", f.Expectation, "entity_type", f.EntityType, "entity_id", f.EntityID, "label", f.Label, "description", f.Description)
	}
	return findings, errs
}

func (r *AnomalyReporter) exists(ctx context.Context, collection, id string) (bool, error) {
	if r.checkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.checkTimeout)
		defer cancel()
	}
	return r.entities.Exists(ctx, collection, id)
}
