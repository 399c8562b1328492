package metrics

import (
	"context"
	"time"

	"github.com/camarize/reconciler/internal/entities"
	"github.com/camarize/reconciler/internal/repositories"
	"google.golang.org/grpc"
)

// Store operation names
const (
	OpExists       = "exists"
	OpEntityScan   = "entity_scan"
	OpRelationScan = "relation_scan"
	OpDelete       = "delete"
)

// Observer receives one timed operation. Collector and PrometheusExporter
// both implement it.
type Observer interface {
	Observe(op string, d time.Duration, err error)
}

type observers []Observer

func (o observers) observe(op string, start time.Time, err error) {
	d := time.Since(start)
	for _, obs := range o {
		if obs != nil {
			obs.Observe(op, d, err)
		}
	}
}

// EntityRepository times every call to the wrapped repository
type EntityRepository struct {
	next      repositories.EntityRepository
	observers observers
}

var _ repositories.EntityRepository = (*EntityRepository)(nil)

// InstrumentEntities wraps next so each call is reported to obs
func InstrumentEntities(next repositories.EntityRepository, obs ...Observer) *EntityRepository {
	return &EntityRepository{next: next, observers: obs}
}

func (r *EntityRepository) Exists(ctx context.Context, collection string, id string) (bool, error) {
	start := time.Now()
	exists, err := r.next.Exists(ctx, collection, id)
	r.observers.observe(OpExists, start, err)
	return exists, err
}

func (r *EntityRepository) Scan(ctx context.Context, collection string, afterID string, limit int) ([]*entities.Entity, error) {
	start := time.Now()
	page, err := r.next.Scan(ctx, collection, afterID, limit)
	r.observers.observe(OpEntityScan, start, err)
	return page, err
}

// RelationRepository times every call to the wrapped repository
type RelationRepository struct {
	next      repositories.RelationRepository
	observers observers
}

var _ repositories.RelationRepository = (*RelationRepository)(nil)

// InstrumentRelations wraps next so each call is reported to obs
func InstrumentRelations(next repositories.RelationRepository, obs ...Observer) *RelationRepository {
	return &RelationRepository{next: next, observers: obs}
}

func (r *RelationRepository) Scan(ctx context.Context, collection string, afterID string, limit int) ([]*entities.RelationRecord, error) {
	start := time.Now()
	page, err := r.next.Scan(ctx, collection, afterID, limit)
	r.observers.observe(OpRelationScan, start, err)
	return page, err
}

func (r *RelationRepository) Delete(ctx context.Context, collection string, id string) error {
	start := time.Now()
	err := r.next.Delete(ctx, collection, id)
	r.observers.observe(OpDelete, start, err)
	return err
}

// UnaryServerInterceptor reports each gRPC call of the daemon, keyed by full method name.
func UnaryServerInterceptor(obs ...Observer) grpc.UnaryServerInterceptor {
	all := observers(obs)
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		all.observe(info.FullMethod, start, err)
		return resp, err
	}
}
