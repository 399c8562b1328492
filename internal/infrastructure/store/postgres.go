// Package store opens reconciliation sessions against the PostgreSQL document store.
package store

import (
	"context"
	"log/slog"

	"github.com/camarize/reconciler/internal/infrastructure/config"
	"github.com/camarize/reconciler/internal/infrastructure/database"
	"github.com/camarize/reconciler/internal/infrastructure/metrics"
	"github.com/camarize/reconciler/internal/repositories"
	"github.com/camarize/reconciler/internal/repositories/cached"
	"github.com/camarize/reconciler/internal/repositories/postgres"
	"github.com/camarize/reconciler/internal/services/catalog"
	"github.com/camarize/reconciler/internal/services/reconcile"
	"github.com/camarize/reconciler/pkg/cache"
	"github.com/camarize/reconciler/pkg/cache/memorycache"
)

// PostgresConnector opens one connection pool per run. The existence cache,
// when enabled, is shared by every session it opens.
type PostgresConnector struct {
	db        config.DatabaseConfig
	poolSize  int
	catalog   *catalog.Catalog
	cache     cache.Cache[bool]
	observers []metrics.Observer
	logger    *slog.Logger
}

var _ reconcile.Connector = (*PostgresConnector)(nil)

// NewPostgresConnector creates a connector from configuration
func NewPostgresConnector(cfg *config.Config, cat *catalog.Catalog, logger *slog.Logger, obs ...metrics.Observer) *PostgresConnector {
	c := &PostgresConnector{
		db: cfg.Database,
		// every in-flight record may hold a lookup pair or a delete, plus the page scan
		poolSize:  2*cfg.Reconcile.Concurrency + 2,
		catalog:   cat,
		observers: obs,
		logger:    logger,
	}
	if cfg.Cache.Enabled {
		c.cache = memorycache.New[bool](memorycache.Config{
			MaxEntries: cfg.Cache.MaxEntries,
			TTL:        cfg.Cache.CacheTTL(),
		})
	}
	return c
}

// Cache returns the shared existence cache, or nil when caching is disabled
func (c *PostgresConnector) Cache() cache.Cache[bool] {
	return c.cache
}

// Evicter returns an invalidation target for the shared cache, or nil when
// caching is disabled
func (c *PostgresConnector) Evicter() *cached.Evicter {
	if c.cache == nil {
		return nil
	}
	return cached.NewEvicter(c.cache)
}

// Connect opens and verifies a connection pool
func (c *PostgresConnector) Connect(ctx context.Context) (reconcile.Session, error) {
	pg, err := database.NewPostgres(ctx, &c.db, c.poolSize)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("connected to document store", "target", c.db.Target(), "pool_size", c.poolSize)

	var entityRepo repositories.EntityRepository = metrics.InstrumentEntities(
		postgres.NewPostgresEntityRepository(pg.DB, c.catalog.EntityTypes), c.observers...)
	if c.cache != nil {
		entityRepo = cached.NewEntityRepository(entityRepo, c.cache)
	}
	relationRepo := metrics.InstrumentRelations(postgres.NewPostgresRelationRepository(pg.DB), c.observers...)

	return &session{pg: pg, entities: entityRepo, relations: relationRepo}, nil
}

type session struct {
	pg        *database.Postgres
	entities  repositories.EntityRepository
	relations repositories.RelationRepository
}

func (s *session) Entities() repositories.EntityRepository   { return s.entities }
func (s *session) Relations() repositories.RelationRepository { return s.relations }
func (s *session) Close() error                               { return s.pg.Close() }
