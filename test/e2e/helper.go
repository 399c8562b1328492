package e2e

import (
	"context"
	"database/sql"
	"testing"

	"github.com/camarize/reconciler/internal/infrastructure/config"
	"github.com/camarize/reconciler/internal/infrastructure/database"
	"github.com/camarize/reconciler/internal/infrastructure/logging"
	"github.com/camarize/reconciler/internal/infrastructure/metrics"
	"github.com/camarize/reconciler/internal/infrastructure/store"
	"github.com/camarize/reconciler/internal/repositories/postgres"
	"github.com/camarize/reconciler/internal/services/catalog"
	"github.com/camarize/reconciler/internal/services/reconcile"
	"github.com/prometheus/client_golang/prometheus"
)

// E2ETestEnv is a migrated, empty test database plus the components of a
// production run wired against it
type E2ETestEnv struct {
	Config    *config.Config
	DB        *sql.DB
	Writer    *postgres.DocumentWriter
	Catalog   *catalog.Catalog
	Connector *store.PostgresConnector
	Collector *metrics.Collector
	Exporter  *metrics.PrometheusExporter
	Registry  *prometheus.Registry
	pg        *database.Postgres
}

// SetupE2ETest sets up an E2E test environment. The test is skipped when the
// test database is not reachable.
func SetupE2ETest(t *testing.T) *E2ETestEnv {
	t.Helper()

	// Initialize config for test environment
	if err := config.InitConfig("test"); err != nil {
		t.Skipf("Skipping: failed to init config: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Skipf("Skipping: failed to load config: %v", err)
	}

	// Connect to test database
	pg, err := database.NewPostgres(context.Background(), &cfg.Database, 0)
	if err != nil {
		t.Skipf("Skipping: test database unavailable: %v", err)
	}
	if err := pg.RunMigrations(); err != nil {
		pg.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	env := &E2ETestEnv{
		Config:    cfg,
		DB:        pg.DB,
		Writer:    postgres.NewDocumentWriter(pg.DB),
		Catalog:   catalog.Default(),
		Collector: metrics.NewCollector(),
		Registry:  prometheus.NewRegistry(),
		pg:        pg,
	}
	env.cleanup(t)

	env.Exporter = metrics.NewPrometheusExporter(env.Collector, env.Registry)
	env.Connector = store.NewPostgresConnector(cfg, env.Catalog, logging.Discard(), env.Collector, env.Exporter)
	if c := env.Connector.Cache(); c != nil {
		env.Collector.SetCache(c)
	}
	return env
}

// Coordinator builds a coordinator over the environment's connector
func (e *E2ETestEnv) Coordinator(t *testing.T, dryRun bool) *reconcile.Coordinator {
	t.Helper()

	coordinator, err := reconcile.NewCoordinator(e.Connector, e.Catalog, reconcile.Options{
		Concurrency:  e.Config.Reconcile.Concurrency,
		PageSize:     2, // several pages per collection
		CheckTimeout: e.Config.Reconcile.CheckTimeout,
		DryRun:       dryRun,
	}, logging.Discard())
	if err != nil {
		t.Fatalf("failed to create coordinator: %v", err)
	}
	coordinator.SetRecorder(e.Exporter)
	return coordinator
}

// Put writes a document or fails the test
func (e *E2ETestEnv) Put(t *testing.T, collection, id string, fields map[string]interface{}) {
	t.Helper()
	if err := e.Writer.Put(context.Background(), collection, id, fields); err != nil {
		t.Fatalf("failed to seed %s/%s: %v", collection, id, err)
	}
}

// Count returns the number of documents in a collection or fails the test
func (e *E2ETestEnv) Count(t *testing.T, collection string) int {
	t.Helper()
	n, err := e.Writer.Count(context.Background(), collection)
	if err != nil {
		t.Fatalf("failed to count %s: %v", collection, err)
	}
	return n
}

// Teardown removes all documents and closes the database
func (e *E2ETestEnv) Teardown(t *testing.T) {
	t.Helper()
	e.cleanup(t)
	if err := e.pg.Close(); err != nil {
		t.Logf("Warning: failed to close database: %v", err)
	}
}

func (e *E2ETestEnv) cleanup(t *testing.T) {
	t.Helper()
	if _, err := e.DB.Exec("DELETE FROM documents"); err != nil {
		t.Logf("Warning: failed to clean up documents: %v", err)
	}
}

// seedFarm writes a farm application with broken references:
//
//	farm_enclosures:   r1 clean, r2 farm gone, r3 enclosure gone, r4 both gone, r5 clean
//	user_farms:        r1 clean, r2 user gone
//	sensor_enclosures: r1 clean, r2 enclosure reference null
//	enclosures:        e2 carries no user, e3 points at a deleted user
func seedFarm(t *testing.T, e *E2ETestEnv) {
	t.Helper()

	e.Put(t, "users", "u1", map[string]interface{}{"name": "Ana"})
	e.Put(t, "farms", "f1", map[string]interface{}{"name": "North"})
	e.Put(t, "farms", "f2", map[string]interface{}{"name": "South"})
	e.Put(t, "enclosures", "e1", map[string]interface{}{"name": "Tank A", "user": "u1"})
	e.Put(t, "enclosures", "e2", map[string]interface{}{"name": "Tank B"})
	e.Put(t, "enclosures", "e3", map[string]interface{}{"name": "Tank C", "user": "u9"})
	e.Put(t, "sensors", "s1", map[string]interface{}{"model": "pH-7"})

	e.Put(t, "farm_enclosures", "r1", map[string]interface{}{"farm": "f1", "enclosure": "e1"})
	e.Put(t, "farm_enclosures", "r2", map[string]interface{}{"farm": "f9", "enclosure": "e1"})
	e.Put(t, "farm_enclosures", "r3", map[string]interface{}{"farm": "f1", "enclosure": "e9"})
	e.Put(t, "farm_enclosures", "r4", map[string]interface{}{"farm": "f8", "enclosure": "e8"})
	e.Put(t, "farm_enclosures", "r5", map[string]interface{}{"farm": "f2", "enclosure": "e2", "since": 2021})

	e.Put(t, "user_farms", "r1", map[string]interface{}{"user": "u1", "farm": "f1"})
	e.Put(t, "user_farms", "r2", map[string]interface{}{"user": "u7", "farm": "f2"})

	e.Put(t, "sensor_enclosures", "r1", map[string]interface{}{"sensor_id": "s1", "enclosure_id": "e2"})
	e.Put(t, "sensor_enclosures", "r2", map[string]interface{}{"sensor_id": "s1", "enclosure_id": nil})
}
