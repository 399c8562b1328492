package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/camarize/reconciler/internal/infrastructure/config"
	"github.com/camarize/reconciler/internal/infrastructure/database"
	_ "github.com/lib/pq"
)

// SetupTestDB creates a test database connection and runs migrations.
// The test is skipped when the test database is not reachable.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Initialize test config
	if err := config.InitConfig("test"); err != nil {
		t.Skipf("Skipping: failed to init config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Skipf("Skipping: failed to load config: %v", err)
	}

	// Connect to database
	pg, err := database.NewPostgres(context.Background(), &cfg.Database, 0)
	if err != nil {
		t.Skipf("Skipping: test database unavailable: %v", err)
	}

	// Run migrations
	if err := pg.RunMigrations(); err != nil {
		pg.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	if _, err := pg.DB.Exec("DELETE FROM documents"); err != nil {
		t.Logf("Warning: Failed to clean up documents: %v", err)
	}

	return pg.DB
}

// CleanupTestDB removes test documents and closes the database connection
func CleanupTestDB(t *testing.T, db *sql.DB) {
	t.Helper()

	if _, err := db.Exec("DELETE FROM documents"); err != nil {
		t.Logf("Warning: Failed to clean up documents: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Logf("Warning: Failed to close database: %v", err)
	}
}
