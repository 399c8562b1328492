package database

import (
	"context"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/camarize/reconciler/internal/infrastructure/config"
)

func TestPostgres_Close(t *testing.T) {
	tests := []struct {
		name    string
		pg      *Postgres
		wantErr bool
	}{
		{
			name:    "nil DB",
			pg:      &Postgres{DB: nil},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pg.Close()
			if (err != nil) != tt.wantErr {
				t.Errorf("Postgres.Close() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewPostgres_InvalidConfig(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:     "invalid-host-that-does-not-exist",
		Port:     99999,
		User:     "invalid",
		Password: "invalid",
		Database: "invalid",
		SSLMode:  "disable",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pg, err := NewPostgres(ctx, cfg, 0)
	if err == nil {
		if pg != nil && pg.DB != nil {
			pg.Close()
		}
		t.Fatal("NewPostgres() with invalid config should return error")
	}
	if strings.Contains(err.Error(), "invalid@") && strings.Contains(err.Error(), "password=invalid") {
		t.Errorf("NewPostgres() error leaks credentials: %v", err)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations/postgres")
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Errorf("embedded migrations: %d up, %d down; want equal and non-zero", ups, downs)
	}
}
