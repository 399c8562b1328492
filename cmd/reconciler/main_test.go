package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/camarize/reconciler/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand_Flags(t *testing.T) {
	cmd := newRootCommand()

	tests := []struct {
		flag string
		want string
	}{
		{flag: "env", want: "dev"},
		{flag: "format", want: "text"},
		{flag: "dry-run", want: "false"},
		{flag: "catalog", want: ""},
		{flag: "concurrency", want: "0"},
		{flag: "verbose", want: "false"},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			f := cmd.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.want, f.DefValue)
		})
	}
}

func TestRootCommand_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{name: "異常系: 不明なフォーマット", args: []string{"--format", "xml"}, wantCode: ExitUsage},
		{name: "異常系: 位置引数", args: []string{"extra"}, wantCode: ExitUsage},
		{name: "異常系: 不明なフラグ", args: []string{"--bogus"}, wantCode: ExitUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCommand()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, exitCode(err))
		})
	}
}

func TestOptions_Apply(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		check   func(t *testing.T, cfg *config.Config)
		wantErr bool
	}{
		{
			name: "正常系: 未指定のフラグは設定値を維持",
			args: nil,
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 16, cfg.Reconcile.Concurrency)
				assert.False(t, cfg.Reconcile.DryRun)
				assert.Equal(t, "info", cfg.Log.Level)
			},
		},
		{
			name: "正常系: フラグが設定値を上書き",
			args: []string{"--dry-run", "--concurrency", "4", "--catalog", "c.yaml", "-v"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 4, cfg.Reconcile.Concurrency)
				assert.True(t, cfg.Reconcile.DryRun)
				assert.Equal(t, "c.yaml", cfg.Reconcile.CatalogPath)
				assert.Equal(t, "debug", cfg.Log.Level)
			},
		},
		{
			name:    "異常系: 並行数ゼロ",
			args:    []string{"--concurrency", "0"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &options{}
			cmd := o.command()
			require.NoError(t, cmd.ParseFlags(tt.args))

			cfg := &config.Config{
				Reconcile: config.ReconcileConfig{Concurrency: 16, PageSize: 500, CheckTimeout: 5 * time.Second},
				Log:       config.LogConfig{Level: "info"},
			}
			err := o.apply(cmd, cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	t.Run("正常系: パス未指定は組み込みカタログ", func(t *testing.T) {
		cat, err := loadCatalog("")
		require.NoError(t, err)
		assert.Len(t, cat.Relations, 3)
	})

	t.Run("正常系: YAMLファイル", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		data := `entity_types:
  - name: farm
    collection: farms
  - name: enclosure
    collection: enclosures
relations:
  - name: farm_enclosure
    collection: farm_enclosures
    role_a: {name: farm, entity_type: farm, field: farm}
    role_b: {name: enclosure, entity_type: enclosure, field: enclosure}
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
		cat, err := loadCatalog(path)
		require.NoError(t, err)
		assert.Len(t, cat.Relations, 1)
	})

	t.Run("異常系: 存在しないファイル", func(t *testing.T) {
		_, err := loadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "fatal", err: WrapExitError(ExitFailure, "reconciliation failed", errors.New("boom")), want: ExitFailure},
		{name: "wrapped", err: fmt.Errorf("outer: %w", NewExitError(ExitUsage, "bad flag")), want: ExitUsage},
		{name: "plain", err: errors.New("unknown flag"), want: ExitUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestExitError_Error(t *testing.T) {
	assert.Equal(t, "bad flag", NewExitError(ExitUsage, "bad flag").Error())
	assert.Equal(t, "failed to load config: boom",
		WrapExitError(ExitFailure, "failed to load config", errors.New("boom")).Error())
}
