package e2e

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/camarize/reconciler/internal/services/reconcile"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenario_Sweep_RemovesDanglingRecords runs a full reconciliation against PostgreSQL
func TestScenario_Sweep_RemovesDanglingRecords(t *testing.T) {
	env := SetupE2ETest(t)
	defer env.Teardown(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	t.Log("Step 1: Seeding the farm application")
	seedFarm(t, env)

	t.Log("Step 2: Running reconciliation")
	summary, err := env.Coordinator(t, false).Run(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Relations, 3)

	tests := []struct {
		relation string
		examined int
		removed  int
	}{
		{relation: "farm_enclosure", examined: 5, removed: 3},
		{relation: "user_farm", examined: 2, removed: 1},
		{relation: "sensor_enclosure", examined: 2, removed: 1},
	}
	for i, tt := range tests {
		r := summary.Relations[i]
		assert.Equal(t, tt.relation, r.Relation)
		assert.Equal(t, tt.examined, r.Examined, tt.relation)
		assert.Equal(t, tt.removed, r.Dangling, tt.relation)
		assert.Equal(t, tt.removed, r.Removed, tt.relation)
		assert.Zero(t, r.Errored(), tt.relation)
		assert.Empty(t, r.Aborted, tt.relation)
	}
	assert.Equal(t, 9, summary.TotalExamined())
	assert.Equal(t, 5, summary.TotalRemoved())

	t.Log("Step 3: Verifying the store")
	assert.Equal(t, 2, env.Count(t, "farm_enclosures"))
	assert.Equal(t, 1, env.Count(t, "user_farms"))
	assert.Equal(t, 1, env.Count(t, "sensor_enclosures"))
	// entities are never touched
	assert.Equal(t, 3, env.Count(t, "enclosures"))
	assert.Equal(t, 2, env.Count(t, "farms"))

	t.Log("Step 4: Verifying anomalies")
	require.Len(t, summary.Anomalies, 2)
	assert.Equal(t, "e2", summary.Anomalies[0].EntityID)
	assert.Equal(t, "e3", summary.Anomalies[1].EntityID)
	assert.Empty(t, summary.AnomalyErrors)

	t.Log("Step 5: Verifying metrics")
	n, err := testutil.GatherAndCount(env.Registry, "camarize_reconciler_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	t.Log("Step 6: Second run finds nothing to remove")
	second, err := env.Coordinator(t, false).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, second.TotalExamined())
	assert.Zero(t, second.TotalDangling())
}

// TestScenario_Sweep_DryRun reports dangling records without deleting them
func TestScenario_Sweep_DryRun(t *testing.T) {
	env := SetupE2ETest(t)
	defer env.Teardown(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seedFarm(t, env)

	summary, err := env.Coordinator(t, true).Run(ctx)
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 5, summary.TotalDangling())
	assert.Zero(t, summary.TotalRemoved())

	assert.Equal(t, 5, env.Count(t, "farm_enclosures"))
	assert.Equal(t, 2, env.Count(t, "user_farms"))
	assert.Equal(t, 2, env.Count(t, "sensor_enclosures"))

	var out bytes.Buffer
	require.NoError(t, reconcile.Write(&out, reconcile.FormatText, summary))
	assert.Contains(t, out.String(), "Would remove (5):")
	assert.Contains(t, out.String(), "farm_enclosure/r4 missing farm,enclosure")
}

// TestScenario_Run_CancelledBeforeConnect fails fatally and mutates nothing
func TestScenario_Run_CancelledBeforeConnect(t *testing.T) {
	env := SetupE2ETest(t)
	defer env.Teardown(t)

	seedFarm(t, env)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := env.Coordinator(t, false).Run(ctx)
	require.ErrorIs(t, err, reconcile.ErrConnect)
	assert.Nil(t, summary)
	assert.Equal(t, 5, env.Count(t, "farm_enclosures"))
}
