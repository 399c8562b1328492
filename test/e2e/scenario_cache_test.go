package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/camarize/reconciler/internal/infrastructure/cache"
	"github.com/camarize/reconciler/internal/infrastructure/logging"
	"github.com/camarize/reconciler/internal/repositories/cached"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenario_Cache_InvalidatedOnDelete checks that a document deleted by
// another writer is evicted from the shared existence cache, so the next run
// sees the relation record as dangling
func TestScenario_Cache_InvalidatedOnDelete(t *testing.T) {
	env := SetupE2ETest(t)
	defer env.Teardown(t)

	if env.Connector.Cache() == nil {
		t.Skip("Skipping: existence cache disabled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	env.Put(t, "farms", "f1", map[string]interface{}{"name": "North"})
	env.Put(t, "enclosures", "e1", map[string]interface{}{"name": "Tank A"})
	env.Put(t, "farm_enclosures", "r1", map[string]interface{}{"farm": "f1", "enclosure": "e1"})

	invalidator := cache.NewInvalidator(env.Config.Database.ConnectionString(), env.Connector.Evicter(), logging.Discard())
	require.NoError(t, invalidator.Start(ctx))
	defer invalidator.Stop()

	t.Log("Step 1: First run caches both endpoints")
	summary, err := env.Coordinator(t, false).Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalDangling())
	_, ok := env.Connector.Cache().Get(cached.Key("farms", "f1"))
	require.True(t, ok)

	t.Log("Step 2: Another writer deletes the farm")
	require.NoError(t, env.Writer.Remove(ctx, "farms", "f1"))
	require.Eventually(t, func() bool {
		_, ok := env.Connector.Cache().Get(cached.Key("farms", "f1"))
		return !ok
	}, 5*time.Second, 20*time.Millisecond)

	t.Log("Step 3: Second run removes the record")
	summary, err = env.Coordinator(t, false).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalRemoved())
	assert.Equal(t, 0, env.Count(t, "farm_enclosures"))

	cm := env.Collector.GetCacheMetrics()
	assert.Positive(t, cm.Hits)
}
