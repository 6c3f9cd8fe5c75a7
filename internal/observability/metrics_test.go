package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/officecal/internal/storage"
)

func TestInstrumentedStoreCounts(t *testing.T) {
	s := Instrument("test", storage.NewMemory())
	ctx := context.Background()

	notFound := testutil.ToFloat64(storeOperations.WithLabelValues("test", "get", "not_found"))
	okGets := testutil.ToFloat64(storeOperations.WithLabelValues("test", "get", "ok"))
	writes := testutil.ToFloat64(storeOperations.WithLabelValues("test", "set_merge", "ok"))

	_, err := s.Get(ctx, "alice")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, s.SetMerge(ctx, "alice", storage.Fields{"2024-01-10": "office"}))
	_, err = s.Get(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, notFound+1, testutil.ToFloat64(storeOperations.WithLabelValues("test", "get", "not_found")))
	assert.Equal(t, okGets+1, testutil.ToFloat64(storeOperations.WithLabelValues("test", "get", "ok")))
	assert.Equal(t, writes+1, testutil.ToFloat64(storeOperations.WithLabelValues("test", "set_merge", "ok")))
}

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(viewRecomputes)
	RecordRecompute()
	assert.Equal(t, before+1, testutil.ToFloat64(viewRecomputes))

	unauthorized := testutil.ToFloat64(stravaFetches.WithLabelValues("unauthorized"))
	RecordStravaFetch("unauthorized")
	assert.Equal(t, unauthorized+1, testutil.ToFloat64(stravaFetches.WithLabelValues("unauthorized")))

	SetCachedActivities(12)
	assert.Equal(t, 12.0, testutil.ToFloat64(cachedActivities))
}
