//go:build integration

package firestore

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/officecal/internal/activity"
	"github.com/officecal/internal/location"
	"github.com/officecal/internal/storage"
	"github.com/officecal/internal/work"
)

const emulatorImage = "gcr.io/google.com/cloudsdktool/google-cloud-cli:emulators"

// startEmulator points the client at FIRESTORE_EMULATOR_HOST, starting an
// emulator container when none is configured.
func startEmulator(t *testing.T, ctx context.Context) {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") != "" {
		return
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        emulatorImage,
			ExposedPorts: []string{"8080/tcp"},
			Cmd:          []string{"gcloud", "emulators", "firestore", "start", "--host-port=0.0.0.0:8080"},
			WaitingFor:   wait.ForLog("running").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	endpoint, err := c.PortEndpoint(ctx, "8080/tcp", "")
	require.NoError(t, err)
	t.Setenv("FIRESTORE_EMULATOR_HOST", endpoint)
}

func openStore(t *testing.T, ctx context.Context) *Store {
	t.Helper()
	startEmulator(t, ctx)
	store, err := Open(ctx, "officecal-test", "users-"+time.Now().Format("150405.000000000"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreMergePaths(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, ctx)

	_, err := store.Get(ctx, "alice")
	require.True(t, errors.Is(err, storage.ErrNotFound))

	first := storage.NewPatch().
		SetLocation("2024-01-10", location.Office).
		SetGoals(work.Goals{Office: 4, Running: 2}).
		SetTokens("tok", "refresh").
		SetActivities(activity.BuildIndex([]activity.Record{
			{ID: 1, Type: "Run", Name: "Tempo", StartDateLocal: "2024-01-09T07:00:00Z"},
			{ID: 2, Type: "Yoga", Name: "Flow", StartDateLocal: "2024-01-10T18:00:00Z"},
		}), time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC))
	require.NoError(t, store.SetMerge(ctx, "alice", first.Fields()))

	second := storage.NewPatch().
		SetLocation("2024-01-10", location.None).
		SetLocation("2024-01-11", location.Home).
		ClearTokens().
		SetActivities(activity.BuildIndex([]activity.Record{
			{ID: 3, Type: "WeightTraining", Name: "Gym", StartDateLocal: "2024-01-12T07:00:00Z"},
		}), time.Date(2024, 1, 18, 12, 0, 0, 0, time.UTC))
	require.NoError(t, store.SetMerge(ctx, "alice", second.Fields()))
	require.NoError(t, store.SetMerge(ctx, "bob", storage.Fields{"2024-01-10": "home"}))

	raw, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	require.Contains(t, raw, "2024-01-10")
	require.Nil(t, raw["2024-01-10"])

	doc := storage.Decode(raw)
	_, ok := doc.Locations.Explicit("2024-01-10")
	require.False(t, ok)
	require.Equal(t, location.Home, doc.Locations["2024-01-11"])
	require.Equal(t, work.Goals{Office: 4, Running: 2}, doc.GoalsOrDefault())
	require.False(t, doc.Connected())

	// The activity map is replaced whole, not deep-merged.
	require.Equal(t, []string{"2024-01-12"}, doc.Activities.Keys())
	require.Equal(t, int64(3), doc.Activities.On("2024-01-12")[0].ID)
	require.Equal(t, time.Date(2024, 1, 18, 12, 0, 0, 0, time.UTC), doc.SyncedAt)
}

func TestStoreSnapshots(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, ctx)

	var mu sync.Mutex
	var seen []storage.Fields
	cancel, err := store.Subscribe(ctx, "alice", func(f storage.Fields) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, f)
	})
	require.NoError(t, err)

	require.NoError(t, store.SetMerge(ctx, "alice", storage.Fields{"2024-01-10": "office"}))
	require.NoError(t, store.SetMerge(ctx, "alice", storage.Fields{"2024-01-11": "home"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		if len(seen) == 0 {
			return false
		}
		last := seen[len(seen)-1]
		return last["2024-01-10"] == "office" && last["2024-01-11"] == "home"
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	mu.Lock()
	count := len(seen)
	mu.Unlock()

	require.NoError(t, store.SetMerge(ctx, "alice", storage.Fields{"2024-01-12": "office"}))
	time.Sleep(500 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, count, len(seen))
}
