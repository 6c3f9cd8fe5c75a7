package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/officecal/internal/activity"
	"github.com/officecal/internal/location"
	"github.com/officecal/internal/overlay"
	"github.com/officecal/internal/storage"
	"github.com/officecal/internal/strava"
	"github.com/officecal/internal/work"
)

type fakeSource struct {
	mu      sync.Mutex
	records []activity.Record
	err     error
	calls   int
	token   string
	after   time.Time
	before  time.Time
}

func (f *fakeSource) Activities(ctx context.Context, token string, after, before time.Time) ([]activity.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.token, f.after, f.before = token, after, before
	return f.records, f.err
}

type memPrefs struct{ user string }

func (p *memPrefs) ActiveUser() string { return p.user }
func (p *memPrefs) SetActiveUser(name string) error {
	p.user = name
	return nil
}

type recorder struct {
	mu       sync.Mutex
	warnings []string
}

func (r *recorder) Info(string)    {}
func (r *recorder) Success(string) {}
func (r *recorder) Error(string)   {}
func (r *recorder) Warning(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, msg)
}

// flakyStore fails every call once broken is set.
type flakyStore struct {
	*storage.Memory
	broken bool
	writes int
}

var errOffline = errors.New("offline")

func (s *flakyStore) Get(ctx context.Context, user string) (storage.Fields, error) {
	if s.broken {
		return nil, errOffline
	}
	return s.Memory.Get(ctx, user)
}

func (s *flakyStore) SetMerge(ctx context.Context, user string, patch storage.Fields) error {
	s.writes++
	if s.broken {
		return errOffline
	}
	return s.Memory.SetMerge(ctx, user, patch)
}

// Wednesday, January 17 2024.
var fixedNow = time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)

type harness struct {
	tracker *Tracker
	store   *flakyStore
	source  *fakeSource
	prefs   *memPrefs
	notes   *recorder
}

func newHarness(t *testing.T, user string) *harness {
	t.Helper()
	h := &harness{
		store:  &flakyStore{Memory: storage.NewMemory()},
		source: &fakeSource{},
		prefs:  &memPrefs{user: user},
		notes:  &recorder{},
	}
	h.tracker = New(Options{
		Store:    h.store,
		Source:   h.source,
		Prefs:    h.prefs,
		Notifier: h.notes,
		Now:      func() time.Time { return fixedNow },
		Location: time.UTC,
	})
	return h
}

func TestNewStartsOnCurrentMonth(t *testing.T) {
	h := newHarness(t, "ana")
	v := h.tracker.View()
	assert.Equal(t, 2024, v.Year)
	assert.Equal(t, time.January, v.Month)
	assert.Equal(t, "ana", v.User)
	assert.Equal(t, "2024-01-17", v.Today)
	assert.Equal(t, "January 2024", v.Title())
	assert.Equal(t, overlay.AllVisible(), v.Filters)
	assert.Equal(t, work.DefaultGoals(), v.Goals)
}

func TestBuildViewIsRepeatable(t *testing.T) {
	doc := storage.Decode(storage.Fields{
		"2024-01-08":             "office",
		"2024-01-09":             "home",
		storage.FieldAccessToken: "tok",
	})
	in := Input{User: "ana", Year: 2024, Month: time.January, Today: fixedNow, Doc: doc, Filters: overlay.AllVisible()}
	assert.Equal(t, BuildView(in), BuildView(in))
}

func TestNoUserRejectsDocumentOperations(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	_, err := h.tracker.Load(ctx)
	assert.ErrorIs(t, err, ErrNoUser)
	_, err = h.tracker.SetLocation(ctx, "2024-01-10", location.Office)
	assert.ErrorIs(t, err, ErrNoUser)
	_, err = h.tracker.SetGoals(ctx, work.DefaultGoals())
	assert.ErrorIs(t, err, ErrNoUser)
	_, err = h.tracker.SyncActivities(ctx, true)
	assert.ErrorIs(t, err, ErrNoUser)
	assert.ErrorIs(t, h.tracker.Watch(ctx, nil), ErrNoUser)

	assert.ErrorIs(t, h.tracker.SetUser("   "), ErrNoUser)
	assert.Zero(t, h.store.writes)
}

func TestSetUserPersistsAndResets(t *testing.T) {
	h := newHarness(t, "ana")
	ctx := context.Background()
	_, err := h.tracker.SetLocation(ctx, "2024-01-10", location.Office)
	require.NoError(t, err)

	require.NoError(t, h.tracker.SetUser("  bo "))
	assert.Equal(t, "bo", h.prefs.user)
	assert.Equal(t, "bo", h.tracker.User())

	day, ok := h.tracker.View().Day("2024-01-10")
	require.True(t, ok)
	assert.Equal(t, location.None, day.Location)

	v, err := h.tracker.Load(ctx)
	require.NoError(t, err)
	day, _ = v.Day("2024-01-10")
	assert.Equal(t, location.None, day.Location)
}

func TestSetLocationRoundTrip(t *testing.T) {
	h := newHarness(t, "ana")
	ctx := context.Background()

	v, err := h.tracker.SetLocation(ctx, "2024-01-10", location.Office)
	require.NoError(t, err)
	day, _ := v.Day("2024-01-10")
	assert.Equal(t, location.Office, day.Location)
	assert.True(t, day.Explicit)

	// Weekend defaults to home until overridden.
	sat, _ := v.Day("2024-01-13")
	assert.Equal(t, location.Home, sat.Location)
	assert.False(t, sat.Explicit)

	v, err = h.tracker.SetLocation(ctx, "2024-01-10", location.None)
	require.NoError(t, err)
	day, _ = v.Day("2024-01-10")
	assert.Equal(t, location.None, day.Location)
	assert.False(t, day.Explicit)

	stored, err := h.store.Get(ctx, "ana")
	require.NoError(t, err)
	assert.Nil(t, stored["2024-01-10"])
}

func TestViewOutlookTracksCurrentWeek(t *testing.T) {
	h := newHarness(t, "ana")
	ctx := context.Background()

	v := h.tracker.View()
	require.NotNil(t, v.Outlook)
	assert.Equal(t, work.WeekOutlook{Goal: 3, OfficeDays: 0, Needed: 3, OpenDays: 3}, *v.Outlook)

	_, err := h.tracker.SetLocation(ctx, "2024-01-15", location.Office)
	require.NoError(t, err)
	v, err = h.tracker.SetLocation(ctx, "2024-01-17", location.Home)
	require.NoError(t, err)
	assert.Equal(t, work.WeekOutlook{Goal: 3, OfficeDays: 1, Needed: 2, OpenDays: 2}, *v.Outlook)
	assert.True(t, v.Outlook.Reachable())

	v, err = h.tracker.SetGoals(ctx, work.Goals{Office: 0})
	require.NoError(t, err)
	assert.Nil(t, v.Outlook)
}

func TestSetLocationKeepsForeignWrites(t *testing.T) {
	h := newHarness(t, "ana")
	ctx := context.Background()
	_, err := h.tracker.Load(ctx)
	require.NoError(t, err)

	// Another device writes after our load.
	require.NoError(t, h.store.SetMerge(ctx, "ana", storage.Fields{"2024-01-08": "office"}))

	v, err := h.tracker.SetLocation(ctx, "2024-01-09", location.Office)
	require.NoError(t, err)
	mon, _ := v.Day("2024-01-08")
	tue, _ := v.Day("2024-01-09")
	assert.Equal(t, location.Office, mon.Location)
	assert.Equal(t, location.Office, tue.Location)
}

func TestSetLocationRejectsBadKey(t *testing.T) {
	h := newHarness(t, "ana")
	_, err := h.tracker.SetLocation(context.Background(), "2024-1-9", location.Office)
	var verr *work.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, h.store.writes)
}

func TestSetGoals(t *testing.T) {
	h := newHarness(t, "ana")
	ctx := context.Background()

	v, err := h.tracker.SetGoals(ctx, work.Goals{Office: 2, Running: 3})
	require.NoError(t, err)
	assert.Equal(t, work.Goals{Office: 2, Running: 3}, v.Goals)
	assert.Equal(t, 2, v.Weeks[0].Office.Goal)
	assert.Equal(t, 3, v.Weeks[0].Running.Goal)

	_, err = h.tracker.SetGoals(ctx, work.Goals{Office: 9})
	var verr *work.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "office", verr.Field)
	assert.Equal(t, 1, h.store.writes)
	assert.Equal(t, 2, h.tracker.View().Goals.Office)
}

func TestRemoteFailureKeepsState(t *testing.T) {
	h := newHarness(t, "ana")
	ctx := context.Background()
	_, err := h.tracker.SetLocation(ctx, "2024-01-10", location.Office)
	require.NoError(t, err)
	before := h.tracker.View()

	h.store.broken = true
	_, err = h.tracker.SetLocation(ctx, "2024-01-11", location.Office)
	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, errOffline)

	_, err = h.tracker.SetGoals(ctx, work.Goals{Office: 1})
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "save goals", rerr.Op)

	_, err = h.tracker.Load(ctx)
	require.ErrorAs(t, err, &rerr)

	assert.Equal(t, before, h.tracker.View())
}

func TestLoadMissingDocumentIsEmpty(t *testing.T) {
	h := newHarness(t, "ana")
	v, err := h.tracker.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, v.Average.Valid)
	assert.False(t, v.Connected)
	assert.Zero(t, v.Activities)
}

func TestNavigation(t *testing.T) {
	h := newHarness(t, "ana")

	v := h.tracker.NavigateMonth(-1)
	assert.Equal(t, 2023, v.Year)
	assert.Equal(t, time.December, v.Month)

	v = h.tracker.NavigateMonth(2)
	assert.Equal(t, 2024, v.Year)
	assert.Equal(t, time.February, v.Month)

	v = h.tracker.GoToMonth(2024, 13)
	assert.Equal(t, 2025, v.Year)
	assert.Equal(t, time.January, v.Month)
}

func TestToggleFilters(t *testing.T) {
	h := newHarness(t, "ana")

	v := h.tracker.ToggleWork()
	assert.False(t, v.Filters.Work)
	for _, w := range v.Weeks {
		assert.False(t, w.ShowWork)
	}
	v = h.tracker.ToggleHealth()
	assert.False(t, v.Filters.Health)
	v = h.tracker.ToggleWork()
	assert.True(t, v.Filters.Work)
}

func TestOnViewReceivesRecomputes(t *testing.T) {
	h := newHarness(t, "ana")
	var got []View
	stop := h.tracker.OnView(func(v View) { got = append(got, v) })

	h.tracker.NavigateMonth(1)
	h.tracker.ToggleWork()
	require.Len(t, got, 2)
	assert.Equal(t, time.February, got[0].Month)
	assert.False(t, got[1].Filters.Work)

	stop()
	h.tracker.NavigateMonth(1)
	assert.Len(t, got, 2)
}

func TestSyncActivities(t *testing.T) {
	h := newHarness(t, "ana")
	ctx := context.Background()
	_, err := h.tracker.ConnectStrava(ctx, "tok", "refresh")
	require.NoError(t, err)

	h.source.records = []activity.Record{
		{ID: 1, Type: "Run", Name: "Easy", StartDateLocal: "2024-01-09T07:00:00Z"},
		{ID: 2, SportType: "Yoga", Name: "Flow", StartDateLocal: "2024-01-09T19:00:00Z"},
		{ID: 3, Type: "WeightTraining", Name: "Gym", StartDateLocal: "2024-01-16T18:00:00Z"},
	}
	v, err := h.tracker.SyncActivities(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 1, h.source.calls)
	assert.Equal(t, "tok", h.source.token)
	after, before := h.tracker.SyncWindow()
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), after)
	assert.Equal(t, after, h.source.after)
	assert.Equal(t, before, h.source.before)

	assert.Equal(t, 3, v.Activities)
	require.NotNil(t, v.SyncedAt)
	assert.Equal(t, fixedNow, *v.SyncedAt)
	day, _ := v.Day("2024-01-09")
	require.Len(t, day.Activities, 2)
	assert.Equal(t, "running", day.Activities[0].Category)
	assert.Equal(t, activity.GlyphRun, day.Activities[0].Icon)
	assert.Equal(t, 1, v.Weeks[1].Running.Count)
	assert.Equal(t, 1, v.Weeks[2].Weights.Count)

	// Cache survives a reload.
	v, err = h.tracker.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Activities)
}

func TestSyncWindowReplacesDeletedActivities(t *testing.T) {
	h := newHarness(t, "ana")
	ctx := context.Background()
	_, err := h.tracker.ConnectStrava(ctx, "tok", "")
	require.NoError(t, err)

	h.source.records = []activity.Record{{ID: 1, Type: "Run", StartDateLocal: "2024-01-09T07:00:00Z"}}
	_, err = h.tracker.SyncActivities(ctx, false)
	require.NoError(t, err)

	h.source.records = nil
	v, err := h.tracker.SyncActivities(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, v.Activities)
}

func TestSyncWithoutTokens(t *testing.T) {
	h := newHarness(t, "ana")
	ctx := context.Background()

	_, err := h.tracker.SyncActivities(ctx, true)
	assert.NoError(t, err)
	_, err = h.tracker.SyncActivities(ctx, false)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Zero(t, h.source.calls)
}

func TestSyncUnauthorizedClearsTokensAndWarnsOnce(t *testing.T) {
	h := newHarness(t, "ana")
	ctx := context.Background()
	_, err := h.tracker.ConnectStrava(ctx, "expired", "r")
	require.NoError(t, err)

	h.source.err = strava.ErrUnauthorized
	v, err := h.tracker.SyncActivities(ctx, true)
	assert.ErrorIs(t, err, ErrReconnectRequired)
	assert.False(t, v.Connected)

	stored, err := h.store.Get(ctx, "ana")
	require.NoError(t, err)
	assert.Nil(t, stored[storage.FieldAccessToken])
	assert.Nil(t, stored[storage.FieldRefreshToken])
	require.Len(t, h.notes.warnings, 1)

	// A second expired token before reconnecting does not warn again.
	require.NoError(t, h.store.SetMerge(ctx, "ana", storage.Fields{storage.FieldAccessToken: "stale"}))
	_, err = h.tracker.Load(ctx)
	require.NoError(t, err)
	_, err = h.tracker.SyncActivities(ctx, true)
	assert.ErrorIs(t, err, ErrReconnectRequired)
	assert.Len(t, h.notes.warnings, 1)

	// Connecting again re-arms the warning.
	_, err = h.tracker.ConnectStrava(ctx, "fresh", "")
	require.NoError(t, err)
	_, err = h.tracker.SyncActivities(ctx, true)
	assert.ErrorIs(t, err, ErrReconnectRequired)
	assert.Len(t, h.notes.warnings, 2)
}

func TestSyncSourceFailureKeepsCache(t *testing.T) {
	h := newHarness(t, "ana")
	ctx := context.Background()
	_, err := h.tracker.ConnectStrava(ctx, "tok", "")
	require.NoError(t, err)
	h.source.records = []activity.Record{{ID: 1, Type: "Run", StartDateLocal: "2024-01-09T07:00:00Z"}}
	_, err = h.tracker.SyncActivities(ctx, false)
	require.NoError(t, err)

	h.source.err = &strava.APIError{StatusCode: 500, Body: "boom"}
	v, err := h.tracker.SyncActivities(ctx, false)
	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.True(t, v.Connected)
	assert.Equal(t, 1, v.Activities)
}

func TestDisconnectKeepsActivities(t *testing.T) {
	h := newHarness(t, "ana")
	ctx := context.Background()
	_, err := h.tracker.ConnectStrava(ctx, "tok", "")
	require.NoError(t, err)
	h.source.records = []activity.Record{{ID: 1, Type: "Run", StartDateLocal: "2024-01-09T07:00:00Z"}}
	_, err = h.tracker.SyncActivities(ctx, false)
	require.NoError(t, err)

	v, err := h.tracker.DisconnectStrava(ctx)
	require.NoError(t, err)
	assert.False(t, v.Connected)
	assert.Equal(t, 1, v.Activities)
}

func TestConnectRequiresToken(t *testing.T) {
	h := newHarness(t, "ana")
	_, err := h.tracker.ConnectStrava(context.Background(), " ", "")
	var verr *work.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, h.store.writes)
}

func TestWatchAppliesRemoteChanges(t *testing.T) {
	h := newHarness(t, "ana")
	ctx, cancel := context.WithCancel(context.Background())

	changed := make(chan View, 8)
	done := make(chan error, 1)
	go func() { done <- h.tracker.Watch(ctx, func(v View) { changed <- v }) }()

	require.Eventually(t, func() bool { return subscriberCount(h) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, h.store.Memory.SetMerge(context.Background(), "ana", storage.Fields{"2024-01-10": "office"}))

	select {
	case v := <-changed:
		day, _ := v.Day("2024-01-10")
		assert.Equal(t, location.Office, day.Location)
	case <-time.After(time.Second):
		t.Fatal("no view after remote change")
	}

	cancel()
	assert.NoError(t, <-done)
}

func subscriberCount(h *harness) int {
	return h.store.Memory.Subscribers("ana")
}

func TestParseDay(t *testing.T) {
	h := newHarness(t, "ana")
	tests := []struct {
		input    string
		expected string
		hasError bool
	}{
		{"today", "2024-01-17", false},
		{"", "2024-01-17", false},
		{"Yesterday", "2024-01-16", false},
		{"tomorrow", "2024-01-18", false},
		{"2024-02-29", "2024-02-29", false},
		{"2023-02-29", "", true},
		{"01/02/2024", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := h.tracker.ParseDay(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseDayAcrossMidnightDSTGap(t *testing.T) {
	loc, err := time.LoadLocation("America/Santiago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	store := storage.NewMemory()
	tr := New(Options{
		Store:    store,
		Source:   &fakeSource{},
		Prefs:    &memPrefs{user: "ana"},
		Now:      func() time.Time { return time.Date(2025, 9, 7, 10, 0, 0, 0, loc) },
		Location: loc,
	})

	key, err := tr.ParseDay("2025-09-07")
	require.NoError(t, err)
	assert.Equal(t, "2025-09-07", key)

	key, err = tr.ParseDay("yesterday")
	require.NoError(t, err)
	assert.Equal(t, "2025-09-06", key)

	_, err = tr.SetLocation(context.Background(), "2025-09-07", location.Office)
	require.NoError(t, err)
	v := tr.View()
	saturday, ok := v.Day("2025-09-06")
	require.True(t, ok)
	assert.Equal(t, location.Home, saturday.Location)
	sunday, ok := v.Day("2025-09-07")
	require.True(t, ok)
	assert.Equal(t, location.Office, sunday.Location)
}

func TestParseMonth(t *testing.T) {
	h := newHarness(t, "ana")

	y, m, err := h.tracker.ParseMonth("next")
	require.NoError(t, err)
	assert.Equal(t, 2024, y)
	assert.Equal(t, time.February, m)

	y, m, err = h.tracker.ParseMonth("prev")
	require.NoError(t, err)
	assert.Equal(t, 2023, y)
	assert.Equal(t, time.December, m)

	y, m, err = h.tracker.ParseMonth("2025-07")
	require.NoError(t, err)
	assert.Equal(t, 2025, y)
	assert.Equal(t, time.July, m)

	_, _, err = h.tracker.ParseMonth("July")
	assert.Error(t, err)
}
