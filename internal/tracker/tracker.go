// Package tracker is the session controller. It owns the active user, the
// displayed month, the display filters and the last good copy of the user's
// document, and funnels every data change through Apply so the derived view
// is rebuilt exactly once per change.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/officecal/internal/activity"
	"github.com/officecal/internal/dates"
	"github.com/officecal/internal/location"
	"github.com/officecal/internal/observability"
	"github.com/officecal/internal/overlay"
	"github.com/officecal/internal/storage"
	"github.com/officecal/internal/strava"
	"github.com/officecal/internal/work"
)

// Preferences persists the active user on this machine.
type Preferences interface {
	ActiveUser() string
	SetActiveUser(name string) error
}

// Notifier shows short messages to the user.
type Notifier interface {
	Info(msg string)
	Success(msg string)
	Warning(msg string)
	Error(msg string)
}

type Options struct {
	Store        storage.Store
	Source       strava.Source
	Prefs        Preferences
	Notifier     Notifier
	Now          func() time.Time
	Location     *time.Location
	MinimumWeeks int
}

type Tracker struct {
	store    storage.Store
	source   strava.Source
	prefs    Preferences
	notify   Notifier
	now      func() time.Time
	loc      *time.Location
	minWeeks int

	mu         sync.Mutex
	user       string
	year       int
	month      time.Month
	filters    overlay.Filters
	raw        storage.Fields
	doc        storage.Document
	view       View
	authWarned bool

	listenersMu sync.Mutex
	listeners   map[int]func(View)
	nextID      int
}

func New(opts Options) *Tracker {
	t := &Tracker{
		store:     opts.Store,
		source:    opts.Source,
		prefs:     opts.Prefs,
		notify:    opts.Notifier,
		now:       opts.Now,
		loc:       opts.Location,
		minWeeks:  opts.MinimumWeeks,
		filters:   overlay.AllVisible(),
		listeners: make(map[int]func(View)),
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.loc == nil {
		t.loc = time.Local
	}
	if t.notify == nil {
		t.notify = discard{}
	}
	if t.prefs != nil {
		t.user = strings.TrimSpace(t.prefs.ActiveUser())
	}

	today := t.today()
	t.year, t.month = today.Year(), today.Month()
	t.doc = storage.Decode(nil)
	t.view = t.build()
	return t
}

type discard struct{}

func (discard) Info(string)    {}
func (discard) Success(string) {}
func (discard) Warning(string) {}
func (discard) Error(string)   {}

func (t *Tracker) today() time.Time {
	return t.now().In(t.loc)
}

// Today returns local midnight of the current day.
func (t *Tracker) Today() time.Time {
	return dates.Midnight(t.today())
}

// Location returns the zone all date math happens in.
func (t *Tracker) Location() *time.Location {
	return t.loc
}

// build must be called with mu held.
func (t *Tracker) build() View {
	return BuildView(Input{
		User:         t.user,
		Year:         t.year,
		Month:        t.month,
		Today:        t.today(),
		MinimumWeeks: t.minWeeks,
		Doc:          t.doc,
		Filters:      t.filters,
	})
}

// recompute rebuilds the view under mu and hands it to listeners after
// releasing it.
func (t *Tracker) recompute(mutate func()) View {
	t.mu.Lock()
	if mutate != nil {
		mutate()
	}
	v := t.build()
	t.view = v
	activities := t.doc.Activities.Len()
	t.mu.Unlock()

	observability.RecordRecompute()
	observability.SetCachedActivities(activities)
	t.broadcast(v)
	return v
}

// Apply installs a new copy of the user's document and recomputes. Loads,
// local writes and change notifications all arrive here.
func (t *Tracker) Apply(raw storage.Fields) View {
	return t.recompute(func() {
		t.raw = raw.Clone()
		t.doc = storage.Decode(raw)
	})
}

// View returns the last computed view.
func (t *Tracker) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view
}

// Document returns the last good document.
func (t *Tracker) Document() storage.Document {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doc
}

// User returns the active user, or "" when none is set.
func (t *Tracker) User() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.user
}

func (t *Tracker) requireUser() (string, error) {
	user := t.User()
	if user == "" {
		return "", ErrNoUser
	}
	return user, nil
}

// OnView registers fn to receive every recomputed view. The returned func
// removes it.
func (t *Tracker) OnView(fn func(View)) func() {
	t.listenersMu.Lock()
	defer t.listenersMu.Unlock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	return func() {
		t.listenersMu.Lock()
		defer t.listenersMu.Unlock()
		delete(t.listeners, id)
	}
}

func (t *Tracker) broadcast(v View) {
	t.listenersMu.Lock()
	fns := make([]func(View), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.listenersMu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

// SetUser switches the active user and persists the choice. The previous
// user's document is dropped; call Load to fetch the new one.
func (t *Tracker) SetUser(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNoUser
	}
	if t.prefs != nil {
		if err := t.prefs.SetActiveUser(name); err != nil {
			return fmt.Errorf("save active user: %w", err)
		}
	}
	t.recompute(func() {
		t.user = name
		t.raw = nil
		t.doc = storage.Decode(nil)
		t.authWarned = false
	})
	return nil
}

// NavigateMonth moves the displayed month by delta, rolling years.
func (t *Tracker) NavigateMonth(delta int) View {
	return t.recompute(func() {
		t.year, t.month = dates.ShiftMonth(t.year, t.month, delta)
	})
}

// GoToMonth displays the given month.
func (t *Tracker) GoToMonth(year int, month time.Month) View {
	return t.recompute(func() {
		t.year, t.month = dates.ShiftMonth(year, month, 0)
	})
}

// ToggleWork flips the office badge filter.
func (t *Tracker) ToggleWork() View {
	return t.recompute(func() { t.filters.Work = !t.filters.Work })
}

// ToggleHealth flips the exercise badge filter.
func (t *Tracker) ToggleHealth() View {
	return t.recompute(func() { t.filters.Health = !t.filters.Health })
}

// SetFilters replaces both filters.
func (t *Tracker) SetFilters(f overlay.Filters) View {
	return t.recompute(func() { t.filters = f })
}

// Load fetches the active user's document. A missing document is an empty
// one.
func (t *Tracker) Load(ctx context.Context) (View, error) {
	user, err := t.requireUser()
	if err != nil {
		return t.View(), err
	}
	raw, err := t.fetch(ctx, user)
	if err != nil {
		return t.View(), err
	}
	return t.Apply(raw), nil
}

func (t *Tracker) fetch(ctx context.Context, user string) (storage.Fields, error) {
	raw, err := t.store.Get(ctx, user)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Fields{}, nil
	}
	if err != nil {
		return nil, &RemoteError{Op: "load", Err: err}
	}
	return raw, nil
}

// write merges patch into the user's document and applies the result on
// top of base.
func (t *Tracker) write(ctx context.Context, user, op string, base storage.Fields, patch storage.Patch) (View, error) {
	if err := t.store.SetMerge(ctx, user, patch.Fields()); err != nil {
		return t.View(), &RemoteError{Op: op, Err: err}
	}
	return t.Apply(storage.Merge(base, patch.Fields())), nil
}

// SetLocation reads the document, changes one day and merge-writes it.
// Two of these racing on the same day end last-write-wins.
func (t *Tracker) SetLocation(ctx context.Context, key string, l location.Location) (View, error) {
	if !dates.IsKey(key) {
		return t.View(), &work.ValidationError{Field: "date", Message: fmt.Sprintf("%q is not a YYYY-MM-DD date", key)}
	}
	user, err := t.requireUser()
	if err != nil {
		return t.View(), err
	}
	current, err := t.fetch(ctx, user)
	if err != nil {
		return t.View(), err
	}
	return t.write(ctx, user, "save location", current, storage.NewPatch().SetLocation(key, l))
}

// SetGoals validates and stores the weekly goals.
func (t *Tracker) SetGoals(ctx context.Context, g work.Goals) (View, error) {
	if err := g.Validate(); err != nil {
		return t.View(), err
	}
	user, err := t.requireUser()
	if err != nil {
		return t.View(), err
	}
	return t.write(ctx, user, "save goals", t.base(), storage.NewPatch().SetGoals(g))
}

// ConnectStrava stores new activity source tokens.
func (t *Tracker) ConnectStrava(ctx context.Context, accessToken, refreshToken string) (View, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return t.View(), &work.ValidationError{Field: "token", Message: "access token is required"}
	}
	user, err := t.requireUser()
	if err != nil {
		return t.View(), err
	}
	v, err := t.write(ctx, user, "connect strava", t.base(), storage.NewPatch().SetTokens(accessToken, strings.TrimSpace(refreshToken)))
	if err == nil {
		t.mu.Lock()
		t.authWarned = false
		t.mu.Unlock()
	}
	return v, err
}

// DisconnectStrava clears the stored tokens. Cached activities stay.
func (t *Tracker) DisconnectStrava(ctx context.Context) (View, error) {
	user, err := t.requireUser()
	if err != nil {
		return t.View(), err
	}
	return t.write(ctx, user, "disconnect strava", t.base(), storage.NewPatch().ClearTokens())
}

func (t *Tracker) base() storage.Fields {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.raw.Clone()
}

// SyncWindow returns the fetch window for the displayed grid: first cell
// midnight to the midnight after the last cell.
func (t *Tracker) SyncWindow() (after, before time.Time) {
	v := t.View()
	first := v.Weeks[0].Days[0]
	lastWeek := v.Weeks[len(v.Weeks)-1]
	last := lastWeek.Days[len(lastWeek.Days)-1]
	after = dates.StartOfDay(first.Year, first.Month, first.Day, t.loc)
	before = dates.StartOfDay(last.Year, last.Month, last.Day+1, t.loc)
	return after, before
}

// SyncActivities makes one request for the displayed window and merges the
// result into the cached index. A background sync without tokens is a no-op;
// a foreground one returns ErrNotConnected.
func (t *Tracker) SyncActivities(ctx context.Context, background bool) (View, error) {
	user, err := t.requireUser()
	if err != nil {
		return t.View(), err
	}
	doc := t.Document()
	if !doc.Connected() {
		if background {
			return t.View(), nil
		}
		return t.View(), ErrNotConnected
	}

	after, before := t.SyncWindow()
	records, err := t.source.Activities(ctx, doc.AccessToken, after, before)
	if errors.Is(err, strava.ErrUnauthorized) {
		observability.RecordStravaFetch("unauthorized")
		return t.handleUnauthorized(ctx, user)
	}
	if err != nil {
		observability.RecordStravaFetch("error")
		return t.View(), &RemoteError{Op: "fetch activities", Err: err}
	}
	observability.RecordStravaFetch("ok")

	fetched := activity.BuildIndex(records)
	merged := doc.Activities.Merge(fetched, dates.Key(after), dates.Key(dates.AddDays(before, -1)))
	return t.write(ctx, user, "save activities", t.base(), storage.NewPatch().SetActivities(merged, t.now()))
}

// handleUnauthorized clears the tokens and warns once until the next connect.
func (t *Tracker) handleUnauthorized(ctx context.Context, user string) (View, error) {
	v, err := t.write(ctx, user, "clear strava tokens", t.base(), storage.NewPatch().ClearTokens())
	if err != nil {
		return v, err
	}

	t.mu.Lock()
	warn := !t.authWarned
	t.authWarned = true
	t.mu.Unlock()
	if warn {
		t.notify.Warning("Strava access expired and was disconnected. Reconnect to keep syncing activities.")
	}
	return v, ErrReconnectRequired
}

// Watch subscribes to the active user's document and applies every change
// until ctx ends. onView, when set, receives each recomputed view meanwhile.
func (t *Tracker) Watch(ctx context.Context, onView func(View)) error {
	user, err := t.requireUser()
	if err != nil {
		return err
	}
	if onView != nil {
		defer t.OnView(onView)()
	}
	cancel, err := t.store.Subscribe(ctx, user, func(raw storage.Fields) {
		if t.User() != user {
			return
		}
		t.Apply(raw)
	})
	if err != nil {
		return &RemoteError{Op: "subscribe", Err: err}
	}
	defer cancel()
	<-ctx.Done()
	return nil
}

// ParseDay accepts "today", "yesterday", "tomorrow" or a date key and
// returns the date key.
func (t *Tracker) ParseDay(s string) (string, error) {
	today := t.Today()
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "today", "":
		return dates.Key(today), nil
	case "yesterday":
		return dates.Key(dates.AddDays(today, -1)), nil
	case "tomorrow":
		return dates.Key(dates.AddDays(today, 1)), nil
	}
	day, err := dates.ParseKey(strings.TrimSpace(s), t.loc)
	if err != nil {
		return "", &work.ValidationError{Field: "date", Message: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
	}
	return dates.Key(day), nil
}

// ParseMonth accepts "next", "prev", "this" or YYYY-MM relative to the
// displayed month.
func (t *Tracker) ParseMonth(s string) (int, time.Month, error) {
	t.mu.Lock()
	year, month := t.year, t.month
	t.mu.Unlock()

	switch strings.ToLower(strings.TrimSpace(s)) {
	case "next":
		y, m := dates.ShiftMonth(year, month, 1)
		return y, m, nil
	case "prev", "previous":
		y, m := dates.ShiftMonth(year, month, -1)
		return y, m, nil
	case "this", "current", "":
		today := t.Today()
		return today.Year(), today.Month(), nil
	}
	parsed, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, &work.ValidationError{Field: "month", Message: fmt.Sprintf("%q is not a YYYY-MM month", s)}
	}
	return parsed.Year(), parsed.Month(), nil
}
