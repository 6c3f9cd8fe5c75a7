package observability

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/officecal/internal/storage"
)

var (
	storeOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "officecal",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Document store calls grouped by backend, operation and result.",
	}, []string{"backend", "op", "result"})

	stravaFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "officecal",
		Subsystem: "strava",
		Name:      "fetch_total",
		Help:      "Activity source requests grouped by result.",
	}, []string{"result"})

	viewRecomputes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "officecal",
		Subsystem: "view",
		Name:      "recomputes_total",
		Help:      "Number of times the derived calendar view was rebuilt.",
	})

	cachedActivities = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "officecal",
		Subsystem: "strava",
		Name:      "cached_activities",
		Help:      "Activities currently held in the active user's index.",
	})
)

func init() {
	prometheus.MustRegister(storeOperations, stravaFetches, viewRecomputes, cachedActivities)
}

// RecordStravaFetch counts one activity source request. result is "ok",
// "unauthorized" or "error".
func RecordStravaFetch(result string) {
	stravaFetches.WithLabelValues(result).Inc()
}

// RecordRecompute counts one view rebuild.
func RecordRecompute() {
	viewRecomputes.Inc()
}

// SetCachedActivities updates the activity index gauge.
func SetCachedActivities(n int) {
	cachedActivities.Set(float64(n))
}

func recordStoreOp(backend, op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	storeOperations.WithLabelValues(backend, op, result).Inc()
}

// InstrumentedStore counts every call made through it.
type InstrumentedStore struct {
	storage.Store
	backend string
}

// Instrument wraps s so its operations are counted under backend.
func Instrument(backend string, s storage.Store) *InstrumentedStore {
	return &InstrumentedStore{Store: s, backend: backend}
}

func (s *InstrumentedStore) Get(ctx context.Context, user string) (storage.Fields, error) {
	doc, err := s.Store.Get(ctx, user)
	recordStoreOp(s.backend, "get", err)
	return doc, err
}

func (s *InstrumentedStore) SetMerge(ctx context.Context, user string, patch storage.Fields) error {
	err := s.Store.SetMerge(ctx, user, patch)
	recordStoreOp(s.backend, "set_merge", err)
	return err
}

func (s *InstrumentedStore) Subscribe(ctx context.Context, user string, onChange func(storage.Fields)) (func(), error) {
	cancel, err := s.Store.Subscribe(ctx, user, onChange)
	recordStoreOp(s.backend, "subscribe", err)
	return cancel, err
}
