// Package api serves the month view over HTTP and pushes recomputed views to
// WebSocket clients.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/officecal/internal/logger"
	"github.com/officecal/internal/tracker"
	"github.com/officecal/internal/work"
)

// API binds HTTP handlers to one tracker.
type API struct {
	tracker *tracker.Tracker
	conns   *ConnectionManager
	stop    func()
}

// NewAPI creates a new API instance and starts forwarding views to
// WebSocket clients.
func NewAPI(t *tracker.Tracker) *API {
	a := &API{tracker: t, conns: NewConnectionManager()}
	a.stop = t.OnView(func(v tracker.View) {
		a.conns.Broadcast(WebSocketMessage{Action: "view", Data: v, Source: "tracker"})
	})
	return a
}

// Close stops view forwarding and drops every WebSocket client.
func (a *API) Close() {
	a.stop()
	a.conns.CloseAll()
}

// Router returns the full handler tree.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	})
	r.Use(corsMiddleware.Handler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/view", a.GetView)
			r.Post("/month", a.NavigateMonth)
			r.Get("/days/{date}", a.GetDay)
			r.Put("/days/{date}", a.SetDay)
			r.Put("/goals", a.SetGoals)
			r.Put("/filters", a.SetFilters)
			r.Post("/filters/{filter}/toggle", a.ToggleFilter)
			r.Post("/strava/sync", a.SyncStrava)
		})

		// Upgraded connections outlive any request timeout.
		r.Get("/ws", a.handleWebSocket)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger.Request(r.Method, r.URL.Path, status, time.Since(start))
	})
}

// --- Helper Functions ---

func (a *API) respondWithError(w http.ResponseWriter, code int, message string) {
	a.respondWithJSON(w, code, map[string]string{"error": message})
}

func (a *API) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithTrackerError maps tracker errors onto status codes.
func (a *API) respondWithTrackerError(w http.ResponseWriter, err error) {
	var validation *work.ValidationError
	var remote *tracker.RemoteError
	switch {
	case errors.As(err, &validation):
		a.respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tracker.ErrNoUser):
		a.respondWithError(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, tracker.ErrNotConnected):
		a.respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, tracker.ErrReconnectRequired):
		a.respondWithError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &remote):
		a.respondWithError(w, http.StatusBadGateway, err.Error())
	default:
		a.respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
