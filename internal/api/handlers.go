package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/officecal/internal/location"
	"github.com/officecal/internal/overlay"
	"github.com/officecal/internal/work"
)

type monthRequest struct {
	Delta int    `json:"delta"`
	Month string `json:"month,omitempty"`
}

type dayRequest struct {
	Location string `json:"location"`
}

type syncResponse struct {
	Activities int    `json:"activities"`
	SyncedAt   string `json:"syncedAt"`
}

// GetView returns the current month view.
func (a *API) GetView(w http.ResponseWriter, r *http.Request) {
	a.respondWithJSON(w, http.StatusOK, a.tracker.View())
}

// NavigateMonth moves by delta months, or jumps to "YYYY-MM" when month is
// given.
func (a *API) NavigateMonth(w http.ResponseWriter, r *http.Request) {
	var req monthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Month != "" {
		year, month, err := a.tracker.ParseMonth(req.Month)
		if err != nil {
			a.respondWithTrackerError(w, err)
			return
		}
		a.respondWithJSON(w, http.StatusOK, a.tracker.GoToMonth(year, month))
		return
	}
	a.respondWithJSON(w, http.StatusOK, a.tracker.NavigateMonth(req.Delta))
}

// GetDay returns one cell of the displayed grid. {date} can be "YYYY-MM-DD"
// or "today".
func (a *API) GetDay(w http.ResponseWriter, r *http.Request) {
	key, err := a.tracker.ParseDay(chi.URLParam(r, "date"))
	if err != nil {
		a.respondWithTrackerError(w, err)
		return
	}
	day, ok := a.tracker.View().Day(key)
	if !ok {
		a.respondWithError(w, http.StatusNotFound, fmt.Sprintf("%s is not in the displayed month", key))
		return
	}
	a.respondWithJSON(w, http.StatusOK, day)
}

// SetDay records home, office or none for {date}.
func (a *API) SetDay(w http.ResponseWriter, r *http.Request) {
	key, err := a.tracker.ParseDay(chi.URLParam(r, "date"))
	if err != nil {
		a.respondWithTrackerError(w, err)
		return
	}
	var req dayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	loc, err := location.Parse(req.Location)
	if err != nil {
		a.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := a.tracker.SetLocation(r.Context(), key, loc)
	if err != nil {
		a.respondWithTrackerError(w, err)
		return
	}
	a.respondWithJSON(w, http.StatusOK, view)
}

// SetGoals replaces all four weekly goals.
func (a *API) SetGoals(w http.ResponseWriter, r *http.Request) {
	var goals work.Goals
	if err := json.NewDecoder(r.Body).Decode(&goals); err != nil {
		a.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	view, err := a.tracker.SetGoals(r.Context(), goals)
	if err != nil {
		a.respondWithTrackerError(w, err)
		return
	}
	a.respondWithJSON(w, http.StatusOK, view)
}

// SetFilters replaces both badge filters at once.
func (a *API) SetFilters(w http.ResponseWriter, r *http.Request) {
	var filters overlay.Filters
	if err := json.NewDecoder(r.Body).Decode(&filters); err != nil {
		a.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	a.respondWithJSON(w, http.StatusOK, a.tracker.SetFilters(filters))
}

// ToggleFilter flips the work or health badge filter.
func (a *API) ToggleFilter(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "filter") {
	case "work":
		a.respondWithJSON(w, http.StatusOK, a.tracker.ToggleWork())
	case "health":
		a.respondWithJSON(w, http.StatusOK, a.tracker.ToggleHealth())
	default:
		a.respondWithError(w, http.StatusNotFound, "Unknown filter, use work or health")
	}
}

// SyncStrava fetches activities for the displayed grid.
func (a *API) SyncStrava(w http.ResponseWriter, r *http.Request) {
	view, err := a.tracker.SyncActivities(r.Context(), false)
	if err != nil {
		a.respondWithTrackerError(w, err)
		return
	}
	resp := syncResponse{Activities: view.Activities}
	if view.SyncedAt != nil {
		resp.SyncedAt = view.SyncedAt.Format(time.RFC3339)
	}
	a.respondWithJSON(w, http.StatusOK, resp)
}
