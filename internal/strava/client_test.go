package strava

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivities(t *testing.T) {
	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/athlete/activities", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "1704067200", r.URL.Query().Get("after"))
		assert.Equal(t, "1707091200", r.URL.Query().Get("before"))
		assert.Equal(t, "200", r.URL.Query().Get("per_page"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 123, "type": "Run", "sport_type": "TrailRun", "name": "Hills", "start_date": "2024-01-10T06:00:00Z", "start_date_local": "2024-01-10T07:00:00Z", "distance": 10000},
			{"id": 456, "sport_type": "Yoga", "name": "Flow", "start_date_local": "2024-01-11T19:00:00Z"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	records, err := c.Activities(context.Background(), "tok", after, before)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(123), records[0].ID)
	assert.Equal(t, "Run", records[0].TypeCode())
	assert.Equal(t, "2024-01-10T07:00:00Z", records[0].StartDateLocal)
	assert.Equal(t, "Yoga", records[1].TypeCode())
}

func TestActivitiesUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Authorization Error"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Activities(context.Background(), "expired", time.Now(), time.Now())
	assert.True(t, errors.Is(err, ErrUnauthorized))

	_, err = NewClient(srv.URL, time.Second).Activities(context.Background(), "", time.Now(), time.Now())
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestActivitiesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Activities(context.Background(), "tok", time.Now(), time.Now())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "rate limited", apiErr.Body)
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestActivitiesMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not": "a list"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Activities(context.Background(), "tok", time.Now(), time.Now())
	require.Error(t, err)
}
