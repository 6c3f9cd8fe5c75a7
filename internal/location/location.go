// Package location resolves where a day was worked from, applying the weekend
// default to days without an explicit choice.
package location

import (
	"fmt"
	"strings"
	"time"

	"github.com/officecal/internal/dates"
)

// Location is a day's work location. The zero value means "not logged".
type Location string

const (
	None   Location = ""
	Home   Location = "home"
	Office Location = "office"
)

// Parse accepts "home", "office" and "none" (or empty), case-insensitively.
func Parse(s string) (Location, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "home":
		return Home, nil
	case "office":
		return Office, nil
	case "", "none":
		return None, nil
	default:
		return None, fmt.Errorf("unknown location %q (use home, office or none)", s)
	}
}

// IsSet reports whether l is an explicit home or office value.
func (l Location) IsSet() bool {
	return l == Home || l == Office
}

func (l Location) String() string {
	if l == None {
		return "none"
	}
	return string(l)
}

// Record maps date keys to explicit overrides. Cleared days are absent.
type Record map[string]Location

// Explicit returns the override stored for key, if any.
func (r Record) Explicit(key string) (Location, bool) {
	l, ok := r[key]
	if !ok || !l.IsSet() {
		return None, false
	}
	return l, true
}

// Effective resolves the location used for display and aggregation: the
// explicit override, else Home on weekends, else None. A nil record behaves
// like a user who never saved anything.
func Effective(day time.Time, r Record) Location {
	if l, ok := r.Explicit(dates.Key(day)); ok {
		return l
	}
	if dates.IsWeekend(day) {
		return Home
	}
	return None
}

// EffectiveKey is Effective for a date key. Malformed keys resolve to None.
func EffectiveKey(key string, r Record, loc *time.Location) Location {
	day, err := dates.ParseKey(key, loc)
	if err != nil {
		return None
	}
	return Effective(day, r)
}
