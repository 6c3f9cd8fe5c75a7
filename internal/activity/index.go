package activity

import (
	"sort"
	"time"

	"github.com/officecal/internal/dates"
)

// Record is one activity as returned by the source, using its JSON names.
type Record struct {
	ID             int64  `json:"id"`
	Type           string `json:"type,omitempty"`
	SportType      string `json:"sport_type,omitempty"`
	Name           string `json:"name"`
	StartDate      string `json:"start_date,omitempty"`
	StartDateLocal string `json:"start_date_local,omitempty"`
}

// TypeCode returns the record's type, falling back to the sport type and then
// to DefaultType.
func (r Record) TypeCode() string {
	if r.Type != "" {
		return r.Type
	}
	if r.SportType != "" {
		return r.SportType
	}
	return DefaultType
}

// DayKey returns the local calendar day the activity started on. The first
// ten characters of start_date_local are used literally so the athlete's
// local time is never shifted into another zone. When that prefix is not a
// date the local and then UTC timestamps are parsed instead.
func (r Record) DayKey() (string, bool) {
	if len(r.StartDateLocal) >= len(dates.KeyLayout) {
		prefix := r.StartDateLocal[:len(dates.KeyLayout)]
		if dates.IsKey(prefix) {
			return prefix, true
		}
	}
	for _, raw := range []string{r.StartDateLocal, r.StartDate} {
		if raw == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return dates.Key(t), true
		}
	}
	return "", false
}

// Index maps date keys to the activities that started that day, in source
// order.
type Index map[string][]Record

// BuildIndex groups records by DayKey. Records without a usable date are
// dropped and duplicate IDs keep their first occurrence.
func BuildIndex(records []Record) Index {
	idx := make(Index)
	seen := make(map[int64]bool, len(records))
	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		key, ok := r.DayKey()
		if !ok {
			continue
		}
		seen[r.ID] = true
		idx[key] = append(idx[key], r)
	}
	return idx
}

// On returns the activities for a date key.
func (idx Index) On(key string) []Record {
	return idx[key]
}

// Len returns the total number of indexed activities.
func (idx Index) Len() int {
	n := 0
	for _, day := range idx {
		n += len(day)
	}
	return n
}

// Keys returns the indexed date keys in ascending order.
func (idx Index) Keys() []string {
	keys := make([]string, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Records flattens the index back into a list ordered by day.
func (idx Index) Records() []Record {
	var out []Record
	for _, k := range idx.Keys() {
		out = append(out, idx[k]...)
	}
	return out
}

// Merge returns a new index holding the cached days outside [firstKey,
// lastKey] plus everything in fetched. The fetched window is authoritative,
// so an activity deleted at the source disappears from the cache.
func (idx Index) Merge(fetched Index, firstKey, lastKey string) Index {
	fresh := make(map[int64]bool)
	for _, day := range fetched {
		for _, r := range day {
			fresh[r.ID] = true
		}
	}

	out := make(Index, len(idx)+len(fetched))
	for k, day := range idx {
		if k >= firstKey && k <= lastKey {
			continue
		}
		var kept []Record
		for _, r := range day {
			if !fresh[r.ID] {
				kept = append(kept, r)
			}
		}
		if len(kept) > 0 {
			out[k] = kept
		}
	}
	for k, day := range fetched {
		out[k] = append([]Record(nil), day...)
	}
	return out
}
