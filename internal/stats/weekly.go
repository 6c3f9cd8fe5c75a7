// Package stats turns the sparse location record into per-week office counts
// and the two headline metrics: the plain weekly average and BELT, the average
// of the best eight of the last twelve weeks.
package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/officecal/internal/dates"
	"github.com/officecal/internal/location"
	"github.com/officecal/internal/work"
)

// WeeklyStat is one Monday-anchored week bucket.
type WeeklyStat struct {
	Anchor     time.Time
	AnchorKey  string
	OfficeDays int
	HasData    bool
}

// Metric is a numeric result that may be absent. The zero value is "no data".
type Metric struct {
	Value float64
	Valid bool
}

// String renders the metric rounded to two decimals, or a dash when absent.
func (m Metric) String() string {
	if !m.Valid {
		return "-"
	}
	return fmt.Sprintf("%.2f", m.Value)
}

// MarshalJSON encodes an absent metric as null.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("%.2f", m.Value)), nil
}

// Summary holds the aggregated metrics for a record.
type Summary struct {
	Weeks   []WeeklyStat
	Average Metric
	Belt    Metric
	// AverageWeeks and BeltWeeks count the buckets each metric used.
	AverageWeeks int
	BeltWeeks    int
}

// Weeks buckets every explicit entry of r by its week anchor. Only explicit
// home/office values contribute; weekend defaults never make a week "have
// data". The result is ordered by anchor.
func Weeks(r location.Record, loc *time.Location) []WeeklyStat {
	buckets := make(map[string]*WeeklyStat)
	for key, value := range r {
		if !value.IsSet() {
			continue
		}
		day, err := dates.ParseKey(key, loc)
		if err != nil {
			continue
		}
		anchor := dates.MondayOf(day)
		anchorKey := dates.Key(anchor)
		b, ok := buckets[anchorKey]
		if !ok {
			b = &WeeklyStat{Anchor: anchor, AnchorKey: anchorKey}
			buckets[anchorKey] = b
		}
		b.HasData = true
		if value == location.Office {
			b.OfficeDays++
		}
	}

	weeks := make([]WeeklyStat, 0, len(buckets))
	for _, b := range buckets {
		weeks = append(weeks, *b)
	}
	sort.Slice(weeks, func(i, j int) bool {
		return weeks[i].AnchorKey < weeks[j].AnchorKey
	})
	return weeks
}

// Summarize computes the weekly buckets and both metrics as of today.
func Summarize(r location.Record, today time.Time) Summary {
	loc := today.Location()
	weeks := Weeks(r, loc)
	thisMonday := dates.MondayOf(today)

	avg, avgWeeks := average(weeks, r, thisMonday)
	belt, beltWeeks := Belt(weeks, thisMonday)

	return Summary{
		Weeks:        weeks,
		Average:      avg,
		Belt:         belt,
		AverageWeeks: avgWeeks,
		BeltWeeks:    beltWeeks,
	}
}

// average includes every week with data except the in-progress week, which
// only counts once its Friday carries an explicit entry.
func average(weeks []WeeklyStat, r location.Record, thisMonday time.Time) (Metric, int) {
	thisKey := dates.Key(thisMonday)
	fridayKey := dates.Key(dates.AddDays(thisMonday, 4))

	total, n := 0, 0
	for _, w := range weeks {
		if !w.HasData {
			continue
		}
		if w.AnchorKey == thisKey {
			if _, ok := r.Explicit(fridayKey); !ok {
				continue
			}
		}
		total += w.OfficeDays
		n++
	}
	if n == 0 {
		return Metric{}, 0
	}
	return Metric{Value: float64(total) / float64(n), Valid: true}, n
}

// Belt averages the weeks chosen by BeltSelection.
func Belt(weeks []WeeklyStat, thisMonday time.Time) (Metric, int) {
	selected := BeltSelection(weeks, thisMonday)
	if len(selected) == 0 {
		return Metric{}, 0
	}

	total := 0
	for _, w := range selected {
		total += w.OfficeDays
	}
	return Metric{Value: float64(total) / float64(len(selected)), Valid: true}, len(selected)
}

// BeltSelection picks the best work.BestWeeks weeks among those with data whose
// anchor lies in [thisMonday - (WindowWeeks-1) weeks, thisMonday], most office
// days first. The current week is eligible without the Friday rule. Ties on
// office days keep the earlier week first.
func BeltSelection(weeks []WeeklyStat, thisMonday time.Time) []WeeklyStat {
	windowStart := dates.AddDays(thisMonday, -(work.WindowWeeks-1)*7)
	startKey, endKey := dates.Key(windowStart), dates.Key(thisMonday)

	candidates := make([]WeeklyStat, 0, work.WindowWeeks)
	for _, w := range weeks {
		if !w.HasData {
			continue
		}
		if w.AnchorKey < startKey || w.AnchorKey > endKey {
			continue
		}
		candidates = append(candidates, w)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].OfficeDays != candidates[j].OfficeDays {
			return candidates[i].OfficeDays > candidates[j].OfficeDays
		}
		return candidates[i].AnchorKey < candidates[j].AnchorKey
	})
	if len(candidates) > work.BestWeeks {
		candidates = candidates[:work.BestWeeks]
	}
	return candidates
}
