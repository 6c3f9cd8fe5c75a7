// Package overlay computes the per-week badges shown beside each grid row:
// office days and exercise days, each compared against its weekly goal.
package overlay

import (
	"time"

	"github.com/officecal/internal/activity"
	"github.com/officecal/internal/calendar"
	"github.com/officecal/internal/dates"
	"github.com/officecal/internal/location"
	"github.com/officecal/internal/work"
)

// GoalStatus is the outcome of comparing a weekly count with its goal.
type GoalStatus int

const (
	// NotEvaluated is used when the goal is zero.
	NotEvaluated GoalStatus = iota
	Met
	Unmet
)

func (s GoalStatus) String() string {
	switch s {
	case Met:
		return "met"
	case Unmet:
		return "unmet"
	default:
		return "-"
	}
}

// MarshalText names the status for JSON payloads.
func (s GoalStatus) MarshalText() ([]byte, error) {
	switch s {
	case Met:
		return []byte("met"), nil
	case Unmet:
		return []byte("unmet"), nil
	default:
		return []byte("not_evaluated"), nil
	}
}

// Evaluate compares count against goal. A zero goal is never met or unmet.
func Evaluate(count, goal int) GoalStatus {
	if goal <= 0 {
		return NotEvaluated
	}
	if count >= goal {
		return Met
	}
	return Unmet
}

// Tally is one weekly count with its goal and status.
type Tally struct {
	Count  int        `json:"count"`
	Goal   int        `json:"goal"`
	Status GoalStatus `json:"status"`
}

func newTally(count, goal int) Tally {
	return Tally{Count: count, Goal: goal, Status: Evaluate(count, goal)}
}

// WeekStats is the overlay for one grid row. Weeks that have not started
// carry only their anchor.
type WeekStats struct {
	Anchor    time.Time
	AnchorKey string
	Started   bool
	Office    Tally
	Running   Tally
	Weights   Tally
	Yoga      Tally
}

// Filters select which badge groups are displayed. They never change what is
// computed.
type Filters struct {
	Work   bool `json:"work"`
	Health bool `json:"health"`
}

// AllVisible shows both badge groups.
func AllVisible() Filters {
	return Filters{Work: true, Health: true}
}

// Visible reports which badge groups to render for this week.
func (w WeekStats) Visible(f Filters) (showWork, showHealth bool) {
	if !w.Started {
		return false, false
	}
	return f.Work, f.Health
}

// Build computes one WeekStats per row of g. Office days use effective
// locations over all seven cells, adjacent-month padding included. Exercise
// counts are day sets: a day counts once per category however many matching
// activities it holds, and one activity may feed several categories.
func Build(g calendar.Grid, r location.Record, idx activity.Index, goals work.Goals, today time.Time) []WeekStats {
	todayKey := dates.Key(today)
	rows := g.Weeks()
	out := make([]WeekStats, 0, len(rows))

	for _, week := range rows {
		ws := WeekStats{Anchor: week[0].Date, AnchorKey: week[0].Key}
		for _, c := range week {
			if c.Key <= todayKey {
				ws.Started = true
				break
			}
		}
		if !ws.Started {
			out = append(out, ws)
			continue
		}

		office, running, weights, yoga := 0, 0, 0, 0
		for _, c := range week {
			if location.Effective(c.Date, r) == location.Office {
				office++
			}
			var isRun, isWeights, isYoga bool
			for _, a := range idx.On(c.Key) {
				for _, cat := range activity.Categories(a) {
					switch cat {
					case activity.Running:
						isRun = true
					case activity.WeightTraining:
						isWeights = true
					case activity.Yoga:
						isYoga = true
					}
				}
			}
			if isRun {
				running++
			}
			if isWeights {
				weights++
			}
			if isYoga {
				yoga++
			}
		}

		ws.Office = newTally(office, goals.Office)
		ws.Running = newTally(running, goals.Running)
		ws.Weights = newTally(weights, goals.Weights)
		ws.Yoga = newTally(yoga, goals.Yoga)
		out = append(out, ws)
	}
	return out
}
