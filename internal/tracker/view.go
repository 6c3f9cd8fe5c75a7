package tracker

import (
	"time"

	"github.com/officecal/internal/activity"
	"github.com/officecal/internal/calendar"
	"github.com/officecal/internal/dates"
	"github.com/officecal/internal/location"
	"github.com/officecal/internal/overlay"
	"github.com/officecal/internal/stats"
	"github.com/officecal/internal/storage"
	"github.com/officecal/internal/work"
)

// ActivityView is one activity as shown inside a day cell.
type ActivityView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Category string `json:"category"`
	Icon     string `json:"icon"`
}

// DayView is one grid cell with its resolved location.
type DayView struct {
	Key          string            `json:"key"`
	Year         int               `json:"year"`
	Month        time.Month        `json:"month"`
	Day          int               `json:"day"`
	IsOtherMonth bool              `json:"isOtherMonth"`
	IsToday      bool              `json:"isToday"`
	IsWeekend    bool              `json:"isWeekend"`
	Location     location.Location `json:"location"`
	Explicit     bool              `json:"explicit"`
	Activities   []ActivityView    `json:"activities,omitempty"`
}

// WeekView is one grid row and its badges.
type WeekView struct {
	Anchor     string        `json:"anchor"`
	Started    bool          `json:"started"`
	Office     overlay.Tally `json:"office"`
	Running    overlay.Tally `json:"running"`
	Weights    overlay.Tally `json:"weights"`
	Yoga       overlay.Tally `json:"yoga"`
	ShowWork   bool          `json:"showWork"`
	ShowHealth bool          `json:"showHealth"`
	Days       []DayView     `json:"days"`
}

// View is everything a renderer needs for one month.
type View struct {
	User         string            `json:"user"`
	Year         int               `json:"year"`
	Month        time.Month        `json:"month"`
	Today        string            `json:"today"`
	Weeks        []WeekView        `json:"weeks"`
	Average      stats.Metric      `json:"average"`
	Belt         stats.Metric      `json:"belt"`
	AverageWeeks int               `json:"averageWeeks"`
	BeltWeeks    int               `json:"beltWeeks"`
	Goals        work.Goals        `json:"goals"`
	Outlook      *work.WeekOutlook `json:"outlook,omitempty"`
	Filters      overlay.Filters   `json:"filters"`
	Connected    bool              `json:"connected"`
	SyncedAt     *time.Time        `json:"syncedAt,omitempty"`
	Activities   int               `json:"activities"`
}

// Title renders the month heading, e.g. "January 2024".
func (v View) Title() string {
	return time.Date(v.Year, v.Month, 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
}

// Input is everything BuildView depends on.
type Input struct {
	User         string
	Year         int
	Month        time.Month
	Today        time.Time
	MinimumWeeks int
	Doc          storage.Document
	Filters      overlay.Filters
}

// BuildView derives the month view from its inputs and nothing else, so
// rebuilding from unchanged input yields an equal view.
func BuildView(in Input) View {
	loc := in.Today.Location()
	grid := calendar.Build(in.Year, in.Month, in.Today,
		calendar.WithMinimumWeeks(in.MinimumWeeks),
		calendar.WithLocation(loc))

	goals := in.Doc.GoalsOrDefault()
	summary := stats.Summarize(in.Doc.Locations, in.Today)
	badges := overlay.Build(grid, in.Doc.Locations, in.Doc.Activities, goals, in.Today)

	view := View{
		User:         in.User,
		Year:         grid.Year,
		Month:        grid.Month,
		Today:        dates.Key(in.Today),
		Average:      summary.Average,
		Belt:         summary.Belt,
		AverageWeeks: summary.AverageWeeks,
		BeltWeeks:    summary.BeltWeeks,
		Goals:        goals,
		Filters:      in.Filters,
		Outlook:      weekOutlook(in, goals, summary),
		Connected:    in.Doc.Connected(),
		Activities:   in.Doc.Activities.Len(),
	}
	if !in.Doc.SyncedAt.IsZero() {
		synced := in.Doc.SyncedAt
		view.SyncedAt = &synced
	}

	for i, row := range grid.Weeks() {
		ws := badges[i]
		showWork, showHealth := ws.Visible(in.Filters)
		week := WeekView{
			Anchor:     ws.AnchorKey,
			Started:    ws.Started,
			Office:     ws.Office,
			Running:    ws.Running,
			Weights:    ws.Weights,
			Yoga:       ws.Yoga,
			ShowWork:   showWork,
			ShowHealth: showHealth,
			Days:       make([]DayView, 0, len(row)),
		}
		for _, c := range row {
			_, explicit := in.Doc.Locations.Explicit(c.Key)
			day := DayView{
				Key:          c.Key,
				Year:         c.Year,
				Month:        c.Month,
				Day:          c.Day,
				IsOtherMonth: c.IsOtherMonth,
				IsToday:      c.IsToday,
				IsWeekend:    dates.IsWeekend(c.Date),
				Location:     location.Effective(c.Date, in.Doc.Locations),
				Explicit:     explicit,
			}
			for _, a := range in.Doc.Activities.On(c.Key) {
				day.Activities = append(day.Activities, ActivityView{
					ID:       a.ID,
					Name:     a.Name,
					Type:     a.TypeCode(),
					Category: activity.Classify(a).String(),
					Icon:     activity.Icon(a),
				})
			}
			week.Days = append(week.Days, day)
		}
		view.Weeks = append(view.Weeks, week)
	}
	return view
}

// weekOutlook measures today's week against the office goal. It is nil when
// no office goal is set.
func weekOutlook(in Input, goals work.Goals, summary stats.Summary) *work.WeekOutlook {
	if goals.Office <= 0 {
		return nil
	}
	anchor := dates.Key(dates.MondayOf(in.Today))
	office := 0
	for _, w := range summary.Weeks {
		if w.AnchorKey == anchor {
			office = w.OfficeDays
			break
		}
	}
	open := work.OpenWorkdays(in.Today, func(day time.Time) bool {
		_, ok := in.Doc.Locations.Explicit(dates.Key(day))
		return ok
	})
	o := work.Outlook(goals.Office, office, open)
	return &o
}

// ShowsToday reports whether today's cell is part of the grid.
func (v View) ShowsToday() bool {
	_, ok := v.Day(v.Today)
	return ok
}

// Day finds a cell by key.
func (v View) Day(key string) (DayView, bool) {
	for _, w := range v.Weeks {
		for _, d := range w.Days {
			if d.Key == key {
				return d, true
			}
		}
	}
	return DayView{}, false
}
