// Package calendar lays out Monday-first month grids made of complete weeks.
package calendar

import (
	"time"

	"github.com/officecal/internal/dates"
)

// Cell is one day slot in the month grid.
type Cell struct {
	Year         int
	Month        time.Month
	Day          int
	Date         time.Time
	Key          string
	IsOtherMonth bool
	IsToday      bool
}

// Grid is the ordered set of cells for a month, always a multiple of seven.
type Grid struct {
	Year  int
	Month time.Month
	Cells []Cell
}

type options struct {
	minWeeks int
	loc      *time.Location
}

// Option tunes Build.
type Option func(*options)

// WithMinimumWeeks pads trailing weeks until the grid has at least n rows.
// Six rows gives the fixed 42-cell layout.
func WithMinimumWeeks(n int) Option {
	return func(o *options) {
		o.minWeeks = n
	}
}

// WithLocation sets the zone cell dates are created in. Defaults to today's
// location.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.loc = loc
	}
}

// Build computes the grid for (year, month). Leading cells come from the
// previous month, trailing cells from the next one, so every row is a full
// Monday..Sunday week. today marks the single IsToday cell, if it is visible.
func Build(year int, month time.Month, today time.Time, opts ...Option) Grid {
	o := options{loc: today.Location()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.loc == nil {
		o.loc = time.Local
	}

	// Normalise out-of-range months (e.g. 13 or 0) the same way time.Date does.
	year, month = dates.ShiftMonth(year, month, 0)

	first := dates.StartOfDay(year, month, 1, o.loc)
	lead := dates.ColumnOf(first.Weekday())
	daysInMonth := dates.DaysIn(year, month)

	trail := 0
	if rem := (lead + daysInMonth) % 7; rem != 0 {
		trail = 7 - rem
	}
	total := lead + daysInMonth + trail
	if minCells := o.minWeeks * 7; total < minCells {
		total = minCells
	}

	g := Grid{Year: year, Month: month, Cells: make([]Cell, 0, total)}
	start := dates.AddDays(first, -lead)
	for i := 0; i < total; i++ {
		d := dates.AddDays(start, i)
		y, m, day := d.Date()
		g.Cells = append(g.Cells, Cell{
			Year:         y,
			Month:        m,
			Day:          day,
			Date:         d,
			Key:          dates.Key(d),
			IsOtherMonth: m != month || y != year,
			IsToday:      dates.SameDay(d, today.In(o.loc)),
		})
	}
	return g
}

// Weeks slices the grid into consecutive 7-cell rows.
func (g Grid) Weeks() [][]Cell {
	weeks := make([][]Cell, 0, len(g.Cells)/7)
	for i := 0; i+7 <= len(g.Cells); i += 7 {
		weeks = append(weeks, g.Cells[i:i+7])
	}
	return weeks
}

// First returns the first cell's date.
func (g Grid) First() time.Time {
	if len(g.Cells) == 0 {
		return time.Time{}
	}
	return g.Cells[0].Date
}

// Last returns the last cell's date.
func (g Grid) Last() time.Time {
	if len(g.Cells) == 0 {
		return time.Time{}
	}
	return g.Cells[len(g.Cells)-1].Date
}

// LeadingCells counts previous-month padding before day 1.
func (g Grid) LeadingCells() int {
	n := 0
	for _, c := range g.Cells {
		if !c.IsOtherMonth {
			break
		}
		n++
	}
	return n
}

// TrailingCells counts next-month padding after the last day.
func (g Grid) TrailingCells() int {
	n := 0
	for i := len(g.Cells) - 1; i >= 0; i-- {
		if !g.Cells[i].IsOtherMonth {
			break
		}
		n++
	}
	return n
}
