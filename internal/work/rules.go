package work

import (
	"fmt"
	"time"

	"github.com/officecal/internal/dates"
)

// =============================================================================
// WORK RULES CONFIGURATION
// =============================================================================
// Edit these values to match how your team counts office attendance.
//
// To customize:
// 1. Change DefaultOfficeGoal to your expected office days per week
// 2. Change BestWeeks/WindowWeeks to alter the rolling BELT metric
// =============================================================================

const (
	// DefaultOfficeGoal - office days expected per week when no goal is saved
	DefaultOfficeGoal = 3

	// MaxOfficeGoal - office goals are bounded by the working week
	MaxOfficeGoal = 5

	// MaxActivityGoal - activity goals count days, so a week caps them
	MaxActivityGoal = 7

	// BestWeeks - how many weeks the rolling metric keeps
	BestWeeks = 8

	// WindowWeeks - how many trailing weeks (current week included) it looks at
	WindowWeeks = 12
)

// Goals are the per-user weekly targets. Zero means "no goal".
type Goals struct {
	Office  int `json:"office"`
	Running int `json:"running"`
	Weights int `json:"weights"`
	Yoga    int `json:"yoga"`
}

// DefaultGoals returns the goals used before the user saves any.
func DefaultGoals() Goals {
	return Goals{Office: DefaultOfficeGoal}
}

// ValidationError represents a rejected user input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Validate checks every goal against its allowed range
func (g Goals) Validate() error {
	if g.Office < 0 || g.Office > MaxOfficeGoal {
		return &ValidationError{Field: "office", Message: fmt.Sprintf("must be between 0 and %d", MaxOfficeGoal)}
	}
	for _, f := range []struct {
		name  string
		value int
	}{
		{"running", g.Running},
		{"weights", g.Weights},
		{"yoga", g.Yoga},
	} {
		if f.value < 0 || f.value > MaxActivityGoal {
			return &ValidationError{Field: f.name, Message: fmt.Sprintf("must be between 0 and %d", MaxActivityGoal)}
		}
	}
	return nil
}

// OfficeDaysNeeded returns how many more office days the week needs to meet
// the goal, given what is logged so far.
func OfficeDaysNeeded(goal, officeDays int) int {
	if goal <= 0 || officeDays >= goal {
		return 0
	}
	return goal - officeDays
}

// OpenWorkdays counts the weekdays from today through Friday that have no
// recorded location yet. Weekends have none.
func OpenWorkdays(today time.Time, recorded func(day time.Time) bool) int {
	open := 0
	for d := dates.Midnight(today); !dates.IsWeekend(d); d = dates.AddDays(d, 1) {
		if !recorded(d) {
			open++
		}
	}
	return open
}

// WeekOutlook is the current week measured against the office goal.
type WeekOutlook struct {
	Goal       int `json:"goal"`
	OfficeDays int `json:"officeDays"`
	Needed     int `json:"needed"`
	OpenDays   int `json:"openDays"`
}

// Outlook fills in Needed from the goal and the office days so far.
func Outlook(goal, officeDays, openDays int) WeekOutlook {
	return WeekOutlook{
		Goal:       goal,
		OfficeDays: officeDays,
		Needed:     OfficeDaysNeeded(goal, officeDays),
		OpenDays:   openDays,
	}
}

// Reachable reports whether the open workdays can still cover the shortfall.
func (o WeekOutlook) Reachable() bool {
	return o.Needed <= o.OpenDays
}

func (o WeekOutlook) String() string {
	if o.Needed == 0 {
		return fmt.Sprintf("%d/%d office days, goal met", o.OfficeDays, o.Goal)
	}
	s := fmt.Sprintf("%d/%d office days, %d more needed, %d workdays left", o.OfficeDays, o.Goal, o.Needed, o.OpenDays)
	if !o.Reachable() {
		s += " (out of reach)"
	}
	return s
}
