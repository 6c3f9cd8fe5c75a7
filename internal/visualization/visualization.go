package visualization

import (
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/officecal/internal/location"
	"github.com/officecal/internal/overlay"
	"github.com/officecal/internal/tracker"
	"github.com/officecal/internal/work"
)

var dayNames = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

var (
	faint   = color.New(color.Faint)
	bold    = color.New(color.Bold)
	officeC = color.New(color.FgCyan)
	homeC   = color.New(color.FgGreen)
	metC    = color.New(color.FgGreen)
	unmetC  = color.New(color.FgYellow)
)

type Visualizer struct {
	now func() time.Time
}

func New() *Visualizer {
	return &Visualizer{now: time.Now}
}

// locationMark is the one-letter cell marker: O office, H home, . unset.
func locationMark(l location.Location) string {
	switch l {
	case location.Office:
		return "O"
	case location.Home:
		return "H"
	default:
		return "."
	}
}

func statusMark(s overlay.GoalStatus) string {
	switch s {
	case overlay.Met:
		return metC.Sprint("✓")
	case overlay.Unmet:
		return unmetC.Sprint("✗")
	default:
		return ""
	}
}

func formatTally(label string, t overlay.Tally) string {
	if t.Goal > 0 {
		return fmt.Sprintf("%s %d/%d%s", label, t.Count, t.Goal, statusMark(t.Status))
	}
	return fmt.Sprintf("%s %d", label, t.Count)
}

// RenderMonth prints the month grid with one badge column per week, the
// month's activities and the summary metrics.
func (v *Visualizer) RenderMonth(w io.Writer, view tracker.View) {
	header := view.Title()
	if view.User != "" {
		header += "  ·  " + view.User
	}
	fmt.Fprintln(w, bold.Sprint(header))
	fmt.Fprintln(w)

	for _, name := range dayNames {
		fmt.Fprintf(w, " %-5s", name)
	}
	fmt.Fprintln(w)

	for _, week := range view.Weeks {
		for _, d := range week.Days {
			fmt.Fprint(w, renderCell(d))
		}
		if badges := weekBadges(week); badges != "" {
			fmt.Fprint(w, "  ", badges)
		}
		fmt.Fprintln(w)
	}

	if lines := activityLines(view); len(lines) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, bold.Sprint("Activities"))
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Average: %s (%d weeks)   BELT: %s (best %d of last %d)\n",
		view.Average, view.AverageWeeks, view.Belt, view.BeltWeeks, work.WindowWeeks)
	if o := view.Outlook; o != nil && view.ShowsToday() {
		line := "This week: " + o.String()
		if o.Reachable() {
			fmt.Fprintln(w, line)
		} else {
			fmt.Fprintln(w, unmetC.Sprint(line))
		}
	}
	if view.Connected {
		fmt.Fprintf(w, "Strava: connected, %d cached activities\n", view.Activities)
	} else {
		fmt.Fprintln(w, faint.Sprint("Strava: not connected"))
	}
}

func renderCell(d tracker.DayView) string {
	mark := locationMark(d.Location)
	text := fmt.Sprintf("%2d%s", d.Day, mark)
	if d.IsToday {
		text = "[" + text + "]"
	} else {
		text = " " + text + " "
	}
	text += " "

	switch {
	case d.IsOtherMonth:
		return faint.Sprint(text)
	case d.Location == location.Office:
		return officeC.Sprint(text)
	case d.Location == location.Home && d.Explicit:
		return homeC.Sprint(text)
	}
	return text
}

func weekBadges(week tracker.WeekView) string {
	var parts []string
	if week.ShowWork {
		parts = append(parts, formatTally("office", week.Office))
	}
	if week.ShowHealth {
		parts = append(parts,
			formatTally("run", week.Running),
			formatTally("weights", week.Weights),
			formatTally("yoga", week.Yoga))
	}
	return strings.Join(parts, "  ")
}

func activityLines(view tracker.View) []string {
	var lines []string
	for _, week := range view.Weeks {
		for _, d := range week.Days {
			if d.IsOtherMonth {
				continue
			}
			for _, a := range d.Activities {
				name := a.Name
				if name == "" {
					name = a.Type
				}
				lines = append(lines, fmt.Sprintf("  %s  %s %s", d.Key, a.Icon, name))
			}
		}
	}
	return lines
}

// GenerateWeekSVG draws office days per grid week against the office goal.
func (v *Visualizer) GenerateWeekSVG(view tracker.View) string {
	width := 600
	height := 300
	padding := 40
	weeks := len(view.Weeks)
	if weeks == 0 {
		weeks = 1
	}
	barWidth := float64(width-2*padding) / float64(weeks)
	maxDays := 7.0

	var bars, labels strings.Builder
	for i, week := range view.Weeks {
		days := float64(week.Office.Count)
		barHeight := (days / maxDays) * float64(height-2*padding)
		x := float64(padding) + float64(i)*barWidth + 5
		y := float64(height) - float64(padding) - barHeight

		fill := "#3498DB"
		switch week.Office.Status {
		case overlay.Met:
			fill = "#4CAF50"
		case overlay.Unmet:
			fill = "#FF9800"
		}
		if !week.Started {
			fill = "#BDC3C7"
		}

		bars.WriteString(fmt.Sprintf(`<rect x="%.0f" y="%.0f" width="%.0f" height="%.0f" fill="%s" rx="4"/>
    <text x="%.0f" y="%d" text-anchor="middle" font-size="12" fill="#333">%d</text>
`,
			x, y, barWidth-10, barHeight, fill,
			x+barWidth/2-5, int(y)-5, week.Office.Count))
		labels.WriteString(fmt.Sprintf(`<text x="%.0f" y="%d" text-anchor="middle" font-size="12" fill="#7f8c8d">%s</text>
`,
			x+barWidth/2-5, height-padding+20, week.Anchor[5:]))
	}

	goalY := float64(height-padding) - float64(view.Goals.Office)/maxDays*float64(height-2*padding)

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d">
  <rect width="%d" height="%d" fill="#f5f7fa" rx="10"/>
  <text x="%d" y="30" text-anchor="middle" font-size="18" font-weight="bold" fill="#2c3e50">Office Days</text>
  <text x="%d" y="55" text-anchor="middle" font-size="12" fill="#7f8c8d">%s | Average: %s | BELT: %s</text>

  <!-- Goal line -->
  <line x1="%d" y1="%.0f" x2="%d" y2="%.0f" stroke="#E74C3C" stroke-width="2" stroke-dasharray="5,5"/>

  <!-- Bars -->
  %s
  <!-- Week labels -->
  %s
</svg>`,
		width, height, width, height,
		width, height,
		width/2,
		width/2, view.Title(), view.Average, view.Belt,
		padding, goalY, width-padding, goalY,
		bars.String(),
		labels.String(),
	)
}

// GenerateMonthHTML returns a standalone HTML page for the month.
func (v *Visualizer) GenerateMonthHTML(view tracker.View) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>officecal - %s</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 40px; background: #f5f7fa; }
    .container { max-width: 960px; margin: 0 auto; }
    .card { background: white; border-radius: 10px; padding: 24px; margin-bottom: 20px; box-shadow: 0 2px 8px rgba(0,0,0,0.1); }
    h1 { color: #2c3e50; margin-bottom: 8px; }
    .subtitle { color: #7f8c8d; margin-bottom: 30px; }
    .stat { display: inline-block; text-align: center; padding: 20px; margin: 10px; background: #f8f9fa; border-radius: 8px; min-width: 120px; }
    .stat-value { font-size: 32px; font-weight: bold; color: #3498DB; }
    .stat-label { font-size: 12px; color: #7f8c8d; margin-top: 4px; }
    table { width: 100%%; border-collapse: collapse; table-layout: fixed; }
    th, td { padding: 8px; vertical-align: top; border: 1px solid #eee; }
    th { color: #7f8c8d; font-weight: 500; }
    td.office { background: #E3F2FD; }
    td.home { background: #E8F5E9; }
    td.other { opacity: 0.4; }
    td.today { outline: 2px solid #E74C3C; }
    .badge { display: block; font-size: 12px; color: #555; }
    .met { color: #2E7D32; }
    .unmet { color: #EF6C00; }
  </style>
</head>
<body>
  <div class="container">
    <h1>%s</h1>
    <p class="subtitle">%s · generated on %s</p>

    <div class="card">
      <div class="stat">
        <div class="stat-value">%s</div>
        <div class="stat-label">Average office days (%d weeks)</div>
      </div>
      <div class="stat">
        <div class="stat-value">%s</div>
        <div class="stat-label">BELT (best %d of last %d)</div>
      </div>
      <div class="stat">
        <div class="stat-value">%d</div>
        <div class="stat-label">Office goal / week</div>
      </div>
    </div>

    <div class="card">
      <table>
        <tr>%s<th>Week</th></tr>
%s
      </table>
    </div>
  </div>
</body>
</html>`,
		html.EscapeString(view.Title()),
		html.EscapeString(view.Title()),
		html.EscapeString(view.User),
		v.now().Format("Monday, January 2, 2006"),
		view.Average, view.AverageWeeks,
		view.Belt, view.BeltWeeks, work.WindowWeeks,
		view.Goals.Office,
		headerCells(),
		v.formatWeekRows(view),
	)
}

func headerCells() string {
	var sb strings.Builder
	for _, name := range dayNames {
		sb.WriteString("<th>" + name + "</th>")
	}
	return sb.String()
}

func (v *Visualizer) formatWeekRows(view tracker.View) string {
	var rows []string
	for _, week := range view.Weeks {
		var sb strings.Builder
		sb.WriteString("        <tr>")
		for _, d := range week.Days {
			classes := []string{}
			if d.Location.IsSet() {
				classes = append(classes, string(d.Location))
			}
			if d.IsOtherMonth {
				classes = append(classes, "other")
			}
			if d.IsToday {
				classes = append(classes, "today")
			}
			sb.WriteString(fmt.Sprintf(`<td class="%s"><strong>%d</strong> %s`,
				strings.Join(classes, " "), d.Day, locationMark(d.Location)))
			for _, a := range d.Activities {
				sb.WriteString(fmt.Sprintf(`<span class="badge">%s %s</span>`, a.Icon, html.EscapeString(a.Name)))
			}
			sb.WriteString("</td>")
		}
		sb.WriteString("<td>")
		if week.ShowWork {
			sb.WriteString(htmlTally("office", week.Office))
		}
		if week.ShowHealth {
			sb.WriteString(htmlTally("run", week.Running))
			sb.WriteString(htmlTally("weights", week.Weights))
			sb.WriteString(htmlTally("yoga", week.Yoga))
		}
		sb.WriteString("</td></tr>")
		rows = append(rows, sb.String())
	}
	return strings.Join(rows, "\n")
}

func htmlTally(label string, t overlay.Tally) string {
	class := "badge"
	switch t.Status {
	case overlay.Met:
		class += " met"
	case overlay.Unmet:
		class += " unmet"
	}
	if t.Goal > 0 {
		return fmt.Sprintf(`<span class="%s">%s %d/%d</span>`, class, label, t.Count, t.Goal)
	}
	return fmt.Sprintf(`<span class="%s">%s %d</span>`, class, label, t.Count)
}
