package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/officecal/internal/overlay"
	"github.com/officecal/internal/tracker"
	"github.com/officecal/internal/work"
)

// ErrNoData is returned when a month has nothing recorded.
var ErrNoData = errors.New("no recorded days")

// Archiver writes monthly markdown snapshots
type Archiver struct {
	historyPath string
	now         func() time.Time
}

// New creates a new Archiver
func New(historyPath string) *Archiver {
	return &Archiver{
		historyPath: historyPath,
		now:         time.Now,
	}
}

// FileName is the archive file for a month.
func FileName(year int, month time.Month) string {
	return fmt.Sprintf("%d-%02d.md", year, month)
}

// ArchiveMonth writes the view's month to markdown and returns the file path.
// Existing archives are overwritten.
func (a *Archiver) ArchiveMonth(view tracker.View) (string, error) {
	if !hasData(view) {
		return "", fmt.Errorf("%s: %w", view.Title(), ErrNoData)
	}

	markdown := a.generateMarkdown(view)

	if err := os.MkdirAll(a.historyPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create history directory: %w", err)
	}

	filePath := filepath.Join(a.historyPath, FileName(view.Year, view.Month))
	if err := os.WriteFile(filePath, []byte(markdown), 0644); err != nil {
		return "", fmt.Errorf("failed to write archive: %w", err)
	}
	return filePath, nil
}

func hasData(view tracker.View) bool {
	for _, week := range view.Weeks {
		for _, d := range week.Days {
			if d.IsOtherMonth {
				continue
			}
			if d.Explicit || len(d.Activities) > 0 {
				return true
			}
		}
	}
	return false
}

func goalMark(s overlay.GoalStatus) string {
	switch s {
	case overlay.Met:
		return " ✓"
	case overlay.Unmet:
		return " ✗"
	default:
		return ""
	}
}

func tallyCell(t overlay.Tally) string {
	if t.Goal > 0 {
		return fmt.Sprintf("%d/%d%s", t.Count, t.Goal, goalMark(t.Status))
	}
	return fmt.Sprintf("%d", t.Count)
}

func (a *Archiver) generateMarkdown(view tracker.View) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", view.Title()))
	if view.User != "" {
		sb.WriteString(fmt.Sprintf("User: %s\n\n", view.User))
	}

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Average office days | %s |\n", view.Average))
	sb.WriteString(fmt.Sprintf("| Weeks averaged | %d |\n", view.AverageWeeks))
	sb.WriteString(fmt.Sprintf("| BELT (best %d of %d) | %s |\n", work.BestWeeks, work.WindowWeeks, view.Belt))
	sb.WriteString(fmt.Sprintf("| Office goal | %d |\n", view.Goals.Office))
	sb.WriteString("\n")

	sb.WriteString("## Weekly Breakdown\n\n")
	sb.WriteString("| Week | Office | Running | Weights | Yoga |\n")
	sb.WriteString("|------|--------|---------|---------|------|\n")
	for _, w := range view.Weeks {
		if !w.Started {
			sb.WriteString(fmt.Sprintf("| %s | - | - | - | - |\n", w.Anchor))
			continue
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			w.Anchor, tallyCell(w.Office), tallyCell(w.Running), tallyCell(w.Weights), tallyCell(w.Yoga)))
	}
	sb.WriteString("\n")

	sb.WriteString("## Days\n\n")
	sb.WriteString("| Date | Location | Activities |\n")
	sb.WriteString("|------|----------|------------|\n")
	for _, w := range view.Weeks {
		for _, d := range w.Days {
			if d.IsOtherMonth {
				continue
			}
			loc := "-"
			if d.Location.IsSet() {
				loc = string(d.Location)
				if !d.Explicit {
					loc += " (default)"
				}
			}
			var acts []string
			for _, act := range d.Activities {
				name := act.Name
				if len(name) > 30 {
					name = name[:27] + "..."
				}
				acts = append(acts, strings.TrimSpace(act.Icon+" "+strings.ReplaceAll(name, "|", "/")))
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", d.Key, loc, strings.Join(acts, ", ")))
		}
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("---\n*Archived: %s*\n", a.now().Format("2006-01-02 15:04")))

	return sb.String()
}

// ListArchives returns list of archived months
func (a *Archiver) ListArchives() ([]string, error) {
	entries, err := os.ReadDir(a.historyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var archives []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			archives = append(archives, e.Name())
		}
	}

	sort.Strings(archives)
	return archives, nil
}

// ReadArchive reads a specific month's archive
func (a *Archiver) ReadArchive(year int, month time.Month) (string, error) {
	filename := FileName(year, month)
	data, err := os.ReadFile(filepath.Join(a.historyPath, filename))
	if err != nil {
		return "", fmt.Errorf("archive not found: %s", filename)
	}
	return string(data), nil
}
