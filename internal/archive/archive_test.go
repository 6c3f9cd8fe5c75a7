package archive

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/officecal/internal/activity"
	"github.com/officecal/internal/overlay"
	"github.com/officecal/internal/storage"
	"github.com/officecal/internal/tracker"
)

func viewFor(doc storage.Document) tracker.View {
	return tracker.BuildView(tracker.Input{
		User:    "ana",
		Year:    2024,
		Month:   time.January,
		Today:   time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC),
		Doc:     doc,
		Filters: overlay.AllVisible(),
	})
}

func newArchiver(t *testing.T) *Archiver {
	a := New(filepath.Join(t.TempDir(), "history"))
	a.now = func() time.Time { return time.Date(2024, 2, 10, 9, 30, 0, 0, time.UTC) }
	return a
}

func TestArchiveMonth(t *testing.T) {
	doc := storage.Decode(storage.Fields{
		"2024-01-08": "office",
		"2024-01-09": "office",
		"2024-01-10": "home",
	})
	doc.Activities = activity.BuildIndex([]activity.Record{
		{ID: 7, Type: "Yoga", Name: "Flow | evening", StartDateLocal: "2024-01-10T19:00:00Z"},
	})

	a := newArchiver(t)
	path, err := a.ArchiveMonth(viewFor(doc))
	require.NoError(t, err)
	assert.Equal(t, "2024-01.md", filepath.Base(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	md := string(raw)

	assert.True(t, strings.HasPrefix(md, "# January 2024\n"))
	assert.Contains(t, md, "| Average office days | 2.00 |")
	assert.Contains(t, md, "| BELT (best 8 of 12) | 2.00 |")
	assert.Contains(t, md, "| 2024-01-08 | 2/3 ✗ | 0 | 0 | 1 |")
	assert.Contains(t, md, "| 2024-01-08 | office |  |")
	assert.Contains(t, md, "| 2024-01-10 | home | "+activity.GlyphYoga+" Flow / evening |")
	assert.Contains(t, md, "| 2024-01-13 | home (default) |  |")
	assert.NotContains(t, md, "| 2024-02-01 |")
	assert.Contains(t, md, "*Archived: 2024-02-10 09:30*")
}

func TestArchiveMonthWithoutData(t *testing.T) {
	a := newArchiver(t)
	_, err := a.ArchiveMonth(viewFor(storage.Decode(nil)))
	assert.True(t, errors.Is(err, ErrNoData))

	archives, err := a.ListArchives()
	require.NoError(t, err)
	assert.Empty(t, archives)
}

func TestListAndReadArchives(t *testing.T) {
	a := newArchiver(t)
	doc := storage.Decode(storage.Fields{"2024-01-08": "office"})
	_, err := a.ArchiveMonth(viewFor(doc))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(a.historyPath, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(a.historyPath, "2023-12.md"), []byte("# December 2023\n"), 0644))

	archives, err := a.ListArchives()
	require.NoError(t, err)
	assert.Equal(t, []string{"2023-12.md", "2024-01.md"}, archives)

	content, err := a.ReadArchive(2024, time.January)
	require.NoError(t, err)
	assert.Contains(t, content, "# January 2024")

	_, err = a.ReadArchive(2022, time.March)
	assert.Error(t, err)
}
