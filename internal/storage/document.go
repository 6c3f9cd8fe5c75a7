package storage

import (
	"encoding/json"
	"time"

	"github.com/officecal/internal/activity"
	"github.com/officecal/internal/dates"
	"github.com/officecal/internal/location"
	"github.com/officecal/internal/work"
)

// Document field names.
const (
	FieldGoals        = "weeklyGoals"
	FieldAccessToken  = "stravaAccessToken"
	FieldRefreshToken = "stravaRefreshToken"
	FieldActivities   = "stravaActivities"
	FieldSyncedAt     = "stravaSyncedAt"
)

// Document is the typed view of a user's Fields. Absent or malformed fields
// decode to their zero value.
type Document struct {
	Locations    location.Record
	Goals        *work.Goals
	AccessToken  string
	RefreshToken string
	Activities   activity.Index
	SyncedAt     time.Time
}

// Decode projects raw fields onto a Document. It never fails: values of the
// wrong shape are skipped.
func Decode(f Fields) Document {
	doc := Document{
		Locations:  make(location.Record),
		Activities: make(activity.Index),
	}
	for key, value := range f {
		switch key {
		case FieldGoals:
			if value == nil {
				continue
			}
			g := work.DefaultGoals()
			if roundTrip(value, &g) == nil {
				doc.Goals = &g
			}
		case FieldAccessToken:
			doc.AccessToken, _ = value.(string)
		case FieldRefreshToken:
			doc.RefreshToken, _ = value.(string)
		case FieldActivities:
			var days map[string][]activity.Record
			if value == nil || roundTrip(value, &days) != nil {
				continue
			}
			for day, records := range days {
				if dates.IsKey(day) && len(records) > 0 {
					doc.Activities[day] = records
				}
			}
		case FieldSyncedAt:
			switch v := value.(type) {
			case string:
				doc.SyncedAt, _ = time.Parse(time.RFC3339, v)
			case time.Time:
				doc.SyncedAt = v
			}
		default:
			if !dates.IsKey(key) {
				continue
			}
			s, ok := value.(string)
			if !ok {
				continue
			}
			if l, err := location.Parse(s); err == nil && l.IsSet() {
				doc.Locations[key] = l
			}
		}
	}
	return doc
}

// GoalsOrDefault returns the saved goals, or the defaults when none exist.
func (d Document) GoalsOrDefault() work.Goals {
	if d.Goals == nil {
		return work.DefaultGoals()
	}
	return *d.Goals
}

// Connected reports whether an activity source token is stored.
func (d Document) Connected() bool {
	return d.AccessToken != ""
}

// roundTrip converts a loosely typed value (decoded JSON or a Firestore map)
// into out.
func roundTrip(value any, out any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// Patch accumulates a merge-write.
type Patch Fields

// NewPatch returns an empty patch.
func NewPatch() Patch {
	return make(Patch)
}

// SetLocation writes a day's override. None clears the day with a null.
func (p Patch) SetLocation(key string, l location.Location) Patch {
	if l.IsSet() {
		p[key] = string(l)
	} else {
		p[key] = nil
	}
	return p
}

// SetGoals writes the weekly goals object.
func (p Patch) SetGoals(g work.Goals) Patch {
	p[FieldGoals] = map[string]any{
		"office":  g.Office,
		"running": g.Running,
		"weights": g.Weights,
		"yoga":    g.Yoga,
	}
	return p
}

// SetTokens stores the activity source credentials.
func (p Patch) SetTokens(access, refresh string) Patch {
	p[FieldAccessToken] = access
	if refresh != "" {
		p[FieldRefreshToken] = refresh
	} else {
		p[FieldRefreshToken] = nil
	}
	return p
}

// ClearTokens nulls both credentials.
func (p Patch) ClearTokens() Patch {
	p[FieldAccessToken] = nil
	p[FieldRefreshToken] = nil
	return p
}

// SetActivities replaces the cached activity index and stamps the sync time.
func (p Patch) SetActivities(idx activity.Index, syncedAt time.Time) Patch {
	days := make(map[string]any, len(idx))
	for key, records := range idx {
		list := make([]any, 0, len(records))
		for _, r := range records {
			list = append(list, map[string]any{
				"id":               r.ID,
				"type":             r.Type,
				"sport_type":       r.SportType,
				"name":             r.Name,
				"start_date":       r.StartDate,
				"start_date_local": r.StartDateLocal,
			})
		}
		days[key] = list
	}
	p[FieldActivities] = days
	p[FieldSyncedAt] = syncedAt.UTC().Format(time.RFC3339)
	return p
}

// Fields returns the patch as raw fields.
func (p Patch) Fields() Fields {
	return Fields(p)
}
