// Package activity classifies exercise records from the activity source and
// indexes them by the local calendar day they started on.
package activity

import "strings"

// Category is the semantic bucket an activity falls into.
type Category int

const (
	Other Category = iota
	Running
	WeightTraining
	Yoga
	WaterSport
)

func (c Category) String() string {
	switch c {
	case Running:
		return "running"
	case WeightTraining:
		return "weights"
	case Yoga:
		return "yoga"
	case WaterSport:
		return "watersport"
	default:
		return "other"
	}
}

// DefaultType is assumed when a record carries no type code at all.
const DefaultType = "Run"

var (
	weightTypes   = []string{"WeightTraining", "Crossfit"}
	weightWords   = []string{"weight", "f45", "crossfit", "gym"}
	yogaTypes     = []string{"Yoga"}
	yogaWords     = []string{"yoga", "stretching", "meditation"}
	waterTypes    = []string{"WaterSport", "Kayaking", "Canoeing", "StandUpPaddling"}
	waterWords    = []string{"paddling", "paddle", "sup", "stand up", "kayak", "canoe"}
	snowshoeWords = []string{"snowshoe", "snow shoe"}
)

// IsRunning reports whether the record's type code is a run.
func IsRunning(r Record) bool {
	t := r.TypeCode()
	return t == "Run" || t == "VirtualRun"
}

// IsWeightTraining matches on type code or on a gym keyword in the name.
func IsWeightTraining(r Record) bool {
	return typeIn(r, weightTypes) || nameHas(r, weightWords)
}

// IsYoga matches on type code or on a yoga keyword in the name.
func IsYoga(r Record) bool {
	return typeIn(r, yogaTypes) || nameHas(r, yogaWords)
}

// IsWaterSport matches paddling sports by type code or name.
func IsWaterSport(r Record) bool {
	return typeIn(r, waterTypes) || nameHas(r, waterWords)
}

// IsSnowshoe only refines the icon of walks and hikes.
func IsSnowshoe(r Record) bool {
	return r.TypeCode() == "Snowshoe" || nameHas(r, snowshoeWords)
}

// Classify returns the primary category of r. Running is decided by type
// code alone; keyword categories are checked yoga first so a "Morning Yoga
// Flow" workout is not mistaken for a gym session.
func Classify(r Record) Category {
	switch {
	case IsRunning(r):
		return Running
	case IsYoga(r):
		return Yoga
	case IsWeightTraining(r):
		return WeightTraining
	case IsWaterSport(r):
		return WaterSport
	default:
		return Other
	}
}

// Categories returns every goal category r counts toward. Memberships are
// independent: one record may count as both weights and yoga.
func Categories(r Record) []Category {
	var out []Category
	if IsRunning(r) {
		out = append(out, Running)
	}
	if IsWeightTraining(r) {
		out = append(out, WeightTraining)
	}
	if IsYoga(r) {
		out = append(out, Yoga)
	}
	return out
}

const (
	GlyphRun      = "🏃"
	GlyphWeights  = "🏋️"
	GlyphYoga     = "🧘"
	GlyphWater    = "🛶"
	GlyphSnowshoe = "❄️"
)

var glyphs = map[string]string{
	"Run":              GlyphRun,
	"VirtualRun":       GlyphRun,
	"TrailRun":         GlyphRun,
	"Ride":             "🚴",
	"VirtualRide":      "🚴",
	"EBikeRide":        "🚴",
	"MountainBikeRide": "🚵",
	"GravelRide":       "🚵",
	"Swim":             "🏊",
	"Walk":             "🚶",
	"Hike":             "🥾",
	"WeightTraining":   GlyphWeights,
	"Crossfit":         GlyphWeights,
	"Workout":          "💪",
	"Yoga":             GlyphYoga,
	"Pilates":          GlyphYoga,
	"Rowing":           "🚣",
	"Kayaking":         GlyphWater,
	"Canoeing":         GlyphWater,
	"StandUpPaddling":  "🏄",
	"WaterSport":       GlyphWater,
	"Surfing":          "🏄",
	"AlpineSki":        "⛷️",
	"BackcountrySki":   "⛷️",
	"NordicSki":        "⛷️",
	"Snowboard":        "🏂",
	"Snowshoe":         GlyphSnowshoe,
	"IceSkate":         "⛸️",
	"RockClimbing":     "🧗",
	"Tennis":           "🎾",
	"Soccer":           "⚽",
	"Golf":             "⛳",
}

// Icon returns the display glyph for r. Keyword categories win over the type
// table; snowshoe keywords only override walks and hikes. Unknown type codes
// render as a run.
func Icon(r Record) string {
	t := r.TypeCode()
	switch {
	case IsYoga(r):
		return GlyphYoga
	case IsWeightTraining(r):
		return GlyphWeights
	case IsWaterSport(r):
		if g, ok := glyphs[t]; ok && typeIn(r, waterTypes) {
			return g
		}
		return GlyphWater
	case (t == "Walk" || t == "Hike") && IsSnowshoe(r):
		return GlyphSnowshoe
	}
	if g, ok := glyphs[t]; ok {
		return g
	}
	return GlyphRun
}

func typeIn(r Record, types []string) bool {
	t := r.TypeCode()
	for _, candidate := range types {
		if t == candidate {
			return true
		}
	}
	return false
}

func nameHas(r Record, words []string) bool {
	name := strings.ToLower(r.Name)
	for _, w := range words {
		if strings.Contains(name, w) {
			return true
		}
	}
	return false
}
