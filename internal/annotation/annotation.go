// Package annotation models the overlays placed on a composed image: the
// freeform text overlay and the dismissible location, weather, time and
// health capsules.
package annotation

import (
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Text overlay caps, in runes after NFC composition.
const (
	ComposedTextLimit = 28
	PlainTextLimit    = 33
)

// HasComposedScript reports whether s contains Hangul, the script the
// overlay renders at double width.
func HasComposedScript(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

// TextLimit returns the cap that applies to s.
func TextLimit(s string) int {
	if HasComposedScript(s) {
		return ComposedTextLimit
	}
	return PlainTextLimit
}

// CapText composes s and truncates it to its limit.
func CapText(s string) string {
	s = norm.NFC.String(s)
	limit := TextLimit(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// TextFits reports whether s, once composed, is within its limit.
func TextFits(s string) bool {
	s = norm.NFC.String(s)
	return utf8.RuneCountInString(s) <= TextLimit(s)
}

// HealthCategory is a health picker tab.
type HealthCategory string

const (
	CategoryActivity  HealthCategory = "activity"
	CategoryMood      HealthCategory = "mood"
	CategoryChallenge HealthCategory = "challenge"
)

// ParseCategory validates a category name.
func ParseCategory(s string) (HealthCategory, error) {
	switch c := HealthCategory(s); c {
	case CategoryActivity, CategoryMood, CategoryChallenge:
		return c, nil
	}
	return "", fmt.Errorf("unknown health category %q (want activity, mood or challenge)", s)
}

// HealthRecord is a selected health capsule: label plus icon reference.
type HealthRecord struct {
	Category HealthCategory
	Label    string
	Icon     string
}

// Generator fills capsules when their control is invoked.
type Generator struct {
	Location string
	Weather  string
	Clock    func() time.Time
}

// DefaultGenerator returns the fixed generator used by the app.
func DefaultGenerator() Generator {
	return Generator{
		Location: "서울특별시 강남구",
		Weather:  "맑음 24°C",
		Clock:    time.Now,
	}
}

// Time formats the generator clock as a capsule label.
func (g Generator) Time() string {
	clock := g.Clock
	if clock == nil {
		clock = time.Now
	}
	return clock().Format("15:04")
}

// State holds the annotations of one capture session.
// The text overlay never exceeds its cap, even between edits.
type State struct {
	gen Generator

	text      string
	location  string
	weather   string
	timeOfDay string
	health    *HealthRecord
}

// New creates an empty annotation state.
func New(gen Generator) *State {
	return &State{gen: gen}
}

// SetText stores the capped overlay text and returns what was stored.
func (s *State) SetText(text string) string {
	s.text = CapText(text)
	return s.text
}

func (s *State) Text() string { return s.text }

func (s *State) AddLocation() string {
	s.location = s.gen.Location
	return s.location
}

func (s *State) ClearLocation() { s.location = "" }

func (s *State) Location() string { return s.location }

func (s *State) AddWeather() string {
	s.weather = s.gen.Weather
	return s.weather
}

func (s *State) ClearWeather() { s.weather = "" }

func (s *State) Weather() string { return s.weather }

func (s *State) AddTime() string {
	s.timeOfDay = s.gen.Time()
	return s.timeOfDay
}

func (s *State) ClearTime() { s.timeOfDay = "" }

func (s *State) Time() string { return s.timeOfDay }

// SetHealth sets the health label and icon together.
func (s *State) SetHealth(r HealthRecord) {
	s.health = &r
}

// ClearHealth clears the health label and icon together.
func (s *State) ClearHealth() { s.health = nil }

// Health returns the selected record, or nil.
func (s *State) Health() *HealthRecord {
	if s.health == nil {
		return nil
	}
	r := *s.health
	return &r
}

// Any reports whether any field is set.
func (s *State) Any() bool {
	return s.text != "" || s.location != "" || s.weather != "" || s.timeOfDay != "" || s.health != nil
}

// Reset clears every field.
func (s *State) Reset() {
	*s = State{gen: s.gen}
}

// Snapshot is a detached copy of the annotations with unset fields nil.
type Snapshot struct {
	TextOverlay *string `json:"text_overlay,omitempty"`
	Location    *string `json:"location,omitempty"`
	Weather     *string `json:"weather,omitempty"`
	Time        *string `json:"time,omitempty"`
	Health      *string `json:"health,omitempty"`
	HealthIcon  *string `json:"health_icon,omitempty"`
}

// Snapshot copies the current annotations.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		TextOverlay: optional(s.text),
		Location:    optional(s.location),
		Weather:     optional(s.weather),
		Time:        optional(s.timeOfDay),
	}
	if s.health != nil {
		snap.Health = optional(s.health.Label)
		snap.HealthIcon = optional(s.health.Icon)
	}
	return snap
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
