// Package planner holds the season planning domain: slot patterns, the
// editable slot plan, and capacity math. It has no knowledge of HTTP or of
// the upstream league service.
package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SlotType classifies what a reserved slot may be used for.
type SlotType string

const (
	SlotTypePractice SlotType = "practice"
	SlotTypeGame     SlotType = "game"
	SlotTypeBoth     SlotType = "both"
)

func ParseSlotType(raw string) (SlotType, error) {
	switch SlotType(strings.ToLower(strings.TrimSpace(raw))) {
	case SlotTypePractice:
		return SlotTypePractice, nil
	case SlotTypeGame:
		return SlotTypeGame, nil
	case SlotTypeBoth:
		return SlotTypeBoth, nil
	}
	return "", fmt.Errorf("unknown slot type %q", raw)
}

// GameCapable reports whether a slot of this type can host a game.
func (t SlotType) GameCapable() bool {
	return t == SlotTypeGame || t == SlotTypeBoth
}

// Slot is a single reserved field window as returned by the league API.
// Slots are read-only input; edits live on PlanEntry.
type Slot struct {
	SlotID    string
	GameDate  time.Time
	StartTime string // canonical "15:04"
	EndTime   string
	FieldKey  string

	// Carried over from the allocation subsystem when present.
	AllocationType SlotType
	AllocationRank int
}

var weekdayTokens = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// PatternKey identifies a recurring weekly slot shape. Weekday is
// Monday-first (0 = Monday .. 6 = Sunday).
type PatternKey struct {
	Weekday   int
	StartTime string
	EndTime   string
	FieldKey  string
}

func (k PatternKey) String() string {
	day := "???"
	if k.Weekday >= 0 && k.Weekday < len(weekdayTokens) {
		day = weekdayTokens[k.Weekday]
	}
	return day + "|" + k.StartTime + "|" + k.EndTime + "|" + k.FieldKey
}

// WeekdayName returns the full English weekday name for display.
func (k PatternKey) WeekdayName() string {
	if k.Weekday < 0 || k.Weekday > 6 {
		return "Unknown"
	}
	return time.Weekday((k.Weekday + 1) % 7).String()
}

// MarshalJSON renders the key in its canonical string form.
func (k PatternKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *PatternKey) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParsePatternKey(raw)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParsePatternKey parses the canonical "mon|18:00|19:30|field-1" form.
func ParsePatternKey(raw string) (PatternKey, error) {
	parts := strings.Split(strings.TrimSpace(raw), "|")
	if len(parts) != 4 {
		return PatternKey{}, fmt.Errorf("pattern key must have four parts, got %q", raw)
	}
	weekday := -1
	for i, token := range weekdayTokens {
		if strings.EqualFold(parts[0], token) {
			weekday = i
			break
		}
	}
	if weekday < 0 {
		return PatternKey{}, fmt.Errorf("unknown weekday %q in pattern key", parts[0])
	}
	start, err := NormalizeTimeOfDay(parts[1])
	if err != nil {
		return PatternKey{}, fmt.Errorf("invalid start time in pattern key: %w", err)
	}
	end, err := NormalizeTimeOfDay(parts[2])
	if err != nil {
		return PatternKey{}, fmt.Errorf("invalid end time in pattern key: %w", err)
	}
	if parts[3] == "" {
		return PatternKey{}, errors.New("pattern key field is required")
	}
	return PatternKey{Weekday: weekday, StartTime: start, EndTime: end, FieldKey: parts[3]}, nil
}

// PlanEntry is the editable per-slot record. SlotID is the stable identity
// that survives reloads; classification and overrides belong to the operator.
type PlanEntry struct {
	SlotID        string    `json:"slotId"`
	GameDate      time.Time `json:"gameDate"`
	StartTime     string    `json:"startTime"` // as fetched
	EndTime       string    `json:"endTime"`
	FieldKey      string    `json:"fieldKey"`
	SlotType      SlotType  `json:"slotType"`
	PriorityRank  int       `json:"priorityRank"`            // 0 = unranked
	StartOverride string    `json:"startOverride,omitempty"` // "" = none
}

// EffectiveStart is the start time used for scheduling and payloads.
func (e PlanEntry) EffectiveStart() string {
	if e.StartOverride != "" {
		return e.StartOverride
	}
	return e.StartTime
}

// Key derives the pattern identity. Identity always uses the base start
// time; overriding a start time changes what is scheduled, not which
// pattern the slot belongs to.
func (e PlanEntry) Key() PatternKey {
	return PatternKey{
		Weekday:   mondayIndex(e.GameDate.Weekday()),
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		FieldKey:  e.FieldKey,
	}
}

// NormalizeTimeOfDay parses a wall-clock time and reformats it to the
// canonical zero-padded "15:04". Seconds and common AM/PM spellings are
// accepted.
func NormalizeTimeOfDay(raw string) (string, error) {
	parsed, err := parseTimeOfDay(raw)
	if err != nil {
		return "", err
	}
	return parsed.Format("15:04"), nil
}

func parseTimeOfDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("time is required")
	}
	parsed, err := time.Parse("15:04", raw)
	if err == nil {
		return parsed, nil
	}
	formats := []string{"15:04:05", "3:04 PM", "03:04 PM", "3:04PM", "03:04PM"}
	for _, format := range formats {
		if parsed, err = time.Parse(format, strings.ToUpper(raw)); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, errors.New("time must be in HH:MM or H:MM AM/PM format")
}

// ParseDate parses an ISO calendar date and truncates it to midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, errors.New("date must be in YYYY-MM-DD format")
	}
	return parsed, nil
}

func FormatDate(value time.Time) string {
	return value.Format("2006-01-02")
}

func truncateDate(value time.Time) time.Time {
	loc := value.Location()
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, loc)
}

// mondayIndex converts time.Weekday (Sunday-first) to the Monday-first
// index used throughout scheduling.
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// mondayOf returns the most recent Monday on or before the given date.
func mondayOf(value time.Time) time.Time {
	value = truncateDate(value)
	return value.AddDate(0, 0, -mondayIndex(value.Weekday()))
}

// durationMinutes is the span between two canonical times of day. Malformed
// or inverted spans count as zero.
func durationMinutes(start, end string) int {
	s, err := time.Parse("15:04", start)
	if err != nil {
		return 0
	}
	e, err := time.Parse("15:04", end)
	if err != nil {
		return 0
	}
	minutes := int(e.Sub(s).Minutes())
	if minutes < 0 {
		return 0
	}
	return minutes
}
