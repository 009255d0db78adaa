// internal/planner/plan.go
package planner

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownPattern is returned when a pattern-level edit names a key with
// no loaded slots behind it.
var ErrUnknownPattern = errors.New("no loaded slots match the pattern")

// Plan is the editable set of plan entries for the loaded slot window.
// Pattern-level edits fan out to every entry sharing the key; slot identity
// is preserved so reloads and the optimizer payload can reference exact
// slots.
type Plan struct {
	entries map[string]*PlanEntry
}

func NewPlan() *Plan {
	return &Plan{entries: make(map[string]*PlanEntry)}
}

// LoadSlots replaces the plan's backing slots with a freshly fetched set.
// Entries for slot IDs already in the plan keep their classification, rank
// and start override; new slots seed from their carried-over allocation,
// defaulting to practice.
func (p *Plan) LoadSlots(slots []Slot) {
	next := make(map[string]*PlanEntry, len(slots))
	for _, slot := range slots {
		entry := &PlanEntry{
			SlotID:    slot.SlotID,
			GameDate:  truncateDate(slot.GameDate),
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
			FieldKey:  slot.FieldKey,
			SlotType:  SlotTypePractice,
		}
		if slot.AllocationType != "" {
			entry.SlotType = slot.AllocationType
			if slot.AllocationType.GameCapable() && slot.AllocationRank > 0 {
				entry.PriorityRank = slot.AllocationRank
			}
		}
		if prior, ok := p.entries[slot.SlotID]; ok {
			entry.SlotType = prior.SlotType
			entry.PriorityRank = prior.PriorityRank
			entry.StartOverride = prior.StartOverride
		}
		next[slot.SlotID] = entry
	}
	p.entries = next
}

func (p *Plan) Len() int {
	return len(p.entries)
}

// GameCapableCount counts entries currently classified game or both.
func (p *Plan) GameCapableCount() int {
	count := 0
	for _, entry := range p.entries {
		if entry.SlotType.GameCapable() {
			count++
		}
	}
	return count
}

// Entries returns a date-ordered copy of every plan entry.
func (p *Plan) Entries() []PlanEntry {
	out := make([]PlanEntry, 0, len(p.entries))
	for _, entry := range p.entries {
		out = append(out, *entry)
	}
	sortEntries(out)
	return out
}

// Patterns returns the aggregated, scored pattern view of the plan.
func (p *Plan) Patterns() []Pattern {
	return BuildPatterns(p.Entries())
}

// PatternType reports the displayed slot type for a pattern key and whether
// any loaded slot matches it.
func (p *Plan) PatternType(key PatternKey) (SlotType, bool) {
	matched := p.matching(key)
	if len(matched) == 0 {
		return "", false
	}
	return matched[0].SlotType, true
}

// PatternEdit is one combined edit to a pattern: any subset of slot type,
// priority rank and start override. Nil fields are left alone.
type PatternEdit struct {
	SlotType  *SlotType
	Rank      *int
	StartTime *string
}

// EditPattern applies a combined edit to every slot in the pattern. The
// whole edit is validated against the state it would produce before any
// entry changes; a rejected edit never applies partially.
func (p *Plan) EditPattern(key PatternKey, edit PatternEdit) error {
	matched := p.matching(key)
	if len(matched) == 0 {
		return ErrUnknownPattern
	}

	slotType := matched[0].SlotType
	if edit.SlotType != nil {
		slotType = *edit.SlotType
	}
	if edit.Rank != nil {
		if *edit.Rank < 1 {
			return errors.New("priority rank must be a positive integer")
		}
		if !slotType.GameCapable() {
			return errors.New("practice patterns cannot be ranked")
		}
	}
	var override string
	if edit.StartTime != nil {
		start, err := NormalizeTimeOfDay(*edit.StartTime)
		if err != nil {
			return err
		}
		if start >= key.EndTime {
			return fmt.Errorf("start time %s must be before the pattern end time %s", start, key.EndTime)
		}
		if start != key.StartTime {
			override = start
		}
	}

	for _, entry := range matched {
		if edit.SlotType != nil {
			entry.SlotType = slotType
			if !slotType.GameCapable() {
				entry.PriorityRank = 0
			}
		}
		if edit.Rank != nil {
			entry.PriorityRank = *edit.Rank
		}
		if edit.StartTime != nil {
			entry.StartOverride = override
		}
	}
	return nil
}

// SetPatternType classifies every slot in the pattern. Switching to
// practice clears priority ranks, which only apply to game-capable slots.
func (p *Plan) SetPatternType(key PatternKey, slotType SlotType) error {
	return p.EditPattern(key, PatternEdit{SlotType: &slotType})
}

// SetPatternRank assigns a priority rank to every slot in the pattern.
// Practice patterns cannot be ranked.
func (p *Plan) SetPatternRank(key PatternKey, rank int) error {
	return p.EditPattern(key, PatternEdit{Rank: &rank})
}

// OverrideStartTime moves the pattern's scheduled start. The override must
// be a valid time of day strictly before the pattern's end time; end times
// are not editable here. Overriding back to the base start clears the
// override.
func (p *Plan) OverrideStartTime(key PatternKey, raw string) error {
	return p.EditPattern(key, PatternEdit{StartTime: &raw})
}

// SetAllTypes bulk-classifies every loaded slot.
func (p *Plan) SetAllTypes(slotType SlotType) {
	for _, entry := range p.entries {
		entry.SlotType = slotType
		if !slotType.GameCapable() {
			entry.PriorityRank = 0
		}
	}
}

// AutoRank orders all game-capable patterns by score descending (ties by
// weekday, then start time, then field key) and assigns ranks 1..N in that
// order. Ranks on practice patterns are cleared.
func (p *Plan) AutoRank() {
	patterns := p.Patterns()
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Score != patterns[j].Score {
			return patterns[i].Score > patterns[j].Score
		}
		a, b := patterns[i].Key, patterns[j].Key
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		if a.FieldKey != b.FieldKey {
			return a.FieldKey < b.FieldKey
		}
		return a.EndTime < b.EndTime
	})

	rank := 0
	for _, pattern := range patterns {
		matched := p.matching(pattern.Key)
		if pattern.SlotType.GameCapable() {
			rank++
			for _, entry := range matched {
				entry.PriorityRank = rank
			}
			continue
		}
		for _, entry := range matched {
			entry.PriorityRank = 0
		}
	}
}

// matching returns the live entries sharing the key, earliest date first.
func (p *Plan) matching(key PatternKey) []*PlanEntry {
	var matched []*PlanEntry
	for _, entry := range p.entries {
		if entry.Key() == key {
			matched = append(matched, entry)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].GameDate.Equal(matched[j].GameDate) {
			return matched[i].GameDate.Before(matched[j].GameDate)
		}
		return matched[i].SlotID < matched[j].SlotID
	})
	return matched
}

func sortEntries(entries []PlanEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].GameDate.Equal(entries[j].GameDate) {
			return entries[i].GameDate.Before(entries[j].GameDate)
		}
		if entries[i].StartTime != entries[j].StartTime {
			return entries[i].StartTime < entries[j].StartTime
		}
		if entries[i].FieldKey != entries[j].FieldKey {
			return entries[i].FieldKey < entries[j].FieldKey
		}
		return entries[i].SlotID < entries[j].SlotID
	})
}
