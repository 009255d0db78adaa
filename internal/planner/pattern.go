// internal/planner/pattern.go
package planner

import (
	"sort"
)

const (
	patternCountWeight = 100
	durationScoreCap   = 20
)

// Pattern is the aggregate view of every plan entry sharing one key.
// SlotType, PriorityRank and StartTime reflect the entries' current
// settings; when a reload leaves entries within one key disagreeing, the
// earliest dated entry wins until the next pattern-level edit re-unifies
// them.
type Pattern struct {
	Key          PatternKey `json:"key"`
	Count        int        `json:"count"`
	Score        int        `json:"score"`
	SlotType     SlotType   `json:"slotType"`
	PriorityRank int        `json:"priorityRank"`
	StartTime    string     `json:"startTime"` // effective, override-aware
	EndTime      string     `json:"endTime"`
}

// BuildPatterns groups entries by pattern key and scores each group.
// Output order is weekday, start time, field key, so identical input always
// renders identically regardless of fetch order.
func BuildPatterns(entries []PlanEntry) []Pattern {
	weekdayCounts := make(map[int]int)
	groups := make(map[PatternKey][]PlanEntry)
	for _, entry := range entries {
		key := entry.Key()
		weekdayCounts[key.Weekday]++
		groups[key] = append(groups[key], entry)
	}

	patterns := make([]Pattern, 0, len(groups))
	for key, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			if !group[i].GameDate.Equal(group[j].GameDate) {
				return group[i].GameDate.Before(group[j].GameDate)
			}
			return group[i].SlotID < group[j].SlotID
		})
		first := group[0]
		patterns = append(patterns, Pattern{
			Key:          key,
			Count:        len(group),
			Score:        patternScore(len(group), weekdayCounts[key.Weekday], durationMinutes(key.StartTime, key.EndTime)),
			SlotType:     first.SlotType,
			PriorityRank: first.PriorityRank,
			StartTime:    first.EffectiveStart(),
			EndTime:      key.EndTime,
		})
	}

	sort.Slice(patterns, func(i, j int) bool {
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
	return patterns
}

// patternScore weights pattern frequency far above weekday popularity, with
// a small bounded bonus for longer windows.
func patternScore(count, weekdayCount, minutes int) int {
	durationBonus := minutes / 15
	if durationBonus > durationScoreCap {
		durationBonus = durationScoreCap
	}
	return count*patternCountWeight + weekdayCount + durationBonus
}
