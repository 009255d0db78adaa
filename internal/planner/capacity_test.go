package planner

import (
	"math"
	"strings"
	"testing"
)

// fixtureConfig pairs with fixtureSlots: a six-team spring season with pool
// play in the second-to-last week, a bracket weekend, and one blocked
// Saturday.
func fixtureConfig() SeasonConfig {
	return SeasonConfig{
		Division:        "10U",
		SeasonStart:     mustDate("2026-04-06"),
		SeasonEnd:       mustDate("2026-05-31"),
		MinGamesPerTeam: 9,
		TeamCount:       6,
		PoolPlay:        &PoolPlayConfig{Start: mustDate("2026-05-18"), End: mustDate("2026-05-24"), GamesPerTeam: 3},
		Bracket:         &BracketConfig{Start: mustDate("2026-05-30"), End: mustDate("2026-05-31")},
		Blocked:         []BlockedRange{{Label: "Spring Break", Start: mustDate("2026-04-18"), End: mustDate("2026-04-18")}},
	}
}

func phaseByKind(t *testing.T, m Metrics, kind PhaseKind) PhaseCapacity {
	t.Helper()
	for _, p := range m.Phases {
		if p.Kind == kind {
			return p
		}
	}
	t.Fatalf("phase %s missing from metrics", kind)
	return PhaseCapacity{}
}

func TestComputeMetrics(t *testing.T) {
	plan := NewPlan()
	plan.LoadSlots(fixtureSlots())
	plan.SetAllTypes(SlotTypeGame)
	cfg := fixtureConfig()
	metrics := ComputeMetrics(cfg, plan.Entries())

	t.Run("regular season counts only unblocked game slots", func(t *testing.T) {
		regular := phaseByKind(t, metrics, PhaseRegularSeason)
		// 6 Tuesdays + 4 Saturdays on field-2 + 2 on field-1, minus both
		// slots on the blocked April 18.
		if regular.Available != 10 {
			t.Errorf("available = %d, want 10", regular.Available)
		}
		if regular.GameCapable != 10 {
			t.Errorf("game capable = %d, want 10", regular.GameCapable)
		}
	})

	t.Run("regular season ends the day before pool play", func(t *testing.T) {
		regular := phaseByKind(t, metrics, PhaseRegularSeason)
		if got := FormatDate(regular.End); got != "2026-05-17" {
			t.Errorf("effective end = %s, want 2026-05-17", got)
		}
	})

	t.Run("requirement models stay independent", func(t *testing.T) {
		regular := phaseByKind(t, metrics, PhaseRegularSeason)
		// Minimum: ceil(6×9/2) = 27. Cycle: 15 matchups × ceil(9/5) rounds = 30.
		if regular.RequiredMin != 27 {
			t.Errorf("required min = %d, want 27", regular.RequiredMin)
		}
		if regular.RequiredCycle != 30 {
			t.Errorf("required cycle = %d, want 30", regular.RequiredCycle)
		}
		if regular.ShortfallMin != 17 {
			t.Errorf("shortfall min = %d, want 17", regular.ShortfallMin)
		}
		if regular.ShortfallCycle != 20 {
			t.Errorf("shortfall cycle = %d, want 20", regular.ShortfallCycle)
		}
		if metrics.Matchups != 15 || metrics.CycleRounds != 2 {
			t.Errorf("matchups/rounds = %d/%d, want 15/2", metrics.Matchups, metrics.CycleRounds)
		}
	})

	t.Run("pool play and bracket requirements", func(t *testing.T) {
		pool := phaseByKind(t, metrics, PhasePoolPlay)
		if pool.RequiredMin != 9 || pool.RequiredCycle != 9 {
			t.Errorf("pool required = %d/%d, want 9/9", pool.RequiredMin, pool.RequiredCycle)
		}
		if pool.Available != 0 || pool.ShortfallMin != 9 {
			t.Errorf("pool available/shortfall = %d/%d, want 0/9", pool.Available, pool.ShortfallMin)
		}
		bracket := phaseByKind(t, metrics, PhaseBracket)
		if bracket.RequiredMin != 3 || bracket.RequiredCycle != 3 {
			t.Errorf("bracket required = %d/%d, want 3/3", bracket.RequiredMin, bracket.RequiredCycle)
		}
	})

	t.Run("aggregate totals sum the phases", func(t *testing.T) {
		if metrics.TotalRequiredMin != 39 || metrics.TotalRequiredCycle != 42 {
			t.Errorf("total required = %d/%d, want 39/42", metrics.TotalRequiredMin, metrics.TotalRequiredCycle)
		}
		if metrics.TotalShortfallMin != 29 || metrics.TotalShortfallCycle != 32 {
			t.Errorf("total shortfall = %d/%d, want 29/32", metrics.TotalShortfallMin, metrics.TotalShortfallCycle)
		}
	})

	t.Run("weekly buckets are Monday-keyed", func(t *testing.T) {
		weekly := metrics.Weekly
		if len(weekly.Weeks) != 6 {
			t.Fatalf("weeks = %d, want 6", len(weekly.Weeks))
		}
		wantCounts := []int{3, 1, 2, 2, 1, 1}
		for i, bucket := range weekly.Weeks {
			if bucket.WeekStart.Weekday().String() != "Monday" {
				t.Errorf("week %d starts on %s", i, bucket.WeekStart.Weekday())
			}
			if bucket.Slots != wantCounts[i] {
				t.Errorf("week %d slots = %d, want %d", i, bucket.Slots, wantCounts[i])
			}
		}
		if weekly.Max != 3 || weekly.Min != 1 {
			t.Errorf("max/min = %d/%d, want 3/1", weekly.Max, weekly.Min)
		}
		if math.Abs(weekly.Avg-10.0/6.0) > 1e-9 {
			t.Errorf("avg = %f, want %f", weekly.Avg, 10.0/6.0)
		}
	})

	t.Run("weekly slot capacity bounds supported games", func(t *testing.T) {
		if metrics.MaxGamesSupportedPerWeek != 3 {
			t.Errorf("max games per week = %d, want 3", metrics.MaxGamesSupportedPerWeek)
		}
	})
}

func TestComputeMetricsPracticeFallback(t *testing.T) {
	plan := NewPlan()
	plan.LoadSlots([]Slot{
		slot("r1", "2026-04-07", "18:00", "19:30", "field-1"), // regular, stays practice
		slot("p1", "2026-05-19", "18:00", "19:30", "field-1"), // pool play, practice
		slot("p2", "2026-05-23", "09:00", "10:30", "field-2"), // pool play
	})
	key := PatternKey{Weekday: 5, StartTime: "09:00", EndTime: "10:30", FieldKey: "field-2"}
	if err := plan.SetPatternType(key, SlotTypeGame); err != nil {
		t.Fatalf("set type: %v", err)
	}
	metrics := ComputeMetrics(fixtureConfig(), plan.Entries())

	regular := phaseByKind(t, metrics, PhaseRegularSeason)
	if regular.Available != 0 {
		t.Errorf("regular available = %d, want 0 (practice slots never count)", regular.Available)
	}
	pool := phaseByKind(t, metrics, PhasePoolPlay)
	if pool.Available != 2 {
		t.Errorf("pool available = %d, want 2 (practice counts as fallback)", pool.Available)
	}
	if pool.GameCapable != 1 {
		t.Errorf("pool game capable = %d, want 1", pool.GameCapable)
	}
}

func TestComputeMetricsPerTeamWeeklyCap(t *testing.T) {
	plan := NewPlan()
	plan.LoadSlots([]Slot{
		slot("w1", "2026-04-07", "18:00", "19:00", "field-1"),
		slot("w2", "2026-04-08", "18:00", "19:00", "field-1"),
		slot("w3", "2026-04-09", "18:00", "19:00", "field-1"),
	})
	plan.SetAllTypes(SlotTypeGame)

	cfg := fixtureConfig()
	cfg.TeamCount = 5
	cfg.MaxGamesPerWeekPerTeam = 1
	metrics := ComputeMetrics(cfg, plan.Entries())

	// Busiest week has 3 slots, but 5 teams at 1 game each support only
	// floor(5/2) = 2 games.
	if metrics.Weekly.Max != 3 {
		t.Fatalf("weekly max = %d, want 3", metrics.Weekly.Max)
	}
	if metrics.MaxGamesSupportedPerWeek != 2 {
		t.Errorf("max games per week = %d, want 2", metrics.MaxGamesSupportedPerWeek)
	}
}

func TestComputeMetricsSmallRosters(t *testing.T) {
	plan := NewPlan()
	plan.LoadSlots(fixtureSlots())
	plan.SetAllTypes(SlotTypeGame)
	cfg := fixtureConfig()
	cfg.TeamCount = 1

	metrics := ComputeMetrics(cfg, plan.Entries())
	if metrics.Matchups != 0 || metrics.CycleRounds != 0 {
		t.Errorf("matchups/rounds = %d/%d, want 0/0 for one team", metrics.Matchups, metrics.CycleRounds)
	}
	regular := phaseByKind(t, metrics, PhaseRegularSeason)
	if regular.RequiredCycle != 0 {
		t.Errorf("required cycle = %d, want 0", regular.RequiredCycle)
	}
	// The minimum model still applies literally: ceil(1×9/2) = 5.
	if regular.RequiredMin != 5 {
		t.Errorf("required min = %d, want 5", regular.RequiredMin)
	}
}

func TestComputeMetricsUnconfiguredPhases(t *testing.T) {
	plan := NewPlan()
	plan.LoadSlots(fixtureSlots())
	plan.SetAllTypes(SlotTypeGame)
	cfg := fixtureConfig()
	cfg.PoolPlay = nil
	cfg.Bracket = nil

	metrics := ComputeMetrics(cfg, plan.Entries())
	if len(metrics.Phases) != 3 {
		t.Fatalf("phases = %d, want 3", len(metrics.Phases))
	}
	pool := phaseByKind(t, metrics, PhasePoolPlay)
	if pool.Configured || pool.RequiredMin != 0 || pool.Available != 0 {
		t.Errorf("unconfigured pool = %+v, want zeroed", pool)
	}
	regular := phaseByKind(t, metrics, PhaseRegularSeason)
	if got := FormatDate(regular.End); got != "2026-05-31" {
		t.Errorf("regular end = %s, want full season end", got)
	}

	weekly := metrics.Weekly
	if len(weekly.Weeks) != 8 {
		t.Fatalf("weeks = %d, want 8 across the full season", len(weekly.Weeks))
	}
	// No fixture slot falls after May 12; the season's last two weeks must
	// still appear as zero-slot buckets.
	for i, bucket := range weekly.Weeks[6:] {
		if bucket.Slots != 0 {
			t.Errorf("trailing week %d slots = %d, want 0", i+6, bucket.Slots)
		}
	}
	if weekly.Min != 0 {
		t.Errorf("min = %d, want 0 with empty weeks", weekly.Min)
	}
}

func TestComputeMetricsEmptyConfig(t *testing.T) {
	metrics := ComputeMetrics(SeasonConfig{}, nil)
	if len(metrics.Phases) != 3 {
		t.Fatalf("phases = %d, want 3", len(metrics.Phases))
	}
	if len(metrics.Weekly.Weeks) != 0 {
		t.Errorf("weeks = %d, want 0 with no season dates", len(metrics.Weekly.Weeks))
	}
}

func TestSeasonConfigValidate(t *testing.T) {
	if err := fixtureConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*SeasonConfig)
		keyword string
	}{
		{"missing division", func(c *SeasonConfig) { c.Division = "" }, "division"},
		{"season inverted", func(c *SeasonConfig) { c.SeasonStart, c.SeasonEnd = c.SeasonEnd, c.SeasonStart }, "season"},
		{"zero games", func(c *SeasonConfig) { c.MinGamesPerTeam = 0 }, "games"},
		{"pool inverted", func(c *SeasonConfig) {
			c.PoolPlay.Start, c.PoolPlay.End = c.PoolPlay.End, c.PoolPlay.Start
		}, "pool play"},
		{"pool outside season", func(c *SeasonConfig) { c.PoolPlay.End = mustDate("2026-06-15") }, "within the season"},
		{"bracket before season", func(c *SeasonConfig) { c.Bracket.Start = mustDate("2026-03-01") }, "bracket"},
		{"blocked inverted", func(c *SeasonConfig) {
			c.Blocked[0].End = mustDate("2026-04-01")
		}, "blocked"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := fixtureConfig()
			pool := *cfg.PoolPlay
			bracket := *cfg.Bracket
			cfg.PoolPlay = &pool
			cfg.Bracket = &bracket
			cfg.Blocked = append([]BlockedRange(nil), cfg.Blocked...)
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !strings.Contains(strings.ToLower(err.Error()), tc.keyword) {
				t.Errorf("error %q does not mention %q", err, tc.keyword)
			}
		})
	}
}
