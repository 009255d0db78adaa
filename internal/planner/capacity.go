// internal/planner/capacity.go
package planner

import (
	"errors"
	"fmt"
	"time"
)

type PhaseKind string

const (
	PhaseRegularSeason PhaseKind = "regularSeason"
	PhasePoolPlay      PhaseKind = "poolPlay"
	PhaseBracket       PhaseKind = "bracket"
)

// bracketSlotRequirement is the fixed slot budget for a single-elimination
// bracket weekend under both requirement models.
const bracketSlotRequirement = 3

// BlockedRange is a labeled blackout window excluded from capacity and from
// the optimizer input. Both bounds are inclusive.
type BlockedRange struct {
	Label string
	Start time.Time
	End   time.Time
}

func (r BlockedRange) Contains(date time.Time) bool {
	date = truncateDate(date)
	return !date.Before(truncateDate(r.Start)) && !date.After(truncateDate(r.End))
}

type PoolPlayConfig struct {
	Start        time.Time
	End          time.Time
	GamesPerTeam int
}

type BracketConfig struct {
	Start time.Time
	End   time.Time
}

// SeasonConfig collects every operator-supplied planning input that the
// capacity model depends on. TeamCount comes from the league roster, not
// the operator.
type SeasonConfig struct {
	Division               string
	SeasonStart            time.Time
	SeasonEnd              time.Time
	MinGamesPerTeam        int
	TeamCount              int
	MaxGamesPerWeekPerTeam int // 0 = no weekly cap configured
	PoolPlay               *PoolPlayConfig
	Bracket                *BracketConfig
	Blocked                []BlockedRange
}

// Validate checks phase date ordering and range containment. It reports the
// first problem found.
func (c SeasonConfig) Validate() error {
	if err := c.ValidateBasics(); err != nil {
		return err
	}
	if err := c.ValidatePostseason(); err != nil {
		return err
	}
	return c.ValidateBlocked()
}

// ValidateBasics checks the season window and game requirement.
func (c SeasonConfig) ValidateBasics() error {
	if c.Division == "" {
		return errors.New("division is required")
	}
	if c.SeasonStart.IsZero() || c.SeasonEnd.IsZero() {
		return errors.New("season start and end dates are required")
	}
	if c.SeasonEnd.Before(c.SeasonStart) {
		return errors.New("season start must be on or before season end")
	}
	if c.MinGamesPerTeam < 1 {
		return errors.New("minimum games per team must be at least 1")
	}
	return nil
}

// ValidatePostseason checks pool play and bracket against each other and
// against the season window. Unconfigured postseason is always valid.
func (c SeasonConfig) ValidatePostseason() error {
	if c.PoolPlay == nil && c.Bracket == nil {
		return nil
	}
	if c.SeasonStart.IsZero() || c.SeasonEnd.IsZero() {
		return errors.New("season start and end dates are required before postseason dates")
	}
	if pool := c.PoolPlay; pool != nil {
		if pool.Start.IsZero() || pool.End.IsZero() {
			return errors.New("pool play start and end dates are required")
		}
		if pool.End.Before(pool.Start) {
			return errors.New("pool play start must be on or before its end")
		}
		if pool.Start.Before(c.SeasonStart) || pool.End.After(c.SeasonEnd) {
			return errors.New("pool play must fall within the season dates")
		}
		if pool.GamesPerTeam < 1 {
			return errors.New("pool play games per team must be at least 1")
		}
	}
	if bracket := c.Bracket; bracket != nil {
		if bracket.Start.IsZero() || bracket.End.IsZero() {
			return errors.New("bracket start and end dates are required")
		}
		if bracket.End.Before(bracket.Start) {
			return errors.New("bracket start must be on or before its end")
		}
		if bracket.Start.Before(c.SeasonStart) {
			return errors.New("bracket must start on or after the season start")
		}
	}
	return nil
}

// ValidateBlocked checks blackout ranges in isolation.
func (c SeasonConfig) ValidateBlocked() error {
	for _, blocked := range c.Blocked {
		if blocked.End.Before(blocked.Start) {
			return fmt.Errorf("blocked range %q ends before it starts", blocked.Label)
		}
	}
	return nil
}

// Phase is a concrete season segment with its effective date range. The
// regular season's effective end is the day before pool play starts when
// pool play is configured.
type Phase struct {
	Kind         PhaseKind
	Configured   bool
	Start, End   time.Time
	GamesPerTeam int
}

func (p Phase) contains(date time.Time) bool {
	if !p.Configured || p.End.Before(p.Start) {
		return false
	}
	return !date.Before(p.Start) && !date.After(p.End)
}

// Phases derives the three season phases in chronological order. All three
// are always present; unconfigured phases carry Configured=false.
func (c SeasonConfig) Phases() []Phase {
	regular := Phase{
		Kind:         PhaseRegularSeason,
		Configured:   !c.SeasonStart.IsZero() && !c.SeasonEnd.IsZero(),
		Start:        truncateDate(c.SeasonStart),
		End:          truncateDate(c.SeasonEnd),
		GamesPerTeam: c.MinGamesPerTeam,
	}
	pool := Phase{Kind: PhasePoolPlay}
	if c.PoolPlay != nil {
		pool.Configured = true
		pool.Start = truncateDate(c.PoolPlay.Start)
		pool.End = truncateDate(c.PoolPlay.End)
		pool.GamesPerTeam = c.PoolPlay.GamesPerTeam
		if regular.Configured {
			regular.End = pool.Start.AddDate(0, 0, -1)
		}
	}
	bracket := Phase{Kind: PhaseBracket}
	if c.Bracket != nil {
		bracket.Configured = true
		bracket.Start = truncateDate(c.Bracket.Start)
		bracket.End = truncateDate(c.Bracket.End)
	}
	return []Phase{regular, pool, bracket}
}

// PhaseCapacity reports one phase's capacity under both requirement models.
// Shortfalls are advisory; they never block a preview or apply on their
// own.
type PhaseCapacity struct {
	Kind           PhaseKind `json:"kind"`
	Configured     bool      `json:"configured"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Available      int       `json:"available"`
	GameCapable    int       `json:"gameCapable"`
	RequiredMin    int       `json:"requiredMin"`
	RequiredCycle  int       `json:"requiredCycle"`
	ShortfallMin   int       `json:"shortfallMin"`
	ShortfallCycle int       `json:"shortfallCycle"`
}

// WeekBucket counts game-capable regular-season slots for the ISO week
// starting at WeekStart (always a Monday).
type WeekBucket struct {
	WeekStart time.Time `json:"weekStart"`
	Slots     int       `json:"slots"`
}

type WeeklyStats struct {
	Weeks []WeekBucket `json:"weeks"`
	Avg   float64      `json:"avg"`
	Max   int          `json:"max"`
	Min   int          `json:"min"`
}

// Metrics is the full derived capacity picture. It is recomputed from
// scratch whenever season dates, phase dates, blocked ranges, team count or
// the slot plan change, and is never persisted.
type Metrics struct {
	Phases                   []PhaseCapacity `json:"phases"`
	Matchups                 int             `json:"matchups"`
	CycleRounds              int             `json:"cycleRounds"`
	TotalRequiredMin         int             `json:"totalRequiredMin"`
	TotalRequiredCycle       int             `json:"totalRequiredCycle"`
	TotalShortfallMin        int             `json:"totalShortfallMin"`
	TotalShortfallCycle      int             `json:"totalShortfallCycle"`
	Weekly                   WeeklyStats     `json:"weekly"`
	MaxGamesSupportedPerWeek int             `json:"maxGamesSupportedPerWeek"`
}

// ComputeMetrics derives capacity for the current plan. Dated slots are
// partitioned into the first phase whose effective range contains them, in
// chronological phase order; blocked dates are excluded everywhere. The
// regular season counts only game-capable slots as available, while pool
// play and bracket may fall back to practice slots, with the game-capable
// subset reported as a hint.
func ComputeMetrics(cfg SeasonConfig, entries []PlanEntry) Metrics {
	phases := cfg.Phases()

	type bucket struct {
		available   int
		gameCapable int
	}
	counts := make([]bucket, len(phases))
	var regularGameDates []time.Time

	for _, entry := range entries {
		date := truncateDate(entry.GameDate)
		if dateBlocked(cfg.Blocked, date) {
			continue
		}
		for i, phase := range phases {
			if !phase.contains(date) {
				continue
			}
			gameCapable := entry.SlotType.GameCapable()
			if phase.Kind == PhaseRegularSeason {
				if gameCapable {
					counts[i].available++
					counts[i].gameCapable++
					regularGameDates = append(regularGameDates, date)
				}
			} else {
				counts[i].available++
				if gameCapable {
					counts[i].gameCapable++
				}
			}
			break
		}
	}

	matchups := roundRobinMatchups(cfg.TeamCount)
	rounds := roundRobinRounds(cfg.TeamCount, cfg.MinGamesPerTeam)

	metrics := Metrics{
		Phases:      make([]PhaseCapacity, 0, len(phases)),
		Matchups:    matchups,
		CycleRounds: rounds,
	}
	for i, phase := range phases {
		capacity := PhaseCapacity{
			Kind:        phase.Kind,
			Configured:  phase.Configured,
			Start:       phase.Start,
			End:         phase.End,
			Available:   counts[i].available,
			GameCapable: counts[i].gameCapable,
		}
		if phase.Configured {
			switch phase.Kind {
			case PhaseRegularSeason:
				capacity.RequiredMin = ceilDiv(cfg.TeamCount*phase.GamesPerTeam, 2)
				capacity.RequiredCycle = matchups * rounds
			case PhasePoolPlay:
				capacity.RequiredMin = ceilDiv(cfg.TeamCount*phase.GamesPerTeam, 2)
				capacity.RequiredCycle = capacity.RequiredMin
			case PhaseBracket:
				capacity.RequiredMin = bracketSlotRequirement
				capacity.RequiredCycle = bracketSlotRequirement
			}
		}
		capacity.ShortfallMin = shortfall(capacity.RequiredMin, capacity.Available)
		capacity.ShortfallCycle = shortfall(capacity.RequiredCycle, capacity.Available)

		metrics.TotalRequiredMin += capacity.RequiredMin
		metrics.TotalRequiredCycle += capacity.RequiredCycle
		metrics.TotalShortfallMin += capacity.ShortfallMin
		metrics.TotalShortfallCycle += capacity.ShortfallCycle
		metrics.Phases = append(metrics.Phases, capacity)
	}

	metrics.Weekly = weeklyStats(phases[0], regularGameDates)
	metrics.MaxGamesSupportedPerWeek = maxWeeklyGames(cfg, metrics.Weekly)
	return metrics
}

// weeklyStats buckets regular-season game-capable slots by the most recent
// Monday on or before each date, covering every week in the phase range.
// Weeks with zero slots are real capacity gaps and stay in the report.
func weeklyStats(regular Phase, dates []time.Time) WeeklyStats {
	if !regular.Configured || regular.End.Before(regular.Start) {
		return WeeklyStats{}
	}

	perWeek := make(map[time.Time]int)
	for _, date := range dates {
		perWeek[mondayOf(date)]++
	}

	var stats WeeklyStats
	total := 0
	first := true
	for week := mondayOf(regular.Start); !week.After(regular.End); week = week.AddDate(0, 0, 7) {
		count := perWeek[week]
		stats.Weeks = append(stats.Weeks, WeekBucket{WeekStart: week, Slots: count})
		total += count
		if count > stats.Max {
			stats.Max = count
		}
		if first || count < stats.Min {
			stats.Min = count
		}
		first = false
	}
	if len(stats.Weeks) > 0 {
		stats.Avg = float64(total) / float64(len(stats.Weeks))
	}
	return stats
}

// maxWeeklyGames bounds weekly throughput by the busiest week's slot count
// and, when a per-team weekly cap is configured, by the games the roster
// can actually play.
func maxWeeklyGames(cfg SeasonConfig, weekly WeeklyStats) int {
	supported := weekly.Max
	if cfg.MaxGamesPerWeekPerTeam > 0 && cfg.TeamCount > 0 {
		teamBound := cfg.TeamCount * cfg.MaxGamesPerWeekPerTeam / 2
		if teamBound < supported {
			supported = teamBound
		}
	}
	return supported
}

func roundRobinMatchups(teams int) int {
	if teams < 2 {
		return 0
	}
	return teams * (teams - 1) / 2
}

func roundRobinRounds(teams, minGamesPerTeam int) int {
	if teams < 2 || minGamesPerTeam < 1 {
		return 0
	}
	return ceilDiv(minGamesPerTeam, teams-1)
}

func dateBlocked(blocked []BlockedRange, date time.Time) bool {
	for _, r := range blocked {
		if r.Contains(date) {
			return true
		}
	}
	return false
}

func shortfall(required, available int) int {
	if required <= available {
		return 0
	}
	return required - available
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
