// Package wizard holds the season planning sessions behind the scheduling
// wizard: transient, in-memory state that is rebuilt from the league store
// on every load and never persisted.
package wizard

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tbeckett/slotwizard/internal/leagueapi"
	"github.com/tbeckett/slotwizard/internal/optimizer"
	"github.com/tbeckett/slotwizard/internal/planner"
)

// ErrBusy marks submissions rejected because a preview or apply is already
// in flight for the session.
var ErrBusy = errors.New("a preview or apply is already in flight")

// ErrNotReady marks submissions blocked before any network call by an
// incomplete or inconsistent plan.
var ErrNotReady = errors.New("wizard is not ready to submit")

// Rules are the optimizer constraint knobs. Only the weekly cap
// participates in capacity math; the flags ride the payload through
// unchanged.
type Rules struct {
	MaxGamesPerWeekPerTeam int  `json:"maxGamesPerWeekPerTeam"`
	AvoidBackToBackDays    bool `json:"avoidBackToBackDays"`
	BalanceHomeAway        bool `json:"balanceHomeAway"`
	SpreadAcrossFields     bool `json:"spreadAcrossFields"`
}

// Anchors are the up-to-two patterns reserved for recurring guest games.
type Anchors struct {
	Option1 *planner.PatternKey
	Option2 *planner.PatternKey
}

// Session is one operator's planning state for a single division. All
// access is serialized by the session mutex; derivation always runs to
// completion inside it, so readers never observe a half-applied edit.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu              sync.Mutex
	division        string
	teams           []leagueapi.Team
	seasonStart     time.Time
	seasonEnd       time.Time
	minGamesPerTeam int
	poolPlay        *planner.PoolPlayConfig
	bracket         *planner.BracketConfig
	blocked         []planner.BlockedRange
	rules           Rules
	plan            *planner.Plan
	loadedFrom      string
	loadedTo        string
	anchors         Anchors
	busy            bool
	lastResult      *optimizer.Result
	lastResultKind  string
	stepErrors      map[Step]string
}

func newSession(division string, teams []leagueapi.Team, settings leagueapi.LeagueSettings, now time.Time) *Session {
	s := &Session{
		ID:              uuid.New().String(),
		CreatedAt:       now,
		division:        division,
		teams:           teams,
		minGamesPerTeam: settings.MinGamesPerTeam,
		plan:            planner.NewPlan(),
		stepErrors:      make(map[Step]string),
	}
	// League-wide defaults are a convenience prefill; unparseable values
	// just leave the fields blank for the operator.
	if start, err := planner.ParseDate(settings.SeasonStart); err == nil {
		s.seasonStart = start
	}
	if end, err := planner.ParseDate(settings.SeasonEnd); err == nil {
		s.seasonEnd = end
	}
	return s
}

func (s *Session) Division() string {
	return s.division
}

// SetBasics records the season window and the per-team game requirement.
// Invalid input is rejected whole; no field is partially applied.
func (s *Session) SetBasics(seasonStart, seasonEnd string, minGamesPerTeam int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, err := planner.ParseDate(seasonStart)
	if err != nil {
		return s.failStep(StepBasics, fmt.Errorf("seasonStart: %w", err))
	}
	end, err := planner.ParseDate(seasonEnd)
	if err != nil {
		return s.failStep(StepBasics, fmt.Errorf("seasonEnd: %w", err))
	}
	if end.Before(start) {
		return s.failStep(StepBasics, errors.New("season start must be on or before season end"))
	}
	if minGamesPerTeam < 1 {
		return s.failStep(StepBasics, errors.New("minimum games per team must be at least 1"))
	}

	s.seasonStart = start
	s.seasonEnd = end
	s.minGamesPerTeam = minGamesPerTeam
	s.clearStep(StepBasics)
	return nil
}

// PoolPlayParams and BracketParams carry raw postseason input; dates are
// ISO calendar dates.
type PoolPlayParams struct {
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	GamesPerTeam int    `json:"gamesPerTeam"`
}

type BracketParams struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// SetPostseason configures or clears pool play and bracket. The candidate
// configuration is validated as a whole, against the current season dates,
// before anything is stored.
func (s *Session) SetPostseason(pool *PoolPlayParams, bracket *BracketParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var poolCfg *planner.PoolPlayConfig
	if pool != nil {
		start, err := planner.ParseDate(pool.StartDate)
		if err != nil {
			return s.failStep(StepPostseason, fmt.Errorf("poolPlay.startDate: %w", err))
		}
		end, err := planner.ParseDate(pool.EndDate)
		if err != nil {
			return s.failStep(StepPostseason, fmt.Errorf("poolPlay.endDate: %w", err))
		}
		poolCfg = &planner.PoolPlayConfig{Start: start, End: end, GamesPerTeam: pool.GamesPerTeam}
	}
	var bracketCfg *planner.BracketConfig
	if bracket != nil {
		start, err := planner.ParseDate(bracket.StartDate)
		if err != nil {
			return s.failStep(StepPostseason, fmt.Errorf("bracket.startDate: %w", err))
		}
		end, err := planner.ParseDate(bracket.EndDate)
		if err != nil {
			return s.failStep(StepPostseason, fmt.Errorf("bracket.endDate: %w", err))
		}
		bracketCfg = &planner.BracketConfig{Start: start, End: end}
	}

	candidate := s.seasonConfigLocked()
	candidate.PoolPlay = poolCfg
	candidate.Bracket = bracketCfg
	if err := candidate.Validate(); err != nil {
		return s.failStep(StepPostseason, err)
	}

	s.poolPlay = poolCfg
	s.bracket = bracketCfg
	s.clearStep(StepPostseason)
	return nil
}

// BlockedRangeParams is one raw blackout window.
type BlockedRangeParams struct {
	Label     string `json:"label"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// SetBlocked replaces the blackout list.
func (s *Session) SetBlocked(ranges []BlockedRangeParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blocked := make([]planner.BlockedRange, 0, len(ranges))
	for i, r := range ranges {
		start, err := planner.ParseDate(r.StartDate)
		if err != nil {
			return s.failStep(StepBasics, fmt.Errorf("blocked[%d].startDate: %w", i, err))
		}
		end, err := planner.ParseDate(r.EndDate)
		if err != nil {
			return s.failStep(StepBasics, fmt.Errorf("blocked[%d].endDate: %w", i, err))
		}
		if end.Before(start) {
			return s.failStep(StepBasics, fmt.Errorf("blocked[%d] ends before it starts", i))
		}
		blocked = append(blocked, planner.BlockedRange{Label: r.Label, Start: start, End: end})
	}

	s.blocked = blocked
	s.clearStep(StepBasics)
	return nil
}

// SetRules records the optimizer constraint knobs.
func (s *Session) SetRules(rules Rules) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rules.MaxGamesPerWeekPerTeam < 0 {
		return s.failStep(StepRules, errors.New("max games per week per team cannot be negative"))
	}
	s.rules = rules
	s.clearStep(StepRules)
	return nil
}

// EditPattern applies one combined pattern edit. Type, rank and start
// override are validated together before anything is stored, so a rejected
// edit leaves the plan exactly as it was.
func (s *Session) EditPattern(key planner.PatternKey, edit planner.PatternEdit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.plan.EditPattern(key, edit); err != nil {
		return s.failStep(StepSlotPlan, err)
	}
	s.reconcileAnchorsLocked()
	s.clearStep(StepSlotPlan)
	return nil
}

// SetPatternType classifies one pattern, cascading to all of its slots.
func (s *Session) SetPatternType(key planner.PatternKey, slotType planner.SlotType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.plan.SetPatternType(key, slotType); err != nil {
		return s.failStep(StepSlotPlan, err)
	}
	s.reconcileAnchorsLocked()
	s.clearStep(StepSlotPlan)
	return nil
}

// SetPatternRank assigns a priority rank to one pattern.
func (s *Session) SetPatternRank(key planner.PatternKey, rank int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.plan.SetPatternRank(key, rank); err != nil {
		return s.failStep(StepSlotPlan, err)
	}
	s.clearStep(StepSlotPlan)
	return nil
}

// OverrideStartTime moves one pattern's scheduled start.
func (s *Session) OverrideStartTime(key planner.PatternKey, start string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.plan.OverrideStartTime(key, start); err != nil {
		return s.failStep(StepSlotPlan, err)
	}
	s.clearStep(StepSlotPlan)
	return nil
}

// SetAllTypes bulk-classifies every loaded slot.
func (s *Session) SetAllTypes(slotType planner.SlotType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.plan.SetAllTypes(slotType)
	s.reconcileAnchorsLocked()
	s.clearStep(StepSlotPlan)
}

// AutoRank ranks every game-capable pattern by score.
func (s *Session) AutoRank() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.plan.AutoRank()
	s.clearStep(StepSlotPlan)
}

// applySlots merges a successfully fetched slot window into the plan.
// Edits made to surviving slot IDs are preserved; anchors pointing at
// patterns that did not survive are dropped.
func (s *Session) applySlots(dateFrom, dateTo string, slots []planner.Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.plan.LoadSlots(slots)
	s.loadedFrom = dateFrom
	s.loadedTo = dateTo
	s.reconcileAnchorsLocked()
	s.clearStep(StepSlotPlan)
}

// recordLoadError surfaces a failed load on the slot plan step. The prior
// plan stays untouched; the operator retries with an explicit reload.
func (s *Session) recordLoadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stepErrors[StepSlotPlan] = err.Error()
}

// SetAnchors records the guest anchor selections. Keys must reference
// currently game-capable patterns and must not collide.
func (s *Session) SetAnchors(option1, option2 string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	first, err := s.resolveAnchorLocked(option1)
	if err != nil {
		return s.failStep(StepRules, fmt.Errorf("option1: %w", err))
	}
	second, err := s.resolveAnchorLocked(option2)
	if err != nil {
		return s.failStep(StepRules, fmt.Errorf("option2: %w", err))
	}
	if first != nil && second != nil && *first == *second {
		return s.failStep(StepRules, errors.New("guest anchors must reference different patterns"))
	}

	s.anchors = Anchors{Option1: first, Option2: second}
	s.clearStep(StepRules)
	return nil
}

func (s *Session) resolveAnchorLocked(raw string) (*planner.PatternKey, error) {
	if raw == "" {
		return nil, nil
	}
	key, err := planner.ParsePatternKey(raw)
	if err != nil {
		return nil, err
	}
	slotType, ok := s.plan.PatternType(key)
	if !ok {
		return nil, errors.New("pattern is not in the loaded slot plan")
	}
	if !slotType.GameCapable() {
		return nil, errors.New("guest anchors must reference a game or both pattern")
	}
	return &key, nil
}

// reconcileAnchorsLocked drops any anchor whose pattern is no longer a
// game-capable part of the plan. Runs after every change to the loaded
// slots or their classification.
func (s *Session) reconcileAnchorsLocked() {
	keep := func(key *planner.PatternKey) *planner.PatternKey {
		if key == nil {
			return nil
		}
		slotType, ok := s.plan.PatternType(*key)
		if !ok || !slotType.GameCapable() {
			return nil
		}
		return key
	}
	s.anchors.Option1 = keep(s.anchors.Option1)
	s.anchors.Option2 = keep(s.anchors.Option2)
}

func (s *Session) seasonConfigLocked() planner.SeasonConfig {
	return planner.SeasonConfig{
		Division:               s.division,
		SeasonStart:            s.seasonStart,
		SeasonEnd:              s.seasonEnd,
		MinGamesPerTeam:        s.minGamesPerTeam,
		TeamCount:              len(s.teams),
		MaxGamesPerWeekPerTeam: s.rules.MaxGamesPerWeekPerTeam,
		PoolPlay:               s.poolPlay,
		Bracket:                s.bracket,
		Blocked:                s.blocked,
	}
}

// submitGuardsLocked is the client-side gate shared by preview and apply:
// dates must be present and ordered, at least one slot must be able to host
// a game, and guest anchors must not collide. Capacity shortfalls are
// advisory and never block here.
func (s *Session) submitGuardsLocked() error {
	if err := s.seasonConfigLocked().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	if s.plan.GameCapableCount() == 0 {
		return fmt.Errorf("%w: no game-capable slots in the plan", ErrNotReady)
	}
	if s.anchors.Option1 != nil && s.anchors.Option2 != nil && *s.anchors.Option1 == *s.anchors.Option2 {
		return fmt.Errorf("%w: guest anchors reference the same pattern", ErrNotReady)
	}
	return nil
}

func (s *Session) failStep(step Step, err error) error {
	s.stepErrors[step] = err.Error()
	return err
}

func (s *Session) clearStep(step Step) {
	delete(s.stepErrors, step)
}
