// internal/wizard/view.go
package wizard

import (
	"time"

	"github.com/tbeckett/slotwizard/internal/leagueapi"
	"github.com/tbeckett/slotwizard/internal/optimizer"
	"github.com/tbeckett/slotwizard/internal/planner"
)

// View is a consistent read snapshot of a session with every derived value
// recomputed: patterns, capacity metrics and step statuses. Handlers and
// the workbook export render from a View and never touch session internals.
type View struct {
	ID              string               `json:"id"`
	CreatedAt       time.Time            `json:"createdAt"`
	Division        string               `json:"division"`
	TeamCount       int                  `json:"teamCount"`
	Teams           []leagueapi.Team     `json:"teams"`
	SeasonStart     string               `json:"seasonStart,omitempty"`
	SeasonEnd       string               `json:"seasonEnd,omitempty"`
	MinGamesPerTeam int                  `json:"minGamesPerTeam"`
	PoolPlay        *PoolPlayParams      `json:"poolPlay,omitempty"`
	Bracket         *BracketParams       `json:"bracket,omitempty"`
	Blocked         []BlockedRangeParams `json:"blocked,omitempty"`
	Rules           Rules                `json:"rules"`
	LoadedFrom      string               `json:"loadedFrom,omitempty"`
	LoadedTo        string               `json:"loadedTo,omitempty"`
	SlotCount       int                  `json:"slotCount"`
	GameCapable     int                  `json:"gameCapable"`
	Patterns        []planner.Pattern    `json:"patterns"`
	Entries         []planner.PlanEntry  `json:"entries"`
	Metrics         planner.Metrics      `json:"metrics"`
	AnchorOption1   string               `json:"anchorOption1,omitempty"`
	AnchorOption2   string               `json:"anchorOption2,omitempty"`
	Steps           []StepView           `json:"steps"`
	Busy            bool                 `json:"busy"`
	Result          *optimizer.Result    `json:"result,omitempty"`
	ResultKind      string               `json:"resultKind,omitempty"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.plan.Entries()
	view := View{
		ID:              s.ID,
		CreatedAt:       s.CreatedAt,
		Division:        s.division,
		TeamCount:       len(s.teams),
		Teams:           append([]leagueapi.Team(nil), s.teams...),
		MinGamesPerTeam: s.minGamesPerTeam,
		Rules:           s.rules,
		LoadedFrom:      s.loadedFrom,
		LoadedTo:        s.loadedTo,
		SlotCount:       len(entries),
		GameCapable:     s.plan.GameCapableCount(),
		Patterns:        planner.BuildPatterns(entries),
		Entries:         entries,
		Metrics:         planner.ComputeMetrics(s.seasonConfigLocked(), entries),
		Steps:           s.stepsLocked(),
		Busy:            s.busy,
		Result:          s.lastResult,
		ResultKind:      s.lastResultKind,
	}
	if !s.seasonStart.IsZero() {
		view.SeasonStart = planner.FormatDate(s.seasonStart)
	}
	if !s.seasonEnd.IsZero() {
		view.SeasonEnd = planner.FormatDate(s.seasonEnd)
	}
	if s.poolPlay != nil {
		view.PoolPlay = &PoolPlayParams{
			StartDate:    planner.FormatDate(s.poolPlay.Start),
			EndDate:      planner.FormatDate(s.poolPlay.End),
			GamesPerTeam: s.poolPlay.GamesPerTeam,
		}
	}
	if s.bracket != nil {
		view.Bracket = &BracketParams{
			StartDate: planner.FormatDate(s.bracket.Start),
			EndDate:   planner.FormatDate(s.bracket.End),
		}
	}
	for _, blocked := range s.blocked {
		view.Blocked = append(view.Blocked, BlockedRangeParams{
			Label:     blocked.Label,
			StartDate: planner.FormatDate(blocked.Start),
			EndDate:   planner.FormatDate(blocked.End),
		})
	}
	if s.anchors.Option1 != nil {
		view.AnchorOption1 = s.anchors.Option1.String()
	}
	if s.anchors.Option2 != nil {
		view.AnchorOption2 = s.anchors.Option2.String()
	}
	return view
}
