// internal/wizard/service.go
package wizard

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/tbeckett/slotwizard/internal/leagueapi"
	"github.com/tbeckett/slotwizard/internal/optimizer"
	"github.com/tbeckett/slotwizard/internal/planner"
)

// LeagueReader is the slice of the league store API the wizard consumes.
type LeagueReader interface {
	Divisions(ctx context.Context) ([]string, error)
	League(ctx context.Context) (leagueapi.LeagueSettings, error)
	Teams(ctx context.Context, division string) ([]leagueapi.Team, error)
	ListOpenSlots(ctx context.Context, division, dateFrom, dateTo string) ([]planner.Slot, error)
}

// ScheduleRunner submits assembled payloads to the external optimizer.
type ScheduleRunner interface {
	Preview(ctx context.Context, payload optimizer.Payload) (optimizer.Result, error)
	Apply(ctx context.Context, payload optimizer.Payload) (optimizer.Result, error)
}

// Service ties sessions to the external collaborators. Pure state edits go
// straight to the session; everything that touches the network goes through
// here.
type Service struct {
	league LeagueReader
	runner ScheduleRunner
	store  *Store
}

func NewService(league LeagueReader, runner ScheduleRunner, store *Store) *Service {
	return &Service{league: league, runner: runner, store: store}
}

func (svc *Service) Store() *Store {
	return svc.store
}

// Divisions proxies the league's division list for session creation.
func (svc *Service) Divisions(ctx context.Context) ([]string, error) {
	return svc.league.Divisions(ctx)
}

// CreateSession starts a planning session for one division. The roster is
// required (capacity math needs the team count); league-wide season
// defaults are a best-effort prefill.
func (svc *Service) CreateSession(ctx context.Context, division string) (*Session, error) {
	if division == "" {
		return nil, errors.New("division is required")
	}
	teams, err := svc.league.Teams(ctx, division)
	if err != nil {
		return nil, err
	}
	settings, err := svc.league.League(ctx)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("league defaults unavailable, starting blank")
		settings = leagueapi.LeagueSettings{}
	}

	session := newSession(division, teams, settings, svc.store.Now())
	svc.store.Add(session)
	log.Ctx(ctx).Info().
		Str("session_id", session.ID).
		Str("division", division).
		Int("teams", len(teams)).
		Msg("wizard session created")
	return session, nil
}

func (svc *Service) Session(id string) (*Session, error) {
	return svc.store.Get(id)
}

func (svc *Service) DeleteSession(id string) bool {
	return svc.store.Delete(id)
}

// LoadSlots fetches the open slots for the window and merges them into the
// session's plan. Any fetch failure leaves the prior plan untouched.
func (svc *Service) LoadSlots(ctx context.Context, id, dateFrom, dateTo string) error {
	session, err := svc.store.Get(id)
	if err != nil {
		return err
	}
	slots, err := svc.league.ListOpenSlots(ctx, session.Division(), dateFrom, dateTo)
	if err != nil {
		session.recordLoadError(err)
		return err
	}
	session.applySlots(dateFrom, dateTo, slots)
	log.Ctx(ctx).Info().
		Str("session_id", id).
		Int("slots", len(slots)).
		Str("date_from", dateFrom).
		Str("date_to", dateTo).
		Msg("slots loaded")
	return nil
}

// Preview submits the plan without committing the schedule.
func (svc *Service) Preview(ctx context.Context, id string) (optimizer.Result, error) {
	return svc.submit(ctx, id, "preview")
}

// Apply submits the plan and commits the schedule.
func (svc *Service) Apply(ctx context.Context, id string) (optimizer.Result, error) {
	return svc.submit(ctx, id, "apply")
}

func (svc *Service) submit(ctx context.Context, id, kind string) (optimizer.Result, error) {
	session, err := svc.store.Get(id)
	if err != nil {
		return optimizer.Result{}, err
	}
	payload, err := session.beginSubmit()
	if err != nil {
		return optimizer.Result{}, err
	}

	var result optimizer.Result
	if kind == "apply" {
		result, err = svc.runner.Apply(ctx, payload)
	} else {
		result, err = svc.runner.Preview(ctx, payload)
	}
	session.finishSubmit(kind, result, err)
	if err != nil {
		return optimizer.Result{}, err
	}
	log.Ctx(ctx).Info().
		Str("session_id", id).
		Str("kind", kind).
		Int("slots", len(payload.SlotPlan)).
		Int("total_issues", result.TotalIssues).
		Msg("optimizer run finished")
	return result, nil
}
