// internal/wizard/payload.go
package wizard

import (
	"github.com/tbeckett/slotwizard/internal/optimizer"
	"github.com/tbeckett/slotwizard/internal/planner"
)

// payloadLocked assembles the submission sent to the optimizer. Preview and
// apply share this exact shape; slot identity rides through untouched so
// the optimizer can reference specific slots in its assignments.
func (s *Session) payloadLocked() optimizer.Payload {
	entries := s.plan.Entries()
	slots := make([]optimizer.PlanSlot, 0, len(entries))
	for _, entry := range entries {
		slots = append(slots, optimizer.PlanSlot{
			SlotID:       entry.SlotID,
			GameDate:     planner.FormatDate(entry.GameDate),
			StartTime:    entry.EffectiveStart(),
			EndTime:      entry.EndTime,
			FieldKey:     entry.FieldKey,
			SlotType:     string(entry.SlotType),
			PriorityRank: entry.PriorityRank,
		})
	}

	payload := optimizer.Payload{
		Division:        s.division,
		SeasonStart:     planner.FormatDate(s.seasonStart),
		SeasonEnd:       planner.FormatDate(s.seasonEnd),
		MinGamesPerTeam: s.minGamesPerTeam,
		TeamCount:       len(s.teams),
		Rules: optimizer.Rules{
			MaxGamesPerWeekPerTeam: s.rules.MaxGamesPerWeekPerTeam,
			AvoidBackToBackDays:    s.rules.AvoidBackToBackDays,
			BalanceHomeAway:        s.rules.BalanceHomeAway,
			SpreadAcrossFields:     s.rules.SpreadAcrossFields,
		},
		BlockedRanges: make([]optimizer.BlockedRange, 0, len(s.blocked)),
		SlotPlan:      slots,
		GuestAnchors:  make([]string, 0, 2),
	}
	if s.poolPlay != nil {
		payload.PoolPlay = &optimizer.PoolPlayDates{
			StartDate:    planner.FormatDate(s.poolPlay.Start),
			EndDate:      planner.FormatDate(s.poolPlay.End),
			GamesPerTeam: s.poolPlay.GamesPerTeam,
		}
	}
	if s.bracket != nil {
		payload.Bracket = &optimizer.PhaseDates{
			StartDate: planner.FormatDate(s.bracket.Start),
			EndDate:   planner.FormatDate(s.bracket.End),
		}
	}
	for _, blocked := range s.blocked {
		payload.BlockedRanges = append(payload.BlockedRanges, optimizer.BlockedRange{
			Label:     blocked.Label,
			StartDate: planner.FormatDate(blocked.Start),
			EndDate:   planner.FormatDate(blocked.End),
		})
	}
	if s.anchors.Option1 != nil {
		payload.GuestAnchors = append(payload.GuestAnchors, s.anchors.Option1.String())
	}
	if s.anchors.Option2 != nil {
		payload.GuestAnchors = append(payload.GuestAnchors, s.anchors.Option2.String())
	}
	return payload
}

// beginSubmit gates one preview or apply: the session must not already
// have one in flight and the client-side guards must pass. On success the
// busy flag is held until finishSubmit.
func (s *Session) beginSubmit() (optimizer.Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return optimizer.Payload{}, ErrBusy
	}
	if err := s.submitGuardsLocked(); err != nil {
		return optimizer.Payload{}, err
	}
	s.busy = true
	return s.payloadLocked(), nil
}

// finishSubmit releases the busy flag and records the outcome. If the
// session was deleted while the call was in flight the result lands on the
// orphaned session and is discarded with it.
func (s *Session) finishSubmit(kind string, result optimizer.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.busy = false
	if err != nil {
		s.stepErrors[StepPreview] = err.Error()
		return
	}
	s.lastResult = &result
	s.lastResultKind = kind
	s.clearStep(StepPreview)
}
