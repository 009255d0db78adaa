// internal/wizard/steps.go
package wizard

// Step identifies one screen of the five-step wizard flow.
type Step string

const (
	StepBasics     Step = "basics"
	StepPostseason Step = "postseason"
	StepSlotPlan   Step = "slotplan"
	StepRules      Step = "rules"
	StepPreview    Step = "preview"
)

var stepOrder = []Step{StepBasics, StepPostseason, StepSlotPlan, StepRules, StepPreview}

type StepStatus string

const (
	StatusComplete StepStatus = "complete"
	StatusError    StepStatus = "error"
	StatusActive   StepStatus = "active"
	StatusNeutral  StepStatus = "neutral"
)

type StepView struct {
	ID      Step       `json:"id"`
	Status  StepStatus `json:"status"`
	Message string     `json:"message,omitempty"`
}

// stepsLocked derives every step's status from the current values plus the
// last operation error per step. Nothing here is stored; the same inputs
// always render the same statuses. The first neutral step is promoted to
// active.
func (s *Session) stepsLocked() []StepView {
	views := make([]StepView, 0, len(stepOrder))
	for _, step := range stepOrder {
		views = append(views, s.stepStatusLocked(step))
	}
	for i := range views {
		if views[i].Status == StatusNeutral {
			views[i].Status = StatusActive
			break
		}
	}
	return views
}

func (s *Session) stepStatusLocked(step Step) StepView {
	if msg, ok := s.stepErrors[step]; ok {
		return StepView{ID: step, Status: StatusError, Message: msg}
	}

	cfg := s.seasonConfigLocked()
	switch step {
	case StepBasics:
		if s.seasonStart.IsZero() && s.seasonEnd.IsZero() {
			return StepView{ID: step, Status: StatusNeutral}
		}
		if err := cfg.ValidateBasics(); err != nil {
			return StepView{ID: step, Status: StatusError, Message: err.Error()}
		}
		if err := cfg.ValidateBlocked(); err != nil {
			return StepView{ID: step, Status: StatusError, Message: err.Error()}
		}
		return StepView{ID: step, Status: StatusComplete}

	case StepPostseason:
		if s.poolPlay == nil && s.bracket == nil {
			return StepView{ID: step, Status: StatusNeutral, Message: "no postseason configured"}
		}
		if err := cfg.ValidatePostseason(); err != nil {
			return StepView{ID: step, Status: StatusError, Message: err.Error()}
		}
		return StepView{ID: step, Status: StatusComplete}

	case StepSlotPlan:
		if s.plan.Len() == 0 {
			return StepView{ID: step, Status: StatusNeutral, Message: "no slots loaded"}
		}
		if s.plan.GameCapableCount() == 0 {
			return StepView{ID: step, Status: StatusError, Message: "no game-capable slots in the plan"}
		}
		return StepView{ID: step, Status: StatusComplete}

	case StepRules:
		// Every rule has a safe default, so the step cannot be invalid on
		// values alone.
		return StepView{ID: step, Status: StatusComplete}

	case StepPreview:
		if s.lastResult != nil {
			return StepView{ID: step, Status: StatusComplete, Message: s.lastResultKind}
		}
		if err := s.submitGuardsLocked(); err != nil {
			return StepView{ID: step, Status: StatusNeutral, Message: err.Error()}
		}
		return StepView{ID: step, Status: StatusNeutral, Message: "ready to preview"}
	}
	return StepView{ID: step, Status: StatusNeutral}
}
