// internal/api/wizard/handlers.go
package wizard

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbeckett/slotwizard/internal/api/apiutil"
	"github.com/tbeckett/slotwizard/internal/export"
	"github.com/tbeckett/slotwizard/internal/leagueapi"
	"github.com/tbeckett/slotwizard/internal/optimizer"
	"github.com/tbeckett/slotwizard/internal/planner"
	"github.com/tbeckett/slotwizard/internal/ratelimit"
	wizardcore "github.com/tbeckett/slotwizard/internal/wizard"
)

const sessionIDPathKey = "id"

var (
	service     *wizardcore.Service
	limiter     *ratelimit.Limiter
	serviceOnce sync.Once
)

type createSessionRequest struct {
	Division string `json:"division"`
}

type basicsRequest struct {
	SeasonStart     string `json:"seasonStart"`
	SeasonEnd       string `json:"seasonEnd"`
	MinGamesPerTeam int    `json:"minGamesPerTeam"`
}

type postseasonRequest struct {
	PoolPlay *wizardcore.PoolPlayParams `json:"poolPlay"`
	Bracket  *wizardcore.BracketParams  `json:"bracket"`
}

type blockedRequest struct {
	Ranges []wizardcore.BlockedRangeParams `json:"ranges"`
}

type anchorsRequest struct {
	Option1 string `json:"option1"`
	Option2 string `json:"option2"`
}

type loadSlotsRequest struct {
	DateFrom string `json:"dateFrom"`
	DateTo   string `json:"dateTo"`
}

type patternEditRequest struct {
	PatternKey   string  `json:"patternKey"`
	SlotType     *string `json:"slotType"`
	PriorityRank *int    `json:"priorityRank"`
	StartTime    *string `json:"startTime"`
}

type bulkTypeRequest struct {
	SlotType string `json:"slotType"`
}

// InitHandlers must be called during server startup before handling requests.
// A nil limiter disables submission throttling.
func InitHandlers(svc *wizardcore.Service, lim *ratelimit.Limiter) {
	if svc == nil {
		return
	}
	serviceOnce.Do(func() {
		service = svc
		limiter = lim
	})
}

// GET /api/v1/divisions
func HandleDivisions(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Wizard service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	divisions, err := svc.Divisions(r.Context())
	if err != nil {
		writeWizardError(w, r, err, "Failed to load divisions")
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, divisions); err != nil {
		logger.Error().Err(err).Msg("Failed to write divisions response")
	}
}

// POST /api/v1/wizard/sessions
func HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Wizard service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var req createSessionRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	division, err := apiutil.RequireField(req.Division, "division")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := svc.CreateSession(r.Context(), division)
	if err != nil {
		writeWizardError(w, r, err, "Failed to create planning session")
		return
	}
	writeView(w, r, http.StatusCreated, session)
}

// GET /api/v1/wizard/sessions/{id}
func HandleGetSession(w http.ResponseWriter, r *http.Request) {
	svc := loadService()
	if svc == nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	session, ok := sessionFromRequest(w, r, svc)
	if !ok {
		return
	}
	writeView(w, r, http.StatusOK, session)
}

// DELETE /api/v1/wizard/sessions/{id}
func HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	svc := loadService()
	if svc == nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	id := strings.TrimSpace(r.PathValue(sessionIDPathKey))
	if id == "" {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	if !svc.DeleteSession(id) {
		http.Error(w, "Planning session not found", http.StatusNotFound)
		return
	}
	if limiter != nil {
		limiter.Forget(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/v1/wizard/sessions/{id}/basics
func HandleUpdateBasics(w http.ResponseWriter, r *http.Request) {
	svc := loadService()
	if svc == nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	session, ok := sessionFromRequest(w, r, svc)
	if !ok {
		return
	}

	var req basicsRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := session.SetBasics(req.SeasonStart, req.SeasonEnd, req.MinGamesPerTeam); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeView(w, r, http.StatusOK, session)
}

// PUT /api/v1/wizard/sessions/{id}/postseason
func HandleUpdatePostseason(w http.ResponseWriter, r *http.Request) {
	svc := loadService()
	if svc == nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	session, ok := sessionFromRequest(w, r, svc)
	if !ok {
		return
	}

	var req postseasonRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := session.SetPostseason(req.PoolPlay, req.Bracket); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeView(w, r, http.StatusOK, session)
}

// PUT /api/v1/wizard/sessions/{id}/rules
func HandleUpdateRules(w http.ResponseWriter, r *http.Request) {
	svc := loadService()
	if svc == nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	session, ok := sessionFromRequest(w, r, svc)
	if !ok {
		return
	}

	var req wizardcore.Rules
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := session.SetRules(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeView(w, r, http.StatusOK, session)
}

// PUT /api/v1/wizard/sessions/{id}/blocked
func HandleUpdateBlocked(w http.ResponseWriter, r *http.Request) {
	svc := loadService()
	if svc == nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	session, ok := sessionFromRequest(w, r, svc)
	if !ok {
		return
	}

	var req blockedRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := session.SetBlocked(req.Ranges); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeView(w, r, http.StatusOK, session)
}

// PUT /api/v1/wizard/sessions/{id}/anchors
func HandleUpdateAnchors(w http.ResponseWriter, r *http.Request) {
	svc := loadService()
	if svc == nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	session, ok := sessionFromRequest(w, r, svc)
	if !ok {
		return
	}

	var req anchorsRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := session.SetAnchors(req.Option1, req.Option2); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeView(w, r, http.StatusOK, session)
}

// POST /api/v1/wizard/sessions/{id}/slots/load
func HandleLoadSlots(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Wizard service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	id := strings.TrimSpace(r.PathValue(sessionIDPathKey))
	if id == "" {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	var req loadSlotsRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := svc.LoadSlots(r.Context(), id, req.DateFrom, req.DateTo); err != nil {
		writeWizardError(w, r, err, "Failed to load slots from the league store")
		return
	}
	session, err := svc.Session(id)
	if err != nil {
		writeWizardError(w, r, err, "Failed to load slots from the league store")
		return
	}
	writeView(w, r, http.StatusOK, session)
}

// GET /api/v1/wizard/sessions/{id}/patterns
func HandleListPatterns(w http.ResponseWriter, r *http.Request) {
	svc := loadService()
	if svc == nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	session, ok := sessionFromRequest(w, r, svc)
	if !ok {
		return
	}
	view := session.View()
	if err := apiutil.WriteJSON(w, http.StatusOK, view.Patterns); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write patterns response")
	}
}

// PATCH /api/v1/wizard/sessions/{id}/patterns
func HandlePatternEdit(w http.ResponseWriter, r *http.Request) {
	svc := loadService()
	if svc == nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	session, ok := sessionFromRequest(w, r, svc)
	if !ok {
		return
	}

	var req patternEditRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	key, err := planner.ParsePatternKey(req.PatternKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.SlotType == nil && req.PriorityRank == nil && req.StartTime == nil {
		http.Error(w, "nothing to change: provide slotType, priorityRank or startTime", http.StatusBadRequest)
		return
	}

	edit := planner.PatternEdit{Rank: req.PriorityRank, StartTime: req.StartTime}
	if req.SlotType != nil {
		slotType, err := planner.ParseSlotType(*req.SlotType)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		edit.SlotType = &slotType
	}
	if err := session.EditPattern(key, edit); err != nil {
		writePatternEditError(w, err)
		return
	}
	writeView(w, r, http.StatusOK, session)
}

// POST /api/v1/wizard/sessions/{id}/patterns/autorank
func HandleAutoRank(w http.ResponseWriter, r *http.Request) {
	svc := loadService()
	if svc == nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	session, ok := sessionFromRequest(w, r, svc)
	if !ok {
		return
	}
	session.AutoRank()
	writeView(w, r, http.StatusOK, session)
}

// POST /api/v1/wizard/sessions/{id}/patterns/bulk
func HandleBulkType(w http.ResponseWriter, r *http.Request) {
	svc := loadService()
	if svc == nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	session, ok := sessionFromRequest(w, r, svc)
	if !ok {
		return
	}

	var req bulkTypeRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	slotType, err := planner.ParseSlotType(req.SlotType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	session.SetAllTypes(slotType)
	writeView(w, r, http.StatusOK, session)
}

// GET /api/v1/wizard/sessions/{id}/capacity
func HandleCapacity(w http.ResponseWriter, r *http.Request) {
	svc := loadService()
	if svc == nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	session, ok := sessionFromRequest(w, r, svc)
	if !ok {
		return
	}
	view := session.View()
	if err := apiutil.WriteJSON(w, http.StatusOK, view.Metrics); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write capacity response")
	}
}

// GET /api/v1/wizard/sessions/{id}/steps
func HandleSteps(w http.ResponseWriter, r *http.Request) {
	svc := loadService()
	if svc == nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	session, ok := sessionFromRequest(w, r, svc)
	if !ok {
		return
	}
	view := session.View()
	if err := apiutil.WriteJSON(w, http.StatusOK, view.Steps); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write steps response")
	}
}

// POST /api/v1/wizard/sessions/{id}/preview
func HandlePreview(w http.ResponseWriter, r *http.Request) {
	handleSubmit(w, r, false)
}

// POST /api/v1/wizard/sessions/{id}/apply
func HandleApply(w http.ResponseWriter, r *http.Request) {
	handleSubmit(w, r, true)
}

func handleSubmit(w http.ResponseWriter, r *http.Request, apply bool) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Wizard service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	id := strings.TrimSpace(r.PathValue(sessionIDPathKey))
	if id == "" {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	ip := ratelimit.GetClientIP(r, true)
	if limiter != nil {
		if res := limiter.CheckSubmit(id, ip); !res.Allowed {
			logger.Warn().
				Str("session_id", id).
				Str("ip", ip).
				Str("reason", res.Reason).
				Msg("Schedule computation rate limited")
			w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			http.Error(w, "Too many schedule computations for this session", http.StatusTooManyRequests)
			return
		}
	}

	var result optimizer.Result
	var err error
	if apply {
		result, err = svc.Apply(r.Context(), id)
	} else {
		result, err = svc.Preview(r.Context(), id)
	}
	if err != nil {
		// Rejections that never reached the optimizer do not consume quota.
		if limiter != nil && !errors.Is(err, wizardcore.ErrBusy) &&
			!errors.Is(err, wizardcore.ErrNotReady) && !errors.Is(err, wizardcore.ErrSessionNotFound) {
			limiter.RecordSubmit(id, ip)
		}
		writeWizardError(w, r, err, "Schedule computation failed")
		return
	}
	if limiter != nil {
		limiter.RecordSubmit(id, ip)
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, result); err != nil {
		logger.Error().Err(err).Str("session_id", id).Msg("Failed to write schedule result")
	}
}

// GET /api/v1/wizard/sessions/{id}/export
func HandleExport(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Wizard service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	session, ok := sessionFromRequest(w, r, svc)
	if !ok {
		return
	}

	view := session.View()
	workbook, err := export.BuildWorkbook(view)
	if err != nil {
		logger.Error().Err(err).Str("session_id", view.ID).Msg("Failed to build export workbook")
		http.Error(w, "Failed to build export", http.StatusInternalServerError)
		return
	}
	defer workbook.Close()

	filename := fmt.Sprintf("slot-plan-%s-%s.xlsx", view.Division, time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := workbook.Write(w); err != nil {
		logger.Error().Err(err).Str("session_id", view.ID).Msg("Failed to stream export workbook")
	}
}

func loadService() *wizardcore.Service {
	return service
}

func sessionFromRequest(w http.ResponseWriter, r *http.Request, svc *wizardcore.Service) (*wizardcore.Session, bool) {
	id := strings.TrimSpace(r.PathValue(sessionIDPathKey))
	if id == "" {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return nil, false
	}
	session, err := svc.Session(id)
	if err != nil {
		http.Error(w, "Planning session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func writeView(w http.ResponseWriter, r *http.Request, status int, session *wizardcore.Session) {
	if err := apiutil.WriteJSON(w, status, session.View()); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write session view")
	}
}

func writePatternEditError(w http.ResponseWriter, err error) {
	if errors.Is(err, planner.ErrUnknownPattern) {
		http.Error(w, "Pattern is not in the loaded slot plan", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

// writeWizardError maps service errors onto HTTP statuses. Validation errors
// from direct session edits never come through here; those stay 400 at the
// call site.
func writeWizardError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	logger := log.Ctx(r.Context())

	switch {
	case errors.Is(err, wizardcore.ErrSessionNotFound):
		http.Error(w, "Planning session not found", http.StatusNotFound)
	case errors.Is(err, wizardcore.ErrBusy):
		http.Error(w, "A preview or apply is already running for this session", http.StatusConflict)
	case errors.Is(err, wizardcore.ErrNotReady):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, leagueapi.ErrInvalidWindow):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, leagueapi.ErrUpstream):
		logger.Error().Err(err).Msg(fallback)
		http.Error(w, fallback, http.StatusBadGateway)
	case errors.Is(err, optimizer.ErrUnavailable):
		logger.Error().Err(err).Msg(fallback)
		http.Error(w, fallback, http.StatusBadGateway)
	default:
		logger.Error().Err(err).Msg(fallback)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}
