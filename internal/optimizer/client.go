// internal/optimizer/client.go
package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnavailable marks optimizer calls that failed to produce a response.
// A response that itself reports scheduling issues is not an error.
var ErrUnavailable = errors.New("optimizer request failed")

// Schedule computation can legitimately take a while on large divisions.
const defaultTimeout = 60 * time.Second

// Payload is the full wizard submission. Preview and Apply send the
// identical shape; only the endpoint differs.
type Payload struct {
	Division        string         `json:"division"`
	SeasonStart     string         `json:"seasonStart"`
	SeasonEnd       string         `json:"seasonEnd"`
	MinGamesPerTeam int            `json:"minGamesPerTeam"`
	TeamCount       int            `json:"teamCount"`
	PoolPlay        *PoolPlayDates `json:"poolPlay,omitempty"`
	Bracket         *PhaseDates    `json:"bracket,omitempty"`
	Rules           Rules          `json:"rules"`
	BlockedRanges   []BlockedRange `json:"blockedRanges"`
	SlotPlan        []PlanSlot     `json:"slotPlan"`
	GuestAnchors    []string       `json:"guestAnchors"`
}

type PhaseDates struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type PoolPlayDates struct {
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	GamesPerTeam int    `json:"gamesPerTeam"`
}

type Rules struct {
	MaxGamesPerWeekPerTeam int  `json:"maxGamesPerWeekPerTeam,omitempty"`
	AvoidBackToBackDays    bool `json:"avoidBackToBackDays"`
	BalanceHomeAway        bool `json:"balanceHomeAway"`
	SpreadAcrossFields     bool `json:"spreadAcrossFields"`
}

type BlockedRange struct {
	Label     string `json:"label"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// PlanSlot is one classified slot in the submission. StartTime is the
// effective (possibly overridden) start.
type PlanSlot struct {
	SlotID       string `json:"slotId"`
	GameDate     string `json:"gameDate"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	FieldKey     string `json:"fieldKey"`
	SlotType     string `json:"slotType"`
	PriorityRank int    `json:"priorityRank,omitempty"`
}

// Result is stored and rendered as received. Interpretation of issues and
// assignments belongs to the optimizer and to presentation, not to the
// planning engine, so the bulk of the response stays raw.
type Result struct {
	Summary     json.RawMessage `json:"summary"`
	Assignments json.RawMessage `json:"assignments"`
	Issues      json.RawMessage `json:"issues"`
	Warnings    json.RawMessage `json:"warnings"`
	TotalIssues int             `json:"totalIssues"`
}

// Assignment is the decoded view of one scheduled game, used only where a
// structured rendering (the workbook export) needs it.
type Assignment struct {
	GameDate  string `json:"gameDate"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	FieldKey  string `json:"fieldKey"`
	HomeTeam  string `json:"homeTeam"`
	AwayTeam  string `json:"awayTeam"`
	Phase     string `json:"phase"`
}

// DecodeAssignments best-effort decodes the raw assignment list. An empty
// or absent list decodes to nil.
func (r Result) DecodeAssignments() ([]Assignment, error) {
	if len(r.Assignments) == 0 {
		return nil, nil
	}
	var assignments []Assignment
	if err := json.Unmarshal(r.Assignments, &assignments); err != nil {
		return nil, fmt.Errorf("decode assignments: %w", err)
	}
	return assignments, nil
}

// Issue is the decoded view of one optimizer-reported problem.
type Issue struct {
	Severity string `json:"severity"`
	Phase    string `json:"phase"`
	Message  string `json:"message"`
}

func (r Result) DecodeIssues() ([]Issue, error) {
	if len(r.Issues) == 0 {
		return nil, nil
	}
	var issues []Issue
	if err := json.Unmarshal(r.Issues, &issues); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}
	return issues, nil
}

// Client submits assembled wizard payloads to the scheduling optimizer.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("optimizer base URL is required")
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}, nil
}

// Preview computes a schedule without committing it.
func (c *Client) Preview(ctx context.Context, payload Payload) (Result, error) {
	return c.post(ctx, "/api/schedule/wizard/preview", payload)
}

// Apply computes and commits a schedule.
func (c *Client) Apply(ctx context.Context, payload Payload) (Result, error) {
	return c.post(ctx, "/api/schedule/wizard/apply", payload)
}

func (c *Client) post(ctx context.Context, path string, payload Payload) (Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("%w: encode payload: %v", ErrUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read %s: %v", ErrUnavailable, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%w: %s returned status %d", ErrUnavailable, path, resp.StatusCode)
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return Result{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return result, nil
}
