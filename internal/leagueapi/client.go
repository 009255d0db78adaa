// internal/leagueapi/client.go
package leagueapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tbeckett/slotwizard/internal/planner"
)

// ErrInvalidWindow marks fetch requests rejected before any network call.
var ErrInvalidWindow = errors.New("invalid slot window")

// ErrUpstream marks league API calls that failed or returned an unusable
// response.
var ErrUpstream = errors.New("league api request failed")

const (
	defaultTimeout  = 15 * time.Second
	defaultPageSize = 100

	// maxSlotPages bounds one slot load so a looping continuation cursor
	// can never hang the wizard.
	maxSlotPages = 50
)

// Client reads divisions, teams and open availability slots from the league
// backing store.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	pageSize int
}

func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("league api base URL is required")
	}
	return &Client{
		baseURL:  baseURL,
		token:    token,
		http:     &http.Client{Timeout: defaultTimeout},
		pageSize: defaultPageSize,
	}, nil
}

// ListOpenSlots fetches every open slot for the division inside the date
// window, following the store's continuation-token cursor page by page.
// Pages are requested sequentially, repeated slot IDs are dropped, and any
// single page failure aborts the whole load.
func (c *Client) ListOpenSlots(ctx context.Context, division, dateFrom, dateTo string) ([]planner.Slot, error) {
	if division == "" {
		return nil, fmt.Errorf("%w: division is required", ErrInvalidWindow)
	}
	from, err := planner.ParseDate(dateFrom)
	if err != nil {
		return nil, fmt.Errorf("%w: dateFrom: %v", ErrInvalidWindow, err)
	}
	to, err := planner.ParseDate(dateTo)
	if err != nil {
		return nil, fmt.Errorf("%w: dateTo: %v", ErrInvalidWindow, err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: dateFrom must be on or before dateTo", ErrInvalidWindow)
	}

	seen := make(map[string]bool)
	var slots []planner.Slot
	token := ""
	for page := 0; page < maxSlotPages; page++ {
		query := url.Values{}
		query.Set("division", division)
		query.Set("dateFrom", dateFrom)
		query.Set("dateTo", dateTo)
		query.Set("status", "Open")
		query.Set("pageSize", fmt.Sprintf("%d", c.pageSize))
		if token != "" {
			query.Set("continuationToken", token)
		}

		body, err := c.get(ctx, "/api/slots", query)
		if err != nil {
			return nil, err
		}
		items, nextToken, err := decodeSlotPage(body)
		if err != nil {
			return nil, err
		}

		for _, record := range items {
			if seen[record.SlotID] {
				continue
			}
			slot, err := record.toSlot()
			if err != nil {
				return nil, err
			}
			seen[record.SlotID] = true
			slots = append(slots, slot)
		}

		if nextToken == "" || len(items) == 0 {
			break
		}
		token = nextToken
	}
	return slots, nil
}

// Divisions lists the division identifiers known to the league.
func (c *Client) Divisions(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/api/divisions", nil)
	if err != nil {
		return nil, err
	}
	var divisions []string
	if err := json.Unmarshal(body, &divisions); err != nil {
		return nil, fmt.Errorf("%w: decode divisions: %v", ErrUpstream, err)
	}
	return divisions, nil
}

// LeagueSettings carries league-wide season defaults used to prefill a new
// wizard session. Empty fields simply leave the wizard blank.
type LeagueSettings struct {
	SeasonStart     string `json:"seasonStart"`
	SeasonEnd       string `json:"seasonEnd"`
	MinGamesPerTeam int    `json:"minGamesPerTeam"`
}

func (c *Client) League(ctx context.Context) (LeagueSettings, error) {
	body, err := c.get(ctx, "/api/league", nil)
	if err != nil {
		return LeagueSettings{}, err
	}
	var settings LeagueSettings
	if err := json.Unmarshal(body, &settings); err != nil {
		return LeagueSettings{}, fmt.Errorf("%w: decode league settings: %v", ErrUpstream, err)
	}
	return settings, nil
}

type Team struct {
	TeamID string `json:"teamId"`
	Name   string `json:"name"`
}

// Teams lists the rostered teams for a division. The wizard only needs the
// count, but names surface in exports.
func (c *Client) Teams(ctx context.Context, division string) ([]Team, error) {
	if division == "" {
		return nil, fmt.Errorf("%w: division is required", ErrInvalidWindow)
	}
	query := url.Values{}
	query.Set("division", division)
	body, err := c.get(ctx, "/api/teams", query)
	if err != nil {
		return nil, err
	}
	var teams []Team
	if err := json.Unmarshal(body, &teams); err != nil {
		return nil, fmt.Errorf("%w: decode teams: %v", ErrUpstream, err)
	}
	return teams, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUpstream, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrUpstream, path, resp.StatusCode)
	}
	return body, nil
}

// slotRecord is the wire shape of one availability slot.
type slotRecord struct {
	SlotID                 string `json:"slotId"`
	GameDate               string `json:"gameDate"`
	StartTime              string `json:"startTime"`
	EndTime                string `json:"endTime"`
	FieldKey               string `json:"fieldKey"`
	AllocationSlotType     string `json:"allocationSlotType"`
	AllocationPriorityRank int    `json:"allocationPriorityRank"`
}

func (r slotRecord) toSlot() (planner.Slot, error) {
	if r.SlotID == "" {
		return planner.Slot{}, fmt.Errorf("%w: slot record missing slotId", ErrUpstream)
	}
	date, err := planner.ParseDate(r.GameDate)
	if err != nil {
		return planner.Slot{}, fmt.Errorf("%w: slot %s gameDate: %v", ErrUpstream, r.SlotID, err)
	}
	start, err := planner.NormalizeTimeOfDay(r.StartTime)
	if err != nil {
		return planner.Slot{}, fmt.Errorf("%w: slot %s startTime: %v", ErrUpstream, r.SlotID, err)
	}
	end, err := planner.NormalizeTimeOfDay(r.EndTime)
	if err != nil {
		return planner.Slot{}, fmt.Errorf("%w: slot %s endTime: %v", ErrUpstream, r.SlotID, err)
	}

	slot := planner.Slot{
		SlotID:    r.SlotID,
		GameDate:  date,
		StartTime: start,
		EndTime:   end,
		FieldKey:  r.FieldKey,
	}
	// Allocation carry-over is best effort; an unrecognized type just means
	// the slot seeds as practice.
	if r.AllocationSlotType != "" {
		if allocType, err := planner.ParseSlotType(r.AllocationSlotType); err == nil {
			slot.AllocationType = allocType
			slot.AllocationRank = r.AllocationPriorityRank
		}
	}
	return slot, nil
}

// decodeSlotPage accepts both page shapes the store serves: a bare JSON
// array, or {"items": [...], "continuationToken": "..."}.
func decodeSlotPage(body []byte) ([]slotRecord, string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []slotRecord
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, "", fmt.Errorf("%w: decode slot page: %v", ErrUpstream, err)
		}
		return items, "", nil
	}
	var page struct {
		Items             []slotRecord `json:"items"`
		ContinuationToken string       `json:"continuationToken"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, "", fmt.Errorf("%w: decode slot page: %v", ErrUpstream, err)
	}
	return page.Items, page.ContinuationToken, nil
}
