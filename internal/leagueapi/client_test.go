package leagueapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tbeckett/slotwizard/internal/planner"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.URL, "test-token")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, server
}

func slotJSON(id, date, start, end, field string) map[string]any {
	return map[string]any{
		"slotId":    id,
		"gameDate":  date,
		"startTime": start,
		"endTime":   end,
		"fieldKey":  field,
	}
}

func TestListOpenSlotsFollowsContinuationTokens(t *testing.T) {
	var tokens []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/slots" {
			t.Errorf("path = %s, want /api/slots", r.URL.Path)
		}
		if r.URL.Query().Get("status") != "Open" {
			t.Errorf("status = %q, want Open", r.URL.Query().Get("status"))
		}
		token := r.URL.Query().Get("continuationToken")
		tokens = append(tokens, token)

		switch token {
		case "":
			json.NewEncoder(w).Encode(map[string]any{
				"items":             []any{slotJSON("s1", "2026-04-07", "18:00", "19:30", "field-1")},
				"continuationToken": "page2",
			})
		case "page2":
			json.NewEncoder(w).Encode(map[string]any{
				"items":             []any{slotJSON("s2", "2026-04-14", "18:00:00", "19:30:00", "field-1")},
				"continuationToken": "page3",
			})
		case "page3":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []any{slotJSON("s3", "2026-04-21", "18:00", "19:30", "field-1")},
			})
		default:
			t.Errorf("unexpected token %q", token)
		}
	}))

	slots, err := client.ListOpenSlots(context.Background(), "10U", "2026-04-01", "2026-05-01")
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("slots = %d, want 3", len(slots))
	}
	if len(tokens) != 3 || tokens[1] != "page2" || tokens[2] != "page3" {
		t.Errorf("token sequence = %v", tokens)
	}
	// Seconds are normalized away at the boundary.
	if slots[1].StartTime != "18:00" || slots[1].EndTime != "19:30" {
		t.Errorf("normalized times = %s-%s, want 18:00-19:30", slots[1].StartTime, slots[1].EndTime)
	}
}

func TestListOpenSlotsAcceptsBareArrayShape(t *testing.T) {
	requests := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode([]any{
			slotJSON("s1", "2026-04-07", "18:00", "19:30", "field-1"),
			slotJSON("s2", "2026-04-14", "18:00", "19:30", "field-1"),
		})
	}))

	slots, err := client.ListOpenSlots(context.Background(), "10U", "2026-04-01", "2026-05-01")
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(slots) != 2 {
		t.Errorf("slots = %d, want 2", len(slots))
	}
	// A bare array carries no token, so one page is the whole load.
	if requests != 1 {
		t.Errorf("requests = %d, want 1", requests)
	}
}

func TestListOpenSlotsDeduplicatesAcrossPages(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("continuationToken") == "" {
			json.NewEncoder(w).Encode(map[string]any{
				"items": []any{
					slotJSON("s1", "2026-04-07", "18:00", "19:30", "field-1"),
					slotJSON("s2", "2026-04-14", "18:00", "19:30", "field-1"),
				},
				"continuationToken": "next",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []any{
				slotJSON("s2", "2026-04-14", "18:00", "19:30", "field-1"),
				slotJSON("s3", "2026-04-21", "18:00", "19:30", "field-1"),
			},
		})
	}))

	slots, err := client.ListOpenSlots(context.Background(), "10U", "2026-04-01", "2026-05-01")
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(slots) != 3 {
		t.Errorf("slots = %d after dedupe, want 3", len(slots))
	}
}

func TestListOpenSlotsStopsAtPageCap(t *testing.T) {
	requests := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode(map[string]any{
			"items":             []any{slotJSON(fmt.Sprintf("s%d", requests), "2026-04-07", "18:00", "19:30", "field-1")},
			"continuationToken": "forever",
		})
	}))

	slots, err := client.ListOpenSlots(context.Background(), "10U", "2026-04-01", "2026-05-01")
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if requests != maxSlotPages {
		t.Errorf("requests = %d, want %d", requests, maxSlotPages)
	}
	if len(slots) != maxSlotPages {
		t.Errorf("slots = %d, want %d", len(slots), maxSlotPages)
	}
}

func TestListOpenSlotsAbortsOnPageFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("continuationToken") == "" {
			json.NewEncoder(w).Encode(map[string]any{
				"items":             []any{slotJSON("s1", "2026-04-07", "18:00", "19:30", "field-1")},
				"continuationToken": "next",
			})
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.ListOpenSlots(context.Background(), "10U", "2026-04-01", "2026-05-01")
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("err = %v, want ErrUpstream", err)
	}
}

func TestListOpenSlotsValidatesBeforeFetching(t *testing.T) {
	requests := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))

	cases := []struct {
		name     string
		division string
		from, to string
	}{
		{"missing division", "", "2026-04-01", "2026-05-01"},
		{"bad from", "10U", "April 1", "2026-05-01"},
		{"bad to", "10U", "2026-04-01", "05/01/2026"},
		{"inverted window", "10U", "2026-05-01", "2026-04-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.ListOpenSlots(context.Background(), tc.division, tc.from, tc.to)
			if !errors.Is(err, ErrInvalidWindow) {
				t.Errorf("err = %v, want ErrInvalidWindow", err)
			}
		})
	}
	if requests != 0 {
		t.Errorf("requests = %d, want 0 before validation passes", requests)
	}
}

func TestListOpenSlotsCarriesAllocation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record := slotJSON("s1", "2026-04-07", "18:00", "19:30", "field-1")
		record["allocationSlotType"] = "game"
		record["allocationPriorityRank"] = 2
		odd := slotJSON("s2", "2026-04-14", "18:00", "19:30", "field-1")
		odd["allocationSlotType"] = "tournament"
		json.NewEncoder(w).Encode([]any{record, odd})
	}))

	slots, err := client.ListOpenSlots(context.Background(), "10U", "2026-04-01", "2026-05-01")
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if slots[0].AllocationType != planner.SlotTypeGame || slots[0].AllocationRank != 2 {
		t.Errorf("allocation = %s/%d, want game/2", slots[0].AllocationType, slots[0].AllocationRank)
	}
	if slots[1].AllocationType != "" {
		t.Errorf("unknown allocation type should be dropped, got %q", slots[1].AllocationType)
	}
}

func TestClientSendsBearerToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("authorization = %q, want Bearer test-token", got)
		}
		json.NewEncoder(w).Encode([]string{"10U", "12U"})
	}))

	divisions, err := client.Divisions(context.Background())
	if err != nil {
		t.Fatalf("divisions: %v", err)
	}
	if len(divisions) != 2 || divisions[0] != "10U" {
		t.Errorf("divisions = %v", divisions)
	}
}

func TestLeagueAndTeams(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/league":
			json.NewEncoder(w).Encode(map[string]any{
				"seasonStart":     "2026-04-06",
				"seasonEnd":       "2026-05-31",
				"minGamesPerTeam": 9,
			})
		case "/api/teams":
			if r.URL.Query().Get("division") != "10U" {
				t.Errorf("division = %q, want 10U", r.URL.Query().Get("division"))
			}
			json.NewEncoder(w).Encode([]map[string]any{
				{"teamId": "t1", "name": "Red Sox"},
				{"teamId": "t2", "name": "Cubs"},
			})
		default:
			http.NotFound(w, r)
		}
	}))

	settings, err := client.League(context.Background())
	if err != nil {
		t.Fatalf("league: %v", err)
	}
	if settings.SeasonStart != "2026-04-06" || settings.MinGamesPerTeam != 9 {
		t.Errorf("settings = %+v", settings)
	}

	teams, err := client.Teams(context.Background(), "10U")
	if err != nil {
		t.Fatalf("teams: %v", err)
	}
	if len(teams) != 2 || teams[1].Name != "Cubs" {
		t.Errorf("teams = %+v", teams)
	}
}
