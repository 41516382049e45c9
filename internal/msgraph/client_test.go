package msgraph_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tiliavir/worklog/internal/msgraph"
)

func TestGetCalendarViewPaging(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Prefer"); got != `outlook.timezone="Europe/Berlin"` {
			t.Errorf("Prefer header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/me/calendarView":
			if r.URL.Query().Get("startDateTime") != "2026-02-23T00:00:00Z" {
				t.Errorf("startDateTime = %q", r.URL.Query().Get("startDateTime"))
			}
			json.NewEncoder(w).Encode(map[string]any{
				"value":           []map[string]any{{"id": "a", "subject": "First"}},
				"@odata.nextLink": srv.URL + "/page2",
			})
		case "/page2":
			json.NewEncoder(w).Encode(map[string]any{
				"value": []map[string]any{{"id": "b", "subject": "Second"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := msgraph.NewHTTPClient(srv.Client(), srv.URL, nil)
	from := time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC)
	events, err := c.GetCalendarView(context.Background(), from, from.AddDate(0, 0, 7), "Europe/Berlin")
	if err != nil {
		t.Fatalf("GetCalendarView: %v", err)
	}
	if len(events) != 2 || events[0].ID != "a" || events[1].Subject != "Second" {
		t.Errorf("events = %+v", events)
	}
}

func TestGetCalendarViewError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"InvalidAuthenticationToken"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := msgraph.NewHTTPClient(srv.Client(), srv.URL, nil)
	_, err := c.GetCalendarView(context.Background(), time.Now(), time.Now().Add(time.Hour), "")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("err = %v, want graph API error 401", err)
	}
}
