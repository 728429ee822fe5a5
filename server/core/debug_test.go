package core

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

type staticRoster []RosterInfo

func (r staticRoster) PlayerCount() int { return len(r) }

func (r staticRoster) Roster() []RosterInfo { return r }

func TestDebugRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.Kills.Inc()

	router := NewDebugRouter(staticRoster{{Identity: 0, Lifecycle: "alive", Health: 100}}, reg)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/roster", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/roster status = %d", rec.Code)
	}
	var roster []RosterInfo
	if err := json.NewDecoder(rec.Body).Decode(&roster); err != nil {
		t.Fatalf("decode roster: %v", err)
	}
	if len(roster) != 1 || roster[0].Health != 100 {
		t.Errorf("roster = %+v", roster)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "galaxia_kills_total 1") {
		t.Errorf("metrics output missing kill counter:\n%s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"players":1`) {
		t.Errorf("/health = %d %s", rec.Code, rec.Body.String())
	}
}
