package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestRegistry(ttl time.Duration) (*Registry, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	reg := NewRegistry(ttl, nil)
	reg.now = clock.now
	return reg, clock
}

func TestRegistryExpiry(t *testing.T) {
	reg, clock := newTestRegistry(time.Minute)
	a := reg.Register(ServerInfo{Name: "a", Address: "1.1.1.1:7373"})
	b := reg.Register(ServerInfo{Name: "b", Address: "2.2.2.2:7373"})

	clock.t = clock.t.Add(40 * time.Second)
	if !reg.Heartbeat(b, 2) {
		t.Fatal("heartbeat for b rejected")
	}

	clock.t = clock.t.Add(30 * time.Second)
	if got := reg.List(); len(got) != 1 || got[0].ID != b || got[0].Players != 2 {
		t.Errorf("List() = %+v, want only b with 2 players", got)
	}
	if got := reg.Expire(); got != 1 {
		t.Errorf("Expire() = %d, want 1", got)
	}
	if reg.Heartbeat(a, 1) {
		t.Error("heartbeat for expired server accepted")
	}
}

func TestRegistryListOrder(t *testing.T) {
	reg, _ := newTestRegistry(time.Minute)
	reg.Register(ServerInfo{Name: "zeta", Address: "z"})
	reg.Register(ServerInfo{Name: "alpha", Address: "a"})

	got := reg.List()
	if len(got) != 2 || got[0].Name != "alpha" || got[1].Name != "zeta" {
		t.Errorf("List() = %+v", got)
	}
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRegisterHeartbeatList(t *testing.T) {
	reg, _ := newTestRegistry(time.Minute)
	h := NewRouter(reg, zapNop())

	rec := post(t, h, "/servers/register", `{"name":"arena","address":"10.0.0.1:7373","maxPlayers":2}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body)
	}
	var resp registerResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.ID == "" {
		t.Fatalf("register response = %+v, %v", resp, err)
	}

	rec = post(t, h, "/servers/heartbeat", `{"id":"`+resp.ID+`","players":2}`)
	if rec.Code != http.StatusOK {
		t.Errorf("heartbeat status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/servers/", nil))
	var servers []ServerInfo
	if err := json.NewDecoder(rec.Body).Decode(&servers); err != nil {
		t.Fatal(err)
	}
	if len(servers) != 1 || servers[0].Players != 2 {
		t.Errorf("servers = %+v", servers)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/servers/?open=1", nil))
	servers = nil
	if err := json.NewDecoder(rec.Body).Decode(&servers); err != nil {
		t.Fatal(err)
	}
	if len(servers) != 0 {
		t.Errorf("open servers = %+v, want none", servers)
	}
}

func TestRegisterValidation(t *testing.T) {
	reg, _ := newTestRegistry(time.Minute)
	h := NewRouter(reg, zapNop())

	tests := []struct {
		name, path, body string
		want             int
	}{
		{"bad json", "/servers/register", `{`, http.StatusBadRequest},
		{"missing address", "/servers/register", `{"name":"x"}`, http.StatusBadRequest},
		{"unknown heartbeat", "/servers/heartbeat", `{"id":"nope"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := post(t, h, tt.path, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
	if reg.Len() != 0 {
		t.Errorf("registry has %d servers after rejected requests", reg.Len())
	}
}

func TestCORSHeader(t *testing.T) {
	reg, _ := newTestRegistry(time.Minute)
	h := NewRouter(reg, zapNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" && got != "http://example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func zapNop() *zap.Logger { return zap.NewNop() }
