package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/automoto/galaxia-mp/config"
	"github.com/automoto/galaxia-mp/server/arena"
	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/leveldata"
	"github.com/automoto/galaxia-mp/shared/messages"
	"github.com/automoto/galaxia-mp/shared/netconfig"
	"github.com/automoto/galaxia-mp/shared/transport/transporttest"
	"github.com/prometheus/client_golang/prometheus"
)

const testDT = time.Second / 30

// testArena is a 400x300 box with a spawn on each side facing inward.
func testArena() *leveldata.Arena {
	return &leveldata.Arena{
		Name:      "test",
		MapWidth:  400,
		MapHeight: 300,
		Walls: []leveldata.Wall{
			{ID: 1, Rect: gamemath.Rect{X: 0, Y: 0, W: 400, H: 16}},
			{ID: 2, Rect: gamemath.Rect{X: 0, Y: 284, W: 400, H: 16}},
			{ID: 3, Rect: gamemath.Rect{X: 0, Y: 16, W: 16, H: 268}},
			{ID: 4, Rect: gamemath.Rect{X: 384, Y: 16, W: 16, H: 268}},
		},
		Spawns: []gamemath.Pose{
			{Position: gamemath.V(100, 150), Facing: gamemath.V(1, 0)},
			{Position: gamemath.V(300, 150), Facing: gamemath.V(-1, 0)},
			{Position: gamemath.V(200, 60), Facing: gamemath.V(0, 1)},
		},
	}
}

func joinPayload(t *testing.T, name string) []byte {
	t.Helper()
	b, err := json.Marshal(messages.JoinPayload{Name: name, Version: config.Default().Server.Version})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

type inbox struct {
	msgs []any
}

func (b *inbox) receive(msg any) { b.msgs = append(b.msgs, msg) }

func countOf[T any](b *inbox) int {
	n := 0
	for _, m := range b.msgs {
		if _, ok := m.(T); ok {
			n++
		}
	}
	return n
}

func lastOf[T any](b *inbox) (T, bool) {
	for i := len(b.msgs) - 1; i >= 0; i-- {
		if m, ok := b.msgs[i].(T); ok {
			return m, true
		}
	}
	var zero T
	return zero, false
}

type harness struct {
	t       *testing.T
	session *Session
	hub     *transporttest.Hub
	inboxes map[netconfig.Identity]*inbox
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	hub := transporttest.NewHub()
	s, err := NewSession(SessionDeps{
		Config:    config.Default(),
		Mode:      config.DefaultGameMode(),
		Level:     arena.NewLevel(testArena(), 16, 16),
		Messenger: hub,
		Metrics:   NewMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	hub.Serve(func(from netconfig.Identity, msg any) {
		switch m := msg.(type) {
		case messages.MoveInput:
			s.HandleMove(from, m)
		case messages.FireRequest:
			s.HandleFire(from, m)
		case messages.RosterEntryRequest:
			s.HandleRosterRequest(from, m)
		}
	})
	return &harness{t: t, session: s, hub: hub, inboxes: make(map[netconfig.Identity]*inbox)}
}

func (h *harness) join(id netconfig.Identity) *inbox {
	h.t.Helper()
	in := &inbox{}
	h.inboxes[id] = in
	h.hub.Attach(id, in.receive)
	h.session.Connect(id)
	d := h.session.Join(id, joinPayload(h.t, id.String()))
	h.hub.Flush()
	if !d.Approved() {
		h.t.Fatalf("join %s: %s", id, d.Reason)
	}
	return in
}

func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.session.Tick(testDT)
		h.hub.Flush()
	}
}
