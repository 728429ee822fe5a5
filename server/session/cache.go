package session

import (
	"github.com/automoto/galaxia-mp/server/events"
	"github.com/automoto/galaxia-mp/server/player"
	"github.com/automoto/galaxia-mp/shared/netconfig"
)

// Resolver turns an entity reference into a live player. A reference that no
// longer resolves yields false.
type Resolver interface {
	Resolve(ref netconfig.EntityRef) (*player.Player, bool)
}

// PlayerList is the lazily rebuilt list of live players derived from a
// roster. Any connect, disconnect, death or score event marks it dirty.
type PlayerList struct {
	roster   *Roster
	resolver Resolver

	dirty    bool
	players  []*player.Player
	rebuilds int

	bus    *events.Bus
	tokens []func()
}

// NewPlayerList builds a cache over roster and subscribes it to bus.
func NewPlayerList(roster *Roster, resolver Resolver, bus *events.Bus) *PlayerList {
	l := &PlayerList{roster: roster, resolver: resolver, dirty: true, bus: bus}
	if bus != nil {
		invalidate := func(netconfig.Identity) { l.Invalidate() }
		t1 := bus.ClientConnected.Subscribe(invalidate)
		t2 := bus.ClientDisconnected.Subscribe(invalidate)
		t3 := bus.PlayerDied.Subscribe(invalidate)
		t4 := bus.PlayerScored.Subscribe(func(events.PlayerScored) { l.Invalidate() })
		l.tokens = []func(){
			func() { bus.ClientConnected.Unsubscribe(t1) },
			func() { bus.ClientDisconnected.Unsubscribe(t2) },
			func() { bus.PlayerDied.Unsubscribe(t3) },
			func() { bus.PlayerScored.Unsubscribe(t4) },
		}
	}
	return l
}

// Invalidate marks the cache stale.
func (l *PlayerList) Invalidate() { l.dirty = true }

// Dirty reports whether the next read will rebuild.
func (l *PlayerList) Dirty() bool { return l.dirty }

// Rebuilds counts how often the list has been rebuilt.
func (l *PlayerList) Rebuilds() int { return l.rebuilds }

// Players returns live players in join order. The slice must not be modified.
func (l *PlayerList) Players() []*player.Player {
	if l.dirty {
		l.rebuild()
	}
	return l.players
}

// PlayersExcept returns every live player other than id.
func (l *PlayerList) PlayersExcept(id netconfig.Identity) []*player.Player {
	all := l.Players()
	out := make([]*player.Player, 0, len(all))
	for _, p := range all {
		if p.Identity() != id {
			out = append(out, p)
		}
	}
	return out
}

// Lookup finds the player for id.
func (l *PlayerList) Lookup(id netconfig.Identity) (*player.Player, bool) {
	for _, p := range l.Players() {
		if p.Identity() == id {
			return p, true
		}
	}
	return nil, false
}

// Close drops the event subscriptions.
func (l *PlayerList) Close() {
	for _, unsubscribe := range l.tokens {
		unsubscribe()
	}
	l.tokens = nil
}

func (l *PlayerList) rebuild() {
	players := make([]*player.Player, 0, l.roster.Len())
	for _, id := range l.roster.Identities() {
		ref, ok := l.roster.Lookup(id)
		if !ok {
			continue
		}
		if p, ok := l.resolver.Resolve(ref); ok {
			players = append(players, p)
		}
	}
	l.players = players
	l.dirty = false
	l.rebuilds++
}
