package session

import (
	"github.com/automoto/galaxia-mp/server/events"
	"github.com/automoto/galaxia-mp/shared/messages"
	"github.com/automoto/galaxia-mp/shared/netconfig"
	"github.com/automoto/galaxia-mp/shared/transport"
	"go.uber.org/zap"
)

// Mirror is an observer's view of the roster. It never sees the full roster:
// the count is replicated and entries are fetched one identity at a time.
type Mirror struct {
	local     netconfig.Identity
	requester transport.Requester
	log       *zap.Logger

	count   int
	entries *Roster
	list    *PlayerList
}

func NewMirror(local netconfig.Identity, requester transport.Requester, resolver Resolver, bus *events.Bus, log *zap.Logger) *Mirror {
	if log == nil {
		log = zap.NewNop()
	}
	entries := NewRoster()
	return &Mirror{
		local:     local,
		requester: requester,
		log:       log,
		entries:   entries,
		list:      NewPlayerList(entries, resolver, bus),
	}
}

// Count is the replicated connected-player count.
func (m *Mirror) Count() int { return m.count }

// Players is the observer's derived player list.
func (m *Mirror) Players() *PlayerList { return m.list }

// Lookup returns the confirmed entity for id.
func (m *Mirror) Lookup(id netconfig.Identity) (netconfig.EntityRef, bool) {
	return m.entries.Lookup(id)
}

// Request asks the server for id's roster entry. Failures are logged and left
// to the caller to retry.
func (m *Mirror) Request(id netconfig.Identity) {
	if err := m.requester.Request(messages.RosterEntryRequest{Identity: id}); err != nil {
		m.log.Debug("roster request failed", zap.Stringer("identity", id), zap.Error(err))
	}
}

// OnLocalSpawn requests the local player's entry.
func (m *Mirror) OnLocalSpawn() {
	m.Request(m.local)
}

func (m *Mirror) ApplyCount(msg messages.RosterCount) {
	m.count = msg.Count
}

// ApplyEntry stores a server response. A not-found entry drops the identity.
func (m *Mirror) ApplyEntry(msg messages.RosterEntry) {
	if msg.Found {
		m.entries.Put(msg.Identity, msg.Entity)
	} else {
		m.entries.Remove(msg.Identity)
	}
	m.list.Invalidate()
}

// OnClientConnected requests the new identity's entry.
func (m *Mirror) OnClientConnected(id netconfig.Identity) {
	m.list.Invalidate()
	m.Request(id)
}

// OnClientDisconnected forgets id.
func (m *Mirror) OnClientDisconnected(id netconfig.Identity) {
	m.entries.Remove(id)
	m.list.Invalidate()
}

// Close releases the cache subscriptions.
func (m *Mirror) Close() {
	m.list.Close()
}
