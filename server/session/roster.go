// Package session tracks who is connected: the authoritative roster, the
// derived player-list cache every role keeps, and the observer's mirror of
// the roster.
package session

import (
	"slices"

	"github.com/automoto/galaxia-mp/shared/netconfig"
)

// Roster maps identities to their spawned entities, in join order.
type Roster struct {
	entries map[netconfig.Identity]netconfig.EntityRef
	order   []netconfig.Identity
}

func NewRoster() *Roster {
	return &Roster{entries: make(map[netconfig.Identity]netconfig.EntityRef)}
}

// Put adds or replaces the entry for id.
func (r *Roster) Put(id netconfig.Identity, ref netconfig.EntityRef) {
	if _, ok := r.entries[id]; !ok {
		r.order = append(r.order, id)
	}
	r.entries[id] = ref
}

// Remove deletes id and returns the entity it had.
func (r *Roster) Remove(id netconfig.Identity) (netconfig.EntityRef, bool) {
	ref, ok := r.entries[id]
	if !ok {
		return netconfig.NoEntity, false
	}
	delete(r.entries, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	return ref, true
}

func (r *Roster) Lookup(id netconfig.Identity) (netconfig.EntityRef, bool) {
	ref, ok := r.entries[id]
	return ref, ok
}

func (r *Roster) Len() int { return len(r.entries) }

// Identities returns a copy of the identities in join order.
func (r *Roster) Identities() []netconfig.Identity {
	return slices.Clone(r.order)
}
