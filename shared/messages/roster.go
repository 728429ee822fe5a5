package messages

import "github.com/automoto/galaxia-mp/shared/netconfig"

// RosterEntryRequest asks the server for one identity's entity reference.
type RosterEntryRequest struct {
	Identity netconfig.Identity
}

// RosterEntry answers a RosterEntryRequest. Found is false once the identity
// has left or before it has spawned.
type RosterEntry struct {
	Identity netconfig.Identity
	Entity   netconfig.EntityRef
	Found    bool
}

// RosterCount is the replicated connected-player count.
type RosterCount struct {
	Count int
}

// ClientConnected tells observers a new identity was approved.
type ClientConnected struct {
	Identity netconfig.Identity
}

// ClientDisconnected tells observers an identity left.
type ClientDisconnected struct {
	Identity netconfig.Identity
}
