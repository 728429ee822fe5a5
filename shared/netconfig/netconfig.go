// Package netconfig defines lightweight types shared between the authoritative
// server and observers. It must have zero dependencies on the transport or the
// ECS so every other package can import it.
package netconfig

import "fmt"

// Identity is a small unsigned integer assigned by the transport per connection.
type Identity uint64

// HostIdentity is the identity that owns the session. Losing it ends the session.
const HostIdentity Identity = 0

func (id Identity) String() string {
	return fmt.Sprintf("client-%d", uint64(id))
}

// EntityRef is an opaque handle to a spawned player object.
type EntityRef uint64

// NoEntity is the zero reference; it never resolves.
const NoEntity EntityRef = 0

// Role selects between authoritative and observer behaviour of a replicated object.
type Role int

const (
	RoleAuthoritative Role = iota
	RoleObserver
)

func (r Role) String() string {
	switch r {
	case RoleAuthoritative:
		return "authoritative"
	case RoleObserver:
		return "observer"
	}
	return "unknown"
}

// LifecycleState is the replicated player state.
type LifecycleState int

const (
	Alive LifecycleState = iota
	Dead
	// Spectating is reserved and has no behaviour.
	Spectating
)

func (s LifecycleState) String() string {
	switch s {
	case Alive:
		return "alive"
	case Dead:
		return "dead"
	case Spectating:
		return "spectating"
	}
	return "unknown"
}

// DamageReason tags where damage came from.
type DamageReason int

const (
	ReasonNone DamageReason = iota
	ReasonLaser
	ReasonFall
)

func (r DamageReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonLaser:
		return "laser"
	case ReasonFall:
		return "fall"
	}
	return "unknown"
}

// ConnectionStatus is the outcome of an approval decision.
type ConnectionStatus int

const (
	StatusApproved ConnectionStatus = iota
	StatusRejected
	StatusServerFull
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusApproved:
		return "approved"
	case StatusRejected:
		return "rejected"
	case StatusServerFull:
		return "server_full"
	}
	return "unknown"
}

// MatchState represents the current state of a round.
type MatchState int

const (
	MatchWaiting    MatchState = iota // Waiting for quorum
	MatchInProgress                   // Round started
)

func (m MatchState) String() string {
	if m == MatchInProgress {
		return "in_progress"
	}
	return "waiting"
}
