package messages

import (
	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/netconfig"
	"github.com/automoto/galaxia-mp/shared/replica"
)

// MoveInput carries the owner's position and facing.
type MoveInput struct {
	Seq  uint32
	Pose gamemath.Pose
}

// FireRequest asks the server to fire. Seq is the client's fire counter and
// lets the shooter reconcile its predicted laser.
type FireRequest struct {
	Seq  uint32
	Pose gamemath.Pose
}

// PlayerSpawned is broadcast when a player entity is created.
type PlayerSpawned struct {
	Identity netconfig.Identity
	Entity   netconfig.EntityRef
	Pose     gamemath.Pose
}

// PlayerDespawned is broadcast when a player entity is removed.
type PlayerDespawned struct {
	Identity netconfig.Identity
}

// PoseReset is broadcast when the server places a player, overriding owner input.
type PoseReset struct {
	Identity netconfig.Identity
	Pose     gamemath.Pose
}

// PlayerState is the versioned replicated state of one player.
type PlayerState struct {
	Identity  netconfig.Identity
	Lifecycle replica.Snapshot[netconfig.LifecycleState]
	Health    replica.Snapshot[int]
	Score     replica.Snapshot[int]
}
