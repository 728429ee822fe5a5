package messages

import (
	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/netconfig"
)

// LaserSpawned is broadcast when the server accepts a fire request.
type LaserSpawned struct {
	ID          uint64
	Shooter     netconfig.Identity
	Seq         uint32
	Position    gamemath.Vec2
	Direction   gamemath.Vec2
	Speed       float64
	BouncesLeft int
}

// LaserBounced is broadcast after a wall reflection. Surface is the wall ID
// from the arena map.
type LaserBounced struct {
	ID          uint64
	Position    gamemath.Vec2
	Direction   gamemath.Vec2
	BouncesLeft int
	Surface     uint64
}

// LaserDestroyed is broadcast when a laser ends. Victim is set only for player hits.
type LaserDestroyed struct {
	ID       uint64
	Position gamemath.Vec2
	Hit      bool
	Victim   netconfig.Identity
}
