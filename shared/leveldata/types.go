// Package leveldata provides TMX arena parsing shared between client and server.
// It has no dependencies on donburi or resolv; pure data only.
package leveldata

import "github.com/automoto/galaxia-mp/shared/gamemath"

// Arena holds the collision-relevant data parsed from a TMX level file.
type Arena struct {
	Name      string
	Walls     []Wall
	Spawns    []gamemath.Pose
	MapWidth  int
	MapHeight int
}

// Wall is a static laser-reflecting rectangle. IDs are unique per arena and
// never zero.
type Wall struct {
	ID   uint64
	Rect gamemath.Rect
}

// Bounds is the playable area of the arena.
func (a *Arena) Bounds() gamemath.Rect {
	return gamemath.Rect{W: float64(a.MapWidth), H: float64(a.MapHeight)}
}
