// Package arena turns a parsed arena into a collision space that answers
// laser sweeps. The server and observers build the same Level from the same
// map, so a predicted laser bounces where the authoritative one does.
package arena

import (
	"math"

	"github.com/automoto/galaxia-mp/server/laser"
	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/leveldata"
	"github.com/automoto/galaxia-mp/shared/netconfig"
	"github.com/automoto/galaxia-mp/tags"
	"github.com/solarlune/resolv"
)

const cellSize = 16

// Level holds the collision space of an arena: static walls plus one body
// per live player.
type Level struct {
	Arena *leveldata.Arena
	Space *resolv.Space

	walls  map[laser.SurfaceID]gamemath.Rect
	bodies map[netconfig.Identity]*resolv.Object
	bodyW  float64
	bodyH  float64
}

// NewLevel builds a resolv.Space from a parsed arena. Player bodies are
// bodyW x bodyH boxes centred on the player position.
func NewLevel(a *leveldata.Arena, bodyW, bodyH float64) *Level {
	// Pad by one cell so sweeps that leave the map still land in the grid.
	space := resolv.NewSpace(a.MapWidth+2*cellSize, a.MapHeight+2*cellSize, cellSize, cellSize)

	l := &Level{
		Arena:  a,
		Space:  space,
		walls:  make(map[laser.SurfaceID]gamemath.Rect, len(a.Walls)),
		bodies: make(map[netconfig.Identity]*resolv.Object),
		bodyW:  bodyW,
		bodyH:  bodyH,
	}
	for _, w := range a.Walls {
		id := laser.SurfaceID(w.ID)
		obj := resolv.NewObject(w.Rect.X, w.Rect.Y, w.Rect.W, w.Rect.H, tags.ResolvSolid)
		obj.SetShape(resolv.NewRectangle(0, 0, w.Rect.W, w.Rect.H))
		obj.Data = id
		space.Add(obj)
		l.walls[id] = w.Rect
	}
	return l
}

// Spawns returns the arena spawn poses in assignment order.
func (l *Level) Spawns() []gamemath.Pose { return l.Arena.Spawns }

// Bounds is the playable area.
func (l *Level) Bounds() gamemath.Rect { return l.Arena.Bounds() }

// AddBody places a collision body for id at pos. An existing body is moved.
func (l *Level) AddBody(id netconfig.Identity, pos gamemath.Vec2) {
	if obj, ok := l.bodies[id]; ok {
		l.placeBody(obj, pos)
		return
	}
	box := l.bodyRect(pos)
	obj := resolv.NewObject(box.X, box.Y, box.W, box.H, tags.ResolvPlayer)
	obj.SetShape(resolv.NewRectangle(0, 0, box.W, box.H))
	obj.Data = id
	l.Space.Add(obj)
	l.bodies[id] = obj
}

// MoveBody moves the body of id, if it has one.
func (l *Level) MoveBody(id netconfig.Identity, pos gamemath.Vec2) {
	if obj, ok := l.bodies[id]; ok {
		l.placeBody(obj, pos)
	}
}

// RemoveBody drops the body of id from the space.
func (l *Level) RemoveBody(id netconfig.Identity) {
	if obj, ok := l.bodies[id]; ok {
		l.Space.Remove(obj)
		delete(l.bodies, id)
	}
}

// HasBody reports whether id currently collides.
func (l *Level) HasBody(id netconfig.Identity) bool {
	_, ok := l.bodies[id]
	return ok
}

func (l *Level) placeBody(obj *resolv.Object, pos gamemath.Vec2) {
	box := l.bodyRect(pos)
	obj.X = box.X
	obj.Y = box.Y
	obj.Update()
}

func (l *Level) bodyRect(pos gamemath.Vec2) gamemath.Rect {
	return gamemath.Rect{X: pos.X - l.bodyW/2, Y: pos.Y - l.bodyH/2, W: l.bodyW, H: l.bodyH}
}

// Sweep implements laser.Collider. The resolv grid narrows candidates to the
// cells the segment touches; each candidate is then swept exactly.
func (l *Level) Sweep(from, to gamemath.Vec2, ignore func(laser.Hit) bool) (laser.Hit, bool) {
	bounds := gamemath.SegmentBounds(from, to).Expand(1)
	query := resolv.NewObject(bounds.X, bounds.Y, bounds.W, bounds.H, tags.ResolvProbe)
	l.Space.Add(query)
	defer l.Space.Remove(query)

	check := query.Check(0, 0, tags.ResolvSolid, tags.ResolvPlayer)
	if check == nil {
		return laser.Hit{}, false
	}

	var (
		best  laser.Hit
		bestT = math.Inf(1)
		found bool
	)
	consider := func(box gamemath.Rect, hit laser.Hit) {
		sh, ok := gamemath.SweepAABB(from, to, box)
		if !ok || sh.T >= bestT {
			return
		}
		hit.Point = sh.Point
		hit.Normal = sh.Normal
		if ignore != nil && ignore(hit) {
			return
		}
		best, bestT, found = hit, sh.T, true
	}

	for _, obj := range check.ObjectsByTags(tags.ResolvSolid) {
		id, ok := obj.Data.(laser.SurfaceID)
		if !ok {
			continue
		}
		consider(l.walls[id], laser.Hit{Surface: id})
	}
	for _, obj := range check.ObjectsByTags(tags.ResolvPlayer) {
		id, ok := obj.Data.(netconfig.Identity)
		if !ok {
			continue
		}
		box := gamemath.Rect{X: obj.X, Y: obj.Y, W: obj.W, H: obj.H}
		consider(box, laser.Hit{IsPlayer: true, Player: id})
	}
	return best, found
}
