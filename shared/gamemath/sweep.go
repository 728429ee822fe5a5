package gamemath

import "math"

// SweepHit describes where a segment first enters a box.
type SweepHit struct {
	T      float64 // fraction of the segment, 0..1
	Point  Vec2
	Normal Vec2 // unit normal of the entered face
}

// SweepAABB casts the segment from->to against box using the slab method.
// Segments that start inside the box, or that only touch it on the way out,
// do not report a hit.
func SweepAABB(from, to Vec2, box Rect) (SweepHit, bool) {
	d := to.Sub(from)
	tNear, tFar := math.Inf(-1), math.Inf(1)
	var normal Vec2

	axes := [2]struct {
		p, d, lo, hi float64
		n            Vec2
	}{
		{from.X, d.X, box.X, box.X + box.W, Vec2{1, 0}},
		{from.Y, d.Y, box.Y, box.Y + box.H, Vec2{0, 1}},
	}

	for _, a := range axes {
		if a.d == 0 {
			if a.p < a.lo || a.p > a.hi {
				return SweepHit{}, false
			}
			continue
		}
		t1 := (a.lo - a.p) / a.d
		t2 := (a.hi - a.p) / a.d
		n := a.n.Scale(-1)
		if t1 > t2 {
			t1, t2 = t2, t1
			n = a.n
		}
		if t1 > tNear {
			tNear = t1
			normal = n
		}
		if t2 < tFar {
			tFar = t2
		}
		if tNear > tFar {
			return SweepHit{}, false
		}
	}

	if tNear < 0 || tNear > 1 || tNear >= tFar {
		return SweepHit{}, false
	}
	return SweepHit{
		T:      tNear,
		Point:  from.Add(d.Scale(tNear)),
		Normal: normal,
	}, true
}
