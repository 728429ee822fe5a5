package netcomponents

import "github.com/yohamta/donburi"

type NetLaserData struct {
	ID          uint64
	Shooter     uint64
	X, Y        float64
	DirX, DirY  float64 // Client extrapolation between snapshots
	Speed       float64
	BouncesLeft int
}

var NetLaser = donburi.NewComponentType[NetLaserData]()

// LerpNetLaser interpolates between two laser states.
func LerpNetLaser(from, to NetLaserData, t float64) *NetLaserData {
	return &NetLaserData{
		ID:          to.ID,
		Shooter:     to.Shooter,
		X:           from.X + (to.X-from.X)*t,
		Y:           from.Y + (to.Y-from.Y)*t,
		DirX:        to.DirX,
		DirY:        to.DirY,
		Speed:       to.Speed,
		BouncesLeft: to.BouncesLeft,
	}
}
