package netcomponents

import "github.com/yohamta/donburi"

// NetPositionData is a replicated position and facing.
type NetPositionData struct {
	X, Y             float64
	FacingX, FacingY float64
}

var NetPosition = donburi.NewComponentType[NetPositionData]()

// LerpNetPosition interpolates position; facing snaps to the target.
func LerpNetPosition(from, to NetPositionData, t float64) *NetPositionData {
	return &NetPositionData{
		X:       from.X + (to.X-from.X)*t,
		Y:       from.Y + (to.Y-from.Y)*t,
		FacingX: to.FacingX,
		FacingY: to.FacingY,
	}
}
