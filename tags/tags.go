package tags

import "github.com/yohamta/donburi"

var (
	Player = donburi.NewTag().SetName("Player")
	Laser  = donburi.NewTag().SetName("Laser")
	Roster = donburi.NewTag().SetName("Roster")
)

// Resolv tags for arena collision
const (
	ResolvSolid  = "solid"
	ResolvPlayer = "player"
	ResolvProbe  = "probe"
)
