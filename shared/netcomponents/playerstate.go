package netcomponents

import "github.com/yohamta/donburi"

// NetPlayerStateData carries the versioned replicated player fields. Each
// value travels with the revision it was written at so observers can drop
// stale updates.
type NetPlayerStateData struct {
	Identity     uint64
	Lifecycle    int
	LifecycleRev uint64
	Health       int
	HealthRev    uint64
	Score        int
	ScoreRev     uint64
}

var NetPlayerState = donburi.NewComponentType[NetPlayerStateData]()
