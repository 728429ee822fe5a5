package netcomponents

import "github.com/yohamta/donburi"

// NetRosterData is the replicated session summary observers may read.
type NetRosterData struct {
	Count      int
	MatchState int
	Round      int
}

var NetRoster = donburi.NewComponentType[NetRosterData]()
