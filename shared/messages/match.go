package messages

import (
	"time"

	"github.com/automoto/galaxia-mp/shared/netconfig"
)

// MatchState is broadcast when the round state changes.
type MatchState struct {
	State netconfig.MatchState
	Round int
}

// OnScreenMessage asks observers to show a transient message.
type OnScreenMessage struct {
	Text     string
	Duration time.Duration
}
