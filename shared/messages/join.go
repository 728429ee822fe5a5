package messages

import (
	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/netconfig"
)

// JoinRequest is sent by a client after connecting. Payload is the raw
// approval payload and is size-checked before it is decoded.
type JoinRequest struct {
	Payload []byte
}

// JoinPayload is the decoded approval payload.
type JoinPayload struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// JoinAccepted is sent to the joining client when approval succeeds.
type JoinAccepted struct {
	Identity   netconfig.Identity
	Entity     netconfig.EntityRef
	Spawn      gamemath.Pose
	ServerName string
	TickRate   int
	Level      string // arena name, used for local laser prediction
}

// JoinRejected is sent to the joining client when approval fails.
type JoinRejected struct {
	Status netconfig.ConnectionStatus
	Reason string
}

// SessionEnded is broadcast once when the host leaves and the session is torn down.
type SessionEnded struct {
	Reason string
}
