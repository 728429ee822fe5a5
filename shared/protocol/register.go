package protocol

import (
	"github.com/automoto/galaxia-mp/shared/netcomponents"
	"github.com/leap-fish/necs/esync"
)

// Sync ID constants - ID 1 is reserved by necs for NetworkId
const (
	SyncIDNetPosition    uint = 10
	SyncIDNetPlayerState uint = 12
	SyncIDNetLaser       uint = 13
	SyncIDNetRoster      uint = 15
)

// Interpolation IDs (uint8 for WithInterpFn)
const (
	InterpIDNetPosition uint8 = 10
	InterpIDNetLaser    uint8 = 13
)

// RegisterComponents registers all network components with necs for serialization.
// This must be called by both server and client before any network operations.
func RegisterComponents() error {
	if err := esync.RegisterComponent(
		SyncIDNetPosition,
		netcomponents.NetPositionData{},
		netcomponents.NetPosition,
		esync.WithInterpFn(InterpIDNetPosition, netcomponents.LerpNetPosition),
	); err != nil {
		return err
	}

	// PlayerState: no interpolation (versioned discrete values)
	if err := esync.RegisterComponent(
		SyncIDNetPlayerState,
		netcomponents.NetPlayerStateData{},
		netcomponents.NetPlayerState,
	); err != nil {
		return err
	}

	if err := esync.RegisterComponent(
		SyncIDNetLaser,
		netcomponents.NetLaserData{},
		netcomponents.NetLaser,
		esync.WithInterpFn(InterpIDNetLaser, netcomponents.LerpNetLaser),
	); err != nil {
		return err
	}

	if err := esync.RegisterComponent(
		SyncIDNetRoster,
		netcomponents.NetRosterData{},
		netcomponents.NetRoster,
	); err != nil {
		return err
	}

	return nil
}
