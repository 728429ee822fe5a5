package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/automoto/galaxia-mp/server/events"
	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/messages"
	"github.com/automoto/galaxia-mp/shared/netconfig"
	"go.uber.org/zap"
)

// ErrHostDisconnected is reported to the caller when the host leaves.
var ErrHostDisconnected = errors.New("session: host disconnected")

// Rejection reasons. They double as bounded metric labels.
const (
	ReasonPayloadTooLarge = "payload_too_large"
	ReasonInvalidPayload  = "invalid_payload"
	ReasonVersionMismatch = "version_mismatch"
	ReasonAlreadyJoined   = "already_joined"
	ReasonSpawnFailed     = "spawn_failed"
	ReasonServerFull      = "server_full"
)

// Spawner creates and removes player entities for approved identities.
type Spawner interface {
	SpawnPlayer(id netconfig.Identity, pose gamemath.Pose) (netconfig.EntityRef, error)
	DespawnPlayer(id netconfig.Identity, ref netconfig.EntityRef)
}

// Config bounds who may join.
type Config struct {
	MaxPlayers      int
	MaxPayloadBytes int
	Version         string // empty accepts any client version
	DefaultSpawn    gamemath.Pose
}

// Decision is the outcome of ApproveConnection.
type Decision struct {
	Status netconfig.ConnectionStatus
	Reason string
	Entity netconfig.EntityRef
	Spawn  gamemath.Pose
}

func (d Decision) Approved() bool { return d.Status == netconfig.StatusApproved }

// Outcome is the result of Disconnect.
type Outcome int

const (
	OutcomeUnknown          Outcome = iota // identity was not connected
	OutcomeRemoved                         // identity left, entity despawned
	OutcomeHostDisconnected                // session must be torn down
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRemoved:
		return "removed"
	case OutcomeHostDisconnected:
		return "host_disconnected"
	}
	return "unknown"
}

// Registry is the authoritative connection and roster owner of one session.
type Registry struct {
	cfg     Config
	bus     *events.Bus
	spawner Spawner
	log     *zap.Logger

	roster *Roster
	open   map[netconfig.Identity]struct{}
}

func NewRegistry(cfg Config, bus *events.Bus, spawner Spawner, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		cfg:     cfg,
		bus:     bus,
		spawner: spawner,
		log:     log,
		roster:  NewRoster(),
		open:    make(map[netconfig.Identity]struct{}),
	}
}

// Roster exposes the authoritative roster for read access.
func (r *Registry) Roster() *Roster { return r.roster }

// Count is the number of approved identities.
func (r *Registry) Count() int { return r.roster.Len() }

// Identities returns approved identities in join order.
func (r *Registry) Identities() []netconfig.Identity { return r.roster.Identities() }

// Open records a transport-level connection that has not been approved yet.
func (r *Registry) Open(id netconfig.Identity) {
	r.open[id] = struct{}{}
}

// ApproveConnection decides whether id may join. Oversized payloads are
// rejected before any decoding. Approval spawns the player and then
// publishes ClientConnected.
func (r *Registry) ApproveConnection(id netconfig.Identity, payload []byte) Decision {
	r.open[id] = struct{}{}

	if len(payload) > r.cfg.MaxPayloadBytes {
		return r.reject(id, netconfig.StatusRejected, ReasonPayloadTooLarge)
	}

	var p messages.JoinPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return r.reject(id, netconfig.StatusRejected, ReasonInvalidPayload)
		}
	}
	if r.cfg.Version != "" && p.Version != r.cfg.Version {
		return r.reject(id, netconfig.StatusRejected, ReasonVersionMismatch)
	}
	if _, ok := r.roster.Lookup(id); ok {
		return r.reject(id, netconfig.StatusRejected, ReasonAlreadyJoined)
	}
	if r.roster.Len() >= r.cfg.MaxPlayers {
		return r.reject(id, netconfig.StatusServerFull, ReasonServerFull)
	}

	ref, err := r.spawner.SpawnPlayer(id, r.cfg.DefaultSpawn)
	if err != nil {
		r.log.Error("spawn failed", zap.Stringer("identity", id), zap.Error(err))
		return r.reject(id, netconfig.StatusRejected, ReasonSpawnFailed)
	}
	r.roster.Put(id, ref)

	r.log.Info("client approved",
		zap.Stringer("identity", id),
		zap.String("name", p.Name),
		zap.Int("players", r.roster.Len()))
	r.bus.ClientConnected.Publish(id)

	return Decision{
		Status: netconfig.StatusApproved,
		Entity: ref,
		Spawn:  r.cfg.DefaultSpawn,
	}
}

func (r *Registry) reject(id netconfig.Identity, status netconfig.ConnectionStatus, reason string) Decision {
	r.log.Info("client rejected",
		zap.Stringer("identity", id),
		zap.Stringer("status", status),
		zap.String("reason", reason))
	return Decision{Status: status, Reason: reason}
}

// Disconnect handles a transport disconnect. ClientDisconnected is published
// once per known identity before the roster changes.
func (r *Registry) Disconnect(id netconfig.Identity) Outcome {
	if _, ok := r.open[id]; !ok {
		return OutcomeUnknown
	}
	delete(r.open, id)

	r.bus.ClientDisconnected.Publish(id)

	if id == netconfig.HostIdentity {
		r.log.Warn("host disconnected", zap.Stringer("identity", id))
		return OutcomeHostDisconnected
	}

	if ref, ok := r.roster.Remove(id); ok {
		r.spawner.DespawnPlayer(id, ref)
	}
	r.log.Info("client disconnected", zap.Stringer("identity", id), zap.Int("players", r.roster.Len()))
	return OutcomeRemoved
}

// RosterEntry answers an observer's roster request.
func (r *Registry) RosterEntry(id netconfig.Identity) messages.RosterEntry {
	ref, ok := r.roster.Lookup(id)
	return messages.RosterEntry{Identity: id, Entity: ref, Found: ok}
}

// Err converts an outcome into the error the caller acts on.
func (o Outcome) Err() error {
	if o == OutcomeHostDisconnected {
		return fmt.Errorf("disconnect: %w", ErrHostDisconnected)
	}
	return nil
}
