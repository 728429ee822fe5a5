package network

import (
	"sort"
	"time"

	"github.com/automoto/galaxia-mp/server/arena"
	"github.com/automoto/galaxia-mp/server/events"
	"github.com/automoto/galaxia-mp/server/laser"
	"github.com/automoto/galaxia-mp/server/player"
	"github.com/automoto/galaxia-mp/server/session"
	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/leveldata"
	"github.com/automoto/galaxia-mp/shared/messages"
	"github.com/automoto/galaxia-mp/shared/netcomponents"
	"github.com/automoto/galaxia-mp/shared/netconfig"
	"github.com/automoto/galaxia-mp/shared/replica"
	"github.com/automoto/galaxia-mp/shared/transport"
	"go.uber.org/zap"
)

// ObserverOptions configures an Observer.
type ObserverOptions struct {
	Player player.Config
	// Laser tunes local fire prediction. Bounds come from the arena.
	Laser laser.Config
	// Arenas by name. When the accepted level is among them, the local
	// player's lasers are swept against it; otherwise they fly straight.
	Arenas     map[string]*leveldata.Arena
	BodyWidth  float64
	BodyHeight float64
	Requester  transport.Requester
	Presenter  player.Presenter
	Log        *zap.Logger
	// OnTeardown runs once when the session ends or the join is rejected.
	OnTeardown func(reason string)
}

// Observer is the client-side mirror of one session. It never decides
// outcomes: it applies what the server reports and predicts only the local
// player's own input and lasers.
type Observer struct {
	opts ObserverOptions
	log  *zap.Logger
	bus  *events.Bus

	local   netconfig.Identity
	joined  bool
	roster  *session.Mirror
	players map[netconfig.Identity]*player.Player
	byRef   map[netconfig.EntityRef]*player.Player
	lasers  *laser.Mirror
	level   *arena.Level // nil without a known arena
	moves   MoveHistory

	match    netconfig.MatchState
	round    int
	tickRate int

	ended     bool
	endReason string
}

func NewObserver(opts ObserverOptions) *Observer {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Requester == nil {
		opts.Requester = discardRequester{}
	}
	if opts.BodyWidth <= 0 || opts.BodyHeight <= 0 {
		opts.BodyWidth, opts.BodyHeight = defaultBodySize, defaultBodySize
	}
	return &Observer{
		opts:    opts,
		log:     opts.Log,
		bus:     events.NewBus(),
		players: make(map[netconfig.Identity]*player.Player),
		byRef:   make(map[netconfig.EntityRef]*player.Player),
	}
}

const defaultBodySize = 16

type discardRequester struct{}

func (discardRequester) Request(any) error { return nil }

func (o *Observer) Joined() bool { return o.joined }

func (o *Observer) Ended() bool { return o.ended }

func (o *Observer) EndReason() string { return o.endReason }

func (o *Observer) Local() netconfig.Identity { return o.local }

func (o *Observer) MatchState() (netconfig.MatchState, int) { return o.match, o.round }

func (o *Observer) TickRate() int { return o.tickRate }

// Bus is the observer-local event bus.
func (o *Observer) Bus() *events.Bus { return o.bus }

// Roster is nil until the join is accepted.
func (o *Observer) Roster() *session.Mirror { return o.roster }

// Lasers is nil until the join is accepted.
func (o *Observer) Lasers() *laser.Mirror { return o.lasers }

// Player returns the mirrored player of id.
func (o *Observer) Player(id netconfig.Identity) (*player.Player, bool) {
	p, ok := o.players[id]
	return p, ok
}

// LocalPlayer returns the player this process controls.
func (o *Observer) LocalPlayer() (*player.Player, bool) {
	if !o.joined {
		return nil, false
	}
	return o.Player(o.local)
}

// Identities returns the mirrored identities in ascending order.
func (o *Observer) Identities() []netconfig.Identity {
	ids := make([]netconfig.Identity, 0, len(o.players))
	for id := range o.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Resolve implements session.Resolver.
func (o *Observer) Resolve(ref netconfig.EntityRef) (*player.Player, bool) {
	p, ok := o.byRef[ref]
	return p, ok
}

// Target implements laser.Targets for the local laser simulation.
func (o *Observer) Target(id netconfig.Identity) (laser.Target, bool) {
	p, ok := o.players[id]
	if !ok {
		return nil, false
	}
	return p, true
}

// Handle applies one server message. Unknown messages are ignored.
func (o *Observer) Handle(msg any) {
	if o.ended {
		return
	}
	switch m := msg.(type) {
	case messages.JoinAccepted:
		o.onJoinAccepted(m)
	case messages.JoinRejected:
		o.teardown("join rejected: " + m.Reason)
	case messages.SessionEnded:
		o.teardown(m.Reason)
	case messages.PlayerSpawned:
		o.spawn(m.Identity, m.Entity, m.Pose)
	case messages.PlayerDespawned:
		o.despawn(m.Identity)
	case messages.PlayerState:
		if p, ok := o.players[m.Identity]; ok {
			p.ApplySnapshot(player.State{Lifecycle: m.Lifecycle, Health: m.Health, Score: m.Score})
		}
	case messages.PoseReset:
		if p, ok := o.players[m.Identity]; ok {
			p.SetPose(m.Pose)
			if m.Identity == o.local {
				o.moves.Reset()
			}
		}
	case messages.ClientConnected:
		if o.roster != nil {
			o.roster.OnClientConnected(m.Identity)
		}
		o.bus.ClientConnected.Publish(m.Identity)
	case messages.ClientDisconnected:
		if o.roster != nil {
			o.roster.OnClientDisconnected(m.Identity)
		}
		o.bus.ClientDisconnected.Publish(m.Identity)
	case messages.RosterCount:
		if o.roster != nil {
			o.roster.ApplyCount(m)
		}
	case messages.RosterEntry:
		if o.roster != nil {
			o.roster.ApplyEntry(m)
		}
	case messages.LaserSpawned:
		if o.lasers != nil {
			o.lasers.ApplySpawned(m)
		}
	case messages.LaserBounced:
		if o.lasers != nil {
			o.lasers.ApplyBounced(m)
		}
	case messages.LaserDestroyed:
		if o.lasers != nil {
			o.lasers.ApplyDestroyed(m)
		}
	case messages.MatchState:
		o.match, o.round = m.State, m.Round
	case messages.OnScreenMessage:
		if o.opts.Presenter != nil {
			o.opts.Presenter.ShowMessage(m.Text, m.Duration)
		}
	}
}

func (o *Observer) onJoinAccepted(m messages.JoinAccepted) {
	if o.joined {
		return
	}
	o.joined = true
	o.local = m.Identity
	o.tickRate = m.TickRate
	o.roster = session.NewMirror(m.Identity, o.opts.Requester, o, o.bus, o.log)
	o.lasers = laser.NewMirror(m.Identity, laser.DefaultPredictionTTL)
	if a, ok := o.opts.Arenas[m.Level]; ok {
		o.level = arena.NewLevel(a, o.opts.BodyWidth, o.opts.BodyHeight)
		cfg := o.opts.Laser
		cfg.Bounds = o.level.Bounds()
		o.lasers.Simulate(cfg, o.level, o, o.log)
	} else {
		o.log.Warn("arena unknown, local lasers will not bounce", zap.String("level", m.Level))
	}
	o.spawn(m.Identity, m.Entity, m.Spawn)
	o.roster.OnLocalSpawn()
	o.log.Info("joined session",
		zap.Stringer("identity", m.Identity),
		zap.String("server", m.ServerName),
		zap.String("level", m.Level),
		zap.Int("tick_rate", m.TickRate))
}

func (o *Observer) spawn(id netconfig.Identity, ref netconfig.EntityRef, pose gamemath.Pose) {
	if p, ok := o.players[id]; ok {
		if p.Entity() == ref {
			return
		}
		o.despawn(id)
	}
	p := player.New(o.opts.Player, player.Options{
		Identity:   id,
		Entity:     ref,
		Role:       netconfig.RoleObserver,
		LocalOwner: o.joined && id == o.local,
		Bus:        o.bus,
		Presenter:  o.opts.Presenter,
		Log:        o.log,
	})
	p.SetPose(pose)
	o.players[id] = p
	o.byRef[ref] = p
}

func (o *Observer) despawn(id netconfig.Identity) {
	p, ok := o.players[id]
	if !ok {
		return
	}
	delete(o.players, id)
	delete(o.byRef, p.Entity())
	if o.level != nil {
		o.level.RemoveBody(id)
	}
	if o.roster != nil {
		o.roster.Players().Invalidate()
	}
}

// Move applies owner input locally and sends it. Dead or blocked players
// neither move nor send.
func (o *Observer) Move(pose gamemath.Pose) error {
	p, ok := o.LocalPlayer()
	if !ok || o.ended || !p.ApplyMove(pose) {
		return nil
	}
	seq := o.moves.Store(p.Pose())
	return o.opts.Requester.Request(messages.MoveInput{Seq: seq, Pose: p.Pose()})
}

// Fire predicts a local laser and asks the server to fire. The local
// countdown mirrors the server's so the prediction is rarely wrong; the
// server still decides.
func (o *Observer) Fire() (bool, error) {
	p, ok := o.LocalPlayer()
	if !ok || o.ended {
		return false, nil
	}
	shot, ok := p.TryFire()
	if !ok {
		return false, nil
	}
	o.lasers.Predict(shot.Seq, shot.Origin, shot.Direction, o.opts.Laser.Speed)
	return true, o.opts.Requester.Request(messages.FireRequest{Seq: shot.Seq, Pose: p.Pose()})
}

// Update advances local countdowns, then steps local lasers against the
// current player bodies and extrapolates the rest.
func (o *Observer) Update(dt time.Duration) {
	if o.ended {
		return
	}
	for _, p := range o.players {
		p.Update(dt)
	}
	o.placeBodies()
	if o.lasers != nil {
		o.lasers.Advance(dt)
	}
}

// placeBodies mirrors live players into the local collision space.
func (o *Observer) placeBodies() {
	if o.level == nil {
		return
	}
	for id, p := range o.players {
		if p.IsAlive() {
			o.level.AddBody(id, p.Pose().Position)
		} else {
			o.level.RemoveBody(id)
		}
	}
}

// ApplyComponents applies the replicated components of one snapshot entity.
// Remote players take the server position; the local player only snaps back
// when the server disagrees by more than the reconcile threshold.
func (o *Observer) ApplyComponents(comps []any) {
	if o.ended {
		return
	}
	var (
		pos   *netcomponents.NetPositionData
		state *netcomponents.NetPlayerStateData
	)
	for _, c := range comps {
		switch v := c.(type) {
		case netcomponents.NetPositionData:
			pos = &v
		case netcomponents.NetPlayerStateData:
			state = &v
		case netcomponents.NetLaserData:
			if o.lasers != nil {
				o.lasers.ApplyPosition(v.ID, gamemath.V(v.X, v.Y), gamemath.V(v.DirX, v.DirY))
			}
		case netcomponents.NetRosterData:
			if o.roster != nil {
				o.roster.ApplyCount(messages.RosterCount{Count: v.Count})
			}
			o.match, o.round = netconfig.MatchState(v.MatchState), v.Round
		}
	}
	if state == nil {
		return
	}
	id := netconfig.Identity(state.Identity)
	p, ok := o.players[id]
	if !ok {
		return
	}
	p.ApplySnapshot(player.State{
		Lifecycle: replica.Snapshot[netconfig.LifecycleState]{Value: netconfig.LifecycleState(state.Lifecycle), Revision: state.LifecycleRev},
		Health:    replica.Snapshot[int]{Value: state.Health, Revision: state.HealthRev},
		Score:     replica.Snapshot[int]{Value: state.Score, Revision: state.ScoreRev},
	})
	if pos == nil {
		return
	}
	server := gamemath.Pose{Position: gamemath.V(pos.X, pos.Y), Facing: gamemath.V(pos.FacingX, pos.FacingY)}
	if id != o.local {
		p.SetPose(server)
		return
	}
	if o.moves.NeedsCorrection(p.Pose().Position, server.Position) {
		o.log.Debug("local position corrected",
			zap.Float64("x", server.Position.X), zap.Float64("y", server.Position.Y))
		p.SetPose(server)
		o.moves.Reset()
	}
}

func (o *Observer) teardown(reason string) {
	if o.ended {
		return
	}
	o.ended = true
	o.endReason = reason
	if o.lasers != nil {
		o.lasers.Clear()
	}
	if o.roster != nil {
		o.roster.Close()
	}
	o.bus.SessionEnded.Publish(events.SessionEnded{Reason: reason})
	o.bus.Close()
	o.log.Info("session over", zap.String("reason", reason))
	if o.opts.OnTeardown != nil {
		o.opts.OnTeardown(reason)
	}
}
