package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/automoto/galaxia-mp/config"
	"github.com/automoto/galaxia-mp/server/arena"
	"github.com/automoto/galaxia-mp/server/events"
	"github.com/automoto/galaxia-mp/server/gamemode"
	"github.com/automoto/galaxia-mp/server/laser"
	"github.com/automoto/galaxia-mp/server/player"
	"github.com/automoto/galaxia-mp/server/session"
	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/messages"
	"github.com/automoto/galaxia-mp/shared/netconfig"
	"github.com/automoto/galaxia-mp/shared/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/yohamta/donburi"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrSessionEnded is returned for work submitted after teardown.
var ErrSessionEnded = errors.New("session ended")

// SessionDeps wires one session. Zero values get working defaults except
// Config and Level.
type SessionDeps struct {
	Config    *config.Config
	Mode      config.GameMode
	Level     *arena.Level
	World     donburi.World
	Networked bool // register replicated entities with necs
	Messenger transport.Messenger
	Metrics   *Metrics
	Log       *zap.Logger
}

// Session is one authoritative match: the registry, players, lasers and
// round controller sharing a single event bus. A session ends for good when
// the host leaves; the server then builds a fresh one.
type Session struct {
	cfg     *config.Config
	mode    config.GameMode
	log     *zap.Logger
	metrics *Metrics
	bus     *events.Bus
	out     transport.Messenger
	level   *arena.Level

	registry   *session.Registry
	players    map[netconfig.Identity]*player.Player
	byRef      map[netconfig.EntityRef]*player.Player
	list       *session.PlayerList
	lasers     *laser.Simulation
	controller *gamemode.Controller
	repl       *replicator
	runner     *Runner

	limiters   map[limiterKey]*rate.Limiter
	sentStates map[netconfig.Identity]player.State
	nextRef    netconfig.EntityRef
	subs       []func()

	ended     bool
	endReason string
}

func NewSession(deps SessionDeps) (*Session, error) {
	if deps.Config == nil {
		return nil, errors.New("new session: config is required")
	}
	if deps.Level == nil {
		return nil, errors.New("new session: level is required")
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Mode.Name == "" {
		deps.Mode = config.DefaultGameMode()
	}
	if deps.World == nil {
		deps.World = donburi.NewWorld()
	}
	if deps.Messenger == nil {
		deps.Messenger = transport.Discard{}
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(prometheus.NewRegistry())
	}

	cfg := deps.Config
	s := &Session{
		cfg:        cfg,
		mode:       deps.Mode,
		log:        log,
		metrics:    deps.Metrics,
		bus:        events.NewBus(),
		out:        deps.Messenger,
		level:      deps.Level,
		players:    make(map[netconfig.Identity]*player.Player),
		byRef:      make(map[netconfig.EntityRef]*player.Player),
		limiters:   make(map[limiterKey]*rate.Limiter),
		sentStates: make(map[netconfig.Identity]player.State),
	}

	s.registry = session.NewRegistry(session.Config{
		MaxPlayers:      cfg.Session.MaxPlayers,
		MaxPayloadBytes: cfg.Network.MaxPayloadBytes,
		Version:         cfg.Server.Version,
		DefaultSpawn:    s.defaultSpawn(),
	}, s.bus, s, log)
	s.list = session.NewPlayerList(s.registry.Roster(), s, s.bus)
	s.lasers = laser.NewSimulation(laser.Config{
		Speed:      cfg.Laser.Speed,
		MaxBounces: cfg.Laser.MaxBounces,
		Damage:     cfg.Laser.Damage,
		Bounds:     deps.Level.Bounds(),
	}, netconfig.RoleAuthoritative, deps.Level, s, s, log)
	s.repl = newReplicator(deps.World, deps.Networked, log)

	// Session handlers run before the controller so a joining client is
	// told about itself before any round reset reaches it.
	connected := s.bus.ClientConnected.Subscribe(s.onClientConnected)
	died := s.bus.PlayerDied.Subscribe(func(netconfig.Identity) { s.metrics.Kills.Inc() })
	rounds := s.bus.RoundStarted.Subscribe(func(events.RoundStarted) { s.metrics.Rounds.Inc() })
	s.subs = append(s.subs,
		func() { s.bus.ClientConnected.Unsubscribe(connected) },
		func() { s.bus.PlayerDied.Unsubscribe(died) },
		func() { s.bus.RoundStarted.Unsubscribe(rounds) },
	)

	s.controller = gamemode.NewController(deps.Mode, netconfig.RoleAuthoritative, s.bus,
		s.registryView(), deps.Level.Spawns(), s.lasers, s, log)
	s.controller.Start()

	s.runner = NewRunner()
	s.runner.RegisterFunc(PhasePreUpdate, s.updatePlayers)
	s.runner.RegisterFunc(PhaseUpdate, s.updateLasers)
	s.runner.RegisterFunc(PhasePostUpdate, s.controller.Update)
	s.runner.RegisterFunc(PhaseOutput, s.replicate)
	s.runner.RegisterFunc(PhaseCleanup, s.recordGauges)

	s.repl.writeRoster(0, s.controller.State(), s.controller.Round())
	return s, nil
}

// rosterView adapts the registry and player cache to the controller.
type rosterView struct{ s *Session }

func (v rosterView) Count() int { return v.s.registry.Count() }

func (v rosterView) Players() []*player.Player { return v.s.list.Players() }

func (s *Session) registryView() gamemode.Roster { return rosterView{s} }

func (s *Session) Bus() *events.Bus { return s.bus }

func (s *Session) Controller() *gamemode.Controller { return s.controller }

func (s *Session) Lasers() *laser.Simulation { return s.lasers }

func (s *Session) Level() *arena.Level { return s.level }

func (s *Session) Count() int { return s.registry.Count() }

func (s *Session) Identities() []netconfig.Identity { return s.registry.Identities() }

func (s *Session) Ended() bool { return s.ended }

// EndReason is the reason passed to End, empty while the session runs.
func (s *Session) EndReason() string { return s.endReason }

// Player returns the live player of id.
func (s *Session) Player(id netconfig.Identity) (*player.Player, bool) {
	p, ok := s.players[id]
	return p, ok
}

// Connect records a transport-level connection awaiting approval.
func (s *Session) Connect(id netconfig.Identity) {
	if s.ended {
		return
	}
	s.registry.Open(id)
}

// Join runs connection approval for id. Rejected clients are told why.
func (s *Session) Join(id netconfig.Identity, payload []byte) session.Decision {
	if s.ended {
		return session.Decision{Status: netconfig.StatusRejected, Reason: ErrSessionEnded.Error()}
	}
	d := s.registry.ApproveConnection(id, payload)
	if !d.Approved() {
		s.metrics.Rejections.WithLabelValues(d.Reason).Inc()
		s.out.SendTo(id, messages.JoinRejected{Status: d.Status, Reason: d.Reason})
	}
	return d
}

// Disconnect removes id. It returns session.ErrHostDisconnected when the
// host left; the caller must then End the session.
func (s *Session) Disconnect(id netconfig.Identity) error {
	if s.ended {
		return nil
	}
	_, spawned := s.players[id]
	outcome := s.registry.Disconnect(id)
	if outcome == session.OutcomeRemoved && spawned {
		s.out.Broadcast(messages.ClientDisconnected{Identity: id})
		s.out.Broadcast(messages.PlayerDespawned{Identity: id})
		s.out.Broadcast(messages.RosterCount{Count: s.registry.Count()})
		s.repl.writeRoster(s.registry.Count(), s.controller.State(), s.controller.Round())
	}
	return outcome.Err()
}

// HandleMove applies owner movement. Dead or blocked players are ignored.
func (s *Session) HandleMove(id netconfig.Identity, msg messages.MoveInput) {
	p, ok := s.players[id]
	if !ok || s.ended {
		return
	}
	if p.ApplyMove(msg.Pose) {
		s.level.MoveBody(id, p.Pose().Position)
	}
}

// HandleFire aims the player at the request pose and fires if the
// countdown allows it. The client sequence number is kept on the laser so
// the shooter can reconcile its prediction.
func (s *Session) HandleFire(id netconfig.Identity, msg messages.FireRequest) {
	p, ok := s.players[id]
	if !ok || s.ended {
		return
	}
	if !s.allow(id, requestFire) {
		return
	}
	if p.ApplyMove(msg.Pose) {
		s.level.MoveBody(id, p.Pose().Position)
	}
	shot, ok := p.TryFire()
	if !ok {
		return
	}
	s.lasers.Spawn(laser.Spawn{
		Shooter:   shot.Shooter,
		Seq:       msg.Seq,
		Origin:    shot.Origin,
		Direction: shot.Direction,
	})
}

// HandleRosterRequest answers an observer's lookup for one identity.
func (s *Session) HandleRosterRequest(id netconfig.Identity, msg messages.RosterEntryRequest) {
	if s.ended || !s.allow(id, requestRoster) {
		return
	}
	s.out.SendTo(id, s.registry.RosterEntry(msg.Identity))
}

// requestKind separates rate budgets so one kind of request cannot starve
// another.
type requestKind int

const (
	requestFire requestKind = iota
	requestRoster
)

type limiterKey struct {
	id   netconfig.Identity
	kind requestKind
}

func (s *Session) allow(id netconfig.Identity, kind requestKind) bool {
	key := limiterKey{id: id, kind: kind}
	lim, ok := s.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(s.cfg.Network.RequestsPerSec), s.cfg.Network.RequestBurst)
		s.limiters[key] = lim
	}
	if !lim.Allow() {
		s.metrics.DroppedInput.Inc()
		return false
	}
	return true
}

// Tick runs one simulation step.
func (s *Session) Tick(dt time.Duration) {
	if s.ended {
		return
	}
	start := time.Now()
	s.runner.Tick(dt)
	s.metrics.TickDuration.Observe(time.Since(start).Seconds())
}

func (s *Session) updatePlayers(dt time.Duration) {
	for _, p := range s.list.Players() {
		p.Update(dt)
	}
}

func (s *Session) updateLasers(dt time.Duration) {
	s.lasers.Tick(dt)
	s.lasers.Each(s.repl.writeLaser)
}

// replicate pushes player state into the world and broadcasts any player
// whose versioned state changed since the last send.
func (s *Session) replicate(time.Duration) {
	for _, p := range s.list.Players() {
		s.repl.writePlayer(p)
		st := p.Snapshot()
		if prev, ok := s.sentStates[p.Identity()]; ok && prev == st {
			continue
		}
		s.sentStates[p.Identity()] = st
		s.out.Broadcast(messages.PlayerState{
			Identity:  p.Identity(),
			Lifecycle: st.Lifecycle,
			Health:    st.Health,
			Score:     st.Score,
		})
	}
}

func (s *Session) recordGauges(time.Duration) {
	s.metrics.Players.Set(float64(s.registry.Count()))
	s.metrics.Lasers.Set(float64(s.lasers.Len()))
}

// End tears the session down once. Clients are told before anything is
// released so they can disconnect themselves.
func (s *Session) End(reason string) {
	if s.ended {
		return
	}
	s.lasers.Clear()
	s.ended = true
	s.endReason = reason

	s.out.Broadcast(messages.SessionEnded{Reason: reason})
	s.bus.SessionEnded.Publish(events.SessionEnded{Reason: reason})

	s.controller.Close()
	s.list.Close()
	for _, unsubscribe := range s.subs {
		unsubscribe()
	}
	s.subs = nil
	s.repl.clear()
	s.bus.Close()

	s.metrics.Sessions.Inc()
	s.metrics.Players.Set(0)
	s.metrics.Lasers.Set(0)
	s.log.Warn("session ended", zap.String("reason", reason))
}

func (s *Session) defaultSpawn() gamemath.Pose {
	if spawns := s.level.Spawns(); len(spawns) > 0 {
		return spawns[0]
	}
	return gamemath.Pose{Position: s.level.Bounds().Center(), Facing: gamemath.V(1, 0)}
}

// spawnFor picks the provisional spawn of the nth joining player. The round
// start reassigns everyone.
func (s *Session) spawnFor(n int, fallback gamemath.Pose) gamemath.Pose {
	spawns := s.level.Spawns()
	if len(spawns) == 0 {
		return fallback
	}
	return spawns[n%len(spawns)]
}

func (s *Session) onClientConnected(id netconfig.Identity) {
	p, ok := s.players[id]
	if !ok {
		return
	}
	s.out.SendTo(id, messages.JoinAccepted{
		Identity:   id,
		Entity:     p.Entity(),
		Spawn:      p.Pose(),
		ServerName: s.cfg.Server.Name,
		TickRate:   s.cfg.Network.TickRate,
		Level:      s.level.Arena.Name,
	})
	for _, other := range s.list.PlayersExcept(id) {
		s.out.SendTo(id, messages.PlayerSpawned{Identity: other.Identity(), Entity: other.Entity(), Pose: other.Pose()})
		st := other.Snapshot()
		s.out.SendTo(id, messages.PlayerState{Identity: other.Identity(), Lifecycle: st.Lifecycle, Health: st.Health, Score: st.Score})
	}
	s.out.SendTo(id, messages.MatchState{State: s.controller.State(), Round: s.controller.Round()})

	s.out.Broadcast(messages.PlayerSpawned{Identity: id, Entity: p.Entity(), Pose: p.Pose()})
	s.out.Broadcast(messages.ClientConnected{Identity: id})
	s.out.Broadcast(messages.RosterCount{Count: s.registry.Count()})
	s.repl.writeRoster(s.registry.Count(), s.controller.State(), s.controller.Round())
}

// SpawnPlayer implements session.Spawner.
func (s *Session) SpawnPlayer(id netconfig.Identity, pose gamemath.Pose) (netconfig.EntityRef, error) {
	if _, exists := s.players[id]; exists {
		return netconfig.NoEntity, fmt.Errorf("spawn %s: already spawned", id)
	}
	s.nextRef++
	ref := s.nextRef
	p := player.New(player.Config{
		MaxHealth:       s.cfg.Player.MaxHealth,
		TimeBetweenFire: s.cfg.Player.TimeBetweenFire,
		MuzzleOffset:    s.cfg.Player.MuzzleOffset,
		DeathMessage:    s.cfg.Player.DeathMessage,
		DeathMessageFor: s.cfg.Player.DeathMessageFor,
	}, player.Options{
		Identity:  id,
		Entity:    ref,
		Role:      netconfig.RoleAuthoritative,
		Bus:       s.bus,
		Presenter: s,
		Log:       s.log,
	})
	p.SetPose(s.spawnFor(s.registry.Count(), pose))

	s.players[id] = p
	s.byRef[ref] = p
	s.level.AddBody(id, p.Pose().Position)
	s.repl.addPlayer(p)
	return ref, nil
}

// DespawnPlayer implements session.Spawner.
func (s *Session) DespawnPlayer(id netconfig.Identity, ref netconfig.EntityRef) {
	s.level.RemoveBody(id)
	s.repl.removePlayer(ref)
	delete(s.players, id)
	delete(s.byRef, ref)
	delete(s.limiters, limiterKey{id: id, kind: requestFire})
	delete(s.limiters, limiterKey{id: id, kind: requestRoster})
	delete(s.sentStates, id)
}

// Resolve implements session.Resolver.
func (s *Session) Resolve(ref netconfig.EntityRef) (*player.Player, bool) {
	p, ok := s.byRef[ref]
	return p, ok
}

// Target implements laser.Targets.
func (s *Session) Target(id netconfig.Identity) (laser.Target, bool) {
	p, ok := s.players[id]
	if !ok {
		return nil, false
	}
	return p, true
}

// Spawned implements laser.Effects.
func (s *Session) Spawned(l *laser.Laser) {
	s.repl.addLaser(l)
	s.out.Broadcast(messages.LaserSpawned{
		ID:          l.ID,
		Shooter:     l.Shooter,
		Seq:         l.Seq,
		Position:    l.Position,
		Direction:   l.Direction,
		Speed:       l.Speed,
		BouncesLeft: l.BouncesLeft,
	})
}

// Bounced implements laser.Effects.
func (s *Session) Bounced(l *laser.Laser, hit laser.Hit) {
	s.repl.writeLaser(l)
	s.out.Broadcast(messages.LaserBounced{
		ID:          l.ID,
		Position:    l.Position,
		Direction:   l.Direction,
		BouncesLeft: l.BouncesLeft,
		Surface:     uint64(hit.Surface),
	})
}

// Destroyed implements laser.Effects.
func (s *Session) Destroyed(l *laser.Laser) {
	s.repl.removeLaser(l.ID)
	s.out.Broadcast(messages.LaserDestroyed{
		ID:       l.ID,
		Position: l.Position,
		Hit:      l.HitPlayer,
		Victim:   l.Victim,
	})
}

// Announce implements gamemode.Announcer.
func (s *Session) Announce(text string, d time.Duration) {
	s.out.Broadcast(messages.OnScreenMessage{Text: text, Duration: d})
}

// RoundStateChanged implements gamemode.Announcer.
func (s *Session) RoundStateChanged(state netconfig.MatchState, round int) {
	s.repl.writeRoster(s.registry.Count(), state, round)
	s.out.Broadcast(messages.MatchState{State: state, Round: round})
}

// PlayerPlaced implements gamemode.Announcer. The server pose overrides
// whatever the owner last sent.
func (s *Session) PlayerPlaced(id netconfig.Identity, pose gamemath.Pose) {
	if p, ok := s.players[id]; ok {
		s.level.AddBody(id, p.Pose().Position)
		s.repl.writePlayer(p)
	}
	s.out.Broadcast(messages.PoseReset{Identity: id, Pose: pose})
}

// SetVisible implements player.Presenter. Hidden players leave the
// collision space so lasers pass through them.
func (s *Session) SetVisible(id netconfig.Identity, visible bool) {
	if !visible {
		s.level.RemoveBody(id)
		return
	}
	if p, ok := s.players[id]; ok {
		s.level.AddBody(id, p.Pose().Position)
	}
}

// ShowMessage implements player.Presenter. Server players have no local
// owner, so there is nobody to show it to.
func (s *Session) ShowMessage(text string, d time.Duration) {
	s.log.Debug("message for local owner dropped", zap.String("text", text), zap.Duration("for", d))
}
