// Package player implements the per-identity player state machine: replicated
// lifecycle, health and score, input gating, and the rate-limited fire action.
package player

import (
	"time"

	"github.com/automoto/galaxia-mp/server/events"
	"github.com/automoto/galaxia-mp/server/health"
	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/netconfig"
	"github.com/automoto/galaxia-mp/shared/replica"
	"go.uber.org/zap"
)

// Presenter receives visual side effects. Calls are fire-and-forget.
type Presenter interface {
	SetVisible(id netconfig.Identity, visible bool)
	ShowMessage(text string, d time.Duration)
}

type nopPresenter struct{}

func (nopPresenter) SetVisible(netconfig.Identity, bool) {}
func (nopPresenter) ShowMessage(string, time.Duration)   {}

// Config holds the per-player tuning values.
type Config struct {
	MaxHealth       int
	TimeBetweenFire time.Duration
	MuzzleOffset    float64
	DeathMessage    string
	DeathMessageFor time.Duration
}

// Options wires a player to its session.
type Options struct {
	Identity   netconfig.Identity
	Entity     netconfig.EntityRef
	Role       netconfig.Role
	LocalOwner bool // the process controls this player
	Bus        *events.Bus
	Presenter  Presenter
	Log        *zap.Logger
}

// Shot is an accepted fire action.
type Shot struct {
	Shooter   netconfig.Identity
	Seq       uint32
	Origin    gamemath.Vec2
	Direction gamemath.Vec2
}

// State is the replicated portion of a player.
type State struct {
	Lifecycle replica.Snapshot[netconfig.LifecycleState]
	Health    replica.Snapshot[int]
	Score     replica.Snapshot[int]
}

type Player struct {
	id     netconfig.Identity
	entity netconfig.EntityRef
	role   netconfig.Role
	local  bool
	cfg    Config

	pose      gamemath.Pose
	lifecycle *replica.Field[netconfig.LifecycleState]
	score     *replica.Field[int]
	health    *health.Health

	blockInput   bool
	hidden       bool
	fireCooldown time.Duration
	fireSeq      uint32

	bus       *events.Bus
	presenter Presenter
	log       *zap.Logger
}

func New(cfg Config, opts Options) *Player {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.Stringer("identity", opts.Identity))
	presenter := opts.Presenter
	if presenter == nil {
		presenter = nopPresenter{}
	}
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus()
	}

	p := &Player{
		id:        opts.Identity,
		entity:    opts.Entity,
		role:      opts.Role,
		local:     opts.LocalOwner,
		cfg:       cfg,
		pose:      gamemath.Pose{Facing: gamemath.V(1, 0)},
		lifecycle: replica.NewField(netconfig.Alive),
		score:     replica.NewField(0),
		health:    health.New(opts.Role, cfg.MaxHealth, log),
		bus:       bus,
		presenter: presenter,
		log:       log,
	}
	p.lifecycle.OnChange(p.onLifecycleChanged)
	p.score.OnChange(p.onScoreChanged)
	p.health.OnChange(p.onHealthChanged)
	return p
}

func (p *Player) Identity() netconfig.Identity { return p.id }

func (p *Player) Entity() netconfig.EntityRef { return p.entity }

func (p *Player) Role() netconfig.Role { return p.role }

func (p *Player) IsLocalOwner() bool { return p.local }

func (p *Player) Pose() gamemath.Pose { return p.pose }

func (p *Player) Lifecycle() netconfig.LifecycleState { return p.lifecycle.Get() }

func (p *Player) IsAlive() bool { return p.lifecycle.Get() == netconfig.Alive }

func (p *Player) Score() int { return p.score.Get() }

func (p *Player) Health() *health.Health { return p.health }

func (p *Player) InputBlocked() bool { return p.blockInput }

func (p *Player) Hidden() bool { return p.hidden }

// FireCooldown is the time left before the next fire is accepted.
func (p *Player) FireCooldown() time.Duration { return p.fireCooldown }

func (p *Player) authoritative() bool { return p.role == netconfig.RoleAuthoritative }

// Update advances the fire countdown.
func (p *Player) Update(dt time.Duration) {
	if p.fireCooldown > 0 {
		p.fireCooldown -= dt
		if p.fireCooldown < 0 {
			p.fireCooldown = 0
		}
	}
}

// TryFire accepts a fire action if the player can act and the countdown has
// elapsed. The countdown restarts before the shot is returned.
func (p *Player) TryFire() (Shot, bool) {
	if p.blockInput || !p.IsAlive() || p.fireCooldown > 0 {
		return Shot{}, false
	}
	p.fireCooldown = p.cfg.TimeBetweenFire
	p.fireSeq++

	dir := p.pose.Facing.Normalize()
	if dir.IsZero() {
		dir = gamemath.V(1, 0)
	}
	return Shot{
		Shooter:   p.id,
		Seq:       p.fireSeq,
		Origin:    p.pose.Position.Add(dir.Scale(p.cfg.MuzzleOffset)),
		Direction: dir,
	}, true
}

// ApplyMove updates position and facing from owner input. Gated input is
// dropped and reported as false.
func (p *Player) ApplyMove(pose gamemath.Pose) bool {
	if p.blockInput || !p.IsAlive() {
		return false
	}
	p.pose.Position = pose.Position
	if !pose.Facing.IsZero() {
		p.pose.Facing = pose.Facing.Normalize()
	}
	return true
}

// SetPose places the player regardless of gating. Observers use it to mirror
// the replicated position.
func (p *Player) SetPose(pose gamemath.Pose) {
	p.pose = pose
	if p.pose.Facing.IsZero() {
		p.pose.Facing = gamemath.V(1, 0)
	}
}

// TakeDamage routes damage through the health subsystem. On the authoritative
// role a kill moves the player to Dead; on an observer the result is a
// prediction only.
func (p *Player) TakeDamage(amount int, reason netconfig.DamageReason, instigator netconfig.Identity) bool {
	return p.health.ApplyDamage(amount, reason, instigator)
}

// Kill forces the Dead state regardless of health.
func (p *Player) Kill() {
	if !p.authoritative() {
		return
	}
	p.lifecycle.Set(netconfig.Dead)
}

// Respawn places the player at pose with full health and the Alive state.
// Calling it on an already reset player changes nothing.
func (p *Player) Respawn(pose gamemath.Pose) {
	if !p.authoritative() {
		return
	}
	p.SetPose(pose)
	p.health.Reset()
	p.fireCooldown = 0
	p.lifecycle.Set(netconfig.Alive)
}

// AddScore adds n to the score and publishes the delta.
func (p *Player) AddScore(n int) {
	if !p.authoritative() || n == 0 {
		return
	}
	p.score.Set(p.score.Get() + n)
}

func (p *Player) Snapshot() State {
	return State{
		Lifecycle: p.lifecycle.Snapshot(),
		Health:    p.health.Snapshot(),
		Score:     p.score.Snapshot(),
	}
}

// ApplySnapshot mirrors authoritative state. Health is applied before the
// lifecycle so death handlers observe the final health value.
func (p *Player) ApplySnapshot(s State) {
	if p.authoritative() {
		return
	}
	p.health.Apply(s.Health)
	p.score.Apply(s.Score)
	p.lifecycle.Apply(s.Lifecycle)
}

func (p *Player) onLifecycleChanged(old, cur netconfig.LifecycleState) {
	p.log.Debug("lifecycle changed", zap.Stringer("from", old), zap.Stringer("to", cur))
	switch cur {
	case netconfig.Dead:
		p.blockInput = true
		p.hidden = true
		p.presenter.SetVisible(p.id, false)
		p.bus.PlayerDied.Publish(p.id)
		if p.local {
			p.presenter.ShowMessage(p.cfg.DeathMessage, p.cfg.DeathMessageFor)
		}
	case netconfig.Alive:
		p.blockInput = false
		p.hidden = false
		p.presenter.SetVisible(p.id, true)
	}
}

func (p *Player) onHealthChanged(_, cur int) {
	if cur == 0 && p.authoritative() {
		p.lifecycle.Set(netconfig.Dead)
	}
}

func (p *Player) onScoreChanged(old, cur int) {
	p.bus.PlayerScored.Publish(events.PlayerScored{Identity: p.id, Amount: cur - old})
}
