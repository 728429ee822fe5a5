// Package gamemode runs the round state machine: quorum-gated round start,
// spawn assignment, and delayed respawn passes after a death.
package gamemode

import (
	"errors"
	"fmt"
	"time"

	"github.com/automoto/galaxia-mp/config"
	"github.com/automoto/galaxia-mp/server/events"
	"github.com/automoto/galaxia-mp/server/player"
	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/netconfig"
	"go.uber.org/zap"
)

var (
	// ErrNoSpawnPoints means the level has no spawn transforms at all.
	ErrNoSpawnPoints = errors.New("gamemode: level has no spawn points")
	// ErrNotEnoughSpawnPoints means more players are connected than spawns exist.
	ErrNotEnoughSpawnPoints = errors.New("gamemode: more players than spawn points")
)

// Roster is the controller's view of who is connected.
type Roster interface {
	Count() int
	Players() []*player.Player
}

// Lasers is cleared on every round reset.
type Lasers interface {
	Clear()
}

// Announcer publishes round side effects to clients. Calls are fire-and-forget.
type Announcer interface {
	Announce(text string, d time.Duration)
	RoundStateChanged(state netconfig.MatchState, round int)
	PlayerPlaced(id netconfig.Identity, pose gamemath.Pose)
}

type nopAnnouncer struct{}

func (nopAnnouncer) Announce(string, time.Duration) {}

func (nopAnnouncer) RoundStateChanged(netconfig.MatchState, int) {}

func (nopAnnouncer) PlayerPlaced(netconfig.Identity, gamemath.Pose) {}

type Controller struct {
	mode      config.GameMode
	role      netconfig.Role
	bus       *events.Bus
	roster    Roster
	spawns    []gamemath.Pose
	lasers    Lasers
	announcer Announcer
	schedule  *Schedule
	log       *zap.Logger

	state    netconfig.MatchState
	round    int
	respawns map[Token]struct{}
	subs     []func()
}

func NewController(mode config.GameMode, role netconfig.Role, bus *events.Bus, roster Roster, spawns []gamemath.Pose, lasers Lasers, announcer Announcer, log *zap.Logger) *Controller {
	if announcer == nil {
		announcer = nopAnnouncer{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		mode:      mode,
		role:      role,
		bus:       bus,
		roster:    roster,
		spawns:    spawns,
		lasers:    lasers,
		announcer: announcer,
		schedule:  NewSchedule(),
		log:       log.With(zap.String("mode", mode.Name)),
		respawns:  make(map[Token]struct{}),
	}
}

// Start subscribes to session events and runs the initial quorum check.
// Observers never drive the round.
func (c *Controller) Start() {
	if c.role != netconfig.RoleAuthoritative {
		return
	}
	connected := c.bus.ClientConnected.Subscribe(func(netconfig.Identity) { c.evaluate() })
	died := c.bus.PlayerDied.Subscribe(c.onPlayerDied)
	c.subs = append(c.subs,
		func() { c.bus.ClientConnected.Unsubscribe(connected) },
		func() { c.bus.PlayerDied.Unsubscribe(died) },
	)
	c.evaluate()
}

// Close drops subscriptions and pending callbacks.
func (c *Controller) Close() {
	for _, unsubscribe := range c.subs {
		unsubscribe()
	}
	c.subs = nil
	c.schedule.Reset()
	clear(c.respawns)
}

func (c *Controller) State() netconfig.MatchState { return c.state }

func (c *Controller) HasStarted() bool { return c.state == netconfig.MatchInProgress }

func (c *Controller) Round() int { return c.round }

// PendingRespawns is the number of respawn passes still scheduled.
func (c *Controller) PendingRespawns() int { return len(c.respawns) }

// Update advances the schedule by one tick.
func (c *Controller) Update(dt time.Duration) {
	c.schedule.Advance(dt)
}

func (c *Controller) evaluate() {
	if c.state == netconfig.MatchInProgress {
		return
	}
	if c.roster.Count() < c.mode.PlayersNeededToStart {
		c.log.Debug("waiting for players",
			zap.Int("connected", c.roster.Count()),
			zap.Int("needed", c.mode.PlayersNeededToStart))
		return
	}
	if err := c.StartRound(); err != nil {
		c.log.Error("round start halted", zap.Error(err))
	}
}

// StartRound places every player on a distinct spawn point with full health
// and clears live lasers. Respawn passes still pending from before are
// cancelled. A spawn shortage is a configuration error and leaves the round
// unstarted.
func (c *Controller) StartRound() error {
	players := c.roster.Players()
	if err := c.checkSpawns(len(players)); err != nil {
		return err
	}

	for tok := range c.respawns {
		c.schedule.Cancel(tok)
	}
	clear(c.respawns)

	c.resetAll(players)
	c.state = netconfig.MatchInProgress
	c.round++

	ids := make([]netconfig.Identity, len(players))
	for i, p := range players {
		ids[i] = p.Identity()
	}
	c.log.Info("round started", zap.Int("round", c.round), zap.Int("players", len(players)))
	c.announcer.RoundStateChanged(c.state, c.round)
	c.bus.RoundStarted.Publish(events.RoundStarted{Round: c.round, Players: ids})
	return nil
}

func (c *Controller) checkSpawns(players int) error {
	if len(c.spawns) == 0 {
		return ErrNoSpawnPoints
	}
	if players > len(c.spawns) {
		return fmt.Errorf("%w: %d players, %d spawn points", ErrNotEnoughSpawnPoints, players, len(c.spawns))
	}
	return nil
}

func (c *Controller) resetAll(players []*player.Player) {
	if c.lasers != nil {
		c.lasers.Clear()
	}
	for i, p := range players {
		pose := c.spawns[i%len(c.spawns)]
		p.Respawn(pose)
		c.announcer.PlayerPlaced(p.Identity(), pose)
	}
}

func (c *Controller) onPlayerDied(id netconfig.Identity) {
	var tok Token
	tok = c.schedule.After(c.mode.RespawnDelay, func() {
		delete(c.respawns, tok)
		c.respawnPass()
	})
	c.respawns[tok] = struct{}{}
	c.log.Debug("respawn scheduled", zap.Stringer("identity", id), zap.Duration("delay", c.mode.RespawnDelay))
}

// respawnPass resets every player. Running it on already reset players is
// harmless.
func (c *Controller) respawnPass() {
	players := c.roster.Players()
	if err := c.checkSpawns(len(players)); err != nil {
		c.log.Error("respawn halted", zap.Error(err))
		return
	}
	c.resetAll(players)
	c.announcer.Announce(c.mode.GoMessage, c.mode.GoMessageFor)
}
