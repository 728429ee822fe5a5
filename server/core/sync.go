package core

import (
	"github.com/automoto/galaxia-mp/server/laser"
	"github.com/automoto/galaxia-mp/server/player"
	"github.com/automoto/galaxia-mp/shared/netcomponents"
	"github.com/automoto/galaxia-mp/shared/netconfig"
	"github.com/automoto/galaxia-mp/tags"
	"github.com/leap-fish/necs/esync/srvsync"
	"github.com/yohamta/donburi"
	"go.uber.org/zap"
)

// replicator mirrors session state into the donburi world that necs
// snapshots each tick. With networked false the world is still maintained
// but nothing is registered for sync, which keeps tests off the global
// srvsync state.
type replicator struct {
	world     donburi.World
	networked bool
	log       *zap.Logger

	players map[netconfig.EntityRef]donburi.Entity
	lasers  map[uint64]donburi.Entity
	roster  donburi.Entity
}

func newReplicator(world donburi.World, networked bool, log *zap.Logger) *replicator {
	r := &replicator{
		world:     world,
		networked: networked,
		log:       log,
		players:   make(map[netconfig.EntityRef]donburi.Entity),
		lasers:    make(map[uint64]donburi.Entity),
	}
	r.roster = world.Create(tags.Roster, netcomponents.NetRoster)
	if networked {
		r.syncErr(srvsync.NetworkSync(world, &r.roster, netcomponents.NetRoster))
	}
	return r
}

func (r *replicator) syncErr(err error) {
	if err != nil {
		r.log.Error("network sync failed", zap.Error(err))
	}
}

func (r *replicator) addPlayer(p *player.Player) {
	entity := r.world.Create(tags.Player, netcomponents.NetPosition, netcomponents.NetPlayerState)
	r.players[p.Entity()] = entity
	r.writePlayer(p)
	if r.networked {
		// Position interpolates; player state is discrete and versioned
		r.syncErr(srvsync.NetworkSync(r.world, &entity,
			srvsync.WithInterp(netcomponents.NetPosition),
			netcomponents.NetPlayerState,
		))
	}
}

func (r *replicator) removePlayer(ref netconfig.EntityRef) {
	entity, ok := r.players[ref]
	if !ok {
		return
	}
	delete(r.players, ref)
	if r.world.Valid(entity) {
		r.world.Remove(entity)
	}
}

func (r *replicator) writePlayer(p *player.Player) {
	entity, ok := r.players[p.Entity()]
	if !ok || !r.world.Valid(entity) {
		return
	}
	entry := r.world.Entry(entity)
	pose := p.Pose()
	netcomponents.NetPosition.Set(entry, &netcomponents.NetPositionData{
		X:       pose.Position.X,
		Y:       pose.Position.Y,
		FacingX: pose.Facing.X,
		FacingY: pose.Facing.Y,
	})
	s := p.Snapshot()
	netcomponents.NetPlayerState.Set(entry, &netcomponents.NetPlayerStateData{
		Identity:     uint64(p.Identity()),
		Lifecycle:    int(s.Lifecycle.Value),
		LifecycleRev: s.Lifecycle.Revision,
		Health:       s.Health.Value,
		HealthRev:    s.Health.Revision,
		Score:        s.Score.Value,
		ScoreRev:     s.Score.Revision,
	})
}

func (r *replicator) addLaser(l *laser.Laser) {
	entity := r.world.Create(tags.Laser, netcomponents.NetLaser)
	r.lasers[l.ID] = entity
	r.writeLaser(l)
	if r.networked {
		r.syncErr(srvsync.NetworkSync(r.world, &entity, srvsync.WithInterp(netcomponents.NetLaser)))
	}
}

func (r *replicator) writeLaser(l *laser.Laser) {
	entity, ok := r.lasers[l.ID]
	if !ok || !r.world.Valid(entity) {
		return
	}
	netcomponents.NetLaser.Set(r.world.Entry(entity), &netcomponents.NetLaserData{
		ID:          l.ID,
		Shooter:     uint64(l.Shooter),
		X:           l.Position.X,
		Y:           l.Position.Y,
		DirX:        l.Direction.X,
		DirY:        l.Direction.Y,
		Speed:       l.Speed,
		BouncesLeft: l.BouncesLeft,
	})
}

func (r *replicator) removeLaser(id uint64) {
	entity, ok := r.lasers[id]
	if !ok {
		return
	}
	delete(r.lasers, id)
	if r.world.Valid(entity) {
		r.world.Remove(entity)
	}
}

func (r *replicator) writeRoster(count int, state netconfig.MatchState, round int) {
	if !r.world.Valid(r.roster) {
		return
	}
	netcomponents.NetRoster.Set(r.world.Entry(r.roster), &netcomponents.NetRosterData{
		Count:      count,
		MatchState: int(state),
		Round:      round,
	})
}

// entities counts the replicated entities this session owns.
func (r *replicator) entities() int {
	n := len(r.players) + len(r.lasers)
	if r.world.Valid(r.roster) {
		n++
	}
	return n
}

// clear removes every entity this session created.
func (r *replicator) clear() {
	for ref := range r.players {
		r.removePlayer(ref)
	}
	for id := range r.lasers {
		r.removeLaser(id)
	}
	if r.world.Valid(r.roster) {
		r.world.Remove(r.roster)
	}
}
