package network

import (
	"testing"
	"time"

	"github.com/automoto/galaxia-mp/server/laser"
	"github.com/automoto/galaxia-mp/server/player"
	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/leveldata"
	"github.com/automoto/galaxia-mp/shared/messages"
	"github.com/automoto/galaxia-mp/shared/netcomponents"
	"github.com/automoto/galaxia-mp/shared/netconfig"
	"github.com/automoto/galaxia-mp/shared/replica"
)

type fakeRequester struct {
	sent []any
}

func (f *fakeRequester) Request(msg any) error {
	f.sent = append(f.sent, msg)
	return nil
}

func sentOf[T any](f *fakeRequester) []T {
	var out []T
	for _, m := range f.sent {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

type fakePresenter struct {
	messages []string
}

func (f *fakePresenter) SetVisible(netconfig.Identity, bool) {}

func (f *fakePresenter) ShowMessage(text string, _ time.Duration) {
	f.messages = append(f.messages, text)
}

const (
	testFireInterval = 300 * time.Millisecond
	testFrame        = time.Second / 30
)

// boxArena is a 400x300 box walled on every side.
func boxArena() *leveldata.Arena {
	return &leveldata.Arena{
		Name:      "box",
		MapWidth:  400,
		MapHeight: 300,
		Walls: []leveldata.Wall{
			{ID: 1, Rect: gamemath.Rect{X: 0, Y: 0, W: 400, H: 16}},
			{ID: 2, Rect: gamemath.Rect{X: 0, Y: 284, W: 400, H: 16}},
			{ID: 3, Rect: gamemath.Rect{X: 0, Y: 16, W: 16, H: 268}},
			{ID: 4, Rect: gamemath.Rect{X: 384, Y: 16, W: 16, H: 268}},
		},
	}
}

func newTestObserver(t *testing.T) (*Observer, *fakeRequester, *fakePresenter, *[]string) {
	t.Helper()
	req := &fakeRequester{}
	pres := &fakePresenter{}
	var teardowns []string
	o := NewObserver(ObserverOptions{
		Player: player.Config{
			MaxHealth:       100,
			TimeBetweenFire: testFireInterval,
			MuzzleOffset:    10,
			DeathMessage:    "You died",
			DeathMessageFor: time.Second,
		},
		Laser:      laser.Config{Speed: 400, MaxBounces: 3, Damage: 25},
		Arenas:     map[string]*leveldata.Arena{"box": boxArena()},
		BodyWidth:  16,
		BodyHeight: 16,
		Requester:  req,
		Presenter:  pres,
		OnTeardown: func(reason string) { teardowns = append(teardowns, reason) },
	})
	return o, req, pres, &teardowns
}

func join(o *Observer, id netconfig.Identity) {
	o.Handle(messages.JoinAccepted{
		Identity:   id,
		Entity:     netconfig.EntityRef(id) + 100,
		Spawn:      gamemath.Pose{Position: gamemath.V(50, 50), Facing: gamemath.V(1, 0)},
		ServerName: "test",
		TickRate:   30,
		Level:      "box",
	})
}

func TestJoinAcceptedCreatesLocalPlayer(t *testing.T) {
	o, req, _, _ := newTestObserver(t)
	if _, ok := o.LocalPlayer(); ok {
		t.Fatal("local player exists before join")
	}

	join(o, 2)

	p, ok := o.LocalPlayer()
	if !ok {
		t.Fatal("no local player after join")
	}
	if !p.IsLocalOwner() || p.Role() != netconfig.RoleObserver {
		t.Errorf("local player role=%v local=%v", p.Role(), p.IsLocalOwner())
	}
	if got := p.Pose().Position; got != gamemath.V(50, 50) {
		t.Errorf("spawn position = %v", got)
	}
	if got, want := o.TickRate(), 30; got != want {
		t.Errorf("tick rate = %d, want %d", got, want)
	}
	reqs := sentOf[messages.RosterEntryRequest](req)
	if len(reqs) != 1 || reqs[0].Identity != 2 {
		t.Errorf("roster requests = %v, want one for identity 2", reqs)
	}
	if got, ok := o.Resolve(102); !ok || got != p {
		t.Error("local entity does not resolve")
	}
}

func TestFirePredictsAndRespectsCooldown(t *testing.T) {
	o, req, _, _ := newTestObserver(t)
	if fired, _ := o.Fire(); fired {
		t.Fatal("fired before joining")
	}
	join(o, 1)

	fired, err := o.Fire()
	if err != nil || !fired {
		t.Fatalf("first fire = %v, %v", fired, err)
	}
	if fired, _ := o.Fire(); fired {
		t.Error("second fire inside the cooldown was accepted")
	}
	if got := o.Lasers().Len(); got != 1 {
		t.Errorf("predicted lasers = %d, want 1", got)
	}

	o.Update(testFireInterval)
	if fired, _ := o.Fire(); !fired {
		t.Error("fire after the cooldown was rejected")
	}

	reqs := sentOf[messages.FireRequest](req)
	if len(reqs) != 2 {
		t.Fatalf("fire requests = %d, want 2", len(reqs))
	}
	if reqs[0].Seq != 1 || reqs[1].Seq != 2 {
		t.Errorf("fire seqs = %d, %d", reqs[0].Seq, reqs[1].Seq)
	}
}

func TestServerLaserAdoptsPrediction(t *testing.T) {
	o, _, _, _ := newTestObserver(t)
	join(o, 1)
	if _, err := o.Fire(); err != nil {
		t.Fatal(err)
	}

	o.Handle(messages.LaserSpawned{
		ID: 7, Shooter: 1, Seq: 1,
		Position: gamemath.V(60, 50), Direction: gamemath.V(1, 0), Speed: 400, BouncesLeft: 3,
	})
	if got := o.Lasers().Len(); got != 1 {
		t.Fatalf("lasers after confirmation = %d, want 1", got)
	}
	o.Lasers().Each(func(l *laser.Mirrored) {
		if l.Predicted || l.ID != 7 {
			t.Errorf("laser = %+v, want confirmed id 7", *l)
		}
	})
}

func onlyLaser(t *testing.T, o *Observer) *laser.Mirrored {
	t.Helper()
	var got *laser.Mirrored
	o.Lasers().Each(func(l *laser.Mirrored) { got = l })
	if o.Lasers().Len() != 1 || got == nil {
		t.Fatalf("got %d lasers, want 1", o.Lasers().Len())
	}
	return got
}

func TestLocalLaserBouncesOffArenaWall(t *testing.T) {
	o, _, _, _ := newTestObserver(t)
	join(o, 1)
	o.Handle(messages.PoseReset{Identity: 1, Pose: gamemath.Pose{Position: gamemath.V(200, 150), Facing: gamemath.V(1, 0)}})
	if !o.Lasers().Simulating() {
		t.Fatal("known arena should enable the local laser simulation")
	}
	if fired, err := o.Fire(); !fired || err != nil {
		t.Fatalf("fire = %v, %v", fired, err)
	}
	l := onlyLaser(t, o)
	if l.BouncesLeft != 3 {
		t.Errorf("got bounces %d at fire time, want 3", l.BouncesLeft)
	}

	for i := 0; i < 25; i++ {
		o.Update(testFrame)
	}

	if l.Position.X >= 384 {
		t.Errorf("got x %v, want west of the east wall face", l.Position.X)
	}
	if l.Direction.X >= 0 || l.BouncesLeft != 2 {
		t.Errorf("got dir %v bounces %d, want heading west with 2 left", l.Direction, l.BouncesLeft)
	}
}

func TestLocalLaserHitOnRemoteIsOnlyPredicted(t *testing.T) {
	o, _, _, _ := newTestObserver(t)
	join(o, 1)
	o.Handle(messages.PoseReset{Identity: 1, Pose: gamemath.Pose{Position: gamemath.V(200, 150), Facing: gamemath.V(1, 0)}})
	o.Handle(messages.PlayerSpawned{Identity: 2, Entity: 102, Pose: gamemath.Pose{Position: gamemath.V(300, 150), Facing: gamemath.V(-1, 0)}})
	if _, err := o.Fire(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		o.Update(testFrame)
	}

	l := onlyLaser(t, o)
	if !l.Ended || !l.HitPlayer || l.Victim != 2 {
		t.Errorf("got %+v, want the local copy stopped on player 2", *l)
	}
	remote, _ := o.Player(2)
	if got := remote.Health().Current(); got != 100 {
		t.Errorf("got remote health %d, want 100 until the server reports", got)
	}
	self, _ := o.LocalPlayer()
	if got := self.Score(); got != 0 {
		t.Errorf("got local score %d, want 0", got)
	}
}

func TestUnknownArenaLasersFlyStraight(t *testing.T) {
	o, _, _, _ := newTestObserver(t)
	o.Handle(messages.JoinAccepted{
		Identity: 1,
		Entity:   101,
		Spawn:    gamemath.Pose{Position: gamemath.V(200, 150), Facing: gamemath.V(1, 0)},
		Level:    "elsewhere",
	})
	if o.Lasers().Simulating() {
		t.Fatal("unknown arena should not enable the local simulation")
	}
	if _, err := o.Fire(); err != nil {
		t.Fatal(err)
	}
	o.Update(500 * time.Millisecond)

	if l := onlyLaser(t, o); l.Position != gamemath.V(410, 150) || l.BouncesLeft != 0 {
		t.Errorf("got %+v, want (410,150) with no bounces", *l)
	}
}

func TestDeathBlocksMovement(t *testing.T) {
	o, req, pres, _ := newTestObserver(t)
	join(o, 1)

	if err := o.Move(gamemath.Pose{Position: gamemath.V(70, 50), Facing: gamemath.V(0, 1)}); err != nil {
		t.Fatal(err)
	}
	if got := len(sentOf[messages.MoveInput](req)); got != 1 {
		t.Fatalf("move inputs = %d, want 1", got)
	}

	o.Handle(messages.PlayerState{
		Identity:  1,
		Lifecycle: replica.Snapshot[netconfig.LifecycleState]{Value: netconfig.Dead, Revision: 1},
		Health:    replica.Snapshot[int]{Value: 0, Revision: 1},
		Score:     replica.Snapshot[int]{Value: 0},
	})
	p, _ := o.LocalPlayer()
	if p.IsAlive() {
		t.Fatal("local player alive after dead snapshot")
	}
	if len(pres.messages) != 1 || pres.messages[0] != "You died" {
		t.Errorf("messages = %v", pres.messages)
	}

	_ = o.Move(gamemath.Pose{Position: gamemath.V(90, 50)})
	if got := len(sentOf[messages.MoveInput](req)); got != 1 {
		t.Errorf("move inputs after death = %d, want 1", got)
	}
	if fired, _ := o.Fire(); fired {
		t.Error("dead player fired")
	}
}

func TestStalePlayerStateIgnored(t *testing.T) {
	o, _, _, _ := newTestObserver(t)
	join(o, 1)
	o.Handle(messages.PlayerSpawned{Identity: 3, Entity: 103, Pose: gamemath.Pose{Position: gamemath.V(10, 10)}})

	o.Handle(messages.PlayerState{Identity: 3, Score: replica.Snapshot[int]{Value: 2, Revision: 2}})
	o.Handle(messages.PlayerState{Identity: 3, Score: replica.Snapshot[int]{Value: 1, Revision: 1}})

	p, ok := o.Player(3)
	if !ok {
		t.Fatal("remote player missing")
	}
	if got := p.Score(); got != 2 {
		t.Errorf("score = %d, want 2", got)
	}
}

func TestRemoteSpawnAndDespawn(t *testing.T) {
	o, _, _, _ := newTestObserver(t)
	join(o, 1)
	o.Handle(messages.PlayerSpawned{Identity: 3, Entity: 103})
	o.Handle(messages.PlayerSpawned{Identity: 4, Entity: 104})

	if got := o.Identities(); len(got) != 3 || got[0] != 1 || got[2] != 4 {
		t.Errorf("identities = %v", got)
	}

	o.Handle(messages.PlayerDespawned{Identity: 3})
	if _, ok := o.Player(3); ok {
		t.Error("despawned player still mirrored")
	}
	if _, ok := o.Resolve(103); ok {
		t.Error("despawned entity still resolves")
	}
}

func TestRosterMessagesReachMirror(t *testing.T) {
	o, req, _, _ := newTestObserver(t)
	join(o, 1)

	var connected []netconfig.Identity
	o.Bus().ClientConnected.Subscribe(func(id netconfig.Identity) { connected = append(connected, id) })

	o.Handle(messages.ClientConnected{Identity: 5})
	o.Handle(messages.RosterCount{Count: 2})
	o.Handle(messages.RosterEntry{Identity: 5, Entity: 105, Found: true})

	if len(connected) != 1 || connected[0] != 5 {
		t.Errorf("connected events = %v", connected)
	}
	if got := o.Roster().Count(); got != 2 {
		t.Errorf("roster count = %d, want 2", got)
	}
	if ref, ok := o.Roster().Lookup(5); !ok || ref != 105 {
		t.Errorf("lookup(5) = %v, %v", ref, ok)
	}
	if got := len(sentOf[messages.RosterEntryRequest](req)); got != 2 {
		t.Errorf("roster requests = %d, want 2", got)
	}

	o.Handle(messages.ClientDisconnected{Identity: 5})
	if _, ok := o.Roster().Lookup(5); ok {
		t.Error("disconnected identity still in roster")
	}
}

func TestSessionEndedTearsDownOnce(t *testing.T) {
	o, _, pres, teardowns := newTestObserver(t)
	join(o, 1)
	_, _ = o.Fire()

	o.Handle(messages.SessionEnded{Reason: "host disconnected"})
	o.Handle(messages.SessionEnded{Reason: "again"})
	o.Handle(messages.OnScreenMessage{Text: "late"})

	if !o.Ended() || o.EndReason() != "host disconnected" {
		t.Errorf("ended=%v reason=%q", o.Ended(), o.EndReason())
	}
	if len(*teardowns) != 1 {
		t.Errorf("teardowns = %v, want one", *teardowns)
	}
	if got := o.Lasers().Len(); got != 0 {
		t.Errorf("lasers after teardown = %d", got)
	}
	if len(pres.messages) != 0 {
		t.Errorf("message shown after teardown: %v", pres.messages)
	}
}

func TestJoinRejectedEndsObserver(t *testing.T) {
	o, _, _, teardowns := newTestObserver(t)
	o.Handle(messages.JoinRejected{Status: netconfig.StatusServerFull, Reason: "server full"})

	if !o.Ended() {
		t.Fatal("observer not ended after rejection")
	}
	if len(*teardowns) != 1 || (*teardowns)[0] != "join rejected: server full" {
		t.Errorf("teardowns = %v", *teardowns)
	}
	if o.Joined() {
		t.Error("observer joined after rejection")
	}
}

func TestApplyComponentsReconcilesLocalPlayer(t *testing.T) {
	o, _, _, _ := newTestObserver(t)
	join(o, 1)
	o.Handle(messages.PlayerSpawned{Identity: 2, Entity: 102})

	state := func(id uint64) netcomponents.NetPlayerStateData {
		return netcomponents.NetPlayerStateData{Identity: id, Health: 100}
	}

	// Small drift keeps the local prediction.
	o.ApplyComponents([]any{
		netcomponents.NetPositionData{X: 55, Y: 50, FacingX: 1},
		state(1),
	})
	local, _ := o.LocalPlayer()
	if got := local.Pose().Position; got != gamemath.V(50, 50) {
		t.Errorf("local position after small drift = %v", got)
	}

	o.ApplyComponents([]any{
		netcomponents.NetPositionData{X: 200, Y: 50, FacingX: 1},
		state(1),
	})
	if got := local.Pose().Position; got != gamemath.V(200, 50) {
		t.Errorf("local position after large drift = %v", got)
	}

	o.ApplyComponents([]any{
		netcomponents.NetPositionData{X: 12, Y: 34, FacingY: 1},
		state(2),
	})
	remote, _ := o.Player(2)
	if got := remote.Pose().Position; got != gamemath.V(12, 34) {
		t.Errorf("remote position = %v", got)
	}

	o.ApplyComponents([]any{netcomponents.NetRosterData{Count: 2, MatchState: int(netconfig.MatchInProgress), Round: 3}})
	if st, round := o.MatchState(); st != netconfig.MatchInProgress || round != 3 {
		t.Errorf("match state = %v round %d", st, round)
	}
}
