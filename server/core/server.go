package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/automoto/galaxia-mp/config"
	"github.com/automoto/galaxia-mp/server/arena"
	"github.com/automoto/galaxia-mp/server/session"
	"github.com/automoto/galaxia-mp/shared/leveldata"
	"github.com/automoto/galaxia-mp/shared/messages"
	"github.com/automoto/galaxia-mp/shared/netconfig"
	"github.com/leap-fish/necs/esync/srvsync"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"github.com/yohamta/donburi"
	"go.uber.org/zap"
)

// ReasonHostLeft is the SessionEnded reason sent when the host disconnects.
const ReasonHostLeft = "host disconnected"

// Peer is one transport connection.
type Peer interface {
	Send(msg any) error
}

type clientRef struct {
	id         netconfig.Identity
	generation int
}

// RosterInfo is a read-only view of one player for the debug endpoint.
type RosterInfo struct {
	Identity  netconfig.Identity  `json:"identity"`
	Entity    netconfig.EntityRef `json:"entity"`
	Lifecycle string              `json:"lifecycle"`
	Health    int                 `json:"health"`
	Score     int                 `json:"score"`
}

// ServerOptions configures a Server.
type ServerOptions struct {
	Config    *config.Config
	Mode      config.GameMode
	Arena     *leveldata.Arena
	Metrics   *Metrics
	Log       *zap.Logger
	Networked bool // false keeps the server off the necs globals
	// OnSession, when set, is called for every new session before it
	// accepts connections.
	OnSession func(generation int, s *Session)
}

// Server owns the game loop and the current session. All session work runs
// on the loop goroutine; transport callbacks only enqueue commands.
type Server struct {
	cfg       *config.Config
	mode      config.GameMode
	arena     *leveldata.Arena
	metrics   *Metrics
	log       *zap.Logger
	networked bool
	onSession func(int, *Session)

	world     donburi.World
	out       *peerMessenger
	loop      *GameLoop
	transport *transports.WsServerTransport
	commands  chan func()
	done      chan struct{}
	stopOnce  sync.Once

	// loop goroutine only
	session      *Session
	generation   int
	clients      map[Peer]clientRef
	nextIdentity netconfig.Identity

	players atomic.Int64
	mu      sync.RWMutex
	roster  []RosterInfo
}

// CheckArena reports an arena that cannot seat a full session. Every player
// needs a distinct spawn.
func CheckArena(cfg *config.Config, a *leveldata.Arena) error {
	if have, want := len(a.Spawns), cfg.Session.MaxPlayers; have < want {
		return fmt.Errorf("level %q has %d spawns, session.max_players is %d", a.Name, have, want)
	}
	return nil
}

// NewServer creates a new game server with a fresh session.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Config == nil || opts.Arena == nil {
		return nil, errors.New("new server: config and arena are required")
	}
	if err := CheckArena(opts.Config, opts.Arena); err != nil {
		return nil, fmt.Errorf("new server: %w", err)
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		return nil, errors.New("new server: metrics are required")
	}
	queue := opts.Config.Network.CommandQueue
	if queue <= 0 {
		queue = 256
	}

	s := &Server{
		cfg:       opts.Config,
		mode:      opts.Mode,
		arena:     opts.Arena,
		metrics:   metrics,
		log:       log,
		networked: opts.Networked,
		onSession: opts.OnSession,
		world:     donburi.NewWorld(),
		out:       newPeerMessenger(log),
		commands:  make(chan func(), queue),
		done:      make(chan struct{}),
		clients:   make(map[Peer]clientRef),
	}
	s.loop = NewGameLoop(s, opts.Config.TickInterval(), log)

	if s.networked {
		// Set up the world for esync
		srvsync.UseEsync(s.world)
		s.setupRouterCallbacks()
	}

	if err := s.newSession(); err != nil {
		return nil, err
	}
	return s, nil
}

// Start runs the game loop and serves the WebSocket transport on port.
func (s *Server) Start(port uint) error {
	go s.loop.Run()

	s.transport = transports.NewWsServerTransport(port, "", nil)
	return s.transport.Start()
}

// Stop gracefully shuts down the loop. Queued commands are dropped.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.loop.Stop()
	})
}

func (s *Server) setupRouterCallbacks() {
	router.OnConnect(func(client *router.NetworkClient) {
		s.log.Debug("transport connected", zap.String("client", client.Id()))
		peer := necsPeer{client}
		s.enqueueReliable(func() { s.handleConnect(peer) })
	})

	router.OnDisconnect(func(client *router.NetworkClient, err error) {
		if err != nil {
			s.log.Debug("transport closed with error", zap.String("client", client.Id()), zap.Error(err))
		}
		peer := necsPeer{client}
		s.enqueueReliable(func() { s.handleDisconnect(peer) })
	})

	router.On(func(client *router.NetworkClient, msg messages.JoinRequest) {
		peer := necsPeer{client}
		s.enqueueReliable(func() { s.handleJoin(peer, msg) })
	})

	router.On(func(client *router.NetworkClient, msg messages.MoveInput) {
		peer := necsPeer{client}
		s.enqueue(func() {
			if id, ok := s.identityOf(peer); ok {
				s.session.HandleMove(id, msg)
			}
		})
	})

	router.On(func(client *router.NetworkClient, msg messages.FireRequest) {
		peer := necsPeer{client}
		s.enqueue(func() {
			if id, ok := s.identityOf(peer); ok {
				s.session.HandleFire(id, msg)
			}
		})
	})

	router.On(func(client *router.NetworkClient, msg messages.RosterEntryRequest) {
		peer := necsPeer{client}
		s.enqueue(func() {
			if id, ok := s.identityOf(peer); ok {
				s.session.HandleRosterRequest(id, msg)
			}
		})
	})

	router.OnError(func(client *router.NetworkClient, err error) {
		s.log.Warn("client error", zap.String("client", client.Id()), zap.Error(err))
	})
}

// enqueue hands cmd to the loop. Input is dropped when the queue is full.
func (s *Server) enqueue(cmd func()) {
	select {
	case s.commands <- cmd:
	default:
		s.metrics.DroppedInput.Inc()
	}
}

// enqueueReliable waits for queue space. Connection changes must not be lost.
func (s *Server) enqueueReliable(cmd func()) {
	select {
	case s.commands <- cmd:
	case <-s.done:
	}
}

// ProcessCommands drains queued transport work. Called from the loop only.
func (s *Server) ProcessCommands() {
	for {
		select {
		case cmd := <-s.commands:
			cmd()
		default:
			return
		}
	}
}

func (s *Server) tick(dt time.Duration) {
	s.ProcessCommands()
	s.session.Tick(dt)
	s.publishRoster()

	if s.networked {
		if err := srvsync.DoSync(); err != nil {
			s.log.Error("sync error", zap.Error(err))
		}
	}
}

func (s *Server) newSession() error {
	level := arena.NewLevel(s.arena, s.cfg.Player.BodyWidth, s.cfg.Player.BodyHeight)
	sess, err := NewSession(SessionDeps{
		Config:    s.cfg,
		Mode:      s.mode,
		Level:     level,
		World:     s.world,
		Networked: s.networked,
		Messenger: s.out,
		Metrics:   s.metrics,
		Log:       s.log.With(zap.Int("session", s.generation)),
	})
	if err != nil {
		return fmt.Errorf("new session: %w", err)
	}
	s.session = sess
	s.nextIdentity = netconfig.HostIdentity
	if s.onSession != nil {
		s.onSession(s.generation, sess)
	}
	s.log.Info("session ready",
		zap.Int("session", s.generation),
		zap.String("mode", s.mode.Name),
		zap.String("level", s.arena.Name))
	return nil
}

// endSession tears the current session down and opens a fresh one. Peers
// of the old session stay mapped to the old generation and are ignored.
func (s *Server) endSession(reason string) {
	s.session.End(reason)
	s.out.reset()
	s.generation++
	if err := s.newSession(); err != nil {
		s.log.Error("could not start replacement session", zap.Error(err))
		s.Stop()
	}
}

func (s *Server) handleConnect(peer Peer) {
	id := s.nextIdentity
	s.nextIdentity++
	s.clients[peer] = clientRef{id: id, generation: s.generation}
	s.out.attach(id, peer)
	s.session.Connect(id)
	s.log.Info("client connected", zap.Stringer("identity", id), zap.Int("session", s.generation))
}

func (s *Server) handleDisconnect(peer Peer) {
	ref, ok := s.clients[peer]
	if !ok {
		return
	}
	delete(s.clients, peer)
	if ref.generation != s.generation {
		return
	}
	s.out.detach(ref.id)

	err := s.session.Disconnect(ref.id)
	if errors.Is(err, session.ErrHostDisconnected) {
		s.endSession(ReasonHostLeft)
	}
}

func (s *Server) handleJoin(peer Peer, msg messages.JoinRequest) {
	id, ok := s.identityOf(peer)
	if !ok {
		return
	}
	s.session.Join(id, msg.Payload)
}

// identityOf maps a peer to its identity in the current session.
func (s *Server) identityOf(peer Peer) (netconfig.Identity, bool) {
	ref, ok := s.clients[peer]
	if !ok || ref.generation != s.generation {
		return 0, false
	}
	return ref.id, true
}

func (s *Server) publishRoster() {
	roster := make([]RosterInfo, 0, s.session.Count())
	for _, id := range s.session.Identities() {
		p, ok := s.session.Player(id)
		if !ok {
			continue
		}
		roster = append(roster, RosterInfo{
			Identity:  id,
			Entity:    p.Entity(),
			Lifecycle: p.Lifecycle().String(),
			Health:    p.Health().Current(),
			Score:     p.Score(),
		})
	}
	s.players.Store(int64(len(roster)))
	s.mu.Lock()
	s.roster = roster
	s.mu.Unlock()
}

// Session returns the current session. Loop goroutine only.
func (s *Server) Session() *Session { return s.session }

// Generation counts sessions torn down since start.
func (s *Server) Generation() int { return s.generation }

// PlayerCount returns the number of approved players as of the last tick.
func (s *Server) PlayerCount() int {
	return int(s.players.Load())
}

// Roster returns the player view as of the last tick.
func (s *Server) Roster() []RosterInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RosterInfo, len(s.roster))
	copy(out, s.roster)
	return out
}

// peerMessenger implements transport.Messenger over the peers of the
// current session.
type peerMessenger struct {
	mu    sync.RWMutex
	peers map[netconfig.Identity]Peer
	log   *zap.Logger
}

func newPeerMessenger(log *zap.Logger) *peerMessenger {
	return &peerMessenger{peers: make(map[netconfig.Identity]Peer), log: log}
}

func (m *peerMessenger) attach(id netconfig.Identity, p Peer) {
	m.mu.Lock()
	m.peers[id] = p
	m.mu.Unlock()
}

func (m *peerMessenger) detach(id netconfig.Identity) {
	m.mu.Lock()
	delete(m.peers, id)
	m.mu.Unlock()
}

func (m *peerMessenger) reset() {
	m.mu.Lock()
	clear(m.peers)
	m.mu.Unlock()
}

// Broadcast sends msg to every peer in identity order.
func (m *peerMessenger) Broadcast(msg any) {
	m.mu.RLock()
	ids := make([]netconfig.Identity, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		m.SendTo(id, msg)
	}
}

func (m *peerMessenger) SendTo(id netconfig.Identity, msg any) {
	m.mu.RLock()
	p, ok := m.peers[id]
	m.mu.RUnlock()
	if !ok {
		return
	}
	if err := p.Send(msg); err != nil {
		m.log.Debug("send failed", zap.Stringer("identity", id), zap.Error(err))
	}
}
