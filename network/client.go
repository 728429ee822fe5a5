package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/automoto/galaxia-mp/shared/messages"
	"github.com/coder/websocket"
	"github.com/leap-fish/necs/esync"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"go.uber.org/zap"
)

type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateJoinedGame
	StateError
)

func (s ClientState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateJoinedGame:
		return "joined"
	case StateError:
		return "error"
	}
	return "unknown"
}

const inboundSize = 256

var ErrNotConnected = errors.New("not connected")

// Client manages a WebSocket connection to the game server. Server messages
// are queued in arrival order and drained by the caller's loop; snapshots
// are latest-wins. All shared fields are protected by mu (router callbacks
// run on necs goroutines).
type Client struct {
	mu sync.RWMutex

	state     ClientState
	lastError error
	conn      *websocket.Conn
	log       *zap.Logger

	inbound    chan any
	snapshotCh chan esync.WorldSnapshot // size-1 buffered; latest wins
	done       chan struct{}
	closeOnce  sync.Once
}

func NewClient(log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		state:      StateDisconnected,
		log:        log,
		inbound:    make(chan any, inboundSize),
		snapshotCh: make(chan esync.WorldSnapshot, 1),
		done:       make(chan struct{}),
	}
}

// Connect dials the server in a background goroutine and sends the join
// request once the socket is up.
func (c *Client) Connect(address string, join messages.JoinPayload) {
	c.mu.Lock()
	c.state = StateConnecting
	c.lastError = nil
	c.mu.Unlock()

	router.OnConnect(func(_ *router.NetworkClient) {
		c.log.Info("connected to server", zap.String("address", address))
		c.setState(StateConnected)

		payload, err := json.Marshal(join)
		if err != nil {
			c.setError(fmt.Errorf("encode join payload: %w", err))
			return
		}
		if err := c.Request(messages.JoinRequest{Payload: payload}); err != nil {
			c.setError(fmt.Errorf("send join request: %w", err))
		}
	})

	router.On(func(_ *router.NetworkClient, msg messages.JoinAccepted) {
		c.log.Info("join accepted",
			zap.Stringer("identity", msg.Identity),
			zap.String("server", msg.ServerName),
			zap.Int("tick_rate", msg.TickRate))
		c.setState(StateJoinedGame)
		c.push(msg)
	})

	router.On(func(_ *router.NetworkClient, msg messages.JoinRejected) {
		c.log.Warn("join rejected", zap.Stringer("status", msg.Status), zap.String("reason", msg.Reason))
		c.push(msg)
		c.setError(fmt.Errorf("join rejected: %s", msg.Reason))
	})

	router.On(func(_ *router.NetworkClient, snapshot esync.WorldSnapshot) {
		select { // drain stale, push latest
		case <-c.snapshotCh:
		default:
		}
		c.snapshotCh <- snapshot
	})

	forward[messages.SessionEnded](c)
	forward[messages.PlayerSpawned](c)
	forward[messages.PlayerDespawned](c)
	forward[messages.PlayerState](c)
	forward[messages.PoseReset](c)
	forward[messages.ClientConnected](c)
	forward[messages.ClientDisconnected](c)
	forward[messages.RosterCount](c)
	forward[messages.RosterEntry](c)
	forward[messages.LaserSpawned](c)
	forward[messages.LaserBounced](c)
	forward[messages.LaserDestroyed](c)
	forward[messages.MatchState](c)
	forward[messages.OnScreenMessage](c)

	router.OnDisconnect(func(_ *router.NetworkClient, err error) {
		c.log.Info("disconnected", zap.Error(err))
		c.mu.Lock()
		if c.state != StateError {
			c.state = StateDisconnected
		}
		c.conn = nil
		c.mu.Unlock()
	})

	router.OnError(func(_ *router.NetworkClient, err error) {
		c.log.Warn("network error", zap.Error(err))
	})

	go func() {
		transport := transports.NewWsClientTransport("ws://" + address)
		err := transport.Start(func(conn *websocket.Conn) {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
		})
		if err != nil {
			c.setError(fmt.Errorf("connection failed: %w", err))
		}
	}()
}

func forward[T any](c *Client) {
	router.On(func(_ *router.NetworkClient, msg T) {
		c.push(msg)
	})
}

// push blocks while the queue is full so reliable messages keep their order.
func (c *Client) push(msg any) {
	select {
	case c.inbound <- msg:
	case <-c.done:
	}
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.CloseNow()
	}
	c.closeOnce.Do(func() { close(c.done) })

	router.ResetRouter()
}

func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// Drain returns every queued server message in arrival order. Non-blocking.
func (c *Client) Drain() []any {
	return drainChan(c.inbound)
}

// LatestSnapshot returns the most recent WorldSnapshot, or nil. Non-blocking.
func (c *Client) LatestSnapshot() *esync.WorldSnapshot {
	select {
	case snap := <-c.snapshotCh:
		return &snap
	default:
		return nil
	}
}

// Request implements transport.Requester.
func (c *Client) Request(msg any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	payload, err := router.Serialize(msg)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}

	return conn.Write(context.Background(), websocket.MessageBinary, payload)
}

func (c *Client) setState(s ClientState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) setError(err error) {
	c.mu.Lock()
	c.state = StateError
	c.lastError = err
	c.mu.Unlock()
}

// ApplySnapshot decodes every entity of snapshot and hands its components to
// the observer. Undecodable components are skipped.
func ApplySnapshot(o *Observer, snapshot esync.WorldSnapshot) {
	for _, ent := range snapshot {
		comps := make([]any, 0, len(ent.State))
		for _, b := range ent.State {
			instance, err := esync.Mapper.Deserialize(b)
			if err != nil {
				continue
			}
			comps = append(comps, instance)
		}
		o.ApplyComponents(comps)
	}
}

func drainChan[T any](ch chan T) []T {
	var out []T
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}
