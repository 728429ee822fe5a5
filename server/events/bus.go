// Package events is the in-process publish/subscribe hub for session events.
// Delivery is synchronous, in subscription order, with no replay: an event
// published while a channel has no subscribers is dropped.
package events

import (
	"sync"

	"github.com/automoto/galaxia-mp/shared/netconfig"
)

// Token identifies one subscription within its channel.
type Token uint64

// PlayerScored carries a score delta for a player.
type PlayerScored struct {
	Identity netconfig.Identity
	Amount   int
}

// RoundStarted is published after every player has been placed for a new round.
type RoundStarted struct {
	Round   int
	Players []netconfig.Identity
}

// SessionEnded is published once when the session is torn down.
type SessionEnded struct {
	Reason string
}

// Channel is a typed event stream.
type Channel[T any] struct {
	mu     sync.Mutex // protects subscriber registration
	next   Token
	subs   []subscriber[T]
	closed bool
}

type subscriber[T any] struct {
	token Token
	fn    func(T)
}

// Subscribe registers fn and returns the token that removes it.
func (c *Channel[T]) Subscribe(fn func(T)) Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	tok := c.next
	if c.closed {
		return tok
	}
	c.subs = append(c.subs, subscriber[T]{token: tok, fn: fn})
	return tok
}

// Unsubscribe removes the subscription. Unknown tokens return false.
func (c *Channel[T]) Unsubscribe(tok Token) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s.token == tok {
			subs := make([]subscriber[T], 0, len(c.subs)-1)
			subs = append(subs, c.subs[:i]...)
			c.subs = append(subs, c.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Publish delivers ev to the subscribers present when Publish was called.
func (c *Channel[T]) Publish(ev T) {
	c.mu.Lock()
	subs := c.subs
	c.mu.Unlock()
	for _, s := range subs {
		s.fn(ev)
	}
}

// Len returns the number of live subscriptions.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Channel[T]) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = nil
	c.closed = true
}

// Bus owns one channel per event kind for a single session.
type Bus struct {
	PlayerDied         Channel[netconfig.Identity]
	ClientConnected    Channel[netconfig.Identity]
	ClientDisconnected Channel[netconfig.Identity]
	PlayerScored       Channel[PlayerScored]
	RoundStarted       Channel[RoundStarted]
	SessionEnded       Channel[SessionEnded]
}

func NewBus() *Bus {
	return &Bus{}
}

// Close drops every subscriber. Later subscriptions are ignored.
func (b *Bus) Close() {
	b.PlayerDied.close()
	b.ClientConnected.close()
	b.ClientDisconnected.close()
	b.PlayerScored.close()
	b.RoundStarted.close()
	b.SessionEnded.close()
}
