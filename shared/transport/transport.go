// Package transport defines the directed messaging shapes the simulation uses:
// broadcast to all, targeted to one, and request from a client to the server.
package transport

import "github.com/automoto/galaxia-mp/shared/netconfig"

// Messenger sends server-to-client messages. Delivery is reliable and ordered
// per recipient; sends are fire-and-forget.
type Messenger interface {
	Broadcast(msg any)
	SendTo(id netconfig.Identity, msg any)
}

// Requester sends client-to-server messages.
type Requester interface {
	Request(msg any) error
}

// Discard drops every message.
type Discard struct{}

func (Discard) Broadcast(any) {}

func (Discard) SendTo(netconfig.Identity, any) {}
