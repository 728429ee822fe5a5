// Package transporttest provides an in-process Messenger for driving a
// session and its clients without a network.
package transporttest

import (
	"errors"
	"sort"
	"sync"

	"github.com/automoto/galaxia-mp/shared/netconfig"
	"github.com/automoto/galaxia-mp/shared/transport"
)

var (
	_ transport.Messenger = (*Hub)(nil)
	_ transport.Requester = (*HubClient)(nil)
)

// ErrDetached is returned by a client whose connection has been dropped.
var ErrDetached = errors.New("transporttest: client detached")

type envelope struct {
	toServer bool
	from     netconfig.Identity
	to       netconfig.Identity
	msg      any
}

// Hub is an in-process transport.Messenger. Messages are queued and delivered in send
// order by Flush, so handlers may send further messages without reentrancy.
type Hub struct {
	mu      sync.Mutex
	queue   []envelope
	server  func(from netconfig.Identity, msg any)
	clients map[netconfig.Identity]func(msg any)
}

func NewHub() *Hub {
	return &Hub{clients: make(map[netconfig.Identity]func(any))}
}

// Serve installs the server-side handler.
func (h *Hub) Serve(fn func(from netconfig.Identity, msg any)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.server = fn
}

// Attach connects a client with the given identity and returns its requester.
func (h *Hub) Attach(id netconfig.Identity, fn func(msg any)) *HubClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[id] = fn
	return &HubClient{hub: h, id: id}
}

// Detach drops a client. Messages already queued for it are discarded.
func (h *Hub) Detach(id netconfig.Identity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

// Broadcast queues msg for every attached client, in ascending identity order.
func (h *Hub) Broadcast(msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]netconfig.Identity, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		h.queue = append(h.queue, envelope{to: id, msg: msg})
	}
}

// SendTo queues msg for one client.
func (h *Hub) SendTo(id netconfig.Identity, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queue = append(h.queue, envelope{to: id, msg: msg})
}

// Pending returns the number of queued messages.
func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}

// Flush delivers queued messages until the queue is empty, including messages
// queued by the handlers themselves. It returns the number delivered.
func (h *Hub) Flush() int {
	delivered := 0
	for {
		h.mu.Lock()
		if len(h.queue) == 0 {
			h.mu.Unlock()
			return delivered
		}
		env := h.queue[0]
		h.queue = h.queue[1:]
		var fn func(any)
		server := h.server
		if !env.toServer {
			fn = h.clients[env.to]
		}
		h.mu.Unlock()

		switch {
		case env.toServer && server != nil:
			server(env.from, env.msg)
			delivered++
		case fn != nil:
			fn(env.msg)
			delivered++
		}
	}
}

// HubClient is the client end of a Hub connection.
type HubClient struct {
	hub *Hub
	id  netconfig.Identity
}

func (c *HubClient) Identity() netconfig.Identity { return c.id }

// Request queues msg for the server.
func (c *HubClient) Request(msg any) error {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	if _, ok := c.hub.clients[c.id]; !ok {
		return ErrDetached
	}
	c.hub.queue = append(c.hub.queue, envelope{toServer: true, from: c.id, msg: msg})
	return nil
}
