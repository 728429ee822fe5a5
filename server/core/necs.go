package core

import "github.com/leap-fish/necs/router"

// necsPeer sends to one necs client. Equal clients give equal peers, so it
// can key the server's client map.
type necsPeer struct {
	client *router.NetworkClient
}

func (p necsPeer) Send(msg any) error {
	return p.client.SendMessage(msg)
}
