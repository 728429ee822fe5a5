package transporttest

import (
	"errors"
	"testing"

	"github.com/automoto/galaxia-mp/shared/netconfig"
)

func TestHubDeliversInOrder(t *testing.T) {
	hub := NewHub()
	var log []string
	hub.Serve(func(from netconfig.Identity, msg any) {
		log = append(log, "server:"+msg.(string))
		hub.SendTo(from, "ack")
	})
	a := hub.Attach(2, func(msg any) { log = append(log, "2:"+msg.(string)) })
	hub.Attach(1, func(msg any) { log = append(log, "1:"+msg.(string)) })

	hub.Broadcast("hello")
	if err := a.Request("ping"); err != nil {
		t.Fatal(err)
	}
	if got := hub.Flush(); got != 4 {
		t.Errorf("got %d delivered, want 4", got)
	}

	want := []string{"1:hello", "2:hello", "server:ping", "2:ack"}
	if len(log) != len(want) {
		t.Fatalf("got %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestDetachedClient(t *testing.T) {
	hub := NewHub()
	got := 0
	c := hub.Attach(3, func(any) { got++ })
	hub.SendTo(3, "queued")
	hub.Detach(3)
	hub.Flush()
	if got != 0 {
		t.Errorf("detached client received %d messages", got)
	}
	if err := c.Request("x"); !errors.Is(err, ErrDetached) {
		t.Errorf("got %v, want ErrDetached", err)
	}
}
