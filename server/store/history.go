package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/automoto/galaxia-mp/server/events"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Executor is the part of pgxpool.Pool the history writer needs.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type recordKind int

const (
	kindRound recordKind = iota
	kindScore
)

type record struct {
	kind     recordKind
	session  int
	round    int
	players  int
	identity uint64
	amount   int
}

// History records round starts and score changes. Recording never blocks;
// when the queue is full the record is dropped and counted.
type History struct {
	exec    Executor
	queue   chan record
	log     *zap.Logger
	dropped atomic.Int64
	written atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
	started   atomic.Bool
	finished  chan struct{}
}

func NewHistory(exec Executor, queueSize int, log *zap.Logger) *History {
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &History{
		exec:     exec,
		queue:    make(chan record, queueSize),
		log:      log.With(zap.String("component", "history")),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Attach subscribes to a session bus. The subscriptions end when the bus
// is closed.
func (h *History) Attach(bus *events.Bus, session int) {
	bus.RoundStarted.Subscribe(func(ev events.RoundStarted) {
		h.enqueue(record{kind: kindRound, session: session, round: ev.Round, players: len(ev.Players)})
	})
	bus.PlayerScored.Subscribe(func(ev events.PlayerScored) {
		h.enqueue(record{kind: kindScore, session: session, identity: uint64(ev.Identity), amount: ev.Amount})
	})
}

func (h *History) enqueue(r record) {
	select {
	case <-h.done:
		h.dropped.Add(1)
		return
	default:
	}
	select {
	case h.queue <- r:
	default:
		h.dropped.Add(1)
	}
}

// Dropped counts records lost to a full queue or a closed writer.
func (h *History) Dropped() int64 { return h.dropped.Load() }

// Written counts records stored successfully.
func (h *History) Written() int64 { return h.written.Load() }

// Run writes queued records until ctx is done or Close is called, then
// flushes what is left. Only the first call runs.
func (h *History) Run(ctx context.Context) {
	if !h.started.CompareAndSwap(false, true) {
		return
	}
	defer close(h.finished)
	for {
		select {
		case r := <-h.queue:
			h.write(ctx, r)
		case <-ctx.Done():
			h.drain(context.Background())
			return
		case <-h.done:
			h.drain(ctx)
			return
		}
	}
}

// Close stops Run and, if Run has started, waits until the queue is
// flushed. The executor may be released once Close returns.
func (h *History) Close() {
	h.closeOnce.Do(func() { close(h.done) })
	if h.started.Load() {
		<-h.finished
	}
}

func (h *History) drain(ctx context.Context) {
	for {
		select {
		case r := <-h.queue:
			h.write(ctx, r)
		default:
			return
		}
	}
}

func (h *History) write(ctx context.Context, r record) {
	if err := h.insert(ctx, r); err != nil {
		h.log.Warn("history write failed", zap.Error(err))
		return
	}
	h.written.Add(1)
}

func (h *History) insert(ctx context.Context, r record) error {
	switch r.kind {
	case kindRound:
		if _, err := h.exec.Exec(ctx,
			`INSERT INTO match_rounds (session, round, players) VALUES ($1, $2, $3)`,
			r.session, r.round, r.players,
		); err != nil {
			return fmt.Errorf("insert round: %w", err)
		}
	case kindScore:
		if _, err := h.exec.Exec(ctx,
			`INSERT INTO match_scores (session, identity, amount) VALUES ($1, $2, $3)`,
			r.session, int64(r.identity), r.amount,
		); err != nil {
			return fmt.Errorf("insert score: %w", err)
		}
	}
	return nil
}
