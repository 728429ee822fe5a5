package core

import (
	"sort"
	"time"
)

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // drain client commands
	PhasePreUpdate               // per-player timers
	PhaseUpdate                  // lasers
	PhasePostUpdate              // round schedule
	PhaseOutput                  // replicate and send
	PhaseCleanup                 // metrics, bookkeeping
)

// System is one step of the tick.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

type systemFunc struct {
	phase Phase
	fn    func(dt time.Duration)
}

func (s systemFunc) Phase() Phase { return s.phase }

func (s systemFunc) Update(dt time.Duration) { s.fn(dt) }

// Runner executes systems in phase order each tick. Systems in the same
// phase keep their registration order.
type Runner struct {
	systems []System
	sorted  bool
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// RegisterFunc registers fn as a system of the given phase.
func (r *Runner) RegisterFunc(phase Phase, fn func(dt time.Duration)) {
	r.Register(systemFunc{phase: phase, fn: fn})
}

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		s.Update(dt)
	}
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
