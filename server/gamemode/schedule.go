package gamemode

import (
	"slices"
	"time"
)

// Token identifies a scheduled callback.
type Token uint64

type scheduled struct {
	token Token
	due   time.Duration
	fn    func()
}

// Schedule runs delayed callbacks from the owner's tick instead of timers.
// Callbacks due at the same time run in the order they were scheduled.
type Schedule struct {
	now     time.Duration
	next    Token
	entries []scheduled
}

func NewSchedule() *Schedule {
	return &Schedule{}
}

// Now is the schedule's clock, the sum of every Advance.
func (s *Schedule) Now() time.Duration { return s.now }

// After schedules fn to run once delay has elapsed.
func (s *Schedule) After(delay time.Duration, fn func()) Token {
	s.next++
	e := scheduled{token: s.next, due: s.now + delay, fn: fn}
	// keep entries sorted by due time, stable for equal times
	i := len(s.entries)
	for i > 0 && s.entries[i-1].due > e.due {
		i--
	}
	s.entries = slices.Insert(s.entries, i, e)
	return e.token
}

// Cancel removes a pending callback. It reports false if the callback already
// ran or was never scheduled.
func (s *Schedule) Cancel(tok Token) bool {
	for i, e := range s.entries {
		if e.token == tok {
			s.entries = slices.Delete(s.entries, i, i+1)
			return true
		}
	}
	return false
}

// Pending returns the number of callbacks waiting to run.
func (s *Schedule) Pending() int { return len(s.entries) }

// Advance moves the clock forward and runs every callback that became due,
// including ones scheduled by callbacks during this call.
func (s *Schedule) Advance(dt time.Duration) {
	s.now += dt
	for len(s.entries) > 0 && s.entries[0].due <= s.now {
		e := s.entries[0]
		s.entries = slices.Delete(s.entries, 0, 1)
		e.fn()
	}
}

// Reset drops every pending callback.
func (s *Schedule) Reset() {
	s.entries = nil
}
