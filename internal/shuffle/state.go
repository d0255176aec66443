// Package shuffle cycles through a card collection at a configurable pace.
//
// The engine is split in two: Reduce is a pure transition function over
// State, and Engine executes the timer effects it asks for.
package shuffle

import (
	"math/rand/v2"
	"time"
)

// MaxHistory bounds the number of indices kept in State.History.
const MaxHistory = 1024

// Mode represents whether the shuffle is cycling.
type Mode int

const (
	// Idle indicates no timer is armed.
	Idle Mode = iota
	// Running indicates a timer is armed and ticks advance the card.
	Running
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// State holds the complete shuffle state.
type State struct {
	Mode         Mode
	CurrentIndex int           // Index into the playable cards
	HasCurrent   bool          // False when there is nothing to show
	Interval     time.Duration // Time between ticks
	History      []int         // Indices shown since the last start, oldest first
	SnapshotLen  int           // Number of playable cards
}

// Running reports whether the shuffle is cycling.
func (s State) Running() bool {
	return s.Mode == Running
}

// CanStart reports whether Start would arm the timer.
func (s State) CanStart() bool {
	return s.Mode == Idle && s.SnapshotLen >= 2
}

// Clone returns a copy that shares no memory with s.
func (s State) Clone() State {
	s.History = append([]int(nil), s.History...)
	return s
}

// EventKind identifies an input to Reduce.
type EventKind int

const (
	EventStart EventKind = iota
	EventStop
	EventTick
	EventSetInterval
	EventSetSnapshotLen
)

// Event is an input to Reduce.
type Event struct {
	Kind     EventKind
	Index    int           // EventTick: the index chosen for this tick
	Interval time.Duration // EventSetInterval
	Len      int           // EventSetSnapshotLen
}

// EffectKind identifies the side effect requested by Reduce.
type EffectKind int

const (
	EffectNone EffectKind = iota
	// EffectArmTimer replaces any armed timer with one at Interval.
	EffectArmTimer
	// EffectDisarmTimer stops the armed timer.
	EffectDisarmTimer
)

// Effect is the side effect requested by Reduce.
type Effect struct {
	Kind     EffectKind
	Interval time.Duration
}

// Reduce applies e to s. It never mutates s.
func Reduce(s State, e Event) (State, Effect) {
	s = s.Clone()
	none := Effect{Kind: EffectNone}

	switch e.Kind {
	case EventStart:
		if !s.CanStart() {
			return s, none
		}
		if !s.HasCurrent {
			s.CurrentIndex, s.HasCurrent = 0, true
		}
		s.Mode = Running
		s.History = []int{s.CurrentIndex}
		return s, Effect{Kind: EffectArmTimer, Interval: s.Interval}

	case EventStop:
		if s.Mode != Running {
			return s, none
		}
		s.Mode = Idle
		return s, Effect{Kind: EffectDisarmTimer}

	case EventTick:
		if s.Mode != Running {
			return s, none
		}
		if s.SnapshotLen < 2 {
			s.Mode = Idle
			return s, Effect{Kind: EffectDisarmTimer}
		}
		if e.Index < 0 || e.Index >= s.SnapshotLen || (s.HasCurrent && e.Index == s.CurrentIndex) {
			return s, none
		}
		s.CurrentIndex, s.HasCurrent = e.Index, true
		s.History = append(s.History, e.Index)
		if len(s.History) > MaxHistory {
			s.History = s.History[len(s.History)-MaxHistory:]
		}
		return s, none

	case EventSetInterval:
		if e.Interval <= 0 || e.Interval == s.Interval {
			return s, none
		}
		s.Interval = e.Interval
		if s.Mode == Running {
			return s, Effect{Kind: EffectArmTimer, Interval: s.Interval}
		}
		return s, none

	case EventSetSnapshotLen:
		n := max(e.Len, 0)
		s.SnapshotLen = n
		switch {
		case n == 0:
			s.CurrentIndex, s.HasCurrent = 0, false
		case !s.HasCurrent:
			s.CurrentIndex, s.HasCurrent = 0, true
		case s.CurrentIndex >= n:
			s.CurrentIndex = n - 1
		}
		return s, none
	}

	return s, none
}

// Pick returns a uniformly random index in [0, n) that differs from prev
// when hasPrev is set. n must be at least 2 when hasPrev is set.
func Pick(r *rand.Rand, n, prev int, hasPrev bool) int {
	for {
		idx := r.IntN(n)
		if !hasPrev || idx != prev || n < 2 {
			return idx
		}
	}
}
