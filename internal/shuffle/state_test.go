package shuffle

import (
	"math/rand/v2"
	"testing"
	"time"
)

func running(n int) State {
	s, _ := Reduce(State{Interval: 100 * time.Millisecond}, Event{Kind: EventSetSnapshotLen, Len: n})
	s, _ = Reduce(s, Event{Kind: EventStart})
	return s
}

func TestReduce_Start(t *testing.T) {
	tests := []struct {
		name    string
		cards   int
		wantRun bool
	}{
		{"empty", 0, false},
		{"single card", 1, false},
		{"two cards", 2, true},
		{"many cards", 12, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := Reduce(State{Interval: time.Second}, Event{Kind: EventSetSnapshotLen, Len: tt.cards})
			next, eff := Reduce(s, Event{Kind: EventStart})

			if next.Running() != tt.wantRun {
				t.Fatalf("Running = %v", next.Running())
			}
			if tt.wantRun && (eff.Kind != EffectArmTimer || eff.Interval != time.Second) {
				t.Errorf("effect = %+v", eff)
			}
			if !tt.wantRun && eff.Kind != EffectNone {
				t.Errorf("effect = %+v", eff)
			}
		})
	}
}

func TestReduce_StartTwiceArmsOnce(t *testing.T) {
	s := running(3)
	_, eff := Reduce(s, Event{Kind: EventStart})
	if eff.Kind != EffectNone {
		t.Fatalf("second start effect = %+v", eff)
	}
}

func TestReduce_StartResetsHistory(t *testing.T) {
	s := running(3)
	s, _ = Reduce(s, Event{Kind: EventTick, Index: 2})
	s, _ = Reduce(s, Event{Kind: EventStop})
	s, _ = Reduce(s, Event{Kind: EventStart})

	if len(s.History) != 1 || s.History[0] != 2 {
		t.Errorf("History = %v", s.History)
	}
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	s := running(3)
	before := s.Clone()

	Reduce(s, Event{Kind: EventTick, Index: 1})
	if len(s.History) != len(before.History) || s.CurrentIndex != before.CurrentIndex {
		t.Errorf("input mutated: %+v", s)
	}
}

func TestReduce_TickNeverRepeats(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for _, n := range []int{2, 3, 10} {
		s := running(n)
		for i := 0; i < 10000; i++ {
			prev := s.CurrentIndex
			idx := Pick(rng, n, s.CurrentIndex, s.HasCurrent)
			s, _ = Reduce(s, Event{Kind: EventTick, Index: idx})

			if s.CurrentIndex == prev {
				t.Fatalf("n=%d tick %d repeated index %d", n, i, prev)
			}
			if s.CurrentIndex < 0 || s.CurrentIndex >= n {
				t.Fatalf("index %d out of range", s.CurrentIndex)
			}
		}
		if len(s.History) != MaxHistory {
			t.Errorf("History length = %d, want %d", len(s.History), MaxHistory)
		}
	}
}

func TestReduce_TickAutoStopsOnShrink(t *testing.T) {
	s := running(3)
	s, _ = Reduce(s, Event{Kind: EventTick, Index: 1})
	s, _ = Reduce(s, Event{Kind: EventSetSnapshotLen, Len: 1})
	hist := len(s.History)

	next, eff := Reduce(s, Event{Kind: EventTick, Index: -1})
	if next.Running() || eff.Kind != EffectDisarmTimer {
		t.Fatalf("state = %+v effect = %+v", next, eff)
	}
	if len(next.History) != hist {
		t.Errorf("history grew on auto-stop")
	}
	if next.CurrentIndex != 0 || !next.HasCurrent {
		t.Errorf("index not clamped: %+v", next)
	}
}

func TestReduce_TickIgnoredWhenIdle(t *testing.T) {
	s, _ := Reduce(State{}, Event{Kind: EventSetSnapshotLen, Len: 3})
	next, eff := Reduce(s, Event{Kind: EventTick, Index: 2})
	if next.CurrentIndex != 0 || eff.Kind != EffectNone || len(next.History) != 0 {
		t.Errorf("idle tick changed state: %+v", next)
	}
}

func TestReduce_StopKeepsIndex(t *testing.T) {
	s := running(4)
	s, _ = Reduce(s, Event{Kind: EventTick, Index: 3})

	next, eff := Reduce(s, Event{Kind: EventStop})
	if next.Running() || eff.Kind != EffectDisarmTimer {
		t.Fatalf("state = %+v effect = %+v", next, eff)
	}
	if next.CurrentIndex != 3 {
		t.Errorf("CurrentIndex = %d", next.CurrentIndex)
	}

	_, eff = Reduce(next, Event{Kind: EventStop})
	if eff.Kind != EffectNone {
		t.Errorf("stop while idle effect = %+v", eff)
	}
}

func TestReduce_SetIntervalRearmsWhileRunning(t *testing.T) {
	s := running(3)
	s, _ = Reduce(s, Event{Kind: EventTick, Index: 2})

	next, eff := Reduce(s, Event{Kind: EventSetInterval, Interval: 10 * time.Millisecond})
	if eff.Kind != EffectArmTimer || eff.Interval != 10*time.Millisecond {
		t.Fatalf("effect = %+v", eff)
	}
	if next.CurrentIndex != 2 || len(next.History) != len(s.History) {
		t.Errorf("re-arm lost position: %+v", next)
	}

	idle, _ := Reduce(next, Event{Kind: EventStop})
	_, eff = Reduce(idle, Event{Kind: EventSetInterval, Interval: time.Second})
	if eff.Kind != EffectNone {
		t.Errorf("idle interval change effect = %+v", eff)
	}
}

func TestReduce_SetSnapshotLenClamps(t *testing.T) {
	s, _ := Reduce(State{}, Event{Kind: EventSetSnapshotLen, Len: 5})
	if !s.HasCurrent || s.CurrentIndex != 0 {
		t.Fatalf("first load should show card 0: %+v", s)
	}

	s.CurrentIndex = 4
	s, _ = Reduce(s, Event{Kind: EventSetSnapshotLen, Len: 2})
	if s.CurrentIndex != 1 {
		t.Errorf("CurrentIndex = %d, want 1", s.CurrentIndex)
	}

	s, _ = Reduce(s, Event{Kind: EventSetSnapshotLen, Len: 0})
	if s.HasCurrent {
		t.Errorf("empty snapshot still has a current card")
	}
}

func TestPick_Uniformish(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	counts := make([]int, 4)
	for i := 0; i < 8000; i++ {
		counts[Pick(rng, 4, 0, true)]++
	}
	if counts[0] != 0 {
		t.Fatalf("picked the excluded index %d times", counts[0])
	}
	for i := 1; i < 4; i++ {
		if counts[i] < 2000 {
			t.Errorf("index %d picked %d times", i, counts[i])
		}
	}
}
