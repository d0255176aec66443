package speed

import (
	"testing"
	"time"
)

func TestMapSpeedToIntervalMs_Endpoints(t *testing.T) {
	if got := MapSpeedToIntervalMs(1); got != MaxIntervalMs {
		t.Errorf("speed 1 = %d, want %d", got, MaxIntervalMs)
	}
	if got := MapSpeedToIntervalMs(100); got != MinIntervalMs {
		t.Errorf("speed 100 = %d, want %d", got, MinIntervalMs)
	}
}

func TestMapSpeedToIntervalMs_BoundedAndMonotonic(t *testing.T) {
	prev := MapSpeedToIntervalMs(Min)
	for s := Min; s <= Max; s++ {
		got := MapSpeedToIntervalMs(s)
		if got < MinIntervalMs || got > MaxIntervalMs {
			t.Fatalf("speed %d = %d, outside [%d, %d]", s, got, MinIntervalMs, MaxIntervalMs)
		}
		if got > prev {
			t.Fatalf("speed %d = %d, greater than speed %d = %d", s, got, s-1, prev)
		}
		prev = got
	}
}

func TestMapSpeedToIntervalMs_KnownValues(t *testing.T) {
	tests := []struct {
		speed int
		want  int
	}{
		{1, 300},
		{2, 297},
		{50, 156},
		{99, 13},
		{100, 10},
	}
	for _, tt := range tests {
		if got := MapSpeedToIntervalMs(tt.speed); got != tt.want {
			t.Errorf("MapSpeedToIntervalMs(%d) = %d, want %d", tt.speed, got, tt.want)
		}
	}
}

func TestMapSpeedToIntervalMs_Clamps(t *testing.T) {
	tests := []struct {
		speed int
		want  int
	}{
		{-20, MaxIntervalMs},
		{0, MaxIntervalMs},
		{101, MinIntervalMs},
		{1000, MinIntervalMs},
	}
	for _, tt := range tests {
		if got := MapSpeedToIntervalMs(tt.speed); got != tt.want {
			t.Errorf("MapSpeedToIntervalMs(%d) = %d, want %d", tt.speed, got, tt.want)
		}
	}
}

func TestMapSpeedToInterval(t *testing.T) {
	if got := MapSpeedToInterval(100); got != 10*time.Millisecond {
		t.Errorf("MapSpeedToInterval(100) = %v, want 10ms", got)
	}
}

func TestStep(t *testing.T) {
	if got := Step(99, 5); got != Max {
		t.Errorf("Step(99, 5) = %d, want %d", got, Max)
	}
	if got := Step(3, -5); got != Min {
		t.Errorf("Step(3, -5) = %d, want %d", got, Min)
	}
	if got := Step(50, 1); got != 51 {
		t.Errorf("Step(50, 1) = %d, want 51", got)
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe(100); got != "100 (10ms)" {
		t.Errorf("Describe(100) = %q", got)
	}
}
