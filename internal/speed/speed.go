// Package speed maps the user-facing shuffle speed to a tick interval.
package speed

import (
	"fmt"
	"math"
	"time"
)

const (
	// Min is the slowest speed setting
	Min = 1
	// Max is the fastest speed setting
	Max = 100
	// Default is used when no speed has been stored
	Default = 50

	// MaxIntervalMs is the interval at speed 1
	MaxIntervalMs = 300
	// MinIntervalMs is the interval at speed 100
	MinIntervalMs = 10
)

// Clamp forces speed into [Min, Max].
func Clamp(speed int) int {
	if speed < Min {
		return Min
	}
	if speed > Max {
		return Max
	}
	return speed
}

// MapSpeedToIntervalMs linearly interpolates between MaxIntervalMs at speed 1
// and MinIntervalMs at speed 100. Out-of-range speeds are clamped.
func MapSpeedToIntervalMs(speed int) int {
	s := Clamp(speed)
	span := float64(MaxIntervalMs - MinIntervalMs)
	v := float64(MaxIntervalMs) - float64(s-Min)*span/float64(Max-Min)
	return int(math.Round(v))
}

// MapSpeedToInterval is MapSpeedToIntervalMs as a time.Duration.
func MapSpeedToInterval(speed int) time.Duration {
	return time.Duration(MapSpeedToIntervalMs(speed)) * time.Millisecond
}

// Step moves speed by delta and clamps the result.
func Step(speed, delta int) int {
	return Clamp(Clamp(speed) + delta)
}

// Describe returns a short label such as "50 (158ms)".
func Describe(speed int) string {
	s := Clamp(speed)
	return fmt.Sprintf("%d (%dms)", s, MapSpeedToIntervalMs(s))
}
