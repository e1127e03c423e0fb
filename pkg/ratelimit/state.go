// Package ratelimit implements the client-side request budget for the Tank01
// API. A single Window is shared by every worker of a run and bounds the
// number of requests in a trailing minute and a trailing second.
package ratelimit

import (
	"time"
)

// Default budgets. The basic RapidAPI plan tolerates bursts of a few requests
// per second but throttles hard once the per-minute quota is gone.
const (
	DefaultPerMinute = 60
	DefaultPerSecond = 5

	DefaultMinuteWindow = 60 * time.Second
	DefaultSecondWindow = 1 * time.Second

	// DefaultMaxBuffer caps the random padding added to a minute-window wait.
	DefaultMaxBuffer = 500 * time.Millisecond

	DefaultMinJitter = 100 * time.Millisecond
	DefaultMaxJitter = 500 * time.Millisecond
)

// Config holds the two thresholds and the windows they apply to.
type Config struct {
	// PerMinute is the maximum number of requests in any trailing MinuteWindow.
	PerMinute int

	// PerSecond is the maximum number of requests in any trailing SecondWindow.
	PerSecond int

	MinuteWindow time.Duration
	SecondWindow time.Duration

	// MaxBuffer is the upper bound of the random buffer added when the minute
	// budget is exhausted.
	MaxBuffer time.Duration

	// MinJitter and MaxJitter bound the random addition to a second-window wait.
	MinJitter time.Duration
	MaxJitter time.Duration
}

// DefaultConfig returns the budgets used against the Tank01 basic plan.
func DefaultConfig() Config {
	return Config{
		PerMinute:    DefaultPerMinute,
		PerSecond:    DefaultPerSecond,
		MinuteWindow: DefaultMinuteWindow,
		SecondWindow: DefaultSecondWindow,
		MaxBuffer:    DefaultMaxBuffer,
		MinJitter:    DefaultMinJitter,
		MaxJitter:    DefaultMaxJitter,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PerMinute <= 0 {
		c.PerMinute = d.PerMinute
	}
	if c.PerSecond <= 0 {
		c.PerSecond = d.PerSecond
	}
	if c.MinuteWindow <= 0 {
		c.MinuteWindow = d.MinuteWindow
	}
	if c.SecondWindow <= 0 {
		c.SecondWindow = d.SecondWindow
	}
	if c.MaxBuffer < 0 {
		c.MaxBuffer = 0
	}
	if c.MinJitter < 0 {
		c.MinJitter = 0
	}
	if c.MaxJitter < c.MinJitter {
		c.MaxJitter = c.MinJitter
	}
	return c
}

// Snapshot is a point-in-time view of a Window.
type Snapshot struct {
	// InMinute is the number of recorded requests in the trailing minute window.
	InMinute int `json:"in_minute"`

	// InSecond is the number of recorded requests in the trailing second window.
	InSecond int `json:"in_second"`

	PerMinute int `json:"per_minute"`
	PerSecond int `json:"per_second"`
}

// MinuteExhausted reports whether the next Acquire would wait on the minute budget.
func (s Snapshot) MinuteExhausted() bool {
	return s.InMinute >= s.PerMinute
}

// SecondExhausted reports whether the next Acquire would wait on the second budget.
func (s Snapshot) SecondExhausted() bool {
	return s.InSecond >= s.PerSecond
}

// Headroom returns how many requests can be sent right now without waiting.
func (s Snapshot) Headroom() int {
	minute := s.PerMinute - s.InMinute
	second := s.PerSecond - s.InSecond
	if second < minute {
		minute = second
	}
	if minute < 0 {
		return 0
	}
	return minute
}
