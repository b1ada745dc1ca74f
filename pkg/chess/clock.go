package chess

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// TimeControl defines the time settings for a game
type TimeControl struct {
	InitialMs   int64 `json:"initialMs"`   // Initial time per side in milliseconds
	IncrementMs int64 `json:"incrementMs"` // Increment per move in milliseconds
}

// Enabled reports whether the time control limits the game at all.
func (tc TimeControl) Enabled() bool {
	return tc.InitialMs > 0
}

// Validate rejects negative values and an increment without initial time.
func (tc TimeControl) Validate() error {
	if tc.InitialMs < 0 || tc.IncrementMs < 0 {
		return errors.New("time control must not be negative")
	}
	if tc.InitialMs == 0 && tc.IncrementMs > 0 {
		return errors.New("increment without initial time")
	}
	return nil
}

// String renders the control the way the lobby lists it, e.g. "5+3".
func (tc TimeControl) String() string {
	if !tc.Enabled() {
		return "none"
	}
	return fmt.Sprintf("%d+%d", tc.InitialMs/60000, tc.IncrementMs/1000)
}

// ClockReading is a point-in-time view of both players' remaining time.
type ClockReading struct {
	WhiteMs int64 `json:"whiteTimeMs"`
	BlackMs int64 `json:"blackTimeMs"`
	Active  Color `json:"activeColor,omitempty"`
}

// Clock manages the chess clock for both players. When the active side's
// time runs out the flag callback is invoked once, from the timer goroutine.
type Clock struct {
	remaining [2]int64
	increment int64

	active    Color
	isRunning bool
	startTime time.Time

	flag  func(Color)
	timer *time.Timer

	mutex sync.Mutex
}

// NewClock creates a new chess clock with the given time control. onFlag is
// called with the color whose time expired.
func NewClock(tc TimeControl, onFlag func(Color)) *Clock {
	return &Clock{
		remaining: [2]int64{tc.InitialMs, tc.InitialMs},
		increment: tc.IncrementMs,
		active:    White,
		flag:      onFlag,
	}
}

// Start starts the clock for the side to move
func (c *Clock) Start(active Color) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.isRunning {
		return
	}

	c.active = active
	c.startTime = time.Now()
	c.isRunning = true
	c.arm()
}

// Stop stops the clock
func (c *Clock) Stop() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.isRunning {
		return
	}

	c.updateTime()
	c.isRunning = false
	if c.timer != nil {
		c.timer.Stop()
	}
}

// Switch charges the elapsed time to the mover, adds the increment and
// hands the clock to the opponent.
func (c *Clock) Switch() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.isRunning {
		c.active = c.active.Opp()
		return
	}

	c.updateTime()
	c.remaining[c.active.index()] += c.increment
	c.active = c.active.Opp()
	c.startTime = time.Now()
	c.arm()
}

// Expired reports whether the given side has no time left.
func (c *Clock) Expired(color Color) bool {
	return c.Reading().remaining(color) <= 0
}

// Reading returns the current remaining time for both players
func (c *Clock) Reading() ClockReading {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	white, black := c.remaining[0], c.remaining[1]
	if c.isRunning {
		elapsed := time.Since(c.startTime).Milliseconds()
		if c.active == White {
			white -= elapsed
		} else {
			black -= elapsed
		}
	}

	// Ensure times don't go negative
	if white < 0 {
		white = 0
	}
	if black < 0 {
		black = 0
	}

	reading := ClockReading{WhiteMs: white, BlackMs: black}
	if c.isRunning {
		reading.Active = c.active
	}
	return reading
}

func (r ClockReading) remaining(color Color) int64 {
	if color == Black {
		return r.BlackMs
	}
	return r.WhiteMs
}

// updateTime charges the elapsed time to the active side. Caller holds the mutex.
func (c *Clock) updateTime() {
	elapsed := time.Since(c.startTime).Milliseconds()
	idx := c.active.index()
	c.remaining[idx] -= elapsed
	if c.remaining[idx] < 0 {
		c.remaining[idx] = 0
	}
	c.startTime = time.Now()
}

// arm (re)starts the flag timer for the active side. Caller holds the mutex.
func (c *Clock) arm() {
	if c.timer != nil {
		c.timer.Stop()
	}

	color := c.active
	left := time.Duration(c.remaining[color.index()]) * time.Millisecond
	c.timer = time.AfterFunc(left, func() {
		if c.flag != nil {
			c.flag(color)
		}
	})
}

// FormatClockTime renders remaining time as "m:ss", or "s.t" under ten
// seconds.
func FormatClockTime(timeMs int64) string {
	if timeMs < 0 {
		timeMs = 0
	}

	totalSeconds := timeMs / 1000
	minutes := totalSeconds / 60
	seconds := totalSeconds % 60

	// For times less than 10 seconds, show decimal
	if timeMs < 10000 {
		tenths := (timeMs % 1000) / 100
		return fmt.Sprintf("%d.%d", totalSeconds, tenths)
	}

	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
