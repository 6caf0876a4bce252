package auctiontime

import (
	"time"
)

const (
	DefaultExtension = 6 * time.Hour
	DefaultStep      = time.Minute
)

// CloseCalculator computes effective close times and liveness on top of a TradingWindow.
type CloseCalculator struct {
	window    *TradingWindow
	extension time.Duration
	step      time.Duration
}

func NewCloseCalculator(window *TradingWindow, extension, step time.Duration) *CloseCalculator {
	if extension <= 0 {
		extension = DefaultExtension
	}
	if step <= 0 {
		step = DefaultStep
	}
	return &CloseCalculator{window: window, extension: extension, step: step}
}

func (c *CloseCalculator) Window() *TradingWindow {
	return c.window
}

// EffectiveEndsAt returns nil when the auction has no bids. Otherwise it is the earlier of the
// configured deadline and the last bid time advanced by the extension, where only time spent
// inside the trading window counts.
func (c *CloseCalculator) EffectiveEndsAt(deadline time.Time, lastBidAt *time.Time) *time.Time {
	if lastBidAt == nil {
		return nil
	}
	effective := c.addOpenDuration(*lastBidAt, c.extension)
	if deadline.Before(effective) {
		effective = deadline
	}
	return &effective
}

// IsLive reports whether bids are accepted at now. With no effective close time the
// auction follows the trading window; otherwise now must be strictly before the close.
func (c *CloseCalculator) IsLive(effectiveEndsAt *time.Time, now time.Time) bool {
	if effectiveEndsAt == nil {
		return c.window.IsOpen(now)
	}
	return now.Before(*effectiveEndsAt)
}

// addOpenDuration walks forward in fixed steps and only spends the budget on steps that
// start inside the window.
func (c *CloseCalculator) addOpenDuration(start time.Time, budget time.Duration) time.Time {
	remaining := budget
	cursor := start
	// Every day has at least one open minute, so a day of closed steps per budget step bounds the walk.
	maxSteps := (int(budget/c.step) + 1) * int(24*time.Hour/c.step+1)

	for steps := 0; remaining > 0 && steps < maxSteps; steps++ {
		step := c.step
		if remaining < step {
			step = remaining
		}
		if c.window.IsOpen(cursor) {
			remaining -= step
		}
		cursor = cursor.Add(step)
	}
	return cursor
}
