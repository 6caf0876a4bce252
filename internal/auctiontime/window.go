// Package auctiontime holds the pure time rules of an auction: the daily trading window,
// the activity-based close time and the liveness check.
package auctiontime

import (
	"fmt"
	"time"
	// Reference zones must resolve on hosts without a system zoneinfo database.
	_ "time/tzdata"
)

const minutesPerDay = 24 * 60

// TradingWindow is a recurring daily interval of local wall-clock time in a reference zone.
// The interval may wrap past midnight (e.g. 13:00 to 01:00 the next day).
type TradingWindow struct {
	loc         *time.Location
	openMinute  int
	closeMinute int
}

// NewTradingWindow builds a window from minutes-since-midnight. A close minute that is not
// after the open minute is treated as belonging to the next day.
func NewTradingWindow(timezone string, openMinute, closeMinute int) (*TradingWindow, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load trading timezone %q: %w", timezone, err)
	}
	if openMinute < 0 || openMinute >= minutesPerDay || closeMinute < 0 || closeMinute >= minutesPerDay {
		return nil, fmt.Errorf("trading window minutes must be in [0, %d): open=%d close=%d",
			minutesPerDay, openMinute, closeMinute)
	}
	if openMinute == closeMinute {
		return nil, fmt.Errorf("trading window is empty: open and close are both %d", openMinute)
	}
	if closeMinute < openMinute {
		closeMinute += minutesPerDay
	}
	return &TradingWindow{loc: loc, openMinute: openMinute, closeMinute: closeMinute}, nil
}

// IsOpen reports whether t falls inside the window.
func (w *TradingWindow) IsOpen(t time.Time) bool {
	local := t.In(w.loc)
	minutes := local.Hour()*60 + local.Minute()
	// Minutes before the open belong to the tail of the previous day's window.
	if minutes < w.openMinute {
		minutes += minutesPerDay
	}
	return minutes >= w.openMinute && minutes < w.closeMinute
}

func (w *TradingWindow) Location() *time.Location {
	return w.loc
}

// String renders the window as "13:00-01:00 America/New_York".
func (w *TradingWindow) String() string {
	closeMinute := w.closeMinute % minutesPerDay
	return fmt.Sprintf("%02d:%02d-%02d:%02d %s",
		w.openMinute/60, w.openMinute%60, closeMinute/60, closeMinute%60, w.loc)
}
