// Package availability computes bookable time slots for a business day.
// It is a pure calculation: no I/O, safe for concurrent use.
package availability

import (
	"fmt"
	"time"
)

// DefaultStepMinutes is the slot grid; slots always start on :00 or :30.
const DefaultStepMinutes = 30

// DayHours is the opening configuration for a single weekday.
type DayHours struct {
	IsOpen   bool
	OpensAt  string // "HH:MM" wall clock, meaningful only when IsOpen
	ClosesAt string // "HH:MM"
}

// Interval is a half-open busy range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Slot is one candidate start time on the grid.
type Slot struct {
	Time      string `json:"time"` // "HH:MM" in the business timezone
	Available bool   `json:"available"`
}

// Slots enumerates candidate start times for date between opening and
// closing, stepping by stepMin. Candidates at or before now are dropped
// entirely; candidates overlapping a busy interval are returned with
// Available=false so callers can render them struck through.
//
// All returned times are wall clock in loc. busy intervals are compared in
// absolute time, half-open: a slot conflicts iff start < b.End && end > b.Start.
func Slots(hours DayHours, busy []Interval, date time.Time, durationMin, stepMin int, now time.Time, loc *time.Location) ([]Slot, error) {
	if durationMin <= 0 {
		return nil, fmt.Errorf("availability: duration must be positive, got %d", durationMin)
	}
	if stepMin <= 0 {
		stepMin = DefaultStepMinutes
	}
	if !hours.IsOpen {
		return nil, nil
	}

	open, err := atWallClock(date, hours.OpensAt, loc)
	if err != nil {
		return nil, fmt.Errorf("availability: opens_at: %w", err)
	}
	close, err := atWallClock(date, hours.ClosesAt, loc)
	if err != nil {
		return nil, fmt.Errorf("availability: closes_at: %w", err)
	}
	if !close.After(open) {
		return nil, nil
	}

	duration := time.Duration(durationMin) * time.Minute
	step := time.Duration(stepMin) * time.Minute

	var slots []Slot
	for t := open; !t.Add(duration).After(close); t = t.Add(step) {
		if !t.After(now) {
			continue
		}
		slots = append(slots, Slot{
			Time:      t.In(loc).Format("15:04"),
			Available: !overlapsAny(t, t.Add(duration), busy),
		})
	}
	return slots, nil
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}

func atWallClock(date time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), parsed.Hour(), parsed.Minute(), 0, 0, loc), nil
}
