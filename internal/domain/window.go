package domain

import "time"

// Window is a half-open time interval [Start, Start+Duration).
// A zero Start or a non-positive Duration means the item is not scheduled.
type Window struct {
	Start    time.Time
	Duration time.Duration
}

// NewWindow builds a normalized window from a start time and duration.
func NewWindow(start time.Time, duration time.Duration) Window {
	return normalizeWindow(Window{Start: start, Duration: duration})
}

// Scheduled reports whether the window has both a start time and a duration.
func (w Window) Scheduled() bool {
	return !w.Start.IsZero() && w.Duration > 0
}

// End returns Start+Duration, or the zero time when the window is not scheduled.
func (w Window) End() time.Time {
	if !w.Scheduled() {
		return time.Time{}
	}
	return w.Start.Add(w.Duration)
}

// Overlaps reports whether two scheduled windows intersect: s1 < e2 && e1 > s2.
// Windows that only touch at an endpoint do not overlap.
func (w Window) Overlaps(other Window) bool {
	if !w.Scheduled() || !other.Scheduled() {
		return false
	}
	return w.Start.Before(other.End()) && w.End().After(other.Start)
}

// Equal reports whether both windows have the same start and duration.
func (w Window) Equal(other Window) bool {
	return w.Start.Equal(other.Start) && w.Duration == other.Duration
}

// Envelope returns the smallest window covering both w and other.
// An unscheduled side is ignored.
func (w Window) Envelope(other Window) Window {
	switch {
	case !w.Scheduled():
		return other
	case !other.Scheduled():
		return w
	}
	start := w.Start
	if other.Start.Before(start) {
		start = other.Start
	}
	end := w.End()
	if other.End().After(end) {
		end = other.End()
	}
	return Window{Start: start, Duration: end.Sub(start)}
}

// normalizeWindow stores times in UTC at second precision.
func normalizeWindow(w Window) Window {
	if !w.Start.IsZero() {
		w.Start = w.Start.UTC().Truncate(time.Second)
	}
	return w
}

// validateWindow rejects negative durations and durations without a start.
func validateWindow(w Window) error {
	if w.Duration < 0 {
		return ErrInvalidWindow
	}
	if w.Duration > 0 && w.Start.IsZero() {
		return ErrInvalidWindow
	}
	return nil
}
