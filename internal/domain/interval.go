package domain

import (
	"errors"
	"time"
)

var ErrEmptyInterval = errors.New("interval start must be before end")

// Interval is the half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds a UTC-normalized interval and rejects empty or inverted ranges.
func NewInterval(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, ErrEmptyInterval
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether a and b share at least one instant.
// Intervals that only touch at an endpoint do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func (i Interval) Overlaps(other Interval) bool {
	return Overlaps(i, other)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Minutes is the whole number of minutes covered by the interval.
func (i Interval) Minutes() int {
	return int(i.Duration() / time.Minute)
}

func (i Interval) UTC() Interval {
	return Interval{Start: i.Start.UTC(), End: i.End.UTC()}
}
