package validation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Domenick1991/slotbooking/internal/domain"
)

const (
	batchKey   = "slots"
	fieldStart = "start_time"
	fieldEnd   = "end_time"
)

const (
	msgEmptyBatch      = "At least one slot is required."
	msgInvalidDate     = "Invalid date format."
	msgPastStart       = "The start time must be in the future."
	msgEndBeforeStart  = "The end time must be after the start time."
	msgInternalOverlap = "Overlaps another slot in this request."
	msgExternalOverlap = "Overlaps an existing booking."
	msgAlreadyBooked   = "This time slot is already booked."
)

// RangeQuery finds persisted slots intersecting iv. A non-zero excludeID skips that slot.
type RangeQuery interface {
	FindOverlapping(ctx context.Context, iv domain.Interval, excludeID int64) ([]domain.Slot, error)
}

type Validator struct {
	clock       Clock
	loc         *time.Location
	minDuration int
}

type Option func(*Validator)

func WithClock(clock Clock) Option {
	return func(v *Validator) {
		v.clock = clock
	}
}

// NewValidator builds a validator reading zone-less dates in loc.
// A minSlotDurationMinutes of zero disables the minimum duration rule.
func NewValidator(loc *time.Location, minSlotDurationMinutes int, opts ...Option) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	v := &Validator{
		clock:       SystemClock{},
		loc:         loc,
		minDuration: minSlotDurationMinutes,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Validator) Location() *time.Location {
	return v.loc
}

type candidate struct {
	index    int
	interval domain.Interval
}

// ValidateBatch checks a whole batch of candidate slots. Presence, format and ordering
// rules are applied to every item in one pass; the duration, internal overlap and
// external overlap stages each run only when everything before them was clean. On a clean
// report the returned intervals are UTC-normalized and in request order.
// The error is non-nil only when lookup fails.
func (v *Validator) ValidateBatch(ctx context.Context, raw []RawSlot, lookup RangeQuery) (*Report, []domain.Interval, error) {
	report := &Report{}
	if len(raw) == 0 {
		report.Add(batchKey, KindEmptyBatch, msgEmptyBatch)
		return report, nil, nil
	}

	now := v.clock.Now().In(v.loc)
	candidates := make([]candidate, 0, len(raw))
	for i, s := range raw {
		if iv, ok := v.checkFields(report, s, now, slotField(i, fieldStart), slotField(i, fieldEnd)); ok {
			candidates = append(candidates, candidate{index: i, interval: iv})
		}
	}
	if !report.OK() {
		return report, nil, nil
	}

	for _, c := range candidates {
		v.checkDuration(report, c.interval, slotField(c.index, fieldEnd))
	}
	if !report.OK() {
		return report, nil, nil
	}

	intervals := make([]domain.Interval, len(candidates))
	for i, c := range candidates {
		intervals[i] = c.interval.UTC()
	}
	for _, pos := range InternalOverlaps(intervals) {
		report.Add(slotKey(candidates[pos].index), KindInternalOverlap, msgInternalOverlap)
	}
	if !report.OK() {
		return report, nil, nil
	}

	if lookup != nil {
		for i, c := range candidates {
			conflict, err := conflicts(ctx, lookup, intervals[i], 0)
			if err != nil {
				return report, nil, err
			}
			if conflict {
				report.Add(slotKey(c.index), KindExternalOverlap, msgExternalOverlap)
			}
		}
		if !report.OK() {
			return report, nil, nil
		}
	}

	return report, intervals, nil
}

// ValidateSingle checks one candidate slot, as used when adding a slot to a booking
// or moving an existing one. excludeSlotID is the slot being moved, or zero.
func (v *Validator) ValidateSingle(ctx context.Context, raw RawSlot, lookup RangeQuery, excludeSlotID int64) (*Report, domain.Interval, error) {
	report := &Report{}

	now := v.clock.Now().In(v.loc)
	iv, ok := v.checkFields(report, raw, now, fieldStart, fieldEnd)
	if !ok {
		return report, domain.Interval{}, nil
	}

	v.checkDuration(report, iv, fieldEnd)
	if !report.OK() {
		return report, domain.Interval{}, nil
	}

	iv = iv.UTC()
	if lookup != nil {
		conflict, err := conflicts(ctx, lookup, iv, excludeSlotID)
		if err != nil {
			return report, domain.Interval{}, err
		}
		if conflict {
			report.Add(fieldStart, KindExternalOverlap, msgAlreadyBooked)
			return report, domain.Interval{}, nil
		}
	}

	return report, iv, nil
}

// checkFields runs the presence, format and ordering rules on both ends of s in one
// pass, reading dates in the application timezone. ok is false when any violation was
// recorded for this slot.
func (v *Validator) checkFields(report *Report, s RawSlot, now time.Time, startKey, endKey string) (domain.Interval, bool) {
	start, startOK := v.parseField(report, s.StartTime, s.startMalformed, startKey, fieldStart)
	end, endOK := v.parseField(report, s.EndTime, s.endMalformed, endKey, fieldEnd)

	if startOK && !start.After(now) {
		report.Add(startKey, KindPastStartTime, msgPastStart)
		startOK = false
	}
	if startOK && endOK && !end.After(start) {
		report.Add(endKey, KindEndBeforeStart, msgEndBeforeStart)
		endOK = false
	}

	return domain.Interval{Start: start, End: end}, startOK && endOK
}

func (v *Validator) parseField(report *Report, value string, malformed bool, key, field string) (time.Time, bool) {
	switch {
	case malformed:
		report.Add(key, KindInvalidDateFormat, msgInvalidDate)
		return time.Time{}, false
	case strings.TrimSpace(value) == "":
		report.Add(key, KindRequired, requiredMessage(field))
		return time.Time{}, false
	}

	t, err := ParseTime(value, v.loc)
	if err != nil {
		report.Add(key, KindInvalidDateFormat, msgInvalidDate)
		return time.Time{}, false
	}
	return t, true
}

func (v *Validator) checkDuration(report *Report, iv domain.Interval, endKey string) {
	if v.minDuration > 0 && iv.Minutes() < v.minDuration {
		report.Add(endKey, KindDurationTooShort, fmt.Sprintf("The slot must be at least %d minutes long.", v.minDuration))
	}
}

// conflicts re-checks every row returned by lookup with the overlap predicate, so
// a store answering with a coarser range cannot produce false positives.
func conflicts(ctx context.Context, lookup RangeQuery, iv domain.Interval, excludeID int64) (bool, error) {
	existing, err := lookup.FindOverlapping(ctx, iv, excludeID)
	if err != nil {
		return false, fmt.Errorf("find overlapping slots: %w", err)
	}
	for _, s := range existing {
		if excludeID != 0 && s.ID == excludeID {
			continue
		}
		if domain.Overlaps(iv, s.Interval()) {
			return true, nil
		}
	}
	return false, nil
}

// InternalOverlaps returns, in ascending order, the positions of the intervals that
// overlap at least one other interval of the list.
//
// The list is swept once in start order while tracking the interval with the
// largest end seen so far. The current interval conflicts with some earlier one
// iff it starts before that largest end, and in that case it conflicts with the
// owner of that end, so both are flagged.
func InternalOverlaps(intervals []domain.Interval) []int {
	order := make([]int, len(intervals))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return intervals[order[a]].Start.Before(intervals[order[b]].Start)
	})

	flagged := make(map[int]struct{})
	reach := -1
	for _, idx := range order {
		cur := intervals[idx]
		if reach >= 0 && cur.Start.Before(intervals[reach].End) {
			flagged[idx] = struct{}{}
			flagged[reach] = struct{}{}
		}
		if reach < 0 || cur.End.After(intervals[reach].End) {
			reach = idx
		}
	}

	out := make([]int, 0, len(flagged))
	for idx := range flagged {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func slotKey(index int) string {
	return fmt.Sprintf("%s.%d", batchKey, index)
}

func slotField(index int, field string) string {
	return fmt.Sprintf("%s.%d.%s", batchKey, index, field)
}

func requiredMessage(field string) string {
	return fmt.Sprintf("The %s field is required.", field)
}
