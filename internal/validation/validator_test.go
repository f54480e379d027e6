package validation

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/Domenick1991/slotbooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const dateTime = "2006-01-02 15:04:05"

type fakeLookup struct {
	slots []domain.Slot
	err   error
	calls int
}

func (f *fakeLookup) FindOverlapping(_ context.Context, iv domain.Interval, excludeID int64) ([]domain.Slot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Slot
	for _, s := range f.slots {
		if s.ID == excludeID {
			continue
		}
		if s.StartTime.Before(iv.End) && s.EndTime.After(iv.Start) {
			out = append(out, s)
		}
	}
	return out, nil
}

func newTestValidator(minMinutes int) *Validator {
	return NewValidator(time.UTC, minMinutes, WithClock(FixedClock(now)))
}

func at(d time.Duration) string {
	return now.Add(d).Format(dateTime)
}

func slot(id int64, from, to time.Duration) domain.Slot {
	return domain.Slot{ID: id, BookingID: 1, StartTime: now.Add(from), EndTime: now.Add(to)}
}

func TestValidateBatch_Valid(t *testing.T) {
	v := newTestValidator(15)
	lookup := &fakeLookup{}

	report, intervals, err := v.ValidateBatch(context.Background(), []RawSlot{
		{StartTime: at(time.Hour), EndTime: at(2 * time.Hour)},
		{StartTime: at(3 * time.Hour), EndTime: at(4 * time.Hour)},
	}, lookup)

	require.NoError(t, err)
	assert.True(t, report.OK())
	require.Len(t, intervals, 2)
	assert.True(t, intervals[0].Start.Equal(now.Add(time.Hour)))
	assert.True(t, intervals[1].End.Equal(now.Add(4*time.Hour)))
	assert.Equal(t, time.UTC, intervals[0].Start.Location())
	assert.Equal(t, 2, lookup.calls)
}

func TestValidateBatch_EmptyBatch(t *testing.T) {
	v := newTestValidator(15)

	report, intervals, err := v.ValidateBatch(context.Background(), nil, &fakeLookup{})

	require.NoError(t, err)
	assert.Nil(t, intervals)
	assert.Equal(t, []string{"slots"}, report.Keys())
	assert.Equal(t, []Kind{KindEmptyBatch}, report.Kinds("slots"))
}

func TestValidateBatch_FieldErrors(t *testing.T) {
	testCases := []struct {
		name         string
		slots        []RawSlot
		expectedKeys []string
		expectedKind Kind
	}{
		{
			name:         "Missing start time",
			slots:        []RawSlot{{EndTime: at(time.Hour)}},
			expectedKeys: []string{"slots.0.start_time"},
			expectedKind: KindRequired,
		},
		{
			name:         "Start time in the past",
			slots:        []RawSlot{{StartTime: at(-time.Hour), EndTime: at(time.Hour)}},
			expectedKeys: []string{"slots.0.start_time"},
			expectedKind: KindPastStartTime,
		},
		{
			name:         "Start time equal to now",
			slots:        []RawSlot{{StartTime: at(0), EndTime: at(time.Hour)}},
			expectedKeys: []string{"slots.0.start_time"},
			expectedKind: KindPastStartTime,
		},
		{
			name:         "End before start",
			slots:        []RawSlot{{StartTime: at(2 * time.Hour), EndTime: at(time.Hour)}},
			expectedKeys: []string{"slots.0.end_time"},
			expectedKind: KindEndBeforeStart,
		},
		{
			name:         "Zero length",
			slots:        []RawSlot{{StartTime: at(time.Hour), EndTime: at(time.Hour)}},
			expectedKeys: []string{"slots.0.end_time"},
			expectedKind: KindEndBeforeStart,
		},
		{
			name:         "Unparseable start",
			slots:        []RawSlot{{StartTime: "tomorrow-ish", EndTime: at(time.Hour)}},
			expectedKeys: []string{"slots.0.start_time"},
			expectedKind: KindInvalidDateFormat,
		},
		{
			name: "Every item is checked",
			slots: []RawSlot{
				{StartTime: at(time.Hour), EndTime: "not a date"},
				{StartTime: at(3 * time.Hour), EndTime: at(4 * time.Hour)},
				{StartTime: at(5 * time.Hour), EndTime: "31/12/2026"},
			},
			expectedKeys: []string{"slots.0.end_time", "slots.2.end_time"},
			expectedKind: KindInvalidDateFormat,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			lookup := &fakeLookup{}
			report, intervals, err := newTestValidator(15).ValidateBatch(context.Background(), tc.slots, lookup)

			require.NoError(t, err)
			assert.Nil(t, intervals)
			assert.Equal(t, tc.expectedKeys, report.Keys())
			for _, key := range tc.expectedKeys {
				assert.Equal(t, []Kind{tc.expectedKind}, report.Kinds(key))
			}
			assert.Zero(t, lookup.calls)
		})
	}
}

func TestValidateBatch_MinimumDuration(t *testing.T) {
	v := newTestValidator(15)

	report, _, err := v.ValidateBatch(context.Background(), []RawSlot{
		{StartTime: at(time.Hour), EndTime: at(time.Hour + 10*time.Minute)},
	}, &fakeLookup{})
	require.NoError(t, err)
	assert.Equal(t, []string{"slots.0.end_time"}, report.Keys())
	assert.Equal(t, []Kind{KindDurationTooShort}, report.Kinds("slots.0.end_time"))
	assert.Contains(t, report.First("slots.0.end_time"), "at least 15 minutes")

	report, intervals, err := v.ValidateBatch(context.Background(), []RawSlot{
		{StartTime: at(time.Hour), EndTime: at(time.Hour + 15*time.Minute)},
	}, &fakeLookup{})
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Len(t, intervals, 1)
}

func TestValidateBatch_MinimumDurationDisabled(t *testing.T) {
	report, _, err := newTestValidator(0).ValidateBatch(context.Background(), []RawSlot{
		{StartTime: at(time.Hour), EndTime: at(time.Hour + time.Minute)},
	}, &fakeLookup{})

	require.NoError(t, err)
	assert.True(t, report.OK())
}

func TestValidateBatch_StagesAreGated(t *testing.T) {
	report, _, err := newTestValidator(15).ValidateBatch(context.Background(), []RawSlot{
		{StartTime: at(-time.Hour), EndTime: at(time.Hour)},
		{StartTime: at(2 * time.Hour), EndTime: at(2*time.Hour + 5*time.Minute)},
		{StartTime: at(2 * time.Hour), EndTime: at(3 * time.Hour)},
	}, &fakeLookup{})

	require.NoError(t, err)
	assert.Equal(t, []string{"slots.0.start_time"}, report.Keys())
}

func TestValidateBatch_MissingFieldDoesNotHideOtherItems(t *testing.T) {
	report, _, err := newTestValidator(15).ValidateBatch(context.Background(), []RawSlot{
		{StartTime: "", EndTime: at(time.Hour)},
		{StartTime: at(-2 * time.Hour), EndTime: at(-time.Hour)},
	}, &fakeLookup{})

	require.NoError(t, err)
	assert.Equal(t, []string{"slots.0.start_time", "slots.1.start_time"}, report.Keys())
	assert.Equal(t, []Kind{KindRequired}, report.Kinds("slots.0.start_time"))
	assert.Equal(t, []Kind{KindPastStartTime}, report.Kinds("slots.1.start_time"))
}

func TestValidateBatch_InternalOverlap(t *testing.T) {
	lookup := &fakeLookup{}
	report, intervals, err := newTestValidator(15).ValidateBatch(context.Background(), []RawSlot{
		{StartTime: at(10 * time.Hour), EndTime: at(11 * time.Hour)},
		{StartTime: at(10 * time.Hour), EndTime: at(12 * time.Hour)},
	}, lookup)

	require.NoError(t, err)
	assert.Nil(t, intervals)
	assert.Equal(t, []string{"slots.0", "slots.1"}, report.Keys())
	assert.Equal(t, []Kind{KindInternalOverlap}, report.Kinds("slots.0"))
	assert.Equal(t, "Overlaps another slot in this request.", report.First("slots.1"))
	assert.Zero(t, lookup.calls)
}

func TestValidateBatch_InternalAdjacentSlotsPass(t *testing.T) {
	report, _, err := newTestValidator(15).ValidateBatch(context.Background(), []RawSlot{
		{StartTime: at(2 * time.Hour), EndTime: at(3 * time.Hour)},
		{StartTime: at(time.Hour), EndTime: at(2 * time.Hour)},
	}, &fakeLookup{})

	require.NoError(t, err)
	assert.True(t, report.OK())
}

func TestValidateBatch_NestedOverlapFlagsAll(t *testing.T) {
	report, _, err := newTestValidator(15).ValidateBatch(context.Background(), []RawSlot{
		{StartTime: at(time.Hour), EndTime: at(10 * time.Hour)},
		{StartTime: at(2 * time.Hour), EndTime: at(3 * time.Hour)},
		{StartTime: at(4 * time.Hour), EndTime: at(5 * time.Hour)},
		{StartTime: at(11 * time.Hour), EndTime: at(12 * time.Hour)},
	}, &fakeLookup{})

	require.NoError(t, err)
	assert.Equal(t, []string{"slots.0", "slots.1", "slots.2"}, report.Keys())
}

func TestValidateBatch_ExternalOverlap(t *testing.T) {
	lookup := &fakeLookup{slots: []domain.Slot{slot(7, time.Hour, 3*time.Hour)}}

	report, _, err := newTestValidator(15).ValidateBatch(context.Background(), []RawSlot{
		{StartTime: at(5 * time.Hour), EndTime: at(6 * time.Hour)},
		{StartTime: at(2 * time.Hour), EndTime: at(4 * time.Hour)},
	}, lookup)

	require.NoError(t, err)
	assert.Equal(t, []string{"slots.1"}, report.Keys())
	assert.Equal(t, []Kind{KindExternalOverlap}, report.Kinds("slots.1"))
	assert.Contains(t, report.First("slots.1"), "existing booking")
}

func TestValidateBatch_BetweenExistingSlots(t *testing.T) {
	lookup := &fakeLookup{slots: []domain.Slot{
		slot(1, time.Hour, 2*time.Hour),
		slot(2, 3*time.Hour, 4*time.Hour),
	}}

	report, _, err := newTestValidator(15).ValidateBatch(context.Background(), []RawSlot{
		{StartTime: at(2*time.Hour + 30*time.Minute), EndTime: at(2*time.Hour + 45*time.Minute)},
		{StartTime: at(2 * time.Hour), EndTime: at(2*time.Hour + 30*time.Minute)},
		{StartTime: at(4 * time.Hour), EndTime: at(5 * time.Hour)},
	}, lookup)

	require.NoError(t, err)
	assert.True(t, report.OK())
}

func TestValidateBatch_LookupError(t *testing.T) {
	lookupErr := errors.New("connection reset")

	report, intervals, err := newTestValidator(15).ValidateBatch(context.Background(), []RawSlot{
		{StartTime: at(time.Hour), EndTime: at(2 * time.Hour)},
	}, &fakeLookup{err: lookupErr})

	assert.ErrorIs(t, err, lookupErr)
	assert.Nil(t, intervals)
	assert.True(t, report.OK())
}

func TestValidateBatch_TimezoneInvariance(t *testing.T) {
	moscow, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	persisted := domain.Slot{
		ID:        1,
		StartTime: now.Add(2 * time.Hour).In(ny),
		EndTime:   now.Add(3 * time.Hour).In(ny),
	}
	candidate := RawSlot{
		StartTime: now.Add(2 * time.Hour).In(moscow).Format(time.RFC3339),
		EndTime:   now.Add(3 * time.Hour).In(moscow).Format(time.RFC3339),
	}

	for _, loc := range []*time.Location{time.UTC, moscow, ny} {
		t.Run(loc.String(), func(t *testing.T) {
			v := NewValidator(loc, 15, WithClock(FixedClock(now)))
			report, _, err := v.ValidateBatch(context.Background(), []RawSlot{candidate}, &fakeLookup{slots: []domain.Slot{persisted}})
			require.NoError(t, err)
			assert.Equal(t, []Kind{KindExternalOverlap}, report.Kinds("slots.0"))
		})
	}
}

func TestValidateBatch_ZonelessDatesUseApplicationTimezone(t *testing.T) {
	moscow, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	v := NewValidator(moscow, 15, WithClock(FixedClock(now)))

	report, intervals, err := v.ValidateBatch(context.Background(), []RawSlot{
		{StartTime: "2026-03-01 19:00:00", EndTime: "2026-03-01 20:00:00"},
	}, nil)

	require.NoError(t, err)
	require.True(t, report.OK())
	assert.True(t, time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC).Equal(intervals[0].Start))
	assert.True(t, time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC).Equal(intervals[0].End))

	// 14:00 in Moscow is 11:00 UTC, an hour before now.
	report, _, err = v.ValidateBatch(context.Background(), []RawSlot{
		{StartTime: "2026-03-01 14:00:00", EndTime: "2026-03-01 20:00:00"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindPastStartTime}, report.Kinds("slots.0.start_time"))
}

func TestValidateSingle(t *testing.T) {
	lookup := &fakeLookup{slots: []domain.Slot{
		slot(1, time.Hour, 2*time.Hour),
		slot(2, 3*time.Hour, 4*time.Hour),
	}}
	v := newTestValidator(15)

	t.Run("Valid", func(t *testing.T) {
		report, iv, err := v.ValidateSingle(context.Background(), RawSlot{StartTime: at(5 * time.Hour), EndTime: at(6 * time.Hour)}, lookup, 0)
		require.NoError(t, err)
		assert.True(t, report.OK())
		assert.True(t, iv.Start.Equal(now.Add(5*time.Hour)))
	})

	t.Run("Field keys are top level", func(t *testing.T) {
		report, _, err := v.ValidateSingle(context.Background(), RawSlot{StartTime: at(-time.Hour), EndTime: "bad"}, lookup, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"end_time", "start_time"}, report.Keys())
	})

	t.Run("Too short", func(t *testing.T) {
		report, _, err := v.ValidateSingle(context.Background(), RawSlot{StartTime: at(5 * time.Hour), EndTime: at(5*time.Hour + 14*time.Minute)}, lookup, 0)
		require.NoError(t, err)
		assert.Equal(t, []Kind{KindDurationTooShort}, report.Kinds("end_time"))
	})

	t.Run("Conflicts with existing", func(t *testing.T) {
		report, _, err := v.ValidateSingle(context.Background(), RawSlot{StartTime: at(90 * time.Minute), EndTime: at(150 * time.Minute)}, lookup, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"start_time"}, report.Keys())
		assert.Equal(t, []Kind{KindExternalOverlap}, report.Kinds("start_time"))
	})

	t.Run("Excludes itself", func(t *testing.T) {
		report, _, err := v.ValidateSingle(context.Background(), RawSlot{StartTime: at(90 * time.Minute), EndTime: at(150 * time.Minute)}, lookup, 1)
		require.NoError(t, err)
		assert.True(t, report.OK())
	})

	t.Run("Still conflicts with others", func(t *testing.T) {
		report, _, err := v.ValidateSingle(context.Background(), RawSlot{StartTime: at(90 * time.Minute), EndTime: at(210 * time.Minute)}, lookup, 1)
		require.NoError(t, err)
		assert.True(t, report.Has("start_time"))
	})
}

func TestInternalOverlaps_MatchesExhaustiveCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 500; round++ {
		n := 1 + rng.Intn(8)
		intervals := make([]domain.Interval, n)
		for i := range intervals {
			start := rng.Intn(60)
			intervals[i] = domain.Interval{
				Start: now.Add(time.Duration(start) * time.Minute),
				End:   now.Add(time.Duration(start+1+rng.Intn(30)) * time.Minute),
			}
		}

		var expected []int
		for i := range intervals {
			for j := range intervals {
				if i != j && domain.Overlaps(intervals[i], intervals[j]) {
					expected = append(expected, i)
					break
				}
			}
		}

		got := InternalOverlaps(intervals)
		if len(expected) == 0 {
			assert.Empty(t, got, "round %d: %v", round, intervals)
			continue
		}
		assert.Equal(t, expected, got, "round %d: %v", round, intervals)
	}
}

func TestParseTime(t *testing.T) {
	moscow, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	want := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

	for _, value := range []string{
		"2026-03-01T10:00:00+03:00",
		"2026-03-01T07:00:00Z",
		"2026-03-01T07:00:00.000Z",
		"2026-03-01 10:00:00",
		"2026-03-01T10:00:00",
		"2026-03-01 10:00",
		"2026-03-01 07:00:00Z",
		"2026-03-01T10:00:00+0300",
		"2026-03-01 10:00:00+0300",
		"2026-03-01T10:00+03:00",
		"2026-03-01T07:00Z",
	} {
		got, err := ParseTime(value, moscow)
		require.NoError(t, err, value)
		assert.True(t, want.Equal(got), "%s parsed as %s", value, got)
		assert.Equal(t, moscow, got.Location())
	}

	for _, value := range []string{"", "   ", "yesterday", "2026-13-01 10:00:00", "10:00"} {
		_, err := ParseTime(value, moscow)
		assert.Error(t, err, value)
	}
}
