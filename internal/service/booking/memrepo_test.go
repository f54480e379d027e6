package booking

import (
	"context"
	"sort"

	"github.com/Domenick1991/slotbooking/internal/domain"
	"github.com/Domenick1991/slotbooking/internal/repository"
)

// memState is an in-memory stand-in for the bookings and booking_slots tables.
type memState struct {
	nextBookingID int64
	nextSlotID    int64
	bookings      map[int64]domain.Booking
	slots         map[int64]domain.Slot
}

func (s *memState) clone() *memState {
	c := &memState{
		nextBookingID: s.nextBookingID,
		nextSlotID:    s.nextSlotID,
		bookings:      make(map[int64]domain.Booking, len(s.bookings)),
		slots:         make(map[int64]domain.Slot, len(s.slots)),
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.slots {
		c.slots[k] = v
	}
	return c
}

// memRepo implements repository.BookingRepository. Writes inside WithinTx are only
// applied when the callback succeeds; failOn injects errors per method name.
type memRepo struct {
	state     *memState
	inTx      bool
	failOn    map[string]error
	lockCalls *int
}

func newMemRepo() *memRepo {
	return &memRepo{
		state:     &memState{bookings: map[int64]domain.Booking{}, slots: map[int64]domain.Slot{}},
		failOn:    map[string]error{},
		lockCalls: new(int),
	}
}

func (r *memRepo) fail(method string) error {
	return r.failOn[method]
}

func (r *memRepo) WithinTx(ctx context.Context, fn func(tx repository.BookingRepository) error) error {
	if r.inTx {
		return fn(r)
	}
	tx := &memRepo{state: r.state.clone(), inTx: true, failOn: r.failOn, lockCalls: r.lockCalls}
	if err := fn(tx); err != nil {
		return err
	}
	if err := r.fail("Commit"); err != nil {
		return err
	}
	*r.state = *tx.state
	return nil
}

func (r *memRepo) LockSlotWrites(ctx context.Context) error {
	*r.lockCalls++
	return r.fail("LockSlotWrites")
}

func (r *memRepo) CreateBooking(ctx context.Context, userID int64) (*domain.Booking, error) {
	if err := r.fail("CreateBooking"); err != nil {
		return nil, err
	}
	r.state.nextBookingID++
	b := domain.Booking{ID: r.state.nextBookingID, UserID: userID}
	r.state.bookings[b.ID] = b
	return &b, nil
}

func (r *memRepo) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	if err := r.fail("GetBooking"); err != nil {
		return nil, err
	}
	b, ok := r.state.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	b.Slots = r.slotsOf(id)
	return &b, nil
}

func (r *memRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	if err := r.fail("ListByUser"); err != nil {
		return nil, err
	}
	out := make([]domain.Booking, 0)
	for _, b := range r.state.bookings {
		if b.UserID == userID {
			b.Slots = r.slotsOf(b.ID)
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) DeleteBooking(ctx context.Context, id int64) error {
	if err := r.fail("DeleteBooking"); err != nil {
		return err
	}
	if _, ok := r.state.bookings[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.state.bookings, id)
	for sid, s := range r.state.slots {
		if s.BookingID == id {
			delete(r.state.slots, sid)
		}
	}
	return nil
}

func (r *memRepo) InsertSlots(ctx context.Context, bookingID int64, intervals []domain.Interval) ([]domain.Slot, error) {
	if err := r.fail("InsertSlots"); err != nil {
		return nil, err
	}
	out := make([]domain.Slot, 0, len(intervals))
	for _, iv := range intervals {
		s, err := r.insert(bookingID, iv)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *memRepo) InsertSlot(ctx context.Context, bookingID int64, iv domain.Interval) (*domain.Slot, error) {
	if err := r.fail("InsertSlot"); err != nil {
		return nil, err
	}
	return r.insert(bookingID, iv)
}

func (r *memRepo) GetSlot(ctx context.Context, bookingID, slotID int64) (*domain.Slot, error) {
	s, ok := r.state.slots[slotID]
	if !ok || s.BookingID != bookingID {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *memRepo) UpdateSlot(ctx context.Context, slotID int64, iv domain.Interval) (*domain.Slot, error) {
	if err := r.fail("UpdateSlot"); err != nil {
		return nil, err
	}
	s, ok := r.state.slots[slotID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	s.StartTime, s.EndTime = iv.Start, iv.End
	r.state.slots[slotID] = s
	return &s, nil
}

func (r *memRepo) FindOverlapping(ctx context.Context, iv domain.Interval, excludeID int64) ([]domain.Slot, error) {
	if err := r.fail("FindOverlapping"); err != nil {
		return nil, err
	}
	out := make([]domain.Slot, 0)
	for _, s := range r.state.slots {
		if s.ID != excludeID && s.StartTime.Before(iv.End) && s.EndTime.After(iv.Start) {
			out = append(out, s)
		}
	}
	return out, nil
}

// insert mirrors the storage check and exclusion constraints.
func (r *memRepo) insert(bookingID int64, iv domain.Interval) (*domain.Slot, error) {
	if !iv.Start.Before(iv.End) {
		return nil, repository.ErrInvalidRange
	}
	for _, s := range r.state.slots {
		if domain.Overlaps(iv, s.Interval()) {
			return nil, repository.ErrSlotConflict
		}
	}
	r.state.nextSlotID++
	s := domain.Slot{ID: r.state.nextSlotID, BookingID: bookingID, StartTime: iv.Start, EndTime: iv.End}
	r.state.slots[s.ID] = s
	return &s, nil
}

func (r *memRepo) slotsOf(bookingID int64) []domain.Slot {
	out := make([]domain.Slot, 0)
	for _, s := range r.state.slots {
		if s.BookingID == bookingID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

var _ repository.BookingRepository = (*memRepo)(nil)
