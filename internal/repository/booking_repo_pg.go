package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Domenick1991/slotbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// slotWriteLockKey serializes every transaction that validates and writes slots.
const slotWriteLockKey int64 = 0x736c6f7473

type BookingRepository interface {
	// WithinTx runs fn against a repository bound to one transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx BookingRepository) error) error
	// LockSlotWrites blocks until no other transaction holds the slot write lock.
	// It only has an effect inside WithinTx.
	LockSlotWrites(ctx context.Context) error

	CreateBooking(ctx context.Context, userID int64) (*domain.Booking, error)
	GetBooking(ctx context.Context, id int64) (*domain.Booking, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error)
	DeleteBooking(ctx context.Context, id int64) error

	InsertSlots(ctx context.Context, bookingID int64, intervals []domain.Interval) ([]domain.Slot, error)
	InsertSlot(ctx context.Context, bookingID int64, iv domain.Interval) (*domain.Slot, error)
	GetSlot(ctx context.Context, bookingID, slotID int64) (*domain.Slot, error)
	UpdateSlot(ctx context.Context, slotID int64, iv domain.Interval) (*domain.Slot, error)
	FindOverlapping(ctx context.Context, iv domain.Interval, excludeID int64) ([]domain.Slot, error)
}

type PGBookingRepository struct {
	db DBTX
	// beginner is nil once the repository is bound to a transaction.
	beginner TxBeginner
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return newPGBookingRepository(pool, pool)
}

func newPGBookingRepository(db DBTX, beginner TxBeginner) *PGBookingRepository {
	return &PGBookingRepository{db: db, beginner: beginner}
}

func (r *PGBookingRepository) WithinTx(ctx context.Context, fn func(tx BookingRepository) error) error {
	if r.beginner == nil {
		return fn(r)
	}

	tx, err := r.beginner.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&PGBookingRepository{db: tx}); err != nil {
		return err
	}
	return classify(tx.Commit(ctx))
}

func (r *PGBookingRepository) LockSlotWrites(ctx context.Context) error {
	if r.beginner != nil {
		return nil
	}
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, slotWriteLockKey)
	return err
}

func (r *PGBookingRepository) CreateBooking(ctx context.Context, userID int64) (*domain.Booking, error) {
	b := domain.Booking{UserID: userID}
	if err := r.db.QueryRow(ctx, `INSERT INTO bookings (user_id) VALUES ($1) RETURNING id, created_at, updated_at`, userID).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, classify(err)
	}
	return &b, nil
}

func (r *PGBookingRepository) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	var b domain.Booking
	if err := r.db.QueryRow(ctx, `SELECT id, user_id, created_at, updated_at FROM bookings WHERE id=$1`, id).
		Scan(&b.ID, &b.UserID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, classify(err)
	}

	slots, err := r.slotsFor(ctx, []int64{b.ID})
	if err != nil {
		return nil, err
	}
	b.Slots = slots[b.ID]
	return &b, nil
}

// ListByUser loads the user's bookings and all of their slots in two queries.
func (r *PGBookingRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT id, user_id, created_at, updated_at FROM bookings WHERE user_id=$1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.UserID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return bookings, nil
	}

	slots, err := r.slotsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		bookings[i].Slots = slots[bookings[i].ID]
	}
	return bookings, nil
}

func (r *PGBookingRepository) DeleteBooking(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM bookings WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGBookingRepository) InsertSlots(ctx context.Context, bookingID int64, intervals []domain.Interval) ([]domain.Slot, error) {
	starts := make([]time.Time, len(intervals))
	ends := make([]time.Time, len(intervals))
	for i, iv := range intervals {
		starts[i] = iv.Start.UTC()
		ends[i] = iv.End.UTC()
	}

	rows, err := r.db.Query(ctx, `
		INSERT INTO booking_slots (booking_id, start_time, end_time)
		SELECT $1, t.start_time, t.end_time
		FROM unnest($2::timestamptz[], $3::timestamptz[]) AS t(start_time, end_time)
		RETURNING id, booking_id, start_time, end_time, created_at, updated_at
	`, bookingID, starts, ends)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	slots, err := scanSlots(rows)
	if err != nil {
		return nil, classify(err)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime.Before(slots[j].StartTime) })
	return slots, nil
}

func (r *PGBookingRepository) InsertSlot(ctx context.Context, bookingID int64, iv domain.Interval) (*domain.Slot, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO booking_slots (booking_id, start_time, end_time)
		VALUES ($1, $2, $3)
		RETURNING id, booking_id, start_time, end_time, created_at, updated_at
	`, bookingID, iv.Start.UTC(), iv.End.UTC())
	s, err := scanSlot(row)
	if err != nil {
		return nil, classify(err)
	}
	return s, nil
}

func (r *PGBookingRepository) GetSlot(ctx context.Context, bookingID, slotID int64) (*domain.Slot, error) {
	row := r.db.QueryRow(ctx, `SELECT id, booking_id, start_time, end_time, created_at, updated_at FROM booking_slots WHERE id=$1 AND booking_id=$2`, slotID, bookingID)
	s, err := scanSlot(row)
	if err != nil {
		return nil, classify(err)
	}
	return s, nil
}

func (r *PGBookingRepository) UpdateSlot(ctx context.Context, slotID int64, iv domain.Interval) (*domain.Slot, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE booking_slots SET start_time=$2, end_time=$3, updated_at=now()
		WHERE id=$1
		RETURNING id, booking_id, start_time, end_time, created_at, updated_at
	`, slotID, iv.Start.UTC(), iv.End.UTC())
	s, err := scanSlot(row)
	if err != nil {
		return nil, classify(err)
	}
	return s, nil
}

// FindOverlapping returns slots with start < iv.End and end > iv.Start, skipping excludeID when non-zero.
func (r *PGBookingRepository) FindOverlapping(ctx context.Context, iv domain.Interval, excludeID int64) ([]domain.Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, booking_id, start_time, end_time, created_at, updated_at
		FROM booking_slots
		WHERE start_time < $2
			AND end_time > $1
			AND ($3::bigint = 0 OR id <> $3::bigint)
		ORDER BY start_time
	`, iv.Start.UTC(), iv.End.UTC(), excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSlots(rows)
}

func (r *PGBookingRepository) slotsFor(ctx context.Context, bookingIDs []int64) (map[int64][]domain.Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, booking_id, start_time, end_time, created_at, updated_at
		FROM booking_slots
		WHERE booking_id = ANY($1)
		ORDER BY booking_id, start_time
	`, bookingIDs)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	defer rows.Close()

	slots, err := scanSlots(rows)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	byBooking := make(map[int64][]domain.Slot, len(bookingIDs))
	for _, s := range slots {
		byBooking[s.BookingID] = append(byBooking[s.BookingID], s)
	}
	return byBooking, nil
}

func scanSlot(row pgx.Row) (*domain.Slot, error) {
	var s domain.Slot
	if err := row.Scan(&s.ID, &s.BookingID, &s.StartTime, &s.EndTime, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.StartTime = s.StartTime.UTC()
	s.EndTime = s.EndTime.UTC()
	return &s, nil
}

func scanSlots(rows pgx.Rows) ([]domain.Slot, error) {
	slots := make([]domain.Slot, 0)
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *s)
	}
	return slots, rows.Err()
}

var _ BookingRepository = (*PGBookingRepository)(nil)
