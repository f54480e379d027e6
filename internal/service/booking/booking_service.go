package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Domenick1991/slotbooking/internal/domain"
	"github.com/Domenick1991/slotbooking/internal/kafka"
	"github.com/Domenick1991/slotbooking/internal/repository"
	"github.com/Domenick1991/slotbooking/internal/validation"
)

var (
	// ErrPersistence hides storage failures from callers. The cause is logged.
	ErrPersistence = errors.New("persistence failure")
	ErrNotFound    = errors.New("not found")
)

type BookingUseCase interface {
	CreateBookingWithSlots(ctx context.Context, user domain.User, slots []validation.RawSlot) (*domain.Booking, error)
	AddSlotToBooking(ctx context.Context, booking domain.Booking, slot validation.RawSlot) (*domain.Slot, error)
	UpdateBookingSlot(ctx context.Context, slot domain.Slot, data validation.RawSlot) (*domain.Slot, error)
	DeleteBooking(ctx context.Context, booking domain.Booking) error
	GetUserBookings(ctx context.Context, user domain.User) ([]domain.Booking, error)
	GetBooking(ctx context.Context, id int64) (*domain.Booking, error)
	GetBookingSlot(ctx context.Context, bookingID, slotID int64) (*domain.Slot, error)
	ValidateBatch(ctx context.Context, slots []validation.RawSlot) (*validation.Report, error)
	ValidateSingle(ctx context.Context, slot validation.RawSlot, excludeSlotID int64) (*validation.Report, error)
}

type Cache interface {
	GetUserBookings(ctx context.Context, userID int64) ([]domain.Booking, int64, error)
	SetUserBookings(ctx context.Context, userID, generation int64, bookings []domain.Booking) error
	InvalidateUserBookings(ctx context.Context, userID int64) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

type BookingService struct {
	bookings    repository.BookingRepository
	validator   *validation.Validator
	cache       Cache
	producer    Producer
	eventsTopic string
	clock       validation.Clock
	logger      *slog.Logger
}

type BookingServiceOption func(*BookingService)

func WithCache(cache Cache) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = cache
	}
}

func WithProducer(producer Producer, topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = producer
		s.eventsTopic = topic
	}
}

func WithLogger(logger *slog.Logger) BookingServiceOption {
	return func(s *BookingService) {
		s.logger = logger
	}
}

func WithClock(clock validation.Clock) BookingServiceOption {
	return func(s *BookingService) {
		s.clock = clock
	}
}

func NewBookingService(bookings repository.BookingRepository, validator *validation.Validator, opts ...BookingServiceOption) *BookingService {
	service := &BookingService{
		bookings:  bookings,
		validator: validator,
		clock:     validation.SystemClock{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreateBookingWithSlots validates the batch and stores a new booking with all of its
// slots in one transaction.
func (s *BookingService) CreateBookingWithSlots(ctx context.Context, user domain.User, slots []validation.RawSlot) (*domain.Booking, error) {
	var created *domain.Booking
	err := s.bookings.WithinTx(ctx, func(tx repository.BookingRepository) error {
		if err := tx.LockSlotWrites(ctx); err != nil {
			return err
		}
		report, intervals, err := s.validator.ValidateBatch(ctx, slots, tx)
		if err != nil {
			return err
		}
		if !report.OK() {
			return &validation.Error{Report: report}
		}

		booking, err := tx.CreateBooking(ctx, user.ID)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertSlots(ctx, booking.ID, intervals)
		if err != nil {
			return err
		}
		booking.Slots = inserted
		created = booking
		return nil
	})
	if err != nil {
		return nil, s.failure(ctx, "create booking", validation.BatchKey, err)
	}

	s.afterMutation(ctx, kafka.EventBookingCreated, *created, created.Slots)
	return created, nil
}

func (s *BookingService) AddSlotToBooking(ctx context.Context, booking domain.Booking, slot validation.RawSlot) (*domain.Slot, error) {
	var added *domain.Slot
	err := s.bookings.WithinTx(ctx, func(tx repository.BookingRepository) error {
		if err := tx.LockSlotWrites(ctx); err != nil {
			return err
		}
		report, iv, err := s.validator.ValidateSingle(ctx, slot, tx, 0)
		if err != nil {
			return err
		}
		if !report.OK() {
			return &validation.Error{Report: report}
		}

		added, err = tx.InsertSlot(ctx, booking.ID, iv)
		return err
	})
	if err != nil {
		return nil, s.failure(ctx, "add slot", validation.StartTimeKey, err)
	}

	s.afterMutation(ctx, kafka.EventSlotAdded, booking, []domain.Slot{*added})
	return added, nil
}

// UpdateBookingSlot moves slot to new bounds. The slot's current row does not count
// as a conflict, and on rejection the row is left untouched.
func (s *BookingService) UpdateBookingSlot(ctx context.Context, slot domain.Slot, data validation.RawSlot) (*domain.Slot, error) {
	var (
		updated *domain.Slot
		owner   *domain.Booking
	)
	err := s.bookings.WithinTx(ctx, func(tx repository.BookingRepository) error {
		if err := tx.LockSlotWrites(ctx); err != nil {
			return err
		}
		report, iv, err := s.validator.ValidateSingle(ctx, data, tx, slot.ID)
		if err != nil {
			return err
		}
		if !report.OK() {
			return &validation.Error{Report: report}
		}

		if owner, err = tx.GetBooking(ctx, slot.BookingID); err != nil {
			return err
		}
		updated, err = tx.UpdateSlot(ctx, slot.ID, iv)
		return err
	})
	if err != nil {
		return nil, s.failure(ctx, "update slot", validation.StartTimeKey, err)
	}

	s.afterMutation(ctx, kafka.EventSlotUpdated, *owner, []domain.Slot{*updated})
	return updated, nil
}

// DeleteBooking removes the booking; its slots go with it.
func (s *BookingService) DeleteBooking(ctx context.Context, booking domain.Booking) error {
	if err := s.bookings.DeleteBooking(ctx, booking.ID); err != nil {
		return s.failure(ctx, "delete booking", "", err)
	}

	s.afterMutation(ctx, kafka.EventBookingDeleted, booking, booking.Slots)
	return nil
}

func (s *BookingService) GetUserBookings(ctx context.Context, user domain.User) ([]domain.Booking, error) {
	var (
		generation int64
		storable   bool
	)
	if s.cache != nil {
		cached, gen, err := s.cache.GetUserBookings(ctx, user.ID)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "bookings cache read failed", "user_id", user.ID, "err", err)
		case cached != nil:
			return cached, nil
		default:
			generation, storable = gen, true
		}
	}

	bookings, err := s.bookings.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, s.failure(ctx, "list bookings", "", err)
	}

	if storable {
		if err := s.cache.SetUserBookings(ctx, user.ID, generation, bookings); err != nil {
			s.logger.WarnContext(ctx, "bookings cache write failed", "user_id", user.ID, "err", err)
		}
	}
	return bookings, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, s.failure(ctx, "get booking", "", err)
	}
	return booking, nil
}

func (s *BookingService) GetBookingSlot(ctx context.Context, bookingID, slotID int64) (*domain.Slot, error) {
	slot, err := s.bookings.GetSlot(ctx, bookingID, slotID)
	if err != nil {
		return nil, s.failure(ctx, "get slot", "", err)
	}
	return slot, nil
}

// ValidateBatch runs the batch validator against committed data without writing anything.
func (s *BookingService) ValidateBatch(ctx context.Context, slots []validation.RawSlot) (*validation.Report, error) {
	report, _, err := s.validator.ValidateBatch(ctx, slots, s.bookings)
	if err != nil {
		return nil, s.failure(ctx, "validate slots", "", err)
	}
	return report, nil
}

func (s *BookingService) ValidateSingle(ctx context.Context, slot validation.RawSlot, excludeSlotID int64) (*validation.Report, error) {
	report, _, err := s.validator.ValidateSingle(ctx, slot, s.bookings, excludeSlotID)
	if err != nil {
		return nil, s.failure(ctx, "validate slot", "", err)
	}
	return report, nil
}

// failure sorts an error from the write path into what callers may see: validation
// errors pass through, store overlap rejections become a validation error on
// conflictKey, and everything else is logged and reported as ErrPersistence.
func (s *BookingService) failure(ctx context.Context, op, conflictKey string, err error) error {
	var vErr *validation.Error
	if errors.As(err, &vErr) {
		return vErr
	}
	if conflictKey != "" && repository.IsConflict(err) {
		return validation.ConflictError(conflictKey)
	}
	if repository.IsNotFound(err) {
		return ErrNotFound
	}

	s.logger.ErrorContext(ctx, "booking persistence failure", "op", op, "err", err)
	return fmt.Errorf("%s: %w", op, ErrPersistence)
}

func (s *BookingService) afterMutation(ctx context.Context, eventType string, booking domain.Booking, slots []domain.Slot) {
	if s.cache != nil {
		if err := s.cache.InvalidateUserBookings(ctx, booking.UserID); err != nil {
			s.logger.WarnContext(ctx, "bookings cache invalidation failed", "user_id", booking.UserID, "err", err)
		}
	}

	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	event := kafka.NewBookingEvent(eventType, booking, slots, s.clock.Now())
	if err := s.producer.Publish(ctx, s.eventsTopic, event.Key(), event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish booking event", "type", eventType, "booking_id", booking.ID, "err", err)
	}
}

var _ BookingUseCase = (*BookingService)(nil)
