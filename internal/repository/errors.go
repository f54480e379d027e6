package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrSlotConflict is returned when the storage exclusion constraint rejects an overlapping slot.
	ErrSlotConflict = errors.New("slot overlaps an existing slot")
	ErrInvalidRange = errors.New("slot start must be before end")
)

const (
	codeExclusionViolation = "23P01"
	codeCheckViolation     = "23514"
)

// classify maps driver errors onto the package sentinels and leaves anything else untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeExclusionViolation:
			return ErrSlotConflict
		case codeCheckViolation:
			return ErrInvalidRange
		}
	}
	return err
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrSlotConflict)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
