package domain

import "time"

type Booking struct {
	ID        int64
	UserID    int64
	Slots     []Slot
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Slot struct {
	ID        int64
	BookingID int64
	StartTime time.Time
	EndTime   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s Slot) Interval() Interval {
	return Interval{Start: s.StartTime, End: s.EndTime}
}

type User struct {
	ID        int64
	Name      string
	APIToken  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
