package scheduling

import (
	"context"
	"time"
)

// RuleRepository stores availability rules.
type RuleRepository interface {
	ListRules(ctx context.Context, staffID int64) ([]AvailabilityRule, error)
	// UpsertRule inserts the rule when ID is 0, otherwise replaces it. ID and timestamps are set on return.
	UpsertRule(ctx context.Context, rule *AvailabilityRule) error
	DeleteRule(ctx context.Context, id int64) error
}

// BookingRepository contains all booking storage interactions needed by the engine and services.
type BookingRepository interface {
	// For conflict checks. excludeID == 0 excludes nothing.
	ListActiveBookings(ctx context.Context, staffID, excludeID int64) ([]Booking, error)

	GetBooking(ctx context.Context, id int64) (*Booking, error)

	// Creation and updates
	CreateBooking(ctx context.Context, b *Booking) (int64, error)
	UpdateBooking(ctx context.Context, id int64, upd BookingUpdate) error

	// Admin cleanup
	DeleteBooking(ctx context.Context, id int64) error
}

// Locker serializes booking writes per staff member.
type Locker interface {
	WithStaffLock(ctx context.Context, staffID int64, fn func(ctx context.Context) error) error
}

// Clock is injected so slot listings can be tested against a fixed "now".
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
