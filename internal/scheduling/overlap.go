package scheduling

import (
	"context"
	"fmt"
	"time"
)

// Overlaps reports whether the half-open intervals [s, e) and [bs, be) intersect.
// Intervals that only touch at an endpoint do not overlap.
func Overlaps(s, e, bs, be time.Time) bool {
	return s.Before(be) && e.After(bs)
}

// BookingSet is a snapshot of a staff member's active bookings, used to test many
// windows against the same data with a single repository round trip.
type BookingSet struct {
	bookings []Booking
}

// FirstConflict returns the first active booking overlapping [s, e), or nil.
func (bs BookingSet) FirstConflict(s, e time.Time) *Booking {
	for i := range bs.bookings {
		b := &bs.bookings[i]
		if !b.IsActive() {
			continue
		}
		if Overlaps(s, e, b.StartTime, b.EndTime) {
			return b
		}
	}
	return nil
}

func (bs BookingSet) Conflicts(s, e time.Time) bool {
	return bs.FirstConflict(s, e) != nil
}

func (bs BookingSet) Len() int { return len(bs.bookings) }

// OverlapDetector is the single source of truth for booking conflicts.
type OverlapDetector struct {
	bookings BookingRepository
}

func NewOverlapDetector(bookings BookingRepository) *OverlapDetector {
	return &OverlapDetector{bookings: bookings}
}

// Snapshot loads the active bookings of staffID, leaving out excludeID when it is non-zero.
func (d *OverlapDetector) Snapshot(ctx context.Context, staffID, excludeID int64) (BookingSet, error) {
	bookings, err := d.bookings.ListActiveBookings(ctx, staffID, excludeID)
	if err != nil {
		return BookingSet{}, fmt.Errorf("%w: list active bookings for staff %d: %v", ErrRepositoryUnavailable, staffID, err)
	}

	// the repository already filters, but the set must hold regardless of the adapter
	filtered := make([]Booking, 0, len(bookings))
	for _, b := range bookings {
		if excludeID != 0 && b.ID == excludeID {
			continue
		}
		if b.StaffID != staffID {
			continue
		}
		filtered = append(filtered, b)
	}

	return BookingSet{bookings: filtered}, nil
}

// HasConflict reports whether [s, e) overlaps any active booking of staffID other than excludeID.
func (d *OverlapDetector) HasConflict(ctx context.Context, staffID int64, s, e time.Time, excludeID int64) (bool, error) {
	set, err := d.Snapshot(ctx, staffID, excludeID)
	if err != nil {
		return false, err
	}
	return set.Conflicts(s, e), nil
}
