package scheduling

import "errors"

var (
	// ErrInvalidTimeFormat is returned for unparsable date or time input.
	ErrInvalidTimeFormat = errors.New("scheduling: invalid date/time format")

	// ErrRepositoryUnavailable means availability could not be confirmed because storage failed.
	ErrRepositoryUnavailable = errors.New("scheduling: repository unavailable")

	// ErrSlotConflict is returned by write paths when the window overlaps an active booking.
	ErrSlotConflict = errors.New("scheduling: time slot conflicts with an existing booking")

	// ErrMalformedRule is returned when a rule has end <= start or an unknown kind/period.
	ErrMalformedRule = errors.New("scheduling: malformed availability rule")

	ErrBookingNotFound = errors.New("scheduling: booking not found")
	ErrRuleNotFound    = errors.New("scheduling: availability rule not found")

	// ErrRangeTooLong is returned when a slot query spans more days than allowed.
	ErrRangeTooLong = errors.New("scheduling: query range too long")

	ErrInvalidDuration = errors.New("scheduling: invalid duration")
	ErrInvalidStatus   = errors.New("scheduling: invalid booking status")
	ErrInvalidInput    = errors.New("scheduling: invalid input")

	// ErrStaffBusy is returned when the per-staff write lock could not be acquired in time.
	ErrStaffBusy = errors.New("scheduling: another booking for this staff member is in progress, please retry")
)

// User-facing messages for validation results.
const (
	MsgSlotAvailable = "Time slot is available."
	MsgSlotConflict  = "This time slot is already booked. Please choose another time."
	MsgInvalidTime   = "Invalid date or time format. Use YYYY-MM-DD HH:MM."
)
