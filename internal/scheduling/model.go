package scheduling

import (
	"time"
)

type RuleKind string

const (
	RuleRecurring    RuleKind = "recurring"
	RuleSpecificDate RuleKind = "specific_date"
)

type RecurrencePeriod string

const (
	PeriodWeekly   RecurrencePeriod = "weekly"
	PeriodBiweekly RecurrencePeriod = "biweekly"
	PeriodMonthly  RecurrencePeriod = "monthly"
)

// MonthlyMode selects how a monthly recurring rule picks its dates.
type MonthlyMode string

const (
	// MonthlyNthWeekday repeats on the same weekday position as the anchor (2nd Monday, ...).
	MonthlyNthWeekday MonthlyMode = "nth_weekday"
	// MonthlyEveryFourWeeks repeats every fourth matching weekday counted from the anchor.
	MonthlyEveryFourWeeks MonthlyMode = "every_four_weeks"
)

type BookingStatus string

const (
	StatusPending     BookingStatus = "pending"
	StatusDepositPaid BookingStatus = "deposit_paid"
	StatusConfirmed   BookingStatus = "confirmed"
	StatusCompleted   BookingStatus = "completed"
	StatusCancelled   BookingStatus = "cancelled"
	StatusNoShow      BookingStatus = "no_show"
)

// InactiveStatuses never take part in conflict checks.
var InactiveStatuses = []BookingStatus{StatusCancelled, StatusNoShow}

// Valid reports whether s is one of the known booking statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusDepositPaid, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Active reports whether a booking in this status blocks its time window.
func (s BookingStatus) Active() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// AvailabilityRule is a window during which a staff member can be booked for a service.
// Recurring rules use DayOfWeek/Period; specific_date rules use Date.
type AvailabilityRule struct {
	ID        int64
	StaffID   int64
	ServiceID int64 // 0 = every service
	Kind      RuleKind

	DayOfWeek         time.Weekday
	Period            RecurrencePeriod
	RecurrenceEndDate *time.Time // inclusive
	AnchorDate        *time.Time // first date the rule is in effect; also the biweekly/monthly anchor

	Date *time.Time

	StartTime       TimeOfDay
	EndTime         TimeOfDay
	AppointmentOnly bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AppliesTo reports whether the rule covers serviceID.
func (r *AvailabilityRule) AppliesTo(serviceID int64) bool {
	return r.ServiceID == 0 || r.ServiceID == serviceID
}

type Booking struct {
	ID              int64
	StaffID         int64
	ServiceID       int64
	CustomerID      int64
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	Status          BookingStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsActive returns true if the booking still occupies its window
func (b *Booking) IsActive() bool {
	return b.Status.Active()
}

// BookingUpdate carries the mutable fields of a booking; nil fields are left unchanged.
// StartTime and DurationMinutes are always written together so EndTime stays derived.
type BookingUpdate struct {
	StartTime       *time.Time
	DurationMinutes *int
	Status          *BookingStatus
}

// CandidateSlot is a bookable window produced by the expander for one query.
type CandidateSlot struct {
	StaffID         int64
	ServiceID       int64
	StartTime       time.Time
	EndTime         time.Time
	AppointmentOnly bool
}

// ValidationResult is the verdict for an admin schedule edit.
type ValidationResult struct {
	Valid   bool
	Message string
}

func endOf(start time.Time, durationMinutes int) time.Time {
	return start.Add(time.Duration(durationMinutes) * time.Minute)
}
