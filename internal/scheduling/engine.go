package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// EngineConfig holds the tunables of the availability engine.
type EngineConfig struct {
	Location               *time.Location
	StepMinutes            int
	DefaultDurationMinutes int
	MaxRangeDays           int
	MinNotice              time.Duration // 0 disables the notice filter
	MonthlyMode            MonthlyMode
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.StepMinutes <= 0 {
		c.StepMinutes = DefaultStepMinutes
	}
	if c.DefaultDurationMinutes <= 0 {
		c.DefaultDurationMinutes = DefaultDurationMinutes
	}
	if c.MaxRangeDays <= 0 {
		c.MaxRangeDays = DefaultMaxRangeDays
	}
	if c.MonthlyMode == "" {
		c.MonthlyMode = MonthlyNthWeekday
	}
	return c
}

// SlotQuery asks for bookable windows over a range of calendar dates.
type SlotQuery struct {
	StaffID         int64
	ServiceID       int64
	From            time.Time
	To              time.Time // inclusive
	DurationMinutes int
	// IncludeAppointmentOnly keeps windows that are bookable only by direct contact (admin view).
	IncludeAppointmentOnly bool
}

// Engine answers availability questions. It keeps no state between calls;
// everything is read from the repositories.
type Engine struct {
	rules    RuleRepository
	bookings BookingRepository
	detector *OverlapDetector
	expander *Expander
	clock    Clock
	cfg      EngineConfig
	logger   *zap.Logger
}

func NewEngine(rules RuleRepository, bookings BookingRepository, cfg EngineConfig, logger *zap.Logger) *Engine {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		rules:    rules,
		bookings: bookings,
		detector: NewOverlapDetector(bookings),
		expander: NewExpander(cfg.Location, cfg.MonthlyMode, logger),
		clock:    systemClock{},
		cfg:      cfg,
		logger:   logger,
	}
}

func (e *Engine) Location() *time.Location { return e.cfg.Location }

func (e *Engine) Detector() *OverlapDetector { return e.detector }

func (e *Engine) Config() EngineConfig { return e.cfg }

// SetClock replaces the time source used by the notice filter.
func (e *Engine) SetClock(c Clock) { e.clock = c }

// AvailableSlots expands the staff member's rules for the service over the query range and
// drops every candidate that conflicts with an active booking.
func (e *Engine) AvailableSlots(ctx context.Context, q SlotQuery) ([]CandidateSlot, error) {
	if q.StaffID <= 0 {
		return nil, fmt.Errorf("%w: staffID must be positive", ErrInvalidInput)
	}
	if q.ServiceID <= 0 {
		return nil, fmt.Errorf("%w: serviceID must be positive", ErrInvalidInput)
	}
	if q.DurationMinutes <= 0 || q.DurationMinutes > MaxDurationMinutes {
		return nil, fmt.Errorf("%w: %d minutes", ErrInvalidDuration, q.DurationMinutes)
	}

	from := q.From.In(e.cfg.Location)
	to := q.To.In(e.cfg.Location)
	days := daysBetween(from, to) + 1
	if days < 1 {
		return nil, fmt.Errorf("%w: range ends before it starts", ErrInvalidInput)
	}
	if days > e.cfg.MaxRangeDays {
		return nil, fmt.Errorf("%w: %d days requested, at most %d allowed", ErrRangeTooLong, days, e.cfg.MaxRangeDays)
	}

	rules, err := e.rules.ListRules(ctx, q.StaffID)
	if err != nil {
		e.logger.Error("load availability rules failed", zap.Int64("staff_id", q.StaffID), zap.Error(err))
		return nil, fmt.Errorf("%w: list rules for staff %d: %v", ErrRepositoryUnavailable, q.StaffID, err)
	}

	applicable := make([]AvailabilityRule, 0, len(rules))
	for _, r := range rules {
		if r.StaffID != q.StaffID || !r.AppliesTo(q.ServiceID) {
			continue
		}
		// service-wide rules are reported under the requested service so duplicates collapse
		r.ServiceID = q.ServiceID
		applicable = append(applicable, r)
	}

	candidates := e.expander.Expand(applicable, from, to, q.DurationMinutes, e.cfg.StepMinutes)
	if len(candidates) == 0 {
		return candidates, nil
	}

	set, err := e.detector.Snapshot(ctx, q.StaffID, 0)
	if err != nil {
		e.logger.Error("load bookings failed", zap.Int64("staff_id", q.StaffID), zap.Error(err))
		return nil, err
	}

	var cutoff time.Time
	if e.cfg.MinNotice > 0 {
		cutoff = e.clock.Now().Add(e.cfg.MinNotice)
	}

	free := make([]CandidateSlot, 0, len(candidates))
	for _, c := range candidates {
		if c.AppointmentOnly && !q.IncludeAppointmentOnly {
			continue
		}
		if !cutoff.IsZero() && c.StartTime.Before(cutoff) {
			continue
		}
		if set.Conflicts(c.StartTime, c.EndTime) {
			continue
		}
		free = append(free, c)
	}

	e.logger.Debug("slots computed",
		zap.Int64("staff_id", q.StaffID),
		zap.Int64("service_id", q.ServiceID),
		zap.Int("candidates", len(candidates)),
		zap.Int("bookings", set.Len()),
		zap.Int("free", len(free)),
	)

	return free, nil
}

// GetAvailableSlots returns the HH:MM start times bookable on date (YYYY-MM-DD) by a self-serve customer.
func (e *Engine) GetAvailableSlots(ctx context.Context, staffID, serviceID int64, date string, durationMinutes int) ([]string, error) {
	day, err := ParseDate(date, e.cfg.Location)
	if err != nil {
		return nil, err
	}

	slots, err := e.AvailableSlots(ctx, SlotQuery{
		StaffID:         staffID,
		ServiceID:       serviceID,
		From:            day,
		To:              day,
		DurationMinutes: durationMinutes,
	})
	if err != nil {
		return nil, err
	}

	starts := make([]string, len(slots))
	for i, s := range slots {
		starts[i] = s.StartTime.In(e.cfg.Location).Format(TimeFormat)
	}
	return starts, nil
}

// IsSlotAvailable is a pure conflict check for a "YYYY-MM-DD HH:MM" start. It does not require
// an availability rule to cover the window: admin bookings outside declared hours are allowed.
func (e *Engine) IsSlotAvailable(ctx context.Context, staffID int64, start string, durationMinutes int, excludeBookingID int64) (bool, error) {
	startAt, err := ParseDateTime(start, e.cfg.Location)
	if err != nil {
		return false, err
	}
	return e.IsWindowAvailable(ctx, staffID, startAt, durationMinutes, excludeBookingID)
}

// IsWindowAvailable is IsSlotAvailable for an already parsed start time.
func (e *Engine) IsWindowAvailable(ctx context.Context, staffID int64, start time.Time, durationMinutes int, excludeBookingID int64) (bool, error) {
	if staffID <= 0 {
		return false, fmt.Errorf("%w: staffID must be positive", ErrInvalidInput)
	}
	if durationMinutes <= 0 {
		return false, fmt.Errorf("%w: %d minutes", ErrInvalidDuration, durationMinutes)
	}

	conflict, err := e.detector.HasConflict(ctx, staffID, start, endOf(start, durationMinutes), excludeBookingID)
	if err != nil {
		e.logger.Error("conflict check failed", zap.Int64("staff_id", staffID), zap.Error(err))
		return false, err
	}
	return !conflict, nil
}

// ValidateBookingRequest checks an admin edit of a booking's schedule. A conflict is reported in
// the result, not as an error. Errors mean the verdict could not be reached.
func (e *Engine) ValidateBookingRequest(ctx context.Context, bookingID, serviceID, staffID int64, start string) (ValidationResult, error) {
	startAt, err := ParseDateTime(start, e.cfg.Location)
	if err != nil {
		return ValidationResult{Valid: false, Message: MsgInvalidTime}, err
	}

	duration := e.cfg.DefaultDurationMinutes
	if bookingID != 0 {
		b, err := e.bookings.GetBooking(ctx, bookingID)
		if err != nil {
			if errors.Is(err, ErrBookingNotFound) {
				return ValidationResult{Valid: false, Message: "Booking not found."}, err
			}
			e.logger.Error("load booking failed", zap.Int64("booking_id", bookingID), zap.Error(err))
			return ValidationResult{Valid: false, Message: msgUnknownAvailability},
				fmt.Errorf("%w: get booking %d: %v", ErrRepositoryUnavailable, bookingID, err)
		}
		if b.DurationMinutes > 0 {
			duration = b.DurationMinutes
		}
	}

	ok, err := e.IsWindowAvailable(ctx, staffID, startAt, duration, bookingID)
	if err != nil {
		return ValidationResult{Valid: false, Message: msgUnknownAvailability}, err
	}
	if !ok {
		e.logger.Info("booking request conflicts",
			zap.Int64("booking_id", bookingID),
			zap.Int64("staff_id", staffID),
			zap.Int64("service_id", serviceID),
			zap.Time("start", startAt),
		)
		return ValidationResult{Valid: false, Message: MsgSlotConflict}, nil
	}

	return ValidationResult{Valid: true, Message: MsgSlotAvailable}, nil
}

const msgUnknownAvailability = "Availability could not be confirmed. Please try again."
