package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrLockNotAcquired is returned by Locker implementations that give up waiting.
var ErrLockNotAcquired = errors.New("staff lock not acquired")

// NewBooking is the input for BookingService.Create.
type NewBooking struct {
	StaffID         int64
	ServiceID       int64
	CustomerID      int64
	StartTime       time.Time
	DurationMinutes int
	Status          BookingStatus // empty = pending
}

// BookingService is the only mutating path for bookings. Every write that can make a booking
// occupy a window runs under the staff lock and re-checks conflicts after acquiring it.
type BookingService struct {
	repo     BookingRepository
	detector *OverlapDetector
	locker   Locker
	logger   *zap.Logger
}

func NewBookingService(repo BookingRepository, detector *OverlapDetector, locker Locker, logger *zap.Logger) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		repo:     repo,
		detector: detector,
		locker:   locker,
		logger:   logger,
	}
}

// Create stores a booking if its window is free.
func (s *BookingService) Create(ctx context.Context, nb NewBooking) (*Booking, error) {
	if nb.StaffID <= 0 || nb.ServiceID <= 0 || nb.CustomerID <= 0 {
		return nil, fmt.Errorf("%w: staff, service and customer ids must be positive", ErrInvalidInput)
	}
	if err := validateDuration(nb.DurationMinutes); err != nil {
		return nil, err
	}
	if nb.StartTime.IsZero() {
		return nil, fmt.Errorf("%w: start time is required", ErrInvalidTimeFormat)
	}
	if nb.Status == "" {
		nb.Status = StatusPending
	}
	if !nb.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, nb.Status)
	}

	b := &Booking{
		StaffID:         nb.StaffID,
		ServiceID:       nb.ServiceID,
		CustomerID:      nb.CustomerID,
		StartTime:       nb.StartTime,
		EndTime:         endOf(nb.StartTime, nb.DurationMinutes),
		DurationMinutes: nb.DurationMinutes,
		Status:          nb.Status,
	}

	err := s.withStaffLock(ctx, nb.StaffID, func(lockCtx context.Context) error {
		// Inside the critical section re-check against the current bookings
		if b.IsActive() {
			if err := s.ensureFree(lockCtx, b.StaffID, b.StartTime, b.EndTime, 0); err != nil {
				return err
			}
		}

		id, err := s.repo.CreateBooking(lockCtx, b)
		if err != nil {
			if errors.Is(err, ErrSlotConflict) {
				// rejected by the database exclusion constraint
				return err
			}
			return s.storageError("create booking", err)
		}
		b.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.Int64("booking_id", b.ID),
		zap.Int64("staff_id", b.StaffID),
		zap.Time("start", b.StartTime),
		zap.Int("duration_minutes", b.DurationMinutes),
		zap.String("status", string(b.Status)),
	)
	return b, nil
}

// Reschedule moves a booking to a new start and duration, validating against every other booking.
func (s *BookingService) Reschedule(ctx context.Context, id int64, start time.Time, durationMinutes int) (*Booking, error) {
	if err := validateDuration(durationMinutes); err != nil {
		return nil, err
	}
	if start.IsZero() {
		return nil, fmt.Errorf("%w: start time is required", ErrInvalidTimeFormat)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *Booking
	err = s.withStaffLock(ctx, current.StaffID, func(lockCtx context.Context) error {
		b, err := s.Get(lockCtx, id)
		if err != nil {
			return err
		}

		end := endOf(start, durationMinutes)
		if b.IsActive() {
			if err := s.ensureFree(lockCtx, b.StaffID, start, end, b.ID); err != nil {
				return err
			}
		}

		if err := s.repo.UpdateBooking(lockCtx, id, BookingUpdate{StartTime: &start, DurationMinutes: &durationMinutes}); err != nil {
			if errors.Is(err, ErrBookingNotFound) || errors.Is(err, ErrSlotConflict) {
				return err
			}
			return s.storageError("reschedule booking", err)
		}

		b.StartTime = start
		b.EndTime = end
		b.DurationMinutes = durationMinutes
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking rescheduled",
		zap.Int64("booking_id", id),
		zap.Time("start", start),
		zap.Int("duration_minutes", durationMinutes),
	)
	return updated, nil
}

// UpdateStatus changes a booking's status. Moving an inactive booking back to an active status
// re-validates its window, since another booking may have taken it in the meantime.
func (s *BookingService) UpdateStatus(ctx context.Context, id int64, status BookingStatus) (*Booking, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	apply := func(c context.Context) (*Booking, error) {
		b, err := s.Get(c, id)
		if err != nil {
			return nil, err
		}
		if !b.IsActive() && status.Active() {
			if err := s.ensureFree(c, b.StaffID, b.StartTime, b.EndTime, b.ID); err != nil {
				return nil, err
			}
		}
		if err := s.repo.UpdateBooking(c, id, BookingUpdate{Status: &status}); err != nil {
			if errors.Is(err, ErrBookingNotFound) || errors.Is(err, ErrSlotConflict) {
				return nil, err
			}
			return nil, s.storageError("update booking status", err)
		}
		b.Status = status
		return b, nil
	}

	var updated *Booking
	if !current.IsActive() && status.Active() {
		err = s.withStaffLock(ctx, current.StaffID, func(lockCtx context.Context) error {
			var err error
			updated, err = apply(lockCtx)
			return err
		})
	} else {
		// freeing or keeping a window cannot create an overlap
		updated, err = apply(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking status updated",
		zap.Int64("booking_id", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(status)),
	)
	return updated, nil
}

// Delete physically removes a booking. Cancellation through UpdateStatus is preferred.
func (s *BookingService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteBooking(ctx, id); err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return err
		}
		return s.storageError("delete booking", err)
	}
	s.logger.Info("booking deleted", zap.Int64("booking_id", id))
	return nil
}

func (s *BookingService) Get(ctx context.Context, id int64) (*Booking, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: booking id must be positive", ErrInvalidInput)
	}
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, s.storageError("get booking", err)
	}
	return b, nil
}

func (s *BookingService) ensureFree(ctx context.Context, staffID int64, start, end time.Time, excludeID int64) error {
	conflict, err := s.detector.HasConflict(ctx, staffID, start, end, excludeID)
	if err != nil {
		return err
	}
	if conflict {
		s.logger.Info("booking write rejected, slot taken",
			zap.Int64("staff_id", staffID),
			zap.Time("start", start),
			zap.Time("end", end),
		)
		return ErrSlotConflict
	}
	return nil
}

func (s *BookingService) withStaffLock(ctx context.Context, staffID int64, fn func(ctx context.Context) error) error {
	err := s.locker.WithStaffLock(ctx, staffID, fn)
	if errors.Is(err, ErrLockNotAcquired) {
		s.logger.Warn("staff lock busy", zap.Int64("staff_id", staffID))
		return ErrStaffBusy
	}
	return err
}

func (s *BookingService) storageError(op string, err error) error {
	s.logger.Error(op+" failed", zap.Error(err))
	if errors.Is(err, ErrRepositoryUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrRepositoryUnavailable, op, err)
}

func validateDuration(minutes int) error {
	if minutes < MinDurationMinutes || minutes > MaxDurationMinutes {
		return fmt.Errorf("%w: %d minutes, must be between %d and %d", ErrInvalidDuration, minutes, MinDurationMinutes, MaxDurationMinutes)
	}
	return nil
}
