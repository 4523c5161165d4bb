package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo serves fixed rules and bookings and can be told to fail.
type fakeRepo struct {
	rules    []AvailabilityRule
	bookings []Booking
	rulesErr error
	listErr  error
	getErr   error
}

func (f *fakeRepo) ListRules(ctx context.Context, staffID int64) ([]AvailabilityRule, error) {
	if f.rulesErr != nil {
		return nil, f.rulesErr
	}
	var out []AvailabilityRule
	for _, r := range f.rules {
		if r.StaffID == staffID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpsertRule(ctx context.Context, rule *AvailabilityRule) error { return nil }
func (f *fakeRepo) DeleteRule(ctx context.Context, id int64) error              { return nil }

func (f *fakeRepo) ListActiveBookings(ctx context.Context, staffID, excludeID int64) ([]Booking, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []Booking
	for _, b := range f.bookings {
		if b.StaffID == staffID && b.IsActive() && b.ID != excludeID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, b := range f.bookings {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, ErrBookingNotFound
}

func (f *fakeRepo) CreateBooking(ctx context.Context, b *Booking) (int64, error) { return 0, nil }
func (f *fakeRepo) UpdateBooking(ctx context.Context, id int64, upd BookingUpdate) error {
	return nil
}
func (f *fakeRepo) DeleteBooking(ctx context.Context, id int64) error { return nil }

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

func booking(id int64, start string, minutes int, status BookingStatus) Booking {
	s := at(start)
	return Booking{
		ID:              id,
		StaffID:         3,
		ServiceID:       8,
		CustomerID:      100 + id,
		StartTime:       s,
		EndTime:         endOf(s, minutes),
		DurationMinutes: minutes,
		Status:          status,
	}
}

func mondayRepo(bookings ...Booking) *fakeRepo {
	return &fakeRepo{
		rules:    []AvailabilityRule{weekly(time.Monday, "09:00", "17:00")},
		bookings: bookings,
	}
}

func newTestEngine(repo *fakeRepo) *Engine {
	return NewEngine(repo, repo, EngineConfig{Location: time.UTC}, nil)
}

func TestGetAvailableSlots_NoBookings(t *testing.T) {
	e := newTestEngine(mondayRepo())

	slots, err := e.GetAvailableSlots(context.Background(), 3, 8, "2025-03-10", 60)
	require.NoError(t, err)
	require.Len(t, slots, 29)
	assert.Equal(t, "09:00", slots[0])
	assert.Equal(t, "09:15", slots[1])
	assert.Equal(t, "16:00", slots[28])
}

func TestGetAvailableSlots_ExcludesOverlappingStarts(t *testing.T) {
	e := newTestEngine(mondayRepo(booking(1, "10:00", 60, StatusConfirmed)))

	slots, err := e.GetAvailableSlots(context.Background(), 3, 8, "2025-03-10", 60)
	require.NoError(t, err)

	assert.Len(t, slots, 22)
	assert.Contains(t, slots, "09:00")
	assert.Contains(t, slots, "11:00")
	for _, blocked := range []string{"09:15", "09:30", "09:45", "10:00", "10:15", "10:30", "10:45"} {
		assert.NotContains(t, slots, blocked)
	}
}

func TestGetAvailableSlots_InactiveBookingsDoNotBlock(t *testing.T) {
	e := newTestEngine(mondayRepo(
		booking(1, "10:00", 60, StatusCancelled),
		booking(2, "12:00", 60, StatusNoShow),
	))

	slots, err := e.GetAvailableSlots(context.Background(), 3, 8, "2025-03-10", 60)
	require.NoError(t, err)
	assert.Len(t, slots, 29)
}

func TestGetAvailableSlots_ServiceScopedRules(t *testing.T) {
	massage := weekly(time.Monday, "09:00", "10:00")
	massage.ServiceID = 5
	anyService := weekly(time.Monday, "14:00", "15:00")
	anyService.ServiceID = 0
	e := newTestEngine(&fakeRepo{rules: []AvailabilityRule{massage, anyService}})

	slots, err := e.GetAvailableSlots(context.Background(), 3, 8, "2025-03-10", 60)
	require.NoError(t, err)
	assert.Equal(t, []string{"14:00"}, slots)

	slots, err = e.GetAvailableSlots(context.Background(), 3, 5, "2025-03-10", 60)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "14:00"}, slots)
}

func TestGetAvailableSlots_Errors(t *testing.T) {
	e := newTestEngine(mondayRepo())
	ctx := context.Background()

	_, err := e.GetAvailableSlots(ctx, 3, 8, "03/10/2025", 60)
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)

	_, err = e.GetAvailableSlots(ctx, 3, 8, "2025-03-10", 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = e.GetAvailableSlots(ctx, 0, 8, "2025-03-10", 60)
	assert.ErrorIs(t, err, ErrInvalidInput)

	failing := newTestEngine(&fakeRepo{rulesErr: errors.New("db down")})
	_, err = failing.GetAvailableSlots(ctx, 3, 8, "2025-03-10", 60)
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)

	noBookings := mondayRepo()
	noBookings.listErr = errors.New("timeout")
	_, err = newTestEngine(noBookings).GetAvailableSlots(ctx, 3, 8, "2025-03-10", 60)
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)
}

func TestAvailableSlots_Range(t *testing.T) {
	e := newTestEngine(mondayRepo())
	ctx := context.Background()

	slots, err := e.AvailableSlots(ctx, SlotQuery{
		StaffID: 3, ServiceID: 8, From: date(2025, 3, 1), To: date(2025, 3, 31), DurationMinutes: 480,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 10, 17, 24, 31}, startDays(slots))

	_, err = e.AvailableSlots(ctx, SlotQuery{
		StaffID: 3, ServiceID: 8, From: date(2025, 1, 1), To: date(2025, 6, 30), DurationMinutes: 60,
	})
	assert.ErrorIs(t, err, ErrRangeTooLong)

	_, err = e.AvailableSlots(ctx, SlotQuery{
		StaffID: 3, ServiceID: 8, From: date(2025, 3, 10), To: date(2025, 3, 9), DurationMinutes: 60,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAvailableSlots_AppointmentOnly(t *testing.T) {
	r := weekly(time.Monday, "18:00", "19:00")
	r.AppointmentOnly = true
	repo := mondayRepo()
	repo.rules = append(repo.rules, r)
	e := newTestEngine(repo)

	q := SlotQuery{StaffID: 3, ServiceID: 8, From: date(2025, 3, 10), To: date(2025, 3, 10), DurationMinutes: 60}

	public, err := e.AvailableSlots(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, public, 29)

	q.IncludeAppointmentOnly = true
	admin, err := e.AvailableSlots(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, admin, 30)
	assert.True(t, admin[29].AppointmentOnly)
}

func TestAvailableSlots_MinNotice(t *testing.T) {
	repo := mondayRepo()
	e := NewEngine(repo, repo, EngineConfig{Location: time.UTC, MinNotice: time.Hour}, nil)
	e.SetClock(fixedClock(at("11:10")))

	slots, err := e.GetAvailableSlots(context.Background(), 3, 8, "2025-03-10", 60)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, "12:15", slots[0])
	assert.Len(t, slots, 16)

	// the point check is not subject to the notice window
	ok, err := e.IsSlotAvailable(context.Background(), 3, "2025-03-10 09:00", 60, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsSlotAvailable_SelfExclusion(t *testing.T) {
	e := newTestEngine(mondayRepo(booking(42, "14:00", 60, StatusConfirmed)))
	ctx := context.Background()

	ok, err := e.IsSlotAvailable(ctx, 3, "2025-03-10 14:00", 60, 42)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.IsSlotAvailable(ctx, 3, "2025-03-10 14:00", 60, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	// touching at either end is fine
	ok, err = e.IsSlotAvailable(ctx, 3, "2025-03-10 13:00", 60, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = e.IsSlotAvailable(ctx, 3, "2025-03-10 15:00", 60, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	// other staff are unaffected
	ok, err = e.IsSlotAvailable(ctx, 4, "2025-03-10 14:00", 60, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsSlotAvailable_OutsideRulesStillChecksConflicts(t *testing.T) {
	e := newTestEngine(mondayRepo(booking(1, "20:00", 60, StatusPending)))

	ok, err := e.IsSlotAvailable(context.Background(), 3, "2025-03-10 21:00", 30, 0)
	require.NoError(t, err)
	assert.True(t, ok, "no rule covers 21:00 but nothing conflicts")

	ok, err = e.IsSlotAvailable(context.Background(), 3, "2025-03-10 20:30", 30, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsSlotAvailable_Errors(t *testing.T) {
	e := newTestEngine(mondayRepo())

	ok, err := e.IsSlotAvailable(context.Background(), 3, "14:00", 60, 0)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)

	repo := mondayRepo()
	repo.listErr = errors.New("connection refused")
	ok, err = newTestEngine(repo).IsSlotAvailable(context.Background(), 3, "2025-03-10 14:00", 60, 0)
	assert.False(t, ok, "an unknown answer must never read as available")
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)
}

func TestSlotsAgreeWithPointCheck(t *testing.T) {
	repo := mondayRepo(
		booking(1, "09:30", 45, StatusConfirmed),
		booking(2, "12:00", 90, StatusDepositPaid),
		booking(3, "15:10", 20, StatusPending),
		booking(4, "11:00", 60, StatusCancelled),
	)
	e := newTestEngine(repo)
	ctx := context.Background()

	for _, d := range []int{30, 45, 60, 90} {
		slots, err := e.GetAvailableSlots(ctx, 3, 8, "2025-03-10", d)
		require.NoError(t, err)
		for _, s := range slots {
			ok, err := e.IsSlotAvailable(ctx, 3, "2025-03-10 "+s, d, 0)
			require.NoError(t, err)
			assert.True(t, ok, "%s for %d minutes listed but not available", s, d)
		}
	}
}

func TestValidateBookingRequest(t *testing.T) {
	repo := mondayRepo(
		booking(42, "14:00", 90, StatusConfirmed),
		booking(43, "16:00", 60, StatusConfirmed),
	)
	e := newTestEngine(repo)
	ctx := context.Background()

	res, err := e.ValidateBookingRequest(ctx, 42, 8, 3, "2025-03-10 14:30")
	require.NoError(t, err)
	assert.Equal(t, ValidationResult{Valid: true, Message: MsgSlotAvailable}, res)

	// the stored 90 minute duration reaches into booking 43
	res, err = e.ValidateBookingRequest(ctx, 42, 8, 3, "2025-03-10 14:45")
	require.NoError(t, err)
	assert.Equal(t, ValidationResult{Valid: false, Message: MsgSlotConflict}, res)

	// a new booking uses the default duration and conflicts with 42
	res, err = e.ValidateBookingRequest(ctx, 0, 8, 3, "2025-03-10 13:30")
	require.NoError(t, err)
	assert.False(t, res.Valid)

	res, err = e.ValidateBookingRequest(ctx, 0, 8, 3, "2025-03-10 13:00")
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = e.ValidateBookingRequest(ctx, 42, 8, 3, "10/03/2025 2pm")
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)
	assert.Equal(t, MsgInvalidTime, res.Message)
	assert.False(t, res.Valid)

	_, err = e.ValidateBookingRequest(ctx, 99, 8, 3, "2025-03-10 10:00")
	assert.ErrorIs(t, err, ErrBookingNotFound)

	repo.getErr = errors.New("db down")
	res, err = e.ValidateBookingRequest(ctx, 42, 8, 3, "2025-03-10 10:00")
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)
	assert.False(t, res.Valid)
}

func TestEngine_ConfigDefaults(t *testing.T) {
	e := NewEngine(&fakeRepo{}, &fakeRepo{}, EngineConfig{}, nil)
	cfg := e.Config()

	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, DefaultStepMinutes, cfg.StepMinutes)
	assert.Equal(t, DefaultDurationMinutes, cfg.DefaultDurationMinutes)
	assert.Equal(t, DefaultMaxRangeDays, cfg.MaxRangeDays)
	assert.Equal(t, MonthlyNthWeekday, cfg.MonthlyMode)
}
