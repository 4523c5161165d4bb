package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hhmm string) time.Time {
	return MustTimeOfDay(hhmm).On(date(2025, 3, 10), time.UTC)
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name       string
		s, e       string
		bs, be     string
		overlapped bool
	}{
		{"identical", "10:00", "11:00", "10:00", "11:00", true},
		{"partial start", "09:30", "10:30", "10:00", "11:00", true},
		{"partial end", "10:30", "11:30", "10:00", "11:00", true},
		{"contained", "10:15", "10:45", "10:00", "11:00", true},
		{"containing", "09:00", "12:00", "10:00", "11:00", true},
		{"touching before", "09:00", "10:00", "10:00", "11:00", false},
		{"touching after", "11:00", "12:00", "10:00", "11:00", false},
		{"disjoint", "13:00", "14:00", "10:00", "11:00", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Overlaps(at(c.s), at(c.e), at(c.bs), at(c.be))
			assert.Equal(t, c.overlapped, got)
			// symmetric
			assert.Equal(t, c.overlapped, Overlaps(at(c.bs), at(c.be), at(c.s), at(c.e)))
		})
	}
}

// TestOverlaps_MatchesMinuteGrid compares the interval test with a brute-force scan
// of shared minutes over random intervals.
func TestOverlaps_MatchesMinuteGrid(t *testing.T) {
	f := gofakeit.New(42)
	base := date(2025, 3, 10)

	for i := 0; i < 2000; i++ {
		s := f.IntRange(0, 600)
		e := s + f.IntRange(1, 120)
		bs := f.IntRange(0, 600)
		be := bs + f.IntRange(1, 120)

		shared := false
		for m := s; m < e; m++ {
			if m >= bs && m < be {
				shared = true
				break
			}
		}

		got := Overlaps(
			base.Add(time.Duration(s)*time.Minute), base.Add(time.Duration(e)*time.Minute),
			base.Add(time.Duration(bs)*time.Minute), base.Add(time.Duration(be)*time.Minute),
		)
		require.Equal(t, shared, got, "[%d,%d) vs [%d,%d)", s, e, bs, be)
	}
}

type bookingsOnly struct {
	list []Booking
	err  error
}

func (b bookingsOnly) ListActiveBookings(ctx context.Context, staffID, excludeID int64) ([]Booking, error) {
	return b.list, b.err
}
func (b bookingsOnly) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	return nil, ErrBookingNotFound
}
func (b bookingsOnly) CreateBooking(ctx context.Context, bk *Booking) (int64, error) { return 0, nil }
func (b bookingsOnly) UpdateBooking(ctx context.Context, id int64, upd BookingUpdate) error {
	return nil
}
func (b bookingsOnly) DeleteBooking(ctx context.Context, id int64) error { return nil }

func TestOverlapDetector_RefiltersAdapterOutput(t *testing.T) {
	// an adapter that ignores its filters must not leak other staff, cancelled or excluded bookings
	repo := bookingsOnly{list: []Booking{
		{ID: 1, StaffID: 3, StartTime: at("10:00"), EndTime: at("11:00"), Status: StatusCancelled},
		{ID: 2, StaffID: 4, StartTime: at("10:00"), EndTime: at("11:00"), Status: StatusConfirmed},
		{ID: 3, StaffID: 3, StartTime: at("10:00"), EndTime: at("11:00"), Status: StatusNoShow},
		{ID: 4, StaffID: 3, StartTime: at("10:00"), EndTime: at("11:00"), Status: StatusPending},
	}}
	d := NewOverlapDetector(repo)

	conflict, err := d.HasConflict(context.Background(), 3, at("10:30"), at("11:30"), 4)
	require.NoError(t, err)
	assert.False(t, conflict)

	conflict, err = d.HasConflict(context.Background(), 3, at("10:30"), at("11:30"), 0)
	require.NoError(t, err)
	assert.True(t, conflict)
}

func TestOverlapDetector_AllActiveStatusesBlock(t *testing.T) {
	for _, st := range []BookingStatus{StatusPending, StatusDepositPaid, StatusConfirmed, StatusCompleted} {
		repo := bookingsOnly{list: []Booking{{ID: 1, StaffID: 3, StartTime: at("10:00"), EndTime: at("11:00"), Status: st}}}
		conflict, err := NewOverlapDetector(repo).HasConflict(context.Background(), 3, at("10:00"), at("10:15"), 0)
		require.NoError(t, err)
		assert.True(t, conflict, st)
	}
}

func TestOverlapDetector_RepositoryError(t *testing.T) {
	d := NewOverlapDetector(bookingsOnly{err: errors.New("connection reset")})

	conflict, err := d.HasConflict(context.Background(), 3, at("10:00"), at("11:00"), 0)
	assert.False(t, conflict)
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestBookingSet_FirstConflict(t *testing.T) {
	set := BookingSet{bookings: []Booking{
		{ID: 7, StaffID: 3, StartTime: at("09:00"), EndTime: at("10:00"), Status: StatusConfirmed},
		{ID: 8, StaffID: 3, StartTime: at("12:00"), EndTime: at("13:00"), Status: StatusConfirmed},
	}}

	b := set.FirstConflict(at("12:30"), at("13:30"))
	require.NotNil(t, b)
	assert.Equal(t, int64(8), b.ID)
	assert.Nil(t, set.FirstConflict(at("10:00"), at("12:00")))
	assert.Equal(t, 2, set.Len())
}
