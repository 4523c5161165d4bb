package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mutexLocker is a single process-wide lock, enough to serialize writers in tests.
type mutexLocker struct {
	mu sync.Mutex
}

func (l *mutexLocker) WithStaffLock(ctx context.Context, staffID int64, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

type busyLocker struct{}

func (busyLocker) WithStaffLock(ctx context.Context, staffID int64, fn func(ctx context.Context) error) error {
	return ErrLockNotAcquired
}

// failingCreate wraps a store and fails every insert.
type failingCreate struct {
	*MemoryStore
	err error
}

func (f failingCreate) CreateBooking(ctx context.Context, b *Booking) (int64, error) {
	return 0, f.err
}

func newTestBookingService() (*BookingService, *MemoryStore) {
	store := NewMemoryStore()
	return NewBookingService(store, NewOverlapDetector(store), &mutexLocker{}, nil), store
}

func newBooking(start string, minutes int) NewBooking {
	return NewBooking{
		StaffID:         3,
		ServiceID:       8,
		CustomerID:      100,
		StartTime:       at(start),
		DurationMinutes: minutes,
	}
}

func TestCreate(t *testing.T) {
	svc, _ := newTestBookingService()
	ctx := context.Background()

	b, err := svc.Create(ctx, newBooking("10:00", 60))
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, at("11:00"), b.EndTime)

	_, err = svc.Create(ctx, newBooking("10:30", 60))
	assert.ErrorIs(t, err, ErrSlotConflict)

	_, err = svc.Create(ctx, newBooking("11:00", 60))
	assert.NoError(t, err, "touching bookings do not conflict")

	other := newBooking("10:00", 60)
	other.StaffID = 4
	_, err = svc.Create(ctx, other)
	assert.NoError(t, err, "other staff members are independent")
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestBookingService()
	ctx := context.Background()

	_, err := svc.Create(ctx, newBooking("10:00", 10))
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = svc.Create(ctx, newBooking("10:00", MaxDurationMinutes+1))
	assert.ErrorIs(t, err, ErrInvalidDuration)

	nb := newBooking("10:00", 60)
	nb.CustomerID = 0
	_, err = svc.Create(ctx, nb)
	assert.ErrorIs(t, err, ErrInvalidInput)

	nb = newBooking("10:00", 60)
	nb.Status = "tentative"
	_, err = svc.Create(ctx, nb)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	nb = newBooking("10:00", 60)
	nb.StartTime = time.Time{}
	_, err = svc.Create(ctx, nb)
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)
}

func TestCreate_InactiveStatusSkipsConflictCheck(t *testing.T) {
	svc, _ := newTestBookingService()
	ctx := context.Background()

	_, err := svc.Create(ctx, newBooking("10:00", 60))
	require.NoError(t, err)

	nb := newBooking("10:00", 60)
	nb.Status = StatusCancelled
	_, err = svc.Create(ctx, nb)
	assert.NoError(t, err)
}

func TestCreate_ConcurrentSameSlot(t *testing.T) {
	svc, store := newTestBookingService()

	const workers = 25
	var wg sync.WaitGroup
	errs := make([]error, workers)
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			nb := newBooking("10:00", 60)
			nb.CustomerID = int64(1000 + i)
			_, errs[i] = svc.Create(context.Background(), nb)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrSlotConflict)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, store.Bookings(), 1)
}

func TestCreate_LockBusy(t *testing.T) {
	store := NewMemoryStore()
	svc := NewBookingService(store, NewOverlapDetector(store), busyLocker{}, nil)

	_, err := svc.Create(context.Background(), newBooking("10:00", 60))
	assert.ErrorIs(t, err, ErrStaffBusy)
	assert.Empty(t, store.Bookings())
}

func TestCreate_StorageFailure(t *testing.T) {
	store := NewMemoryStore()
	repo := failingCreate{MemoryStore: store, err: errors.New("disk full")}
	svc := NewBookingService(repo, NewOverlapDetector(repo), &mutexLocker{}, nil)

	_, err := svc.Create(context.Background(), newBooking("10:00", 60))
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)

	repo.err = ErrSlotConflict
	svc = NewBookingService(repo, NewOverlapDetector(repo), &mutexLocker{}, nil)
	_, err = svc.Create(context.Background(), newBooking("10:00", 60))
	assert.ErrorIs(t, err, ErrSlotConflict)
	assert.NotErrorIs(t, err, ErrRepositoryUnavailable)
}

func TestReschedule(t *testing.T) {
	svc, _ := newTestBookingService()
	ctx := context.Background()

	a, err := svc.Create(ctx, newBooking("10:00", 60))
	require.NoError(t, err)
	_, err = svc.Create(ctx, newBooking("12:00", 60))
	require.NoError(t, err)

	// overlapping its own old window is fine
	moved, err := svc.Reschedule(ctx, a.ID, at("10:30"), 60)
	require.NoError(t, err)
	assert.Equal(t, at("11:30"), moved.EndTime)

	_, err = svc.Reschedule(ctx, a.ID, at("11:30"), 60)
	assert.ErrorIs(t, err, ErrSlotConflict)

	stored, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, at("10:30"), stored.StartTime, "a rejected move leaves the booking untouched")

	_, err = svc.Reschedule(ctx, 999, at("08:00"), 60)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = svc.Reschedule(ctx, a.ID, at("08:00"), 5)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestUpdateStatus_Reactivation(t *testing.T) {
	svc, _ := newTestBookingService()
	ctx := context.Background()

	a, err := svc.Create(ctx, newBooking("10:00", 60))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, a.ID, StatusCancelled)
	require.NoError(t, err)

	b, err := svc.Create(ctx, newBooking("10:30", 60))
	require.NoError(t, err, "the cancelled booking no longer blocks")

	_, err = svc.UpdateStatus(ctx, a.ID, StatusConfirmed)
	assert.ErrorIs(t, err, ErrSlotConflict)

	_, err = svc.UpdateStatus(ctx, b.ID, StatusNoShow)
	require.NoError(t, err)

	reactivated, err := svc.UpdateStatus(ctx, a.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, reactivated.Status)
}

func TestUpdateStatus_ActiveTransitions(t *testing.T) {
	svc, _ := newTestBookingService()
	ctx := context.Background()

	a, err := svc.Create(ctx, newBooking("10:00", 60))
	require.NoError(t, err)

	for _, st := range []BookingStatus{StatusDepositPaid, StatusConfirmed, StatusCompleted} {
		got, err := svc.UpdateStatus(ctx, a.ID, st)
		require.NoError(t, err)
		assert.Equal(t, st, got.Status)
	}

	_, err = svc.UpdateStatus(ctx, a.ID, "archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDeleteAndGet(t *testing.T) {
	svc, _ := newTestBookingService()
	ctx := context.Background()

	a, err := svc.Create(ctx, newBooking("10:00", 60))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, a.ID))
	assert.ErrorIs(t, svc.Delete(ctx, a.ID), ErrBookingNotFound)

	_, err = svc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = svc.Get(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(ctx, newBooking("10:00", 60))
	assert.NoError(t, err, "a deleted booking frees its window")
}
