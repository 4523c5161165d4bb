package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps rules and bookings in process. It implements both RuleRepository and
// BookingRepository and is used for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	rules    map[int64]AvailabilityRule
	bookings map[int64]Booking
	nextRule int64
	nextBook int64
	now      func() time.Time
}

var (
	_ RuleRepository    = (*MemoryStore)(nil)
	_ BookingRepository = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules:    make(map[int64]AvailabilityRule),
		bookings: make(map[int64]Booking),
		now:      time.Now,
	}
}

func (m *MemoryStore) ListRules(ctx context.Context, staffID int64) ([]AvailabilityRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]AvailabilityRule, 0)
	for _, r := range m.rules {
		if r.StaffID == staffID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpsertRule(ctx context.Context, rule *AvailabilityRule) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if rule.ID == 0 {
		m.nextRule++
		rule.ID = m.nextRule
		rule.CreatedAt = now
	} else {
		existing, ok := m.rules[rule.ID]
		if !ok {
			return ErrRuleNotFound
		}
		rule.CreatedAt = existing.CreatedAt
	}
	rule.UpdatedAt = now
	m.rules[rule.ID] = *rule
	return nil
}

func (m *MemoryStore) DeleteRule(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[id]; !ok {
		return ErrRuleNotFound
	}
	delete(m.rules, id)
	return nil
}

func (m *MemoryStore) ListActiveBookings(ctx context.Context, staffID, excludeID int64) ([]Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Booking, 0)
	for _, b := range m.bookings {
		if b.StaffID != staffID || !b.IsActive() {
			continue
		}
		if excludeID != 0 && b.ID == excludeID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *MemoryStore) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (m *MemoryStore) CreateBooking(ctx context.Context, b *Booking) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextBook++
	now := m.now()
	stored := *b
	stored.ID = m.nextBook
	stored.EndTime = endOf(stored.StartTime, stored.DurationMinutes)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.bookings[stored.ID] = stored

	b.CreatedAt = now
	b.UpdatedAt = now
	return stored.ID, nil
}

func (m *MemoryStore) UpdateBooking(ctx context.Context, id int64, upd BookingUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return ErrBookingNotFound
	}
	if upd.StartTime != nil {
		b.StartTime = *upd.StartTime
	}
	if upd.DurationMinutes != nil {
		b.DurationMinutes = *upd.DurationMinutes
	}
	if upd.Status != nil {
		b.Status = *upd.Status
	}
	b.EndTime = endOf(b.StartTime, b.DurationMinutes)
	b.UpdatedAt = m.now()
	m.bookings[id] = b
	return nil
}

func (m *MemoryStore) DeleteBooking(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bookings[id]; !ok {
		return ErrBookingNotFound
	}
	delete(m.bookings, id)
	return nil
}

// Bookings returns every stored booking regardless of status, ordered by ID.
func (m *MemoryStore) Bookings() []Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Booking, 0, len(m.bookings))
	for _, b := range m.bookings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
