package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/healing-scheduler/internal/config"
	"github.com/hackgods/healing-scheduler/internal/db"
	"github.com/hackgods/healing-scheduler/internal/locker"
	"github.com/hackgods/healing-scheduler/internal/logger"
	"github.com/hackgods/healing-scheduler/internal/scheduling"
)

// services offered by the seeded practice; 0 would mean "any service"
var services = []int64{1, 2, 3, 4, 5}

var periods = []scheduling.RecurrencePeriod{
	scheduling.PeriodWeekly,
	scheduling.PeriodWeekly,
	scheduling.PeriodBiweekly,
	scheduling.PeriodMonthly,
}

var durations = []int{30, 45, 60, 90}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	if cfg.PostgresDSN == "" {
		fmt.Fprintln(os.Stderr, "POSTGRES_DSN is required")
		os.Exit(1)
	}

	log, err := logger.New(cfg.IsProd(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{})
	cancel()
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool); err != nil {
		log.Fatal("apply schema", zap.Error(err))
	}

	_ = gofakeit.Seed(time.Now().UnixNano())

	staffCount := envInt("SEED_STAFF", 20)
	perStaff := envInt("SEED_BOOKINGS_PER_STAFF", 15)

	if err := seedRules(context.Background(), log, pool, staffCount); err != nil {
		log.Fatal("seed availability rules", zap.Error(err))
	}

	engine := scheduling.NewEngine(
		scheduling.NewPgRuleRepository(pool),
		scheduling.NewPgBookingRepository(pool),
		scheduling.EngineConfig{
			Location:    cfg.Timezone,
			StepMinutes: cfg.SlotStepMinutes,
			MonthlyMode: scheduling.MonthlyMode(cfg.MonthlyMode),
		},
		log.Named("engine"),
	)
	bookings := scheduling.NewBookingService(
		scheduling.NewPgBookingRepository(pool),
		engine.Detector(),
		locker.NewLocal(cfg.LockWait),
		log.Named("bookings"),
	)

	if err := seedBookings(context.Background(), log, engine, bookings, staffCount, perStaff); err != nil {
		log.Fatal("seed bookings", zap.Error(err))
	}

	log.Info("seed complete")
}

// seedRules writes each staff member's weekly template inside one transaction.
func seedRules(ctx context.Context, log *zap.Logger, pool *pgxpool.Pool, staffCount int) error {
	log.Info("seeding availability rules", zap.Int("staff", staffCount))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rules := scheduling.NewRuleService(scheduling.NewPgRuleRepository(tx), log.Named("rules"))
	monday := mondayOf(time.Now())
	created := 0

	for staffID := int64(1); staffID <= int64(staffCount); staffID++ {
		for _, r := range staffTemplate(staffID, monday) {
			if err := rules.Upsert(ctx, &r); err != nil {
				return fmt.Errorf("staff %d: %w", staffID, err)
			}
			created++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Info("availability rules seeded", zap.Int("rules", created))
	return nil
}

// staffTemplate builds three to five working days plus an occasional one-off date.
func staffTemplate(staffID int64, monday time.Time) []scheduling.AvailabilityRule {
	days := gofakeit.Number(3, 5)
	first := gofakeit.Number(1, 6-days+1)

	var out []scheduling.AvailabilityRule
	for i := 0; i < days; i++ {
		open := gofakeit.Number(7, 10)
		closeAt := open + gofakeit.Number(4, 9)
		anchor := monday.AddDate(0, 0, first+i-1)

		var serviceID int64
		if gofakeit.Bool() {
			serviceID = services[gofakeit.Number(0, len(services)-1)]
		}

		out = append(out, scheduling.AvailabilityRule{
			StaffID:         staffID,
			ServiceID:       serviceID,
			Kind:            scheduling.RuleRecurring,
			DayOfWeek:       time.Weekday(first + i),
			Period:          periods[gofakeit.Number(0, len(periods)-1)],
			AnchorDate:      &anchor,
			StartTime:       scheduling.TimeOfDay(open * 60),
			EndTime:         scheduling.TimeOfDay(closeAt * 60),
			AppointmentOnly: gofakeit.Number(1, 10) == 1,
		})
	}

	if gofakeit.Number(1, 4) == 1 {
		saturday := monday.AddDate(0, 0, 7*gofakeit.Number(1, 4)+5)
		out = append(out, scheduling.AvailabilityRule{
			StaffID:   staffID,
			Kind:      scheduling.RuleSpecificDate,
			Date:      &saturday,
			StartTime: scheduling.MustTimeOfDay("10:00"),
			EndTime:   scheduling.MustTimeOfDay("14:00"),
		})
	}
	return out
}

// seedBookings books random open slots over the next four weeks. Conflicts are
// expected when two picks land on the same window and are only counted.
func seedBookings(ctx context.Context, log *zap.Logger, engine *scheduling.Engine, svc *scheduling.BookingService, staffCount, perStaff int) error {
	log.Info("seeding bookings", zap.Int("staff", staffCount), zap.Int("per_staff", perStaff))

	loc := engine.Location()
	from := time.Now().In(loc).AddDate(0, 0, 1)
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 28)

	var created, conflicts int
	for staffID := int64(1); staffID <= int64(staffCount); staffID++ {
		duration := durations[gofakeit.Number(0, len(durations)-1)]
		serviceID := services[gofakeit.Number(0, len(services)-1)]

		slots, err := engine.AvailableSlots(ctx, scheduling.SlotQuery{
			StaffID:         staffID,
			ServiceID:       serviceID,
			From:            from,
			To:              to,
			DurationMinutes: duration,
		})
		if err != nil {
			return fmt.Errorf("slots for staff %d: %w", staffID, err)
		}
		if len(slots) == 0 {
			continue
		}

		for i := 0; i < perStaff; i++ {
			slot := slots[gofakeit.Number(0, len(slots)-1)]
			status := scheduling.StatusPending
			if gofakeit.Bool() {
				status = scheduling.StatusConfirmed
			}

			_, err := svc.Create(ctx, scheduling.NewBooking{
				StaffID:         staffID,
				ServiceID:       serviceID,
				CustomerID:      int64(gofakeit.Number(1000, 9999)),
				StartTime:       slot.StartTime,
				DurationMinutes: duration,
				Status:          status,
			})
			switch {
			case err == nil:
				created++
			case errors.Is(err, scheduling.ErrSlotConflict):
				conflicts++
			default:
				return fmt.Errorf("booking for staff %d: %w", staffID, err)
			}
		}

		log.Debug("staff seeded", zap.Int64("staff_id", staffID), zap.Int("open_slots", len(slots)))
	}

	log.Info("bookings seeded", zap.Int("created", created), zap.Int("conflicts_skipped", conflicts))
	return nil
}

func mondayOf(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
