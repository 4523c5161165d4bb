package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// pgCodeExclusionViolation is raised by the bookings_no_overlap constraint.
const pgCodeExclusionViolation = "23P01"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var ruleColumns = []string{
	"id", "staff_id", "service_id", "kind", "day_of_week", "recurrence_period",
	"recurrence_end_date", "anchor_date", "specific_date", "start_time", "end_time",
	"appointment_only", "created_at", "updated_at",
}

var bookingColumns = []string{
	"id", "staff_id", "service_id", "customer_id", "start_time", "end_time",
	"duration_minutes", "status", "created_at", "updated_at",
}

// DBTX is the subset of *pgxpool.Pool used by the repositories.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ RuleRepository    = (*PgRuleRepository)(nil)
	_ BookingRepository = (*PgBookingRepository)(nil)
)

type PgRuleRepository struct {
	db DBTX
}

func NewPgRuleRepository(db DBTX) *PgRuleRepository {
	return &PgRuleRepository{db: db}
}

type PgBookingRepository struct {
	db DBTX
}

func NewPgBookingRepository(db DBTX) *PgBookingRepository {
	return &PgBookingRepository{db: db}
}

// Helpers

func scanRule(row pgx.Row) (*AvailabilityRule, error) {
	var r AvailabilityRule
	var dow *int16
	var period *string
	var endDate, anchor, date pgtype.Date
	var start, end pgtype.Time

	err := row.Scan(
		&r.ID,
		&r.StaffID,
		&r.ServiceID,
		&r.Kind,
		&dow,
		&period,
		&endDate,
		&anchor,
		&date,
		&start,
		&end,
		&r.AppointmentOnly,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	if dow != nil {
		r.DayOfWeek = time.Weekday(*dow)
	}
	if period != nil {
		r.Period = RecurrencePeriod(*period)
	}
	r.RecurrenceEndDate = fromPgDate(endDate)
	r.AnchorDate = fromPgDate(anchor)
	r.Date = fromPgDate(date)
	r.StartTime = fromPgTime(start)
	r.EndTime = fromPgTime(end)
	return &r, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking

	err := row.Scan(
		&b.ID,
		&b.StaffID,
		&b.ServiceID,
		&b.CustomerID,
		&b.StartTime,
		&b.EndTime,
		&b.DurationMinutes,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

func toPgDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: civilDay(*t), Valid: true}
}

func fromPgDate(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := civilDay(d.Time)
	return &t
}

func toPgTime(t TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * int64(time.Minute/time.Microsecond), Valid: true}
}

func fromPgTime(t pgtype.Time) TimeOfDay {
	if !t.Valid {
		return 0
	}
	return TimeOfDay(t.Microseconds / int64(time.Minute/time.Microsecond))
}

// mapPgError turns constraint violations into domain errors.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgCodeExclusionViolation {
		return fmt.Errorf("%w: %s", ErrSlotConflict, pgErr.ConstraintName)
	}
	return err
}

// Query builders

func listRulesQuery(staffID int64) (string, []any, error) {
	return psql.Select(ruleColumns...).
		From("availability_rules").
		Where(sq.Eq{"staff_id": staffID}).
		OrderBy("id").
		ToSql()
}

func insertRuleQuery(r *AvailabilityRule) (string, []any, error) {
	dow, period := ruleRecurrence(r)
	return psql.Insert("availability_rules").
		Columns("staff_id", "service_id", "kind", "day_of_week", "recurrence_period",
			"recurrence_end_date", "anchor_date", "specific_date", "start_time", "end_time",
			"appointment_only", "created_at", "updated_at").
		Values(r.StaffID, r.ServiceID, string(r.Kind), dow, period,
			toPgDate(r.RecurrenceEndDate), toPgDate(r.AnchorDate), toPgDate(r.Date),
			toPgTime(r.StartTime), toPgTime(r.EndTime),
			r.AppointmentOnly, sq.Expr("now()"), sq.Expr("now()")).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
}

func updateRuleQuery(r *AvailabilityRule) (string, []any, error) {
	dow, period := ruleRecurrence(r)
	return psql.Update("availability_rules").
		Set("staff_id", r.StaffID).
		Set("service_id", r.ServiceID).
		Set("kind", string(r.Kind)).
		Set("day_of_week", dow).
		Set("recurrence_period", period).
		Set("recurrence_end_date", toPgDate(r.RecurrenceEndDate)).
		Set("anchor_date", toPgDate(r.AnchorDate)).
		Set("specific_date", toPgDate(r.Date)).
		Set("start_time", toPgTime(r.StartTime)).
		Set("end_time", toPgTime(r.EndTime)).
		Set("appointment_only", r.AppointmentOnly).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": r.ID}).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
}

func ruleRecurrence(r *AvailabilityRule) (*int16, *string) {
	if r.Kind != RuleRecurring {
		return nil, nil
	}
	dow := int16(r.DayOfWeek)
	period := string(r.Period)
	return &dow, &period
}

func listActiveBookingsQuery(staffID, excludeID int64) (string, []any, error) {
	inactive := make([]string, len(InactiveStatuses))
	for i, s := range InactiveStatuses {
		inactive[i] = string(s)
	}

	q := psql.Select(bookingColumns...).
		From("bookings").
		Where(sq.Eq{"staff_id": staffID}).
		Where(sq.NotEq{"status": inactive})
	if excludeID != 0 {
		q = q.Where(sq.NotEq{"id": excludeID})
	}
	return q.OrderBy("start_time").ToSql()
}

func insertBookingQuery(b *Booking) (string, []any, error) {
	return psql.Insert("bookings").
		Columns("staff_id", "service_id", "customer_id", "start_time", "end_time",
			"duration_minutes", "status", "created_at", "updated_at").
		Values(b.StaffID, b.ServiceID, b.CustomerID, b.StartTime, endOf(b.StartTime, b.DurationMinutes),
			b.DurationMinutes, string(b.Status), sq.Expr("now()"), sq.Expr("now()")).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
}

func updateBookingQuery(id int64, upd BookingUpdate) (string, []any, error) {
	q := psql.Update("bookings").Set("updated_at", sq.Expr("now()"))

	switch {
	case upd.StartTime != nil && upd.DurationMinutes != nil:
		q = q.Set("start_time", *upd.StartTime).
			Set("duration_minutes", *upd.DurationMinutes).
			Set("end_time", endOf(*upd.StartTime, *upd.DurationMinutes))
	case upd.StartTime != nil:
		q = q.Set("start_time", *upd.StartTime).
			Set("end_time", sq.Expr("?::timestamptz + duration_minutes * interval '1 minute'", *upd.StartTime))
	case upd.DurationMinutes != nil:
		q = q.Set("duration_minutes", *upd.DurationMinutes).
			Set("end_time", sq.Expr("start_time + ? * interval '1 minute'", *upd.DurationMinutes))
	}
	if upd.Status != nil {
		q = q.Set("status", string(*upd.Status))
	}

	return q.Where(sq.Eq{"id": id}).ToSql()
}

// Rule repository

func (r *PgRuleRepository) ListRules(ctx context.Context, staffID int64) ([]AvailabilityRule, error) {
	query, args, err := listRulesQuery(staffID)
	if err != nil {
		return nil, fmt.Errorf("build list rules query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	result := make([]AvailabilityRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		result = append(result, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRuleRepository) UpsertRule(ctx context.Context, rule *AvailabilityRule) error {
	var (
		query string
		args  []any
		err   error
	)
	if rule.ID == 0 {
		query, args, err = insertRuleQuery(rule)
	} else {
		query, args, err = updateRuleQuery(rule)
	}
	if err != nil {
		return fmt.Errorf("build upsert rule query: %w", err)
	}

	err = r.db.QueryRow(ctx, query, args...).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRuleNotFound
		}
		return fmt.Errorf("upsert rule: %w", err)
	}
	return nil
}

func (r *PgRuleRepository) DeleteRule(ctx context.Context, id int64) error {
	query, args, err := psql.Delete("availability_rules").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete rule query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Booking repository

func (r *PgBookingRepository) ListActiveBookings(ctx context.Context, staffID, excludeID int64) ([]Booking, error) {
	query, args, err := listActiveBookingsQuery(staffID, excludeID)
	if err != nil {
		return nil, fmt.Errorf("build list bookings query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}
	defer rows.Close()

	result := make([]Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		result = append(result, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgBookingRepository) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	query, args, err := psql.Select(bookingColumns...).From("bookings").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query: %w", err)
	}
	return scanBooking(r.db.QueryRow(ctx, query, args...))
}

func (r *PgBookingRepository) CreateBooking(ctx context.Context, b *Booking) (int64, error) {
	query, args, err := insertBookingQuery(b)
	if err != nil {
		return 0, fmt.Errorf("build insert booking query: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&id, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return 0, mapPgError(fmt.Errorf("insert booking: %w", err))
	}
	return id, nil
}

func (r *PgBookingRepository) UpdateBooking(ctx context.Context, id int64, upd BookingUpdate) error {
	query, args, err := updateBookingQuery(id, upd)
	if err != nil {
		return fmt.Errorf("build update booking query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return mapPgError(fmt.Errorf("update booking: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *PgBookingRepository) DeleteBooking(ctx context.Context, id int64) error {
	query, args, err := psql.Delete("bookings").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete booking query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}
