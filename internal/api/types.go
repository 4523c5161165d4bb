package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/hackgods/healing-scheduler/internal/scheduling"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Slots

type SlotsResponse struct {
	Date            string   `json:"date"`
	StaffID         int64    `json:"staff_id"`
	ServiceID       int64    `json:"service_id"`
	DurationMinutes int      `json:"duration_minutes"`
	Slots           []string `json:"slots"`
}

type SlotRangeResponse struct {
	From            string         `json:"from"`
	To              string         `json:"to"`
	StaffID         int64          `json:"staff_id"`
	ServiceID       int64          `json:"service_id"`
	DurationMinutes int            `json:"duration_minutes"`
	Slots           []SlotResponse `json:"slots"`
}

type SlotResponse struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	AppointmentOnly bool      `json:"appointment_only,omitempty"`
}

type AvailabilityResponse struct {
	StaffID         int64  `json:"staff_id"`
	Start           string `json:"start"`
	DurationMinutes int    `json:"duration_minutes"`
	Available       bool   `json:"available"`
}

// Bookings

type CreateBookingRequest struct {
	StaffID         int64  `json:"staff_id"`
	ServiceID       int64  `json:"service_id"`
	CustomerID      int64  `json:"customer_id"`
	Start           string `json:"start"` // YYYY-MM-DD HH:MM
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status,omitempty"`
}

type RescheduleRequest struct {
	Start           string `json:"start"`
	DurationMinutes int    `json:"duration_minutes"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type ValidateBookingRequest struct {
	BookingID int64  `json:"booking_id"`
	ServiceID int64  `json:"service_id"`
	StaffID   int64  `json:"staff_id"`
	Start     string `json:"start"`
}

type ValidationResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

type BookingResponse struct {
	ID              int64     `json:"id"`
	StaffID         int64     `json:"staff_id"`
	ServiceID       int64     `json:"service_id"`
	CustomerID      int64     `json:"customer_id"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toBookingResponse(b *scheduling.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		StaffID:         b.StaffID,
		ServiceID:       b.ServiceID,
		CustomerID:      b.CustomerID,
		Start:           b.StartTime,
		End:             b.EndTime,
		DurationMinutes: b.DurationMinutes,
		Status:          string(b.Status),
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// Rules

// weekdayField accepts either a number (0 = Sunday) or a weekday name.
type weekdayField string

func (w *weekdayField) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*w = weekdayField(strconv.Itoa(n))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("day_of_week must be a number or a weekday name")
	}
	*w = weekdayField(s)
	return nil
}

type RuleRequest struct {
	ID                int64         `json:"id,omitempty"`
	ServiceID         int64         `json:"service_id"`
	Kind              string        `json:"kind"`
	DayOfWeek         *weekdayField `json:"day_of_week,omitempty"`
	Period            string        `json:"recurrence_period,omitempty"`
	RecurrenceEndDate string        `json:"recurrence_end_date,omitempty"`
	AnchorDate        string        `json:"anchor_date,omitempty"`
	Date              string        `json:"specific_date,omitempty"`
	StartTime         string        `json:"start_time"`
	EndTime           string        `json:"end_time"`
	AppointmentOnly   bool          `json:"appointment_only"`
}

// toRule converts the request into a rule for staffID. Dates are parsed in loc.
func (req RuleRequest) toRule(staffID int64, loc *time.Location) (*scheduling.AvailabilityRule, error) {
	start, err := scheduling.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := scheduling.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return nil, err
	}

	r := &scheduling.AvailabilityRule{
		ID:              req.ID,
		StaffID:         staffID,
		ServiceID:       req.ServiceID,
		Kind:            scheduling.RuleKind(req.Kind),
		Period:          scheduling.RecurrencePeriod(req.Period),
		StartTime:       start,
		EndTime:         end,
		AppointmentOnly: req.AppointmentOnly,
	}

	if req.DayOfWeek != nil {
		wd, err := scheduling.ParseWeekday(string(*req.DayOfWeek))
		if err != nil {
			return nil, err
		}
		r.DayOfWeek = wd
	} else if r.Kind == scheduling.RuleRecurring {
		return nil, fmt.Errorf("%w: day_of_week is required for recurring rules", scheduling.ErrInvalidInput)
	}

	if r.RecurrenceEndDate, err = optionalDate(req.RecurrenceEndDate, loc); err != nil {
		return nil, err
	}
	if r.AnchorDate, err = optionalDate(req.AnchorDate, loc); err != nil {
		return nil, err
	}
	if r.Date, err = optionalDate(req.Date, loc); err != nil {
		return nil, err
	}
	return r, nil
}

func optionalDate(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := scheduling.ParseDate(s, loc)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

type RuleResponse struct {
	ID                int64   `json:"id"`
	StaffID           int64   `json:"staff_id"`
	ServiceID         int64   `json:"service_id"`
	Kind              string  `json:"kind"`
	DayOfWeek         *int    `json:"day_of_week,omitempty"`
	DayName           string  `json:"day_name,omitempty"`
	Period            string  `json:"recurrence_period,omitempty"`
	RecurrenceEndDate *string `json:"recurrence_end_date,omitempty"`
	AnchorDate        *string `json:"anchor_date,omitempty"`
	Date              *string `json:"specific_date,omitempty"`
	StartTime         string  `json:"start_time"`
	EndTime           string  `json:"end_time"`
	AppointmentOnly   bool    `json:"appointment_only"`
}

func toRuleResponse(r *scheduling.AvailabilityRule) RuleResponse {
	resp := RuleResponse{
		ID:                r.ID,
		StaffID:           r.StaffID,
		ServiceID:         r.ServiceID,
		Kind:              string(r.Kind),
		Period:            string(r.Period),
		RecurrenceEndDate: formatDate(r.RecurrenceEndDate),
		AnchorDate:        formatDate(r.AnchorDate),
		Date:              formatDate(r.Date),
		StartTime:         r.StartTime.String(),
		EndTime:           r.EndTime.String(),
		AppointmentOnly:   r.AppointmentOnly,
	}
	if r.Kind == scheduling.RuleRecurring {
		dow := int(r.DayOfWeek)
		resp.DayOfWeek = &dow
		resp.DayName = r.DayOfWeek.String()
	}
	return resp
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(scheduling.DateFormat)
	return &s
}
