package scheduling

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// referenceAnchor is the anchor used for biweekly/monthly rules that carry neither an
// AnchorDate nor a CreatedAt timestamp. 1970-01-05 is a Monday.
var referenceAnchor = time.Date(1970, time.January, 5, 0, 0, 0, 0, time.UTC)

// Expander turns availability rules into concrete candidate windows.
// It holds only configuration and is safe for concurrent use.
type Expander struct {
	loc         *time.Location
	monthlyMode MonthlyMode
	logger      *zap.Logger
}

func NewExpander(loc *time.Location, monthlyMode MonthlyMode, logger *zap.Logger) *Expander {
	if loc == nil {
		loc = time.UTC
	}
	if monthlyMode == "" {
		monthlyMode = MonthlyNthWeekday
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{
		loc:         loc,
		monthlyMode: monthlyMode,
		logger:      logger,
	}
}

type slotKey struct {
	staffID   int64
	serviceID int64
	start     int64
}

// Expand slices every rule occurrence within [rangeStart, rangeEnd] (calendar dates, inclusive)
// into windows of durationMinutes, advancing by stepMinutes. The result is sorted by start time
// and holds at most one entry per (staff, service, start).
// Malformed rules are logged and contribute nothing.
func (e *Expander) Expand(rules []AvailabilityRule, rangeStart, rangeEnd time.Time, durationMinutes, stepMinutes int) []CandidateSlot {
	out := make([]CandidateSlot, 0)
	if durationMinutes <= 0 {
		return out
	}
	if stepMinutes <= 0 {
		stepMinutes = DefaultStepMinutes
	}

	from := civilDay(rangeStart.In(e.loc))
	to := civilDay(rangeEnd.In(e.loc))
	if to.Before(from) {
		return out
	}

	seen := make(map[slotKey]int)

	for i := range rules {
		r := &rules[i]
		if err := ValidateRule(r); err != nil {
			e.logger.Warn("skipping malformed availability rule",
				zap.Int64("rule_id", r.ID),
				zap.Int64("staff_id", r.StaffID),
				zap.Error(err),
			)
			continue
		}

		for _, day := range e.ruleDates(r, from, to) {
			out = e.slice(out, seen, r, day, durationMinutes, stepMinutes)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		if out[i].StaffID != out[j].StaffID {
			return out[i].StaffID < out[j].StaffID
		}
		return out[i].ServiceID < out[j].ServiceID
	})

	return out
}

// ruleDates returns the civil dates (UTC midnights) on which r occurs within [from, to].
func (e *Expander) ruleDates(r *AvailabilityRule, from, to time.Time) []time.Time {
	switch r.Kind {
	case RuleSpecificDate:
		d := civilDay(*r.Date)
		if d.Before(from) || d.After(to) {
			return nil
		}
		return []time.Time{d}

	case RuleRecurring:
		last := to
		if r.RecurrenceEndDate != nil {
			if end := civilDay(*r.RecurrenceEndDate); end.Before(last) {
				last = end
			}
		}
		first := from
		if r.AnchorDate != nil {
			if a := civilDay(*r.AnchorDate); a.After(first) {
				first = a
			}
		}

		anchor := firstOccurrence(e.anchorOf(r), r.DayOfWeek)

		var dates []time.Time
		for d := firstOccurrence(first, r.DayOfWeek); !d.After(last); d = d.AddDate(0, 0, 7) {
			if e.periodMatches(r, anchor, d) {
				dates = append(dates, d)
			}
		}
		return dates
	}
	return nil
}

func (e *Expander) anchorOf(r *AvailabilityRule) time.Time {
	if r.AnchorDate != nil {
		return civilDay(*r.AnchorDate)
	}
	if !r.CreatedAt.IsZero() {
		return civilDay(r.CreatedAt.In(e.loc))
	}
	return referenceAnchor
}

// periodMatches decides whether d (same weekday as anchor) is an occurrence of r.
func (e *Expander) periodMatches(r *AvailabilityRule, anchor, d time.Time) bool {
	weeks := daysBetween(anchor, d) / 7

	switch r.Period {
	case PeriodWeekly:
		return true
	case PeriodBiweekly:
		return weeks%2 == 0
	case PeriodMonthly:
		if e.monthlyMode == MonthlyEveryFourWeeks {
			return weeks%4 == 0
		}
		return weekdayPosition(d) == weekdayPosition(anchor)
	}
	return false
}

func (e *Expander) slice(out []CandidateSlot, seen map[slotKey]int, r *AvailabilityRule, day time.Time, durationMinutes, stepMinutes int) []CandidateSlot {
	windowStart := r.StartTime.On(day, e.loc)
	windowEnd := r.EndTime.On(day, e.loc)
	duration := time.Duration(durationMinutes) * time.Minute
	step := time.Duration(stepMinutes) * time.Minute

	for s := windowStart; !s.Add(duration).After(windowEnd); s = s.Add(step) {
		key := slotKey{staffID: r.StaffID, serviceID: r.ServiceID, start: s.Unix()}
		if idx, ok := seen[key]; ok {
			// a self-serve window wins over an appointment-only one
			if !r.AppointmentOnly {
				out[idx].AppointmentOnly = false
			}
			continue
		}

		seen[key] = len(out)
		out = append(out, CandidateSlot{
			StaffID:         r.StaffID,
			ServiceID:       r.ServiceID,
			StartTime:       s,
			EndTime:         s.Add(duration),
			AppointmentOnly: r.AppointmentOnly,
		})
	}
	return out
}

// firstOccurrence returns the first date on or after d that falls on wd.
func firstOccurrence(d time.Time, wd time.Weekday) time.Time {
	offset := (int(wd) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}

// weekdayPosition returns 1 for the first such weekday of the month, 2 for the second, ...
func weekdayPosition(d time.Time) int {
	return (d.Day()-1)/7 + 1
}
