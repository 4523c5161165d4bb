package scheduling

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ValidateRule checks the structural invariants of a rule. It wraps ErrMalformedRule.
func ValidateRule(r *AvailabilityRule) error {
	if !r.StartTime.Valid() || !r.EndTime.Valid() {
		return fmt.Errorf("%w: time of day out of range (%d, %d)", ErrMalformedRule, r.StartTime, r.EndTime)
	}
	if r.EndTime <= r.StartTime {
		return fmt.Errorf("%w: end %s is not after start %s", ErrMalformedRule, r.EndTime, r.StartTime)
	}

	switch r.Kind {
	case RuleSpecificDate:
		if r.Date == nil {
			return fmt.Errorf("%w: specific_date rule without a date", ErrMalformedRule)
		}
	case RuleRecurring:
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			return fmt.Errorf("%w: day of week %d", ErrMalformedRule, r.DayOfWeek)
		}
		switch r.Period {
		case PeriodWeekly, PeriodBiweekly, PeriodMonthly:
		default:
			return fmt.Errorf("%w: unknown recurrence period %q", ErrMalformedRule, r.Period)
		}
		if r.RecurrenceEndDate != nil && r.AnchorDate != nil && civilDay(*r.RecurrenceEndDate).Before(civilDay(*r.AnchorDate)) {
			return fmt.Errorf("%w: recurrence ends before its anchor date", ErrMalformedRule)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedRule, r.Kind)
	}

	return nil
}

// RuleService manages availability rules for staff members.
type RuleService struct {
	repo   RuleRepository
	logger *zap.Logger
}

func NewRuleService(repo RuleRepository, logger *zap.Logger) *RuleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleService{repo: repo, logger: logger}
}

// List returns every rule of a staff member, malformed ones included.
func (s *RuleService) List(ctx context.Context, staffID int64) ([]AvailabilityRule, error) {
	if staffID <= 0 {
		return nil, fmt.Errorf("%w: staffID must be positive", ErrInvalidInput)
	}

	rules, err := s.repo.ListRules(ctx, staffID)
	if err != nil {
		s.logger.Error("list rules failed", zap.Int64("staff_id", staffID), zap.Error(err))
		return nil, fmt.Errorf("%w: list rules: %v", ErrRepositoryUnavailable, err)
	}
	return rules, nil
}

// Upsert validates and stores a rule. Malformed rules are rejected here; expansion only
// has to tolerate rows that were written some other way.
func (s *RuleService) Upsert(ctx context.Context, rule *AvailabilityRule) error {
	if rule.StaffID <= 0 {
		return fmt.Errorf("%w: staffID must be positive", ErrInvalidInput)
	}
	if rule.ServiceID < 0 {
		return fmt.Errorf("%w: serviceID must not be negative", ErrInvalidInput)
	}
	if err := ValidateRule(rule); err != nil {
		s.logger.Warn("rejecting availability rule", zap.Int64("staff_id", rule.StaffID), zap.Error(err))
		return err
	}

	if err := s.repo.UpsertRule(ctx, rule); err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			return err
		}
		s.logger.Error("upsert rule failed", zap.Int64("rule_id", rule.ID), zap.Error(err))
		return fmt.Errorf("%w: upsert rule: %v", ErrRepositoryUnavailable, err)
	}

	s.logger.Info("availability rule stored",
		zap.Int64("rule_id", rule.ID),
		zap.Int64("staff_id", rule.StaffID),
		zap.String("kind", string(rule.Kind)),
	)
	return nil
}

func (s *RuleService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteRule(ctx, id); err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			return err
		}
		s.logger.Error("delete rule failed", zap.Int64("rule_id", id), zap.Error(err))
		return fmt.Errorf("%w: delete rule: %v", ErrRepositoryUnavailable, err)
	}
	s.logger.Info("availability rule deleted", zap.Int64("rule_id", id))
	return nil
}
