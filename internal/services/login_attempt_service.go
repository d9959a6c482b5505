package services

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/teacup/internal/models"
	pkglogger "github.com/BradenHooton/teacup/pkg/logger"
)

// LoginAttemptRepository defines the persistence contract of the attempt tracker.
// Track must evaluate decide against the aggregate while holding a per-account lock
// and persist the resulting decision atomically.
type LoginAttemptRepository interface {
	Track(ctx context.Context, accountID string, decide models.AttemptDecider) (models.AttemptDecision, error)
}

// LoginAttemptService enforces the lockout policy on top of the attempt counter
type LoginAttemptService struct {
	repo      LoginAttemptRepository
	threshold int
	logger    *slog.Logger
}

// NewLoginAttemptService creates a new LoginAttemptService. A threshold below 1
// falls back to models.DefaultLockoutThreshold.
func NewLoginAttemptService(repo LoginAttemptRepository, threshold int, logger *slog.Logger) *LoginAttemptService {
	if threshold < 1 {
		threshold = models.DefaultLockoutThreshold
	}
	return &LoginAttemptService{
		repo:      repo,
		threshold: threshold,
		logger:    logger,
	}
}

// log returns the request scoped logger when the context carries one
func (s *LoginAttemptService) log(ctx context.Context) *slog.Logger {
	return pkglogger.FromContext(ctx, s.logger)
}

// Threshold returns the number of trailing failures allowed before lockout
func (s *LoginAttemptService) Threshold() int {
	return s.threshold
}

// RecordAttempt applies one login attempt for the account and returns the verdict.
// Any storage failure is reported as models.ErrStorage and nothing is persisted.
func (s *LoginAttemptService) RecordAttempt(ctx context.Context, accountID string, matched bool, ipAddress string) (models.AttemptOutcome, error) {
	decision, err := s.repo.Track(ctx, accountID, decideAttempt(s.threshold, matched, ipAddress))
	if err != nil {
		s.log(ctx).Error("failed to record login attempt",
			slog.String("account_id", accountID),
			slog.Any("error", err))
		return models.OutcomeUnauthorized, models.ErrStorage
	}

	if decision.Outcome == models.OutcomeLocked {
		s.log(ctx).Warn("login attempt rejected: account locked",
			slog.String("account_id", accountID),
			slog.Int("threshold", s.threshold))
	}

	return decision.Outcome, nil
}

// decideAttempt returns the pure lockout rule for one attempt.
//
// No aggregate yet: the counter starts at 0 or 1 and the event is recorded.
// Otherwise a match below the threshold resets the counter and anything else
// increments it. Once the next value would exceed the threshold the attempt is
// rejected as locked without touching the counter or the history, so a correct
// password cannot clear a locked account.
func decideAttempt(threshold int, matched bool, ipAddress string) models.AttemptDecider {
	return func(current *models.LoginAttemptAggregate) models.AttemptDecision {
		verdict := models.OutcomeUnauthorized
		if matched {
			verdict = models.OutcomeAuthorized
		}

		if current == nil {
			unsuccessful := 1
			if matched {
				unsuccessful = 0
			}
			return models.AttemptDecision{
				Outcome:      verdict,
				Unsuccessful: unsuccessful,
				Persist:      true,
				RecordEvent:  true,
				Successful:   matched,
				IPAddress:    ipAddress,
			}
		}

		next := current.Unsuccessful + 1
		if matched && current.Unsuccessful < threshold {
			next = 0
		}

		if next > threshold {
			return models.AttemptDecision{
				Outcome:      models.OutcomeLocked,
				Unsuccessful: current.Unsuccessful,
				IPAddress:    ipAddress,
			}
		}

		return models.AttemptDecision{
			Outcome:      verdict,
			Unsuccessful: next,
			Persist:      true,
			RecordEvent:  true,
			Successful:   matched,
			IPAddress:    ipAddress,
		}
	}
}
