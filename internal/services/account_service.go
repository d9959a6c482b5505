package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/teacup/internal/auth"
	"github.com/BradenHooton/teacup/internal/models"
	pkgauth "github.com/BradenHooton/teacup/pkg/auth"
	pkglogger "github.com/BradenHooton/teacup/pkg/logger"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
}

// AccountSeedRepository defines the role and status rows written for new accounts
type AccountSeedRepository interface {
	AssignRole(ctx context.Context, accountID, role string) error
	RecordStatus(ctx context.Context, accountID, status string) error
	DeleteByAccount(ctx context.Context, accountID string) error
}

// AuditRepository defines the append-only recovery and verification history
type AuditRepository interface {
	RecordRecovery(ctx context.Context, accountID, ipAddress string) (*models.RecoveryRequest, error)
	RecordVerification(ctx context.Context, accountID, ipAddress string) (*models.VerificationRecord, error)
}

// AttemptTracker records login attempts and returns the lockout verdict
type AttemptTracker interface {
	RecordAttempt(ctx context.Context, accountID string, matched bool, ipAddress string) (models.AttemptOutcome, error)
}

// AccountService handles the account lifecycle: sign-up, login, recovery,
// verification and password change
type AccountService struct {
	accounts     AccountRepository
	seeds        AccountSeedRepository
	audit        AuditRepository
	attempts     AttemptTracker
	notifier     Notifier
	timing       *auth.TimingDelay
	logger       *slog.Logger
	auditLogger  *pkglogger.AuditLogger
	hashPassword func(string) (string, error)
}

// NewAccountService creates a new AccountService. A nil notifier disables notices
// and a nil timing delay disables response padding.
func NewAccountService(
	accounts AccountRepository,
	seeds AccountSeedRepository,
	audit AuditRepository,
	attempts AttemptTracker,
	notifier Notifier,
	timing *auth.TimingDelay,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AccountService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &AccountService{
		accounts:     accounts,
		seeds:        seeds,
		audit:        audit,
		attempts:     attempts,
		notifier:     notifier,
		timing:       timing,
		logger:       logger,
		auditLogger:  auditLogger,
		hashPassword: pkgauth.HashPassword,
	}
}

// rollbackTimeout bounds the compensating deletes, which outlive the request context
const rollbackTimeout = 5 * time.Second

// log returns the request scoped logger when the context carries one
func (s *AccountService) log(ctx context.Context) *slog.Logger {
	return pkglogger.FromContext(ctx, s.logger)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// lookup returns the account for email, nil when there is none, or models.ErrStorage
func (s *AccountService) lookup(ctx context.Context, email string) (*models.Account, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		s.log(ctx).Error("failed to get account by email",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return nil, models.ErrStorage
	}
	return account, nil
}

// SignUp creates an account with the default role and the unverified status.
// If seeding fails the account is removed again so no half-created account remains.
func (s *AccountService) SignUp(ctx context.Context, email, firstName, lastName, password string) (*models.Profile, error) {
	email = normalizeEmail(email)

	existing, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.log(ctx).Info("sign-up rejected: email already registered")
		return nil, models.ErrConflict
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		if errors.Is(err, pkgauth.ErrPasswordTooLong) || errors.Is(err, pkgauth.ErrPasswordEmpty) {
			return nil, models.ErrBadRequest
		}
		s.log(ctx).Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrStorage
	}

	account, err := s.accounts.Create(ctx, &models.Account{
		Email:        email,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			// lost a race with a concurrent sign-up for the same email
			return nil, models.ErrConflict
		}
		s.log(ctx).Error("failed to create account", slog.Any("error", err))
		return nil, models.ErrStorage
	}

	if err := s.seed(ctx, account.ID); err != nil {
		s.log(ctx).Error("failed to seed account, rolling back",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		s.rollback(ctx, account.ID)
		return nil, models.ErrStorage
	}

	s.log(ctx).Info("account created", slog.String("account_id", account.ID))
	s.auditLogger.LogAccountAction(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventSignUp,
		AccountID: account.ID,
		Email:     email,
		Success:   true,
	})

	return account.Profile(), nil
}

func (s *AccountService) seed(ctx context.Context, accountID string) error {
	if err := s.seeds.AssignRole(ctx, accountID, models.RoleUser); err != nil {
		return err
	}
	return s.seeds.RecordStatus(ctx, accountID, models.StatusUnverified)
}

// rollback is best effort; failures are logged and never replace the original error.
// It runs detached from ctx so a cancelled or timed out request still removes the account.
func (s *AccountService) rollback(ctx context.Context, accountID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	if err := s.seeds.DeleteByAccount(ctx, accountID); err != nil {
		s.log(ctx).Error("sign-up rollback: failed to delete seeded rows",
			slog.String("account_id", accountID),
			slog.Any("error", err))
	}
	if err := s.accounts.Delete(ctx, accountID); err != nil {
		s.log(ctx).Error("sign-up rollback: failed to delete account",
			slog.String("account_id", accountID),
			slog.Any("error", err))
	}
}

// LogIn checks the credentials and records the attempt. It returns the profile on
// success, models.ErrUnauthorized on bad credentials, models.ErrAccountLocked once
// the lockout threshold is exceeded and models.ErrStorage on persistence failures.
func (s *AccountService) LogIn(ctx context.Context, email, password, ipAddress string) (*models.Profile, error) {
	start := time.Now()
	email = normalizeEmail(email)

	account, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		pkgauth.CompareDummy(password)
		s.timing.WaitFrom(start, false)
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventLoginFailed,
			Email:         email,
			IPAddress:     ipAddress,
			FailureReason: "unknown_email",
		})
		return nil, models.ErrUnauthorized
	}

	matched := pkgauth.PasswordMatches(account.PasswordHash, password)

	outcome, err := s.attempts.RecordAttempt(ctx, account.ID, matched, ipAddress)
	if err != nil {
		return nil, err
	}

	switch outcome {
	case models.OutcomeAuthorized:
		s.timing.WaitFrom(start, true)
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType: pkglogger.EventLoginSuccess,
			AccountID: account.ID,
			IPAddress: ipAddress,
			Success:   true,
		})
		return account.Profile(), nil
	case models.OutcomeLocked:
		s.timing.WaitFrom(start, false)
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventLoginLocked,
			AccountID:     account.ID,
			IPAddress:     ipAddress,
			FailureReason: "account_locked",
		})
		return nil, models.ErrAccountLocked
	default:
		s.timing.WaitFrom(start, false)
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventLoginFailed,
			AccountID:     account.ID,
			IPAddress:     ipAddress,
			FailureReason: "invalid_credentials",
		})
		return nil, models.ErrUnauthorized
	}
}

// Recover records a recovery request. It reports false when no account has the email.
func (s *AccountService) Recover(ctx context.Context, email, ipAddress string) (bool, error) {
	email = normalizeEmail(email)

	account, err := s.lookup(ctx, email)
	if err != nil || account == nil {
		return false, err
	}

	if _, err := s.audit.RecordRecovery(ctx, account.ID, ipAddress); err != nil {
		s.log(ctx).Error("failed to record recovery request",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return false, models.ErrStorage
	}

	if err := s.notifier.SendRecoveryEmail(ctx, account.Email); err != nil {
		s.log(ctx).Warn("failed to send recovery email",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventRecovery,
		AccountID: account.ID,
		IPAddress: ipAddress,
		Success:   true,
	})

	return true, nil
}

// Verify records a verification and moves the account to the verified status.
// It reports false when no account has the email.
func (s *AccountService) Verify(ctx context.Context, email, ipAddress string) (bool, error) {
	email = normalizeEmail(email)

	account, err := s.lookup(ctx, email)
	if err != nil || account == nil {
		return false, err
	}

	if _, err := s.audit.RecordVerification(ctx, account.ID, ipAddress); err != nil {
		s.log(ctx).Error("failed to record verification",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return false, models.ErrStorage
	}

	if err := s.seeds.RecordStatus(ctx, account.ID, models.StatusVerified); err != nil {
		s.log(ctx).Error("failed to record verified status",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return false, models.ErrStorage
	}

	if err := s.notifier.SendVerificationEmail(ctx, account.Email); err != nil {
		s.log(ctx).Warn("failed to send verification email",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventVerification,
		AccountID: account.ID,
		IPAddress: ipAddress,
		Success:   true,
	})

	return true, nil
}

// ChangePassword stores a new password hash when the caller asserts the change is
// authorized. It reports false when the account is unknown or the change is not
// authorized; nothing is written in that case.
func (s *AccountService) ChangePassword(ctx context.Context, email string, authorized bool, password, ipAddress string) (bool, error) {
	email = normalizeEmail(email)

	account, err := s.lookup(ctx, email)
	if err != nil || account == nil {
		return false, err
	}

	if !authorized {
		s.auditLogger.LogAccountAction(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventPasswordChange,
			AccountID:     account.ID,
			IPAddress:     ipAddress,
			FailureReason: "not_authorized",
		})
		return false, nil
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		if errors.Is(err, pkgauth.ErrPasswordTooLong) || errors.Is(err, pkgauth.ErrPasswordEmpty) {
			return false, models.ErrBadRequest
		}
		s.log(ctx).Error("failed to hash password", slog.Any("error", err))
		return false, models.ErrStorage
	}

	if err := s.accounts.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		s.log(ctx).Error("failed to update password",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return false, models.ErrStorage
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventPasswordChange,
		AccountID: account.ID,
		IPAddress: ipAddress,
		Success:   true,
	})

	return true, nil
}
