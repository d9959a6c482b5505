package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/BradenHooton/teacup/internal/models"
	pkgauth "github.com/BradenHooton/teacup/pkg/auth"
	pkglogger "github.com/BradenHooton/teacup/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountService_SignUp_Success(t *testing.T) {
	accounts := newMemoryAccountRepository()
	var roles, statuses []string
	seeds := &MockAccountSeedRepository{
		AssignRoleFunc: func(ctx context.Context, accountID, role string) error {
			roles = append(roles, role)
			return nil
		},
		RecordStatusFunc: func(ctx context.Context, accountID, status string) error {
			statuses = append(statuses, status)
			return nil
		},
	}
	svc := newTestAccountService(accounts, seeds, &MockAuditRepository{}, &MockAttemptTracker{}, nil)

	profile, err := svc.SignUp(context.Background(), "a@b.com", "Ada", "Byron", "pw")

	require.NoError(t, err)
	assert.Equal(t, "a@b.com", profile.Email)
	assert.Equal(t, "Ada", profile.FirstName)
	assert.Equal(t, "Byron", profile.LastName)
	assert.NotEmpty(t, profile.ID)
	assert.Equal(t, []string{models.RoleUser}, roles)
	assert.Equal(t, []string{models.StatusUnverified}, statuses)

	stored, err := accounts.GetByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.NotEqual(t, "pw", stored.PasswordHash)
	assert.True(t, pkgauth.PasswordMatches(stored.PasswordHash, "pw"))
}

func TestAccountService_SignUp_NormalizesEmail(t *testing.T) {
	accounts := newMemoryAccountRepository()
	svc := newTestAccountService(accounts, &MockAccountSeedRepository{}, &MockAuditRepository{}, &MockAttemptTracker{}, nil)

	profile, err := svc.SignUp(context.Background(), "  A@B.com ", "Ada", "Byron", "pw")

	require.NoError(t, err)
	assert.Equal(t, "a@b.com", profile.Email)
}

func TestAccountService_SignUp_DuplicateEmail(t *testing.T) {
	accounts := newMemoryAccountRepository()
	svc := newTestAccountService(accounts, &MockAccountSeedRepository{}, &MockAuditRepository{}, &MockAttemptTracker{}, nil)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "a@b.com", "Ada", "Byron", "pw")
	require.NoError(t, err)

	_, err = svc.SignUp(ctx, "a@b.com", "Other", "Person", "pw2")

	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Equal(t, 1, accounts.count())
}

func TestAccountService_SignUp_CreateRaceConflict(t *testing.T) {
	accounts := &MockAccountRepository{
		CreateFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
			return nil, models.ErrConflict
		},
	}
	svc := newTestAccountService(accounts, &MockAccountSeedRepository{}, &MockAuditRepository{}, &MockAttemptTracker{}, nil)

	_, err := svc.SignUp(context.Background(), "a@b.com", "Ada", "Byron", "pw")

	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAccountService_SignUp_SeedFailureRollsBack(t *testing.T) {
	accounts := newMemoryAccountRepository()
	seedsCleared := false
	seeds := &MockAccountSeedRepository{
		RecordStatusFunc: func(ctx context.Context, accountID, status string) error {
			return errors.New("status table missing")
		},
		DeleteByAccountFunc: func(ctx context.Context, accountID string) error {
			seedsCleared = true
			return nil
		},
	}
	svc := newTestAccountService(accounts, seeds, &MockAuditRepository{}, &MockAttemptTracker{}, nil)

	_, err := svc.SignUp(context.Background(), "a@b.com", "Ada", "Byron", "pw")

	assert.ErrorIs(t, err, models.ErrStorage)
	assert.True(t, seedsCleared)
	assert.Zero(t, accounts.count())
}

func TestAccountService_SignUp_RollbackSurvivesCancelledRequest(t *testing.T) {
	accounts := newMemoryAccountRepository()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rollbackCtxErr error
	seeds := &MockAccountSeedRepository{
		RecordStatusFunc: func(ctx context.Context, accountID, status string) error {
			cancel()
			return context.Canceled
		},
		DeleteByAccountFunc: func(ctx context.Context, accountID string) error {
			rollbackCtxErr = ctx.Err()
			return nil
		},
	}
	svc := newTestAccountService(accounts, seeds, &MockAuditRepository{}, &MockAttemptTracker{}, nil)

	_, err := svc.SignUp(ctx, "a@b.com", "Ada", "Byron", "pw")

	assert.ErrorIs(t, err, models.ErrStorage)
	assert.NoError(t, rollbackCtxErr)
	assert.Zero(t, accounts.count())
}

func TestAccountService_LogsWithRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	requestLogger := slog.New(slog.NewJSONHandler(&buf, nil)).With(slog.String("request_id", "req-42"))
	ctx := pkglogger.WithContext(context.Background(), requestLogger)
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return nil, errors.New("pool closed")
		},
	}
	svc := newTestAccountService(accounts, &MockAccountSeedRepository{}, &MockAuditRepository{}, &MockAttemptTracker{}, nil)

	_, err := svc.Recover(ctx, "a@b.com", "1.1.1.1")

	require.ErrorIs(t, err, models.ErrStorage)
	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
	assert.Contains(t, buf.String(), "failed to get account by email")
}

func TestAccountService_SignUp_RollbackFailureKeepsOriginalError(t *testing.T) {
	accounts := &MockAccountRepository{
		CreateFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
			account.ID = "acc-1"
			return account, nil
		},
		DeleteFunc: func(ctx context.Context, id string) error {
			return errors.New("delete failed")
		},
	}
	seeds := &MockAccountSeedRepository{
		AssignRoleFunc: func(ctx context.Context, accountID, role string) error {
			return models.ErrNotFound
		},
	}
	svc := newTestAccountService(accounts, seeds, &MockAuditRepository{}, &MockAttemptTracker{}, nil)

	_, err := svc.SignUp(context.Background(), "a@b.com", "Ada", "Byron", "pw")

	assert.ErrorIs(t, err, models.ErrStorage)
}

func TestAccountService_SignUp_PasswordTooLong(t *testing.T) {
	accounts := newMemoryAccountRepository()
	svc := newTestAccountService(accounts, &MockAccountSeedRepository{}, &MockAuditRepository{}, &MockAttemptTracker{}, nil)

	_, err := svc.SignUp(context.Background(), "a@b.com", "Ada", "Byron", strings.Repeat("x", 73))

	assert.ErrorIs(t, err, models.ErrBadRequest)
	assert.Zero(t, accounts.count())
}

func TestAccountService_SignUp_LookupFailure(t *testing.T) {
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return nil, errors.New("pool closed")
		},
	}
	svc := newTestAccountService(accounts, &MockAccountSeedRepository{}, &MockAuditRepository{}, &MockAttemptTracker{}, nil)

	_, err := svc.SignUp(context.Background(), "a@b.com", "Ada", "Byron", "pw")

	assert.ErrorIs(t, err, models.ErrStorage)
}

func TestAccountService_LogIn_Success(t *testing.T) {
	account := NewTestAccount("acc-1", "a@b.com", "pw")
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
	}
	var gotIP string
	var gotMatched bool
	tracker := &MockAttemptTracker{
		RecordAttemptFunc: func(ctx context.Context, accountID string, matched bool, ipAddress string) (models.AttemptOutcome, error) {
			gotIP, gotMatched = ipAddress, matched
			return models.OutcomeAuthorized, nil
		},
	}
	svc := newTestAccountService(accounts, &MockAccountSeedRepository{}, &MockAuditRepository{}, tracker, nil)

	profile, err := svc.LogIn(context.Background(), "a@b.com", "pw", "9.9.9.9")

	require.NoError(t, err)
	assert.Equal(t, "acc-1", profile.ID)
	assert.Equal(t, "9.9.9.9", gotIP)
	assert.True(t, gotMatched)
}

func TestAccountService_LogIn_UnknownEmail(t *testing.T) {
	called := false
	tracker := &MockAttemptTracker{
		RecordAttemptFunc: func(ctx context.Context, accountID string, matched bool, ipAddress string) (models.AttemptOutcome, error) {
			called = true
			return models.OutcomeUnauthorized, nil
		},
	}
	svc := newTestAccountService(&MockAccountRepository{}, &MockAccountSeedRepository{}, &MockAuditRepository{}, tracker, nil)

	_, err := svc.LogIn(context.Background(), "nobody@b.com", "pw", "9.9.9.9")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.False(t, called)
}

func TestAccountService_LogIn_WrongPassword(t *testing.T) {
	account := NewTestAccount("acc-1", "a@b.com", "pw")
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
	}
	svc := newTestAccountService(accounts, &MockAccountSeedRepository{}, &MockAuditRepository{}, &MockAttemptTracker{}, nil)

	_, err := svc.LogIn(context.Background(), "a@b.com", "wrong", "9.9.9.9")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAccountService_LogIn_TrackerStorageFailure(t *testing.T) {
	account := NewTestAccount("acc-1", "a@b.com", "pw")
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
	}
	tracker := &MockAttemptTracker{
		RecordAttemptFunc: func(ctx context.Context, accountID string, matched bool, ipAddress string) (models.AttemptOutcome, error) {
			return models.OutcomeUnauthorized, models.ErrStorage
		},
	}
	svc := newTestAccountService(accounts, &MockAccountSeedRepository{}, &MockAuditRepository{}, tracker, nil)

	_, err := svc.LogIn(context.Background(), "a@b.com", "pw", "9.9.9.9")

	assert.ErrorIs(t, err, models.ErrStorage)
}

func TestAccountService_LogIn_FiveFailuresThenCorrectIsLocked(t *testing.T) {
	accounts := newMemoryAccountRepository()
	attempts := NewLoginAttemptService(newMemoryAttemptRepository(), 5, testLogger())
	svc := newTestAccountService(accounts, &MockAccountSeedRepository{}, &MockAuditRepository{}, attempts, nil)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "a@b.com", "Ada", "Byron", "pw")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.LogIn(ctx, "a@b.com", "wrong", "1.1.1.1")
		require.ErrorIs(t, err, models.ErrUnauthorized)
	}

	_, err = svc.LogIn(ctx, "a@b.com", "pw", "1.1.1.1")

	assert.ErrorIs(t, err, models.ErrAccountLocked)
}

func TestAccountService_Recover(t *testing.T) {
	account := NewTestAccount("acc-1", "a@b.com", "pw")
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			if email == account.Email {
				return account, nil
			}
			return nil, models.ErrNotFound
		},
	}
	recorded := 0
	audit := &MockAuditRepository{
		RecordRecoveryFunc: func(ctx context.Context, accountID, ipAddress string) (*models.RecoveryRequest, error) {
			recorded++
			assert.Equal(t, "acc-1", accountID)
			assert.Equal(t, "2.2.2.2", ipAddress)
			return &models.RecoveryRequest{ID: 1, AccountID: accountID, IPAddress: ipAddress}, nil
		},
	}
	sent := ""
	notifier := &MockNotifier{
		SendRecoveryEmailFunc: func(ctx context.Context, email string) error {
			sent = email
			return errors.New("ses throttled")
		},
	}
	svc := newTestAccountService(accounts, &MockAccountSeedRepository{}, audit, &MockAttemptTracker{}, notifier)
	ctx := context.Background()

	found, err := svc.Recover(ctx, "a@b.com", "2.2.2.2")
	require.NoError(t, err)
	assert.True(t, found, "notifier failure must not fail the request")
	assert.Equal(t, "a@b.com", sent)

	found, err = svc.Recover(ctx, "nobody@b.com", "2.2.2.2")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, recorded)
}

func TestAccountService_Recover_StorageFailure(t *testing.T) {
	account := NewTestAccount("acc-1", "a@b.com", "pw")
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
	}
	audit := &MockAuditRepository{
		RecordRecoveryFunc: func(ctx context.Context, accountID, ipAddress string) (*models.RecoveryRequest, error) {
			return nil, errors.New("disk full")
		},
	}
	svc := newTestAccountService(accounts, &MockAccountSeedRepository{}, audit, &MockAttemptTracker{}, nil)

	_, err := svc.Recover(context.Background(), "a@b.com", "2.2.2.2")

	assert.ErrorIs(t, err, models.ErrStorage)
}

func TestAccountService_Verify(t *testing.T) {
	account := NewTestAccount("acc-1", "a@b.com", "pw")
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			if email == account.Email {
				return account, nil
			}
			return nil, models.ErrNotFound
		},
	}
	var statuses []string
	seeds := &MockAccountSeedRepository{
		RecordStatusFunc: func(ctx context.Context, accountID, status string) error {
			statuses = append(statuses, status)
			return nil
		},
	}
	verified := 0
	audit := &MockAuditRepository{
		RecordVerificationFunc: func(ctx context.Context, accountID, ipAddress string) (*models.VerificationRecord, error) {
			verified++
			return &models.VerificationRecord{AccountID: accountID, IPAddress: ipAddress}, nil
		},
	}
	svc := newTestAccountService(accounts, seeds, audit, &MockAttemptTracker{}, nil)
	ctx := context.Background()

	found, err := svc.Verify(ctx, "a@b.com", "3.3.3.3")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{models.StatusVerified}, statuses)

	found, err = svc.Verify(ctx, "nobody@b.com", "3.3.3.3")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, verified)
}

func TestAccountService_ChangePassword(t *testing.T) {
	accounts := newMemoryAccountRepository()
	svc := newTestAccountService(accounts, &MockAccountSeedRepository{}, &MockAuditRepository{}, &MockAttemptTracker{}, nil)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "a@b.com", "Ada", "Byron", "old")
	require.NoError(t, err)

	changed, err := svc.ChangePassword(ctx, "a@b.com", false, "new", "4.4.4.4")
	require.NoError(t, err)
	assert.False(t, changed)
	stored, _ := accounts.GetByEmail(ctx, "a@b.com")
	assert.True(t, pkgauth.PasswordMatches(stored.PasswordHash, "old"))

	changed, err = svc.ChangePassword(ctx, "nobody@b.com", true, "new", "4.4.4.4")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = svc.ChangePassword(ctx, "a@b.com", true, "new", "4.4.4.4")
	require.NoError(t, err)
	assert.True(t, changed)
	stored, _ = accounts.GetByEmail(ctx, "a@b.com")
	assert.True(t, pkgauth.PasswordMatches(stored.PasswordHash, "new"))
	assert.False(t, pkgauth.PasswordMatches(stored.PasswordHash, "old"))
}

func TestAccountService_ChangePassword_UpdateFailure(t *testing.T) {
	account := NewTestAccount("acc-1", "a@b.com", "pw")
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
		UpdatePasswordHashFunc: func(ctx context.Context, id, passwordHash string) error {
			return errors.New("timeout")
		},
	}
	svc := newTestAccountService(accounts, &MockAccountSeedRepository{}, &MockAuditRepository{}, &MockAttemptTracker{}, nil)

	_, err := svc.ChangePassword(context.Background(), "a@b.com", true, "new", "4.4.4.4")

	assert.ErrorIs(t, err, models.ErrStorage)
}
