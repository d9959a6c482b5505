package services

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/BradenHooton/teacup/internal/models"
	pkgauth "github.com/BradenHooton/teacup/pkg/auth"
	pkglogger "github.com/BradenHooton/teacup/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByEmailFunc         func(ctx context.Context, email string) (*models.Account, error)
	CreateFunc             func(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdatePasswordHashFunc func(ctx context.Context, id, passwordHash string) error
	DeleteFunc             func(ctx context.Context, id string) error
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return nil, models.ErrStorage
}

func (m *MockAccountRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordHashFunc != nil {
		return m.UpdatePasswordHashFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *MockAccountRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockAccountSeedRepository implements AccountSeedRepository for testing
type MockAccountSeedRepository struct {
	AssignRoleFunc      func(ctx context.Context, accountID, role string) error
	RecordStatusFunc    func(ctx context.Context, accountID, status string) error
	DeleteByAccountFunc func(ctx context.Context, accountID string) error
}

func (m *MockAccountSeedRepository) AssignRole(ctx context.Context, accountID, role string) error {
	if m.AssignRoleFunc != nil {
		return m.AssignRoleFunc(ctx, accountID, role)
	}
	return nil
}

func (m *MockAccountSeedRepository) RecordStatus(ctx context.Context, accountID, status string) error {
	if m.RecordStatusFunc != nil {
		return m.RecordStatusFunc(ctx, accountID, status)
	}
	return nil
}

func (m *MockAccountSeedRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	if m.DeleteByAccountFunc != nil {
		return m.DeleteByAccountFunc(ctx, accountID)
	}
	return nil
}

// MockAuditRepository implements AuditRepository for testing
type MockAuditRepository struct {
	RecordRecoveryFunc     func(ctx context.Context, accountID, ipAddress string) (*models.RecoveryRequest, error)
	RecordVerificationFunc func(ctx context.Context, accountID, ipAddress string) (*models.VerificationRecord, error)
}

func (m *MockAuditRepository) RecordRecovery(ctx context.Context, accountID, ipAddress string) (*models.RecoveryRequest, error) {
	if m.RecordRecoveryFunc != nil {
		return m.RecordRecoveryFunc(ctx, accountID, ipAddress)
	}
	return &models.RecoveryRequest{AccountID: accountID, IPAddress: ipAddress}, nil
}

func (m *MockAuditRepository) RecordVerification(ctx context.Context, accountID, ipAddress string) (*models.VerificationRecord, error) {
	if m.RecordVerificationFunc != nil {
		return m.RecordVerificationFunc(ctx, accountID, ipAddress)
	}
	return &models.VerificationRecord{AccountID: accountID, IPAddress: ipAddress}, nil
}

// MockAttemptTracker implements AttemptTracker for testing
type MockAttemptTracker struct {
	RecordAttemptFunc func(ctx context.Context, accountID string, matched bool, ipAddress string) (models.AttemptOutcome, error)
}

func (m *MockAttemptTracker) RecordAttempt(ctx context.Context, accountID string, matched bool, ipAddress string) (models.AttemptOutcome, error) {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, accountID, matched, ipAddress)
	}
	if matched {
		return models.OutcomeAuthorized, nil
	}
	return models.OutcomeUnauthorized, nil
}

// MockNotifier implements Notifier for testing
type MockNotifier struct {
	SendRecoveryEmailFunc     func(ctx context.Context, email string) error
	SendVerificationEmailFunc func(ctx context.Context, email string) error
}

func (m *MockNotifier) SendRecoveryEmail(ctx context.Context, email string) error {
	if m.SendRecoveryEmailFunc != nil {
		return m.SendRecoveryEmailFunc(ctx, email)
	}
	return nil
}

func (m *MockNotifier) SendVerificationEmail(ctx context.Context, email string) error {
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email)
	}
	return nil
}

// memoryAttemptRepository is an in-memory LoginAttemptRepository. A single mutex
// stands in for the row lock, and a failing Track leaves the state untouched.
type memoryAttemptRepository struct {
	mu         sync.Mutex
	nextID     int64
	aggregates map[string]*models.LoginAttemptAggregate
	events     map[string][]models.LoginAttemptEvent
	failWith   error
}

func newMemoryAttemptRepository() *memoryAttemptRepository {
	return &memoryAttemptRepository{
		aggregates: make(map[string]*models.LoginAttemptAggregate),
		events:     make(map[string][]models.LoginAttemptEvent),
	}
}

func (r *memoryAttemptRepository) Track(_ context.Context, accountID string, decide models.AttemptDecider) (models.AttemptDecision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failWith != nil {
		return models.AttemptDecision{}, r.failWith
	}

	current := r.aggregates[accountID]
	var snapshot *models.LoginAttemptAggregate
	if current != nil {
		copied := *current
		snapshot = &copied
	}

	decision := decide(snapshot)

	if current == nil {
		r.nextID++
		current = &models.LoginAttemptAggregate{ID: r.nextID, AccountID: accountID}
		r.aggregates[accountID] = current
	}
	if decision.Persist {
		current.Unsuccessful = decision.Unsuccessful
	}
	if decision.RecordEvent {
		r.events[accountID] = append(r.events[accountID], models.LoginAttemptEvent{
			AggregateID: current.ID,
			IPAddress:   decision.IPAddress,
			Successful:  decision.Successful,
		})
	}

	return decision, nil
}

func (r *memoryAttemptRepository) unsuccessful(accountID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agg, ok := r.aggregates[accountID]
	if !ok {
		return 0, false
	}
	return agg.Unsuccessful, true
}

func (r *memoryAttemptRepository) eventCount(accountID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events[accountID])
}

// memoryAccountRepository is an in-memory AccountRepository keyed by email
type memoryAccountRepository struct {
	mu       sync.Mutex
	nextID   int
	accounts map[string]*models.Account
}

func newMemoryAccountRepository() *memoryAccountRepository {
	return &memoryAccountRepository{accounts: make(map[string]*models.Account)}
}

func (r *memoryAccountRepository) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *memoryAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.Email]; ok {
		return nil, models.ErrConflict
	}
	r.nextID++
	created := *account
	created.ID = "account-" + strconv.Itoa(r.nextID)
	r.accounts[created.Email] = &created
	copied := created
	return &copied, nil
}

func (r *memoryAccountRepository) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.ID == id {
			account.PasswordHash = passwordHash
			return nil
		}
	}
	return models.ErrNotFound
}

func (r *memoryAccountRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for email, account := range r.accounts {
		if account.ID == id {
			delete(r.accounts, email)
			return nil
		}
	}
	return models.ErrNotFound
}

func (r *memoryAccountRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

// NewTestAccount creates an account whose hash matches password
func NewTestAccount(id, email, password string) *models.Account {
	hash, _ := pkgauth.HashPasswordWithCost(password, bcrypt.MinCost)
	return &models.Account{
		ID:           id,
		Email:        email,
		FirstName:    "Test",
		LastName:     "Account",
		PasswordHash: hash,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastHash(password string) (string, error) {
	return pkgauth.HashPasswordWithCost(password, bcrypt.MinCost)
}

// newTestAccountService wires an AccountService with fast hashing and no timing delay
func newTestAccountService(accounts AccountRepository, seeds AccountSeedRepository, audit AuditRepository, attempts AttemptTracker, notifier Notifier) *AccountService {
	logger := testLogger()
	svc := NewAccountService(accounts, seeds, audit, attempts, notifier, nil, logger, pkglogger.NewAuditLogger(logger))
	svc.hashPassword = fastHash
	return svc
}
