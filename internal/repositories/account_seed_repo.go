package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/teacup/internal/database"
	"github.com/BradenHooton/teacup/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountSeedRepository writes the role assignment and status history rows that
// every account gets on sign-up
type AccountSeedRepository struct {
	pool *pgxpool.Pool
}

func NewAccountSeedRepository(db *database.DB) *AccountSeedRepository {
	return &AccountSeedRepository{pool: db.Pool}
}

// AssignRole links the account to a named role
func (r *AccountSeedRepository) AssignRole(ctx context.Context, accountID, role string) error {
	query := `
		INSERT INTO account_role (account_id, role_id)
		SELECT $1, id FROM role WHERE name = $2
	`

	result, err := r.pool.Exec(ctx, query, accountID, role)
	if err != nil {
		return fmt.Errorf("failed to assign role %q: %w", role, database.MapPostgresError(err))
	}

	// The SELECT yields nothing when the role name is unknown
	if result.RowsAffected() == 0 {
		return fmt.Errorf("role %q: %w", role, models.ErrNotFound)
	}

	return nil
}

// RecordStatus appends a status history row
func (r *AccountSeedRepository) RecordStatus(ctx context.Context, accountID, status string) error {
	query := `
		INSERT INTO account_status (account_id, status_id)
		SELECT $1, id FROM status WHERE name = $2
	`

	result, err := r.pool.Exec(ctx, query, accountID, status)
	if err != nil {
		return fmt.Errorf("failed to record status %q: %w", status, database.MapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("status %q: %w", status, models.ErrNotFound)
	}

	return nil
}

// DeleteByAccount removes every seeded row for the account. Used by the sign-up rollback
// before the account row itself is deleted.
func (r *AccountSeedRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM account_status WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to delete status history: %w", err)
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM account_role WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to delete role assignments: %w", err)
	}

	return nil
}
