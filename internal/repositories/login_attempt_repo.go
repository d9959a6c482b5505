package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/teacup/internal/database"
	"github.com/BradenHooton/teacup/internal/models"
	"github.com/jackc/pgx/v5"
)

// LoginAttemptRepository persists the per-account attempt counter and its event history
type LoginAttemptRepository struct {
	db *database.DB
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

const aggregateColumns = `id, account_id, unsuccessful`

func scanAggregate(scanner rowScanner) (*models.LoginAttemptAggregate, error) {
	var agg models.LoginAttemptAggregate
	if err := scanner.Scan(&agg.ID, &agg.AccountID, &agg.Unsuccessful); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &agg, nil
}

// Track applies one login attempt for the account. The aggregate row is locked for the
// whole transaction, so concurrent attempts for the same account are serialized and
// the counter write and the event append commit together or not at all.
func (r *LoginAttemptRepository) Track(ctx context.Context, accountID string, decide models.AttemptDecider) (models.AttemptDecision, error) {
	var decision models.AttemptDecision

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		agg, err := lockAggregate(ctx, tx, accountID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}

		if agg == nil {
			decision = decide(nil)
			agg, err = insertAggregate(ctx, tx, accountID, decision.Unsuccessful)
			switch {
			case err == nil:
				// freshly created with the decided counter
			case errors.Is(err, models.ErrNotFound):
				// Lost the race for the first attempt; decide again against the winner's row
				agg, err = lockAggregate(ctx, tx, accountID)
				if err != nil {
					return err
				}
				decision = decide(agg)
				return applyDecision(ctx, tx, agg, decision)
			default:
				return err
			}

			if decision.RecordEvent {
				return insertEvent(ctx, tx, agg.ID, decision)
			}
			return nil
		}

		decision = decide(agg)
		return applyDecision(ctx, tx, agg, decision)
	})
	if err != nil {
		return models.AttemptDecision{}, fmt.Errorf("failed to track login attempt: %w", err)
	}

	return decision, nil
}

func lockAggregate(ctx context.Context, tx pgx.Tx, accountID string) (*models.LoginAttemptAggregate, error) {
	query := `SELECT ` + aggregateColumns + ` FROM login_attempt_aggregate WHERE account_id = $1 FOR UPDATE`
	return scanAggregate(tx.QueryRow(ctx, query, accountID))
}

// insertAggregate returns models.ErrNotFound when another transaction created the row first
func insertAggregate(ctx context.Context, tx pgx.Tx, accountID string, unsuccessful int) (*models.LoginAttemptAggregate, error) {
	query := `
		INSERT INTO login_attempt_aggregate (account_id, unsuccessful)
		VALUES ($1, $2)
		ON CONFLICT (account_id) DO NOTHING
		RETURNING ` + aggregateColumns

	return scanAggregate(tx.QueryRow(ctx, query, accountID, unsuccessful))
}

func applyDecision(ctx context.Context, tx pgx.Tx, agg *models.LoginAttemptAggregate, decision models.AttemptDecision) error {
	if decision.Persist {
		_, err := tx.Exec(ctx,
			`UPDATE login_attempt_aggregate SET unsuccessful = $1 WHERE id = $2`,
			decision.Unsuccessful, agg.ID,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}
	}

	if decision.RecordEvent {
		return insertEvent(ctx, tx, agg.ID, decision)
	}

	return nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, aggregateID int64, decision models.AttemptDecision) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO login_attempt_event (aggregate_id, ip_address, successful) VALUES ($1, $2, $3)`,
		aggregateID, decision.IPAddress, decision.Successful,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}
