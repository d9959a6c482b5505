package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/teacup/internal/database"
	"github.com/BradenHooton/teacup/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository appends recovery and verification audit rows
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{pool: db.Pool}
}

// RecordRecovery appends a recovery request for the account
func (r *AuditRepository) RecordRecovery(ctx context.Context, accountID, ipAddress string) (*models.RecoveryRequest, error) {
	query := `
		INSERT INTO recovery (account_id, ip_address)
		VALUES ($1, $2)
		RETURNING id, account_id, ip_address, requested_at
	`

	var req models.RecoveryRequest
	err := r.pool.QueryRow(ctx, query, accountID, ipAddress).Scan(
		&req.ID, &req.AccountID, &req.IPAddress, &req.RequestedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record recovery request: %w", database.MapPostgresError(err))
	}

	return &req, nil
}

// RecordVerification appends a verification record for the account
func (r *AuditRepository) RecordVerification(ctx context.Context, accountID, ipAddress string) (*models.VerificationRecord, error) {
	query := `
		INSERT INTO verification (account_id, ip_address)
		VALUES ($1, $2)
		RETURNING id, account_id, ip_address, verified_at
	`

	var rec models.VerificationRecord
	err := r.pool.QueryRow(ctx, query, accountID, ipAddress).Scan(
		&rec.ID, &rec.AccountID, &rec.IPAddress, &rec.VerifiedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record verification: %w", database.MapPostgresError(err))
	}

	return &rec, nil
}
