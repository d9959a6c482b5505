package models

import "time"

// RecoveryRequest is an append-only audit row written when a password recovery is requested
type RecoveryRequest struct {
	ID          int64     `db:"id"`
	AccountID   string    `db:"account_id"`
	IPAddress   string    `db:"ip_address"`
	RequestedAt time.Time `db:"requested_at"`
}

// VerificationRecord is an append-only audit row written when an account is verified
type VerificationRecord struct {
	ID         int64     `db:"id"`
	AccountID  string    `db:"account_id"`
	IPAddress  string    `db:"ip_address"`
	VerifiedAt time.Time `db:"verified_at"`
}
