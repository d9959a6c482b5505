package models

// Role names seeded by the initial migration
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Status names seeded by the initial migration
const (
	StatusUnverified = "unverified"
	StatusVerified   = "verified"
)
