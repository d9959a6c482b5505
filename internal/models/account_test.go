package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_ProfileOmitsPasswordHash(t *testing.T) {
	account := &Account{
		ID:           "acc-1",
		Email:        "a@b.com",
		FirstName:    "Ada",
		LastName:     "Byron",
		PasswordHash: "$2a$12$secret",
	}

	body, err := json.Marshal(account.Profile())
	require.NoError(t, err)

	assert.JSONEq(t, `{"id":"acc-1","email":"a@b.com","firstName":"Ada","lastName":"Byron"}`, string(body))
}

func TestAttemptOutcome_String(t *testing.T) {
	assert.Equal(t, "authorized", OutcomeAuthorized.String())
	assert.Equal(t, "unauthorized", OutcomeUnauthorized.String())
	assert.Equal(t, "locked", OutcomeLocked.String())
}
