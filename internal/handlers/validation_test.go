package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRequest_UsesJSONFieldNames(t *testing.T) {
	err := ValidateRequest(&SignUpRequest{Email: "a@b.com", LastName: "Byron", Password: "pw"})

	assert.EqualError(t, err, "validation failed: firstName: this field is required")
}

func TestValidateRequest_Email(t *testing.T) {
	err := ValidateRequest(&EmailRequest{Email: "nope"})

	assert.EqualError(t, err, "validation failed: email: must be a valid email address")
}

func TestValidateRequest_Valid(t *testing.T) {
	assert.NoError(t, ValidateRequest(&ChangePasswordRequest{Email: "a@b.com", Password: "x"}))
}
