package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/teacup/internal/models"
	pkghttp "github.com/BradenHooton/teacup/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAccountService implements AccountServiceInterface for testing
type MockAccountService struct {
	SignUpFunc         func(ctx context.Context, email, firstName, lastName, password string) (*models.Profile, error)
	LogInFunc          func(ctx context.Context, email, password, ipAddress string) (*models.Profile, error)
	RecoverFunc        func(ctx context.Context, email, ipAddress string) (bool, error)
	VerifyFunc         func(ctx context.Context, email, ipAddress string) (bool, error)
	ChangePasswordFunc func(ctx context.Context, email string, authorized bool, password, ipAddress string) (bool, error)
}

func (m *MockAccountService) SignUp(ctx context.Context, email, firstName, lastName, password string) (*models.Profile, error) {
	if m.SignUpFunc == nil {
		return nil, models.ErrConflict
	}
	return m.SignUpFunc(ctx, email, firstName, lastName, password)
}

func (m *MockAccountService) LogIn(ctx context.Context, email, password, ipAddress string) (*models.Profile, error) {
	if m.LogInFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LogInFunc(ctx, email, password, ipAddress)
}

func (m *MockAccountService) Recover(ctx context.Context, email, ipAddress string) (bool, error) {
	if m.RecoverFunc == nil {
		return false, nil
	}
	return m.RecoverFunc(ctx, email, ipAddress)
}

func (m *MockAccountService) Verify(ctx context.Context, email, ipAddress string) (bool, error) {
	if m.VerifyFunc == nil {
		return false, nil
	}
	return m.VerifyFunc(ctx, email, ipAddress)
}

func (m *MockAccountService) ChangePassword(ctx context.Context, email string, authorized bool, password, ipAddress string) (bool, error) {
	if m.ChangePasswordFunc == nil {
		return false, nil
	}
	return m.ChangePasswordFunc(ctx, email, authorized, password, ipAddress)
}

// MockHealthChecker implements HealthChecker for testing
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.Err
}
