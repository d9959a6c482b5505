package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BradenHooton/teacup/internal/models"
	pkghttp "github.com/BradenHooton/teacup/pkg/http"
)

const maxBodyBytes = 1 << 20

// AccountServiceInterface defines the account lifecycle operations the handler needs
type AccountServiceInterface interface {
	SignUp(ctx context.Context, email, firstName, lastName, password string) (*models.Profile, error)
	LogIn(ctx context.Context, email, password, ipAddress string) (*models.Profile, error)
	Recover(ctx context.Context, email, ipAddress string) (bool, error)
	Verify(ctx context.Context, email, ipAddress string) (bool, error)
	ChangePassword(ctx context.Context, email string, authorized bool, password, ipAddress string) (bool, error)
}

// AccountHandler handles the account HTTP endpoints
type AccountHandler struct {
	service AccountServiceInterface
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

// Request DTOs

// SignUpRequest represents the request body for sign-up
type SignUpRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Password  string `json:"password" validate:"required,max=72"`
}

// LogInRequest represents the request body for login
type LogInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// EmailRequest is the body of recover and verify
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Authorized bool   `json:"authorized"`
	Password   string `json:"password" validate:"required,max=72"`
}

// decode reads and validates a JSON body, writing a 400 on failure
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}

	if err := ValidateRequest(dst); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return false
	}

	return true
}

// writeServiceError maps service sentinels to responses. Storage failures never leak details.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Invalid credentials")
	case errors.Is(err, models.ErrAccountLocked):
		pkghttp.WriteNotAcceptable(w, "Account is locked")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Account already exists")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// writeFound answers 200 when the account existed and the action was applied, 204 otherwise
func writeFound(w http.ResponseWriter, found bool, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Ping reports that the service is up
// @Router /account/ping [get]
func (h *AccountHandler) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Service online"))
}

// SignUp creates an account
// @Summary Sign up
// @Accept json
// @Param request body SignUpRequest true "Sign-up request"
// @Produce json
// @Success 200 {object} models.Profile
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /account/signUp [post]
func (h *AccountHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !decode(w, r, &req) {
		return
	}

	profile, err := h.service.SignUp(r.Context(), req.Email, req.FirstName, req.LastName, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, profile)
}

// LogIn checks credentials and applies the lockout policy
// @Summary Log in
// @Accept json
// @Param request body LogInRequest true "Login request"
// @Produce json
// @Success 200 {object} models.Profile
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 406 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /account/logIn [post]
func (h *AccountHandler) LogIn(w http.ResponseWriter, r *http.Request) {
	var req LogInRequest
	if !decode(w, r, &req) {
		return
	}

	profile, err := h.service.LogIn(r.Context(), req.Email, req.Password, pkghttp.ExtractClientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, profile)
}

// Recover records a recovery request
// @Router /account/recover [post]
func (h *AccountHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decode(w, r, &req) {
		return
	}

	found, err := h.service.Recover(r.Context(), req.Email, pkghttp.ExtractClientIP(r))
	writeFound(w, found, err)
}

// Verify marks the account as verified
// @Router /account/verify [post]
func (h *AccountHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decode(w, r, &req) {
		return
	}

	found, err := h.service.Verify(r.Context(), req.Email, pkghttp.ExtractClientIP(r))
	writeFound(w, found, err)
}

// ChangePassword replaces the password when the change is authorized
// @Router /account/changePassword [post]
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	changed, err := h.service.ChangePassword(r.Context(), req.Email, req.Authorized, req.Password, pkghttp.ExtractClientIP(r))
	writeFound(w, changed, err)
}
