package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Den-Varenik/social-network/internal/service"
	apperrors "github.com/Den-Varenik/social-network/pkg/errors"
	"github.com/Den-Varenik/social-network/pkg/middleware"
	"github.com/Den-Varenik/social-network/pkg/validator"
)

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for user registration.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	AccountType string `json:"account_type" validate:"omitempty,oneof=personal business"`
}

// RefreshTokenRequest is the JSON request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// --- Handlers ---

// Login handles POST /auth/create.
//
// The endpoint keeps the legacy form-encoded contract: `username` carries the
// email. An unknown identity yields 404 while a wrong password yields 401;
// the two are deliberately distinct on this endpoint.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid form body: " + err.Error()},
		})
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		writeJSON(w, http.StatusUnprocessableEntity, response{
			Error: &errorResponse{Code: "VALIDATION_ERROR", Message: "username and password are required"},
		})
		return
	}

	_, tokens, err := h.service.Login(r.Context(), username, password)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// RefreshToken handles POST /auth/refresh.
//
// Any failure to produce a new pair, including an unreadable request body,
// collapses into a single 401 so the response does not reveal why the
// presented token was rejected.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "invalid or expired refresh token"},
		})
		return
	}

	tokens, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// VerifyToken handles POST /auth/verify.
//
// Succeeds with an empty 200 body; no profile fields leak through this
// endpoint. All malformed-header and bad-token causes yield the same 401.
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "invalid or missing credentials"},
		})
		return
	}

	if err := h.service.VerifyToken(r.Context(), token); err != nil {
		writeAppError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Register handles POST /auth/register.
//
// A malformed payload (bad email syntax, short password) yields 422; a
// duplicate email yields 400. Registration doubles as login: the response
// carries a fresh token pair.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	input := service.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		AccountType: req.AccountType,
	}

	_, tokens, err := h.service.Register(r.Context(), input)
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			writeJSON(w, http.StatusBadRequest, response{
				Error: &errorResponse{Code: "ALREADY_EXISTS", Message: "email already registered"},
			})
			return
		}
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}
