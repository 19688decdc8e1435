package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Den-Varenik/social-network/internal/service"
	apperrors "github.com/Den-Varenik/social-network/pkg/errors"
	"github.com/Den-Varenik/social-network/pkg/middleware"
	"github.com/Den-Varenik/social-network/pkg/validator"
)

// UserHandler handles HTTP requests for user profile endpoints.
type UserHandler struct {
	service *service.AuthService
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc *service.AuthService) *UserHandler {
	return &UserHandler{service: svc}
}

// GetProfile handles GET /api/v1/users/me
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "user not authenticated"},
		})
		return
	}

	user, err := h.service.GetProfile(r.Context(), principal.UserID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: user})
}

// --- Response envelope and helpers ---

type response struct {
	Data  any            `json:"data,omitempty"`
	Error *errorResponse `json:"error,omitempty"`
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

func writeAppError(w http.ResponseWriter, _ *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.Status, response{
			Error: &errorResponse{Code: appErr.Code, Message: appErr.Message},
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		code = "NOT_FOUND"
		message = "resource not found"
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrAlreadyExists):
		code = "ALREADY_EXISTS"
		message = "resource already exists"
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrInvalidInput):
		code = "INVALID_INPUT"
		message = err.Error()
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnauthorized):
		code = "UNAUTHORIZED"
		message = err.Error()
		status = http.StatusUnauthorized
	}

	writeJSON(w, status, response{
		Error: &errorResponse{Code: code, Message: message},
	})
}

// writeValidationError reports a failed request validation. The 422 status
// matches the registration contract for malformed fields.
func writeValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		writeJSON(w, http.StatusUnprocessableEntity, response{
			Error: &errorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	writeJSON(w, http.StatusUnprocessableEntity, response{
		Error: &errorResponse{Code: "INVALID_INPUT", Message: err.Error()},
	})
}
