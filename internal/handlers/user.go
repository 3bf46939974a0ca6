package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"foundit-backend/internal/middleware"
	"foundit-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles account and session HTTP requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	User   interface{}         `json:"user,omitempty"`
	Tokens *services.TokenPair `json:"tokens"`
}

type pushTokenRequest struct {
	PushToken *string `json:"push_token"`
}

// Register handles POST /api/v1/auth/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, tokens, err := h.userService.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		respondAuthError(w, err, "Failed to register")
		return
	}

	log.Info().Str("user_id", user.ID).Msg("User registered")
	respondJSON(w, http.StatusCreated, sessionResponse{User: user, Tokens: tokens})
}

// Login handles POST /api/v1/auth/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, tokens, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondAuthError(w, err, "Failed to log in")
		return
	}

	log.Info().Str("user_id", user.ID).Msg("User logged in")
	respondJSON(w, http.StatusOK, sessionResponse{User: user, Tokens: tokens})
}

// Refresh handles POST /api/v1/auth/refresh
func (h *UserHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tokens, err := h.userService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondAuthError(w, err, "Failed to refresh session")
		return
	}

	respondJSON(w, http.StatusOK, sessionResponse{Tokens: tokens})
}

// Logout handles POST /api/v1/auth/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.Logout(r.Context(), req.RefreshToken); err != nil {
		log.Error().Err(err).Msg("Failed to revoke session")
		respondError(w, "Failed to log out", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load user")
		respondError(w, "Failed to load user", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// SetPushToken handles PUT /api/v1/users/me/push-token. A null token clears
// the registration.
func (h *UserHandler) SetPushToken(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req pushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.SetPushToken(r.Context(), userID, req.PushToken); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to store push token")
		respondError(w, "Failed to store push token", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// respondAuthError maps service auth errors onto HTTP statuses; the
// error code travels in the body so clients can branch without parsing
// messages.
func respondAuthError(w http.ResponseWriter, err error, fallback string) {
	var authErr *services.AuthError
	if !errors.As(err, &authErr) {
		log.Error().Err(err).Msg(fallback)
		respondError(w, fallback, http.StatusInternalServerError)
		return
	}

	status := http.StatusBadRequest
	switch authErr {
	case services.ErrEmailInUse:
		status = http.StatusConflict
	case services.ErrInvalidCredential, services.ErrUserNotFound, services.ErrSessionExpired:
		status = http.StatusUnauthorized
	case services.ErrTooManyRequests:
		status = http.StatusTooManyRequests
	}
	respondErrorCode(w, authErr.Code, authErr.Message, status)
}
