package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"foundit-backend/internal/services"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Auth rejects requests without a valid bearer token and stores the
// authenticated user ID on the request context.
func Auth(userService *services.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || scheme != "Bearer" || token == "" {
				respondError(w, "Bearer token required", http.StatusUnauthorized)
				return
			}

			userID, err := userService.ValidateJWT(token)
			if err != nil {
				respondError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts the authenticated user ID from a request context.
// Empty means the request never passed Auth.
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

// ValidateWebSocketToken authenticates the token query parameter used
// by websocket clients, which cannot set an Authorization header.
func ValidateWebSocketToken(token string, userService *services.UserService) (string, error) {
	if token == "" {
		return "", errors.New("token required")
	}
	return userService.ValidateJWT(token)
}
