package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"foundit-backend/internal/models"
	"foundit-backend/internal/repository"
	"foundit-backend/internal/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour

	loginFailureWindow = 15 * time.Minute
	loginFailureLimit  = 5

	minPasswordLen = 8
)

// AuthError is an authentication failure with a stable provider-style
// code and a message safe to show to the user.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string { return e.Message }

var (
	ErrEmailInUse = &AuthError{
		Code:    "auth/email-already-in-use",
		Message: "That email is already registered. Try signing in instead.",
	}
	ErrInvalidEmail = &AuthError{
		Code:    "auth/invalid-email",
		Message: "That email address doesn't look valid.",
	}
	ErrWeakPassword = &AuthError{
		Code:    "auth/weak-password",
		Message: "Password should be at least 8 characters.",
	}
	ErrInvalidCredential = &AuthError{
		Code:    "auth/invalid-credential",
		Message: "Incorrect email or password.",
	}
	ErrUserNotFound = &AuthError{
		Code:    "auth/user-not-found",
		Message: "No account exists for that email.",
	}
	ErrTooManyRequests = &AuthError{
		Code:    "auth/too-many-requests",
		Message: "Too many failed attempts. Try again later.",
	}
	ErrSessionExpired = &AuthError{
		Code:    "auth/session-expired",
		Message: "Your session has expired. Please sign in again.",
	}
)

// UserStore is the persistence surface the user service needs
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
}

// SessionStore persists refresh sessions and login throttling state
type SessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, ttl time.Duration) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RecordLoginFailure(ctx context.Context, email string, window time.Duration) (int, error)
	LoginFailures(ctx context.Context, email string) (int, error)
	ClearLoginFailures(ctx context.Context, email string) error
}

// UserService handles registration, sign-in, and token lifecycle
type UserService struct {
	userRepo  UserStore
	sessions  SessionStore
	jwtSecret string
}

// NewUserService creates a new user service
func NewUserService(userRepo UserStore, sessions SessionStore, jwtSecret string) *UserService {
	return &UserService{
		userRepo:  userRepo,
		sessions:  sessions,
		jwtSecret: jwtSecret,
	}
}

// TokenPair carries the access token plus the opaque refresh token
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Register creates an account from email and password
func (s *UserService) Register(ctx context.Context, email, password, displayName string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") || strings.HasPrefix(email, "@") || strings.HasSuffix(email, "@") {
		return nil, nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return nil, nil, ErrWeakPassword
	}

	exists, err := s.userRepo.EmailExists(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, nil, ErrEmailInUse
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	tokens, err := s.issueTokens(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// Login verifies credentials and issues a token pair. Failed attempts
// are counted per email; at the limit every attempt is rejected, even
// with the correct password, until the window expires.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}

	failures, err := s.sessions.LoginFailures(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read login failures: %w", err)
	}
	if failures >= loginFailureLimit {
		return nil, nil, ErrTooManyRequests
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if _, ferr := s.sessions.RecordLoginFailure(ctx, email, loginFailureWindow); ferr != nil {
			return nil, nil, fmt.Errorf("failed to record login failure: %w", ferr)
		}
		return nil, nil, ErrInvalidCredential
	}

	if err := s.sessions.ClearLoginFailures(ctx, email); err != nil {
		return nil, nil, fmt.Errorf("failed to clear login failures: %w", err)
	}

	tokens, err := s.issueTokens(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// Refresh exchanges a valid refresh token for a new access token
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.sessions.LookupRefreshSession(ctx, session.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	access, err := s.GenerateJWT(userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refreshToken}, nil
}

// Logout revokes a refresh session
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	return s.sessions.RevokeRefreshSession(ctx, session.HashToken(refreshToken))
}

// GetByID retrieves a user
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// SetPushToken registers or clears the APNs device token for a user
func (s *UserService) SetPushToken(ctx context.Context, userID string, pushToken *string) error {
	return s.userRepo.UpdatePushToken(ctx, userID, pushToken)
}

func (s *UserService) issueTokens(ctx context.Context, userID string) (*TokenPair, error) {
	access, err := s.GenerateJWT(userID)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	refresh := hex.EncodeToString(raw)

	if err := s.sessions.SaveRefreshSession(ctx, session.HashToken(refresh), userID, refreshTokenTTL); err != nil {
		return nil, fmt.Errorf("failed to save refresh session: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// GenerateJWT generates a signed access token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(accessTokenTTL).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateJWT validates an access token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", fmt.Errorf("user_id not found in token")
	}
	return userID, nil
}
