package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scribehub/api/internal/auth"
	"github.com/scribehub/api/internal/model"
	"github.com/scribehub/api/internal/repository"
)

const minPasswordLen = 6

// AuthService registers accounts and issues session tokens
type AuthService struct {
	users     repository.UserRepository
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(users repository.UserRepository, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// Register creates an account with a bcrypt-hashed password
func (s *AuthService) Register(ctx context.Context, req *model.RegisterRequest) (*model.MessageResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" || req.ConfirmPassword == "" {
		return nil, newValidationError("Email, password, and confirm password are required.")
	}
	if len(req.Password) < minPasswordLen {
		return nil, newValidationError(fmt.Sprintf("Password must be at least %d characters.", minPasswordLen))
	}
	if req.Password != req.ConfirmPassword {
		return nil, newValidationError("Passwords do not match.")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, newValidationError("User already exists.")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &model.MessageResponse{Message: "User registered successfully."}, nil
}

// Login checks credentials and returns a signed session token
func (s *AuthService) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, newValidationError("Email and password are required.")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	token, err := auth.IssueToken(user.ID, user.Email, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &model.LoginResponse{Token: token}, nil
}

// Profile returns the account behind userID
func (s *AuthService) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}
