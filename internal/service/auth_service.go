package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/delcom/healthtrack/internal/domain"
	"github.com/delcom/healthtrack/internal/observability"
	"github.com/delcom/healthtrack/internal/repository"
	"github.com/delcom/healthtrack/internal/security"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("email or password incorrect")
	ErrPasswordMismatch   = errors.New("password confirmation does not match")
	ErrTokenPersistence   = errors.New("failed to create authentication token")
)

// AuthService owns registration, login, logout and password rotation.
// It is the only writer of the token store and enforces the single-active-
// session invariant: InvalidateAll always commits before a new token row is
// created.
type AuthService struct {
	userRepo  repository.UserRepository
	tokenRepo repository.TokenRepository
	codec     *security.TokenCodec
}

func NewAuthService(userRepo repository.UserRepository, tokenRepo repository.TokenRepository, codec *security.TokenCodec) *AuthService {
	return &AuthService{userRepo: userRepo, tokenRepo: tokenRepo, codec: codec}
}

func (s *AuthService) Register(name, email, password string) (*domain.User, error) {
	if _, err := s.userRepo.FindByEmail(email); err == nil {
		observability.RecordAuthRegister("duplicate_email")
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		observability.RecordAuthRegister("error")
		return nil, err
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		observability.RecordAuthRegister("error")
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{Name: name, Email: email, PasswordHash: hash}
	if err := s.userRepo.Create(user); err != nil {
		observability.RecordAuthRegister("error")
		return nil, err
	}
	observability.RecordAuthRegister("success")
	return user, nil
}

// Login verifies credentials, rotates the user's token and returns the new
// credential. Prior tokens are invalidated before the new one is stored,
// never after, so two live rows cannot coexist even if the request dies
// mid-flight.
func (s *AuthService) Login(email, password string) (*domain.User, string, error) {
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordAuthLogin("unknown_email")
			return nil, "", ErrInvalidCredentials
		}
		observability.RecordAuthLogin("error")
		return nil, "", err
	}
	if !security.VerifyPassword(user.PasswordHash, password) {
		observability.RecordAuthLogin("wrong_password")
		return nil, "", ErrInvalidCredentials
	}

	if err := s.tokenRepo.InvalidateAll(user.ID); err != nil {
		observability.RecordAuthLogin("error")
		return nil, "", fmt.Errorf("%w: %v", ErrTokenPersistence, err)
	}
	token, err := s.codec.Issue(user.ID)
	if err != nil {
		observability.RecordAuthLogin("error")
		return nil, "", fmt.Errorf("%w: %v", ErrTokenPersistence, err)
	}
	if _, err := s.tokenRepo.Create(user.ID, token); err != nil {
		observability.RecordAuthLogin("error")
		return nil, "", fmt.Errorf("%w: %v", ErrTokenPersistence, err)
	}
	observability.RecordAuthLogin("success")
	return user, token, nil
}

func (s *AuthService) Logout(userID uuid.UUID) error {
	return s.tokenRepo.InvalidateAll(userID)
}

// ChangePassword verifies the old password, stores the new hash and revokes
// every token for the user; the caller must log in again.
func (s *AuthService) ChangePassword(userID uuid.UUID, oldPassword, newPassword string) (*domain.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if !security.VerifyPassword(user.PasswordHash, oldPassword) {
		return nil, ErrPasswordMismatch
	}
	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	if err := s.tokenRepo.InvalidateAll(userID); err != nil {
		return nil, err
	}
	return user, nil
}
