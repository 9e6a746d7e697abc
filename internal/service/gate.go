package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/delcom/healthtrack/internal/domain"
	"github.com/delcom/healthtrack/internal/repository"
	"github.com/delcom/healthtrack/internal/security"
)

var (
	ErrCredentialInvalid   = errors.New("credential invalid")
	ErrCredentialExpired   = errors.New("credential expired")
	ErrCredentialMalformed = errors.New("credential format invalid")
	ErrCredentialRevoked   = errors.New("credential revoked")
	ErrGateUserNotFound    = errors.New("credential user not found")
)

// Gate is the verify-and-resolve core shared by both entry surfaces: the
// bearer-token API middleware and the cookie-session web middleware. It
// performs the fixed pipeline signature -> subject -> store liveness ->
// user resolution, in that order. Signature failures never touch the
// database, and a revoked token is rejected before the user is looked up
// so revocation cannot leak whether the account still exists.
type Gate struct {
	codec     *security.TokenCodec
	tokenRepo repository.TokenRepository
	userRepo  repository.UserRepository
}

func NewGate(codec *security.TokenCodec, tokenRepo repository.TokenRepository, userRepo repository.UserRepository) *Gate {
	return &Gate{codec: codec, tokenRepo: tokenRepo, userRepo: userRepo}
}

// Resolve validates tokenString strictly (expiry enforced) and returns the
// acting user. Each failure mode maps to a distinct sentinel error so the
// surface adapters can keep their own status-code conventions.
func (g *Gate) Resolve(ctx context.Context, tokenString string) (*domain.User, error) {
	userID, err := g.codec.Verify(tokenString, false)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrCredentialExpired
		}
		return nil, ErrCredentialInvalid
	}
	if userID == uuid.Nil {
		return nil, ErrCredentialMalformed
	}
	if _, err := g.tokenRepo.FindActive(userID, tokenString); err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrCredentialRevoked
		}
		return nil, err
	}
	user, err := g.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrGateUserNotFound
		}
		return nil, err
	}
	return user, nil
}
