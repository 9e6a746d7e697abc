package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/delcom/healthtrack/internal/domain"
	"github.com/delcom/healthtrack/internal/observability"
)

var ErrTokenNotFound = errors.New("auth token not found")

// TokenRepository persists the single active bearer token per user.
// Callers enforce the ordering InvalidateAll -> Create when rotating.
type TokenRepository interface {
	FindActive(userID uuid.UUID, token string) (*domain.AuthToken, error)
	Create(userID uuid.UUID, token string) (*domain.AuthToken, error)
	InvalidateAll(userID uuid.UUID) error
}

type GormTokenRepository struct{ db *gorm.DB }

func NewTokenRepository(db *gorm.DB) TokenRepository { return &GormTokenRepository{db: db} }

// FindActive matches on both user id and token string. A stolen token
// string alone, or a signed token whose row was deleted, never matches.
func (r *GormTokenRepository) FindActive(userID uuid.UUID, token string) (*domain.AuthToken, error) {
	var t domain.AuthToken
	err := r.db.Where("user_id = ? AND token = ?", userID, token).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "auth_token", "find_active", "not_found")
			return nil, ErrTokenNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "auth_token", "find_active", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "auth_token", "find_active", "success")
	return &t, nil
}

func (r *GormTokenRepository) Create(userID uuid.UUID, token string) (*domain.AuthToken, error) {
	t := domain.AuthToken{UserID: userID, Token: token}
	if err := r.db.Create(&t).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "auth_token", "create", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "auth_token", "create", "success")
	return &t, nil
}

func (r *GormTokenRepository) InvalidateAll(userID uuid.UUID) error {
	if err := r.db.Where("user_id = ?", userID).Delete(&domain.AuthToken{}).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "auth_token", "invalidate_all", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "auth_token", "invalidate_all", "success")
	return nil
}
