package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/delcom/healthtrack/internal/domain"
	"github.com/delcom/healthtrack/internal/observability"
)

var ErrRecordNotFound = errors.New("health record not found")

// RecordRepository is the owner-scoped store for health records. Lookups
// filter by (user id, record id) so one user can never see another's rows;
// a non-owned id is indistinguishable from a nonexistent one.
type RecordRepository interface {
	Create(record *domain.HealthRecord) error
	FindByUserAndID(userID, id uuid.UUID) (*domain.HealthRecord, error)
	FindByID(id uuid.UUID) (*domain.HealthRecord, error)
	ListByUser(userID uuid.UUID) ([]domain.HealthRecord, error)
	SearchByNotes(userID uuid.UUID, keyword string) ([]domain.HealthRecord, error)
	Update(record *domain.HealthRecord) error
	Delete(userID, id uuid.UUID) error
}

type GormRecordRepository struct{ db *gorm.DB }

func NewRecordRepository(db *gorm.DB) RecordRepository { return &GormRecordRepository{db: db} }

func (r *GormRecordRepository) Create(record *domain.HealthRecord) error {
	if err := r.db.Create(record).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "health_record", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "health_record", "create", "success")
	return nil
}

func (r *GormRecordRepository) FindByUserAndID(userID, id uuid.UUID) (*domain.HealthRecord, error) {
	var rec domain.HealthRecord
	err := r.db.Where("user_id = ? AND id = ?", userID, id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "health_record", "find_by_user_and_id", "not_found")
			return nil, ErrRecordNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "health_record", "find_by_user_and_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "health_record", "find_by_user_and_id", "success")
	return &rec, nil
}

// FindByID is the one unscoped lookup; the photo update path uses it after
// the caller has already checked ownership.
func (r *GormRecordRepository) FindByID(id uuid.UUID) (*domain.HealthRecord, error) {
	var rec domain.HealthRecord
	err := r.db.Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "health_record", "find_by_id", "not_found")
			return nil, ErrRecordNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "health_record", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "health_record", "find_by_id", "success")
	return &rec, nil
}

func (r *GormRecordRepository) ListByUser(userID uuid.UUID) ([]domain.HealthRecord, error) {
	var records []domain.HealthRecord
	err := r.db.Where("user_id = ?", userID).
		Order("date DESC, created_at DESC").
		Find(&records).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "health_record", "list_by_user", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "health_record", "list_by_user", "success")
	return records, nil
}

func (r *GormRecordRepository) SearchByNotes(userID uuid.UUID, keyword string) ([]domain.HealthRecord, error) {
	var records []domain.HealthRecord
	pattern := "%" + strings.ToLower(keyword) + "%"
	err := r.db.Where("user_id = ? AND LOWER(notes) LIKE ?", userID, pattern).
		Order("date DESC, created_at DESC").
		Find(&records).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "health_record", "search_by_notes", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "health_record", "search_by_notes", "success")
	return records, nil
}

func (r *GormRecordRepository) Update(record *domain.HealthRecord) error {
	if err := r.db.Save(record).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "health_record", "update", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "health_record", "update", "success")
	return nil
}

func (r *GormRecordRepository) Delete(userID, id uuid.UUID) error {
	res := r.db.Where("user_id = ? AND id = ?", userID, id).Delete(&domain.HealthRecord{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "health_record", "delete", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "health_record", "delete", "not_found")
		return ErrRecordNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "health_record", "delete", "success")
	return nil
}
