package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/delcom/healthtrack/internal/domain"
	"github.com/delcom/healthtrack/internal/observability"
	"github.com/delcom/healthtrack/internal/repository"
	"github.com/delcom/healthtrack/internal/storage"
)

var (
	ErrRecordNotFound          = errors.New("record not found")
	ErrTemperatureRequired     = errors.New("body temperature is required")
	ErrBloodPressureRequired   = errors.New("blood pressure is required")
	ErrHeartRateRequired       = errors.New("heart rate is required")
)

// RecordInput carries the mutable health fields. Pointer fields distinguish
// "absent" from zero for required-at-creation checks.
type RecordInput struct {
	Date            time.Time
	BodyTemperature *float64
	BloodPressure   string
	HeartRate       *int
	WaterIntake     *int
	SleepDuration   *float64
	StressLevel     *int
	Notes           string
}

// RecordService validates and executes the owner-scoped CRUD operations
// over health records. Timestamps are stamped here on every create and
// update path rather than in persistence hooks.
type RecordService struct {
	recordRepo repository.RecordRepository
	files      storage.FileStore
	now        func() time.Time
}

func NewRecordService(recordRepo repository.RecordRepository, files storage.FileStore) *RecordService {
	return &RecordService{recordRepo: recordRepo, files: files, now: time.Now}
}

// Create stamps ownership and timestamps and persists a new record.
// Temperature, blood pressure and heart rate are mandatory; the record
// date defaults to today when unset.
func (s *RecordService) Create(ownerID uuid.UUID, input RecordInput) (*domain.HealthRecord, error) {
	if input.BodyTemperature == nil {
		return nil, ErrTemperatureRequired
	}
	if strings.TrimSpace(input.BloodPressure) == "" {
		return nil, ErrBloodPressureRequired
	}
	if input.HeartRate == nil {
		return nil, ErrHeartRateRequired
	}

	now := s.now()
	date := input.Date
	if date.IsZero() {
		date = now.Truncate(24 * time.Hour)
	}
	record := &domain.HealthRecord{
		UserID:          ownerID,
		Date:            date,
		BodyTemperature: input.BodyTemperature,
		BloodPressure:   input.BloodPressure,
		HeartRate:       input.HeartRate,
		WaterIntake:     input.WaterIntake,
		SleepDuration:   input.SleepDuration,
		StressLevel:     input.StressLevel,
		Notes:           input.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.recordRepo.Create(record); err != nil {
		observability.RecordHealthRecordOperation("create", "error")
		return nil, err
	}
	observability.RecordHealthRecordOperation("create", "success")
	return record, nil
}

// List returns the owner's records newest-first; a non-blank search term
// narrows to records whose notes contain it case-insensitively.
func (s *RecordService) List(ownerID uuid.UUID, search string) ([]domain.HealthRecord, error) {
	if strings.TrimSpace(search) != "" {
		return s.recordRepo.SearchByNotes(ownerID, strings.TrimSpace(search))
	}
	return s.recordRepo.ListByUser(ownerID)
}

// GetByID resolves a record only when it belongs to ownerID; anything else
// is ErrRecordNotFound so non-owned ids are indistinguishable from missing
// ones.
func (s *RecordService) GetByID(ownerID, id uuid.UUID) (*domain.HealthRecord, error) {
	record, err := s.recordRepo.FindByUserAndID(ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return record, nil
}

// Update overwrites every mutable health field with the input, including
// clearing optional ones. Date is the single exception: a zero input date
// keeps the stored value, since date is non-nullable and carries a
// default-today rule at creation.
func (s *RecordService) Update(ownerID, id uuid.UUID, input RecordInput) (*domain.HealthRecord, error) {
	record, err := s.recordRepo.FindByUserAndID(ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			observability.RecordHealthRecordOperation("update", "not_found")
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	record.BodyTemperature = input.BodyTemperature
	record.BloodPressure = input.BloodPressure
	record.HeartRate = input.HeartRate
	record.WaterIntake = input.WaterIntake
	record.SleepDuration = input.SleepDuration
	record.StressLevel = input.StressLevel
	record.Notes = input.Notes
	if !input.Date.IsZero() {
		record.Date = input.Date
	}
	record.UpdatedAt = s.now()
	if err := s.recordRepo.Update(record); err != nil {
		observability.RecordHealthRecordOperation("update", "error")
		return nil, err
	}
	observability.RecordHealthRecordOperation("update", "success")
	return record, nil
}

// Delete removes the owner's record and, best-effort, its photo file.
// A failed file cleanup never blocks the record delete.
func (s *RecordService) Delete(ctx context.Context, ownerID, id uuid.UUID) (bool, error) {
	record, err := s.recordRepo.FindByUserAndID(ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			observability.RecordHealthRecordOperation("delete", "not_found")
			return false, nil
		}
		return false, err
	}
	if record.PhotoURL != "" {
		s.files.Delete(ctx, record.PhotoURL)
	}
	if err := s.recordRepo.Delete(ownerID, id); err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return false, nil
		}
		observability.RecordHealthRecordOperation("delete", "error")
		return false, err
	}
	observability.RecordHealthRecordOperation("delete", "success")
	return true, nil
}

// UpdatePhoto swaps the stored photo reference, deleting the superseded
// file. Ownership is the caller's responsibility; the photo flow checks it
// before calling in.
func (s *RecordService) UpdatePhoto(ctx context.Context, recordID uuid.UUID, filename string) (*domain.HealthRecord, error) {
	record, err := s.recordRepo.FindByID(recordID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	if record.PhotoURL != "" && record.PhotoURL != filename {
		s.files.Delete(ctx, record.PhotoURL)
	}
	record.PhotoURL = filename
	record.UpdatedAt = s.now()
	if err := s.recordRepo.Update(record); err != nil {
		return nil, err
	}
	return record, nil
}
