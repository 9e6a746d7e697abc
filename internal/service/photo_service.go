package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/delcom/healthtrack/internal/domain"
	"github.com/delcom/healthtrack/internal/observability"
	"github.com/delcom/healthtrack/internal/storage"
)

// MaxPhotoBytes is the upload ceiling for record photos.
const MaxPhotoBytes = 5 * 1024 * 1024

var (
	ErrPhotoEmpty    = errors.New("photo file is empty")
	ErrPhotoType     = errors.New("photo file type not allowed")
	ErrPhotoTooLarge = errors.New("photo file exceeds size limit")
)

var allowedPhotoTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// PhotoService validates and stores record photo uploads. A record keeps
// at most one photo; a new upload replaces the previous file under a
// deterministic name derived from the record id.
type PhotoService struct {
	records *RecordService
	files   storage.FileStore
}

func NewPhotoService(records *RecordService, files storage.FileStore) *PhotoService {
	return &PhotoService{records: records, files: files}
}

// Attach validates the upload and binds it to the owner's record.
// Validation runs in order: presence, content type, size. The stored name
// is photo_<recordID> plus the extension implied by the content type, or
// the original extension when one is present.
func (s *PhotoService) Attach(ctx context.Context, ownerID, recordID uuid.UUID, filename, contentType string, size int64, body io.Reader) (*domain.HealthRecord, error) {
	current, err := s.records.GetByID(ownerID, recordID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		observability.RecordPhotoUpload("empty")
		return nil, ErrPhotoEmpty
	}
	ext, ok := allowedPhotoTypes[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		observability.RecordPhotoUpload("bad_type")
		return nil, ErrPhotoType
	}
	if size > MaxPhotoBytes {
		observability.RecordPhotoUpload("too_large")
		return nil, ErrPhotoTooLarge
	}
	if orig := strings.ToLower(filepath.Ext(filename)); orig != "" {
		ext = orig
	}

	name := fmt.Sprintf("photo_%s%s", recordID, ext)
	if err := s.files.Store(ctx, name, io.LimitReader(body, MaxPhotoBytes)); err != nil {
		observability.RecordPhotoUpload("error")
		return nil, err
	}
	record, err := s.records.UpdatePhoto(ctx, recordID, name)
	if err != nil {
		// A same-extension re-upload reuses the stored name; deleting it
		// here would orphan the reference the record still holds.
		if name != current.PhotoURL {
			s.files.Delete(ctx, name)
		}
		observability.RecordPhotoUpload("error")
		return nil, err
	}
	observability.RecordPhotoUpload("success")
	return record, nil
}

// Open streams a stored photo by filename.
func (s *PhotoService) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	return s.files.Open(ctx, filename)
}
