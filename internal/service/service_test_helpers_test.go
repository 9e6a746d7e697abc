package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/delcom/healthtrack/internal/domain"
	"github.com/delcom/healthtrack/internal/repository"
	"github.com/delcom/healthtrack/internal/security"
	"github.com/delcom/healthtrack/internal/storage"
)

func newRedisClientForTest(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	return server, client
}

func newDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.AuthToken{}, &domain.HealthRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newCodecForTest() *security.TokenCodec {
	return security.NewTokenCodec("0123456789abcdef0123456789abcdef", "healthtrack", 2*time.Hour)
}

// memFileStore is an in-memory FileStore for service tests.
type memFileStore struct {
	files   map[string][]byte
	deleted []string
}

func newMemFileStore() *memFileStore {
	return &memFileStore{files: make(map[string][]byte)}
}

func (s *memFileStore) Store(_ context.Context, name string, contents io.Reader) error {
	b, err := io.ReadAll(contents)
	if err != nil {
		return err
	}
	s.files[name] = b
	return nil
}

func (s *memFileStore) Delete(_ context.Context, name string) bool {
	if _, ok := s.files[name]; !ok {
		s.deleted = append(s.deleted, name)
		return false
	}
	delete(s.files, name)
	s.deleted = append(s.deleted, name)
	return true
}

func (s *memFileStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	b, ok := s.files[name]
	if !ok {
		return nil, storage.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *memFileStore) Exists(_ context.Context, name string) bool {
	_, ok := s.files[name]
	return ok
}

// trackingUserRepo counts lookups so gate ordering can be asserted.
type trackingUserRepo struct {
	repository.UserRepository
	findByIDCalls int
}

func (r *trackingUserRepo) FindByID(id uuid.UUID) (*domain.User, error) {
	r.findByIDCalls++
	return r.UserRepository.FindByID(id)
}

func createUserForTest(t *testing.T, db *gorm.DB, email, password string) *domain.User {
	t.Helper()
	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &domain.User{Name: "Test User", Email: email, PasswordHash: hash}
	if err := repository.NewUserRepository(db).Create(user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}
