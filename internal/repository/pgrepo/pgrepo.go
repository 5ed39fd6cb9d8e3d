// Package pgrepo stores recordings and users in Postgres through GORM.
package pgrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/scribehub/api/internal/model"
	"github.com/scribehub/api/internal/repository"
)

// Open connects to Postgres and migrates the schema
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates the recordings and users tables with their indexes,
// including the partial unique index that allows one processing record per owner.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}, &model.Recording{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// RecordingRepository implements repository.RecordingRepository with GORM
type RecordingRepository struct {
	DB *gorm.DB
}

func NewRecordingRepository(db *gorm.DB) *RecordingRepository {
	return &RecordingRepository{DB: db}
}

func (r *RecordingRepository) CreateIfIdle(ctx context.Context, rec *model.Recording) error {
	err := r.DB.WithContext(ctx).Create(rec).Error
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrProcessingExists
		}
		return fmt.Errorf("failed to create recording: %w", err)
	}
	return nil
}

func (r *RecordingRepository) HasProcessing(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Recording{}).
		Where("user_id = ? AND status = ?", userID, model.RecordingStatusProcessing).
		Count(&count).Error
	return count > 0, err
}

func (r *RecordingRepository) Get(ctx context.Context, id string) (*model.Recording, error) {
	rec := &model.Recording{}
	if err := r.DB.WithContext(ctx).First(rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (r *RecordingRepository) GetOwned(ctx context.Context, id, userID string) (*model.Recording, error) {
	rec := &model.Recording{}
	err := r.DB.WithContext(ctx).First(rec, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (r *RecordingRepository) Complete(ctx context.Context, id string, fields model.CompletedFields, at time.Time) error {
	return r.transition(ctx, id, map[string]interface{}{
		"status":        model.RecordingStatusCompleted,
		"title":         fields.Title,
		"transcription": fields.Transcription,
		"summary":       fields.Summary,
		"duration_sec":  fields.DurationSec,
		"updated_at":    at,
		"completed_at":  at,
	})
}

func (r *RecordingRepository) Fail(ctx context.Context, id string, at time.Time) error {
	return r.transition(ctx, id, map[string]interface{}{
		"status":       model.RecordingStatusFailed,
		"updated_at":   at,
		"completed_at": at,
	})
}

// transition is one conditional UPDATE; zero affected rows means the record
// is missing or already terminal.
func (r *RecordingRepository) transition(ctx context.Context, id string, updates map[string]interface{}) error {
	res := r.DB.WithContext(ctx).Model(&model.Recording{}).
		Where("id = ? AND status = ?", id, model.RecordingStatusProcessing).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update recording: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return repository.ErrAlreadyTerminal
}

func (r *RecordingRepository) ListCompleted(ctx context.Context, userID string, limit int, cursor string) ([]*model.Recording, error) {
	items := []*model.Recording{}
	if limit <= 0 {
		return items, nil
	}

	q := r.DB.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.RecordingStatusCompleted)

	if cursor != "" {
		last := &model.Recording{}
		err := r.DB.WithContext(ctx).
			First(last, "id = ? AND user_id = ? AND status = ?", cursor, userID, model.RecordingStatusCompleted).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, repository.ErrInvalidCursor
			}
			return nil, err
		}
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", last.CreatedAt, last.CreatedAt, last.ID)
	}

	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *RecordingRepository) ListStuck(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := r.DB.WithContext(ctx).Model(&model.Recording{}).
		Where("status = ? AND created_at < ?", model.RecordingStatusProcessing, cutoff).
		Pluck("id", &ids).Error
	return ids, err
}

// UserRepository implements repository.UserRepository with GORM
type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	user.Email = strings.ToLower(user.Email)
	if err := r.DB.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return repository.ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "email = ?", strings.ToLower(email))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *UserRepository) first(ctx context.Context, query string, args ...interface{}) (*model.User, error) {
	user := &model.User{}
	if err := r.DB.WithContext(ctx).Where(query, args...).First(user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// isUniqueViolation matches unique constraint errors from Postgres (SQLSTATE
// 23505) and SQLite, with or without TranslateError enabled.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "23505") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}
