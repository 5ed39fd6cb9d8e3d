// Package repository defines the persistence contracts for recordings and
// users. Implementations live in the redisrepo and pgrepo subpackages.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/scribehub/api/internal/model"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrProcessingExists is returned by CreateIfIdle when the owner already
	// has a recording in the processing state.
	ErrProcessingExists = errors.New("a recording is already being processed")
	// ErrAlreadyTerminal is returned when a transition targets a recording
	// that already left the processing state.
	ErrAlreadyTerminal = errors.New("recording already in terminal state")
	// ErrInvalidCursor is returned when a pagination cursor does not refer to
	// a completed recording of the owner.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrEmailTaken is returned when registering an email twice.
	ErrEmailTaken = errors.New("email already registered")
)

// RecordingRepository persists recordings. Every status transition is a
// single conditional write on status == processing.
type RecordingRepository interface {
	// CreateIfIdle stores rec unless its owner already has a processing record.
	CreateIfIdle(ctx context.Context, rec *model.Recording) error
	// HasProcessing reports whether userID currently has a processing record.
	HasProcessing(ctx context.Context, userID string) (bool, error)
	Get(ctx context.Context, id string) (*model.Recording, error)
	// GetOwned returns ErrNotFound when the record exists but belongs to someone else.
	GetOwned(ctx context.Context, id, userID string) (*model.Recording, error)
	Complete(ctx context.Context, id string, fields model.CompletedFields, at time.Time) error
	Fail(ctx context.Context, id string, at time.Time) error
	// ListCompleted returns up to limit completed records newest first,
	// strictly after cursor when cursor is not empty.
	ListCompleted(ctx context.Context, userID string, limit int, cursor string) ([]*model.Recording, error)
	// ListStuck returns ids of processing records created before cutoff.
	ListStuck(ctx context.Context, cutoff time.Time) ([]string, error)
}

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}
