package model

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"
)

// RecordingStatus is the lifecycle state of an uploaded recording
type RecordingStatus string

const (
	RecordingStatusProcessing RecordingStatus = "processing"
	RecordingStatusCompleted  RecordingStatus = "completed"
	RecordingStatusFailed     RecordingStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s RecordingStatus) IsTerminal() bool {
	return s == RecordingStatusCompleted || s == RecordingStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s RecordingStatus) Valid() bool {
	switch s {
	case RecordingStatusProcessing, RecordingStatusCompleted, RecordingStatusFailed:
		return true
	}
	return false
}

// Recording is the persisted record of one upload and its processing outcome
type Recording struct {
	ID            string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID        string          `json:"userId" gorm:"type:varchar(64);not null;index:idx_recordings_user_created,priority:1;uniqueIndex:idx_recordings_one_processing,where:status = 'processing'"`
	Title         string          `json:"title"`
	FileName      string          `json:"fileName"`
	Summary       string          `json:"summary"`
	Transcription string          `json:"transcription"`
	FileURL       string          `json:"fileUrl" gorm:"not null"`
	DurationSec   float64         `json:"durationSec"`
	Status        RecordingStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	CreatedAt     time.Time       `json:"createdAt" gorm:"index:idx_recordings_user_created,priority:2,sort:desc"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

// CompletedFields carries the outputs written by the success transition
type CompletedFields struct {
	Title         string
	Transcription string
	Summary       string
	DurationSec   float64
}

// RecordingDetail is the full record plus a display duration
type RecordingDetail struct {
	*Recording
	Duration string `json:"duration"`
}

// NewRecordingDetail wraps a record for the detail endpoint
func NewRecordingDetail(r *Recording) *RecordingDetail {
	return &RecordingDetail{Recording: r, Duration: FormatDuration(r.DurationSec)}
}

// UploadResponse is returned as soon as an upload has been accepted
type UploadResponse struct {
	ID      string          `json:"id"`
	Status  RecordingStatus `json:"status"`
	Message string          `json:"message"`
}

// RecordingStatusResponse is the lightweight polling response
type RecordingStatusResponse struct {
	ID     string          `json:"id"`
	Status RecordingStatus `json:"status"`
}

// RecordingListResponse is one page of completed recordings
type RecordingListResponse struct {
	Items      []*Recording `json:"items"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

// TitleFromFileName strips directory and extension from an uploaded name.
func TitleFromFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	title := strings.TrimSuffix(base, filepath.Ext(base))
	title = strings.TrimSpace(title)
	if title == "" || title == "." || title == "/" {
		return "Untitled Recording"
	}
	return title
}

// FormatDuration renders seconds as mm:ss, or hh:mm:ss from one hour up.
func FormatDuration(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "00:00"
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
