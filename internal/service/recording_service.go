package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/scribehub/api/internal/client"
	"github.com/scribehub/api/internal/model"
	"github.com/scribehub/api/internal/repository"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	maxStoredNameLen = 100
)

var allowedContentTypes = map[string]bool{
	"audio/mpeg": true,
	"audio/mp3":  true,
}

// Broadcaster pushes status changes to live subscribers
type Broadcaster interface {
	BroadcastStatus(recordingID string, status model.RecordingStatus)
}

// RecordingOptions tunes the processing pipeline
type RecordingOptions struct {
	// TranscriptionTimeout bounds download plus transcription; zero disables it
	TranscriptionTimeout time.Duration
	// StuckAfter is how long a recording may stay processing before the sweep fails it
	StuckAfter time.Duration
}

// RecordingService accepts uploads, processes them in the background and
// answers status, detail and list queries scoped to the owner.
type RecordingService struct {
	recordings  repository.RecordingRepository
	storage     client.StorageClient
	transcriber Transcriber
	dispatcher  Dispatcher
	broadcaster Broadcaster
	opts        RecordingOptions
	now         func() time.Time
}

func NewRecordingService(
	recordings repository.RecordingRepository,
	storage client.StorageClient,
	transcriber Transcriber,
	dispatcher Dispatcher,
	broadcaster Broadcaster,
	opts RecordingOptions,
) *RecordingService {
	return &RecordingService{
		recordings:  recordings,
		storage:     storage,
		transcriber: transcriber,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		opts:        opts,
		now:         time.Now,
	}
}

// Submit validates and stores an upload, creates the processing record and
// schedules transcription. It returns without waiting for the result.
func (s *RecordingService) Submit(ctx context.Context, userID, fileName, contentType string, data []byte) (*model.UploadResponse, error) {
	if len(data) == 0 {
		return nil, newValidationError("No file uploaded.")
	}
	if err := ValidateAudio(fileName, contentType, data); err != nil {
		return nil, err
	}

	busy, err := s.recordings.HasProcessing(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check processing recordings: %w", err)
	}
	if busy {
		return nil, ErrConflict
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate id: %w", err)
	}
	now := s.now().UTC().Truncate(time.Millisecond)

	key := fmt.Sprintf("recordings/%s/%d-%s-%s", userID, now.UnixMilli(), id.String()[24:], sanitizeFileName(fileName))
	location, err := s.storage.Upload(ctx, key, bytes.NewReader(data), "audio/mpeg")
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	rec := &model.Recording{
		ID:        id.String(),
		UserID:    userID,
		FileName:  fileName,
		FileURL:   location,
		Status:    model.RecordingStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.recordings.CreateIfIdle(ctx, rec); err != nil {
		s.deleteBlob(location)
		if errors.Is(err, repository.ErrProcessingExists) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	if err := s.dispatcher.DispatchTranscription(ctx, rec.ID); err != nil {
		log.Printf("Failed to dispatch recording %s: %v", rec.ID, err)
		if ferr := s.recordings.Fail(context.WithoutCancel(ctx), rec.ID, s.now().UTC()); ferr != nil {
			log.Printf("Failed to mark recording %s as failed: %v", rec.ID, ferr)
		}
		return nil, ErrDispatch
	}

	log.Printf("Recording %s accepted for user %s", rec.ID, userID)
	return &model.UploadResponse{
		ID:      rec.ID,
		Status:  model.RecordingStatusProcessing,
		Message: "Recording uploaded. Transcription in progress.",
	}, nil
}

// Process runs transcription for one recording and records the terminal
// state. Re-delivery for a recording that is already terminal is a no-op.
func (s *RecordingService) Process(ctx context.Context, id string) error {
	rec, err := s.recordings.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load recording: %w", err)
	}
	if rec.Status.IsTerminal() {
		log.Printf("Recording %s already %s, skipping", id, rec.Status)
		return nil
	}

	log.Printf("Starting transcription: %s", id)

	workCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.opts.TranscriptionTimeout > 0 {
		workCtx, cancel = context.WithTimeout(ctx, s.opts.TranscriptionTimeout)
	}
	defer cancel()

	transcript, err := s.transcribe(workCtx, rec)
	if err != nil {
		s.fail(ctx, rec.ID)
		return fmt.Errorf("transcription failed: %w", err)
	}

	fields := model.CompletedFields{
		Title:         model.TitleFromFileName(rec.FileName),
		Transcription: transcript.Text,
		Summary:       transcript.Summary,
		DurationSec:   transcript.DurationSec,
	}

	// the terminal write must land even if the worker context is ending
	writeCtx := context.WithoutCancel(ctx)
	if err := s.recordings.Complete(writeCtx, rec.ID, fields, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrAlreadyTerminal) {
			log.Printf("Recording %s reached a terminal state elsewhere", rec.ID)
			return nil
		}
		s.fail(ctx, rec.ID)
		return fmt.Errorf("failed to save transcript: %w", err)
	}

	s.broadcast(rec.ID, model.RecordingStatusCompleted)
	log.Printf("Recording %s completed", rec.ID)
	return nil
}

func (s *RecordingService) transcribe(ctx context.Context, rec *model.Recording) (*Transcript, error) {
	audio, err := s.storage.Download(ctx, rec.FileURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load audio: %w", err)
	}

	transcript, err := s.transcriber.Transcribe(ctx, audio, "audio/mpeg")
	if err != nil {
		return nil, err
	}
	if transcript == nil || strings.TrimSpace(transcript.Text) == "" {
		return nil, errors.New("empty transcript")
	}
	return transcript, nil
}

func (s *RecordingService) fail(ctx context.Context, id string) {
	err := s.recordings.Fail(context.WithoutCancel(ctx), id, s.now().UTC())
	switch {
	case err == nil:
		s.broadcast(id, model.RecordingStatusFailed)
		log.Printf("Recording %s failed", id)
	case errors.Is(err, repository.ErrAlreadyTerminal):
		log.Printf("Recording %s reached a terminal state elsewhere", id)
	default:
		log.Printf("Failed to mark recording %s as failed: %v", id, err)
	}
}

// Status returns the lifecycle state of a recording owned by userID
func (s *RecordingService) Status(ctx context.Context, id, userID string) (*model.RecordingStatusResponse, error) {
	rec, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return &model.RecordingStatusResponse{ID: rec.ID, Status: rec.Status}, nil
}

// Detail returns the full recording owned by userID
func (s *RecordingService) Detail(ctx context.Context, id, userID string) (*model.RecordingDetail, error) {
	rec, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return model.NewRecordingDetail(rec), nil
}

// List returns one page of the owner's completed recordings, newest first.
// NextCursor is set when the page is full.
func (s *RecordingService) List(ctx context.Context, userID string, limit int, cursor string) (*model.RecordingListResponse, error) {
	limit = ClampLimit(limit)

	items, err := s.recordings.ListCompleted(ctx, userID, limit, cursor)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, newValidationError("Invalid cursor.")
		}
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}

	resp := &model.RecordingListResponse{Items: items}
	if resp.Items == nil {
		resp.Items = []*model.Recording{}
	}
	if len(items) == limit {
		resp.NextCursor = items[len(items)-1].ID
	}
	return resp, nil
}

// SweepStuck fails recordings that stayed processing longer than StuckAfter
// and returns how many it failed.
func (s *RecordingService) SweepStuck(ctx context.Context) (int, error) {
	if s.opts.StuckAfter <= 0 {
		return 0, nil
	}

	now := s.now().UTC()
	ids, err := s.recordings.ListStuck(ctx, now.Add(-s.opts.StuckAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to list stuck recordings: %w", err)
	}

	swept := 0
	for _, id := range ids {
		err := s.recordings.Fail(ctx, id, now)
		if err != nil {
			if errors.Is(err, repository.ErrAlreadyTerminal) || errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return swept, fmt.Errorf("failed to fail recording %s: %w", id, err)
		}
		swept++
		s.broadcast(id, model.RecordingStatusFailed)
		log.Printf("Recording %s stuck in processing, marked failed", id)
	}
	return swept, nil
}

func (s *RecordingService) getOwned(ctx context.Context, id, userID string) (*model.Recording, error) {
	rec, err := s.recordings.GetOwned(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load recording: %w", err)
	}
	return rec, nil
}

func (s *RecordingService) broadcast(id string, status model.RecordingStatus) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastStatus(id, status)
	}
}

func (s *RecordingService) deleteBlob(location string) {
	if err := s.storage.Delete(context.Background(), location); err != nil {
		log.Printf("Failed to delete orphaned upload %s: %v", location, err)
	}
}

// ClampLimit applies the default page size and bounds a requested limit
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// ValidateAudio accepts MP3 uploads only: the extension, the declared
// content type and the sniffed content must all agree.
func ValidateAudio(fileName, contentType string, data []byte) error {
	if !strings.EqualFold(filepath.Ext(fileName), ".mp3") {
		return ErrUnsupportedMedia
	}

	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if !allowedContentTypes[mediaType] {
		return ErrUnsupportedMedia
	}

	if !mimetype.Detect(data).Is("audio/mpeg") {
		return ErrUnsupportedMedia
	}
	return nil
}

func sanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if len(out) > maxStoredNameLen {
		out = out[len(out)-maxStoredNameLen:]
	}
	if out == "" {
		out = "recording.mp3"
	}
	return out
}
