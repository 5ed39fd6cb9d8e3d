package scribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultPollInterval is how often Wait asks for the status
const DefaultPollInterval = 2 * time.Second

var (
	ErrUnsupportedFile  = errors.New("scribe: only MP3 audio files are supported")
	ErrUploadInProgress = errors.New("scribe: a recording is already being uploaded or processed")
	ErrNoUpload         = errors.New("scribe: nothing has been uploaded")
)

// State is where a Session is in the upload lifecycle
type State string

const (
	StateIdle       State = "idle"
	StateUploading  State = "uploading"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// ValidateFile applies the server's upload rules before any bytes are sent
func ValidateFile(fileName, contentType string) error {
	if !strings.EqualFold(filepath.Ext(fileName), ".mp3") {
		return ErrUnsupportedFile
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if mediaType != "audio/mpeg" && mediaType != "audio/mp3" {
		return ErrUnsupportedFile
	}
	return nil
}

// Session uploads one recording at a time and tracks it to completion.
// Hooks are called synchronously from Upload and Wait.
type Session struct {
	client *Client

	// Interval between status polls; DefaultPollInterval when zero
	Interval time.Duration
	// OnStateChange observes every transition with a snapshot of the recording
	OnStateChange func(State, *Recording)
	// OnPollError observes status or detail failures; polling continues
	OnPollError func(error)

	mu        sync.Mutex
	state     State
	recording *Recording
}

func NewSession(client *Client) *Session {
	return &Session{
		client: client,
		state:  StateIdle,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Recording returns a copy of the tracked recording, or nil before an upload
func (s *Session) Recording() *Recording {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRecording(s.recording)
}

// Upload sends the file and moves the session to processing. The returned
// recording is optimistic until Wait reconciles it with the server.
func (s *Session) Upload(ctx context.Context, fileName, contentType string, r io.Reader) (*Recording, error) {
	if err := ValidateFile(fileName, contentType); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state == StateUploading || s.state == StateProcessing {
		s.mu.Unlock()
		return nil, ErrUploadInProgress
	}
	prevState, prevRecording := s.state, s.recording
	s.state = StateUploading
	s.mu.Unlock()
	s.notify(StateUploading, nil)

	resp, err := s.client.Upload(ctx, fileName, contentType, r)
	if err != nil {
		s.mu.Lock()
		s.state, s.recording = prevState, prevRecording
		s.mu.Unlock()
		s.notify(prevState, copyRecording(prevRecording))
		return nil, err
	}

	now := time.Now().UTC()
	rec := &Recording{
		ID:        resp.ID,
		Title:     titleFromFileName(fileName),
		FileName:  fileName,
		Status:    StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.state = StateProcessing
	s.recording = rec
	s.mu.Unlock()
	s.notify(StateProcessing, copyRecording(rec))

	return copyRecording(rec), nil
}

// Wait polls until the recording reaches a terminal status or ctx is done.
// Poll errors never end the wait.
func (s *Session) Wait(ctx context.Context) (*Recording, error) {
	s.mu.Lock()
	state, rec := s.state, copyRecording(s.recording)
	s.mu.Unlock()

	switch state {
	case StateCompleted, StateFailed:
		return rec, nil
	case StateProcessing:
	default:
		return nil, ErrNoUpload
	}

	interval := s.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return rec, ctx.Err()
		case <-timer.C:
		}

		status, err := s.client.Status(ctx, rec.ID)
		if err != nil {
			if ctx.Err() != nil {
				return rec, ctx.Err()
			}
			s.pollError(fmt.Errorf("status %s: %w", rec.ID, err))
			timer.Reset(interval)
			continue
		}

		if status.Status != StatusCompleted && status.Status != StatusFailed {
			timer.Reset(interval)
			continue
		}

		final := s.reconcile(ctx, rec, status.Status)
		next := StateCompleted
		if final.Status == StatusFailed {
			next = StateFailed
		}

		s.mu.Lock()
		s.state = next
		s.recording = final
		s.mu.Unlock()
		s.notify(next, copyRecording(final))

		return copyRecording(final), nil
	}
}

// reconcile replaces the optimistic record with the server's. If the detail
// cannot be fetched the local copy keeps its fields and takes the status.
func (s *Session) reconcile(ctx context.Context, local *Recording, status string) *Recording {
	detail, err := s.client.Recording(ctx, local.ID)
	if err == nil {
		return detail
	}
	s.pollError(fmt.Errorf("recording %s: %w", local.ID, err))

	out := copyRecording(local)
	out.Status = status
	return out
}

func (s *Session) notify(state State, rec *Recording) {
	if s.OnStateChange != nil {
		s.OnStateChange(state, rec)
	}
}

func (s *Session) pollError(err error) {
	if s.OnPollError != nil {
		s.OnPollError(err)
	}
}

func copyRecording(r *Recording) *Recording {
	if r == nil {
		return nil
	}
	out := *r
	return &out
}

func titleFromFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	title := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if title == "" || title == "." || title == "/" {
		return "Untitled Recording"
	}
	return title
}
