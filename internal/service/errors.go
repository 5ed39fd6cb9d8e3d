package service

import "errors"

var (
	ErrUnsupportedMedia   = errors.New("only MP3 audio files are supported")
	ErrConflict           = errors.New("a recording is already being processed")
	ErrNotFound           = errors.New("recording not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrDispatch           = errors.New("failed to schedule transcription")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError is a client input problem reported as 400
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(msg string) error {
	return &ValidationError{Message: msg}
}
