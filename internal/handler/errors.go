package handler

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/scribehub/api/internal/service"
	"github.com/scribehub/api/pkg/response"
)

// handleServiceError maps service errors onto the JSON error envelope.
// Anything unrecognised is logged and reported as a 500.
func handleServiceError(c *fiber.Ctx, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return response.ValidationError(c, verr.Message, nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		return response.ValidationError(c, "Invalid credentials.", nil)
	case errors.Is(err, service.ErrUnsupportedMedia):
		return response.UnsupportedMedia(c, "Only MP3 audio files are supported.")
	case errors.Is(err, service.ErrConflict):
		return response.Conflict(c, "A recording is already being processed.")
	case errors.Is(err, service.ErrNotFound):
		return response.NotFound(c, "Recording not found.")
	case errors.Is(err, service.ErrUserNotFound):
		return response.NotFound(c, "User not found.")
	case errors.Is(err, service.ErrDispatch):
		return response.ServiceError(c, "Failed to schedule transcription.")
	}

	log.Printf("[handler] %s %s: %v", c.Method(), c.Path(), err)
	return response.ServiceError(c, "Internal server error.")
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		fields := make(map[string]string)
		for _, e := range validationErrors {
			fields[e.Field()] = e.Tag()
		}
		return fields
	}
	return nil
}
