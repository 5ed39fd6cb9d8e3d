// Package response renders the JSON envelopes shared by every endpoint.
// Errors always look like {"error":{"code":...,"message":...}}.
package response

import "github.com/gofiber/fiber/v2"

const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeUnsupportedMedia = "UNSUPPORTED_MEDIA"
	CodeConflict         = "CONFLICT"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeNotFound         = "NOT_FOUND"
	CodeRateLimited      = "RATE_LIMITED"
	CodeServiceError     = "SERVICE_ERROR"
)

// Rejected uploads (bad media, one already processing) are client errors,
// so they share 400 with validation failures.
var statusByCode = map[string]int{
	CodeValidationError:  fiber.StatusBadRequest,
	CodeUnsupportedMedia: fiber.StatusBadRequest,
	CodeConflict:         fiber.StatusBadRequest,
	CodeUnauthorized:     fiber.StatusUnauthorized,
	CodeNotFound:         fiber.StatusNotFound,
	CodeRateLimited:      fiber.StatusTooManyRequests,
	CodeServiceError:     fiber.StatusInternalServerError,
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Error writes an error envelope with an explicit status. Prefer the
// code-specific helpers below; this exists for the fiber error handler.
func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message, Details: details},
	})
}

func withCode(c *fiber.Ctx, code, message string, details interface{}) error {
	status, ok := statusByCode[code]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	return Error(c, status, code, message, details)
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return withCode(c, CodeValidationError, message, details)
}

func UnsupportedMedia(c *fiber.Ctx, message string) error {
	return withCode(c, CodeUnsupportedMedia, message, nil)
}

func Conflict(c *fiber.Ctx, message string) error {
	return withCode(c, CodeConflict, message, nil)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return withCode(c, CodeUnauthorized, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	return withCode(c, CodeNotFound, message, nil)
}

func RateLimited(c *fiber.Ctx) error {
	return withCode(c, CodeRateLimited, "Too many requests, slow down.", nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return withCode(c, CodeServiceError, message, nil)
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(data)
}

func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}
