package handler

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/scribehub/api/internal/middleware"
	"github.com/scribehub/api/internal/model"
	"github.com/scribehub/api/internal/service"
	ws "github.com/scribehub/api/internal/websocket"
	"github.com/scribehub/api/pkg/response"
)

type RecordingHandler struct {
	service       *service.RecordingService
	hub           *ws.Hub
	maxUploadSize int64
}

func NewRecordingHandler(svc *service.RecordingService, hub *ws.Hub, maxUploadSize int64) *RecordingHandler {
	return &RecordingHandler{
		service:       svc,
		hub:           hub,
		maxUploadSize: maxUploadSize,
	}
}

// Upload handles POST /api/recordings/upload
// @Summary      Upload recording
// @Description  Accept an MP3 recording and start transcription in the background
// @Tags         Recordings
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "MP3 audio file"
// @Success      201 {object} model.UploadResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/recordings/upload [post]
func (h *RecordingHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "No file uploaded.", nil)
	}

	if h.maxUploadSize > 0 && file.Size > h.maxUploadSize {
		return response.ValidationError(c, "File too large", map[string]interface{}{
			"maxSize": h.maxUploadSize,
			"size":    file.Size,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return response.ServiceError(c, "Failed to read file")
	}

	result, err := h.service.Submit(c.Context(), middleware.GetUserID(c), file.Filename, file.Header.Get("Content-Type"), data)
	if err != nil {
		return handleServiceError(c, err)
	}

	return response.Created(c, result)
}

// List handles GET /api/recordings
// @Summary      List recordings
// @Description  Completed recordings of the caller, newest first
// @Tags         Recordings
// @Produce      json
// @Param        limit  query int    false "Page size (1-100, default 20)"
// @Param        cursor query string false "nextCursor from the previous page"
// @Success      200 {object} model.RecordingListResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/recordings [get]
func (h *RecordingHandler) List(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return response.ValidationError(c, "Invalid limit.", map[string]interface{}{
				"limit": raw,
			})
		}
		limit = n
	}

	result, err := h.service.List(c.Context(), middleware.GetUserID(c), limit, c.Query("cursor"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return response.OK(c, result)
}

// Status handles GET /api/recordings/:id/status
// @Summary      Recording status
// @Description  Lightweight polling endpoint
// @Tags         Recordings
// @Produce      json
// @Param        id path string true "Recording ID"
// @Success      200 {object} model.RecordingStatusResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/recordings/{id}/status [get]
func (h *RecordingHandler) Status(c *fiber.Ctx) error {
	result, err := h.service.Status(c.Context(), c.Params("id"), middleware.GetUserID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return response.OK(c, result)
}

// Detail handles GET /api/recordings/:id
// @Summary      Recording detail
// @Description  Full recording including transcription and summary
// @Tags         Recordings
// @Produce      json
// @Param        id path string true "Recording ID"
// @Success      200 {object} model.RecordingDetail
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/recordings/{id} [get]
func (h *RecordingHandler) Detail(c *fiber.Ctx) error {
	result, err := h.service.Detail(c.Context(), c.Params("id"), middleware.GetUserID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return response.OK(c, result)
}

// Watch serves GET /ws/recordings/:id. The caller must own the recording;
// the current status is pushed first, then every change.
func (h *RecordingHandler) Watch(c *websocket.Conn) {
	recordingID := c.Params("id")
	userID, _ := c.Locals(middleware.LocalUserID).(string)

	client, err := h.hub.Subscribe(c, recordingID, func() (model.RecordingStatus, error) {
		current, err := h.service.Status(context.Background(), recordingID, userID)
		if err != nil {
			return "", err
		}
		return current.Status, nil
	})
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			ws.RejectConnection(c, recordingID, response.CodeNotFound, "Recording not found.")
			return
		}
		ws.RejectConnection(c, recordingID, response.CodeServiceError, "Failed to load recording.")
		return
	}

	h.hub.HandleConnection(client)
}

// RequireUpgrade rejects plain HTTP requests on websocket routes
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
