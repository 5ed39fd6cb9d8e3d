package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/scribehub/api/internal/auth"
	"github.com/scribehub/api/internal/client"
	"github.com/scribehub/api/internal/handler"
	"github.com/scribehub/api/internal/middleware"
	"github.com/scribehub/api/internal/repository/redisrepo"
	"github.com/scribehub/api/internal/service"
	ws "github.com/scribehub/api/internal/websocket"
	"github.com/scribehub/api/internal/worker"
)

const testJWTSecret = "test-secret-for-e2e"

var mp3Data = append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), make([]byte, 4096)...)

// queuedDispatcher holds transcription tasks until the test drains them
// through the asynq handler, standing in for the worker server.
type queuedDispatcher struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (d *queuedDispatcher) DispatchTranscription(ctx context.Context, recordingID string) error {
	task, err := service.NewTranscribeTask(recordingID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.tasks = append(d.tasks, task)
	d.mu.Unlock()
	return nil
}

func (d *queuedDispatcher) take() []*asynq.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	tasks := d.tasks
	d.tasks = nil
	return tasks
}

// testApp holds all components needed for testing
type testApp struct {
	app        *fiber.App
	dispatcher *queuedDispatcher
	transcribe *worker.TranscribeWorker
	sweep      *worker.SweepWorker
}

// drain runs every queued transcription task
func (ta *testApp) drain(t *testing.T) {
	t.Helper()
	for _, task := range ta.dispatcher.take() {
		if err := ta.transcribe.ProcessTask(context.Background(), task); err != nil {
			t.Logf("task %s: %v", task.Type(), err)
		}
	}
}

// setupApp creates a Fiber app wired like main.go, backed by miniredis,
// a temp upload dir and the mock transcriber.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	storage, err := client.NewLocalClient(t.TempDir())
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}

	validate := validator.New()

	hub := ws.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	dispatcher := &queuedDispatcher{}
	recordingService := service.NewRecordingService(
		redisrepo.NewRecordingRepository(redisClient),
		storage,
		service.NewTranscriber(nil, nil),
		dispatcher,
		hub,
		service.RecordingOptions{
			TranscriptionTimeout: 5 * time.Second,
			StuckAfter:           15 * time.Minute,
		},
	)
	authService := service.NewAuthService(redisrepo.NewUserRepository(redisClient), testJWTSecret, time.Hour)
	authenticator := auth.NewAuthenticator(nil, testJWTSecret)

	authHandler := handler.NewAuthHandler(authService, authenticator, validate)
	recordingHandler := handler.NewRecordingHandler(recordingService, hub, 50*1024*1024)

	authMiddleware := middleware.NewAuthMiddleware(authenticator)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":    redisClient.Ping(c.Context()).Err() == nil,
				"storage":  "redis",
				"blob":     "local",
				"deepgram": false,
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api")

	// Use very high rate limits so tests don't get blocked
	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", rateLimiter.AuthLimit(10000), authHandler.Register)
	authRoutes.Post("/login", rateLimiter.AuthLimit(10000), authHandler.Login)
	authRoutes.Get("/me", authMiddleware.Authenticate(), authHandler.Me)

	recordings := api.Group("/recordings", authMiddleware.Authenticate())
	recordings.Post("/upload", rateLimiter.UploadLimit(10000), recordingHandler.Upload)
	recordings.Get("/", recordingHandler.List)
	recordings.Get("/:id/status", recordingHandler.Status)
	recordings.Get("/:id", recordingHandler.Detail)

	return &testApp{
		app:        app,
		dispatcher: dispatcher,
		transcribe: worker.NewTranscribeWorker(recordingService),
		sweep:      worker.NewSweepWorker(recordingService),
	}
}

// generateToken creates a session token for test requests.
func generateToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.IssueToken(userID, userID+"@example.com", testJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs a request as the given token.
func doAuthRequest(app *fiber.App, token, method, path, body string) (*http.Response, error) {
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// uploadRequest builds a multipart/form-data upload.
func uploadRequest(t *testing.T, token, fileName, contentType string, data []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	partHeader.Set("Content-Type", contentType)
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	_, _ = part.Write(data)
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/recordings/upload", &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// errorCode extracts error.code from an error envelope.
func errorCode(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}
