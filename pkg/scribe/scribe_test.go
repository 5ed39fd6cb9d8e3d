package scribe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeAPI serves just enough of the API to drive a Session
type fakeAPI struct {
	mu            sync.Mutex
	statusCalls   int
	completeAfter int
	failStatusAt  int
	finalStatus   string
	uploads       int
	uploadName    string
	uploadType    string
	token         string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["password"] != "secret1" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":{"code":"VALIDATION_ERROR","message":"Invalid credentials."}}`)
			return
		}
		io.WriteString(w, `{"token":"tok-123"}`)
	})

	mux.HandleFunc("/api/recordings/upload", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.token = r.Header.Get("Authorization")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file.Close()
		f.uploads++
		f.uploadName = header.Filename
		f.uploadType = header.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"rec-1","status":"processing","message":"Upload accepted."}`)
	})

	mux.HandleFunc("/api/recordings/rec-1/status", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.statusCalls++
		n := f.statusCalls
		f.mu.Unlock()

		if n == f.failStatusAt {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"error":{"code":"SERVICE_ERROR","message":"boom"}}`)
			return
		}
		status := "processing"
		if n > f.completeAfter {
			status = f.finalStatus
		}
		io.WriteString(w, `{"id":"rec-1","status":"`+status+`"}`)
	})

	mux.HandleFunc("/api/recordings/rec-1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"rec-1","title":"Standup","status":"`+f.finalStatus+`","transcription":"hello","summary":"hi","durationSec":61,"duration":"01:01"}`)
	})

	mux.HandleFunc("/api/recordings", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("cursor") {
		case "":
			io.WriteString(w, `{"items":[{"id":"a"},{"id":"b"}],"nextCursor":"b"}`)
		case "b":
			io.WriteString(w, `{"items":[{"id":"c"}]}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":{"code":"VALIDATION_ERROR","message":"Invalid cursor."}}`)
		}
	})

	return mux
}

func (f *fakeAPI) seen() (uploads int, name, contentType, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads, f.uploadName, f.uploadType, f.token
}

func newFake(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name, contentType string
		ok                bool
	}{
		{"a.mp3", "audio/mpeg", true},
		{"A.MP3", "audio/mp3", true},
		{"a.mp3", "audio/mpeg; charset=binary", true},
		{"a.wav", "audio/mpeg", false},
		{"a.mp3", "audio/wav", false},
		{"mp3", "audio/mpeg", false},
	}
	for _, tt := range tests {
		err := ValidateFile(tt.name, tt.contentType)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateFile(%q, %q) = %v, want ok=%v", tt.name, tt.contentType, err, tt.ok)
		}
	}
}

func TestClient_LoginAndErrors(t *testing.T) {
	c := newFake(t, &fakeAPI{})

	_, err := c.Login(context.Background(), "ada@example.com", "nope")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("bad login err = %#v", err)
	}
	if c.Token() != "" {
		t.Fatal("token set after failed login")
	}

	token, err := c.Login(context.Background(), "ada@example.com", "secret1")
	if err != nil || token != "tok-123" || c.Token() != "tok-123" {
		t.Fatalf("login = %q, %v (stored %q)", token, err, c.Token())
	}
}

func TestClient_ListAll(t *testing.T) {
	c := newFake(t, &fakeAPI{})

	all, err := c.ListAll(context.Background(), 2)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	var ids []string
	for _, r := range all {
		ids = append(ids, r.ID)
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Fatalf("ids = %v, want a,b,c", ids)
	}

	_, err = c.List(context.Background(), 2, "zzz")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Invalid cursor." {
		t.Fatalf("bad cursor err = %v", err)
	}
}

func TestSession_UploadAndWait(t *testing.T) {
	api := &fakeAPI{completeAfter: 2, failStatusAt: 2, finalStatus: StatusCompleted}
	c := newFake(t, api)
	c.SetToken("tok-123")

	var states []State
	var pollErrs []error
	s := NewSession(c)
	s.Interval = 5 * time.Millisecond
	s.OnStateChange = func(st State, _ *Recording) { states = append(states, st) }
	s.OnPollError = func(err error) { pollErrs = append(pollErrs, err) }

	rec, err := s.Upload(context.Background(), "Standup.mp3", "audio/mpeg", strings.NewReader("ID3 fake"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if rec.ID != "rec-1" || rec.Title != "Standup" || rec.Status != StatusProcessing || rec.Summary != "" {
		t.Fatalf("optimistic recording = %+v", rec)
	}
	if _, name, ct, token := api.seen(); name != "Standup.mp3" || ct != "audio/mpeg" || token != "Bearer tok-123" {
		t.Fatalf("server saw %q %q %q", name, ct, token)
	}

	if _, err := s.Upload(context.Background(), "again.mp3", "audio/mpeg", strings.NewReader("x")); !errors.Is(err, ErrUploadInProgress) {
		t.Fatalf("second upload err = %v, want %v", err, ErrUploadInProgress)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if final.Status != StatusCompleted || final.Transcription != "hello" || final.Duration != "01:01" {
		t.Fatalf("final = %+v", final)
	}
	if s.State() != StateCompleted {
		t.Fatalf("state = %s", s.State())
	}
	if len(pollErrs) != 1 {
		t.Fatalf("poll errors = %v, want exactly one", pollErrs)
	}

	want := []State{StateUploading, StateProcessing, StateCompleted}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}

	// a finished session accepts the next upload
	if _, err := s.Upload(context.Background(), "next.mp3", "audio/mpeg", strings.NewReader("x")); err != nil {
		t.Fatalf("upload after completion: %v", err)
	}
}

func TestSession_Failed(t *testing.T) {
	api := &fakeAPI{finalStatus: StatusFailed}
	s := NewSession(newFake(t, api))
	s.Interval = time.Millisecond

	if _, err := s.Upload(context.Background(), "x.mp3", "audio/mpeg", strings.NewReader("x")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	final, err := s.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if final.Status != StatusFailed || s.State() != StateFailed {
		t.Fatalf("final = %+v state = %s", final, s.State())
	}
}

func TestSession_RejectsBeforeUpload(t *testing.T) {
	api := &fakeAPI{}
	s := NewSession(newFake(t, api))

	if _, err := s.Upload(context.Background(), "notes.wav", "audio/wav", strings.NewReader("x")); !errors.Is(err, ErrUnsupportedFile) {
		t.Fatalf("err = %v, want %v", err, ErrUnsupportedFile)
	}
	if uploads, _, _, _ := api.seen(); uploads != 0 || s.State() != StateIdle {
		t.Fatalf("uploads = %d state = %s", uploads, s.State())
	}
	if _, err := s.Wait(context.Background()); !errors.Is(err, ErrNoUpload) {
		t.Fatalf("wait err = %v, want %v", err, ErrNoUpload)
	}
}

func TestSession_WaitHonoursContext(t *testing.T) {
	api := &fakeAPI{completeAfter: 1 << 30, finalStatus: StatusCompleted}
	s := NewSession(newFake(t, api))
	s.Interval = time.Millisecond

	if _, err := s.Upload(context.Background(), "x.mp3", "audio/mpeg", strings.NewReader("x")); err != nil {
		t.Fatalf("upload: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("wait err = %v, want deadline exceeded", err)
	}
	if s.State() != StateProcessing {
		t.Fatalf("state = %s, want processing", s.State())
	}
}
