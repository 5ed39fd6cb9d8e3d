package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scribehub/api/internal/config"
)

func TestDeepgramClient_Listen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/listen" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("model") != "nova-2" || q.Get("language") != "en" || q.Get("smart_format") != "true" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if got := r.Header.Get("Authorization"); got != "Token dg-key" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "audio/mpeg" {
			t.Errorf("content type = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "audio" {
			t.Errorf("body = %q", body)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"metadata":{"request_id":"r-1","duration":61.5,"channels":1},
			"results":{"channels":[{"alternatives":[{"transcript":"hello world","confidence":0.98}]}]}}`)
	}))
	defer srv.Close()

	c := NewDeepgramClient(&config.DeepgramConfig{APIKey: "dg-key", BaseURL: srv.URL + "/v1", Model: "nova-2", Language: "en"})
	resp, err := c.Listen(context.Background(), []byte("audio"), "audio/mpeg")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if resp.Transcript() != "hello world" {
		t.Errorf("transcript = %q", resp.Transcript())
	}
	if resp.Metadata.Duration != 61.5 {
		t.Errorf("duration = %v", resp.Metadata.Duration)
	}
}

func TestDeepgramClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"err_code":"INVALID_AUTH"}`)
	}))
	defer srv.Close()

	c := NewDeepgramClient(&config.DeepgramConfig{APIKey: "bad", BaseURL: srv.URL})
	_, err := c.Listen(context.Background(), []byte("audio"), "audio/mpeg")
	if err == nil || !strings.Contains(err.Error(), "status 401") {
		t.Fatalf("err = %v, want status 401", err)
	}
}

func TestDeepgramClient_IsConfigured(t *testing.T) {
	if NewDeepgramClient(&config.DeepgramConfig{}).IsConfigured() {
		t.Error("client without key should not be configured")
	}
	var nilClient *DeepgramClient
	if nilClient.IsConfigured() {
		t.Error("nil client should not be configured")
	}
}
