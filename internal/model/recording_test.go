package model

import (
	"encoding/json"
	"math"
	"testing"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{-5, "00:00"},
		{math.NaN(), "00:00"},
		{math.Inf(1), "00:00"},
		{59.9, "00:59"},
		{65, "01:05"},
		{3599, "59:59"},
		{3600, "01:00:00"},
		{3725.9, "01:02:05"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestTitleFromFileName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"meeting.mp3", "meeting"},
		{"archive.tar.mp3", "archive.tar"},
		{"/tmp/uploads/notes.mp3", "notes"},
		{`C:\Users\ada\call.mp3`, "call"},
		{" standup .mp3", "standup"},
		{".mp3", "Untitled Recording"},
		{"", "Untitled Recording"},
		{"   ", "Untitled Recording"},
	}

	for _, tt := range tests {
		if got := TitleFromFileName(tt.name); got != tt.want {
			t.Errorf("TitleFromFileName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestRecordingStatus(t *testing.T) {
	for _, s := range []RecordingStatus{RecordingStatusProcessing, RecordingStatusCompleted, RecordingStatusFailed} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if RecordingStatus("queued").Valid() {
		t.Error("unknown status should be invalid")
	}
	if RecordingStatusProcessing.IsTerminal() {
		t.Error("processing is not terminal")
	}
	if !RecordingStatusFailed.IsTerminal() || !RecordingStatusCompleted.IsTerminal() {
		t.Error("completed and failed are terminal")
	}
}

func TestRecordingEvents(t *testing.T) {
	data, err := json.Marshal(StatusEvent("rec-1", RecordingStatusProcessing))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"type":"status","recordingId":"rec-1","status":"processing"}` {
		t.Errorf("processing frame = %s", data)
	}

	if ev := StatusEvent("rec-1", RecordingStatusCompleted); !ev.Final {
		t.Error("completed frame should be final")
	}

	data, err = json.Marshal(ErrorEvent("rec-2", "NOT_FOUND", "Recording not found."))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"error","recordingId":"rec-2","error":{"code":"NOT_FOUND","message":"Recording not found."}}`
	if string(data) != want {
		t.Errorf("error frame = %s, want %s", data, want)
	}
}
