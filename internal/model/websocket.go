package model

// EventType tags every frame pushed to recording watchers
type EventType string

const (
	EventStatus EventType = "status"
	EventError  EventType = "error"
	EventPing   EventType = "ping"
	EventPong   EventType = "pong"
)

// RecordingEvent is the single frame shape used on /ws/recordings/:id.
// Status frames carry Status and Final; error frames carry Error.
type RecordingEvent struct {
	Type        EventType       `json:"type"`
	RecordingID string          `json:"recordingId,omitempty"`
	Status      RecordingStatus `json:"status,omitempty"`
	Final       bool            `json:"final,omitempty"`
	Error       *ErrorPayload   `json:"error,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func StatusEvent(recordingID string, status RecordingStatus) RecordingEvent {
	return RecordingEvent{
		Type:        EventStatus,
		RecordingID: recordingID,
		Status:      status,
		Final:       status.IsTerminal(),
	}
}

func ErrorEvent(recordingID, code, message string) RecordingEvent {
	return RecordingEvent{
		Type:        EventError,
		RecordingID: recordingID,
		Error:       &ErrorPayload{Code: code, Message: message},
	}
}
