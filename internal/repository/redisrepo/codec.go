package redisrepo

import (
	"fmt"
	"strconv"
	"time"

	"github.com/scribehub/api/internal/model"
)

// score is the sorted set score for a creation time: unix milliseconds.
func score(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func encodeRecording(rec *model.Recording) []interface{} {
	pairs := []interface{}{
		"id", rec.ID,
		"userId", rec.UserID,
		"title", rec.Title,
		"fileName", rec.FileName,
		"summary", rec.Summary,
		"transcription", rec.Transcription,
		"fileUrl", rec.FileURL,
		"durationSec", strconv.FormatFloat(rec.DurationSec, 'f', -1, 64),
		"status", string(rec.Status),
		"createdAt", formatTime(rec.CreatedAt),
		"updatedAt", formatTime(rec.UpdatedAt),
	}
	if rec.CompletedAt != nil {
		pairs = append(pairs, "completedAt", formatTime(*rec.CompletedAt))
	}
	return pairs
}

func decodeRecording(f map[string]string) (*model.Recording, error) {
	rec := &model.Recording{
		ID:            f["id"],
		UserID:        f["userId"],
		Title:         f["title"],
		FileName:      f["fileName"],
		Summary:       f["summary"],
		Transcription: f["transcription"],
		FileURL:       f["fileUrl"],
		Status:        model.RecordingStatus(f["status"]),
	}

	if !rec.Status.Valid() {
		return nil, fmt.Errorf("recording %s: unknown status %q", rec.ID, f["status"])
	}

	var err error
	if v := f["durationSec"]; v != "" {
		if rec.DurationSec, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("recording %s: bad durationSec: %w", rec.ID, err)
		}
	}
	if rec.CreatedAt, err = parseTime(f["createdAt"]); err != nil {
		return nil, fmt.Errorf("recording %s: bad createdAt: %w", rec.ID, err)
	}
	if rec.UpdatedAt, err = parseTime(f["updatedAt"]); err != nil {
		return nil, fmt.Errorf("recording %s: bad updatedAt: %w", rec.ID, err)
	}
	if v := f["completedAt"]; v != "" {
		t, err := parseTime(v)
		if err != nil {
			return nil, fmt.Errorf("recording %s: bad completedAt: %w", rec.ID, err)
		}
		rec.CompletedAt = &t
	}
	return rec, nil
}
