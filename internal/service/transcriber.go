package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/scribehub/api/internal/client"
)

// Transcript is the output of one transcription
type Transcript struct {
	Text        string
	Summary     string
	DurationSec float64
}

// Transcriber turns audio into text plus a summary
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (*Transcript, error)
}

const summarySystemPrompt = `You summarize transcripts of audio recordings.
Write a concise summary of at most five sentences in the language of the transcript.
Return only the summary text.`

// ProviderTranscriber uses Deepgram for speech-to-text and a chat model for the summary
type ProviderTranscriber struct {
	deepgram *client.DeepgramClient
	chat     *client.ChatClient
}

func NewProviderTranscriber(deepgram *client.DeepgramClient, chat *client.ChatClient) *ProviderTranscriber {
	return &ProviderTranscriber{
		deepgram: deepgram,
		chat:     chat,
	}
}

func (t *ProviderTranscriber) Transcribe(ctx context.Context, audio []byte, contentType string) (*Transcript, error) {
	listen, err := t.deepgram.Listen(ctx, audio, contentType)
	if err != nil {
		return nil, fmt.Errorf("speech-to-text failed: %w", err)
	}

	text := strings.TrimSpace(listen.Transcript())
	if text == "" {
		return nil, errors.New("speech-to-text returned an empty transcript")
	}

	summary := ""
	if t.chat.IsConfigured() {
		summary, err = t.chat.ChatCompletion(ctx, summarySystemPrompt, text)
		if err != nil {
			return nil, fmt.Errorf("summary generation failed: %w", err)
		}
		summary = strings.TrimSpace(summary)
	} else {
		summary = firstSentences(text, 2)
	}

	return &Transcript{
		Text:        text,
		Summary:     summary,
		DurationSec: listen.Metadata.Duration,
	}, nil
}

// MockTranscriber returns a deterministic transcript for development/testing
type MockTranscriber struct{}

func (MockTranscriber) Transcribe(ctx context.Context, audio []byte, contentType string) (*Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := fmt.Sprintf("This is a mock transcript of a %d byte recording. Configure a Deepgram API key to transcribe real audio.", len(audio))
	return &Transcript{
		Text:        text,
		Summary:     firstSentences(text, 1),
		DurationSec: float64(len(audio)) / 16000, // ~128kbps
	}, nil
}

// NewTranscriber picks the provider pipeline when Deepgram is configured
func NewTranscriber(deepgram *client.DeepgramClient, chat *client.ChatClient) Transcriber {
	if deepgram == nil || !deepgram.IsConfigured() {
		return MockTranscriber{}
	}
	return NewProviderTranscriber(deepgram, chat)
}

func firstSentences(text string, n int) string {
	count := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			count++
			if count == n {
				return text[:i+1]
			}
		}
	}
	return text
}
