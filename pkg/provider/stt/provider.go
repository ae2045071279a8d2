// Package stt defines the Provider interface for speech-to-text backends.
//
// MediSynth transcribes complete encounter recordings, so the interface is a
// single batch call: audio in, transcript text out. Providers wrap either a
// local whisper-server instance or a hosted transcription API.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"io"
)

// Result is a completed transcription.
type Result struct {
	// Text is the transcribed speech content.
	Text string

	// Language is the detected or requested BCP-47 language tag. Empty when
	// the provider does not report it.
	Language string
}

// Provider is the abstraction over any batch STT backend.
type Provider interface {
	// Transcribe submits one complete audio recording and returns its
	// transcript. filename carries the original name so the backend can
	// detect the container format (e.g., "visit.wav", "visit.mp3").
	//
	// Returns an error when the backend is unreachable, rejects the audio,
	// or produces an unusable response.
	Transcribe(ctx context.Context, audio io.Reader, filename string) (*Result, error)
}
