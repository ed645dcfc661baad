// Package asr defines the Provider interface for timestamped speech
// recognition backends.
//
// An ASR provider transcribes a complete narration audio clip and returns
// per-word and/or per-segment timestamps. Unlike a live captioning pipeline
// there is no streaming surface here: narration audio is short, fully
// available up front, and transcribed in a single batch call.
//
// Implementations must be safe for concurrent use; multiple narrations may be
// transcribed simultaneously.
package asr

import "context"

// Request describes one batch transcription call.
type Request struct {
	// Audio is the complete audio clip, in its container format (wav, mp3).
	Audio []byte

	// Filename is a name hint including the container extension (e.g.
	// "narration.mp3"). Providers that upload the audio use it to declare
	// the format.
	Filename string

	// Language is the BCP-47 language tag for recognition (e.g. "en").
	// Empty lets the provider auto-detect, if supported.
	Language string
}

// Word is a single word with its audio interval, in seconds.
type Word struct {
	Text  string
	Start float64
	End   float64
}

// Segment is a sentence-or-longer span with its audio interval, in seconds.
type Segment struct {
	Text  string
	Start float64
	End   float64
}

// Result is the raw, un-sanitized output of one transcription call. Either
// Words or Segments (or both) may be populated depending on what the backend
// supports; [Normalize] turns a Result into a canonical timing.Set.
type Result struct {
	Words    []Word
	Segments []Segment

	// Model names the model that produced the transcription.
	Model string

	// Duration is the total audio duration in seconds as reported by the
	// provider, or 0 when not reported.
	Duration float64
}

// Provider is the abstraction over any batch ASR backend.
type Provider interface {
	// Transcribe submits audio for transcription and blocks until the result
	// is available, ctx is cancelled, or the provider fails. Providers map
	// backend-specific failures onto [*Error] where a known [Code] applies.
	Transcribe(ctx context.Context, req Request) (Result, error)
}
