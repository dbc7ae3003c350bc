package transcription

import (
	"context"
	"time"
)

// OutputExt is appended to Request.OutputBase to form the transcript file.
const OutputExt = ".txt"

// Request holds parameters for one transcription.
type Request struct {
	// AudioPath is the audio file to transcribe.
	AudioPath string
	// OutputBase is the output path without extension.
	OutputBase string
	// Language overrides the engine's default language, e.g. "en".
	Language string
}

// OutputPath is the file the engine writes the transcript to.
func (r Request) OutputPath() string { return r.OutputBase + OutputExt }

// Result holds the outcome of a transcription.
type Result struct {
	Text string
	// OutputPath is where the transcript was written.
	OutputPath string
	Duration   time.Duration
}

// Engine is a speech-to-text backend.
type Engine interface {
	Name() string
	// Check validates preconditions such as executables, models or
	// credentials. It is called once before the server accepts requests.
	Check(ctx context.Context) error
	// Transcribe blocks until the transcript is available or ctx is done.
	Transcribe(ctx context.Context, req Request) (*Result, error)
}
