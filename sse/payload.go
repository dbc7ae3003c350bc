package sse

import (
	"encoding/json"
	"fmt"
)

// Status values carried in the "status" field of every frame.
const (
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusError      = "error"
)

// DefaultProcessingMessage is the message of the first frame of a job.
const DefaultProcessingMessage = "Starting transcription..."

// Payload is the JSON body of one frame.
type Payload struct {
	Status        string  `json:"status"`
	Message       string  `json:"message,omitempty"`
	Transcription *string `json:"transcription,omitempty"`
}

// Terminal reports whether the payload ends a job stream.
func (p *Payload) Terminal() bool {
	return p.Status == StatusComplete || p.Status == StatusError
}

// Text returns the transcription, or "" when the payload has none.
func (p *Payload) Text() string {
	if p.Transcription == nil {
		return ""
	}
	return *p.Transcription
}

func processingPayload(msg string) Payload {
	return Payload{Status: StatusProcessing, Message: msg}
}

func completePayload(text string) Payload {
	return Payload{Status: StatusComplete, Transcription: &text}
}

func errorPayload(msg string) Payload {
	return Payload{Status: StatusError, Message: msg}
}

// Decode parses the data of an event into a Payload.
func Decode(ev *Event) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(ev.Data), &p); err != nil {
		return nil, fmt.Errorf("sse: decode payload: %w", err)
	}
	switch p.Status {
	case StatusProcessing, StatusComplete, StatusError:
	default:
		return nil, fmt.Errorf("sse: unknown status %q", p.Status)
	}
	return &p, nil
}
