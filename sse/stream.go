package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kbukum/whisperserver/logger"
)

var (
	// ErrStreamingUnsupported is returned when the response cannot be flushed.
	ErrStreamingUnsupported = errors.New("sse: streaming not supported")
	// ErrNotProcessing is returned for a terminal event sent before Processing.
	ErrNotProcessing = errors.New("sse: terminal event before processing")
	// ErrOutOfOrder is returned when Processing is sent twice or after the terminal event.
	ErrOutOfOrder = errors.New("sse: event out of order")
)

type state int

const (
	stateNew state = iota
	stateOpen
	stateProcessing
	stateTerminal
	stateClosed
)

// Stream writes the events of one job to one HTTP response. It is safe
// for concurrent use, although a job normally drives it from one goroutine.
type Stream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	done    <-chan struct{}
	log     *logger.Logger

	mu           sync.Mutex
	state        state
	written      int
	disconnected bool
}

// NewStream wraps the response of r. Client disconnects are observed
// through r's context.
func NewStream(w http.ResponseWriter, r *http.Request, log *logger.Logger) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Stream{
		w:       w,
		flusher: flusher,
		done:    r.Context().Done(),
		log:     log.WithComponent("sse"),
	}, nil
}

// Open writes the event-stream headers. Calling it again does nothing.
func (s *Stream) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateNew {
		return
	}

	// Long transcriptions outlive the server write timeout.
	rc := http.NewResponseController(s.w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.log.Debug("could not clear write deadline", logger.Fields(logger.FieldError, err.Error()))
	}

	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()
	s.state = stateOpen
}

// Processing sends the first event. It opens the stream if needed.
func (s *Stream) Processing(msg string) error {
	s.Open()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateOpen {
		return ErrOutOfOrder
	}
	s.state = stateProcessing
	s.writeLocked(processingPayload(msg))
	return nil
}

// Complete sends the terminal success event.
func (s *Stream) Complete(text string) error {
	return s.terminal(completePayload(text))
}

// Fail sends the terminal error event.
func (s *Stream) Fail(msg string) error {
	return s.terminal(errorPayload(msg))
}

// terminal sends p as the last event. A second terminal event is dropped.
func (s *Stream) terminal(p Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateNew, stateOpen:
		return ErrNotProcessing
	case stateTerminal, stateClosed:
		s.log.Debug("terminal event already sent", logger.Fields(logger.FieldStatus, p.Status))
		return nil
	}
	s.state = stateTerminal
	s.writeLocked(p)
	return nil
}

// Close ends the stream. No event is written afterwards. It is idempotent.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateClosed
}

// Written returns the number of frames that reached the response.
func (s *Stream) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Disconnected reports whether the client went away before the stream ended.
func (s *Stream) Disconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.disconnected {
		select {
		case <-s.done:
			s.disconnected = true
		default:
		}
	}
	return s.disconnected
}

func (s *Stream) writeLocked(p Payload) {
	if s.disconnected {
		return
	}
	select {
	case <-s.done:
		s.disconnected = true
		s.log.Debug("client gone, dropping event", logger.Fields(logger.FieldStatus, p.Status))
		return
	default:
	}

	data, err := json.Marshal(p)
	if err != nil {
		// Payload holds only strings.
		panic(fmt.Sprintf("sse: marshal payload: %v", err))
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		s.disconnected = true
		s.log.Debug("write failed, dropping stream", logger.Fields(logger.FieldError, err.Error()))
		return
	}
	s.flusher.Flush()
	s.written++
}
