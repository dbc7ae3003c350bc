package sse

import (
	"bufio"
	"io"
	"strings"
)

// maxFrameSize bounds one data line. Transcripts of long recordings
// easily exceed bufio's 64KB default.
const maxFrameSize = 16 << 20

// Event is a single decoded server-sent event.
type Event struct {
	// Event is the "event:" field, empty for data-only frames.
	Event string
	// Data holds the "data:" lines joined with newlines.
	Data string
	ID   string
}

// Reader reads server-sent events from a stream.
type Reader interface {
	// Next returns the next event, or io.EOF when the stream ends.
	Next() (*Event, error)
	Close() error
}

type reader struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
}

// NewReader creates a Reader over body.
func NewReader(body io.ReadCloser) Reader {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	return &reader{scanner: sc, body: body}
}

func (r *reader) Next() (*Event, error) {
	var event Event
	var hasData bool

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if hasData {
				return &event, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseLine(line)
		switch field {
		case "data":
			if hasData {
				event.Data += "\n" + value
			} else {
				event.Data = value
				hasData = true
			}
		case "event":
			event.Event = value
		case "id":
			event.ID = value
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if hasData {
		return &event, nil
	}
	return nil, io.EOF
}

func (r *reader) Close() error {
	return r.body.Close()
}

func parseLine(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	if value != "" && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}

// ReadJob reads a job stream to its terminal payload, calling fn (when
// non-nil) for every payload including the terminal one. It returns
// io.ErrUnexpectedEOF when the stream ends without a terminal payload.
func ReadJob(r Reader, fn func(*Payload)) (*Payload, error) {
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		if err != nil {
			return nil, err
		}
		p, err := Decode(ev)
		if err != nil {
			return nil, err
		}
		if fn != nil {
			fn(p)
		}
		if p.Terminal() {
			return p, nil
		}
	}
}
