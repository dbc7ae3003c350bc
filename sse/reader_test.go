package sse

import (
	"io"
	"strings"
	"testing"
)

type nopBody struct{ *strings.Reader }

func (nopBody) Close() error { return nil }

func newBody(s string) io.ReadCloser { return nopBody{strings.NewReader(s)} }

func TestReader_Frames(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Event
	}{
		{"data only", "data: hello world\n\n", Event{Data: "hello world"}},
		{"typed", "event: message\ndata: hello\n\n", Event{Event: "message", Data: "hello"}},
		{"with id", "id: 42\ndata: hello\n\n", Event{ID: "42", Data: "hello"}},
		{"multi line", "data: line1\ndata: line2\n\n", Event{Data: "line1\nline2"}},
		{"comment skipped", ": keepalive 1\ndata: hello\n\n", Event{Data: "hello"}},
		{"no space", "data:no-space\n\n", Event{Data: "no-space"}},
		{"no trailing blank line", "data: trailing", Event{Data: "trailing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(newBody(tt.input))
			defer r.Close()
			ev, err := r.Next()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *ev != tt.want {
				t.Errorf("got %+v, want %+v", *ev, tt.want)
			}
		})
	}
}

func TestReader_EOF(t *testing.T) {
	r := NewReader(newBody("data: first\n\n"))
	if _, err := r.Next(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReader_LargeFrame(t *testing.T) {
	text := strings.Repeat("a", 200*1024)
	r := NewReader(newBody(`data: {"status":"complete","transcription":"` + text + `"}` + "\n\n"))
	p, err := ReadJob(r, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Text()) != len(text) {
		t.Errorf("transcription truncated to %d bytes", len(p.Text()))
	}
}

func TestReadJob(t *testing.T) {
	stream := `data: {"status":"processing","message":"Starting transcription..."}` + "\n\n" +
		`data: {"status":"complete","transcription":"hi there"}` + "\n\n"
	var seen []string
	p, err := ReadJob(NewReader(newBody(stream)), func(p *Payload) { seen = append(seen, p.Status) })
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != StatusComplete || p.Text() != "hi there" {
		t.Errorf("unexpected terminal payload %+v", p)
	}
	if len(seen) != 2 || seen[0] != StatusProcessing {
		t.Errorf("unexpected sequence %v", seen)
	}
}

func TestReadJob_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"truncated", `data: {"status":"processing","message":"x"}` + "\n\n"},
		{"bad json", "data: {nope\n\n"},
		{"unknown status", `data: {"status":"queued"}` + "\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadJob(NewReader(newBody(tt.input)), nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line, field, value string
	}{
		{"data: hello", "data", "hello"},
		{"data:hello", "data", "hello"},
		{"retry: 3000", "retry", "3000"},
		{"fieldonly", "fieldonly", ""},
	}
	for _, tt := range tests {
		f, v := parseLine(tt.line)
		if f != tt.field || v != tt.value {
			t.Errorf("parseLine(%q) = (%q, %q), want (%q, %q)", tt.line, f, v, tt.field, tt.value)
		}
	}
}
