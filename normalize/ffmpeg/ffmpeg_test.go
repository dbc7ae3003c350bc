package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/kbukum/whisperserver/errors"
	"github.com/kbukum/whisperserver/logger"
	"github.com/kbukum/whisperserver/process"
)

func script(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestArgs(t *testing.T) {
	c := New(Config{}, nil, logger.Nop())
	want := []string{"-hide_banner", "-nostdin", "-y", "-i", "in.webm", "-vn", "-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le", "out.wav"}
	if got := c.Args("in.webm", "out.wav"); !slices.Equal(got, want) {
		t.Errorf("Args = %v, want %v", got, want)
	}
}

func TestConvert(t *testing.T) {
	// The last argument is the output file.
	bin := script(t, `for a; do out="$a"; done; printf 'RIFF' > "$out"`)
	c := New(Config{Binary: bin}, process.NewExecutor(process.Config{}), logger.Nop())
	out := filepath.Join(t.TempDir(), "out.wav")
	if err := c.Convert(context.Background(), "in.webm", out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data, _ := os.ReadFile(out); string(data) != "RIFF" {
		t.Errorf("output = %q", data)
	}
}

func TestConvert_Failure(t *testing.T) {
	bin := script(t, "echo 'Invalid data found when processing input' >&2\nexit 1\n")
	c := New(Config{Binary: bin}, process.NewExecutor(process.Config{}), logger.Nop())
	err := c.Convert(context.Background(), "in.webm", filepath.Join(t.TempDir(), "out.wav"))
	if errors.KindOfError(err) != errors.KindConversion {
		t.Fatalf("expected conversion error, got %v", err)
	}
}

func TestCheck(t *testing.T) {
	ok := New(Config{Binary: script(t, "exit 0\n")}, nil, logger.Nop())
	if err := ok.Check(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	missing := New(Config{Binary: filepath.Join(t.TempDir(), "nope")}, nil, logger.Nop())
	if err := missing.Check(context.Background()); errors.KindOfError(err) != errors.KindStartup {
		t.Errorf("expected startup error, got %v", err)
	}
}
