package job

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	apperrors "github.com/kbukum/whisperserver/errors"
)

func TestNewID_UniqueAndSanitised(t *testing.T) {
	const n = 1000
	ids := make(map[string]bool, n)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NewID("../my recording.webm")
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(ids) != n {
		t.Fatalf("expected %d unique ids, got %d", n, len(ids))
	}
	for id := range ids {
		if !strings.HasSuffix(id, "-my_recording.webm") || strings.Contains(id, "/") {
			t.Fatalf("unexpected id %q", id)
		}
		break
	}
}

func TestTransitions_HappyPaths(t *testing.T) {
	direct := New("a", "a.wav")
	for _, s := range []Status{StatusTranscribing} {
		if err := direct.Transition(s); err != nil {
			t.Fatal(err)
		}
	}
	if err := direct.Complete("hello"); err != nil {
		t.Fatal(err)
	}
	if err := direct.Transition(StatusCleaned); err != nil {
		t.Fatal(err)
	}
	want := []Status{StatusReceived, StatusTranscribing, StatusComplete, StatusCleaned}
	if !slices.Equal(direct.History(), want) {
		t.Errorf("history = %v, want %v", direct.History(), want)
	}

	converted := New("b", "b.webm")
	_ = converted.Transition(StatusConverting)
	_ = converted.Transition(StatusTranscribing)
	if err := converted.Complete("hi"); err != nil {
		t.Fatal(err)
	}
}

func TestTransitions_Illegal(t *testing.T) {
	tests := []struct {
		name string
		path []Status
		next Status
	}{
		{"skip to complete", nil, StatusComplete},
		{"convert after transcribing", []Status{StatusTranscribing}, StatusConverting},
		{"leave terminal", []Status{StatusFailed}, StatusTranscribing},
		{"clean before terminal", []Status{StatusTranscribing}, StatusCleaned},
		{"after cleaned", []Status{StatusFailed, StatusCleaned}, StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := New("x", "x.wav")
			for _, s := range tt.path {
				if err := j.Transition(s); err != nil {
					t.Fatalf("setup transition %s: %v", s, err)
				}
			}
			before := j.Status()
			if err := j.Transition(tt.next); err == nil {
				t.Fatalf("expected %s -> %s to be rejected", before, tt.next)
			}
			if j.Status() != before {
				t.Errorf("status changed on illegal transition")
			}
		})
	}
}

func TestTerminalOutcomeExclusive(t *testing.T) {
	ok := New("ok", "ok.wav")
	_ = ok.Transition(StatusTranscribing)
	_ = ok.Complete("text")
	if ok.Transcript() != "text" || ok.Failure() != nil {
		t.Errorf("complete job must carry transcript only")
	}
	if err := ok.Fail(errors.New("late")); err == nil {
		t.Error("expected Fail after Complete to be rejected")
	}
	if ok.Failure() != nil {
		t.Error("rejected Fail must not record a failure")
	}

	bad := New("bad", "bad.webm")
	_ = bad.Transition(StatusConverting)
	if err := bad.Fail(fmt.Errorf("ffmpeg: %w", apperrors.ConversionFailed(errors.New("exit 1")))); err != nil {
		t.Fatal(err)
	}
	f := bad.Failure()
	if f == nil || f.Kind != apperrors.KindConversion || f.Code != apperrors.ErrCodeConversionFailed {
		t.Fatalf("unexpected failure %+v", f)
	}
	if f.Message != "Audio conversion failed" {
		t.Errorf("unexpected message %q", f.Message)
	}
	if bad.Transcript() != "" {
		t.Error("failed job must not carry a transcript")
	}
	if err := bad.Complete("x"); err == nil {
		t.Error("expected Complete after Fail to be rejected")
	}
}

func TestPaths(t *testing.T) {
	j := New("p", "p.webm")
	j.SetSourcePath("/tmp/p")
	if j.AudioPath() != "/tmp/p" {
		t.Errorf("expected source as audio path before conversion")
	}
	if err := j.SetNormalizedPath("/tmp/p"); err == nil {
		t.Error("expected normalized path equal to source to be rejected")
	}
	if err := j.SetNormalizedPath("/tmp/p.16k.wav"); err != nil {
		t.Fatal(err)
	}
	if j.AudioPath() != "/tmp/p.16k.wav" {
		t.Errorf("expected normalized audio path, got %s", j.AudioPath())
	}
	j.SetEnginePath("/tmp/p.transcript.txt")
	if j.EnginePath() != "/tmp/p.transcript.txt" || j.SourcePath() != "/tmp/p" || j.NormalizedPath() != "/tmp/p.16k.wav" {
		t.Error("unexpected paths")
	}
}

func TestStatusTerminal(t *testing.T) {
	for s, want := range map[Status]bool{
		StatusReceived: false, StatusConverting: false, StatusTranscribing: false,
		StatusComplete: true, StatusFailed: true, StatusCleaned: false,
	} {
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v", s, !want)
		}
	}
}
