package transcription

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/whisperserver/errors"
)

type blockingEngine struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingEngine) Name() string { return "blocking" }
func (b *blockingEngine) Check(_ context.Context) error { return nil }
func (b *blockingEngine) Transcribe(ctx context.Context, _ Request) (*Result, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
		return &Result{Text: "done"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestPooled_BusyWhenFull(t *testing.T) {
	eng := &blockingEngine{started: make(chan struct{}, 1), release: make(chan struct{})}
	p := NewPooled(eng, PoolConfig{Size: 1, MaxWait: 20 * time.Millisecond})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := p.Transcribe(context.Background(), Request{}); err != nil {
			t.Errorf("first job: %v", err)
		}
	}()
	<-eng.started
	if p.InUse() != 1 || p.Size() != 1 {
		t.Fatalf("InUse=%d Size=%d", p.InUse(), p.Size())
	}

	_, err := p.Transcribe(context.Background(), Request{})
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeEngineBusy {
		t.Fatalf("expected engine busy, got %v", err)
	}
	if errors.KindOfError(err) != errors.KindEngine {
		t.Errorf("kind = %s", errors.KindOfError(err))
	}

	close(eng.release)
	wg.Wait()
	deadline := time.Now().Add(time.Second)
	for p.InUse() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if p.InUse() != 0 {
		t.Errorf("slot not released")
	}
}

func TestPooled_CallerCancel(t *testing.T) {
	eng := &blockingEngine{started: make(chan struct{}, 1), release: make(chan struct{})}
	p := NewPooled(eng, PoolConfig{Size: 1})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := p.Transcribe(ctx, Request{})
		errc <- err
	}()
	<-eng.started
	cancel()
	if err := <-errc; errors.KindOfError(err) != errors.KindCanceled {
		t.Errorf("expected canceled, got %v", err)
	}
	if p.InUse() != 0 {
		t.Errorf("engine still running after Transcribe returned, in use = %d", p.InUse())
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("b", func() (Engine, error) { return &blockingEngine{}, nil })
	r.Register("a", func() (Engine, error) { return &blockingEngine{}, nil })
	if names := r.Names(); len(names) != 2 || names[0] != "a" {
		t.Errorf("Names = %v", names)
	}
	if _, err := r.Create("missing"); err == nil {
		t.Error("expected error for unknown engine")
	}
	if e, err := r.Create("a"); err != nil || e.Name() != "blocking" {
		t.Errorf("Create = %v, %v", e, err)
	}
}

func TestOutput(t *testing.T) {
	req := Request{OutputBase: filepath.Join(t.TempDir(), "job.transcript")}
	if _, err := ReadOutput(req); errors.KindOfError(err) != errors.KindEngine {
		t.Errorf("missing output should be an engine error, got %v", err)
	}
	if err := WriteOutput(req, "\n text \n"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(req.OutputBase + ".txt"); err != nil {
		t.Fatal(err)
	}
	text, err := ReadOutput(req)
	if err != nil || text != "text" {
		t.Errorf("ReadOutput = %q, %v", text, err)
	}
	if err := WriteOutput(Request{}, "x"); err == nil {
		t.Error("expected error for empty output base")
	}
}
