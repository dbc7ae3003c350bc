package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common bulkhead errors.
var (
	ErrBulkheadFull    = errors.New("bulkhead is full")
	ErrBulkheadTimeout = errors.New("bulkhead wait timeout")
)

// BulkheadConfig configures a bulkhead.
type BulkheadConfig struct {
	// Name identifies this bulkhead for metrics/logging.
	Name string
	// MaxConcurrent is the maximum number of concurrent calls.
	MaxConcurrent int
	// MaxWait is how long to wait for a slot. 0 means fail immediately.
	MaxWait time.Duration
	// OnReject is called when a request is rejected.
	OnReject func(name string)
	// OnAcquire is called when a slot is acquired.
	OnAcquire func(name string)
	// OnRelease is called when a slot is released.
	OnRelease func(name string)
}

// Bulkhead limits concurrent access to a shared resource.
type Bulkhead struct {
	config BulkheadConfig
	sem    chan struct{}
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}
	return &Bulkhead{
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
}

// Execute runs fn within the bulkhead on the calling goroutine.
// Returns ErrBulkheadFull or ErrBulkheadTimeout if no slot is available.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer b.release()
	return fn()
}

// Go runs fn on a worker goroutine once a slot is free and returns a
// channel that yields its error. The slot is held until fn returns, even
// if the caller stops waiting, so the concurrency cap also covers work
// whose requester went away. The slot is released before the error is
// sent. fn receives ctx and should honour it.
func (b *Bulkhead) Go(ctx context.Context, fn func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)
	if err := b.acquire(ctx); err != nil {
		done <- err
		return done
	}
	go func() {
		done <- b.run(ctx, fn)
	}()
	return done
}

func (b *Bulkhead) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer b.release()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bulkhead %s: panic: %v", b.config.Name, r)
		}
	}()
	return fn(ctx)
}

// ExecuteWithResult runs a function that returns a value within the
// bulkhead. Once fn has started the call waits for it to return, even
// after ctx ends, so nothing fn touches is still in use when the caller
// resumes. A failure after ctx ended is reported as ctx.Err().
func ExecuteWithResult[T any](b *Bulkhead, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := <-b.Go(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	if err != nil {
		var zero T
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		return zero, err
	}
	return result, nil
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		b.acquired()
		return nil
	default:
	}

	if b.config.MaxWait <= 0 {
		b.rejected()
		return ErrBulkheadFull
	}

	timer := time.NewTimer(b.config.MaxWait)
	defer timer.Stop()

	select {
	case b.sem <- struct{}{}:
		b.acquired()
		return nil
	case <-timer.C:
		b.rejected()
		return ErrBulkheadTimeout
	case <-ctx.Done():
		b.rejected()
		return ctx.Err()
	}
}

func (b *Bulkhead) acquired() {
	if b.config.OnAcquire != nil {
		b.config.OnAcquire(b.config.Name)
	}
}

func (b *Bulkhead) rejected() {
	if b.config.OnReject != nil {
		b.config.OnReject(b.config.Name)
	}
}

func (b *Bulkhead) release() {
	<-b.sem
	if b.config.OnRelease != nil {
		b.config.OnRelease(b.config.Name)
	}
}

// Available returns the number of available slots.
func (b *Bulkhead) Available() int {
	return b.config.MaxConcurrent - len(b.sem)
}

// InUse returns the number of slots currently in use.
func (b *Bulkhead) InUse() int {
	return len(b.sem)
}

// MaxConcurrent returns the maximum concurrent calls allowed.
func (b *Bulkhead) MaxConcurrent() int {
	return b.config.MaxConcurrent
}
