package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// ErrWorkspaceClosed is returned when a path is requested after Cleanup.
var ErrWorkspaceClosed = errors.New("storage: workspace closed")

// Workspace tracks the paths allocated for one job.
type Workspace struct {
	manager *Manager
	jobID   string

	mu      sync.Mutex
	paths   []string
	removed map[string]bool
	closed  bool
}

// JobID returns the job id the workspace belongs to.
func (w *Workspace) JobID() string { return w.jobID }

// Path allocates <dir>/<job-id><suffix> and records it for cleanup.
// Allocating the same suffix twice returns the same path. After Cleanup
// the path is still returned but never recorded, and Allocate should be
// used where that matters.
func (w *Workspace) Path(suffix string) string {
	p, _ := w.Allocate(suffix)
	return p
}

// Allocate is Path with an error when the workspace is already closed.
func (w *Workspace) Allocate(suffix string) (string, error) {
	p := filepath.Join(w.manager.dir, w.jobID+suffix)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return p, fmt.Errorf("%w: %s", ErrWorkspaceClosed, w.jobID)
	}
	if !slices.Contains(w.paths, p) {
		w.paths = append(w.paths, p)
	}
	return p, nil
}

// Create allocates a path for suffix and creates the file exclusively.
// A file already present at that path is an error.
func (w *Workspace) Create(suffix string) (*os.File, error) {
	p, err := w.Allocate(suffix)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", p, err)
	}
	return f, nil
}

// Remove deletes one allocated path ahead of Cleanup. Removing a path that
// was already removed, or never created, is not an error.
func (w *Workspace) Remove(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.removeLocked(path)
}

func (w *Workspace) removeLocked(path string) error {
	if w.removed[path] {
		return nil
	}
	if err := removeFile(path); err != nil {
		return err
	}
	w.removed[path] = true
	return nil
}

// Paths returns every path allocated so far.
func (w *Workspace) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.paths)
}

// Cleanup removes every allocated path and releases the job id. It is
// safe to call more than once; later calls do nothing. Paths that could
// not be removed are reported in the returned error and left for the
// startup sweep.
func (w *Workspace) Cleanup() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	var errs []error
	for _, p := range w.paths {
		if err := w.removeLocked(p); err != nil {
			errs = append(errs, err)
		}
	}
	w.mu.Unlock()

	w.manager.release(w.jobID)
	return errors.Join(errs...)
}

func (w *Workspace) owns(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Contains(w.paths, path)
}
