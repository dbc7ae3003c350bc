package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kbukum/whisperserver/component"
	"github.com/kbukum/whisperserver/logger"
)

// ErrWorkspaceInUse is returned when a job id already owns a live workspace.
var ErrWorkspaceInUse = errors.New("storage: workspace already in use")

// Manager allocates per-job workspaces under a single directory.
type Manager struct {
	dir      string
	sweepAge time.Duration
	log      *logger.Logger

	mu     sync.Mutex
	active map[string]*Workspace
}

var _ component.Component = (*Manager)(nil)

// NewManager creates the storage directory and returns a Manager for it.
func NewManager(cfg Config, log *logger.Logger) (*Manager, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create dir: %w", err)
	}
	return &Manager{
		dir:      abs,
		sweepAge: cfg.SweepAge,
		log:      log.WithComponent("storage"),
		active:   make(map[string]*Workspace),
	}, nil
}

// Dir returns the absolute storage directory.
func (m *Manager) Dir() string { return m.dir }

// Workspace opens the workspace for jobID. It fails if the id is empty,
// not a plain file name, or already has a live workspace.
func (m *Manager) Workspace(jobID string) (*Workspace, error) {
	if jobID == "" || jobID != filepath.Base(jobID) || jobID == "." || jobID == ".." {
		return nil, fmt.Errorf("storage: invalid job id %q", jobID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[jobID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceInUse, jobID)
	}
	ws := &Workspace{manager: m, jobID: jobID, removed: make(map[string]bool)}
	m.active[jobID] = ws
	return ws, nil
}

// Active returns the number of workspaces not yet cleaned up.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Manager) release(jobID string) {
	m.mu.Lock()
	delete(m.active, jobID)
	m.mu.Unlock()
}

// Sweep removes regular files in the storage directory last modified
// more than olderThan ago, skipping files owned by live workspaces.
func (m *Manager) Sweep(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0, fmt.Errorf("storage: read dir: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(m.dir, e.Name())
		if m.owned(path) {
			continue
		}
		if err := removeFile(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (m *Manager) owned(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ws := range m.active {
		if ws.owns(path) {
			return true
		}
	}
	return false
}

// Name returns the component name.
func (m *Manager) Name() string { return "storage" }

// Start sweeps files left behind by an earlier process.
func (m *Manager) Start(_ context.Context) error {
	if m.sweepAge <= 0 {
		return nil
	}
	n, err := m.Sweep(m.sweepAge)
	if err != nil {
		m.log.Warn("sweep incomplete", logger.Fields(logger.FieldError, err.Error()))
	}
	if n > 0 {
		m.log.Info("swept stale job files", logger.Fields("count", n, logger.FieldPath, m.dir))
	}
	return nil
}

// Stop is a no-op. Live workspaces are cleaned by their jobs.
func (m *Manager) Stop(_ context.Context) error { return nil }

// Health reports whether the storage directory is still writable.
func (m *Manager) Health(_ context.Context) component.Health {
	f, err := os.CreateTemp(m.dir, ".health-*")
	if err != nil {
		return component.Health{Name: m.Name(), Status: component.StatusUnhealthy, Message: err.Error()}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return component.Health{Name: m.Name(), Status: component.StatusHealthy}
}

// Describe returns summary information for the startup banner.
func (m *Manager) Describe() component.Description {
	return component.Description{Name: "Temp storage", Type: "storage", Details: m.dir}
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove %s: %w", path, err)
	}
	return nil
}
