package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker defines the interface for background workers
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// errorReporter is implemented by workers that remember their last failure
type errorReporter interface {
	LastError() error
}

// Report is the state of one managed worker
type Report struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type managedWorker struct {
	worker   Worker
	running  bool
	startErr error
}

// WorkerManager owns the lifecycle of the background workers
type WorkerManager struct {
	logger *zap.Logger

	mu      sync.RWMutex
	entries []*managedWorker
	running bool
	cancel  context.CancelFunc
}

// NewWorkerManager creates a new worker manager
func NewWorkerManager(logger *zap.Logger) *WorkerManager {
	return &WorkerManager{logger: logger}
}

// Register adds a worker to be started by StartAll
func (m *WorkerManager) Register(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, &managedWorker{worker: w})
	m.logger.Info("Worker registered", zap.String("worker_name", w.Name()), zap.Int("total_workers", len(m.entries)))
}

// StartAll starts every registered worker under a shared cancellable context.
// A worker that fails to start is recorded in its Report and skipped.
func (m *WorkerManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("workers already running")
	}

	workerCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	for _, e := range m.entries {
		e.startErr = e.worker.Start(workerCtx)
		e.running = e.startErr == nil
		if e.startErr != nil {
			m.logger.Error("Failed to start worker", zap.String("worker_name", e.worker.Name()), zap.Error(e.startErr))
		}
	}
	return nil
}

// StopAll cancels the shared context and stops every worker.
// Stop errors are joined and returned with the worker name attached.
func (m *WorkerManager) StopAll() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	cancel := m.cancel
	entries := append([]*managedWorker(nil), m.entries...)
	m.mu.Unlock()

	cancel()

	var errs []error
	for _, e := range entries {
		if err := e.worker.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.worker.Name(), err))
		}
		m.mu.Lock()
		e.running = false
		m.mu.Unlock()
	}

	if err := errors.Join(errs...); err != nil {
		m.logger.Error("Workers stopped with errors", zap.Error(err))
		return err
	}
	m.logger.Info("Workers stopped", zap.Int("count", len(entries)))
	return nil
}

// Reports describes each registered worker. The error is the start failure,
// or the last pass failure for workers that track one.
func (m *WorkerManager) Reports() []Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reports := make([]Report, 0, len(m.entries))
	for _, e := range m.entries {
		r := Report{Name: e.worker.Name(), Running: e.running}
		err := e.startErr
		if err == nil {
			if er, ok := e.worker.(errorReporter); ok {
				err = er.LastError()
			}
		}
		if err != nil {
			r.Error = err.Error()
		}
		reports = append(reports, r)
	}
	return reports
}

// GetWorkerCount returns the number of registered workers
func (m *WorkerManager) GetWorkerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// IsRunning returns whether StartAll has been called without StopAll
func (m *WorkerManager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}
