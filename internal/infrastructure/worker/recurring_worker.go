package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/biller/internal/application/service"
)

// RecurringRunner runs one recurring invoice pass
type RecurringRunner interface {
	Process(ctx context.Context) (*service.ProcessResult, error)
}

// RecurringWorkerConfig holds configuration for the recurring poller
type RecurringWorkerConfig struct {
	PollInterval time.Duration
	PassTimeout  time.Duration
	RunOnStart   bool
}

// DefaultRecurringWorkerConfig returns default configuration
func DefaultRecurringWorkerConfig() RecurringWorkerConfig {
	return RecurringWorkerConfig{
		PollInterval: time.Hour,
		PassTimeout:  5 * time.Minute,
		RunOnStart:   true,
	}
}

// RecurringWorker triggers the recurring processor on a fixed interval, for
// deployments without an external scheduler calling the process endpoint
type RecurringWorker struct {
	config RecurringWorkerConfig
	runner RecurringRunner
	logger *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
	passes    int
	lastError error
}

// NewRecurringWorker creates a new recurring worker
func NewRecurringWorker(config RecurringWorkerConfig, runner RecurringRunner, logger *zap.Logger) *RecurringWorker {
	if config.PassTimeout <= 0 {
		config.PassTimeout = DefaultRecurringWorkerConfig().PassTimeout
	}
	return &RecurringWorker{
		config: config,
		runner: runner,
		logger: logger,
	}
}

// Start begins the polling loop
func (w *RecurringWorker) Start(ctx context.Context) error {
	if w.config.PollInterval <= 0 {
		return fmt.Errorf("recurring worker needs a positive poll interval")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("recurring worker already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("RecurringWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Bool("run_on_start", w.config.RunOnStart))

	go w.pollLoop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight pass to return
func (w *RecurringWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("RecurringWorker stopped", zap.Int("passes", w.Passes()))
	return nil
}

// Name returns the worker name for identification
func (w *RecurringWorker) Name() string {
	return "RecurringWorker"
}

// Passes returns how many passes have completed
func (w *RecurringWorker) Passes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.passes
}

// LastError returns the error of the most recent pass, if any
func (w *RecurringWorker) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastError
}

func (w *RecurringWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if w.config.RunOnStart {
		w.runPass(ctx)
	}

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runPass(ctx)
		}
	}
}

func (w *RecurringWorker) runPass(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, w.config.PassTimeout)
	defer cancel()

	result, err := w.runner.Process(passCtx)

	w.mu.Lock()
	w.passes++
	w.lastError = err
	w.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("Recurring pass failed", zap.Error(err))
		}
		return
	}
	if result.Generated > 0 || result.FailedSources > 0 {
		w.logger.Info("Recurring pass completed",
			zap.Int("sources", result.SourcesScanned),
			zap.Int("generated", result.Generated),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed_sources", result.FailedSources))
	}
}
