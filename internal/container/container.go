package container

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/biller/internal/application/auth"
	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/application/service"
	"github.com/garyjia/biller/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/biller/internal/infrastructure/worker"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger
	clock  service.Clock

	// Infrastructure - Data
	database     *DatabaseBundle
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - Storage and external
	fileStorage port.FileStorage
	pdf         *PDFBundle
	rateLimit   *RateLimitBundle
	notifier    port.Notifier
	exporter    port.InvoiceExporter

	// Application
	services *ServiceBundle
	auth     *AuthBundle

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Invoice   port.InvoiceRepository
	Client    port.ClientRepository
	AuthState port.AuthStateRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Invoice   service.InvoiceService
	Template  service.TemplateService
	Client    service.ClientService
	PDF       service.PDFService
	Recurring service.RecurringProcessor
}

// AuthBundle groups the owner authentication components.
type AuthBundle struct {
	PIN      *auth.PINAuthenticator
	Sessions *auth.SessionManager
	WebAuthn *auth.WebAuthnCoordinator
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Option customizes a Container before Start.
type Option func(*Container)

// WithClock overrides the clock used by services, mainly for tests.
func WithClock(clock service.Clock) Option {
	return func(c *Container) {
		c.clock = clock
	}
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// lifecycleStep is one stage of Start. Stages run in order and are torn
// down in reverse, by Close or when a later stage fails.
type lifecycleStep struct {
	name     string
	init     func() error
	teardown func() error
}

func (c *Container) lifecycle() []lifecycleStep {
	return []lifecycleStep{
		{name: "database", init: c.initDatabase, teardown: c.closeDatabase},
		{name: "infrastructure", init: c.initInfrastructure, teardown: c.closeInfrastructure},
		{name: "services", init: c.initServices},
		{name: "workers", init: c.initWorkers, teardown: c.stopWorkers},
	}
}

// Start builds every component and starts the background workers.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed.Load():
		return fmt.Errorf("container has been closed")
	case c.ready.Load():
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	steps := c.lifecycle()
	for i, step := range steps {
		if err := step.init(); err != nil {
			c.cancel()
			teardown(steps[:i])
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Debug("Container stage ready", zap.String("stage", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started",
		zap.String("database", c.config.Database.Path),
		zap.String("storage", c.config.Storage.Backend),
		zap.Int("workers", c.workers.GetWorkerCount()))
	return nil
}

// Close tears down every stage in reverse order. A container cannot be
// restarted after Close.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}
	c.closed.Store(true)
	c.ready.Store(false)

	if c.cancel != nil {
		c.cancel()
	}

	if err := teardown(c.lifecycle()); err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed")
	return nil
}

func teardown(steps []lifecycleStep) error {
	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].teardown == nil {
			continue
		}
		if err := steps[i].teardown(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", steps[i].name, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Container) stopWorkers() error {
	if c.workers == nil {
		return nil
	}
	return c.workers.StopAll()
}

func (c *Container) closeInfrastructure() error {
	if c.rateLimit == nil || c.rateLimit.Closer == nil {
		return nil
	}
	err := c.rateLimit.Closer.Close()
	c.rateLimit.Closer = nil
	return err
}

func (c *Container) closeDatabase() error {
	if c.database == nil {
		return nil
	}
	err := c.database.DB.Close()
	c.database = nil
	return err
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health pings the database and rate limiter and summarizes the renderer and
// workers. PDF rendering never marks the service unhealthy; generation fails
// per request instead.
func (c *Container) Health() *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status := &HealthStatus{
		Overall: true,
		Components: map[string]ComponentHealth{
			"database":  c.databaseHealth(ctx),
			"ratelimit": c.rateLimitHealth(ctx),
			"pdf":       c.pdfHealth(),
			"workers":   c.workerHealth(),
		},
	}
	for _, component := range status.Components {
		status.Overall = status.Overall && component.Healthy
	}
	return status
}

func (c *Container) databaseHealth(ctx context.Context) ComponentHealth {
	if c.database == nil {
		return ComponentHealth{Message: "not initialized"}
	}
	if err := c.database.SqlDB.PingContext(ctx); err != nil {
		return ComponentHealth{Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return ComponentHealth{Healthy: true}
}

func (c *Container) rateLimitHealth(ctx context.Context) ComponentHealth {
	switch {
	case c.rateLimit == nil:
		return ComponentHealth{Message: "not initialized"}
	case c.rateLimit.Ping == nil:
		return ComponentHealth{Healthy: true, Message: "memory"}
	}
	if err := c.rateLimit.Ping(ctx); err != nil {
		return ComponentHealth{Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return ComponentHealth{Healthy: true, Message: "redis"}
}

func (c *Container) pdfHealth() ComponentHealth {
	if c.pdf == nil || c.pdf.Renderer == nil {
		return ComponentHealth{Healthy: true, Message: "not configured"}
	}
	return ComponentHealth{Healthy: true, Message: c.pdf.Renderer.Name()}
}

func (c *Container) workerHealth() ComponentHealth {
	if c.workers == nil {
		return ComponentHealth{Message: "not initialized"}
	}
	reports := c.workers.Reports()
	if len(reports) == 0 {
		return ComponentHealth{Healthy: true, Message: "recurring poller disabled"}
	}

	health := ComponentHealth{Healthy: true}
	parts := make([]string, 0, len(reports))
	for _, r := range reports {
		health.Healthy = health.Healthy && r.Running
		switch {
		case r.Error != "":
			parts = append(parts, r.Name+": "+r.Error)
		case r.Running:
			parts = append(parts, r.Name+": running")
		default:
			parts = append(parts, r.Name+": stopped")
		}
	}
	health.Message = strings.Join(parts, "; ")
	return health
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.database = dbBundle
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(dbBundle.SqlDB, c.logger)
	if err != nil {
		_ = c.closeDatabase()
		return err
	}

	c.repositories = repos
	return nil
}

// initInfrastructure initializes storage, rendering, rate limiting and notifications.
func (c *Container) initInfrastructure() error {
	fileStorage, err := ProvideStorage(&c.config.Storage, c.logger)
	if err != nil {
		return err
	}
	c.fileStorage = fileStorage

	pdfBundle, err := ProvidePDF(&c.config.PDF, c.logger)
	if err != nil {
		return err
	}
	c.pdf = pdfBundle

	rateLimit, err := ProvideRateLimiter(&c.config.RateLimit, c.logger)
	if err != nil {
		return err
	}
	c.rateLimit = rateLimit

	c.notifier = ProvideNotifier(&c.config.Lark, c.logger)
	c.exporter = ProvideExporter(c.logger)
	return nil
}

// initServices initializes all application services using providers.
func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:     c.repositories,
		TxManager: c.db,
		Storage:   c.fileStorage,
		PDF:       c.pdf,
		Notifier:  c.notifier,
		Defaults:  c.config.Defaults,
		Clock:     c.clock,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services

	authBundle, err := ProvideAuth(&AuthDeps{
		Config:     &c.config.Auth,
		Production: c.config.Server.Production,
		Repos:      c.repositories,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.auth = authBundle

	return nil
}

// initWorkers initializes and starts all background workers using providers.
func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&WorkerDeps{
		Recurring: c.services.Recurring,
		Config:    &c.config.Recurring,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers

	return c.workers.StartAll(c.ctx)
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// FileStorage returns the file storage.
func (c *Container) FileStorage() port.FileStorage {
	return c.fileStorage
}

// RateLimiter returns the auth rate limiter.
func (c *Container) RateLimiter() port.RateLimiter {
	if c.rateLimit == nil {
		return nil
	}
	return c.rateLimit.Limiter
}

// Exporter returns the invoice workbook exporter.
func (c *Container) Exporter() port.InvoiceExporter {
	return c.exporter
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Auth returns the authentication components.
func (c *Container) Auth() *AuthBundle {
	return c.auth
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// ServiceLogger returns the container's logger behind the key-value
// interface used by application services and HTTP handlers.
func (c *Container) ServiceLogger() service.Logger {
	return &zapLoggerAdapter{logger: c.logger}
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
