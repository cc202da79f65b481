package container

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/biller/internal/application/auth"
	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/application/service"
	"github.com/garyjia/biller/internal/infrastructure/export"
	"github.com/garyjia/biller/internal/infrastructure/external/invoicegen"
	infraLark "github.com/garyjia/biller/internal/infrastructure/external/lark"
	"github.com/garyjia/biller/internal/infrastructure/passkey"
	"github.com/garyjia/biller/internal/infrastructure/pdf"
	"github.com/garyjia/biller/internal/infrastructure/persistence/repository"
	"github.com/garyjia/biller/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/biller/internal/infrastructure/ratelimit"
	"github.com/garyjia/biller/internal/infrastructure/storage"
	"github.com/garyjia/biller/internal/infrastructure/worker"
	"github.com/garyjia/biller/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// PDFBundle holds the selected renderer and optional validator.
// Renderer is nil when no provider is configured.
type PDFBundle struct {
	Renderer  port.PDFRenderer
	Validator port.PDFValidator
}

// RateLimitBundle holds the limiter and the connection it owns, if any.
type RateLimitBundle struct {
	Limiter port.RateLimiter
	Closer  io.Closer
	Ping    func(ctx context.Context) error
}

// ServiceDeps are the inputs of ProvideServices.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	Storage   port.FileStorage
	PDF       *PDFBundle
	Notifier  port.Notifier
	Defaults  service.Defaults
	Clock     service.Clock
	Logger    *zap.Logger
}

// AuthDeps are the inputs of ProvideAuth.
type AuthDeps struct {
	Config     *AuthConfig
	Production bool
	Repos      *RepositoryBundle
	Logger     *zap.Logger
}

// WorkerDeps are the inputs of ProvideWorkers.
type WorkerDeps struct {
	Recurring service.RecurringProcessor
	Config    *RecurringConfig
	Logger    *zap.Logger
}

// ProvideDatabase opens the SQLite database, applies pending migrations and
// wraps the connection in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(cfg.MigrationsDir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Invoice:   repository.NewInvoiceRepository(sqlDB, logger),
		Client:    repository.NewClientRepository(sqlDB, logger),
		AuthState: repository.NewAuthStateRepository(sqlDB, logger),
	}, nil
}

// ProvideStorage creates the file storage for generated PDFs.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}

	switch cfg.Backend {
	case "s3":
		return storage.NewS3FileStorage(cfg.S3, logger)
	case "local", "":
		return storage.NewLocalFileStorage(cfg.LocalDir, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// ProvidePDF selects the renderer. auto prefers the hosted generator when an
// API key is configured and falls back to local rendering otherwise.
func ProvidePDF(cfg *PDFConfig, logger *zap.Logger) (*PDFBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pdf config is required")
	}

	bundle := &PDFBundle{}
	hosted := func() {
		if cfg.APIKey == "" {
			logger.Warn("invoice-generator API key not configured, PDF generation disabled")
			return
		}
		bundle.Renderer = invoicegen.NewClient(invoicegen.Config{
			APIKey:    cfg.APIKey,
			Endpoint:  cfg.Endpoint,
			Timeout:   cfg.Timeout,
			PublicDir: cfg.PublicDir,
		}, logger)
	}

	switch cfg.Provider {
	case "invoicegen":
		hosted()
	case "local":
		bundle.Renderer = pdf.NewLocalRenderer(logger)
	case "auto", "":
		if cfg.APIKey != "" {
			hosted()
		} else {
			bundle.Renderer = pdf.NewLocalRenderer(logger)
		}
	default:
		return nil, fmt.Errorf("unknown pdf provider %q", cfg.Provider)
	}

	if cfg.Validate {
		bundle.Validator = pdf.NewFitzValidator(logger)
	}

	if bundle.Renderer != nil {
		logger.Info("PDF renderer selected", zap.String("renderer", bundle.Renderer.Name()))
	}
	return bundle, nil
}

// ProvideRateLimiter creates the auth rate limiter.
func ProvideRateLimiter(cfg *RateLimitConfig, logger *zap.Logger) (*RateLimitBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("rate limit config is required")
	}

	switch cfg.Backend {
	case "redis":
		client, err := ratelimit.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}

		logger.Info("Using redis rate limiter")
		return &RateLimitBundle{
			Limiter: ratelimit.NewRedisLimiter(client),
			Closer:  client,
			Ping:    func(ctx context.Context) error { return client.Ping(ctx).Err() },
		}, nil
	case "memory", "":
		return &RateLimitBundle{Limiter: ratelimit.NewMemoryLimiter(nil)}, nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}

// ProvideNotifier creates the Lark notifier, or returns nil when disabled.
func ProvideNotifier(cfg *LarkConfig, logger *zap.Logger) port.Notifier {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	larkCfg := infraLark.Config{
		AppID:         cfg.AppID,
		AppSecret:     cfg.AppSecret,
		BaseURL:       cfg.BaseURL,
		ReceiveIDType: cfg.ReceiveIDType,
		ReceiveID:     cfg.ReceiveID,
	}
	return infraLark.NewNotifier(infraLark.NewSDKSender(larkCfg, logger), larkCfg, logger)
}

// ProvideExporter creates the invoice workbook exporter.
func ProvideExporter(logger *zap.Logger) port.InvoiceExporter {
	return export.NewWorkbookExporter(logger)
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("file storage is required")
	}

	logger := &zapLoggerAdapter{logger: deps.Logger}
	pdfBundle := deps.PDF
	if pdfBundle == nil {
		pdfBundle = &PDFBundle{}
	}

	numberer := service.NewInvoiceNumberer(deps.Repos.Invoice, deps.Clock)
	pdfService := service.NewPDFService(
		pdfBundle.Renderer,
		pdfBundle.Validator,
		deps.Storage,
		deps.Repos.Invoice,
		deps.Clock,
		logger,
	)
	recurring := service.NewRecurringProcessor(
		deps.Repos.Invoice,
		deps.TxManager,
		numberer,
		pdfService,
		deps.Notifier,
		deps.Clock,
		logger,
	)

	return &ServiceBundle{
		Invoice:   service.NewInvoiceService(deps.Repos.Invoice, numberer, pdfService, recurring, deps.Defaults, logger),
		Template:  service.NewTemplateService(deps.Repos.Invoice, deps.Defaults, deps.Clock, logger),
		Client:    service.NewClientService(deps.Repos.Client, logger),
		PDF:       pdfService,
		Recurring: recurring,
	}, nil
}

// ProvideAuth creates the PIN authenticator, session manager and WebAuthn coordinator.
func ProvideAuth(deps *AuthDeps) (*AuthBundle, error) {
	if deps == nil || deps.Config == nil || deps.Repos == nil {
		return nil, fmt.Errorf("auth config and repositories are required")
	}
	cfg := deps.Config
	logger := &zapLoggerAdapter{logger: deps.Logger}

	ceremony, err := passkey.NewCeremony(passkey.Config{
		RPID:    cfg.RPID,
		RPName:  cfg.RPName,
		Origins: cfg.Origins,
	}, deps.Logger)
	if err != nil {
		return nil, err
	}

	return &AuthBundle{
		PIN: auth.NewPINAuthenticator(deps.Repos.AuthState, auth.PINConfig{
			Salt:         cfg.PINSalt,
			Hash:         cfg.PINHash,
			MaxAttempts:  cfg.PINMaxAttempts,
			LockDuration: cfg.PINLockDuration,
		}, nil, logger),
		Sessions: auth.NewSessionManager(auth.SessionConfig{
			Secret:     cfg.SessionSecret,
			TTL:        cfg.SessionTTL,
			Production: deps.Production,
		}, nil),
		WebAuthn: auth.NewWebAuthnCoordinator(deps.Repos.AuthState, ceremony, nil, logger),
	}, nil
}

// ProvideWorkers creates the background workers. The recurring poller is only
// registered when a poll interval is configured.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil || deps.Config == nil {
		return nil, fmt.Errorf("worker config is required")
	}

	manager := worker.NewWorkerManager(deps.Logger)
	if deps.Config.PollInterval <= 0 {
		deps.Logger.Info("Recurring poller disabled, waiting for scheduler calls")
		return manager, nil
	}
	if deps.Recurring == nil {
		return nil, fmt.Errorf("recurring processor is required")
	}

	cfg := worker.DefaultRecurringWorkerConfig()
	cfg.PollInterval = deps.Config.PollInterval
	if deps.Config.PassTimeout > 0 {
		cfg.PassTimeout = deps.Config.PassTimeout
	}
	manager.Register(worker.NewRecurringWorker(cfg, deps.Recurring, deps.Logger))
	return manager, nil
}
