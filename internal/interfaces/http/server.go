// Package http provides the HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/biller/internal/application/auth"
	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/application/service"
	"github.com/garyjia/biller/internal/domain/entity"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// CronSecret guards the recurring processing trigger
	CronSecret string
	// AuthDebug adds error details to auth failure responses
	AuthDebug bool
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         3000,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
}

// PINVerifier checks a submitted PIN
type PINVerifier interface {
	Verify(ctx context.Context, pin string) error
}

// PasskeyService runs WebAuthn ceremonies and manages enrolled credentials
type PasskeyService interface {
	BeginRegistration(ctx context.Context) (interface{}, error)
	CompleteRegistration(ctx context.Context, response json.RawMessage, label string) (*entity.WebAuthnCredential, error)
	BeginAuthentication(ctx context.Context) (interface{}, error)
	CompleteAuthentication(ctx context.Context, response json.RawMessage) (*entity.WebAuthnCredential, error)
	HasCredentials(ctx context.Context) (bool, error)
	ListCredentials(ctx context.Context) ([]auth.CredentialView, error)
	RenameCredential(ctx context.Context, credentialID, label string) error
	DeleteCredential(ctx context.Context, credentialID string) error
}

// RecurringRunner runs one recurring processing pass
type RecurringRunner interface {
	Process(ctx context.Context) (*service.ProcessResult, error)
}

// HealthFunc reports overall health and a per-component breakdown
type HealthFunc func() (bool, interface{})

// Deps are the application services the server exposes
type Deps struct {
	Invoices  service.InvoiceService
	Templates service.TemplateService
	Clients   service.ClientService
	Recurring RecurringRunner
	PIN       PINVerifier
	Passkeys  PasskeyService
	Sessions  *auth.SessionManager
	Limiter   port.RateLimiter
	Exporter  port.InvoiceExporter
	Files     port.FileStorage
	Health    HealthFunc
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	deps       Deps
	httpServer *http.Server
	router     *gin.Engine
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, deps Deps, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config: config,
		deps:   deps,
		router: router,
		logger: logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/invoices/:file", s.requireSession(), s.servePDF)

	api := s.router.Group("/api")

	authAPI := api.Group("/auth")
	{
		authAPI.POST("/pin/login", s.pinLogin)
		authAPI.GET("/session", s.getSession)
		authAPI.DELETE("/session", s.logout)

		authAPI.POST("/webauthn/login/options", s.loginOptions)
		authAPI.POST("/webauthn/login/verify", s.loginVerify)

		owner := authAPI.Group("/webauthn", s.requireSession())
		owner.POST("/register/options", s.registerOptions)
		owner.POST("/register/verify", s.registerVerify)
		owner.GET("/credentials", s.listCredentials)
		owner.PATCH("/credentials/:credentialId", s.renameCredential)
		owner.DELETE("/credentials/:credentialId", s.deleteCredential)
	}

	api.POST("/invoices/recurring/process", s.cronSecret(), s.processRecurring)

	protected := api.Group("", s.requireSession())
	{
		protected.GET("/invoices", s.listInvoices)
		protected.POST("/invoices", s.createInvoice)
		protected.GET("/invoices/next-number", s.nextNumber)
		protected.GET("/invoices/stats/summary", s.statsSummary)
		protected.GET("/invoices/export", s.exportInvoices)
		protected.GET("/invoices/:id", s.getInvoice)
		protected.PUT("/invoices/:id", s.updateInvoice)
		protected.DELETE("/invoices/:id", s.deleteInvoice)
		protected.PATCH("/invoices/:id/status", s.updateStatus)
		protected.POST("/invoices/:id/generate", s.generatePDF)

		protected.GET("/templates", s.listTemplates)
		protected.POST("/templates", s.createTemplate)
		protected.GET("/templates/:id", s.getTemplate)
		protected.PUT("/templates/:id", s.updateTemplate)
		protected.DELETE("/templates/:id", s.deleteTemplate)
		protected.POST("/templates/:id/create-invoice", s.createFromTemplate)

		protected.GET("/clients", s.listClients)
		protected.POST("/clients", s.createClient)
		protected.GET("/clients/:id", s.getClient)
		protected.PUT("/clients/:id", s.updateClient)
		protected.DELETE("/clients/:id", s.deleteClient)
	}
}

// healthCheck handles GET /health
func (s *Server) healthCheck(c *gin.Context) {
	if s.deps.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC().Format(time.RFC3339)})
		return
	}

	healthy, report := s.deps.Health()
	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"components": report,
	})
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
