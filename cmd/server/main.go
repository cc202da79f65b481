package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/garyjia/biller/internal/config"
	"github.com/garyjia/biller/internal/container"
	httpserver "github.com/garyjia/biller/internal/interfaces/http"
	"github.com/garyjia/biller/pkg/utils"
)

func main() {
	app := &cli.App{
		Name:  "biller-server",
		Usage: "Serve the invoicing API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "configs/config.yaml",
				Usage:   "path to the YAML configuration file",
				EnvVars: []string{"BILLER_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded before reading the environment",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(cCtx *cli.Context) error {
	cfg, err := config.Load(cCtx.String("config"), cCtx.String("env-file"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting invoicing service",
		zap.String("environment", cfg.Server.Environment),
		zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	services := c.Services()
	authBundle := c.Auth()
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		CronSecret:   cfg.Recurring.CronSecret,
		AuthDebug:    cfg.Auth.Debug,
	}, httpserver.Deps{
		Invoices:  services.Invoice,
		Templates: services.Template,
		Clients:   services.Client,
		Recurring: services.Recurring,
		PIN:       authBundle.PIN,
		Passkeys:  authBundle.WebAuthn,
		Sessions:  authBundle.Sessions,
		Limiter:   c.RateLimiter(),
		Exporter:  c.Exporter(),
		Files:     c.FileStorage(),
		Health: func() (bool, interface{}) {
			h := c.Health()
			return h.Overall, h.Components
		},
	}, c.ServiceLogger())

	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("Server exited successfully")
	return nil
}
