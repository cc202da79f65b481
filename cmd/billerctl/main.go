package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/garyjia/biller/internal/application/auth"
	"github.com/garyjia/biller/internal/config"
	"github.com/garyjia/biller/internal/container"
	"github.com/garyjia/biller/internal/domain/entity"
	"github.com/garyjia/biller/pkg/database"
	"github.com/garyjia/biller/pkg/utils"
)

var globalFlags = []cli.Flag{
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
	&cli.BoolFlag{
		Name:  "log-debug",
		Usage: "log debug messages",
	},
}

func main() {
	app := &cli.App{
		Name:  "billerctl",
		Usage: "Operate the invoicing service from the command line",
		Flags: globalFlags,
		Commands: []*cli.Command{
			{
				Name:  "hash-pin",
				Usage: "derive AUTH_PIN_SALT and AUTH_PIN_HASH for a PIN",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "pin", Required: true, Usage: "4 to 12 digit PIN"},
					&cli.StringFlag{Name: "salt", Usage: "salt to reuse, random when empty"},
				},
				Action: hashPIN,
			},
			{
				Name:   "migrate",
				Usage:  "apply pending database migrations",
				Action: migrate,
			},
			{
				Name:   "process-recurring",
				Usage:  "run one recurring invoice pass",
				Action: processRecurring,
			},
			{
				Name:  "export",
				Usage: "write all invoices to a spreadsheet",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Usage: "output file, defaults to invoices-YYYYMMDD.xlsx"},
				},
				Action: exportInvoices,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func hashPIN(cCtx *cli.Context) error {
	pin := cCtx.String("pin")
	if !auth.ValidPINFormat(pin) {
		return fmt.Errorf("pin must be %d to %d digits", auth.MinPINLength, auth.MaxPINLength)
	}

	salt := cCtx.String("salt")
	if salt == "" {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
		salt = hex.EncodeToString(buf)
	}

	fmt.Fprintf(cCtx.App.Writer, "AUTH_PIN_SALT=%s\nAUTH_PIN_HASH=%s\n", salt, auth.HashPIN(pin, salt))
	return nil
}

// migrate opens the database directly, without starting the container.
func migrate(cCtx *cli.Context) error {
	cfg, logger, err := load(cCtx)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	return database.NewMigrator(db, logger).RunMigrations(cfg.Database.MigrationsDir)
}

func processRecurring(cCtx *cli.Context) error {
	c, logger, err := startContainer(cCtx)
	if err != nil {
		return err
	}
	defer closeContainer(c, logger)

	result, err := c.Services().Recurring.Process(cCtx.Context)
	if err != nil {
		return err
	}

	fmt.Fprintf(cCtx.App.Writer, "scanned=%d generated=%d skipped=%d pdf_failures=%d failed_sources=%d\n",
		result.SourcesScanned, result.Generated, result.Skipped, result.PDFFailures, result.FailedSources)
	return nil
}

func exportInvoices(cCtx *cli.Context) error {
	c, logger, err := startContainer(cCtx)
	if err != nil {
		return err
	}
	defer closeContainer(c, logger)

	all, err := c.Services().Invoice.List(cCtx.Context)
	if err != nil {
		return err
	}
	invoices := make([]*entity.Invoice, 0, len(all))
	for _, inv := range all {
		if !inv.IsTemplate {
			invoices = append(invoices, inv)
		}
	}

	exporter := c.Exporter()
	out := cCtx.String("out")
	if out == "" {
		out = fmt.Sprintf("invoices-%s%s", time.Now().UTC().Format("20060102"), exporter.Extension())
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := exporter.Write(f, invoices); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Info("Invoices exported", zap.String("file", out), zap.Int("count", len(invoices)))
	return nil
}

func load(cCtx *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cCtx.String("config"), cCtx.String("env-file"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.Logger.Level
	if cCtx.Bool("log-debug") {
		level = "debug"
	}
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      level,
		OutputPath: "stderr",
		Format:     "console",
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func startContainer(cCtx *cli.Context) (*container.Container, *zap.Logger, error) {
	cfg, logger, err := load(cCtx)
	if err != nil {
		return nil, nil, err
	}

	containerCfg := cfg.ToContainerConfig()
	containerCfg.Recurring.PollInterval = 0

	c, err := container.NewContainer(containerCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := c.Start(context.Background()); err != nil {
		return nil, nil, err
	}
	return c, logger, nil
}

func closeContainer(c *container.Container, logger *zap.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("Failed to close container", zap.Error(err))
	}
	_ = logger.Sync()
}
