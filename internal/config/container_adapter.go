package config

import (
	"github.com/garyjia/biller/internal/application/service"
	"github.com/garyjia/biller/internal/container"
	"github.com/garyjia/biller/internal/domain/entity"
	"github.com/garyjia/biller/internal/infrastructure/storage"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
			Production:   c.Server.IsProduction(),
		},
		Auth: container.AuthConfig{
			SessionSecret:   c.Auth.SessionSecret,
			SessionTTL:      c.Auth.SessionTTL(),
			PINSalt:         c.Auth.PINSalt,
			PINHash:         c.Auth.PINHash,
			PINMaxAttempts:  c.Auth.PINMaxAttempts,
			PINLockDuration: c.Auth.PINLockDuration(),
			RPID:            c.Auth.WebAuthnRPID,
			RPName:          c.Auth.WebAuthnRPName,
			Origins:         c.Auth.WebAuthnOrigins(),
			Debug:           c.Auth.Debug,
		},
		Recurring: container.RecurringConfig{
			CronSecret:   c.Recurring.CronSecret,
			PollInterval: c.Recurring.PollInterval,
			PassTimeout:  c.Recurring.PassTimeout,
		},
		PDF: container.PDFConfig{
			Provider:  c.PDF.Provider,
			APIKey:    c.PDF.APIKey,
			Endpoint:  c.PDF.Endpoint,
			Timeout:   c.PDF.Timeout,
			Validate:  c.PDF.Validate,
			PublicDir: c.PDF.PublicDir,
		},
		Storage: container.StorageConfig{
			Backend:  c.Storage.Backend,
			LocalDir: c.Storage.LocalDir,
			S3: storage.S3Config{
				Bucket:    c.Storage.S3.Bucket,
				Prefix:    c.Storage.S3.Prefix,
				Region:    c.Storage.S3.Region,
				Endpoint:  c.Storage.S3.Endpoint,
				AccessKey: c.Storage.S3.AccessKey,
				SecretKey: c.Storage.S3.SecretKey,
			},
		},
		RateLimit: container.RateLimitConfig{
			Backend:  c.RateLimit.Backend,
			RedisURL: c.RateLimit.RedisURL,
		},
		Lark: container.LarkConfig{
			Enabled:       c.Notify.Lark.Enabled,
			AppID:         c.Notify.Lark.AppID,
			AppSecret:     c.Notify.Lark.AppSecret,
			BaseURL:       c.Notify.Lark.BaseURL,
			ReceiveIDType: c.Notify.Lark.ReceiveIDType,
			ReceiveID:     c.Notify.Lark.ReceiveID,
		},
		Defaults: service.Defaults{
			Company: entity.Party{
				Name:    c.Company.Name,
				Tagline: c.Company.Tagline,
				Logo:    c.Company.Logo,
				Phone:   c.Company.Phone,
				Email:   c.Company.Email,
				Address: c.Company.Address,
				City:    c.Company.City,
				Country: c.Company.Country,
				VatID:   c.Company.VatID,
			},
			AccountDetails: entity.AccountDetails{
				BankName:          c.Account.BankName,
				AccountHolderName: c.Account.AccountHolderName,
				AccountNumber:     c.Account.AccountNumber,
				IBAN:              c.Account.IBAN,
				SwiftBIC:          c.Account.SwiftBIC,
				BranchName:        c.Account.BranchName,
				BranchAddress:     c.Account.BranchAddress,
			},
		},
	}
}
