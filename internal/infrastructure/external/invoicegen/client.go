// Package invoicegen renders invoices through the invoice-generator.com API.
package invoicegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
)

// DefaultEndpoint is the public invoice-generator.com API
const DefaultEndpoint = "https://invoice-generator.com"

// Config holds the client settings
type Config struct {
	APIKey    string
	Endpoint  string
	Timeout   time.Duration
	PublicDir string
}

// Client posts invoice payloads and returns the rendered PDF
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logos      *LogoResolver
	logger     *zap.Logger
}

// NewClient creates a new invoice-generator client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logos:      NewLogoResolver(cfg.PublicDir, logger),
		logger:     logger,
	}
}

// Name identifies the renderer in logs and responses
func (c *Client) Name() string {
	return "invoice-generator"
}

// Render sends the invoice to the API and returns the PDF bytes
func (c *Client) Render(ctx context.Context, inv *entity.Invoice) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("API key not configured: %w", entity.ErrNotConfigured)
	}

	logo := c.logos.Resolve(ctx, inv.Company.Logo)
	payload := BuildPayload(inv, logo)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invoice payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Invoice API request failed", zap.String("number", inv.Invoice.Number), zap.Error(err))
		return nil, fmt.Errorf("invoice API request failed: %w", err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice API response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(content)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		c.logger.Error("Invoice API returned an error",
			zap.Int("status", resp.StatusCode),
			zap.String("number", inv.Invoice.Number),
			zap.String("body", msg))
		return nil, fmt.Errorf("invoice API returned status %d", resp.StatusCode)
	}

	c.logger.Info("Invoice rendered by API",
		zap.String("number", inv.Invoice.Number),
		zap.Int("bytes", len(content)))

	return content, nil
}

var _ port.PDFRenderer = (*Client)(nil)
