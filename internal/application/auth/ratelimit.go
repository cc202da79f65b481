package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
)

// RateRule is a fixed-window budget for one kind of request
type RateRule struct {
	Prefix string
	Limit  int
	Window time.Duration
}

var (
	PINLoginRule        = RateRule{Prefix: "pin", Limit: 20, Window: 5 * time.Minute}
	WebAuthnOptionsRule = RateRule{Prefix: "webauthn-options", Limit: 30, Window: 5 * time.Minute}
	WebAuthnVerifyRule  = RateRule{Prefix: "webauthn-verify", Limit: 30, Window: 5 * time.Minute}
)

// Key is the limiter key for a client address
func (r RateRule) Key(ip string) string {
	return r.Prefix + ":" + ip
}

// CheckRate counts a request against rule and returns *entity.RateLimitError when over budget
func CheckRate(ctx context.Context, limiter port.RateLimiter, rule RateRule, ip string) error {
	if limiter == nil {
		return nil
	}
	ok, retryAfter, err := limiter.Allow(ctx, rule.Key(ip), rule.Limit, rule.Window)
	if err != nil {
		return fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !ok {
		return &entity.RateLimitError{RetryAfter: retryAfter}
	}
	return nil
}

// ClientIP picks the caller address from proxy headers
func ClientIP(h http.Header) string {
	if fwd := h.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(h.Get("X-Real-IP")); real != "" {
		return real
	}
	return "unknown"
}
