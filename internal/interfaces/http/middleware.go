package http

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/biller/internal/domain/entity"
)

const (
	requestIDHeader  = "X-Request-ID"
	cronSecretHeader = "x-recurring-cron-secret"

	sessionKey = "session"
)

// requestIDMiddleware tags every request with an ID, reusing the caller's when present
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(requestIDHeader),
		)
	}
}

// requireSession rejects requests without a valid session cookie
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := s.currentSession(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(sessionKey, claims)
		c.Next()
	}
}

// currentSession returns the verified claims of the request's session cookie
func (s *Server) currentSession(c *gin.Context) (*entity.SessionClaims, bool) {
	if s.deps.Sessions == nil {
		return nil, false
	}
	token, err := c.Cookie(s.deps.Sessions.CookieName())
	if err != nil || token == "" {
		return nil, false
	}
	claims, err := s.deps.Sessions.Verify(token)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// cronSecret guards scheduler-triggered endpoints with a shared secret header
func (s *Server) cronSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.config.CronSecret == "" {
			s.logger.Error("Recurring cron secret is not configured")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Recurring cron secret is not configured"})
			return
		}
		given := c.GetHeader(cronSecretHeader)
		if subtle.ConstantTimeCompare([]byte(given), []byte(s.config.CronSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
