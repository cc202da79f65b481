package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/biller/internal/domain/entity"
)

const debugStackLines = 5

// errorResponse is the JSON body of every failed request
type errorResponse struct {
	Error string     `json:"error"`
	Debug *debugInfo `json:"debug,omitempty"`
}

type debugInfo struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

// authFailures maps ceremony errors to their status and public message
var authFailures = []struct {
	err     error
	status  int
	message string
}{
	{entity.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	{entity.ErrInvalidPIN, http.StatusUnauthorized, "Invalid PIN."},
	{entity.ErrNoChallenge, http.StatusBadRequest, "No active challenge"},
	{entity.ErrChallengeExpired, http.StatusBadRequest, "Challenge expired"},
	{entity.ErrNoCredentials, http.StatusBadRequest, "No fingerprint credential registered yet."},
	{entity.ErrCredentialNotRecognized, http.StatusBadRequest, "Credential not recognized"},
	{entity.ErrVerificationFailed, http.StatusUnauthorized, "Fingerprint verification failed"},
	{entity.ErrRegistrationFailed, http.StatusBadRequest, "Registration verification failed"},
}

// respondError writes err with the status its kind maps to.
// notFound is the message used for entity.ErrNotFound; fallback is the only
// text an unexpected error puts in the body.
func (s *Server) respondError(c *gin.Context, err error, notFound, fallback string) {
	status, message := s.classify(err, notFound, fallback)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", c.GetString(requestIDHeader),
			"error", err,
		)
	}
	setRetryAfter(c, err)
	c.JSON(status, errorResponse{Error: message})
}

// respondAuthError is respondError for the auth routes, which may carry debug details
func (s *Server) respondAuthError(c *gin.Context, err error, fallback string) {
	status, message := s.classify(err, "Credential not found", fallback)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Auth request failed", "path", c.Request.URL.Path, "error", err)
	}

	setRetryAfter(c, err)
	body := errorResponse{Error: message}
	if s.config.AuthDebug {
		s.logger.Info("Auth failure", "path", c.Request.URL.Path, "status", status, "error", err)
		body.Debug = debugPayload(err, fallback)
	}
	c.JSON(status, body)
}

func (s *Server) classify(err error, notFound, fallback string) (int, string) {
	var rateErr *entity.RateLimitError
	var lockErr *entity.LockedError
	var validation *entity.ValidationError

	switch {
	case errors.As(err, &rateErr):
		return http.StatusTooManyRequests, "Too many attempts. Try again later."
	case errors.As(err, &lockErr):
		return http.StatusLocked, "PIN login temporarily locked due to failed attempts."
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Message
	case errors.Is(err, entity.ErrDuplicateNumber):
		return http.StatusBadRequest, "Invoice number already exists"
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound, notFound
	case errors.Is(err, entity.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	}

	for _, f := range authFailures {
		if errors.Is(err, f.err) {
			return f.status, f.message
		}
	}

	return http.StatusInternalServerError, fallback
}

// setRetryAfter adds the Retry-After header for rate limit and lockout errors
func setRetryAfter(c *gin.Context, err error) {
	var rateErr *entity.RateLimitError
	if errors.As(err, &rateErr) {
		c.Header("Retry-After", strconv.Itoa(entity.RetryAfterSeconds(rateErr.RetryAfter)))
		return
	}
	var lockErr *entity.LockedError
	if errors.As(err, &lockErr) {
		c.Header("Retry-After", strconv.Itoa(entity.RetryAfterSeconds(lockErr.RetryAfter)))
	}
}

// debugPayload describes err as a name, message and the first lines of its wrap chain
func debugPayload(err error, fallback string) *debugInfo {
	if err == nil {
		return &debugInfo{Name: "UnknownError", Message: fallback}
	}

	var chain []string
	for e := err; e != nil && len(chain) < debugStackLines; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %s", e, e.Error()))
	}

	message := err.Error()
	if message == "" {
		message = fallback
	}
	return &debugInfo{
		Name:    strings.TrimPrefix(fmt.Sprintf("%T", err), "*"),
		Message: message,
		Stack:   strings.Join(chain, "\n"),
	}
}
