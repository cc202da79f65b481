package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/biller/internal/application/auth"
	"github.com/garyjia/biller/internal/domain/entity"
)

type pinLoginRequest struct {
	PIN string `json:"pin"`
}

type registerVerifyRequest struct {
	Response json.RawMessage `json:"response"`
	Label    string          `json:"label"`
}

type loginVerifyRequest struct {
	Response json.RawMessage `json:"response"`
}

type renameCredentialRequest struct {
	Label string `json:"label"`
}

// pinLogin handles POST /api/auth/pin/login
func (s *Server) pinLogin(c *gin.Context) {
	ctx := c.Request.Context()
	if err := auth.CheckRate(ctx, s.deps.Limiter, auth.PINLoginRule, auth.ClientIP(c.Request.Header)); err != nil {
		s.respondAuthError(c, err, "PIN login failed")
		return
	}

	var req pinLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.PIN = ""
	}

	if err := s.deps.PIN.Verify(ctx, req.PIN); err != nil {
		s.respondAuthError(c, err, "PIN login failed")
		return
	}

	s.startSession(c, entity.MethodPIN)
}

// getSession handles GET /api/auth/session
func (s *Server) getSession(c *gin.Context) {
	hasBiometric, err := s.deps.Passkeys.HasCredentials(c.Request.Context())
	if err != nil {
		s.respondAuthError(c, err, "Failed to read session")
		return
	}

	claims, ok := s.currentSession(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false, "methods": []string{}, "hasBiometric": hasBiometric})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "methods": claims.Methods, "hasBiometric": hasBiometric})
}

// logout handles DELETE /api/auth/session
func (s *Server) logout(c *gin.Context) {
	http.SetCookie(c.Writer, s.deps.Sessions.ClearCookie())
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// registerOptions handles POST /api/auth/webauthn/register/options
func (s *Server) registerOptions(c *gin.Context) {
	options, err := s.deps.Passkeys.BeginRegistration(c.Request.Context())
	if err != nil {
		s.respondAuthError(c, err, "Failed to create registration options")
		return
	}
	c.JSON(http.StatusOK, options)
}

// registerVerify handles POST /api/auth/webauthn/register/verify
func (s *Server) registerVerify(c *gin.Context) {
	var req registerVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Registration verification failed"})
		return
	}

	if _, err := s.deps.Passkeys.CompleteRegistration(c.Request.Context(), req.Response, req.Label); err != nil {
		s.respondAuthError(c, err, "Failed to verify registration")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// loginOptions handles POST /api/auth/webauthn/login/options
func (s *Server) loginOptions(c *gin.Context) {
	ctx := c.Request.Context()
	if err := auth.CheckRate(ctx, s.deps.Limiter, auth.WebAuthnOptionsRule, auth.ClientIP(c.Request.Header)); err != nil {
		s.respondAuthError(c, err, "Failed to create login options")
		return
	}

	options, err := s.deps.Passkeys.BeginAuthentication(ctx)
	if err != nil {
		s.respondAuthError(c, err, "Failed to create login options")
		return
	}
	c.JSON(http.StatusOK, options)
}

// loginVerify handles POST /api/auth/webauthn/login/verify
func (s *Server) loginVerify(c *gin.Context) {
	ctx := c.Request.Context()
	if err := auth.CheckRate(ctx, s.deps.Limiter, auth.WebAuthnVerifyRule, auth.ClientIP(c.Request.Header)); err != nil {
		s.respondAuthError(c, err, "Failed to verify login")
		return
	}

	var req loginVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid credential response"})
		return
	}

	if _, err := s.deps.Passkeys.CompleteAuthentication(ctx, req.Response); err != nil {
		s.respondAuthError(c, err, "Failed to verify login")
		return
	}

	s.startSession(c, entity.MethodWebAuthn)
}

// listCredentials handles GET /api/auth/webauthn/credentials
func (s *Server) listCredentials(c *gin.Context) {
	views, err := s.deps.Passkeys.ListCredentials(c.Request.Context())
	if err != nil {
		s.respondAuthError(c, err, "Failed to list credentials")
		return
	}
	c.JSON(http.StatusOK, gin.H{"credentials": views})
}

// renameCredential handles PATCH /api/auth/webauthn/credentials/:credentialId
func (s *Server) renameCredential(c *gin.Context) {
	var req renameCredentialRequest
	_ = c.ShouldBindJSON(&req)

	if err := s.deps.Passkeys.RenameCredential(c.Request.Context(), c.Param("credentialId"), req.Label); err != nil {
		s.respondAuthError(c, err, "Failed to rename credential")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// deleteCredential handles DELETE /api/auth/webauthn/credentials/:credentialId
func (s *Server) deleteCredential(c *gin.Context) {
	if err := s.deps.Passkeys.DeleteCredential(c.Request.Context(), c.Param("credentialId")); err != nil {
		s.respondAuthError(c, err, "Failed to delete credential")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// startSession issues a session for method and sets its cookie
func (s *Server) startSession(c *gin.Context, method string) {
	methods := []string{method}
	token, err := s.deps.Sessions.Issue(methods)
	if err != nil {
		s.respondAuthError(c, err, "Failed to start session")
		return
	}
	http.SetCookie(c.Writer, s.deps.Sessions.Cookie(token))
	c.JSON(http.StatusOK, gin.H{"success": true, "methods": methods})
}
