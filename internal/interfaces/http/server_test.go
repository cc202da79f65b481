package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/biller/internal/application/auth"
	"github.com/garyjia/biller/internal/application/service"
	"github.com/garyjia/biller/internal/domain/entity"
)

type testServer struct {
	*Server
	invoices  *mockInvoiceService
	templates *mockTemplateService
	clients   *mockClientService
	recurring *mockRecurring
	pin       *mockPIN
	passkeys  *mockPasskeys
	limiter   *mockLimiter
	exporter  *mockExporter
	files     *memoryFiles
	sessions  *auth.SessionManager
}

func newTestServer(t *testing.T, mutate func(cfg *ServerConfig)) *testServer {
	t.Helper()
	cfg := DefaultServerConfig()
	cfg.CronSecret = "cron-secret"
	if mutate != nil {
		mutate(&cfg)
	}

	ts := &testServer{
		invoices:  &mockInvoiceService{},
		templates: &mockTemplateService{},
		clients:   &mockClientService{},
		recurring: &mockRecurring{},
		pin:       &mockPIN{},
		passkeys:  &mockPasskeys{},
		limiter:   &mockLimiter{allowed: true},
		exporter:  &mockExporter{},
		files:     &memoryFiles{files: map[string][]byte{}},
		sessions:  auth.NewSessionManager(auth.SessionConfig{Secret: "test-secret", TTL: time.Hour}, nil),
	}
	ts.Server = NewServer(cfg, Deps{
		Invoices:  ts.invoices,
		Templates: ts.templates,
		Clients:   ts.clients,
		Recurring: ts.recurring,
		PIN:       ts.pin,
		Passkeys:  ts.passkeys,
		Sessions:  ts.sessions,
		Limiter:   ts.limiter,
		Exporter:  ts.exporter,
		Files:     ts.files,
		Health:    func() (bool, interface{}) { return true, map[string]string{"database": "ok"} },
	}, nopLogger{})
	return ts
}

// do sends a request, attaching a valid session cookie when authed is set
func (ts *testServer) do(t *testing.T, method, target, body string, authed bool, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if authed {
		token, err := ts.sessions.Issue([]string{entity.MethodPIN})
		require.NoError(t, err)
		req.AddCookie(ts.sessions.Cookie(token))
	}

	w := httptest.NewRecorder()
	ts.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodGet, "/health", "", false)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	ts := newTestServer(t, nil)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/invoices"},
		{http.MethodGet, "/api/invoices/next-number"},
		{http.MethodGet, "/api/invoices/export"},
		{http.MethodGet, "/api/templates"},
		{http.MethodGet, "/api/clients"},
		{http.MethodPost, "/api/auth/webauthn/register/options"},
		{http.MethodGet, "/api/auth/webauthn/credentials"},
		{http.MethodGet, "/invoices/invoice_INV-1.pdf"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := ts.do(t, rt.method, rt.path, "", false)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Unauthorized", decode(t, w)["error"])
		})
	}

	w := ts.do(t, http.MethodGet, "/api/invoices", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProcessRecurring_CronSecret(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		ts := newTestServer(t, func(cfg *ServerConfig) { cfg.CronSecret = "" })
		w := ts.do(t, http.MethodPost, "/api/invoices/recurring/process", "", false, cronSecretHeader, "anything")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Zero(t, ts.recurring.calls)
	})

	t.Run("wrong secret", func(t *testing.T) {
		ts := newTestServer(t, nil)
		w := ts.do(t, http.MethodPost, "/api/invoices/recurring/process", "", false, cronSecretHeader, "nope")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Zero(t, ts.recurring.calls)
	})

	t.Run("valid secret", func(t *testing.T) {
		ts := newTestServer(t, nil)
		w := ts.do(t, http.MethodPost, "/api/invoices/recurring/process", "", false, cronSecretHeader, "cron-secret")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decode(t, w)["success"])
		assert.Equal(t, 1, ts.recurring.calls)
	})

	t.Run("processing failure", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.recurring.err = errors.New("database is locked")
		w := ts.do(t, http.MethodPost, "/api/invoices/recurring/process", "", false, cronSecretHeader, "cron-secret")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Recurring processing failed", decode(t, w)["error"])
	})
}

func TestPINLogin(t *testing.T) {
	tests := []struct {
		name       string
		verifyErr  error
		allowed    bool
		wantStatus int
		wantError  string
		wantRetry  string
	}{
		{name: "success", allowed: true, wantStatus: http.StatusOK},
		{name: "bad format", allowed: true, verifyErr: entity.NewValidationError("Invalid PIN format."), wantStatus: http.StatusBadRequest, wantError: "Invalid PIN format."},
		{name: "wrong pin", allowed: true, verifyErr: entity.ErrInvalidPIN, wantStatus: http.StatusUnauthorized, wantError: "Invalid PIN."},
		{name: "locked", allowed: true, verifyErr: &entity.LockedError{RetryAfter: 90 * time.Second}, wantStatus: http.StatusLocked, wantError: "PIN login temporarily locked due to failed attempts.", wantRetry: "90"},
		{name: "rate limited", allowed: false, wantStatus: http.StatusTooManyRequests, wantError: "Too many attempts. Try again later.", wantRetry: "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.limiter.allowed = tt.allowed
			ts.limiter.retryAfter = 2500 * time.Millisecond
			var gotPIN string
			ts.pin.verifyFunc = func(ctx context.Context, pin string) error {
				gotPIN = pin
				return tt.verifyErr
			}

			w := ts.do(t, http.MethodPost, "/api/auth/pin/login", `{"pin":"1234"}`, false, "X-Forwarded-For", "203.0.113.9")

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, []string{"pin:203.0.113.9"}, ts.limiter.keys)
			body := decode(t, w)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
				assert.Nil(t, body["debug"])
				assert.Equal(t, tt.wantRetry, w.Header().Get("Retry-After"))
				assert.Empty(t, w.Result().Cookies())
				return
			}

			assert.Equal(t, "1234", gotPIN)
			assert.Equal(t, true, body["success"])
			assert.Equal(t, []interface{}{"pin"}, body["methods"])
			cookies := w.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, ts.sessions.CookieName(), cookies[0].Name)
			assert.True(t, cookies[0].HttpOnly)

			claims, err := ts.sessions.Verify(cookies[0].Value)
			require.NoError(t, err)
			assert.Equal(t, []string{"pin"}, claims.Methods)
		})
	}
}

func TestAuthDebugPayload(t *testing.T) {
	ts := newTestServer(t, func(cfg *ServerConfig) { cfg.AuthDebug = true })
	ts.pin.verifyFunc = func(ctx context.Context, pin string) error {
		return entity.ErrInvalidPIN
	}

	w := ts.do(t, http.MethodPost, "/api/auth/pin/login", `{"pin":"9999"}`, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	body := decode(t, w)
	debug, ok := body["debug"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "invalid PIN", debug["message"])
	assert.NotEmpty(t, debug["name"])
	assert.LessOrEqual(t, len(strings.Split(debug["stack"].(string), "\n")), debugStackLines)
}

func TestSessionEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.passkeys.hasCredentials = true

	w := ts.do(t, http.MethodGet, "/api/auth/session", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["authenticated"])
	assert.Equal(t, []interface{}{}, body["methods"])
	assert.Equal(t, true, body["hasBiometric"])

	w = ts.do(t, http.MethodGet, "/api/auth/session", "", true)
	body = decode(t, w)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, []interface{}{"pin"}, body["methods"])

	w = ts.do(t, http.MethodDelete, "/api/auth/session", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestWebAuthnLogin(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "success", wantStatus: http.StatusOK},
		{name: "no challenge", err: entity.ErrNoChallenge, wantStatus: http.StatusBadRequest, wantError: "No active challenge"},
		{name: "expired", err: entity.ErrChallengeExpired, wantStatus: http.StatusBadRequest, wantError: "Challenge expired"},
		{name: "malformed", err: entity.NewValidationError("Invalid credential response"), wantStatus: http.StatusBadRequest, wantError: "Invalid credential response"},
		{name: "unknown credential", err: entity.ErrCredentialNotRecognized, wantStatus: http.StatusBadRequest, wantError: "Credential not recognized"},
		{name: "bad signature", err: errors.Join(entity.ErrVerificationFailed, errors.New("sig")), wantStatus: http.StatusUnauthorized, wantError: "Fingerprint verification failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.passkeys.completeAuthErr = tt.err

			w := ts.do(t, http.MethodPost, "/api/auth/webauthn/login/verify", `{"response":{"id":"a"}}`, false)
			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode(t, w)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
				return
			}
			assert.Equal(t, []interface{}{"webauthn"}, body["methods"])
			require.Len(t, w.Result().Cookies(), 1)
		})
	}
}

func TestWebAuthnLoginOptions(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodPost, "/api/auth/webauthn/login/options", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "login", decode(t, w)["challenge"])
	assert.Equal(t, []string{"webauthn-options:unknown"}, ts.limiter.keys)

	ts.passkeys.beginAuthErr = entity.ErrNoCredentials
	w = ts.do(t, http.MethodPost, "/api/auth/webauthn/login/options", "", false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No fingerprint credential registered yet.", decode(t, w)["error"])
}

func TestWebAuthnRegistration(t *testing.T) {
	ts := newTestServer(t, nil)
	var gotLabel string
	ts.passkeys.completeRegistrationFn = func(response json.RawMessage, label string) error {
		gotLabel = label
		return nil
	}

	w := ts.do(t, http.MethodPost, "/api/auth/webauthn/register/options", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "reg", decode(t, w)["challenge"])

	w = ts.do(t, http.MethodPost, "/api/auth/webauthn/register/verify", `{"response":{"id":"x"},"label":"Laptop"}`, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Laptop", gotLabel)

	ts.passkeys.completeRegistrationFn = func(json.RawMessage, string) error {
		return errors.Join(entity.ErrRegistrationFailed, errors.New("origin"))
	}
	w = ts.do(t, http.MethodPost, "/api/auth/webauthn/register/verify", `{"response":{}}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Registration verification failed", decode(t, w)["error"])
}

func TestCredentialManagement(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.passkeys.views = []auth.CredentialView{{CredentialID: "a", Label: "Fingerprint 1", Transports: []string{}}}

	w := ts.do(t, http.MethodGet, "/api/auth/webauthn/credentials", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	creds := decode(t, w)["credentials"].([]interface{})
	require.Len(t, creds, 1)
	assert.Equal(t, "a", creds[0].(map[string]interface{})["credentialID"])

	w = ts.do(t, http.MethodPatch, "/api/auth/webauthn/credentials/a", `{"label":"Desk"}`, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Desk", ts.passkeys.renamed["a"])

	ts.passkeys.renameErr = entity.NewValidationError("Label is required and must be <= 50 chars.")
	w = ts.do(t, http.MethodPatch, "/api/auth/webauthn/credentials/a", `{"label":""}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Label is required and must be <= 50 chars.", decode(t, w)["error"])

	ts.passkeys.deleteErr = entity.ErrNotFound
	w = ts.do(t, http.MethodDelete, "/api/auth/webauthn/credentials/zzz", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Credential not found", decode(t, w)["error"])
}

func TestInvoiceHandlers(t *testing.T) {
	t.Run("create duplicate number", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.invoices.createFunc = func(ctx context.Context, in *service.InvoiceInput) (*entity.Invoice, error) {
			assert.Equal(t, "INV-2026-004", in.Invoice.Number)
			return nil, entity.ErrDuplicateNumber
		}
		w := ts.do(t, http.MethodPost, "/api/invoices", `{"invoice":{"number":"INV-2026-004"}}`, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invoice number already exists", decode(t, w)["error"])
	})

	t.Run("create", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.invoices.createFunc = func(ctx context.Context, in *service.InvoiceInput) (*entity.Invoice, error) {
			return &entity.Invoice{ID: 7, Status: entity.StatusUnpaid}, nil
		}
		w := ts.do(t, http.MethodPost, "/api/invoices", `{"customer":{"name":"Acme"}}`, true)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, float64(7), decode(t, w)["id"])
	})

	t.Run("malformed body", func(t *testing.T) {
		ts := newTestServer(t, nil)
		w := ts.do(t, http.MethodPost, "/api/invoices", `{"items":"nope"}`, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		ts := newTestServer(t, nil)
		w := ts.do(t, http.MethodGet, "/api/invoices/42", "", true)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Invoice not found", decode(t, w)["error"])

		w = ts.do(t, http.MethodGet, "/api/invoices/abc", "", true)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("status update", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.invoices.updateStatusFunc = func(ctx context.Context, id int64, update service.StatusUpdate) (*entity.Invoice, error) {
			if update.Status == "bogus" {
				return nil, entity.NewValidationError("Invalid status. Must be unpaid, partial, or paid")
			}
			require.NotNil(t, update.AmountPaid)
			return &entity.Invoice{ID: id, Status: update.Status, AmountPaid: *update.AmountPaid}, nil
		}

		w := ts.do(t, http.MethodPatch, "/api/invoices/3/status", `{"status":"partial","amountPaid":40}`, true)
		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "partial", body["status"])
		assert.Equal(t, float64(40), body["amountPaid"])

		w = ts.do(t, http.MethodPatch, "/api/invoices/3/status", `{"status":"bogus"}`, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid status. Must be unpaid, partial, or paid", decode(t, w)["error"])
	})

	t.Run("next number", func(t *testing.T) {
		ts := newTestServer(t, nil)
		w := ts.do(t, http.MethodGet, "/api/invoices/next-number", "", true)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "INV-2026-001", decode(t, w)["invoiceNumber"])
	})

	t.Run("generate", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.invoices.generatePDFFunc = func(ctx context.Context, id int64) (*service.PDFResult, error) {
			return &service.PDFResult{PDFPath: "/invoices/invoice_INV-1.pdf", Renderer: "local"}, nil
		}
		ts.invoices.getFunc = func(ctx context.Context, id int64) (*entity.Invoice, error) {
			return &entity.Invoice{ID: id, PDFPath: "/invoices/invoice_INV-1.pdf"}, nil
		}

		w := ts.do(t, http.MethodPost, "/api/invoices/5/generate", "", true)
		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "/invoices/invoice_INV-1.pdf", body["pdfUrl"])
		assert.Equal(t, "Invoice generated successfully", body["message"])
	})

	t.Run("generate without renderer", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.invoices.generatePDFFunc = func(ctx context.Context, id int64) (*service.PDFResult, error) {
			return nil, errors.New("API key not configured")
		}
		w := ts.do(t, http.MethodPost, "/api/invoices/5/generate", "", true)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Failed to generate invoice", decode(t, w)["error"])
	})
}

func TestExportInvoices(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.invoices.listFunc = func(ctx context.Context) ([]*entity.Invoice, error) {
		return []*entity.Invoice{{ID: 1}, {ID: 2, IsTemplate: true}, {ID: 3}}, nil
	}

	w := ts.do(t, http.MethodGet, "/api/invoices/export", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "xlsx", w.Body.String())
	assert.Equal(t, ts.exporter.ContentType(), w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `.xlsx"`)
	require.Len(t, ts.exporter.exported, 2)
	assert.Equal(t, int64(3), ts.exporter.exported[1].ID)
}

func TestServePDF(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.files.files["invoices/invoice_INV-1.pdf"] = []byte("%PDF-1.4")

	w := ts.do(t, http.MethodGet, "/invoices/invoice_INV-1.pdf", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4", w.Body.String())

	for _, name := range []string{"missing.pdf", "notes.txt", "..pdf"} {
		w = ts.do(t, http.MethodGet, "/invoices/"+name, "", true)
		assert.Equal(t, http.StatusNotFound, w.Code, name)
	}
}

func TestTemplateAndClientHandlers(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/templates/9", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Template not found", decode(t, w)["error"])

	w = ts.do(t, http.MethodDelete, "/api/templates/9", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var gotNumber string
	ts.templates.createInvoiceFunc = func(ctx context.Context, id int64, in service.CreateFromTemplateInput) (*entity.Invoice, error) {
		gotNumber = in.Invoice.Number
		return &entity.Invoice{ID: 11}, nil
	}
	w = ts.do(t, http.MethodPost, "/api/templates/9/create-invoice", "", true)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, gotNumber)

	w = ts.do(t, http.MethodPost, "/api/templates/9/create-invoice", `{"invoice":{"number":"INV-9"}}`, true)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "INV-9", gotNumber)

	ts.clients.createFunc = func(ctx context.Context, client *entity.Client) (*entity.Client, error) {
		if client.Name == "" {
			return nil, entity.NewValidationError("Client name is required")
		}
		client.ID = 4
		return client, nil
	}
	w = ts.do(t, http.MethodPost, "/api/clients", `{"email":"a@b.co"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Client name is required", decode(t, w)["error"])

	w = ts.do(t, http.MethodPost, "/api/clients", `{"name":"Acme"}`, true)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Acme", decode(t, w)["name"])

	w = ts.do(t, http.MethodDelete, "/api/clients/4", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Client deleted successfully", decode(t, w)["message"])
}

func TestRespondError_InternalErrorsUseFallback(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "storage failure",
			err:     errors.New("sqlite: no such column: invoices.recurring_cfg in SELECT * FROM invoices"),
			status:  http.StatusInternalServerError,
			message: "Failed to list invoices",
		},
		{
			name:    "wrapped storage failure",
			err:     fmt.Errorf("failed to list invoices: %w", errors.New("open /var/lib/biller/biller.db: permission denied")),
			status:  http.StatusInternalServerError,
			message: "Failed to list invoices",
		},
		{
			name:    "empty message",
			err:     errors.New(""),
			status:  http.StatusInternalServerError,
			message: "Failed to list invoices",
		},
		{
			name:    "validation stays verbatim",
			err:     entity.NewValidationError("Invalid status. Must be unpaid, partial, or paid"),
			status:  http.StatusBadRequest,
			message: "Invalid status. Must be unpaid, partial, or paid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.invoices.listFunc = func(ctx context.Context) ([]*entity.Invoice, error) {
				return nil, tt.err
			}

			w := ts.do(t, http.MethodGet, "/api/invoices", "", true)
			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.message, body["error"])
			assert.NotContains(t, w.Body.String(), "sqlite")
			assert.NotContains(t, w.Body.String(), "/var/lib")
		})
	}
}
