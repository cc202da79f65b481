package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/garyjia/biller/internal/application/auth"
	"github.com/garyjia/biller/internal/application/service"
	"github.com/garyjia/biller/internal/domain/entity"
)

var errNotImplemented = errors.New("not implemented")

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockInvoiceService struct {
	listFunc         func(ctx context.Context) ([]*entity.Invoice, error)
	getFunc          func(ctx context.Context, id int64) (*entity.Invoice, error)
	createFunc       func(ctx context.Context, in *service.InvoiceInput) (*entity.Invoice, error)
	updateFunc       func(ctx context.Context, id int64, in *service.InvoiceInput) (*entity.Invoice, error)
	deleteFunc       func(ctx context.Context, id int64) error
	updateStatusFunc func(ctx context.Context, id int64, update service.StatusUpdate) (*entity.Invoice, error)
	nextNumberFunc   func(ctx context.Context) (string, error)
	generatePDFFunc  func(ctx context.Context, id int64) (*service.PDFResult, error)
	statsFunc        func(ctx context.Context) (*service.StatsSummary, error)
}

func (m *mockInvoiceService) List(ctx context.Context) ([]*entity.Invoice, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return []*entity.Invoice{}, nil
}

func (m *mockInvoiceService) Get(ctx context.Context, id int64) (*entity.Invoice, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, entity.ErrNotFound
}

func (m *mockInvoiceService) Create(ctx context.Context, in *service.InvoiceInput) (*entity.Invoice, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, in)
	}
	return nil, errNotImplemented
}

func (m *mockInvoiceService) Update(ctx context.Context, id int64, in *service.InvoiceInput) (*entity.Invoice, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, in)
	}
	return nil, errNotImplemented
}

func (m *mockInvoiceService) Delete(ctx context.Context, id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockInvoiceService) UpdateStatus(ctx context.Context, id int64, update service.StatusUpdate) (*entity.Invoice, error) {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, update)
	}
	return nil, errNotImplemented
}

func (m *mockInvoiceService) NextNumber(ctx context.Context) (string, error) {
	if m.nextNumberFunc != nil {
		return m.nextNumberFunc(ctx)
	}
	return "INV-2026-001", nil
}

func (m *mockInvoiceService) GeneratePDF(ctx context.Context, id int64) (*service.PDFResult, error) {
	if m.generatePDFFunc != nil {
		return m.generatePDFFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *mockInvoiceService) Stats(ctx context.Context) (*service.StatsSummary, error) {
	if m.statsFunc != nil {
		return m.statsFunc(ctx)
	}
	return &service.StatsSummary{RecentInvoices: []service.RecentInvoice{}}, nil
}

type mockTemplateService struct {
	createInvoiceFunc func(ctx context.Context, id int64, in service.CreateFromTemplateInput) (*entity.Invoice, error)
}

func (m *mockTemplateService) List(ctx context.Context) ([]*entity.Invoice, error) {
	return []*entity.Invoice{}, nil
}

func (m *mockTemplateService) Get(ctx context.Context, id int64) (*entity.Invoice, error) {
	return nil, entity.ErrNotFound
}

func (m *mockTemplateService) Create(ctx context.Context, in *service.InvoiceInput) (*entity.Invoice, error) {
	return nil, errNotImplemented
}

func (m *mockTemplateService) Update(ctx context.Context, id int64, in *service.InvoiceInput) (*entity.Invoice, error) {
	return nil, errNotImplemented
}

func (m *mockTemplateService) Delete(ctx context.Context, id int64) error {
	return entity.ErrNotFound
}

func (m *mockTemplateService) CreateInvoice(ctx context.Context, id int64, in service.CreateFromTemplateInput) (*entity.Invoice, error) {
	if m.createInvoiceFunc != nil {
		return m.createInvoiceFunc(ctx, id, in)
	}
	return nil, errNotImplemented
}

type mockClientService struct {
	createFunc func(ctx context.Context, client *entity.Client) (*entity.Client, error)
}

func (m *mockClientService) List(ctx context.Context) ([]*entity.Client, error) {
	return []*entity.Client{}, nil
}

func (m *mockClientService) Get(ctx context.Context, id int64) (*entity.Client, error) {
	return nil, entity.ErrNotFound
}

func (m *mockClientService) Create(ctx context.Context, client *entity.Client) (*entity.Client, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, client)
	}
	return nil, errNotImplemented
}

func (m *mockClientService) Update(ctx context.Context, id int64, client *entity.Client) (*entity.Client, error) {
	return nil, errNotImplemented
}

func (m *mockClientService) Delete(ctx context.Context, id int64) error {
	return nil
}

type mockRecurring struct {
	calls int
	err   error
}

func (m *mockRecurring) Process(ctx context.Context) (*service.ProcessResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &service.ProcessResult{Generated: 1}, nil
}

type mockPIN struct {
	verifyFunc func(ctx context.Context, pin string) error
}

func (m *mockPIN) Verify(ctx context.Context, pin string) error {
	if m.verifyFunc != nil {
		return m.verifyFunc(ctx, pin)
	}
	return nil
}

type mockPasskeys struct {
	hasCredentials         bool
	views                  []auth.CredentialView
	beginAuthErr           error
	completeAuthErr        error
	completeRegistrationFn func(response json.RawMessage, label string) error
	renameErr              error
	deleteErr              error
	renamed                map[string]string
}

func (m *mockPasskeys) BeginRegistration(ctx context.Context) (interface{}, error) {
	return map[string]string{"challenge": "reg"}, nil
}

func (m *mockPasskeys) CompleteRegistration(ctx context.Context, response json.RawMessage, label string) (*entity.WebAuthnCredential, error) {
	if m.completeRegistrationFn != nil {
		if err := m.completeRegistrationFn(response, label); err != nil {
			return nil, err
		}
	}
	return &entity.WebAuthnCredential{CredentialID: "new", Label: label}, nil
}

func (m *mockPasskeys) BeginAuthentication(ctx context.Context) (interface{}, error) {
	if m.beginAuthErr != nil {
		return nil, m.beginAuthErr
	}
	return map[string]string{"challenge": "login"}, nil
}

func (m *mockPasskeys) CompleteAuthentication(ctx context.Context, response json.RawMessage) (*entity.WebAuthnCredential, error) {
	if m.completeAuthErr != nil {
		return nil, m.completeAuthErr
	}
	return &entity.WebAuthnCredential{CredentialID: "a"}, nil
}

func (m *mockPasskeys) HasCredentials(ctx context.Context) (bool, error) {
	return m.hasCredentials, nil
}

func (m *mockPasskeys) ListCredentials(ctx context.Context) ([]auth.CredentialView, error) {
	return m.views, nil
}

func (m *mockPasskeys) RenameCredential(ctx context.Context, credentialID, label string) error {
	if m.renameErr != nil {
		return m.renameErr
	}
	if m.renamed == nil {
		m.renamed = map[string]string{}
	}
	m.renamed[credentialID] = label
	return nil
}

func (m *mockPasskeys) DeleteCredential(ctx context.Context, credentialID string) error {
	return m.deleteErr
}

type mockLimiter struct {
	allowed    bool
	retryAfter time.Duration
	keys       []string
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	m.keys = append(m.keys, key)
	return m.allowed, m.retryAfter, nil
}

type mockExporter struct {
	exported []*entity.Invoice
}

func (m *mockExporter) Write(w io.Writer, invoices []*entity.Invoice) error {
	m.exported = invoices
	_, err := w.Write([]byte("xlsx"))
	return err
}

func (m *mockExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (m *mockExporter) Extension() string { return ".xlsx" }

type memoryFiles struct {
	files map[string][]byte
}

func (m *memoryFiles) Save(ctx context.Context, path string, content []byte) error {
	m.files[path] = content
	return nil
}

func (m *memoryFiles) Read(ctx context.Context, path string) ([]byte, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return content, nil
}

func (m *memoryFiles) Exists(ctx context.Context, path string) bool {
	_, ok := m.files[path]
	return ok
}

func (m *memoryFiles) Delete(ctx context.Context, path string) error {
	delete(m.files, path)
	return nil
}

func (m *memoryFiles) GetFullPath(relativePath string) string {
	return "/tmp/" + relativePath
}
