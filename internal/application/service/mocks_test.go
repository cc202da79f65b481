package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/biller/internal/domain/entity"
)

// memoryInvoiceRepo is an in-memory InvoiceRepository enforcing the same
// uniqueness rules as the SQLite schema
type memoryInvoiceRepo struct {
	mu       sync.Mutex
	nextID   int64
	invoices map[int64]*entity.Invoice

	createErr  error
	advanceErr error
	advances   []string
}

func newMemoryInvoiceRepo(seed ...*entity.Invoice) *memoryInvoiceRepo {
	r := &memoryInvoiceRepo{invoices: make(map[int64]*entity.Invoice)}
	for _, inv := range seed {
		if err := r.Create(context.Background(), inv); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *memoryInvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.invoices {
		if !invoice.IsTemplate && !existing.IsTemplate && existing.Invoice.Number == invoice.Invoice.Number {
			return entity.ErrDuplicateNumber
		}
		if invoice.Recurring.SourceInvoiceID != nil && existing.Recurring.SourceInvoiceID != nil &&
			*invoice.Recurring.SourceInvoiceID == *existing.Recurring.SourceInvoiceID &&
			invoice.Invoice.Date == existing.Invoice.Date {
			return entity.ErrDuplicateOccurrence
		}
	}

	r.nextID++
	invoice.ID = r.nextID
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(r.nextID) * time.Minute)
	}
	r.invoices[invoice.ID] = invoice.Clone()
	return nil
}

func (r *memoryInvoiceRepo) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv, ok := r.invoices[id]; ok {
		return inv.Clone(), nil
	}
	return nil, nil
}

func (r *memoryInvoiceRepo) GetByNumber(ctx context.Context, number string) (*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if !inv.IsTemplate && inv.Invoice.Number == number {
			return inv.Clone(), nil
		}
	}
	return nil, nil
}

func (r *memoryInvoiceRepo) Update(ctx context.Context, invoice *entity.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[invoice.ID]; !ok {
		return entity.ErrNotFound
	}
	r.invoices[invoice.ID] = invoice.Clone()
	return nil
}

func (r *memoryInvoiceRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[id]; !ok {
		return entity.ErrNotFound
	}
	delete(r.invoices, id)
	return nil
}

func (r *memoryInvoiceRepo) List(ctx context.Context, filter entity.InvoiceFilter) ([]*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.invoices {
		if filter.IsTemplate != nil && inv.IsTemplate != *filter.IsTemplate {
			continue
		}
		if filter.RecurringEnabled != nil && inv.Recurring.Enabled != *filter.RecurringEnabled {
			continue
		}
		out = append(out, inv.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryInvoiceRepo) ListTemplates(ctx context.Context) ([]*entity.Invoice, error) {
	isTemplate := true
	out, _ := r.List(ctx, entity.InvoiceFilter{IsTemplate: &isTemplate})
	sort.Slice(out, func(i, j int) bool { return out[i].TemplateName < out[j].TemplateName })
	return out, nil
}

func (r *memoryInvoiceRepo) ListRecurringSources(ctx context.Context) ([]*entity.Invoice, error) {
	isTemplate, enabled := false, true
	out, _ := r.List(ctx, entity.InvoiceFilter{IsTemplate: &isTemplate, RecurringEnabled: &enabled})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryInvoiceRepo) HighestSequence(ctx context.Context, prefix string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	highest := 0
	for _, inv := range r.invoices {
		if !strings.HasPrefix(inv.Invoice.Number, prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(inv.Invoice.Number, prefix)); err == nil && n > highest {
			highest = n
		}
	}
	return highest, nil
}

func (r *memoryInvoiceRepo) AdvanceSchedule(ctx context.Context, id int64, nextRunDate string, lastRunAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.advanceErr != nil {
		return r.advanceErr
	}
	inv, ok := r.invoices[id]
	if !ok {
		return entity.ErrNotFound
	}
	inv.Recurring.NextRunDate = nextRunDate
	if lastRunAt != nil {
		t := *lastRunAt
		inv.Recurring.LastRunAt = &t
	}
	r.advances = append(r.advances, nextRunDate)
	return nil
}

func (r *memoryInvoiceRepo) SetPDFPath(ctx context.Context, id int64, pdfPath string, generatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return entity.ErrNotFound
	}
	inv.PDFPath = pdfPath
	inv.GeneratedAt = &generatedAt
	return nil
}

func (r *memoryInvoiceRepo) Count(ctx context.Context, isTemplate bool) (int, error) {
	out, _ := r.List(ctx, entity.InvoiceFilter{IsTemplate: &isTemplate})
	return len(out), nil
}

// children returns generated occurrences of a source ordered by date
func (r *memoryInvoiceRepo) children(sourceID int64) []*entity.Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.invoices {
		if inv.Recurring.SourceInvoiceID != nil && *inv.Recurring.SourceInvoiceID == sourceID {
			out = append(out, inv.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Invoice.Date < out[j].Invoice.Date })
	return out
}

type mockClientRepo struct {
	createFunc  func(ctx context.Context, client *entity.Client) error
	getByIDFunc func(ctx context.Context, id int64) (*entity.Client, error)
	updateFunc  func(ctx context.Context, client *entity.Client) error
	deleteFunc  func(ctx context.Context, id int64) error
	listFunc    func(ctx context.Context) ([]*entity.Client, error)
}

func (m *mockClientRepo) Create(ctx context.Context, client *entity.Client) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, client)
	}
	client.ID = 1
	return nil
}

func (m *mockClientRepo) GetByID(ctx context.Context, id int64) (*entity.Client, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockClientRepo) Update(ctx context.Context, client *entity.Client) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, client)
	}
	return nil
}

func (m *mockClientRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockClientRepo) List(ctx context.Context) ([]*entity.Client, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return []*entity.Client{}, nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockPDFService struct {
	mu           sync.Mutex
	generateFunc func(ctx context.Context, invoice *entity.Invoice) (*PDFResult, error)
	calls        []string
}

func (m *mockPDFService) Generate(ctx context.Context, invoice *entity.Invoice) (*PDFResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, invoice.Invoice.Number)
	m.mu.Unlock()
	if m.generateFunc != nil {
		return m.generateFunc(ctx, invoice)
	}
	return &PDFResult{PDFPath: "/invoices/" + PDFFileName(invoice.Invoice.Number)}, nil
}

func (m *mockPDFService) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockRenderer struct {
	renderFunc func(ctx context.Context, invoice *entity.Invoice) ([]byte, error)
}

func (m *mockRenderer) Render(ctx context.Context, invoice *entity.Invoice) ([]byte, error) {
	if m.renderFunc != nil {
		return m.renderFunc(ctx, invoice)
	}
	return []byte("%PDF-1.4 test"), nil
}

func (m *mockRenderer) Name() string { return "mock" }

type mockValidator struct {
	validateFunc func(content []byte) (int, error)
}

func (m *mockValidator) Validate(content []byte) (int, error) {
	if m.validateFunc != nil {
		return m.validateFunc(content)
	}
	return 1, nil
}

type mockStorage struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func newMockStorage() *mockStorage {
	return &mockStorage{files: make(map[string][]byte)}
}

func (m *mockStorage) Save(ctx context.Context, path string, content []byte) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
	return nil
}

func (m *mockStorage) Read(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[path]
	if !ok {
		return nil, errors.New("file not found")
	}
	return content, nil
}

func (m *mockStorage) Exists(ctx context.Context, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

func (m *mockStorage) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func (m *mockStorage) GetFullPath(relativePath string) string {
	return "/data/" + relativePath
}

type mockNotifier struct {
	mu    sync.Mutex
	calls int
	count int
}

func (m *mockNotifier) NotifyRecurringGenerated(ctx context.Context, source *entity.Invoice, generated []*entity.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.count += len(generated)
	return nil
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

func fixedClock(year int, month time.Month, day int) Clock {
	return func() time.Time {
		return time.Date(year, month, day, 9, 30, 0, 0, time.UTC)
	}
}

func recurringSource(date string, cfg entity.RecurringConfig) *entity.Invoice {
	return &entity.Invoice{
		Company:  entity.Party{Name: "Technioz"},
		Customer: entity.Party{Name: "Acme Ltd"},
		Invoice: entity.InvoiceDetails{
			Number:   "INV-SRC-1",
			Date:     date,
			Currency: "USD",
		},
		Items:      []entity.LineItem{{Name: "Retainer", Quantity: 1, UnitCost: 500}},
		Fields:     entity.FieldsConfig{Tax: entity.TaxModePercent},
		Financial:  entity.Financial{Tax: 10, AmountPaid: 550},
		Status:     entity.StatusPaid,
		AmountPaid: 550,
		Recurring:  cfg,
	}
}
