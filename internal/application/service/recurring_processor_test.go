package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
)

func newTestProcessor(repo *memoryInvoiceRepo, tx *mockTxManager, pdf *mockPDFService, notifier *mockNotifier, clock Clock) RecurringProcessor {
	if tx == nil {
		tx = &mockTxManager{}
	}
	if pdf == nil {
		pdf = &mockPDFService{}
	}
	var n port.Notifier
	if notifier != nil {
		n = notifier
	}
	return NewRecurringProcessor(repo, tx, NewInvoiceNumberer(repo, clock), pdf, n, clock, &mockLogger{})
}

func TestRecurringProcessor_MonthlyClampScenario(t *testing.T) {
	source := recurringSource("2024-01-31", entity.RecurringConfig{
		Enabled:         true,
		Frequency:       entity.FrequencyMonthly,
		DueInDays:       14,
		AutoGeneratePDF: false,
	})
	repo := newMemoryInvoiceRepo(source)
	pdf := &mockPDFService{}

	p := newTestProcessor(repo, nil, pdf, nil, fixedClock(2024, time.April, 1))
	result, err := p.Process(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.SourcesScanned)
	assert.Equal(t, 2, result.Generated)
	assert.Equal(t, 0, pdf.callCount())

	children := repo.children(source.ID)
	require.Len(t, children, 2)

	assert.Equal(t, "2024-02-29", children[0].Invoice.Date)
	assert.Equal(t, "2024-03-14", children[0].Invoice.DueDate)
	assert.Equal(t, "INV-2024-001", children[0].Invoice.Number)

	assert.Equal(t, "2024-03-29", children[1].Invoice.Date)
	assert.Equal(t, "2024-04-12", children[1].Invoice.DueDate)
	assert.Equal(t, "INV-2024-002", children[1].Invoice.Number)

	stored, err := repo.GetByID(context.Background(), source.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-29", stored.Recurring.NextRunDate)
	require.NotNil(t, stored.Recurring.LastRunAt)
	assert.Equal(t, "2024-01-31", stored.Invoice.Date)
}

func TestRecurringProcessor_ChildFields(t *testing.T) {
	source := recurringSource("2024-03-01", entity.RecurringConfig{
		Enabled:         true,
		Frequency:       entity.FrequencyDaily,
		DueInDays:       7,
		NextRunDate:     "2024-03-02",
		AutoGeneratePDF: true,
	})
	source.PDFPath = "/invoices/invoice_INV-SRC-1.pdf"
	repo := newMemoryInvoiceRepo(source)

	p := newTestProcessor(repo, nil, nil, nil, fixedClock(2024, time.March, 2))
	_, err := p.Process(context.Background())
	require.NoError(t, err)

	children := repo.children(source.ID)
	require.Len(t, children, 1)
	child := children[0]

	assert.Equal(t, entity.StatusUnpaid, child.Status)
	assert.Zero(t, child.AmountPaid)
	assert.Zero(t, child.Financial.AmountPaid)
	assert.Equal(t, 10.0, child.Financial.Tax)
	assert.Empty(t, child.PDFPath)
	assert.False(t, child.IsTemplate)
	assert.False(t, child.Recurring.Enabled)
	assert.True(t, child.Recurring.AutoGeneratePDF)
	require.NotNil(t, child.Recurring.SourceInvoiceID)
	assert.Equal(t, source.ID, *child.Recurring.SourceInvoiceID)
	assert.Equal(t, "2024-03-09", child.Invoice.DueDate)
	assert.Equal(t, source.Items, child.Items)
}

func TestRecurringProcessor_Frequencies(t *testing.T) {
	tests := []struct {
		name      string
		cfg       entity.RecurringConfig
		today     Clock
		wantDates []string
		wantNext  string
	}{
		{
			name:      "daily backfill",
			cfg:       entity.RecurringConfig{Frequency: entity.FrequencyDaily, NextRunDate: "2024-03-02"},
			today:     fixedClock(2024, time.March, 5),
			wantDates: []string{"2024-03-02", "2024-03-03", "2024-03-04", "2024-03-05"},
			wantNext:  "2024-03-06",
		},
		{
			name:      "weekly",
			cfg:       entity.RecurringConfig{Frequency: entity.FrequencyWeekly, NextRunDate: "2024-03-01"},
			today:     fixedClock(2024, time.March, 20),
			wantDates: []string{"2024-03-01", "2024-03-08", "2024-03-15"},
			wantNext:  "2024-03-22",
		},
		{
			name:      "every n days",
			cfg:       entity.RecurringConfig{Frequency: entity.FrequencyEveryNDays, IntervalDays: 10, NextRunDate: "2024-03-01"},
			today:     fixedClock(2024, time.March, 25),
			wantDates: []string{"2024-03-01", "2024-03-11", "2024-03-21"},
			wantNext:  "2024-03-31",
		},
		{
			name:      "not yet due",
			cfg:       entity.RecurringConfig{Frequency: entity.FrequencyMonthly, NextRunDate: "2024-04-15"},
			today:     fixedClock(2024, time.April, 14),
			wantDates: nil,
			wantNext:  "2024-04-15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.Enabled = true
			source := recurringSource("2024-02-01", cfg)
			repo := newMemoryInvoiceRepo(source)

			p := newTestProcessor(repo, nil, nil, nil, tt.today)
			result, err := p.Process(context.Background())
			require.NoError(t, err)
			assert.Equal(t, len(tt.wantDates), result.Generated)

			var dates []string
			for _, child := range repo.children(source.ID) {
				dates = append(dates, child.Invoice.Date)
			}
			assert.Equal(t, tt.wantDates, dates)

			stored, _ := repo.GetByID(context.Background(), source.ID)
			assert.Equal(t, tt.wantNext, stored.Recurring.NextRunDate)
			if len(tt.wantDates) == 0 {
				assert.Nil(t, stored.Recurring.LastRunAt)
			}
		})
	}
}

func TestRecurringProcessor_CapsBackfillPerPass(t *testing.T) {
	source := recurringSource("2023-12-31", entity.RecurringConfig{
		Enabled:     true,
		Frequency:   entity.FrequencyDaily,
		NextRunDate: "2024-01-01",
	})
	repo := newMemoryInvoiceRepo(source)
	p := newTestProcessor(repo, nil, nil, nil, fixedClock(2024, time.March, 1))

	result, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entity.MaxOccurrencesPerPass, result.Generated)

	stored, _ := repo.GetByID(context.Background(), source.ID)
	assert.Equal(t, "2024-01-25", stored.Recurring.NextRunDate)

	result, err = p.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entity.MaxOccurrencesPerPass, result.Generated)

	stored, _ = repo.GetByID(context.Background(), source.ID)
	assert.Equal(t, "2024-02-18", stored.Recurring.NextRunDate)
	assert.Len(t, repo.children(source.ID), 2*entity.MaxOccurrencesPerPass)
}

func TestRecurringProcessor_Idempotent(t *testing.T) {
	source := recurringSource("2024-03-01", entity.RecurringConfig{
		Enabled:     true,
		Frequency:   entity.FrequencyDaily,
		NextRunDate: "2024-03-02",
	})
	repo := newMemoryInvoiceRepo(source)
	p := newTestProcessor(repo, nil, nil, nil, fixedClock(2024, time.March, 4))

	first, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Generated)

	second, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Generated)
	assert.Len(t, repo.children(source.ID), 3)
}

func TestRecurringProcessor_SkipsExistingOccurrence(t *testing.T) {
	source := recurringSource("2024-03-01", entity.RecurringConfig{
		Enabled:     true,
		Frequency:   entity.FrequencyDaily,
		NextRunDate: "2024-03-02",
	})
	repo := newMemoryInvoiceRepo(source)

	sourceID := source.ID
	existing := BuildOccurrence(source, "INV-2024-050", time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC))
	existing.Recurring.SourceInvoiceID = &sourceID
	require.NoError(t, repo.Create(context.Background(), existing))

	p := newTestProcessor(repo, nil, nil, nil, fixedClock(2024, time.March, 5))
	result, err := p.Process(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Generated)
	assert.Equal(t, 1, result.Skipped)
	assert.Len(t, repo.children(source.ID), 4)

	stored, _ := repo.GetByID(context.Background(), source.ID)
	assert.Equal(t, "2024-03-06", stored.Recurring.NextRunDate)
}

func TestRecurringProcessor_PDFFailureDoesNotStopLoop(t *testing.T) {
	source := recurringSource("2024-03-01", entity.RecurringConfig{
		Enabled:         true,
		Frequency:       entity.FrequencyDaily,
		NextRunDate:     "2024-03-02",
		AutoGeneratePDF: true,
	})
	repo := newMemoryInvoiceRepo(source)
	pdf := &mockPDFService{
		generateFunc: func(ctx context.Context, invoice *entity.Invoice) (*PDFResult, error) {
			return nil, errors.New("provider unreachable")
		},
	}

	p := newTestProcessor(repo, nil, pdf, nil, fixedClock(2024, time.March, 4))
	result, err := p.Process(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Generated)
	assert.Equal(t, 3, result.PDFFailures)
	assert.Equal(t, 3, pdf.callCount())

	stored, _ := repo.GetByID(context.Background(), source.ID)
	assert.Equal(t, "2024-03-05", stored.Recurring.NextRunDate)
}

func TestRecurringProcessor_PersistenceFailureAbortsSource(t *testing.T) {
	source := recurringSource("2024-03-01", entity.RecurringConfig{
		Enabled:     true,
		Frequency:   entity.FrequencyDaily,
		NextRunDate: "2024-03-02",
	})
	repo := newMemoryInvoiceRepo(source)
	repo.createErr = errors.New("disk full")

	p := newTestProcessor(repo, nil, nil, nil, fixedClock(2024, time.March, 4))
	result, err := p.Process(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Generated)
	assert.Equal(t, 1, result.FailedSources)

	stored, _ := repo.GetByID(context.Background(), source.ID)
	assert.Equal(t, "2024-03-02", stored.Recurring.NextRunDate)
}

func TestRecurringProcessor_FallsBackToFirstRun(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		wantGen int
	}{
		{name: "derives from issue date", date: "2024-03-01", wantGen: 2},
		{name: "unparseable issue date is skipped", date: "not-a-date", wantGen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := recurringSource(tt.date, entity.RecurringConfig{
				Enabled:   true,
				Frequency: entity.FrequencyDaily,
			})
			repo := newMemoryInvoiceRepo(source)

			p := newTestProcessor(repo, nil, nil, nil, fixedClock(2024, time.March, 3))
			result, err := p.Process(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantGen, result.Generated)
			assert.Zero(t, result.FailedSources)
		})
	}
}

func TestRecurringProcessor_IgnoresTemplatesAndDisabled(t *testing.T) {
	template := recurringSource("2024-03-01", entity.RecurringConfig{Enabled: true, Frequency: entity.FrequencyDaily})
	template.IsTemplate = true
	template.TemplateName = "Monthly retainer"
	template.Invoice.Number = ""

	disabled := recurringSource("2024-03-01", entity.RecurringConfig{Enabled: false, Frequency: entity.FrequencyDaily})
	disabled.Invoice.Number = "INV-SRC-2"

	repo := newMemoryInvoiceRepo(template, disabled)
	p := newTestProcessor(repo, nil, nil, nil, fixedClock(2024, time.March, 10))

	result, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.SourcesScanned)
	assert.Equal(t, 0, result.Generated)
}

func TestRecurringProcessor_NotifiesOncePerSource(t *testing.T) {
	source := recurringSource("2024-03-01", entity.RecurringConfig{
		Enabled:     true,
		Frequency:   entity.FrequencyDaily,
		NextRunDate: "2024-03-02",
	})
	repo := newMemoryInvoiceRepo(source)
	notifier := &mockNotifier{}

	p := newTestProcessor(repo, nil, nil, notifier, fixedClock(2024, time.March, 4))
	_, err := p.Process(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, 3, notifier.count)
}

func TestRecurringProcessor_ConcurrentCallersShareOnePass(t *testing.T) {
	source := recurringSource("2024-03-01", entity.RecurringConfig{
		Enabled:     true,
		Frequency:   entity.FrequencyDaily,
		NextRunDate: "2024-03-02",
	})
	repo := newMemoryInvoiceRepo(source)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	txCalls := 0
	tx := &mockTxManager{
		withTransactionFunc: func(ctx context.Context, fn func(ctx context.Context) error) error {
			once.Do(func() { close(started) })
			<-release
			mu.Lock()
			txCalls++
			mu.Unlock()
			return fn(ctx)
		},
	}

	p := newTestProcessor(repo, tx, nil, nil, fixedClock(2024, time.March, 4))

	const callers = 5
	results := make(chan *ProcessResult, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		r, err := p.Process(context.Background())
		assert.NoError(t, err)
		results <- r
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := p.Process(context.Background())
			assert.NoError(t, err)
			results <- r
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	var first *ProcessResult
	for r := range results {
		require.NotNil(t, r)
		if first == nil {
			first = r
		}
		assert.Same(t, first, r)
	}

	assert.Equal(t, 3, txCalls)
	assert.Len(t, repo.children(source.ID), 3)
}

// blockingTx holds every transaction until release closes and fails it when
// the context it runs under is already done.
func blockingTx(started chan<- struct{}, release <-chan struct{}) *mockTxManager {
	var once sync.Once
	return &mockTxManager{
		withTransactionFunc: func(ctx context.Context, fn func(ctx context.Context) error) error {
			once.Do(func() { close(started) })
			<-release
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx)
		},
	}
}

func TestRecurringProcessor_CancelledLeaderDoesNotFailJoiners(t *testing.T) {
	source := recurringSource("2024-03-01", entity.RecurringConfig{
		Enabled:     true,
		Frequency:   entity.FrequencyDaily,
		NextRunDate: "2024-03-02",
	})
	repo := newMemoryInvoiceRepo(source)

	started := make(chan struct{})
	release := make(chan struct{})
	p := newTestProcessor(repo, blockingTx(started, release), nil, nil, fixedClock(2024, time.March, 4))

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	defer cancelLeader()

	leaderErr := make(chan error, 1)
	go func() {
		_, err := p.Process(leaderCtx)
		leaderErr <- err
	}()
	<-started

	type outcome struct {
		result *ProcessResult
		err    error
	}
	joiner := make(chan outcome, 1)
	go func() {
		r, err := p.Process(context.Background())
		joiner <- outcome{result: r, err: err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(release)
	got := <-joiner
	require.NoError(t, got.err)
	assert.Equal(t, 3, got.result.Generated)
	assert.Zero(t, got.result.FailedSources)
	assert.Len(t, repo.children(source.ID), 3)

	stored, err := repo.GetByID(context.Background(), source.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", stored.Recurring.NextRunDate)
}

func TestRecurringProcessor_JoinerHonorsOwnContext(t *testing.T) {
	source := recurringSource("2024-03-01", entity.RecurringConfig{
		Enabled:     true,
		Frequency:   entity.FrequencyDaily,
		NextRunDate: "2024-03-04",
	})
	repo := newMemoryInvoiceRepo(source)

	started := make(chan struct{})
	release := make(chan struct{})
	p := newTestProcessor(repo, blockingTx(started, release), nil, nil, fixedClock(2024, time.March, 4))

	leader := make(chan *ProcessResult, 1)
	go func() {
		r, err := p.Process(context.Background())
		assert.NoError(t, err)
		leader <- r
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, err := p.Process(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, r)

	close(release)
	first := <-leader
	require.NotNil(t, first)
	assert.Equal(t, 1, first.Generated)

	// a pass started after the previous one finished runs on its own
	second, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Zero(t, second.Generated)
	assert.Len(t, repo.children(source.ID), 1)
}

func TestBuildOccurrence_DoesNotMutateSource(t *testing.T) {
	source := recurringSource("2024-01-31", entity.RecurringConfig{Enabled: true, DueInDays: -3})
	source.ID = 42

	child := BuildOccurrence(source, "INV-2024-007", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))
	child.Items[0].Name = "Changed"

	assert.Equal(t, "Retainer", source.Items[0].Name)
	assert.Equal(t, "INV-SRC-1", source.Invoice.Number)
	assert.True(t, source.Recurring.Enabled)
	assert.Equal(t, "2024-02-29", child.Invoice.DueDate)
	assert.Equal(t, int64(42), *child.Recurring.SourceInvoiceID)
}
