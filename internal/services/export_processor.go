package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"expensedash/internal/core"
	applog "expensedash/internal/log"
	"expensedash/internal/ports"
	"expensedash/internal/sheets"
)

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// Interval is how often a full export runs without any event (default: 5m)
	Interval time.Duration

	// Debounce is how long requests are coalesced before exporting (default: 2s)
	Debounce time.Duration

	Currency string
	Location *time.Location
}

// DefaultExportProcessorConfig returns sensible defaults
func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		Interval: 5 * time.Minute,
		Debounce: 2 * time.Second,
		Currency: core.DefaultCurrency,
		Location: time.UTC,
	}
}

// ExportProcessor writes full snapshots of the backend to an exporter,
// periodically and whenever Request is called.
type ExportProcessor struct {
	source   DashboardSource
	exporter sheets.Exporter
	config   ExportProcessorConfig
	now      func() time.Time
	logger   *applog.Logger

	requests chan struct{}

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewExportProcessor creates a new export processor
func NewExportProcessor(source DashboardSource, exporter sheets.Exporter, config ExportProcessorConfig, logger *applog.Logger) *ExportProcessor {
	if logger == nil {
		logger = applog.Discard()
	}
	defaults := DefaultExportProcessorConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Currency == "" {
		config.Currency = defaults.Currency
	}
	if config.Location == nil {
		config.Location = defaults.Location
	}
	return &ExportProcessor{
		source:   source,
		exporter: exporter,
		config:   config,
		now:      time.Now,
		logger:   logger.WithComponent(applog.ComponentWorker),
		requests: make(chan struct{}, 1),
	}
}

// Request schedules an export. Requests made while one is pending collapse
// into it; it never blocks.
func (p *ExportProcessor) Request() {
	select {
	case p.requests <- struct{}{}:
	default:
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Export processor started",
		"interval", p.config.Interval,
		"debounce", p.config.Debounce)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Export processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the processor is currently running
func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.exportLogged(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.exportLogged(ctx)
		case <-p.requests:
			if !p.wait(ctx, p.config.Debounce) {
				return
			}
			// Drop requests that arrived during the debounce window.
			select {
			case <-p.requests:
			default:
			}
			p.exportLogged(ctx)
			ticker.Reset(p.config.Interval)
		}
	}
}

func (p *ExportProcessor) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-p.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

func (p *ExportProcessor) exportLogged(ctx context.Context) {
	if err := p.ExportNow(ctx); err != nil {
		p.logger.ErrorContext(ctx, "Export failed",
			applog.FieldOperation, applog.OpExport,
			applog.FieldError, err)
	}
}

// ExportNow reads a fresh snapshot from the backend and exports it.
func (p *ExportProcessor) ExportNow(ctx context.Context) error {
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := p.exporter.Export(ctx, snap); err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	return nil
}

// Snapshot reads every expense, the categories and the current month's
// dashboard.
func (p *ExportProcessor) Snapshot(ctx context.Context) (sheets.Snapshot, error) {
	now := p.now().In(p.config.Location)
	month := core.CurrentMonth(now)

	expenses, err := p.source.ListExpenses(ctx, ports.ListOptions{})
	if err != nil {
		return sheets.Snapshot{}, fmt.Errorf("list expenses: %w", err)
	}
	cats, err := p.source.ListCategories(ctx)
	if err != nil {
		return sheets.Snapshot{}, fmt.Errorf("list categories: %w", err)
	}
	index := core.BuildCategoryIndex(cats)

	d, err := p.source.ReadDashboard(ctx, ports.DashboardQuery{Year: month.Year(), Month: month.Month()})
	if err != nil {
		return sheets.Snapshot{}, fmt.Errorf("read dashboard: %w", err)
	}

	return sheets.Snapshot{
		Expenses: expenses,
		Index:    index,
		Summary:  d.ResolveTitles(index),
		Currency: p.config.Currency,
		Taken:    now,
	}, nil
}
