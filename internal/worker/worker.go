// Package worker reacts to expense events: the export worker schedules a
// spreadsheet export, the cache invalidator purges a server's caches.
package worker

import (
	"context"

	"expensedash/internal/amqp"
	applog "expensedash/internal/log"
)

// ExportRequester schedules an export. services.ExportProcessor implements it.
type ExportRequester interface {
	Request()
}

// EventSource delivers events from a queue. *amqp.Client implements it.
type EventSource interface {
	Consume(ctx context.Context, queue amqp.QueueSpec, handler amqp.Handler) error
}

// ExportWorker turns expense events into export requests.
type ExportWorker struct {
	exports ExportRequester
	logger  *applog.Logger
}

func NewExportWorker(exports ExportRequester, logger *applog.Logger) *ExportWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &ExportWorker{
		exports: exports,
		logger:  logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleEvent requests an export for any change. Exports rewrite the whole
// spreadsheet, so the event only needs to wake the processor.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	w.logger.InfoContext(ctx, "Processing expense event",
		"kind", ev.Kind,
		applog.FieldExpenseID, ev.ExpenseID,
		applog.FieldDate, ev.Date,
		"source", ev.Source)
	w.exports.Request()
	return nil
}

// Run consumes the queue until ctx is done.
func (w *ExportWorker) Run(ctx context.Context, src EventSource, queue amqp.QueueSpec) error {
	return src.Consume(ctx, queue, w.HandleEvent)
}

// CacheInvalidator purges local caches when another process changes data.
type CacheInvalidator struct {
	source     string
	invalidate func()
	logger     *applog.Logger
}

// NewCacheInvalidator ignores events published by source, whose caches were
// already purged when it made the change.
func NewCacheInvalidator(source string, invalidate func(), logger *applog.Logger) *CacheInvalidator {
	if logger == nil {
		logger = applog.Discard()
	}
	return &CacheInvalidator{
		source:     source,
		invalidate: invalidate,
		logger:     logger.WithComponent(applog.ComponentCache),
	}
}

func (c *CacheInvalidator) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	if ev.Source != "" && ev.Source == c.source {
		return nil
	}
	c.invalidate()
	c.logger.DebugContext(ctx, "Caches invalidated by remote change",
		applog.FieldOperation, applog.OpInvalidate,
		"kind", ev.Kind,
		applog.FieldExpenseID, ev.ExpenseID)
	return nil
}

// Run consumes a private queue until ctx is done.
func (c *CacheInvalidator) Run(ctx context.Context, src EventSource) error {
	return src.Consume(ctx, amqp.PrivateQueue(), c.HandleEvent)
}
