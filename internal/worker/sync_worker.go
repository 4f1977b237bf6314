// Package worker keeps the spreadsheet mirror in step with the durable log.
package worker

import (
	"context"
	"fmt"
	"time"

	"pockets/internal/amqp"
	"pockets/internal/core"
	applog "pockets/internal/log"
)

// Source is the durable side: a versioned log that remembers how far the
// mirror has caught up, and the pocket directory beside it.
type Source interface {
	Snapshot(ctx context.Context) ([]core.Transaction, int64, error)
	ListPockets(ctx context.Context) ([]core.Pocket, error)
	PendingMirror(ctx context.Context) (version int64, pending bool, err error)
	MarkMirrored(ctx context.Context, version int64) error
}

// Mirror receives full copies of the log and its balances.
type Mirror interface {
	SaveAll(ctx context.Context, log []core.Transaction) error
	WriteBalances(ctx context.Context, pockets, goals map[string]core.Money) error
}

// SyncWorker copies the whole log to the mirror whenever it falls behind.
type SyncWorker struct {
	source Source
	mirror Mirror
	logger *applog.Logger
}

func NewSyncWorker(source Source, mirror Mirror, logger *applog.Logger) *SyncWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &SyncWorker{source: source, mirror: mirror, logger: logger.WithComponent(applog.ComponentWorker)}
}

// HandleEvent processes one ledger event from AMQP. The event only signals that
// the log moved; the mirror is always rebuilt from the log itself.
func (w *SyncWorker) HandleEvent(ctx context.Context, msg *amqp.EventMessage) error {
	w.logger.DebugContext(ctx, "Processing ledger event",
		"type", msg.Type,
		"transactions", len(msg.TransactionIDs))
	if _, err := w.ProcessPending(ctx); err != nil {
		return fmt.Errorf("sync after %s: %w", msg.Type, err)
	}
	return nil
}

// ProcessPending mirrors the log if it changed since the last sync. It is the
// backup path for lost AMQP messages and worker downtime.
func (w *SyncWorker) ProcessPending(ctx context.Context) (bool, error) {
	_, pending, err := w.source.PendingMirror(ctx)
	if err != nil {
		return false, fmt.Errorf("check mirror state: %w", err)
	}
	if !pending {
		return false, nil
	}
	return true, w.Sync(ctx)
}

// Sync writes the current log and balances to the mirror unconditionally.
func (w *SyncWorker) Sync(ctx context.Context) error {
	start := time.Now()
	log, version, err := w.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("read log: %w", err)
	}
	if err := w.mirror.SaveAll(ctx, log); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mirror log",
			applog.FieldOperation, applog.OpSync,
			applog.FieldError, err)
		return fmt.Errorf("save log to mirror: %w", err)
	}
	pockets, err := w.source.ListPockets(ctx)
	if err != nil {
		return fmt.Errorf("list pockets: %w", err)
	}
	balances := core.KeepPockets(core.PocketBalances(log), pockets)
	if err := w.mirror.WriteBalances(ctx, balances, core.GoalBalances(log)); err != nil {
		return fmt.Errorf("write balances to mirror: %w", err)
	}
	if err := w.source.MarkMirrored(ctx, version); err != nil {
		// The mirror holds the data; the next pass rewrites it again.
		w.logger.WarnContext(ctx, "Failed to record mirror version", "version", version, applog.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Mirror synced",
		applog.FieldOperation, applog.OpSync,
		"version", version,
		"records", len(log),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// StartupSyncCheck catches the mirror up before consuming events.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.ProcessPending(ctx)
	if err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	if !synced {
		w.logger.InfoContext(ctx, "Mirror up to date on startup")
	}
	return nil
}

// RunPeriodic calls ProcessPending every interval until ctx is cancelled.
func (w *SyncWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessPending(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic sync failed", applog.FieldError, err)
			}
		}
	}
}
