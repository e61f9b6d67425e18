package sync

import (
	"context"
	"fmt"
	"log/slog"
)

// Orchestrator executes a planned work list. Transfers run sequentially, one
// item at a time — bounded memory for in-flight buffers and trivially
// monotonic progress. A single item's failure is recorded and never aborts
// the rest of the list. Deletions are collected and executed as one batch
// call after all transfers.
//
// The orchestrator owns the report for the duration of a run; nothing else
// mutates it. Re-running after a partial failure needs no retry queue:
// callers replan from fresh snapshots, so completed items drop out of the
// plan by filename.
type Orchestrator struct {
	fns      TransferFuncs
	progress ProgressFunc
	logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator. progress may be nil.
func NewOrchestrator(fns TransferFuncs, progress ProgressFunc, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	if progress == nil {
		progress = func(int, int) {}
	}

	return &Orchestrator{fns: fns, progress: progress, logger: logger}
}

// Execute processes every work item and returns the aggregated report.
// Progress is emitted as (completed, total) after each item, with a 0 reset
// at the start and end of the run. The batch delete advances progress by the
// number of deletion candidates it covered.
//
// Only a canceled context stops a run early; transfer and delete errors are
// absorbed into the report.
func (o *Orchestrator) Execute(ctx context.Context, items []WorkItem) (*Report, error) {
	report := &Report{}
	total := len(items)
	completed := 0

	o.progress(0, total)
	defer o.progress(0, total)

	var deleteItems []WorkItem

	for i := range items {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("sync: run canceled: %w", err)
		}

		item := &items[i]

		// Deletions are batched after the transfer loop.
		if item.Kind == WorkDeleteDuplicate {
			deleteItems = append(deleteItems, *item)
			continue
		}

		o.executeTransfer(ctx, item, report)

		completed++
		o.progress(completed, total)
	}

	if len(deleteItems) > 0 {
		o.executeDeletes(ctx, deleteItems, report)

		completed += len(deleteItems)
		o.progress(completed, total)
	}

	o.logger.Info("run complete",
		slog.Int("uploaded", report.Uploaded),
		slog.Int("downloaded", report.Downloaded),
		slog.Int("duplicates", report.Duplicates),
		slog.Int("failed", report.Failed()),
		slog.Int("deleted", report.Deleted),
	)

	return report, nil
}

// executeTransfer runs one upload or download and records the outcome.
func (o *Orchestrator) executeTransfer(ctx context.Context, item *WorkItem, report *Report) {
	switch item.Kind {
	case WorkUpload:
		duplicate, err := o.fns.Upload(ctx, item.Asset)
		if err != nil {
			o.recordFailure(item, err, report)
			return
		}

		// Server already holds this content: skipped as duplicate,
		// neither a success nor a failure.
		if duplicate {
			report.Duplicates++

			o.logger.Debug("upload skipped as duplicate",
				slog.String("filename", item.Asset.Filename))

			return
		}

		report.Uploaded++

	case WorkDownload:
		if err := o.fns.Download(ctx, item.Remote); err != nil {
			o.recordFailure(item, err, report)
			return
		}

		report.Downloaded++

	case WorkDeleteDuplicate:
		// Handled by executeDeletes; unreachable from the transfer loop.
	}
}

// executeDeletes runs the single batch delete call. Items without a
// resolvable locator are excluded and counted before the call; a batch
// failure is recorded wholesale with no partial-success accounting.
func (o *Orchestrator) executeDeletes(ctx context.Context, items []WorkItem, report *Report) {
	ids := make([]string, 0, len(items))

	for i := range items {
		if items[i].Asset.ReadableURI == "" {
			report.DeleteSkippedNoURI++

			o.logger.Warn("delete candidate has no locator, excluded from batch",
				slog.String("filename", items[i].Asset.Filename))

			continue
		}

		ids = append(ids, items[i].Asset.ID)
	}

	if len(ids) == 0 {
		return
	}

	if err := o.fns.Delete(ctx, ids); err != nil {
		report.DeleteErr = fmt.Errorf("sync: batch delete of %d assets: %w", len(ids), err)

		o.logger.Error("batch delete failed",
			slog.Int("count", len(ids)),
			slog.String("error", err.Error()),
		)

		return
	}

	report.Deleted = len(ids)
}

// recordFailure appends a per-item failure and logs it.
func (o *Orchestrator) recordFailure(item *WorkItem, err error, report *Report) {
	report.Failures = append(report.Failures, ItemFailure{
		Filename: item.Filename(),
		Err:      err,
	})

	o.logger.Warn("item failed",
		slog.String("kind", item.Kind.String()),
		slog.String("filename", item.Filename()),
		slog.String("error", err.Error()),
	)
}
