// Package worker drains the scheduled queue: every tick it picks up due
// pending items, runs each through the shared pipeline and marks the
// terminal status. Failed items stay failed; recovery is an operator action.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/getjobwire/jobwire/internal/enrich"
	"github.com/getjobwire/jobwire/internal/model"
	"github.com/getjobwire/jobwire/internal/queue"
	"github.com/getjobwire/jobwire/internal/runner"
	"github.com/getjobwire/jobwire/internal/source"
)

// Queue is the scheduled-queue surface the worker consumes.
type Queue interface {
	Drain(ctx context.Context, now time.Time) ([]model.QueueItem, error)
	MarkStatus(ctx context.Context, id int64, status model.QueueStatus, lastError string) error
}

// Worker publishes due queue items on a fixed tick.
type Worker struct {
	queue    Queue
	gate     runner.Gate
	fetcher  runner.Fetcher
	chain    runner.Enricher
	jobs     model.JobStore
	bundler  runner.Publisher
	interval time.Duration
	logger   *slog.Logger

	now func() time.Time
}

func NewWorker(
	q Queue,
	gate runner.Gate,
	fetcher runner.Fetcher,
	chain runner.Enricher,
	jobs model.JobStore,
	bundler runner.Publisher,
	interval time.Duration,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		queue:    q,
		gate:     gate,
		fetcher:  fetcher,
		chain:    chain,
		jobs:     jobs,
		bundler:  bundler,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run starts the drain loop. It runs one immediate cycle, then ticks on
// the configured interval. It returns nil when ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("starting queue worker", "interval", w.interval.String())

	w.drainOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down queue worker")
			return nil
		case <-time.After(w.interval):
			w.drainOnce(ctx)
		}
	}
}

// drainOnce publishes every item due now. A rate-limit status stops the
// cycle so remaining items keep their slots for the next tick.
func (w *Worker) drainOnce(ctx context.Context) {
	items, err := w.queue.Drain(ctx, w.now())
	if err != nil {
		w.logger.Error("drain queue", "error", err)
		return
	}
	if len(items) == 0 {
		return
	}
	w.logger.Info("queue items due", "count", len(items))

	for _, item := range items {
		if ctx.Err() != nil {
			return
		}
		if !w.publishItem(ctx, item) {
			w.logger.Warn("completion quota exhausted, ending drain cycle")
			return
		}
	}

	if err := w.bundler.Flush(ctx); err != nil {
		w.logger.Error("flush bundles", "error", err)
	}
}

// publishItem runs one queue item through dedupe, fetch, enrichment and
// persistence, then marks it terminal. Returns false on a rate limit,
// leaving the item pending for the next cycle.
func (w *Worker) publishItem(ctx context.Context, item model.QueueItem) bool {
	if err := w.queue.MarkStatus(ctx, item.ID, model.StatusProcessing, ""); err != nil {
		w.logger.Error("mark processing", "item", item.ID, "error", err)
		return true
	}

	candidate, ok, err := queue.DecodePayload(item)
	if err != nil {
		w.fail(ctx, item, "decode payload: "+err.Error())
		return true
	}
	preFetched := ok && source.PreFetched(candidate)

	dup, err := w.gate.IsDuplicateURL(ctx, item.OriginalURL)
	if err != nil {
		w.fail(ctx, item, "dedupe check: "+err.Error())
		return true
	}
	if dup {
		// Published elsewhere since this item was enqueued.
		w.logger.Info("queue item already published, completing", "item", item.ID, "url", item.OriginalURL)
		w.complete(ctx, item)
		return true
	}

	if !preFetched {
		fetched, err := w.fetcher.Fetch(ctx, item.OriginalURL)
		if err != nil {
			w.fail(ctx, item, "fetch: "+err.Error())
			return true
		}
		// The adapter identifier was recorded on the item at enqueue time.
		fetched.Origin = item.Source
		candidate = fetched
	}

	dup, err = w.gate.IsDuplicate(ctx, candidate.RawTitle, candidate.Company, candidate.ApplyURLGuess)
	if err != nil {
		w.fail(ctx, item, "dedupe check: "+err.Error())
		return true
	}
	if dup {
		w.complete(ctx, item)
		return true
	}

	posting, status := w.chain.Enrich(ctx, candidate)
	switch status {
	case enrich.StatusRateLimited:
		// Put the item back so the next cycle retries it.
		if err := w.queue.MarkStatus(ctx, item.ID, model.StatusPending, ""); err != nil {
			w.logger.Error("restore pending", "item", item.ID, "error", err)
		}
		return false
	case enrich.StatusSkipped, enrich.StatusFailed:
		w.fail(ctx, item, "enrichment "+status.String())
		return true
	}

	id, err := w.jobs.InsertJob(ctx, &posting)
	if err != nil {
		w.fail(ctx, item, "persist: "+err.Error())
		return true
	}
	posting.ID = id

	if err := w.bundler.AddJob(ctx, posting); err != nil {
		w.logger.Error("bundle posting", "item", item.ID, "job", id, "error", err)
	}
	w.logger.Info("queue item published", "item", item.ID, "job", id, "title", posting.Title)
	w.complete(ctx, item)
	return true
}

func (w *Worker) complete(ctx context.Context, item model.QueueItem) {
	if err := w.queue.MarkStatus(ctx, item.ID, model.StatusCompleted, ""); err != nil {
		w.logger.Error("mark completed", "item", item.ID, "error", err)
	}
}

func (w *Worker) fail(ctx context.Context, item model.QueueItem, reason string) {
	w.logger.Warn("queue item failed", "item", item.ID, "url", item.OriginalURL, "reason", reason)
	if err := w.queue.MarkStatus(ctx, item.ID, model.StatusFailed, reason); err != nil {
		w.logger.Error("mark failed", "item", item.ID, "error", err)
	}
}
