// Package queue paces publication by assigning each accepted candidate a
// future slot spaced by a configurable interval.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getjobwire/jobwire/internal/model"
)

// Scheduler assigns interval-spaced publication slots. The "latest
// scheduled slot" cursor lives behind one mutex so timestamps stay
// monotonically non-decreasing even when several adapters enqueue into the
// same queue.
type Scheduler struct {
	store    model.QueueStore
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cursor time.Time // latest slot handed out; zero until first Enqueue
	now    func() time.Time
}

func NewScheduler(store model.QueueStore, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Enqueue persists a candidate as a pending queue item scheduled one
// interval after the latest pending slot (or after now when the queue is
// empty or stale). The candidate's content, when pre-fetched by the
// source, rides along as the raw payload so the worker can skip the fetch.
func (s *Scheduler) Enqueue(ctx context.Context, candidate model.CandidateListing) (*model.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, err := s.nextSlot(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(candidate)
	if err != nil {
		return nil, fmt.Errorf("marshal candidate payload: %w", err)
	}

	item := &model.QueueItem{
		OriginalURL:  candidate.SourceURL,
		Source:       candidate.Origin,
		ScheduledFor: slot,
		Status:       model.StatusPending,
		RawPayload:   string(payload),
	}
	if _, err := s.store.InsertQueueItem(ctx, item); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", candidate.SourceURL, err)
	}

	s.cursor = slot
	s.logger.Info("candidate enqueued",
		"url", candidate.SourceURL,
		"source", candidate.Origin,
		"scheduled_for", slot,
	)
	return item, nil
}

// nextSlot computes the next publication slot. Caller holds s.mu.
func (s *Scheduler) nextSlot(ctx context.Context) (time.Time, error) {
	now := s.now()

	base := s.cursor
	if base.IsZero() {
		// Fresh process: recover the cursor from the persisted queue.
		latest, ok, err := s.store.LatestPendingTime(ctx)
		if err != nil {
			return time.Time{}, fmt.Errorf("recover queue cursor: %w", err)
		}
		if ok {
			base = latest
		}
	}

	// A stale cursor (all pending items already due) must not schedule in
	// the past.
	if base.Before(now) {
		base = now
	}
	return base.Add(s.interval), nil
}

// Drain lists all pending items due at or before now, oldest first. The
// external worker layer consumes this and transitions items with MarkStatus.
func (s *Scheduler) Drain(ctx context.Context, now time.Time) ([]model.QueueItem, error) {
	return s.store.Drain(ctx, now)
}

// MarkStatus transitions a queue item. Completed and failed are terminal.
func (s *Scheduler) MarkStatus(ctx context.Context, id int64, status model.QueueStatus, lastError string) error {
	return s.store.MarkStatus(ctx, id, status, lastError)
}

// DecodePayload unpacks the candidate that rode along with a queue item.
// Returns ok=false for items enqueued without pre-fetched content.
func DecodePayload(item model.QueueItem) (model.CandidateListing, bool, error) {
	if item.RawPayload == "" {
		return model.CandidateListing{}, false, nil
	}
	var candidate model.CandidateListing
	if err := json.Unmarshal([]byte(item.RawPayload), &candidate); err != nil {
		return model.CandidateListing{}, false, fmt.Errorf("decode queue payload %d: %w", item.ID, err)
	}
	return candidate, true, nil
}
