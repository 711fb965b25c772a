package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/getjobwire/jobwire/internal/model"
)

// InsertQueueItem persists a new scheduled queue item and returns its id.
func (s *SQLiteStore) InsertQueueItem(ctx context.Context, item *model.QueueItem) (int64, error) {
	if item.Status == "" {
		item.Status = model.StatusPending
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO queue (original_url, url_norm, source, scheduled_for, status, raw_payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.OriginalURL, model.NormalizeURL(item.OriginalURL), item.Source,
		item.ScheduledFor.UTC(), string(item.Status), item.RawPayload,
	)
	if err != nil {
		return 0, fmt.Errorf("insert queue item %s: %w", item.OriginalURL, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert queue item %s: last insert id: %w", item.OriginalURL, err)
	}
	item.ID = id
	return id, nil
}

// LatestPendingTime returns the latest scheduled_for among pending items.
// The second return is false when the queue has no pending items.
func (s *SQLiteStore) LatestPendingTime(ctx context.Context) (time.Time, bool, error) {
	var latest time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT scheduled_for FROM queue WHERE status = 'pending' ORDER BY scheduled_for DESC LIMIT 1",
	).Scan(&latest)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest pending time: %w", err)
	}
	return latest, true, nil
}

// HasPendingURL reports whether a pending item already carries the given
// normalized URL. Part of the dedup gate's pre-fetch check.
func (s *SQLiteStore) HasPendingURL(ctx context.Context, normalizedURL string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM queue WHERE url_norm = ? AND status = 'pending' LIMIT 1",
		normalizedURL).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking pending url %s: %w", normalizedURL, err)
	}
	return true, nil
}

// Drain lists all pending items due at or before now, in schedule order.
// Read-only; callers transition items with MarkStatus.
func (s *SQLiteStore) Drain(ctx context.Context, now time.Time) ([]model.QueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, original_url, source, scheduled_for, status, raw_payload, last_error, created_at
		FROM queue
		WHERE status = 'pending' AND scheduled_for <= ?
		ORDER BY scheduled_for ASC`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("draining queue: %w", err)
	}
	defer rows.Close()

	var items []model.QueueItem
	for rows.Next() {
		var (
			item   model.QueueItem
			status string
		)
		if err := rows.Scan(&item.ID, &item.OriginalURL, &item.Source,
			&item.ScheduledFor, &status, &item.RawPayload, &item.LastError,
			&item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning queue row: %w", err)
		}
		item.Status = model.QueueStatus(status)
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkStatus transitions a queue item. lastError is recorded verbatim and
// only meaningful for failed items.
func (s *SQLiteStore) MarkStatus(ctx context.Context, id int64, status model.QueueStatus, lastError string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE queue SET status = ?, last_error = ? WHERE id = ?",
		string(status), lastError, id)
	if err != nil {
		return fmt.Errorf("marking queue item %d %s: %w", id, status, err)
	}
	return nil
}
