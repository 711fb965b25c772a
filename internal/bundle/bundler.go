// Package bundle batches finalized postings per target channel and sends
// one combined message when a bundle reaches its threshold.
package bundle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/getjobwire/jobwire/internal/model"
)

// Sender posts one message to a chat (optionally into a forum topic) and
// returns the platform message id.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, threadID int64) (int64, error)
}

// Config is the channel routing table. Chat and thread ids come from
// configuration, never from code.
type Config struct {
	PublicChatID int64
	BatchChatID  int64            // forum group carrying per-year topics
	BatchThreads map[string]int64 // graduation year -> thread id
	OlderThread  int64            // catch-all topic for years below the cutoff
	AdminChatID  int64            // review digest
	BatchCutoff  string           // earliest year with its own topic, e.g. "2025"
	Size         int              // postings per combined message
}

// route is a resolved channel target.
type route struct {
	key      string
	chatID   int64
	threadID int64
}

// channelBundle accumulates postings for one route. Retained (not cleared)
// when a send fails so the next AddJob or Flush retries it.
type channelBundle struct {
	route    route
	postings []model.JobPosting
}

// Bundler routes postings to channel bundles and flushes each bundle at
// the size threshold. It is used by one run at a time; the mutex exists so
// the queue worker and an interactive run can share one instance.
type Bundler struct {
	sender Sender
	jobs   model.JobStore
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	bundles map[string]*channelBundle
}

func NewBundler(sender Sender, jobs model.JobStore, cfg Config, logger *slog.Logger) *Bundler {
	if cfg.Size <= 0 {
		cfg.Size = 5
	}
	return &Bundler{
		sender:  sender,
		jobs:    jobs,
		cfg:     cfg,
		bundles: make(map[string]*channelBundle),
		logger:  logger,
	}
}

// AddJob routes the posting to its channel bundles and sends any bundle
// that reaches the threshold. A send failure retains the bundle and is
// reported, but the posting itself is already persisted: publication and
// persistence are decoupled.
func (b *Bundler) AddJob(ctx context.Context, posting model.JobPosting) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for _, r := range b.routesFor(posting) {
		cb, ok := b.bundles[r.key]
		if !ok {
			cb = &channelBundle{route: r}
			b.bundles[r.key] = cb
		}
		cb.postings = append(cb.postings, posting)

		if len(cb.postings) >= b.cfg.Size {
			if err := b.sendBundle(ctx, cb); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Flush force-sends every non-empty bundle regardless of size so no
// postings are stranded at the end of a run.
func (b *Bundler) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for _, cb := range b.bundles {
		if len(cb.postings) == 0 {
			continue
		}
		if err := b.sendBundle(ctx, cb); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RemoveJob retracts a posting that was buffered but not yet sent
// (deleted by moderation between persist and flush).
func (b *Bundler) RemoveJob(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, cb := range b.bundles {
		kept := cb.postings[:0]
		for _, p := range cb.postings {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		cb.postings = kept
	}
}

// BufferedCount reports how many postings currently sit in the bundle for
// key. Used by tests and the review surface.
func (b *Bundler) BufferedCount(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.bundles[key]; ok {
		return len(cb.postings)
	}
	return 0
}

// sendBundle renders and sends one combined message, clearing the bundle
// on success. Caller holds b.mu.
func (b *Bundler) sendBundle(ctx context.Context, cb *channelBundle) error {
	text := renderBundle(cb.route.key, cb.postings)

	msgID, err := b.sender.SendMessage(ctx, cb.route.chatID, text, cb.route.threadID)
	if err != nil {
		b.logger.Error("bundle send failed, retaining bundle",
			"channel", cb.route.key,
			"postings", len(cb.postings),
			"error", err,
		)
		return fmt.Errorf("send bundle %s: %w", cb.route.key, err)
	}

	// The public channel message is the one the storefront links back to.
	if cb.route.key == "public" {
		for _, p := range cb.postings {
			if err := b.jobs.SetTelegramMessageID(ctx, p.ID, msgID); err != nil {
				b.logger.Error("record message id", "job", p.ID, "error", err)
			}
		}
	}

	b.logger.Info("bundle sent",
		"channel", cb.route.key,
		"postings", len(cb.postings),
		"message_id", msgID,
	)
	cb.postings = nil
	return nil
}

// routesFor resolves the channel keys a posting belongs to: the public
// channel, one topic per batch year at or above the cutoff, the "older"
// catch-all for the rest, and the admin digest.
func (b *Bundler) routesFor(posting model.JobPosting) []route {
	routes := []route{{key: "public", chatID: b.cfg.PublicChatID}}

	older := false
	for _, year := range posting.Batch {
		if year >= b.cfg.BatchCutoff {
			if threadID, ok := b.cfg.BatchThreads[year]; ok {
				routes = append(routes, route{
					key:      "batch-" + year,
					chatID:   b.cfg.BatchChatID,
					threadID: threadID,
				})
				continue
			}
		}
		older = true
	}
	if older && b.cfg.OlderThread != 0 {
		routes = append(routes, route{
			key:      "older",
			chatID:   b.cfg.BatchChatID,
			threadID: b.cfg.OlderThread,
		})
	}

	if b.cfg.AdminChatID != 0 {
		routes = append(routes, route{key: "admin-digest", chatID: b.cfg.AdminChatID})
	}
	return routes
}
