package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/getjobwire/jobwire/internal/enrich"
	"github.com/getjobwire/jobwire/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memQueue serves a fixed due list and records status transitions.
type memQueue struct {
	due     []model.QueueItem
	history map[int64][]model.QueueStatus
}

func newMemQueue(items ...model.QueueItem) *memQueue {
	return &memQueue{due: items, history: map[int64][]model.QueueStatus{}}
}

func (q *memQueue) Drain(_ context.Context, _ time.Time) ([]model.QueueItem, error) {
	due := q.due
	q.due = nil
	return due, nil
}

func (q *memQueue) MarkStatus(_ context.Context, id int64, status model.QueueStatus, _ string) error {
	q.history[id] = append(q.history[id], status)
	return nil
}

func (q *memQueue) lastStatus(id int64) model.QueueStatus {
	h := q.history[id]
	if len(h) == 0 {
		return ""
	}
	return h[len(h)-1]
}

type memGate struct {
	dupURLs map[string]bool
}

func (g *memGate) IsDuplicateURL(_ context.Context, rawURL string) (bool, error) {
	return g.dupURLs[model.NormalizeURL(rawURL)], nil
}

func (g *memGate) IsDuplicate(_ context.Context, _, _, _ string) (bool, error) {
	return false, nil
}

type memStore struct {
	inserted []model.JobPosting
	nextID   int64
}

func (s *memStore) InsertJob(_ context.Context, p *model.JobPosting) (int64, error) {
	s.nextID++
	s.inserted = append(s.inserted, *p)
	return s.nextID, nil
}
func (s *memStore) HasApplyURL(_ context.Context, _ string) (bool, error)        { return false, nil }
func (s *memStore) HasTitleCompany(_ context.Context, _, _ string) (bool, error) { return false, nil }
func (s *memStore) SetTelegramMessageID(_ context.Context, _, _ int64) error     { return nil }
func (s *memStore) ListRecent(_ context.Context, _ int) ([]model.JobPosting, error) {
	return nil, nil
}
func (s *memStore) SetActive(_ context.Context, _ int64, _ bool) error    { return nil }
func (s *memStore) IncrementViews(_ context.Context, _ int64) error       { return nil }
func (s *memStore) IncrementClicks(_ context.Context, _ int64) error      { return nil }
func (s *memStore) IncrementReportCount(_ context.Context, _ int64) error { return nil }

type fakeFetcher struct {
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (model.CandidateListing, error) {
	f.fetched = append(f.fetched, rawURL)
	return model.CandidateListing{
		SourceURL:     rawURL,
		RawTitle:      "Fetched Role",
		RawContent:    "body",
		ApplyURLGuess: rawURL,
		Company:       "Acme",
	}, nil
}

type fakeEnricher struct {
	calls       int
	rateLimitAt int
	last        model.CandidateListing
}

func (f *fakeEnricher) Enrich(_ context.Context, c model.CandidateListing) (model.JobPosting, enrich.Status) {
	f.calls++
	f.last = c
	if f.rateLimitAt > 0 && f.calls >= f.rateLimitAt {
		return model.JobPosting{}, enrich.StatusRateLimited
	}
	return model.JobPosting{Title: c.RawTitle, Company: c.Company, ApplyURL: c.SourceURL}, enrich.StatusOK
}

type fakeBundler struct {
	added   []model.JobPosting
	flushes int
}

func (f *fakeBundler) AddJob(_ context.Context, p model.JobPosting) error {
	f.added = append(f.added, p)
	return nil
}
func (f *fakeBundler) Flush(_ context.Context) error {
	f.flushes++
	return nil
}

func queueItem(id int64, url string, candidate *model.CandidateListing) model.QueueItem {
	item := model.QueueItem{ID: id, OriginalURL: url, Source: "api:partner", Status: model.StatusPending}
	if candidate != nil {
		payload, _ := json.Marshal(candidate)
		item.RawPayload = string(payload)
	}
	return item
}

func newWorker(q *memQueue, gate *memGate, enricher *fakeEnricher) (*Worker, *memStore, *fakeFetcher, *fakeBundler) {
	store := &memStore{}
	fetcher := &fakeFetcher{}
	bundler := &fakeBundler{}
	w := NewWorker(q, gate, fetcher, enricher, store, bundler, time.Minute, discardLogger())
	return w, store, fetcher, bundler
}

func TestDrainOnce_PublishesDueItem(t *testing.T) {
	candidate := &model.CandidateListing{
		SourceURL:  "https://p.com/1",
		RawTitle:   "Platform Engineer",
		RawContent: "full body",
		Company:    "Acme",
		Origin:     "api:partner",
	}
	q := newMemQueue(queueItem(1, "https://p.com/1", candidate))
	w, store, fetcher, bundler := newWorker(q, &memGate{dupURLs: map[string]bool{}}, &fakeEnricher{})

	w.drainOnce(context.Background())

	if got := q.lastStatus(1); got != model.StatusCompleted {
		t.Errorf("status = %q, want completed", got)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("inserted %d postings, want 1", len(store.inserted))
	}
	if len(fetcher.fetched) != 0 {
		t.Error("pre-fetched payload should skip the page fetcher")
	}
	if len(bundler.added) != 1 || bundler.flushes != 1 {
		t.Errorf("bundled=%d flushes=%d, want 1/1", len(bundler.added), bundler.flushes)
	}
}

func TestDrainOnce_FetchesItemWithoutPayload(t *testing.T) {
	q := newMemQueue(queueItem(1, "https://p.com/1", nil))
	enricher := &fakeEnricher{}
	w, store, fetcher, _ := newWorker(q, &memGate{dupURLs: map[string]bool{}}, enricher)

	w.drainOnce(context.Background())

	if len(fetcher.fetched) != 1 {
		t.Fatalf("fetched %d urls, want 1", len(fetcher.fetched))
	}
	if len(store.inserted) != 1 {
		t.Errorf("inserted %d postings, want 1", len(store.inserted))
	}
	if enricher.last.Origin != "api:partner" {
		t.Errorf("Origin = %q, want the adapter identifier from the queue item", enricher.last.Origin)
	}
}

func TestDrainOnce_AlreadyPublishedCompletesWithoutInsert(t *testing.T) {
	q := newMemQueue(queueItem(1, "https://p.com/1", nil))
	gate := &memGate{dupURLs: map[string]bool{"https://p.com/1": true}}
	w, store, _, _ := newWorker(q, gate, &fakeEnricher{})

	w.drainOnce(context.Background())

	if got := q.lastStatus(1); got != model.StatusCompleted {
		t.Errorf("status = %q, want completed", got)
	}
	if len(store.inserted) != 0 {
		t.Error("duplicate item must not be persisted again")
	}
}

func TestDrainOnce_RateLimitRestoresPendingAndStops(t *testing.T) {
	q := newMemQueue(
		queueItem(1, "https://p.com/1", nil),
		queueItem(2, "https://p.com/2", nil),
	)
	enricher := &fakeEnricher{rateLimitAt: 1}
	w, store, _, _ := newWorker(q, &memGate{dupURLs: map[string]bool{}}, enricher)

	w.drainOnce(context.Background())

	if got := q.lastStatus(1); got != model.StatusPending {
		t.Errorf("item 1 status = %q, want restored to pending", got)
	}
	if len(q.history[2]) != 0 {
		t.Error("item 2 should not be touched after the rate limit")
	}
	if len(store.inserted) != 0 {
		t.Error("nothing should be persisted")
	}
}

func TestDrainOnce_EnrichFailureMarksFailed(t *testing.T) {
	q := newMemQueue(queueItem(1, "https://p.com/1", nil))
	enricher := &fakeEnricher{}
	w, _, _, _ := newWorker(q, &memGate{dupURLs: map[string]bool{}}, enricher)

	// An empty-title candidate is skipped by the chain; simulate with a
	// scripted status.
	enricher.rateLimitAt = 0
	w.chain = enrichFunc(func(model.CandidateListing) (model.JobPosting, enrich.Status) {
		return model.JobPosting{}, enrich.StatusFailed
	})

	w.drainOnce(context.Background())

	if got := q.lastStatus(1); got != model.StatusFailed {
		t.Errorf("status = %q, want failed", got)
	}
}

// enrichFunc adapts a function to the runner.Enricher interface.
type enrichFunc func(model.CandidateListing) (model.JobPosting, enrich.Status)

func (f enrichFunc) Enrich(_ context.Context, c model.CandidateListing) (model.JobPosting, enrich.Status) {
	return f(c)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	q := newMemQueue()
	w, _, _, _ := newWorker(q, &memGate{dupURLs: map[string]bool{}}, &fakeEnricher{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil on shutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}
