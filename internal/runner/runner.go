// Package runner drives one or more source adapters through the shared
// pipeline: dedupe, fetch, dedupe again, enrich, persist, bundle. Sources
// run sequentially; the only concurrency is the countdown timer racing the
// operator's key input.
package runner

import (
	"context"
	"log/slog"

	"github.com/getjobwire/jobwire/internal/config"
	"github.com/getjobwire/jobwire/internal/enrich"
	"github.com/getjobwire/jobwire/internal/model"
	"github.com/getjobwire/jobwire/internal/source"
)

const defaultDupThreshold = 3

// Gate is the deduplication surface the runner consults.
type Gate interface {
	IsDuplicateURL(ctx context.Context, rawURL string) (bool, error)
	IsDuplicate(ctx context.Context, title, company, applyURL string) (bool, error)
}

// Fetcher resolves a candidate URL into a listing.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (model.CandidateListing, error)
}

// Enricher runs the enrichment chain for one candidate.
type Enricher interface {
	Enrich(ctx context.Context, candidate model.CandidateListing) (model.JobPosting, enrich.Status)
}

// Enqueuer places a candidate on the scheduled queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, candidate model.CandidateListing) (*model.QueueItem, error)
}

// Publisher buffers finalized postings for channel distribution.
type Publisher interface {
	AddJob(ctx context.Context, posting model.JobPosting) error
	Flush(ctx context.Context) error
}

// Source pairs an adapter with its per-source run policy.
type Source struct {
	Adapter model.SourceAdapter
	// DupThreshold ends the source early after this many consecutive
	// duplicates. 0 uses the default.
	DupThreshold int
	// Enqueue routes accepted candidates through the scheduled queue
	// instead of publishing them in this run.
	Enqueue bool
}

// Result summarizes one multi-source run.
type Result struct {
	Published  int
	Queued     int
	Duplicates int
	Skipped    int
	Failed     int
	Aborted    bool // rate limit or operator quit
}

// Runner is the per-run state machine over sources and candidates.
type Runner struct {
	gate      Gate
	fetcher   Fetcher
	chain     Enricher
	jobs      model.JobStore
	scheduler Enqueuer
	bundler   Publisher
	waiter    *Waiter
	cfg       config.RunConfig
	logger    *slog.Logger
}

func NewRunner(
	gate Gate,
	fetcher Fetcher,
	chain Enricher,
	jobs model.JobStore,
	scheduler Enqueuer,
	bundler Publisher,
	waiter *Waiter,
	cfg config.RunConfig,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		gate:      gate,
		fetcher:   fetcher,
		chain:     chain,
		jobs:      jobs,
		scheduler: scheduler,
		bundler:   bundler,
		waiter:    waiter,
		cfg:       cfg,
		logger:    logger,
	}
}

// sourceOutcome says whether the run continues past the current source.
type sourceOutcome int

const (
	continueRun sourceOutcome = iota
	abortRun
)

// Run processes the sources in order. A rate-limit signal from the
// enrichment chain or an operator quit aborts the current source and every
// sibling after it. Non-empty bundles are flushed before returning so no
// postings are stranded.
func (r *Runner) Run(ctx context.Context, sources []Source) Result {
	var res Result

	for i, src := range sources {
		if i > 0 && r.cfg.InterSourceDelay > 0 {
			if reason := r.waiter.Wait(ctx, r.cfg.InterSourceDelay); reason == WaitQuit {
				res.Aborted = true
				break
			}
		}

		if outcome := r.runSource(ctx, src, &res); outcome == abortRun {
			res.Aborted = true
			break
		}
	}

	if err := r.bundler.Flush(ctx); err != nil {
		r.logger.Error("flush bundles", "error", err)
	}

	r.logger.Info("run finished",
		"published", res.Published,
		"queued", res.Queued,
		"duplicates", res.Duplicates,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"aborted", res.Aborted,
	)
	return res
}

// runSource loops over one source's candidates. Each candidate is fully
// resolved before the next begins. Consecutive duplicates end the source
// early; the counter resets only on a successful publish or enqueue.
func (r *Runner) runSource(ctx context.Context, src Source, res *Result) sourceOutcome {
	name := src.Adapter.Name()
	threshold := src.DupThreshold
	if threshold <= 0 {
		threshold = defaultDupThreshold
	}

	candidates, err := src.Adapter.ListCandidates(ctx)
	if err != nil {
		r.logger.Error("list candidates", "source", name, "error", err)
		return continueRun
	}
	r.logger.Info("source listed", "source", name, "candidates", len(candidates))

	consecutiveDups := 0
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return abortRun
		}

		dup, err := r.gate.IsDuplicateURL(ctx, candidate.SourceURL)
		if err != nil {
			r.logger.Error("dedupe check", "source", name, "url", candidate.SourceURL, "error", err)
			res.Skipped++
			continue
		}
		if dup {
			res.Duplicates++
			consecutiveDups++
			r.logger.Debug("duplicate url", "source", name, "url", candidate.SourceURL, "consecutive", consecutiveDups)
			if consecutiveDups >= threshold {
				r.logger.Info("source caught up, stopping early", "source", name, "consecutive_duplicates", consecutiveDups)
				return continueRun
			}
			continue
		}

		if src.Enqueue {
			if _, err := r.scheduler.Enqueue(ctx, candidate); err != nil {
				r.logger.Error("enqueue", "source", name, "url", candidate.SourceURL, "error", err)
				res.Failed++
				continue
			}
			res.Queued++
			consecutiveDups = 0
			continue
		}

		outcome, published := r.processCandidate(ctx, name, candidate, res)
		if published {
			consecutiveDups = 0
		}
		switch outcome {
		case abortCandidate:
			return abortRun
		case nextSource:
			return continueRun
		case duplicateCandidate:
			consecutiveDups++
			if consecutiveDups >= threshold {
				r.logger.Info("source caught up, stopping early", "source", name, "consecutive_duplicates", consecutiveDups)
				return continueRun
			}
		}
	}

	return continueRun
}

// candidateOutcome classifies one candidate's trip through the pipeline.
type candidateOutcome int

const (
	candidateDone candidateOutcome = iota
	duplicateCandidate
	nextSource
	abortCandidate
)

// processCandidate runs fetch, second-pass dedupe, enrichment, persist and
// bundle for one candidate on the interactive path. The returned bool is
// true when a posting was published.
func (r *Runner) processCandidate(ctx context.Context, name string, candidate model.CandidateListing, res *Result) (candidateOutcome, bool) {
	if !source.PreFetched(candidate) {
		fetched, err := r.fetcher.Fetch(ctx, candidate.SourceURL)
		if err != nil {
			r.logger.Warn("fetch failed, dropping candidate", "source", name, "url", candidate.SourceURL, "error", err)
			res.Skipped++
			return candidateDone, false
		}
		fetched.Origin = candidate.Origin
		if fetched.RawTitle == "" {
			fetched.RawTitle = candidate.RawTitle
		}
		candidate = fetched
	}

	dup, err := r.gate.IsDuplicate(ctx, candidate.RawTitle, candidate.Company, candidate.ApplyURLGuess)
	if err != nil {
		r.logger.Error("dedupe check", "source", name, "url", candidate.SourceURL, "error", err)
		res.Skipped++
		return candidateDone, false
	}
	if dup {
		res.Duplicates++
		r.logger.Debug("duplicate listing", "source", name, "title", candidate.RawTitle, "company", candidate.Company)
		return duplicateCandidate, false
	}

	posting, status := r.chain.Enrich(ctx, candidate)
	switch status {
	case enrich.StatusRateLimited:
		r.logger.Warn("completion quota exhausted, aborting run", "source", name, "url", candidate.SourceURL)
		return abortCandidate, false
	case enrich.StatusSkipped:
		res.Skipped++
		return candidateDone, false
	case enrich.StatusFailed:
		res.Failed++
		return candidateDone, false
	}

	id, err := r.jobs.InsertJob(ctx, &posting)
	if err != nil {
		r.logger.Error("persist posting", "source", name, "title", posting.Title, "error", err)
		res.Failed++
		return candidateDone, false
	}
	posting.ID = id

	if err := r.bundler.AddJob(ctx, posting); err != nil {
		// Posting stays persisted; the bundle retries on the next add or flush.
		r.logger.Error("bundle posting", "source", name, "job", id, "error", err)
	}
	res.Published++
	r.logger.Info("posting published", "source", name, "job", id, "title", posting.Title, "company", posting.Company)

	wait := r.cfg.PostWait
	if len(posting.Batch) > 0 {
		wait = r.cfg.ThreadPostWait
	}
	switch r.waiter.Wait(ctx, wait) {
	case WaitQuit:
		return abortCandidate, true
	case WaitNextSource:
		return nextSource, true
	}
	return candidateDone, true
}
