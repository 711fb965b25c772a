// Package dedupe implements the read-only gate that keeps one real-world
// job from being processed or published twice.
package dedupe

import (
	"context"
	"fmt"

	"github.com/getjobwire/jobwire/internal/model"
)

// Gate answers the two dedup questions the pipeline asks: a cheap URL-only
// check before any fetch, and a full title+company check before the AI
// stages run. Matching is exact and case-insensitive, never fuzzy: a missed
// duplicate costs a redundant post, a false positive silently drops a real
// job, so only the second is unacceptable.
type Gate struct {
	jobs  model.JobStore
	queue model.QueueStore
}

// NewGate builds a gate over the published postings and the pending queue.
func NewGate(jobs model.JobStore, queue model.QueueStore) *Gate {
	return &Gate{jobs: jobs, queue: queue}
}

// IsDuplicateURL is the pre-fetch check: true when the normalized URL is
// already published or already waiting in the pending queue.
func (g *Gate) IsDuplicateURL(ctx context.Context, rawURL string) (bool, error) {
	norm := model.NormalizeURL(rawURL)
	if norm == "" {
		return false, nil
	}

	published, err := g.jobs.HasApplyURL(ctx, norm)
	if err != nil {
		return false, fmt.Errorf("dedup url check: %w", err)
	}
	if published {
		return true, nil
	}

	pending, err := g.queue.HasPendingURL(ctx, norm)
	if err != nil {
		return false, fmt.Errorf("dedup pending check: %w", err)
	}
	return pending, nil
}

// IsDuplicate is the post-fetch check: true when either the apply URL or
// the (title, company) pair matches an existing posting. Title and company
// must both match; either field alone never counts.
func (g *Gate) IsDuplicate(ctx context.Context, title, company, applyURL string) (bool, error) {
	dup, err := g.IsDuplicateURL(ctx, applyURL)
	if err != nil {
		return false, err
	}
	if dup {
		return true, nil
	}

	if title == "" || company == "" {
		return false, nil
	}
	dup, err = g.jobs.HasTitleCompany(ctx, title, company)
	if err != nil {
		return false, fmt.Errorf("dedup title/company check: %w", err)
	}
	return dup, nil
}
