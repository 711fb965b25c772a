package model

import (
	"context"
	"strings"
	"time"
)

// CandidateListing is a not-yet-verified job discovered by a source adapter.
// It lives only for the duration of one candidate's trip through the
// pipeline and is never persisted as-is.
type CandidateListing struct {
	SourceURL     string // page or feed-entry URL the candidate came from
	RawTitle      string // best-effort title (feed title, og:title, ...)
	RawContent    string // plain-text body handed to the enrichment chain
	ApplyURLGuess string // scraped apply link, falls back to SourceURL
	LogoGuess     string // scraped logo URL, possibly ephemeral
	Company       string // scraped or synthesized company name
	Origin        string // adapter identifier ("feed:remoteok", "channel:gocareers", ...)
}

// JobPosting is the canonical, persisted job record exposed to the
// public-facing layers. Created exactly once per real-world job by the
// enrichment chain; the pipeline never deletes it.
type JobPosting struct {
	ID                  int64
	Title               string
	Company             string
	Location            string
	Salary              string // free-form, as published
	MinSalary           int64  // numeric floor parsed from Salary, 0 if unknown
	Description         string
	RolesResponsibility string
	Requirements        string
	ApplyURL            string   // unique across postings after NormalizeURL
	CompanyLogo         string   // stable hosted URL
	Batch               []string // graduation years; empty = evergreen
	Tags                []string
	JobType             string // "full-time", "internship", ...
	RoleType            string
	IsRemote            bool
	IsActive            bool
	Views               int64
	Clicks              int64
	ReportCount         int64
	TelegramMessageID   *int64 // set after a successful channel post
	CreatedAt           time.Time
}

// QueueStatus is the lifecycle state of a scheduled queue item.
// Completed and failed are terminal; nothing retries them automatically.
type QueueStatus string

const (
	StatusPending    QueueStatus = "pending"
	StatusProcessing QueueStatus = "processing"
	StatusCompleted  QueueStatus = "completed"
	StatusFailed     QueueStatus = "failed"
)

// QueueItem is a candidate accepted by the pre-fetch dedup check and
// scheduled for a future, interval-paced publication slot.
type QueueItem struct {
	ID           int64
	OriginalURL  string
	Source       string
	ScheduledFor time.Time
	Status       QueueStatus
	RawPayload   string // serialized CandidateListing for pre-fetched sources, "" otherwise
	LastError    string
	CreatedAt    time.Time
}

// NormalizeURL lowercases a URL and strips the trailing slash so that
// casing and slash variance never defeat the apply-URL uniqueness check.
func NormalizeURL(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	return strings.TrimSuffix(s, "/")
}

// JobStore persists canonical postings and answers the dedup queries.
type JobStore interface {
	InsertJob(ctx context.Context, job *JobPosting) (int64, error)
	HasApplyURL(ctx context.Context, normalizedURL string) (bool, error)
	HasTitleCompany(ctx context.Context, title, company string) (bool, error)
	SetTelegramMessageID(ctx context.Context, jobID, messageID int64) error
	ListRecent(ctx context.Context, limit int) ([]JobPosting, error)

	// Moderation surface used by the excluded storefront/admin layers.
	SetActive(ctx context.Context, jobID int64, active bool) error
	IncrementViews(ctx context.Context, jobID int64) error
	IncrementClicks(ctx context.Context, jobID int64) error
	IncrementReportCount(ctx context.Context, jobID int64) error
}

// QueueStore persists scheduled queue items for the drain worker.
type QueueStore interface {
	InsertQueueItem(ctx context.Context, item *QueueItem) (int64, error)
	LatestPendingTime(ctx context.Context) (time.Time, bool, error)
	HasPendingURL(ctx context.Context, normalizedURL string) (bool, error)
	Drain(ctx context.Context, now time.Time) ([]QueueItem, error)
	MarkStatus(ctx context.Context, id int64, status QueueStatus, lastError string) error
}

// SourceAdapter produces candidate listings for one origin.
type SourceAdapter interface {
	Name() string
	ListCandidates(ctx context.Context) ([]CandidateListing, error)
}
