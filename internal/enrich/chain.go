// Package enrich turns raw candidate text into a canonical posting through
// three ordered completion stages: extract, refine, finalize.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getjobwire/jobwire/internal/classify"
	"github.com/getjobwire/jobwire/internal/model"
)

// Status is the tagged outcome of an enrichment stage. Rate limiting is a
// value, not an error: it must cross every layer up to the run controller,
// which aborts the remaining sources to stop burning quota.
type Status int

const (
	StatusOK Status = iota
	StatusRateLimited
	StatusSkipped // no usable title and no fallback data; counted, not failed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRateLimited:
		return "rate-limited"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Draft is the intermediate field set shared by the extract and refine
// stages.
type Draft struct {
	Title               string `json:"title"`
	Company             string `json:"company"`
	Location            string `json:"location"`
	Salary              string `json:"salary"`
	Description         string `json:"description"`
	RolesResponsibility string `json:"roles_responsibility"`
	Requirements        string `json:"requirements"`
	Eligibility         string `json:"eligibility"`
}

// finalDraft is the finalize stage's response shape.
type finalDraft struct {
	Draft
	RoleType string `json:"role_type"`
}

// Uploader re-hosts an ephemeral image and returns a stable URL.
type Uploader interface {
	Upload(ctx context.Context, sourceImageURL, labelHint string) (string, error)
}

// Chain runs the three-stage enrichment for one candidate. Scraped ground
// truth (apply URL, logo, company, classifier output) always overrides AI
// output in the finalized posting.
type Chain struct {
	completer Completer
	uploader  Uploader
	logger    *slog.Logger
}

func NewChain(completer Completer, uploader Uploader, logger *slog.Logger) *Chain {
	return &Chain{
		completer: completer,
		uploader:  uploader,
		logger:    logger,
	}
}

// Enrich runs extract → refine → finalize for the candidate and returns
// the canonical posting. The posting is only meaningful when the status is
// StatusOK.
func (c *Chain) Enrich(ctx context.Context, candidate model.CandidateListing) (model.JobPosting, Status) {
	draft, status := c.Extract(ctx, candidate)
	if status != StatusOK {
		return model.JobPosting{}, status
	}

	refined, status := c.Refine(ctx, draft)
	if status != StatusOK {
		return model.JobPosting{}, status
	}

	return c.Finalize(ctx, refined, candidate)
}

// Extract turns raw listing text into a structured draft. A draft with no
// title and no feed/fallback title means the candidate is unusable and is
// skipped, not failed.
func (c *Chain) Extract(ctx context.Context, candidate model.CandidateListing) (Draft, Status) {
	var promptBuf bytes.Buffer
	if err := extractTemplate.Execute(&promptBuf, struct{ Text string }{Text: candidate.RawContent}); err != nil {
		c.logger.Error("render extract prompt", "error", err)
		return Draft{}, StatusFailed
	}

	raw, err := c.completer.Complete(ctx, promptBuf.String(), extractSchema)
	if err != nil {
		return Draft{}, c.completionStatus("extract", err)
	}

	var draft Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		c.logger.Error("parse extract response", "error", err)
		return Draft{}, StatusFailed
	}

	if draft.Title == "" {
		if candidate.RawTitle == "" {
			return Draft{}, StatusSkipped
		}
		draft.Title = candidate.RawTitle
	}
	if draft.Company == "" {
		draft.Company = candidate.Company
	}
	return draft, StatusOK
}

// Refine rewrites the draft copy without changing facts.
func (c *Chain) Refine(ctx context.Context, draft Draft) (Draft, Status) {
	var promptBuf bytes.Buffer
	if err := refineTemplate.Execute(&promptBuf, draft); err != nil {
		c.logger.Error("render refine prompt", "error", err)
		return Draft{}, StatusFailed
	}

	raw, err := c.completer.Complete(ctx, promptBuf.String(), refineSchema)
	if err != nil {
		return Draft{}, c.completionStatus("refine", err)
	}

	var refined Draft
	if err := json.Unmarshal([]byte(raw), &refined); err != nil {
		c.logger.Error("parse refine response", "error", err)
		return Draft{}, StatusFailed
	}
	if refined.Title == "" {
		refined.Title = draft.Title
	}
	return refined, StatusOK
}

// Finalize maps the refined draft onto the canonical schema and merges in
// scraped ground truth, which wins over AI output for factual fields.
func (c *Chain) Finalize(ctx context.Context, draft Draft, candidate model.CandidateListing) (model.JobPosting, Status) {
	var promptBuf bytes.Buffer
	if err := finalizeTemplate.Execute(&promptBuf, draft); err != nil {
		c.logger.Error("render finalize prompt", "error", err)
		return model.JobPosting{}, StatusFailed
	}

	raw, err := c.completer.Complete(ctx, promptBuf.String(), finalizeSchema)
	if err != nil {
		return model.JobPosting{}, c.completionStatus("finalize", err)
	}

	var fd finalDraft
	if err := json.Unmarshal([]byte(raw), &fd); err != nil {
		c.logger.Error("parse finalize response", "error", err)
		return model.JobPosting{}, StatusFailed
	}

	attrs := classify.Derive(candidate.RawTitle+" "+fd.Title, candidate.RawContent)

	posting := model.JobPosting{
		Title:               fd.Title,
		Company:             fd.Company,
		Location:            fd.Location,
		Salary:              fd.Salary,
		MinSalary:           ParseMinSalary(fd.Salary),
		Description:         fd.Description,
		RolesResponsibility: fd.RolesResponsibility,
		Requirements:        fd.Requirements,
		RoleType:            fd.RoleType,
		Batch:               attrs.Batch,
		Tags:                attrs.Tags,
		JobType:             attrs.JobType,
		IsRemote:            attrs.IsRemote,
	}

	// Ground truth beats AI output for factual fields.
	applyURL := candidate.ApplyURLGuess
	if applyURL == "" {
		applyURL = candidate.SourceURL
	}
	posting.ApplyURL = applyURL
	if candidate.Company != "" {
		posting.Company = candidate.Company
	}

	posting.CompanyLogo = c.hostLogo(ctx, candidate.LogoGuess, posting.Company)

	if posting.Title == "" {
		return model.JobPosting{}, StatusSkipped
	}
	return posting, StatusOK
}

// hostLogo re-hosts the scraped logo so the posting never references an
// ephemeral URL. Upload failures fall back to the scraped URL.
func (c *Chain) hostLogo(ctx context.Context, logoGuess, company string) string {
	if logoGuess == "" || c.uploader == nil {
		return logoGuess
	}
	hosted, err := c.uploader.Upload(ctx, logoGuess, company)
	if err != nil {
		c.logger.Warn("logo upload failed, keeping scraped url",
			"logo", logoGuess,
			"error", err,
		)
		return logoGuess
	}
	return hosted
}

func (c *Chain) completionStatus(stage string, err error) Status {
	if errors.Is(err, ErrRateLimited) {
		c.logger.Warn("completion service rate limited", "stage", stage)
		return StatusRateLimited
	}
	c.logger.Error("completion call failed", "stage", stage, "error", err)
	return StatusFailed
}
