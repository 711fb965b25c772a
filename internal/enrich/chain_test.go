package enrich

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/getjobwire/jobwire/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedCompleter returns a canned response (or error) per schema name.
type scriptedCompleter struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (s *scriptedCompleter) Complete(_ context.Context, _ string, schema Schema) (string, error) {
	s.calls = append(s.calls, schema.Name)
	if err, ok := s.errs[schema.Name]; ok {
		return "", err
	}
	return s.responses[schema.Name], nil
}

type fakeUploader struct {
	hosted string
	err    error
	calls  int
}

func (f *fakeUploader) Upload(_ context.Context, _, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.hosted, nil
}

const extractJSON = `{
	"title": "Backend Engineer",
	"company": "Acme",
	"location": "Bengaluru",
	"salary": "12 LPA",
	"description": "Acme is hiring a backend engineer.",
	"roles_responsibility": "Build services",
	"requirements": "Go, SQL",
	"eligibility": "2025 batch"
}`

const refineJSON = `{
	"title": "Backend Engineer",
	"company": "Acme",
	"location": "Bengaluru",
	"salary": "12 LPA",
	"description": "Acme builds ingestion infrastructure and is hiring a backend engineer.",
	"roles_responsibility": "- Build services\n- Own deployments",
	"requirements": "- Go\n- SQL",
	"eligibility": "2025 batch"
}`

const finalizeJSON = `{
	"title": "Backend Engineer",
	"company": "AI Invented Corp",
	"location": "Bengaluru",
	"salary": "12 LPA",
	"description": "Acme builds ingestion infrastructure and is hiring a backend engineer.",
	"roles_responsibility": "- Build services\n- Own deployments",
	"requirements": "- Go\n- SQL",
	"role_type": "backend"
}`

func happyCompleter() *scriptedCompleter {
	return &scriptedCompleter{responses: map[string]string{
		"job_extract":  extractJSON,
		"job_refine":   refineJSON,
		"job_finalize": finalizeJSON,
	}}
}

func sampleCandidate() model.CandidateListing {
	return model.CandidateListing{
		SourceURL:     "https://jobs.acme.com/backend",
		RawTitle:      "Acme hiring Backend Engineer 2025 batch",
		RawContent:    "Acme is hiring for the 2025 batch. Backend engineer, Golang. 12 LPA.",
		ApplyURLGuess: "https://jobs.acme.com/backend/apply",
		LogoGuess:     "https://cdn.acme.com/tmp/logo.png",
		Company:       "Acme",
		Origin:        "feed:acme",
	}
}

func TestEnrich_HappyPath(t *testing.T) {
	completer := happyCompleter()
	uploader := &fakeUploader{hosted: "https://img.jobwire.dev/acme.png"}
	chain := NewChain(completer, uploader, discardLogger())

	posting, status := chain.Enrich(context.Background(), sampleCandidate())
	if status != StatusOK {
		t.Fatalf("status = %v, want ok", status)
	}

	wantCalls := []string{"job_extract", "job_refine", "job_finalize"}
	if len(completer.calls) != 3 {
		t.Fatalf("completer calls = %v, want %v", completer.calls, wantCalls)
	}
	for i, w := range wantCalls {
		if completer.calls[i] != w {
			t.Errorf("call %d = %q, want %q", i, completer.calls[i], w)
		}
	}

	if posting.Title != "Backend Engineer" {
		t.Errorf("Title = %q", posting.Title)
	}
	if posting.MinSalary != 1_200_000 {
		t.Errorf("MinSalary = %d, want 1200000", posting.MinSalary)
	}
	if posting.JobType != "full-time" {
		t.Errorf("JobType = %q", posting.JobType)
	}
	if len(posting.Batch) != 1 || posting.Batch[0] != "2025" {
		t.Errorf("Batch = %v, want [2025]", posting.Batch)
	}
	if uploader.calls != 1 {
		t.Errorf("uploader calls = %d, want 1", uploader.calls)
	}
}

func TestFinalize_GroundTruthPrecedence(t *testing.T) {
	completer := happyCompleter()
	uploader := &fakeUploader{hosted: "https://img.jobwire.dev/acme.png"}
	chain := NewChain(completer, uploader, discardLogger())

	posting, status := chain.Enrich(context.Background(), sampleCandidate())
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}

	// The finalize response invents a company; scraped ground truth wins.
	if posting.Company != "Acme" {
		t.Errorf("Company = %q, want scraped Acme", posting.Company)
	}
	if posting.ApplyURL != "https://jobs.acme.com/backend/apply" {
		t.Errorf("ApplyURL = %q, want scraped apply URL", posting.ApplyURL)
	}
	if posting.CompanyLogo != "https://img.jobwire.dev/acme.png" {
		t.Errorf("CompanyLogo = %q, want hosted URL", posting.CompanyLogo)
	}
}

func TestEnrich_RateLimitSentinelPerStage(t *testing.T) {
	for _, stage := range []string{"job_extract", "job_refine", "job_finalize"} {
		completer := happyCompleter()
		completer.errs = map[string]error{stage: ErrRateLimited}
		chain := NewChain(completer, nil, discardLogger())

		_, status := chain.Enrich(context.Background(), sampleCandidate())
		if status != StatusRateLimited {
			t.Errorf("stage %s: status = %v, want rate-limited", stage, status)
		}
	}
}

func TestEnrich_GenericErrorIsFailed(t *testing.T) {
	completer := happyCompleter()
	completer.errs = map[string]error{"job_refine": errors.New("boom")}
	chain := NewChain(completer, nil, discardLogger())

	_, status := chain.Enrich(context.Background(), sampleCandidate())
	if status != StatusFailed {
		t.Errorf("status = %v, want failed", status)
	}
}

func TestExtract_NoTitleNoFallbackIsSkipped(t *testing.T) {
	completer := happyCompleter()
	completer.responses["job_extract"] = `{
		"title": "", "company": "", "location": "", "salary": "",
		"description": "", "roles_responsibility": "", "requirements": "",
		"eligibility": ""
	}`
	chain := NewChain(completer, nil, discardLogger())

	candidate := sampleCandidate()
	candidate.RawTitle = ""
	_, status := chain.Enrich(context.Background(), candidate)
	if status != StatusSkipped {
		t.Errorf("status = %v, want skipped", status)
	}
}

func TestExtract_FeedTitleBackfillsEmptyExtraction(t *testing.T) {
	completer := happyCompleter()
	completer.responses["job_extract"] = `{
		"title": "", "company": "", "location": "", "salary": "",
		"description": "d", "roles_responsibility": "", "requirements": "",
		"eligibility": ""
	}`
	chain := NewChain(completer, nil, discardLogger())

	draft, status := chain.Extract(context.Background(), sampleCandidate())
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}
	if draft.Title != "Acme hiring Backend Engineer 2025 batch" {
		t.Errorf("Title = %q, want feed title backfill", draft.Title)
	}
}

func TestHostLogo_UploadFailureKeepsScrapedURL(t *testing.T) {
	completer := happyCompleter()
	uploader := &fakeUploader{err: errors.New("upload down")}
	chain := NewChain(completer, uploader, discardLogger())

	posting, status := chain.Enrich(context.Background(), sampleCandidate())
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}
	if posting.CompanyLogo != "https://cdn.acme.com/tmp/logo.png" {
		t.Errorf("CompanyLogo = %q, want scraped fallback", posting.CompanyLogo)
	}
}
