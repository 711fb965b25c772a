package bundle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/getjobwire/jobwire/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentMessage struct {
	chatID   int64
	threadID int64
	text     string
}

// fakeSender records sends and can be told to fail.
type fakeSender struct {
	sent   []sentMessage
	fail   bool
	nextID int64
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string, threadID int64) (int64, error) {
	if f.fail {
		return 0, errors.New("platform unreachable")
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, threadID: threadID, text: text})
	f.nextID++
	return f.nextID, nil
}

// recordingJobStore records SetTelegramMessageID calls.
type recordingJobStore struct {
	messageIDs map[int64]int64
}

func (r *recordingJobStore) SetTelegramMessageID(_ context.Context, jobID, messageID int64) error {
	if r.messageIDs == nil {
		r.messageIDs = map[int64]int64{}
	}
	r.messageIDs[jobID] = messageID
	return nil
}

func (r *recordingJobStore) InsertJob(_ context.Context, _ *model.JobPosting) (int64, error) {
	return 0, nil
}
func (r *recordingJobStore) HasApplyURL(_ context.Context, _ string) (bool, error) { return false, nil }
func (r *recordingJobStore) HasTitleCompany(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}
func (r *recordingJobStore) ListRecent(_ context.Context, _ int) ([]model.JobPosting, error) {
	return nil, nil
}
func (r *recordingJobStore) SetActive(_ context.Context, _ int64, _ bool) error    { return nil }
func (r *recordingJobStore) IncrementViews(_ context.Context, _ int64) error       { return nil }
func (r *recordingJobStore) IncrementClicks(_ context.Context, _ int64) error      { return nil }
func (r *recordingJobStore) IncrementReportCount(_ context.Context, _ int64) error { return nil }

func testConfig() Config {
	return Config{
		PublicChatID: -100,
		BatchChatID:  -200,
		BatchThreads: map[string]int64{"2026": 11, "2027": 12},
		OlderThread:  99,
		AdminChatID:  -300,
		BatchCutoff:  "2026",
		Size:         5,
	}
}

func posting(id int64, title string) model.JobPosting {
	return model.JobPosting{
		ID:       id,
		Title:    title,
		Company:  "Acme",
		ApplyURL: "https://jobs.acme.com/x",
	}
}

func TestAddJob_ThresholdTriggersSend(t *testing.T) {
	sender := &fakeSender{}
	b := NewBundler(sender, &recordingJobStore{}, testConfig(), discardLogger())
	ctx := context.Background()

	// Postings without batch years route to public + admin-digest only.
	for i := int64(1); i <= 4; i++ {
		if err := b.AddJob(ctx, posting(i, "Role")); err != nil {
			t.Fatalf("AddJob %d: %v", i, err)
		}
	}
	if len(sender.sent) != 0 {
		t.Fatalf("sent %d messages after 4 adds, want 0", len(sender.sent))
	}
	if got := b.BufferedCount("public"); got != 4 {
		t.Errorf("public buffer = %d, want 4", got)
	}

	if err := b.AddJob(ctx, posting(5, "Role")); err != nil {
		t.Fatalf("AddJob 5: %v", err)
	}
	// Public and admin-digest both hit the threshold of 5.
	if len(sender.sent) != 2 {
		t.Fatalf("sent %d messages after 5th add, want 2", len(sender.sent))
	}
	if got := b.BufferedCount("public"); got != 0 {
		t.Errorf("public buffer = %d after send, want 0", got)
	}
}

func TestAddJob_BatchYearRouting(t *testing.T) {
	sender := &fakeSender{}
	b := NewBundler(sender, &recordingJobStore{}, testConfig(), discardLogger())

	p := posting(1, "Role")
	p.Batch = []string{"2024", "2026"}
	if err := b.AddJob(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	if got := b.BufferedCount("batch-2026"); got != 1 {
		t.Errorf("batch-2026 buffer = %d, want 1", got)
	}
	if got := b.BufferedCount("older"); got != 1 {
		t.Errorf("older buffer = %d, want 1 (2024 is below cutoff)", got)
	}
	if got := b.BufferedCount("batch-2024"); got != 0 {
		t.Errorf("batch-2024 buffer = %d, want 0", got)
	}
}

func TestFlush_SendsPartialBundles(t *testing.T) {
	sender := &fakeSender{}
	b := NewBundler(sender, &recordingJobStore{}, testConfig(), discardLogger())
	ctx := context.Background()

	if err := b.AddJob(ctx, posting(1, "Role A")); err != nil {
		t.Fatal(err)
	}
	if err := b.AddJob(ctx, posting(2, "Role B")); err != nil {
		t.Fatal(err)
	}

	if err := b.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	// public + admin-digest, two postings each.
	if len(sender.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].text, "Role A") || !strings.Contains(sender.sent[0].text, "Role B") {
		t.Errorf("bundle message missing postings: %q", sender.sent[0].text)
	}
	if got := b.BufferedCount("public"); got != 0 {
		t.Errorf("public buffer = %d after flush, want 0", got)
	}
}

func TestSendFailure_RetainsBundle(t *testing.T) {
	sender := &fakeSender{fail: true}
	b := NewBundler(sender, &recordingJobStore{}, testConfig(), discardLogger())
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		b.AddJob(ctx, posting(i, "Role"))
	}
	if got := b.BufferedCount("public"); got != 5 {
		t.Fatalf("public buffer = %d after failed send, want 5 retained", got)
	}

	// Platform recovers; flush retries the retained bundle.
	sender.fail = false
	if err := b.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := b.BufferedCount("public"); got != 0 {
		t.Errorf("public buffer = %d after retry, want 0", got)
	}
}

func TestRemoveJob_RetractsBufferedPosting(t *testing.T) {
	sender := &fakeSender{}
	b := NewBundler(sender, &recordingJobStore{}, testConfig(), discardLogger())
	ctx := context.Background()

	b.AddJob(ctx, posting(1, "Keep"))
	b.AddJob(ctx, posting(2, "Retract"))
	b.RemoveJob(2)

	if err := b.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	for _, m := range sender.sent {
		if strings.Contains(m.text, "Retract") {
			t.Errorf("retracted posting was sent: %q", m.text)
		}
	}
	if !strings.Contains(sender.sent[0].text, "Keep") {
		t.Errorf("kept posting missing: %q", sender.sent[0].text)
	}
}

func TestSendBundle_RecordsPublicMessageID(t *testing.T) {
	sender := &fakeSender{}
	jobs := &recordingJobStore{}
	b := NewBundler(sender, jobs, testConfig(), discardLogger())
	ctx := context.Background()

	b.AddJob(ctx, posting(7, "Role"))
	if err := b.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	if _, ok := jobs.messageIDs[7]; !ok {
		t.Error("public bundle send did not record the message id")
	}
}

func TestRenderBundle_Headings(t *testing.T) {
	msg := renderBundle("batch-2026", []model.JobPosting{posting(1, "SDE <1>")})
	if !strings.Contains(msg, "2026 batch") {
		t.Errorf("heading missing batch year: %q", msg)
	}
	if !strings.Contains(msg, "SDE &lt;1&gt;") {
		t.Errorf("title not HTML-escaped: %q", msg)
	}
	if !strings.Contains(msg, `<a href="https://jobs.acme.com/x">Apply</a>`) {
		t.Errorf("apply link missing: %q", msg)
	}
}
