package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getjobwire/jobwire/internal/config"
)

func TestNew_KnownTypes(t *testing.T) {
	client := &http.Client{}
	for _, typ := range []string{"feed", "channel", "api"} {
		cfg := config.SourceConfig{Name: "x", Type: typ, URL: "https://example.com"}
		adapter, err := New(cfg, client)
		if err != nil {
			t.Errorf("New(%s): %v", typ, err)
		}
		if adapter == nil || adapter.Name() != "x" {
			t.Errorf("New(%s): bad adapter", typ)
		}
	}
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(config.SourceConfig{Name: "x", Type: "carrier-pigeon"}, &http.Client{})
	if err == nil {
		t.Fatal("expected error for unknown source type")
	}
}

func TestFeedAdapter_ListCandidates(t *testing.T) {
	rss := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Dev Jobs</title>
    <item>
      <title>Backend Engineer at Acme</title>
      <link>https://jobs.acme.com/backend</link>
      <description>&lt;p&gt;Build services in &lt;b&gt;Go&lt;/b&gt;.&lt;/p&gt;</description>
    </item>
    <item>
      <title>No link, skipped</title>
    </item>
  </channel>
</rss>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rss))
	}))
	defer srv.Close()

	adapter := NewFeedAdapter("devjobs", srv.URL, srv.Client())
	candidates, err := adapter.ListCandidates(context.Background())
	if err != nil {
		t.Fatalf("ListCandidates: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}
	c := candidates[0]
	if c.SourceURL != "https://jobs.acme.com/backend" {
		t.Errorf("SourceURL = %q", c.SourceURL)
	}
	if c.RawTitle != "Backend Engineer at Acme" {
		t.Errorf("RawTitle = %q", c.RawTitle)
	}
	if c.RawContent != "Build services in Go." {
		t.Errorf("RawContent = %q, want markup stripped", c.RawContent)
	}
	if c.Origin != "feed:devjobs" {
		t.Errorf("Origin = %q", c.Origin)
	}
}

func TestChannelAdapter_ListCandidates(t *testing.T) {
	page := `<html><body>
<div class="tgme_widget_message_wrap">
  <div class="tgme_widget_message_text">
    SDE-1 opening at Acme, 2026 batch.
    <a href="https://t.me/jobwire/42">forwarded</a>
    <a href="https://jobs.acme.com/sde-1">apply here</a>
  </div>
</div>
<div class="tgme_widget_message_wrap">
  <div class="tgme_widget_message_text">
    Join our discussion group! <a href="https://t.me/jobwirechat">chat</a>
  </div>
</div>
</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	adapter := NewChannelAdapter("jobwire", srv.URL, srv.Client())
	candidates, err := adapter.ListCandidates(context.Background())
	if err != nil {
		t.Fatalf("ListCandidates: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1 (telegram-only message skipped)", len(candidates))
	}
	c := candidates[0]
	if c.SourceURL != "https://jobs.acme.com/sde-1" {
		t.Errorf("SourceURL = %q, want the first outbound link", c.SourceURL)
	}
	if c.Origin != "channel:jobwire" {
		t.Errorf("Origin = %q", c.Origin)
	}
}

func TestChannelAdapter_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	adapter := NewChannelAdapter("jobwire", srv.URL, srv.Client())
	if _, err := adapter.ListCandidates(context.Background()); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestAPIAdapter_ListCandidates(t *testing.T) {
	payload := `{
		"listings": [
			{
				"title": "Platform Engineer",
				"company": "Acme",
				"url": "https://partner.example.com/jobs/17",
				"apply_url": "https://jobs.acme.com/platform",
				"description": "Run the build farm.",
				"logo_url": "https://cdn.example.com/acme.png"
			},
			{"title": "no url, skipped"}
		]
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	adapter := NewAPIAdapter("partner", srv.URL, srv.Client())
	candidates, err := adapter.ListCandidates(context.Background())
	if err != nil {
		t.Fatalf("ListCandidates: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}
	c := candidates[0]
	if c.ApplyURLGuess != "https://jobs.acme.com/platform" {
		t.Errorf("ApplyURLGuess = %q", c.ApplyURLGuess)
	}
	if c.Company != "Acme" {
		t.Errorf("Company = %q", c.Company)
	}
	if !PreFetched(c) {
		t.Error("API candidate with a body should be pre-fetched")
	}
}
