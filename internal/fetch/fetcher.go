// Package fetch retrieves and extracts raw listing content for one URL.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/getjobwire/jobwire/internal/model"
)

// Fetcher downloads a listing page and extracts a best-effort
// title/body/apply-link/logo. Fetch failures are terminal for the candidate
// except on whitelisted ATS hosts, where a minimal listing is synthesized
// instead (those platforms block headless fetches but the opening is real).
type Fetcher struct {
	client  *http.Client
	limiter *HostLimiter
	logger  *slog.Logger
}

func NewFetcher(client *http.Client, limiter *HostLimiter, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		limiter: limiter,
		logger:  logger,
	}
}

// Fetch retrieves the page at rawURL and extracts listing fields. On
// failure it either synthesizes an ATS fallback listing or returns an
// error, in which case the caller drops the candidate (no retry; the
// source re-offers it on a future run if still listed).
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (model.CandidateListing, error) {
	if err := f.limiter.WaitURL(ctx, rawURL); err != nil {
		return model.CandidateListing{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	doc, err := f.document(ctx, rawURL)
	if err != nil {
		if listing, ok := atsFallback(rawURL); ok {
			f.logger.Warn("fetch failed, using ATS fallback",
				"url", rawURL,
				"company", listing.Company,
				"error", err,
			)
			return listing, nil
		}
		return model.CandidateListing{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	listing := model.CandidateListing{
		SourceURL:     rawURL,
		RawTitle:      extractTitle(doc),
		RawContent:    extractBody(doc),
		ApplyURLGuess: extractApplyURL(doc, rawURL),
		LogoGuess:     extractLogo(doc, rawURL),
	}
	if listing.ApplyURLGuess == "" {
		listing.ApplyURLGuess = rawURL
	}
	return listing, nil
}

func (f *Fetcher) document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &model.HTTPError{StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

func extractTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && og != "" {
		return cleanText(og)
	}
	if title := doc.Find("title").First().Text(); title != "" {
		return cleanText(title)
	}
	return cleanText(doc.Find("h1").First().Text())
}

func extractBody(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer").Remove()

	for _, sel := range []string{"main", "article", `[class*="job-desc"]`, `[class*="description"]`} {
		if text := cleanText(doc.Find(sel).First().Text()); len(text) > 200 {
			return text
		}
	}
	return cleanText(doc.Find("body").Text())
}

func extractApplyURL(doc *goquery.Document, base string) string {
	var apply string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		text := strings.ToLower(s.Text())
		if strings.Contains(text, "apply") || strings.Contains(strings.ToLower(href), "apply") {
			apply = absoluteURL(base, href)
			return false
		}
		return true
	})
	return apply
}

func extractLogo(doc *goquery.Document, base string) string {
	if og, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok && og != "" {
		return absoluteURL(base, og)
	}
	if icon, ok := doc.Find(`link[rel="apple-touch-icon"], link[rel="icon"]`).First().Attr("href"); ok && icon != "" {
		return absoluteURL(base, icon)
	}
	return ""
}
