package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/getjobwire/jobwire/internal/model"
)

// ChannelAdapter scrapes the public web preview of a Telegram channel
// (t.me/s/<name>). Each message that links out to a job page becomes a
// candidate; the message text rides along as pre-fetched content.
type ChannelAdapter struct {
	name   string
	url    string
	client *http.Client
}

var _ model.SourceAdapter = (*ChannelAdapter)(nil)

// NewChannelAdapter creates an adapter for one channel preview URL.
func NewChannelAdapter(name, url string, client *http.Client) *ChannelAdapter {
	return &ChannelAdapter{
		name:   name,
		url:    url,
		client: client,
	}
}

func (c *ChannelAdapter) Name() string { return c.name }

func (c *ChannelAdapter) ListCandidates(ctx context.Context) ([]model.CandidateListing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("channel fetch for %s: %w", c.name, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("channel fetch for %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("channel fetch for %s: unexpected status %d", c.name, resp.StatusCode),
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("channel fetch for %s: %w", c.name, err)
	}

	var candidates []model.CandidateListing
	doc.Find(".tgme_widget_message_text").Each(func(_ int, msg *goquery.Selection) {
		link := firstOutboundLink(msg)
		if link == "" {
			return
		}
		candidates = append(candidates, model.CandidateListing{
			SourceURL:  link,
			RawContent: strings.TrimSpace(msg.Text()),
			Origin:     "channel:" + c.name,
		})
	})

	return candidates, nil
}

// firstOutboundLink returns the first link in a message that points
// outside Telegram. Messages that only link to other channels or posts
// carry no job page and are skipped.
func firstOutboundLink(msg *goquery.Selection) string {
	var link string
	msg.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if href == "" || isTelegramLink(href) {
			return true
		}
		link = href
		return false
	})
	return link
}

func isTelegramLink(href string) bool {
	return strings.Contains(href, "//t.me/") ||
		strings.Contains(href, "//telegram.me/") ||
		strings.HasPrefix(href, "tg://")
}
