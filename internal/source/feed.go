package source

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mmcdole/gofeed"

	"github.com/getjobwire/jobwire/internal/model"
)

// FeedAdapter polls an RSS, Atom or JSON feed. Entries that carry full
// body text arrive as pre-fetched candidates and skip the page fetcher.
type FeedAdapter struct {
	name   string
	url    string
	parser *gofeed.Parser
}

var _ model.SourceAdapter = (*FeedAdapter)(nil)

// NewFeedAdapter creates an adapter for one feed URL.
func NewFeedAdapter(name, url string, client *http.Client) *FeedAdapter {
	parser := gofeed.NewParser()
	parser.Client = client
	return &FeedAdapter{
		name:   name,
		url:    url,
		parser: parser,
	}
}

func (f *FeedAdapter) Name() string { return f.name }

// ListCandidates parses the feed and returns one candidate per entry that
// has a link. Entry content is stripped to plain text so the enrichment
// chain never sees feed markup.
func (f *FeedAdapter) ListCandidates(ctx context.Context) ([]model.CandidateListing, error) {
	feed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("feed fetch for %s: %w", f.name, err)
	}

	candidates := make([]model.CandidateListing, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}

		body := item.Content
		if body == "" {
			body = item.Description
		}

		candidates = append(candidates, model.CandidateListing{
			SourceURL:  item.Link,
			RawTitle:   item.Title,
			RawContent: stripHTML(body),
			Origin:     "feed:" + f.name,
		})
	}

	return candidates, nil
}
