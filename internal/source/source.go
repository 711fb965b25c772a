// Package source holds the ingest adapters. Each adapter turns one origin
// (a feed, a public channel preview page, a partner API) into a list of
// candidate listings for the shared pipeline.
package source

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/getjobwire/jobwire/internal/config"
	"github.com/getjobwire/jobwire/internal/model"
)

// New builds the adapter for a configured source.
func New(cfg config.SourceConfig, client *http.Client) (model.SourceAdapter, error) {
	switch cfg.Type {
	case "feed":
		return NewFeedAdapter(cfg.Name, cfg.URL, client), nil
	case "channel":
		return NewChannelAdapter(cfg.Name, cfg.URL, client), nil
	case "api":
		return NewAPIAdapter(cfg.Name, cfg.URL, client), nil
	default:
		return nil, fmt.Errorf("source %s: unknown type %q", cfg.Name, cfg.Type)
	}
}

// stripHTML reduces an HTML fragment to its visible text.
func stripHTML(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.TrimSpace(doc.Text())
}
