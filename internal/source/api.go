package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getjobwire/jobwire/internal/model"
)

// apiListing is a single entry in a partner API response.
type apiListing struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	URL         string `json:"url"`
	ApplyURL    string `json:"apply_url"`
	Description string `json:"description"`
	LogoURL     string `json:"logo_url"`
}

// apiResponse is the top-level partner API response.
type apiResponse struct {
	Listings []apiListing `json:"listings"`
}

// APIAdapter polls a partner job API. Responses carry full listing bodies,
// so candidates arrive pre-fetched and the page fetcher is skipped; these
// candidates are the ones routed through the scheduled queue.
type APIAdapter struct {
	name   string
	url    string
	client *http.Client
}

var _ model.SourceAdapter = (*APIAdapter)(nil)

// NewAPIAdapter creates an adapter for one partner API endpoint.
func NewAPIAdapter(name, url string, client *http.Client) *APIAdapter {
	return &APIAdapter{
		name:   name,
		url:    url,
		client: client,
	}
}

func (a *APIAdapter) Name() string { return a.name }

func (a *APIAdapter) ListCandidates(ctx context.Context) ([]model.CandidateListing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return nil, fmt.Errorf("api fetch for %s: %w", a.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api fetch for %s: %w", a.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("api fetch for %s: unexpected status %d", a.name, resp.StatusCode),
		}
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("api fetch for %s: %w", a.name, err)
	}

	candidates := make([]model.CandidateListing, 0, len(apiResp.Listings))
	for _, l := range apiResp.Listings {
		if l.URL == "" {
			continue
		}
		candidates = append(candidates, model.CandidateListing{
			SourceURL:     l.URL,
			RawTitle:      l.Title,
			RawContent:    l.Description,
			ApplyURLGuess: l.ApplyURL,
			LogoGuess:     l.LogoURL,
			Company:       l.Company,
			Origin:        "api:" + a.name,
		})
	}

	return candidates, nil
}

// PreFetched reports whether a candidate already carries enough content to
// skip the page fetcher.
func PreFetched(c model.CandidateListing) bool {
	return c.RawContent != ""
}
