// Package media re-hosts scraped images so postings never reference
// ephemeral CDN URLs.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/getjobwire/jobwire/internal/model"
	"github.com/getjobwire/jobwire/internal/retry"
)

// HTTPUploader posts a source image URL to a one-route hosting API and
// returns the stable hosted URL. Transient failures are retried with
// backoff; a posting can survive without a hosted logo, so callers treat
// errors as soft.
type HTTPUploader struct {
	uploadURL  string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPUploader(uploadURL, apiKey string, httpClient *http.Client) *HTTPUploader {
	return &HTTPUploader{
		uploadURL:  uploadURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// uploadResponse mirrors the hosting API response body.
type uploadResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Upload re-hosts the image at sourceImageURL. labelHint names the upload
// for later housekeeping (usually the company name).
func (u *HTTPUploader) Upload(ctx context.Context, sourceImageURL, labelHint string) (string, error) {
	var hosted string
	err := retry.Do(ctx, 2, 2*time.Second, func() error {
		var err error
		hosted, err = u.uploadOnce(ctx, sourceImageURL, labelHint)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", sourceImageURL, err)
	}
	return hosted, nil
}

func (u *HTTPUploader) uploadOnce(ctx context.Context, sourceImageURL, labelHint string) (string, error) {
	form := url.Values{}
	form.Set("key", u.apiKey)
	form.Set("image", sourceImageURL)
	if labelHint != "" {
		form.Set("name", sanitizeLabel(labelHint))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.uploadURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post upload: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &model.HTTPError{StatusCode: resp.StatusCode}
	}

	var ur uploadResponse
	if err := json.Unmarshal(body, &ur); err != nil {
		return "", fmt.Errorf("parse upload response: %w", err)
	}
	if !ur.Success || ur.Data.URL == "" {
		// A 200 body rejection is a verdict on the image, not a transient fault.
		return "", retry.Permanent(fmt.Errorf("upload rejected: %s", ur.Error))
	}
	return ur.Data.URL, nil
}

// sanitizeLabel turns a company name into a safe upload label.
func sanitizeLabel(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
