package fetch

import (
	"net/url"
	"strings"

	"github.com/getjobwire/jobwire/internal/model"
)

// fallbackHosts are ATS platforms that routinely block headless fetches
// while still representing real openings. For these, a blocked fetch
// synthesizes a minimal listing from the URL instead of dropping the
// candidate. The company slug is the first path segment
// (jobs.lever.co/<company>/..., boards.greenhouse.io/<company>/...).
var fallbackHosts = []string{"lever.co", "greenhouse.io"}

// atsFallback returns a synthesized listing for known ATS hosts, or
// ok=false when the host is not whitelisted.
func atsFallback(rawURL string) (model.CandidateListing, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return model.CandidateListing{}, false
	}

	host := strings.ToLower(u.Hostname())
	matched := false
	for _, h := range fallbackHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			matched = true
			break
		}
	}
	if !matched {
		return model.CandidateListing{}, false
	}

	company := companySlug(u.Path)
	if company == "" {
		return model.CandidateListing{}, false
	}

	return model.CandidateListing{
		SourceURL:     rawURL,
		RawTitle:      "Opening at " + company,
		RawContent:    company + " is hiring. Details at " + rawURL,
		ApplyURLGuess: rawURL,
		Company:       company,
	}, true
}

// companySlug turns the first path segment into a display name
// ("acme-corp" -> "Acme Corp").
func companySlug(path string) string {
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		words := strings.FieldsFunc(seg, func(r rune) bool {
			return r == '-' || r == '_'
		})
		for i, w := range words {
			if len(w) > 0 {
				words[i] = strings.ToUpper(w[:1]) + w[1:]
			}
		}
		return strings.Join(words, " ")
	}
	return ""
}
