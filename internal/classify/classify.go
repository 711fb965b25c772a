// Package classify derives structural attributes (tags, batch years,
// remote flag, job type) from raw listing text. Its output is treated as
// scraped ground truth by the enrichment chain's finalize stage.
package classify

import (
	"regexp"
	"sort"
	"strings"
)

// tagKeywords maps a canonical tag to the substrings that imply it.
// Matching is case-insensitive over title and body together.
var tagKeywords = map[string][]string{
	"backend":    {"backend", "back-end", "golang", " go ", "java", "node", "django", "spring"},
	"frontend":   {"frontend", "front-end", "react", "angular", "vue"},
	"fullstack":  {"fullstack", "full-stack", "full stack", "mern", "mean"},
	"data":       {"data engineer", "data analyst", "data scien", "analytics"},
	"ai-ml":      {"machine learning", "ml engineer", "deep learning", "artificial intelligence", " llm"},
	"devops":     {"devops", "sre", "site reliability", "kubernetes", "terraform"},
	"mobile":     {"android", "ios", "flutter", "react native"},
	"qa":         {"qa engineer", "sdet", "test engineer", "quality assurance"},
	"security":   {"security engineer", "appsec", "infosec", "penetration"},
	"internship": {"intern", "internship"},
}

var batchYearRegex = regexp.MustCompile(`20\d{2}`)

var remoteKeywords = []string{"remote", "work from home", "wfh", "anywhere"}

// Attributes is the classifier's output, merged into the finalized posting.
type Attributes struct {
	Tags     []string
	Batch    []string // graduation years mentioned in the text, ascending
	IsRemote bool
	JobType  string // "internship" or "full-time"
}

// Derive inspects the title and body of a listing and returns the derived
// attributes. Empty input yields zero-value attributes, never an error.
func Derive(title, body string) Attributes {
	text := strings.ToLower(title + "\n" + body)

	var attrs Attributes
	for tag, keywords := range tagKeywords {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				attrs.Tags = append(attrs.Tags, tag)
				break
			}
		}
	}
	sort.Strings(attrs.Tags)

	attrs.Batch = batchYears(text)

	for _, kw := range remoteKeywords {
		if strings.Contains(text, kw) {
			attrs.IsRemote = true
			break
		}
	}

	if strings.Contains(text, "intern") {
		attrs.JobType = "internship"
	} else {
		attrs.JobType = "full-time"
	}

	return attrs
}

// batchYears extracts distinct four-digit years, ascending. Years are only
// meaningful as graduation batches when they appear near batch wording
// ("2025 batch", "batch of 2026", "2024/2025 passouts"), so the whole text
// is required to mention batch/graduat/passout at least once.
func batchYears(text string) []string {
	if !strings.Contains(text, "batch") &&
		!strings.Contains(text, "graduat") &&
		!strings.Contains(text, "passout") &&
		!strings.Contains(text, "pass out") {
		return nil
	}

	seen := make(map[string]bool)
	var years []string
	for _, y := range batchYearRegex.FindAllString(text, -1) {
		if y < "2020" || y > "2035" {
			continue // copyright years, phone fragments
		}
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Strings(years)
	return years
}
