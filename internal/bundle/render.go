package bundle

import (
	"fmt"
	"html"
	"strings"

	"github.com/getjobwire/jobwire/internal/model"
)

// channelHeadings maps bundle keys to message headings. Batch keys are
// derived, everything else falls back to the public heading.
var channelHeadings = map[string]string{
	"public":       "🚀 New openings",
	"older":        "🚀 New openings — earlier batches",
	"admin-digest": "🛠 Review digest",
}

func headingFor(key string) string {
	if h, ok := channelHeadings[key]; ok {
		return h
	}
	if year, ok := strings.CutPrefix(key, "batch-"); ok {
		return "🚀 New openings — " + year + " batch"
	}
	return channelHeadings["public"]
}

// renderBundle formats one combined HTML message enumerating every
// buffered posting with its apply link.
func renderBundle(key string, postings []model.JobPosting) string {
	var b strings.Builder
	b.WriteString("<b>" + headingFor(key) + "</b>\n")

	for i, p := range postings {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%d. <b>%s</b> — %s\n", i+1,
			html.EscapeString(p.Title), html.EscapeString(p.Company))

		var meta []string
		if p.Location != "" {
			meta = append(meta, html.EscapeString(p.Location))
		}
		if p.IsRemote && !strings.EqualFold(p.Location, "remote") {
			meta = append(meta, "Remote")
		}
		if p.Salary != "" {
			meta = append(meta, html.EscapeString(p.Salary))
		}
		if len(p.Batch) > 0 {
			meta = append(meta, "Batch "+strings.Join(p.Batch, "/"))
		}
		if len(meta) > 0 {
			b.WriteString("   " + strings.Join(meta, " · ") + "\n")
		}

		fmt.Fprintf(&b, "   <a href=\"%s\">Apply</a>\n", html.EscapeString(p.ApplyURL))
	}
	return b.String()
}
