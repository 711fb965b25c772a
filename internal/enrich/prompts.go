package enrich

import (
	_ "embed"
	"text/template"
)

//go:embed prompts/extract.md
var extractPromptRaw string

//go:embed prompts/refine.md
var refinePromptRaw string

//go:embed prompts/finalize.md
var finalizePromptRaw string

// Prompt templates, parsed once at package init and reused on every call.
var (
	extractTemplate  = template.Must(template.New("extract").Parse(extractPromptRaw))
	refineTemplate   = template.Must(template.New("refine").Parse(refinePromptRaw))
	finalizeTemplate = template.Must(template.New("finalize").Parse(finalizePromptRaw))
)

// draftProperties is the shared field set of the extract and refine stages.
var draftProperties = map[string]any{
	"title":                map[string]any{"type": "string"},
	"company":              map[string]any{"type": "string"},
	"location":             map[string]any{"type": "string"},
	"salary":               map[string]any{"type": "string"},
	"description":          map[string]any{"type": "string"},
	"roles_responsibility": map[string]any{"type": "string"},
	"requirements":         map[string]any{"type": "string"},
	"eligibility":          map[string]any{"type": "string"},
}

var draftRequired = []string{
	"title", "company", "location", "salary", "description",
	"roles_responsibility", "requirements", "eligibility",
}

var extractSchema = Schema{
	Name: "job_extract",
	Spec: map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           draftProperties,
		"required":             draftRequired,
	},
}

var refineSchema = Schema{
	Name: "job_refine",
	Spec: map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           draftProperties,
		"required":             draftRequired,
	},
}

var finalizeSchema = Schema{
	Name: "job_finalize",
	Spec: map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"title":                map[string]any{"type": "string"},
			"company":              map[string]any{"type": "string"},
			"location":             map[string]any{"type": "string"},
			"salary":               map[string]any{"type": "string"},
			"description":          map[string]any{"type": "string"},
			"roles_responsibility": map[string]any{"type": "string"},
			"requirements":         map[string]any{"type": "string"},
			"role_type": map[string]any{
				"type": "string",
				"enum": []string{
					"backend", "frontend", "fullstack", "infra",
					"SRE", "devops", "platform", "AI/ML",
					"data", "security", "mobile", "qa", "other",
				},
			},
		},
		"required": []string{
			"title", "company", "location", "salary", "description",
			"roles_responsibility", "requirements", "role_type",
		},
	},
}
