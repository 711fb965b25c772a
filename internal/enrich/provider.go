package enrich

import (
	"context"
	"errors"
)

// ErrRateLimited reports that the completion service has exhausted its
// quota. It is the one provider error the chain does not fold into a
// generic failure: callers convert it to StatusRateLimited so the run
// controller can abort the whole multi-source run.
var ErrRateLimited = errors.New("completion service rate limit exceeded")

// Schema is a named JSON schema enforced server-side on the response.
type Schema struct {
	Name string
	Spec map[string]any
}

// Completer sends a prompt to an LLM and returns the raw text response.
// Each enrichment stage passes its own response schema.
type Completer interface {
	Complete(ctx context.Context, prompt string, schema Schema) (string, error)
}
