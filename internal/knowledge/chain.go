// Package knowledge owns the per-domain retrieval chains that ground
// specialist answers in FDA guidance documents.
package knowledge

import (
	"context"

	"github.com/claritymed/regassist/internal/models"
)

// Domain identifiers for the two guidance corpora.
const (
	DomainCybersecurity = "cybersecurity"
	DomainRegulatory    = "regulatory"
)

// Answer is one retrieval-augmented response with its source citations.
type Answer struct {
	Text    string            `json:"text"`
	Sources []models.Citation `json:"sources"`
}

// Chain answers a question against one domain corpus. Query is idempotent
// and side-effect-free.
type Chain interface {
	Query(ctx context.Context, question string) (Answer, error)
}
