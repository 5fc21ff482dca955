package synthesis

import (
	"fmt"
	"strings"

	"github.com/claritymed/regassist/internal/models"
)

// DedupeCitations removes duplicate citations keyed by (document, page),
// preserving first-seen order.
func DedupeCitations(citations []models.Citation) []models.Citation {
	if len(citations) == 0 {
		return nil
	}
	seen := make(map[models.Citation]struct{}, len(citations))
	out := make([]models.Citation, 0, len(citations))
	for _, c := range citations {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// RenderCitations formats a deduplicated citation list as a numbered block
// for display beneath the final answer. Empty input renders nothing.
func RenderCitations(citations []models.Citation) string {
	deduped := DedupeCitations(citations)
	if len(deduped) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Sources:\n")
	for i, c := range deduped {
		if c.Page != "" {
			fmt.Fprintf(&sb, "%d. %s, page %s\n", i+1, c.Document, c.Page)
		} else {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, c.Document)
		}
	}
	return sb.String()
}
