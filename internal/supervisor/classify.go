package supervisor

import (
	"strings"

	"github.com/claritymed/regassist/internal/models"
)

// Keyword sets for first-turn question routing. When a question matches both
// sets, cybersecurity wins; when it matches neither, regulatory is the
// default destination.
var cybersecurityKeywords = []string{
	"cybersecurity",
	"cyber security",
	"cyber-security",
	"soup",
	"software of unknown provenance",
	"vulnerability",
	"vulnerabilities",
	"cve",
	"cwe",
	"security",
	"threat",
	"malware",
	"encryption",
	"penetration testing",
	"security testing",
	"authentication",
	"authorization",
}

var regulatoryKeywords = []string{
	"510k",
	"510(k)",
	"predicate device",
	"pma",
	"premarket approval",
	"regulatory",
	"submission",
	"fda approval",
	"compliance",
	"guidance document",
	"regulatory pathway",
	"qsr",
	"quality system regulation",
}

// ClassifyDomain picks the question-answering specialist for a user question
// by keyword match. matched reports whether any keyword hit; when false the
// returned agent is the regulatory default.
func ClassifyDomain(question string) (agent string, matched bool) {
	q := strings.ToLower(question)
	words := tokenize(q)

	cyber := matchesAny(q, words, cybersecurityKeywords)
	regulatory := matchesAny(q, words, regulatoryKeywords)

	switch {
	case cyber:
		return models.AgentCybersecurity, true
	case regulatory:
		return models.AgentRegulatory, true
	default:
		return models.AgentRegulatory, false
	}
}

// matchesAny checks multi-word keywords by substring and single words by
// whole-token match, so short keywords like "pma" do not fire inside
// unrelated words.
func matchesAny(q string, words map[string]struct{}, keywords []string) bool {
	for _, kw := range keywords {
		if strings.ContainsAny(kw, " (") {
			if strings.Contains(q, kw) {
				return true
			}
			continue
		}
		if _, ok := words[kw]; ok {
			return true
		}
	}
	return false
}

func tokenize(q string) map[string]struct{} {
	fields := strings.FieldsFunc(q, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '-' || r == '(' || r == ')')
	})
	words := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		words[f] = struct{}{}
		words[strings.Trim(f, "()")] = struct{}{}
	}
	return words
}
