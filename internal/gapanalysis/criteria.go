// Package gapanalysis scores submission documents against FDA compliance
// criteria and derives severity-bucketed gaps with a readiness verdict.
package gapanalysis

// Compliance criteria per regulation type. The keyword check is intentionally
// simple: each criterion's words are matched individually against the
// document and the hit ratio becomes the criterion score.
var complianceCriteria = map[string][]string{
	"510k": {
		"predicate device identification",
		"substantial equivalence comparison",
		"safety and effectiveness data",
		"labeling information",
		"risk analysis",
	},
	"pma": {
		"clinical data",
		"manufacturing information",
		"risk-benefit analysis",
		"labeling",
		"quality system information",
	},
	"de_novo": {
		"classification rationale",
		"risk classification",
		"special controls",
		"clinical data",
		"predicate device analysis",
	},
	"qsr": {
		"design controls",
		"document controls",
		"management responsibility",
		"corrective and preventive actions",
		"production and process controls",
	},
	"cybersecurity": {
		"SOUP documentation",
		"cybersecurity risk assessment",
		"vulnerability management",
		"security controls implementation",
		"threat modeling",
		"security testing documentation",
		"incident response plan",
		"security architecture documentation",
	},
}

// CriteriaFor returns the criteria list for a regulation type, defaulting to
// 510k for unknown types.
func CriteriaFor(regulationType string) []string {
	if criteria, ok := complianceCriteria[regulationType]; ok {
		return criteria
	}
	return complianceCriteria["510k"]
}
