package gapanalysis

import (
	"fmt"
	"strings"

	"github.com/claritymed/regassist/internal/config"
	"github.com/claritymed/regassist/internal/models"
)

// CriterionResult is the keyword-match outcome for one compliance criterion.
type CriterionResult struct {
	Criterion      string   `json:"criterion"`
	Score          float64  `json:"score"`
	FoundKeywords  []string `json:"found_keywords"`
	NeedsAttention bool     `json:"needs_attention"`
}

// ComplianceAnalysis is one domain's scored criteria set.
type ComplianceAnalysis struct {
	RegulationType string            `json:"regulation_type"`
	OverallScore   float64           `json:"overall_compliance_score"`
	Criteria       []CriterionResult `json:"criteria"`
}

// AnalyzeCompliance checks document content against the criteria for a
// regulation type. A criterion scores by the fraction of its words present
// in the content; anything at or below half flags for attention.
func AnalyzeCompliance(content, regulationType string) ComplianceAnalysis {
	lower := strings.ToLower(content)
	criteria := CriteriaFor(regulationType)

	analysis := ComplianceAnalysis{
		RegulationType: regulationType,
		Criteria:       make([]CriterionResult, 0, len(criteria)),
	}

	var total float64
	for _, criterion := range criteria {
		words := strings.Fields(criterion)
		var found []string
		for _, w := range words {
			if strings.Contains(lower, strings.ToLower(w)) {
				found = append(found, w)
			}
		}
		score := float64(len(found)) / float64(len(words))
		total += score
		analysis.Criteria = append(analysis.Criteria, CriterionResult{
			Criterion:      criterion,
			Score:          score,
			FoundKeywords:  found,
			NeedsAttention: score <= 0.5,
		})
	}
	analysis.OverallScore = total / float64(len(criteria))
	return analysis
}

// ToDomainAnalysis converts a compliance analysis to its state slot form.
func (a ComplianceAnalysis) ToDomainAnalysis() *models.DomainAnalysis {
	scores := make(map[string]float64, len(a.Criteria))
	for _, c := range a.Criteria {
		scores[c.Criterion] = c.Score
	}
	return &models.DomainAnalysis{
		RegulationType:         a.RegulationType,
		OverallComplianceScore: a.OverallScore,
		CriteriaScores:         scores,
	}
}

// FromDomainAnalysis reconstructs a compliance analysis from its state slot
// form so the auditor can re-derive gaps from persisted scores.
func FromDomainAnalysis(d *models.DomainAnalysis) *ComplianceAnalysis {
	if d == nil {
		return nil
	}
	analysis := &ComplianceAnalysis{
		RegulationType: d.RegulationType,
		OverallScore:   d.OverallComplianceScore,
		Criteria:       make([]CriterionResult, 0, len(d.CriteriaScores)),
	}
	for _, criterion := range CriteriaFor(d.RegulationType) {
		score, ok := d.CriteriaScores[criterion]
		if !ok {
			continue
		}
		analysis.Criteria = append(analysis.Criteria, CriterionResult{
			Criterion:      criterion,
			Score:          score,
			NeedsAttention: score <= 0.5,
		})
	}
	return analysis
}

// PerformGapAnalysis merges cybersecurity and regulatory findings into a
// severity-bucketed gap set with a readiness verdict. Cybersecurity gaps use
// a higher major-severity threshold because security omissions weigh more in
// FDA review.
func PerformGapAnalysis(cyber, regulatory *ComplianceAnalysis, thresholds config.GapThresholds) *models.GapAnalysis {
	var gaps []models.Gap

	if cyber != nil {
		for _, c := range cyber.Criteria {
			if !c.NeedsAttention {
				continue
			}
			gaps = append(gaps, models.Gap{
				Category:    "cybersecurity",
				Requirement: c.Criterion,
				Severity:    severityFor(c.Score, thresholds.CybersecurityMajorBelow),
				Score:       c.Score,
				Description: fmt.Sprintf("Missing or insufficient %s", c.Criterion),
			})
		}
	}
	if regulatory != nil {
		for _, c := range regulatory.Criteria {
			if !c.NeedsAttention {
				continue
			}
			gaps = append(gaps, models.Gap{
				Category:    "regulatory",
				Requirement: c.Criterion,
				Severity:    severityFor(c.Score, thresholds.MajorBelow),
				Score:       c.Score,
				Description: fmt.Sprintf("Missing or insufficient %s", c.Criterion),
			})
		}
	}

	result := &models.GapAnalysis{TotalGaps: len(gaps)}
	for _, g := range gaps {
		switch g.Severity {
		case models.SeverityCritical:
			result.CriticalGaps = append(result.CriticalGaps, g)
		case models.SeverityMajor:
			result.MajorGaps = append(result.MajorGaps, g)
		default:
			result.MinorGaps = append(result.MinorGaps, g)
		}
	}

	result.OverallComplianceScore = complianceScore(gaps, cyber, regulatory)

	if len(result.CriticalGaps) > 0 {
		result.Recommendations = append(result.Recommendations,
			"Address critical compliance gaps before submission (immediate, 1-2 weeks)")
	}
	if len(result.MajorGaps) > 0 {
		result.Recommendations = append(result.Recommendations,
			"Resolve major gaps to ensure submission success (high priority, 2-4 weeks)")
	}

	switch {
	case len(result.CriticalGaps) > 0:
		result.Readiness = models.ReadinessNotReady
	case len(result.MajorGaps) > 0 || result.OverallComplianceScore < thresholds.NeedsUpdatesBelow:
		result.Readiness = models.ReadinessNeedsUpdates
	case result.OverallComplianceScore < thresholds.ReadyAt:
		result.Readiness = models.ReadinessNeedsMinorUpdates
	default:
		result.Readiness = models.ReadinessReady
	}
	return result
}

func severityFor(score, majorBelow float64) string {
	switch {
	case score == 0:
		return models.SeverityCritical
	case score < majorBelow:
		return models.SeverityMajor
	default:
		return models.SeverityMinor
	}
}

// complianceScore estimates overall compliance. With gaps present it scales
// against a baseline requirement count; without gaps it averages the domain
// scores.
func complianceScore(gaps []models.Gap, cyber, regulatory *ComplianceAnalysis) float64 {
	const baselineRequirements = 10
	if len(gaps) > 0 {
		score := float64(baselineRequirements-len(gaps)) / float64(baselineRequirements)
		if score < 0 {
			return 0
		}
		return score
	}

	var scores []float64
	if regulatory != nil {
		scores = append(scores, regulatory.OverallScore)
	}
	if cyber != nil {
		scores = append(scores, cyber.OverallScore)
	}
	if len(scores) == 0 {
		return 1.0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
