package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/claritymed/regassist/internal/models"
)

func sampleGapAnalysis() *models.GapAnalysis {
	return &models.GapAnalysis{
		OverallComplianceScore: 0.7,
		TotalGaps:              3,
		CriticalGaps: []models.Gap{
			{Category: "cybersecurity", Requirement: "threat modeling", Severity: models.SeverityCritical, Description: "Missing or insufficient threat modeling"},
		},
		MajorGaps: []models.Gap{
			{Category: "cybersecurity", Requirement: "vulnerability management", Severity: models.SeverityMajor, Description: "Missing or insufficient vulnerability management"},
		},
		MinorGaps: []models.Gap{
			{Category: "regulatory", Requirement: "risk analysis", Severity: models.SeverityMinor, Description: "Missing or insufficient risk analysis"},
		},
		Recommendations: []string{"Address critical compliance gaps before submission (immediate, 1-2 weeks)"},
		Readiness:       models.ReadinessNotReady,
	}
}

func TestGenerateExecutiveSummary(t *testing.T) {
	r := Generate(sampleGapAnalysis(), nil, nil, nil)

	assert.Contains(t, r.ExecutiveSummary, "Overall Compliance Score: 70.0%")
	assert.Contains(t, r.ExecutiveSummary, "Total Gaps Identified: 3")
	assert.Contains(t, r.ExecutiveSummary, "Readiness Assessment: NOT_READY")
	assert.Contains(t, r.ExecutiveSummary, "1 critical gaps requiring immediate attention")
	assert.Contains(t, r.ExecutiveSummary, "PROCEED WITH CAUTION")
}

func TestGenerateFullReportSections(t *testing.T) {
	cyber := &models.DomainAnalysis{
		RegulationType:         "cybersecurity",
		OverallComplianceScore: 0.6,
		CriteriaScores:         map[string]float64{"threat modeling": 0},
	}
	regulatory := &models.DomainAnalysis{
		RegulationType:         "510k",
		OverallComplianceScore: 0.8,
		CriteriaScores:         map[string]float64{"risk analysis": 0.5},
	}
	meta := &models.DocumentMetadata{
		TotalDocuments: 2,
		DocumentNames:  []string{"device_description.txt", "threat_model.pdf"},
		TotalChunks:    14,
	}

	r := Generate(sampleGapAnalysis(), cyber, regulatory, meta)

	assert.Contains(t, r.FullReport, "1. DOCUMENT OVERVIEW")
	assert.Contains(t, r.FullReport, "device_description.txt, threat_model.pdf")
	assert.Contains(t, r.FullReport, "2. CYBERSECURITY ANALYSIS")
	assert.Contains(t, r.FullReport, "3. REGULATORY ANALYSIS")
	assert.Contains(t, r.FullReport, "Regulation Type: 510k")
	assert.Contains(t, r.FullReport, "4. GAP ANALYSIS DETAILS")
	assert.Contains(t, r.FullReport, "Missing or insufficient threat modeling")
	assert.Contains(t, r.FullReport, "5. RECOMMENDATIONS")
}

func TestGenerateOmitsMissingSections(t *testing.T) {
	r := Generate(sampleGapAnalysis(), nil, nil, nil)
	assert.NotContains(t, r.FullReport, "DOCUMENT OVERVIEW")
	assert.NotContains(t, r.FullReport, "CYBERSECURITY ANALYSIS")
	assert.Contains(t, r.FullReport, "GAP ANALYSIS DETAILS")
}

func TestGenerateNilGapAnalysis(t *testing.T) {
	r := Generate(nil, nil, nil, nil)
	assert.Contains(t, r.ExecutiveSummary, "Readiness Assessment: UNKNOWN")
	assert.NotEmpty(t, r.FullReport)
}

func TestGenerateTruncatesLongGapLists(t *testing.T) {
	gap := &models.GapAnalysis{Readiness: models.ReadinessNotReady}
	for i := 0; i < 8; i++ {
		gap.CriticalGaps = append(gap.CriticalGaps, models.Gap{Description: "gap"})
	}
	gap.TotalGaps = len(gap.CriticalGaps)

	r := Generate(gap, nil, nil, nil)
	assert.Contains(t, r.FullReport, "... (truncated)")
	assert.Equal(t, 5, strings.Count(r.FullReport, ". gap"))
}
