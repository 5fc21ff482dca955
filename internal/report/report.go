// Package report renders gap-analysis findings into the executive summary
// and full report delivered by the report generator.
package report

import (
	"fmt"
	"strings"

	"github.com/claritymed/regassist/internal/models"
)

// Report is the rendered output pair.
type Report struct {
	ExecutiveSummary string `json:"executive_summary"`
	FullReport       string `json:"full_report"`
}

// Generate renders the final report from the analysis slots. Nil slots are
// tolerated; their sections are simply omitted.
func Generate(gap *models.GapAnalysis, cyber, regulatory *models.DomainAnalysis, meta *models.DocumentMetadata) Report {
	if gap == nil {
		gap = &models.GapAnalysis{Readiness: "unknown", OverallComplianceScore: 0}
	}

	summary := fmt.Sprintf(`EXECUTIVE SUMMARY - FDA REGULATORY SUBMISSION GAP ANALYSIS

Overall Compliance Score: %.1f%%
Total Gaps Identified: %d
Critical Issues: %d

Readiness Assessment: %s

Key Findings:
- %d critical gaps requiring immediate attention
- %d major gaps needing resolution
- %d minor gaps for improvement

Recommendation: %s`,
		gap.OverallComplianceScore*100,
		gap.TotalGaps,
		len(gap.CriticalGaps),
		strings.ToUpper(gap.Readiness),
		len(gap.CriticalGaps),
		len(gap.MajorGaps),
		len(gap.MinorGaps),
		recommendation(gap.OverallComplianceScore),
	)

	var sections []string

	if meta != nil {
		sections = append(sections, fmt.Sprintf(`1. DOCUMENT OVERVIEW
   - Total Documents Analyzed: %d
   - Documents: %s
   - Total Chunks: %d`,
			meta.TotalDocuments,
			strings.Join(meta.DocumentNames, ", "),
			meta.TotalChunks,
		))
	}

	if cyber != nil {
		sections = append(sections, fmt.Sprintf(`2. CYBERSECURITY ANALYSIS
   - Compliance Score: %.2f
   - Criteria Evaluated: %d`,
			cyber.OverallComplianceScore,
			len(cyber.CriteriaScores),
		))
	}

	if regulatory != nil {
		sections = append(sections, fmt.Sprintf(`3. REGULATORY ANALYSIS
   - Regulation Type: %s
   - Compliance Score: %.2f
   - Criteria Evaluated: %d`,
			regulatory.RegulationType,
			regulatory.OverallComplianceScore,
			len(regulatory.CriteriaScores),
		))
	}

	sections = append(sections, gapSection(gap))

	if len(gap.Recommendations) > 0 {
		var sb strings.Builder
		sb.WriteString("5. RECOMMENDATIONS\n")
		for i, rec := range gap.Recommendations {
			fmt.Fprintf(&sb, "   %d. %s\n", i+1, rec)
		}
		sections = append(sections, strings.TrimRight(sb.String(), "\n"))
	}

	return Report{
		ExecutiveSummary: summary,
		FullReport:       strings.Join(sections, "\n\n"),
	}
}

func gapSection(gap *models.GapAnalysis) string {
	var sb strings.Builder
	sb.WriteString("4. GAP ANALYSIS DETAILS\n\n")

	fmt.Fprintf(&sb, "Critical Gaps (%d):\n", len(gap.CriticalGaps))
	writeGaps(&sb, gap.CriticalGaps)
	fmt.Fprintf(&sb, "\nMajor Gaps (%d):\n", len(gap.MajorGaps))
	writeGaps(&sb, gap.MajorGaps)
	fmt.Fprintf(&sb, "\nMinor Gaps (%d):\n", len(gap.MinorGaps))
	writeGaps(&sb, gap.MinorGaps)

	return strings.TrimRight(sb.String(), "\n")
}

// writeGaps lists at most five gaps per severity to keep the report readable.
func writeGaps(sb *strings.Builder, gaps []models.Gap) {
	for i, g := range gaps {
		if i == 5 {
			sb.WriteString("   ... (truncated)\n")
			return
		}
		fmt.Fprintf(sb, "   %d. %s\n", i+1, g.Description)
	}
}

func recommendation(score float64) string {
	switch {
	case score > 0.9:
		return "READY FOR SUBMISSION"
	case score < 0.8:
		return "PROCEED WITH CAUTION"
	default:
		return "ADDRESS GAPS BEFORE SUBMISSION"
	}
}
