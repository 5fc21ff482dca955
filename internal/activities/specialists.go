package activities

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/claritymed/regassist/internal/embeddings"
	"github.com/claritymed/regassist/internal/gapanalysis"
	"github.com/claritymed/regassist/internal/knowledge"
	"github.com/claritymed/regassist/internal/metrics"
	"github.com/claritymed/regassist/internal/models"
	"github.com/claritymed/regassist/internal/report"
)

// SpecialistInput carries the state snapshot a specialist acts on.
type SpecialistInput struct {
	AgentID string                   `json:"agent_id"`
	State   models.ConversationState `json:"state"`
}

// SpecialistResult is one specialist turn: always a message, plus any
// structured slot writes. A specialist degrades to an explanatory message
// rather than failing the activity.
type SpecialistResult struct {
	Message               models.AgentMessage     `json:"message"`
	Citations             []models.Citation       `json:"citations,omitempty"`
	CybersecurityAnalysis *models.DomainAnalysis  `json:"cybersecurity_analysis,omitempty"`
	RegulatoryAnalysis    *models.DomainAnalysis  `json:"regulatory_analysis,omitempty"`
	GapAnalysis           *models.GapAnalysis     `json:"gap_analysis,omitempty"`
	DocumentMetadata      *models.DocumentMetadata `json:"document_metadata,omitempty"`
}

// ExecuteSpecialist runs one specialist turn. The returned error is always
// nil; failures inside a specialist become degraded message content so the
// supervisor loop keeps its termination guarantees.
func (a *Activities) ExecuteSpecialist(ctx context.Context, in SpecialistInput) (SpecialistResult, error) {
	logger := activity.GetLogger(ctx)
	start := time.Now()

	var result SpecialistResult
	switch in.AgentID {
	case models.AgentDocumentProcessor:
		result = a.processDocuments(in.State)
	case models.AgentCybersecurity:
		result = a.runDomainSpecialist(ctx, knowledge.DomainCybersecurity, models.AgentCybersecurity, in.State)
	case models.AgentRegulatory:
		result = a.runDomainSpecialist(ctx, knowledge.DomainRegulatory, models.AgentRegulatory, in.State)
	case models.AgentAuditor:
		result = a.auditCompliance(in.State)
	case models.AgentReportGenerator:
		result = a.generateReport(in.State)
	default:
		result = SpecialistResult{Message: models.AgentMessage{
			Content: fmt.Sprintf("No specialist registered for %q.", in.AgentID),
			Author:  in.AgentID,
		}}
	}

	metrics.SpecialistExecutions.WithLabelValues(in.AgentID, "ok").Inc()
	metrics.SpecialistDuration.WithLabelValues(in.AgentID).Observe(float64(time.Since(start).Milliseconds()))
	if n := len(result.Citations); n > 0 {
		metrics.CitationsExtracted.Add(float64(n))
	}
	logger.Info("Specialist turn complete", "agent_id", in.AgentID, "citations", len(result.Citations))
	return result, nil
}

// processDocuments converts the uploaded files into chunk-counted metadata
// and a status message. Error pseudo-entries are reported, not dropped.
func (a *Activities) processDocuments(state models.ConversationState) SpecialistResult {
	var valid []models.UploadedFile
	var failed []string
	for _, f := range state.UploadedFiles {
		if f.Type == models.FileTypeError {
			failed = append(failed, f.Name)
			continue
		}
		valid = append(valid, f)
	}

	if len(valid) == 0 {
		content := "No valid documents found to process."
		if len(failed) > 0 {
			content = fmt.Sprintf("No valid documents found to process. %d files failed extraction: %s.",
				len(failed), strings.Join(failed, ", "))
		}
		return SpecialistResult{Message: models.AgentMessage{Content: content, Author: models.AgentDocumentProcessor}}
	}

	chunker := embeddings.NewChunker(embeddings.DefaultChunkingConfig())
	totalChunks := 0
	names := make([]string, 0, len(valid))
	for _, f := range valid {
		names = append(names, f.Name)
		if chunks := chunker.ChunkText(f.Content); chunks != nil {
			totalChunks += len(chunks)
		} else {
			totalChunks++
		}
	}

	meta := &models.DocumentMetadata{
		TotalDocuments: len(state.UploadedFiles),
		DocumentNames:  names,
		TotalChunks:    totalChunks,
		FailedFiles:    failed,
	}

	var sb strings.Builder
	sb.WriteString("Document processing complete.\n\n")
	fmt.Fprintf(&sb, "Processed %d uploaded files into %d chunks.\n\nFiles processed:\n", len(valid), totalChunks)
	for _, name := range names {
		fmt.Fprintf(&sb, "- %s\n", name)
	}
	if len(failed) > 0 {
		fmt.Fprintf(&sb, "\nFiles that failed extraction:\n")
		for _, name := range failed {
			fmt.Fprintf(&sb, "- %s\n", name)
		}
	}
	sb.WriteString("\nDocuments are ready for cybersecurity and regulatory analysis.")

	return SpecialistResult{
		Message:          models.AgentMessage{Content: sb.String(), Author: models.AgentDocumentProcessor},
		DocumentMetadata: meta,
	}
}

// runDomainSpecialist answers a question through the domain knowledge chain
// (question answering) or scores the uploaded documents (gap analysis).
func (a *Activities) runDomainSpecialist(ctx context.Context, domain, agentID string, state models.ConversationState) SpecialistResult {
	if state.WorkflowType == models.WorkflowGapAnalysis {
		return a.scoreDocuments(domain, agentID, state)
	}

	question := ""
	if len(state.Messages) > 0 {
		question = state.Messages[0].Content
	}

	chain, err := a.knowledge.Chain(ctx, domain)
	if err != nil {
		return degradedAnswer(domain, agentID, err)
	}
	answer, err := chain.Query(ctx, question)
	if err != nil {
		return degradedAnswer(domain, agentID, err)
	}

	return SpecialistResult{
		Message:   models.AgentMessage{Content: answer.Text, Author: agentID},
		Citations: answer.Sources,
	}
}

func degradedAnswer(domain, agentID string, err error) SpecialistResult {
	content := fmt.Sprintf(
		"I was unable to consult the %s guidance knowledge base (%v). Based on general FDA expectations, please review the current %s guidance documents directly and consider re-asking once the knowledge base is available.",
		domain, err, domain,
	)
	return SpecialistResult{Message: models.AgentMessage{Content: content, Author: agentID}}
}

// scoreDocuments runs the keyword compliance analysis over the combined
// document text and writes the domain slot.
func (a *Activities) scoreDocuments(domain, agentID string, state models.ConversationState) SpecialistResult {
	var sb strings.Builder
	for _, f := range state.UploadedFiles {
		if f.Type == models.FileTypeError {
			continue
		}
		sb.WriteString(f.Content)
		sb.WriteString("\n")
	}

	regulationType := "510k"
	if domain == knowledge.DomainCybersecurity {
		regulationType = "cybersecurity"
	}
	analysis := gapanalysis.AnalyzeCompliance(sb.String(), regulationType)

	var attention []string
	for _, c := range analysis.Criteria {
		if c.NeedsAttention {
			attention = append(attention, c.Criterion)
		}
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "%s compliance analysis complete. Overall score: %.1f%%.\n", capitalize(domain), analysis.OverallScore*100)
	if len(attention) > 0 {
		fmt.Fprintf(&msg, "\nAreas needing attention:\n")
		for _, criterion := range attention {
			fmt.Fprintf(&msg, "- %s\n", criterion)
		}
	} else {
		msg.WriteString("\nAll evaluated criteria are adequately addressed.")
	}

	result := SpecialistResult{Message: models.AgentMessage{Content: msg.String(), Author: agentID}}
	slot := analysis.ToDomainAnalysis()
	if domain == knowledge.DomainCybersecurity {
		result.CybersecurityAnalysis = slot
	} else {
		result.RegulatoryAnalysis = slot
	}
	return result
}

// auditCompliance merges both domain analyses into the severity-bucketed
// gap set.
func (a *Activities) auditCompliance(state models.ConversationState) SpecialistResult {
	gap := gapanalysis.PerformGapAnalysis(
		gapanalysis.FromDomainAnalysis(state.CybersecurityAnalysis),
		gapanalysis.FromDomainAnalysis(state.RegulatoryAnalysis),
		a.thresholds,
	)

	content := fmt.Sprintf(`**AUDITOR ASSESSMENT**

Compliance Analysis Complete:
- Overall Compliance Score: %.1f%%
- Total Gaps Identified: %d
- Readiness Assessment: %s

Critical Issues: %d
Major Issues: %d
Minor Issues: %d

The comprehensive gap analysis has been completed and is ready for report generation.`,
		gap.OverallComplianceScore*100,
		gap.TotalGaps,
		strings.ToUpper(gap.Readiness),
		len(gap.CriticalGaps),
		len(gap.MajorGaps),
		len(gap.MinorGaps),
	)

	return SpecialistResult{
		Message:     models.AgentMessage{Content: content, Author: models.AgentAuditor},
		GapAnalysis: gap,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// generateReport renders the final gap analysis report from the state slots.
func (a *Activities) generateReport(state models.ConversationState) SpecialistResult {
	r := report.Generate(state.GapAnalysis, state.CybersecurityAnalysis, state.RegulatoryAnalysis, state.DocumentMetadata)

	content := fmt.Sprintf("**COMPLIANCE GAP ANALYSIS REPORT**\n\n%s\n\n---\n\n%s", r.ExecutiveSummary, r.FullReport)
	return SpecialistResult{Message: models.AgentMessage{Content: content, Author: models.AgentReportGenerator}}
}
