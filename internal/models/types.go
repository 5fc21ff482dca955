package models

// WorkflowType selects the team and termination rules for a single request.
type WorkflowType string

const (
	WorkflowQuestionAnswering WorkflowType = "question_answering"
	WorkflowGapAnalysis       WorkflowType = "gap_analysis"
)

// Specialist identities. The supervisor routes by these names and FINISH.
const (
	AgentSupervisor        = "supervisor"
	AgentDocumentProcessor = "document_processor"
	AgentCybersecurity     = "cybersecurity_agent"
	AgentRegulatory        = "regulatory_agent"
	AgentAuditor           = "auditor_agent"
	AgentReportGenerator   = "report_generator"

	RouteFinish = "FINISH"
)

// TeamFor returns the fixed specialist set for a workflow type.
func TeamFor(wt WorkflowType) []string {
	if wt == WorkflowGapAnalysis {
		return []string{
			AgentDocumentProcessor,
			AgentCybersecurity,
			AgentRegulatory,
			AgentAuditor,
			AgentReportGenerator,
		}
	}
	return []string{AgentCybersecurity, AgentRegulatory}
}

// AgentMessage is one entry in the conversation transcript.
// An empty Author marks a human message; AgentSupervisor marks supervisor
// commentary. Everything else counts as one completed specialist turn.
type AgentMessage struct {
	Content string `json:"content"`
	Author  string `json:"author,omitempty"`
}

// IsSpecialist reports whether the message counts toward specialist
// completion accounting.
func (m AgentMessage) IsSpecialist() bool {
	return m.Author != "" && m.Author != AgentSupervisor
}

// Citation identifies a source passage by document and page.
type Citation struct {
	Document string `json:"document"`
	Page     string `json:"page"`
}

// UploadedFile is one input artifact, immutable after request creation.
// Type "error" marks a pseudo-entry produced when extraction failed; the
// error text travels in Content so downstream stages can report it as data.
type UploadedFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Type    string `json:"type"`
	Size    int64  `json:"size"`
}

const FileTypeError = "error"

// RoutingDecision is the supervisor's per-turn output: either the next
// specialist to run or FINISH with a compiled response.
type RoutingDecision struct {
	Next          string `json:"next"`
	FinalResponse string `json:"final_response,omitempty"`
	Reasoning     string `json:"reasoning,omitempty"`
}

// GapAnalysis is the auditor's structured finding set.
type GapAnalysis struct {
	OverallComplianceScore float64  `json:"overall_compliance_score"`
	TotalGaps              int      `json:"total_gaps"`
	CriticalGaps           []Gap    `json:"critical_gaps"`
	MajorGaps              []Gap    `json:"major_gaps"`
	MinorGaps              []Gap    `json:"minor_gaps"`
	Recommendations        []string `json:"recommendations"`
	Readiness              string   `json:"readiness_assessment"`
}

// Gap is a single identified compliance gap.
type Gap struct {
	Category    string  `json:"category"`
	Requirement string  `json:"requirement"`
	Severity    string  `json:"severity"`
	Score       float64 `json:"score"`
	Description string  `json:"description,omitempty"`
}

// Severity buckets and readiness levels.
const (
	SeverityCritical = "critical"
	SeverityMajor    = "major"
	SeverityMinor    = "minor"

	ReadinessReady             = "ready"
	ReadinessNeedsMinorUpdates = "needs_minor_updates"
	ReadinessNeedsUpdates      = "needs_updates"
	ReadinessNotReady          = "not_ready"
)

// DomainAnalysis captures one specialist's structured compliance findings
// (cybersecurity or regulatory), written to its state slot at most once.
type DomainAnalysis struct {
	RegulationType         string             `json:"regulation_type"`
	OverallComplianceScore float64            `json:"overall_compliance_score"`
	CriteriaScores         map[string]float64 `json:"criteria_scores,omitempty"`
	Summary                string             `json:"summary,omitempty"`
}

// DocumentMetadata summarizes what the document processor ingested.
type DocumentMetadata struct {
	TotalDocuments int      `json:"total_documents"`
	DocumentNames  []string `json:"document_names"`
	TotalChunks    int      `json:"total_chunks"`
	FailedFiles    []string `json:"failed_files,omitempty"`
}
