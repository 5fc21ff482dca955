package workflows

import (
	"github.com/claritymed/regassist/internal/models"
)

// TaskQueue is the Temporal task queue shared by the worker and the API.
const TaskQueue = "compliance-tasks"

// ComplianceInput starts one compliance request. The uploaded files must
// already be extracted to text (or error pseudo-entries) before the workflow
// starts; extraction is not deterministic and cannot run inside the workflow.
type ComplianceInput struct {
	UserInput     string                `json:"user_input"`
	WorkflowType  models.WorkflowType   `json:"workflow_type"`
	UploadedFiles []models.UploadedFile `json:"uploaded_files,omitempty"`
}

// ComplianceResult is the terminal output of one request.
type ComplianceResult struct {
	FinalResponse     string                `json:"final_response"`
	TerminationReason string                `json:"termination_reason"`
	Citations         []models.Citation     `json:"citations,omitempty"`
	Messages          []models.AgentMessage `json:"messages"`
	GapAnalysis       *models.GapAnalysis   `json:"gap_analysis,omitempty"`
	Steps             int                   `json:"steps"`
}

// ComplianceConfig carries the loop bounds into the workflow as part of its
// deterministic input.
type ComplianceConfig struct {
	MaxSpecialistMessages int `json:"max_specialist_messages"`
	MaxEngineSteps        int `json:"max_engine_steps"`
	OracleTimeoutSeconds  int `json:"oracle_timeout_seconds"`
}

// DefaultComplianceConfig returns the routing contract's default bounds.
func DefaultComplianceConfig() ComplianceConfig {
	return ComplianceConfig{
		MaxSpecialistMessages: 6,
		MaxEngineSteps:        15,
		OracleTimeoutSeconds:  30,
	}
}

func (c ComplianceConfig) withDefaults() ComplianceConfig {
	d := DefaultComplianceConfig()
	if c.MaxSpecialistMessages <= 0 {
		c.MaxSpecialistMessages = d.MaxSpecialistMessages
	}
	if c.MaxEngineSteps <= 0 {
		c.MaxEngineSteps = d.MaxEngineSteps
	}
	if c.OracleTimeoutSeconds <= 0 {
		c.OracleTimeoutSeconds = d.OracleTimeoutSeconds
	}
	return c
}
