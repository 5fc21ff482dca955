// Package supervisor implements the deterministic decision procedure that
// governs routing and termination. The routing oracle is only consulted when
// none of the deterministic rules fire, and its output is validated here
// before it is trusted.
package supervisor

import (
	"github.com/claritymed/regassist/internal/models"
)

// Termination reasons, surfaced in compiled responses and metrics labels.
const (
	ReasonMaxInteractions   = "Maximum agent interactions reached"
	ReasonAlreadyFinal      = "Final response already provided"
	ReasonQAComplete        = "Question answering workflow complete"
	ReasonGapComplete       = "Gap analysis workflow complete"
	ReasonDuplicateRouting  = "Attempted duplicate routing prevented"
	ReasonBlankFinish       = "LLM requested finish without response"
	ReasonOracleFailure     = "Error in supervisor routing"
	ReasonEngineCapExceeded = "Workflow step limit reached"
)

// Rule identifiers for the decision metrics.
const (
	RuleMaxInteractions  = "max_interactions"
	RuleAlreadyFinal     = "already_final"
	RuleQAComplete       = "qa_complete"
	RuleGapComplete      = "gap_complete"
	RuleOracle           = "oracle"
	RuleDuplicateRouting = "duplicate_routing"
	RuleBlankFinish      = "blank_finish"
	RuleOracleFailure    = "oracle_failure"
	RuleEngineCap        = "engine_cap"
)

// Termination describes why the workflow must end now.
type Termination struct {
	Reason string
	Rule   string
}

// CheckTermination applies the deterministic pre-oracle rules in priority
// order. It returns the first rule that fires, or ok=false when the oracle
// must be consulted.
func CheckTermination(state *models.ConversationState, maxSpecialistMessages int) (Termination, bool) {
	if state.SpecialistMessageCount() >= maxSpecialistMessages {
		return Termination{Reason: ReasonMaxInteractions, Rule: RuleMaxInteractions}, true
	}
	if state.FinalResponse != "" {
		return Termination{Reason: ReasonAlreadyFinal, Rule: RuleAlreadyFinal}, true
	}
	switch state.WorkflowType {
	case models.WorkflowQuestionAnswering:
		if len(state.Completed) >= 1 {
			return Termination{Reason: ReasonQAComplete, Rule: RuleQAComplete}, true
		}
	case models.WorkflowGapAnalysis:
		if state.AllCompleted(models.TeamFor(models.WorkflowGapAnalysis)) {
			return Termination{Reason: ReasonGapComplete, Rule: RuleGapComplete}, true
		}
	}
	return Termination{}, false
}

// ValidateDecision post-checks a routing decision returned by the oracle.
// It returns a non-nil Termination when the decision must be rejected and
// the workflow terminated through the deterministic compiler instead.
func ValidateDecision(state *models.ConversationState, decision models.RoutingDecision) *Termination {
	if decision.Next != models.RouteFinish && !state.IsMember(decision.Next) {
		return &Termination{Reason: ReasonOracleFailure, Rule: RuleOracleFailure}
	}
	if decision.Next != models.RouteFinish && state.Completed[decision.Next] {
		return &Termination{Reason: ReasonDuplicateRouting, Rule: RuleDuplicateRouting}
	}
	if decision.Next == models.RouteFinish && isBlank(decision.FinalResponse) {
		return &Termination{Reason: ReasonBlankFinish, Rule: RuleBlankFinish}
	}
	return nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
