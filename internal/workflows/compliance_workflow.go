package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/claritymed/regassist/internal/activities"
	"github.com/claritymed/regassist/internal/metrics"
	"github.com/claritymed/regassist/internal/models"
	"github.com/claritymed/regassist/internal/supervisor"
	"github.com/claritymed/regassist/internal/synthesis"
)

// ComplianceWorkflow runs one request through the supervisor loop with the
// default bounds.
func ComplianceWorkflow(ctx workflow.Context, input ComplianceInput) (ComplianceResult, error) {
	return ComplianceWorkflowWithConfig(ctx, input, DefaultComplianceConfig())
}

// ComplianceWorkflowWithConfig is the supervisor loop: deterministic
// termination checks first, then the routing oracle, then post-validation of
// whatever the oracle returned. Every exit path produces a non-empty final
// response; oracle failure degrades to the deterministic compiler instead of
// failing the workflow.
func ComplianceWorkflowWithConfig(ctx workflow.Context, input ComplianceInput, cfg ComplianceConfig) (ComplianceResult, error) {
	logger := workflow.GetLogger(ctx)
	cfg = cfg.withDefaults()

	state := models.NewConversationState(input.UserInput, input.UploadedFiles, input.WorkflowType)
	workflowID := workflow.GetInfo(ctx).WorkflowExecution.ID
	logger.Info("Compliance workflow started",
		"workflow_type", string(input.WorkflowType),
		"uploaded_files", len(input.UploadedFiles),
	)
	if !workflow.IsReplaying(ctx) {
		metrics.WorkflowsStarted.WithLabelValues(string(input.WorkflowType)).Inc()
	}

	_ = workflow.SetQueryHandler(ctx, "getConversationState", func() (models.ConversationState, error) {
		return *state, nil
	})

	emitCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	emit := func(eventType activities.StreamEventType, agentID, message string, citations []models.Citation) {
		err := workflow.ExecuteActivity(emitCtx, "EmitTaskUpdate", activities.EmitTaskUpdateInput{
			WorkflowID: workflowID,
			EventType:  eventType,
			AgentID:    agentID,
			Message:    message,
			Citations:  citations,
			Timestamp:  workflow.Now(ctx),
		}).Get(ctx, nil)
		if err != nil {
			logger.Warn("Failed to emit stream event", "type", string(eventType), "error", err)
		}
	}

	emit(activities.StreamEventWorkflowStarted, models.AgentSupervisor, input.UserInput, nil)
	startedAt := workflow.Now(ctx)

	oracleCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Duration(cfg.OracleTimeoutSeconds) * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	specialistCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	})

	steps := 0
	finish := func(reason, rule string) ComplianceResult {
		compiled := synthesis.Compile(state.Messages, state.WorkflowType, reason)
		state.SetFinalResponse(compiled)
		state.Next = models.RouteFinish

		if !workflow.IsReplaying(ctx) {
			metrics.SupervisorDecisions.WithLabelValues(rule, models.RouteFinish).Inc()
			if isDegradedRule(rule) {
				metrics.DegradedTerminations.WithLabelValues(string(state.WorkflowType)).Inc()
			}
			metrics.WorkflowsCompleted.WithLabelValues(string(state.WorkflowType), completionStatus(rule)).Inc()
			metrics.WorkflowDuration.WithLabelValues(string(state.WorkflowType)).
				Observe(workflow.Now(ctx).Sub(startedAt).Seconds())
		}

		citations := synthesis.DedupeCitations(state.Citations)
		emit(activities.StreamEventFinalAnswer, models.AgentSupervisor, state.FinalResponse, citations)
		if len(citations) > 0 {
			emit(activities.StreamEventCitations, models.AgentSupervisor, synthesis.RenderCitations(citations), citations)
		}
		emit(activities.StreamEventWorkflowCompleted, models.AgentSupervisor, reason, nil)
		logger.Info("Compliance workflow finished", "reason", reason, "rule", rule, "steps", steps)

		return ComplianceResult{
			FinalResponse:     state.FinalResponse,
			TerminationReason: reason,
			Citations:         citations,
			Messages:          state.Messages,
			GapAnalysis:       state.GapAnalysis,
			Steps:             steps,
		}
	}

	for {
		steps++
		if steps > cfg.MaxEngineSteps {
			logger.Warn("Engine step cap exceeded", "steps", steps)
			return finish(supervisor.ReasonEngineCapExceeded, supervisor.RuleEngineCap), nil
		}

		if term, done := supervisor.CheckTermination(state, cfg.MaxSpecialistMessages); done {
			return finish(term.Reason, term.Rule), nil
		}

		var decision models.RoutingDecision
		err := workflow.ExecuteActivity(oracleCtx, "SupervisorDecide", activities.DecideInput{
			Messages:     state.Messages,
			WorkflowType: state.WorkflowType,
			TeamMembers:  state.TeamMembers,
			Completed:    completedList(state),
		}).Get(ctx, &decision)
		if err != nil {
			logger.Warn("Oracle routing failed, terminating deterministically", "error", err)
			emit(activities.StreamEventErrorRecovery, models.AgentSupervisor,
				"Routing oracle unavailable, compiling response from specialist findings", nil)
			return finish(supervisor.ReasonOracleFailure, supervisor.RuleOracleFailure), nil
		}

		// A confident keyword match on the question overrides the oracle's
		// specialist pick for the opening question answering turn.
		if state.WorkflowType == models.WorkflowQuestionAnswering &&
			state.SpecialistMessageCount() == 0 &&
			decision.Next != models.RouteFinish {
			if agent, matched := supervisor.ClassifyDomain(input.UserInput); matched && agent != decision.Next {
				logger.Info("Domain classifier overrides oracle routing",
					"oracle_next", decision.Next, "classified", agent)
				decision.Next = agent
				decision.Reasoning = "domain keyword classification"
			}
		}

		if term := supervisor.ValidateDecision(state, decision); term != nil {
			logger.Warn("Oracle decision rejected", "next", decision.Next, "rule", term.Rule)
			emit(activities.StreamEventErrorRecovery, models.AgentSupervisor, term.Reason, nil)
			return finish(term.Reason, term.Rule), nil
		}

		if decision.Next == models.RouteFinish {
			state.SetFinalResponse(decision.FinalResponse)
			return finish("Final response provided", supervisor.RuleOracle), nil
		}

		if !workflow.IsReplaying(ctx) {
			metrics.SupervisorDecisions.WithLabelValues(supervisor.RuleOracle, decision.Next).Inc()
		}
		emit(activities.StreamEventRouting, models.AgentSupervisor, decision.Reasoning, nil)
		emit(activities.StreamEventAgentStarted, decision.Next, "", nil)

		var result activities.SpecialistResult
		err = workflow.ExecuteActivity(specialistCtx, "ExecuteSpecialist", activities.SpecialistInput{
			AgentID: decision.Next,
			State:   *state,
		}).Get(ctx, &result)
		if err != nil {
			// Specialists degrade internally, so an activity error means the
			// worker itself is failing. Terminate with what we have.
			logger.Error("Specialist activity failed", "agent_id", decision.Next, "error", err)
			emit(activities.StreamEventErrorRecovery, decision.Next, "Specialist unavailable", nil)
			return finish(supervisor.ReasonOracleFailure, supervisor.RuleOracleFailure), nil
		}

		applySpecialistResult(state, decision.Next, result)
		emit(activities.StreamEventAgentCompleted, decision.Next, result.Message.Content, result.Citations)
		state.Next = models.AgentSupervisor
	}
}

// applySpecialistResult folds one specialist turn into the state: transcript
// append, completion marking, and any structured slot writes.
func applySpecialistResult(state *models.ConversationState, agentID string, result activities.SpecialistResult) {
	state.AppendSpecialist(agentID, result.Message.Content, result.Citations)
	if result.CybersecurityAnalysis != nil {
		state.CybersecurityAnalysis = result.CybersecurityAnalysis
	}
	if result.RegulatoryAnalysis != nil {
		state.RegulatoryAnalysis = result.RegulatoryAnalysis
	}
	if result.GapAnalysis != nil {
		state.GapAnalysis = result.GapAnalysis
	}
	if result.DocumentMetadata != nil {
		state.DocumentMetadata = result.DocumentMetadata
	}
}

func completedList(state *models.ConversationState) []string {
	var done []string
	for _, member := range state.TeamMembers {
		if state.Completed[member] {
			done = append(done, member)
		}
	}
	return done
}

func isDegradedRule(rule string) bool {
	switch rule {
	case supervisor.RuleOracleFailure, supervisor.RuleDuplicateRouting,
		supervisor.RuleBlankFinish, supervisor.RuleMaxInteractions, supervisor.RuleEngineCap:
		return true
	}
	return false
}

// completionStatus labels the completion counter so healthy finishes are
// distinguishable from capped and degraded ones.
func completionStatus(rule string) string {
	switch {
	case rule == supervisor.RuleEngineCap:
		return "capped"
	case isDegradedRule(rule):
		return "degraded"
	default:
		return "ok"
	}
}
