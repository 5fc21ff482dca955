package workflows

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/claritymed/regassist/internal/activities"
	"github.com/claritymed/regassist/internal/metrics"
	"github.com/claritymed/regassist/internal/models"
	"github.com/claritymed/regassist/internal/supervisor"
)

func completedCount(workflowType models.WorkflowType, status string) float64 {
	return testutil.ToFloat64(metrics.WorkflowsCompleted.WithLabelValues(string(workflowType), status))
}

// recorder collects what the stub activities saw so tests can assert on
// routing order and emitted events.
type recorder struct {
	mu         sync.Mutex
	executed   []string
	eventTypes []activities.StreamEventType
}

func (r *recorder) recordAgent(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executed = append(r.executed, agentID)
}

func (r *recorder) recordEvent(t activities.StreamEventType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eventTypes = append(r.eventTypes, t)
}

func (r *recorder) agents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.executed...)
}

func (r *recorder) events() []activities.StreamEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]activities.StreamEventType(nil), r.eventTypes...)
}

type decideFunc func(ctx context.Context, in activities.DecideInput) (models.RoutingDecision, error)
type specialistFunc func(ctx context.Context, in activities.SpecialistInput) (activities.SpecialistResult, error)

func newEnv(t *testing.T, rec *recorder, decide decideFunc, specialist specialistFunc) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ComplianceWorkflowWithConfig)
	env.RegisterWorkflow(ComplianceWorkflow)

	env.RegisterActivityWithOptions(decide, activity.RegisterOptions{Name: "SupervisorDecide"})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.SpecialistInput) (activities.SpecialistResult, error) {
			rec.recordAgent(in.AgentID)
			return specialist(ctx, in)
		},
		activity.RegisterOptions{Name: "ExecuteSpecialist"},
	)
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.EmitTaskUpdateInput) error {
			rec.recordEvent(in.EventType)
			return nil
		},
		activity.RegisterOptions{Name: "EmitTaskUpdate"},
	)
	return env
}

func simpleSpecialist(content string, citations ...models.Citation) specialistFunc {
	return func(_ context.Context, in activities.SpecialistInput) (activities.SpecialistResult, error) {
		return activities.SpecialistResult{
			Message:   models.AgentMessage{Content: content, Author: in.AgentID},
			Citations: citations,
		}, nil
	}
}

func getResult(t *testing.T, env *testsuite.TestWorkflowEnvironment) ComplianceResult {
	t.Helper()
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var result ComplianceResult
	require.NoError(t, env.GetWorkflowResult(&result))
	return result
}

func TestQuestionAnsweringSingleSpecialist(t *testing.T) {
	rec := &recorder{}
	decide := func(_ context.Context, in activities.DecideInput) (models.RoutingDecision, error) {
		return models.RoutingDecision{Next: models.AgentRegulatory, Reasoning: "regulatory question"}, nil
	}
	citation := models.Citation{Document: "21 CFR Part 814", Page: "2"}
	env := newEnv(t, rec, decide, simpleSpecialist("PMA submissions require clinical data per 21 CFR Part 814.", citation))

	env.ExecuteWorkflow(ComplianceWorkflowWithConfig, ComplianceInput{
		UserInput:    "What are the 510(k) submission requirements?",
		WorkflowType: models.WorkflowQuestionAnswering,
	}, DefaultComplianceConfig())

	result := getResult(t, env)
	assert.Equal(t, supervisor.ReasonQAComplete, result.TerminationReason)
	assert.Equal(t, []string{models.AgentRegulatory}, rec.agents())
	assert.Contains(t, result.FinalResponse, "**FDA Auditor Assessment:**")
	assert.Contains(t, result.FinalResponse, "21 CFR Part 814")
	assert.Contains(t, result.FinalResponse, "Do you need any additional clarifications?")
	require.Len(t, result.Citations, 1)
	assert.Equal(t, citation, result.Citations[0])

	events := rec.events()
	assert.Equal(t, activities.StreamEventWorkflowStarted, events[0])
	assert.Equal(t, activities.StreamEventWorkflowCompleted, events[len(events)-1])
	assert.Contains(t, events, activities.StreamEventFinalAnswer)
}

func TestGapAnalysisRunsFullTeamInOrder(t *testing.T) {
	rec := &recorder{}
	decide := func(_ context.Context, in activities.DecideInput) (models.RoutingDecision, error) {
		done := make(map[string]bool, len(in.Completed))
		for _, name := range in.Completed {
			done[name] = true
		}
		for _, member := range in.TeamMembers {
			if !done[member] {
				return models.RoutingDecision{Next: member}, nil
			}
		}
		return models.RoutingDecision{Next: models.RouteFinish, FinalResponse: "unused"}, nil
	}
	env := newEnv(t, rec, decide, simpleSpecialist("Findings recorded."))

	env.ExecuteWorkflow(ComplianceWorkflowWithConfig, ComplianceInput{
		UserInput:    "Analyze my submission for compliance gaps",
		WorkflowType: models.WorkflowGapAnalysis,
	}, DefaultComplianceConfig())

	result := getResult(t, env)
	assert.Equal(t, supervisor.ReasonGapComplete, result.TerminationReason)
	assert.Equal(t, models.TeamFor(models.WorkflowGapAnalysis), rec.agents())
	assert.Contains(t, result.FinalResponse, "**Overall Assessment:**")
	// five specialist turns plus the human message
	assert.Len(t, result.Messages, 6)
}

func TestMaxSpecialistMessagesBound(t *testing.T) {
	rec := &recorder{}
	decide := func(_ context.Context, in activities.DecideInput) (models.RoutingDecision, error) {
		done := make(map[string]bool, len(in.Completed))
		for _, name := range in.Completed {
			done[name] = true
		}
		for _, member := range in.TeamMembers {
			if !done[member] {
				return models.RoutingDecision{Next: member}, nil
			}
		}
		return models.RoutingDecision{Next: models.RouteFinish, FinalResponse: "unused"}, nil
	}
	env := newEnv(t, rec, decide, simpleSpecialist("Findings recorded."))

	cfg := DefaultComplianceConfig()
	cfg.MaxSpecialistMessages = 3
	env.ExecuteWorkflow(ComplianceWorkflowWithConfig, ComplianceInput{
		UserInput:    "Analyze my submission",
		WorkflowType: models.WorkflowGapAnalysis,
	}, cfg)

	result := getResult(t, env)
	assert.Equal(t, supervisor.ReasonMaxInteractions, result.TerminationReason)
	assert.Len(t, rec.agents(), 3)
	assert.NotEmpty(t, result.FinalResponse)
}

func TestDuplicateRoutingTerminates(t *testing.T) {
	rec := &recorder{}
	decide := func(_ context.Context, _ activities.DecideInput) (models.RoutingDecision, error) {
		return models.RoutingDecision{Next: models.AgentDocumentProcessor}, nil
	}
	env := newEnv(t, rec, decide, simpleSpecialist("Documents processed."))

	env.ExecuteWorkflow(ComplianceWorkflowWithConfig, ComplianceInput{
		UserInput:    "Analyze my submission",
		WorkflowType: models.WorkflowGapAnalysis,
	}, DefaultComplianceConfig())

	result := getResult(t, env)
	assert.Equal(t, supervisor.ReasonDuplicateRouting, result.TerminationReason)
	assert.Equal(t, []string{models.AgentDocumentProcessor}, rec.agents())
	assert.NotEmpty(t, result.FinalResponse)
	assert.Contains(t, rec.events(), activities.StreamEventErrorRecovery)
}

func TestBlankFinishTerminatesWithFallback(t *testing.T) {
	rec := &recorder{}
	decide := func(_ context.Context, _ activities.DecideInput) (models.RoutingDecision, error) {
		return models.RoutingDecision{Next: models.RouteFinish, FinalResponse: "   \n"}, nil
	}
	env := newEnv(t, rec, decide, simpleSpecialist("unused"))

	env.ExecuteWorkflow(ComplianceWorkflowWithConfig, ComplianceInput{
		UserInput:    "What is a predicate device?",
		WorkflowType: models.WorkflowQuestionAnswering,
	}, DefaultComplianceConfig())

	result := getResult(t, env)
	assert.Equal(t, supervisor.ReasonBlankFinish, result.TerminationReason)
	assert.Empty(t, rec.agents())
	assert.Contains(t, result.FinalResponse, supervisor.ReasonBlankFinish)
}

func TestOracleFailureDegradesDeterministically(t *testing.T) {
	rec := &recorder{}
	decide := func(_ context.Context, _ activities.DecideInput) (models.RoutingDecision, error) {
		return models.RoutingDecision{}, errors.New("oracle unreachable")
	}
	env := newEnv(t, rec, decide, simpleSpecialist("unused"))

	degraded := completedCount(models.WorkflowQuestionAnswering, "degraded")

	env.ExecuteWorkflow(ComplianceWorkflowWithConfig, ComplianceInput{
		UserInput:    "What is a predicate device?",
		WorkflowType: models.WorkflowQuestionAnswering,
	}, DefaultComplianceConfig())

	result := getResult(t, env)
	assert.Equal(t, supervisor.ReasonOracleFailure, result.TerminationReason)
	assert.NotEmpty(t, result.FinalResponse)
	assert.Contains(t, rec.events(), activities.StreamEventErrorRecovery)
	assert.Equal(t, degraded+1, completedCount(models.WorkflowQuestionAnswering, "degraded"))
}

func TestEngineStepCap(t *testing.T) {
	rec := &recorder{}
	decide := func(_ context.Context, _ activities.DecideInput) (models.RoutingDecision, error) {
		return models.RoutingDecision{Next: models.AgentRegulatory}, nil
	}
	env := newEnv(t, rec, decide, simpleSpecialist("Answer text."))

	capped := completedCount(models.WorkflowQuestionAnswering, "capped")
	healthy := completedCount(models.WorkflowQuestionAnswering, "ok")

	cfg := DefaultComplianceConfig()
	cfg.MaxEngineSteps = 1
	env.ExecuteWorkflow(ComplianceWorkflowWithConfig, ComplianceInput{
		UserInput:    "What is a predicate device?",
		WorkflowType: models.WorkflowQuestionAnswering,
	}, cfg)

	result := getResult(t, env)
	assert.Equal(t, supervisor.ReasonEngineCapExceeded, result.TerminationReason)
	assert.Equal(t, 2, result.Steps)

	// a capped run must not report as a healthy completion
	assert.Equal(t, capped+1, completedCount(models.WorkflowQuestionAnswering, "capped"))
	assert.Equal(t, healthy, completedCount(models.WorkflowQuestionAnswering, "ok"))
}

func TestClassifierOverridesOracleOnFirstTurn(t *testing.T) {
	rec := &recorder{}
	decide := func(_ context.Context, _ activities.DecideInput) (models.RoutingDecision, error) {
		return models.RoutingDecision{Next: models.AgentRegulatory, Reasoning: "default pick"}, nil
	}
	env := newEnv(t, rec, decide, simpleSpecialist("Encryption guidance."))

	env.ExecuteWorkflow(ComplianceWorkflowWithConfig, ComplianceInput{
		UserInput:    "What encryption and authentication controls does FDA expect?",
		WorkflowType: models.WorkflowQuestionAnswering,
	}, DefaultComplianceConfig())

	result := getResult(t, env)
	assert.Equal(t, supervisor.ReasonQAComplete, result.TerminationReason)
	assert.Equal(t, []string{models.AgentCybersecurity}, rec.agents())
}

func TestOracleFinishWithResponse(t *testing.T) {
	rec := &recorder{}
	decide := func(_ context.Context, _ activities.DecideInput) (models.RoutingDecision, error) {
		return models.RoutingDecision{
			Next:          models.RouteFinish,
			FinalResponse: "A predicate device is a legally marketed device used for comparison.",
		}, nil
	}
	env := newEnv(t, rec, decide, simpleSpecialist("unused"))

	env.ExecuteWorkflow(ComplianceWorkflowWithConfig, ComplianceInput{
		UserInput:    "What is a predicate device?",
		WorkflowType: models.WorkflowQuestionAnswering,
	}, DefaultComplianceConfig())

	result := getResult(t, env)
	assert.Equal(t, "Final response provided", result.TerminationReason)
	assert.Equal(t, "A predicate device is a legally marketed device used for comparison.", result.FinalResponse)
	assert.Empty(t, rec.agents())
}

func TestSpecialistSlotWritesReachState(t *testing.T) {
	rec := &recorder{}
	decide := func(_ context.Context, in activities.DecideInput) (models.RoutingDecision, error) {
		done := make(map[string]bool, len(in.Completed))
		for _, name := range in.Completed {
			done[name] = true
		}
		for _, member := range in.TeamMembers {
			if !done[member] {
				return models.RoutingDecision{Next: member}, nil
			}
		}
		return models.RoutingDecision{Next: models.RouteFinish, FinalResponse: "unused"}, nil
	}
	specialist := func(_ context.Context, in activities.SpecialistInput) (activities.SpecialistResult, error) {
		result := activities.SpecialistResult{
			Message: models.AgentMessage{Content: "Findings recorded.", Author: in.AgentID},
		}
		if in.AgentID == models.AgentAuditor {
			// the auditor sees the earlier slot writes in its state snapshot
			if in.State.CybersecurityAnalysis == nil {
				return result, errors.New("cybersecurity slot missing")
			}
			result.GapAnalysis = &models.GapAnalysis{TotalGaps: 1, Readiness: models.ReadinessNeedsUpdates}
		}
		if in.AgentID == models.AgentCybersecurity {
			result.CybersecurityAnalysis = &models.DomainAnalysis{RegulationType: "cybersecurity"}
		}
		return result, nil
	}
	env := newEnv(t, rec, decide, specialist)

	env.ExecuteWorkflow(ComplianceWorkflowWithConfig, ComplianceInput{
		UserInput:    "Analyze my submission",
		WorkflowType: models.WorkflowGapAnalysis,
	}, DefaultComplianceConfig())

	result := getResult(t, env)
	require.NotNil(t, result.GapAnalysis)
	assert.Equal(t, 1, result.GapAnalysis.TotalGaps)
}
