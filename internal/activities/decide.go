package activities

import (
	"context"

	"go.temporal.io/sdk/activity"

	"github.com/claritymed/regassist/internal/metrics"
	"github.com/claritymed/regassist/internal/models"
	"github.com/claritymed/regassist/internal/oracle"
)

// DecideInput is the conversation snapshot the oracle routes on.
type DecideInput struct {
	Messages     []models.AgentMessage `json:"messages"`
	WorkflowType models.WorkflowType   `json:"workflow_type"`
	TeamMembers  []string              `json:"team_members"`
	Completed    []string              `json:"completed"`
}

// SupervisorDecide asks the routing oracle for the next step. The error path
// is expected and handled by the workflow's deterministic fallback; this
// activity runs without retries so a failing oracle degrades immediately.
func (a *Activities) SupervisorDecide(ctx context.Context, in DecideInput) (models.RoutingDecision, error) {
	logger := activity.GetLogger(ctx)

	decision, err := a.decider.Decide(ctx, oracle.DecisionRequest{
		Messages:     in.Messages,
		WorkflowType: in.WorkflowType,
		TeamMembers:  in.TeamMembers,
		Completed:    in.Completed,
	})
	if err != nil {
		kind := oracle.FailureKind(err)
		metrics.OracleFailures.WithLabelValues(kind).Inc()
		logger.Warn("Oracle decision failed", "reason", kind, "error", err)
		return models.RoutingDecision{}, err
	}
	return decision, nil
}
