// Package oracle wraps the routing LLM behind a narrow fallible interface.
// Callers must handle both the decision and the error path; the deterministic
// compiler is always reachable when Decide fails.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/claritymed/regassist/internal/models"
)

// Decider asks the routing oracle which team member should act next.
type Decider interface {
	Decide(ctx context.Context, req DecisionRequest) (models.RoutingDecision, error)
}

// DecisionRequest carries the conversation snapshot the oracle routes on.
type DecisionRequest struct {
	Messages     []models.AgentMessage `json:"messages"`
	WorkflowType models.WorkflowType   `json:"workflow_type"`
	TeamMembers  []string              `json:"team_members"`
	Completed    []string              `json:"completed"`
}

// Failure kinds, used for metrics labels and log fields.
const (
	FailTransport = "transport"
	FailStatus    = "status"
	FailMalformed = "malformed"
	FailInvalid   = "invalid_enum"
)

// DecisionError classifies an oracle failure. Every kind triggers the same
// deterministic fallback; the kind only informs observability.
type DecisionError struct {
	Kind string
	Err  error
}

func (e *DecisionError) Error() string {
	return fmt.Sprintf("oracle decision failed (%s): %v", e.Kind, e.Err)
}

func (e *DecisionError) Unwrap() error { return e.Err }

// FailureKind extracts the classification from err, or "unknown".
func FailureKind(err error) string {
	var de *DecisionError
	if errors.As(err, &de) {
		return de.Kind
	}
	return "unknown"
}
