package activities

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/claritymed/regassist/internal/models"
	"github.com/claritymed/regassist/internal/streaming"
)

// StreamEventType identifies workflow progress events for the front end.
type StreamEventType string

const (
	StreamEventWorkflowStarted   StreamEventType = "WORKFLOW_STARTED"
	StreamEventWorkflowCompleted StreamEventType = "WORKFLOW_COMPLETED"
	StreamEventAgentStarted      StreamEventType = "AGENT_STARTED"
	StreamEventAgentCompleted    StreamEventType = "AGENT_COMPLETED"
	StreamEventRouting           StreamEventType = "ROUTING"
	StreamEventFinalAnswer       StreamEventType = "FINAL_ANSWER"
	StreamEventCitations         StreamEventType = "CITATIONS"
	StreamEventErrorRecovery     StreamEventType = "ERROR_RECOVERY"
)

// EmitTaskUpdateInput carries one event to publish.
type EmitTaskUpdateInput struct {
	WorkflowID string            `json:"workflow_id"`
	EventType  StreamEventType   `json:"event_type"`
	AgentID    string            `json:"agent_id,omitempty"`
	Message    string            `json:"message,omitempty"`
	Citations  []models.Citation `json:"citations,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// EmitTaskUpdate publishes a workflow event to the in-process stream
// manager. Best-effort: subscribers that lag drop events, and the workflow
// never fails because of streaming.
func EmitTaskUpdate(ctx context.Context, in EmitTaskUpdateInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("stream event",
		"workflow_id", in.WorkflowID,
		"type", string(in.EventType),
		"agent_id", in.AgentID,
	)

	streaming.Get().Publish(in.WorkflowID, streaming.Event{
		WorkflowID: in.WorkflowID,
		Type:       string(in.EventType),
		AgentID:    in.AgentID,
		Message:    in.Message,
		Citations:  in.Citations,
		Timestamp:  in.Timestamp,
	})
	return nil
}
