package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/claritymed/regassist/internal/models"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req["messages"])

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func qaRequest() DecisionRequest {
	return DecisionRequest{
		Messages:     []models.AgentMessage{{Content: "What encryption does FDA expect?"}},
		WorkflowType: models.WorkflowQuestionAnswering,
		TeamMembers:  models.TeamFor(models.WorkflowQuestionAnswering),
	}
}

func TestDecideParsesRoutingDecision(t *testing.T) {
	srv := chatServer(t, `{"next": "cybersecurity_agent", "final_response": "", "reasoning": "security question"}`)
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Model: "test-model"}, zaptest.NewLogger(t))
	decision, err := client.Decide(context.Background(), qaRequest())
	require.NoError(t, err)
	assert.Equal(t, models.AgentCybersecurity, decision.Next)
	assert.Equal(t, "security question", decision.Reasoning)
}

func TestDecideRejectsInvalidEnum(t *testing.T) {
	srv := chatServer(t, `{"next": "marketing_agent"}`)
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	_, err := client.Decide(context.Background(), qaRequest())
	require.Error(t, err)
	assert.Equal(t, FailInvalid, FailureKind(err))
}

func TestDecideMalformedContent(t *testing.T) {
	srv := chatServer(t, `this is not json`)
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	_, err := client.Decide(context.Background(), qaRequest())
	require.Error(t, err)
	assert.Equal(t, FailMalformed, FailureKind(err))
}

func TestDecideServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	_, err := client.Decide(context.Background(), qaRequest())
	require.Error(t, err)
	assert.Equal(t, FailStatus, FailureKind(err))
}

func TestDecideTransportFailure(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, zaptest.NewLogger(t))
	_, err := client.Decide(context.Background(), qaRequest())
	require.Error(t, err)
	assert.Equal(t, FailTransport, FailureKind(err))
}

func TestDecideAcceptsFinish(t *testing.T) {
	srv := chatServer(t, `{"next": "FINISH", "final_response": "Assessment complete. Do you need any additional clarifications?"}`)
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	decision, err := client.Decide(context.Background(), qaRequest())
	require.NoError(t, err)
	assert.Equal(t, models.RouteFinish, decision.Next)
	assert.NotEmpty(t, decision.FinalResponse)
}
