package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/claritymed/regassist/internal/circuitbreaker"
	"github.com/claritymed/regassist/internal/models"
)

// Config holds oracle client settings.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// Client calls an OpenAI-compatible chat-completions endpoint for routing
// decisions. All requests go through a circuit breaker so a degraded LLM
// service fails fast instead of stalling every workflow.
type Client struct {
	cfg    Config
	http   *circuitbreaker.HTTPWrapper
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	hc := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		cfg:    cfg,
		http:   circuitbreaker.NewHTTPWrapper(hc, "oracle", logger),
		logger: logger,
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Decide submits the conversation snapshot and parses the structured routing
// decision. Any transport, status, or parse problem comes back as a
// *DecisionError.
func (c *Client) Decide(ctx context.Context, req DecisionRequest) (models.RoutingDecision, error) {
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: buildSystemPrompt(req)},
			{Role: "user", Content: buildTranscript(req)},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
	}
	buf, _ := json.Marshal(payload)

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return models.RoutingDecision{}, &DecisionError{Kind: FailTransport, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return models.RoutingDecision{}, &DecisionError{Kind: FailTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return models.RoutingDecision{}, &DecisionError{
			Kind: FailStatus,
			Err:  fmt.Errorf("oracle http status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return models.RoutingDecision{}, &DecisionError{Kind: FailMalformed, Err: err}
	}
	if len(cr.Choices) == 0 {
		return models.RoutingDecision{}, &DecisionError{Kind: FailMalformed, Err: fmt.Errorf("no choices in oracle response")}
	}

	var decision models.RoutingDecision
	if err := json.Unmarshal([]byte(cr.Choices[0].Message.Content), &decision); err != nil {
		return models.RoutingDecision{}, &DecisionError{Kind: FailMalformed, Err: err}
	}

	if !validNext(decision.Next, req.TeamMembers) {
		return models.RoutingDecision{}, &DecisionError{
			Kind: FailInvalid,
			Err:  fmt.Errorf("invalid routing option %q", decision.Next),
		}
	}

	c.logger.Debug("Oracle routing decision",
		zap.String("next", decision.Next),
		zap.String("reasoning", decision.Reasoning),
	)
	return decision, nil
}

func validNext(next string, members []string) bool {
	if next == models.RouteFinish {
		return true
	}
	for _, m := range members {
		if m == next {
			return true
		}
	}
	return false
}
