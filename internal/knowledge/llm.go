package knowledge

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
)

// llmClient is a minimal chat-completions client for answer generation.
type llmClient struct {
	baseURL string
	model   string
	apiKey  string
	http    *circuitbreaker.HTTPWrapper
}

func newLLMClient(baseURL, model, apiKey string, timeout time.Duration, logger *zap.Logger) *llmClient {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &llmClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		http:    circuitbreaker.NewHTTPWrapper(&http.Client{Timeout: timeout}, "knowledge-llm", logger),
	}
}

type llmChatRequest struct {
	Model    string           `json:"model"`
	Messages []llmChatMessage `json:"messages"`
}

type llmChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llmChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *llmClient) Chat(ctx context.Context, system, user string) (string, error) {
	payload := llmChatRequest{
		Model: c.model,
		Messages: []llmChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	buf, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("llm http status %d: %s", resp.StatusCode, string(body))
	}

	var cr llmChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("no choices in llm response")
	}
	return cr.Choices[0].Message.Content, nil
}
