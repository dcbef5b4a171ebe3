package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mednote-workers/internal/common/config"
	chttp "mednote-workers/internal/common/http"
	"mednote-workers/internal/common/logger"
	"mednote-workers/internal/common/metrics"
)

// OpenAIClient calls the Azure OpenAI chat completions API against a single
// configured deployment.
type OpenAIClient struct {
	endpoint    string
	key         string
	deployment  string
	apiVersion  string
	maxTokens   int
	temperature float64
	httpClient  *chttp.Client
	logger      logger.Logger
}

func NewOpenAIClient(cfg config.OpenAIConfig, log logger.Logger) *OpenAIClient {
	return &OpenAIClient{
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		key:         cfg.Key,
		deployment:  cfg.Deployment,
		apiVersion:  cfg.APIVersion,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  chttp.NewClient(120 * time.Second),
		logger:      log,
	}
}

// ChatMessage is a single message in a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *serviceError `json:"error,omitempty"`
}

// CreateChatCompletion sends the messages to the configured deployment and
// returns the first choice's content.
func (c *OpenAIClient) CreateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	start := time.Now()

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, c.deployment, c.apiVersion)

	payload := chatCompletionRequest{
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("api-key", c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.AzureRequestErrors.WithLabelValues("openai", "chat_completion").Inc()
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.AzureRequestErrors.WithLabelValues("openai", "chat_completion").Inc()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("completion returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}

	if completion.Error != nil {
		metrics.AzureRequestErrors.WithLabelValues("openai", "chat_completion").Inc()
		return "", fmt.Errorf("completion error: %s: %s", completion.Error.Code, completion.Error.Message)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}

	metrics.AzureRequestDuration.WithLabelValues("openai", "chat_completion").Observe(time.Since(start).Seconds())

	c.logger.Debug("Chat completion received", map[string]interface{}{
		"deployment":       c.deployment,
		"completionTokens": completion.Usage.CompletionTokens,
		"finishReason":     completion.Choices[0].FinishReason,
	})

	return completion.Choices[0].Message.Content, nil
}
