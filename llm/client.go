package llm

import (
	"context"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"

	defaultMaxTokens = 2000
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Completer returns the assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error)
}

// Client calls an OpenAI compatible chat completions endpoint.
type Client struct {
	http   types.HTTPClient
	config *types.LLMConfig
	logger types.Logger
}

func NewClient(httpClient types.HTTPClient, config *types.LLMConfig, logger types.Logger) *Client {
	return &Client{
		http:   httpClient,
		config: config,
		logger: logger,
	}
}

func (c *Client) Configured() bool {
	return c.config != nil && strings.TrimSpace(c.config.APIKey) != ""
}

func (c *Client) Model() string {
	return c.config.Model
}

func (c *Client) Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	if !c.Configured() {
		return "", types.ErrLLMNotConfigured
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	request := completionRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	opts := &types.CallOptions{
		Timeout: c.config.Timeout,
		Headers: map[string]string{
			"Authorization": "Bearer " + c.config.APIKey,
		},
	}

	start := time.Now()
	c.logger.Info("Calling AI model", zap.String("model", c.config.Model), zap.Float64("temperature", temperature))

	url := strings.TrimRight(c.config.BaseURL, "/") + "/chat/completions"
	body, status, err := c.http.Call(ctx, fasthttp.MethodPost, url, request, opts)
	if err != nil {
		c.logger.Error("AI API error", zap.Error(err))
		return "", types.Errorf(types.ErrLLMRequestFailed, "%v", err)
	}

	if status < 200 || status >= 300 {
		message := gjson.GetBytes(body, "error.message").String()
		if message == "" {
			message = utils.Truncate(string(body), 200)
		}
		c.logger.Error("AI API error", zap.Int("status", status), zap.String("message", message))
		return "", types.Errorf(types.ErrLLMRequestFailed, "HTTP %d: %s", status, message)
	}

	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() {
		return "", types.Errorf(types.ErrLLMRequestFailed, "%v: no choices in response", types.ErrLLMResponseInvalid)
	}

	c.logger.Debug("AI response received",
		zap.Duration("duration", time.Since(start)),
		zap.Int("length", len(content.String())))

	return strings.TrimSpace(content.String()), nil
}
