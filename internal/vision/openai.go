package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"bimschedule/internal"
	"bimschedule/internal/config"
	"bimschedule/internal/logger"
)

type OpenAIClient struct {
	api       *openai.Client
	model     string
	maxTokens int
	limiter   *RateLimiter
	log       *logger.Logger
}

// NewOpenAIClient builds a chat-completions client. httpClient may be nil.
func NewOpenAIClient(cfg config.Config, httpClient *http.Client, log *logger.Logger) *OpenAIClient {
	if log == nil {
		log = logger.Nop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.OpenAITimeoutMs) * time.Millisecond}
	}

	apiCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if base := strings.TrimSpace(cfg.OpenAIBaseURL); base != "" {
		apiCfg.BaseURL = strings.TrimRight(base, "/")
	}
	apiCfg.HTTPClient = httpClient

	maxTokens := cfg.OpenAIMaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	model := cfg.OpenAIModel
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIClient{
		api:       openai.NewClientWithConfig(apiCfg),
		model:     model,
		maxTokens: maxTokens,
		limiter:   NewRateLimiter(cfg.VisionRateLimitRPS),
		log:       log,
	}
}

func (c *OpenAIClient) DescribeImage(ctx context.Context, img internal.ImageInput) (string, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("describe image: empty image")
	}
	mime := img.MimeType
	if mime == "" {
		mime = http.DetectContentType(img.Data)
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)

	req := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: BuildPrompt(img.Hints)},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailAuto}},
				},
			},
		},
	}
	return c.complete(ctx, req)
}

func (c *OpenAIClient) Ping(ctx context.Context) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: 10,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: pingPrompt},
		},
	}
	return c.complete(ctx, req)
}

func (c *OpenAIClient) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		c.log.Warn("model call failed", "model", req.Model, "durationMs", time.Since(start).Milliseconds(), "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyReply
	}

	c.log.Debug("model call done",
		"model", req.Model,
		"durationMs", time.Since(start).Milliseconds(),
		"promptTokens", resp.Usage.PromptTokens,
		"completionTokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}
