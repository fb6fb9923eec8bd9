package vision

import (
	"context"
	"errors"
	"net"

	openai "github.com/sashabaranov/go-openai"

	"bimschedule/internal"
	"bimschedule/internal/config"
	"bimschedule/internal/logger"
)

var (
	ErrMissingCredential = errors.New("missing OpenAI API key")
	ErrEmptyReply        = errors.New("no response from model")
)

// Client is the upstream vision model. DescribeImage returns the raw reply
// text; extraction and normalization happen in the pipeline.
type Client interface {
	DescribeImage(ctx context.Context, img internal.ImageInput) (string, error)
	Ping(ctx context.Context) (string, error)
}

// New picks the client for cfg. A missing key does not fail start-up: the
// returned client reports ErrMissingCredential on every call.
func New(cfg config.Config, log *logger.Logger) Client {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "vision")
	switch {
	case cfg.DemoMode:
		log.Info("vision client in demo mode")
		return demoClient{}
	case cfg.OpenAIAPIKey == "":
		log.Warn("OPENAI_API_KEY is empty; model calls will fail")
		return unavailableClient{}
	default:
		return NewOpenAIClient(cfg, nil, log)
	}
}

// ErrorKind is the short label reported alongside a failed model call.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrMissingCredential) {
		return "ConfigError"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "TimeoutError"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "TimeoutError"
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return "APIError"
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return "APIError"
	}
	return "Error"
}

type unavailableClient struct{}

func (unavailableClient) DescribeImage(context.Context, internal.ImageInput) (string, error) {
	return "", ErrMissingCredential
}

func (unavailableClient) Ping(context.Context) (string, error) {
	return "", ErrMissingCredential
}
