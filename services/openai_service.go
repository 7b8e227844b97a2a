package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"salesassistant/config"
	"salesassistant/models"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint
// (Groq by default). Streaming goes through go-openai, single-shot calls
// are a plain resty POST.
type OpenAIClient struct {
	api    *openai.Client
	rest   *resty.Client
	logger *zap.Logger
}

type chatCompletionRequest struct {
	Model    string                 `json:"model"`
	Messages []chatCompletionRecord `json:"messages"`
}

type chatCompletionRecord struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration, logger *zap.Logger) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is not set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	rest := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &OpenAIClient{
		api:    openai.NewClientWithConfig(cfg),
		rest:   rest,
		logger: logger,
	}, nil
}

func (c *OpenAIClient) CompleteStreaming(ctx context.Context, model string, messages []models.Message) (FragmentStream, error) {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	}

	c.logger.Debug("opening completion stream", zap.String("model", model), zap.Int("messages", len(messages)))

	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, providerError("complete streaming", err)
	}
	return &openAIStream{stream: stream}, nil
}

func (c *OpenAIClient) CompleteOnce(ctx context.Context, model string, messages []models.Message) (string, error) {
	records := make([]chatCompletionRecord, 0, len(messages))
	for _, m := range messages {
		records = append(records, chatCompletionRecord{Role: string(m.Role), Content: m.Content})
	}

	var result chatCompletionResponse
	var apiErr apiErrorResponse

	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(chatCompletionRequest{Model: model, Messages: records}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return "", &CompletionError{Op: "complete once", Message: err.Error(), Err: err}
	}

	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = resp.Status()
		}
		c.logger.Warn("completion request rejected",
			zap.String("model", model),
			zap.Int("status", resp.StatusCode()),
			zap.String("error", msg),
		)
		return "", &CompletionError{Op: "complete once", StatusCode: resp.StatusCode(), Message: msg}
	}

	if len(result.Choices) == 0 {
		return "", &CompletionError{Op: "complete once", Message: "no choices in response"}
	}

	return result.Choices[0].Message.Content, nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openAIStream) Next() (Fragment, error) {
	resp, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		return Fragment{}, io.EOF
	}
	if err != nil {
		return Fragment{}, providerError("stream", err)
	}
	// Usage-only and keep-alive chunks carry no choices.
	if len(resp.Choices) == 0 {
		return Fragment{}, nil
	}
	return Fragment{Delta: resp.Choices[0].Delta.Content}, nil
}

func (s *openAIStream) Close() error {
	s.stream.Close()
	return nil
}

func toOpenAIMessages(messages []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}

func providerError(op string, err error) *CompletionError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &CompletionError{Op: op, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &CompletionError{Op: op, StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}
	return &CompletionError{Op: op, Message: err.Error(), Err: err}
}

// NewCompletionClient picks the provider adapter, or the mock when no key is
// configured or mock mode is forced.
func NewCompletionClient(cfg *config.Config, logger *zap.Logger) (CompletionClient, error) {
	if cfg.UseMockLLM() {
		logger.Warn("using mock completion client")
		return NewMockCompletionClient(), nil
	}
	client, err := NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Timeout, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}
