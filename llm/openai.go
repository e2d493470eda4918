package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/geogate/geogate/telemetry"
)

const systemRole = "You are a legal compliance analysis assistant for a global tech company."

// OpenAIClient implements Client against an OpenAI-compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *telemetry.Logger
}

// NewOpenAIClient builds a client from OPENAI_API_KEY / OPENAI_MODEL /
// OPENAI_BASE_URL. Returns ErrUnavailable when no key is configured so
// callers can degrade instead of aborting.
func NewOpenAIClient() (*OpenAIClient, error) {
	logger := telemetry.NewLogger("llm")

	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, ErrUnavailable
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = openai.GPT4oMini
		logger.Warn().Str("model", model).Msg("OPENAI_MODEL not set, using default")
	}

	cfg := openai.DefaultConfig(apiKey)
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		cfg.BaseURL = base
	}

	logger.Info().Str("model", model).Msg("initializing model client")
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}, nil
}

// ModelID identifies the backing model.
func (c *OpenAIClient) ModelID() string { return c.model }

// Complete issues one chat completion.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: req.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemRole},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	if req.MaxTokens > 0 {
		chatReq.MaxCompletionTokens = req.MaxTokens
	}
	if req.JSONOnly {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrNoContent
	}

	c.logger.Debug().
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Msg("model response received")
	return resp.Choices[0].Message.Content, nil
}
