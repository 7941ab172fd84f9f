package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// openAIClient talks to any OpenAI-compatible chat completions endpoint,
// including Together AI.
type openAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func newOpenAIClient(cfg Config, apiKey, model, base string, maxTokens int) *openAIClient {
	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = base
	clientConfig.HTTPClient = pickHTTPClient(cfg.HTTPClient)
	return &openAIClient{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (c *openAIClient) Name() string {
	return fmt.Sprintf("OpenAI-compatible (%s)", c.model)
}

func (c *openAIClient) Chat(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:   c.maxTokens,
		Temperature: 0.7,
		TopP:        0.7,
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("openai API error: %d %s: %w", apiErr.HTTPStatusCode, apiErr.Message, err)
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai API returned no choices")
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}
