// Package llm talks to an OpenAI-compatible completion endpoint for the
// normal (non-adult) chat path.
package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const requestTimeout = 120 * time.Second

type Message struct {
	Role    string
	Content string
}

type Client struct {
	client      openai.Client
	model       string
	temperature float64
}

func NewClient(baseURL, apiKey, model string, temperature float64) *Client {
	if apiKey == "" {
		log.Println("Warning: No LLM API key provided")
	}
	return &Client{
		client: openai.NewClient(
			option.WithBaseURL(baseURL),
			option.WithAPIKey(apiKey),
		),
		model:       model,
		temperature: temperature,
	}
}

// ChatCompletion sends the conversation and returns the assistant reply.
func (c *Client) ChatCompletion(messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	chatMessages := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case "system":
			chatMessages[i] = openai.SystemMessage(msg.Content)
		case "assistant":
			chatMessages[i] = openai.AssistantMessage(msg.Content)
		default:
			chatMessages[i] = openai.UserMessage(msg.Content)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    chatMessages,
		Temperature: openai.Float(c.temperature),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model %s", c.model)
	}
	return resp.Choices[0].Message.Content, nil
}
