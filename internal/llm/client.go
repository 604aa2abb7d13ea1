// Package llm builds financial context for free-form questions, calls the chat upstream and
// degrades to canned answers whenever the upstream cannot help.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/frahmantamala/expense-insights/internal"
	openai "github.com/sashabaranov/go-openai"
)

// ErrMissingCredentials is returned by clients built without an API key.
var ErrMissingCredentials = errors.New("llm: api key not configured")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Transcriber turns a recorded audio file on disk into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

type ClientOptions struct {
	APIKey             string
	BaseURL            string
	Model              string
	TranscriptionModel string
	MaxTokens          int
}

func ClientOptionsFromConfig(cfg internal.LLMConfig) ClientOptions {
	return ClientOptions{
		APIKey:             cfg.APIKey,
		BaseURL:            cfg.BaseURL,
		Model:              cfg.Model,
		TranscriptionModel: cfg.TranscriptionModel,
		MaxTokens:          cfg.MaxTokens,
	}
}

// OpenAIClient implements Completer and Transcriber against an OpenAI-compatible API.
type OpenAIClient struct {
	client *openai.Client
	opts   ClientOptions
}

func NewOpenAIClient(opts ClientOptions) *OpenAIClient {
	c := &OpenAIClient{opts: opts}
	if opts.APIKey == "" {
		return c
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	c.client = openai.NewClientWithConfig(cfg)
	return c
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.client == nil {
		return "", ErrMissingCredentials
	}
	req := openai.ChatCompletionRequest{
		Model:     c.opts.Model,
		MaxTokens: c.opts.MaxTokens,
		Messages:  make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) Transcribe(ctx context.Context, path string) (string, error) {
	if c.client == nil {
		return "", ErrMissingCredentials
	}
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.opts.TranscriptionModel,
		FilePath: path,
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
