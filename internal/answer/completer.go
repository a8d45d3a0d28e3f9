package answer

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// TokenStream yields partial answer text in order. Recv returns io.EOF
// when the upstream stream finished cleanly.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// Completer opens a streaming completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (TokenStream, error)
}

// OpenAICompleter streams chat completions through go-openai.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter creates a completer for the given model
func NewOpenAICompleter(client *openai.Client, model string) *OpenAICompleter {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAICompleter{client: client, model: model}
}

// Complete opens the upstream stream. Cancelling ctx tears it down.
func (c *OpenAICompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (TokenStream, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.7,
		MaxTokens:   300,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("completion stream: %w", err)
	}

	return &openaiTokenStream{stream: stream}, nil
}

type openaiTokenStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openaiTokenStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if content := resp.Choices[0].Delta.Content; content != "" {
			return content, nil
		}
	}
}

func (s *openaiTokenStream) Close() error {
	return s.stream.Close()
}
