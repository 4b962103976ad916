package openai

import (
	"context"
	"fmt"
	"io"

	"xiaozhi-go/services/llm"

	openai "github.com/sashabaranov/go-openai"
)

// GPTLLM implements llm.LLM against OpenAI's chat completion API.
type GPTLLM struct {
	*llm.BaseLLM
	client *openai.Client
	model  string
}

// NewGPTLLM creates a new GPT-backed LLM client.
func NewGPTLLM(apiKey, model string) *GPTLLM {
	return &GPTLLM{
		BaseLLM: llm.NewBaseLLM("gpt", "1.0.0"),
		client:  openai.NewClient(apiKey),
		model:   model,
	}
}

func toOpenAIMessages(messages []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		m := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		if len(msg.ToolCalls) > 0 {
			m.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
			for j, tc := range msg.ToolCalls {
				m.ToolCalls[j] = openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolType(tc.Type),
					Function: openai.FunctionCall{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				}
			}
		}
		out[i] = m
	}
	return out
}

func toOpenAITools(tools []llm.Tool) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		out[i] = openai.Tool{
			Type: openai.ToolType(tool.Type),
			Function: &openai.FunctionDefinition{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		}
	}
	return out
}

func fromOpenAIToolCalls(tcs []openai.ToolCall) []llm.ToolCall {
	if len(tcs) == 0 {
		return nil
	}
	out := make([]llm.ToolCall, len(tcs))
	for i, tc := range tcs {
		out[i] = llm.ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: llm.Function{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return out
}

// Chat performs a single non-streaming chat completion.
func (g *GPTLLM) Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (*llm.ChatCompletion, error) {
	if opts == nil {
		opts = llm.DefaultChatOptions()
	}

	req := openai.ChatCompletionRequest{
		Model:            g.model,
		Messages:         toOpenAIMessages(messages),
		MaxTokens:        opts.MaxTokens,
		Temperature:      float32(opts.Temperature),
		TopP:             float32(opts.TopP),
		FrequencyPenalty: float32(opts.FrequencyPenalty),
		PresencePenalty:  float32(opts.PresencePenalty),
		Stop:             opts.Stop,
		Tools:            toOpenAITools(opts.Tools),
		ToolChoice:       opts.ToolChoice,
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: no choices returned")
	}
	choice := resp.Choices[0]

	return &llm.ChatCompletion{
		Message: llm.Message{
			Role:      llm.MessageRole(choice.Message.Role),
			Content:   choice.Message.Content,
			ToolCalls: fromOpenAIToolCalls(choice.Message.ToolCalls),
		},
		FinishReason: string(choice.FinishReason),
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// ChatStream opens a streaming chat completion.
func (g *GPTLLM) ChatStream(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (llm.ChatStream, error) {
	if opts == nil {
		opts = llm.DefaultChatOptions()
	}

	req := openai.ChatCompletionRequest{
		Model:            g.model,
		Messages:         toOpenAIMessages(messages),
		MaxTokens:        opts.MaxTokens,
		Temperature:      float32(opts.Temperature),
		TopP:             float32(opts.TopP),
		FrequencyPenalty: float32(opts.FrequencyPenalty),
		PresencePenalty:  float32(opts.PresencePenalty),
		Stop:             opts.Stop,
		Tools:            toOpenAITools(opts.Tools),
		ToolChoice:       opts.ToolChoice,
		Stream:           true,
	}

	stream, err := g.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llm: chat completion stream: %w", err)
	}
	return &GPTChatStream{stream: stream}, nil
}

// GPTChatStream adapts openai.ChatCompletionStream to llm.ChatStream.
type GPTChatStream struct {
	stream *openai.ChatCompletionStream
	closed bool
}

// Recv returns the next chunk, or io.EOF once the stream is exhausted.
func (s *GPTChatStream) Recv() (*llm.ChatCompletionChunk, error) {
	if s.closed {
		return nil, fmt.Errorf("llm: stream already closed")
	}

	resp, err := s.stream.Recv()
	if err != nil {
		if err == io.EOF {
			s.closed = true
			return nil, io.EOF
		}
		return nil, fmt.Errorf("llm: stream recv: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: no choices in stream chunk")
	}
	choice := resp.Choices[0]

	var toolCalls []llm.ToolCall
	if len(choice.Delta.ToolCalls) > 0 {
		toolCalls = make([]llm.ToolCall, len(choice.Delta.ToolCalls))
		for i, tc := range choice.Delta.ToolCalls {
			toolCalls[i] = llm.ToolCall{ID: tc.ID, Type: string(tc.Type)}
			if tc.Function.Name != "" || tc.Function.Arguments != "" {
				toolCalls[i].Function = llm.Function{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				}
			}
		}
	}

	return &llm.ChatCompletionChunk{
		Delta: llm.MessageDelta{
			Role:      llm.MessageRole(choice.Delta.Role),
			Content:   choice.Delta.Content,
			ToolCalls: toolCalls,
		},
		FinishReason: string(choice.FinishReason),
	}, nil
}

// Close terminates the underlying stream.
func (s *GPTChatStream) Close() error {
	if !s.closed {
		s.stream.Close()
		s.closed = true
	}
	return nil
}
