package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIRuntime implements LlmRuntime over the OpenAI chat completions
// API, with native function calling.
type OpenAIRuntime struct {
	client *openai.Client

	requests atomic.Int64
	errors   atomic.Int64
	tokens   atomic.Int64
}

func NewOpenAIRuntime(apiKey string) *OpenAIRuntime {
	return &OpenAIRuntime{client: openai.NewClient(apiKey)}
}

func (r *OpenAIRuntime) Name() string { return "openai" }

func (r *OpenAIRuntime) Capabilities(model string) Capabilities {
	lower := strings.ToLower(model)
	return Capabilities{
		Streaming:       true,
		Multimodal:      strings.Contains(lower, "gpt-4o") || strings.Contains(lower, "vision"),
		ThinkingDisplay: strings.HasPrefix(lower, "o1"),
		FunctionCalling: true,
	}
}

func (r *OpenAIRuntime) Metrics() Metrics {
	return Metrics{RequestCount: r.requests.Load(), ErrorCount: r.errors.Load(), TotalTokens: r.tokens.Load()}
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func toOpenAITools(tools []ToolDef) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func fromOpenAIToolCalls(calls []openai.ToolCall) []ToolCall {
	out := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		var args map[string]any
		_ = json.Unmarshal([]byte(c.Function.Arguments), &args)
		out = append(out, ToolCall{ID: c.ID, Name: c.Function.Name, Arguments: args})
	}
	return out
}

func (r *OpenAIRuntime) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	r.requests.Add(1)
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Messages),
		Tools:       toOpenAITools(req.Tools),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		r.errors.Add(1)
		return nil, err
	}
	if len(resp.Choices) == 0 {
		r.errors.Add(1)
		return nil, fmt.Errorf("openai: empty choices")
	}
	r.tokens.Add(int64(resp.Usage.TotalTokens))

	msg := resp.Choices[0].Message
	calls := fromOpenAIToolCalls(msg.ToolCalls)
	content := msg.Content
	if len(calls) > 0 {
		content += RenderXMLToolCalls(calls)
	}
	return &GenerateResult{Content: content, ToolCalls: calls}, nil
}

func (r *OpenAIRuntime) GenerateStream(ctx context.Context, req GenerateRequest) (<-chan AgentEvent, error) {
	r.requests.Add(1)
	stream, err := r.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Messages),
		Tools:       toOpenAITools(req.Tools),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		r.errors.Add(1)
		return nil, err
	}

	events := make(chan AgentEvent)
	go func() {
		defer close(events)
		defer stream.Close()

		var pendingCalls []openai.ToolCall
		for {
			chunk, err := stream.Recv()
			if err != nil {
				if err.Error() != "EOF" {
					r.errors.Add(1)
					events <- AgentEvent{Type: EventError, Message: err.Error()}
				}
				break
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta
			if delta.Content != "" {
				events <- AgentEvent{Type: EventContent, Delta: delta.Content}
			}
			pendingCalls = append(pendingCalls, delta.ToolCalls...)
		}
		if calls := fromOpenAIToolCalls(pendingCalls); len(calls) > 0 {
			for _, c := range calls {
				events <- AgentEvent{Type: EventToolCallEnd, ToolCall: &c}
			}
		}
		events <- AgentEvent{Type: EventEnd}
	}()
	return events, nil
}
