package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const anthropicAPIURL = "https://api.anthropic.com/v1/messages"
const anthropicVersion = "2023-06-01"

// AnthropicRuntime implements LlmRuntime over the Anthropic Messages API.
type AnthropicRuntime struct {
	apiKey string
	http   *http.Client

	requests atomic.Int64
	errors   atomic.Int64
	tokens   atomic.Int64
}

func NewAnthropicRuntime(apiKey string) *AnthropicRuntime {
	return &AnthropicRuntime{apiKey: apiKey, http: &http.Client{Timeout: 5 * time.Minute}}
}

func (r *AnthropicRuntime) Name() string { return "anthropic" }

func (r *AnthropicRuntime) Capabilities(model string) Capabilities {
	return Capabilities{
		Streaming:       false, // replayed after one non-streaming call, see GenerateStream
		Multimodal:      true,
		ThinkingDisplay: strings.Contains(model, "3-7") || strings.Contains(model, "opus-4"),
		FunctionCalling: true,
	}
}

func (r *AnthropicRuntime) Metrics() Metrics {
	return Metrics{RequestCount: r.requests.Load(), ErrorCount: r.errors.Load(), TotalTokens: r.tokens.Load()}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicResponse struct {
	Content []struct {
		Type  string         `json:"type"`
		Text  string         `json:"text,omitempty"`
		Name  string         `json:"name,omitempty"`
		Input map[string]any `json:"input,omitempty"`
		ID    string         `json:"id,omitempty"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func splitAnthropicSystem(msgs []Message) (system string, rest []anthropicMessage) {
	for _, m := range msgs {
		if m.Role == "system" {
			if system != "" {
				system += "\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	return system, rest
}

func (r *AnthropicRuntime) doRequest(ctx context.Context, req GenerateRequest) (*anthropicResponse, error) {
	r.requests.Add(1)
	system, messages := splitAnthropicSystem(req.Messages)

	var tools []anthropicTool
	for _, t := range req.Tools {
		tools = append(tools, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		Messages:    messages,
		System:      system,
		Temperature: req.Temperature,
		Tools:       tools,
	})
	if err != nil {
		r.errors.Add(1)
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicAPIURL, bytes.NewReader(body))
	if err != nil {
		r.errors.Add(1)
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", r.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := r.http.Do(httpReq)
	if err != nil {
		r.errors.Add(1)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.errors.Add(1)
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("anthropic API error %d: %s", resp.StatusCode, string(respBody))
	}

	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		r.errors.Add(1)
		return nil, err
	}
	r.tokens.Add(int64(out.Usage.InputTokens + out.Usage.OutputTokens))
	return &out, nil
}

func (r *AnthropicRuntime) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	out, err := r.doRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	var calls []ToolCall
	for _, block := range out.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			calls = append(calls, ToolCall{ID: block.ID, Name: block.Name, Arguments: block.Input})
		}
	}
	content := text.String()
	if len(calls) > 0 {
		content += RenderXMLToolCalls(calls)
	}
	return &GenerateResult{Content: content, ToolCalls: calls}, nil
}

// GenerateStream has no true incremental relay here: doRequest makes one
// non-streaming call, and the whole result is replayed as one Content
// delta, one ToolCallEnd event per tool call, then End. Anthropic's SSE
// events are not consumed.
func (r *AnthropicRuntime) GenerateStream(ctx context.Context, req GenerateRequest) (<-chan AgentEvent, error) {
	result, err := r.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	events := make(chan AgentEvent, len(result.ToolCalls)+2)
	if result.Content != "" {
		events <- AgentEvent{Type: EventContent, Delta: result.Content}
	}
	for _, c := range result.ToolCalls {
		call := c
		events <- AgentEvent{Type: EventToolCallEnd, ToolCall: &call}
	}
	events <- AgentEvent{Type: EventEnd}
	close(events)
	return events, nil
}
