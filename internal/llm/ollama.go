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

// nativeToolModels lists model name fragments known to support Ollama's
// native tool-calling field. Everything else falls back to the textual
// XML prelude.
var nativeToolModels = []string{"llama3.1", "llama3.2", "mistral-nemo", "qwen2.5", "firefunction"}

func modelSupportsNativeTools(model string) bool {
	lower := strings.ToLower(model)
	for _, frag := range nativeToolModels {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Images    []string         `json:"images,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// OllamaRuntime implements LlmRuntime against a local Ollama server.
type OllamaRuntime struct {
	baseURL string
	http    *http.Client

	requests atomic.Int64
	errors   atomic.Int64
	tokens   atomic.Int64
}

func NewOllamaRuntime(baseURL string) *OllamaRuntime {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaRuntime{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Minute},
	}
}

func (r *OllamaRuntime) Name() string { return "ollama" }

func (r *OllamaRuntime) Capabilities(model string) Capabilities {
	return Capabilities{
		Streaming:       true,
		Multimodal:      strings.Contains(strings.ToLower(model), "vision") || strings.Contains(strings.ToLower(model), "llava"),
		ThinkingDisplay: false,
		FunctionCalling: true, // native or textual-prelude fallback, both surfaced uniformly
	}
}

func (r *OllamaRuntime) Metrics() Metrics {
	return Metrics{
		RequestCount: r.requests.Load(),
		ErrorCount:   r.errors.Load(),
		TotalTokens:  r.tokens.Load(),
	}
}

func (r *OllamaRuntime) buildMessages(req GenerateRequest) []ollamaMessage {
	native := modelSupportsNativeTools(req.Model)
	msgs := make([]ollamaMessage, 0, len(req.Messages)+1)

	if len(req.Tools) > 0 && !native {
		prelude := BuildToolPrelude(req.Tools)
		injected := false
		for _, m := range req.Messages {
			if m.Role == "system" {
				msgs = append(msgs, ollamaMessage{Role: "system", Content: m.Content + "\n\n" + prelude})
				injected = true
				continue
			}
			msgs = append(msgs, ollamaMessage{Role: m.Role, Content: m.Content, Images: m.Images})
		}
		if !injected {
			msgs = append([]ollamaMessage{{Role: "system", Content: prelude}}, msgs...)
		}
		return msgs
	}

	for _, m := range req.Messages {
		msgs = append(msgs, ollamaMessage{Role: m.Role, Content: m.Content, Images: m.Images})
	}
	return msgs
}

func (r *OllamaRuntime) buildTools(req GenerateRequest) []ollamaTool {
	if !modelSupportsNativeTools(req.Model) {
		return nil
	}
	tools := make([]ollamaTool, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, ollamaTool{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return tools
}

// extractToolCalls converts Ollama's native tool_calls field, when
// present, into the same XML string used by the textual-prelude path so
// upper layers parse one format regardless of origin.
func extractToolCalls(msg ollamaMessage) (content string, calls []ToolCall) {
	if len(msg.ToolCalls) == 0 {
		if parsed := ParseXMLToolCalls(msg.Content); len(parsed) > 0 {
			return msg.Content, parsed
		}
		return msg.Content, nil
	}
	for i, tc := range msg.ToolCalls {
		calls = append(calls, ToolCall{ID: fmt.Sprintf("call_%d", i), Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return msg.Content + RenderXMLToolCalls(calls), calls
}

func (r *OllamaRuntime) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	r.requests.Add(1)
	body, err := json.Marshal(ollamaRequest{
		Model:    req.Model,
		Messages: r.buildMessages(req),
		Stream:   false,
		Tools:    r.buildTools(req),
		Options:  &ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens},
	})
	if err != nil {
		r.errors.Add(1)
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		r.errors.Add(1)
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(httpReq)
	if err != nil {
		r.errors.Add(1)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.errors.Add(1)
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error %d: %s", resp.StatusCode, string(respBody))
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		r.errors.Add(1)
		return nil, err
	}
	r.tokens.Add(int64(out.PromptEvalCount + out.EvalCount))

	content, calls := extractToolCalls(out.Message)
	return &GenerateResult{Content: content, ToolCalls: calls}, nil
}

func (r *OllamaRuntime) GenerateStream(ctx context.Context, req GenerateRequest) (<-chan AgentEvent, error) {
	r.requests.Add(1)
	body, err := json.Marshal(ollamaRequest{
		Model:    req.Model,
		Messages: r.buildMessages(req),
		Stream:   true,
		Tools:    r.buildTools(req),
		Options:  &ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens},
	})
	if err != nil {
		r.errors.Add(1)
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		r.errors.Add(1)
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(httpReq)
	if err != nil {
		r.errors.Add(1)
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		r.errors.Add(1)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama API error %d", resp.StatusCode)
	}

	events := make(chan AgentEvent)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		var accumulated strings.Builder
		decoder := json.NewDecoder(resp.Body)
		for {
			var chunk ollamaResponse
			if err := decoder.Decode(&chunk); err != nil {
				if err != io.EOF {
					r.errors.Add(1)
					events <- AgentEvent{Type: EventError, Message: err.Error()}
				}
				return
			}
			accumulated.WriteString(chunk.Message.Content)
			if chunk.Message.Content != "" {
				events <- AgentEvent{Type: EventContent, Delta: chunk.Message.Content}
			}
			for _, tc := range chunk.Message.ToolCalls {
				events <- AgentEvent{Type: EventToolCallStart, ToolCall: &ToolCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments}}
			}
			if chunk.Done {
				r.tokens.Add(int64(chunk.PromptEvalCount + chunk.EvalCount))
				if calls := ParseXMLToolCalls(accumulated.String()); len(calls) > 0 {
					for _, c := range calls {
						events <- AgentEvent{Type: EventToolCallEnd, ToolCall: &c}
					}
				}
				events <- AgentEvent{Type: EventEnd}
				return
			}
		}
	}()
	return events, nil
}
