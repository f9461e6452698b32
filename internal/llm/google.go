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

const googleAPIURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GoogleRuntime implements LlmRuntime over the Gemini generateContent API.
type GoogleRuntime struct {
	apiKey string
	http   *http.Client

	requests atomic.Int64
	errors   atomic.Int64
	tokens   atomic.Int64
}

func NewGoogleRuntime(apiKey string) *GoogleRuntime {
	return &GoogleRuntime{apiKey: apiKey, http: &http.Client{Timeout: 5 * time.Minute}}
}

func (r *GoogleRuntime) Name() string { return "google" }

func (r *GoogleRuntime) Capabilities(model string) Capabilities {
	lower := strings.ToLower(model)
	return Capabilities{
		Streaming:       false, // no SSE relay, see GenerateStream
		Multimodal:      true,
		ThinkingDisplay: strings.Contains(lower, "thinking"),
		FunctionCalling: true,
	}
}

func (r *GoogleRuntime) Metrics() Metrics {
	return Metrics{RequestCount: r.requests.Load(), ErrorCount: r.errors.Load(), TotalTokens: r.tokens.Load()}
}

type googleRequest struct {
	Contents          []googleContent         `json:"contents"`
	SystemInstruction *googleContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *googleGenerationConfig `json:"generationConfig,omitempty"`
	Tools             []googleTool            `json:"tools,omitempty"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text         string                `json:"text,omitempty"`
	FunctionCall *googleFunctionCall   `json:"functionCall,omitempty"`
}

type googleFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type googleGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type googleTool struct {
	FunctionDeclarations []googleFunctionDecl `json:"functionDeclarations,omitempty"`
}

type googleFunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type googleResponse struct {
	Candidates []struct {
		Content struct {
			Parts []googlePart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func splitGoogleSystem(msgs []Message) (system *googleContent, contents []googleContent) {
	for _, m := range msgs {
		if m.Role == "system" {
			system = &googleContent{Parts: []googlePart{{Text: m.Content}}}
			continue
		}
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		contents = append(contents, googleContent{Role: role, Parts: []googlePart{{Text: m.Content}}})
	}
	return system, contents
}

func (r *GoogleRuntime) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	r.requests.Add(1)
	system, contents := splitGoogleSystem(req.Messages)

	greq := googleRequest{
		Contents:          contents,
		SystemInstruction: system,
		GenerationConfig:  &googleGenerationConfig{Temperature: req.Temperature, MaxOutputTokens: req.MaxTokens},
	}
	if len(req.Tools) > 0 {
		decls := make([]googleFunctionDecl, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, googleFunctionDecl{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
		}
		greq.Tools = []googleTool{{FunctionDeclarations: decls}}
	}

	body, err := json.Marshal(greq)
	if err != nil {
		r.errors.Add(1)
		return nil, err
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", googleAPIURL, req.Model, r.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
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
		return nil, fmt.Errorf("google API error %d: %s", resp.StatusCode, string(respBody))
	}

	var out googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		r.errors.Add(1)
		return nil, err
	}
	r.tokens.Add(int64(out.UsageMetadata.TotalTokenCount))

	if len(out.Candidates) == 0 {
		r.errors.Add(1)
		return nil, fmt.Errorf("google: no candidates in response")
	}

	var text strings.Builder
	var calls []ToolCall
	for i, part := range out.Candidates[0].Content.Parts {
		if part.FunctionCall != nil {
			calls = append(calls, ToolCall{ID: fmt.Sprintf("call_%d", i), Name: part.FunctionCall.Name, Arguments: part.FunctionCall.Args})
			continue
		}
		text.WriteString(part.Text)
	}
	content := text.String()
	if len(calls) > 0 {
		content += RenderXMLToolCalls(calls)
	}
	return &GenerateResult{Content: content, ToolCalls: calls}, nil
}

// GenerateStream relays the Gemini response as one Content delta, one
// ToolCallEnd event per tool call, then End; Gemini's SSE stream format
// isn't consumed here.
func (r *GoogleRuntime) GenerateStream(ctx context.Context, req GenerateRequest) (<-chan AgentEvent, error) {
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
