// Package llm defines the LlmRuntime capability interface Session Core
// dispatches against, plus concrete backends (Ollama, OpenAI, Anthropic,
// Google) and the streaming AgentEvent vocabulary shared by all of them.
package llm

import "context"

// Message is one chat turn. Images are data URLs or provider-native
// references; interpretation is backend-specific.
type Message struct {
	Role      string     `json:"role"` // system, user, assistant, tool
	Content   string     `json:"content"`
	Images    []string   `json:"images,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"` // set on role=tool replies
}

// ToolDef describes one callable tool to a model.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is a normalized invocation, always in XML-protocol-compatible
// shape regardless of whether the backend produced it natively or a
// textual parse recovered it from the model's prose.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Capabilities reports what a backend/model combination supports.
type Capabilities struct {
	Streaming        bool
	Multimodal       bool
	ThinkingDisplay  bool
	FunctionCalling  bool
}

// Metrics is a point-in-time snapshot of backend usage.
type Metrics struct {
	RequestCount int64
	ErrorCount   int64
	TotalTokens  int64
}

// GenerateRequest carries one turn's model input.
type GenerateRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolDef
	Temperature float64
	MaxTokens   int
}

// GenerateResult is the non-streaming response.
type GenerateResult struct {
	Content   string
	ToolCalls []ToolCall
	Thinking  string
}

// EventType enumerates the streaming protocol's event vocabulary.
type EventType string

const (
	EventThinking     EventType = "thinking"
	EventContent      EventType = "content"
	EventToolCallStart EventType = "tool_call_start"
	EventToolCallEnd   EventType = "tool_call_end"
	EventError        EventType = "error"
	EventIntent       EventType = "intent"
	EventPlan         EventType = "plan"
	EventProgress     EventType = "progress"
	EventHeartbeat    EventType = "heartbeat"
	EventWarning      EventType = "warning"
	EventEnd          EventType = "end"
)

// AgentEvent is one increment of a streaming exchange.
type AgentEvent struct {
	Type     EventType `json:"type"`
	Delta    string    `json:"delta,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// LlmRuntime is the capability surface Session Core dispatches against.
// Concrete backends (Ollama, OpenAI, Anthropic, Google) each implement
// this uniformly so the session layer never branches on provider.
type LlmRuntime interface {
	Name() string
	Capabilities(model string) Capabilities
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
	GenerateStream(ctx context.Context, req GenerateRequest) (<-chan AgentEvent, error)
	Metrics() Metrics
}
