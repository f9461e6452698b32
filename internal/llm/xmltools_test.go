package llm

import "testing"

func TestParseXMLToolCallsRecoversFromProse(t *testing.T) {
	text := `I'll check that for you.

<tool_calls><invoke name="get_device_status"><parameter name="device_id">dev-1</parameter></invoke></tool_calls>`

	calls := ParseXMLToolCalls(text)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Name != "get_device_status" {
		t.Fatalf("unexpected name %q", calls[0].Name)
	}
	if calls[0].Arguments["device_id"] != "dev-1" {
		t.Fatalf("unexpected arguments %v", calls[0].Arguments)
	}
}

func TestParseXMLToolCallsNoBlock(t *testing.T) {
	if calls := ParseXMLToolCalls("just plain text"); calls != nil {
		t.Fatalf("expected nil, got %v", calls)
	}
}

func TestRenderXMLToolCallsRoundTrip(t *testing.T) {
	calls := []ToolCall{{Name: "set_thermostat", Arguments: map[string]any{"target": "21"}}}
	rendered := RenderXMLToolCalls(calls)

	parsed := ParseXMLToolCalls(rendered)
	if len(parsed) != 1 || parsed[0].Name != "set_thermostat" {
		t.Fatalf("round trip failed: %v", parsed)
	}
	if parsed[0].Arguments["target"] != "21" {
		t.Fatalf("unexpected arguments %v", parsed[0].Arguments)
	}
}

func TestBuildToolPreludeListsTools(t *testing.T) {
	prelude := BuildToolPrelude([]ToolDef{{Name: "list_devices", Description: "lists known devices"}})
	if prelude == "" {
		t.Fatal("expected non-empty prelude")
	}
}

func TestModelSupportsNativeTools(t *testing.T) {
	if !modelSupportsNativeTools("qwen2.5:14b") {
		t.Fatal("expected qwen2.5 to support native tools")
	}
	if modelSupportsNativeTools("llama2:7b") {
		t.Fatal("expected llama2 to fall back to textual prelude")
	}
}
