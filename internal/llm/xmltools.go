package llm

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// BuildToolPrelude renders a textual "available tools" block for models
// without native tool-calling support, instructing them to answer using
// the <tool_calls> XML protocol.
func BuildToolPrelude(tools []ToolDef) string {
	if len(tools) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("You have access to the following tools. To call one, respond with:\n")
	sb.WriteString("<tool_calls><invoke name=\"tool_name\"><parameter name=\"param\">value</parameter></invoke></tool_calls>\n\n")
	sb.WriteString("Available tools:\n")
	for _, t := range tools {
		fmt.Fprintf(&sb, "- %s: %s\n", t.Name, t.Description)
	}
	return sb.String()
}

type xmlToolCalls struct {
	XMLName xml.Name    `xml:"tool_calls"`
	Invokes []xmlInvoke `xml:"invoke"`
}

type xmlInvoke struct {
	Name       string         `xml:"name,attr"`
	Parameters []xmlParameter `xml:"parameter"`
}

type xmlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// ParseXMLToolCalls extracts every <tool_calls> block from free-form
// model text and normalizes it into ToolCall values.
func ParseXMLToolCalls(text string) []ToolCall {
	var calls []ToolCall
	rest := text
	for {
		start := strings.Index(rest, "<tool_calls>")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], "</tool_calls>")
		if end < 0 {
			break
		}
		blockEnd := start + end + len("</tool_calls>")
		block := rest[start:blockEnd]
		rest = rest[blockEnd:]

		var parsed xmlToolCalls
		if err := xml.Unmarshal([]byte(block), &parsed); err != nil {
			continue
		}
		for _, inv := range parsed.Invokes {
			args := map[string]any{}
			for _, p := range inv.Parameters {
				args[p.Name] = strings.TrimSpace(p.Value)
			}
			calls = append(calls, ToolCall{ID: fmt.Sprintf("call_%d", len(calls)), Name: inv.Name, Arguments: args})
		}
	}
	return calls
}

// RenderXMLToolCalls converts structured tool calls (as returned by a
// provider's native tool-calling field) into the same XML form the
// textual-prelude path produces, so callers never branch on origin.
func RenderXMLToolCalls(calls []ToolCall) string {
	if len(calls) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("<tool_calls>")
	for _, c := range calls {
		fmt.Fprintf(&sb, "<invoke name=%q>", c.Name)
		for k, v := range c.Arguments {
			fmt.Fprintf(&sb, "<parameter name=%q>%v</parameter>", k, v)
		}
		sb.WriteString("</invoke>")
	}
	sb.WriteString("</tool_calls>")
	return sb.String()
}
