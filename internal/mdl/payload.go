package mdl

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/neomind/edge/internal/neoerr"
)

var placeholderPattern = regexp.MustCompile(`\$\{\{\s*(\w+)\s*\}\}|\$\{\s*(\w+)\s*\}`)
var remainingPlaceholder = regexp.MustCompile(`\$\{`)

// BuildCommandPayload assembles a command's payload template by first
// substituting fixed_values, then user-provided params, formatting each
// value positionally by Go type: integers/floats/booleans as literals,
// strings double-quoted, arrays as JSON, binary rejected, nil as null.
func BuildCommandPayload(cmd CommandDefinition, params map[string]any) (string, error) {
	declared := map[string]ParameterDefinition{}
	for _, p := range cmd.Parameters {
		declared[p.Name] = p
	}

	merged := map[string]any{}
	for k, v := range params {
		merged[k] = v
	}
	for k, v := range cmd.FixedValues {
		merged[k] = v
	}

	for _, p := range declared {
		if p.Required {
			if _, ok := merged[p.Name]; !ok {
				return "", neoerr.Validationf("command %q: missing required parameter %q", cmd.Name, p.Name)
			}
		}
	}

	out := placeholderPattern.ReplaceAllStringFunc(cmd.PayloadTemplate, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		name := groups[1]
		if name == "" {
			name = groups[2]
		}
		val, ok := merged[name]
		if !ok {
			return match
		}
		rendered, err := formatValueLiteral(val)
		if err != nil {
			return match
		}
		return rendered
	})

	if remainingPlaceholder.MatchString(out) {
		return "", neoerr.Validationf("command %q: unresolved placeholder in payload", cmd.Name)
	}

	trimmed := strings.TrimSpace(out)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var js any
		if err := json.Unmarshal([]byte(out), &js); err != nil {
			return "", neoerr.Validationf("command %q: assembled payload is not valid JSON: %v", cmd.Name, err)
		}
	}

	return out, nil
}

func formatValueLiteral(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "null", nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	case int, int32, int64, float32, float64:
		buf, err := json.Marshal(t)
		return string(buf), err
	case string:
		buf, err := json.Marshal(t)
		return string(buf), err
	case []byte:
		return "", neoerr.Validation("binary values are not permitted in command payloads")
	default:
		buf, err := json.Marshal(t)
		if err != nil {
			return "", neoerr.Serialization("marshal parameter value", err)
		}
		return string(buf), nil
	}
}
