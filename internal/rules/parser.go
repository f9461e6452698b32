package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/neomind/edge/internal/neoerr"
)

// Parse compiles the human-authored DSL surface form into a Rule:
//
//	RULE "name"
//	WHEN <condition>
//	[FOR <duration>]
//	DO
//	  <action>
//	  ...
//	END
func Parse(src string) (*Rule, error) {
	lines := splitNonEmptyLines(src)
	if len(lines) == 0 {
		return nil, neoerr.Validation("empty rule source")
	}

	idx := 0
	name, err := parseRuleHeader(lines[idx])
	if err != nil {
		return nil, err
	}
	idx++

	if idx >= len(lines) || !strings.HasPrefix(lines[idx], "WHEN ") {
		return nil, neoerr.Validation("expected WHEN clause")
	}
	condSrc := strings.TrimPrefix(lines[idx], "WHEN ")
	idx++

	var forDur time.Duration
	if idx < len(lines) && strings.HasPrefix(lines[idx], "FOR ") {
		d, err := parseDuration(strings.TrimPrefix(lines[idx], "FOR "))
		if err != nil {
			return nil, err
		}
		forDur = d
		idx++
	}

	if idx >= len(lines) || lines[idx] != "DO" {
		return nil, neoerr.Validation("expected DO block")
	}
	idx++

	var actionLines []string
	for idx < len(lines) && lines[idx] != "END" {
		actionLines = append(actionLines, lines[idx])
		idx++
	}
	if idx >= len(lines) {
		return nil, neoerr.Validation("missing END")
	}

	cond, err := parseCondition(condSrc)
	if err != nil {
		return nil, err
	}

	actions := make([]Action, 0, len(actionLines))
	for _, al := range actionLines {
		a, err := parseAction(al)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}

	return &Rule{
		Metadata: AutomationMetadata{Name: name, Enabled: true},
		Trigger:  Trigger{Kind: TriggerManual},
		Condition: cond,
		For:       forDur,
		Actions:   actions,
		State:     StateActive,
	}, nil
}

func splitNonEmptyLines(src string) []string {
	var out []string
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

var ruleHeaderPattern = regexp.MustCompile(`^RULE\s+"([^"]*)"$`)

func parseRuleHeader(line string) (string, error) {
	m := ruleHeaderPattern.FindStringSubmatch(line)
	if m == nil {
		return "", neoerr.Validationf("invalid RULE header: %q", line)
	}
	return m[1], nil
}

var durationPattern = regexp.MustCompile(`^(\d+)\s*(milliseconds?|seconds?|minutes?|hours?)$`)

func parseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, neoerr.Validationf("invalid duration: %q", s)
	}
	n, _ := strconv.Atoi(m[1])
	switch {
	case strings.HasPrefix(m[2], "millisecond"):
		return time.Duration(n) * time.Millisecond, nil
	case strings.HasPrefix(m[2], "second"):
		return time.Duration(n) * time.Second, nil
	case strings.HasPrefix(m[2], "minute"):
		return time.Duration(n) * time.Minute, nil
	case strings.HasPrefix(m[2], "hour"):
		return time.Duration(n) * time.Hour, nil
	default:
		return 0, neoerr.Validationf("invalid duration unit: %q", m[2])
	}
}

// parseCondition parses a (possibly AND/OR/NOT-combined) condition
// expression. Precedence, lowest to highest: OR, AND, NOT, atom.
func parseCondition(src string) (Condition, error) {
	toks := tokenizeCondition(src)
	p := &condParser{toks: toks}
	c, err := p.parseOr()
	if err != nil {
		return Condition{}, err
	}
	if p.pos != len(p.toks) {
		return Condition{}, neoerr.Validationf("unexpected trailing tokens in condition: %q", src)
	}
	return c, nil
}

type condParser struct {
	toks []string
	pos  int
}

func (p *condParser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos]
}

func (p *condParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *condParser) parseOr() (Condition, error) {
	left, err := p.parseAnd()
	if err != nil {
		return Condition{}, err
	}
	children := []Condition{left}
	for strings.EqualFold(p.peek(), "OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return Condition{}, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return Condition{Kind: CondOr, Children: children}, nil
}

func (p *condParser) parseAnd() (Condition, error) {
	left, err := p.parseUnary()
	if err != nil {
		return Condition{}, err
	}
	children := []Condition{left}
	for strings.EqualFold(p.peek(), "AND") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return Condition{}, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return Condition{Kind: CondAnd, Children: children}, nil
}

func (p *condParser) parseUnary() (Condition, error) {
	if strings.EqualFold(p.peek(), "NOT") {
		p.next()
		child, err := p.parseUnary()
		if err != nil {
			return Condition{}, err
		}
		return Condition{Kind: CondNot, Child: &child}, nil
	}
	if p.peek() == "(" {
		p.next()
		c, err := p.parseOr()
		if err != nil {
			return Condition{}, err
		}
		if p.peek() != ")" {
			return Condition{}, neoerr.Validation("expected closing paren in condition")
		}
		p.next()
		return c, nil
	}
	return p.parseAtom()
}

var compareAtomPattern = regexp.MustCompile(`^([\w.]+)\.([\w.]+)\s*(>=|<=|==|!=|>|<)\s*(-?[\d.]+)$`)
var betweenAtomPattern = regexp.MustCompile(`^([\w.]+)\.([\w.]+)\s+BETWEEN\s+(-?[\d.]+)\s+AND\s+(-?[\d.]+)$`)

func (p *condParser) parseAtom() (Condition, error) {
	// atoms are not pre-tokenized into single tokens (they contain
	// spaces/dots/operators); re-join consecutive tokens up to the next
	// boolean keyword or closing paren.
	var parts []string
	hasBetween := false
	betweenAndConsumed := false
	for {
		t := p.peek()
		if t == "" || t == ")" || strings.EqualFold(t, "OR") {
			break
		}
		if strings.EqualFold(t, "AND") {
			if hasBetween && !betweenAndConsumed {
				betweenAndConsumed = true
				parts = append(parts, p.next())
				continue
			}
			break
		}
		if strings.EqualFold(t, "BETWEEN") {
			hasBetween = true
		}
		parts = append(parts, p.next())
	}
	atom := strings.Join(parts, " ")

	if m := betweenAtomPattern.FindStringSubmatch(atom); m != nil {
		min, _ := strconv.ParseFloat(m[3], 64)
		max, _ := strconv.ParseFloat(m[4], 64)
		return Condition{Kind: CondRange, DeviceID: m[1], Metric: m[2], Min: min, Max: max}, nil
	}
	if m := compareAtomPattern.FindStringSubmatch(atom); m != nil {
		val, _ := strconv.ParseFloat(m[4], 64)
		return Condition{Kind: CondCompare, DeviceID: m[1], Metric: m[2], Op: CompareOp(m[3]), Value: val}, nil
	}
	return Condition{}, neoerr.Validationf("invalid condition atom: %q", atom)
}

// tokenizeCondition splits on whitespace while keeping parens as their
// own tokens and comparison operators attached to their operands (the
// atom patterns above re-join and match the whole fragment).
func tokenizeCondition(src string) []string {
	src = strings.ReplaceAll(src, "(", " ( ")
	src = strings.ReplaceAll(src, ")", " ) ")
	fields := strings.Fields(src)
	return fields
}

var quotedStringPattern = regexp.MustCompile(`"([^"]*)"`)

func parseAction(line string) (Action, error) {
	fields := strings.SplitN(line, " ", 2)
	verb := strings.ToUpper(fields[0])
	rest := ""
	if len(fields) > 1 {
		rest = strings.TrimSpace(fields[1])
	}

	switch verb {
	case "NOTIFY":
		msg, remainder := takeQuotedString(rest)
		chans := parseBracketList(remainder)
		return Action{Kind: ActionNotify, Message: msg, Channels: chans}, nil

	case "EXECUTE":
		return parseExecuteAction(rest)

	case "SET":
		return parseSetAction(rest)

	case "LOG":
		parts := strings.SplitN(rest, ",", 2)
		if len(parts) < 2 {
			return Action{}, neoerr.Validationf("invalid LOG action: %q", line)
		}
		level := strings.TrimSpace(parts[0])
		msg, severityPart := takeQuotedString(strings.TrimSpace(parts[1]))
		severity := parseKeyValueSuffix(severityPart, "severity")
		return Action{Kind: ActionLog, Level: level, Message: msg, Severity: severity}, nil

	case "ALERT":
		title, remainder := takeQuotedString(rest)
		msg, remainder2 := takeQuotedString(remainder)
		severity := parseKeyValueSuffix(remainder2, "severity")
		return Action{Kind: ActionAlert, Title: title, Message: msg, Severity: severity}, nil

	case "DELAY":
		d, err := parseDuration(rest)
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: ActionDelay, Duration: d}, nil

	case "HTTP":
		return parseHTTPAction(rest)

	default:
		return Action{}, neoerr.Validationf("unknown action verb: %q", verb)
	}
}

func takeQuotedString(s string) (string, string) {
	m := quotedStringPattern.FindStringSubmatchIndex(s)
	if m == nil {
		return "", s
	}
	value := s[m[2]:m[3]]
	remainder := strings.TrimSpace(s[m[1]:])
	return value, remainder
}

func parseBracketList(s string) []string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		return nil
	}
	end := strings.Index(s, "]")
	if end < 0 {
		return nil
	}
	inner := s[1:end]
	if strings.TrimSpace(inner) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(inner, ",") {
		out = append(out, strings.TrimSpace(part))
	}
	return out
}

func parseKeyValueSuffix(s, key string) string {
	s = strings.TrimSpace(s)
	prefix := key + "="
	if strings.HasPrefix(s, prefix) {
		return strings.Trim(strings.TrimPrefix(s, prefix), `"`)
	}
	return ""
}

var executePattern = regexp.MustCompile(`^([\w.:]+)\.(\w+)\(([^)]*)\)$`)

func parseExecuteAction(rest string) (Action, error) {
	m := executePattern.FindStringSubmatch(rest)
	if m == nil {
		return Action{}, neoerr.Validationf("invalid EXECUTE action: %q", rest)
	}
	params := map[string]any{}
	if strings.TrimSpace(m[3]) != "" {
		for _, kv := range strings.Split(m[3], ",") {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				continue
			}
			params[strings.TrimSpace(parts[0])] = parseLiteral(strings.TrimSpace(parts[1]))
		}
	}
	return Action{Kind: ActionExecute, DeviceID: m[1], Command: m[2], Params: params}, nil
}

var setPattern = regexp.MustCompile(`^([\w.:]+)\.(\w+)\s*=\s*(.+)$`)

func parseSetAction(rest string) (Action, error) {
	m := setPattern.FindStringSubmatch(rest)
	if m == nil {
		return Action{}, neoerr.Validationf("invalid SET action: %q", rest)
	}
	return Action{Kind: ActionSet, DeviceID: m[1], Property: m[2], Value: parseLiteral(strings.TrimSpace(m[3]))}, nil
}

func parseLiteral(s string) any {
	if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return strings.Trim(s, `"`)
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func parseHTTPAction(rest string) (Action, error) {
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return Action{}, neoerr.Validationf("invalid HTTP action: %q", rest)
	}
	method := strings.ToUpper(fields[0])
	url := fields[1]

	headers := map[string]string{}
	body := ""
	remainder := strings.TrimSpace(strings.TrimPrefix(rest, fmt.Sprintf("%s %s", fields[0], fields[1])))
	if strings.HasPrefix(remainder, "[") {
		end := strings.Index(remainder, "]")
		if end > 0 {
			for _, kv := range strings.Split(remainder[1:end], ",") {
				parts := strings.SplitN(kv, ":", 2)
				if len(parts) == 2 {
					headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
				}
			}
			remainder = strings.TrimSpace(remainder[end+1:])
		}
	}
	body, _ = takeQuotedString(remainder)

	return Action{Kind: ActionHTTP, Method: method, URL: url, Headers: headers, Body: body}, nil
}
