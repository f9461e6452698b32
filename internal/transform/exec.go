package transform

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/neomind/edge/internal/mdl"
	"github.com/neomind/edge/internal/neoerr"
)

// execContext threads the decoded payload root, cross-operation named
// values, and the accumulated emission list through one transform's
// operation tree.
type execContext struct {
	root    any
	vars    map[string]any
	emitted []EmittedMetric
	warn    []string
}

func (c *execContext) emit(name string, v any) {
	if name == "" {
		return
	}
	c.emitted = append(c.emitted, EmittedMetric{Name: name, Value: mdl.FromNative(v)})
	c.vars[name] = v
}

func (c *execContext) env() map[string]any {
	env := map[string]any{}
	if m, ok := c.root.(map[string]any); ok {
		for k, v := range m {
			env[k] = v
		}
	}
	for k, v := range c.vars {
		env[k] = v
	}
	return env
}

// execOperations runs a sequence of operations against a shared context
// and returns the value of the last operation, used by If's Then/Else
// bodies.
func execOperations(ops []Operation, c *execContext) (any, error) {
	var last any
	for _, op := range ops {
		v, err := execOperation(op, c)
		if err != nil {
			return nil, err
		}
		last = v
	}
	return last, nil
}

func execOperation(op Operation, c *execContext) (any, error) {
	switch op.Kind {
	case OpExtract, OpSingle:
		v, ok := lookupPath(c.root, op.From)
		if !ok {
			return nil, neoerr.Validationf("extract: path %q not found", op.From)
		}
		if op.AsType != "" {
			coerced, err := mdl.Coerce(mdl.FromNative(v), mdl.DataType(op.AsType))
			if err != nil {
				return nil, err
			}
			v = coerced.Native()
		}
		c.emit(op.Output, v)
		return v, nil

	case OpMap:
		arr, ok := lookupPath(c.root, op.Over).([]any)
		if !ok {
			return nil, neoerr.Validationf("map: %q is not an array", op.Over)
		}
		var results []any
		for i, item := range arr {
			itemCtx := map[string]any{"item": item, "index": i}
			if op.Filter != "" {
				keep, err := evalBoolExpr(op.Filter, flattenEnv(itemCtx))
				if err != nil || !keep {
					continue
				}
			}
			results = append(results, substituteTemplate(op.Template, itemCtx))
		}
		c.emit(op.Output, results)
		return results, nil

	case OpReduce, OpArrayAggregation, OpTimeSeriesAggregation:
		arr, ok := lookupPath(c.root, op.Over).([]any)
		if !ok {
			return nil, neoerr.Validationf("reduce: %q is not an array", op.Over)
		}
		values := make([]float64, 0, len(arr))
		for _, item := range arr {
			v := item
			if op.Value != "" {
				if lv, ok := lookupPath(item, op.Value); ok {
					v = lv
				}
			}
			f, ok := asFloat(v)
			if !ok {
				continue
			}
			values = append(values, f)
		}
		result, err := aggregate(op.Using, values, len(arr))
		if err != nil {
			return nil, err
		}
		c.emit(op.Output, result)
		return result, nil

	case OpFormat:
		ctx := c.env()
		result := substituteTemplate(op.Template, ctx)
		c.emit(op.Output, result)
		return result, nil

	case OpCompute:
		result, err := evalComputeExpr(op.Expression, c)
		if err != nil {
			return nil, err
		}
		c.emit(op.Output, result)
		return result, nil

	case OpPipeline:
		sub := &execContext{root: c.root, vars: c.vars, emitted: c.emitted, warn: c.warn}
		cur := c.root
		var last any
		for _, step := range op.Steps {
			sub.root = cur
			v, err := execOperation(step, sub)
			if err != nil {
				return nil, err
			}
			last = v
			cur = v
		}
		c.emitted = sub.emitted
		c.warn = sub.warn
		if op.Output != "" {
			c.emit(op.Output, last)
		}
		return last, nil

	case OpFork:
		for _, branch := range op.Branches {
			if _, err := execOperation(branch, c); err != nil {
				c.warn = append(c.warn, err.Error())
			}
		}
		return nil, nil

	case OpIf:
		ok, err := evalBoolExpr(op.Condition, c.env())
		if err != nil {
			return nil, err
		}
		var result any
		if ok {
			result, err = execOperations(op.Then, c)
		} else {
			result, err = execOperations(op.Else, c)
		}
		if err != nil {
			return nil, err
		}
		if op.Output != "" {
			c.emit(op.Output, result)
		}
		return result, nil

	case OpGroupBy:
		arr, ok := lookupPath(c.root, op.Over).([]any)
		if !ok {
			return nil, neoerr.Validationf("group_by: %q is not an array", op.Over)
		}
		groups := map[string][]any{}
		var order []string
		for _, item := range arr {
			kv, ok := lookupPath(item, op.Key)
			if !ok {
				continue
			}
			gk := stringify(kv)
			if _, seen := groups[gk]; !seen {
				order = append(order, gk)
			}
			groups[gk] = append(groups[gk], item)
		}
		for _, gk := range order {
			items := groups[gk]
			values := make([]float64, 0, len(items))
			for _, item := range items {
				v := item
				if op.Value != "" {
					if lv, ok := lookupPath(item, op.Value); ok {
						v = lv
					}
				}
				f, ok := asFloat(v)
				if !ok {
					continue
				}
				values = append(values, f)
			}
			result, err := aggregate(op.Using, values, len(items))
			if err != nil {
				continue
			}
			c.emit(op.Output+"."+gk, result)
		}
		return nil, nil

	case OpDecode:
		v, ok := lookupPath(c.root, op.From)
		if !ok {
			return nil, neoerr.Validationf("decode: path %q not found", op.From)
		}
		decoded, err := decodeValue(op.Format, stringify(v))
		if err != nil {
			return nil, err
		}
		c.emit(op.Output, decoded)
		return decoded, nil

	case OpEncode:
		v, ok := lookupPath(c.root, op.From)
		if !ok {
			return nil, neoerr.Validationf("encode: path %q not found", op.From)
		}
		encoded, err := encodeValue(op.Format, v)
		if err != nil {
			return nil, err
		}
		c.emit(op.Output, encoded)
		return encoded, nil

	case OpReference:
		v, ok := lookupPath(c.root, op.From)
		if !ok {
			return nil, neoerr.Validationf("reference: path %q not found", op.From)
		}
		mapped, ok := op.ReferenceTable[stringify(v)]
		if !ok {
			return nil, neoerr.Validationf("reference: no mapping for %q", stringify(v))
		}
		c.emit(op.Output, mapped)
		return mapped, nil

	case OpCustom:
		c.warn = append(c.warn, "custom operation "+op.Output+" is not implemented; skipped")
		return nil, nil

	case OpMultiOutput:
		for _, step := range op.Steps {
			if _, err := execOperation(step, c); err != nil {
				c.warn = append(c.warn, err.Error())
			}
		}
		return nil, nil

	default:
		return nil, neoerr.Validationf("unknown operation kind %q", op.Kind)
	}
}

var braceVarPattern = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)
var aggCallPattern = regexp.MustCompile(`(\w+)\(\$\.([\w.]+)\)`)

// stripBraces rewrites {{var}} tokens to bare identifiers so expr-lang can
// parse the expression; dotted paths become underscored env keys that
// buildExprEnv mirrors in.
func stripBraces(expression string) (string, map[string]string) {
	aliases := map[string]string{}
	out := braceVarPattern.ReplaceAllStringFunc(expression, func(match string) string {
		groups := braceVarPattern.FindStringSubmatch(match)
		path := groups[1]
		alias := "v_" + strings.ReplaceAll(path, ".", "_")
		aliases[alias] = path
		return alias
	})
	return out, aliases
}

func resolveAggregateCalls(expression string, root any) string {
	return aggCallPattern.ReplaceAllStringFunc(expression, func(match string) string {
		groups := aggCallPattern.FindStringSubmatch(match)
		fn, path := groups[1], groups[2]
		arr, ok := lookupPath(root, path).([]any)
		if !ok {
			return "0"
		}
		values := make([]float64, 0, len(arr))
		for _, item := range arr {
			if f, ok := asFloat(item); ok {
				values = append(values, f)
			}
		}
		result, err := aggregate(Aggregation(fn), values, len(arr))
		if err != nil {
			return "0"
		}
		return strconv.FormatFloat(result, 'g', -1, 64)
	})
}

func buildExprEnv(expression string, env map[string]any) (string, map[string]any) {
	withAgg := resolveAggregateCalls(expression, env)
	stripped, aliases := stripBraces(withAgg)
	out := map[string]any{}
	for k, v := range env {
		out[k] = v
	}
	for alias, path := range aliases {
		if v, ok := lookupPath(env, path); ok {
			out[alias] = v
		} else {
			out[alias] = nil
		}
	}
	return stripped, out
}

func evalComputeExpr(expression string, c *execContext) (float64, error) {
	stripped, env := buildExprEnv(expression, c.env())
	program, err := expr.Compile(stripped, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return 0, neoerr.Validationf("compute expression %q: %v", expression, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return 0, neoerr.Validationf("compute expression %q: %v", expression, err)
	}
	f, ok := asFloat(out)
	if !ok {
		return 0, neoerr.Validationf("compute expression %q did not yield a number", expression)
	}
	return f, nil
}

func evalBoolExpr(expression string, env map[string]any) (bool, error) {
	stripped, fullEnv := buildExprEnv(expression, env)
	program, err := expr.Compile(stripped, expr.Env(fullEnv), expr.AllowUndefinedVariables())
	if err != nil {
		return false, neoerr.Validationf("condition %q: %v", expression, err)
	}
	out, err := expr.Run(program, fullEnv)
	if err != nil {
		return false, neoerr.Validationf("condition %q: %v", expression, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, neoerr.Validationf("condition %q did not yield a boolean", expression)
	}
	return b, nil
}
