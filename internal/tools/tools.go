// Package tools implements the fixed set of callable tools Session Core
// exposes to a model: device control, rule enable/disable, metric range
// queries, and device listing. Arguments arrive as a map decoded from
// either a JSON object or a JSON-encoded string, matching what different
// backends put in a tool call's argument field.
package tools

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/neomind/edge/internal/mdl"
	"github.com/neomind/edge/internal/neoerr"
	"github.com/neomind/edge/internal/rules"
	"github.com/neomind/edge/internal/semantic"
	"github.com/neomind/edge/internal/timeseries"
)

// DeviceCommander is the capability a tool uses to push a command
// downstream; satisfied structurally by *mqttadapter.Adapter.
type DeviceCommander interface {
	SendCommand(deviceID, command, payload string, topic *string) error
}

// DeviceLister is the capability a tool uses to enumerate devices;
// satisfied structurally by *mdl.Registry.
type DeviceLister interface {
	ListDevices() []*mdl.DeviceInstance
}

// RuleController is the capability a tool uses to enable/disable a rule;
// satisfied structurally by *rules.Scheduler.
type RuleController interface {
	SetState(id string, state rules.RuleState) error
}

// MetricQuerier is the capability a tool uses to read historical
// telemetry; satisfied structurally by *timeseries.Store.
type MetricQuerier interface {
	Query(deviceID, metric string, tStart, tEnd int64) ([]timeseries.DataPoint, error)
}

// Registry holds the fixed tool set and the capabilities it dispatches
// against. Device references in arguments are rewritten through the
// semantic resolver before execution; rule ids are used as given.
type Registry struct {
	commander DeviceCommander
	devices   DeviceLister
	rulesCtl  RuleController
	metrics   MetricQuerier
	resolver  *semantic.Resolver
}

func NewRegistry(commander DeviceCommander, devices DeviceLister, rulesCtl RuleController, metrics MetricQuerier, resolver *semantic.Resolver) *Registry {
	return &Registry{commander: commander, devices: devices, rulesCtl: rulesCtl, metrics: metrics, resolver: resolver}
}

// Defs returns the tool definitions to hand to an LlmRuntime.
func Defs() []ToolDefLike {
	return []ToolDefLike{
		{
			Name:        "control_device",
			Description: "Send a command to a device, e.g. turning a switch on or setting a target value.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"device":  map[string]any{"type": "string", "description": "device name or id"},
					"command": map[string]any{"type": "string"},
					"payload": map[string]any{"type": "string"},
				},
				"required": []string{"device", "command"},
			},
		},
		{
			Name:        "set_rule_state",
			Description: "Enable, pause, or disable an automation rule.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"rule_id": map[string]any{"type": "string"},
					"state":   map[string]any{"type": "string", "enum": []string{"active", "paused", "disabled"}},
				},
				"required": []string{"rule_id", "state"},
			},
		},
		{
			Name:        "query_metric_range",
			Description: "Fetch historical values for a device metric over a time window.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"device":      map[string]any{"type": "string"},
					"metric":      map[string]any{"type": "string"},
					"start_unix":  map[string]any{"type": "integer"},
					"end_unix":    map[string]any{"type": "integer"},
				},
				"required": []string{"device", "metric"},
			},
		},
		{
			Name:        "list_devices",
			Description: "List every registered device.",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}
}

// ToolDefLike mirrors llm.ToolDef so this package does not import
// internal/llm; session converts it with toLLMTools.
type ToolDefLike struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// DecodeArgs accepts a tool call's raw argument payload in either form the
// spec allows: an already-decoded object, or a string holding JSON.
func DecodeArgs(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		if v == "" {
			return map[string]any{}, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, neoerr.Validation(fmt.Sprintf("tool arguments %q are not valid JSON", v))
		}
		return out, nil
	default:
		return nil, neoerr.Validationf("unsupported tool argument encoding %T", raw)
	}
}

// Execute dispatches one tool call by name and returns a JSON-serializable
// result. Device-name arguments are rewritten to canonical ids first;
// rule_id is passed through unchanged.
func (r *Registry) Execute(name string, args map[string]any) (any, error) {
	switch name {
	case "control_device":
		r.resolver.RewriteDeviceArg(args, "device", "device_id")
		return r.controlDevice(args)
	case "set_rule_state":
		return r.setRuleState(args)
	case "query_metric_range":
		r.resolver.RewriteDeviceArg(args, "device", "device_id")
		return r.queryMetricRange(args)
	case "list_devices":
		return r.listDevices(), nil
	default:
		return nil, neoerr.NotFoundf("unknown tool %q", name)
	}
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok
}

func (r *Registry) controlDevice(args map[string]any) (any, error) {
	deviceID, ok := stringArg(args, "device_id")
	if !ok {
		deviceID, ok = stringArg(args, "device")
	}
	if !ok || deviceID == "" {
		return nil, neoerr.Validation("control_device requires a device")
	}
	command, ok := stringArg(args, "command")
	if !ok || command == "" {
		return nil, neoerr.Validation("control_device requires a command")
	}
	payload, _ := stringArg(args, "payload")

	if err := r.commander.SendCommand(deviceID, command, payload, nil); err != nil {
		return nil, err
	}
	return map[string]any{"status": "sent", "device_id": deviceID, "command": command}, nil
}

func (r *Registry) setRuleState(args map[string]any) (any, error) {
	ruleID, ok := stringArg(args, "rule_id")
	if !ok || ruleID == "" {
		return nil, neoerr.Validation("set_rule_state requires a rule_id")
	}
	state, ok := stringArg(args, "state")
	if !ok || state == "" {
		return nil, neoerr.Validation("set_rule_state requires a state")
	}
	if err := r.rulesCtl.SetState(ruleID, rules.RuleState(state)); err != nil {
		return nil, err
	}
	return map[string]any{"status": "updated", "rule_id": ruleID, "state": state}, nil
}

func (r *Registry) queryMetricRange(args map[string]any) (any, error) {
	deviceID, ok := stringArg(args, "device_id")
	if !ok {
		deviceID, ok = stringArg(args, "device")
	}
	if !ok || deviceID == "" {
		return nil, neoerr.Validation("query_metric_range requires a device")
	}
	metric, ok := stringArg(args, "metric")
	if !ok || metric == "" {
		return nil, neoerr.Validation("query_metric_range requires a metric")
	}

	end := time.Now().Unix()
	start := end - 3600
	if v, ok := args["start_unix"].(float64); ok {
		start = int64(v)
	}
	if v, ok := args["end_unix"].(float64); ok {
		end = int64(v)
	}

	points, err := r.metrics.Query(deviceID, metric, start, end)
	if err != nil {
		return nil, err
	}
	return map[string]any{"device_id": deviceID, "metric": metric, "points": points}, nil
}

func (r *Registry) listDevices() any {
	devices := r.devices.ListDevices()
	out := make([]map[string]any, 0, len(devices))
	for _, d := range devices {
		out = append(out, map[string]any{
			"id":          d.Config.ID,
			"device_type": d.Config.DeviceType,
			"status":      d.Status,
		})
	}
	return out
}
