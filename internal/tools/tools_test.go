package tools

import (
	"testing"

	"github.com/neomind/edge/internal/mdl"
	"github.com/neomind/edge/internal/rules"
	"github.com/neomind/edge/internal/semantic"
	"github.com/neomind/edge/internal/timeseries"
)

type fakeCommander struct {
	lastDevice, lastCommand, lastPayload string
}

func (f *fakeCommander) SendCommand(deviceID, command, payload string, topic *string) error {
	f.lastDevice, f.lastCommand, f.lastPayload = deviceID, command, payload
	return nil
}

type fakeDevices struct{ devices []*mdl.DeviceInstance }

func (f *fakeDevices) ListDevices() []*mdl.DeviceInstance { return f.devices }

type fakeRuleCtl struct {
	lastID    string
	lastState rules.RuleState
}

func (f *fakeRuleCtl) SetState(id string, state rules.RuleState) error {
	f.lastID, f.lastState = id, state
	return nil
}

type fakeMetrics struct{}

func (f *fakeMetrics) Query(deviceID, metric string, tStart, tEnd int64) ([]timeseries.DataPoint, error) {
	return []timeseries.DataPoint{{Timestamp: tStart, Value: mdl.FloatValue(21.5)}}, nil
}

func newTestRegistry() (*Registry, *fakeCommander, *fakeRuleCtl) {
	idx := semantic.NewIndex()
	idx.Add(semantic.ResourceEntry{ID: "dev-living-temp", Name: "living room temperature", Location: "living room", DeviceType: "temperature sensor", Kind: "device"})
	resolver := semantic.NewResolver(idx, semantic.NewAliasTables())

	cmd := &fakeCommander{}
	ruleCtl := &fakeRuleCtl{}
	reg := NewRegistry(cmd, &fakeDevices{}, ruleCtl, &fakeMetrics{}, resolver)
	return reg, cmd, ruleCtl
}

func TestDecodeArgsAcceptsObjectAndString(t *testing.T) {
	obj, err := DecodeArgs(map[string]any{"a": "b"})
	if err != nil || obj["a"] != "b" {
		t.Fatalf("object form failed: %v %v", obj, err)
	}

	str, err := DecodeArgs(`{"a":"b"}`)
	if err != nil || str["a"] != "b" {
		t.Fatalf("string form failed: %v %v", str, err)
	}

	empty, err := DecodeArgs(nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("nil form failed: %v %v", empty, err)
	}
}

func TestDecodeArgsRejectsInvalidJSON(t *testing.T) {
	if _, err := DecodeArgs("not json"); err == nil {
		t.Fatal("expected error for invalid JSON string")
	}
}

func TestControlDeviceRewritesDeviceName(t *testing.T) {
	reg, cmd, _ := newTestRegistry()
	_, err := reg.Execute("control_device", map[string]any{"device": "living room temperature", "command": "calibrate"})
	if err != nil {
		t.Fatal(err)
	}
	if cmd.lastDevice != "dev-living-temp" {
		t.Fatalf("expected resolved device id, got %q", cmd.lastDevice)
	}
	if cmd.lastCommand != "calibrate" {
		t.Fatalf("unexpected command %q", cmd.lastCommand)
	}
}

func TestSetRuleState(t *testing.T) {
	reg, _, ruleCtl := newTestRegistry()
	_, err := reg.Execute("set_rule_state", map[string]any{"rule_id": "rule-1", "state": "paused"})
	if err != nil {
		t.Fatal(err)
	}
	if ruleCtl.lastID != "rule-1" || ruleCtl.lastState != rules.StatePaused {
		t.Fatalf("unexpected rule controller state: %v %v", ruleCtl.lastID, ruleCtl.lastState)
	}
}

func TestControlDeviceRequiresCommand(t *testing.T) {
	reg, _, _ := newTestRegistry()
	if _, err := reg.Execute("control_device", map[string]any{"device": "dev-1"}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestUnknownToolReturnsNotFound(t *testing.T) {
	reg, _, _ := newTestRegistry()
	if _, err := reg.Execute("nonexistent_tool", map[string]any{}); err == nil {
		t.Fatal("expected not found error")
	}
}
