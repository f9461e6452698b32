package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeValueProvider struct {
	values map[string]float64
}

func (f *fakeValueProvider) LatestFloat(deviceID, metric string) (float64, bool) {
	v, ok := f.values[deviceID+"."+metric]
	return v, ok
}

func TestShouldTriggerS2Scenario(t *testing.T) {
	r, err := Parse(`RULE "high"
WHEN sensor_001.temperature > 30
FOR 5 seconds
DO
  NOTIFY "hot"
END`)
	require.NoError(t, err)

	t0 := time.Unix(1_700_000_000, 0)
	vp := &fakeValueProvider{values: map[string]float64{"sensor_001.temperature": 35}}

	fire, err := ShouldTrigger(r, t0, vp)
	require.NoError(t, err)
	require.False(t, fire)

	fire, err = ShouldTrigger(r, t0.Add(2*time.Second), vp)
	require.NoError(t, err)
	require.False(t, fire)

	fire, err = ShouldTrigger(r, t0.Add(4*time.Second), vp)
	require.NoError(t, err)
	require.False(t, fire)

	fire, err = ShouldTrigger(r, t0.Add(6*time.Second), vp)
	require.NoError(t, err)
	require.True(t, fire, "condition true continuously for 6s should trigger once the 5s FOR elapses")

	// Still true past the threshold: must not re-fire without a reset.
	fire, err = ShouldTrigger(r, t0.Add(7*time.Second), vp)
	require.NoError(t, err)
	require.False(t, fire)
}

func TestShouldTriggerResetsForClockOnDrop(t *testing.T) {
	r, err := Parse(`RULE "high"
WHEN sensor_001.temperature > 30
FOR 5 seconds
DO
  NOTIFY "hot"
END`)
	require.NoError(t, err)

	t0 := time.Unix(1_700_000_000, 0)
	vp := &fakeValueProvider{values: map[string]float64{"sensor_001.temperature": 35}}

	_, err = ShouldTrigger(r, t0, vp)
	require.NoError(t, err)

	vp.values["sensor_001.temperature"] = 20
	fire, err := ShouldTrigger(r, t0.Add(3*time.Second), vp)
	require.NoError(t, err)
	require.False(t, fire)

	vp.values["sensor_001.temperature"] = 35
	fire, err = ShouldTrigger(r, t0.Add(4*time.Second), vp)
	require.NoError(t, err)
	require.False(t, fire, "FOR clock must have restarted at the 4s mark")

	fire, err = ShouldTrigger(r, t0.Add(8*time.Second), vp)
	require.NoError(t, err)
	require.False(t, fire, "only 4s elapsed since the restart")

	fire, err = ShouldTrigger(r, t0.Add(9*time.Second), vp)
	require.NoError(t, err)
	require.True(t, fire, "5s elapsed since the 4s restart")
}

func TestShouldTriggerScheduleFiresOnCronCadence(t *testing.T) {
	r := &Rule{
		Metadata: AutomationMetadata{ID: "nightly-report"},
		Trigger:  Trigger{Kind: TriggerSchedule, CronExpr: "* * * * *"},
	}

	t0 := time.Date(2026, 1, 1, 12, 0, 30, 0, time.UTC)

	fire, err := ShouldTrigger(r, t0, nil)
	require.NoError(t, err)
	require.False(t, fire, "first check only seeds the next occurrence")

	fire, err = ShouldTrigger(r, t0.Add(20*time.Second), nil)
	require.NoError(t, err)
	require.False(t, fire, "next minute boundary hasn't arrived yet")

	fire, err = ShouldTrigger(r, t0.Add(45*time.Second), nil)
	require.NoError(t, err)
	require.True(t, fire, "crossed the next minute boundary")

	fire, err = ShouldTrigger(r, t0.Add(46*time.Second), nil)
	require.NoError(t, err)
	require.False(t, fire, "already fired for this occurrence")
}

func TestShouldTriggerScheduleRejectsMissingCron(t *testing.T) {
	r := &Rule{
		Metadata: AutomationMetadata{ID: "broken"},
		Trigger:  Trigger{Kind: TriggerSchedule},
	}
	_, err := ShouldTrigger(r, time.Now(), nil)
	require.Error(t, err)
}

func TestParseRuleWithAndOr(t *testing.T) {
	r, err := Parse(`RULE "combo"
WHEN sensor_001.temperature > 30 AND sensor_001.humidity < 50
DO
  LOG warn, "combo hit"
END`)
	require.NoError(t, err)
	require.Equal(t, "combo", r.Metadata.Name)
	require.Equal(t, CondAnd, r.Condition.Kind)
	require.Len(t, r.Condition.Children, 2)
	require.Equal(t, StateActive, r.State)
	require.Len(t, r.Actions, 1)
	require.Equal(t, ActionLog, r.Actions[0].Kind)
}

func TestParseRuleBetween(t *testing.T) {
	r, err := Parse(`RULE "range"
WHEN sensor_001.temperature BETWEEN 10 AND 20
DO
  NOTIFY "in range"
END`)
	require.NoError(t, err)
	require.Equal(t, CondRange, r.Condition.Kind)
	require.Equal(t, 10.0, r.Condition.Min)
	require.Equal(t, 20.0, r.Condition.Max)
}

func TestParseRuleExecuteAndSet(t *testing.T) {
	r, err := Parse(`RULE "actions"
WHEN sensor_001.temperature > 30
DO
  EXECUTE light_001.set(state=true, level=42)
  SET light_001.brightness = 10
END`)
	require.NoError(t, err)
	require.Len(t, r.Actions, 2)
	require.Equal(t, ActionExecute, r.Actions[0].Kind)
	require.Equal(t, "light_001", r.Actions[0].DeviceID)
	require.Equal(t, "set", r.Actions[0].Command)
	require.Equal(t, true, r.Actions[0].Params["state"])
	require.Equal(t, int64(42), r.Actions[0].Params["level"])

	require.Equal(t, ActionSet, r.Actions[1].Kind)
	require.Equal(t, "brightness", r.Actions[1].Property)
	require.Equal(t, int64(10), r.Actions[1].Value)
}

type fakeCommander struct {
	calls []string
}

func (f *fakeCommander) SendCommand(ctx context.Context, deviceID, command string, params map[string]any) error {
	f.calls = append(f.calls, deviceID+"."+command)
	return nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(ctx context.Context, channels []string, title, message, severity string) error {
	f.messages = append(f.messages, message)
	return nil
}

func TestExecutorRunsActionsInOrder(t *testing.T) {
	cmd := &fakeCommander{}
	notif := &fakeNotifier{}
	ex := NewExecutor(cmd, notif, nil)

	actions := []Action{
		{Kind: ActionNotify, Message: "starting"},
		{Kind: ActionExecute, DeviceID: "light_001", Command: "set", Params: map[string]any{"state": true}},
	}
	require.NoError(t, ex.Run(context.Background(), "r1", actions))
	require.Equal(t, []string{"starting"}, notif.messages)
	require.Equal(t, []string{"light_001.set"}, cmd.calls)
}

func TestExecutorStopsAtFirstFailure(t *testing.T) {
	ex := NewExecutor(nil, nil, nil)
	actions := []Action{
		{Kind: ActionExecute, DeviceID: "light_001", Command: "set"},
		{Kind: ActionLog, Level: "info", Message: "never reached"},
	}
	err := ex.Run(context.Background(), "r1", actions)
	require.Error(t, err)
}

func TestValidateDependenciesDetectsCycle(t *testing.T) {
	ids := []string{"a", "b", "c"}
	deps := Dependencies{"a": {"b"}, "b": {"c"}, "c": {"a"}}
	_, err := ValidateDependencies(ids, deps)
	require.Error(t, err)
}

func TestValidateDependenciesTopologicalOrder(t *testing.T) {
	ids := []string{"a", "b", "c"}
	deps := Dependencies{"a": {"b"}, "b": {"c"}}
	order, err := ValidateDependencies(ids, deps)
	require.NoError(t, err)

	pos := map[string]int{}
	for i, id := range order {
		pos[id] = i
	}
	require.Less(t, pos["c"], pos["b"])
	require.Less(t, pos["b"], pos["a"])
}

func TestReadyRules(t *testing.T) {
	ids := []string{"a", "b", "c"}
	deps := Dependencies{"a": {"b"}, "b": {"c"}}
	ready := ReadyRules(ids, deps, map[string]bool{})
	require.Equal(t, []string{"c"}, ready)

	ready = ReadyRules(ids, deps, map[string]bool{"c": true})
	require.Equal(t, []string{"b"}, ready)
}

func TestSchedulerStartStopIdempotentWithError(t *testing.T) {
	vp := &fakeValueProvider{values: map[string]float64{}}
	s := NewScheduler(vp, NewExecutor(nil, nil, nil), 10*time.Millisecond, nil)

	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()), "starting an already-running scheduler must error")
	require.NoError(t, s.Stop())
	require.Error(t, s.Stop(), "stopping an already-stopped scheduler must error")
}

func TestSchedulerEvaluatesAndExecutes(t *testing.T) {
	vp := &fakeValueProvider{values: map[string]float64{"sensor_001.temperature": 35}}
	cmd := &fakeCommander{}
	s := NewScheduler(vp, NewExecutor(cmd, nil, nil), 10*time.Millisecond, nil)

	r, err := Parse(`RULE "quick"
WHEN sensor_001.temperature > 30
DO
  EXECUTE light_001.set(state=true)
END`)
	require.NoError(t, err)
	r.Metadata.ID = "quick"
	s.AddRule(r)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		return len(cmd.calls) > 0
	}, time.Second, 5*time.Millisecond)
	s.Stop()

	hist := s.History("quick")
	require.NotEmpty(t, hist)
	require.True(t, hist[0].Success)
}
