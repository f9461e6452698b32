package transform

import (
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/neomind/edge/internal/eventbus"
)

// EventPublisher is the slice of eventbus.Bus the engine needs.
type EventPublisher interface {
	Publish(e eventbus.Event)
}

// Engine holds the live transform set and dispatches device payloads
// through every applicable transform.
type Engine struct {
	mu         sync.RWMutex
	transforms map[string]Transform

	bus EventPublisher
	log *zap.SugaredLogger
}

func New(bus EventPublisher, log *zap.SugaredLogger) *Engine {
	return &Engine{transforms: map[string]Transform{}, bus: bus, log: log}
}

func (e *Engine) AddTransform(t Transform) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transforms[t.Metadata.ID] = t
}

func (e *Engine) RemoveTransform(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.transforms, id)
}

func (e *Engine) ListTransforms() []Transform {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Transform, 0, len(e.transforms))
	for _, t := range e.transforms {
		out = append(out, t)
	}
	return out
}

// applicable returns every enabled transform whose scope matches the
// device, most-specific scope first.
func (e *Engine) applicable(deviceID, deviceType string) []Transform {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Transform
	for _, t := range e.transforms {
		if !t.Metadata.Enabled {
			continue
		}
		if t.Scope.AppliesTo(deviceID, deviceType) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Scope.specificity() > out[j].Scope.specificity()
	})
	return out
}

// ProcessDeviceData implements mqttadapter.TransformSink: it filters
// transforms by applicability, executes each independently (one
// transform's failure never aborts another), and publishes every emitted
// metric to the event bus as a DeviceMetric event.
func (e *Engine) ProcessDeviceData(deviceID, deviceType string, raw []byte) {
	transforms := e.applicable(deviceID, deviceType)
	if len(transforms) == 0 {
		return
	}

	var root any
	_ = json.Unmarshal(raw, &root)

	for _, t := range transforms {
		metrics, warnings, err := e.execute(t, root)
		if err != nil {
			if e.log != nil {
				e.log.Warnw("transform execution failed", "transform_id", t.Metadata.ID, "device_id", deviceID, "error", err)
			}
			continue
		}
		for _, w := range warnings {
			if e.log != nil {
				e.log.Warnw("transform warning", "transform_id", t.Metadata.ID, "device_id", deviceID, "warning", w)
			}
		}
		for _, m := range metrics {
			if e.bus != nil {
				e.bus.Publish(eventbus.Event{
					Type:     eventbus.EventDeviceMetric,
					DeviceID: deviceID,
					Metric:   m.Name,
					Value:    m.Value,
				})
			}
		}
	}
}

func (e *Engine) execute(t Transform, root any) ([]EmittedMetric, []string, error) {
	if t.IsScripted() {
		metrics, err := runScripted(*t.Scripted, root)
		return metrics, nil, err
	}

	ctx := &execContext{root: root, vars: map[string]any{}}
	for _, op := range t.Operations {
		if _, err := execOperation(op, ctx); err != nil {
			ctx.warn = append(ctx.warn, err.Error())
		}
	}
	return ctx.emitted, ctx.warn, nil
}
