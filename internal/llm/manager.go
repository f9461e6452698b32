package llm

import (
	"fmt"
	"sync"
)

// Manager holds the set of registered backends and resolves which one a
// session should dispatch to.
type Manager struct {
	mu       sync.RWMutex
	runtimes map[string]LlmRuntime
	def      string
}

func NewManager(defaultBackend string) *Manager {
	return &Manager{runtimes: make(map[string]LlmRuntime), def: defaultBackend}
}

func (m *Manager) Register(runtime LlmRuntime) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runtimes[runtime.Name()] = runtime
}

func (m *Manager) Get(name string) (LlmRuntime, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if name == "" {
		name = m.def
	}
	rt, ok := m.runtimes[name]
	if !ok {
		return nil, fmt.Errorf("llm: unknown backend %q", name)
	}
	return rt, nil
}

func (m *Manager) Default() (LlmRuntime, error) {
	return m.Get(m.def)
}

func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.runtimes))
	for name := range m.runtimes {
		names = append(names, name)
	}
	return names
}

// AggregateMetrics sums usage across every registered backend.
func (m *Manager) AggregateMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total Metrics
	for _, rt := range m.runtimes {
		metrics := rt.Metrics()
		total.RequestCount += metrics.RequestCount
		total.ErrorCount += metrics.ErrorCount
		total.TotalTokens += metrics.TotalTokens
	}
	return total
}
