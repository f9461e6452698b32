package discovery

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neomind/edge/internal/neoerr"
)

// Config bounds draft collection.
type Config struct {
	MaxSamples  int
	MinSamples  int
	TimeoutSecs int
}

func DefaultConfig() Config {
	return Config{MaxSamples: 50, MinSamples: 5, TimeoutSecs: 300}
}

// Manager stages unknown devices into DraftDevice records and runs
// analysis once a draft becomes ready.
type Manager struct {
	mu     sync.Mutex
	cfg    Config
	drafts map[string]*DraftDevice // keyed by device id
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, drafts: map[string]*DraftDevice{}}
}

// Observe feeds one uplink from an unrecognized device into its draft,
// creating the draft on first contact. It returns the draft's state after
// ingesting the sample, with analysis already run if this sample made the
// draft immediately ready.
func (m *Manager) Observe(deviceID, source, topic, adapterID string, raw []byte) *DraftDevice {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[deviceID]
	if !ok {
		d = &DraftDevice{
			DraftID:       uuid.NewString(),
			DeviceID:      deviceID,
			Source:        source,
			OriginalTopic: topic,
			AdapterID:     adapterID,
			Status:        StatusCollecting,
			CreatedAt:     time.Now(),
		}
		m.drafts[deviceID] = d
	}

	if len(d.Samples) >= m.cfg.MaxSamples {
		d.UpdatedAt = time.Now()
		return d
	}

	sample := DeviceSample{Raw: raw, Source: source, Timestamp: time.Now().Unix()}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err == nil {
		sample.Parsed = parsed
	}
	d.Samples = append(d.Samples, sample)
	d.UpdatedAt = time.Now()

	if d.Status == StatusCollecting && len(d.Samples) >= m.cfg.MinSamples {
		m.analyze(d)
	}
	return d
}

// SweepTimeouts promotes any Collecting draft that has accumulated enough
// samples but gone idle past TimeoutSecs into analysis. Call periodically.
func (m *Manager) SweepTimeouts(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var promoted []string
	for id, d := range m.drafts {
		if d.Status != StatusCollecting {
			continue
		}
		if len(d.Samples) < m.cfg.MinSamples {
			continue
		}
		if now.Sub(d.UpdatedAt) > time.Duration(m.cfg.TimeoutSecs)*time.Second {
			m.analyze(d)
			promoted = append(promoted, id)
		}
	}
	return promoted
}

// analyze runs path discovery over a draft's samples and stages it for
// user review. Caller must hold m.mu.
func (m *Manager) analyze(d *DraftDevice) {
	d.Status = StatusAnalyzing

	metrics := DiscoverPaths(d.Samples)
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].Path < metrics[j].Path })

	d.Generated = &GeneratedDeviceType{
		Metrics: metrics,
		Summary: summarize(d.DeviceID, metrics, len(d.Samples)),
	}
	d.Status = StatusWaitingProcessing
	d.UpdatedAt = time.Now()
}

func summarize(deviceID string, metrics []DiscoveredMetric, sampleCount int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Device %s: %d fields inferred from %d samples.", deviceID, len(metrics), sampleCount)
	for _, m := range metrics {
		if m.SemanticType == "" {
			continue
		}
		fmt.Fprintf(&sb, " %s looks like %s (%s).", m.Path, m.SemanticType, m.Unit)
	}
	return sb.String()
}

// Get returns the draft for a device id, if any.
func (m *Manager) Get(deviceID string) (*DraftDevice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[deviceID]
	return d, ok
}

// List returns every draft.
func (m *Manager) List() []*DraftDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*DraftDevice, 0, len(m.drafts))
	for _, d := range m.drafts {
		out = append(out, d)
	}
	return out
}

// Approve transitions a waiting draft through Registering to Registered.
// The caller is expected to have already created the DeviceConfig/template
// pair in the MDL registry; overrides carries any user edits applied on
// top of the generated schema.
func (m *Manager) Approve(deviceID string, overrides map[string]any) (*DraftDevice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[deviceID]
	if !ok {
		return nil, neoerr.NotFoundf("no draft for device %q", deviceID)
	}
	if d.Status != StatusWaitingProcessing {
		return nil, neoerr.Validationf("draft %q is not awaiting approval (status %s)", deviceID, d.Status)
	}
	d.Overrides = overrides
	d.Status = StatusRegistering
	d.UpdatedAt = time.Now()
	d.Status = StatusRegistered
	return d, nil
}

// Reject marks a draft as Rejected; it may be called from any status.
func (m *Manager) Reject(deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[deviceID]
	if !ok {
		return neoerr.NotFoundf("no draft for device %q", deviceID)
	}
	d.Status = StatusRejected
	d.UpdatedAt = time.Now()
	return nil
}

// Fail marks a draft as Failed, from any status, recording no error detail
// beyond the status change itself (the generated summary, if any, stays
// intact for diagnosis).
func (m *Manager) Fail(deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[deviceID]
	if !ok {
		return neoerr.NotFoundf("no draft for device %q", deviceID)
	}
	d.Status = StatusFailed
	d.UpdatedAt = time.Now()
	return nil
}
