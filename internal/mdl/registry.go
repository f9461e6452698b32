package mdl

import (
	"sync"

	"github.com/neomind/edge/internal/neoerr"
	"github.com/neomind/edge/internal/store"
)

const (
	bucketTemplates = "mdl_definitions"
	bucketDevices   = "device_instances"
)

func templateKey(id string) string { return "mdl:" + id }
func deviceKey(id string) string   { return "device:" + id }

// Registry owns the in-memory projection of device templates and
// instances; when a store is attached, every mutation is persisted before
// the in-memory map is updated so a crash never leaves memory ahead of
// disk.
type Registry struct {
	mu sync.RWMutex

	templates map[string]DeviceTypeTemplate
	devices   map[string]*DeviceInstance

	templateTable *store.Table[DeviceTypeTemplate]
	deviceTable   *store.Table[DeviceInstance]

	autoSave bool
}

// NewRegistry constructs a registry with no persistent backend attached.
func NewRegistry() *Registry {
	return &Registry{
		templates: map[string]DeviceTypeTemplate{},
		devices:   map[string]*DeviceInstance{},
		autoSave:  true,
	}
}

// AttachStore attaches a persistent backend and loads its existing
// contents into memory. Opening an absent file creates it; opening an
// existing file does not wipe tables.
func (r *Registry) AttachStore(s *store.Store) error {
	tt, err := store.NewTable[DeviceTypeTemplate](s, bucketTemplates)
	if err != nil {
		return err
	}
	dt, err := store.NewTable[DeviceInstance](s, bucketDevices)
	if err != nil {
		return err
	}

	templates, err := tt.List()
	if err != nil {
		return err
	}
	devices, err := dt.List()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.templateTable = tt
	r.deviceTable = dt
	for _, t := range templates {
		r.templates[t.ID] = t
	}
	for i := range devices {
		d := devices[i]
		r.devices[d.Config.ID] = &d
	}
	return nil
}

// SetAutoSave toggles whether mutations persist immediately; batched
// imports disable it and call Flush once at the end.
func (r *Registry) SetAutoSave(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.autoSave = enabled
}

// Flush writes every in-memory template and device to the attached store,
// for use after a batch import with auto-save disabled.
func (r *Registry) Flush() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.templateTable == nil {
		return nil
	}
	for _, t := range r.templates {
		if err := r.templateTable.Put(templateKey(t.ID), t); err != nil {
			return err
		}
	}
	for _, d := range r.devices {
		if err := r.deviceTable.Put(deviceKey(d.Config.ID), *d); err != nil {
			return err
		}
	}
	return nil
}

// RegisterTemplate validates and admits a new template. AlreadyExists if
// the id is taken.
func (r *Registry) RegisterTemplate(t DeviceTypeTemplate) error {
	if err := ValidateTemplate(t); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.templates[t.ID]; exists {
		return neoerr.AlreadyExists("template " + t.ID + " already registered")
	}

	if r.autoSave && r.templateTable != nil {
		if err := r.templateTable.Put(templateKey(t.ID), t); err != nil {
			return err
		}
	}
	r.templates[t.ID] = t
	return nil
}

// GetTemplate returns the template for id, or NotFound.
func (r *Registry) GetTemplate(id string) (DeviceTypeTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	if !ok {
		return DeviceTypeTemplate{}, neoerr.NotFoundf("template %q not found", id)
	}
	return t, nil
}

// ListTemplates returns every registered template, unordered.
func (r *Registry) ListTemplates() []DeviceTypeTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DeviceTypeTemplate, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	return out
}

// UnregisterTemplate removes a template. Fails if any device still
// references it.
func (r *Registry) UnregisterTemplate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[id]; !ok {
		return neoerr.NotFoundf("template %q not found", id)
	}
	for _, d := range r.devices {
		if d.Config.DeviceType == id {
			return neoerr.Validationf("template %q still referenced by device %q", id, d.Config.ID)
		}
	}

	if r.autoSave && r.templateTable != nil {
		if err := r.templateTable.Delete(templateKey(id)); err != nil {
			return err
		}
	}
	delete(r.templates, id)
	return nil
}

// RegisterDevice validates the device's template reference and admits the
// device, projecting a fresh DeviceInstance.
func (r *Registry) RegisterDevice(cfg DeviceConfig) (*DeviceInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[cfg.DeviceType]; !ok {
		return nil, neoerr.NotFoundf("device %q references unknown template %q", cfg.ID, cfg.DeviceType)
	}
	if _, exists := r.devices[cfg.ID]; exists {
		return nil, neoerr.AlreadyExists("device " + cfg.ID + " already registered")
	}

	inst := newInstance(cfg)

	if r.autoSave && r.deviceTable != nil {
		if err := r.deviceTable.Put(deviceKey(cfg.ID), *inst); err != nil {
			return nil, err
		}
	}
	r.devices[cfg.ID] = inst
	return inst, nil
}

// UpdateDevice applies fn to the device's config under the write lock and
// persists the result.
func (r *Registry) UpdateDevice(id string, fn func(*DeviceConfig)) (*DeviceInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.devices[id]
	if !ok {
		return nil, neoerr.NotFoundf("device %q not found", id)
	}
	updated := inst.Config
	fn(&updated)
	if updated.DeviceType != inst.Config.DeviceType {
		if _, ok := r.templates[updated.DeviceType]; !ok {
			return nil, neoerr.NotFoundf("device %q references unknown template %q", id, updated.DeviceType)
		}
	}
	next := *inst
	next.Config = updated

	if r.autoSave && r.deviceTable != nil {
		if err := r.deviceTable.Put(deviceKey(id), next); err != nil {
			return nil, err
		}
	}
	inst.Config = updated
	return inst, nil
}

// UpdateInstance mutates live state (status, last seen, current values)
// without touching the config, persisting the result.
func (r *Registry) UpdateInstance(id string, fn func(*DeviceInstance)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.devices[id]
	if !ok {
		return neoerr.NotFoundf("device %q not found", id)
	}
	next := *inst
	next.CurrentValues = make(map[string]TimedValue, len(inst.CurrentValues))
	for k, v := range inst.CurrentValues {
		next.CurrentValues[k] = v
	}
	fn(&next)

	if r.autoSave && r.deviceTable != nil {
		if err := r.deviceTable.Put(deviceKey(id), next); err != nil {
			return err
		}
	}
	*inst = next
	return nil
}

// GetDevice returns the live instance for id, or NotFound.
func (r *Registry) GetDevice(id string) (*DeviceInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.devices[id]
	if !ok {
		return nil, neoerr.NotFoundf("device %q not found", id)
	}
	cp := *inst
	return &cp, nil
}

// ListDevices returns every registered device instance, unordered.
func (r *Registry) ListDevices() []*DeviceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*DeviceInstance, 0, len(r.devices))
	for _, d := range r.devices {
		cp := *d
		out = append(out, &cp)
	}
	return out
}

// ListDevicesByType returns every device instance whose config references
// the given template id.
func (r *Registry) ListDevicesByType(deviceType string) []*DeviceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*DeviceInstance
	for _, d := range r.devices {
		if d.Config.DeviceType == deviceType {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out
}

// FindDeviceByTelemetryTopic returns the device whose ConnectionConfig
// names the given telemetry topic explicitly, or NotFound.
func (r *Registry) FindDeviceByTelemetryTopic(topic string) (*DeviceInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.devices {
		if d.Config.Connection.TelemetryTopic == topic {
			cp := *d
			return &cp, nil
		}
	}
	return nil, neoerr.NotFoundf("no device bound to telemetry topic %q", topic)
}

// MetricDataType resolves the declared DataType of a named metric on the
// template bound to deviceID, if both the device and the metric exist on
// its template. It lets a decode path that only has a raw native value
// preserve the field's declared type (e.g. an integral float declared as
// "float") instead of inferring one from the value's JSON shape.
func (r *Registry) MetricDataType(deviceID, metric string) (DataType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.devices[deviceID]
	if !ok {
		return "", false
	}
	tmpl, ok := r.templates[inst.Config.DeviceType]
	if !ok {
		return "", false
	}
	for _, m := range tmpl.Metrics {
		if m.Name == metric {
			return m.DataType, true
		}
	}
	return "", false
}

// UnregisterDevice removes a device from the registry.
func (r *Registry) UnregisterDevice(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return neoerr.NotFoundf("device %q not found", id)
	}

	if r.autoSave && r.deviceTable != nil {
		if err := r.deviceTable.Delete(deviceKey(id)); err != nil {
			return err
		}
	}
	delete(r.devices, id)
	return nil
}

// DeviceCount returns the number of registered devices. Safe to call from
// hot, non-blocking paths: it returns 0 instead of waiting when the
// registry lock is contended.
func (r *Registry) DeviceCount() int {
	if !r.mu.TryRLock() {
		return 0
	}
	defer r.mu.RUnlock()
	return len(r.devices)
}
