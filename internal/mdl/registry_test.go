package mdl

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neomind/edge/internal/store"
)

func TestRegisterTemplateAndDevice(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterTemplate(SeedDHT22Template()))

	_, err := r.RegisterDevice(DeviceConfig{ID: "sensor_001", DeviceType: "dht22_sensor", AdapterType: "mqtt"})
	require.NoError(t, err)

	inst, err := r.GetDevice("sensor_001")
	require.NoError(t, err)
	require.Equal(t, StatusDisconnected, inst.Status)

	_, err = r.RegisterDevice(DeviceConfig{ID: "sensor_002", DeviceType: "missing_template"})
	require.Error(t, err)
}

func TestUnregisterTemplateFailsWithLiveDevice(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterTemplate(SeedDHT22Template()))
	_, err := r.RegisterDevice(DeviceConfig{ID: "sensor_001", DeviceType: "dht22_sensor"})
	require.NoError(t, err)

	err = r.UnregisterTemplate("dht22_sensor")
	require.Error(t, err)

	require.NoError(t, r.UnregisterDevice("sensor_001"))
	require.NoError(t, r.UnregisterTemplate("dht22_sensor"))
}

func TestRegisterTemplateDuplicateID(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterTemplate(SeedDHT22Template()))
	err := r.RegisterTemplate(SeedDHT22Template())
	require.Error(t, err)
}

func TestTemplateIDWithSlashIsInvalid(t *testing.T) {
	tpl := SeedDHT22Template()
	tpl.ID = "bad/id"
	err := ValidateTemplate(tpl)
	require.Error(t, err)
}

func TestMetricMinGreaterThanMaxIsInvalid(t *testing.T) {
	tpl := SeedDHT22Template()
	tpl.Metrics[0].Min = ptr(100)
	tpl.Metrics[0].Max = ptr(0)
	err := ValidateTemplate(tpl)
	require.Error(t, err)
}

func TestRegistryPersistsAcrossReopen(t *testing.T) {
	t.Cleanup(store.CloseAll)
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.db")

	s, err := store.Open(path)
	require.NoError(t, err)

	r1 := NewRegistry()
	require.NoError(t, r1.AttachStore(s))
	require.NoError(t, r1.RegisterTemplate(SeedDHT22Template()))
	_, err = r1.RegisterDevice(DeviceConfig{ID: "sensor_001", DeviceType: "dht22_sensor"})
	require.NoError(t, err)

	r2 := NewRegistry()
	require.NoError(t, r2.AttachStore(s))
	tpl, err := r2.GetTemplate("dht22_sensor")
	require.NoError(t, err)
	require.Equal(t, "dht22_sensor", tpl.ID)

	dev, err := r2.GetDevice("sensor_001")
	require.NoError(t, err)
	require.Equal(t, "sensor_001", dev.Config.ID)
}

func TestEnumAllowedValuesOutsideOptionsIsInvalid(t *testing.T) {
	tpl := SeedDHT22Template()
	tpl.Metrics = append(tpl.Metrics, MetricDefinition{
		Name:          "mode",
		DataType:      TypeEnum,
		Options:       []string{"auto", "manual", "off"},
		AllowedValues: []string{"auto", "eco"},
	})
	err := ValidateTemplate(tpl)
	require.Error(t, err)
}

func TestEnumAllowedValuesSubsetOfOptionsIsValid(t *testing.T) {
	tpl := SeedDHT22Template()
	tpl.Metrics = append(tpl.Metrics, MetricDefinition{
		Name:          "mode",
		DataType:      TypeEnum,
		Options:       []string{"auto", "manual", "off"},
		AllowedValues: []string{"auto", "manual"},
	})
	require.NoError(t, ValidateTemplate(tpl))
}

func TestParseMetricValueRejectsValueOutsideAllowedValues(t *testing.T) {
	m := MetricDefinition{
		Name:          "mode",
		DataType:      TypeEnum,
		Options:       []string{"auto", "manual", "off"},
		AllowedValues: []string{"auto", "manual"},
	}
	_, err := ParseMetricValue(m, []byte(`{"mode":"off"}`))
	require.Error(t, err, "off is a valid option but outside the narrower allowed_values set")

	v, err := ParseMetricValue(m, []byte(`{"mode":"auto"}`))
	require.NoError(t, err)
	require.Equal(t, "auto", v.Str)
}

func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry()
	tpl := SeedDHT22Template()
	require.NoError(t, r.RegisterTemplate(tpl))
	got, err := r.GetTemplate(tpl.ID)
	require.NoError(t, err)
	require.Equal(t, tpl, got)
}
