package mdl

// Seed templates: a small, realistic device catalog (temperature/humidity
// sensor, a dimmable light) that tests use to exercise the registry
// without standing up a full discovery run, and that cmd/neomind admits
// into the registry on first boot. Not a runtime mock-data generator.

func ptr(f float64) *float64 { return &f }

// SeedDHT22Template returns a minimal environmental sensor template.
func SeedDHT22Template() DeviceTypeTemplate {
	return DeviceTypeTemplate{
		ID:          "dht22_sensor",
		DisplayName: "DHT22 Temperature & Humidity Sensor",
		Mode:        ModeSimple,
		Metrics: []MetricDefinition{
			{Name: "temperature", DataType: TypeFloat, Unit: "celsius", Min: ptr(-40), Max: ptr(80)},
			{Name: "humidity", DataType: TypeFloat, Unit: "percent", Min: ptr(0), Max: ptr(100)},
		},
	}
}

// SeedDimmableLightTemplate returns a template with a downlink command
// that exercises parameter validation and payload assembly.
func SeedDimmableLightTemplate() DeviceTypeTemplate {
	return DeviceTypeTemplate{
		ID:          "dimmable_light",
		DisplayName: "Dimmable Light",
		Mode:        ModeFull,
		Metrics: []MetricDefinition{
			{Name: "power", DataType: TypeBoolean},
			{Name: "level", DataType: TypeInteger, Min: ptr(0), Max: ptr(100)},
		},
		Commands: []CommandDefinition{
			{
				Name:            "set",
				PayloadTemplate: `{"cmd":"set","state":${{state}},"level":${{level}}}`,
				FixedValues:     map[string]any{"protocol": "v1"},
				Parameters: []ParameterDefinition{
					{Name: "state", DataType: TypeBoolean, Required: true},
					{Name: "level", DataType: TypeInteger, Required: true,
						Rules: []ValidationRule{{Kind: ValidationRange, Min: ptr(0), Max: ptr(100)}}},
				},
			},
		},
	}
}
