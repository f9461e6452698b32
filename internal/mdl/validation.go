package mdl

import (
	"strings"

	"github.com/neomind/edge/internal/neoerr"
)

// ValidateTemplate performs every check required before a template is
// admitted to the registry: identifier charset, non-empty names, min/max
// ordering, enum subset checks, default-value coercibility, and parameter
// group references.
func ValidateTemplate(t DeviceTypeTemplate) error {
	if !identifierPattern.MatchString(t.ID) {
		return neoerr.Validationf("template id %q must match [A-Za-z0-9_-]+", t.ID)
	}

	seenMetrics := map[string]bool{}
	for _, m := range t.Metrics {
		if strings.TrimSpace(m.Name) == "" {
			return neoerr.Validation("metric name must not be empty")
		}
		if seenMetrics[m.Name] {
			return neoerr.Validationf("duplicate metric name %q", m.Name)
		}
		seenMetrics[m.Name] = true

		if m.Min != nil && m.Max != nil && *m.Min > *m.Max {
			return neoerr.Validationf("metric %q: min > max", m.Name)
		}
		if m.DataType == TypeEnum && len(m.Options) == 0 {
			return neoerr.Validationf("metric %q: enum type requires options", m.Name)
		}
		if m.DataType == TypeEnum && len(m.AllowedValues) > 0 {
			optionSet := map[string]bool{}
			for _, o := range m.Options {
				optionSet[o] = true
			}
			for _, av := range m.AllowedValues {
				if !optionSet[av] {
					return neoerr.Validationf("metric %q: allowed_values entry %q is not one of options", m.Name, av)
				}
			}
		}
	}

	seenCommands := map[string]bool{}
	for _, c := range t.Commands {
		if strings.TrimSpace(c.Name) == "" {
			return neoerr.Validation("command name must not be empty")
		}
		if seenCommands[c.Name] {
			return neoerr.Validationf("duplicate command name %q", c.Name)
		}
		seenCommands[c.Name] = true

		declared := map[string]ParameterDefinition{}
		for _, p := range c.Parameters {
			if strings.TrimSpace(p.Name) == "" {
				return neoerr.Validationf("command %q: parameter name must not be empty", c.Name)
			}
			declared[p.Name] = p

			for _, rule := range p.Rules {
				if rule.Kind == ValidationRuleKind(ValidationRange) && rule.Min != nil && rule.Max != nil && *rule.Min > *rule.Max {
					return neoerr.Validationf("command %q param %q: range min > max", c.Name, p.Name)
				}
			}

			if p.Default != nil {
				if _, err := Coerce(FromNative(p.Default), p.DataType); err != nil {
					return neoerr.Validationf("command %q param %q: default value incompatible with %s", c.Name, p.Name, p.DataType)
				}
			}
		}

		for _, grp := range c.ParameterGroups {
			for _, name := range grp.Parameters {
				if _, ok := declared[name]; !ok {
					return neoerr.Validationf("command %q: parameter group %q references undeclared parameter %q", c.Name, grp.Name, name)
				}
			}
		}
	}

	return nil
}

// validateEnumValue checks that a coerced value is one of the declared
// enum options, when the metric declares an enum type. When the template
// narrows the declared options with AllowedValues, that subset governs
// instead of the full Options list.
func validateEnumValue(m MetricDefinition, v MetricValue) error {
	if m.DataType != TypeEnum {
		return nil
	}
	s := toStringRepr(v)
	choices := m.Options
	if len(m.AllowedValues) > 0 {
		choices = m.AllowedValues
	}
	for _, opt := range choices {
		if opt == s {
			return nil
		}
	}
	return neoerr.Validationf("metric %q: value %q not in enum options", m.Name, s)
}
