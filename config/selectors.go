package config

import (
	"fmt"
	"regexp"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"

	"github.com/use-agent/storyrake/extract"
	"github.com/use-agent/storyrake/models"
)

// FieldSpecs preserves the configuration order of data_selectors. Field
// evaluation order is part of the contract (rules encode a preference
// order), so a plain map is not enough.
type FieldSpecs struct {
	names []string
	specs map[string]FieldSpec
}

// UnmarshalYAML decodes a data_selectors mapping while keeping key order.
func (f *FieldSpecs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("data_selectors must be a mapping, got %s", node.Tag)
	}
	f.specs = make(map[string]FieldSpec, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var name string
		if err := node.Content[i].Decode(&name); err != nil {
			return err
		}
		var spec FieldSpec
		if err := node.Content[i+1].Decode(&spec); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		f.names = append(f.names, name)
		f.specs[name] = spec
	}
	return nil
}

// Set registers or replaces a field spec, keeping insertion order.
func (f *FieldSpecs) Set(name string, spec FieldSpec) {
	if f.specs == nil {
		f.specs = make(map[string]FieldSpec)
	}
	if _, exists := f.specs[name]; !exists {
		f.names = append(f.names, name)
	}
	f.specs[name] = spec
}

// Len returns the number of configured fields.
func (f *FieldSpecs) Len() int { return len(f.names) }

// resolveFields turns the YAML field specs into the tagged rule form the
// assembler consumes, validating method names, selectors and patterns.
func resolveFields(specs FieldSpecs) ([]extract.Field, error) {
	fields := make([]extract.Field, 0, specs.Len())
	for _, name := range specs.names {
		spec := specs.specs[name]
		field, err := resolveField(name, spec)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func resolveField(name string, spec FieldSpec) (extract.Field, error) {
	switch spec.Source {
	case "url":
		if spec.Pattern == "" {
			return extract.Field{}, models.NewRunError(models.ErrCodeInvalidConfig,
				fmt.Sprintf("field %q: source url requires a pattern", name), nil)
		}
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return extract.Field{}, models.NewRunError(models.ErrCodeInvalidConfig,
				fmt.Sprintf("field %q: invalid url pattern", name), err)
		}
		if spec.Weight < 0 {
			return extract.Field{}, models.NewRunError(models.ErrCodeInvalidConfig,
				fmt.Sprintf("field %q: negative weight", name), nil)
		}
		return extract.Field{
			Name:    name,
			FromURL: &extract.URLRule{Pattern: re, Weight: spec.Weight},
		}, nil

	case "", "markup":
		if len(spec.Rules) == 0 {
			return extract.Field{}, models.NewRunError(models.ErrCodeInvalidConfig,
				fmt.Sprintf("field %q: no extraction rules", name), nil)
		}
		rules := make([]extract.Rule, 0, len(spec.Rules))
		for i, rs := range spec.Rules {
			rule, err := resolveRule(name, i, rs)
			if err != nil {
				return extract.Field{}, err
			}
			rules = append(rules, rule)
		}
		return extract.Field{Name: name, Rules: rules}, nil

	default:
		return extract.Field{}, models.NewRunError(models.ErrCodeInvalidConfig,
			fmt.Sprintf("field %q: unknown source %q", name, spec.Source), nil)
	}
}

func resolveRule(field string, idx int, rs RuleSpec) (extract.Rule, error) {
	if rs.Selector == "" {
		return extract.Rule{}, models.NewRunError(models.ErrCodeInvalidConfig,
			fmt.Sprintf("field %q rule %d: selector is required", field, idx), nil)
	}
	if _, err := cascadia.Parse(rs.Selector); err != nil {
		return extract.Rule{}, models.NewRunError(models.ErrCodeInvalidConfig,
			fmt.Sprintf("field %q rule %d: invalid selector %q", field, idx, rs.Selector), err)
	}
	method, err := extract.ParseMethod(rs.Method)
	if err != nil {
		return extract.Rule{}, models.NewRunError(models.ErrCodeInvalidConfig,
			fmt.Sprintf("field %q rule %d", field, idx), err)
	}
	if rs.Weight < 0 {
		return extract.Rule{}, models.NewRunError(models.ErrCodeInvalidConfig,
			fmt.Sprintf("field %q rule %d: negative weight", field, idx), nil)
	}
	return extract.Rule{
		Selector:  rs.Selector,
		Method:    method,
		Label:     rs.Label,
		Weight:    rs.Weight,
		MinLength: rs.MinLength,
	}, nil
}
