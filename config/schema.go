package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/contentkit/content"
)

// FieldTypeFlow marks a field whose value is a list of flow blocks.
const FieldTypeFlow = "flow"

// Model declares the fields of a record model or a flow block type.
type Model struct {
	Fields []FieldSpec `validate:"dive"`
}

// FieldSpec declares one field. Declaration order is the field order used
// for extraction.
type FieldSpec struct {
	Name      string `validate:"required"`
	Translate bool   `yaml:"translate"`
	// Type is informational except for "flow".
	Type string `yaml:"type"`
}

// UnmarshalYAML decodes a model, keeping the order of the fields mapping.
//
//	fields:
//	  title: {translate: true}
//	  blocks: {type: flow}
func (m *Model) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Fields yaml.Node `yaml:"fields"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Fields.Kind == 0 {
		return nil
	}
	if raw.Fields.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fields must be a mapping", raw.Fields.Line)
	}
	m.Fields = nil
	for i := 0; i+1 < len(raw.Fields.Content); i += 2 {
		key, val := raw.Fields.Content[i], raw.Fields.Content[i+1]
		spec := FieldSpec{Name: key.Value}
		// "title:" alone declares a non-translatable field.
		if val.Kind != yaml.ScalarNode || val.Tag != "!!null" {
			if err := val.Decode(&spec); err != nil {
				return fmt.Errorf("field %q: %w", key.Value, err)
			}
			spec.Name = key.Value
		}
		m.Fields = append(m.Fields, spec)
	}
	return nil
}

func (m Model) field(name string) (FieldSpec, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Schema answers field questions from the declared models. Flow block
// types are looked up under content.BlockModel names.
type Schema struct {
	models map[string]Model
}

var _ content.Schema = (*Schema)(nil)

// Schema returns the content schema of the project.
func (p *Project) Schema() *Schema {
	s := &Schema{models: make(map[string]Model, len(p.Models)+len(p.FlowBlocks))}
	for name, m := range p.Models {
		s.models[name] = m
	}
	for name, m := range p.FlowBlocks {
		s.models[content.BlockModel(name)] = m
	}
	return s
}

func (s *Schema) Translatable(model, field string) bool {
	f, ok := s.models[model].field(field)
	return ok && f.Translate
}

func (s *Schema) IsFlow(model, field string) bool {
	f, ok := s.models[model].field(field)
	return ok && f.Type == FieldTypeFlow
}

func (s *Schema) FieldOrder(model string) []string {
	m := s.models[model]
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}
