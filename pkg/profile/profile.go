// Package profile defines declarative field-mapping profiles and their
// loading pipeline: YAML decoding, validation, and inheritance
// flattening. A profile translates one source document layout into the
// canonical schema without per-format code; the mapping engine consumes
// only flattened profiles.
//
// Profiles are validated and flattened once at load time. Anything
// malformed (unknown transform names, duplicate targets, inheritance
// cycles) fails before any document is processed.
package profile

import (
	"fmt"

	"github.com/goccy/go-yaml"

	"github.com/mapsproj/maps/pkg/document"
)

// DataType is the declared type of a mapped field.
type DataType string

const (
	TypeString DataType = "string"
	TypeInt    DataType = "int"
	TypeFloat  DataType = "float"
	TypeBool   DataType = "bool"
	TypeDate   DataType = "date"
)

// knownTypes guards against typos in profile documents.
var knownTypes = map[DataType]bool{
	TypeString: true,
	TypeInt:    true,
	TypeFloat:  true,
	TypeBool:   true,
	TypeDate:   true,
	"":         true, // defaults to string
}

// TransformSpec names one pure transformation plus its parameters.
type TransformSpec struct {
	Name   string            `yaml:"name" json:"name"`
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// FieldMapping is one source-to-target translation rule.
type FieldMapping struct {
	// Source is the adapter path expression: element path for XML, gjson
	// path for JSON, column name for CSV.
	Source string `yaml:"source" json:"source"`
	// Target is the dotted path into the canonical field tree.
	Target string `yaml:"target" json:"target"`
	// Type is the expected data type; empty means string.
	Type DataType `yaml:"type,omitempty" json:"type,omitempty"`
	// Required marks fields whose absence records an issue and lowers the
	// record's confidence.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`
	// Default substitutes for an absent optional source value. Nil means
	// no default.
	Default *string `yaml:"default,omitempty" json:"default,omitempty"`
	// Weight scales the field's share of the confidence score. Zero means
	// 1.
	Weight float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
	// Transforms run in order against the resolved value.
	Transforms []TransformSpec `yaml:"transforms,omitempty" json:"transforms,omitempty"`
}

// EffectiveWeight returns the importance weight, defaulting to 1.
func (m FieldMapping) EffectiveWeight() float64 {
	if m.Weight > 0 {
		return m.Weight
	}
	return 1
}

// ValidationRules are profile-level checks applied after all mappings.
type ValidationRules struct {
	// RequiredTargets must all be mapped by the flattened profile.
	RequiredTargets []string `yaml:"required_targets,omitempty" json:"required_targets,omitempty"`
	// AllowExtraFields, when false, records an issue for every document
	// leaf outside the profile's source paths.
	AllowExtraFields bool `yaml:"allow_extra_fields" json:"allow_extra_fields"`
}

// Profile is a declarative mapping definition. Immutable once loaded and
// flattened.
type Profile struct {
	Name        string          `yaml:"name" json:"name"`
	FileType    document.Format `yaml:"file_type" json:"file_type"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
	// Case links the profile to a detector parse case; the pipeline picks
	// the profile whose Case matches the detection result.
	Case     string          `yaml:"case,omitempty" json:"case,omitempty"`
	Parent   string          `yaml:"parent,omitempty" json:"parent,omitempty"`
	Mappings []FieldMapping  `yaml:"mappings" json:"mappings"`
	Rules    ValidationRules `yaml:"validation" json:"validation"`

	// flattened marks a profile whose inheritance chain has been resolved.
	flattened bool
}

// Flattened reports whether inheritance has been resolved into Mappings.
func (p *Profile) Flattened() bool {
	return p.flattened || p.Parent == ""
}

// Parse decodes one profile from YAML with unknown fields rejected.
func Parse(raw []byte) (*Profile, error) {
	var p Profile
	if err := yaml.UnmarshalWithOptions(raw, &p, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}
