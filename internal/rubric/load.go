package rubric

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Bursary/internal/rules"
)

// Format is the encoding of a rubric document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnsupportedFormat is returned for rubric files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported rubric format")

// ValidationError lists every problem found in a rubric document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid rubric: " + strings.Join(e.Problems, "; ")
}

type document struct {
	Version            string         `json:"version" yaml:"version" toml:"version" validate:"required"`
	Factors            []factorDoc    `json:"factors" yaml:"factors" toml:"factors" validate:"required,min=1,unique=Key,dive"`
	Rules              []ruleDoc      `json:"rules" yaml:"rules" toml:"rules" validate:"dive"`
	DecisionThresholds *thresholdsDoc `json:"decision_thresholds" yaml:"decision_thresholds" toml:"decision_thresholds" validate:"required"`
	Cap                *float64       `json:"cap" yaml:"cap" toml:"cap"`
	AllowedOrigins     []string       `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	UI                 map[string]any `json:"ui" yaml:"ui" toml:"ui"`
}

type factorDoc struct {
	Key     string             `json:"key" yaml:"key" toml:"key" validate:"required"`
	Label   string             `json:"label" yaml:"label" toml:"label" validate:"required"`
	Type    string             `json:"type" yaml:"type" toml:"type" validate:"oneof=select numeric"`
	Weight  *float64           `json:"weight" yaml:"weight" toml:"weight" validate:"required"`
	Map     map[string]float64 `json:"map" yaml:"map" toml:"map" validate:"required_if=Type select"`
	Options any                `json:"options" yaml:"options" toml:"options"`
}

type ruleDoc struct {
	Name    string   `json:"name" yaml:"name" toml:"name"`
	Trigger string   `json:"trigger" yaml:"trigger" toml:"trigger" validate:"required"`
	Bonus   *float64 `json:"bonus" yaml:"bonus" toml:"bonus" validate:"required"`
}

type thresholdsDoc struct {
	DeclineMax *float64 `json:"decline_max" yaml:"decline_max" toml:"decline_max" validate:"required"`
	PartialMax *float64 `json:"partial_max" yaml:"partial_max" toml:"partial_max" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FormatFromPath picks the document format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// LoadFile reads and validates a rubric file.
func LoadFile(path string) (*Rubric, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rubric: %w", err)
	}
	return Parse(data, format)
}

// Parse decodes and validates a rubric document.
func Parse(data []byte, format Format) (*Rubric, error) {
	doc, err := parseDocument(data, format)
	if err != nil {
		return nil, err
	}
	return build(doc), nil
}

// ToJSON validates a rubric document in any supported format and re-encodes
// it as JSON, the form kept by the rubric store.
func ToJSON(data []byte, format Format) ([]byte, error) {
	doc, err := parseDocument(data, format)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func parseDocument(data []byte, format Format) (*document, error) {
	var doc document
	if err := decode(data, format, &doc); err != nil {
		return nil, fmt.Errorf("parse rubric: %w", err)
	}
	for i := range doc.Factors {
		if doc.Factors[i].Type == "" {
			doc.Factors[i].Type = string(KindSelect)
		}
	}
	if err := check(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func decode(data []byte, format Format, doc *document) error {
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(doc); err != nil {
			return err
		}
		if dec.More() {
			return errors.New("trailing data after rubric document")
		}
		return nil
	case FormatYAML:
		return yaml.Unmarshal(data, doc)
	case FormatTOML:
		return toml.Unmarshal(data, doc)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func check(doc *document) error {
	var problems []string

	if err := validate.Struct(doc); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate rubric: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	for i, f := range doc.Factors {
		if f.Weight != nil && !finite(*f.Weight) {
			problems = append(problems, fmt.Sprintf("factors[%d].weight: must be finite", i))
		}
		if Kind(f.Type) == KindNumeric && f.Map != nil {
			problems = append(problems, fmt.Sprintf("factors[%d].map: numeric factor %q must not have a map", i, f.Key))
		}
		for option, score := range f.Map {
			if !finite(score) {
				problems = append(problems, fmt.Sprintf("factors[%d].map[%q]: must be finite", i, option))
			}
		}
	}
	for i, r := range doc.Rules {
		if r.Bonus != nil && !finite(*r.Bonus) {
			problems = append(problems, fmt.Sprintf("rules[%d].bonus: must be finite", i))
		}
	}
	if t := doc.DecisionThresholds; t != nil && t.DeclineMax != nil && t.PartialMax != nil {
		if !finite(*t.DeclineMax) || !finite(*t.PartialMax) {
			problems = append(problems, "decision_thresholds: must be finite")
		} else if *t.DeclineMax > *t.PartialMax {
			problems = append(problems, fmt.Sprintf("decision_thresholds: decline_max %v exceeds partial_max %v", *t.DeclineMax, *t.PartialMax))
		}
	}
	if doc.Cap != nil && !finite(*doc.Cap) {
		problems = append(problems, "cap: must be finite")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "document.")
	switch fe.Tag() {
	case "required":
		return field + ": required"
	case "required_if":
		return field + ": required for select factors"
	case "unique":
		return field + ": duplicate factor key"
	case "min":
		return field + ": at least " + fe.Param() + " required"
	case "oneof":
		return fmt.Sprintf("%s: %v is not one of %s", field, fe.Value(), fe.Param())
	}
	return fmt.Sprintf("%s: failed %s", field, fe.Tag())
}

func build(doc *document) *Rubric {
	r := &Rubric{
		version: doc.Version,
		factors: make([]FactorSpec, len(doc.Factors)),
		byKey:   make(map[string]int, len(doc.Factors)),
		rules:   make([]rules.Rule, len(doc.Rules)),
		thresholds: Thresholds{
			DeclineMax: *doc.DecisionThresholds.DeclineMax,
			PartialMax: *doc.DecisionThresholds.PartialMax,
		},
		cap:            DefaultCap,
		allowedOrigins: doc.AllowedOrigins,
		ui:             doc.UI,
	}
	if doc.Cap != nil {
		r.cap = *doc.Cap
	}
	if len(r.allowedOrigins) == 0 {
		r.allowedOrigins = []string{"*"}
	}
	for i, f := range doc.Factors {
		r.factors[i] = FactorSpec{
			Key:     f.Key,
			Label:   f.Label,
			Kind:    Kind(f.Type),
			Weight:  *f.Weight,
			Map:     f.Map,
			Options: f.Options,
		}
		r.byKey[f.Key] = i
	}
	for i, rd := range doc.Rules {
		r.rules[i] = rules.Compile(rd.Name, rd.Trigger, *rd.Bonus)
	}
	return r
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
