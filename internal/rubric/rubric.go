// Package rubric holds the scoring rubric: factors, bonus rules, decision
// thresholds and the bonus cap. A Rubric is built once at startup and never
// mutated afterwards, so it is safe to share across request handlers.
package rubric

import (
	"fmt"
	"math"

	"github.com/MikeSquared-Agency/Bursary/internal/rules"
)

// Kind is how a factor turns a submitted value into a number.
type Kind string

const (
	KindSelect  Kind = "select"
	KindNumeric Kind = "numeric"
)

// DefaultCap bounds the total bonus when the rubric does not set one.
const DefaultCap = 0.10

const weightTolerance = 0.001

// FactorSpec describes one scorable attribute. Map is set only for select
// factors. Options is display metadata and never read by the scorer.
type FactorSpec struct {
	Key     string
	Label   string
	Kind    Kind
	Weight  float64
	Map     map[string]float64
	Options any
}

// Thresholds map an index to a decision tier: below DeclineMax declines,
// below PartialMax is partial, anything else is full.
type Thresholds struct {
	DeclineMax float64 `json:"decline_max"`
	PartialMax float64 `json:"partial_max"`
}

// Rubric is the immutable scoring configuration. Callers must treat the
// slices and maps returned by its accessors as read-only.
type Rubric struct {
	version        string
	factors        []FactorSpec
	byKey          map[string]int
	rules          []rules.Rule
	thresholds     Thresholds
	cap            float64
	allowedOrigins []string
	ui             map[string]any
}

func (r *Rubric) Version() string { return r.version }

// Factors returns the factors in configuration order.
func (r *Rubric) Factors() []FactorSpec { return r.factors }

// Factor looks a factor up by key.
func (r *Rubric) Factor(key string) (FactorSpec, bool) {
	i, ok := r.byKey[key]
	if !ok {
		return FactorSpec{}, false
	}
	return r.factors[i], true
}

// HasFactor reports whether key is a configured factor key.
func (r *Rubric) HasFactor(key string) bool {
	_, ok := r.byKey[key]
	return ok
}

// Rules returns the compiled bonus rules in configuration order.
func (r *Rubric) Rules() []rules.Rule { return r.rules }

func (r *Rubric) Thresholds() Thresholds { return r.thresholds }

// Cap is the maximum total bonus.
func (r *Rubric) Cap() float64 { return r.cap }

// AllowedOrigins lists the CORS origins for the HTTP layer.
func (r *Rubric) AllowedOrigins() []string { return r.allowedOrigins }

// WeightSum returns the total of all factor weights.
func (r *Rubric) WeightSum() float64 {
	var sum float64
	for _, f := range r.factors {
		sum += f.Weight
	}
	return sum
}

// Lint reports advisory problems that do not stop the rubric from loading.
func (r *Rubric) Lint() []string {
	var warnings []string
	if sum := r.WeightSum(); math.Abs(sum-1.0) > weightTolerance {
		warnings = append(warnings, fmt.Sprintf("factor weights sum to %.4f, not 1.0", sum))
	}
	for _, f := range r.factors {
		if f.Weight < 0 {
			warnings = append(warnings, fmt.Sprintf("factor %q has negative weight %v", f.Key, f.Weight))
		}
	}
	if r.cap < 0 {
		warnings = append(warnings, fmt.Sprintf("cap %v is negative, bonuses can only lower the index", r.cap))
	}
	return warnings
}

// InvalidRules returns the rules whose triggers failed to compile, keyed by
// position. Such rules are kept and always skipped.
func (r *Rubric) InvalidRules() map[int]error {
	bad := make(map[int]error)
	for i, rule := range r.rules {
		if err := rule.Err(); err != nil {
			bad[i] = err
		}
	}
	return bad
}

// PublicFactor is the externally visible part of a factor.
type PublicFactor struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Type    Kind   `json:"type"`
	Options any    `json:"options,omitempty"`
}

// View is the redacted rubric served to clients. Weights, maps, rules,
// thresholds and the cap are deliberately absent.
type View struct {
	Version string         `json:"version"`
	Factors []PublicFactor `json:"factors"`
	UI      map[string]any `json:"ui"`
}

// Redacted returns the client-facing view of the rubric.
func (r *Rubric) Redacted() View {
	v := View{
		Version: r.version,
		Factors: make([]PublicFactor, 0, len(r.factors)),
		UI:      r.ui,
	}
	if v.UI == nil {
		v.UI = map[string]any{}
	}
	for _, f := range r.factors {
		v.Factors = append(v.Factors, PublicFactor{
			Key:     f.Key,
			Label:   f.Label,
			Type:    f.Kind,
			Options: f.Options,
		})
	}
	return v
}
