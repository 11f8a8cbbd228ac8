package scoring

import (
	"encoding/json"
	"log/slog"
	"math"

	"github.com/MikeSquared-Agency/Bursary/internal/canon"
	"github.com/MikeSquared-Agency/Bursary/internal/rubric"
	"github.com/MikeSquared-Agency/Bursary/internal/rules"
	"github.com/MikeSquared-Agency/Bursary/internal/signing"
)

// Decision is the tier an application lands in.
type Decision string

const (
	Decline Decision = "Decline"
	Partial Decision = "Partial"
	Full    Decision = "Full"
)

// FactorInput is one submitted factor value.
type FactorInput struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// Request is a scoring request. Applicant is an opaque label that is never
// interpreted. Keys may repeat; the first occurrence wins.
type Request struct {
	Applicant string        `json:"applicant"`
	Factors   []FactorInput `json:"factors"`
}

// lookup returns the first value submitted for key.
func (r Request) lookup(key string) (Value, bool) {
	for _, f := range r.Factors {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// raw builds the selections mapping seen by rule triggers.
func (r Request) raw() rules.Raw {
	raw := make(rules.Raw, len(r.Factors))
	for _, f := range r.Factors {
		if _, seen := raw[f.Key]; !seen {
			raw[f.Key] = f.Value.Raw()
		}
	}
	return raw
}

// Result is the signed outcome of scoring one request.
type Result struct {
	Decision  Decision `json:"decision"`
	Index     float64  `json:"index"`
	Version   string   `json:"version"`
	Signature string   `json:"signature"`
}

// Payload returns the signed fields of r.
func (r Result) Payload() signing.Payload {
	return signing.Payload{Decision: string(r.Decision), Index: r.Index, Version: r.Version}
}

// MarshalJSON writes the index in the same form that was signed.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Decision  Decision    `json:"decision"`
		Index     json.Number `json:"index"`
		Version   string      `json:"version"`
		Signature string      `json:"signature"`
	}{r.Decision, json.Number(canon.Float(r.Index)), r.Version, r.Signature})
}

// FactorResult captures one factor's contribution to the index.
type FactorResult struct {
	Key      string      `json:"key"`
	Kind     rubric.Kind `json:"kind"`
	Supplied bool        `json:"supplied"`
	Score    float64     `json:"score"`
	Weight   float64     `json:"weight"`
	Weighted float64     `json:"weighted"`
}

// Breakdown explains how a result was reached. It exposes weights and is
// meant for operators, not applicants.
type Breakdown struct {
	Factors  []FactorResult `json:"factors"`
	Weighted float64        `json:"weighted_sum"`
	Bonus    rules.Outcome  `json:"bonus"`
	RawIndex float64        `json:"raw_index"`
}

// UnknownFactorError rejects a request naming a factor the rubric lacks.
type UnknownFactorError struct {
	Key string
}

func (e *UnknownFactorError) Error() string { return "Unknown factor key: " + e.Key }

// Engine scores requests against one rubric. It holds no mutable state and
// is safe for concurrent use.
type Engine struct {
	rubric *rubric.Rubric
	signer *signing.Signer
	logger *slog.Logger
}

// NewEngine creates an Engine for the given rubric and signer.
func NewEngine(r *rubric.Rubric, s *signing.Signer, logger *slog.Logger) *Engine {
	return &Engine{rubric: r, signer: s, logger: logger}
}

func (e *Engine) Rubric() *rubric.Rubric { return e.rubric }

func (e *Engine) Signer() *signing.Signer { return e.signer }

// Validate rejects requests with keys outside the rubric.
func (e *Engine) Validate(req Request) error {
	for _, f := range req.Factors {
		if !e.rubric.HasFactor(f.Key) {
			return &UnknownFactorError{Key: f.Key}
		}
	}
	return nil
}

// Score validates req and computes its signed result. The only error is an
// *UnknownFactorError; a valid request always yields a result.
func (e *Engine) Score(req Request) (Result, *Breakdown, error) {
	if err := e.Validate(req); err != nil {
		return Result{}, nil, err
	}

	bd := &Breakdown{Factors: make([]FactorResult, 0, len(e.rubric.Factors()))}
	for _, f := range e.rubric.Factors() {
		v, ok := req.lookup(f.Key)
		score := Normalize(f, v)
		fr := FactorResult{
			Key:      f.Key,
			Kind:     f.Kind,
			Supplied: ok,
			Score:    score,
			Weight:   f.Weight,
			Weighted: f.Weight * score,
		}
		bd.Weighted += fr.Weighted
		bd.Factors = append(bd.Factors, fr)
	}

	bd.Bonus = rules.Evaluate(e.rubric.Rules(), req.raw(), e.rubric.Cap())
	for _, skip := range bd.Bonus.Skipped {
		e.logger.Debug("bonus rule skipped",
			"rule", skip.Index,
			"name", e.rubric.Rules()[skip.Index].Name,
			"error", skip.Err,
		)
	}

	bd.RawIndex = finiteIndex((bd.Weighted + bd.Bonus.Capped) * 100.0)

	res := Result{
		// decided on the unrounded index so rounding can never move a tier
		Decision: Decide(bd.RawIndex, e.rubric.Thresholds()),
		Index:    canon.Round1(bd.RawIndex),
		Version:  e.rubric.Version(),
	}
	res.Signature = e.signer.Sign(res.Payload())
	return res, bd, nil
}

// Verify reports whether res carries a valid signature from this engine's key.
func (e *Engine) Verify(res Result) bool {
	return e.signer.Verify(res.Payload(), res.Signature)
}

// Decide maps an index to a tier. Lower bounds are exclusive: an index equal
// to DeclineMax is Partial, one equal to PartialMax is Full.
func Decide(index float64, t rubric.Thresholds) Decision {
	switch {
	case index < t.DeclineMax:
		return Decline
	case index < t.PartialMax:
		return Partial
	default:
		return Full
	}
}

// finiteIndex keeps overflowing weight products inside the float range.
func finiteIndex(ix float64) float64 {
	switch {
	case math.IsNaN(ix):
		return 0
	case math.IsInf(ix, 0):
		return math.Copysign(math.MaxFloat64, ix)
	}
	return ix
}
