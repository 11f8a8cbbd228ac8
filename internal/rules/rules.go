// Package rules evaluates cross-factor bonus rules. A rule's trigger is a
// small boolean expression over the applicant's raw selections, e.g.
//
//	raw.get("need") in ("high", "very_high") and raw["gpa"] == "3.5+"
//
// Triggers are parsed into a closed AST and run by a dedicated interpreter;
// the only name in scope is raw. A rule whose trigger fails to parse or
// evaluate is skipped and contributes nothing.
package rules

// Rule is a compiled bonus rule.
type Rule struct {
	Name    string
	Trigger string
	Bonus   float64

	expr Node
	err  error
}

// Compile parses the trigger once. A parse failure is recorded on the rule
// rather than returned: the rule stays in place and is skipped on every
// evaluation.
func Compile(name, trigger string, bonus float64) Rule {
	r := Rule{Name: name, Trigger: trigger, Bonus: bonus}
	r.expr, r.err = Parse(trigger)
	return r
}

// Err returns the parse error of the trigger, if any.
func (r Rule) Err() error { return r.err }

// Eval reports whether the trigger holds for raw.
func (r Rule) Eval(raw Raw) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	v, err := Eval(r.expr, raw)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

// Skip records a rule that could not be evaluated.
type Skip struct {
	Index int
	Err   error
}

// Outcome is the result of evaluating every rule for one request.
type Outcome struct {
	Sum     float64 `json:"sum"`
	Capped  float64 `json:"capped"`
	Fired   []int   `json:"fired"`
	Skipped []Skip  `json:"-"`
}

// Evaluate sums the bonus of every rule whose trigger holds and clamps the
// total to limit. There is no lower clamp, so negative bonuses pass through.
func Evaluate(rs []Rule, raw Raw, limit float64) Outcome {
	var out Outcome
	for i, r := range rs {
		ok, err := r.Eval(raw)
		if err != nil {
			out.Skipped = append(out.Skipped, Skip{Index: i, Err: err})
			continue
		}
		if ok {
			out.Sum += r.Bonus
			out.Fired = append(out.Fired, i)
		}
	}
	out.Capped = min(out.Sum, limit)
	return out
}
