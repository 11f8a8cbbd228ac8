package scoring

import (
	"math"

	"github.com/MikeSquared-Agency/Bursary/internal/rubric"
)

// Normalize converts one submitted value into the factor's contribution
// before weighting. It never fails: an absent value, an option missing from
// a select map, or an unparseable numeric value all contribute 0.
func Normalize(f rubric.FactorSpec, v Value) float64 {
	if v.IsNone() {
		return 0
	}

	var score float64
	switch f.Kind {
	case rubric.KindSelect:
		score = f.Map[v.Text()]
	case rubric.KindNumeric:
		n, ok := v.Number()
		if !ok {
			return 0
		}
		score = n
	}

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}
