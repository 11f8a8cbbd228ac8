package scoring

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Bursary/internal/rubric"
)

func TestValueUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		kind ValueKind
		text string
		raw  any
	}{
		{`"3"`, ValueString, "3", "3"},
		{`3`, ValueInt, "3", int64(3)},
		{`-0`, ValueInt, "0", int64(0)},
		{`3.0`, ValueFloat, "3.0", 3.0},
		{`1e2`, ValueFloat, "100.0", 100.0},
		{`2.5`, ValueFloat, "2.5", 2.5},
		{`"high"`, ValueString, "high", "high"},
		{`123456789012345678901234567890`, ValueInt, "123456789012345678901234567890", 1.2345678901234568e29},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var v Value
			require.NoError(t, json.Unmarshal([]byte(tt.in), &v))
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.text, v.Text())
			assert.Equal(t, tt.raw, v.Raw())
		})
	}
}

func TestValueUnmarshalRejectsNonScalars(t *testing.T) {
	for _, in := range []string{`null`, `true`, `false`, `[1]`, `{"a":1}`} {
		var fi FactorInput
		err := json.Unmarshal([]byte(`{"key":"k","value":`+in+`}`), &fi)
		assert.Error(t, err, in)
	}
}

func TestValueOverflowingFloat(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`1e400`), &v))
	n, ok := v.Number()
	assert.True(t, ok)
	assert.True(t, math.IsInf(n, 1))
	assert.Equal(t, 0.0, Normalize(rubric.FactorSpec{Kind: rubric.KindNumeric, Weight: 1}, v))
}

func TestValueMarshalRoundTrip(t *testing.T) {
	in := `{"applicant":"A-17","factors":[{"key":"gpa","value":"3.5+"},{"key":"year","value":2},{"key":"hours","value":2.0}]}`
	var r Request
	require.NoError(t, json.Unmarshal([]byte(in), &r))
	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
	assert.Contains(t, string(out), `"value":2.0`)
}

func TestNormalize(t *testing.T) {
	sel := rubric.FactorSpec{Kind: rubric.KindSelect, Map: map[string]float64{"3": 0.6, "high": 0.8}}
	num := rubric.FactorSpec{Kind: rubric.KindNumeric}

	assert.Equal(t, 0.6, Normalize(sel, IntValue(3)))
	assert.Equal(t, 0.6, Normalize(sel, StringValue("3")))
	assert.Equal(t, 0.0, Normalize(sel, FloatValue(3)))
	assert.Equal(t, 0.8, Normalize(sel, StringValue("high")))
	assert.Equal(t, 0.0, Normalize(sel, StringValue("High")))
	assert.Equal(t, 0.0, Normalize(sel, Value{}))

	assert.Equal(t, 2.5, Normalize(num, StringValue("2.5")))
	assert.Equal(t, 7.0, Normalize(num, IntValue(7)))
	assert.Equal(t, -1.5, Normalize(num, FloatValue(-1.5)))
	assert.Equal(t, 0.0, Normalize(num, StringValue("n/a")))
	assert.Equal(t, 0.0, Normalize(num, Value{}))
}
