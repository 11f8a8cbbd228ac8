package rubric

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileJSON(t *testing.T) {
	r, err := LoadFile("testdata/rubric.json")
	require.NoError(t, err)

	assert.Equal(t, "2024.1", r.Version())
	require.Len(t, r.Factors(), 4)
	assert.Equal(t, "gpa", r.Factors()[0].Key)
	assert.Equal(t, "service_hours", r.Factors()[3].Key)
	assert.Equal(t, Thresholds{DeclineMax: 40, PartialMax: 70}, r.Thresholds())
	assert.Equal(t, 0.06, r.Cap())
	assert.Equal(t, []string{"https://apply.example.org"}, r.AllowedOrigins())

	need, ok := r.Factor("need")
	require.True(t, ok)
	assert.Equal(t, KindSelect, need.Kind, "type defaults to select")
	assert.Equal(t, 0.8, need.Map["high"])

	hours, ok := r.Factor("service_hours")
	require.True(t, ok)
	assert.Equal(t, KindNumeric, hours.Kind)
	assert.Nil(t, hours.Map)

	assert.True(t, r.HasFactor("year"))
	assert.False(t, r.HasFactor("income"))

	require.Len(t, r.Rules(), 3)
	assert.Equal(t, "need_and_merit", r.Rules()[0].Name)
	bad := r.InvalidRules()
	require.Len(t, bad, 1)
	assert.Error(t, bad[2])
}

func TestLoadFileYAMLAndTOML(t *testing.T) {
	for _, path := range []string{"testdata/rubric.yaml", "testdata/rubric.toml"} {
		t.Run(path, func(t *testing.T) {
			r, err := LoadFile(path)
			require.NoError(t, err)

			assert.Equal(t, "2024.1", r.Version())
			require.Len(t, r.Factors(), 2)
			gpa, _ := r.Factor("gpa")
			assert.Equal(t, 0.7, gpa.Map["3.0-3.49"])
			assert.Equal(t, 0.6, r.Factors()[1].Weight)
			assert.Equal(t, 70.0, r.Thresholds().PartialMax)
			require.Len(t, r.Rules(), 1)
			assert.NoError(t, r.Rules()[0].Err())
			assert.Equal(t, "Scholarship Application", r.Redacted().UI["title"])
		})
	}
}

func TestDefaults(t *testing.T) {
	r, err := Parse([]byte(`{
		"version": "v1",
		"factors": [{"key": "a", "label": "A", "weight": 1, "map": {}}],
		"decision_thresholds": {"decline_max": 10, "partial_max": 20}
	}`), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, DefaultCap, r.Cap())
	assert.Equal(t, []string{"*"}, r.AllowedOrigins())
	assert.Empty(t, r.Rules())
	assert.Equal(t, map[string]any{}, r.Redacted().UI)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		problem string
	}{
		{
			name:    "missing version",
			doc:     `{"factors":[{"key":"a","label":"A","weight":1,"map":{}}],"decision_thresholds":{"decline_max":1,"partial_max":2}}`,
			problem: "version: required",
		},
		{
			name:    "no factors",
			doc:     `{"version":"v","factors":[],"decision_thresholds":{"decline_max":1,"partial_max":2}}`,
			problem: "factors",
		},
		{
			name:    "duplicate keys",
			doc:     `{"version":"v","factors":[{"key":"a","label":"A","weight":1,"map":{}},{"key":"a","label":"B","weight":1,"map":{}}],"decision_thresholds":{"decline_max":1,"partial_max":2}}`,
			problem: "duplicate factor key",
		},
		{
			name:    "thresholds out of order",
			doc:     `{"version":"v","factors":[{"key":"a","label":"A","weight":1,"map":{}}],"decision_thresholds":{"decline_max":80,"partial_max":70}}`,
			problem: "decline_max 80 exceeds partial_max 70",
		},
		{
			name:    "missing thresholds",
			doc:     `{"version":"v","factors":[{"key":"a","label":"A","weight":1,"map":{}}]}`,
			problem: "decision_thresholds: required",
		},
		{
			name:    "missing weight",
			doc:     `{"version":"v","factors":[{"key":"a","label":"A","map":{}}],"decision_thresholds":{"decline_max":1,"partial_max":2}}`,
			problem: "factors[0].weight: required",
		},
		{
			name:    "select without map",
			doc:     `{"version":"v","factors":[{"key":"a","label":"A","weight":1}],"decision_thresholds":{"decline_max":1,"partial_max":2}}`,
			problem: "factors[0].map: required for select factors",
		},
		{
			name:    "numeric with map",
			doc:     `{"version":"v","factors":[{"key":"a","label":"A","type":"numeric","weight":1,"map":{"x":1}}],"decision_thresholds":{"decline_max":1,"partial_max":2}}`,
			problem: "must not have a map",
		},
		{
			name:    "unknown kind",
			doc:     `{"version":"v","factors":[{"key":"a","label":"A","type":"slider","weight":1}],"decision_thresholds":{"decline_max":1,"partial_max":2}}`,
			problem: "factors[0].type",
		},
		{
			name:    "empty trigger",
			doc:     `{"version":"v","factors":[{"key":"a","label":"A","weight":1,"map":{}}],"rules":[{"trigger":"","bonus":0.1}],"decision_thresholds":{"decline_max":1,"partial_max":2}}`,
			problem: "rules[0].trigger: required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatJSON)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Contains(t, verr.Error(), tt.problem)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte(`{"version":`), FormatJSON)
	assert.Error(t, err)

	_, err = Parse([]byte(`{}`), Format("ini"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = LoadFile("testdata/rubric.ini")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = LoadFile("testdata/missing.json")
	assert.Error(t, err)
}

func TestRedactedHidesScoringInternals(t *testing.T) {
	r, err := LoadFile("testdata/rubric.json")
	require.NoError(t, err)

	view := r.Redacted()
	require.Len(t, view.Factors, 4)
	assert.Equal(t, PublicFactor{Key: "need", Label: "Financial need", Type: KindSelect, Options: []any{"very_high", "high", "medium", "low"}}, view.Factors[1])

	data, err := json.Marshal(view)
	require.NoError(t, err)
	body := string(data)
	for _, hidden := range []string{`"weight"`, `"map"`, `"rules"`, `"decision_thresholds"`, `"cap"`, "trigger", "allowed_origins"} {
		assert.False(t, strings.Contains(body, hidden), "redacted view leaks %s: %s", hidden, body)
	}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.ElementsMatch(t, []string{"version", "factors", "ui"}, keys(decoded))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestToJSONRoundTrip(t *testing.T) {
	for _, path := range []string{"testdata/rubric.yaml", "testdata/rubric.toml", "testdata/rubric.json"} {
		t.Run(path, func(t *testing.T) {
			orig, err := LoadFile(path)
			require.NoError(t, err)

			format, err := FormatFromPath(path)
			require.NoError(t, err)
			data, err := os.ReadFile(path)
			require.NoError(t, err)

			out, err := ToJSON(data, format)
			require.NoError(t, err)
			assert.True(t, json.Valid(out))

			back, err := Parse(out, FormatJSON)
			require.NoError(t, err)
			assert.Equal(t, orig.Version(), back.Version())
			assert.Equal(t, orig.Factors(), back.Factors())
			assert.Equal(t, orig.Thresholds(), back.Thresholds())
			assert.Equal(t, orig.Cap(), back.Cap())
			assert.Len(t, back.Rules(), len(orig.Rules()))
		})
	}

	_, err := ToJSON([]byte(`{"version":"v1","factors":[]}`), FormatJSON)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestShippedRubric(t *testing.T) {
	r, err := LoadFile("../../config.json")
	require.NoError(t, err)
	assert.Empty(t, r.InvalidRules())
	assert.Empty(t, r.Lint())
	assert.InDelta(t, 1.0, r.WeightSum(), 1e-9)
	assert.Equal(t, []string{"*"}, r.AllowedOrigins())
}

func TestLint(t *testing.T) {
	doc := `{
		"version": "v1",
		"factors": [
			{"key": "a", "label": "A", "type": "numeric", "weight": 0.9},
			{"key": "b", "label": "B", "type": "numeric", "weight": -0.2}
		],
		"decision_thresholds": {"decline_max": 40, "partial_max": 70},
		"cap": -0.1
	}`
	r, err := Parse([]byte(doc), FormatJSON)
	require.NoError(t, err)

	warnings := r.Lint()
	require.Len(t, warnings, 3)
	assert.Contains(t, warnings[0], "sum to 0.7000")
	assert.Contains(t, warnings[1], `"b"`)
	assert.Contains(t, warnings[2], "cap")
}
