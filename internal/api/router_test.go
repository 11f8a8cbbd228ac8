package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Bursary/internal/hermes"
	"github.com/MikeSquared-Agency/Bursary/internal/rubric"
	"github.com/MikeSquared-Agency/Bursary/internal/scoring"
	"github.com/MikeSquared-Agency/Bursary/internal/signing"
)

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) Publish(subject string, data interface{}) error {
	args := m.Called(subject, data)
	return args.Error(0)
}
func (m *mockEvents) Subscribe(_ string, _ func(string, []byte)) error { return nil }
func (m *mockEvents) Close()                                           {}

func newTestRouter(t *testing.T, events hermes.Client) (http.Handler, *scoring.Engine) {
	t.Helper()
	r, err := rubric.LoadFile("../rubric/testdata/rubric.json")
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := scoring.NewEngine(r, signing.NewSigner("test-secret"), logger)
	return NewRouter(engine, events, 0, logger), engine
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestConfigIsRedacted(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	w := doJSON(t, router, "GET", "/api/config", "")
	require.Equal(t, http.StatusOK, w.Code)

	var view map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.ElementsMatch(t, []string{"version", "factors", "ui"}, keys(view))
	assert.JSONEq(t, `"2024.1"`, string(view["version"]))
	assert.JSONEq(t, `{"title":"Scholarship Application","submit_label":"Check eligibility"}`, string(view["ui"]))

	var factors []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(view["factors"], &factors))
	require.Len(t, factors, 4)
	for _, f := range factors {
		for k := range f {
			assert.Contains(t, []string{"key", "label", "type", "options"}, k)
		}
	}
	assert.JSONEq(t, `"select"`, string(factors[1]["type"]), "omitted type is published as select")
}

func keys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestScoreDecisions(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		decision scoring.Decision
		index    string
	}{
		{
			name:     "full",
			body:     `{"applicant":"A-1","factors":[{"key":"gpa","value":"3.5+"},{"key":"need","value":"high"},{"key":"year","value":2},{"key":"service_hours","value":"2.5"}]}`,
			decision: scoring.Full,
			index:    "118.5",
		},
		{
			name:     "partial",
			body:     `{"factors":[{"key":"gpa","value":"3.0-3.49"},{"key":"need","value":"medium"},{"key":"year","value":"3"}]}`,
			decision: scoring.Partial,
			index:    "51.5",
		},
		{
			name:     "decline",
			body:     `{"factors":[{"key":"gpa","value":"<2.5"},{"key":"need","value":"low"},{"key":"year","value":4}]}`,
			decision: scoring.Decline,
			index:    "15.0",
		},
		{
			name:     "no factors",
			body:     `{"factors":[]}`,
			decision: scoring.Decline,
			index:    "0.0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := &mockEvents{}
			events.On("Publish", hermes.SubjectScoreComputed(string(tt.decision)), mock.AnythingOfType("hermes.ScoreComputedEvent")).Return(nil).Once()
			router, engine := newTestRouter(t, events)

			before := testutil.ToFloat64(scoresTotal.WithLabelValues(string(tt.decision)))
			skipsBefore := testutil.ToFloat64(ruleSkips)

			w := doJSON(t, router, "POST", "/api/score", tt.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"index":`+tt.index+`,`)

			var res scoring.Result
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
			assert.Equal(t, tt.decision, res.Decision)
			assert.Equal(t, "2024.1", res.Version)
			assert.Len(t, res.Signature, 64)
			assert.True(t, engine.Verify(res))

			assert.Equal(t, before+1, testutil.ToFloat64(scoresTotal.WithLabelValues(string(tt.decision))))
			// the malformed rule is skipped on every request
			assert.GreaterOrEqual(t, testutil.ToFloat64(ruleSkips)-skipsBefore, 1.0)
			events.AssertExpectations(t)
		})
	}
}

func TestScorePublishesEventFields(t *testing.T) {
	events := &mockEvents{}
	var got hermes.ScoreComputedEvent
	events.On("Publish", "bursary.score.full", mock.Anything).Run(func(args mock.Arguments) {
		got = args.Get(1).(hermes.ScoreComputedEvent)
	}).Return(nil)
	router, _ := newTestRouter(t, events)

	body := `{"applicant":"A-17","factors":[{"key":"gpa","value":"3.5+"},{"key":"need","value":"very_high"},{"key":"year","value":1}]}`
	w := doJSON(t, router, "POST", "/api/score", body)
	require.Equal(t, http.StatusOK, w.Code)

	assert.NotEmpty(t, got.EventID)
	assert.Equal(t, "A-17", got.Applicant)
	assert.Equal(t, "Full", got.Decision)
	assert.Equal(t, 91.0, got.Index)
	assert.Equal(t, "configured", got.KeySource)
	assert.Equal(t, []int{0, 1}, got.RulesFired)
	assert.Equal(t, 1, got.RulesSkipped)
	assert.False(t, got.Timestamp.IsZero())
}

func TestScorePublishFailureDoesNotFailRequest(t *testing.T) {
	events := &mockEvents{}
	events.On("Publish", mock.Anything, mock.Anything).Return(assert.AnError)
	router, _ := newTestRouter(t, events)

	w := doJSON(t, router, "POST", "/api/score", `{"factors":[]}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestScoreUnknownFactor(t *testing.T) {
	events := &mockEvents{}
	events.On("Publish", hermes.SubjectScoreRejected(), mock.AnythingOfType("hermes.ScoreRejectedEvent")).Return(nil).Once()
	router, _ := newTestRouter(t, events)

	before := testutil.ToFloat64(scoreRejections.WithLabelValues("unknown_factor"))
	w := doJSON(t, router, "POST", "/api/score", `{"factors":[{"key":"gpa","value":"3.5+"},{"key":"income","value":1000}]}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"Unknown factor key: income"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "signature")
	assert.Equal(t, before+1, testutil.ToFloat64(scoreRejections.WithLabelValues("unknown_factor")))
	events.AssertExpectations(t)
}

func TestScoreInvalidBodies(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	bodies := map[string]string{
		"malformed":       `{`,
		"missing factors": `{"applicant":"A-1"}`,
		"null factors":    `{"factors":null}`,
		"missing value":   `{"factors":[{"key":"gpa"}]}`,
		"bool value":      `{"factors":[{"key":"gpa","value":true}]}`,
		"null value":      `{"factors":[{"key":"gpa","value":null}]}`,
		"list value":      `{"factors":[{"key":"gpa","value":["3.5+"]}]}`,
		"object value":    `{"factors":[{"key":"gpa","value":{"v":1}}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			w := doJSON(t, router, "POST", "/api/score", body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestScoreDuplicateKeysFirstWins(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	first := doJSON(t, router, "POST", "/api/score", `{"factors":[{"key":"gpa","value":"<2.5"},{"key":"gpa","value":"3.5+"}]}`)
	only := doJSON(t, router, "POST", "/api/score", `{"factors":[{"key":"gpa","value":"<2.5"}]}`)
	require.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, only.Body.String(), first.Body.String())
}

func TestVerify(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	w := doJSON(t, router, "POST", "/api/score", `{"factors":[{"key":"gpa","value":"3.0-3.49"},{"key":"need","value":"medium"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	issued := w.Body.String()

	w = doJSON(t, router, "POST", "/api/verify", issued)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":true,"key_source":"configured"}`, w.Body.String())

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(issued), &res))
	res["decision"] = "Full"
	tampered, err := json.Marshal(res)
	require.NoError(t, err)

	w = doJSON(t, router, "POST", "/api/verify", string(tampered))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":false,"key_source":"configured"}`, w.Body.String())

	w = doJSON(t, router, "POST", "/api/verify", `{"decision":"Full","index":90.0,"version":"2024.1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRouterCORS(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest("OPTIONS", "/api/score", nil)
	req.Header.Set("Origin", "https://apply.example.org")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://apply.example.org", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterRateLimit(t *testing.T) {
	r, err := rubric.LoadFile("../rubric/testdata/rubric.json")
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(scoring.NewEngine(r, signing.NewSigner(""), logger), nil, 2, logger)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, doJSON(t, router, "GET", "/api/config", "").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, doJSON(t, router, "GET", "/api/config", "").Code)
}

func TestMetricsRouter(t *testing.T) {
	router := NewMetricsRouter(signing.KeyDevFallback)

	w := doJSON(t, router, "GET", "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","signing_key":"dev-fallback"}`, w.Body.String())

	scoresTotal.WithLabelValues(string(scoring.Full))
	req := httptest.NewRequest("GET", "/metrics", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "bursary_scores_total")
	assert.Contains(t, body, "bursary_rule_skips_total")
	assert.Contains(t, body, "bursary_score_index")
}

func TestScoreBodyTooLarge(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	var buf bytes.Buffer
	buf.WriteString(`{"applicant":"`)
	buf.WriteString(strings.Repeat("x", maxBodyBytes))
	buf.WriteString(`","factors":[]}`)

	w := doJSON(t, router, "POST", "/api/score", buf.String())
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
