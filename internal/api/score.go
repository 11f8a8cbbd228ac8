package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Bursary/internal/hermes"
	"github.com/MikeSquared-Agency/Bursary/internal/scoring"
)

const maxBodyBytes = 1 << 20

type ScoreHandler struct {
	engine *scoring.Engine
	events hermes.Client
	logger *slog.Logger
}

func NewScoreHandler(e *scoring.Engine, events hermes.Client, logger *slog.Logger) *ScoreHandler {
	return &ScoreHandler{engine: e, events: events, logger: logger}
}

// Config serves the applicant-facing view of the rubric.
func (h *ScoreHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Rubric().Redacted())
}

func (h *ScoreHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req scoring.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.reject(w, req.Applicant, "invalid_body", "invalid request body: "+err.Error())
		return
	}
	if msg := checkRequest(req); msg != "" {
		h.reject(w, req.Applicant, "invalid_body", msg)
		return
	}

	res, bd, err := h.engine.Score(req)
	var unknown *scoring.UnknownFactorError
	if errors.As(err, &unknown) {
		h.reject(w, req.Applicant, "unknown_factor", err.Error())
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scoring failed"})
		return
	}

	scoresTotal.WithLabelValues(string(res.Decision)).Inc()
	scoreIndex.Observe(res.Index)
	ruleSkips.Add(float64(len(bd.Bonus.Skipped)))

	h.publish(hermes.SubjectScoreComputed(string(res.Decision)), hermes.ScoreComputedEvent{
		EventID:      uuid.New().String(),
		Applicant:    req.Applicant,
		Decision:     string(res.Decision),
		Index:        res.Index,
		Version:      res.Version,
		Signature:    res.Signature,
		KeySource:    string(h.engine.Signer().KeySource()),
		RulesFired:   bd.Bonus.Fired,
		RulesSkipped: len(bd.Bonus.Skipped),
		Timestamp:    time.Now().UTC(),
	})

	writeJSON(w, http.StatusOK, res)
}

type VerifyResponse struct {
	Valid     bool   `json:"valid"`
	KeySource string `json:"key_source"`
}

// Verify checks a previously issued result against the active key.
func (h *ScoreHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var res scoring.Result
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&res); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if res.Signature == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "signature: field required"})
		return
	}
	writeJSON(w, http.StatusOK, VerifyResponse{
		Valid:     h.engine.Verify(res),
		KeySource: string(h.engine.Signer().KeySource()),
	})
}

func checkRequest(req scoring.Request) string {
	if req.Factors == nil {
		return "factors: field required"
	}
	for i, f := range req.Factors {
		if f.Value.IsNone() {
			return fmt.Sprintf("factors[%d].value: field required", i)
		}
	}
	return ""
}

func (h *ScoreHandler) reject(w http.ResponseWriter, applicant, reason, msg string) {
	scoreRejections.WithLabelValues(reason).Inc()
	h.publish(hermes.SubjectScoreRejected(), hermes.ScoreRejectedEvent{
		EventID:   uuid.New().String(),
		Applicant: applicant,
		Reason:    msg,
		Timestamp: time.Now().UTC(),
	})
	writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": msg})
}

func (h *ScoreHandler) publish(subject string, event interface{}) {
	if h.events == nil {
		return
	}
	if err := h.events.Publish(subject, event); err != nil {
		h.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
