package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Bursary/internal/hermes"
	"github.com/MikeSquared-Agency/Bursary/internal/scoring"
	"github.com/MikeSquared-Agency/Bursary/internal/signing"
)

// NewRouter builds the public API. events may be nil.
func NewRouter(engine *scoring.Engine, events hermes.Client, rateLimitRPM int, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(CORSMiddleware(engine.Rubric().AllowedOrigins()))
	r.Use(RateLimitMiddleware(rateLimitRPM))

	score := NewScoreHandler(engine, events, logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", score.Config)
		r.Post("/score", score.Score)
		r.Post("/verify", score.Verify)
	})

	return r
}

func NewMetricsRouter(keySource signing.KeySource) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":      "ok",
			"signing_key": string(keySource),
		})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
