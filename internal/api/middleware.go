package api

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chiMiddleware.GetReqID(r.Context()),
			)
		})
	}
}

var (
	corsMethods = []string{http.MethodGet, http.MethodPost}
	corsHeaders = []string{"content-type", "authorization"}
)

// CORSMiddleware admits browser calls from the given origins. "*" admits
// any origin. Credentials are never allowed.
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	wildcard := slices.Contains(origins, "*")
	allowed := func(origin string) bool {
		return wildcard || slices.Contains(origins, origin)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			if !wildcard {
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				preflight(w, r, allowed(origin), wildcard)
				return
			}

			if allowed(origin) {
				if wildcard {
					h.Set("Access-Control-Allow-Origin", "*")
				} else {
					h.Set("Access-Control-Allow-Origin", origin)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func preflight(w http.ResponseWriter, r *http.Request, originOK, wildcard bool) {
	var problems []string
	if !originOK {
		problems = append(problems, "origin")
	}
	if !slices.Contains(corsMethods, r.Header.Get("Access-Control-Request-Method")) {
		problems = append(problems, "method")
	}
	for _, hdr := range strings.Split(r.Header.Get("Access-Control-Request-Headers"), ",") {
		hdr = strings.ToLower(strings.TrimSpace(hdr))
		if hdr != "" && !slices.Contains(corsHeaders, hdr) {
			problems = append(problems, "headers")
			break
		}
	}

	h := w.Header()
	h.Set("Access-Control-Allow-Methods", strings.Join(corsMethods, ", "))
	h.Set("Access-Control-Allow-Headers", strings.Join(corsHeaders, ", "))
	h.Set("Access-Control-Max-Age", "600")
	if originOK {
		if wildcard {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", r.Header.Get("Origin"))
		}
	}

	if len(problems) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "disallowed CORS " + strings.Join(problems, ", "),
		})
		return
	}
	w.WriteHeader(http.StatusOK)
}

type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func (rl *rateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

// RateLimitMiddleware allows each client address requestsPerMinute requests,
// refilled evenly across the minute. Zero or less disables limiting.
func RateLimitMiddleware(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	rl := &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:    requestsPerMinute,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.get(clientKey(r)).Allow() {
				scoreRejections.WithLabelValues("rate_limited").Inc()
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
