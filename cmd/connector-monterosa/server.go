package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bturcanu/monterosa-connector/pkg/auth"
	"github.com/bturcanu/monterosa-connector/pkg/connectors/sdk"
	"github.com/bturcanu/monterosa-connector/pkg/controlapi"
	"github.com/bturcanu/monterosa-connector/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

const (
	maxBodyBytes    = 1 << 20 // 1 MB
	maxRateLimiters = 10_000
)

type serverConfig struct {
	InternalToken string
	ExecTimeout   time.Duration
	RateLimit     int
	Keys          *auth.KeyStore
	// Ready reports whether dependencies are reachable. Nil means always ready.
	Ready         func(context.Context) error
}

func newRouter(log *slog.Logger, conn *MonterosaConnector, cfg serverConfig) http.Handler {
	limiter := newClientLimiter(cfg.RateLimit)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(auth.APIKeyAuth(cfg.Keys))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("NOT READY"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Post("/exec", sdk.Handler(conn, sdk.Config{
			InternalToken: cfg.InternalToken,
			Timeout:       cfg.ExecTimeout,
			Logger:        log,
		}))
		r.Post("/v1/options/content-types", handleContentTypes(log, conn))
		r.Post("/v1/credentials/test", handleCredentialsTest(log, conn))
	})
	return r
}

// ──────────────────────────────────────────────────────────────────────────────
// Option and credential endpoints
// ──────────────────────────────────────────────────────────────────────────────

type contentTypesRequest struct {
	Credentials *controlapi.Credentials `json:"credentials"`
	ProjectID   string                  `json:"project_id"`
}

type credentialsTestRequest struct {
	Credentials *controlapi.Credentials `json:"credentials"`
}

// handleContentTypes is POST /v1/options/content-types
func handleContentTypes(log *slog.Logger, conn *MonterosaConnector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contentTypesRequest
		if !decodeBody(w, r, &req) {
			return
		}
		client, err := conn.client(req.Credentials)
		if err != nil {
			writeError(w, err)
			return
		}
		options, err := client.ContentTypes(r.Context(), req.ProjectID)
		if err != nil {
			log.ErrorContext(r.Context(), "content types lookup failed", "project_id", req.ProjectID, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(log, w, options)
	}
}

// handleCredentialsTest is POST /v1/credentials/test
func handleCredentialsTest(log *slog.Logger, conn *MonterosaConnector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsTestRequest
		if !decodeBody(w, r, &req) {
			return
		}
		client, err := conn.client(req.Credentials)
		if err != nil {
			writeError(w, err)
			return
		}
		if _, err := client.Me(r.Context()); err != nil {
			writeError(w, controlapi.NewOperationError("Failed to verify credentials", err))
			return
		}
		writeJSON(log, w, map[string]string{"status": "ok"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		types.ErrBadRequest("invalid JSON body").WriteJSON(w)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	var ve *types.ValidationError
	var opErr *controlapi.OperationError
	switch {
	case errors.As(err, &ve):
		types.ErrValidation(err).WriteJSON(w)
	case errors.As(err, &opErr):
		types.ErrUpstream(opErr.Message, opErr.Description).WriteJSON(w)
	default:
		types.ErrInternal("request processing failed").WriteJSON(w)
	}
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("response encode failed", "error", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Rate limiting (bounded map with eviction)
// ──────────────────────────────────────────────────────────────────────────────

type clientLimiter struct {
	mu       sync.Mutex
	limit    int
	limiters map[string]*rate.Limiter
	order    []string
}

func newClientLimiter(perClient int) *clientLimiter {
	return &clientLimiter{limit: perClient, limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether clientID may make another request now. A
// non-positive limit disables limiting.
func (l *clientLimiter) Allow(clientID string) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[clientID]
	if ok {
		// Move to end of LRU order.
		for i, k := range l.order {
			if k == clientID {
				l.order = append(l.order[:i], l.order[i+1:]...)
				break
			}
		}
		l.order = append(l.order, clientID)
		return lim.Allow()
	}

	if len(l.limiters) >= maxRateLimiters {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.limiters, oldest)
	}

	lim = rate.NewLimiter(rate.Limit(l.limit), l.limit*2)
	l.limiters[clientID] = lim
	l.order = append(l.order, clientID)
	return lim.Allow()
}

func (l *clientLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(auth.ClientIDFromContext(r.Context())) {
			types.ErrRateLimited().WriteJSON(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
