// Package sdk serves the /exec contract for any connector implementation.
package sdk

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bturcanu/monterosa-connector/pkg/connectors"
)

const maxBodyBytes = 1 << 20

const defaultTimeout = 15 * time.Second

type Config struct {
	InternalToken string
	Timeout       time.Duration
	Logger        *slog.Logger
}

// Handler decodes an ExecRequest, runs it through conn under cfg.Timeout
// and encodes the ExecResponse.
func Handler(conn connectors.Connector, cfg Config) http.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.InternalToken != "" &&
			subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Internal-Token")), []byte(cfg.InternalToken)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req connectors.ExecRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		resp := conn.Exec(ctx, req)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Error("encode response failed", "error", err)
		}
	}
}
