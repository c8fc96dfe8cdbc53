// Package auth authenticates the workflow host calling the connector.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/bturcanu/monterosa-connector/pkg/types"
)

type contextKey string

const clientKey contextKey = "client_id"

// AnonymousClient is the client ID used when no API keys are configured.
const AnonymousClient = "anonymous"

// ClientIDFromContext extracts the authenticated client ID from the context.
func ClientIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(clientKey).(string)
	return v
}

// WithClientID stores a client ID on the context.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientKey, clientID)
}

// APIKeyAuth returns middleware that validates API keys and sets the client
// context. With an empty store every caller is AnonymousClient.
func APIKeyAuth(keys *KeyStore) func(http.Handler) http.Handler {
	skipPaths := map[string]bool{
		"/healthz": true,
		"/readyz":  true,
		"/metrics": true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if keys.Len() == 0 {
				next.ServeHTTP(w, r.WithContext(WithClientID(r.Context(), AnonymousClient)))
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				// Also check Authorization: Bearer
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					apiKey = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if apiKey == "" {
				types.ErrUnauthorized("missing API key").WriteJSON(w)
				return
			}

			clientID, ok := keys.Lookup(apiKey)
			if !ok {
				types.ErrUnauthorized("invalid API key").WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClientID(r.Context(), clientID)))
		})
	}
}
