package devserver

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is the type for context keys
type contextKey string

// accountKey is the context key for the authenticated account
const accountKey contextKey = "account"

// authMiddleware validates the bearer token against the catalog's accounts
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			writeJSONError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		acct := s.catalog.findAccount(parts[1])
		if acct == nil {
			writeJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), accountKey, acct)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accountFrom returns the authenticated account from the request context
func accountFrom(r *http.Request) *Account {
	acct, _ := r.Context().Value(accountKey).(*Account)
	return acct
}
