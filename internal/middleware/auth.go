package middleware

import (
	"net/http"
	"strings"
)

// Authenticator resolves a bearer token to a wallet address.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireAuth rejects requests without a valid bearer token with 401
// auth_failed. On success the wallet is available through GetWallet.
func RequireAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "auth_failed", "Missing bearer token")
				return
			}
			wallet, err := auth.Authenticate(token)
			if err != nil || wallet == "" {
				writeError(w, r, http.StatusUnauthorized, "auth_failed", "Invalid or expired token")
				return
			}
			ctx := SetWallet(r.Context(), wallet)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the wallet when a valid bearer token is present and
// otherwise passes the request through anonymously.
func OptionalAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := BearerToken(r); ok {
				if wallet, err := auth.Authenticate(token); err == nil && wallet != "" {
					r = r.WithContext(SetWallet(r.Context(), wallet))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
