package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/busgate/server/internal/busgate/token"
)

func loggingMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()
		next.ServeHTTP(w, r)
		logger.Printf("%s %s from=%s dur=%s", r.Method, r.URL.Path, r.RemoteAddr, time.Since(start))
	})
}

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

type claimsKey struct{}

// claimsFrom returns the verified claims stashed by requireScope.
func claimsFrom(r *http.Request) *token.Claims {
	c, _ := r.Context().Value(claimsKey{}).(*token.Claims)
	return c
}

// requireScope is the session guard.  It classifies the bearer token as
// device- or user-scoped and admits the request only when the subject
// type and scope both match:
//
//   - no token / malformed / bad signature → 401 (you did not authenticate)
//   - expired → 401 with a distinct code so devices re-authenticate
//   - wrong subject type or missing scope → 403 (you authenticated, but
//     may not do this)
//
// Health probes never pass through here; they are registered outside
// the guard.
func (s *Server) requireScope(st token.SubjectType, scope string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_token", "authorization required")
			return
		}

		claims, err := s.verifier.Verify(raw)
		if err != nil {
			if errors.Is(err, token.ErrExpired) {
				writeError(w, http.StatusUnauthorized, "token_expired", "token has expired")
				return
			}
			writeError(w, http.StatusUnauthorized, "token_invalid", "token is invalid")
			return
		}

		if claims.SubjectType != st || !claims.HasScope(scope) {
			writeError(w, http.StatusForbidden, "insufficient_scope", "token does not grant access to this endpoint")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
