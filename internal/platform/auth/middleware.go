package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/readify/api/internal/platform/requestctx"
)

// Authenticator wires token verification into HTTP middleware.
type Authenticator struct {
	verifier TokenVerifier
	metrics  MetricsRecorder
	logger   Logger
	kind     string
	timeout  time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithMetrics records every verification outcome.
func WithMetrics(recorder MetricsRecorder) Option {
	return func(a *Authenticator) {
		a.metrics = recorder
	}
}

// WithMiddlewareLogger logs verification failures that are not caused by the caller.
func WithMiddlewareLogger(logger Logger) Option {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// WithVerifierKind labels metrics with the configured provider.
func WithVerifierKind(kind string) Option {
	return func(a *Authenticator) {
		if kind != "" {
			a.kind = kind
		}
	}
}

// WithVerificationTimeout bounds each verification call.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{verifier: verifier, kind: "jwt", timeout: 5 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireAuth verifies the Authorization bearer token and, when roles are given, ensures the
// identity carries one of them.
func (a *Authenticator) RequireAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}
			if a == nil || a.verifier == nil {
				respondAuthError(w, http.StatusServiceUnavailable, "auth_unavailable", "authorization service unavailable")
				return
			}

			ctx := r.Context()
			if a.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, a.timeout)
				defer cancel()
			}
			start := time.Now()
			identity, err := a.verifier.Verify(ctx, tokenStr)
			a.record(r, err == nil, reasonFor(err), time.Since(start))
			if err != nil {
				a.respondVerificationError(w, err)
				return
			}
			if identity.Role == "" {
				respondAuthError(w, http.StatusForbidden, "missing_role", "no role associated with identity")
				return
			}
			if len(allowedRoles) > 0 && !identity.HasAnyRole(allowedRoles...) {
				respondAuthError(w, http.StatusForbidden, "insufficient_role", "identity does not have required role")
				return
			}
			requestctx.RecordActor(r.Context(), identity.UID, identity.Role)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func (a *Authenticator) record(r *http.Request, success bool, reason string, d time.Duration) {
	if a.metrics != nil {
		a.metrics.RecordVerification(r.Context(), a.kind, success, reason, d)
	}
}

func (a *Authenticator) respondVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired):
		respondAuthError(w, http.StatusUnauthorized, "token_expired", "token expired")
	case errors.Is(err, ErrVerifierUnavailable):
		if a.logger != nil {
			a.logger.Printf("auth: verifier unavailable: %v", err)
		}
		respondAuthError(w, http.StatusServiceUnavailable, "auth_unavailable", "token verification unavailable")
	default:
		respondAuthError(w, http.StatusUnauthorized, "invalid_token", "token invalid")
	}
}

func reasonFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrVerifierUnavailable):
		return "unavailable"
	default:
		return "invalid"
	}
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   code,
		"message": message,
		"status":  status,
	})
}
