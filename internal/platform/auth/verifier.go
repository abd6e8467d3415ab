package auth

import (
	"context"
	"errors"
	"log"
	"time"
)

var (
	// ErrTokenExpired signals that the bearer token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the bearer token failed verification.
	ErrTokenInvalid = errors.New("auth: token invalid")
	// ErrVerifierUnavailable signals that verification could not run, e.g. keys could not be fetched.
	ErrVerifierUnavailable = errors.New("auth: verifier unavailable")
)

// TokenVerifier turns a raw bearer token into an Identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// TokenVerifierFunc adapts a function to TokenVerifier.
type TokenVerifierFunc func(ctx context.Context, token string) (*Identity, error)

// Verify implements TokenVerifier.
func (f TokenVerifierFunc) Verify(ctx context.Context, token string) (*Identity, error) {
	return f(ctx, token)
}

// Logger captures the minimal logging contract used by the auth package.
type Logger interface {
	Printf(format string, args ...any)
}

// MetricsRecorder records verification outcomes for observability.
type MetricsRecorder interface {
	RecordVerification(ctx context.Context, kind string, success bool, reason string, duration time.Duration)
}

// MetricsRecorderFunc adapts a function to MetricsRecorder.
type MetricsRecorderFunc func(context.Context, string, bool, string, time.Duration)

// RecordVerification implements MetricsRecorder.
func (f MetricsRecorderFunc) RecordVerification(ctx context.Context, kind string, success bool, reason string, duration time.Duration) {
	if f != nil {
		f(ctx, kind, success, reason, duration)
	}
}

const defaultRoleClaim = "role"

// claimsConfig is shared by the JWT based verifiers.
type claimsConfig struct {
	issuer    string
	audience  string
	roleClaim string
	logger    Logger
	now       func() time.Time
}

func defaultClaimsConfig() claimsConfig {
	return claimsConfig{roleClaim: defaultRoleClaim, logger: log.Default(), now: time.Now}
}

// JWTOption customises the JWT based verifiers.
type JWTOption func(*claimsConfig)

// WithIssuer requires the iss claim to equal issuer.
func WithIssuer(issuer string) JWTOption {
	return func(c *claimsConfig) { c.issuer = issuer }
}

// WithAudience requires the aud claim to contain audience.
func WithAudience(audience string) JWTOption {
	return func(c *claimsConfig) { c.audience = audience }
}

// WithRoleClaim overrides the claim used for role extraction.
func WithRoleClaim(claim string) JWTOption {
	return func(c *claimsConfig) {
		if claim != "" {
			c.roleClaim = claim
		}
	}
}

// WithLogger overrides the verifier logger.
func WithLogger(logger Logger) JWTOption {
	return func(c *claimsConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock injects a custom clock (primarily for testing).
func WithClock(now func() time.Time) JWTOption {
	return func(c *claimsConfig) {
		if now != nil {
			c.now = now
		}
	}
}
