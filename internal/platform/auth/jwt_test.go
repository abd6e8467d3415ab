package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
)

var testNow = time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newTestHMACVerifier(t *testing.T, opts ...JWTOption) *JWTVerifier {
	t.Helper()
	opts = append([]JWTOption{WithClock(func() time.Time { return testNow }), WithLogger(noopLogger{})}, opts...)
	verifier, err := NewHMACVerifier([]byte("s3cret"), opts...)
	if err != nil {
		t.Fatalf("NewHMACVerifier: %v", err)
	}
	return verifier
}

func TestHMACVerifier_ExtractsIdentity(t *testing.T) {
	verifier := newTestHMACVerifier(t)
	token := signHS256(t, "s3cret", jwt.MapClaims{
		"user_id": "cust-1",
		"sub":     "ignored",
		"email":   "Reader@Example.com",
		"role":    "Customer",
		"exp":     testNow.Add(time.Hour).Unix(),
	})

	identity, err := verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if identity.UID != "cust-1" {
		t.Fatalf("expected user_id claim to win, got %q", identity.UID)
	}
	if identity.Role != RoleCustomer {
		t.Fatalf("expected role customer, got %q", identity.Role)
	}
	if identity.Email != "reader@example.com" {
		t.Fatalf("expected lowercased email, got %q", identity.Email)
	}
}

func TestHMACVerifier_FallsBackToSubject(t *testing.T) {
	verifier := newTestHMACVerifier(t, WithRoleClaim("roles"))
	token := signHS256(t, "s3cret", jwt.MapClaims{
		"sub":   "seller-1",
		"roles": []string{"seller", "customer"},
	})

	identity, err := verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if identity.UID != "seller-1" || identity.Role != RoleSeller {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestHMACVerifier_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		claims  jwt.MapClaims
		opts    []JWTOption
		wantErr error
	}{
		{
			name:    "expired",
			secret:  "s3cret",
			claims:  jwt.MapClaims{"user_id": "u", "exp": testNow.Add(-time.Minute).Unix()},
			wantErr: ErrTokenExpired,
		},
		{
			name:    "wrong secret",
			secret:  "other",
			claims:  jwt.MapClaims{"user_id": "u"},
			wantErr: ErrTokenInvalid,
		},
		{
			name:    "missing subject",
			secret:  "s3cret",
			claims:  jwt.MapClaims{"role": "customer"},
			wantErr: ErrTokenInvalid,
		},
		{
			name:    "issuer mismatch",
			secret:  "s3cret",
			claims:  jwt.MapClaims{"user_id": "u", "iss": "someone-else"},
			opts:    []JWTOption{WithIssuer("readify")},
			wantErr: ErrTokenInvalid,
		},
		{
			name:    "audience mismatch",
			secret:  "s3cret",
			claims:  jwt.MapClaims{"user_id": "u", "aud": "admin-portal"},
			opts:    []JWTOption{WithAudience("readify-api")},
			wantErr: ErrTokenInvalid,
		},
		{
			name:    "not yet valid",
			secret:  "s3cret",
			claims:  jwt.MapClaims{"user_id": "u", "nbf": testNow.Add(time.Hour).Unix()},
			wantErr: ErrTokenInvalid,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			verifier := newTestHMACVerifier(t, tc.opts...)
			_, err := verifier.Verify(context.Background(), signHS256(t, tc.secret, tc.claims))
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestHMACVerifier_RejectsNoneAlgorithm(t *testing.T) {
	verifier := newTestHMACVerifier(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "u"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := verifier.Verify(context.Background(), token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestNewHMACVerifier_RequiresSecret(t *testing.T) {
	if _, err := NewHMACVerifier(nil); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
