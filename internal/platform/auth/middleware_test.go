package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type recordingMetrics struct {
	mu      sync.Mutex
	records []verificationRecord
}

type verificationRecord struct {
	kind    string
	success bool
	reason  string
}

func (m *recordingMetrics) RecordVerification(_ context.Context, kind string, success bool, reason string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, verificationRecord{kind: kind, success: success, reason: reason})
}

func staticVerifier(identity *Identity, err error) TokenVerifier {
	return TokenVerifierFunc(func(context.Context, string) (*Identity, error) {
		return identity, err
	})
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		verifier   TokenVerifier
		roles      []string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing header",
			verifier:   staticVerifier(&Identity{UID: "u", Role: RoleCustomer}, nil),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "unauthenticated",
		},
		{
			name:       "wrong scheme",
			header:     "Basic abc",
			verifier:   staticVerifier(&Identity{UID: "u", Role: RoleCustomer}, nil),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "unauthenticated",
		},
		{
			name:       "expired",
			header:     "Bearer tok",
			verifier:   staticVerifier(nil, ErrTokenExpired),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "token_expired",
		},
		{
			name:       "invalid",
			header:     "Bearer tok",
			verifier:   staticVerifier(nil, fmt.Errorf("%w: bad signature", ErrTokenInvalid)),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_token",
		},
		{
			name:       "verifier down",
			header:     "Bearer tok",
			verifier:   staticVerifier(nil, fmt.Errorf("%w: jwks", ErrVerifierUnavailable)),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "auth_unavailable",
		},
		{
			name:       "no role",
			header:     "Bearer tok",
			verifier:   staticVerifier(&Identity{UID: "u"}, nil),
			wantStatus: http.StatusForbidden,
			wantCode:   "missing_role",
		},
		{
			name:       "role not allowed",
			header:     "Bearer tok",
			verifier:   staticVerifier(&Identity{UID: "u", Role: RoleSeller}, nil),
			roles:      []string{RoleCustomer},
			wantStatus: http.StatusForbidden,
			wantCode:   "insufficient_role",
		},
		{
			name:       "allowed",
			header:     "bearer tok",
			verifier:   staticVerifier(&Identity{UID: "u", Role: RoleCustomer}, nil),
			roles:      []string{RoleCustomer, RoleSeller},
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			metrics := &recordingMetrics{}
			authn := NewAuthenticator(tc.verifier, WithMetrics(metrics), WithMiddlewareLogger(noopLogger{}), WithVerifierKind("jwt"))

			var seen *Identity
			handler := authn.RequireAuth(tc.roles...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = IdentityFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			if tc.wantCode == "" {
				if seen == nil || seen.UID != "u" {
					t.Fatalf("expected identity in context, got %+v", seen)
				}
				return
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != tc.wantCode || body["success"] != false {
				t.Fatalf("unexpected body %v", body)
			}
		})
	}
}

func TestRequireAuth_RecordsMetrics(t *testing.T) {
	metrics := &recordingMetrics{}
	authn := NewAuthenticator(staticVerifier(nil, ErrTokenExpired), WithMetrics(metrics), WithVerifierKind("jwks"))
	handler := authn.RequireAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(metrics.records) != 1 {
		t.Fatalf("expected one record, got %d", len(metrics.records))
	}
	if got := metrics.records[0]; got.kind != "jwks" || got.success || got.reason != "expired" {
		t.Fatalf("unexpected record %+v", got)
	}
}
