package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
)

type jwksServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests int
}

func newJWKSServer(t *testing.T, key *rsa.PrivateKey, kid string) *jwksServer {
	t.Helper()
	srv := &jwksServer{}
	jwk := jose.JSONWebKey{Key: &key.PublicKey, KeyID: kid, Algorithm: jwt.SigningMethodRS256.Alg(), Use: "sig"}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.mu.Lock()
		srv.requests++
		srv.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (s *jwksServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestJWKSCache_KeyCachesKeys(t *testing.T) {
	key := generateKey(t)
	server := newJWKSServer(t, key, "key1")
	cache := NewJWKSCache(server.URL,
		WithJWKSLogger(noopLogger{}),
		WithJWKSClock(func() time.Time { return testNow }),
		WithoutJWKSBackgroundRefresh(),
	)

	for i := 0; i < 2; i++ {
		got, err := cache.Key(context.Background(), "key1")
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		if _, ok := got.(*rsa.PublicKey); !ok {
			t.Fatalf("expected *rsa.PublicKey, got %T", got)
		}
	}
	if server.count() != 1 {
		t.Fatalf("expected single fetch, got %d", server.count())
	}
}

func TestJWKSCache_UnknownKidRefetches(t *testing.T) {
	key := generateKey(t)
	server := newJWKSServer(t, key, "key1")
	cache := NewJWKSCache(server.URL, WithJWKSLogger(noopLogger{}), WithoutJWKSBackgroundRefresh())

	_, err := cache.Key(context.Background(), "missing")
	if !errors.Is(err, ErrJWKSKeyNotFound) {
		t.Fatalf("expected key not found, got %v", err)
	}
	if server.count() != 2 {
		t.Fatalf("expected refetch for unknown kid, got %d fetches", server.count())
	}
}

func TestJWKSVerifier_VerifiesRS256(t *testing.T) {
	key := generateKey(t)
	server := newJWKSServer(t, key, "key1")
	cache := NewJWKSCache(server.URL, WithJWKSLogger(noopLogger{}), WithoutJWKSBackgroundRefresh())
	verifier, err := NewJWKSVerifier(cache,
		WithIssuer("https://auth.readify.test"),
		WithAudience("readify-api"),
		WithClock(func() time.Time { return testNow }),
	)
	if err != nil {
		t.Fatalf("NewJWKSVerifier: %v", err)
	}

	token := signRS256(t, key, "key1", jwt.MapClaims{
		"sub":  "seller-1",
		"role": "seller",
		"iss":  "https://auth.readify.test",
		"aud":  []string{"readify-api"},
		"exp":  testNow.Add(time.Hour).Unix(),
	})
	identity, err := verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if identity.UID != "seller-1" || !identity.HasRole(RoleSeller) {
		t.Fatalf("unexpected identity %+v", identity)
	}

	other := generateKey(t)
	forged := signRS256(t, other, "key1", jwt.MapClaims{"sub": "seller-1", "iss": "https://auth.readify.test", "aud": "readify-api"})
	if _, err := verifier.Verify(context.Background(), forged); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected forged token to be invalid, got %v", err)
	}
}

func TestJWKSVerifier_FetchFailureIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	cache := NewJWKSCache(server.URL, WithJWKSLogger(noopLogger{}), WithoutJWKSBackgroundRefresh())
	verifier, err := NewJWKSVerifier(cache)
	if err != nil {
		t.Fatalf("NewJWKSVerifier: %v", err)
	}
	token := signRS256(t, generateKey(t), "key1", jwt.MapClaims{"sub": "u"})
	if _, err := verifier.Verify(context.Background(), token); !errors.Is(err, ErrVerifierUnavailable) {
		t.Fatalf("expected verifier unavailable, got %v", err)
	}
}

func TestParseMaxAge(t *testing.T) {
	cases := map[string]time.Duration{
		"":                      0,
		"no-store":              0,
		"max-age=60":            time.Minute,
		"public, max-age=3600":  time.Hour,
		"public, MAX-AGE=10":    10 * time.Second,
		"public, max-age=bogus": 0,
	}
	for header, want := range cases {
		if got := parseMaxAge(header); got != want {
			t.Fatalf("parseMaxAge(%q) = %s, want %s", header, got, want)
		}
	}
}
