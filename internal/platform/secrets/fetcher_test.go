package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func writeFallback(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing fallback file: %v", err)
	}
	return path
}

func TestResolveCachesRemoteSecret(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	resource := "projects/readify/secrets/auth_jwt/versions/latest"
	client.values[resource] = "remote-secret"

	now := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithProject("readify"),
		WithLogger(zap.NewNop()),
		WithCacheTTL(time.Minute),
		WithClock(func() time.Time { return now }),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	for i := 0; i < 2; i++ {
		got, err := fetcher.Resolve(ctx, "secret://auth/jwt")
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		if got != "remote-secret" {
			t.Fatalf("expected remote-secret, got %s", got)
		}
	}
	if calls := client.callCount(resource); calls != 1 {
		t.Fatalf("expected remote fetch once, got %d", calls)
	}

	now = now.Add(2 * time.Minute)
	if _, err := fetcher.Resolve(ctx, "secret://auth/jwt"); err != nil {
		t.Fatalf("Resolve after expiry returned error: %v", err)
	}
	if calls := client.callCount(resource); calls != 2 {
		t.Fatalf("expected refetch after ttl, got %d calls", calls)
	}
}

func TestResolveHonoursVersionAndProject(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	resource := "projects/other/secrets/storage_signer/versions/5"
	client.values[resource] = "version-5"

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(client), WithProject("readify"), WithFallbackFile(""))
	if err != nil {
		t.Fatalf("NewFetcher error: %v", err)
	}

	got, err := fetcher.ResolveSecret(ctx, "secret://storage/signer?version=5&project=other")
	if err != nil {
		t.Fatalf("ResolveSecret returned error: %v", err)
	}
	if got != "version-5" {
		t.Fatalf("expected version-5, got %s", got)
	}
}

func TestResolveFallsBackWhenSecretManagerUnavailable(t *testing.T) {
	ctx := context.Background()
	path := writeFallback(t, "# local dev\nsecret://auth/jwt=local-secret\nsm://storage/signer?version=2=signer-v2\n")

	client := newFakeSecretClient()
	client.errors["projects/readify/secrets/auth_jwt/versions/latest"] = status.Error(codes.PermissionDenied, "denied")
	client.errors["projects/readify/secrets/storage_signer/versions/2"] = status.Error(codes.Unavailable, "down")

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(client), WithProject("readify"), WithFallbackFile(path))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}

	got, err := fetcher.Resolve(ctx, "secret://auth/jwt")
	if err != nil || got != "local-secret" {
		t.Fatalf("expected fallback local-secret, got %q (%v)", got, err)
	}
	got, err = fetcher.Resolve(ctx, "secret://storage/signer?version=2")
	if err != nil || got != "signer-v2" {
		t.Fatalf("expected versioned fallback signer-v2, got %q (%v)", got, err)
	}
}

func TestResolveDoesNotFallbackOnNotFound(t *testing.T) {
	ctx := context.Background()
	path := writeFallback(t, "secret://auth/jwt=local-secret\n")
	client := newFakeSecretClient()
	client.errors["projects/readify/secrets/auth_jwt/versions/latest"] = status.Error(codes.NotFound, "missing")

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(client), WithProject("readify"), WithFallbackFile(path))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	if _, err := fetcher.Resolve(ctx, "secret://auth/jwt"); err == nil {
		t.Fatal("expected error when secret is missing")
	}
}

func TestNewFetcherWithoutCredentialsUsesFallback(t *testing.T) {
	ctx := context.Background()
	originalFactory := secretManagerClientFactory
	secretManagerClientFactory = func(context.Context, ...option.ClientOption) (secretManagerClient, error) {
		return nil, errors.New("no credentials")
	}
	t.Cleanup(func() { secretManagerClientFactory = originalFactory })

	path := writeFallback(t, "secret://auth/jwt=local-secret\n")
	fetcher, err := NewFetcher(ctx, WithProject("readify"), WithFallbackFile(path))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	value, err := fetcher.Resolve(ctx, "secret://auth/jwt")
	if err != nil || value != "local-secret" {
		t.Fatalf("expected local secret, got %q (%v)", value, err)
	}
}

func TestParseReference(t *testing.T) {
	tests := []struct {
		ref     string
		want    parsedReference
		wantErr bool
	}{
		{ref: "secret://auth/jwt", want: parsedReference{Canonical: "secret://auth/jwt", Name: "auth/jwt"}},
		{ref: "secret://jwt?version=3", want: parsedReference{Canonical: "secret://jwt", Name: "jwt", Version: "3"}},
		{ref: "", wantErr: true},
		{ref: "https://example.com/x", wantErr: true},
		{ref: "secret://", wantErr: true},
	}
	for _, tc := range tests {
		got, err := parseReference(tc.ref)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseReference(%q): expected error", tc.ref)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseReference(%q): %v", tc.ref, err)
		}
		if got != tc.want {
			t.Fatalf("parseReference(%q) = %+v, want %+v", tc.ref, got, tc.want)
		}
	}
}

type fakeSecretClient struct {
	mu      sync.Mutex
	values  map[string]string
	errors  map[string]error
	counter map[string]int
}

func newFakeSecretClient() *fakeSecretClient {
	return &fakeSecretClient{
		values:  make(map[string]string),
		errors:  make(map[string]error),
		counter: make(map[string]int),
	}
}

func (f *fakeSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := req.GetName()
	f.counter[name]++
	if err, ok := f.errors[name]; ok {
		return nil, err
	}
	if value, ok := f.values[name]; ok {
		return &secretmanagerpb.AccessSecretVersionResponse{
			Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
		}, nil
	}
	return nil, status.Error(codes.NotFound, "not found")
}

func (f *fakeSecretClient) Close() error { return nil }

func (f *fakeSecretClient) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counter[name]
}
