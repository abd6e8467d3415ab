package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/readify/api/internal/platform/auth"
)

var fixedTime = time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)

func newRequest(t *testing.T, uid, key, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	if uid != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid, Role: auth.RoleCustomer}))
	}
	return req
}

func countingHandler(calls *int, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"success":true,"n":` + string(rune('0'+*calls)) + `}`))
	})
}

func TestMiddleware_PassesThroughWithoutKey(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(countingHandler(&calls, http.StatusCreated))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), newRequest(t, "cust-1", "", `{}`))
	}
	if calls != 2 {
		t.Fatalf("expected both requests to reach the handler, got %d", calls)
	}
}

func TestMiddleware_ReplaysStoredResponse(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(countingHandler(&calls, http.StatusCreated))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, newRequest(t, "cust-1", "order-abc", `{"items":[]}`))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, newRequest(t, "cust-1", "order-abc", `{"items":[]}`))

	if calls != 1 {
		t.Fatalf("expected handler to run once, got %d", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Fatalf("expected replay of %d %s, got %d %s", first.Code, first.Body.String(), second.Code, second.Body.String())
	}
	if second.Header().Get(replayHeaderName) != "true" || second.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected replay headers %v", second.Header())
	}
	if first.Header().Get(replayHeaderName) != "" {
		t.Fatalf("first response must not be marked as replay")
	}
}

func TestMiddleware_KeysAreScopedPerCaller(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore())(countingHandler(&calls, http.StatusCreated))

	handler.ServeHTTP(httptest.NewRecorder(), newRequest(t, "cust-1", "shared", `{}`))
	handler.ServeHTTP(httptest.NewRecorder(), newRequest(t, "cust-2", "shared", `{}`))

	if calls != 2 {
		t.Fatalf("expected separate callers to run independently, got %d calls", calls)
	}
}

func TestMiddleware_ConflictingBody(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore())(countingHandler(&calls, http.StatusCreated))

	handler.ServeHTTP(httptest.NewRecorder(), newRequest(t, "cust-1", "same-key", `{"a":1}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest(t, "cust-1", "same-key", `{"a":2}`))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	assertErrorCode(t, rec.Body.Bytes(), "idempotency_key_conflict")
}

func TestMiddleware_PendingKeyConflicts(t *testing.T) {
	store := NewMemoryStore()
	req := newRequest(t, "cust-1", "busy", `{}`)
	key := scopedKey("busy", "cust-1")
	if _, err := store.Reserve(context.Background(), key, requestFingerprint(req, []byte(`{}`)), fixedTime, time.Hour); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	var calls int
	rec := httptest.NewRecorder()
	Middleware(store, WithClock(func() time.Time { return fixedTime }))(countingHandler(&calls, http.StatusCreated)).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict || calls != 0 {
		t.Fatalf("expected in-progress conflict without running handler, got %d (calls=%d)", rec.Code, calls)
	}
	assertErrorCode(t, rec.Body.Bytes(), "idempotency_in_progress")
}

func TestMiddleware_ServerErrorReleasesKey(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore())(countingHandler(&calls, http.StatusInternalServerError))

	handler.ServeHTTP(httptest.NewRecorder(), newRequest(t, "cust-1", "retry-me", `{}`))
	handler.ServeHTTP(httptest.NewRecorder(), newRequest(t, "cust-1", "retry-me", `{}`))

	if calls != 2 {
		t.Fatalf("expected retry after server error, got %d calls", calls)
	}
}

func TestMemoryStore_ExpiredKeysAreReusableAndCleaned(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if _, err := store.Reserve(ctx, "k", "fp-1", fixedTime, time.Minute); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	later := fixedTime.Add(2 * time.Minute)
	res, err := store.Reserve(ctx, "k", "fp-2", later, time.Minute)
	if err != nil || res.State != ReservationStateNew {
		t.Fatalf("expected expired key to be reusable, got %+v (%v)", res, err)
	}

	removed, err := cleanupOnce(ctx, store, later.Add(2*time.Minute), 10)
	if err != nil || removed != 1 {
		t.Fatalf("expected one expired key removed, got %d (%v)", removed, err)
	}
}

func TestRunCleanupStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunCleanup(ctx, NewMemoryStore(), time.Millisecond, 10, nil, nil)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}

func assertErrorCode(t *testing.T, body []byte, code string) {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if payload["error"] != code || payload["success"] != false {
		t.Fatalf("expected error %q, got %v", code, payload)
	}
}
