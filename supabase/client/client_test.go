package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Config{
		URL:    url,
		APIKey: "anon-key",
		Retry:  &RetryConfig{MaxRetries: 0},
		// Disable the breaker so individual tests control failure handling.
		Breaker: &CircuitBreakerConfig{},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestNewRequiresURLAndKey(t *testing.T) {
	if _, err := New(Config{APIKey: "k"}); err == nil {
		t.Error("expected error when URL is missing")
	}
	if _, err := New(Config{URL: "https://example.supabase.co"}); err == nil {
		t.Error("expected error when APIKey is missing")
	}
}

func TestQueryBuilder_SelectURL(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.From("investments").
		Select("*").
		Eq("user_id", "u1").
		Eq("status", "success").
		Order("created_at", false).
		Limit(10).
		Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if gotPath != "/rest/v1/investments" {
		t.Errorf("path = %s, want /rest/v1/investments", gotPath)
	}
	for _, want := range []string{"select=%2A", "user_id=eq.u1", "status=eq.success", "order=created_at.desc", "limit=10"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestQueryBuilder_RangeSetsLimitAndOffset(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.From("user_activity").Range(10, 19).Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.Contains(gotQuery, "limit=10") || !strings.Contains(gotQuery, "offset=10") {
		t.Errorf("query = %q, want limit=10 and offset=10", gotQuery)
	}
}

func TestQueryBuilder_UpsertHeaders(t *testing.T) {
	var gotPrefer, gotConflict string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrefer = r.Header.Get("Prefer")
		gotConflict = r.URL.Query().Get("on_conflict")
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.From("wallet_addresses").Upsert(context.Background(), []map[string]string{{"coin": "btc"}}, "coin,network")
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if !strings.Contains(gotPrefer, "resolution=merge-duplicates") {
		t.Errorf("Prefer = %q, want merge-duplicates", gotPrefer)
	}
	if gotConflict != "coin,network" {
		t.Errorf("on_conflict = %q, want coin,network", gotConflict)
	}
}

func TestQueryBuilder_TokenOverridesAuthorization(t *testing.T) {
	var gotAuth, gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAPIKey = r.Header.Get("apikey")
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.From("profiles").WithToken("user-jwt").Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if gotAuth != "Bearer user-jwt" {
		t.Errorf("Authorization = %q, want user token", gotAuth)
	}
	if gotAPIKey != "anon-key" {
		t.Errorf("apikey = %q, want anon-key", gotAPIKey)
	}
}

func TestDo_RetriesRetryableStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c, err := New(Config{
		URL:    srv.URL,
		APIKey: "anon-key",
		Retry: &RetryConfig{
			MaxRetries:           3,
			InitialBackoff:       time.Millisecond,
			MaxBackoff:           5 * time.Millisecond,
			BackoffMultiplier:    2,
			RetryableStatusCodes: []int{http.StatusServiceUnavailable},
		},
		Breaker: &CircuitBreakerConfig{},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	resp, err := c.From("investments").Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server calls = %d, want 3", got)
	}
}

func TestResponse_MaybeOne(t *testing.T) {
	var row struct {
		Address string `json:"address"`
	}

	resp := &Response{StatusCode: 200, Body: []byte(`[{"address":"bc1qtest"}]`)}
	ok, err := resp.MaybeOne(&row)
	if err != nil || !ok {
		t.Fatalf("MaybeOne() = %v, %v, want row", ok, err)
	}
	if row.Address != "bc1qtest" {
		t.Errorf("Address = %q", row.Address)
	}

	empty := &Response{StatusCode: 200, Body: []byte(`[]`)}
	ok, err = empty.MaybeOne(&row)
	if err != nil {
		t.Fatalf("MaybeOne(empty) error: %v", err)
	}
	if ok {
		t.Error("MaybeOne(empty) = true, want false")
	}
}

func TestResponse_Total(t *testing.T) {
	hdr := http.Header{}
	hdr.Set("Content-Range", "0-9/42")
	resp := &Response{Headers: hdr}

	total, ok := resp.Total()
	if !ok || total != 42 {
		t.Errorf("Total() = %d, %v, want 42, true", total, ok)
	}
}

func TestResponse_ErrorMessages(t *testing.T) {
	resp := &Response{StatusCode: 401, Body: []byte(`{"msg":"Invalid login credentials"}`)}
	err := resp.Error()
	if err == nil || !strings.Contains(err.Error(), "Invalid login credentials") {
		t.Errorf("Error() = %v, want credentials message", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 401 {
		t.Errorf("expected APIError with status 401, got %v", err)
	}
}

func TestAuth_SignInParsesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "password" {
			t.Errorf("unexpected request %s %s", r.URL.Path, r.URL.RawQuery)
		}
		w.Write([]byte(`{"access_token":"jwt","refresh_token":"r","user":{"id":"u1","email":"a@b.c"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	sess, err := c.Auth().SignIn(context.Background(), "a@b.c", "secret1")
	if err != nil {
		t.Fatalf("SignIn() error: %v", err)
	}
	if !sess.Session() {
		t.Error("Session() = false, want true")
	}
	if sess.User == nil || sess.User.ID != "u1" {
		t.Errorf("User = %+v, want id u1", sess.User)
	}
}

func TestAuth_SignUpConfirmationPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// GoTrue returns the bare user when confirmation is required.
		w.Write([]byte(`{"id":"u2","email":"new@b.c"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.Auth().SignUp(context.Background(), "new@b.c", "secret1", map[string]any{"name": "New"})
	if err != nil {
		t.Fatalf("SignUp() error: %v", err)
	}
	if resp.Session() {
		t.Error("Session() = true, want false when confirmation pending")
	}
	if resp.User == nil || resp.User.ID != "u2" {
		t.Errorf("User = %+v, want id u2", resp.User)
	}
}
