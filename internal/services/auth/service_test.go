package auth

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	activitydom "github.com/gasamara891-boop/river/internal/domain/activity"
	"github.com/gasamara891-boop/river/internal/services/activity"
	"github.com/gasamara891-boop/river/internal/storage/memory"
	"github.com/gasamara891-boop/river/supabase/client"
)

type rtFunc func(*http.Request) (*http.Response, error)

func (f rtFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newService(t *testing.T, rt rtFunc) (*Service, *memory.Store) {
	t.Helper()
	sb, err := client.New(client.Config{
		URL:        "https://proj.supabase.co",
		APIKey:     "anon-key",
		HTTPClient: &http.Client{Transport: rt},
		Retry:      &client.RetryConfig{},
		Breaker:    &client.CircuitBreakerConfig{},
	})
	require.NoError(t, err)

	store := memory.New()
	act := activity.New(store, nil, nil)
	return New(sb, store, act, nil), store
}

const sessionBody = `{
	"access_token": "token-123",
	"refresh_token": "refresh-123",
	"expires_in": 3600,
	"user": {"id": "user-1", "email": "ada@example.com", "user_metadata": {"name": "Ada"}}
}`

func TestSignUpWithSession(t *testing.T) {
	svc, store := newService(t, func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "/auth/v1/signup", req.URL.Path)
		body, _ := io.ReadAll(req.Body)
		require.Contains(t, string(body), `"name":"Ada"`)
		require.NotContains(t, string(body), `"password":""`)
		return jsonResponse(http.StatusOK, sessionBody), nil
	})

	res, err := svc.SignUp(context.Background(), "Ada", "Ada@Example.com", "hunter22", "hunter22")
	require.NoError(t, err)
	require.False(t, res.ConfirmationPending)
	require.Equal(t, "token-123", res.AccessToken)
	require.Equal(t, "user-1", res.Profile.ID)
	require.Equal(t, "ada@example.com", res.Profile.Email)

	// The profile row never carries credentials and the signup is logged.
	p, err := store.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, "Ada", p.Name)
	entries, _, err := store.ListActivity(context.Background(), "user-1", 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, activitydom.EventSignup, entries[0].Event)
}

func TestSignUpConfirmationPending(t *testing.T) {
	svc, store := newService(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"id": "user-2", "email": "bo@example.com"}`), nil
	})

	res, err := svc.SignUp(context.Background(), "Bo", "bo@example.com", "hunter22", "hunter22")
	require.NoError(t, err)
	require.True(t, res.ConfirmationPending)
	require.Empty(t, res.AccessToken)

	// No session yet, so no signup activity either.
	entries, _, err := store.ListActivity(context.Background(), "user-2", 0, 10)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestSignUpValidation(t *testing.T) {
	svc, _ := newService(t, func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "Ada", "not-an-email", "hunter22", "hunter22")
	var authErr *Error
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, KindEmail, authErr.Kind)

	_, err = svc.SignUp(ctx, "Ada", "ada@example.com", "shrt", "shrt")
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, KindPassword, authErr.Kind)

	_, err = svc.SignUp(ctx, "  ", "ada@example.com", "hunter22", "hunter22")
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, KindName, authErr.Kind)

	_, err = svc.SignUp(ctx, "Ada", "ada@example.com", "hunter22", "different")
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, KindPassword, authErr.Kind)
	require.Contains(t, authErr.Message, "do not match")
}

func TestSignInClassifiesErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		kind ErrorKind
	}{
		{"wrong password", `{"error_description":"Invalid login credentials"}`, KindPassword},
		{"unconfirmed", `{"error_description":"Email not confirmed"}`, KindEmail},
		{"other", `{"error_description":"Database error"}`, KindGeneral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newService(t, func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusBadRequest, tc.body), nil
			})
			_, err := svc.SignIn(context.Background(), "ada@example.com", "pw123456")
			var authErr *Error
			require.ErrorAs(t, err, &authErr)
			require.Equal(t, tc.kind, authErr.Kind)
		})
	}
}

func TestSignInHealsMissingProfile(t *testing.T) {
	svc, store := newService(t, func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "/auth/v1/token", req.URL.Path)
		require.Equal(t, "password", req.URL.Query().Get("grant_type"))
		return jsonResponse(http.StatusOK, sessionBody), nil
	})

	res, err := svc.SignIn(context.Background(), "ada@example.com", "hunter22")
	require.NoError(t, err)
	require.Equal(t, "user-1", res.Profile.ID)
	require.Equal(t, "Ada", res.Profile.Name)

	entries, _, err := store.ListActivity(context.Background(), "user-1", 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, activitydom.EventLogin, entries[0].Event)
}

func TestSignOutRecordsLogout(t *testing.T) {
	svc, store := newService(t, func(req *http.Request) (*http.Response, error) {
		switch req.URL.Path {
		case "/auth/v1/user":
			return jsonResponse(http.StatusOK, `{"id":"user-1","email":"ada@example.com"}`), nil
		case "/auth/v1/logout":
			return jsonResponse(http.StatusNoContent, ``), nil
		}
		t.Fatalf("unexpected path %s", req.URL.Path)
		return nil, nil
	})

	require.NoError(t, svc.SignOut(context.Background(), "token-123"))
	entries, _, err := store.ListActivity(context.Background(), "user-1", 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, activitydom.EventLogout, entries[0].Event)
}
