package supabasestore

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gasamara891-boop/river/internal/domain/investment"
	"github.com/gasamara891-boop/river/internal/domain/wallet"
	"github.com/gasamara891-boop/river/internal/storage"
	"github.com/gasamara891-boop/river/supabase/client"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string, hdr http.Header) *http.Response {
	if hdr == nil {
		hdr = http.Header{}
	}
	hdr.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Header:     hdr,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newStore(t *testing.T, rt roundTripFunc) *Store {
	t.Helper()
	sb, err := client.New(client.Config{
		URL:        "https://proj.supabase.co",
		APIKey:     "anon-key",
		HTTPClient: &http.Client{Transport: rt},
		Retry:      &client.RetryConfig{},
		Breaker:    &client.CircuitBreakerConfig{},
	})
	require.NoError(t, err)
	return New(sb)
}

func TestGetProfileNotFound(t *testing.T) {
	s := newStore(t, func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "application/vnd.pgrst.object+json", req.Header.Get("Accept"))
		return jsonResponse(http.StatusNotAcceptable, `{"message":"JSON object requested, multiple (or no) rows returned"}`, nil), nil
	})

	_, err := s.GetProfile(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListUserInvestmentsQuery(t *testing.T) {
	s := newStore(t, func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "/rest/v1/investments", req.URL.Path)
		q := req.URL.Query()
		require.Equal(t, "eq.u1", q.Get("user_id"))
		require.Equal(t, "created_at.desc", q.Get("order"))
		require.Equal(t, "5", q.Get("limit"))
		return jsonResponse(http.StatusOK, `[{"id":"i1","user_id":"u1","coin":"btc","amount":250,"status":"pending"}]`, nil), nil
	})

	rows, err := s.ListUserInvestments(context.Background(), "u1", 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "i1", rows[0].ID)
	require.Equal(t, investment.StatusPending, rows[0].Status)
}

func TestSetInvestmentStatusMissingRow(t *testing.T) {
	s := newStore(t, func(req *http.Request) (*http.Response, error) {
		require.Equal(t, http.MethodPatch, req.Method)
		return jsonResponse(http.StatusOK, `[]`, nil), nil
	})

	_, err := s.SetInvestmentStatus(context.Background(), "missing", investment.StatusSuccess)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpsertWalletAddresses(t *testing.T) {
	s := newStore(t, func(req *http.Request) (*http.Response, error) {
		require.Equal(t, http.MethodPost, req.Method)
		require.Equal(t, "coin,network", req.URL.Query().Get("on_conflict"))
		require.Contains(t, req.Header.Get("Prefer"), "resolution=merge-duplicates")
		body, _ := io.ReadAll(req.Body)
		require.Contains(t, string(body), `"coin":"btc"`)
		return jsonResponse(http.StatusCreated, `[{"coin":"btc","network":"mainnet","address":"bc1qnew"}]`, nil), nil
	})

	saved, err := s.UpsertWalletAddresses(context.Background(), []wallet.Address{
		{Coin: "BTC", Network: "mainnet", Address: "bc1qnew"},
	})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.Equal(t, "bc1qnew", saved[0].Address)
}

func TestListActivityTotalFromContentRange(t *testing.T) {
	s := newStore(t, func(req *http.Request) (*http.Response, error) {
		require.Contains(t, req.Header.Get("Prefer"), "count=exact")
		q := req.URL.Query()
		require.Equal(t, "2", q.Get("limit"))
		require.Equal(t, "2", q.Get("offset"))
		hdr := http.Header{}
		hdr.Set("Content-Range", "2-3/17")
		return jsonResponse(http.StatusOK, `[{"id":"a1","user_id":"u1","event":"login"},{"id":"a2","user_id":"u1","event":"logout"}]`, hdr), nil
	})

	rows, total, err := s.ListActivity(context.Background(), "u1", 2, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.EqualValues(t, 17, total)
}

func TestGetBalancesAbsentRow(t *testing.T) {
	s := newStore(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `[]`, nil), nil
	})

	_, ok, err := s.GetBalances(context.Background(), "u1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetBalancesRows(t *testing.T) {
	s := newStore(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `[{"user_id":"u1","coin":"BTC","amount":1.25},{"user_id":"u1","coin":"usdt","amount":300}]`, nil), nil
	})

	got, ok, err := s.GetBalances(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, map[string]float64{"btc": 1.25, "usdt": 300}, got)
}
