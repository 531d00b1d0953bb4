// Package client provides the Supabase client used by the River service.
// It speaks PostgREST for table access, GoTrue for authentication and the
// Realtime websocket protocol for change feeds.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a Supabase REST API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      RetryConfig
	breaker    *CircuitBreaker
}

// Config holds client configuration.
type Config struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
	// Retry overrides the default retry policy when set.
	Retry *RetryConfig
	// Breaker overrides the default circuit breaker when set. A zero
	// FailureThreshold disables the breaker entirely.
	Breaker *CircuitBreakerConfig
}

// New creates a new Supabase client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("APIKey is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}

	retry := DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}

	breakerCfg := DefaultCircuitBreakerConfig()
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
	}
	var breaker *CircuitBreaker
	if breakerCfg.FailureThreshold > 0 {
		breaker = NewCircuitBreaker(breakerCfg)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		retry:      retry,
		breaker:    breaker,
	}, nil
}

// BaseURL returns the configured project URL.
func (c *Client) BaseURL() string { return c.baseURL }

// APIKey returns the configured API key.
func (c *Client) APIKey() string { return c.apiKey }

// =============================================================================
// Database Operations (PostgREST)
// =============================================================================

// From starts a query builder for a table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{
		client: c,
		table:  table,
	}
}

// QueryBuilder builds PostgREST queries.
type QueryBuilder struct {
	client  *Client
	table   string
	token   string
	columns string
	filters []string
	orders  []string
	limit   int
	offset  int
	single  bool
	count   string // exact, planned, estimated
}

// WithToken executes the query with a user access token so row-level
// security applies to that user instead of the service role.
func (q *QueryBuilder) WithToken(token string) *QueryBuilder {
	q.token = token
	return q
}

// Select specifies columns to select.
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

// Eq adds an equality filter.
func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	q.filters = append(q.filters, fmt.Sprintf("%s=eq.%v", column, value))
	return q
}

// Neq adds a not-equal filter.
func (q *QueryBuilder) Neq(column string, value any) *QueryBuilder {
	q.filters = append(q.filters, fmt.Sprintf("%s=neq.%v", column, value))
	return q
}

// Gt adds a greater-than filter.
func (q *QueryBuilder) Gt(column string, value any) *QueryBuilder {
	q.filters = append(q.filters, fmt.Sprintf("%s=gt.%v", column, value))
	return q
}

// Gte adds a greater-than-or-equal filter.
func (q *QueryBuilder) Gte(column string, value any) *QueryBuilder {
	q.filters = append(q.filters, fmt.Sprintf("%s=gte.%v", column, value))
	return q
}

// Lt adds a less-than filter.
func (q *QueryBuilder) Lt(column string, value any) *QueryBuilder {
	q.filters = append(q.filters, fmt.Sprintf("%s=lt.%v", column, value))
	return q
}

// Lte adds a less-than-or-equal filter.
func (q *QueryBuilder) Lte(column string, value any) *QueryBuilder {
	q.filters = append(q.filters, fmt.Sprintf("%s=lte.%v", column, value))
	return q
}

// In adds an IN filter.
func (q *QueryBuilder) In(column string, values []any) *QueryBuilder {
	strValues := make([]string, len(values))
	for i, v := range values {
		strValues[i] = fmt.Sprintf("%v", v)
	}
	q.filters = append(q.filters, fmt.Sprintf("%s=in.(%s)", column, strings.Join(strValues, ",")))
	return q
}

// Is adds an IS filter (for NULL, TRUE, FALSE).
func (q *QueryBuilder) Is(column string, value any) *QueryBuilder {
	q.filters = append(q.filters, fmt.Sprintf("%s=is.%v", column, value))
	return q
}

// Order adds an ORDER BY clause.
func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	q.orders = append(q.orders, fmt.Sprintf("%s.%s", column, dir))
	return q
}

// Limit sets the LIMIT.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

// Offset sets the OFFSET.
func (q *QueryBuilder) Offset(n int) *QueryBuilder {
	q.offset = n
	return q
}

// Range selects rows from..to inclusive, PostgREST pagination style.
func (q *QueryBuilder) Range(from, to int) *QueryBuilder {
	q.offset = from
	q.limit = to - from + 1
	return q
}

// Single expects exactly one result row.
func (q *QueryBuilder) Single() *QueryBuilder {
	q.single = true
	return q
}

// Count includes a total row count in the response.
func (q *QueryBuilder) Count(countType string) *QueryBuilder {
	q.count = countType
	return q
}

func (q *QueryBuilder) queryURL() string {
	reqURL := fmt.Sprintf("%s/rest/v1/%s", q.client.baseURL, q.table)

	params := url.Values{}
	if q.columns != "" {
		params.Set("select", q.columns)
	}
	for _, f := range q.filters {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) == 2 {
			params.Add(parts[0], parts[1])
		}
	}
	if len(q.orders) > 0 {
		params.Set("order", strings.Join(q.orders, ","))
	}
	if q.limit > 0 {
		params.Set("limit", strconv.Itoa(q.limit))
	}
	if q.offset > 0 {
		params.Set("offset", strconv.Itoa(q.offset))
	}

	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	return reqURL
}

func (q *QueryBuilder) filterURL() string {
	reqURL := fmt.Sprintf("%s/rest/v1/%s", q.client.baseURL, q.table)

	params := url.Values{}
	for _, f := range q.filters {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) == 2 {
			params.Add(parts[0], parts[1])
		}
	}
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	return reqURL
}

// Execute runs a SELECT query.
func (q *QueryBuilder) Execute(ctx context.Context) (*Response, error) {
	hdr := http.Header{}
	if q.single {
		hdr.Set("Accept", "application/vnd.pgrst.object+json")
	}
	if q.count != "" {
		hdr.Set("Prefer", fmt.Sprintf("count=%s", q.count))
	}
	return q.client.do(ctx, http.MethodGet, q.queryURL(), nil, q.token, hdr)
}

// Insert inserts one or more rows.
func (q *QueryBuilder) Insert(ctx context.Context, data any) (*Response, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}

	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Prefer", "return=representation")

	return q.client.do(ctx, http.MethodPost, q.filterURL(), body, q.token, hdr)
}

// Upsert inserts rows, merging duplicates on the given conflict target.
func (q *QueryBuilder) Upsert(ctx context.Context, data any, onConflict string) (*Response, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}

	reqURL := fmt.Sprintf("%s/rest/v1/%s", q.client.baseURL, q.table)
	if onConflict != "" {
		reqURL += "?on_conflict=" + url.QueryEscape(onConflict)
	}

	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Prefer", "resolution=merge-duplicates,return=representation")

	return q.client.do(ctx, http.MethodPost, reqURL, body, q.token, hdr)
}

// Update patches rows matching the builder's filters.
func (q *QueryBuilder) Update(ctx context.Context, data any) (*Response, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}

	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Prefer", "return=representation")

	return q.client.do(ctx, http.MethodPatch, q.filterURL(), body, q.token, hdr)
}

// Delete removes rows matching the builder's filters.
func (q *QueryBuilder) Delete(ctx context.Context) (*Response, error) {
	hdr := http.Header{}
	hdr.Set("Prefer", "return=representation")

	return q.client.do(ctx, http.MethodDelete, q.filterURL(), nil, q.token, hdr)
}

// =============================================================================
// Auth Operations (GoTrue)
// =============================================================================

// Auth returns an auth client.
func (c *Client) Auth() *AuthClient {
	return &AuthClient{client: c}
}

// AuthClient handles authentication operations.
type AuthClient struct {
	client *Client
}

// SignUp creates a new user. Metadata is stored as GoTrue user metadata.
func (a *AuthClient) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*AuthResponse, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
	}
	if len(metadata) > 0 {
		payload["data"] = metadata
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")

	resp, err := a.client.do(ctx, http.MethodPost, a.client.baseURL+"/auth/v1/signup", body, "", hdr)
	if err != nil {
		return nil, err
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}

	var authResp AuthResponse
	if err := json.Unmarshal(resp.Body, &authResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	// GoTrue returns a bare user object when email confirmation is required
	// and a full session otherwise.
	if authResp.User == nil && authResp.AccessToken == "" {
		var user User
		if err := json.Unmarshal(resp.Body, &user); err == nil && user.ID != "" {
			authResp.User = &user
		}
	}
	return &authResp, nil
}

// SignIn signs in a user with email and password.
func (a *AuthClient) SignIn(ctx context.Context, email, password string) (*AuthResponse, error) {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")

	resp, err := a.client.do(ctx, http.MethodPost, a.client.baseURL+"/auth/v1/token?grant_type=password", body, "", hdr)
	if err != nil {
		return nil, err
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}

	var authResp AuthResponse
	if err := json.Unmarshal(resp.Body, &authResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &authResp, nil
}

// GetUser resolves the user behind an access token.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	resp, err := a.client.do(ctx, http.MethodGet, a.client.baseURL+"/auth/v1/user", nil, accessToken, nil)
	if err != nil {
		return nil, err
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(resp.Body, &user); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &user, nil
}

// SignOut revokes the session behind an access token.
func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	resp, err := a.client.do(ctx, http.MethodPost, a.client.baseURL+"/auth/v1/logout", nil, accessToken, nil)
	if err != nil {
		return err
	}
	return resp.Error()
}

// ResendConfirmation asks GoTrue to resend the signup confirmation email.
func (a *AuthClient) ResendConfirmation(ctx context.Context, email string) error {
	body, err := json.Marshal(map[string]string{
		"type":  "signup",
		"email": email,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")

	resp, err := a.client.do(ctx, http.MethodPost, a.client.baseURL+"/auth/v1/resend", body, "", hdr)
	if err != nil {
		return err
	}
	return resp.Error()
}

// AuthResponse is the response from auth operations.
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

// Session reports whether the response carries an established session.
func (r *AuthResponse) Session() bool { return r != nil && r.AccessToken != "" }

// User represents a Supabase user.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	Phone            string         `json:"phone"`
	Role             string         `json:"role"`
	EmailConfirmedAt string         `json:"email_confirmed_at"`
	CreatedAt        string         `json:"created_at"`
	UpdatedAt        string         `json:"updated_at"`
	AppMetadata      map[string]any `json:"app_metadata"`
	UserMetadata     map[string]any `json:"user_metadata"`
}

// =============================================================================
// Response Types
// =============================================================================

// Response is a generic API response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// MaybeOne decodes a single row from an array response. It reports false
// without error when the result set is empty.
func (r *Response) MaybeOne(v any) (bool, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(r.Body, &rows); err != nil {
		// Not an array; try the object form returned with Single().
		if objErr := json.Unmarshal(r.Body, v); objErr == nil {
			return true, nil
		}
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(rows[0], v); err != nil {
		return false, err
	}
	return true, nil
}

// Total parses the row count from the Content-Range header, present when
// the query requested a count.
func (r *Response) Total() (int64, bool) {
	cr := r.Headers.Get("Content-Range")
	idx := strings.LastIndex(cr, "/")
	if idx < 0 {
		return 0, false
	}
	total, err := strconv.ParseInt(cr[idx+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return total, true
}

// Error returns an error if the response indicates failure.
func (r *Response) Error() error {
	if r.StatusCode >= 400 {
		var errResp struct {
			Message  string `json:"message"`
			Msg      string `json:"msg"`
			Error    string `json:"error"`
			ErrDescr string `json:"error_description"`
		}
		if err := json.Unmarshal(r.Body, &errResp); err == nil {
			for _, msg := range []string{errResp.Message, errResp.Msg, errResp.ErrDescr, errResp.Error} {
				if msg != "" {
					return &APIError{StatusCode: r.StatusCode, Message: msg}
				}
			}
		}
		return &APIError{StatusCode: r.StatusCode, Message: fmt.Sprintf("status %d", r.StatusCode)}
	}
	return nil
}

// APIError is a failed Supabase API call.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase error: %s", e.Message)
}

// =============================================================================
// Internal Methods
// =============================================================================

const maxResponseBytes = 8 << 20 // 8 MiB

func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("apikey", c.apiKey)
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

// do executes a request with retry and circuit breaker applied. The request
// is rebuilt per attempt so the body can be replayed.
func (c *Client) do(ctx context.Context, method, reqURL string, body []byte, token string, hdr http.Header) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retry.BackoffFor(attempt)):
			}
		}

		if c.breaker != nil {
			if err := c.breaker.Allow(); err != nil {
				return nil, err
			}
		}

		resp, err := c.doOnce(ctx, method, reqURL, body, token, hdr)
		if err != nil {
			lastErr = err
			if c.breaker != nil {
				c.breaker.RecordFailure(err)
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		if c.retry.RetryableStatus(resp.StatusCode) {
			lastErr = fmt.Errorf("supabase error: status %d", resp.StatusCode)
			if c.breaker != nil {
				c.breaker.RecordFailure(lastErr)
			}
			continue
		}

		if c.breaker != nil {
			c.breaker.RecordSuccess()
		}
		return resp, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.retry.MaxRetries+1, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, reqURL string, body []byte, token string, hdr http.Header) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	c.setHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Headers:    resp.Header,
	}, nil
}
