package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultTimeout = 10 * time.Second

// HTTPDoer describes the HTTP client used to reach the backend.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PathParams fill ":name" placeholders in an endpoint path.
type PathParams map[string]any

// QueryParams are appended to the URL; nil values are skipped.
type QueryParams map[string]any

// Response is a fully read backend answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client calls backend endpoints and keeps the access token fresh.
type Client struct {
	baseURL         string
	refreshEndpoint string
	http            HTTPDoer
	timeout         time.Duration
	headers         map[string]string
	tokens          TokenStore
	authRequired    bool
	logger          *zap.Logger

	refresh singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(d HTTPDoer) Option {
	return func(c *Client) { c.http = d }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithTokenStore(s TokenStore) Option {
	return func(c *Client) { c.tokens = s }
}

// WithRefreshEndpoint sets the token refresh route, relative to the base
// URL unless absolute.
func WithRefreshEndpoint(path string) Option {
	return func(c *Client) { c.refreshEndpoint = path }
}

// WithAuthRequired treats every endpoint as protected.
func WithAuthRequired(required bool) Option {
	return func(c *Client) { c.authRequired = required }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// NewClient returns a client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    http.DefaultClient,
		timeout: DefaultTimeout,
		headers: map[string]string{"Content-Type": ContentTypeJSON},
		tokens:  NewMemoryTokenStore(Tokens{}),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Call sends payload to ep and returns the read response. A 401 on a
// protected endpoint refreshes the access token once and retries once.
func (c *Client) Call(ctx context.Context, ep Endpoint, payload any, pathParams PathParams, queryParams QueryParams) (*Response, error) {
	path, err := expandPath(ep.Path, pathParams)
	if err != nil {
		return nil, err
	}

	var body *requestBody
	if ep.Method == http.MethodGet {
		queryParams, err = mergeQuery(queryParams, payload)
		if err != nil {
			return nil, err
		}
	} else {
		body, err = encodeBody(payload)
		if err != nil {
			return nil, err
		}
	}

	target := c.resolve(path)
	if q := encodeQuery(queryParams); q != "" {
		target += "?" + q
	}

	sentToken := c.tokens.AccessToken()
	resp, err := c.send(ctx, ep, target, body, sentToken)
	if err == nil || !IsUnauthorized(err) || !c.canRetry(ep) {
		return resp, err
	}

	token, rerr := c.freshToken(ctx, sentToken)
	if rerr != nil {
		if errors.Is(rerr, ErrNoRefreshToken) {
			return nil, err
		}
		return nil, rerr
	}

	c.logger.Debug("retrying after token refresh", zap.String("path", path))
	return c.send(ctx, ep, target, body, token)
}

// CallJSON calls ep and decodes the JSON answer into T.
func CallJSON[T any](ctx context.Context, c *Client, ep Endpoint, payload any, pathParams PathParams, queryParams QueryParams) (T, error) {
	var out T
	resp, err := c.Call(ctx, ep, payload, pathParams, queryParams)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func (c *Client) canRetry(ep Endpoint) bool {
	return (ep.RequireAuth || c.authRequired) && !ep.NoAuthRetry
}

// freshToken returns a token newer than stale, refreshing if nobody else
// already has. Concurrent callers share one refresh.
func (c *Client) freshToken(ctx context.Context, stale string) (string, error) {
	if current := c.tokens.AccessToken(); current != "" && current != stale {
		return current, nil
	}

	ch := c.refresh.DoChan("refresh", func() (any, error) {
		// Detached so one caller giving up does not fail the others.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.refreshAccessToken(rctx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	refreshToken := c.tokens.RefreshToken()
	if refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	c.logger.Info("refreshing access token")

	payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return "", fmt.Errorf("encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(c.refreshEndpoint), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", ContentTypeJSON)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("token refresh failed", zap.Error(err))
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read refresh response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Warn("token refresh rejected", zap.Int("status", resp.StatusCode))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: data}
	}

	var out struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(data, &out); err != nil || out.AccessToken == "" {
		return "", ErrInvalidRefreshResponse
	}

	if err := c.tokens.SetAccessToken(out.AccessToken); err != nil {
		return "", fmt.Errorf("store access token: %w", err)
	}
	return out.AccessToken, nil
}

func (c *Client) send(ctx context.Context, ep Endpoint, target string, body *requestBody, token string) (*Response, error) {
	timeout := c.timeout
	if ep.Timeout > 0 {
		timeout = ep.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := ep.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body.reader())
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.ContentLength = int64(len(body.data))
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}
	if body != nil && body.contentType != "" {
		req.Header.Set("Content-Type", body.contentType)
	}
	if body == nil {
		req.Header.Del("Content-Type")
	}
	if ep.ResponseType == ResponseBinary {
		req.Header.Set("Accept", "*/*")
	} else {
		req.Header.Set("Accept", ContentTypeJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.String("url", target),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("request complete",
		zap.String("method", method),
		zap.String("url", target),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: data}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

var pathParamPattern = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

// expandPath replaces each ":name" placeholder with params[name]. Names are
// matched whole, so ":id" never touches ":idx".
func expandPath(path string, params PathParams) (string, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if params[k] == nil {
			return "", fmt.Errorf("missing path param: %s", k)
		}
	}

	return pathParamPattern.ReplaceAllStringFunc(path, func(m string) string {
		v, ok := params[m[1:]]
		if !ok {
			return m
		}
		return url.PathEscape(fmt.Sprint(v))
	}), nil
}

// mergeQuery folds a GET payload into the query parameters.
func mergeQuery(query QueryParams, payload any) (QueryParams, error) {
	if payload == nil {
		return query, nil
	}

	var extra map[string]any
	switch p := payload.(type) {
	case map[string]any:
		extra = p
	case QueryParams:
		extra = p
	case map[string]string:
		extra = make(map[string]any, len(p))
		for k, v := range p {
			extra[k] = v
		}
	default:
		return nil, fmt.Errorf("GET payload must be a map, got %T", payload)
	}

	merged := make(QueryParams, len(query)+len(extra))
	for k, v := range query {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged, nil
}

func encodeQuery(params QueryParams) string {
	values := url.Values{}
	for k, v := range params {
		if v == nil {
			continue
		}
		values.Add(k, fmt.Sprint(v))
	}
	// url.Values.Encode sorts by key.
	return values.Encode()
}
