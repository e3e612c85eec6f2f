package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pennywise-app/pennywise-go/internal/types"
	"github.com/pkg/errors"
)

const (
	// RESTPrefix is the path prefix of the table API
	RESTPrefix = "/rest/v1"

	authHeaderKey  = "Authorization"
	apiKeyHeader   = "apikey"
	requestIDKey   = "X-Request-ID"
	contentType    = "application/json"
	preferReturn   = "return=representation"
	undefinedTable = "42P01"
	missingTable   = "PGRST205"
	noRows         = "PGRST116"
	jwtExpired     = "PGRST301"
)

// Request describes one call against the table API
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}

	// Prefer overrides the Prefer header; writes default to returning the row
	Prefer string
}

// RESTTransport handles communication with the hosted data API
type RESTTransport struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	retryClient *retryablehttp.Client
	headers     map[string]string
	logger      types.Logger
	hooks       *types.Hooks

	mu      sync.RWMutex
	session *types.Session
}

// NewRESTTransport creates a new REST transport
func NewRESTTransport(opts *Options) *RESTTransport {
	if opts == nil {
		opts = &Options{}
	}

	if opts.BaseURL == "" {
		opts.BaseURL = types.DefaultBaseURL
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: types.DefaultTimeout,
		}
	}

	var retryClient *retryablehttp.Client
	if opts.RetryConfig != nil {
		retryClient = retryablehttp.NewClient()
		retryClient.HTTPClient = opts.HTTPClient
		retryClient.RetryMax = opts.RetryConfig.MaxRetries
		retryClient.RetryWaitMin = opts.RetryConfig.RetryWait
		retryClient.RetryWaitMax = opts.RetryConfig.MaxWait
		retryClient.Logger = nil

		if opts.Logger != nil {
			retryClient.Logger = &retryLogger{logger: opts.Logger}
		}
	}

	headers := map[string]string{
		"Accept":       contentType,
		"Content-Type": contentType,
		"User-Agent":   types.UserAgent,
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &RESTTransport{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		httpClient:  opts.HTTPClient,
		retryClient: retryClient,
		headers:     headers,
		logger:      opts.Logger,
		hooks:       opts.Hooks,
	}
}

// Do executes a request and decodes a successful body into result
func (t *RESTTransport) Do(ctx context.Context, r *Request, result interface{}) error {
	session := t.Session()
	if session == nil || session.Token == "" {
		return types.ErrNotAuthenticated
	}
	if session.Expired() {
		return types.ErrSessionExpired
	}

	var body io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
		body = bytes.NewReader(data)
	}

	target := t.baseURL + RESTPrefix + r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	if t.apiKey != "" {
		httpReq.Header.Set(apiKeyHeader, t.apiKey)
	}
	httpReq.Header.Set(authHeaderKey, "Bearer "+session.Token)

	requestID := uuid.New().String()
	httpReq.Header.Set(requestIDKey, requestID)

	switch {
	case r.Prefer != "":
		httpReq.Header.Set("Prefer", r.Prefer)
	case r.Method != http.MethodGet && r.Method != http.MethodDelete:
		httpReq.Header.Set("Prefer", preferReturn)
	}

	if t.hooks != nil && t.hooks.OnRequest != nil {
		t.hooks.OnRequest(ctx, httpReq)
	}

	if t.logger != nil {
		t.logger.Debug("REST request", "method", r.Method, "path", r.Path, "request_id", requestID)
	}

	start := time.Now()
	resp, err := t.doRequest(httpReq)
	duration := time.Since(start)

	if err != nil {
		if t.hooks != nil && t.hooks.OnError != nil {
			t.hooks.OnError(ctx, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.Wrap(types.ErrTimeout, err.Error())
		}
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if t.hooks != nil && t.hooks.OnResponse != nil {
		t.hooks.OnResponse(ctx, resp, duration)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	if t.logger != nil {
		t.logger.Debug("REST response", "status", resp.StatusCode, "duration", duration, "size", len(respBody))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := t.handleHTTPError(resp.StatusCode, respBody)
		var apiErr *types.Error
		if errors.As(err, &apiErr) && apiErr.RequestID == "" {
			apiErr.RequestID = requestID
		}
		return err
	}

	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return errors.Wrap(err, "failed to unmarshal result")
		}
	}

	return nil
}

// SetAuth sets the bearer token
func (t *RESTTransport) SetAuth(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != nil && t.session.Token == token {
		return
	}
	// a new token may belong to another user; its identity is resolved on first use
	t.session = &types.Session{Token: token}
}

// SetSession sets the session; nil signs out
func (t *RESTTransport) SetSession(session *types.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = session
}

// Session returns the current session
func (t *RESTTransport) Session() *types.Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.session
}

// doRequest executes the HTTP request with retry if configured
func (t *RESTTransport) doRequest(req *http.Request) (*http.Response, error) {
	if t.retryClient != nil {
		retryReq, err := retryablehttp.FromRequest(req)
		if err != nil {
			return nil, err
		}
		return t.retryClient.Do(retryReq)
	}
	return t.httpClient.Do(req)
}

// handleHTTPError maps a failed response to a sentinel or *types.Error
func (t *RESTTransport) handleHTTPError(statusCode int, body []byte) error {
	var errResp types.PostgrestError
	_ = json.Unmarshal(body, &errResp)
	msg := errResp.Text()

	if isMissingRelation(errResp.Code, msg) {
		return &types.Error{
			Code:       errResp.Code,
			Message:    msg,
			StatusCode: statusCode,
			Err:        types.ErrNotProvisioned,
		}
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		if errResp.Code == jwtExpired {
			return types.ErrSessionExpired
		}
		return types.ErrNotAuthenticated
	case http.StatusNotFound:
		return types.ErrNotFound
	case http.StatusNotAcceptable:
		if errResp.Code == noRows {
			return types.ErrNotFound
		}
	case http.StatusTooManyRequests:
		return types.ErrRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return types.ErrTimeout
	}

	if statusCode >= 500 {
		baseMsg := fmt.Sprintf("server error: %d", statusCode)
		if desc := httpStatusDescription(statusCode); desc != "" {
			baseMsg = fmt.Sprintf("server error: %d (%s)", statusCode, desc)
		}
		if msg != "" {
			baseMsg = fmt.Sprintf("%s: %s", baseMsg, msg)
		}
		return &types.Error{
			Code:       "SERVER_ERROR",
			Message:    baseMsg,
			StatusCode: statusCode,
			Err:        types.ErrServerError,
		}
	}

	code := errResp.Code
	if code == "" {
		code = "BAD_REQUEST"
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP error: %d", statusCode)
	}
	apiErr := &types.Error{
		Code:       code,
		Message:    msg,
		StatusCode: statusCode,
	}
	if errResp.Details != "" || errResp.Hint != "" {
		apiErr.Details = map[string]interface{}{
			"details": errResp.Details,
			"hint":    errResp.Hint,
		}
	}
	return apiErr
}

func isMissingRelation(code, msg string) bool {
	if code == undefinedTable || code == missingTable {
		return true
	}
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "relation") && strings.Contains(lower, "does not exist")
}

// httpStatusDescription returns a human-readable description for common HTTP status codes.
func httpStatusDescription(statusCode int) string {
	descriptions := map[int]string{
		500: "Internal Server Error",
		501: "Not Implemented",
		502: "Bad Gateway",
		503: "Service Unavailable",
		504: "Gateway Timeout",
		520: "Web Server Error",
		521: "Web Server Is Down",
		522: "Connection Timed Out",
		523: "Origin Is Unreachable",
		524: "A Timeout Occurred",
		525: "SSL Handshake Failed",
		526: "Invalid SSL Certificate",
	}
	return descriptions[statusCode]
}

// Options for the REST transport
type Options struct {
	BaseURL     string
	APIKey      string
	HTTPClient  *http.Client
	Headers     map[string]string
	RetryConfig *types.RetryConfig
	Logger      types.Logger
	Hooks       *types.Hooks
}

// retryLogger adapts our logger to retryablehttp
type retryLogger struct {
	logger types.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, keysAndValues...)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}
