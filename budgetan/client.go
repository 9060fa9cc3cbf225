// Package budgetan is a client for the Budgetan budgeting API: a stateless
// HTTP gateway for the identity endpoints plus the record services
// (expenses, incomes, profile) that route through an authenticated-call
// wrapper supplied by the caller.
package budgetan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	apperrors "github.com/budgetan/budgetan-cli/internal/errors"
)

// TransportError wraps a network-level failure: timeout, connection
// refused, DNS. The request never produced an HTTP status.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err (or any error in its chain) is a
// TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ServerError is a non-success response from the API, carrying the
// server-supplied message when the body had one.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

const (
	// maxRedirects is the maximum number of HTTP redirects to follow
	// before giving up, matching the default net/http limit.
	maxRedirects = 10

	// httpClientTimeout is the timeout for the default HTTP client used
	// when no custom client is provided.
	httpClientTimeout = 30 * time.Second

	// maxAPIResponseBytes caps response body reads to prevent a
	// misbehaving server from consuming unbounded memory.
	maxAPIResponseBytes = 1024 * 1024
)

// Client talks to the Budgetan identity service and performs the raw
// bearer-authenticated exchanges for the record services.
type Client struct {
	httpClient  *http.Client
	authBaseURL string
}

// sameHostRedirectPolicy follows redirects only when the target host
// matches the original request host. This prevents bearer tokens from
// leaking to third-party domains.
func sameHostRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}

	if len(via) > 0 {
		origHost := via[0].URL.Host
		if req.URL.Host != origHost {
			return fmt.Errorf("redirect to different host blocked: %s -> %s", origHost, req.URL.Host)
		}
	}

	return nil
}

// NewClient creates an API client for the identity service at authBaseURL.
// If httpClient is nil, a client with a 30-second timeout and same-host
// redirect policy is created.
func NewClient(httpClient *http.Client, authBaseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:       httpClientTimeout,
			CheckRedirect: sameHostRedirectPolicy,
		}
	}

	return &Client{
		httpClient:  httpClient,
		authBaseURL: authBaseURL,
	}
}

// Response is the raw outcome of one HTTP exchange. Status classification
// is left to the caller; Message pulls the conventional error field out of
// the body for endpoints that reject with {"message": ...}.
type Response struct {
	StatusCode int
	Body       []byte
}

// Message returns the server-supplied message field from the body, or ""
// when the body has none.
func (r *Response) Message() string {
	return gjson.GetBytes(r.Body, "message").Str
}

// Err converts a response into a ServerError, preferring the
// server-supplied message over the fallback.
func (r *Response) Err(fallback string) error {
	msg := r.Message()
	if msg == "" {
		msg = fallback
	}

	return &ServerError{Status: r.StatusCode, Message: msg}
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}
	// Ensure valid UTF-8 and replace control characters.
	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}

// Do performs a single bearer-authenticated exchange and returns the raw
// response. A JSON content type is set only when a payload is present.
// Transport failures come back wrapped in TransportError; every HTTP
// status is a successful exchange from Do's point of view.
func (c *Client) Do(ctx context.Context, method, url, accessToken string, payload any) (*Response, error) {
	return c.exchange(ctx, method, url, accessToken, payload)
}

// exchange performs one HTTP request/response cycle.
func (c *Client) exchange(ctx context.Context, method, url, bearer string, payload any) (*Response, error) {
	var body io.Reader

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshalling request body: %w", err)
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("sending request to %s: %w", url, err)}
	}
	defer resp.Body.Close()

	// Cap response reads at 1MB. API responses are small JSON payloads.
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// Login authenticates with email and password, returning the credential
// pair. Rejections on 400 and 401 surface the server's message verbatim.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	resp, err := c.exchange(ctx, http.MethodPost, c.authBaseURL+"/login", "", loginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var pair TokenPair
		if err := json.Unmarshal(resp.Body, &pair); err != nil || pair.AccessToken == "" || pair.RefreshToken == "" {
			return nil, fmt.Errorf("%w: login body %s", apperrors.ErrInvalidResponse, sanitizeResponseBody(resp.Body))
		}

		return &pair, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, resp.Err("login failed")
	default:
		return nil, resp.Err("unexpected error")
	}
}

// Register creates an account. A successful registration does not
// authenticate the session; callers still log in afterwards.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	resp, err := c.exchange(ctx, http.MethodPost, c.authBaseURL+"/register", "", req)
	if err != nil {
		return fmt.Errorf("registering: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return resp.Err("registration failed")
	}

	return nil
}

// Refresh exchanges the refresh token for a new access token. The refresh
// token rides in the authorization header; there is no body.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	resp, err := c.exchange(ctx, http.MethodPost, c.authBaseURL+"/refresh", refreshToken, nil)
	if err != nil {
		return "", fmt.Errorf("refreshing token: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", resp.Err("refresh rejected")
	}

	var body refreshResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil || body.AccessToken == "" {
		return "", fmt.Errorf("%w: refresh body %s", apperrors.ErrInvalidResponse, sanitizeResponseBody(resp.Body))
	}

	return body.AccessToken, nil
}
