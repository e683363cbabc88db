package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnauthorized is wrapped by every APIError carrying HTTP 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTransport marks failures that never produced a backend response.
	ErrTransport = errors.New("backend unreachable")
	// ErrMalformed marks a response body that is not a backend envelope.
	ErrMalformed = errors.New("malformed backend response")
)

// APIError is a logical backend failure: a non-zero errorCode in the envelope
// or a non-2xx HTTP status.
type APIError struct {
	Status    int
	ErrorCode int
	Message   string
	Data      json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error %d (status %d): %s", e.ErrorCode, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// envelope is the uniform backend response shape.
type envelope struct {
	ErrorCode int             `json:"errorCode"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
}

// Client talks to the backend REST API on behalf of one session.
type Client struct {
	baseURL        string
	http           *http.Client
	token          string
	onUnauthorized func()
	observer       Observer
}

// Observer sees every completed backend round trip. status is zero when the
// request never got a response.
type Observer func(ctx context.Context, method, path string, status int, elapsed time.Duration, err error)

// NewClient constructs an anonymous Client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// WithToken returns a copy of the client that sends the bearer token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// OnUnauthorized returns a copy of the client that calls fn on every 401.
func (c *Client) OnUnauthorized(fn func()) *Client {
	clone := *c
	clone.onUnauthorized = fn
	return &clone
}

// WithObserver returns a copy of the client that reports round trips to obs.
func (c *Client) WithObserver(obs Observer) *Client {
	clone := *c
	clone.observer = obs
	return &clone
}

// Token returns the bearer token the client sends, if any.
func (c *Client) Token() string {
	return c.token
}

// BaseURL exposes the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RequestOpts captures inputs for a JSON backend call.
type RequestOpts struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Do performs a JSON request and decodes the envelope's data into out.
func (c *Client) Do(ctx context.Context, opts RequestOpts, out any) error {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, opts.Path, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(opts.Path, opts.Query), bodyReader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, opts.Path, err)
	}
	req.Header.Set("Accept", "application/json")
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	return c.send(req, out)
}

// FilePart is a file attached to a multipart request.
type FilePart struct {
	Field    string
	Filename string
	Content  []byte
}

// Upload sends a multipart form. Only the bearer header is set explicitly; the
// content type carries the writer's boundary.
func (c *Client) Upload(ctx context.Context, method, path string, fields url.Values, files []FilePart, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for key, values := range fields {
		for _, v := range values {
			if err := writer.WriteField(key, v); err != nil {
				return fmt.Errorf("multipart field %s: %w", key, err)
			}
		}
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return fmt.Errorf("multipart file %s: %w", f.Filename, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return fmt.Errorf("multipart file %s: %w", f.Filename, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("multipart close: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, nil), &buf)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	return c.send(req, out)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) send(req *http.Request, out any) error {
	start := time.Now()
	status, err := c.roundTrip(req, out)
	if c.observer != nil {
		c.observer(req.Context(), req.Method, strings.TrimPrefix(req.URL.Path, c.basePath()), status, time.Since(start), err)
	}
	return err
}

func (c *Client) basePath() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return ""
	}
	return u.Path
}

func (c *Client) roundTrip(req *http.Request, out any) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %v", ErrTransport, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, c.decode(req, resp, out)
}

func (c *Client) decode(req *http.Request, resp *http.Response, out any) error {

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrTransport, req.URL.Path, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return &APIError{
			Status:    resp.StatusCode,
			ErrorCode: env.ErrorCode,
			Message:   messageOr(env.Message, "session expired, please log in again"),
			Data:      env.Data,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Status:    resp.StatusCode,
			ErrorCode: env.ErrorCode,
			Message:   messageOr(env.Message, http.StatusText(resp.StatusCode)),
			Data:      env.Data,
		}
	}

	if decodeErr != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformed, req.URL.Path, decodeErr)
	}

	if env.ErrorCode != 0 {
		return &APIError{
			Status:    resp.StatusCode,
			ErrorCode: env.ErrorCode,
			Message:   messageOr(env.Message, "request failed"),
			Data:      env.Data,
		}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode %s data: %v", ErrMalformed, req.URL.Path, err)
	}
	return nil
}

func messageOr(message, fallback string) string {
	if strings.TrimSpace(message) == "" {
		return fallback
	}
	return message
}

// call is the typed form of Do.
func call[T any](ctx context.Context, c *Client, opts RequestOpts) (T, error) {
	var out T
	err := c.Do(ctx, opts, &out)
	return out, err
}

func idPath(format string, id int64) string {
	return fmt.Sprintf(format, id)
}
