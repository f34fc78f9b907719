// Package client is a Go SDK for the skincheck API. It keeps the bearer
// session and drives the upload → symptoms → results wizard.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout  = 30 * time.Second
	fallbackMessage = "an unexpected error occurred"
)

// ErrCannotConnect is returned when the server cannot be reached at all.
var ErrCannotConnect = errors.New("cannot connect to server")

// APIError is a non-2xx response. Message is the server's message verbatim
// when it sent one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}

// Client calls the API on behalf of one session.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSession attaches an existing (possibly persisted) session.
func WithSession(s *Session) Option {
	return func(c *Client) { c.session = s }
}

// New returns a client for baseURL, e.g. "http://localhost:8080/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		session: NewSession(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() *Session {
	return c.session
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

// Register creates an account and stores the returned session.
func (c *Client) Register(ctx context.Context, name, email, password string) (*User, error) {
	var resp AuthResponse
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", body, &resp); err != nil {
		return nil, err
	}
	if err := c.session.Set(resp.Token, &resp.User); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Login authenticates and stores the returned session.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var resp AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", body, &resp); err != nil {
		return nil, err
	}
	if err := c.session.Set(resp.Token, &resp.User); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// CurrentUser fetches the profile behind the held token.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.doJSON(ctx, http.MethodGet, "/auth/user", nil, &u); err != nil {
		return nil, err
	}
	c.session.setUser(&u)
	return &u, nil
}

// Restore loads a persisted session and checks it against the server. A
// token the server no longer accepts is discarded. It reports whether the
// session is usable.
func (c *Client) Restore(ctx context.Context) (bool, error) {
	if err := c.session.Load(); err != nil {
		return false, err
	}
	if !c.session.Authenticated() {
		return false, nil
	}
	if _, err := c.CurrentUser(ctx); err != nil {
		if errors.Is(err, ErrCannotConnect) {
			return false, err
		}
		_ = c.session.Clear()
		return false, nil
	}
	return true, nil
}

// Logout tells the server and always clears the local session. Server
// failures are ignored so a user can always log out locally.
func (c *Client) Logout(ctx context.Context) error {
	_ = c.doJSON(ctx, http.MethodPost, "/auth/logout", nil, nil)
	return c.session.Clear()
}

// ---------------------------------------------------------------------------
// Diagnosis
// ---------------------------------------------------------------------------

// UploadImage sends one image as multipart field "image".
func (c *Client) UploadImage(ctx context.Context, filename, contentType string, r io.Reader) (*UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var resp UploadResponse
	if err := c.do(ctx, http.MethodPost, "/diagnosis/upload", mw.FormDataContentType(), &buf, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SubmitSymptoms(ctx context.Context, diagnosisID string, symptoms map[string]any) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/diagnosis/"+url.PathEscape(diagnosisID)+"/symptoms", symptoms, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Results(ctx context.Context, diagnosisID string) (*Results, error) {
	var resp Results
	if err := c.doJSON(ctx, http.MethodGet, "/diagnosis/"+url.PathEscape(diagnosisID)+"/results", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) History(ctx context.Context) ([]HistoryItem, error) {
	var resp []HistoryItem
	if err := c.doJSON(ctx, http.MethodGet, "/diagnosis/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var resp Health
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	if in == nil {
		return c.do(ctx, method, path, "", nil, out)
	}
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, "application/json", bytes.NewReader(b), out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tok := c.session.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrCannotConnect, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp)
		if resp.StatusCode == http.StatusUnauthorized && path != "/auth/login" {
			_ = c.session.Clear()
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) *APIError {
	var body struct {
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Message == "" {
		body.Message = fallbackMessage
	}
	return &APIError{Status: resp.StatusCode, Message: body.Message}
}
