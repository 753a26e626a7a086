// Package client is a Go client for the Lender HTTP API together with the
// view state used by front ends: the item list with optimistic toggling,
// the item detail view and the lend form.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lenderapp/lender/internal/auth"
	"github.com/lenderapp/lender/internal/model"
)

// DefaultTimeout bounds every request made by a Client.
const DefaultTimeout = 10 * time.Second

// ErrTransport wraps failures where no usable response arrived: network
// errors, timeouts and undecodable bodies.
var ErrTransport = errors.New("transport error")

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client talks to one Lender server. It keeps the session and CSRF cookies in
// a cookie jar, so one Client represents one signed-in browser.
type Client struct {
	base *url.URL
	http *http.Client
	log  *slog.Logger

	mu   sync.Mutex
	user *model.User
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger used for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	c := &Client{
		base: base,
		http: &http.Client{Jar: jar, Timeout: DefaultTimeout},
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// User returns the signed-in user, or nil.
func (c *Client) User() *model.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Authenticated reports whether the client holds a session.
func (c *Client) Authenticated() bool {
	return c.User() != nil
}

func (c *Client) setUser(u *model.User) {
	c.mu.Lock()
	c.user = u
	c.mu.Unlock()
}

func (c *Client) csrfToken() string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == auth.CSRFCookieName {
			return ck.Value
		}
	}
	return ""
}

// FetchCSRF obtains a fresh CSRF cookie.
func (c *Client) FetchCSRF(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/csrf-cookie", nil, nil)
}

func (c *Client) ensureCSRF(ctx context.Context) error {
	if c.csrfToken() != "" {
		return nil
	}
	return c.FetchCSRF(ctx)
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		if tok := c.csrfToken(); tok != "" {
			req.Header.Set(auth.CSRFHeaderName, tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WarnContext(ctx, "request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err == nil {
			apiErr.Message = eb.Error
			apiErr.Fields = eb.Fields
		}
		if resp.StatusCode == http.StatusUnauthorized {
			c.setUser(nil)
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s %s: %v", ErrTransport, method, path, err)
	}
	return nil
}

type sessionBody struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Register creates an account and signs in.
func (c *Client) Register(ctx context.Context, reg model.Registration) (*model.User, error) {
	if err := c.ensureCSRF(ctx); err != nil {
		return nil, err
	}
	var out sessionBody
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", reg, &out); err != nil {
		return nil, err
	}
	c.setUser(out.User)
	return out.User, nil
}

// Login signs in with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*model.User, error) {
	if err := c.ensureCSRF(ctx); err != nil {
		return nil, err
	}
	var out sessionBody
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return nil, err
	}
	c.setUser(out.User)
	return out.User, nil
}

// Logout ends the session on the server.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return err
	}
	c.setUser(nil)
	return nil
}

// Me refreshes and returns the signed-in user.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &u); err != nil {
		return nil, err
	}
	c.setUser(&u)
	return &u, nil
}

// ListQuery narrows ListItems. The zero value lists everything.
type ListQuery struct {
	Status string
	Order  string
	Limit  int
	Offset int
}

func (q ListQuery) encode() string {
	v := url.Values{}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// ListItems returns the caller's items.
func (c *Client) ListItems(ctx context.Context, q ListQuery) ([]model.Item, error) {
	var items []model.Item
	if err := c.do(ctx, http.MethodGet, "/api/items"+q.encode(), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetItem returns one item.
func (c *Client) GetItem(ctx context.Context, id string) (*model.Item, error) {
	var item model.Item
	if err := c.do(ctx, http.MethodGet, "/api/items/"+url.PathEscape(id), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem stores a new item owned by the signed-in user.
func (c *Client) CreateItem(ctx context.Context, in model.NewItem) (*model.Item, error) {
	if err := c.ensureCSRF(ctx); err != nil {
		return nil, err
	}
	var item model.Item
	if err := c.do(ctx, http.MethodPost, "/api/items", in, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem applies a partial update and returns the server record.
func (c *Client) UpdateItem(ctx context.Context, id string, patch model.ItemPatch) (*model.Item, error) {
	if err := c.ensureCSRF(ctx); err != nil {
		return nil, err
	}
	var item model.Item
	if err := c.do(ctx, http.MethodPatch, "/api/items/"+url.PathEscape(id), patch, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteItem removes an item.
func (c *Client) DeleteItem(ctx context.Context, id string) error {
	if err := c.ensureCSRF(ctx); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "/api/items/"+url.PathEscape(id), nil, nil)
}

// Notify asks the server to email the item's contact.
func (c *Client) Notify(ctx context.Context, id string) error {
	if err := c.ensureCSRF(ctx); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/api/items/"+url.PathEscape(id)+"/notify", nil, nil)
}
