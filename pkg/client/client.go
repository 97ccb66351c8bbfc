// Package client is a typed HTTP client for the authorization service: one
// method per endpoint, bearer tenant authentication, and bounded retries
// with exponential backoff on transport failures and 5xx responses.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrAPI wraps error envelopes returned by the service.
var ErrAPI = errors.New("api error")

// APIError carries the status and message of an error envelope.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return ErrAPI }

// Role is one element of Roles results.
type Role struct {
	Role        string `json:"role"`
	Description string `json:"description"`
}

// Permission is one element of permission listings.
type Permission struct {
	Name string `json:"name"`
}

// Member pairs a user with a role in membership listings.
type Member struct {
	User string `json:"user"`
	Role string `json:"role"`
}

// RoleRef names a role in WhichRolesCan results.
type RoleRef struct {
	Role string `json:"role"`
}

// Token is the payload of IssueToken.
type Token struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresAt string `json:"expires_at"`
}

// Client talks to one service instance on behalf of one tenant.
type Client struct {
	baseURL    string
	credential string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetries sets how many times a failed request is retried (default 2).
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = n }
}

// WithBackoff sets the initial retry delay (default 200ms, doubled per
// attempt).
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// New creates a client. credential is the tenant key or a service token.
func New(baseURL, credential string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		credential: credential,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retries:    2,
		backoff:    200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// do runs one request with retries and decodes the envelope's data into out.
// Retries cover transport errors and 5xx responses; 4xx responses are the
// caller's mistake and returned immediately.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = b
	}

	var lastErr error
	delay := c.backoff
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		env, status, err := c.roundTrip(ctx, method, path, payload)
		if err != nil {
			lastErr = err
			continue
		}
		if status >= 500 {
			lastErr = &APIError{Status: status, Message: env.Message}
			continue
		}
		if !env.Success {
			return &APIError{Status: status, Message: env.Message}
		}
		if out != nil && len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
	return lastErr
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) (*envelope, int, error) {
	var reader *bytes.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.credential)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode envelope: %w", err)
	}
	return &env, resp.StatusCode, nil
}

func pathEscape(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return "/" + strings.Join(escaped, "/")
}

type resultPayload struct {
	Result bool `json:"result"`
}

// Ping checks liveness.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ping", nil, nil)
}

// AddRole creates or revives a role.
func (c *Client) AddRole(ctx context.Context, role string) (bool, error) {
	var out resultPayload
	err := c.do(ctx, http.MethodPost, "/api/role"+pathEscape(role), nil, &out)
	return out.Result, err
}

// AddRoleWithDescription creates or revives a role with a description.
func (c *Client) AddRoleWithDescription(ctx context.Context, role, description string) (bool, error) {
	var out resultPayload
	body := map[string]string{"description": description}
	err := c.do(ctx, http.MethodPost, "/api/role"+pathEscape(role), body, &out)
	return out.Result, err
}

// DelRole soft-deletes a role. False when it was already inactive.
func (c *Client) DelRole(ctx context.Context, role string) (bool, error) {
	var out resultPayload
	err := c.do(ctx, http.MethodDelete, "/api/role"+pathEscape(role), nil, &out)
	return out.Result, err
}

// Roles lists the tenant's active roles.
func (c *Client) Roles(ctx context.Context) ([]Role, error) {
	var out struct {
		Result []Role `json:"result"`
	}
	err := c.do(ctx, http.MethodGet, "/api/roles", nil, &out)
	return out.Result, err
}

// AddPermission grants a permission to an existing role.
func (c *Client) AddPermission(ctx context.Context, role, name string) (bool, error) {
	var out resultPayload
	err := c.do(ctx, http.MethodPost, "/api/permission"+pathEscape(role, name), nil, &out)
	return out.Result, err
}

// HasPermission reports whether the role carries the permission.
func (c *Client) HasPermission(ctx context.Context, role, name string) (bool, error) {
	var out resultPayload
	err := c.do(ctx, http.MethodGet, "/api/permission"+pathEscape(role, name), nil, &out)
	return out.Result, err
}

// DelPermission revokes a permission from a role.
func (c *Client) DelPermission(ctx context.Context, role, name string) (bool, error) {
	var out resultPayload
	err := c.do(ctx, http.MethodDelete, "/api/permission"+pathEscape(role, name), nil, &out)
	return out.Result, err
}

// AddMembership attaches a user to an existing role.
func (c *Client) AddMembership(ctx context.Context, user, role string) (bool, error) {
	var out resultPayload
	err := c.do(ctx, http.MethodPost, "/api/membership"+pathEscape(user, role), nil, &out)
	return out.Result, err
}

// HasMembership reports whether the user holds the role.
func (c *Client) HasMembership(ctx context.Context, user, role string) (bool, error) {
	var out resultPayload
	err := c.do(ctx, http.MethodGet, "/api/membership"+pathEscape(user, role), nil, &out)
	return out.Result, err
}

// DelMembership detaches a user from a role.
func (c *Client) DelMembership(ctx context.Context, user, role string) (bool, error) {
	var out resultPayload
	err := c.do(ctx, http.MethodDelete, "/api/membership"+pathEscape(user, role), nil, &out)
	return out.Result, err
}

// UserHasPermission answers the composite authorization question.
func (c *Client) UserHasPermission(ctx context.Context, user, name string) (bool, error) {
	var out struct {
		HasPermission bool `json:"has_permission"`
	}
	err := c.do(ctx, http.MethodGet, "/api/has_permission"+pathEscape(user, name), nil, &out)
	return out.HasPermission, err
}

// UserPermissions lists the distinct permissions a user holds.
func (c *Client) UserPermissions(ctx context.Context, user string) ([]Permission, error) {
	var out struct {
		Permissions []Permission `json:"permissions"`
		Count       int          `json:"count"`
	}
	err := c.do(ctx, http.MethodGet, "/api/user_permissions"+pathEscape(user), nil, &out)
	return out.Permissions, err
}

// RolePermissions lists the permissions granted to a role.
func (c *Client) RolePermissions(ctx context.Context, role string) ([]Permission, error) {
	var out []Permission
	err := c.do(ctx, http.MethodGet, "/api/role_permissions"+pathEscape(role), nil, &out)
	return out, err
}

// UserRoles lists the user's roles.
func (c *Client) UserRoles(ctx context.Context, user string) ([]Member, error) {
	var out []Member
	err := c.do(ctx, http.MethodGet, "/api/user_roles"+pathEscape(user), nil, &out)
	return out, err
}

// RoleMembers lists the role's members.
func (c *Client) RoleMembers(ctx context.Context, role string) ([]Member, error) {
	var out []Member
	err := c.do(ctx, http.MethodGet, "/api/members"+pathEscape(role), nil, &out)
	return out, err
}

// WhichRolesCan lists the roles carrying the permission.
func (c *Client) WhichRolesCan(ctx context.Context, name string) ([]RoleRef, error) {
	var out []RoleRef
	err := c.do(ctx, http.MethodGet, "/api/which_roles_can"+pathEscape(name), nil, &out)
	return out, err
}

// WhichUsersCan lists every (user, role) association granting the
// permission. Duplicates are preserved; dedupe on User if needed.
func (c *Client) WhichUsersCan(ctx context.Context, name string) ([]Member, error) {
	var out []Member
	err := c.do(ctx, http.MethodGet, "/api/which_users_can"+pathEscape(name), nil, &out)
	return out, err
}

// IssueToken mints a service token for this tenant. ttlSeconds 0 uses the
// server default.
func (c *Client) IssueToken(ctx context.Context, permissions []string, ttlSeconds int) (Token, error) {
	var out Token
	body := map[string]any{"permissions": permissions, "ttl_seconds": ttlSeconds}
	err := c.do(ctx, http.MethodPost, "/api/token", body, &out)
	return out, err
}
