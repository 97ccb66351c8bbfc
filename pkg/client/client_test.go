package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ourway/auth/pkg/client"
)

const tenantKey = "550e8400-e29b-41d4-a716-446655440000"

func respond(w http.ResponseWriter, status int, success bool, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success":   success,
		"code":      status,
		"message":   message,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func TestAddRole_SendsBearerAndDecodesResult(t *testing.T) {
	var gotAuth, gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotMethod = r.Method
		respond(w, http.StatusOK, true, "Success", map[string]bool{"result": true})
	}))
	defer srv.Close()

	c := client.New(srv.URL, tenantKey)
	ok, err := c.AddRole(context.Background(), "admin")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Bearer "+tenantKey, gotAuth)
	assert.Equal(t, "/api/role/admin", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
}

func TestUserHasPermission(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/has_permission/john/read", r.URL.Path)
		respond(w, http.StatusOK, true, "Success", map[string]bool{"has_permission": true})
	}))
	defer srv.Close()

	has, err := client.New(srv.URL, tenantKey).UserHasPermission(context.Background(), "john", "read")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestWhichUsersCan_BareArrayPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, true, "Success", []map[string]string{
			{"user": "john", "role": "admin"},
			{"user": "jane", "role": "user"},
		})
	}))
	defer srv.Close()

	members, err := client.New(srv.URL, tenantKey).WhichUsersCan(context.Background(), "read")
	require.NoError(t, err)
	assert.Equal(t, []client.Member{
		{User: "john", Role: "admin"},
		{User: "jane", Role: "user"},
	}, members)
}

func TestRetryOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			respond(w, http.StatusServiceUnavailable, false, "service temporarily unavailable", nil)
			return
		}
		respond(w, http.StatusOK, true, "Success", map[string]bool{"result": true})
	}))
	defer srv.Close()

	c := client.New(srv.URL, tenantKey, client.WithRetries(3), client.WithBackoff(time.Millisecond))
	ok, err := c.AddRole(context.Background(), "admin")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respond(w, http.StatusBadRequest, false, "tenant key must be a UUID", nil)
	}))
	defer srv.Close()

	c := client.New(srv.URL, "bogus", client.WithRetries(3), client.WithBackoff(time.Millisecond))
	_, err := c.AddRole(context.Background(), "admin")

	require.ErrorIs(t, err, client.ErrAPI)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, int32(1), calls.Load(), "client errors are not retried")
}

func TestRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusInternalServerError, false, "Internal Server Error", nil)
	}))
	defer srv.Close()

	c := client.New(srv.URL, tenantKey, client.WithRetries(1), client.WithBackoff(time.Millisecond))
	_, err := c.Roles(context.Background())

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}

func TestIssueToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []any{"deploy"}, body["permissions"])
		respond(w, http.StatusOK, true, "Success", map[string]string{
			"token":      "abc.def.ghi",
			"token_type": "Bearer",
			"expires_at": "2026-08-27T00:00:00Z",
		})
	}))
	defer srv.Close()

	tok, err := client.New(srv.URL, tenantKey).IssueToken(context.Background(), []string{"deploy"}, 3600)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, "abc.def.ghi", tok.Token)
}

func TestNameEscaping(t *testing.T) {
	var gotRawPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRawPath = r.URL.EscapedPath()
		respond(w, http.StatusBadRequest, false, "invalid input", nil)
	}))
	defer srv.Close()

	// A hostile name must stay one path segment on the wire.
	_, err := client.New(srv.URL, tenantKey).AddRole(context.Background(), "a/b")
	require.Error(t, err)
	assert.Equal(t, "/api/role/a%2Fb", gotRawPath)
}
