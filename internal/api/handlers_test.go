package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ourway/auth/internal/api"
	"github.com/ourway/auth/internal/audit"
	"github.com/ourway/auth/internal/config"
	"github.com/ourway/auth/internal/engine"
	"github.com/ourway/auth/internal/storage"
	"github.com/ourway/auth/internal/token"
)

const tenantKey = "550e8400-e29b-41d4-a716-446655440000"

// fakeEngine returns canned values and records the last call so tests can
// assert what reached the engine.
type fakeEngine struct {
	boolResult bool
	err        error

	lastMethod  string
	lastCreator string
	lastArgs    []string

	roles   []engine.Role
	perms   []engine.Permission
	members []engine.Member
	refs    []engine.RoleRef
}

func (f *fakeEngine) record(method, creator string, args ...string) {
	f.lastMethod = method
	f.lastCreator = creator
	f.lastArgs = args
}

func (f *fakeEngine) AddRole(ctx context.Context, creator, role string, description *string) (bool, error) {
	f.record("AddRole", creator, role)
	return f.boolResult, f.err
}

func (f *fakeEngine) DelRole(ctx context.Context, creator, role string) (bool, error) {
	f.record("DelRole", creator, role)
	return f.boolResult, f.err
}

func (f *fakeEngine) Roles(ctx context.Context, creator string) ([]engine.Role, error) {
	f.record("Roles", creator)
	return f.roles, f.err
}

func (f *fakeEngine) AddPermission(ctx context.Context, creator, role, name string) (bool, error) {
	f.record("AddPermission", creator, role, name)
	return f.boolResult, f.err
}

func (f *fakeEngine) HasPermission(ctx context.Context, creator, role, name string) (bool, error) {
	f.record("HasPermission", creator, role, name)
	return f.boolResult, f.err
}

func (f *fakeEngine) DelPermission(ctx context.Context, creator, role, name string) (bool, error) {
	f.record("DelPermission", creator, role, name)
	return f.boolResult, f.err
}

func (f *fakeEngine) AddMembership(ctx context.Context, creator, user, role string) (bool, error) {
	f.record("AddMembership", creator, user, role)
	return f.boolResult, f.err
}

func (f *fakeEngine) HasMembership(ctx context.Context, creator, user, role string) (bool, error) {
	f.record("HasMembership", creator, user, role)
	return f.boolResult, f.err
}

func (f *fakeEngine) DelMembership(ctx context.Context, creator, user, role string) (bool, error) {
	f.record("DelMembership", creator, user, role)
	return f.boolResult, f.err
}

func (f *fakeEngine) UserHasPermission(ctx context.Context, creator, user, name string) (bool, error) {
	f.record("UserHasPermission", creator, user, name)
	return f.boolResult, f.err
}

func (f *fakeEngine) UserPermissions(ctx context.Context, creator, user string) ([]engine.Permission, error) {
	f.record("UserPermissions", creator, user)
	return f.perms, f.err
}

func (f *fakeEngine) RolePermissions(ctx context.Context, creator, role string) ([]engine.Permission, error) {
	f.record("RolePermissions", creator, role)
	return f.perms, f.err
}

func (f *fakeEngine) UserRoles(ctx context.Context, creator, user string) ([]engine.Member, error) {
	f.record("UserRoles", creator, user)
	return f.members, f.err
}

func (f *fakeEngine) RoleMembers(ctx context.Context, creator, role string) ([]engine.Member, error) {
	f.record("RoleMembers", creator, role)
	return f.members, f.err
}

func (f *fakeEngine) WhichRolesCan(ctx context.Context, creator, name string) ([]engine.RoleRef, error) {
	f.record("WhichRolesCan", creator, name)
	return f.refs, f.err
}

func (f *fakeEngine) WhichUsersCan(ctx context.Context, creator, name string) ([]engine.Member, error) {
	f.record("WhichUsersCan", creator, name)
	return f.members, f.err
}

// captureRecorder keeps every audit record it sees.
type captureRecorder struct {
	mu      sync.Mutex
	records []audit.Record
}

func (c *captureRecorder) Record(ctx context.Context, rec audit.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
}

func newTestServer(eng api.Engine) (*api.Server, *captureRecorder) {
	recorder := &captureRecorder{}
	issuer := token.NewIssuer("test-secret", time.Hour)
	cfg := config.Config{RequestTimeout: 5 * time.Second}
	return api.NewServer(nil, nil, eng, recorder, issuer, cfg), recorder
}

func doRequest(t *testing.T, srv *api.Server, method, path, body string, authenticated bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+tenantKey)
	}
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestPing(t *testing.T) {
	srv, _ := newTestServer(&fakeEngine{})
	rec := doRequest(t, srv, http.MethodGet, "/ping", "", false)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env["success"])
	assert.Equal(t, "PONG", env["data"].(map[string]any)["message"])
	assert.NotEmpty(t, env["timestamp"])
}

func TestAddRole(t *testing.T) {
	eng := &fakeEngine{boolResult: true}
	srv, recorder := newTestServer(eng)

	rec := doRequest(t, srv, http.MethodPost, "/api/role/admin", "", true)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env["data"].(map[string]any)["result"])

	assert.Equal(t, "AddRole", eng.lastMethod)
	assert.Equal(t, tenantKey, eng.lastCreator)
	assert.Equal(t, []string{"admin"}, eng.lastArgs)

	require.Len(t, recorder.records, 1)
	assert.Equal(t, audit.ActionCreateRole, recorder.records[0].Action)
	assert.Equal(t, tenantKey, recorder.records[0].ClientID)
	assert.True(t, recorder.records[0].Success)
}

func TestAddRole_WithDescription(t *testing.T) {
	eng := &fakeEngine{boolResult: true}
	srv, _ := newTestServer(eng)

	rec := doRequest(t, srv, http.MethodPost, "/api/role/admin", `{"description":"operations"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAddRole_UnknownBodyField(t *testing.T) {
	srv, _ := newTestServer(&fakeEngine{boolResult: true})

	rec := doRequest(t, srv, http.MethodPost, "/api/role/admin", `{"desc":"x"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddRole_NoAuth(t *testing.T) {
	srv, _ := newTestServer(&fakeEngine{})
	rec := doRequest(t, srv, http.MethodPost, "/api/role/admin", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddRole_BadTenantKey(t *testing.T) {
	srv, _ := newTestServer(&fakeEngine{})

	req := httptest.NewRequest(http.MethodPost, "/api/role/admin", nil)
	req.Header.Set("Authorization", "Bearer not-a-uuid")
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddRole_PathTraversalRejected(t *testing.T) {
	eng := &fakeEngine{boolResult: true}
	srv, _ := newTestServer(eng)

	rec := doRequest(t, srv, http.MethodPost, "/api/role/../etc/passwd", "", true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, eng.lastMethod, "invalid input must not reach the engine")
}

func TestDelRole_AlreadyInactive(t *testing.T) {
	eng := &fakeEngine{boolResult: false}
	srv, recorder := newTestServer(eng)

	rec := doRequest(t, srv, http.MethodDelete, "/api/role/admin", "", true)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, false, env["data"].(map[string]any)["result"])
	require.Len(t, recorder.records, 1)
	assert.False(t, recorder.records[0].Success)
}

func TestListRoles(t *testing.T) {
	eng := &fakeEngine{roles: []engine.Role{{Role: "admin", Description: "ops"}}}
	srv, _ := newTestServer(eng)

	rec := doRequest(t, srv, http.MethodGet, "/api/roles", "", true)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	result := env["data"].(map[string]any)["result"].([]any)
	require.Len(t, result, 1)
	assert.Equal(t, "admin", result[0].(map[string]any)["role"])
}

func TestPermissionRoutes(t *testing.T) {
	eng := &fakeEngine{boolResult: true}
	srv, _ := newTestServer(eng)

	rec := doRequest(t, srv, http.MethodPost, "/api/permission/admin/read", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AddPermission", eng.lastMethod)
	assert.Equal(t, []string{"admin", "read"}, eng.lastArgs)

	rec = doRequest(t, srv, http.MethodGet, "/api/permission/admin/read", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HasPermission", eng.lastMethod)

	rec = doRequest(t, srv, http.MethodDelete, "/api/permission/admin/read", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DelPermission", eng.lastMethod)
}

func TestMembershipRoutes(t *testing.T) {
	eng := &fakeEngine{boolResult: true}
	srv, _ := newTestServer(eng)

	rec := doRequest(t, srv, http.MethodPost, "/api/membership/john/admin", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AddMembership", eng.lastMethod)
	assert.Equal(t, []string{"john", "admin"}, eng.lastArgs)

	rec = doRequest(t, srv, http.MethodDelete, "/api/membership/john/admin", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DelMembership", eng.lastMethod)
}

func TestUserHasPermission(t *testing.T) {
	eng := &fakeEngine{boolResult: true}
	srv, _ := newTestServer(eng)

	rec := doRequest(t, srv, http.MethodGet, "/api/has_permission/john/read", "", true)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env["data"].(map[string]any)["has_permission"])
	assert.Equal(t, "UserHasPermission", eng.lastMethod)
}

func TestUserPermissions_CountedPayload(t *testing.T) {
	eng := &fakeEngine{perms: []engine.Permission{{Name: "read"}, {Name: "write"}}}
	srv, _ := newTestServer(eng)

	rec := doRequest(t, srv, http.MethodGet, "/api/user_permissions/john", "", true)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(2), data["count"])
	assert.Len(t, data["permissions"].([]any), 2)
}

func TestWhichUsersCan_PreservesDuplicates(t *testing.T) {
	eng := &fakeEngine{members: []engine.Member{
		{User: "john", Role: "admin"},
		{User: "john", Role: "ops"},
	}}
	srv, _ := newTestServer(eng)

	rec := doRequest(t, srv, http.MethodGet, "/api/which_users_can/deploy", "", true)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec)["data"].([]any)
	assert.Len(t, data, 2)
}

func TestWorkflowUsers_Dedupes(t *testing.T) {
	eng := &fakeEngine{members: []engine.Member{
		{User: "john", Role: "admin"},
		{User: "john", Role: "ops"},
		{User: "jane", Role: "ops"},
	}}
	srv, _ := newTestServer(eng)

	rec := doRequest(t, srv, http.MethodGet, "/api/workflow/users/deploy", "", true)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(2), data["count"])
	assert.Len(t, data["users"].([]any), 2)
}

func TestWorkflowCanRun(t *testing.T) {
	eng := &fakeEngine{boolResult: true}
	srv, _ := newTestServer(eng)

	rec := doRequest(t, srv, http.MethodGet, "/api/workflow/user/john/can_run/deploy", "", true)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, true, data["can_run"])
	assert.Equal(t, "john", data["user"])
	assert.Equal(t, "deploy", data["workflow"])
}

func TestIssueToken_RoundTrip(t *testing.T) {
	srv, recorder := newTestServer(&fakeEngine{})

	rec := doRequest(t, srv, http.MethodPost, "/api/token", `{"permissions":["deploy"],"ttl_seconds":3600}`, true)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, "Bearer", data["token_type"])

	// The minted token must authenticate a follow-up request.
	req := httptest.NewRequest(http.MethodGet, "/api/roles", nil)
	req.Header.Set("Authorization", "Bearer "+data["token"].(string))
	rec2 := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)

	require.NotEmpty(t, recorder.records)
	assert.Equal(t, audit.ActionIssueToken, recorder.records[0].Action)
}

func TestStoreUnavailableMapsTo503(t *testing.T) {
	eng := &fakeEngine{err: fmt.Errorf("list roles: %w", storage.ErrUnavailable)}
	srv, _ := newTestServer(eng)

	rec := doRequest(t, srv, http.MethodGet, "/api/roles", "", true)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, false, env["success"])
	assert.NotContains(t, env["message"], "list roles", "internal error text stays out of responses")
}

func TestInternalErrorMapsTo500(t *testing.T) {
	eng := &fakeEngine{err: fmt.Errorf("scan row: unexpected column")}
	srv, _ := newTestServer(eng)

	rec := doRequest(t, srv, http.MethodGet, "/api/roles", "", true)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", decodeEnvelope(t, rec)["message"])
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(&fakeEngine{})
	rec := doRequest(t, srv, http.MethodGet, "/nope", "", false)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, false, env["success"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(&fakeEngine{})
	rec := doRequest(t, srv, http.MethodPut, "/api/roles", "", true)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
