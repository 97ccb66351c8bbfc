package engine_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ourway/auth/internal/crypto"
	"github.com/ourway/auth/internal/engine"
	"github.com/ourway/auth/internal/storage"
)

// setupEngine connects to TEST_DATABASE_URL (migrations already applied) and
// returns an engine with field encryption on, so the round-trip through
// encrypted columns is exercised too. Each test uses a fresh tenant key, so
// runs never collide with leftover rows.
func setupEngine(t *testing.T) (*engine.Engine, *storage.Queries) {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))

	cipher := crypto.NewFieldCipher("integration-test-key", true, nil)
	queries := storage.New(pool, cipher)
	return engine.New(pool, queries), queries
}

func newTenant() string { return uuid.NewString() }

func TestAddRoleIdempotent(t *testing.T) {
	eng, _ := setupEngine(t)
	ctx := context.Background()
	tenant := newTenant()

	ok, err := eng.AddRole(ctx, tenant, "admin", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eng.AddRole(ctx, tenant, "admin", nil)
	require.NoError(t, err)
	assert.True(t, ok, "repeated add reports the equivalent final state")

	roles, err := eng.Roles(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "admin", roles[0].Role)
}

func TestSoftDeleteRevivalKeepsID(t *testing.T) {
	eng, queries := setupEngine(t)
	ctx := context.Background()
	tenant := newTenant()

	desc := "operations"
	_, err := eng.AddRole(ctx, tenant, "admin", &desc)
	require.NoError(t, err)
	before, err := queries.GetActiveRole(ctx, tenant, "admin")
	require.NoError(t, err)

	ok, err := eng.DelRole(ctx, tenant, "admin")
	require.NoError(t, err)
	assert.True(t, ok)

	// Second delete reads false: the row was already inactive.
	ok, err = eng.DelRole(ctx, tenant, "admin")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = queries.GetActiveRole(ctx, tenant, "admin")
	require.ErrorIs(t, err, storage.ErrNotFound)

	ok, err = eng.AddRole(ctx, tenant, "admin", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	after, err := queries.GetActiveRole(ctx, tenant, "admin")
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID, "revival reuses the row")
	assert.Equal(t, "operations", after.Description, "nil description keeps the old one")
}

func TestPermissionRequiresActiveRole(t *testing.T) {
	eng, _ := setupEngine(t)
	ctx := context.Background()
	tenant := newTenant()

	ok, err := eng.AddPermission(ctx, tenant, "ghost", "read")
	require.NoError(t, err)
	assert.False(t, ok, "granting to a missing role is a business failure, not an error")

	_, err = eng.AddRole(ctx, tenant, "admin", nil)
	require.NoError(t, err)
	_, err = eng.DelRole(ctx, tenant, "admin")
	require.NoError(t, err)

	ok, err = eng.AddPermission(ctx, tenant, "admin", "read")
	require.NoError(t, err)
	assert.False(t, ok, "a tombstoned role does not accept grants and is not revived")
}

func TestCompositionAndReverseLookups(t *testing.T) {
	eng, _ := setupEngine(t)
	ctx := context.Background()
	tenant := newTenant()

	for _, role := range []string{"admin", "user"} {
		_, err := eng.AddRole(ctx, tenant, role, nil)
		require.NoError(t, err)
	}
	mustTrue := func(ok bool, err error) {
		t.Helper()
		require.NoError(t, err)
		require.True(t, ok)
	}
	mustTrue(eng.AddPermission(ctx, tenant, "admin", "read"))
	mustTrue(eng.AddPermission(ctx, tenant, "user", "read"))
	mustTrue(eng.AddMembership(ctx, tenant, "john", "admin"))
	mustTrue(eng.AddMembership(ctx, tenant, "jane", "user"))

	ok, err := eng.UserHasPermission(ctx, tenant, "john", "read")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eng.UserHasPermission(ctx, tenant, "jane", "write")
	require.NoError(t, err)
	assert.False(t, ok)

	users, err := eng.WhichUsersCan(ctx, tenant, "read")
	require.NoError(t, err)
	assert.Contains(t, users, engine.Member{User: "john", Role: "admin"})
	assert.Contains(t, users, engine.Member{User: "jane", Role: "user"})

	roles, err := eng.WhichRolesCan(ctx, tenant, "read")
	require.NoError(t, err)
	assert.ElementsMatch(t, []engine.RoleRef{{Role: "admin"}, {Role: "user"}}, roles)

	perms, err := eng.RolePermissions(ctx, tenant, "admin")
	require.NoError(t, err)
	assert.Equal(t, []engine.Permission{{Name: "read"}}, perms)

	members, err := eng.RoleMembers(ctx, tenant, "admin")
	require.NoError(t, err)
	assert.Equal(t, []engine.Member{{User: "john", Role: "admin"}}, members)

	userRoles, err := eng.UserRoles(ctx, tenant, "john")
	require.NoError(t, err)
	assert.Equal(t, []engine.Member{{User: "john", Role: "admin"}}, userRoles)
}

func TestWhichUsersCanPreservesDuplicates(t *testing.T) {
	eng, _ := setupEngine(t)
	ctx := context.Background()
	tenant := newTenant()

	for _, role := range []string{"admin", "ops"} {
		_, err := eng.AddRole(ctx, tenant, role, nil)
		require.NoError(t, err)
		ok, err := eng.AddPermission(ctx, tenant, role, "deploy")
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = eng.AddMembership(ctx, tenant, "john", role)
		require.NoError(t, err)
		require.True(t, ok)
	}

	users, err := eng.WhichUsersCan(ctx, tenant, "deploy")
	require.NoError(t, err)
	assert.Len(t, users, 2, "one element per qualifying role association")
}

func TestDelMembershipRevokesAccess(t *testing.T) {
	eng, _ := setupEngine(t)
	ctx := context.Background()
	tenant := newTenant()

	_, err := eng.AddRole(ctx, tenant, "admin", nil)
	require.NoError(t, err)
	ok, err := eng.AddPermission(ctx, tenant, "admin", "read")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = eng.AddMembership(ctx, tenant, "john", "admin")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = eng.DelMembership(ctx, tenant, "john", "admin")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eng.UserHasPermission(ctx, tenant, "john", "read")
	require.NoError(t, err)
	assert.False(t, ok)

	// Unlink only: the membership row survives and relinking works.
	ok, err = eng.AddMembership(ctx, tenant, "john", "admin")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDelPermissionIsUnlinkOnly(t *testing.T) {
	eng, _ := setupEngine(t)
	ctx := context.Background()
	tenant := newTenant()

	for _, role := range []string{"admin", "ops"} {
		_, err := eng.AddRole(ctx, tenant, role, nil)
		require.NoError(t, err)
		ok, err := eng.AddPermission(ctx, tenant, role, "read")
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := eng.DelPermission(ctx, tenant, "admin", "read")
	require.NoError(t, err)
	assert.True(t, ok)

	// The permission row survived; the other role still carries it.
	has, err := eng.HasPermission(ctx, tenant, "ops", "read")
	require.NoError(t, err)
	assert.True(t, has)

	// Deleting an absent link, or against a missing role, still reports the
	// post-state (no link) as true.
	ok, err = eng.DelPermission(ctx, tenant, "admin", "read")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = eng.DelPermission(ctx, tenant, "ghost", "read")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTenantIsolation(t *testing.T) {
	eng, _ := setupEngine(t)
	ctx := context.Background()
	tenantA, tenantB := newTenant(), newTenant()

	_, err := eng.AddRole(ctx, tenantA, "admin", nil)
	require.NoError(t, err)
	ok, err := eng.AddPermission(ctx, tenantA, "admin", "read")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = eng.AddMembership(ctx, tenantA, "john", "admin")
	require.NoError(t, err)
	require.True(t, ok)

	roles, err := eng.Roles(ctx, tenantB)
	require.NoError(t, err)
	assert.Empty(t, roles)

	ok, err = eng.UserHasPermission(ctx, tenantB, "john", "read")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = eng.AddPermission(ctx, tenantB, "admin", "read")
	require.NoError(t, err)
	assert.False(t, ok, "tenant B has no role named admin")
}

func TestConcurrentAddRoleConverges(t *testing.T) {
	eng, queries := setupEngine(t)
	ctx := context.Background()
	tenant := newTenant()

	const callers = 8
	results := make([]bool, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = eng.AddRole(ctx, tenant, "admin", nil)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[i])
	}

	roles, err := eng.Roles(ctx, tenant)
	require.NoError(t, err)
	assert.Len(t, roles, 1, "exactly one row despite the race")

	_, err = queries.GetActiveRole(ctx, tenant, "admin")
	require.NoError(t, err)
}
