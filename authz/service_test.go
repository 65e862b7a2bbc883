package authz

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"lakeguard/domain"
	"lakeguard/internal/cache"
	internaldb "lakeguard/internal/db"
	"lakeguard/internal/db/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestService wires an engine over a temp-dir SQLite store with the
// given cache TTL. The returned store allows tests to mutate grants
// behind the cache's back, simulating writes from another replica.
func newTestService(t *testing.T, ttl time.Duration) (*AuthorizationService, *repository.PrivilegeRepo, context.Context) {
	t.Helper()
	writeDB, readDB := internaldb.OpenTestSQLite(t)
	store := repository.NewPrivilegeRepo(writeDB, readDB)
	audit := repository.NewAuditRepo(writeDB, readDB)
	c := cache.New(store, ttl, 64, testLogger())
	svc := NewAuthorizationService(store, audit, c, rate.NewLimiter(rate.Inf, 0), testLogger())
	return svc, store, context.Background()
}

func TestCheckDeniesByDefault(t *testing.T) {
	svc, _, ctx := newTestService(t, time.Minute)

	allowed, err := svc.Check(ctx, "bob", domain.DatasetRef("ns1", "orders"), domain.ActionRead)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestGrantThenCheck(t *testing.T) {
	svc, _, ctx := newTestService(t, time.Minute)
	ds := domain.DatasetRef("ns1", "orders")

	require.NoError(t, svc.Grant(ctx, "alice", ds, domain.ActionRead))

	allowed, err := svc.Check(ctx, "alice", ds, domain.ActionRead)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestActionsAreIndependent(t *testing.T) {
	svc, _, ctx := newTestService(t, time.Minute)
	ds := domain.DatasetRef("ns1", "orders")

	require.NoError(t, svc.Grant(ctx, "alice", ds, domain.ActionAdmin))

	for _, action := range []domain.Action{domain.ActionRead, domain.ActionWrite, domain.ActionExecute} {
		allowed, err := svc.Check(ctx, "alice", ds, action)
		require.NoError(t, err)
		assert.False(t, allowed, "ADMIN must not imply %s", action)
	}
}

func TestGrantIsIdempotentThroughEngine(t *testing.T) {
	svc, store, ctx := newTestService(t, time.Minute)
	ds := domain.DatasetRef("ns1", "orders")

	require.NoError(t, svc.Grant(ctx, "alice", ds, domain.ActionRead))
	require.NoError(t, svc.Grant(ctx, "alice", ds, domain.ActionRead))

	privs, err := store.ListForPrincipal(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, privs, 1)
}

func TestGrantRejectsInvalidAction(t *testing.T) {
	svc, _, ctx := newTestService(t, time.Minute)
	err := svc.Grant(ctx, "alice", domain.NamespaceRef("ns1"), domain.Action("ALL"))
	assert.Error(t, err)
}

func TestRevokeObservedImmediatelyOnSameReplica(t *testing.T) {
	svc, _, ctx := newTestService(t, time.Minute)
	ds := domain.DatasetRef("ns1", "orders")

	require.NoError(t, svc.Grant(ctx, "alice", ds, domain.ActionRead))
	allowed, err := svc.Check(ctx, "alice", ds, domain.ActionRead)
	require.NoError(t, err)
	require.True(t, allowed)

	// Revoke goes through the engine, which invalidates the cache entry.
	require.NoError(t, svc.Revoke(ctx, "alice", ds, domain.ActionRead))

	allowed, err = svc.Check(ctx, "alice", ds, domain.ActionRead)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRevokeObservedWithinTTLWithoutInvalidation(t *testing.T) {
	const ttl = 50 * time.Millisecond
	svc, store, ctx := newTestService(t, ttl)
	ds := domain.DatasetRef("ns1", "orders")
	priv := domain.Privilege{Principal: "alice", Entity: ds, Action: domain.ActionRead}

	require.NoError(t, svc.Grant(ctx, "alice", ds, domain.ActionRead))
	allowed, err := svc.Check(ctx, "alice", ds, domain.ActionRead)
	require.NoError(t, err)
	require.True(t, allowed)

	// Revoke directly in the store: no invalidation reaches this cache,
	// as when a revoke lands on another replica. The TTL alone must bound
	// the staleness.
	require.NoError(t, store.Revoke(ctx, priv))

	require.Eventually(t, func() bool {
		allowed, err := svc.Check(ctx, "alice", ds, domain.ActionRead)
		return err == nil && !allowed
	}, 2*ttl+time.Second, 10*time.Millisecond)
}

func TestFilterVisibilityAsymmetry(t *testing.T) {
	svc, _, ctx := newTestService(t, time.Minute)

	ns1 := domain.NamespaceRef("ns1")
	ns2 := domain.NamespaceRef("ns2")
	orders := domain.DatasetRef("ns1", "orders")
	lineitems := domain.DatasetRef("ns1", "lineitems")

	// Alice holds a single dataset privilege and nothing on either namespace.
	require.NoError(t, svc.Grant(ctx, "alice", orders, domain.ActionRead))

	// Namespace listing: ns1 is visible through the dataset grant; ns2 is not.
	visible, err := svc.Filter(ctx, "alice", []domain.EntityRef{ns1, ns2})
	require.NoError(t, err)
	assert.Equal(t, []domain.EntityRef{ns1}, visible)

	// Dataset listing inside ns1: direct privileges only, the sibling is
	// excluded even though alice can see the namespace.
	visible, err = svc.Filter(ctx, "alice", []domain.EntityRef{orders, lineitems})
	require.NoError(t, err)
	assert.Equal(t, []domain.EntityRef{orders}, visible)

	// Visibility does not flow downward: ADMIN on a namespace alone does
	// not reveal the datasets inside it.
	require.NoError(t, svc.Grant(ctx, "carol", ns1, domain.ActionAdmin))
	visible, err = svc.Filter(ctx, "carol", []domain.EntityRef{orders, lineitems})
	require.NoError(t, err)
	assert.Empty(t, visible)
}

func TestFilterPreservesOrderAndReturnsEmptyNotNil(t *testing.T) {
	svc, _, ctx := newTestService(t, time.Minute)

	visible, err := svc.Filter(ctx, "nobody", []domain.EntityRef{domain.NamespaceRef("ns1")})
	require.NoError(t, err)
	assert.NotNil(t, visible)
	assert.Empty(t, visible)
}

func TestRequireVisibleAndRequirePrivilege(t *testing.T) {
	svc, _, ctx := newTestService(t, time.Minute)
	ns := domain.NamespaceRef("ns1")
	stream := domain.StreamRef("ns1", "clicks")

	require.NoError(t, svc.Grant(ctx, "eve", stream, domain.ActionAdmin))

	// Bob holds nothing: the namespace is not visible at all.
	err := svc.RequireVisible(ctx, "bob", ns)
	var notVisible *domain.NotVisibleError
	require.ErrorAs(t, err, &notVisible)
	assert.Contains(t, err.Error(), domain.NotVisibleMsg)

	// Eve sees the namespace through the stream grant but lacks ADMIN on it.
	require.NoError(t, svc.RequireVisible(ctx, "eve", ns))
	err = svc.RequirePrivilege(ctx, "eve", ns, domain.ActionAdmin)
	var noPriv *domain.NoPrivilegeError
	require.ErrorAs(t, err, &noPriv)
	assert.Contains(t, err.Error(), domain.NoPrivilegeMsg)
}

func TestWildcardRevokeThroughEngine(t *testing.T) {
	svc, store, ctx := newTestService(t, time.Minute)

	require.NoError(t, svc.Grant(ctx, "bob", domain.NamespaceRef("ns1"), domain.ActionAdmin))
	require.NoError(t, svc.Grant(ctx, "bob", domain.DatasetRef("ns1", "orders"), domain.ActionAdmin))
	require.NoError(t, svc.Grant(ctx, "bob", domain.StreamRef("ns1", "clicks"), domain.ActionAdmin))

	require.NoError(t, svc.WildcardRevoke(ctx, "bob", domain.NamespacePattern("ns1"), domain.ActionAdmin))

	privs, err := store.ListForPrincipal(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, privs)

	allowed, err := svc.Check(ctx, "bob", domain.NamespaceRef("ns1"), domain.ActionAdmin)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestOnEntityDeletedCascades(t *testing.T) {
	svc, _, ctx := newTestService(t, time.Minute)
	ns := domain.NamespaceRef("ns1")
	ds := domain.DatasetRef("ns1", "orders")

	require.NoError(t, svc.Grant(ctx, "alice", ns, domain.ActionAdmin))
	require.NoError(t, svc.Grant(ctx, "bob", ds, domain.ActionRead))
	require.NoError(t, svc.Grant(ctx, "eve", ds, domain.ActionWrite))

	// Prime the caches.
	for _, principal := range []string{"alice", "bob", "eve"} {
		_, err := svc.Check(ctx, principal, ds, domain.ActionRead)
		require.NoError(t, err)
	}

	require.NoError(t, svc.OnEntityDeleted(ctx, ns))

	for _, principal := range []string{"alice", "bob", "eve"} {
		for _, action := range domain.Actions {
			for _, entity := range []domain.EntityRef{ns, ds} {
				allowed, err := svc.Check(ctx, principal, entity, action)
				require.NoError(t, err)
				assert.False(t, allowed, "%s %s %s", principal, action, entity.Key())
			}
		}
	}
}

func TestStoreUnavailableFailsClosed(t *testing.T) {
	writeDB, readDB := internaldb.OpenTestSQLite(t)
	store := repository.NewPrivilegeRepo(writeDB, readDB)
	audit := repository.NewAuditRepo(writeDB, readDB)
	c := cache.New(store, time.Minute, 64, testLogger())
	svc := NewAuthorizationService(store, audit, c, nil, testLogger())
	ctx := context.Background()

	require.NoError(t, writeDB.Close())
	require.NoError(t, readDB.Close())

	_, err := svc.Check(ctx, "alice", domain.NamespaceRef("ns1"), domain.ActionRead)
	var su *domain.StoreUnavailableError
	require.ErrorAs(t, err, &su, "a dead store must surface as StoreUnavailable, never a silent deny")

	err = svc.Grant(ctx, "alice", domain.NamespaceRef("ns1"), domain.ActionRead)
	require.ErrorAs(t, err, &su)
}
