package domain

import "context"

// PrivilegeRepository is the durable store for the grant set. It is the
// only component that mutates privileges; everything else reads through
// the cache. Implementations must be safe for concurrent use and must
// wrap connectivity failures in StoreUnavailableError.
type PrivilegeRepository interface {
	// Grant idempotently adds a privilege tuple.
	Grant(ctx context.Context, p Privilege) error

	// Revoke removes the exact tuple. Revoking an absent tuple is a no-op.
	Revoke(ctx context.Context, p Privilege) error

	// GrantMatching grants the principal a copy of every distinct
	// (entity, action) held by any principal that matches the pattern and
	// action. An exact pattern inserts the single tuple directly.
	GrantMatching(ctx context.Context, principal string, pattern EntityPattern, action Action) error

	// RevokeMatching removes all of the principal's tuples matching the
	// pattern and action, returning the removed tuples so callers can
	// invalidate caches.
	RevokeMatching(ctx context.Context, principal string, pattern EntityPattern, action Action) ([]Privilege, error)

	// ListForPrincipal returns the principal's full current grant set.
	ListForPrincipal(ctx context.Context, principal string) ([]Privilege, error)

	// ListForEntity returns every privilege held on one entity.
	ListForEntity(ctx context.Context, entity EntityRef) ([]Privilege, error)

	// DeleteForEntity removes every privilege on the entity and, for a
	// namespace, on all entities beneath it. Returns the removed tuples.
	DeleteForEntity(ctx context.Context, entity EntityRef) ([]Privilege, error)
}

// AuditRepository records privilege mutations. Audit writes are
// best-effort: engine operations log failures but do not abort.
type AuditRepository interface {
	Insert(ctx context.Context, e *AuditEntry) error
	List(ctx context.Context, principal string, limit int) ([]AuditEntry, error)
}
