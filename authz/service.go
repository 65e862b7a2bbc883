// Package authz implements the privilege authorization engine: grant and
// revoke operations against the privilege store, enforcement checks and
// visibility filtering served from the bounded-staleness cache, and bulk
// privilege transfer between principals.
package authz

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"lakeguard/domain"
	"lakeguard/internal/cache"
)

// AuthorizationService is the engine facade consumed by the platform's
// REST layer. Reads (Check, RequireVisible, RequirePrivilege, Filter) go
// through the cache; writes go through the store and invalidate the
// affected principals.
type AuthorizationService struct {
	store   domain.PrivilegeRepository
	audit   domain.AuditRepository
	cache   *cache.Cache
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewAuthorizationService(
	store domain.PrivilegeRepository,
	audit domain.AuditRepository,
	c *cache.Cache,
	limiter *rate.Limiter,
	logger *slog.Logger,
) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &AuthorizationService{
		store:   store,
		audit:   audit,
		cache:   c,
		limiter: limiter,
		logger:  logger,
	}
}

// Grant idempotently adds a privilege tuple and invalidates the
// principal's cache entry.
func (s *AuthorizationService) Grant(ctx context.Context, principal string, entity domain.EntityRef, action domain.Action) error {
	if !action.Valid() {
		return fmt.Errorf("invalid action %q", action)
	}
	if err := s.store.Grant(ctx, domain.Privilege{Principal: principal, Entity: entity, Action: action}); err != nil {
		return err
	}
	s.cache.Invalidate(principal)
	s.auditLog(ctx, principal, entity.Key(), string(action), domain.AuditGrant)
	s.logger.Debug("privilege granted", "principal", principal, "entity", entity.Key(), "action", action)
	return nil
}

// Revoke removes the exact tuple. Revoking an absent tuple is a no-op.
func (s *AuthorizationService) Revoke(ctx context.Context, principal string, entity domain.EntityRef, action domain.Action) error {
	if err := s.store.Revoke(ctx, domain.Privilege{Principal: principal, Entity: entity, Action: action}); err != nil {
		return err
	}
	s.cache.Invalidate(principal)
	s.auditLog(ctx, principal, entity.Key(), string(action), domain.AuditRevoke)
	s.logger.Debug("privilege revoked", "principal", principal, "entity", entity.Key(), "action", action)
	return nil
}

// WildcardGrant grants the principal every (entity, action) currently
// matching the pattern.
func (s *AuthorizationService) WildcardGrant(ctx context.Context, principal string, pattern domain.EntityPattern, action domain.Action) error {
	if !action.Valid() {
		return fmt.Errorf("invalid action %q", action)
	}
	if err := s.store.GrantMatching(ctx, principal, pattern, action); err != nil {
		return err
	}
	s.cache.Invalidate(principal)
	s.auditLog(ctx, principal, pattern.String(), string(action), domain.AuditGrant)
	return nil
}

// WildcardRevoke removes all of the principal's tuples matching the
// pattern and action.
func (s *AuthorizationService) WildcardRevoke(ctx context.Context, principal string, pattern domain.EntityPattern, action domain.Action) error {
	removed, err := s.store.RevokeMatching(ctx, principal, pattern, action)
	if err != nil {
		return err
	}
	s.cache.Invalidate(principal)
	s.auditLog(ctx, principal, pattern.String(), string(action), domain.AuditRevoke)
	s.logger.Debug("wildcard revoke", "principal", principal, "pattern", pattern.String(), "removed", len(removed))
	return nil
}

// Check reports whether the principal holds the exact (entity, action)
// tuple. Deny is the default; a store failure is returned as an error and
// must never be treated as a silent deny.
func (s *AuthorizationService) Check(ctx context.Context, principal string, entity domain.EntityRef, action domain.Action) (bool, error) {
	snap, err := s.cache.PrivilegesFor(ctx, principal)
	if err != nil {
		return false, err
	}
	return snap.Has(entity, action), nil
}

// RequireVisible returns nil when the entity is visible to the principal:
// any action held directly on it, or (namespaces only) any privilege on
// an entity nested beneath it. Otherwise it returns a NotVisibleError.
func (s *AuthorizationService) RequireVisible(ctx context.Context, principal string, entity domain.EntityRef) error {
	snap, err := s.cache.PrivilegesFor(ctx, principal)
	if err != nil {
		return err
	}
	if snap.HasAny(entity) || snap.HasAnyUnder(entity) {
		return nil
	}
	return domain.ErrNotVisible(principal, entity)
}

// RequirePrivilege returns nil when the principal holds the exact tuple,
// and a NoPrivilegeError otherwise. Callers use it for mutating
// operations on entities the principal can already see.
func (s *AuthorizationService) RequirePrivilege(ctx context.Context, principal string, entity domain.EntityRef, action domain.Action) error {
	allowed, err := s.Check(ctx, principal, entity, action)
	if err != nil {
		return err
	}
	if !allowed {
		return domain.ErrNoPrivilege(principal, entity, action)
	}
	return nil
}

// Filter returns the subset of candidates visible to the principal,
// preserving candidate order. Namespace candidates are visible through
// privileges on their contents; dataset, stream, and principal candidates
// require a direct privilege.
func (s *AuthorizationService) Filter(ctx context.Context, principal string, candidates []domain.EntityRef) ([]domain.EntityRef, error) {
	snap, err := s.cache.PrivilegesFor(ctx, principal)
	if err != nil {
		return nil, err
	}
	visible := make([]domain.EntityRef, 0, len(candidates))
	for _, e := range candidates {
		if snap.HasAny(e) || snap.HasAnyUnder(e) {
			visible = append(visible, e)
		}
	}
	return visible, nil
}

// OnEntityDeleted is the cascading cleanup hook: the entity-management
// layer calls it after deleting an entity, dropping every privilege on
// the entity (and, for a namespace, on everything beneath it) and
// invalidating all affected principals.
func (s *AuthorizationService) OnEntityDeleted(ctx context.Context, entity domain.EntityRef) error {
	removed, err := s.store.DeleteForEntity(ctx, entity)
	if err != nil {
		return err
	}

	principals := make(map[string]bool, len(removed))
	for _, p := range removed {
		principals[p.Principal] = true
	}
	for principal := range principals {
		s.cache.Invalidate(principal)
	}

	s.auditLog(ctx, "system", entity.Key(), domain.Wildcard, domain.AuditCascadeDelete)
	s.logger.Info("entity privileges removed", "entity", entity.Key(),
		"tuples", len(removed), "principals", len(principals))
	return nil
}

// auditLog records a privilege mutation. Audit writes are best-effort:
// failures are logged, never propagated.
func (s *AuthorizationService) auditLog(ctx context.Context, principal, entityKey, action, verb string) {
	err := s.audit.Insert(ctx, &domain.AuditEntry{
		Principal: principal,
		EntityKey: entityKey,
		Action:    action,
		Verb:      verb,
	})
	if err != nil {
		s.logger.Warn("audit insert failed", "verb", verb, "principal", principal, "error", err)
	}
}
