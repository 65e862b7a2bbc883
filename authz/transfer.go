package authz

import (
	"context"

	"lakeguard/domain"
)

// TransferPrivileges moves every privilege held by `from` that matches
// the pattern and action over to `to`, one tuple at a time. Each move
// revokes before granting, so a tuple is never held by both principals;
// an interrupted transfer leaves at most a transient gap, never a
// duplicate. Returns the number of tuples moved.
//
// The transfer is paced by the service's rate limiter and checks ctx per
// tuple, so long-running transfers are interruptible with valid partial
// progress. Both principals converge within the cache TTL.
func (s *AuthorizationService) TransferPrivileges(ctx context.Context, from, to string, pattern domain.EntityPattern, action domain.Action) (int, error) {
	held, err := s.store.ListForPrincipal(ctx, from)
	if err != nil {
		return 0, err
	}

	// Both sides get invalidated even on partial progress.
	defer func() {
		s.cache.Invalidate(from)
		s.cache.Invalidate(to)
	}()

	moved := 0
	for _, p := range held {
		if !pattern.Matches(p.Entity) || p.Action != action {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return moved, err
		}
		if err := s.store.Revoke(ctx, p); err != nil {
			return moved, err
		}
		if err := s.store.Grant(ctx, domain.Privilege{Principal: to, Entity: p.Entity, Action: p.Action}); err != nil {
			return moved, err
		}
		moved++
	}

	s.auditLog(ctx, from, pattern.String(), string(action), domain.AuditTransfer)
	s.logger.Info("privileges transferred", "from", from, "to", to,
		"pattern", pattern.String(), "action", action, "moved", moved)
	return moved, nil
}
