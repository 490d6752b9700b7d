package core

import (
	"context"
	"strings"
)

// AuthorizationGuard admits a caller only when it matches the ledger's live
// owner. The owner is read on every call and never cached.
type AuthorizationGuard struct {
	owners OwnerReader
}

func NewAuthorizationGuard(owners OwnerReader) *AuthorizationGuard {
	return &AuthorizationGuard{owners: owners}
}

// Authorize fails closed: a missing reader or a failed read denies.
func (g *AuthorizationGuard) Authorize(ctx context.Context, caller string) error {
	if g == nil || g.owners == nil {
		return NewServiceUnavailableError(nil, "core: ledger owner reader is not configured")
	}
	owner, err := g.owners.ReadOwner(ctx)
	if err != nil {
		return NewServiceUnavailableError(err, "core: ledger owner lookup failed")
	}
	if strings.TrimSpace(owner) == "" || strings.TrimSpace(caller) == "" {
		return NewForbiddenError(caller)
	}
	if !SameAddress(owner, caller) {
		return NewForbiddenError(caller)
	}
	return nil
}

// Authorize exposes the admin guard to callers that gate their own surfaces.
func (s *Service) Authorize(ctx context.Context, caller string) (err error) {
	defer func() {
		if err != nil {
			s.recordCounter(ctx, MetricAuthorizationDenied, 1, nil)
		}
	}()
	if s == nil {
		return NewServiceUnavailableError(nil, "core: service is not configured")
	}
	if err := s.guard.Authorize(ctx, caller); err != nil {
		return s.mapError(err)
	}
	return nil
}
