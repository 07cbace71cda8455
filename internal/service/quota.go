package service

import (
	"context"
	"fmt"
	"log"

	"tokolite/backend/internal/domain"
)

// guardWrite enforces the demo allowance for state-changing operations.
// It returns (identity, false, nil) untouched when no identity is on the
// context: callers treat that as a silent no-op, matching a signed-out
// client whose requests never reach the data layer.
func (s *Service) guardWrite(ctx context.Context) (domain.Identity, bool, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return domain.Identity{}, false, nil
	}
	if !identity.Anonymous {
		return identity, true, nil
	}

	used, err := s.repo.GetUsage(ctx, identity.UID)
	if err != nil {
		return identity, false, err
	}
	if used >= s.quotaLimit {
		s.bus.Publish("Demo limit reached", "The demo usage limit has been reached. Sign in as the owner to continue.", domain.SeverityError)
		return identity, false, ErrQuotaExceeded
	}
	return identity, true, nil
}

// consumeQuota burns one demo action after the operation succeeded.
// Owner identities are never metered.
func (s *Service) consumeQuota(ctx context.Context, identity domain.Identity) {
	if !identity.Anonymous {
		return
	}
	if _, err := s.repo.IncrementUsage(ctx, identity.UID); err != nil {
		log.Printf("[quota] increment for %s failed: %v", identity.UID, err)
	}
}

// guardOwner blocks demo identities from destructive administration,
// independent of the numeric quota. The emitted notification names the
// blocked action.
func (s *Service) guardOwner(ctx context.Context, action string) (domain.Identity, bool, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return domain.Identity{}, false, nil
	}
	if identity.Anonymous {
		s.bus.Publish("Demo mode", fmt.Sprintf("%s is not available in demo mode.", action), domain.SeverityError)
		return identity, false, ErrDemoRestricted
	}
	return identity, true, nil
}

// Usage reports how many metered actions an identity has consumed.
func (s *Service) Usage(ctx context.Context, uid string) (int, error) {
	return s.repo.GetUsage(ctx, uid)
}
