// Package service holds the business rules of the TokoLite back end:
// catalog maintenance, the stock ledger, sale commits, demo-account
// quotas, settings, and backup handling. Handlers stay thin; every rule
// lives here so the in-memory and PostgreSQL stores behave identically.
package service

import (
	"context"
	"errors"
	"log"
	"time"

	"tokolite/backend/internal/cache"
	"tokolite/backend/internal/domain"
	"tokolite/backend/internal/notify"
	"tokolite/backend/internal/store"
)

var (
	// ErrQuotaExceeded is returned when a demo identity has used up its
	// free action allowance.
	ErrQuotaExceeded = errors.New("demo usage limit reached")

	// ErrDemoRestricted is returned when a demo identity attempts an
	// operation reserved for the store owner.
	ErrDemoRestricted = errors.New("operation not available in demo mode")
)

type identityKey struct{}

// WithIdentity attaches the acting identity to the context. Service
// operations that mutate state silently do nothing without one.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext reports the acting identity, if any.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(domain.Identity)
	return identity, ok
}

// requireIdentity gives mutating operations their silent no-op contract:
// without an identity on the context, the caller returns before touching
// any state and without surfacing an error.
func requireIdentity(ctx context.Context) (domain.Identity, bool, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return domain.Identity{}, false, nil
	}
	return identity, true, nil
}

// Service wires the persistence layer, the notification center, and the
// dashboard cache behind the operations the HTTP layer exposes.
type Service struct {
	repo  store.Repository
	bus   *notify.Center
	cache cache.DashboardCache

	quotaLimit        int
	lowStockThreshold int
}

func New(repo store.Repository, bus *notify.Center, dashboardCache cache.DashboardCache, quotaLimit, lowStockThreshold int) *Service {
	if dashboardCache == nil {
		dashboardCache = cache.NoopDashboardCache{}
	}
	if quotaLimit <= 0 {
		quotaLimit = 5
	}
	if lowStockThreshold <= 0 {
		lowStockThreshold = 5
	}
	return &Service{
		repo:              repo,
		bus:               bus,
		cache:             dashboardCache,
		quotaLimit:        quotaLimit,
		lowStockThreshold: lowStockThreshold,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.repo.ListTransactions(ctx)
}

func (s *Service) ListMutations(ctx context.Context) ([]domain.StockMutation, error) {
	return s.repo.ListMutations(ctx)
}

// Watch opens a live snapshot stream for one collection. The first
// delivery is the current state; later deliveries follow each commit.
func (s *Service) Watch(ctx context.Context, collection store.Collection) (*store.Subscription, error) {
	return s.repo.Watch(ctx, collection)
}

func (s *Service) Notifications() []domain.AppNotification {
	return s.bus.List()
}

func (s *Service) Toast() *domain.AppNotification {
	return s.bus.Toast()
}

func (s *Service) HideToast() {
	s.bus.HideToast()
}

func (s *Service) MarkNotificationsRead() {
	s.bus.MarkAllRead()
}

func (s *Service) ClearNotifications() {
	s.bus.ClearAll()
}

func (s *Service) invalidateDashboard(ctx context.Context) {
	key := dashboardKey(time.Now().UTC().Format("2006-01-02"))
	// Stale dashboard numbers are tolerable; the write already landed.
	if err := s.cache.Invalidate(ctx, key); err != nil {
		log.Printf("[cache] dashboard invalidate failed: %v", err)
	}
}
