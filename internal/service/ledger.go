package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tokolite/backend/internal/domain"
	"tokolite/backend/internal/store"
	"tokolite/backend/internal/xid"
)

// AdjustStock applies a manual IN/OUT/RETURN movement. The stored stock is
// clamped at zero while the ledger keeps the requested amount unclamped, so
// an oversized OUT still shows its full size in the audit trail. Callers
// that want to refuse oversized OUT requests must pre-validate; the ledger
// itself never rejects on quantity.
func (s *Service) AdjustStock(ctx context.Context, productID string, req domain.StockAdjustRequest) (*domain.Product, error) {
	identity, ok, err := s.guardWrite(ctx)
	if err != nil || !ok {
		return nil, err
	}

	if !domain.IsAdjustmentType(req.Type) {
		return nil, fmt.Errorf("%w: unknown adjustment type %q", store.ErrValidation, req.Type)
	}
	if req.Amount == 0 {
		return nil, fmt.Errorf("%w: adjustment amount cannot be zero", store.ErrValidation)
	}

	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	newStock := product.Stock + req.Amount
	if newStock < 0 {
		newStock = 0
	}

	note := strings.TrimSpace(req.Note)
	if note == "" {
		note = "-"
	}

	batch := s.repo.Batch()
	batch.SetProductStock(product.ID, newStock)
	batch.PutMutation(domain.StockMutation{
		ID:          xid.New("LOG"),
		Date:        time.Now().UTC(),
		ProductID:   product.ID,
		ProductName: product.Name,
		SKU:         product.SKU,
		Type:        req.Type,
		Amount:      req.Amount,
		Note:        note,
	})
	if err := batch.Commit(ctx); err != nil {
		return nil, err
	}
	product.Stock = newStock

	s.consumeQuota(ctx, identity)
	s.invalidateDashboard(ctx)

	switch req.Type {
	case domain.MutationOut:
		s.bus.Publish("Stock out", fmt.Sprintf("%d unit of %s recorded out.", -req.Amount, product.Name), domain.SeverityWarning)
	default:
		s.bus.Publish("Stock updated", fmt.Sprintf("Stock of %s is now %d.", product.Name, product.Stock), domain.SeverityInfo)
	}
	if product.Stock <= s.lowStockThreshold {
		s.bus.Publish("Low stock", fmt.Sprintf("%s is running low (%d left).", product.Name, product.Stock), domain.SeverityWarning)
	}

	return product, nil
}
