package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"tokolite/backend/internal/domain"
	"tokolite/backend/internal/store"
	"tokolite/backend/internal/xid"
)

// CommitSale turns a cart into a committed transaction. The transaction
// record, every stock decrement, and one SALE ledger entry per product
// land in a single atomic batch: either the whole sale is visible or none
// of it is. Checkout deliberately does not count against the demo
// allowance.
func (s *Service) CommitSale(ctx context.Context, req domain.CommitSaleRequest) (*domain.Transaction, error) {
	_, ok, err := requireIdentity(ctx)
	if err != nil || !ok {
		return nil, err
	}

	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", store.ErrValidation)
	}
	if !domain.IsPaymentMethod(req.PaymentMethod) {
		return nil, fmt.Errorf("%w: unknown payment method %q", store.ErrValidation, req.PaymentMethod)
	}
	if req.TaxRate < 0 || req.TaxRate > 100 {
		return nil, fmt.Errorf("%w: tax rate must be between 0 and 100", store.ErrValidation)
	}

	// Merge cart lines per product: a cart may carry the same product on
	// several lines, but stock validation and the ledger see one movement
	// per product. Without the merge, a second line for the same product
	// would overwrite the first line's stock write.
	type saleLine struct {
		productID string
		name      string
		sku       string
		quantity  int
		newStock  int
	}
	lines := make([]*saleLine, 0, len(req.Items))
	byProduct := make(map[string]*saleLine, len(req.Items))
	var subtotal float64
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for %s must be positive", store.ErrValidation, item.Name)
		}
		subtotal += item.Price * float64(item.Quantity)
		if line, seen := byProduct[item.ID]; seen {
			line.quantity += item.Quantity
			continue
		}
		line := &saleLine{productID: item.ID, name: item.Name, sku: item.SKU, quantity: item.Quantity}
		byProduct[item.ID] = line
		lines = append(lines, line)
	}

	// Re-check the merged quantities against live stock. The UI keeps
	// carts in sync with live snapshots, but stock may have moved since.
	for _, line := range lines {
		product, err := s.repo.GetProduct(ctx, line.productID)
		if err != nil {
			return nil, err
		}
		if line.quantity > product.Stock {
			return nil, fmt.Errorf("%w: insufficient stock for %s (%d requested, %d available)",
				store.ErrValidation, product.Name, line.quantity, product.Stock)
		}
		line.newStock = product.Stock - line.quantity
	}

	taxAmount := math.Round(subtotal * req.TaxRate / 100)
	now := time.Now().UTC()
	transaction := domain.Transaction{
		ID:            xid.New("TRX"),
		Date:          now,
		Subtotal:      subtotal,
		TaxAmount:     taxAmount,
		Total:         subtotal + taxAmount,
		PaymentMethod: req.PaymentMethod,
		Items:         append([]domain.CartItem(nil), req.Items...),
	}

	batch := s.repo.Batch()
	batch.PutTransaction(transaction)
	for _, line := range lines {
		batch.SetProductStock(line.productID, line.newStock)
		batch.PutMutation(domain.StockMutation{
			ID:          xid.New("LOG"),
			Date:        now,
			ProductID:   line.productID,
			ProductName: line.name,
			SKU:         line.sku,
			Type:        domain.MutationSale,
			Amount:      -line.quantity,
			Note:        fmt.Sprintf("Transaction: %s", transaction.ID),
		})
	}
	if err := batch.Commit(ctx); err != nil {
		return nil, err
	}

	s.invalidateDashboard(ctx)
	s.bus.Publish("Sale completed", fmt.Sprintf("Transaction of %.0f recorded.", transaction.Total), domain.SeveritySuccess)
	for _, line := range lines {
		if line.newStock <= s.lowStockThreshold {
			s.bus.Publish("Low stock", fmt.Sprintf("%s is running low (%d left).", line.name, line.newStock), domain.SeverityWarning)
		}
	}

	return &transaction, nil
}
