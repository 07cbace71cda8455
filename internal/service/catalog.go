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

// AddProduct creates a catalog entry and opens its ledger with a NEW
// record carrying the initial stock. Both writes land in one batch so a
// product can never exist without its opening ledger line.
func (s *Service) AddProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	identity, ok, err := s.guardWrite(ctx)
	if err != nil || !ok {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	sku := strings.TrimSpace(req.SKU)
	if name == "" || sku == "" {
		return nil, fmt.Errorf("%w: name and sku are required", store.ErrValidation)
	}
	if req.Price < 0 {
		return nil, fmt.Errorf("%w: price cannot be negative", store.ErrValidation)
	}
	if req.InitialStock < 0 {
		return nil, fmt.Errorf("%w: initial stock cannot be negative", store.ErrValidation)
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:       xid.New("PRD"),
		Name:     name,
		SKU:      sku,
		Price:    req.Price,
		Stock:    req.InitialStock,
		Category: strings.TrimSpace(req.Category),
		Image:    req.Image,
	}

	batch := s.repo.Batch()
	batch.PutProduct(product)
	batch.PutMutation(domain.StockMutation{
		ID:          xid.New("LOG"),
		Date:        now,
		ProductID:   product.ID,
		ProductName: product.Name,
		SKU:         product.SKU,
		Type:        domain.MutationNew,
		Amount:      product.Stock,
		Note:        "new product",
	})
	if err := batch.Commit(ctx); err != nil {
		return nil, err
	}

	s.consumeQuota(ctx, identity)
	s.invalidateDashboard(ctx)
	s.bus.Publish("Product added", fmt.Sprintf("%s has been added to the catalog.", product.Name), domain.SeveritySuccess)
	return &product, nil
}

// UpdateProduct edits catalog fields. Stock is ledger-controlled and is
// deliberately absent from the request type; no ledger entry is written.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	_, ok, err := requireIdentity(ctx)
	if err != nil || !ok {
		return nil, err
	}

	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", store.ErrValidation)
		}
		product.Name = name
	}
	if req.SKU != nil {
		sku := strings.TrimSpace(*req.SKU)
		if sku == "" {
			return nil, fmt.Errorf("%w: sku cannot be empty", store.ErrValidation)
		}
		product.SKU = sku
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, fmt.Errorf("%w: price cannot be negative", store.ErrValidation)
		}
		product.Price = *req.Price
	}
	if req.Category != nil {
		product.Category = strings.TrimSpace(*req.Category)
	}
	if req.Image != nil {
		product.Image = *req.Image
	}

	if err := s.repo.PutProduct(ctx, *product); err != nil {
		return nil, err
	}

	s.invalidateDashboard(ctx)
	s.bus.Publish("Product updated", fmt.Sprintf("%s has been updated.", product.Name), domain.SeveritySuccess)
	return product, nil
}

// DeleteProduct closes the product's ledger with a DELETE record that
// zeroes its running sum, then removes the catalog entry. The ledger
// entry outlives the product.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	_, ok, err := s.guardOwner(ctx, "Deleting products")
	if err != nil || !ok {
		return err
	}

	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return err
	}

	batch := s.repo.Batch()
	batch.PutMutation(domain.StockMutation{
		ID:          xid.New("LOG"),
		Date:        time.Now().UTC(),
		ProductID:   product.ID,
		ProductName: product.Name,
		SKU:         product.SKU,
		Type:        domain.MutationDelete,
		Amount:      -product.Stock,
		Note:        "product deleted",
	})
	batch.DeleteProduct(product.ID)
	if err := batch.Commit(ctx); err != nil {
		return err
	}

	s.invalidateDashboard(ctx)
	s.bus.Publish("Product deleted", fmt.Sprintf("%s has been removed from the catalog.", product.Name), domain.SeverityError)
	return nil
}
