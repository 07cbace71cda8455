package service

import (
	"context"
	"fmt"
	"time"

	"tokolite/backend/internal/domain"
	"tokolite/backend/internal/store"
)

const backupVersion = "1.0"

// Export assembles a full backup document from the current collections.
// Serialization and file delivery are the transport layer's concern.
func (s *Service) Export(ctx context.Context) (*domain.BackupDocument, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	transactions, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	mutations, err := s.repo.ListMutations(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.BackupDocument{
		Settings:       &settings,
		Products:       products,
		Transactions:   transactions,
		StockMutations: mutations,
		ExportDate:     time.Now().UTC(),
		Version:        backupVersion,
	}, nil
}

// Import merges a backup document into the live collections, upserting by
// id. Each collection is applied in its own all-or-nothing batch; there is
// no atomicity across collections, so a failure partway through can leave
// earlier collections updated and later ones untouched.
func (s *Service) Import(ctx context.Context, doc *domain.BackupDocument) error {
	_, ok, err := s.guardOwner(ctx, "Importing a backup")
	if err != nil || !ok {
		return err
	}

	if doc == nil || (doc.Version == "" && doc.Products == nil) {
		s.bus.Publish("Import failed", "The selected file is not a valid backup.", domain.SeverityError)
		return fmt.Errorf("%w: unrecognized backup document", store.ErrValidation)
	}

	if len(doc.Products) > 0 {
		batch := s.repo.Batch()
		for _, product := range doc.Products {
			batch.PutProduct(product)
		}
		if err := batch.Commit(ctx); err != nil {
			s.bus.Publish("Import failed", "Products could not be imported.", domain.SeverityError)
			return err
		}
	}

	if len(doc.Transactions) > 0 {
		batch := s.repo.Batch()
		for _, transaction := range doc.Transactions {
			batch.PutTransaction(transaction)
		}
		if err := batch.Commit(ctx); err != nil {
			s.bus.Publish("Import failed", "Transactions could not be imported.", domain.SeverityError)
			return err
		}
	}

	if len(doc.StockMutations) > 0 {
		batch := s.repo.Batch()
		for _, mutation := range doc.StockMutations {
			batch.PutMutation(mutation)
		}
		if err := batch.Commit(ctx); err != nil {
			s.bus.Publish("Import failed", "Stock history could not be imported.", domain.SeverityError)
			return err
		}
	}

	if doc.Settings != nil {
		if err := s.repo.PutSettings(ctx, *doc.Settings); err != nil {
			s.bus.Publish("Import failed", "Settings could not be imported.", domain.SeverityError)
			return err
		}
	}

	s.invalidateDashboard(ctx)
	s.bus.Publish("Import complete", "Backup data has been merged into the store.", domain.SeveritySuccess)
	return nil
}

// ResetFactory wipes every collection and restores default settings. The
// whole reset rides one batch: either every record is gone and the
// defaults are in place, or nothing changed.
func (s *Service) ResetFactory(ctx context.Context) error {
	_, ok, err := s.guardOwner(ctx, "Factory reset")
	if err != nil || !ok {
		return err
	}

	transactions, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return err
	}
	mutations, err := s.repo.ListMutations(ctx)
	if err != nil {
		return err
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return err
	}

	batch := s.repo.Batch()
	for _, transaction := range transactions {
		batch.DeleteTransaction(transaction.ID)
	}
	for _, mutation := range mutations {
		batch.DeleteMutation(mutation.ID)
	}
	for _, product := range products {
		batch.DeleteProduct(product.ID)
	}
	batch.PutSettings(domain.DefaultSettings())
	if err := batch.Commit(ctx); err != nil {
		return err
	}

	s.invalidateDashboard(ctx)
	s.bus.Publish("Factory reset", "All store data has been erased.", domain.SeverityInfo)
	return nil
}

// ClearTransactions deletes the whole sales history in one batch.
func (s *Service) ClearTransactions(ctx context.Context) error {
	_, ok, err := s.guardOwner(ctx, "Clearing transactions")
	if err != nil || !ok {
		return err
	}
	if err := s.clearTransactionRecords(ctx); err != nil {
		return err
	}
	s.invalidateDashboard(ctx)
	s.bus.Publish("Transactions cleared", "The sales history has been erased.", domain.SeverityError)
	return nil
}

// ClearProducts deletes the whole catalog in one batch. The ledger is left
// as-is: cleared products keep their history without a closing entry.
func (s *Service) ClearProducts(ctx context.Context) error {
	_, ok, err := s.guardOwner(ctx, "Clearing products")
	if err != nil || !ok {
		return err
	}
	if err := s.clearProductRecords(ctx); err != nil {
		return err
	}
	s.invalidateDashboard(ctx)
	s.bus.Publish("Products cleared", "The product catalog has been erased.", domain.SeverityError)
	return nil
}

// DeleteTransactions removes the named records in one batch.
func (s *Service) DeleteTransactions(ctx context.Context, ids []string) error {
	_, ok, err := s.guardOwner(ctx, "Deleting transactions")
	if err != nil || !ok {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: no transaction ids given", store.ErrValidation)
	}

	batch := s.repo.Batch()
	for _, id := range ids {
		batch.DeleteTransaction(id)
	}
	if err := batch.Commit(ctx); err != nil {
		return err
	}

	s.invalidateDashboard(ctx)
	s.bus.Publish("Transactions deleted", fmt.Sprintf("%d transaction(s) removed from the history.", len(ids)), domain.SeverityError)
	return nil
}

// DeleteProducts removes the named catalog records in one batch, without
// ledger closure.
func (s *Service) DeleteProducts(ctx context.Context, ids []string) error {
	_, ok, err := s.guardOwner(ctx, "Deleting products")
	if err != nil || !ok {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: no product ids given", store.ErrValidation)
	}

	batch := s.repo.Batch()
	for _, id := range ids {
		batch.DeleteProduct(id)
	}
	if err := batch.Commit(ctx); err != nil {
		return err
	}

	s.invalidateDashboard(ctx)
	s.bus.Publish("Products deleted", fmt.Sprintf("%d product(s) removed from the catalog.", len(ids)), domain.SeverityError)
	return nil
}

func (s *Service) clearTransactionRecords(ctx context.Context) error {
	transactions, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return err
	}
	if len(transactions) == 0 {
		return nil
	}
	batch := s.repo.Batch()
	for _, transaction := range transactions {
		batch.DeleteTransaction(transaction.ID)
	}
	return batch.Commit(ctx)
}

func (s *Service) clearProductRecords(ctx context.Context) error {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return nil
	}
	batch := s.repo.Batch()
	for _, product := range products {
		batch.DeleteProduct(product.ID)
	}
	return batch.Commit(ctx)
}
