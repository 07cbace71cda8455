package memory

import (
	"context"
	"fmt"
	"slices"

	"tokolite/backend/internal/domain"
	"tokolite/backend/internal/store"
)

type batchOp struct {
	apply func(s *Store)
	// touched marks the collection the op mutates so commit can broadcast
	// one snapshot per affected collection.
	touched store.Collection
}

// batch buffers writes and applies them under a single write lock, so the
// whole set becomes visible at once or not at all.
type batch struct {
	store     *Store
	ops       []batchOp
	committed bool
}

func (b *batch) PutProduct(product domain.Product) {
	b.ops = append(b.ops, batchOp{
		touched: store.CollectionProducts,
		apply:   func(s *Store) { s.products[product.ID] = product },
	})
}

func (b *batch) DeleteProduct(id string) {
	b.ops = append(b.ops, batchOp{
		touched: store.CollectionProducts,
		apply:   func(s *Store) { delete(s.products, id) },
	})
}

func (b *batch) SetProductStock(id string, stock int) {
	b.ops = append(b.ops, batchOp{
		touched: store.CollectionProducts,
		apply: func(s *Store) {
			if product, exists := s.products[id]; exists {
				product.Stock = stock
				s.products[id] = product
			}
		},
	})
}

func (b *batch) PutTransaction(tx domain.Transaction) {
	b.ops = append(b.ops, batchOp{
		touched: store.CollectionTransactions,
		apply:   func(s *Store) { s.transactions[tx.ID] = tx },
	})
}

func (b *batch) DeleteTransaction(id string) {
	b.ops = append(b.ops, batchOp{
		touched: store.CollectionTransactions,
		apply:   func(s *Store) { delete(s.transactions, id) },
	})
}

func (b *batch) PutMutation(mutation domain.StockMutation) {
	b.ops = append(b.ops, batchOp{
		touched: store.CollectionMutations,
		apply: func(s *Store) {
			for i, existing := range s.mutations {
				if existing.ID == mutation.ID {
					s.mutations[i] = mutation
					return
				}
			}
			s.mutations = append(s.mutations, mutation)
		},
	})
}

func (b *batch) DeleteMutation(id string) {
	b.ops = append(b.ops, batchOp{
		touched: store.CollectionMutations,
		apply: func(s *Store) {
			s.mutations = slices.DeleteFunc(s.mutations, func(m domain.StockMutation) bool {
				return m.ID == id
			})
		},
	})
}

func (b *batch) PutSettings(settings domain.StoreSettings) {
	b.ops = append(b.ops, batchOp{
		touched: store.CollectionSettings,
		apply:   func(s *Store) { s.settings = settings },
	})
}

func (b *batch) Commit(_ context.Context) error {
	if b.committed {
		return fmt.Errorf("%w: batch already committed", store.ErrCommitFailed)
	}
	b.committed = true

	touched := make(map[store.Collection]bool, 4)

	b.store.mu.Lock()
	for _, op := range b.ops {
		op.apply(b.store)
		touched[op.touched] = true
	}

	snapshots := make([]store.Snapshot, 0, len(touched))
	if touched[store.CollectionProducts] {
		snapshots = append(snapshots, store.Snapshot{Collection: store.CollectionProducts, Products: b.store.productsLocked()})
	}
	if touched[store.CollectionTransactions] {
		snapshots = append(snapshots, store.Snapshot{Collection: store.CollectionTransactions, Transactions: b.store.transactionsLocked()})
	}
	if touched[store.CollectionMutations] {
		snapshots = append(snapshots, store.Snapshot{Collection: store.CollectionMutations, Mutations: b.store.mutationsLocked()})
	}
	if touched[store.CollectionSettings] {
		settings := b.store.settings
		snapshots = append(snapshots, store.Snapshot{Collection: store.CollectionSettings, Settings: &settings})
	}
	b.store.mu.Unlock()

	for _, snapshot := range snapshots {
		b.store.hub.Broadcast(snapshot)
	}
	return nil
}
