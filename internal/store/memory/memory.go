package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"tokolite/backend/internal/domain"
	"tokolite/backend/internal/store"
	"tokolite/backend/internal/xid"
)

// Store is the in-memory Repository used by tests and by the server when
// no DATABASE_URL is configured. All collections live behind one RWMutex;
// a Batch applies its queued writes while holding the write lock, so batch
// commits are atomic with respect to every reader and writer.
type Store struct {
	mu            sync.RWMutex
	products      map[string]domain.Product
	transactions  map[string]domain.Transaction
	mutations     []domain.StockMutation
	settings      domain.StoreSettings
	usageCounters map[string]int
	hub           *store.Hub
}

func New() *Store {
	return &Store{
		products:      make(map[string]domain.Product),
		transactions:  make(map[string]domain.Transaction),
		mutations:     make([]domain.StockMutation, 0, 128),
		settings:      domain.DefaultSettings(),
		usageCounters: make(map[string]int),
		hub:           store.NewHub(),
	}
}

// NewSeeded returns a store preloaded with a small demo catalog. Each
// seeded product carries a matching NEW ledger entry so the ledger
// invariant holds from the first read.
func NewSeeded() *Store {
	s := New()

	seed := []domain.Product{
		{ID: xid.New("PRD"), Name: "Beras Premium 5kg", SKU: "TKL-BERAS-01", Price: 78000, Stock: 40, Category: "grocery"},
		{ID: xid.New("PRD"), Name: "Gula Pasir 1kg", SKU: "TKL-GULA-01", Price: 17500, Stock: 60, Category: "grocery"},
		{ID: xid.New("PRD"), Name: "Kopi Bubuk 200g", SKU: "TKL-KOPI-01", Price: 24000, Stock: 35, Category: "beverage"},
		{ID: xid.New("PRD"), Name: "Minyak Goreng 2L", SKU: "TKL-MINYAK-01", Price: 38500, Stock: 25, Category: "grocery"},
		{ID: xid.New("PRD"), Name: "Sabun Cuci 800g", SKU: "TKL-SABUN-01", Price: 14500, Stock: 50, Category: "household"},
	}

	for _, p := range seed {
		s.products[p.ID] = p
		s.mutations = append(s.mutations, domain.StockMutation{
			ID:          xid.New("LOG"),
			Date:        time.Now().UTC(),
			ProductID:   p.ID,
			ProductName: p.Name,
			SKU:         p.SKU,
			Type:        domain.MutationNew,
			Amount:      p.Stock,
			Note:        "seed catalog",
		})
	}

	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.productsLocked(), nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := product
	return &copied, nil
}

func (s *Store) PutProduct(_ context.Context, product domain.Product) error {
	if product.ID == "" {
		return store.ErrValidation
	}

	s.mu.Lock()
	s.products[product.ID] = product
	snapshot := s.productsLocked()
	s.mu.Unlock()

	s.hub.Broadcast(store.Snapshot{Collection: store.CollectionProducts, Products: snapshot})
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	if _, exists := s.products[id]; !exists {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.products, id)
	snapshot := s.productsLocked()
	s.mu.Unlock()

	s.hub.Broadcast(store.Snapshot{Collection: store.CollectionProducts, Products: snapshot})
	return nil
}

func (s *Store) SetProductStock(_ context.Context, id string, stock int) error {
	s.mu.Lock()
	product, exists := s.products[id]
	if !exists {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	product.Stock = stock
	s.products[id] = product
	snapshot := s.productsLocked()
	s.mu.Unlock()

	s.hub.Broadcast(store.Snapshot{Collection: store.CollectionProducts, Products: snapshot})
	return nil
}

func (s *Store) ListTransactions(_ context.Context) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactionsLocked(), nil
}

func (s *Store) ListMutations(_ context.Context) ([]domain.StockMutation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mutationsLocked(), nil
}

func (s *Store) GetSettings(_ context.Context) (domain.StoreSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *Store) PutSettings(_ context.Context, settings domain.StoreSettings) error {
	s.mu.Lock()
	s.settings = settings
	copied := settings
	s.mu.Unlock()

	s.hub.Broadcast(store.Snapshot{Collection: store.CollectionSettings, Settings: &copied})
	return nil
}

func (s *Store) GetUsage(_ context.Context, uid string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usageCounters[uid], nil
}

func (s *Store) IncrementUsage(_ context.Context, uid string) (int, error) {
	if uid == "" {
		return 0, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.usageCounters[uid]++
	return s.usageCounters[uid], nil
}

func (s *Store) Batch() store.Batch {
	return &batch{store: s}
}

func (s *Store) Watch(ctx context.Context, collection store.Collection) (*store.Subscription, error) {
	var initial store.Snapshot

	s.mu.RLock()
	switch collection {
	case store.CollectionProducts:
		initial = store.Snapshot{Collection: collection, Products: s.productsLocked()}
	case store.CollectionTransactions:
		initial = store.Snapshot{Collection: collection, Transactions: s.transactionsLocked()}
	case store.CollectionMutations:
		initial = store.Snapshot{Collection: collection, Mutations: s.mutationsLocked()}
	case store.CollectionSettings:
		settings := s.settings
		initial = store.Snapshot{Collection: collection, Settings: &settings}
	default:
		s.mu.RUnlock()
		return nil, store.ErrValidation
	}
	// Register while the read lock is still held so no write can slip in
	// between the snapshot and the subscription.
	sub := s.hub.Subscribe(collection, initial)
	s.mu.RUnlock()

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			sub.Unsubscribe()
		}()
	}

	return sub, nil
}

// Snapshot builders. Callers must hold at least the read lock.

func (s *Store) productsLocked() []domain.Product {
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Name == b.Name {
			return strings.Compare(a.ID, b.ID)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return products
}

func (s *Store) transactionsLocked() []domain.Transaction {
	transactions := make([]domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		transactions = append(transactions, tx)
	}
	slices.SortFunc(transactions, func(a, b domain.Transaction) int {
		if a.Date.Equal(b.Date) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})
	return transactions
}

func (s *Store) mutationsLocked() []domain.StockMutation {
	mutations := make([]domain.StockMutation, len(s.mutations))
	copy(mutations, s.mutations)
	slices.SortFunc(mutations, func(a, b domain.StockMutation) int {
		if a.Date.Equal(b.Date) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})
	return mutations
}
