package store

import (
	"context"
	"errors"

	"tokolite/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrCommitFailed = errors.New("atomic commit failed")
)

type Collection string

const (
	CollectionProducts     Collection = "products"
	CollectionTransactions Collection = "transactions"
	CollectionMutations    Collection = "mutations"
	CollectionSettings     Collection = "settings"
)

// Repository is the persistence boundary. List reads return ordered
// snapshots (products by name, transactions and mutations newest first),
// matching the ordering the subscription feed delivers.
//
// Individual writes commit independently; only a Batch spans records
// atomically. IncrementUsage is an atomic counter operation so concurrent
// sessions of the same restricted identity cannot lose updates.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	PutProduct(ctx context.Context, product domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
	SetProductStock(ctx context.Context, id string, stock int) error

	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	ListMutations(ctx context.Context) ([]domain.StockMutation, error)

	GetSettings(ctx context.Context) (domain.StoreSettings, error)
	PutSettings(ctx context.Context, settings domain.StoreSettings) error

	GetUsage(ctx context.Context, uid string) (int, error)
	IncrementUsage(ctx context.Context, uid string) (int, error)

	// Batch starts an atomic multi-document write. Queued operations are
	// applied all-or-nothing on Commit.
	Batch() Batch

	// Watch subscribes to ordered snapshots of a collection. The returned
	// subscription delivers the current snapshot immediately and a fresh
	// one after every committed write touching the collection.
	Watch(ctx context.Context, collection Collection) (*Subscription, error)
}

// Batch queues writes across collections and applies them atomically on
// Commit. A failed Commit leaves no partial state visible.
type Batch interface {
	PutProduct(product domain.Product)
	DeleteProduct(id string)
	SetProductStock(id string, stock int)
	PutTransaction(tx domain.Transaction)
	DeleteTransaction(id string)
	PutMutation(mutation domain.StockMutation)
	DeleteMutation(id string)
	PutSettings(settings domain.StoreSettings)
	Commit(ctx context.Context) error
}
