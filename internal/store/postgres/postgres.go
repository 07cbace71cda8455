package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"tokolite/backend/internal/domain"
	"tokolite/backend/internal/store"
)

// Store persists all collections in PostgreSQL. Watch subscriptions are
// served by an in-process hub notified after local commits; cross-process
// realtime push is the concern of an external sync layer, not this store.
type Store struct {
	db  *sql.DB
	hub *store.Hub
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, hub: store.NewHub()}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			sku TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			stock INTEGER NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			image TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			date TIMESTAMPTZ NOT NULL,
			subtotal DOUBLE PRECISION NOT NULL,
			tax_amount DOUBLE PRECISION NOT NULL,
			total DOUBLE PRECISION NOT NULL,
			payment_method TEXT NOT NULL,
			items JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stock_mutations (
			id TEXT PRIMARY KEY,
			date TIMESTAMPTZ NOT NULL,
			product_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			sku TEXT NOT NULL,
			type TEXT NOT NULL,
			amount INTEGER NOT NULL,
			note TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS store_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			data JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS usage_counters (
			uid TEXT PRIMARY KEY,
			count INTEGER NOT NULL DEFAULT 0
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, sku, price, stock, category, image
		FROM products
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.Stock, &p.Category, &p.Image); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, sku, price, stock, category, image
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.Stock, &p.Category, &p.Image)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) PutProduct(ctx context.Context, product domain.Product) error {
	if product.ID == "" {
		return store.ErrValidation
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, sku, price, stock, category, image)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE
		SET name = $2, sku = $3, price = $4, stock = $5, category = $6, image = $7
	`, product.ID, product.Name, product.SKU, product.Price, product.Stock, product.Category, product.Image)
	if err != nil {
		return err
	}

	s.broadcast(ctx, store.CollectionProducts)
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	s.broadcast(ctx, store.CollectionProducts)
	return nil
}

func (s *Store) SetProductStock(ctx context.Context, id string, stock int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE products SET stock = $2 WHERE id = $1`, id, stock)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	s.broadcast(ctx, store.CollectionProducts)
	return nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, subtotal, tax_amount, total, payment_method, items
		FROM transactions
		ORDER BY date DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, 128)
	for rows.Next() {
		var tx domain.Transaction
		var items []byte
		if err := rows.Scan(&tx.ID, &tx.Date, &tx.Subtotal, &tx.TaxAmount, &tx.Total, &tx.PaymentMethod, &items); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(items, &tx.Items); err != nil {
			return nil, err
		}
		tx.Date = tx.Date.UTC()
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (s *Store) ListMutations(ctx context.Context) ([]domain.StockMutation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, product_id, product_name, sku, type, amount, note
		FROM stock_mutations
		ORDER BY date DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mutations := make([]domain.StockMutation, 0, 256)
	for rows.Next() {
		var m domain.StockMutation
		if err := rows.Scan(&m.ID, &m.Date, &m.ProductID, &m.ProductName, &m.SKU, &m.Type, &m.Amount, &m.Note); err != nil {
			return nil, err
		}
		m.Date = m.Date.UTC()
		mutations = append(mutations, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return mutations, nil
}

func (s *Store) GetSettings(ctx context.Context) (domain.StoreSettings, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM store_settings WHERE id = 1`).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DefaultSettings(), nil
		}
		return domain.StoreSettings{}, err
	}

	var settings domain.StoreSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return domain.StoreSettings{}, err
	}
	return settings, nil
}

func (s *Store) PutSettings(ctx context.Context, settings domain.StoreSettings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO store_settings (id, data) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET data = $1
	`, payload)
	if err != nil {
		return err
	}

	s.broadcast(ctx, store.CollectionSettings)
	return nil
}

func (s *Store) GetUsage(ctx context.Context, uid string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count FROM usage_counters WHERE uid = $1`, uid).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// IncrementUsage is a single atomic upsert, so concurrent sessions of the
// same restricted identity cannot lose an increment.
func (s *Store) IncrementUsage(ctx context.Context, uid string) (int, error) {
	if uid == "" {
		return 0, store.ErrValidation
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO usage_counters (uid, count) VALUES ($1, 1)
		ON CONFLICT (uid) DO UPDATE SET count = usage_counters.count + 1
		RETURNING count
	`, uid).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) Batch() store.Batch {
	return &batch{store: s}
}

func (s *Store) Watch(ctx context.Context, collection store.Collection) (*store.Subscription, error) {
	initial, err := s.snapshot(ctx, collection)
	if err != nil {
		return nil, err
	}

	sub := s.hub.Subscribe(collection, initial)

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			sub.Unsubscribe()
		}()
	}

	return sub, nil
}

func (s *Store) snapshot(ctx context.Context, collection store.Collection) (store.Snapshot, error) {
	switch collection {
	case store.CollectionProducts:
		products, err := s.ListProducts(ctx)
		if err != nil {
			return store.Snapshot{}, err
		}
		return store.Snapshot{Collection: collection, Products: products}, nil
	case store.CollectionTransactions:
		transactions, err := s.ListTransactions(ctx)
		if err != nil {
			return store.Snapshot{}, err
		}
		return store.Snapshot{Collection: collection, Transactions: transactions}, nil
	case store.CollectionMutations:
		mutations, err := s.ListMutations(ctx)
		if err != nil {
			return store.Snapshot{}, err
		}
		return store.Snapshot{Collection: collection, Mutations: mutations}, nil
	case store.CollectionSettings:
		settings, err := s.GetSettings(ctx)
		if err != nil {
			return store.Snapshot{}, err
		}
		return store.Snapshot{Collection: collection, Settings: &settings}, nil
	default:
		return store.Snapshot{}, store.ErrValidation
	}
}

// broadcast re-reads a collection and fans the fresh snapshot out. Watch
// errors are not surfaced to the writer: the write already committed.
func (s *Store) broadcast(ctx context.Context, collection store.Collection) {
	snapshot, err := s.snapshot(ctx, collection)
	if err != nil {
		return
	}
	s.hub.Broadcast(snapshot)
}
