package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"tokolite/backend/internal/domain"
	"tokolite/backend/internal/store"
)

// batch buffers writes and applies them in one serializable transaction.
type batch struct {
	store     *Store
	ops       []batchOp
	committed bool
}

type batchOp struct {
	apply   func(ctx context.Context, tx *sql.Tx) error
	touched store.Collection
}

func (b *batch) PutProduct(product domain.Product) {
	b.ops = append(b.ops, batchOp{
		touched: store.CollectionProducts,
		apply: func(ctx context.Context, tx *sql.Tx) error {
			if product.ID == "" {
				return store.ErrValidation
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO products (id, name, sku, price, stock, category, image)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
				ON CONFLICT (id) DO UPDATE
				SET name = $2, sku = $3, price = $4, stock = $5, category = $6, image = $7
			`, product.ID, product.Name, product.SKU, product.Price, product.Stock, product.Category, product.Image)
			return err
		},
	})
}

func (b *batch) DeleteProduct(id string) {
	b.ops = append(b.ops, batchOp{
		touched: store.CollectionProducts,
		apply: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
			return err
		},
	})
}

func (b *batch) SetProductStock(id string, stock int) {
	b.ops = append(b.ops, batchOp{
		touched: store.CollectionProducts,
		apply: func(ctx context.Context, tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, `UPDATE products SET stock = $2 WHERE id = $1`, id, stock)
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
			return nil
		},
	})
}

func (b *batch) PutTransaction(transaction domain.Transaction) {
	b.ops = append(b.ops, batchOp{
		touched: store.CollectionTransactions,
		apply: func(ctx context.Context, tx *sql.Tx) error {
			if transaction.ID == "" {
				return store.ErrValidation
			}
			items, err := json.Marshal(transaction.Items)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO transactions (id, date, subtotal, tax_amount, total, payment_method, items)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
				ON CONFLICT (id) DO UPDATE
				SET date = $2, subtotal = $3, tax_amount = $4, total = $5, payment_method = $6, items = $7
			`, transaction.ID, transaction.Date, transaction.Subtotal, transaction.TaxAmount, transaction.Total, transaction.PaymentMethod, items)
			return err
		},
	})
}

func (b *batch) DeleteTransaction(id string) {
	b.ops = append(b.ops, batchOp{
		touched: store.CollectionTransactions,
		apply: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
			return err
		},
	})
}

func (b *batch) PutMutation(mutation domain.StockMutation) {
	b.ops = append(b.ops, batchOp{
		touched: store.CollectionMutations,
		apply: func(ctx context.Context, tx *sql.Tx) error {
			if mutation.ID == "" || mutation.ProductID == "" {
				return store.ErrValidation
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO stock_mutations (id, date, product_id, product_name, sku, type, amount, note)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
				ON CONFLICT (id) DO UPDATE
				SET date = $2, product_id = $3, product_name = $4, sku = $5, type = $6, amount = $7, note = $8
			`, mutation.ID, mutation.Date, mutation.ProductID, mutation.ProductName, mutation.SKU, mutation.Type, mutation.Amount, mutation.Note)
			return err
		},
	})
}

func (b *batch) DeleteMutation(id string) {
	b.ops = append(b.ops, batchOp{
		touched: store.CollectionMutations,
		apply: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `DELETE FROM stock_mutations WHERE id = $1`, id)
			return err
		},
	})
}

func (b *batch) PutSettings(settings domain.StoreSettings) {
	b.ops = append(b.ops, batchOp{
		touched: store.CollectionSettings,
		apply: func(ctx context.Context, tx *sql.Tx) error {
			payload, err := json.Marshal(settings)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO store_settings (id, data) VALUES (1, $1)
				ON CONFLICT (id) DO UPDATE SET data = $1
			`, payload)
			return err
		},
	})
}

func (b *batch) Commit(ctx context.Context) error {
	if b.committed {
		return fmt.Errorf("%w: batch already committed", store.ErrCommitFailed)
	}
	b.committed = true

	if len(b.ops) == 0 {
		return nil
	}

	tx, err := b.store.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrCommitFailed, err)
	}

	for _, op := range b.ops {
		if err := op.apply(ctx, tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: %v", store.ErrCommitFailed, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrCommitFailed, err)
	}

	seen := map[store.Collection]bool{}
	for _, op := range b.ops {
		if seen[op.touched] {
			continue
		}
		seen[op.touched] = true
		b.store.broadcast(ctx, op.touched)
	}
	return nil
}
