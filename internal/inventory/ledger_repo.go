package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/def-order-backend/internal/orders"
)

type LedgerRepo struct{ DB *pgxpool.Pool }

// Deduct records the deduction for the order and takes the stock in one
// transaction. The deduction row is keyed by order id, so a replay finds the
// existing row and reports success without touching stock. When stock is
// short nothing is committed.
func (r *LedgerRepo) Deduct(ctx context.Context, d orders.Deduction) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		INSERT INTO inventory_deductions(order_id, location, product_type, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO NOTHING
	`, d.OrderID, d.Location, d.ProductType, d.Quantity)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		return true, nil // already applied
	}

	ct, err = tx.Exec(ctx, `
		UPDATE inventory SET quantity = quantity - $3, updated_at = now()
		WHERE location = $1 AND product_type = $2 AND quantity >= $3
	`, d.Location, d.ProductType, d.Quantity)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() != 1 {
		return false, nil // rollback via defer
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Deducted reports whether a deduction is already recorded for the order.
func (r *LedgerRepo) Deducted(ctx context.Context, orderID string) (bool, error) {
	var n int
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_deductions WHERE order_id = $1`, orderID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Available returns the quantity on hand, zero when the ledger has no row.
func (r *LedgerRepo) Available(ctx context.Context, location, productType string) (int, error) {
	var q int
	err := r.DB.QueryRow(ctx, `
		SELECT quantity FROM inventory WHERE location = $1 AND product_type = $2
	`, location, productType).Scan(&q)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return q, err
}

// Restock sets the quantity on hand, creating the ledger row if needed.
func (r *LedgerRepo) Restock(ctx context.Context, location, productType string, quantity int) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO inventory(location, product_type, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (location, product_type) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()
	`, location, productType, quantity)
	return err
}
