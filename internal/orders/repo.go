package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const selectOrder = `
	SELECT o.id, o.order_number, o.user_id, o.product_type, o.quantity, o.status,
	       COALESCE(o.location, ''), o.confirmed_at, o.confirmed_by, o.shipped_at,
	       o.completed_at, o.cancelled_at, o.cancelled_reason, o.created_at, o.updated_at,
	       p.business_name, p.phone
	FROM orders o
	LEFT JOIN profiles p ON p.id = o.user_id`

func (r *Repo) Get(ctx context.Context, orderID string) (Order, error) {
	var (
		o            Order
		status       string
		businessName *string
		phone        *string
	)
	err := r.DB.QueryRow(ctx, selectOrder+` WHERE o.id = $1`, orderID).Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.ProductType, &o.Quantity, &status,
		&o.Location, &o.ConfirmedAt, &o.ConfirmedBy, &o.ShippedAt,
		&o.CompletedAt, &o.CancelledAt, &o.CancelledReason, &o.CreatedAt, &o.UpdatedAt,
		&businessName, &phone,
	)
	if err != nil {
		if isMissing(err) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	o.Status = Status(status)
	if businessName != nil || phone != nil {
		o.Profile = &OwnerProfile{BusinessName: deref(businessName), Phone: deref(phone)}
	}
	return o, nil
}

// ApplyUpdate writes u conditioned on the order still being in status from, so
// two concurrent transitions of one order cannot both apply.
func (r *Repo) ApplyUpdate(ctx context.Context, orderID string, from Status, u Update) error {
	var (
		ct  pgconn.CommandTag
		err error
	)
	switch v := u.(type) {
	case ConfirmUpdate:
		ct, err = r.DB.Exec(ctx, `
			UPDATE orders SET status = $3, confirmed_at = $4, confirmed_by = $5, updated_at = $4
			WHERE id = $1 AND status = $2`,
			orderID, string(from), string(v.Status()), v.ConfirmedAt, v.ConfirmedBy)
	case ShipUpdate:
		ct, err = r.DB.Exec(ctx, `
			UPDATE orders SET status = $3, shipped_at = $4, updated_at = $4
			WHERE id = $1 AND status = $2`,
			orderID, string(from), string(v.Status()), v.ShippedAt)
	case CompleteUpdate:
		ct, err = r.DB.Exec(ctx, `
			UPDATE orders SET status = $3, completed_at = $4, updated_at = $4
			WHERE id = $1 AND status = $2`,
			orderID, string(from), string(v.Status()), v.CompletedAt)
	case CancelUpdate:
		ct, err = r.DB.Exec(ctx, `
			UPDATE orders SET status = $3, cancelled_at = $4, cancelled_reason = $5, updated_at = $4
			WHERE id = $1 AND status = $2`,
			orderID, string(from), string(v.Status()), v.CancelledAt, v.Reason)
	default:
		return fmt.Errorf("unsupported order update %T", u)
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrStaleStatus
	}
	return nil
}

func (r *Repo) GetOrderStatus(ctx context.Context, orderID string) (Status, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&s)
	if err != nil {
		if isMissing(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return Status(s), nil
}

// isMissing reports no row, or an id that is not a valid uuid and so can never
// match one.
func isMissing(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// Create inserts a pending order. It is idempotent on order_number: an existing
// order with the same number is returned with existed=true.
func (r *Repo) Create(ctx context.Context, o Order) (created Order, existed bool, err error) {
	var id string
	err = r.DB.QueryRow(ctx, `SELECT id FROM orders WHERE order_number = $1`, o.OrderNumber).Scan(&id)
	if err == nil {
		created, err = r.Get(ctx, id)
		return created, true, err
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Order{}, false, err
	}

	if o.Quantity <= 0 {
		return Order{}, false, fmt.Errorf("invalid quantity %d for order %s", o.Quantity, o.OrderNumber)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	_, err = r.DB.Exec(ctx, `
		INSERT INTO orders(id, order_number, user_id, product_type, quantity, status, location)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
	`, o.ID, o.OrderNumber, o.UserID, o.ProductType, o.Quantity, string(StatusPending), o.Location)
	if err != nil {
		return Order{}, false, err
	}
	created, err = r.Get(ctx, o.ID)
	return created, false, err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
