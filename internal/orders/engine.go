package orders

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Deductor takes stock out of the inventory ledger. Deduct must be atomic and
// idempotent per Deduction.OrderID: a repeated call for an order that was
// already deducted reports true without touching stock again. ok is false when
// the ledger does not hold enough stock.
type Deductor interface {
	Deduct(ctx context.Context, d Deduction) (ok bool, err error)
}

// LocationPolicy picks the inventory location a shipment draws from.
type LocationPolicy func(o Order) string

// FixedLocation always ships from loc.
func FixedLocation(loc string) LocationPolicy {
	return func(Order) string { return loc }
}

// OrderLocation ships from the order's own location, or fallback when the order has none.
func OrderLocation(fallback string) LocationPolicy {
	return func(o Order) string {
		if l := strings.TrimSpace(o.Location); l != "" {
			return l
		}
		return fallback
	}
}

// Engine decides transitions. It holds no state between calls.
type Engine struct {
	Inventory Deductor
	Location  LocationPolicy
	Clock     func() time.Time
}

// Decide checks that action may run against o and performs the action's
// side effect. The returned Update carries exactly the fields the action sets.
// Nothing is returned when the precondition fails or the deduction is refused.
func (e *Engine) Decide(ctx context.Context, o Order, action Action, actorID, reason string) (Update, error) {
	if _, ok := transitions[action]; !ok {
		return nil, ErrInvalidAction
	}
	if !CanApply(o.Status, action) {
		return nil, &TransitionError{Current: o.Status, Action: action}
	}

	now := e.now()
	switch action {
	case ActionConfirm:
		return ConfirmUpdate{ConfirmedAt: now, ConfirmedBy: actorID}, nil
	case ActionShip:
		ok, err := e.Inventory.Deduct(ctx, Deduction{
			OrderID:     o.ID,
			Location:    e.location(o),
			ProductType: o.ProductType,
			Quantity:    o.Quantity,
		})
		if err != nil {
			return nil, fmt.Errorf("deduct inventory: %w", err)
		}
		if !ok {
			return nil, ErrInsufficientInventory
		}
		return ShipUpdate{ShippedAt: now}, nil
	case ActionComplete:
		return CompleteUpdate{CompletedAt: now}, nil
	case ActionCancel:
		r := strings.TrimSpace(reason)
		if r == "" {
			r = DefaultCancelReason
		}
		return CancelUpdate{CancelledAt: now, Reason: r}, nil
	}
	return nil, ErrInvalidAction
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock().UTC()
	}
	return time.Now().UTC()
}

func (e *Engine) location(o Order) string {
	if e.Location != nil {
		return e.Location(o)
	}
	return DefaultLocation
}

// DefaultLocation is the inventory location used when no policy is configured.
const DefaultLocation = "warehouse"
