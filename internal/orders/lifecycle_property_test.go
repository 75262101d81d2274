package orders_test

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ariefcatur/def-order-backend/internal/inventory"
	"github.com/ariefcatur/def-order-backend/internal/notify"
	"github.com/ariefcatur/def-order-backend/internal/orders"
)

// Property: for any action sequence, every accepted action follows the
// transition table, stock never goes negative, stock is taken at most once and
// only by ship, and each accepted action writes exactly one notification.
func TestLifecycleProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("random action sequences respect the lifecycle", prop.ForAll(
		func(steps []int, quantity, stock int) bool {
			ctx := context.Background()
			ledger := inventory.NewMemoryLedger()
			if err := ledger.Restock(ctx, orders.DefaultLocation, "box", stock); err != nil {
				return false
			}
			store := &memStore{orders: map[string]orders.Order{
				"o1": {ID: "o1", OrderNumber: "DEF-1", UserID: "u1", ProductType: "box", Quantity: quantity, Status: orders.StatusPending},
			}}
			rows := &memNotifications{}
			p := &orders.Processor{
				Store:    store,
				Engine:   &orders.Engine{Inventory: ledger},
				Notifier: &notify.Service{Store: rows},
			}

			accepted := 0
			shipped := false
			for _, i := range steps {
				a := orders.Actions[i]
				before := store.orders["o1"].Status
				_, err := p.Process(ctx, "admin", orders.Request{OrderID: "o1", Action: string(a)})
				after := store.orders["o1"].Status

				if err != nil {
					if after != before {
						return false
					}
					if !orders.CanApply(before, a) {
						continue
					}
					// The only legal refusal is ship without stock.
					if a != orders.ActionShip || stock >= quantity {
						return false
					}
					continue
				}
				want, _ := orders.Target(a)
				if !orders.CanApply(before, a) || after != want {
					return false
				}
				accepted++
				if a == orders.ActionShip {
					shipped = true
				}
			}

			left, _ := ledger.Available(ctx, orders.DefaultLocation, "box")
			if left < 0 {
				return false
			}
			if shipped && left != stock-quantity {
				return false
			}
			if !shipped && left != stock {
				return false
			}
			return len(rows.rows) == accepted
		},
		gen.SliceOf(gen.IntRange(0, len(orders.Actions)-1)),
		gen.IntRange(1, 20),
		gen.IntRange(0, 30),
	))

	properties.Property("replayed deductions take stock once", prop.ForAll(
		func(replays, quantity int) bool {
			ctx := context.Background()
			ledger := inventory.NewMemoryLedger()
			_ = ledger.Restock(ctx, "warehouse", "box", quantity)
			d := orders.Deduction{OrderID: "o1", Location: "warehouse", ProductType: "box", Quantity: quantity}
			for i := 0; i < replays; i++ {
				ok, err := ledger.Deduct(ctx, d)
				if err != nil || !ok {
					return false
				}
			}
			left, _ := ledger.Available(ctx, "warehouse", "box")
			return left == 0
		},
		gen.IntRange(1, 10),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}
