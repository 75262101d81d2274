package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/def-order-backend/internal/kafka"
	"github.com/ariefcatur/def-order-backend/internal/orders"
	"github.com/ariefcatur/def-order-backend/internal/redisx"
)

// Dedup remembers keys for a while. Redis backs it in production.
type Dedup interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

// Service fronts the ledger: a Redis marker short-circuits replays of
// deductions already applied, and every outcome is published as an event.
// The ledger remains the source of truth; Dedup, the producers and Logger are optional.
type Service struct {
	Ledger         orders.Deductor
	Dedup          Dedup
	ProducerOK     orders.Publisher // publish inventory.deducted
	ProducerReject orders.Publisher // publish inventory.rejected
	ServiceName    string
	Logger         *zap.Logger
}

func (s *Service) Deduct(ctx context.Context, d orders.Deduction) (bool, error) {
	dkey := fmt.Sprintf(redisx.KeyDedup, "inventory", d.OrderID)
	if s.Dedup != nil {
		if seen, err := s.Dedup.Seen(ctx, dkey); err == nil && seen {
			return true, nil
		}
	}

	ok, err := s.Ledger.Deduct(ctx, d)
	if err != nil {
		return false, err
	}
	if !ok {
		s.logger().Info("inventory deduction refused",
			zap.String("order_id", d.OrderID),
			zap.String("location", d.Location),
			zap.String("product_type", d.ProductType),
			zap.Int("quantity", d.Quantity))
		s.publishRejected(d)
		return false, nil
	}

	if s.Dedup != nil {
		if err := s.Dedup.Mark(ctx, dkey, redisx.TTLDedup); err != nil {
			s.logger().Warn("inventory dedup mark failed", zap.String("order_id", d.OrderID), zap.Error(err))
		}
	}
	s.publishDeducted(d)
	return true, nil
}

func (s *Service) publishDeducted(d orders.Deduction) {
	if s.ProducerOK == nil {
		return
	}
	ev := s.envelope(orders.EventInventoryDeducted, d.OrderID, orders.InventoryDeductedPayload{
		OrderID:     d.OrderID,
		Location:    d.Location,
		ProductType: d.ProductType,
		Quantity:    d.Quantity,
	})
	s.ProducerOK.Publish(orders.PartitionKey(d.OrderID), kafkax.MustMarshal(ev), orders.EventHeaders(orders.EventInventoryDeducted)...)
}

func (s *Service) publishRejected(d orders.Deduction) {
	if s.ProducerReject == nil {
		return
	}
	ev := s.envelope(orders.EventInventoryRejected, d.OrderID, orders.InventoryRejectedPayload{
		OrderID:     d.OrderID,
		Location:    d.Location,
		ProductType: d.ProductType,
		Required:    d.Quantity,
		Reason:      "OUT_OF_STOCK",
	})
	s.ProducerReject.Publish(orders.PartitionKey(d.OrderID), kafkax.MustMarshal(ev), orders.EventHeaders(orders.EventInventoryRejected)...)
}

func (s *Service) envelope(eventType, orderID string, payload any) orders.Envelope {
	return orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
