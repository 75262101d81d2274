package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/def-order-backend/internal/kafka"
)

// OrderStore loads orders and persists transition updates.
type OrderStore interface {
	Get(ctx context.Context, orderID string) (Order, error)
	// ApplyUpdate writes u only if the order is still in status from.
	// It returns ErrStaleStatus when the condition no longer holds.
	ApplyUpdate(ctx context.Context, orderID string, from Status, u Update) error
}

// Notifier records the notification for a committed transition.
type Notifier interface {
	NotifyTransition(ctx context.Context, o Order, a Action) error
}

// StatusCache holds the latest status of an order for fast reads.
type StatusCache interface {
	SetStatus(ctx context.Context, orderID string, s Status) error
}

// Publisher hands an encoded event to the message bus.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Request struct {
	OrderID string `json:"orderId"`
	Action  string `json:"action"`
	Reason  string `json:"reason,omitempty"`
}

type Result struct {
	Message string `json:"message"`
	Order   Order  `json:"order"`
}

// Processor runs one order action end to end: decide, persist, notify.
// Notifier, Cache and Events are optional.
type Processor struct {
	Store       OrderStore
	Engine      *Engine
	Notifier    Notifier
	Cache       StatusCache
	Events      Publisher
	ServiceName string
	Logger      *zap.Logger
}

func (p *Processor) Process(ctx context.Context, actorID string, req Request) (Result, error) {
	action, err := ParseAction(req.Action)
	if err != nil {
		return Result{}, err
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return Result{}, ErrNotFound
	}

	o, err := p.Store.Get(ctx, orderID)
	if err != nil {
		return Result{}, err
	}

	u, err := p.Engine.Decide(ctx, o, action, actorID, req.Reason)
	if err != nil {
		return Result{}, err
	}

	if err := p.Store.ApplyUpdate(ctx, o.ID, o.Status, u); err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return Result{}, &TransitionError{Current: o.Status, Action: action}
		}
		p.logger().Error("order update failed",
			zap.String("order_id", o.ID),
			zap.String("action", string(action)),
			zap.Bool("inventory_deducted", action == ActionShip),
			zap.Error(err))
		return Result{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	updated := u.Apply(o)
	p.afterCommit(ctx, o.Status, updated, action, actorID)

	return Result{
		Message: fmt.Sprintf("Order %s successful", action),
		Order:   updated,
	}, nil
}

// afterCommit runs the bookkeeping that follows a committed transition.
// None of it can undo the transition, so failures are logged only.
func (p *Processor) afterCommit(ctx context.Context, prev Status, o Order, a Action, actorID string) {
	log := p.logger().With(zap.String("order_id", o.ID), zap.String("action", string(a)))

	if p.Notifier != nil {
		if err := p.Notifier.NotifyTransition(ctx, o, a); err != nil {
			log.Error("order notification failed", zap.Error(err))
		}
	}
	if p.Cache != nil {
		if err := p.Cache.SetStatus(ctx, o.ID, o.Status); err != nil {
			log.Warn("order status cache write failed", zap.Error(err))
		}
	}
	if p.Events != nil {
		ev := Envelope{
			EventID:       uuid.NewString(),
			EventType:     EventOrderStatusChanged,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      p.ServiceName,
			CorrelationID: o.ID,
			Payload: kafkax.MustMarshal(OrderStatusChangedPayload{
				OrderID:        o.ID,
				OrderNumber:    o.OrderNumber,
				UserID:         o.UserID,
				Action:         string(a),
				PreviousStatus: string(prev),
				CurrentStatus:  string(o.Status),
				ActorID:        actorID,
			}),
		}
		p.Events.Publish(PartitionKey(o.ID), kafkax.MustMarshal(ev), EventHeaders(EventOrderStatusChanged)...)
	}
	log.Info("order transitioned", zap.String("from", string(prev)), zap.String("to", string(o.Status)))
}

func (p *Processor) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
