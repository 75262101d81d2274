package orders_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ariefcatur/def-order-backend/internal/inventory"
	"github.com/ariefcatur/def-order-backend/internal/notify"
	"github.com/ariefcatur/def-order-backend/internal/orders"
)

// memStore is an OrderStore with the same conditional-write contract as Repo.
type memStore struct {
	mu       sync.Mutex
	orders   map[string]orders.Order
	writeErr error
	// beforeWrite lets a test move the order underneath an in-flight update.
	beforeWrite func(o *orders.Order)
}

func (s *memStore) Get(_ context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

func (s *memStore) ApplyUpdate(_ context.Context, id string, from orders.Status, u orders.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	o := s.orders[id]
	if s.beforeWrite != nil {
		s.beforeWrite(&o)
	}
	if o.Status != from {
		return orders.ErrStaleStatus
	}
	s.orders[id] = u.Apply(o)
	return nil
}

type memNotifications struct {
	mu   sync.Mutex
	rows []notify.Notification
	err  error
}

func (m *memNotifications) InsertNotifications(_ context.Context, ns []notify.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, ns...)
	return nil
}

func (m *memNotifications) InsertDeliveryLog(context.Context, notify.DeliveryLog) error { return nil }

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []kafkago.Message
}

func (p *recordingPublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
}

type ProcessorSuite struct {
	suite.Suite

	store         *memStore
	ledger        *inventory.MemoryLedger
	notifications *memNotifications
	events        *recordingPublisher
	logs          *observer.ObservedLogs
	processor     *orders.Processor
}

func TestProcessorSuite(t *testing.T) {
	suite.Run(t, new(ProcessorSuite))
}

func (s *ProcessorSuite) SetupTest() {
	ctx := context.Background()
	s.store = &memStore{orders: map[string]orders.Order{}}
	s.ledger = inventory.NewMemoryLedger()
	s.notifications = &memNotifications{}
	s.events = &recordingPublisher{}

	core, logs := observer.New(zapcore.DebugLevel)
	s.logs = logs
	logger := zap.New(core)
	now := func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }

	require.NoError(s.T(), s.ledger.Restock(ctx, "warehouse", "box", 10))
	s.processor = &orders.Processor{
		Store: s.store,
		Engine: &orders.Engine{
			Inventory: &inventory.Service{Ledger: s.ledger, Logger: logger},
			Location:  orders.FixedLocation("warehouse"),
			Clock:     now,
		},
		Notifier: &notify.Service{
			Store:  s.notifications,
			Mode:   notify.PushOff,
			Logger: logger,
			Clock:  now,
		},
		Events:      s.events,
		ServiceName: "def-order-api",
		Logger:      logger,
	}
}

func (s *ProcessorSuite) seed(id string, st orders.Status, qty int) {
	s.store.orders[id] = orders.Order{
		ID:          id,
		OrderNumber: "DEF-" + id,
		UserID:      "dealer-" + id,
		ProductType: "box",
		Quantity:    qty,
		Status:      st,
	}
}

func (s *ProcessorSuite) available() int {
	n, err := s.ledger.Available(context.Background(), "warehouse", "box")
	s.Require().NoError(err)
	return n
}

func (s *ProcessorSuite) TestShipFromPendingIsInvalidTransition() {
	s.seed("o1", orders.StatusPending, 10)

	_, err := s.processor.Process(context.Background(), "admin", orders.Request{OrderID: "o1", Action: "ship"})

	s.ErrorIs(err, orders.ErrInvalidTransition)
	s.Equal(10, s.available())
	s.Equal(orders.StatusPending, s.store.orders["o1"].Status)
	s.Empty(s.notifications.rows)
}

func (s *ProcessorSuite) TestShipWithShortStockKeepsConfirmed() {
	ctx := context.Background()
	s.Require().NoError(s.ledger.Restock(ctx, "warehouse", "box", 5))
	s.seed("o1", orders.StatusConfirmed, 10)

	_, err := s.processor.Process(ctx, "admin", orders.Request{OrderID: "o1", Action: "ship"})

	s.ErrorIs(err, orders.ErrInsufficientInventory)
	s.Equal(5, s.available())
	s.Equal(orders.StatusConfirmed, s.store.orders["o1"].Status)
	s.Empty(s.notifications.rows)
	s.Empty(s.events.msgs)
}

func (s *ProcessorSuite) TestShipSucceeds() {
	s.seed("o1", orders.StatusConfirmed, 10)

	res, err := s.processor.Process(context.Background(), "admin", orders.Request{OrderID: "o1", Action: "ship"})

	s.Require().NoError(err)
	s.Equal("Order ship successful", res.Message)
	s.Equal(orders.StatusShipped, res.Order.Status)
	s.Require().NotNil(res.Order.ShippedAt)
	s.Equal(orders.StatusShipped, s.store.orders["o1"].Status)
	s.Equal(0, s.available())

	s.Require().Len(s.notifications.rows, 1)
	n := s.notifications.rows[0]
	s.Equal("배송 시작", n.Title)
	s.Equal("dealer-o1", n.UserID)
	s.Equal("o1", n.ReferenceID)
	s.Equal(notify.TypeOrderStatus, n.Type)
	s.Contains(n.Message, "DEF-o1")
}

func (s *ProcessorSuite) TestShipTwiceDeductsOnce() {
	ctx := context.Background()
	s.Require().NoError(s.ledger.Restock(ctx, "warehouse", "box", 25))
	s.seed("o1", orders.StatusConfirmed, 10)

	_, err := s.processor.Process(ctx, "admin", orders.Request{OrderID: "o1", Action: "ship"})
	s.Require().NoError(err)

	// A second ship sees the order already shipped and is refused without
	// reaching the ledger; a direct replay of the deduction is a no-op.
	_, err = s.processor.Process(ctx, "admin", orders.Request{OrderID: "o1", Action: "ship"})
	s.ErrorIs(err, orders.ErrInvalidTransition)

	ok, err := s.ledger.Deduct(ctx, orders.Deduction{OrderID: "o1", Location: "warehouse", ProductType: "box", Quantity: 10})
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(15, s.available())
}

func (s *ProcessorSuite) TestRetryAfterPersistenceFailureDoesNotDeductAgain() {
	ctx := context.Background()
	s.seed("o1", orders.StatusConfirmed, 4)
	s.store.writeErr = errors.New("connection reset")

	_, err := s.processor.Process(ctx, "admin", orders.Request{OrderID: "o1", Action: "ship"})
	s.ErrorIs(err, orders.ErrPersistence)
	s.Equal(6, s.available())
	s.Empty(s.notifications.rows)
	s.Equal(1, s.logs.FilterMessage("order update failed").Len())

	s.store.writeErr = nil
	_, err = s.processor.Process(ctx, "admin", orders.Request{OrderID: "o1", Action: "ship"})
	s.Require().NoError(err)
	s.Equal(6, s.available())
	s.Len(s.notifications.rows, 1)
}

func (s *ProcessorSuite) TestLostRaceIsInvalidTransition() {
	s.seed("o1", orders.StatusPending, 1)
	s.store.beforeWrite = func(o *orders.Order) { o.Status = orders.StatusCancelled }

	_, err := s.processor.Process(context.Background(), "admin", orders.Request{OrderID: "o1", Action: "confirm"})

	var te *orders.TransitionError
	s.Require().ErrorAs(err, &te)
	s.Equal(orders.ActionConfirm, te.Action)
	s.Empty(s.notifications.rows)
}

func (s *ProcessorSuite) TestCancelDefaultsReason() {
	s.seed("o1", orders.StatusShipped, 1)

	res, err := s.processor.Process(context.Background(), "admin", orders.Request{OrderID: "o1", Action: "cancel"})

	s.Require().NoError(err)
	s.Require().NotNil(res.Order.CancelledReason)
	s.Equal(orders.DefaultCancelReason, *res.Order.CancelledReason)
	s.Require().Len(s.notifications.rows, 1)
	s.Equal("주문 취소", s.notifications.rows[0].Title)
}

func (s *ProcessorSuite) TestCancelTerminalIsRefused() {
	s.seed("done", orders.StatusCompleted, 1)
	s.seed("gone", orders.StatusCancelled, 1)

	for _, id := range []string{"done", "gone"} {
		_, err := s.processor.Process(context.Background(), "admin", orders.Request{OrderID: id, Action: "cancel"})
		s.ErrorIs(err, orders.ErrInvalidTransition, id)
	}
	s.Empty(s.notifications.rows)
}

func (s *ProcessorSuite) TestConfirmRecordsActorAndPublishes() {
	s.seed("o1", orders.StatusPending, 1)

	res, err := s.processor.Process(context.Background(), "admin-7", orders.Request{OrderID: "o1", Action: "confirm"})

	s.Require().NoError(err)
	s.Require().NotNil(res.Order.ConfirmedBy)
	s.Equal("admin-7", *res.Order.ConfirmedBy)

	s.Require().Len(s.events.msgs, 1)
	var env orders.Envelope
	s.Require().NoError(json.Unmarshal(s.events.msgs[0].Value, &env))
	s.Equal(orders.EventOrderStatusChanged, env.EventType)
	s.Equal("def-order-api", env.Producer)
	var p orders.OrderStatusChangedPayload
	s.Require().NoError(json.Unmarshal(env.Payload, &p))
	s.Equal("pending", p.PreviousStatus)
	s.Equal("confirmed", p.CurrentStatus)
	s.Equal("admin-7", p.ActorID)
	s.Equal([]byte("o1"), s.events.msgs[0].Key)
}

func (s *ProcessorSuite) TestNotificationFailureDoesNotFailTransition() {
	s.seed("o1", orders.StatusPending, 1)
	s.notifications.err = errors.New("insert failed")

	res, err := s.processor.Process(context.Background(), "admin", orders.Request{OrderID: "o1", Action: "confirm"})

	s.Require().NoError(err)
	s.Equal(orders.StatusConfirmed, res.Order.Status)
	s.Equal(1, s.logs.FilterMessage("order notification failed").Len())
}

func (s *ProcessorSuite) TestRequestValidation() {
	ctx := context.Background()

	_, err := s.processor.Process(ctx, "admin", orders.Request{OrderID: "o1", Action: "refund"})
	s.ErrorIs(err, orders.ErrInvalidAction)

	_, err = s.processor.Process(ctx, "admin", orders.Request{OrderID: " ", Action: "confirm"})
	s.ErrorIs(err, orders.ErrNotFound)

	_, err = s.processor.Process(ctx, "admin", orders.Request{OrderID: "missing", Action: "confirm"})
	s.ErrorIs(err, orders.ErrNotFound)
}

func TestEachSuccessfulActionCreatesOneNotification(t *testing.T) {
	steps := []struct {
		action string
		title  string
	}{
		{"confirm", "주문 확정"},
		{"ship", "배송 시작"},
		{"complete", "배송 완료"},
	}

	ledger := inventory.NewMemoryLedger()
	require.NoError(t, ledger.Restock(context.Background(), "warehouse", "box", 3))
	store := &memStore{orders: map[string]orders.Order{
		"o1": {ID: "o1", OrderNumber: "DEF-1", UserID: "u1", ProductType: "box", Quantity: 3, Status: orders.StatusPending},
	}}
	rows := &memNotifications{}
	p := &orders.Processor{
		Store:    store,
		Engine:   &orders.Engine{Inventory: ledger},
		Notifier: &notify.Service{Store: rows},
	}

	for i, st := range steps {
		_, err := p.Process(context.Background(), "admin", orders.Request{OrderID: "o1", Action: st.action})
		require.NoError(t, err, st.action)
		require.Len(t, rows.rows, i+1)
		assert.Equal(t, st.title, rows.rows[i].Title)
	}
	assert.Equal(t, orders.StatusCompleted, store.orders["o1"].Status)
}
