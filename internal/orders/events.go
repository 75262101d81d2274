package orders

import (
	"encoding/json"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

const (
	EventOrderStatusChanged  = "OrderStatusChanged"
	EventInventoryDeducted   = "InventoryDeducted"
	EventInventoryRejected   = "InventoryRejected"
	EventNotificationCreated = "NotificationCreated"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the Event* constants
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "order-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually the order id
	Payload       json.RawMessage `json:"payload"`
}

// EventHeaders are the kafka headers every envelope is published with.
func EventHeaders(eventType string) []kafkago.Header {
	return []kafkago.Header{
		{Key: "x-event-type", Value: []byte(eventType)},
		{Key: "x-event-version", Value: []byte(strconv.Itoa(1))},
	}
}

type OrderStatusChangedPayload struct {
	OrderID        string `json:"order_id"`
	OrderNumber    string `json:"order_number"`
	UserID         string `json:"user_id"`
	Action         string `json:"action"`
	PreviousStatus string `json:"previous_status"`
	CurrentStatus  string `json:"current_status"`
	ActorID        string `json:"actor_id,omitempty"`
}

type InventoryDeductedPayload struct {
	OrderID     string `json:"order_id"`
	Location    string `json:"location"`
	ProductType string `json:"product_type"`
	Quantity    int    `json:"quantity"`
}

type InventoryRejectedPayload struct {
	OrderID     string `json:"order_id"`
	Location    string `json:"location"`
	ProductType string `json:"product_type"`
	Required    int    `json:"required"`
	Reason      string `json:"reason"` // OUT_OF_STOCK
}

// NotificationCreatedPayload asks the push worker to deliver a stored notification.
type NotificationCreatedPayload struct {
	UserIDs []string          `json:"user_ids"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data,omitempty"`
}
