package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/def-order-backend/internal/kafka"
	"github.com/ariefcatur/def-order-backend/internal/orders"
	"github.com/ariefcatur/def-order-backend/internal/redisx"
)

var (
	// ErrNoTargetSpecified means no user id, user list or topic resolved to a recipient.
	ErrNoTargetSpecified = errors.New("no target users specified")
	// ErrDelivery wraps push provider failures.
	ErrDelivery = errors.New("push delivery failed")
	// ErrPersistence wraps notification store failures.
	ErrPersistence = errors.New("failed to create notifications")
)

// PushMode selects how stored notifications reach devices.
type PushMode string

const (
	PushOff    PushMode = "off"
	PushInline PushMode = "inline"
	PushKafka  PushMode = "kafka"
)

// Device is a registered push token.
type Device struct {
	UserID   string
	Token    string
	Platform string
}

// DeliveryResult is the provider's answer for one push fan-out.
type DeliveryResult struct {
	SuccessCount int           `json:"success"`
	FailureCount int           `json:"failure"`
	Results      []TokenResult `json:"results,omitempty"`
	// Error is the provider error that cut the fan-out short, if any.
	Error string `json:"error,omitempty"`
}

type TokenResult struct {
	Token     string `json:"token"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DeliveryLog is one row of notification_logs.
type DeliveryLog struct {
	UserID  string
	UserIDs []string
	Topics  []string
	Title   string
	Body    string
	Data    map[string]string
	Result  DeliveryResult
}

type Store interface {
	InsertNotifications(ctx context.Context, ns []Notification) error
	InsertDeliveryLog(ctx context.Context, l DeliveryLog) error
}

type Directory interface {
	// UsersForTopic returns the ids of users selected by a topic.
	UsersForTopic(ctx context.Context, topic string) ([]string, error)
	// DeviceTokens returns every device registered to any of the users.
	DeviceTokens(ctx context.Context, userIDs []string) ([]Device, error)
}

// Sender delivers one message to a set of device tokens.
type Sender interface {
	Send(ctx context.Context, tokens []string, m Message) (DeliveryResult, error)
}

// Dedup guards the push worker against replayed events.
type Dedup interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type Service struct {
	Store       Store
	Directory   Directory
	Sender      Sender
	Mode        PushMode
	Events      orders.Publisher
	Dedup       Dedup
	ServiceName string
	Logger      *zap.Logger
	Clock       func() time.Time
}

// NotifyTransition stores the owner's notification for a committed order
// transition and hands it to push delivery according to Mode.
func (s *Service) NotifyTransition(ctx context.Context, o orders.Order, a orders.Action) error {
	n, err := ForTransition(o, a, s.now())
	if err != nil {
		return err
	}
	if err := s.Store.InsertNotifications(ctx, []Notification{n}); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.dispatch(ctx, []string{o.UserID}, Message{
		Title: n.Title,
		Body:  n.Message,
		Data: map[string]string{
			"type":          TypeOrderStatus,
			"referenceId":   o.ID,
			"referenceType": ReferenceOrder,
			"status":        string(o.Status),
		},
		Priority: PriorityHigh,
	})
	return nil
}

// NotificationRequest is the fan-out input of the send-notification endpoint.
type NotificationRequest struct {
	Target  Target
	Title   string
	Message string
	Type    string
	Data    map[string]any
}

// SendToUsers stores one notification per resolved recipient and dispatches
// push delivery for all of them. It returns the recipient count.
func (s *Service) SendToUsers(ctx context.Context, req NotificationRequest) (int, error) {
	if req.Target.Empty() {
		return 0, ErrNoTargetSpecified
	}
	recipients, err := s.resolve(ctx, req.Target)
	if err != nil {
		return 0, err
	}
	if len(recipients) == 0 {
		return 0, ErrNoTargetSpecified
	}

	typ := strings.TrimSpace(req.Type)
	if typ == "" {
		typ = TypeAnnouncement
	}
	refID, _ := req.Data["referenceId"].(string)
	refType, _ := req.Data["referenceType"].(string)
	now := s.now()

	ns := make([]Notification, 0, len(recipients))
	for _, uid := range recipients {
		ns = append(ns, Notification{
			UserID:        uid,
			Type:          typ,
			Title:         req.Title,
			Message:       req.Message,
			ReferenceID:   refID,
			ReferenceType: refType,
			CreatedAt:     now,
		})
	}
	if err := s.Store.InsertNotifications(ctx, ns); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	data := StringData(req.Data)
	if data == nil {
		data = map[string]string{}
	}
	data["type"] = typ
	s.dispatch(ctx, recipients, Message{
		Title:    req.Title,
		Body:     req.Message,
		Data:     data,
		Priority: PriorityHigh,
	})
	return len(recipients), nil
}

// PushRequest is the input of the send-push-notification endpoint.
type PushRequest struct {
	Target    Target
	Title     string
	Body      string
	Data      map[string]any
	Priority  string
	ChannelID string
}

type PushResult struct {
	SentCount      int             `json:"sentCount"`
	ProviderResult *DeliveryResult `json:"providerResult,omitempty"`
}

// Push delivers directly to devices without storing notifications. A provider
// failure is returned wrapped in ErrDelivery; no resolvable token is success
// with SentCount zero.
func (s *Service) Push(ctx context.Context, req PushRequest) (PushResult, error) {
	if req.Target.Empty() {
		return PushResult{}, ErrNoTargetSpecified
	}
	priority := req.Priority
	if priority != PriorityHigh {
		priority = PriorityNormal
	}
	return s.deliver(ctx, req.Target, Message{
		Title:     req.Title,
		Body:      req.Body,
		Data:      StringData(req.Data),
		Priority:  priority,
		ChannelID: req.ChannelID,
	})
}

// HandleNotificationCreated is the push worker's consumer handler. Delivery is
// best-effort: provider failures are logged and the offset is committed.
func (s *Service) HandleNotificationCreated(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventNotificationCreated {
		return nil
	}

	if s.Dedup != nil {
		first, err := s.Dedup.Claim(ctx, fmt.Sprintf(redisx.KeyDedup, "push", env.EventID), redisx.TTLDedup)
		if err == nil && !first {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.NotificationCreatedPayload](env.Payload)
	if err != nil {
		return err
	}
	if _, err := s.deliver(ctx, Target{UserIDs: p.UserIDs}, Message{
		Title:    p.Title,
		Body:     p.Body,
		Data:     p.Data,
		Priority: PriorityHigh,
	}); err != nil {
		s.logger().Warn("push delivery failed", zap.String("event_id", env.EventID), zap.Error(err))
	}
	return nil
}

// dispatch forwards a stored notification to push delivery. Nothing here can
// fail the caller.
func (s *Service) dispatch(ctx context.Context, userIDs []string, m Message) {
	switch s.Mode {
	case PushInline:
		if _, err := s.deliver(ctx, Target{UserIDs: userIDs}, m); err != nil {
			s.logger().Warn("push delivery failed", zap.Strings("user_ids", userIDs), zap.Error(err))
		}
	case PushKafka:
		if s.Events == nil {
			return
		}
		ev := orders.Envelope{
			EventID:      uuid.NewString(),
			EventType:    orders.EventNotificationCreated,
			EventVersion: 1,
			OccurredAt:   s.now(),
			Producer:     s.ServiceName,
			Payload: kafkax.MustMarshal(orders.NotificationCreatedPayload{
				UserIDs: userIDs,
				Title:   m.Title,
				Body:    m.Body,
				Data:    m.Data,
			}),
		}
		key := ""
		if len(userIDs) > 0 {
			key = userIDs[0]
		}
		s.Events.Publish([]byte(key), kafkax.MustMarshal(ev), orders.EventHeaders(orders.EventNotificationCreated)...)
	}
}

func (s *Service) deliver(ctx context.Context, target Target, m Message) (PushResult, error) {
	recipients, err := s.resolve(ctx, target)
	if err != nil {
		return PushResult{}, err
	}
	if len(recipients) == 0 {
		return PushResult{}, nil
	}
	devices, err := s.Directory.DeviceTokens(ctx, recipients)
	if err != nil {
		return PushResult{}, fmt.Errorf("load device tokens: %w", err)
	}
	tokens := uniqueTokens(devices)
	if len(tokens) == 0 {
		return PushResult{}, nil
	}
	if s.Sender == nil {
		return PushResult{}, fmt.Errorf("%w: sender not configured", ErrDelivery)
	}

	res, sendErr := s.Sender.Send(ctx, tokens, m)
	if sendErr != nil {
		// Tokens the provider never acknowledged count as failed.
		res.FailureCount = len(tokens) - res.SuccessCount
		res.Error = sendErr.Error()
	}
	s.writeDeliveryLog(ctx, target, m, res)
	if sendErr != nil {
		return PushResult{}, fmt.Errorf("%w: %v", ErrDelivery, sendErr)
	}

	s.logger().Info("push delivered",
		zap.Int("tokens", len(tokens)),
		zap.Int("success", res.SuccessCount),
		zap.Int("failure", res.FailureCount))
	return PushResult{SentCount: len(tokens), ProviderResult: &res}, nil
}

func (s *Service) writeDeliveryLog(ctx context.Context, target Target, m Message, res DeliveryResult) {
	log := DeliveryLog{
		UserID:  target.UserID,
		UserIDs: target.UserIDs,
		Topics:  target.Topics,
		Title:   m.Title,
		Body:    m.Body,
		Data:    m.Data,
		Result:  res,
	}
	if err := s.Store.InsertDeliveryLog(ctx, log); err != nil {
		s.logger().Warn("delivery log write failed", zap.Error(err))
	}
}

// resolve expands a target into distinct user ids, keeping first-seen order.
func (s *Service) resolve(ctx context.Context, t Target) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	add(t.UserID)
	for _, id := range t.UserIDs {
		add(id)
	}
	for _, topic := range t.Topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		ids, err := s.Directory.UsersForTopic(ctx, topic)
		if err != nil {
			return nil, fmt.Errorf("resolve topic %q: %w", topic, err)
		}
		if len(ids) == 0 {
			s.logger().Info("topic resolved to no users", zap.String("topic", topic))
		}
		for _, id := range ids {
			add(id)
		}
	}
	return out, nil
}

func uniqueTokens(devices []Device) []string {
	seen := make(map[string]struct{}, len(devices))
	out := make([]string, 0, len(devices))
	for _, d := range devices {
		tok := strings.TrimSpace(d.Token)
		if tok == "" {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
