package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/def-order-backend/internal/orders"
)

const (
	TypeOrderStatus  = "order_status"
	TypeAnnouncement = "announcement"
	TypeSystem       = "system"

	ReferenceOrder = "order"
)

// Notification is one row of the notifications table. Rows are never updated.
type Notification struct {
	UserID        string    `json:"user_id"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	ReferenceID   string    `json:"reference_id,omitempty"`
	ReferenceType string    `json:"reference_type,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type template struct {
	title   string
	message string // %s is the order number
}

var transitionTemplates = map[orders.Action]template{
	orders.ActionConfirm:  {title: "주문 확정", message: "주문번호 %s이(가) 확정되었습니다."},
	orders.ActionShip:     {title: "배송 시작", message: "주문번호 %s의 배송이 시작되었습니다."},
	orders.ActionComplete: {title: "배송 완료", message: "주문번호 %s의 배송이 완료되었습니다."},
	orders.ActionCancel:   {title: "주문 취소", message: "주문번호 %s이(가) 취소되었습니다."},
}

// ForTransition builds the notification sent to the owner of o after action a.
func ForTransition(o orders.Order, a orders.Action, now time.Time) (Notification, error) {
	t, ok := transitionTemplates[a]
	if !ok {
		return Notification{}, fmt.Errorf("no notification template for action %q", a)
	}
	return Notification{
		UserID:        o.UserID,
		Type:          TypeOrderStatus,
		Title:         t.title,
		Message:       fmt.Sprintf(t.message, o.OrderNumber),
		ReferenceID:   o.ID,
		ReferenceType: ReferenceOrder,
		CreatedAt:     now,
	}, nil
}

// Topics is a topic selector that decodes from either a string or a list of strings.
type Topics []string

func (t *Topics) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*t = nil
			return nil
		}
		*t = Topics{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("topic must be a string or a list of strings: %w", err)
	}
	*t = list
	return nil
}

const TopicAll = "all"

// Target selects recipients: one user, a list of users, topics, or any mix.
type Target struct {
	UserID  string
	UserIDs []string
	Topics  Topics
}

// Empty reports whether no selector was supplied at all.
func (t Target) Empty() bool {
	if strings.TrimSpace(t.UserID) != "" {
		return false
	}
	for _, id := range t.UserIDs {
		if strings.TrimSpace(id) != "" {
			return false
		}
	}
	for _, tp := range t.Topics {
		if strings.TrimSpace(tp) != "" {
			return false
		}
	}
	return true
}

// Message is the push content handed to the provider.
type Message struct {
	Title     string
	Body      string
	Data      map[string]string
	Priority  string // high | normal
	ChannelID string
}

const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

// StringData flattens arbitrary JSON data into the string map push providers accept.
func StringData(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch x := v.(type) {
		case nil:
			continue
		case string:
			out[k] = x
		default:
			b, err := json.Marshal(x)
			if err != nil {
				out[k] = fmt.Sprint(x)
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}
