package push

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/def-order-backend/internal/notify"
)

type fakeClient struct {
	calls []*messaging.MulticastMessage
	err   error
	fail  map[string]bool
}

func (f *fakeClient) SendEachForMulticast(_ context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.calls = append(f.calls, m)
	if f.err != nil {
		return nil, f.err
	}
	resp := &messaging.BatchResponse{}
	for i, tok := range m.Tokens {
		if f.fail[tok] {
			resp.FailureCount++
			resp.Responses = append(resp.Responses, &messaging.SendResponse{Error: errors.New("unregistered")})
			continue
		}
		resp.SuccessCount++
		resp.Responses = append(resp.Responses, &messaging.SendResponse{Success: true, MessageID: fmt.Sprintf("msg-%d", i)})
	}
	return resp, nil
}

func tokens(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("tok-%04d", i)
	}
	return out
}

func TestSendChunksAtProviderLimit(t *testing.T) {
	client := &fakeClient{}
	s := NewSender(client)

	res, err := s.Send(context.Background(), tokens(1201), notify.Message{Title: "t", Body: "b"})
	require.NoError(t, err)

	require.Len(t, client.calls, 3)
	assert.Len(t, client.calls[0].Tokens, 500)
	assert.Len(t, client.calls[1].Tokens, 500)
	assert.Len(t, client.calls[2].Tokens, 201)
	assert.Equal(t, 1201, res.SuccessCount)
	assert.Zero(t, res.FailureCount)
	assert.Len(t, res.Results, 1201)
}

func TestSendReportsPerTokenFailures(t *testing.T) {
	client := &fakeClient{fail: map[string]bool{"tok-0001": true}}
	s := NewSender(client)

	res, err := s.Send(context.Background(), tokens(3), notify.Message{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 1, res.FailureCount)
	require.Len(t, res.Results, 3)
	assert.Equal(t, "tok-0001", res.Results[1].Token)
	assert.Equal(t, "unregistered", res.Results[1].Error)
	assert.Empty(t, res.Results[0].Error)
}

func TestSendTransportError(t *testing.T) {
	s := NewSender(&fakeClient{err: errors.New("unavailable")})

	_, err := s.Send(context.Background(), tokens(1), notify.Message{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
}

func TestSendWithoutClient(t *testing.T) {
	var s *FCMSender
	_, err := s.Send(context.Background(), tokens(1), notify.Message{})
	assert.Error(t, err)
}

func TestBuildMulticastPayload(t *testing.T) {
	m := BuildMulticast([]string{"a"}, notify.Message{
		Title:     "주문 확정",
		Body:      "주문번호 DEF-1이(가) 확정되었습니다.",
		Data:      map[string]string{"type": notify.TypeOrderStatus},
		Priority:  notify.PriorityHigh,
		ChannelID: "orders",
	})

	require.NotNil(t, m.Notification)
	assert.Equal(t, "주문 확정", m.Notification.Title)
	assert.Equal(t, notify.TypeOrderStatus, m.Data["type"])

	require.NotNil(t, m.Android)
	assert.Equal(t, "high", m.Android.Priority)
	assert.Equal(t, "default", m.Android.Notification.Sound)
	assert.Equal(t, "FLUTTER_NOTIFICATION_CLICK", m.Android.Notification.ClickAction)
	assert.Equal(t, "orders", m.Android.Notification.ChannelID)

	aps := m.APNS.Payload.Aps
	require.NotNil(t, aps)
	assert.Equal(t, "default", aps.Sound)
	require.NotNil(t, aps.Badge)
	assert.Equal(t, 1, *aps.Badge)
	assert.True(t, aps.ContentAvailable)
	assert.Equal(t, "주문 확정", aps.Alert.Title)
}

func TestBuildMulticastDefaultsPriority(t *testing.T) {
	m := BuildMulticast([]string{"a"}, notify.Message{Priority: "urgent"})
	assert.Equal(t, "normal", m.Android.Priority)
}
