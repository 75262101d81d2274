// Package push delivers notifications through Firebase Cloud Messaging.
package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/ariefcatur/def-order-backend/internal/notify"
)

const (
	// maxMulticastTokens is the FCM limit for one multicast request.
	maxMulticastTokens = 500

	defaultSendTimeout = 10 * time.Second
	defaultSound       = "default"
	flutterClickAction = "FLUTTER_NOTIFICATION_CLICK"
)

// MulticastClient is the slice of the messaging client the sender uses.
type MulticastClient interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMSender implements notify.Sender on top of the Firebase Admin SDK.
type FCMSender struct {
	client  MulticastClient
	timeout time.Duration
}

// Option customises FCMSender instances.
type Option func(*FCMSender)

// WithSendTimeout bounds each provider call.
func WithSendTimeout(d time.Duration) Option {
	return func(s *FCMSender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewFCMSender initialises the Firebase app from a service-account file.
func NewFCMSender(ctx context.Context, projectID, credentialsFile string, opts ...Option) (*FCMSender, error) {
	if projectID == "" {
		return nil, errors.New("firebase project id is required")
	}
	var clientOpts []option.ClientOption
	if credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase messaging client: %w", err)
	}
	return NewSender(client, opts...), nil
}

// NewSender wraps an existing multicast client.
func NewSender(client MulticastClient, opts ...Option) *FCMSender {
	s := &FCMSender{client: client, timeout: defaultSendTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Send fans m out to tokens in provider-sized chunks and sums the results.
// A transport error on any chunk aborts the send.
func (s *FCMSender) Send(ctx context.Context, tokens []string, m notify.Message) (notify.DeliveryResult, error) {
	if s == nil || s.client == nil {
		return notify.DeliveryResult{}, errors.New("fcm sender not initialised")
	}
	var out notify.DeliveryResult
	for start := 0; start < len(tokens); start += maxMulticastTokens {
		end := min(start+maxMulticastTokens, len(tokens))
		chunk := tokens[start:end]

		resp, err := s.send(ctx, BuildMulticast(chunk, m))
		if err != nil {
			return out, err
		}
		out.SuccessCount += resp.SuccessCount
		out.FailureCount += resp.FailureCount
		for i, r := range resp.Responses {
			if i >= len(chunk) || r == nil {
				continue
			}
			tr := notify.TokenResult{Token: chunk[i], MessageID: r.MessageID}
			if r.Error != nil {
				tr.Error = r.Error.Error()
			}
			out.Results = append(out.Results, tr)
		}
	}
	return out, nil
}

func (s *FCMSender) send(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	resp, err := s.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("fcm multicast: %w", err)
	}
	return resp, nil
}

// BuildMulticast maps a message onto the FCM payload: notification, data,
// Android priority/sound/click action/channel and APNs alert/sound/badge.
func BuildMulticast(tokens []string, m notify.Message) *messaging.MulticastMessage {
	priority := notify.PriorityNormal
	if m.Priority == notify.PriorityHigh {
		priority = notify.PriorityHigh
	}
	badge := 1
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   m.Data,
		Notification: &messaging.Notification{
			Title: m.Title,
			Body:  m.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: priority,
			Notification: &messaging.AndroidNotification{
				Sound:       defaultSound,
				ClickAction: flutterClickAction,
				ChannelID:   m.ChannelID,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: m.Title,
						Body:  m.Body,
					},
					Sound:            defaultSound,
					Badge:            &badge,
					ContentAvailable: true,
				},
			},
		},
	}
}
