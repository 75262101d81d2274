package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/def-order-backend/internal/notify"
)

type NotificationSender interface {
	SendToUsers(ctx context.Context, req notify.NotificationRequest) (int, error)
	Push(ctx context.Context, req notify.PushRequest) (notify.PushResult, error)
}

type NotificationsHandler struct {
	Notifier NotificationSender
	Logger   *zap.Logger
}

type sendNotificationReq struct {
	UserID  string         `json:"userId"`
	UserIDs []string       `json:"userIds"`
	Topic   notify.Topics  `json:"topic"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Type    string         `json:"type"`
	Data    map[string]any `json:"data"`
}

type sendNotificationResp struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	UserCount int    `json:"userCount"`
}

type pushNotificationReq struct {
	UserID       string        `json:"userId"`
	UserIDs      []string      `json:"userIds"`
	Topic        notify.Topics `json:"topic"`
	Notification struct {
		Title string         `json:"title"`
		Body  string         `json:"body"`
		Data  map[string]any `json:"data"`
	} `json:"notification"`
	Options struct {
		Priority  string `json:"priority"`
		ChannelID string `json:"channelId"`
	} `json:"options"`
}

type pushNotificationResp struct {
	Success        bool                   `json:"success"`
	Message        string                 `json:"message,omitempty"`
	SentCount      int                    `json:"sentCount"`
	ProviderResult *notify.DeliveryResult `json:"providerResult,omitempty"`
}

type pushErrorResp struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *NotificationsHandler) Register(r chi.Router) {
	r.Post("/send-notification", h.sendNotification)
	r.Post("/send-push-notification", h.sendPushNotification)
}

func (h *NotificationsHandler) sendNotification(w http.ResponseWriter, r *http.Request) {
	var req sendNotificationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	n, err := h.Notifier.SendToUsers(ctx, notify.NotificationRequest{
		Target:  notify.Target{UserID: req.UserID, UserIDs: req.UserIDs, Topics: req.Topic},
		Title:   req.Title,
		Message: req.Message,
		Type:    req.Type,
		Data:    req.Data,
	})
	if err != nil {
		code, msg := classify(err)
		if code == http.StatusInternalServerError {
			h.logger().Error("send notification failed", zap.Error(err))
		}
		writeError(w, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, sendNotificationResp{
		Success:   true,
		Message:   fmt.Sprintf("Notifications sent to %d users", n),
		UserCount: n,
	})
}

// sendPushNotification reports every failure as 400 with success=false.
func (h *NotificationsHandler) sendPushNotification(w http.ResponseWriter, r *http.Request) {
	var req pushNotificationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, pushErrorResp{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Notifier.Push(ctx, notify.PushRequest{
		Target:    notify.Target{UserID: req.UserID, UserIDs: req.UserIDs, Topics: req.Topic},
		Title:     req.Notification.Title,
		Body:      req.Notification.Body,
		Data:      req.Notification.Data,
		Priority:  req.Options.Priority,
		ChannelID: req.Options.ChannelID,
	})
	if err != nil {
		h.logger().Warn("push notification failed", zap.Error(err))
		_, msg := classify(err)
		writeJSON(w, http.StatusBadRequest, pushErrorResp{Error: msg})
		return
	}

	resp := pushNotificationResp{Success: true, SentCount: res.SentCount, ProviderResult: res.ProviderResult}
	if res.SentCount == 0 {
		resp.Message = "No FCM tokens to send"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *NotificationsHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
