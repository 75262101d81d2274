package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/def-order-backend/internal/auth"
	"github.com/ariefcatur/def-order-backend/internal/orders"
)

type OrderProcessor interface {
	Process(ctx context.Context, actorID string, req orders.Request) (orders.Result, error)
}

type StatusLookup interface {
	GetOrderStatus(ctx context.Context, orderID string) (orders.Status, error)
}

type StatusCache interface {
	Status(ctx context.Context, orderID string) (orders.Status, bool, error)
	SetStatus(ctx context.Context, orderID string, s orders.Status) error
}

// OrdersHandler serves the order lifecycle endpoints. Cache is optional.
type OrdersHandler struct {
	Processor OrderProcessor
	Statuses  StatusLookup
	Cache     StatusCache
	Logger    *zap.Logger
}

type processOrderResp struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Order   orders.Order `json:"order"`
}

type statusResp struct {
	Status orders.Status `json:"status"`
}

// Register mounts the routes on r. Callers wrap r with RequireActor.
func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/process-order", h.processOrder)
	r.Get("/orders/{id}", h.getOrderStatus)
}

func (h *OrdersHandler) processOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req orders.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Processor.Process(ctx, actor.ID, req)
	if err != nil {
		code, msg := classify(err)
		if code == http.StatusInternalServerError {
			h.logger().Error("process order failed",
				zap.String("order_id", req.OrderID),
				zap.String("action", req.Action),
				zap.Error(err))
		}
		writeError(w, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, processOrderResp{Success: true, Message: res.Message, Order: res.Order})
}

// getOrderStatus answers from the status cache and falls back to the store,
// refreshing the cache on a miss.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Cache != nil {
		if s, ok, err := h.Cache.Status(ctx, orderID); err == nil && ok {
			writeJSON(w, http.StatusOK, statusResp{Status: s})
			return
		} else if err != nil {
			h.logger().Warn("order status cache read failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}

	s, err := h.Statuses.GetOrderStatus(ctx, orderID)
	if err != nil {
		if !errors.Is(err, orders.ErrNotFound) {
			h.logger().Error("order status lookup failed", zap.String("order_id", orderID), zap.Error(err))
		}
		writeDomainError(w, err)
		return
	}
	if h.Cache != nil {
		_ = h.Cache.SetStatus(ctx, orderID, s)
	}
	writeJSON(w, http.StatusOK, statusResp{Status: s})
}

func (h *OrdersHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
