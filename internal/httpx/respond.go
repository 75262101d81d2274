package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/def-order-backend/internal/auth"
	"github.com/ariefcatur/def-order-backend/internal/notify"
	"github.com/ariefcatur/def-order-backend/internal/orders"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

// transitionMessages is the client-facing refusal for each action.
var transitionMessages = map[orders.Action]string{
	orders.ActionConfirm:  "Invalid order status for confirmation",
	orders.ActionShip:     "Invalid order status for shipping",
	orders.ActionComplete: "Invalid order status for completion",
	orders.ActionCancel:   "Cannot cancel completed or already cancelled order",
}

// classify maps a domain error onto a status code and client message.
// Unclassified errors are 500 with their own message.
func classify(err error) (int, string) {
	var te *orders.TransitionError
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "Insufficient permissions"
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, orders.ErrInvalidAction):
		return http.StatusBadRequest, "Invalid action"
	case errors.As(err, &te):
		if msg, ok := transitionMessages[te.Action]; ok {
			return http.StatusBadRequest, msg
		}
		return http.StatusBadRequest, te.Error()
	case errors.Is(err, orders.ErrInsufficientInventory):
		return http.StatusBadRequest, "Insufficient inventory"
	case errors.Is(err, orders.ErrPersistence):
		return http.StatusInternalServerError, "Failed to update order"
	case errors.Is(err, notify.ErrNoTargetSpecified):
		return http.StatusBadRequest, "No target users specified"
	case errors.Is(err, notify.ErrPersistence):
		return http.StatusInternalServerError, "Failed to create notifications"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	code, msg := classify(err)
	writeError(w, code, msg)
}
