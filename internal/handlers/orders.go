// Package handlers exposes the order API over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gdev-ltda/orderflow/internal/httputil"
	"github.com/gdev-ltda/orderflow/internal/logging"
	"github.com/gdev-ltda/orderflow/internal/models"
	"github.com/gdev-ltda/orderflow/internal/repository"
	"github.com/gdev-ltda/orderflow/internal/service"
)

// OrderHandler serves the /orders resource.
type OrderHandler struct {
	service *service.OrderService
	logger  *logging.Logger
}

// NewOrderHandler creates the handler.
func NewOrderHandler(svc *service.OrderService, logger *logging.Logger) *OrderHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &OrderHandler{service: svc, logger: logger}
}

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg, ok := validateOrderRequest(&req); !ok {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	order, err := h.service.Create(r.Context(), &req)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "create order failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, order.Response())
}

// List handles GET /orders. With email and orderId it returns one order,
// with email alone the customer's orders, with neither every order.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	orderID := r.URL.Query().Get("orderId")

	switch {
	case email != "" && orderID != "":
		order, err := h.service.Get(r.Context(), email, orderID)
		if err != nil {
			h.writeLookupError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, order.Response())

	case email != "":
		orders, err := h.service.ListByEmail(r.Context(), email)
		if err != nil {
			h.writeLookupError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, toResponses(orders))

	case orderID != "":
		httputil.WriteError(w, http.StatusBadRequest, "orderId requires email")

	default:
		orders, err := h.service.ListAll(r.Context())
		if err != nil {
			h.writeLookupError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, toResponses(orders))
	}
}

// Delete handles DELETE /orders.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	orderID := r.URL.Query().Get("orderId")
	if email == "" || orderID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "email and orderId are required")
		return
	}

	order, err := h.service.Delete(r.Context(), email, orderID)
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, order.Response())
}

func (h *OrderHandler) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, repository.ErrOrderNotFound) {
		httputil.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.ErrorContext(r.Context(), "order lookup failed", "error", err)
	httputil.WriteError(w, http.StatusInternalServerError, "internal server error")
}

func validateOrderRequest(req *models.OrderRequest) (string, bool) {
	if req.Email == "" {
		return "email is required", false
	}
	if len(req.ProductIDs) == 0 {
		return "productIds must not be empty", false
	}
	switch req.Payment {
	case models.PaymentCash, models.PaymentCreditCard, models.PaymentDebitCard:
	default:
		return "invalid payment type", false
	}
	switch req.Shipping.Type {
	case models.ShippingEconomic, models.ShippingUrgent:
	default:
		return "invalid shipping type", false
	}
	switch req.Shipping.Carrier {
	case models.CarrierCorreios, models.CarrierFedex:
	default:
		return "invalid carrier", false
	}
	return "", true
}

func toResponses(orders []*models.Order) []*models.OrderResponse {
	out := make([]*models.OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.Response())
	}
	return out
}
