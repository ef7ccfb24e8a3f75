package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ordermgmt/ordercore/internal/domain"
	"github.com/ordermgmt/ordercore/internal/service"
)

// Identity arrives via trusted gateway headers; this service does not
// terminate authentication itself.
const (
	headerCustomerID = "X-Customer-ID"
	headerRole       = "X-Role"
)

type Handler struct {
	orders   *service.OrderService
	payments *service.PaymentService
}

func NewHandler(orders *service.OrderService, payments *service.PaymentService) *Handler {
	return &Handler{orders: orders, payments: payments}
}

func principal(r *http.Request) (domain.Principal, error) {
	var p domain.Principal

	id, err := uuid.Parse(r.Header.Get(headerCustomerID))
	if err != nil {
		return p, domain.ValidationError{Field: headerCustomerID, Reason: "must be a uuid"}
	}

	role := domain.Role(r.Header.Get(headerRole))
	switch role {
	case domain.RoleAdmin, domain.RoleManager, domain.RoleCustomer:
	case "":
		role = domain.RoleCustomer
	default:
		return p, domain.ValidationError{Field: headerRole, Reason: "unknown role"}
	}

	return domain.Principal{CustomerID: id, Role: role}, nil
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ValidationError{Field: "body", Reason: "malformed json"})
		return
	}

	view, err := h.orders.CreateOrder(r.Context(), actor, req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, domain.ValidationError{Field: "id", Reason: "must be a uuid"})
		return
	}

	view, err := h.orders.GetOrder(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) getOrderByNumber(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, err := h.orders.GetOrderByNumber(r.Context(), actor, chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filter, page, err := parseOrderQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, err := h.orders.ListOrders(r.Context(), actor, filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, domain.ValidationError{Field: "id", Reason: "must be a uuid"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ValidationError{Field: "body", Reason: "malformed json"})
		return
	}

	status, err := domain.ToOrderStatus(req.Status)
	if err != nil {
		writeError(w, r, domain.ValidationError{Field: "status", Reason: err.Error()})
		return
	}

	view, err := h.orders.UpdateOrderStatus(r.Context(), actor, id, status, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, domain.ValidationError{Field: "id", Reason: "must be a uuid"})
		return
	}

	var req cancelOrderRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, domain.ValidationError{Field: "body", Reason: "malformed json"})
			return
		}
	}

	view, err := h.orders.CancelOrder(r.Context(), actor, id, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) orderStats(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	stats, err := h.orders.GetOrderStats(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) processPayment(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req processPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ValidationError{Field: "body", Reason: "malformed json"})
		return
	}

	method, err := domain.ToPaymentMethod(req.Method)
	if err != nil {
		writeError(w, r, domain.ValidationError{Field: "method", Reason: err.Error()})
		return
	}

	view, err := h.payments.ProcessPayment(r.Context(), actor, service.ProcessPaymentInput{
		OrderID:      req.OrderID,
		Method:       method,
		Installments: req.Installments,
		CardToken:    req.CardToken,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) getPaymentByOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, domain.ValidationError{Field: "orderID", Reason: "must be a uuid"})
		return
	}

	view, err := h.payments.GetPaymentByOrder(r.Context(), actor, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) refundPayment(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, domain.ValidationError{Field: "id", Reason: "must be a uuid"})
		return
	}

	view, err := h.payments.RefundPayment(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func parseOrderQuery(r *http.Request) (domain.OrderFilter, domain.Page, error) {
	var filter domain.OrderFilter
	var page domain.Page

	q := r.URL.Query()

	for _, raw := range q["status"] {
		status, err := domain.ToOrderStatus(raw)
		if err != nil {
			return filter, page, domain.ValidationError{Field: "status", Reason: err.Error()}
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	for _, raw := range q["customer_id"] {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, page, domain.ValidationError{Field: "customer_id", Reason: "must be a uuid"}
		}
		filter.CustomerIDs = append(filter.CustomerIDs, id)
	}

	if raw := q.Get("created_after"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, page, domain.ValidationError{Field: "created_after", Reason: "must be RFC3339"}
		}
		if filter.CreatedAt == nil {
			filter.CreatedAt = &domain.TimeRange{}
		}
		filter.CreatedAt.After = &from
	}
	if raw := q.Get("created_before"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, page, domain.ValidationError{Field: "created_before", Reason: "must be RFC3339"}
		}
		if filter.CreatedAt == nil {
			filter.CreatedAt = &domain.TimeRange{}
		}
		filter.CreatedAt.Before = &to
	}

	page.Limit = intQuery(q.Get("limit"))
	page.Offset = intQuery(q.Get("offset"))

	return filter, page, nil
}

func intQuery(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr   domain.ValidationError
		transitionErr   domain.InvalidTransitionError
		paymentStateErr domain.InvalidPaymentStateError
		stockErr        domain.InsufficientStockError
	)

	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, domain.ErrPaymentNotFound):
		status = http.StatusNotFound
	case errors.As(err, &transitionErr),
		errors.As(err, &paymentStateErr),
		errors.As(err, &stockErr),
		errors.Is(err, domain.ErrDuplicatePayment),
		errors.Is(err, domain.ErrOrderNotAwaitingPayment):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}
