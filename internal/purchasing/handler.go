package purchasing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/msa-suite/msa-suite/internal/platform/httpx"
	"github.com/msa-suite/msa-suite/internal/shared"
)

// Handler exposes purchasing endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency *shared.IdempotencyStore
	validate    *validator.Validate
}

// NewHandler builds the purchasing handler. The idempotency store may be nil,
// in which case Idempotency-Key headers are ignored.
func NewHandler(logger *slog.Logger, service *Service, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, idempotency: idempotency, validate: validator.New()}
}

// MountRoutes registers purchasing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Delete("/orders/{id}", h.deleteOrder)
	r.Post("/orders/{id}/items", h.addItem)
	r.Put("/items/{id}", h.updateItem)
	r.Delete("/items/{id}", h.removeItem)
	r.Post("/orders/{id}/send", h.sendOrder)
	r.Post("/orders/{id}/receive", h.receiveOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Get("/suppliers/{id}/balance", h.supplierBalance)
	r.Get("/dashboard", h.dashboard)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateOrderInput{
		SupplierID:   req.SupplierID,
		BranchID:     req.BranchID,
		ExpectedDate: req.ExpectedDate,
		Notes:        req.Notes,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, ItemInput{PartID: item.PartID, Qty: item.Qty, UnitCost: item.UnitCost})
	}
	order, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, orderResponse{Order: order})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	supplierID, _ := strconv.ParseInt(r.URL.Query().Get("supplier_id"), 10, 64)
	branchID, _ := strconv.ParseInt(r.URL.Query().Get("branch_id"), 10, 64)
	filters := shared.ListFilters{
		Status:     r.URL.Query().Get("status"),
		SupplierID: supplierID,
		BranchID:   branchID,
		Search:     r.URL.Query().Get("search"),
		SortBy:     r.URL.Query().Get("sort"),
		SortDir:    r.URL.Query().Get("dir"),
	}
	orders, total, err := h.service.ListOrders(r.Context(), limit, offset, filters)
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Orders: orders, Total: total, Limit: limit, Offset: offset})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	order, items, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orderResponse{Order: order, Items: items})
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteOrder(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.AddItem(r.Context(), id, ItemInput{PartID: req.PartID, Qty: req.Qty, UnitCost: req.UnitCost})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.UpdateItem(r.Context(), id, ItemInput{PartID: req.PartID, Qty: req.Qty, UnitCost: req.UnitCost})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.RemoveItem(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) sendOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.SendOrder)
}

func (h *Handler) receiveOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ReceiveOrder)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CancelOrder)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, orderID int64) error) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, "purchasing"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
				return
			}
			h.respondError(w, err)
			return
		}
	}
	if err := fn(r.Context(), id); err != nil {
		if key != "" && h.idempotency != nil {
			if delErr := h.idempotency.Delete(r.Context(), key); delErr != nil {
				h.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		h.respondError(w, err)
		return
	}
	order, items, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orderResponse{Order: order, Items: items})
}

func (h *Handler) supplierBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	balance, err := h.service.SupplierBalance(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("dashboard", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrOrderNotEditable), errors.Is(err, ErrOrderHasInvoices):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("purchasing request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
