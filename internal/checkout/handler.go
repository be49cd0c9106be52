package checkout

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/storefront/storefront/internal/cart"
	"github.com/storefront/storefront/internal/orders"
	"github.com/storefront/storefront/internal/platform/httpx"
	"github.com/storefront/storefront/internal/shared"
)

// IdempotencyHeader carries the client's idempotency key on completion.
const IdempotencyHeader = "Idempotency-Key"

// Handler serves checkout endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a checkout Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers checkout routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
	r.Put("/customer", h.setCustomer)
	r.Put("/address", h.setAddress)
	r.Post("/back", h.back)
	r.Post("/complete", h.complete)
}

func slotOf(r *http.Request) string {
	return cart.SlotFor(shared.SessionFromContext(r.Context()))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), slotOf(r))
	if err != nil {
		h.logger.Error("checkout view", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) setCustomer(w http.ResponseWriter, r *http.Request) {
	var c orders.Customer
	if err := httpx.DecodeJSON(r, &c); err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.SetCustomer(r.Context(), slotOf(r), c)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) setAddress(w http.ResponseWriter, r *http.Request) {
	var a orders.ShippingAddress
	if err := httpx.DecodeJSON(r, &a); err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.SetAddress(r.Context(), slotOf(r), a)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) back(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Back(r.Context(), slotOf(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	var userID *uuid.UUID
	if id, err := uuid.Parse(sess.Principal().UserID); err == nil {
		userID = &id
	}

	order, err := h.service.Complete(r.Context(), slotOf(r), userID, r.Header.Get(IdempotencyHeader))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if sess != nil {
		sess.Set(orders.LastOrderSessionKey, order.Number)
	}
	httpx.JSON(w, http.StatusCreated, order)
}
