package orders

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storefront/storefront/internal/platform/httpx"
	"github.com/storefront/storefront/internal/shared"
)

// LastOrderSessionKey remembers the order placed from a session, so guests
// can see their confirmation and invoice.
const LastOrderSessionKey = "last_order"

// AdminChecker reports whether a principal holds the admin claim.
type AdminChecker interface {
	IsAdmin(ctx context.Context, p shared.Principal) bool
}

// Handler serves the shopper's order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	admins  AdminChecker
}

// NewHandler builds an orders Handler.
func NewHandler(logger *slog.Logger, service *Service, admins AdminChecker) *Handler {
	return &Handler{logger: logger, service: service, admins: admins}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{number}", h.show)
	r.Get("/{number}/invoice", h.invoice)
}

// CanView reports whether the request may read o: its owner, an admin, or
// the session that placed it.
func (h *Handler) CanView(ctx context.Context, o Order) bool {
	sess := shared.SessionFromContext(ctx)
	p := sess.Principal()
	if o.OwnedBy(p.UserID) {
		return true
	}
	if sess != nil && sess.Get(LastOrderSessionKey) == o.Number {
		return true
	}
	return h.admins != nil && !p.Anonymous() && h.admins.IsAdmin(ctx, p)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListForUser(r.Context(), shared.PrincipalFromContext(r.Context()))
	if err != nil {
		h.logger.Debug("list orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (Order, bool) {
	o, err := h.service.GetByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httpx.RespondError(w, err)
		return Order{}, false
	}
	if !h.CanView(r.Context(), o) {
		httpx.RespondError(w, ErrNotOwner)
		return Order{}, false
	}
	return o, true
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	o, ok := h.load(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) invoice(w http.ResponseWriter, r *http.Request) {
	o, ok := h.load(w, r)
	if !ok {
		return
	}
	httpx.Text(w, InvoiceFilename(o), Invoice(o))
}
