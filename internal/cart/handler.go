package cart

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront/storefront/internal/catalog"
	"github.com/storefront/storefront/internal/platform/httpx"
	"github.com/storefront/storefront/internal/shared"
)

// SlotSessionKey names the session value holding the cart slot id. The slot
// outlives session id rotation on sign-in.
const SlotSessionKey = "cart_slot"

// ProductLookup resolves products added to the cart.
type ProductLookup interface {
	Product(ctx context.Context, id int64) (catalog.Product, error)
}

// SlotFor returns the cart slot bound to sess, assigning one when missing.
func SlotFor(sess *shared.Session) string {
	if sess == nil {
		return uuid.NewString()
	}
	slot := sess.Get(SlotSessionKey)
	if slot == "" {
		slot = uuid.NewString()
		sess.Set(SlotSessionKey, slot)
	}
	return slot
}

// Handler serves cart endpoints.
type Handler struct {
	logger   *slog.Logger
	storage  Storage
	products ProductLookup
}

// NewHandler builds a cart Handler.
func NewHandler(logger *slog.Logger, storage Storage, products ProductLookup) *Handler {
	return &Handler{logger: logger, storage: storage, products: products}
}

// MountRoutes registers cart routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
	r.Delete("/", h.clear)
	r.Post("/items", h.addItem)
	r.Put("/items/{productID}", h.updateItem)
	r.Delete("/items/{productID}", h.removeItem)
}

// View is the JSON shape of a cart.
type View struct {
	Items []Item          `json:"items"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// NewView snapshots the store.
func NewView(s *Store) View {
	return View{Items: s.Items(), Count: s.Count(), Total: s.Total()}
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) open(r *http.Request) (*Store, error) {
	return Open(r.Context(), h.storage, SlotFor(shared.SessionFromContext(r.Context())))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	store, err := h.open(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(store))
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	store, err := h.open(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := store.Clear(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(store))
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.ProductID <= 0 {
		httpx.RespondError(w, httpx.FieldErrors{"product_id": "is required"})
		return
	}
	product, err := h.products.Product(r.Context(), req.ProductID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	store, err := h.open(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := store.Add(r.Context(), product); err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(store))
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, catalog.ErrProductNotFound)
		return
	}
	var req updateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	store, err := h.open(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := store.UpdateQuantity(r.Context(), productID, req.Quantity); err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(store))
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, catalog.ErrProductNotFound)
		return
	}
	store, err := h.open(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := store.Remove(r.Context(), productID); err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(store))
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.logger.Error("cart storage", slog.Any("error", err))
	httpx.RespondError(w, err)
}
