package catalog

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/storefront/storefront/internal/platform/httpx"
	"github.com/storefront/storefront/internal/shared"
)

// FiltersSessionKey stores the shopper's filters as JSON in the session.
const FiltersSessionKey = "catalog_filters"

// Handler serves the public catalog endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a catalog Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.showProduct)
	r.Get("/categories", h.listCategories)
	r.Get("/filters", h.showFilters)
	r.Post("/filters/reset", h.resetFilters)
}

// SessionFilterStore returns a FilterStore seeded from sess whose changes
// are written back to it.
func SessionFilterStore(sess *shared.Session) *FilterStore {
	initial := DefaultFilters()
	if sess != nil {
		if raw := sess.Get(FiltersSessionKey); raw != "" {
			var stored FilterOptions
			if err := json.Unmarshal([]byte(raw), &stored); err == nil {
				initial = stored
			}
		}
	}
	store := NewFilterStore(initial)
	if sess != nil {
		first := true
		store.Subscribe(func(opts FilterOptions) {
			if first {
				first = false
				return
			}
			if raw, err := json.Marshal(opts); err == nil {
				sess.Set(FiltersSessionKey, string(raw))
			}
		})
	}
	return store
}

type productList struct {
	Filters  FilterOptions `json:"filters"`
	Count    int           `json:"count"`
	Products []Product     `json:"products"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	patch, err := ParseFilterPatch(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	store := SessionFilterStore(shared.SessionFromContext(r.Context()))
	opts := store.Current()
	if !patch.Empty() {
		opts = store.Update(patch)
	}

	products, err := h.service.Products(r.Context(), opts)
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, productList{Filters: opts, Count: len(products), Products: products})
}

func (h *Handler) showProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, ErrProductNotFound)
		return
	}
	p, err := h.service.Product(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		h.logger.Error("list categories", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, categories)
}

func (h *Handler) showFilters(w http.ResponseWriter, r *http.Request) {
	store := SessionFilterStore(shared.SessionFromContext(r.Context()))
	httpx.JSON(w, http.StatusOK, store.Current())
}

func (h *Handler) resetFilters(w http.ResponseWriter, r *http.Request) {
	store := SessionFilterStore(shared.SessionFromContext(r.Context()))
	store.Reset()
	httpx.JSON(w, http.StatusOK, store.Current())
}
