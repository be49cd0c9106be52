package admin

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/storefront/storefront/internal/catalog"
	"github.com/storefront/storefront/internal/orders"
	"github.com/storefront/storefront/internal/platform/httpx"
	"github.com/storefront/storefront/internal/shared"
)

// Handler serves the back-office endpoints.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	authorizer *Authorizer
}

// NewHandler builds an admin Handler.
func NewHandler(logger *slog.Logger, service *Service, authorizer *Authorizer) *Handler {
	return &Handler{logger: logger, service: service, authorizer: authorizer}
}

// MountRoutes registers admin routes, all behind RequireAdmin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.authorizer.RequireAdmin)

	r.Get("/dashboard", h.dashboard)

	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/low-stock", h.lowStock)
	r.Put("/products/{id}", h.updateProduct)
	r.Delete("/products/{id}", h.deleteProduct)

	r.Get("/categories", h.listCategories)
	r.Post("/categories", h.createCategory)
	r.Put("/categories/{id}", h.updateCategory)
	r.Delete("/categories/{id}", h.deleteCategory)

	r.Get("/orders", h.listOrders)
	r.Get("/orders/report", h.report)
	r.Put("/orders/{id}/status", h.updateOrderStatus)

	r.Get("/audit", h.auditTrail)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func actor(r *http.Request) shared.Principal {
	return shared.PrincipalFromContext(r.Context())
}

func int64Param(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.fail(w, "dashboard stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.LowStock(r.Context())
	if err != nil {
		h.fail(w, "low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.Products(r.Context())
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.CreateProduct(r.Context(), actor(r), in)
	if err != nil {
		h.fail(w, "create product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(r, "id")
	if !ok {
		httpx.RespondError(w, catalog.ErrProductNotFound)
		return
	}
	var in catalog.ProductInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), actor(r), id, in)
	if err != nil {
		h.fail(w, "update product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(r, "id")
	if !ok {
		httpx.RespondError(w, catalog.ErrProductNotFound)
		return
	}
	if err := h.service.DeleteProduct(r.Context(), actor(r), id); err != nil {
		h.fail(w, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		h.fail(w, "list categories", err)
		return
	}
	httpx.JSON(w, http.StatusOK, categories)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var in catalog.CategoryInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.CreateCategory(r.Context(), actor(r), in)
	if err != nil {
		h.fail(w, "create category", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(r, "id")
	if !ok {
		httpx.RespondError(w, catalog.ErrCategoryNotFound)
		return
	}
	var in catalog.CategoryInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.UpdateCategory(r.Context(), actor(r), id, in)
	if err != nil {
		h.fail(w, "update category", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(r, "id")
	if !ok {
		httpx.RespondError(w, catalog.ErrCategoryNotFound)
		return
	}
	if err := h.service.DeleteCategory(r.Context(), actor(r), id); err != nil {
		h.fail(w, "delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type orderPage struct {
	Orders     []orders.Order    `json:"orders"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	f, err := orders.ParseListFilter(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, page, err := h.service.Orders(r.Context(), f)
	if err != nil {
		h.fail(w, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orderPage{Orders: list, Pagination: page})
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	f, err := orders.ParseListFilter(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	name, body, err := h.service.Report(r.Context(), f)
	if err != nil {
		h.fail(w, "orders report", err)
		return
	}
	httpx.Text(w, name, body)
}

type statusInput struct {
	Status string `json:"status"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, orders.ErrOrderNotFound)
		return
	}
	var in statusInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	status, err := orders.ParseStatus(in.Status)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	o, err := h.service.UpdateOrderStatus(r.Context(), actor(r), id, status)
	if err != nil {
		h.fail(w, "update order status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) auditTrail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	logs, err := h.service.AuditTrail(r.Context(), shared.AuditQuery{
		Entity:   q.Get("entity"),
		EntityID: q.Get("entity_id"),
		Limit:    limit,
	})
	if err != nil {
		h.fail(w, "audit trail", err)
		return
	}
	httpx.JSON(w, http.StatusOK, logs)
}
