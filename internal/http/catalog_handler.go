package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/fjod/cybershop/internal/domain"
	"github.com/fjod/cybershop/internal/pricing"
	"github.com/fjod/cybershop/internal/repository"
	"github.com/fjod/cybershop/internal/search"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CatalogHandler struct {
	catalog Catalog
	logger  *zap.Logger
}

func NewCatalogHandler(catalog Catalog, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

type CategoryRequestDTO struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

type ProductRequestDTO struct {
	CategoryID  int64           `json:"category_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Features    []string        `json:"features"`
	Price       decimal.Decimal `json:"price"`
	Plan        string          `json:"plan"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"image_url"`
}

type ProductsResponse struct {
	Products []*domain.Product `json:"products"`
	Total    int               `json:"total"`
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	c, err := h.catalog.GetCategory(r.Context(), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	c, ok := h.decodeCategory(w, r)
	if !ok {
		return
	}
	if err := h.catalog.CreateCategory(r.Context(), c); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	c, ok := h.decodeCategory(w, r)
	if !ok {
		return
	}
	c.ID = id
	if err := h.catalog.UpdateCategory(r.Context(), c); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteCategory(r.Context(), id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) decodeCategory(w http.ResponseWriter, r *http.Request) (*domain.Category, bool) {
	var req CategoryRequestDTO
	if !decodeJSON(w, r, &req) {
		return nil, false
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid_name", "name is required")
		return nil, false
	}
	slug := slugify(req.Slug)
	if slug == "" {
		slug = slugify(req.Name)
	}
	if slug == "" {
		respondError(w, http.StatusBadRequest, "invalid_slug", "slug must contain letters or digits")
		return nil, false
	}
	return &domain.Category{Name: req.Name, Slug: slug, Description: req.Description}, true
}

// slugify lower-cases s and joins its alphanumeric runs with '-'.
func slugify(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return strings.Join(fields, "-")
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	f, ok := parseProductFilter(w, r)
	if !ok {
		return
	}
	products, err := h.catalog.ListProducts(r.Context(), f)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, ProductsResponse{Products: products, Total: len(products)})
}

// SearchProducts filters the catalog, drops products the query matches
// nowhere and orders the rest title matches first, then description, then
// features.
func (h *CatalogHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	f, ok := parseProductFilter(w, r)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")

	products, err := h.catalog.ListProducts(r.Context(), f)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	if strings.TrimSpace(query) != "" {
		matched := products[:0]
		for _, p := range products {
			if search.Matches(query, searchItem(p)) {
				matched = append(matched, p)
			}
		}
		products = search.Rank(query, matched, searchItem)
	}
	respondJSON(w, http.StatusOK, ProductsResponse{Products: products, Total: len(products)})
}

func searchItem(p *domain.Product) search.Item {
	return search.Item{Title: p.Title, Description: p.Description, Features: p.Features}
}

func parseProductFilter(w http.ResponseWriter, r *http.Request) (repository.ProductFilter, bool) {
	var f repository.ProductFilter
	q := r.URL.Query()

	if raw := q.Get("category"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_category", "category must be a positive integer")
			return f, false
		}
		f.CategoryID = id
	}
	for _, bound := range []struct {
		name string
		dst  **decimal.Decimal
	}{
		{"min_price", &f.MinPrice},
		{"max_price", &f.MaxPrice},
	} {
		raw := q.Get(bound.name)
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			respondError(w, http.StatusBadRequest, "invalid_"+bound.name, bound.name+" must be a non-negative number")
			return f, false
		}
		*bound.dst = &v
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		respondError(w, http.StatusBadRequest, "invalid_price_range", "min_price must not exceed max_price")
		return f, false
	}
	if raw := q.Get("in_stock"); raw != "" {
		inStock, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_in_stock", "in_stock must be a boolean")
			return f, false
		}
		f.InStock = inStock
	}
	return f, true
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	p, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}
	if err := h.catalog.CreateProduct(r.Context(), p); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	p, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}
	p.ID = id
	if err := h.catalog.UpdateProduct(r.Context(), p); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) decodeProduct(w http.ResponseWriter, r *http.Request) (*domain.Product, bool) {
	var req ProductRequestDTO
	if !decodeJSON(w, r, &req) {
		return nil, false
	}
	req.Title = strings.TrimSpace(req.Title)
	switch {
	case req.CategoryID <= 0:
		respondError(w, http.StatusBadRequest, "invalid_category", "category_id must be positive")
		return nil, false
	case req.Title == "":
		respondError(w, http.StatusBadRequest, "invalid_title", "title is required")
		return nil, false
	case req.Price.IsNegative():
		respondError(w, http.StatusBadRequest, "invalid_price", "price must not be negative")
		return nil, false
	case req.Stock < 0:
		respondError(w, http.StatusBadRequest, "invalid_stock", "stock must not be negative")
		return nil, false
	}
	plan, err := pricing.ParsePlan(req.Plan)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_plan", err.Error())
		return nil, false
	}
	features := req.Features
	if features == nil {
		features = []string{}
	}
	return &domain.Product{
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Features:    features,
		Price:       req.Price,
		Plan:        plan,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	}, true
}
