package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"productflow/internal/domain"
)

// Envelope wraps every response of the partner API.
type Envelope struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Count   *int         `json:"count,omitempty"`
	Message string       `json:"message,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

func respondEnvelope(w http.ResponseWriter, code int, data any, message string) {
	respondWithJSON(w, code, Envelope{Success: true, Data: data, Message: message})
}

func respondEnvelopeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	count := len(items)
	respondWithJSON(w, http.StatusOK, Envelope{Success: true, Data: items, Count: &count})
}

func respondEnvelopeError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, Envelope{Success: false, Message: message})
}

func (h *HTTPHandler) externalStoreError(w http.ResponseWriter, r *http.Request, op string, err error, fallback string) {
	status, msg := storeErrorStatus(err, fallback)
	h.logStoreError(r, op, status, err)
	respondEnvelopeError(w, status, msg)
}

func (h *HTTPHandler) externalValidation(w http.ResponseWriter, err error) {
	respondWithJSON(w, http.StatusBadRequest, Envelope{Success: false, Message: "Invalid input data", Errors: fieldErrors(err)})
}

// --- External Product Handlers ---

func (h *HTTPHandler) ExternalListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListProducts(r.Context(), filterFromQuery(r))
	if err != nil {
		h.externalStoreError(w, r, "ListProducts", err, "Failed to fetch products")
		return
	}
	respondEnvelopeList(w, products)
}

func (h *HTTPHandler) ExternalGetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseID(r, "id")
	if !ok {
		respondEnvelopeError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	product, err := h.store.GetProductByID(r.Context(), productID)
	if err != nil {
		h.externalStoreError(w, r, "GetProductByID", err, "Failed to fetch product")
		return
	}
	respondEnvelope(w, http.StatusOK, product, "")
}

func (h *HTTPHandler) ExternalGetProductBySKU(w http.ResponseWriter, r *http.Request) {
	sku := strings.TrimSpace(chi.URLParam(r, "sku"))
	if sku == "" {
		respondEnvelopeError(w, http.StatusBadRequest, "Invalid SKU")
		return
	}

	product, err := h.store.GetProductBySKU(r.Context(), sku)
	if err != nil {
		h.externalStoreError(w, r, "GetProductBySKU", err, "Failed to fetch product")
		return
	}
	respondEnvelope(w, http.StatusOK, product, "")
}

func (h *HTTPHandler) ExternalCreateProduct(w http.ResponseWriter, r *http.Request) {
	var input ProductCreateInput
	if err := decodeJSON(r, &input); err != nil {
		respondEnvelopeError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(input); err != nil {
		h.externalValidation(w, err)
		return
	}

	created, err := h.createProduct(r.Context(), input)
	if err != nil {
		h.externalStoreError(w, r, "CreateProduct", err, "Failed to create product")
		return
	}
	respondEnvelope(w, http.StatusCreated, created, "Product created successfully")
}

// ExternalUpdateProduct applies only the supplied fields, like the internal PATCH.
func (h *HTTPHandler) ExternalUpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseID(r, "id")
	if !ok {
		respondEnvelopeError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var input ProductPatchInput
	if err := decodeJSON(r, &input); err != nil {
		respondEnvelopeError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(input); err != nil {
		h.externalValidation(w, err)
		return
	}

	updated, err := h.patchProduct(r.Context(), productID, input)
	if err != nil {
		h.externalStoreError(w, r, "UpdateProduct", err, "Failed to update product")
		return
	}
	respondEnvelope(w, http.StatusOK, updated, "Product updated successfully")
}

func (h *HTTPHandler) ExternalDeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseID(r, "id")
	if !ok {
		respondEnvelopeError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	if err := h.deleteProduct(r.Context(), productID); err != nil {
		h.externalStoreError(w, r, "DeleteProduct", err, "Failed to delete product")
		return
	}
	respondEnvelope(w, http.StatusOK, nil, "Product deleted successfully")
}

// --- External Category Handlers ---

// CategoryCreateInput defines the expected input for creating a category.
type CategoryCreateInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description" validate:"omitnil,max=500"`
	Color       *string `json:"color" validate:"omitnil,max=30"`
}

// CategoryUpdateInput defines the expected input for a partial category update.
type CategoryUpdateInput struct {
	Name        *string `json:"name" validate:"omitnil,min=1,max=100"`
	Description *string `json:"description" validate:"omitnil,max=500"`
	Color       *string `json:"color" validate:"omitnil,max=30"`
}

func (h *HTTPHandler) ExternalListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		h.externalStoreError(w, r, "ListCategories", err, "Failed to fetch categories")
		return
	}
	respondEnvelopeList(w, categories)
}

func (h *HTTPHandler) ExternalGetCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := parseID(r, "id")
	if !ok {
		respondEnvelopeError(w, http.StatusBadRequest, "Invalid category ID")
		return
	}

	category, err := h.store.GetCategoryByID(r.Context(), categoryID)
	if err != nil {
		h.externalStoreError(w, r, "GetCategoryByID", err, "Failed to fetch category")
		return
	}
	respondEnvelope(w, http.StatusOK, category, "")
}

func (h *HTTPHandler) ExternalCreateCategory(w http.ResponseWriter, r *http.Request) {
	var input CategoryCreateInput
	if err := decodeJSON(r, &input); err != nil {
		respondEnvelopeError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(input); err != nil {
		h.externalValidation(w, err)
		return
	}

	category := &domain.Category{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Color:       input.Color,
	}

	created, err := h.store.CreateCategory(r.Context(), category)
	if err != nil {
		h.externalStoreError(w, r, "CreateCategory", err, "Failed to create category")
		return
	}
	respondEnvelope(w, http.StatusCreated, created, "Category created successfully")
}

func (h *HTTPHandler) ExternalUpdateCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := parseID(r, "id")
	if !ok {
		respondEnvelopeError(w, http.StatusBadRequest, "Invalid category ID")
		return
	}

	var input CategoryUpdateInput
	if err := decodeJSON(r, &input); err != nil {
		respondEnvelopeError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(input); err != nil {
		h.externalValidation(w, err)
		return
	}

	existing, err := h.store.GetCategoryByID(r.Context(), categoryID)
	if err != nil {
		h.externalStoreError(w, r, "UpdateCategory", err, "Failed to update category")
		return
	}
	domain.CategoryPatch{Name: input.Name, Description: input.Description, Color: input.Color}.Apply(existing)

	updated, err := h.store.UpdateCategory(r.Context(), existing)
	if err != nil {
		h.externalStoreError(w, r, "UpdateCategory", err, "Failed to update category")
		return
	}
	respondEnvelope(w, http.StatusOK, updated, "Category updated successfully")
}

func (h *HTTPHandler) ExternalDeleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := parseID(r, "id")
	if !ok {
		respondEnvelopeError(w, http.StatusBadRequest, "Invalid category ID")
		return
	}

	if err := h.store.DeleteCategory(r.Context(), categoryID); err != nil {
		h.externalStoreError(w, r, "DeleteCategory", err, "Failed to delete category")
		return
	}
	respondEnvelope(w, http.StatusOK, nil, "Category deleted successfully")
}

func (h *HTTPHandler) registerExternalRoutes(r chi.Router) {
	r.Use(APIKeyGate(h.apiKey))

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ExternalListProducts)
		r.Post("/", h.ExternalCreateProduct)
		r.Get("/sku/{sku}", h.ExternalGetProductBySKU)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.ExternalGetProduct)
			r.Put("/", h.ExternalUpdateProduct)
			r.Delete("/", h.ExternalDeleteProduct)
		})
	})

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.ExternalListCategories)
		r.Post("/", h.ExternalCreateCategory)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.ExternalGetCategory)
			r.Put("/", h.ExternalUpdateCategory)
			r.Delete("/", h.ExternalDeleteCategory)
		})
	})
}
