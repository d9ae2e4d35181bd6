package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"productflow/internal/analytics"
	"productflow/internal/auth"
	"productflow/internal/domain"
	"productflow/internal/events"
	"productflow/internal/store"
)

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	store     store.Store
	publisher events.Publisher
	tokens    *auth.TokenMaker
	apiKey    string
	logger    *zap.Logger
	validate  *validator.Validate
	now       func() time.Time
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
// A nil publisher drops product events.
func NewHTTPHandler(s store.Store, apiKey string, tokens *auth.TokenMaker, publisher events.Publisher, logger *zap.Logger) *HTTPHandler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		store:     s,
		publisher: publisher,
		tokens:    tokens,
		apiKey:    apiKey,
		logger:    logger,
		validate:  newValidator(),
		now:       time.Now,
	}
}

// newValidator reports fields by their json names and validates decimals as float64.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Message: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	if payload == nil {
		w.WriteHeader(code)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// fieldErrors flattens validator output into FieldErrors. Other errors yield nil.
func fieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s failed on the '%s=%s' rule", fe.Field(), fe.Tag(), fe.Param())
		}
		out = append(out, FieldError{Field: fe.Field(), Rule: fe.Tag(), Message: msg})
	}
	return out
}

func (h *HTTPHandler) respondValidation(w http.ResponseWriter, err error) {
	respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Message: "Validation error", Errors: fieldErrors(err)})
}

// storeErrorStatus maps store sentinels to an HTTP status and a client message.
// Unknown errors map to 500 with fallback.
func storeErrorStatus(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, store.ErrProductNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, store.ErrProductSKUExists):
		return http.StatusConflict, "Product with this SKU already exists"
	case errors.Is(err, store.ErrOfferingNotFound):
		return http.StatusNotFound, "Offering not found"
	case errors.Is(err, store.ErrCategoryNotFound):
		return http.StatusNotFound, "Category not found"
	case errors.Is(err, store.ErrCategoryNameExists):
		return http.StatusConflict, "Category with this name already exists"
	case errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, store.ErrUsernameExists):
		return http.StatusConflict, "Username already taken"
	default:
		return http.StatusInternalServerError, fallback
	}
}

// logStoreError logs at error level only for failures the client cannot fix.
func (h *HTTPHandler) logStoreError(r *http.Request, op string, status int, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("store operation failed", fields...)
		return
	}
	h.logger.Debug("store operation rejected", fields...)
}

func (h *HTTPHandler) storeError(w http.ResponseWriter, r *http.Request, op string, err error, fallback string) {
	status, msg := storeErrorStatus(err, fallback)
	h.logStoreError(r, op, status, err)
	respondWithError(w, status, msg)
}

func parseID(r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func filterFromQuery(r *http.Request) domain.ProductFilter {
	q := r.URL.Query()
	return domain.ProductFilter{
		ProductType:     q.Get("productType"),
		LifecycleStatus: q.Get("lifecycleStatus"),
		Format:          q.Get("format"),
		Search:          q.Get("search"),
	}
}

// publish emits a product event. Failures are logged and never reach the client.
func (h *HTTPHandler) publish(ctx context.Context, eventType string, p domain.Product) {
	if err := h.publisher.Publish(ctx, events.NewProductEvent(eventType, p)); err != nil {
		h.logger.Warn("failed to publish product event",
			zap.String("type", eventType),
			zap.Int64("product_id", p.ID),
			zap.Error(err),
		)
	}
}

// --- Product Handlers ---

// ProductCreateInput defines the expected input for creating a product.
type ProductCreateInput struct {
	Name                   string   `json:"productName" validate:"required,max=255"`
	SKU                    string   `json:"productId" validate:"required,max=100"`
	ProductType            string   `json:"productType" validate:"required,oneof=course book bundle membership"`
	Format                 string   `json:"format" validate:"required,oneof=digital physical"`
	LifecycleStatus        *string  `json:"lifecycleStatus" validate:"omitnil,oneof=draft active retired"`
	MembershipFlag         *bool    `json:"membershipFlag"`
	MembershipEntitlements *string  `json:"membershipEntitlements"`
	BundleEntitlements     *string  `json:"bundleEntitlements"`
	RevenueRecognitionCode *string  `json:"revenueRecognitionCode" validate:"omitnil,max=100"`
	ReportingTags          []string `json:"reportingTags" validate:"omitempty,dive,required,max=100"`
}

func (in ProductCreateInput) toProduct() *domain.Product {
	p := &domain.Product{
		Name:                   strings.TrimSpace(in.Name),
		SKU:                    strings.TrimSpace(in.SKU),
		ProductType:            in.ProductType,
		Format:                 in.Format,
		LifecycleStatus:        domain.LifecycleDraft,
		MembershipEntitlements: in.MembershipEntitlements,
		BundleEntitlements:     in.BundleEntitlements,
		RevenueRecognitionCode: in.RevenueRecognitionCode,
		ReportingTags:          in.ReportingTags,
	}
	if in.LifecycleStatus != nil {
		p.LifecycleStatus = *in.LifecycleStatus
	}
	if in.MembershipFlag != nil {
		p.MembershipFlag = *in.MembershipFlag
	}
	return p
}

// ProductPatchInput defines the expected input for a partial product update.
type ProductPatchInput struct {
	Name                   *string  `json:"productName" validate:"omitnil,min=1,max=255"`
	SKU                    *string  `json:"productId" validate:"omitnil,min=1,max=100"`
	ProductType            *string  `json:"productType" validate:"omitnil,oneof=course book bundle membership"`
	Format                 *string  `json:"format" validate:"omitnil,oneof=digital physical"`
	LifecycleStatus        *string  `json:"lifecycleStatus" validate:"omitnil,oneof=draft active retired"`
	MembershipFlag         *bool    `json:"membershipFlag"`
	MembershipEntitlements *string  `json:"membershipEntitlements"`
	BundleEntitlements     *string  `json:"bundleEntitlements"`
	RevenueRecognitionCode *string  `json:"revenueRecognitionCode" validate:"omitnil,max=100"`
	ReportingTags          []string `json:"reportingTags" validate:"omitempty,dive,required,max=100"`
}

func (in ProductPatchInput) toPatch() domain.ProductPatch {
	return domain.ProductPatch{
		Name:                   in.Name,
		SKU:                    in.SKU,
		ProductType:            in.ProductType,
		Format:                 in.Format,
		LifecycleStatus:        in.LifecycleStatus,
		MembershipFlag:         in.MembershipFlag,
		MembershipEntitlements: in.MembershipEntitlements,
		BundleEntitlements:     in.BundleEntitlements,
		RevenueRecognitionCode: in.RevenueRecognitionCode,
		ReportingTags:          in.ReportingTags,
	}
}

// createProduct stores a new product and announces it.
func (h *HTTPHandler) createProduct(ctx context.Context, in ProductCreateInput) (*domain.ProductWithOfferings, error) {
	created, err := h.store.CreateProduct(ctx, in.toProduct())
	if err != nil {
		return nil, err
	}
	h.publish(ctx, events.TypeProductCreated, *created)
	return &domain.ProductWithOfferings{Product: *created, Offerings: []domain.ProductOffering{}}, nil
}

// patchProduct loads the product, applies the set fields and saves it.
func (h *HTTPHandler) patchProduct(ctx context.Context, id int64, in ProductPatchInput) (*domain.Product, error) {
	existing, err := h.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	product := existing.Product
	in.toPatch().Apply(&product)
	return h.store.UpdateProduct(ctx, &product)
}

// deleteProduct removes the product with its offerings and announces it.
func (h *HTTPHandler) deleteProduct(ctx context.Context, id int64) error {
	existing, err := h.store.GetProductByID(ctx, id)
	if err != nil {
		return err
	}
	if err := h.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	h.publish(ctx, events.TypeProductDeleted, existing.Product)
	return nil
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input ProductCreateInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(input); err != nil {
		h.respondValidation(w, err)
		return
	}

	created, err := h.createProduct(r.Context(), input)
	if err != nil {
		h.storeError(w, r, "CreateProduct", err, "Failed to create product")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListProducts(r.Context(), filterFromQuery(r))
	if err != nil {
		h.storeError(w, r, "ListProducts", err, "Failed to fetch products")
		return
	}
	if products == nil {
		products = []domain.ProductWithOfferings{}
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *HTTPHandler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	product, err := h.store.GetProductByID(r.Context(), productID)
	if err != nil {
		h.storeError(w, r, "GetProductByID", err, "Failed to fetch product")
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var input ProductPatchInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(input); err != nil {
		h.respondValidation(w, err)
		return
	}

	updated, err := h.patchProduct(r.Context(), productID, input)
	if err != nil {
		h.storeError(w, r, "UpdateProduct", err, "Failed to update product")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	if err := h.deleteProduct(r.Context(), productID); err != nil {
		h.storeError(w, r, "DeleteProduct", err, "Failed to delete product")
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

// --- Offering Handlers ---

// OfferingInput is accepted both for creating and for patching an offering. On create,
// unset fields take the defaults (USD, commercially available, not credit eligible).
type OfferingInput struct {
	Brand                  *string          `json:"brand" validate:"omitnil,max=255"`
	Professions            []string         `json:"professions" validate:"omitempty,dive,required,max=100"`
	DeliveryMethod         *string          `json:"deliveryMethod" validate:"omitnil,oneof=online livestream hybrid"`
	AccessPeriod           *int32           `json:"accessPeriod" validate:"omitnil,gte=0"`
	AccessPeriodType       *string          `json:"accessPeriodType" validate:"omitnil,oneof=days months years lifetime"`
	Price                  *decimal.Decimal `json:"price" validate:"omitnil,gte=0,lt=100000000"`
	Currency               *string          `json:"currency" validate:"omitnil,len=3,uppercase"`
	PricingModel           *string          `json:"pricingModel" validate:"omitnil,oneof=one-time subscription usage-based"`
	CommercialAvailability *bool            `json:"commercialAvailability"`
	ChannelVisibility      []string         `json:"channelVisibility" validate:"omitempty,dive,required,max=100"`
	ApprovedJurisdictions  []string         `json:"approvedJurisdictions" validate:"omitempty,dive,required,max=100"`
	CreditEligibility      *bool            `json:"creditEligibility"`
}

func (in OfferingInput) toPatch() domain.OfferingPatch {
	patch := domain.OfferingPatch{
		Brand:                  in.Brand,
		Professions:            in.Professions,
		DeliveryMethod:         in.DeliveryMethod,
		AccessPeriod:           in.AccessPeriod,
		AccessPeriodType:       in.AccessPeriodType,
		Currency:               in.Currency,
		PricingModel:           in.PricingModel,
		CommercialAvailability: in.CommercialAvailability,
		ChannelVisibility:      in.ChannelVisibility,
		ApprovedJurisdictions:  in.ApprovedJurisdictions,
		CreditEligibility:      in.CreditEligibility,
	}
	if in.Price != nil {
		rounded := in.Price.Round(2)
		patch.Price = &rounded
	}
	return patch
}

func (h *HTTPHandler) ListProductOfferings(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	offerings, err := h.store.ListOfferingsByProduct(r.Context(), productID)
	if err != nil {
		h.storeError(w, r, "ListOfferingsByProduct", err, "Failed to fetch offerings")
		return
	}
	respondWithJSON(w, http.StatusOK, offerings)
}

func (h *HTTPHandler) CreateOffering(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var input OfferingInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(input); err != nil {
		h.respondValidation(w, err)
		return
	}

	offering := &domain.ProductOffering{
		ProductID:              productID,
		Currency:               domain.DefaultCurrency,
		CommercialAvailability: true,
	}
	input.toPatch().Apply(offering)

	created, err := h.store.CreateOffering(r.Context(), offering)
	if err != nil {
		h.storeError(w, r, "CreateOffering", err, "Failed to create offering")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) GetOfferingByID(w http.ResponseWriter, r *http.Request) {
	offeringID, ok := parseID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid offering ID")
		return
	}

	offering, err := h.store.GetOfferingByID(r.Context(), offeringID)
	if err != nil {
		h.storeError(w, r, "GetOfferingByID", err, "Failed to fetch offering")
		return
	}
	respondWithJSON(w, http.StatusOK, offering)
}

func (h *HTTPHandler) UpdateOffering(w http.ResponseWriter, r *http.Request) {
	offeringID, ok := parseID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid offering ID")
		return
	}

	var input OfferingInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(input); err != nil {
		h.respondValidation(w, err)
		return
	}

	existing, err := h.store.GetOfferingByID(r.Context(), offeringID)
	if err != nil {
		h.storeError(w, r, "UpdateOffering", err, "Failed to update offering")
		return
	}
	input.toPatch().Apply(existing)

	updated, err := h.store.UpdateOffering(r.Context(), existing)
	if err != nil {
		h.storeError(w, r, "UpdateOffering", err, "Failed to update offering")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteOffering(w http.ResponseWriter, r *http.Request) {
	offeringID, ok := parseID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid offering ID")
		return
	}

	if err := h.store.DeleteOffering(r.Context(), offeringID); err != nil {
		h.storeError(w, r, "DeleteOffering", err, "Failed to delete offering")
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

// --- Reports ---

type catalogReader interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.ProductWithOfferings, error)
	ListOfferings(ctx context.Context) ([]domain.ProductOffering, error)
}

// loadAnalytics reads the whole catalog and aggregates it.
func loadAnalytics(ctx context.Context, s catalogReader, now time.Time) (analytics.Report, error) {
	listed, err := s.ListProducts(ctx, domain.ProductFilter{})
	if err != nil {
		return analytics.Report{}, err
	}
	offerings, err := s.ListOfferings(ctx)
	if err != nil {
		return analytics.Report{}, err
	}
	return analytics.Compute(productsOf(listed), offerings, now), nil
}

func productsOf(listed []domain.ProductWithOfferings) []domain.Product {
	products := make([]domain.Product, len(listed))
	for i := range listed {
		products[i] = listed[i].Product
	}
	return products
}

func (h *HTTPHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	report, err := loadAnalytics(r.Context(), h.store, h.now())
	if err != nil {
		h.storeError(w, r, "GetAnalytics", err, "Failed to fetch analytics")
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

// ListTypeCategories serves categories derived from the product types in use.
func (h *HTTPHandler) ListTypeCategories(w http.ResponseWriter, r *http.Request) {
	listed, err := h.store.ListProducts(r.Context(), domain.ProductFilter{})
	if err != nil {
		h.storeError(w, r, "ListTypeCategories", err, "Failed to fetch categories")
		return
	}
	respondWithJSON(w, http.StatusOK, analytics.TypeCategories(productsOf(listed)))
}

// --- Health ---

func (h *HTTPHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetProductByID)
				r.Patch("/", h.UpdateProduct)
				r.Delete("/", h.DeleteProduct)
				r.Get("/offerings", h.ListProductOfferings)
				r.Post("/offerings", h.CreateOffering)
			})
		})

		r.Route("/offerings/{id}", func(r chi.Router) {
			r.Get("/", h.GetOfferingByID)
			r.Patch("/", h.UpdateOffering)
			r.Delete("/", h.DeleteOffering)
		})

		r.Get("/analytics", h.GetAnalytics)
		r.Get("/categories", h.ListTypeCategories)

		r.Route("/auth", h.registerAuthRoutes)
		r.Route("/external", h.registerExternalRoutes)
	})
}
