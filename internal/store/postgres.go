package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"productflow/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const productColumns = `id, product_name, sku, product_type, format, lifecycle_status, membership_flag,
	membership_entitlements, bundle_entitlements, revenue_recognition_code, reporting_tags, created_at, updated_at`

const offeringColumns = `id, product_id, brand, professions, delivery_method, access_period, access_period_type,
	price, currency, pricing_model, commercial_availability, channel_visibility, approved_jurisdictions,
	credit_eligibility, created_at, updated_at`

// PostgresStore implements Store on top of PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner, p *domain.Product) error {
	return row.Scan(
		&p.ID, &p.Name, &p.SKU, &p.ProductType, &p.Format, &p.LifecycleStatus, &p.MembershipFlag,
		&p.MembershipEntitlements, &p.BundleEntitlements, &p.RevenueRecognitionCode, pq.Array(&p.ReportingTags),
		&p.CreatedAt, &p.UpdatedAt,
	)
}

func scanOffering(row rowScanner, o *domain.ProductOffering) error {
	return row.Scan(
		&o.ID, &o.ProductID, &o.Brand, pq.Array(&o.Professions), &o.DeliveryMethod, &o.AccessPeriod, &o.AccessPeriodType,
		&o.Price, &o.Currency, &o.PricingModel, &o.CommercialAvailability, pq.Array(&o.ChannelVisibility),
		pq.Array(&o.ApprovedJurisdictions), &o.CreditEligibility, &o.CreatedAt, &o.UpdatedAt,
	)
}

func isPgError(err error, code string) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == code {
		return pqErr, true
	}
	return nil, false
}

// --- ProductStorer Implementation ---

// buildProductFilter turns a ProductFilter into a WHERE clause and its arguments.
func buildProductFilter(filter domain.ProductFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.ProductType != "" {
		add("product_type = $%d", filter.ProductType)
	}
	if filter.LifecycleStatus != "" {
		add("lifecycle_status = $%d", filter.LifecycleStatus)
	}
	if filter.Format != "" {
		add("format = $%d", filter.Format)
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(product_name ILIKE $%d OR sku ILIKE $%d)", n, n))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *PostgresStore) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.ProductWithOfferings, error) {
	where, args := buildProductFilter(filter)
	query := "SELECT " + productColumns + " FROM products" + where + " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: ListProducts failed to query products: %w", err)
	}
	defer rows.Close()

	products := []domain.ProductWithOfferings{}
	ids := []int64{}
	for rows.Next() {
		var p domain.ProductWithOfferings
		if err := scanProduct(rows, &p.Product); err != nil {
			return nil, fmt.Errorf("store: ListProducts failed to scan product row: %w", err)
		}
		p.Offerings = []domain.ProductOffering{}
		products = append(products, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListProducts iteration error: %w", err)
	}
	if len(products) == 0 {
		return products, nil
	}

	offerings, err := s.queryOfferings(ctx,
		"SELECT "+offeringColumns+" FROM product_offerings WHERE product_id = ANY($1) ORDER BY id ASC",
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("store: ListProducts failed to load offerings: %w", err)
	}

	index := make(map[int64]int, len(products))
	for i, p := range products {
		index[p.ID] = i
	}
	for _, o := range offerings {
		if i, ok := index[o.ProductID]; ok {
			products[i].Offerings = append(products[i].Offerings, o)
		}
	}
	return products, nil
}

func (s *PostgresStore) GetProductByID(ctx context.Context, id int64) (*domain.ProductWithOfferings, error) {
	return s.getProduct(ctx, "id", id)
}

func (s *PostgresStore) GetProductBySKU(ctx context.Context, sku string) (*domain.ProductWithOfferings, error) {
	return s.getProduct(ctx, "sku", sku)
}

func (s *PostgresStore) getProduct(ctx context.Context, column string, value any) (*domain.ProductWithOfferings, error) {
	query := "SELECT " + productColumns + " FROM products WHERE " + column + " = $1"

	var p domain.ProductWithOfferings
	if err := scanProduct(s.db.QueryRowContext(ctx, query, value), &p.Product); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: getProduct by %s failed to scan row: %w", column, err)
	}

	offerings, err := s.queryOfferings(ctx,
		"SELECT "+offeringColumns+" FROM product_offerings WHERE product_id = $1 ORDER BY id ASC", p.ID)
	if err != nil {
		return nil, fmt.Errorf("store: getProduct failed to load offerings: %w", err)
	}
	p.Offerings = offerings
	return &p, nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `
		INSERT INTO products
			(product_name, sku, product_type, format, lifecycle_status, membership_flag,
			 membership_entitlements, bundle_entitlements, revenue_recognition_code, reporting_tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + productColumns

	row := s.db.QueryRowContext(ctx, query,
		product.Name, product.SKU, product.ProductType, product.Format, product.LifecycleStatus, product.MembershipFlag,
		product.MembershipEntitlements, product.BundleEntitlements, product.RevenueRecognitionCode,
		pq.Array(product.ReportingTags),
	)

	var created domain.Product
	if err := scanProduct(row, &created); err != nil {
		if _, ok := isPgError(err, pgUniqueViolation); ok {
			return nil, ErrProductSKUExists
		}
		return nil, fmt.Errorf("store: CreateProduct failed to scan row: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `
		UPDATE products
		SET product_name = $1, sku = $2, product_type = $3, format = $4, lifecycle_status = $5,
			membership_flag = $6, membership_entitlements = $7, bundle_entitlements = $8,
			revenue_recognition_code = $9, reporting_tags = $10, updated_at = CURRENT_TIMESTAMP
		WHERE id = $11
		RETURNING ` + productColumns

	row := s.db.QueryRowContext(ctx, query,
		product.Name, product.SKU, product.ProductType, product.Format, product.LifecycleStatus, product.MembershipFlag,
		product.MembershipEntitlements, product.BundleEntitlements, product.RevenueRecognitionCode,
		pq.Array(product.ReportingTags), product.ID,
	)

	var updated domain.Product
	if err := scanProduct(row, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		if _, ok := isPgError(err, pgUniqueViolation); ok {
			return nil, ErrProductSKUExists
		}
		return nil, fmt.Errorf("store: UpdateProduct failed to scan row: %w", err)
	}
	return &updated, nil
}

// DeleteProduct relies on the ON DELETE CASCADE foreign key to drop the offerings.
func (s *PostgresStore) DeleteProduct(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// --- OfferingStorer Implementation ---

func (s *PostgresStore) queryOfferings(ctx context.Context, query string, args ...any) ([]domain.ProductOffering, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offerings := []domain.ProductOffering{}
	for rows.Next() {
		var o domain.ProductOffering
		if err := scanOffering(rows, &o); err != nil {
			return nil, err
		}
		offerings = append(offerings, o)
	}
	return offerings, rows.Err()
}

func (s *PostgresStore) ListOfferings(ctx context.Context) ([]domain.ProductOffering, error) {
	offerings, err := s.queryOfferings(ctx, "SELECT "+offeringColumns+" FROM product_offerings ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("store: ListOfferings failed: %w", err)
	}
	return offerings, nil
}

func (s *PostgresStore) ListOfferingsByProduct(ctx context.Context, productID int64) ([]domain.ProductOffering, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("store: ListOfferingsByProduct failed to check product: %w", err)
	}
	if !exists {
		return nil, ErrProductNotFound
	}

	offerings, err := s.queryOfferings(ctx,
		"SELECT "+offeringColumns+" FROM product_offerings WHERE product_id = $1 ORDER BY id ASC", productID)
	if err != nil {
		return nil, fmt.Errorf("store: ListOfferingsByProduct failed: %w", err)
	}
	return offerings, nil
}

func (s *PostgresStore) GetOfferingByID(ctx context.Context, id int64) (*domain.ProductOffering, error) {
	query := "SELECT " + offeringColumns + " FROM product_offerings WHERE id = $1"

	var o domain.ProductOffering
	if err := scanOffering(s.db.QueryRowContext(ctx, query, id), &o); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferingNotFound
		}
		return nil, fmt.Errorf("store: GetOfferingByID failed to scan row: %w", err)
	}
	return &o, nil
}

func (s *PostgresStore) CreateOffering(ctx context.Context, offering *domain.ProductOffering) (*domain.ProductOffering, error) {
	query := `
		INSERT INTO product_offerings
			(product_id, brand, professions, delivery_method, access_period, access_period_type, price, currency,
			 pricing_model, commercial_availability, channel_visibility, approved_jurisdictions, credit_eligibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + offeringColumns

	row := s.db.QueryRowContext(ctx, query,
		offering.ProductID, offering.Brand, pq.Array(offering.Professions), offering.DeliveryMethod,
		offering.AccessPeriod, offering.AccessPeriodType, offering.Price, offering.Currency, offering.PricingModel,
		offering.CommercialAvailability, pq.Array(offering.ChannelVisibility), pq.Array(offering.ApprovedJurisdictions),
		offering.CreditEligibility,
	)

	var created domain.ProductOffering
	if err := scanOffering(row, &created); err != nil {
		if _, ok := isPgError(err, pgForeignKeyViolation); ok {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: CreateOffering failed to scan row: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) UpdateOffering(ctx context.Context, offering *domain.ProductOffering) (*domain.ProductOffering, error) {
	query := `
		UPDATE product_offerings
		SET brand = $1, professions = $2, delivery_method = $3, access_period = $4, access_period_type = $5,
			price = $6, currency = $7, pricing_model = $8, commercial_availability = $9, channel_visibility = $10,
			approved_jurisdictions = $11, credit_eligibility = $12, updated_at = CURRENT_TIMESTAMP
		WHERE id = $13
		RETURNING ` + offeringColumns

	row := s.db.QueryRowContext(ctx, query,
		offering.Brand, pq.Array(offering.Professions), offering.DeliveryMethod, offering.AccessPeriod,
		offering.AccessPeriodType, offering.Price, offering.Currency, offering.PricingModel,
		offering.CommercialAvailability, pq.Array(offering.ChannelVisibility), pq.Array(offering.ApprovedJurisdictions),
		offering.CreditEligibility, offering.ID,
	)

	var updated domain.ProductOffering
	if err := scanOffering(row, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferingNotFound
		}
		return nil, fmt.Errorf("store: UpdateOffering failed to scan row: %w", err)
	}
	return &updated, nil
}

func (s *PostgresStore) DeleteOffering(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM product_offerings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: DeleteOffering failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteOffering failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOfferingNotFound
	}
	return nil
}
