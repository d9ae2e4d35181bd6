package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"productflow/internal/domain"
)

var (
	productRowColumns = []string{
		"id", "product_name", "sku", "product_type", "format", "lifecycle_status", "membership_flag",
		"membership_entitlements", "bundle_entitlements", "revenue_recognition_code", "reporting_tags",
		"created_at", "updated_at",
	}
	offeringRowColumns = []string{
		"id", "product_id", "brand", "professions", "delivery_method", "access_period", "access_period_type",
		"price", "currency", "pricing_model", "commercial_availability", "channel_visibility",
		"approved_jurisdictions", "credit_eligibility", "created_at", "updated_at",
	}
)

func productRow(rows *sqlmock.Rows, id int64, name, sku, productType string, now time.Time) *sqlmock.Rows {
	return rows.AddRow(id, name, sku, productType, "digital", "active", false, nil, nil, nil, "{finance,cpe}", now, now)
}

func offeringRow(rows *sqlmock.Rows, id, productID int64, brand any, price any, now time.Time) *sqlmock.Rows {
	return rows.AddRow(id, productID, brand, "{cpa}", "online", int64(12), "months", price, "USD", nil,
		true, "{web}", "{US}", false, now, now)
}

func TestBuildProductFilter(t *testing.T) {
	where, args := buildProductFilter(domain.ProductFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildProductFilter(domain.ProductFilter{
		ProductType:     "course",
		LifecycleStatus: "active",
		Format:          "digital",
		Search:          "50%_off",
	})
	assert.Equal(t,
		" WHERE product_type = $1 AND lifecycle_status = $2 AND format = $3 AND (product_name ILIKE $4 OR sku ILIKE $4)",
		where)
	assert.Equal(t, []any{"course", "active", "digital", `%50\%\_off%`}, args)
}

func TestPostgresStore_ListProducts_WithOfferings(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)

	products := sqlmock.NewRows(productRowColumns)
	productRow(products, 1, "Intro to Tax", "TAX-101", "course", now)
	productRow(products, 2, "Intro to Audit", "AUD-101", "course", now)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM products WHERE product_type = $1 AND (product_name ILIKE $2 OR sku ILIKE $2) ORDER BY id ASC`)).
		WithArgs("course", "%intro%").
		WillReturnRows(products)

	offerings := sqlmock.NewRows(offeringRowColumns)
	offeringRow(offerings, 10, 1, "Acme", "49.99", now)
	offeringRow(offerings, 11, 1, nil, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM product_offerings WHERE product_id = ANY($1) ORDER BY id ASC`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(offerings)

	result, err := store.ListProducts(context.Background(), domain.ProductFilter{ProductType: "course", Search: "intro"})

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "TAX-101", result[0].SKU)
	assert.Equal(t, []string{"finance", "cpe"}, result[0].ReportingTags)
	require.Len(t, result[0].Offerings, 2)
	assert.Equal(t, PtrTo("Acme"), result[0].Offerings[0].Brand)
	assert.True(t, result[0].Offerings[0].Price.Valid)
	assert.True(t, decimal.RequireFromString("49.99").Equal(result[0].Offerings[0].Price.Decimal))
	assert.Equal(t, PtrTo(int32(12)), result[0].Offerings[0].AccessPeriod)
	assert.Nil(t, result[0].Offerings[1].Brand)
	assert.False(t, result[0].Offerings[1].Price.Valid)
	assert.NotNil(t, result[1].Offerings)
	assert.Empty(t, result[1].Offerings)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProducts_EmptySkipsOfferingQuery(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM products ORDER BY id ASC`)).
		WillReturnRows(sqlmock.NewRows(productRowColumns))

	result, err := store.ListProducts(context.Background(), domain.ProductFilter{})

	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProductByID_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM products WHERE id = $1`)).
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)

	product, err := store.GetProductByID(context.Background(), 42)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductNotFound))
	assert.Nil(t, product)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProductBySKU(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM products WHERE sku = $1`)).
		WithArgs("TAX-101").
		WillReturnRows(productRow(sqlmock.NewRows(productRowColumns), 1, "Intro to Tax", "TAX-101", "course", now))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM product_offerings WHERE product_id = $1 ORDER BY id ASC`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(offeringRowColumns))

	product, err := store.GetProductBySKU(context.Background(), "TAX-101")

	require.NoError(t, err)
	assert.Equal(t, int64(1), product.ID)
	assert.Empty(t, product.Offerings)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateProduct(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	toCreate := &domain.Product{
		Name:            "Intro to Tax",
		SKU:             "TAX-101",
		ProductType:     "course",
		Format:          "digital",
		LifecycleStatus: "active",
		ReportingTags:   []string{"finance", "cpe"},
	}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO products`)).
		WithArgs("Intro to Tax", "TAX-101", "course", "digital", "active", false, nil, nil, nil, sqlmock.AnyArg()).
		WillReturnRows(productRow(sqlmock.NewRows(productRowColumns), 1, "Intro to Tax", "TAX-101", "course", now))

	created, err := store.CreateProduct(context.Background(), toCreate)

	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "TAX-101", created.SKU)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateProduct_DuplicateSKU(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO products`)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "products_sku_key"})

	created, err := store.CreateProduct(context.Background(), &domain.Product{Name: "Dup", SKU: "TAX-101"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductSKUExists))
	assert.Nil(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProduct_DuplicateSKU(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE products`)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "products_sku_key"})

	updated, err := store.UpdateProduct(context.Background(), &domain.Product{ID: 2, Name: "Other", SKU: "TAX-101"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductSKUExists))
	assert.Nil(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteProduct(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM products WHERE id = $1`)).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM products WHERE id = $1`)).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.DeleteProduct(context.Background(), 1))
	err := store.DeleteProduct(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrProductNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateOffering_MissingProduct(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO product_offerings`)).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "product_offerings_product_id_fkey"})

	created, err := store.CreateOffering(context.Background(), &domain.ProductOffering{ProductID: 999, Currency: "USD"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductNotFound))
	assert.Nil(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListOfferingsByProduct_MissingProduct(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	offerings, err := store.ListOfferingsByProduct(context.Background(), 3)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductNotFound))
	assert.Nil(t, offerings)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateOffering_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE product_offerings`)).
		WillReturnError(sql.ErrNoRows)

	updated, err := store.UpdateOffering(context.Background(), &domain.ProductOffering{ID: 8, Currency: "USD"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOfferingNotFound))
	assert.Nil(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}
