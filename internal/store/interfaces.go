package store

import (
	"context"
	"errors"

	"productflow/internal/domain"
)

// Predefined errors for store operations
var (
	ErrProductNotFound    = errors.New("store: product not found")
	ErrProductSKUExists   = errors.New("store: product SKU already exists")
	ErrOfferingNotFound   = errors.New("store: offering not found")
	ErrCategoryNotFound   = errors.New("store: category not found")
	ErrCategoryNameExists = errors.New("store: category name already exists")
	ErrUserNotFound       = errors.New("store: user not found")
	ErrUsernameExists     = errors.New("store: username already exists")
)

// ProductStorer defines the storage operations for products.
// Reads return products with their offerings attached.
type ProductStorer interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.ProductWithOfferings, error)
	GetProductByID(ctx context.Context, id int64) (*domain.ProductWithOfferings, error)
	GetProductBySKU(ctx context.Context, sku string) (*domain.ProductWithOfferings, error)
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	// DeleteProduct removes the product and every offering that references it.
	DeleteProduct(ctx context.Context, id int64) error
}

// OfferingStorer defines the storage operations for product offerings.
type OfferingStorer interface {
	ListOfferings(ctx context.Context) ([]domain.ProductOffering, error)
	ListOfferingsByProduct(ctx context.Context, productID int64) ([]domain.ProductOffering, error)
	GetOfferingByID(ctx context.Context, id int64) (*domain.ProductOffering, error)
	// CreateOffering fails with ErrProductNotFound when the owning product does not exist.
	CreateOffering(ctx context.Context, offering *domain.ProductOffering) (*domain.ProductOffering, error)
	UpdateOffering(ctx context.Context, offering *domain.ProductOffering) (*domain.ProductOffering, error)
	DeleteOffering(ctx context.Context, id int64) error
}

// CategoryStorer defines the storage operations for stored categories.
type CategoryStorer interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error)
	CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

// UserStorer defines the storage operations for back-office users.
type UserStorer interface {
	CreateUser(ctx context.Context, username string, passwordHash []byte) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
}

// Store is the full storage surface used by the service.
type Store interface {
	ProductStorer
	OfferingStorer
	CategoryStorer
	UserStorer
	Ping(ctx context.Context) error
	Close() error
}
