package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"productflow/internal/domain"
)

// MemoryStore keeps the catalog in process memory. It is used for local development
// and tests, and satisfies the same contract as PostgresStore.
type MemoryStore struct {
	mu sync.RWMutex

	products   map[int64]domain.Product
	offerings  map[int64]domain.ProductOffering
	categories map[int64]domain.Category
	users      map[int64]domain.User

	nextProductID  int64
	nextOfferingID int64
	nextCategoryID int64
	nextUserID     int64

	now func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:       make(map[int64]domain.Product),
		offerings:      make(map[int64]domain.ProductOffering),
		categories:     make(map[int64]domain.Category),
		users:          make(map[int64]domain.User),
		nextProductID:  1,
		nextOfferingID: 1,
		nextCategoryID: 1,
		nextUserID:     1,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// --- ProductStorer Implementation ---

func (s *MemoryStore) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.ProductWithOfferings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ProductWithOfferings, 0, len(s.products))
	for _, p := range s.products {
		if !filter.Matches(p) {
			continue
		}
		out = append(out, domain.ProductWithOfferings{Product: p, Offerings: s.offeringsOfLocked(p.ID)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetProductByID(ctx context.Context, id int64) (*domain.ProductWithOfferings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &domain.ProductWithOfferings{Product: p, Offerings: s.offeringsOfLocked(id)}, nil
}

func (s *MemoryStore) GetProductBySKU(ctx context.Context, sku string) (*domain.ProductWithOfferings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.SKU == sku {
			return &domain.ProductWithOfferings{Product: p, Offerings: s.offeringsOfLocked(p.ID)}, nil
		}
	}
	return nil, ErrProductNotFound
}

func (s *MemoryStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.skuTakenLocked(product.SKU, 0) {
		return nil, ErrProductSKUExists
	}

	p := *product
	p.ID = s.nextProductID
	s.nextProductID++
	p.ReportingTags = cloneStrings(p.ReportingTags)
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	s.products[p.ID] = p
	return &p, nil
}

func (s *MemoryStore) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, ErrProductNotFound
	}
	if s.skuTakenLocked(product.SKU, product.ID) {
		return nil, ErrProductSKUExists
	}

	p := *product
	p.ReportingTags = cloneStrings(p.ReportingTags)
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	s.products[p.ID] = p
	return &p, nil
}

func (s *MemoryStore) DeleteProduct(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return ErrProductNotFound
	}
	for oid, o := range s.offerings {
		if o.ProductID == id {
			delete(s.offerings, oid)
		}
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryStore) skuTakenLocked(sku string, exceptID int64) bool {
	for id, p := range s.products {
		if id != exceptID && p.SKU == sku {
			return true
		}
	}
	return false
}

// --- OfferingStorer Implementation ---

func (s *MemoryStore) ListOfferings(ctx context.Context) ([]domain.ProductOffering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ProductOffering, 0, len(s.offerings))
	for _, o := range s.offerings {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListOfferingsByProduct(ctx context.Context, productID int64) ([]domain.ProductOffering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.products[productID]; !ok {
		return nil, ErrProductNotFound
	}
	return s.offeringsOfLocked(productID), nil
}

func (s *MemoryStore) GetOfferingByID(ctx context.Context, id int64) (*domain.ProductOffering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.offerings[id]
	if !ok {
		return nil, ErrOfferingNotFound
	}
	return &o, nil
}

func (s *MemoryStore) CreateOffering(ctx context.Context, offering *domain.ProductOffering) (*domain.ProductOffering, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[offering.ProductID]; !ok {
		return nil, ErrProductNotFound
	}

	o := *offering
	o.ID = s.nextOfferingID
	s.nextOfferingID++
	o.CreatedAt = s.now()
	o.UpdatedAt = o.CreatedAt
	s.offerings[o.ID] = o
	return &o, nil
}

func (s *MemoryStore) UpdateOffering(ctx context.Context, offering *domain.ProductOffering) (*domain.ProductOffering, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.offerings[offering.ID]
	if !ok {
		return nil, ErrOfferingNotFound
	}

	o := *offering
	o.ProductID = existing.ProductID
	o.CreatedAt = existing.CreatedAt
	o.UpdatedAt = s.now()
	s.offerings[o.ID] = o
	return &o, nil
}

func (s *MemoryStore) DeleteOffering(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.offerings[id]; !ok {
		return ErrOfferingNotFound
	}
	delete(s.offerings, id)
	return nil
}

func (s *MemoryStore) offeringsOfLocked(productID int64) []domain.ProductOffering {
	out := []domain.ProductOffering{}
	for _, o := range s.offerings {
		if o.ProductID == productID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- CategoryStorer Implementation ---

func (s *MemoryStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	return &c, nil
}

func (s *MemoryStore) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.categoryNameTakenLocked(category.Name, 0) {
		return nil, ErrCategoryNameExists
	}

	c := *category
	c.ID = s.nextCategoryID
	s.nextCategoryID++
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.categories[c.ID] = c
	return &c, nil
}

func (s *MemoryStore) UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.categories[category.ID]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	if s.categoryNameTakenLocked(category.Name, category.ID) {
		return nil, ErrCategoryNameExists
	}

	c := *category
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.now()
	s.categories[c.ID] = c
	return &c, nil
}

func (s *MemoryStore) DeleteCategory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return ErrCategoryNotFound
	}
	delete(s.categories, id)
	return nil
}

func (s *MemoryStore) categoryNameTakenLocked(name string, exceptID int64) bool {
	for id, c := range s.categories {
		if id != exceptID && c.Name == name {
			return true
		}
	}
	return false
}

// --- UserStorer Implementation ---

func (s *MemoryStore) CreateUser(ctx context.Context, username string, passwordHash []byte) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return nil, ErrUsernameExists
		}
	}

	u := domain.User{
		ID:           s.nextUserID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    s.now(),
	}
	s.nextUserID++
	s.users[u.ID] = u
	return &u, nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
