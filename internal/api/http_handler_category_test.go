package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"productflow/internal/domain"
	"productflow/internal/store"
)

// MockCategoryStore mocks the category methods of store.Store.
type MockCategoryStore struct {
	store.Store
	mock.Mock
}

func (m *MockCategoryStore) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockCategoryStore) GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockCategoryStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	var categories []domain.Category
	if arg0 := args.Get(0); arg0 != nil {
		categories = arg0.([]domain.Category)
	}
	return categories, args.Error(1)
}

func (m *MockCategoryStore) UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockCategoryStore) DeleteCategory(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var apiKeyHeaders = map[string]string{APIKeyHeader: testAPIKey}

func decodeEnvelope(t *testing.T, data []byte) (Envelope, json.RawMessage) {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	var raw struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	return env, raw.Data
}

func TestHTTPHandler_ExternalCreateCategory(t *testing.T) {
	mockStore := new(MockCategoryStore)
	server := setupTestChiServer(t, mockStore, nil)

	now := time.Now().UTC().Truncate(time.Second)

	t.Run("Success", func(t *testing.T) {
		expected := &domain.Category{ID: 1, Name: "Tax", Color: PtrTo("blue"), CreatedAt: now, UpdatedAt: now}
		mockStore.On("CreateCategory", mock.Anything, mock.MatchedBy(func(c *domain.Category) bool {
			return c.Name == "Tax" && c.Color != nil && *c.Color == "blue"
		})).Return(expected, nil).Once()

		resp, data := doJSON(t, http.MethodPost, server.URL+"/api/external/categories",
			map[string]any{"name": "  Tax ", "color": "blue"}, apiKeyHeaders)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		env, rawData := decodeEnvelope(t, data)
		assert.True(t, env.Success)
		assert.Equal(t, "Category created successfully", env.Message)

		var created domain.Category
		require.NoError(t, json.Unmarshal(rawData, &created))
		assert.Equal(t, int64(1), created.ID)
		assert.Equal(t, "Tax", created.Name)
	})

	t.Run("Validation error", func(t *testing.T) {
		resp, data := doJSON(t, http.MethodPost, server.URL+"/api/external/categories",
			map[string]any{"color": "blue"}, apiKeyHeaders)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		env, _ := decodeEnvelope(t, data)
		assert.False(t, env.Success)
		assert.Equal(t, "Invalid input data", env.Message)
		require.Len(t, env.Errors, 1)
		assert.Equal(t, "name", env.Errors[0].Field)
	})

	t.Run("Name exists", func(t *testing.T) {
		mockStore.On("CreateCategory", mock.Anything, mock.AnythingOfType("*domain.Category")).
			Return(nil, store.ErrCategoryNameExists).Once()

		resp, data := doJSON(t, http.MethodPost, server.URL+"/api/external/categories",
			map[string]any{"name": "Tax"}, apiKeyHeaders)

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		env, _ := decodeEnvelope(t, data)
		assert.Equal(t, "Category with this name already exists", env.Message)
	})

	mockStore.AssertExpectations(t)
}

func TestHTTPHandler_ExternalGetCategory(t *testing.T) {
	mockStore := new(MockCategoryStore)
	server := setupTestChiServer(t, mockStore, nil)

	t.Run("Found", func(t *testing.T) {
		mockStore.On("GetCategoryByID", mock.Anything, int64(7)).
			Return(&domain.Category{ID: 7, Name: "Audit"}, nil).Once()

		resp, data := doJSON(t, http.MethodGet, server.URL+"/api/external/categories/7", nil, apiKeyHeaders)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_, rawData := decodeEnvelope(t, data)
		var got domain.Category
		require.NoError(t, json.Unmarshal(rawData, &got))
		assert.Equal(t, "Audit", got.Name)
	})

	t.Run("Not found", func(t *testing.T) {
		mockStore.On("GetCategoryByID", mock.Anything, int64(8)).Return(nil, store.ErrCategoryNotFound).Once()

		resp, data := doJSON(t, http.MethodGet, server.URL+"/api/external/categories/8", nil, apiKeyHeaders)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		env, _ := decodeEnvelope(t, data)
		assert.Equal(t, "Category not found", env.Message)
	})

	t.Run("Invalid ID", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/external/categories/0", nil, apiKeyHeaders)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	mockStore.AssertExpectations(t)
}

func TestHTTPHandler_ExternalListCategories(t *testing.T) {
	mockStore := new(MockCategoryStore)
	server := setupTestChiServer(t, mockStore, nil)

	t.Run("Empty list has zero count", func(t *testing.T) {
		mockStore.On("ListCategories", mock.Anything).Return(nil, nil).Once()

		resp, data := doJSON(t, http.MethodGet, server.URL+"/api/external/categories", nil, apiKeyHeaders)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"success":true,"data":[],"count":0}`, string(data))
	})

	t.Run("Store failure", func(t *testing.T) {
		mockStore.On("ListCategories", mock.Anything).Return(nil, errors.New("db gone")).Once()

		resp, data := doJSON(t, http.MethodGet, server.URL+"/api/external/categories", nil, apiKeyHeaders)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		env, _ := decodeEnvelope(t, data)
		assert.False(t, env.Success)
		assert.Equal(t, "Failed to fetch categories", env.Message)
	})

	mockStore.AssertExpectations(t)
}

func TestHTTPHandler_ExternalUpdateCategory(t *testing.T) {
	mockStore := new(MockCategoryStore)
	server := setupTestChiServer(t, mockStore, nil)

	t.Run("Partial update keeps description", func(t *testing.T) {
		existing := &domain.Category{ID: 3, Name: "Ethics", Description: PtrTo("Professional ethics")}
		mockStore.On("GetCategoryByID", mock.Anything, int64(3)).Return(existing, nil).Once()
		mockStore.On("UpdateCategory", mock.Anything, mock.MatchedBy(func(c *domain.Category) bool {
			return c.ID == 3 && c.Name == "Ethics CPE" && c.Description != nil && *c.Description == "Professional ethics"
		})).Return(&domain.Category{ID: 3, Name: "Ethics CPE", Description: PtrTo("Professional ethics")}, nil).Once()

		resp, data := doJSON(t, http.MethodPut, server.URL+"/api/external/categories/3",
			map[string]any{"name": "Ethics CPE"}, apiKeyHeaders)

		assert.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		env, _ := decodeEnvelope(t, data)
		assert.Equal(t, "Category updated successfully", env.Message)
	})

	t.Run("Not found", func(t *testing.T) {
		mockStore.On("GetCategoryByID", mock.Anything, int64(99)).Return(nil, store.ErrCategoryNotFound).Once()

		resp, _ := doJSON(t, http.MethodPut, server.URL+"/api/external/categories/99",
			map[string]any{"name": "Whatever"}, apiKeyHeaders)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	mockStore.AssertExpectations(t)
}

func TestHTTPHandler_ExternalDeleteCategory(t *testing.T) {
	mockStore := new(MockCategoryStore)
	server := setupTestChiServer(t, mockStore, nil)

	mockStore.On("DeleteCategory", mock.Anything, int64(4)).Return(nil).Once()
	mockStore.On("DeleteCategory", mock.Anything, int64(5)).Return(store.ErrCategoryNotFound).Once()

	resp, data := doJSON(t, http.MethodDelete, server.URL+"/api/external/categories/4", nil, apiKeyHeaders)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"message":"Category deleted successfully"}`, string(data))

	resp, _ = doJSON(t, http.MethodDelete, server.URL+"/api/external/categories/5", nil, apiKeyHeaders)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	mockStore.AssertExpectations(t)
}

func TestHTTPHandler_ListTypeCategories(t *testing.T) {
	server := setupTestChiServer(t, store.NewMemoryStore(), nil)

	createProductViaAPI(t, server.URL, productBody("Intro to Tax", "TAX-101", "course", "active"))
	createProductViaAPI(t, server.URL, productBody("Advanced Tax", "TAX-201", "course", "draft"))
	createProductViaAPI(t, server.URL, productBody("Tax Handbook", "BK-1", "book", "active"))

	resp, data := doJSON(t, http.MethodGet, server.URL+"/api/categories", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var categories []domain.TypeCategory
	require.NoError(t, json.Unmarshal(data, &categories))
	require.Len(t, categories, 2)
	assert.Equal(t, "book", categories[0].ProductType)
	assert.Equal(t, 1, categories[0].ProductCount)
	assert.Equal(t, "course", categories[1].ProductType)
	assert.Equal(t, 2, categories[1].ProductCount)
	assert.Equal(t, int64(2), categories[1].ID)
}
