package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"productflow/internal/domain"
)

func priced(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func strPtr(s string) *string { return &s }

func sum(groups []NameValue) int {
	total := 0
	for _, g := range groups {
		total += g.Value
	}
	return total
}

func TestPriceBucket_Boundaries(t *testing.T) {
	tests := []struct {
		price string
		want  string
	}{
		{"0", Bucket0To50},
		{"50", Bucket0To50},
		{"50.01", Bucket51To100},
		{"100", Bucket51To100},
		{"100.5", Bucket101To250},
		{"250", Bucket101To250},
		{"251", Bucket251To500},
		{"500", Bucket251To500},
		{"500.01", Bucket501Plus},
		{"501", Bucket501Plus},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			assert.Equal(t, tt.want, PriceBucket(decimal.RequireFromString(tt.price)))
		})
	}
}

func TestCompute(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	products := []domain.Product{
		{ID: 1, ProductType: "course", LifecycleStatus: "active", Format: "digital", CreatedAt: now},
		{ID: 2, ProductType: "course", LifecycleStatus: "draft", Format: "digital", CreatedAt: now.AddDate(0, 0, -2)},
		{ID: 3, ProductType: "book", LifecycleStatus: "active", Format: "physical", CreatedAt: now.AddDate(0, 0, -30)},
	}
	offerings := []domain.ProductOffering{
		{ID: 1, ProductID: 1, Brand: strPtr("Acme"), Price: priced("50"), CreatedAt: now},
		{ID: 2, ProductID: 1, Brand: strPtr("Acme"), Price: priced("501"), CreatedAt: now},
		{ID: 3, ProductID: 2, Brand: nil, Price: priced("120.00"), CreatedAt: now.AddDate(0, 0, -6)},
		{ID: 4, ProductID: 3, Brand: strPtr(""), CreatedAt: now.AddDate(0, 0, -7)},
	}

	report := Compute(products, offerings, now)

	assert.Equal(t, 3, report.TotalProducts)
	assert.Equal(t, 4, report.TotalOfferings)
	assert.Equal(t, report.TotalProducts, sum(report.ProductsByType))
	assert.Equal(t, report.TotalProducts, sum(report.ProductsByStatus))
	assert.Equal(t, report.TotalProducts, sum(report.ProductsByFormat))

	assert.Equal(t, []NameValue{{Name: "book", Value: 1}, {Name: "course", Value: 2}}, report.ProductsByType)
	assert.Equal(t, []NameValue{{Name: "Acme", Value: 2}}, report.OfferingsByBrand)

	assert.Equal(t, []PriceRange{
		{Range: Bucket0To50, Count: 1},
		{Range: Bucket51To100, Count: 0},
		{Range: Bucket101To250, Count: 1},
		{Range: Bucket251To500, Count: 0},
		{Range: Bucket501Plus, Count: 1},
	}, report.PriceDistribution)

	require.Len(t, report.RecentActivity, RecentActivityDays)
	assert.Equal(t, "2024-03-04", report.RecentActivity[0].Date)
	assert.Equal(t, 1, report.RecentActivity[0].Offerings)
	assert.Equal(t, "2024-03-08", report.RecentActivity[4].Date)
	assert.Equal(t, 1, report.RecentActivity[4].Products)
	last := report.RecentActivity[RecentActivityDays-1]
	assert.Equal(t, "2024-03-10", last.Date)
	assert.Equal(t, 1, last.Products)
	assert.Equal(t, 2, last.Offerings)
}

func TestCompute_Empty(t *testing.T) {
	report := Compute(nil, nil, time.Now())

	assert.Zero(t, report.TotalProducts)
	assert.NotNil(t, report.ProductsByType)
	assert.Empty(t, report.OfferingsByBrand)
	assert.Len(t, report.PriceDistribution, 5)
	assert.Len(t, report.RecentActivity, RecentActivityDays)
}

func TestTypeCategories(t *testing.T) {
	products := []domain.Product{
		{ProductType: "course"}, {ProductType: "book"}, {ProductType: "course"},
		{ProductType: "bundle"}, {ProductType: "membership"},
	}

	cats := TypeCategories(products)

	require.Len(t, cats, 4)
	assert.Equal(t, "Book", cats[0].Name)
	assert.Equal(t, "book", cats[0].ProductType)
	assert.Equal(t, "blue", cats[0].Color)
	assert.Equal(t, int64(1), cats[0].ID)
	assert.Equal(t, "Course", cats[2].Name)
	assert.Equal(t, 2, cats[2].ProductCount)
	assert.Equal(t, "red", cats[3].Color)
}
