// Package analytics builds read-only catalog reports from products and offerings.
package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"productflow/internal/domain"
)

// Price histogram bucket labels, in report order.
const (
	Bucket0To50    = "$0-50"
	Bucket51To100  = "$51-100"
	Bucket101To250 = "$101-250"
	Bucket251To500 = "$251-500"
	Bucket501Plus  = "$501+"
)

// RecentActivityDays is the window covered by Report.RecentActivity, today included.
const RecentActivityDays = 7

var priceBuckets = []struct {
	label string
	upper decimal.Decimal
}{
	{Bucket0To50, decimal.NewFromInt(50)},
	{Bucket51To100, decimal.NewFromInt(100)},
	{Bucket101To250, decimal.NewFromInt(250)},
	{Bucket251To500, decimal.NewFromInt(500)},
}

var categoryColors = []string{"blue", "green", "purple", "red"}

// NameValue is one group of a grouped count.
type NameValue struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// PriceRange is one bucket of the price histogram.
type PriceRange struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// DayActivity counts records created on one calendar day (UTC).
type DayActivity struct {
	Date      string `json:"date"`
	Products  int    `json:"products"`
	Offerings int    `json:"offerings"`
}

// Report is the analytics summary served by /api/analytics.
type Report struct {
	TotalProducts     int           `json:"totalProducts"`
	TotalOfferings    int           `json:"totalOfferings"`
	ProductsByType    []NameValue   `json:"productsByType"`
	ProductsByStatus  []NameValue   `json:"productsByStatus"`
	ProductsByFormat  []NameValue   `json:"productsByFormat"`
	OfferingsByBrand  []NameValue   `json:"offeringsByBrand"`
	PriceDistribution []PriceRange  `json:"priceDistribution"`
	RecentActivity    []DayActivity `json:"recentActivity"`
}

// Compute aggregates products and offerings into a Report. now anchors the recent activity window.
func Compute(products []domain.Product, offerings []domain.ProductOffering, now time.Time) Report {
	byType := map[string]int{}
	byStatus := map[string]int{}
	byFormat := map[string]int{}
	for _, p := range products {
		byType[p.ProductType]++
		byStatus[p.LifecycleStatus]++
		byFormat[p.Format]++
	}

	byBrand := map[string]int{}
	prices := make([]PriceRange, 0, len(priceBuckets)+1)
	for _, b := range priceBuckets {
		prices = append(prices, PriceRange{Range: b.label})
	}
	prices = append(prices, PriceRange{Range: Bucket501Plus})

	for _, o := range offerings {
		if o.Brand != nil && strings.TrimSpace(*o.Brand) != "" {
			byBrand[*o.Brand]++
		}
		if o.Price.Valid {
			prices[bucketIndex(o.Price.Decimal)].Count++
		}
	}

	return Report{
		TotalProducts:     len(products),
		TotalOfferings:    len(offerings),
		ProductsByType:    sortedGroups(byType),
		ProductsByStatus:  sortedGroups(byStatus),
		ProductsByFormat:  sortedGroups(byFormat),
		OfferingsByBrand:  sortedGroups(byBrand),
		PriceDistribution: prices,
		RecentActivity:    recentActivity(products, offerings, now),
	}
}

// PriceBucket returns the histogram label for price.
func PriceBucket(price decimal.Decimal) string {
	i := bucketIndex(price)
	if i == len(priceBuckets) {
		return Bucket501Plus
	}
	return priceBuckets[i].label
}

func bucketIndex(price decimal.Decimal) int {
	for i, b := range priceBuckets {
		if price.LessThanOrEqual(b.upper) {
			return i
		}
	}
	return len(priceBuckets)
}

func sortedGroups(counts map[string]int) []NameValue {
	out := make([]NameValue, 0, len(counts))
	for name, n := range counts {
		out = append(out, NameValue{Name: name, Value: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func recentActivity(products []domain.Product, offerings []domain.ProductOffering, now time.Time) []DayActivity {
	today := now.UTC().Truncate(24 * time.Hour)
	first := today.AddDate(0, 0, -(RecentActivityDays - 1))

	days := make([]DayActivity, RecentActivityDays)
	for i := range days {
		days[i].Date = first.AddDate(0, 0, i).Format(time.DateOnly)
	}
	dayIndex := func(t time.Time) (int, bool) {
		d := t.UTC().Truncate(24 * time.Hour)
		if d.Before(first) || d.After(today) {
			return 0, false
		}
		return int(d.Sub(first) / (24 * time.Hour)), true
	}

	for _, p := range products {
		if i, ok := dayIndex(p.CreatedAt); ok {
			days[i].Products++
		}
	}
	for _, o := range offerings {
		if i, ok := dayIndex(o.CreatedAt); ok {
			days[i].Offerings++
		}
	}
	return days
}

// TypeCategories derives one category per distinct product type, ordered by type name.
// Colors rotate through a fixed palette.
func TypeCategories(products []domain.Product) []domain.TypeCategory {
	counts := map[string]int{}
	for _, p := range products {
		counts[p.ProductType]++
	}
	groups := sortedGroups(counts)

	out := make([]domain.TypeCategory, 0, len(groups))
	for i, g := range groups {
		out = append(out, domain.TypeCategory{
			ID:           int64(i + 1),
			Name:         displayName(g.Name),
			ProductType:  g.Name,
			Description:  fmt.Sprintf("All %s products", g.Name),
			Color:        categoryColors[i%len(categoryColors)],
			ProductCount: g.Value,
		})
	}
	return out
}

func displayName(productType string) string {
	if productType == "" {
		return "Uncategorized"
	}
	return strings.ToUpper(productType[:1]) + productType[1:]
}
