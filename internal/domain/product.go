package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product types, formats and lifecycle states accepted by the catalog.
const (
	ProductTypeCourse     = "course"
	ProductTypeBook       = "book"
	ProductTypeBundle     = "bundle"
	ProductTypeMembership = "membership"

	FormatDigital  = "digital"
	FormatPhysical = "physical"

	LifecycleDraft   = "draft"
	LifecycleActive  = "active"
	LifecycleRetired = "retired"

	DefaultCurrency = "USD"
)

// Product is a SKU-level catalog entry.
// The json tags follow the wire format partner clients already consume, which is why
// the SKU travels as "productId".
type Product struct {
	ID                     int64     `json:"id"`
	Name                   string    `json:"productName"`
	SKU                    string    `json:"productId"`
	ProductType            string    `json:"productType"`
	Format                 string    `json:"format"`
	LifecycleStatus        string    `json:"lifecycleStatus"`
	MembershipFlag         bool      `json:"membershipFlag"`
	MembershipEntitlements *string   `json:"membershipEntitlements"`
	BundleEntitlements     *string   `json:"bundleEntitlements"`
	RevenueRecognitionCode *string   `json:"revenueRecognitionCode"`
	ReportingTags          []string  `json:"reportingTags"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// ProductOffering is a sellable variant of a product: price, brand, channel.
type ProductOffering struct {
	ID                     int64               `json:"id"`
	ProductID              int64               `json:"productId"`
	Brand                  *string             `json:"brand"`
	Professions            []string            `json:"professions"`
	DeliveryMethod         *string             `json:"deliveryMethod"`
	AccessPeriod           *int32              `json:"accessPeriod"`
	AccessPeriodType       *string             `json:"accessPeriodType"`
	Price                  decimal.NullDecimal `json:"price"`
	Currency               string              `json:"currency"`
	PricingModel           *string             `json:"pricingModel"`
	CommercialAvailability bool                `json:"commercialAvailability"`
	ChannelVisibility      []string            `json:"channelVisibility"`
	ApprovedJurisdictions  []string            `json:"approvedJurisdictions"`
	CreditEligibility      bool                `json:"creditEligibility"`
	CreatedAt              time.Time           `json:"createdAt"`
	UpdatedAt              time.Time           `json:"updatedAt"`
}

// ProductWithOfferings is the read model returned by product queries.
type ProductWithOfferings struct {
	Product
	Offerings []ProductOffering `json:"offerings"`
}

// ProductFilter narrows a product listing. Empty fields are ignored.
type ProductFilter struct {
	ProductType     string
	LifecycleStatus string
	Format          string
	Search          string
}

// IsEmpty reports whether no filter field is set.
func (f ProductFilter) IsEmpty() bool {
	return f.ProductType == "" && f.LifecycleStatus == "" && f.Format == "" && f.Search == ""
}

// Matches reports whether p satisfies every supplied field of the filter.
// Type, status and format compare exactly; Search is a case-insensitive substring
// match on the product name or SKU.
func (f ProductFilter) Matches(p Product) bool {
	if f.ProductType != "" && p.ProductType != f.ProductType {
		return false
	}
	if f.LifecycleStatus != "" && p.LifecycleStatus != f.LifecycleStatus {
		return false
	}
	if f.Format != "" && p.Format != f.Format {
		return false
	}
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Name), term) &&
			!strings.Contains(strings.ToLower(p.SKU), term) {
			return false
		}
	}
	return true
}

// ProductPatch carries a partial product update. Nil fields are left untouched.
type ProductPatch struct {
	Name                   *string
	SKU                    *string
	ProductType            *string
	Format                 *string
	LifecycleStatus        *string
	MembershipFlag         *bool
	MembershipEntitlements *string
	BundleEntitlements     *string
	RevenueRecognitionCode *string
	ReportingTags          []string
}

// Apply copies the set fields of the patch onto p.
func (pp ProductPatch) Apply(p *Product) {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.SKU != nil {
		p.SKU = *pp.SKU
	}
	if pp.ProductType != nil {
		p.ProductType = *pp.ProductType
	}
	if pp.Format != nil {
		p.Format = *pp.Format
	}
	if pp.LifecycleStatus != nil {
		p.LifecycleStatus = *pp.LifecycleStatus
	}
	if pp.MembershipFlag != nil {
		p.MembershipFlag = *pp.MembershipFlag
	}
	if pp.MembershipEntitlements != nil {
		p.MembershipEntitlements = pp.MembershipEntitlements
	}
	if pp.BundleEntitlements != nil {
		p.BundleEntitlements = pp.BundleEntitlements
	}
	if pp.RevenueRecognitionCode != nil {
		p.RevenueRecognitionCode = pp.RevenueRecognitionCode
	}
	if pp.ReportingTags != nil {
		p.ReportingTags = pp.ReportingTags
	}
}

// OfferingPatch carries a partial offering update. The owning product cannot change.
type OfferingPatch struct {
	Brand                  *string
	Professions            []string
	DeliveryMethod         *string
	AccessPeriod           *int32
	AccessPeriodType       *string
	Price                  *decimal.Decimal
	Currency               *string
	PricingModel           *string
	CommercialAvailability *bool
	ChannelVisibility      []string
	ApprovedJurisdictions  []string
	CreditEligibility      *bool
}

// Apply copies the set fields of the patch onto o.
func (op OfferingPatch) Apply(o *ProductOffering) {
	if op.Brand != nil {
		o.Brand = op.Brand
	}
	if op.Professions != nil {
		o.Professions = op.Professions
	}
	if op.DeliveryMethod != nil {
		o.DeliveryMethod = op.DeliveryMethod
	}
	if op.AccessPeriod != nil {
		o.AccessPeriod = op.AccessPeriod
	}
	if op.AccessPeriodType != nil {
		o.AccessPeriodType = op.AccessPeriodType
	}
	if op.Price != nil {
		o.Price = decimal.NewNullDecimal(*op.Price)
	}
	if op.Currency != nil {
		o.Currency = *op.Currency
	}
	if op.PricingModel != nil {
		o.PricingModel = op.PricingModel
	}
	if op.CommercialAvailability != nil {
		o.CommercialAvailability = *op.CommercialAvailability
	}
	if op.ChannelVisibility != nil {
		o.ChannelVisibility = op.ChannelVisibility
	}
	if op.ApprovedJurisdictions != nil {
		o.ApprovedJurisdictions = op.ApprovedJurisdictions
	}
	if op.CreditEligibility != nil {
		o.CreditEligibility = *op.CreditEligibility
	}
}
