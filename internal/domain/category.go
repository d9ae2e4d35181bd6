package domain

import "time"

// Category groups products for partners and the back-office UI.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Color       *string   `json:"color,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CategoryPatch carries a partial category update.
type CategoryPatch struct {
	Name        *string
	Description *string
	Color       *string
}

// Apply copies the set fields of the patch onto c.
func (cp CategoryPatch) Apply(c *Category) {
	if cp.Name != nil {
		c.Name = *cp.Name
	}
	if cp.Description != nil {
		c.Description = cp.Description
	}
	if cp.Color != nil {
		c.Color = cp.Color
	}
}

// TypeCategory is a category derived on the fly from a distinct product type.
type TypeCategory struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ProductType  string `json:"productType"`
	Description  string `json:"description"`
	Color        string `json:"color"`
	ProductCount int    `json:"productCount"`
}

// User is a back-office account. The password is only ever held as a bcrypt hash.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
