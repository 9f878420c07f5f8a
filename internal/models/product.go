package models

// ProductStatus captures the availability of a catalog item.
//
// The "borrowed" value is a cached summary of outstanding active loans and is
// owned by the loan lifecycle; the remaining values may be set manually by
// administrators.
type ProductStatus string

const (
	ProductAvailable   ProductStatus = "available"
	ProductBorrowed    ProductStatus = "borrowed"
	ProductMaintenance ProductStatus = "maintenance"
	ProductDamaged     ProductStatus = "damaged"
)

// Valid reports whether the status is one of the known values.
func (s ProductStatus) Valid() bool {
	switch s {
	case ProductAvailable, ProductBorrowed, ProductMaintenance, ProductDamaged:
		return true
	}
	return false
}

// Product is a piece of lab equipment that can be lent out.
type Product struct {
	BaseModel

	Name        string `gorm:"size:200;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Category    string `gorm:"size:100;not null;index" json:"category"`
	Brand       string `gorm:"size:100" json:"brand"`

	QuantityAvailable int           `gorm:"not null;default:1" json:"quantity_available"`
	Location          string        `gorm:"size:200;not null;default:'Lab Storage'" json:"location"`
	Status            ProductStatus `gorm:"type:varchar(20);not null;default:'available';index" json:"status"`
	Notes             string        `gorm:"type:text" json:"notes"`

	CreatedByID *string `gorm:"type:uuid" json:"created_by_id"`
	CreatedBy   *User   `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
}
