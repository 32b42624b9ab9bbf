package models

import "vms/src/types"

// Inventory is the on-hand quantity per (vendor, product). It is written by
// the purchase, manual-sale and payment-reconciliation flows, so every
// mutation must go through a guarded update against the persisted value.
type Inventory struct {
	ID        uint    `gorm:"primarykey" json:"id"`
	VendorID  uint    `gorm:"not null;uniqueIndex:idx_vendor_product" json:"vendor_id"`
	ProductID uint    `gorm:"not null;uniqueIndex:idx_vendor_product" json:"product_id"`
	Quantity  float64 `gorm:"not null" json:"quantity"`

	Vendor  Vendor  `gorm:"foreignKey:vendor_id" json:"-"`
	Product Product `gorm:"foreignKey:product_id" json:"product"`

	types.Timestamps
}
