package models

import "vms/src/types"

type Product struct {
	ID       uint `gorm:"primarykey" json:"id"`
	VendorID uint `gorm:"not null;index" json:"vendor_id"`

	Name      string  `gorm:"size:255;not null" json:"name"`
	Unit      string  `gorm:"size:50;not null" json:"unit"`
	Variation *string `gorm:"size:50" json:"variation,omitempty"`
	SaleType  string  `gorm:"size:50;not null" json:"sale_type"`
	IsActive  bool    `gorm:"default:true" json:"is_active"`

	Vendor Vendor `gorm:"foreignKey:vendor_id" json:"-"`

	types.Timestamps
}
