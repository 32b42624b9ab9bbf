package models

import "vms/src/types"

type Purchase struct {
	ID        uint    `gorm:"primarykey" json:"id"`
	VendorID  uint    `gorm:"not null;index" json:"vendor_id"`
	ProductID uint    `gorm:"not null" json:"product_id"`
	Quantity  float64 `gorm:"not null" json:"quantity"`
	UnitCost  float64 `gorm:"not null" json:"unit_cost"`
	TotalCost float64 `gorm:"not null" json:"total_cost"`

	Vendor  Vendor  `gorm:"foreignKey:vendor_id" json:"-"`
	Product Product `gorm:"foreignKey:product_id" json:"-"`

	types.Timestamps
}
