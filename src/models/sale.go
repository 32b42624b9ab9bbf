package models

import "vms/src/types"

// Sale records a completed commercial transaction. ReferenceNo carries the
// M-Pesa receipt for payment-triggered sales; the unique index on it is the
// storage-level backstop that makes automatic sale creation idempotent.
type Sale struct {
	ID        uint `gorm:"primarykey" json:"id"`
	VendorID  uint `gorm:"not null;index" json:"vendor_id"`
	ProductID uint `gorm:"not null" json:"product_id"`

	Quantity   float64 `gorm:"not null" json:"quantity"`
	UnitPrice  float64 `gorm:"not null" json:"unit_price"`
	TotalPrice float64 `gorm:"not null" json:"total_price"`

	ReferenceNo *string `gorm:"size:64;uniqueIndex" json:"reference_no,omitempty"`
	PaymentType string  `gorm:"size:20;default:cash" json:"payment_type"`

	Vendor  Vendor  `gorm:"foreignKey:vendor_id" json:"-"`
	Product Product `gorm:"foreignKey:product_id" json:"-"`

	types.Timestamps
}
