package models

import "vms/src/types"

type Vendor struct {
	ID           uint   `gorm:"primarykey" json:"id"`
	Name         string `gorm:"size:255" json:"name"`
	Email        string `gorm:"size:255;uniqueIndex" json:"email"`
	Contact      string `gorm:"size:20" json:"contact,omitempty"`
	PasswordHash string `gorm:"size:255" json:"-"`

	Products []Product `gorm:"foreignKey:vendor_id" json:"products,omitempty"`
	Sales    []Sale    `gorm:"foreignKey:vendor_id" json:"sales,omitempty"`

	types.Timestamps
}
