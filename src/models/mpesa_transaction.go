package models

import "vms/src/types"

// MpesaTransaction is one initiated STK-push attempt, tracked through to its
// asynchronous outcome. CheckoutRequestID is the reconciliation key for
// inbound callbacks. Rows created directly from an unmatched callback have
// nil VendorID/ProductID (orphan records, kept for auditability).
type MpesaTransaction struct {
	ID        uint  `gorm:"primarykey" json:"id"`
	VendorID  *uint `json:"vendor_id,omitempty"`
	ProductID *uint `json:"product_id,omitempty"`

	MerchantRequestID *string `gorm:"size:128" json:"merchant_request_id,omitempty"`
	CheckoutRequestID *string `gorm:"size:128;index" json:"checkout_request_id,omitempty"`

	Amount           *float64 `json:"amount,omitempty"`
	PhoneNumber      *string  `gorm:"size:20" json:"phone_number,omitempty"`
	AccountReference *string  `gorm:"size:64" json:"account_reference,omitempty"`

	// Provider's synchronous ack at initiation time.
	ResponseCode        *string `gorm:"size:50" json:"response_code,omitempty"`
	ResponseDescription *string `gorm:"size:255" json:"response_description,omitempty"`

	// Outcome fields, nil until a callback arrives.
	ResultCode   *int    `json:"result_code,omitempty"`
	ResultDesc   *string `gorm:"size:255" json:"result_desc,omitempty"`
	MpesaReceipt *string `gorm:"size:64" json:"mpesa_receipt,omitempty"`

	Vendor  *Vendor  `gorm:"foreignKey:vendor_id" json:"-"`
	Product *Product `gorm:"foreignKey:product_id" json:"-"`

	types.Timestamps
}

func (t *MpesaTransaction) Status() types.PaymentStatus {
	switch {
	case t.ResultCode == nil:
		return types.PAYMENT_PENDING
	case *t.ResultCode == 0:
		return types.PAYMENT_RESOLVED_SUCCESS
	default:
		return types.PAYMENT_RESOLVED_FAILURE
	}
}
