package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type PaymentStatus string

const (
	PAYMENT_PENDING          PaymentStatus = "pending"
	PAYMENT_RESOLVED_SUCCESS PaymentStatus = "completed"
	PAYMENT_RESOLVED_FAILURE PaymentStatus = "failed"
)

const (
	PAYMENT_TYPE_CASH  = "cash"
	PAYMENT_TYPE_MPESA = "mpesa"
)

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type RegisterVendorRequestBody struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Contact  string `json:"contact,omitempty"`
}

type LoginRequestBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type StkPushRequestBody struct {
	PhoneNumber      string  `json:"phone_number" binding:"required,msisdn"`
	Amount           int64   `json:"amount" binding:"required,gt=0"`
	AccountReference *string `json:"account_reference,omitempty"`
	TransactionDesc  *string `json:"transaction_desc,omitempty"`
	ProductID        uint    `json:"product_id" binding:"required"`
}

// StkPushAck is the provider's synchronous acknowledgment to an initiation
// request. Field names follow the Daraja wire format.
type StkPushAck struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage,omitempty"`
}

// StkCallbackEnvelope is the asynchronous result message Daraja POSTs to the
// callback endpoint. Everything below the result code is optional: callbacks
// arrive at-least-once, unordered, and sometimes incomplete.
type StkCallbackEnvelope struct {
	Body struct {
		StkCallback *StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        *int              `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

type CallbackItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value,omitempty"`
}

// CallbackAck is the body Daraja expects in the HTTP 200 response.
// ResultCode 0 = accepted-and-processed, 1 = accepted-but-could-not-process.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

type StkQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

type CreateProductRequestBody struct {
	Name      string  `json:"name" binding:"required"`
	Unit      string  `json:"unit" binding:"required"`
	Variation *string `json:"variation,omitempty"`
	SaleType  string  `json:"sale_type" binding:"required,oneof=quick-sell manual"`
}

type UpsertInventoryRequestBody struct {
	ProductID uint    `json:"product_id" binding:"required"`
	Quantity  float64 `json:"quantity" binding:"gte=0"`
}

type CreatePurchaseRequestBody struct {
	ProductID uint    `json:"product_id" binding:"required"`
	Quantity  float64 `json:"quantity" binding:"required,gt=0"`
	UnitCost  float64 `json:"unit_cost" binding:"gte=0"`
}

type CreateSaleRequestBody struct {
	ProductID   uint    `json:"product_id" binding:"required"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
	UnitPrice   float64 `json:"unit_price" binding:"gte=0"`
	ReferenceNo *string `json:"reference_no,omitempty"`
}

// PaymentHistoryRow is one row of the vendor payment history projection:
// a ledger entry left-joined to the sale its receipt produced, if any.
type PaymentHistoryRow struct {
	ID                uint          `json:"id"`
	CheckoutRequestID *string       `json:"checkout_request_id,omitempty"`
	ProductID         *uint         `json:"product_id,omitempty"`
	Amount            *float64      `json:"amount,omitempty"`
	PhoneNumber       *string       `json:"phone_number,omitempty"`
	ResultCode        *int          `json:"result_code,omitempty"`
	ResultDesc        *string       `json:"result_desc,omitempty"`
	MpesaReceipt      *string       `json:"mpesa_receipt,omitempty"`
	Status            PaymentStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`

	SaleID        *uint    `json:"sale_id,omitempty"`
	SaleQuantity  *float64 `json:"sale_quantity,omitempty"`
	SaleUnitPrice *float64 `json:"sale_unit_price,omitempty"`
	SaleTotal     *float64 `json:"sale_total,omitempty"`
}
