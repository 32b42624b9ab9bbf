package common

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"vms/src/db"
	"vms/src/lib"
	"vms/src/models"
	"vms/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const paymentUpdatesTopic = "PaymentTransactionUpdates"

// extractCallbackMetadata pulls Amount, MpesaReceiptNumber and PhoneNumber
// out of the callback's Item list. Only successful callbacks carry metadata;
// anything else yields all nils.
func extractCallbackMetadata(cb *types.StkCallback) (amount *float64, receipt *string, phone *string) {
	if cb.ResultCode == nil || *cb.ResultCode != 0 || cb.CallbackMetadata == nil {
		return nil, nil, nil
	}
	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			if v, ok := item.Value.(float64); ok {
				amount = &v
			}
		case "MpesaReceiptNumber":
			if v, ok := item.Value.(string); ok && v != "" {
				receipt = &v
			}
		case "PhoneNumber":
			switch v := item.Value.(type) {
			case string:
				if v != "" {
					phone = &v
				}
			case float64:
				s := strconv.FormatFloat(v, 'f', -1, 64)
				phone = &s
			}
		}
	}
	return amount, receipt, phone
}

// ProcessStkCallback reconciles an inbound STK result against the ledger.
// Callbacks are delivered at-least-once and may be duplicated, out of order
// or incomplete, so every step here must tolerate replays:
//   - a known CheckoutRequestID updates the row, overwriting only with
//     non-nil incoming values
//   - an unknown CheckoutRequestID is recorded as an orphan row for audit
//   - a successful result triggers the sale pipeline, which is idempotent
//     on the M-Pesa receipt
func ProcessStkCallback(cb *types.StkCallback) error {
	if cb == nil || cb.CheckoutRequestID == "" || cb.ResultCode == nil {
		return types.NewValidationError("malformed STK callback")
	}
	tx := db.GetDb()
	amount, receipt, phone := extractCallbackMetadata(cb)

	var record models.MpesaTransaction
	err := tx.Where(&models.MpesaTransaction{CheckoutRequestID: &cb.CheckoutRequestID}).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[mpesa] callback for unknown CheckoutRequestID %s, recording orphan\n", cb.CheckoutRequestID)
		orphan := models.MpesaTransaction{
			CheckoutRequestID: &cb.CheckoutRequestID,
			ResultCode:        cb.ResultCode,
			ResultDesc:        &cb.ResultDesc,
			Amount:            amount,
			MpesaReceipt:      receipt,
			PhoneNumber:       phone,
		}
		if cb.MerchantRequestID != "" {
			orphan.MerchantRequestID = &cb.MerchantRequestID
		}
		if err := tx.Create(&orphan).Error; err != nil {
			log.Printf("[mpesa] failed to record orphan callback: %s\n", err.Error())
			return err
		}
		emitPaymentEvent(&orphan, "orphan")
		return nil
	} else if err != nil {
		return err
	}

	updates := map[string]any{
		"result_code": *cb.ResultCode,
	}
	if cb.ResultDesc != "" {
		updates["result_desc"] = cb.ResultDesc
	}
	if amount != nil {
		updates["amount"] = *amount
	}
	if receipt != nil {
		updates["mpesa_receipt"] = *receipt
	}
	if phone != nil {
		updates["phone_number"] = *phone
	}
	if err := tx.Model(&record).Updates(updates).Error; err != nil {
		return err
	}
	record.ResultCode = cb.ResultCode
	if cb.ResultDesc != "" {
		record.ResultDesc = &cb.ResultDesc
	}
	if receipt != nil {
		record.MpesaReceipt = receipt
	}
	if amount != nil {
		record.Amount = amount
	}

	if *cb.ResultCode == 0 {
		// The outcome is already durable at this point. Pipeline failures are
		// logged, never surfaced: the next replay retries them.
		if err := ApplySuccessfulPayment(&record); err != nil {
			var conflict *types.PersistenceConflict
			if errors.As(err, &conflict) {
				log.Printf("[mpesa] duplicate receipt %s, side effects already applied\n", conflict.Key)
			} else {
				log.Printf("[mpesa] side effects for payment %d failed: %s\n", record.ID, err.Error())
			}
		}
	}
	emitPaymentEvent(&record, string(record.Status()))
	return nil
}

// ApplySuccessfulPayment runs the side-effect pipeline for a resolved
// successful payment: create a sale keyed on the M-Pesa receipt and decrement
// the product's inventory. Safe to call any number of times per receipt; the
// unique index on sales.reference_no guarantees at most one sale even under
// concurrent replays.
func ApplySuccessfulPayment(record *models.MpesaTransaction) error {
	if record.ResultCode == nil || *record.ResultCode != 0 {
		log.Printf("[mpesa] payment %d is not resolved successful, skipping side effects\n", record.ID)
		return nil
	}
	if record.MpesaReceipt == nil || *record.MpesaReceipt == "" {
		log.Printf("[mpesa] payment %d resolved without a receipt, skipping side effects\n", record.ID)
		return nil
	}
	if record.VendorID == nil || record.ProductID == nil {
		log.Printf("[mpesa] payment %d has no vendor/product association, skipping side effects\n", record.ID)
		return nil
	}
	receipt := *record.MpesaReceipt
	tx := db.GetDb()

	var existing models.Sale
	err := tx.Where("reference_no = ?", receipt).First(&existing).Error
	if err == nil {
		return &types.PersistenceConflict{Key: receipt}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	amount := float64(0)
	if record.Amount != nil {
		amount = *record.Amount
	}
	sale := models.Sale{
		VendorID:    *record.VendorID,
		ProductID:   *record.ProductID,
		Quantity:    1,
		UnitPrice:   amount,
		TotalPrice:  amount,
		ReferenceNo: &receipt,
		PaymentType: types.PAYMENT_TYPE_MPESA,
	}
	err = tx.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sale).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Inventory{}).
			Where("vendor_id = ? AND product_id = ? AND quantity >= 1", *record.VendorID, *record.ProductID).
			UpdateColumn("quantity", gorm.Expr("quantity - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			log.Printf("[mpesa] no stock to decrement for vendor %d product %d, receipt %s\n", *record.VendorID, *record.ProductID, receipt)
		}
		return nil
	})
	if err != nil {
		// A concurrent replay may have won the insert race. Re-query to
		// distinguish a duplicate receipt from a real failure.
		var winner models.Sale
		if qerr := tx.Where("reference_no = ?", receipt).First(&winner).Error; qerr == nil {
			return &types.PersistenceConflict{Key: receipt}
		}
		return err
	}
	return nil
}

// VendorPaymentHistory projects the vendor's ledger entries joined to the
// sales their receipts produced. Entries with no sale (pending, failed,
// skipped side effects) come back with nil sale columns.
func VendorPaymentHistory(vendorId uint, limit, offset int) ([]types.PaymentHistoryRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	tx := db.GetDb()
	rows := []types.PaymentHistoryRow{}
	err := tx.Table("mpesa_transactions").
		Select(`mpesa_transactions.id,
			mpesa_transactions.checkout_request_id,
			mpesa_transactions.product_id,
			mpesa_transactions.amount,
			mpesa_transactions.phone_number,
			mpesa_transactions.result_code,
			mpesa_transactions.result_desc,
			mpesa_transactions.mpesa_receipt,
			mpesa_transactions.created_at,
			sales.id AS sale_id,
			sales.quantity AS sale_quantity,
			sales.unit_price AS sale_unit_price,
			sales.total_price AS sale_total`).
		Joins("LEFT JOIN sales ON sales.reference_no = mpesa_transactions.mpesa_receipt AND sales.deleted_at IS NULL").
		Where("mpesa_transactions.vendor_id = ? AND mpesa_transactions.deleted_at IS NULL", vendorId).
		Order("mpesa_transactions.created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		switch {
		case rows[i].ResultCode == nil:
			rows[i].Status = types.PAYMENT_PENDING
		case *rows[i].ResultCode == 0:
			rows[i].Status = types.PAYMENT_RESOLVED_SUCCESS
		default:
			rows[i].Status = types.PAYMENT_RESOLVED_FAILURE
		}
	}
	return rows, nil
}

// ReconcilePendingPayments sweeps ledger entries still pending after their
// callback window and asks the provider for their final status. The status
// query does not return a receipt, so resolved-successful entries found this
// way update the ledger but cannot trigger the sale pipeline.
func ReconcilePendingPayments() {
	client, err := lib.GetDarajaClient()
	if err != nil {
		log.Printf("[mpesa] sweep skipped, gateway not configured: %s\n", err.Error())
		return
	}
	tx := db.GetDb()
	cutoff := time.Now().Add(-2 * time.Minute)
	var pending []models.MpesaTransaction
	err = tx.Where("result_code IS NULL AND checkout_request_id IS NOT NULL AND created_at < ?", cutoff).
		Limit(50).
		Find(&pending).Error
	if err != nil {
		log.Printf("[mpesa] sweep query failed: %s\n", err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for i := range pending {
		record := &pending[i]
		status, err := client.QueryStkStatus(ctx, *record.CheckoutRequestID)
		if err != nil {
			log.Printf("[mpesa] status query for %s failed: %s\n", *record.CheckoutRequestID, err.Error())
			continue
		}
		code, err := strconv.Atoi(status.ResultCode)
		if err != nil {
			// Provider still processing, try again next sweep.
			continue
		}
		updates := map[string]any{
			"result_code": code,
			"result_desc": status.ResultDesc,
		}
		if err := tx.Model(record).Updates(updates).Error; err != nil {
			log.Printf("[mpesa] sweep update for %s failed: %s\n", *record.CheckoutRequestID, err.Error())
			continue
		}
		record.ResultCode = &code
		log.Printf("[mpesa] sweep resolved %s as %s\n", *record.CheckoutRequestID, record.Status())
		emitPaymentEvent(record, string(record.Status()))
	}
}

func emitPaymentEvent(record *models.MpesaTransaction, status string) {
	if os.Getenv("KAFKA_BROKER") == "" {
		return
	}
	payload := types.JSONB{
		"event_id": uuid.NewString(),
		"id":       record.ID,
		"status":   status,
	}
	if record.CheckoutRequestID != nil {
		payload["checkout_request_id"] = *record.CheckoutRequestID
	}
	if record.MpesaReceipt != nil {
		payload["mpesa_receipt"] = *record.MpesaReceipt
	}
	go lib.KafkaProduceMessage("vms", paymentUpdatesTopic, payload)
}
