package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"vms/src/common"
	"vms/src/db"
	"vms/src/lib"
	"vms/src/models"
	"vms/src/types"
	"vms/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func mpesaHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/mpesa/stkpush", func(ctx *gin.Context) {
			var body types.StkPushRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			vendorId := ctx.GetUint("id")
			db := db.GetDb()
			var product models.Product
			err := db.
				Where(&models.Product{ID: body.ProductID, VendorID: vendorId}).
				First(&product).
				Error
			if err != nil {
				log.Printf("Could not find product [%d] for vendor [%d]: %s\n", body.ProductID, vendorId, err.Error())
				ctx.JSON(http.StatusNotFound, gin.H{"error": "Could not find product"})
				return
			}

			accountRef := fmt.Sprintf("V%d-%s", vendorId, uuid.NewString()[:8])
			if body.AccountReference != nil && *body.AccountReference != "" {
				accountRef = *body.AccountReference
			}
			transactionDesc := ""
			if body.TransactionDesc != nil {
				transactionDesc = *body.TransactionDesc
			}

			client, err := lib.GetDarajaClient()
			if err != nil {
				log.Printf("M-Pesa gateway not configured: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "payment gateway unavailable"})
				return
			}
			ack, err := client.InitiateStkPush(ctx, body.PhoneNumber, body.Amount, accountRef, transactionDesc)
			if err != nil {
				var verr *types.ValidationError
				var gerr *types.GatewayError
				switch {
				case errors.As(err, &verr):
					ctx.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
				case errors.As(err, &gerr):
					log.Printf("Error initiating STK push: %s\n", gerr.Error())
					ctx.JSON(http.StatusBadGateway, gin.H{"error": "payment request was rejected by the provider"})
				default:
					log.Printf("Error initiating STK push: %s\n", err.Error())
					ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				}
				return
			}

			phone, _ := utils.NormalizePhoneNumber(body.PhoneNumber)
			amount := float64(body.Amount)
			record := models.MpesaTransaction{
				VendorID:            &vendorId,
				ProductID:           &product.ID,
				MerchantRequestID:   &ack.MerchantRequestID,
				CheckoutRequestID:   &ack.CheckoutRequestID,
				Amount:              &amount,
				PhoneNumber:         &phone,
				AccountReference:    &accountRef,
				ResponseCode:        &ack.ResponseCode,
				ResponseDescription: &ack.ResponseDescription,
			}
			if err := db.Create(&record).Error; err != nil {
				log.Printf("Error saving payment record for %s: %s\n", ack.CheckoutRequestID, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "could not record payment request"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
				"id":                   record.ID,
				"merchant_request_id":  ack.MerchantRequestID,
				"checkout_request_id":  ack.CheckoutRequestID,
				"response_code":        ack.ResponseCode,
				"response_description": ack.ResponseDescription,
				"customer_message":     ack.CustomerMessage,
				"status":               record.Status(),
			}})
		}).
		GET("/mpesa/transactions", func(ctx *gin.Context) {
			vendorId := ctx.GetUint("id")
			var query struct {
				Status string `form:"status"`
				Limit  int    `form:"limit,default=50"`
				Offset int    `form:"offset,default=0"`
			}
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if query.Limit <= 0 || query.Limit > 100 {
				query.Limit = 50
			}
			db := db.GetDb()
			tx := db.
				Model(&models.MpesaTransaction{}).
				Where("vendor_id = ?", vendorId)
			switch types.PaymentStatus(query.Status) {
			case types.PAYMENT_PENDING:
				tx = tx.Where("result_code IS NULL")
			case types.PAYMENT_RESOLVED_SUCCESS:
				tx = tx.Where("result_code = 0")
			case types.PAYMENT_RESOLVED_FAILURE:
				tx = tx.Where("result_code IS NOT NULL AND result_code <> 0")
			}
			var txns []models.MpesaTransaction
			err := tx.
				Order("created_at DESC").
				Limit(query.Limit).
				Offset(query.Offset).
				Find(&txns).
				Error
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			data := make([]gin.H, 0, len(txns))
			for i := range txns {
				data = append(data, gin.H{
					"transaction": txns[i],
					"status":      txns[i].Status(),
				})
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data})
		}).
		GET("/mpesa/transactions/:checkout_id", func(ctx *gin.Context) {
			var params struct {
				CheckoutID string `uri:"checkout_id" binding:"required"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			vendorId := ctx.GetUint("id")
			db := db.GetDb()
			var txn models.MpesaTransaction
			err := db.
				Where("checkout_request_id = ? AND vendor_id = ?", params.CheckoutID, vendorId).
				First(&txn).
				Error
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "Could not find record with associated id"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
				"transaction": txn,
				"status":      txn.Status(),
			}})
		}).
		GET("/payments/history", func(ctx *gin.Context) {
			vendorId := ctx.GetUint("id")
			limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
			offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
			rows, err := common.VendorPaymentHistory(vendorId, limit, offset)
			if err != nil {
				log.Printf("Error building payment history for vendor %d: %s\n", vendorId, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": rows})
		})
	return g
}

// mpesaWebhookRoute registers the public callback endpoint. The provider
// treats any non-200 as undelivered and retries, so this endpoint always
// answers 200 and signals the outcome through the body's ResultCode.
func mpesaWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/mpesa", func(ctx *gin.Context) {
		var envelope types.StkCallbackEnvelope
		if err := ctx.ShouldBindJSON(&envelope); err != nil || envelope.Body.StkCallback == nil {
			log.Println("[mpesa] received malformed callback payload")
			ctx.JSON(http.StatusOK, types.CallbackAck{ResultCode: 1, ResultDesc: "Rejected"})
			return
		}
		if err := common.ProcessStkCallback(envelope.Body.StkCallback); err != nil {
			log.Printf("Error processing STK callback: %s\n", err.Error())
			ctx.JSON(http.StatusOK, types.CallbackAck{ResultCode: 1, ResultDesc: "Rejected"})
			return
		}
		ctx.JSON(http.StatusOK, types.CallbackAck{ResultCode: 0, ResultDesc: "Accepted"})
	})
	return apiv1
}
