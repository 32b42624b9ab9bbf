package main

import (
	"log"
	"net/http"
	"vms/src/db"
	"vms/src/models"
	"vms/src/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func saleHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/sales", func(ctx *gin.Context) {
			var body types.CreateSaleRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			vendorId := ctx.GetUint("id")
			sale := models.Sale{
				VendorID:    vendorId,
				ProductID:   body.ProductID,
				Quantity:    body.Quantity,
				UnitPrice:   body.UnitPrice,
				TotalPrice:  body.Quantity * body.UnitPrice,
				ReferenceNo: body.ReferenceNo,
				PaymentType: types.PAYMENT_TYPE_CASH,
			}
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				var count int64
				if err := tx.Model(&models.Product{}).Where("id = ? AND vendor_id = ?", body.ProductID, vendorId).Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					return types.NewValidationError("could not find product %d", body.ProductID)
				}
				if err := tx.Create(&sale).Error; err != nil {
					return err
				}
				res := tx.Model(&models.Inventory{}).
					Where("vendor_id = ? AND product_id = ? AND quantity >= ?", vendorId, body.ProductID, body.Quantity).
					UpdateColumn("quantity", gorm.Expr("quantity - ?", body.Quantity))
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					log.Printf("No stock to decrement for vendor %d product %d\n", vendorId, body.ProductID)
				}
				return nil
			})
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": sale})
		}).
		GET("/sales", func(ctx *gin.Context) {
			vendorId := ctx.GetUint("id")
			var sales []models.Sale
			db := db.GetDb()
			err := db.
				Where(&models.Sale{VendorID: vendorId}).
				Order("created_at DESC").
				Find(&sales).
				Error
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": sales})
		})
	return g
}
