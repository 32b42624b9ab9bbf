package main

import (
	"net/http"
	"vms/src/db"
	"vms/src/models"
	"vms/src/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func purchaseHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/purchases", func(ctx *gin.Context) {
			var body types.CreatePurchaseRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			vendorId := ctx.GetUint("id")
			purchase := models.Purchase{
				VendorID:  vendorId,
				ProductID: body.ProductID,
				Quantity:  body.Quantity,
				UnitCost:  body.UnitCost,
				TotalCost: body.Quantity * body.UnitCost,
			}
			db := db.GetDb()
			// A purchase restocks the product, so the inventory increment
			// rides in the same transaction.
			err := db.Transaction(func(tx *gorm.DB) error {
				var count int64
				if err := tx.Model(&models.Product{}).Where("id = ? AND vendor_id = ?", body.ProductID, vendorId).Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					return types.NewValidationError("could not find product %d", body.ProductID)
				}
				if err := tx.Create(&purchase).Error; err != nil {
					return err
				}
				res := tx.Model(&models.Inventory{}).
					Where("vendor_id = ? AND product_id = ?", vendorId, body.ProductID).
					UpdateColumn("quantity", gorm.Expr("quantity + ?", body.Quantity))
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					item := models.Inventory{
						VendorID:  vendorId,
						ProductID: body.ProductID,
						Quantity:  body.Quantity,
					}
					return tx.Create(&item).Error
				}
				return nil
			})
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": purchase})
		}).
		GET("/purchases", func(ctx *gin.Context) {
			vendorId := ctx.GetUint("id")
			var purchases []models.Purchase
			db := db.GetDb()
			err := db.
				Where(&models.Purchase{VendorID: vendorId}).
				Order("created_at DESC").
				Find(&purchases).
				Error
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": purchases})
		})
	return g
}
