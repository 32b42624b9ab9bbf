package main

import (
	"errors"
	"net/http"
	"vms/src/db"
	"vms/src/models"
	"vms/src/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func inventoryHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/inventory", func(ctx *gin.Context) {
			vendorId := ctx.GetUint("id")
			var items []models.Inventory
			db := db.GetDb()
			err := db.
				Preload("Product").
				Where(&models.Inventory{VendorID: vendorId}).
				Find(&items).
				Error
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": items})
		}).
		PUT("/inventory", func(ctx *gin.Context) {
			var body types.UpsertInventoryRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			vendorId := ctx.GetUint("id")
			db := db.GetDb()
			var item models.Inventory
			err := db.Transaction(func(tx *gorm.DB) error {
				var count int64
				if err := tx.Model(&models.Product{}).Where("id = ? AND vendor_id = ?", body.ProductID, vendorId).Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					return types.NewValidationError("could not find product %d", body.ProductID)
				}
				err := tx.
					Where(&models.Inventory{VendorID: vendorId, ProductID: body.ProductID}).
					First(&item).
					Error
				if errors.Is(err, gorm.ErrRecordNotFound) {
					item = models.Inventory{
						VendorID:  vendorId,
						ProductID: body.ProductID,
						Quantity:  body.Quantity,
					}
					return tx.Create(&item).Error
				} else if err != nil {
					return err
				}
				item.Quantity = body.Quantity
				return tx.Model(&item).Update("quantity", body.Quantity).Error
			})
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": item})
		})
	return g
}
