package main

import (
	"net/http"
	"vms/src/db"
	"vms/src/models"
	"vms/src/types"

	"github.com/gin-gonic/gin"
)

func productHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/products", func(ctx *gin.Context) {
			var body types.CreateProductRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			vendorId := ctx.GetUint("id")
			product := models.Product{
				VendorID:  vendorId,
				Name:      body.Name,
				Unit:      body.Unit,
				Variation: body.Variation,
				SaleType:  body.SaleType,
				IsActive:  true,
			}
			db := db.GetDb()
			if err := db.Create(&product).Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": product})
		}).
		GET("/products", func(ctx *gin.Context) {
			vendorId := ctx.GetUint("id")
			var products []models.Product
			db := db.GetDb()
			err := db.
				Where(&models.Product{VendorID: vendorId}).
				Order("name ASC").
				Find(&products).
				Error
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": products})
		}).
		GET("/products/:id", func(ctx *gin.Context) {
			var params struct {
				ID uint `uri:"id" binding:"required"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			vendorId := ctx.GetUint("id")
			var product models.Product
			db := db.GetDb()
			err := db.
				Where(&models.Product{ID: params.ID, VendorID: vendorId}).
				First(&product).
				Error
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "Could not find record with associated id"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": product})
		}).
		PUT("/products/:id", func(ctx *gin.Context) {
			var params struct {
				ID uint `uri:"id" binding:"required"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.CreateProductRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			vendorId := ctx.GetUint("id")
			db := db.GetDb()
			res := db.
				Model(&models.Product{}).
				Where("id = ? AND vendor_id = ?", params.ID, vendorId).
				Updates(map[string]any{
					"name":      body.Name,
					"unit":      body.Unit,
					"variation": body.Variation,
					"sale_type": body.SaleType,
				})
			if res.Error != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": res.Error.Error()})
				return
			}
			if res.RowsAffected == 0 {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "Could not find record with associated id"})
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		DELETE("/products/:id", func(ctx *gin.Context) {
			var params struct {
				ID uint `uri:"id" binding:"required"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			vendorId := ctx.GetUint("id")
			db := db.GetDb()
			res := db.
				Model(&models.Product{}).
				Where("id = ? AND vendor_id = ?", params.ID, vendorId).
				Update("is_active", false)
			if res.Error != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": res.Error.Error()})
				return
			}
			if res.RowsAffected == 0 {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "Could not find record with associated id"})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}
