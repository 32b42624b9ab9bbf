package main

import (
	"log"
	"net/http"
	"vms/src/db"
	"vms/src/models"
	"vms/src/types"
	"vms/src/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func guestAuthRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	guest := apiv1.Group("/auth")
	guest.
		POST("/register", func(ctx *gin.Context) {
			var body types.RegisterVendorRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			hash, err := utils.HashPassword(body.Password)
			if err != nil {
				log.Printf("Error hashing password: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			vendor := models.Vendor{
				Name:         body.Name,
				Email:        body.Email,
				Contact:      body.Contact,
				PasswordHash: hash,
			}
			db := db.GetDb()
			err = db.Transaction(func(tx *gorm.DB) error {
				var count int64
				if err := tx.Model(&models.Vendor{}).Where("email = ?", body.Email).Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					return types.NewValidationError("an account with this email already exists")
				}
				return tx.Create(&vendor).Error
			})
			if err != nil {
				log.Printf("[AuthRegister] error: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"id": vendor.ID})
		}).
		POST("/login", func(ctx *gin.Context) {
			var body types.LoginRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var vendor models.Vendor
			db := db.GetDb()
			err := db.Where(&models.Vendor{Email: body.Email}).First(&vendor).Error
			if err != nil || !utils.CheckPassword(vendor.PasswordHash, body.Password) {
				ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
				return
			}
			token, err := utils.GenerateJWT(vendor.Email, vendor.ID)
			if err != nil {
				log.Printf("[AuthLogin] error: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"token": token})
		})
	return guest
}
