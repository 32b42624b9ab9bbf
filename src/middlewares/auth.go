package middlewares

import (
	"log"
	"strconv"
	"strings"

	"vms/src/db"
	"vms/src/models"
	"vms/src/utils"

	"github.com/gin-gonic/gin"
)

func AuthMiddleware(ctx *gin.Context) {
	bearerToken := ctx.Request.Header.Get("Authorization")
	if !strings.HasPrefix(bearerToken, "Bearer") {
		ctx.AbortWithStatus(401)
		return
	}
	parts := strings.Split(bearerToken, " ")
	if len(parts) != 2 || parts[1] == "" {
		ctx.AbortWithStatus(401)
		return
	}
	claims, err := utils.ParseJWT(parts[1])
	if err != nil {
		log.Printf("token error: %s\n", err.Error())
		ctx.AbortWithStatus(401)
		return
	}

	vid, err := strconv.Atoi(claims.Subject)
	if err != nil {
		log.Println("error parsing claims:", err.Error())
		ctx.AbortWithStatus(401)
		return
	}
	db := db.GetDb()
	var vendor models.Vendor
	db.Model(&models.Vendor{}).Where(&models.Vendor{ID: uint(vid)}).Find(&vendor)

	if uint(vid) != vendor.ID || vendor.ID < 1 {
		ctx.AbortWithStatus(401)
		return
	}
	ctx.Set("id", vendor.ID)
	ctx.Set("email", vendor.Email)
	ctx.Set("name", vendor.Name)
}
