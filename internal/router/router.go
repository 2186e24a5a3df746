package router

import (
	"github.com/Brownie44l1/leuko-api/internal/handlers"
	"github.com/gin-gonic/gin"
)

// Register mounts every API route and serves stored images from imageDir
// under imagePrefix.
func Register(r *gin.Engine, h *handlers.Handler, imagePrefix, imageDir string) {
	r.GET("/health", h.Health)
	r.POST("/predict", h.Predict)

	r.GET("/reports", h.ListReports)
	r.GET("/reports/:id", h.GetReport)
	r.GET("/download-report/:id", h.DownloadReport)

	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)

	r.Static(imagePrefix, imageDir)
}
