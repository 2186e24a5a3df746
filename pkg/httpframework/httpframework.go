package httpframework

import (
	"github.com/Brownie44l1/leuko-api/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// New builds a gin engine with the given middlewares followed by access
// logging and panic recovery. Release mode is used for prod environments.
func New(env string, middlewares ...gin.HandlerFunc) *gin.Engine {
	if env == "prod" || env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	middlewares = append(middlewares, middleware.HTTPLogger(), middleware.HTTPRecovery())
	router.Use(middlewares...)
	return router
}
