package http

import (
	"github.com/gin-gonic/gin"
	"github.com/layer-3/pairsync/service"
	"github.com/rs/zerolog"
)

// SetupRouter sets up the Gin router
func SetupRouter(pairingService *service.PairingService, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	handlers := NewPairingHandlers(pairingService)

	router.POST("/pairings", handlers.Create)

	// Routes scoped to the pairing named in the viewer token
	pairings := router.Group("/pairings/:id")
	pairings.Use(ViewerMiddleware(pairingService))
	{
		pairings.GET("", handlers.Status)
		pairings.GET("/qr.png", handlers.QRCode)
		pairings.DELETE("", handlers.Cancel)
	}

	return router
}
