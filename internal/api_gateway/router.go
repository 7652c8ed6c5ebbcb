package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pos-backoffice/wirepos/internal/api_gateway/handler"
	"github.com/pos-backoffice/wirepos/internal/api_gateway/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	wireposHandler *handler.WirePOSHandler,
	linkHandler *handler.LinkHandler,
	pollers PollerStats,
) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger, "/health", "/metrics"))

	// Terminal charge endpoints. Paths are fixed by the POS front-end and terminals.
	wirepos := r.Group("/wirepos")
	{
		wirepos.POST("/addrequest", wireposHandler.AddRequest)
		wirepos.GET("/status/:transactionId", wireposHandler.Status)
		wirepos.GET("/CheckRequest/:transactionId", wireposHandler.CheckRequest)
		wirepos.GET("/pending", wireposHandler.Pending)
		wirepos.POST("/response", wireposHandler.Response)

		transactions := wirepos.Group("/transactions/:transactionId")
		{
			transactions.POST("/link", linkHandler.Link)
			transactions.GET("/exchanges", wireposHandler.Exchanges)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"pollers": gin.H{
				"active":   pollers.Active(),
				"running":  pollers.Running(),
				"capacity": pollers.Capacity(),
			},
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
