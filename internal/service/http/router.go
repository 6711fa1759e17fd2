package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/health"
)

// NewRouter собирает HTTP-роутер сервиса.
func NewRouter(handler *OrderHandler, healthHandler *health.Handler, logger *log.Entry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogging(logger))

	r.GET("/healthz", gin.WrapH(healthHandler))
	r.GET("/livez", gin.WrapF(health.Liveness))
	r.GET("/readyz", gin.WrapF(healthHandler.Readiness))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/orders", handler.PlaceOrder)
		v1.GET("/orders/:id", handler.GetOrder)
		v1.GET("/customers/:id/orders", handler.ListCustomerOrders)
	}

	return r
}
