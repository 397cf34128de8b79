package router

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/tradereplay/internal/handler"
)

type Config struct {
	MarketHandler  *handler.MarketHandler
	SessionHandler *handler.SessionHandler
	TradeHandler   *handler.TradeHandler
	Logger         logrus.FieldLogger
}

func NewRouter(cfg *Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger))

	api := router.Group("/v1/")
	registerMarketRoutes(api, cfg.MarketHandler)
	registerSessionRoutes(api, cfg.SessionHandler)
	registerTradeRoutes(api, cfg.TradeHandler)

	return router
}

// requestLogger logs one line per request through logrus.
func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		entry := logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		})
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last()).Error("request failed")
			return
		}
		entry.Debug("request")
	}
}
