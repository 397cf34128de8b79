package router

import (
	"github.com/gin-gonic/gin"

	"github.com/navid-fn/tradereplay/internal/handler"
)

func registerMarketRoutes(router *gin.RouterGroup, h *handler.MarketHandler) {
	router.GET("/health", h.Health)
	router.GET("/time-windows", h.TimeWindows)
	router.GET("/available-dates", h.AvailableDates)
	router.GET("/candles", h.Candles)

	replay := router.Group("/replay")
	{
		replay.GET("", h.Replay)
		replay.GET("/stream", h.Stream)
	}
}

func registerSessionRoutes(router *gin.RouterGroup, h *handler.SessionHandler) {
	sessions := router.Group("/session")
	{
		sessions.POST("/start", h.Start)
		sessions.GET("/:id", h.Get)
		sessions.DELETE("/:id", h.Delete)
		sessions.POST("/:id/next", h.Next)
		sessions.GET("/:id/stats", h.Stats)
		sessions.GET("/:id/trades", h.Trades)
	}
}

func registerTradeRoutes(router *gin.RouterGroup, h *handler.TradeHandler) {
	trades := router.Group("/trade")
	{
		trades.POST("/enter", h.Enter)
		trades.GET("/:id/outcome", h.Outcome)
		trades.POST("/:id/scratch", h.Scratch)
	}
}
