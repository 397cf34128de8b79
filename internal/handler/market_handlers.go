package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/tradereplay/internal/replay"
	"github.com/navid-fn/tradereplay/internal/service"
)

type MarketHandler struct {
	service  *service.Service
	streamer *replay.Streamer
	upgrader websocket.Upgrader
	logger   logrus.FieldLogger
}

func NewMarketHandler(svc *service.Service, streamer *replay.Streamer, logger logrus.FieldLogger) *MarketHandler {
	return &MarketHandler{
		service:  svc,
		streamer: streamer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *MarketHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *MarketHandler) TimeWindows(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "time_windows": h.service.TimeWindows()})
}

func (h *MarketHandler) AvailableDates(c *gin.Context) {
	start, end := c.Query("start_date"), c.Query("end_date")
	if start == "" || end == "" {
		badRequest(c, "start_date and end_date are required")
		return
	}
	dates, err := h.service.AvailableDates(start, end, c.Query("time_window"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "dates": dates, "count": len(dates)})
}

func (h *MarketHandler) Candles(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "limit must be an integer")
			return
		}
		limit = n
	}
	slice, err := h.service.Candles(c.Request.Context(), c.Query("date"), c.Query("time_window"), c.Query("timeframe"), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"date":          slice.Date,
		"time_window":   slice.TimeWindow,
		"timeframe":     slice.Timeframe,
		"candles":       slice.Bars,
		"total_candles": slice.Total,
		"substituted":   slice.Substituted,
	})
}

func (h *MarketHandler) Replay(c *gin.Context) {
	var tfs []string
	if raw := c.Query("timeframes"); raw != "" {
		tfs = strings.Split(raw, ",")
	}
	r, err := h.service.Replay(c.Request.Context(), c.Query("date"), c.Query("time_window"), tfs)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "replay": r})
}

// Stream upgrades to a websocket and reveals the slice bar by bar.
func (h *MarketHandler) Stream(c *gin.Context) {
	speed := 1
	if raw := c.Query("speed"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || !h.streamer.ValidSpeed(n) {
			badRequest(c, "unsupported speed")
			return
		}
		speed = n
	}
	slice, err := h.service.Candles(c.Request.Context(), c.Query("date"), c.Query("time_window"), c.Query("timeframe"), 0)
	if err != nil {
		abortWithError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if err := h.streamer.Stream(c.Request.Context(), conn, slice, speed); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"date":      slice.Date,
			"timeframe": slice.Timeframe,
		}).Debug("replay stream ended with error")
	}
}
