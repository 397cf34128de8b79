package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/navid-fn/tradereplay/internal/models"
	"github.com/navid-fn/tradereplay/internal/service"
)

type TradeHandler struct {
	service *service.Service
}

func NewTradeHandler(svc *service.Service) *TradeHandler {
	return &TradeHandler{service: svc}
}

type enterTradeRequest struct {
	SessionID   string          `json:"session_id" binding:"required"`
	Timestamp   time.Time       `json:"timestamp" binding:"required"`
	Direction   string          `json:"direction" binding:"required"`
	EntryPrice  float64         `json:"entry_price" binding:"required,gt=0"`
	Notes       string          `json:"notes"`
	Annotations json.RawMessage `json:"annotations"`
	IsAGrade    bool            `json:"is_a_grade"`
}

func (h *TradeHandler) Enter(c *gin.Context) {
	var req enterTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	t, err := h.service.OpenTrade(c.Request.Context(), service.OpenTradeInput{
		SessionID:   req.SessionID,
		EntryAt:     req.Timestamp,
		Direction:   models.Direction(req.Direction),
		EntryPrice:  req.EntryPrice,
		Notes:       req.Notes,
		Annotations: req.Annotations,
		IsAGrade:    req.IsAGrade,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "trade": t})
}

func (h *TradeHandler) Outcome(c *gin.Context) {
	res, err := h.service.ResolveTrade(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"trade":            res.Trade,
		"resolved":         res.Trade.Outcome != models.OutcomePending,
		"already_resolved": res.AlreadyResolved,
	})
}

type scratchRequest struct {
	Timestamp time.Time `json:"timestamp" binding:"required"`
	ExitPrice float64   `json:"exit_price" binding:"required,gt=0"`
}

func (h *TradeHandler) Scratch(c *gin.Context) {
	var req scratchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	t, err := h.service.DeclareScratch(c.Request.Context(), c.Param("id"), req.Timestamp, req.ExitPrice)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "trade": t})
}
