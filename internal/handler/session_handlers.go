package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/navid-fn/tradereplay/internal/service"
)

type SessionHandler struct {
	service *service.Service
}

func NewSessionHandler(svc *service.Service) *SessionHandler {
	return &SessionHandler{service: svc}
}

type startSessionRequest struct {
	Dates      []string `json:"dates" binding:"required,min=1"`
	TimeWindow string   `json:"time_window" binding:"required"`
}

func (h *SessionHandler) Start(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	s, err := h.service.CreateSession(c.Request.Context(), req.Dates, req.TimeWindow)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "session": s})
}

func (h *SessionHandler) Get(c *gin.Context) {
	s, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": s})
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *SessionHandler) Next(c *gin.Context) {
	res, err := h.service.AdvanceSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"session":           res.Session,
		"next_scenario":     res.Next,
		"session_completed": res.Completed,
	})
}

func (h *SessionHandler) Stats(c *gin.Context) {
	st, err := h.service.SessionStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": st})
}

func (h *SessionHandler) Trades(c *gin.Context) {
	trades, err := h.service.ListTrades(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "trades": trades, "count": len(trades)})
}
