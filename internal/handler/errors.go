// Package handler holds the gin handlers of the HTTP API.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/navid-fn/tradereplay/internal/aggregator"
	"github.com/navid-fn/tradereplay/internal/calendar"
	"github.com/navid-fn/tradereplay/internal/evaluator"
	"github.com/navid-fn/tradereplay/internal/models"
	"github.com/navid-fn/tradereplay/internal/repository"
	"github.com/navid-fn/tradereplay/internal/service"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrPlaylistTooLong),
		errors.Is(err, calendar.ErrUnknownWindow),
		errors.Is(err, calendar.ErrInvalidDate),
		errors.Is(err, models.ErrUnknownTimeframe),
		errors.Is(err, aggregator.ErrUnsupportedTimeframe),
		errors.Is(err, evaluator.ErrInvalidTrade):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSessionCompleted),
		errors.Is(err, evaluator.ErrAlreadyResolved):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, gin.H{"success": false, "error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}
