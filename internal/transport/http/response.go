package http

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chronobook/backend/internal/domain"
)

func success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func failure(c *gin.Context, statusCode int, code, message string) {
	c.AbortWithStatusJSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func failureWithDetails(c *gin.Context, statusCode int, code, message string, details any) {
	c.AbortWithStatusJSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// writeError renders a booking failure. Business rejections are logged at Info, unexpected
// failures at Error with a generic message.
func writeError(c *gin.Context, log *slog.Logger, msg string, err error) {
	var be *domain.BookingError
	if !errors.As(err, &be) {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn(msg, slog.Any("err", err))
			failure(c, http.StatusGatewayTimeout, "TIMEOUT", "Request timed out")
			return
		}
		log.Error(msg, slog.Any("err", err))
		failure(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error")
		return
	}

	log.Info(msg, slog.String("kind", string(be.Kind)), slog.String("reason", be.Message))
	code := string(be.Kind)
	switch be.Kind {
	case domain.KindInvalidRequest:
		failure(c, http.StatusBadRequest, code, be.Message)
	case domain.KindInvalidAssignment, domain.KindServiceInactive, domain.KindRecurrenceNotAllowed,
		domain.KindPastDate, domain.KindInvalidPayment:
		failure(c, http.StatusUnprocessableEntity, code, be.Message)
	case domain.KindSlotUnavailable:
		failureWithDetails(c, http.StatusConflict, code, "That time is no longer available. Pick a different slot.", gin.H{
			"conflictAt": be.ConflictAt,
			"occurrence": be.Occurrence,
		})
	case domain.KindIllegalTransition, domain.KindTerminalState:
		failureWithDetails(c, http.StatusConflict, code, be.Message, gin.H{"from": be.From, "to": be.To})
	case domain.KindNotFound:
		failure(c, http.StatusNotFound, code, "Booking not found")
	case domain.KindForbidden:
		failure(c, http.StatusForbidden, code, be.Message)
	case domain.KindBusy:
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(be.RetryAfter)))
		failure(c, http.StatusServiceUnavailable, code, "The calendar is busy. Try again shortly.")
	default:
		log.Error(msg, slog.Any("err", err))
		failure(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error")
	}
}

func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}
