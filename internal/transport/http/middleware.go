package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chronobook/backend/internal/identity"
)

const actorKey = "actor"

type tokenVerifier interface {
	Verify(token string) (identity.Actor, error)
}

func requireAuth(v tokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := identity.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			failure(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		actor, err := v.Verify(token)
		if err != nil {
			failure(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			return
		}
		c.Set(actorKey, actor)
		c.Request = c.Request.WithContext(identity.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func actorOf(c *gin.Context) identity.Actor {
	actor, _ := c.Get(actorKey)
	a, _ := actor.(identity.Actor)
	return a
}

// rateLimit keys authenticated callers by user id and everyone else by client IP. Limiter
// errors let the request through.
func rateLimit(l Limiter, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if a := actorOf(c); !a.IsZero() {
			key = "user:" + a.UserID
		}
		ok, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limiter error", slog.Any("err", err))
			c.Next()
			return
		}
		if !ok {
			failure(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}
		c.Next()
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.Log(c.Request.Context(), level, "http request",
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
