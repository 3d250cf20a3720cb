package api

import (
	"strings"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/auth"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const actorKey = "actor"

// JWTAuth проверяет Bearer токен и кладёт участника в контекст запроса
func JWTAuth(tokens *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			Unauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			Unauthorized(c, "invalid authorization header")
			return
		}

		claims, err := tokens.ParseToken(parts[1])
		if err != nil {
			Unauthorized(c, err.Error())
			return
		}
		if claims.TokenType != auth.TokenTypeAccess {
			Unauthorized(c, "invalid token type")
			return
		}

		c.Set(actorKey, claims.Actor())
		c.Next()
	}
}

// mustGetActor достаёт участника из контекста. При false ответ уже записан.
func mustGetActor(c *gin.Context) (model.Actor, bool) {
	v, exists := c.Get(actorKey)
	if !exists {
		Unauthorized(c, "unauthenticated")
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	if !ok || actor.ID <= 0 {
		Unauthorized(c, "unauthenticated")
		return model.Actor{}, false
	}
	return actor, true
}

// RequestLogger пишет строку лога на каждый запрос
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if actor, ok := c.Get(actorKey); ok {
			fields = append(fields, zap.Int64("actor_id", actor.(model.Actor).ID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("Request failed", fields...)
		case status >= 400:
			logger.Warn("Request rejected", fields...)
		default:
			logger.Info("Request completed", fields...)
		}
	}
}
