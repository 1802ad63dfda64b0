package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rustyeddy/llmtrader/internal/logger"
)

type Registrar interface {
	Register(r *gin.Engine)
}

// NewRouter builds the engine with recovery and request logging and mounts hs.
func NewRouter(log *zap.Logger, hs ...Registrar) *gin.Engine {
	log = logger.OrNop(log)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))
	for _, h := range hs {
		h.Register(r)
	}
	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
