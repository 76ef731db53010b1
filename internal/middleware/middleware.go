package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"price-history-api/internal/metrics"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// Stack devuelve la cadena en orden. Recoverer va después de Logger y Prometheus
// para que un panic también quede registrado como 500.
func Stack(logger *zap.Logger) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		RequestID(),
		Logger(logger),
		Prometheus(),
		Recoverer(logger),
	}
}

// RequestID reutiliza el X-Request-ID del cliente o genera uno nuevo.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDKey, reqID)
		c.Header(RequestIDHeader, reqID)
		c.Next()
	}
}

// GetRequestID devuelve el id que puso RequestID, o "" si el middleware no corrió
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Logger escribe una línea estructurada por request
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes_written", c.Writer.Size()),
			zap.Float64("duration_ms", float64(time.Since(start).Nanoseconds())/1e6),
			zap.String("remote_addr", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("Request completed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("Request completed", fields...)
		default:
			logger.Info("Request completed", fields...)
		}
	}
}

// Recoverer registra el panic con el request id y responde 500
func Recoverer(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, rvr any) {
		logger.Error("Panic recovered",
			zap.Any("panic", rvr),
			zap.String("request_id", GetRequestID(c)),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": http.StatusText(http.StatusInternalServerError)})
	})
}

// Prometheus registra cantidad y latencia de requests por plantilla de ruta
func Prometheus() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}

// RequireReady responde 503 mientras la base de datos no esté lista.
func RequireReady(ready func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ready() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": "Service Unavailable: database not ready"})
			return
		}
		c.Next()
	}
}
