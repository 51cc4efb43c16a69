package middleware

import (
	"net/http"
	"strconv"
	"time"

	"signsense-server-go/src/configs"
	"signsense-server-go/src/core/metrics"
	"signsense-server-go/src/core/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader 请求ID头
const RequestIDHeader = "X-Request-Id"

const requestIDKey = "request_id"

// CORS 只允许配置的前端来源，方法和常用请求头全部放行
func CORS(config configs.CORSConfig) gin.HandlerFunc {
	maxAge := 12 * time.Hour
	if config.MaxAge > 0 {
		maxAge = time.Duration(config.MaxAge) * time.Second
	}
	return cors.New(cors.Config{
		AllowOrigins: config.AllowedOrigins,
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodHead, http.MethodOptions,
		},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Content-Length", "Accept", "Accept-Encoding",
			"Authorization", "X-Requested-With", RequestIDHeader,
		},
		ExposeHeaders:    []string{"Content-Length", RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           maxAge,
	})
}

// RequestID 透传或生成请求ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID 获取当前请求ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// AccessLog 每个请求记录一条日志，并统计请求数与耗时
func AccessLog(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		metrics.RequestTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		fields := map[string]interface{}{
			"request_id": GetRequestID(c),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": elapsed.Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		switch {
		case c.Request.Context().Err() != nil:
			logger.Info("客户端已断开", fields)
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP请求失败", fields)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP请求被拒绝", fields)
		default:
			logger.Info("HTTP请求完成", fields)
		}
	}
}
